// Package migrations exposes the embedded vault schema per SQL dialect and
// registers it with a persistence client.
package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"

	credvault "github.com/goliatone/go-credvault"
	persistence "github.com/goliatone/go-persistence-bun"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"

	defaultSourceLabel = "go-credvault"
	schemaDir          = "data/sql/migrations"
)

// DialectSource is the migration tree for one dialect. Postgres files live at
// the schema root and sqlite alternatives under sqlite/.
type DialectSource struct {
	Dialect string
	Path    string
	FS      fs.FS
}

type Registration struct {
	SourceLabel string
	Dialects    []string
	Sources     []DialectSource
}

type RegisterFunc func(ctx context.Context, dialect string, sourceLabel string, fsys fs.FS) error

type Option func(*Registration)

func WithSourceLabel(label string) Option {
	return func(r *Registration) {
		if trimmed := strings.TrimSpace(label); trimmed != "" {
			r.SourceLabel = trimmed
		}
	}
}

// WithDialects limits registration to the named dialects.
func WithDialects(dialects ...string) Option {
	return func(r *Registration) {
		if normalized := normalizeDialects(dialects); len(normalized) > 0 {
			r.Dialects = normalized
		}
	}
}

// WithSources replaces the embedded schema, mostly for hosts that ship
// extra tables next to the vault's.
func WithSources(sources ...DialectSource) Option {
	return func(r *Registration) {
		var kept []DialectSource
		for _, source := range sources {
			dialect := normalizeDialect(source.Dialect)
			if dialect == "" || source.FS == nil {
				continue
			}
			kept = append(kept, DialectSource{Dialect: dialect, Path: source.Path, FS: source.FS})
		}
		if len(kept) > 0 {
			r.Sources = kept
		}
	}
}

// Sources splits a schema tree into its postgres and sqlite sources. With no
// argument the embedded vault schema is used. Both dialects must declare the
// same versions and every up file needs its down file.
func Sources(tree ...fs.FS) ([]DialectSource, error) {
	root := credvault.GetMigrationsFS()
	if len(tree) > 0 && tree[0] != nil {
		root = tree[0]
	}

	base, basePath, err := schemaRoot(root)
	if err != nil {
		return nil, err
	}
	sqliteFS, err := fs.Sub(base, "sqlite")
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve sqlite schema: %w", err)
	}
	sources := []DialectSource{
		{Dialect: DialectPostgres, Path: basePath, FS: base},
		{Dialect: DialectSQLite, Path: path.Join(basePath, "sqlite"), FS: sqliteFS},
	}

	var reference []string
	for i, source := range sources {
		versions, err := Versions(source.FS)
		if err != nil {
			return nil, fmt.Errorf("migrations: %s schema %q: %w", source.Dialect, source.Path, err)
		}
		if i == 0 {
			reference = versions
			continue
		}
		if !slices.Equal(reference, versions) {
			return nil, fmt.Errorf("migrations: %s versions %v differ from %s versions %v",
				source.Dialect, versions, sources[0].Dialect, reference)
		}
	}
	return sources, nil
}

// Versions lists migration names (without the .up.sql suffix) in apply order.
func Versions(fsys fs.FS) ([]string, error) {
	ups, err := fs.Glob(fsys, "*.up.sql")
	if err != nil {
		return nil, err
	}
	if len(ups) == 0 {
		return nil, fmt.Errorf("no *.up.sql files")
	}
	versions := make([]string, 0, len(ups))
	for _, up := range ups {
		name := strings.TrimSuffix(up, ".up.sql")
		if _, err := fs.Stat(fsys, name+".down.sql"); err != nil {
			return nil, fmt.Errorf("%s has no down migration", up)
		}
		versions = append(versions, name)
	}
	slices.Sort(versions)
	return versions, nil
}

// Register hands each selected dialect source to registerFn.
func Register(ctx context.Context, registerFn RegisterFunc, opts ...Option) (Registration, error) {
	reg := Registration{
		SourceLabel: defaultSourceLabel,
		Dialects:    []string{DialectPostgres, DialectSQLite},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&reg)
		}
	}
	if registerFn == nil {
		return reg, fmt.Errorf("migrations: register function is required")
	}
	if len(reg.Sources) == 0 {
		sources, err := Sources()
		if err != nil {
			return reg, err
		}
		reg.Sources = sources
	}

	for _, source := range reg.Sources {
		if !slices.Contains(reg.Dialects, source.Dialect) {
			continue
		}
		if err := registerFn(ctx, source.Dialect, reg.SourceLabel, source.FS); err != nil {
			return reg, fmt.Errorf("migrations: register %s (%s): %w", source.Dialect, source.Path, err)
		}
	}
	return reg, nil
}

// Apply registers the schema for dialect on client and runs every pending
// migration.
func Apply(ctx context.Context, client *persistence.Client, dialect string) error {
	if client == nil {
		return fmt.Errorf("migrations: persistence client is required")
	}
	dialect = normalizeDialect(dialect)
	_, err := Register(ctx, func(_ context.Context, _ string, _ string, fsys fs.FS) error {
		client.RegisterSQLMigrations(fsys)
		return nil
	}, WithDialects(dialect))
	if err != nil {
		return err
	}
	if err := client.Migrate(ctx); err != nil {
		return fmt.Errorf("migrations: migrate %s: %w", dialect, err)
	}
	return nil
}

func schemaRoot(root fs.FS) (fs.FS, string, error) {
	sub, err := fs.Sub(root, schemaDir)
	if err == nil {
		if _, statErr := fs.Stat(sub, "."); statErr == nil {
			return sub, schemaDir, nil
		}
	}
	if matches, globErr := fs.Glob(root, "*.sql"); globErr == nil && len(matches) > 0 {
		return root, ".", nil
	}
	return nil, "", fmt.Errorf("migrations: %s not found", schemaDir)
}

func normalizeDialect(dialect string) string {
	switch strings.TrimSpace(strings.ToLower(dialect)) {
	case "postgres", "postgresql", "pg":
		return DialectPostgres
	case "sqlite", "sqlite3":
		return DialectSQLite
	default:
		return strings.TrimSpace(strings.ToLower(dialect))
	}
}

func normalizeDialects(dialects []string) []string {
	var out []string
	for _, dialect := range dialects {
		normalized := normalizeDialect(dialect)
		if normalized == "" || slices.Contains(out, normalized) {
			continue
		}
		out = append(out, normalized)
	}
	return out
}
