package configsource

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/goliatone/go-credvault/core"
	"gopkg.in/yaml.v3"
)

// FileLoader reads a YAML document shaped like core.Config.
type FileLoader struct {
	Path string
	// Optional treats a missing file as an empty document.
	Optional bool
}

func NewFileLoader(path string) *FileLoader {
	return &FileLoader{Path: path}
}

func (l *FileLoader) LoadRaw(context.Context) (map[string]any, error) {
	if l == nil || strings.TrimSpace(l.Path) == "" {
		return nil, fmt.Errorf("configsource: file path is required")
	}
	data, err := os.ReadFile(l.Path)
	if err != nil {
		if l.Optional && errors.Is(err, fs.ErrNotExist) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("configsource: read %s: %w", l.Path, err)
	}
	return ParseYAML(data)
}

// ParseYAML decodes a YAML config document. Duration strings under
// oauth.state_ttl are parsed into time.Duration.
func ParseYAML(data []byte) (map[string]any, error) {
	out := map[string]any{}
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("configsource: decode yaml: %w", err)
	}
	if out == nil {
		out = map[string]any{}
	}
	if oauth, ok := out["oauth"].(map[string]any); ok {
		if raw, ok := oauth["state_ttl"].(string); ok {
			ttl, err := time.ParseDuration(strings.TrimSpace(raw))
			if err != nil {
				return nil, fmt.Errorf("configsource: oauth.state_ttl: %w", err)
			}
			oauth["state_ttl"] = ttl
		}
	}
	return out, nil
}

// MergedLoader layers loaders in order; later loaders win key by key.
type MergedLoader struct {
	Loaders []core.RawConfigLoader
}

func NewMergedLoader(loaders ...core.RawConfigLoader) *MergedLoader {
	return &MergedLoader{Loaders: loaders}
}

func (l *MergedLoader) LoadRaw(ctx context.Context) (map[string]any, error) {
	out := map[string]any{}
	if l == nil {
		return out, nil
	}
	for _, loader := range l.Loaders {
		if loader == nil {
			continue
		}
		raw, err := loader.LoadRaw(ctx)
		if err != nil {
			return nil, err
		}
		mergeInto(out, raw)
	}
	return out, nil
}

func mergeInto(dst map[string]any, src map[string]any) {
	for key, value := range src {
		srcMap, srcIsMap := value.(map[string]any)
		dstMap, dstIsMap := dst[key].(map[string]any)
		if srcIsMap && dstIsMap {
			mergeInto(dstMap, srcMap)
			continue
		}
		if srcIsMap {
			copied := map[string]any{}
			mergeInto(copied, srcMap)
			dst[key] = copied
			continue
		}
		dst[key] = value
	}
}

var (
	_ core.RawConfigLoader = (*FileLoader)(nil)
	_ core.RawConfigLoader = (*MergedLoader)(nil)
)
