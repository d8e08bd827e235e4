// Package gologger resolves one go-logger pair for the vault and hands it to
// the service, the go-job workers and named components.
package gologger

import (
	"strings"

	"github.com/goliatone/go-credvault/core"
	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"
)

const DefaultName = "credvault"

// Loggers is a resolved provider and root logger. The provider wins over the
// logger, and a nop logger backs an empty pair.
type Loggers struct {
	name     string
	Provider glog.LoggerProvider
	Logger   glog.Logger
}

func New(name string, provider glog.LoggerProvider, logger glog.Logger) Loggers {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultName
	}
	resolvedProvider, resolvedLogger := glog.Resolve(name, provider, logger)
	return Loggers{
		name:     name,
		Provider: resolvedProvider,
		Logger:   glog.Ensure(resolvedLogger),
	}
}

// Component returns the logger for a named part of the vault, for example
// "credvault.refresh".
func (l Loggers) Component(component string) glog.Logger {
	component = strings.TrimSpace(component)
	if l.Provider == nil || component == "" {
		return glog.Ensure(l.Logger)
	}
	return glog.Ensure(l.Provider.GetLogger(l.name + "." + component))
}

func (l Loggers) JobProvider() job.LoggerProvider {
	if l.Provider == nil {
		return nil
	}
	return job.GoLoggerProvider(l.Provider)
}

func (l Loggers) JobLogger() job.Logger {
	return job.GoLogger(glog.Ensure(l.Logger))
}

// ServiceOptions installs the pair on the vault service so the service and
// its job workers log through the same provider.
func (l Loggers) ServiceOptions() []core.Option {
	return []core.Option{
		core.WithLoggerProvider(l.Provider),
		core.WithLogger(l.Logger),
	}
}
