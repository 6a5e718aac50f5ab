package internal

import (
	"io"
	"log/slog"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config    *Config
	version   string
	logOutput io.Writer
	logger    *slog.Logger

	watch   bool
	sources []string
	files   []string
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithVersion sets the version reported by the MCP server.
func WithVersion(v string) Option {
	return func(a *application) {
		a.version = v
	}
}

// WithLogOutput redirects the JSON log stream. MCP uses stdout for the
// protocol, so it logs to stderr.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOutput = w
	}
}

// WithWatch keeps remapping Sources as their dump files change.
func WithWatch(watch bool) Option {
	return func(a *application) {
		a.watch = watch
	}
}

// WithSources restricts the map command to the named Sources.
func WithSources(names ...string) Option {
	return func(a *application) {
		a.sources = append(a.sources, names...)
	}
}

// WithFiles sets the reference dumps loaded by the import command.
func WithFiles(paths ...string) Option {
	return func(a *application) {
		a.files = append(a.files, paths...)
	}
}
