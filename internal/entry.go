// Package internal provides the application initialization and runtime logic
// behind each wikimapper command.
package internal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/wikimapper/internal/api"
	"github.com/starford/wikimapper/internal/lookup"
	"github.com/starford/wikimapper/internal/mapping"
	"github.com/starford/wikimapper/internal/mcpserver"
	"github.com/starford/wikimapper/internal/metadata"
	"github.com/starford/wikimapper/internal/models"
	"github.com/starford/wikimapper/internal/oracle"
	"github.com/starford/wikimapper/internal/parser"
	"github.com/starford/wikimapper/internal/resolve"
	"github.com/starford/wikimapper/internal/sse"
	"github.com/starford/wikimapper/internal/storage"
)

// LanguagesFile is written by the metadata command inside Metadata.Dir.
const LanguagesFile = "wikislanguages.csv"

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev", logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}

	app.logger = slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: app.config.App.LogLevel,
	}))
	slog.SetDefault(app.logger)

	cfg := app.config
	app.logger.Info("Configuration loaded",
		slog.String("root", cfg.Paths.Root),
		slog.String("sources_dir", cfg.Paths.SourcesDir),
		slog.String("target_namespace", cfg.Mapping.TargetNamespace),
		slog.String("oracle_mode", cfg.Oracle.Mode),
		slog.String("log_level", cfg.App.LogLevel.String()))
	return app, nil
}

// backend is the Existence Oracle chosen by the configuration.
type backend struct {
	oracle  oracle.Oracle
	counter lookup.Counter
	cache   *oracle.Cached
	close   func() error
}

func (a *application) openOracle() (*backend, error) {
	cfg := a.config.Oracle
	b := &backend{close: func() error { return nil }}

	switch cfg.Mode {
	case OracleModeHTTP:
		b.oracle = oracle.NewHTTPClient(cfg.URL, cfg.Token, cfg.Timeout)
	default:
		db, err := oracle.Open(cfg.SQLite)
		if err != nil {
			return nil, fmt.Errorf("init oracle: %w", err)
		}
		b.oracle, b.counter, b.close = db, db, db.Close
	}

	if cfg.Cache {
		b.cache = oracle.NewCached(b.oracle)
		b.oracle = b.cache
	}
	return b, nil
}

func (a *application) classifier() *parser.Classifier {
	c := parser.NewClassifier()
	if markers := a.config.Mapping.ExcludedMarkers; len(markers) > 0 {
		c.Excluded = make([]string, 0, len(markers))
		for _, m := range markers {
			c.Excluded = append(c.Excluded, strings.ToLower(m))
		}
	}
	return c
}

func (a *application) executor(strategies resolve.Set, onSource mapping.EventCallback) *mapping.Executor {
	opts := a.config.MappingOptions()
	opts.OnSource = onSource
	return mapping.New(strategies, a.classifier(), opts, a.logger)
}

// RunMap maps every Source (or the ones given WithSources) once, then keeps
// watching the dump tree when WithWatch is set.
func RunMap(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.logger

	be, err := app.openOracle()
	if err != nil {
		return err
	}
	defer be.close()

	strategies := resolve.NewSet(be.oracle, cfg.Mapping.OntologyBase, logger)
	exec := app.executor(strategies, nil)

	if len(app.sources) > 0 {
		for _, name := range app.sources {
			if _, err := exec.RunSource(ctx, cfg.Paths.Root, name); err != nil {
				return fmt.Errorf("map %s: %w", name, err)
			}
		}
	} else {
		report, err := exec.Run(ctx, cfg.Paths.Root)
		if err != nil {
			return fmt.Errorf("map: %w", err)
		}
		logger.Info("Mapping finished",
			slog.String("statistics", report.StatisticsPath),
			slog.String("ontology", report.OntologyPath))
	}
	if be.cache != nil {
		logger.Debug("Oracle cache", slog.Int("entries", be.cache.Len()))
	}

	if !app.watch {
		return nil
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	logger.Info("Watching dump tree", slog.String("root", cfg.Paths.Root))
	return exec.Watch(ctx, cfg.Paths.Root, cfg.Mapping.WatchDebounce)
}

// Run starts the HTTP API. With WithWatch it also maps the dump tree and
// streams every mapped Source to SSE subscribers.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.logger

	be, err := app.openOracle()
	if err != nil {
		return err
	}
	defer be.close()

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	strategies := resolve.NewSet(be.oracle, cfg.Mapping.OntologyBase, logger)
	svc := lookup.NewService(be.oracle, strategies, app.classifier(), be.counter)

	exec := app.executor(strategies, func(rep mapping.SourceReport, totals models.Statistics) {
		ev := sse.SourceEvent{
			Source:     rep.Source,
			Resources:  rep.Resources,
			Properties: rep.Properties,
			Classes:    rep.Classes,
		}
		if rep.Err != nil {
			ev.Error = rep.Err.Error()
		}
		broker.PublishSourceEvent(ev, totals)
		svc.Observe(totals)
	})

	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if be.counter != nil {
			if _, err := be.counter.Counts(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"oracle unavailable"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	g, gCtx := errgroup.WithContext(ctx)

	if app.watch {
		g.Go(func() error {
			report, err := exec.Run(gCtx, cfg.Paths.Root)
			if err != nil {
				logger.Warn("initial mapping run failed", slog.String("error", err.Error()))
				return nil
			}
			svc.Observe(report.Statistics)
			if err := exec.Watch(gCtx, cfg.Paths.Root, cfg.Mapping.WatchDebounce); err != nil {
				logger.Warn("watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the errgroup so the watcher stops with the server.
var errShutdown = errors.New("shutdown")

// ServeMCP serves the lookup tools over MCP stdio until ctx is done or
// stdin is closed.
func ServeMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	cfg := app.config

	be, err := app.openOracle()
	if err != nil {
		return err
	}
	defer be.close()

	strategies := resolve.NewSet(be.oracle, cfg.Mapping.OntologyBase, app.logger)
	srv := mcpserver.New(lookup.NewService(be.oracle, strategies, app.classifier(), be.counter), app.version)

	app.logger.Info("MCP server starting on stdio")
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ServeStdio() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return nil
	}
}

// Import loads the reference dumps given WithFiles into the local oracle.
func Import(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.logger

	if cfg.Oracle.Mode != OracleModeSQLite {
		return fmt.Errorf("import: oracle mode %q has no local database", cfg.Oracle.Mode)
	}
	if len(app.files) == 0 {
		return fmt.Errorf("import: no dump files given")
	}

	db, err := oracle.Open(cfg.Oracle.SQLite)
	if err != nil {
		return fmt.Errorf("init oracle: %w", err)
	}
	defer db.Close()

	for _, path := range app.files {
		if err := importFile(ctx, db, path, logger); err != nil {
			return err
		}
	}

	counts, err := db.Counts(ctx)
	if err != nil {
		return err
	}
	logger.Info("Import finished",
		slog.Int("ontology", counts[oracle.KindOntology]),
		slog.Int("property", counts[oracle.KindProperty]),
		slog.Int("resource", counts[oracle.KindResource]))
	return nil
}

func importFile(ctx context.Context, db *oracle.DB, path string, logger *slog.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	defer f.Close()

	start := time.Now()
	stats, err := db.Import(ctx, f, oracle.FormatFor(path))
	if err != nil {
		return fmt.Errorf("import %s: %w", path, err)
	}
	logger.Info("Dump imported",
		slog.String("file", path),
		slog.Int("triples", stats.Triples),
		slog.Int("ontology", stats.Entities[oracle.KindOntology]),
		slog.Int("property", stats.Entities[oracle.KindProperty]),
		slog.Int("resource", stats.Entities[oracle.KindResource]),
		slog.String("took", time.Since(start).String()))
	return nil
}

// Metadata downloads the wiki listing, then writes the per-language wiki
// counts next to it.
func Metadata(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	mc := cfg.Metadata
	logger := app.logger

	if mc.Endpoint == "" {
		return fmt.Errorf("metadata: endpoint is not configured")
	}

	root, err := storage.NewFS(cfg.Paths.Root)
	if err != nil {
		return fmt.Errorf("metadata: %w", err)
	}
	dir := mc.Dir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root.Root(), dir)
	}

	fetcher := metadata.NewHTTPFetcher(mc.Endpoint, mc.Timeout)
	merged, err := metadata.Download(ctx, fetcher, mc.Ranges, dir, metadata.DownloadOptions{BatchSize: mc.BatchSize}, logger)
	if err != nil {
		return err
	}

	codes := metadata.DefaultLanguageCodes
	if mc.LanguageCodes != "" {
		if codes, err = loadLanguageCodes(mc.LanguageCodes); err != nil {
			return err
		}
	}

	in, err := os.Open(merged)
	if err != nil {
		return fmt.Errorf("metadata: %w", err)
	}
	defer in.Close()

	stats, err := metadata.ComputeStatistics(in, codes, logger)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := metadata.WriteLanguages(&buf, stats.TopLanguages(mc.MinWikis)); err != nil {
		return err
	}
	outDir, err := storage.NewFS(dir)
	if err != nil {
		return fmt.Errorf("metadata: %w", err)
	}
	if err := outDir.Write(LanguagesFile, buf.Bytes()); err != nil {
		return fmt.Errorf("metadata: %w", err)
	}

	logger.Info("Metadata written",
		slog.String("listing", merged),
		slog.String("languages", filepath.Join(dir, LanguagesFile)),
		slog.Int("wikis", stats.Wikis),
		slog.Int("articles", stats.Articles),
		slog.Int("pages", stats.Pages))
	return nil
}

func loadLanguageCodes(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("metadata: language codes: %w", err)
	}
	defer f.Close()
	return metadata.LoadLanguageCodes(f)
}
