// Package mapping drives the per-Source scan, resolution and output steps.
package mapping

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/starford/wikimapper/internal/apperr"
	"github.com/starford/wikimapper/internal/models"
	"github.com/starford/wikimapper/internal/ontology"
	"github.com/starford/wikimapper/internal/parser"
	"github.com/starford/wikimapper/internal/resolve"
	"github.com/starford/wikimapper/internal/scan"
	"github.com/starford/wikimapper/internal/storage"
)

// Default output locations, relative to the root directory.
const (
	DefaultSourcesDir     = "postProcessedWikis"
	DefaultStatisticsPath = "statistics/found_resources_properties_classes.txt"
	DefaultOntologyPath   = "ontology/wikimapper_classes.ttl"
)

// Options configure an Executor.
type Options struct {
	SourcesDir       string
	StatisticsPath   string
	OntologyPath     string
	IncludeNoMapping bool
	Scan             scan.Options
	Ontology         ontology.Options
	// OnSource is called after each Source is mapped.
	OnSource EventCallback
}

// EventCallback receives the report of a finished Source together with the
// running totals that include it.
type EventCallback func(rep SourceReport, totals models.Statistics)

// SourceReport describes the outcome of mapping one Source.
type SourceReport struct {
	Source     string                  `json:"source"`
	Resources  int                     `json:"resources"`
	Properties int                     `json:"properties"`
	Classes    int                     `json:"classes"`
	Rows       map[models.Category]int `json:"rows"`
	Duration   time.Duration           `json:"duration"`
	Err        error                   `json:"-"`
}

// Failed reports whether the Source did not complete cleanly.
func (r SourceReport) Failed() bool { return r.Err != nil }

// Report is the outcome of a full run.
type Report struct {
	Statistics      models.Statistics `json:"statistics"`
	Sources         []SourceReport    `json:"sources"`
	OntologyClasses int               `json:"ontology_classes"`
	StatisticsPath  string            `json:"statistics_path"`
	OntologyPath    string            `json:"ontology_path"`
}

// Executor maps Sources one at a time with the injected strategies.
type Executor struct {
	strategies resolve.Set
	classifier *parser.Classifier
	opts       Options
	logger     *slog.Logger
}

// New creates an Executor.
func New(strategies resolve.Set, classifier *parser.Classifier, opts Options, logger *slog.Logger) *Executor {
	if opts.SourcesDir == "" {
		opts.SourcesDir = DefaultSourcesDir
	}
	if opts.StatisticsPath == "" {
		opts.StatisticsPath = DefaultStatisticsPath
	}
	if opts.OntologyPath == "" {
		opts.OntologyPath = DefaultOntologyPath
	}
	if classifier == nil {
		classifier = parser.NewClassifier()
	}
	return &Executor{strategies: strategies, classifier: classifier, opts: opts, logger: logger}
}

// workspace binds an Executor to one root directory.
type workspace struct {
	root    *storage.FS
	sources *storage.FS
	scanner *scan.Scanner
}

func (e *Executor) open(root string) (*workspace, error) {
	rootFS, err := storage.NewFS(root)
	if err != nil {
		return nil, fmt.Errorf("mapping: %w", err)
	}
	dir := filepath.Join(rootFS.Root(), e.opts.SourcesDir)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("mapping: %s: %w", dir, apperr.ErrNoSourcesDir)
	}
	sources, err := storage.NewFS(dir)
	if err != nil {
		return nil, fmt.Errorf("mapping: %w", err)
	}
	return &workspace{
		root:    rootFS,
		sources: sources,
		scanner: scan.New(sources, e.classifier, e.opts.Scan, e.logger),
	}, nil
}

// Run maps every Source under root, then writes the statistics file and the
// ontology. A failing Source is logged and its partial contribution kept; only
// a missing sources directory or an unwritable output fails the run, and the
// statistics are written even when the ontology step fails.
func (e *Executor) Run(ctx context.Context, root string) (Report, error) {
	ws, err := e.open(root)
	if err != nil {
		return Report{}, err
	}
	srcs, err := ws.sources.Sources()
	if err != nil {
		return Report{}, fmt.Errorf("mapping: %w", err)
	}

	var (
		rep      Report
		totals   models.Statistics
		universe = models.CandidateSet{}
	)
	e.logger.Info("mapping: run started",
		slog.String("root", ws.root.Root()),
		slog.Int("sources", len(srcs)))

	for _, src := range srcs {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		sr, sets := e.mapSource(ctx, ws, src)
		totals = totals.Add(sets)
		if sr.Failed() {
			totals.Failed++
		}
		ontology.Universe(universe, sets.Classes)
		rep.Sources = append(rep.Sources, sr)
		if e.opts.OnSource != nil {
			e.opts.OnSource(sr, totals)
		}
	}
	rep.Statistics = totals

	// Statistics go first so a failing ontology step still leaves them behind.
	var errs []error
	if err := ws.root.Write(e.opts.StatisticsPath, []byte(totals.Text())); err != nil {
		errs = append(errs, fmt.Errorf("mapping: write statistics: %w", err))
	} else {
		rep.StatisticsPath = filepath.Join(ws.root.Root(), e.opts.StatisticsPath)
	}

	n, err := e.writeOntology(ws, universe)
	if err != nil {
		errs = append(errs, err)
	} else {
		rep.OntologyClasses = n
		rep.OntologyPath = filepath.Join(ws.root.Root(), e.opts.OntologyPath)
	}
	if len(errs) > 0 {
		return rep, errors.Join(errs...)
	}

	e.logger.Info("mapping: run finished",
		slog.Int("sources", totals.Sources),
		slog.Int("failed", totals.Failed),
		slog.Int("resources", totals.Resources),
		slog.Int("properties", totals.Properties),
		slog.Int("classes", totals.Classes),
		slog.Int("ontology_classes", n))
	return rep, nil
}

// RunSource maps the single named Source under root. The statistics file and
// the ontology are left untouched.
func (e *Executor) RunSource(ctx context.Context, root, name string) (SourceReport, error) {
	ws, err := e.open(root)
	if err != nil {
		return SourceReport{}, err
	}
	srcs, err := ws.sources.Sources()
	if err != nil {
		return SourceReport{}, fmt.Errorf("mapping: %w", err)
	}
	for _, src := range srcs {
		if src.Name == name {
			sr, sets := e.mapSource(ctx, ws, src)
			if e.opts.OnSource != nil {
				e.opts.OnSource(sr, models.Statistics{}.Add(sets))
			}
			return sr, sr.Err
		}
	}
	return SourceReport{}, fmt.Errorf("mapping: source %q: %w", name, apperr.ErrNotFound)
}

// mapSource scans src, resolves its candidates and writes its three mapping
// files. Scan failures keep whatever candidates were found before them.
func (e *Executor) mapSource(ctx context.Context, ws *workspace, src models.Source) (SourceReport, models.CandidateSets) {
	start := time.Now()
	sr := SourceReport{Source: src.Name, Rows: make(map[models.Category]int, len(models.Categories))}

	sets, scanErr := ws.scanner.ScanSource(ctx, src)
	if scanErr != nil {
		e.logger.Error("mapping: scan failed",
			slog.String("source", src.Name),
			slog.String("error", scanErr.Error()))
		sr.Err = scanErr
	}
	sr.Resources = len(sets.Resources)
	sr.Properties = len(sets.Properties)
	sr.Classes = len(sets.Classes)

	writer := resolve.WriterOptions{
		PlatformDomain:   e.opts.Scan.PlatformDomain,
		Namespace:        ws.scanner.Namespace(src.Name),
		IncludeNoMapping: e.opts.IncludeNoMapping,
	}
	for _, cat := range models.Categories {
		rows, err := e.writeMappings(ctx, ws, src, cat, sets.For(cat), writer)
		if err != nil {
			e.logger.Error("mapping: write mappings failed",
				slog.String("source", src.Name),
				slog.String("category", string(cat)),
				slog.String("error", err.Error()))
			sr.Err = errors.Join(sr.Err, err)
			continue
		}
		sr.Rows[cat] = rows
	}

	sr.Duration = time.Since(start)
	e.logger.Info("mapping: source done",
		slog.String("source", src.Name),
		slog.Int("resources", sr.Resources),
		slog.Int("properties", sr.Properties),
		slog.Int("classes", sr.Classes),
		slog.Bool("failed", sr.Failed()),
		slog.Duration("duration", sr.Duration))
	return sr, sets
}

func (e *Executor) writeMappings(ctx context.Context, ws *workspace, src models.Source, cat models.Category, set models.CandidateSet, opts resolve.WriterOptions) (int, error) {
	st, err := e.strategies.For(cat)
	if err != nil {
		return 0, err
	}
	results := resolve.All(ctx, st, set)

	var buf bytes.Buffer
	rows, err := resolve.WriteMappings(&buf, cat, results, opts)
	if err != nil {
		return 0, err
	}
	path := filepath.Join(src.Name, resolve.FileName(cat, e.opts.Scan.MappingFileName))
	if err := ws.sources.Write(path, buf.Bytes()); err != nil {
		return 0, fmt.Errorf("mapping: %s: %w", path, err)
	}
	return rows, nil
}

func (e *Executor) writeOntology(ws *workspace, universe models.CandidateSet) (int, error) {
	var buf bytes.Buffer
	opts := e.opts.Ontology
	if opts.Logger == nil {
		opts.Logger = e.logger
	}
	n, err := ontology.Assemble(&buf, universe, opts)
	if err != nil {
		return 0, fmt.Errorf("mapping: assemble ontology: %w", err)
	}
	if err := ws.root.Write(e.opts.OntologyPath, buf.Bytes()); err != nil {
		return 0, fmt.Errorf("mapping: write ontology: %w", err)
	}
	return n, nil
}
