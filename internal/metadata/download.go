// Package metadata downloads per-wiki listing data and derives statistics from it.
package metadata

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/sync/errgroup"
)

// Separator is the field delimiter of listing CSV files.
const Separator = ';'

// Header is the first row of every listing file. Articles and pages are
// columns 11 and 12.
var Header = []string{
	"id", "url", "title", "language", "hub", "topic", "domain",
	"founding_date", "wam_score", "description", "headline", "articles", "pages",
}

const (
	colURL      = 1
	colArticles = 11
	colPages    = 12
)

// Range is a half-open interval [From, To) of wiki ids.
type Range struct {
	From int `yaml:"from"`
	To   int `yaml:"to"`
}

// DefaultRanges splits ids 1..2,000,000 into four disjoint worker ranges.
var DefaultRanges = []Range{
	{From: 1, To: 500000},
	{From: 500000, To: 1000000},
	{From: 1000000, To: 1500000},
	{From: 1500000, To: 2000000},
}

// Wiki is one listing row.
type Wiki struct {
	ID           int
	URL          string
	Title        string
	Language     string
	Hub          string
	Topic        string
	Domain       string
	FoundingDate string
	WAMScore     float64
	Description  string
	Headline     string
	Articles     int
	Pages        int
}

func (w Wiki) record() []string {
	return []string{
		strconv.Itoa(w.ID), w.URL, w.Title, w.Language, w.Hub, w.Topic, w.Domain,
		w.FoundingDate, strconv.FormatFloat(w.WAMScore, 'f', -1, 64), w.Description, w.Headline,
		strconv.Itoa(w.Articles), strconv.Itoa(w.Pages),
	}
}

// Fetcher returns the wikis among ids that exist. Missing ids are skipped.
type Fetcher interface {
	Fetch(ctx context.Context, ids []int) ([]Wiki, error)
}

// DownloadOptions configure Download.
type DownloadOptions struct {
	// BatchSize is the number of ids requested per Fetch call.
	BatchSize int
	// MergedName is the file name of the merged listing inside dir.
	MergedName string
}

// PartName returns the part file name of the i-th range (0-based).
func PartName(i int, r Range) string {
	return fmt.Sprintf("p%d_wikis_%d_to_%d.csv", i+1, r.From, r.To)
}

// Download runs one worker per range, each writing its own part file in dir,
// waits for all of them and merges the parts into a single listing. The
// merged file path is returned. Any worker failure cancels the others.
func Download(ctx context.Context, f Fetcher, ranges []Range, dir string, opts DownloadOptions, logger *slog.Logger) (string, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 250
	}
	if opts.MergedName == "" {
		opts.MergedName = "wikis_all.csv"
	}
	for i, r := range ranges {
		if r.To <= r.From {
			return "", fmt.Errorf("metadata: range %d is empty: [%d, %d)", i, r.From, r.To)
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("metadata: mkdir: %w", err)
	}

	parts := make([]string, len(ranges))
	g, gctx := errgroup.WithContext(ctx)
	for i, r := range ranges {
		parts[i] = filepath.Join(dir, PartName(i, r))
		g.Go(func() error {
			n, err := downloadRange(gctx, f, r, parts[i], opts.BatchSize)
			if err != nil {
				return fmt.Errorf("metadata: range [%d, %d): %w", r.From, r.To, err)
			}
			logger.Info("metadata: range done",
				slog.String("file", parts[i]),
				slog.Int("wikis", n))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	logger.Info("metadata: download finished, merging", slog.Int("parts", len(parts)))
	merged := filepath.Join(dir, opts.MergedName)
	if err := MergeFiles(merged, parts...); err != nil {
		return "", err
	}
	return merged, nil
}

func downloadRange(ctx context.Context, f Fetcher, r Range, path string, batch int) (int, error) {
	fh, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer fh.Close()

	w := csv.NewWriter(fh)
	w.Comma = Separator
	if err := w.Write(Header); err != nil {
		return 0, err
	}

	n := 0
	ids := make([]int, 0, batch)
	for start := r.From; start < r.To; start += batch {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		ids = ids[:0]
		for id := start; id < start+batch && id < r.To; id++ {
			ids = append(ids, id)
		}
		wikis, err := f.Fetch(ctx, ids)
		if err != nil {
			return n, err
		}
		for _, wiki := range wikis {
			if err := w.Write(wiki.record()); err != nil {
				return n, err
			}
			n++
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return n, err
	}
	return n, fh.Close()
}

// MergeFiles concatenates the listing files into dst. The header of the first
// file is kept; the first line of every other file is dropped.
func MergeFiles(dst string, paths ...string) error {
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("metadata: create %s: %w", dst, err)
	}
	defer out.Close()

	bw := bufio.NewWriter(out)
	for i, p := range paths {
		if err := appendFile(bw, p, i > 0); err != nil {
			return fmt.Errorf("metadata: merge %s: %w", p, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("metadata: flush %s: %w", dst, err)
	}
	return out.Close()
}

func appendFile(w *bufio.Writer, path string, skipHeader bool) error {
	fh, err := os.Open(path)
	if err != nil {
		return err
	}
	defer fh.Close()

	br := bufio.NewReader(fh)
	first := true
	for {
		line, err := br.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		if line != "" && !(first && skipHeader) {
			if _, werr := w.WriteString(line); werr != nil {
				return werr
			}
			if line[len(line)-1] != '\n' {
				if werr := w.WriteByte('\n'); werr != nil {
					return werr
				}
			}
		}
		first = false
		if err != nil {
			return nil
		}
	}
}
