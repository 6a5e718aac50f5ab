// Package scan rewrites a Source's dump files to its target namespace and
// collects the candidate URIs they reference.
package scan

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/starford/wikimapper/internal/checksum"
	"github.com/starford/wikimapper/internal/models"
	"github.com/starford/wikimapper/internal/parser"
	"github.com/starford/wikimapper/internal/storage"
)

const (
	dumpSuffix       = ".ttl"
	evaluationSuffix = "_evaluation.ttl"
)

// Options control how dump files are rewritten and filtered.
type Options struct {
	// PlatformDomain is replaced in every line, e.g. "dbpedia.org".
	PlatformDomain string
	// TargetNamespace is the base namespace; a Source's namespace is
	// TargetNamespace + "/" + source name.
	TargetNamespace string
	// MappingFileName marks mapping outputs that must never be scanned.
	MappingFileName string
	// SkipCommentLines stops classification (not rewriting) of '#' lines.
	SkipCommentLines bool
}

// Scanner processes the dump files of one Source at a time.
type Scanner struct {
	store      storage.Provider
	classifier *parser.Classifier
	opts       Options
	logger     *slog.Logger
}

// New creates a Scanner.
func New(store storage.Provider, classifier *parser.Classifier, opts Options, logger *slog.Logger) *Scanner {
	if classifier == nil {
		classifier = parser.NewClassifier()
	}
	return &Scanner{store: store, classifier: classifier, opts: opts, logger: logger}
}

// Namespace returns the target namespace of the named Source.
func (s *Scanner) Namespace(source string) string {
	return s.opts.TargetNamespace + "/" + source
}

// Relevant reports whether a file in a Source directory feeds candidate extraction.
func (s *Scanner) Relevant(name string) bool {
	if !strings.HasSuffix(name, dumpSuffix) || strings.HasSuffix(name, evaluationSuffix) {
		return false
	}
	if s.opts.MappingFileName != "" && strings.HasSuffix(name, s.opts.MappingFileName) {
		return false
	}
	return true
}

// ScanSource rewrites every relevant dump file of src in place and returns the
// candidates found in them. On failure the remaining files are skipped and the
// sets collected so far are returned together with the error.
func (s *Scanner) ScanSource(ctx context.Context, src models.Source) (models.CandidateSets, error) {
	sets := models.NewCandidateSets()

	files, err := s.store.Files(src.Name)
	if err != nil {
		return sets, err
	}

	ns := s.Namespace(src.Name)
	for _, name := range files {
		if !s.Relevant(name) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return sets, err
		}
		path := filepath.Join(src.Name, name)
		rewritten, err := s.scanFile(path, ns, sets)
		if err != nil {
			return sets, fmt.Errorf("scan: %s: %w", path, err)
		}
		s.logger.Debug("scan: file done",
			slog.String("source", src.Name),
			slog.String("path", path),
			slog.Bool("rewritten", rewritten))
	}
	return sets, nil
}

// scanFile makes a single pass over path: each line is rewritten into the new
// content and the original line is classified. The file is replaced only when
// the content changed.
func (s *Scanner) scanFile(path, ns string, sets models.CandidateSets) (bool, error) {
	content, unchanged, err := s.rebuild(path, ns, sets)
	if err != nil {
		return false, err
	}
	if unchanged {
		return false, nil
	}
	if err := s.store.Write(path, content); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Scanner) rebuild(path, ns string, sets models.CandidateSets) ([]byte, bool, error) {
	rc, err := s.store.Open(path)
	if err != nil {
		return nil, false, err
	}
	defer rc.Close()

	src := checksum.NewReader(rc)
	br := bufio.NewReaderSize(src, 64<<10)

	var buf bytes.Buffer
	for {
		line, readErr := br.ReadString('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return nil, false, readErr
		}
		if line != "" {
			text := strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")
			// The line keeps its own terminator: "\r\n", "\n" or none at EOF.
			buf.WriteString(parser.RewriteDomain(text, s.opts.PlatformDomain, ns))
			buf.WriteString(line[len(text):])

			if !s.opts.SkipCommentLines || !parser.IsComment(text) {
				s.classifier.ClassifyLine(text, sets)
			}
		}
		if readErr != nil {
			break
		}
	}

	return buf.Bytes(), checksum.Sum(buf.Bytes()) == src.Sum(), nil
}
