// Package lookup answers single-URI questions (existence, classification,
// resolution) for the HTTP API and the MCP server.
package lookup

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/starford/wikimapper/internal/apperr"
	"github.com/starford/wikimapper/internal/models"
	"github.com/starford/wikimapper/internal/oracle"
	"github.com/starford/wikimapper/internal/parser"
	"github.com/starford/wikimapper/internal/resolve"
)

// ExistsResult is the answer to an existence check.
type ExistsResult struct {
	Kind   oracle.Kind `json:"kind"`
	URI    string      `json:"uri"`
	Exists bool        `json:"exists"`
}

// ResolveResult is the answer to a resolution request.
type ResolveResult struct {
	Category  models.Category `json:"category"`
	Candidate string          `json:"candidate"`
	Resolved  string          `json:"resolved"`
	Mapped    bool            `json:"mapped"`
}

// ClassifyResult describes how a tagged URI would be treated by the scanner.
type ClassifyResult struct {
	URI       string          `json:"uri"`
	Category  models.Category `json:"category,omitempty"`
	Candidate bool            `json:"candidate"`
	Excluded  bool            `json:"excluded"`
	ClassID   string          `json:"class_id,omitempty"`
}

// StatsResult reports oracle contents and the latest mapping totals.
type StatsResult struct {
	Oracle  map[oracle.Kind]int `json:"oracle,omitempty"`
	Mapping models.Statistics   `json:"mapping"`
}

// Counter reports the number of reference entities per kind.
type Counter interface {
	Counts(ctx context.Context) (map[oracle.Kind]int, error)
}

// Service coordinates the oracle, the classifier and the resolution strategies.
type Service struct {
	oracle     oracle.Oracle
	strategies resolve.Set
	classifier *parser.Classifier
	counter    Counter

	mu     sync.RWMutex
	totals models.Statistics
}

// NewService creates a lookup service. counter may be nil.
func NewService(o oracle.Oracle, strategies resolve.Set, classifier *parser.Classifier, counter Counter) *Service {
	if classifier == nil {
		classifier = parser.NewClassifier()
	}
	return &Service{oracle: o, strategies: strategies, classifier: classifier, counter: counter}
}

// Exists checks uri against the oracle under the given kind.
func (s *Service) Exists(ctx context.Context, kind, uri string) (*ExistsResult, error) {
	k, err := oracle.ParseKind(kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", apperr.ErrInvalidKind, kind)
	}
	uri = oracle.Normalize(uri)
	if uri == "" {
		return nil, fmt.Errorf("%w: uri is required", apperr.ErrInvalidInput)
	}
	ok, err := oracle.Exists(ctx, s.oracle, k, uri)
	if err != nil {
		return nil, err
	}
	return &ExistsResult{Kind: k, URI: uri, Exists: ok}, nil
}

// Resolve runs the strategy of category on uri. Bare URIs are bracketed the
// way the scanner sees them.
func (s *Service) Resolve(ctx context.Context, category, uri string) (*ResolveResult, error) {
	cat, err := models.ParseCategory(category)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", apperr.ErrInvalidCategory, category)
	}
	span := tagged(uri)
	if span == "" {
		return nil, fmt.Errorf("%w: uri is required", apperr.ErrInvalidInput)
	}
	st, err := s.strategies.For(cat)
	if err != nil {
		return nil, err
	}
	resolved := st.Resolve(ctx, span)
	return &ResolveResult{
		Category:  cat,
		Candidate: span,
		Resolved:  resolved,
		Mapped:    resolved != resolve.NoMapping,
	}, nil
}

// Classify reports the category the scanner would assign to uri.
func (s *Service) Classify(uri string) (*ClassifyResult, error) {
	span := tagged(uri)
	if span == "" {
		return nil, fmt.Errorf("%w: uri is required", apperr.ErrInvalidInput)
	}
	res := &ClassifyResult{URI: span, Excluded: s.classifier.IsExcluded(span)}
	if cat, ok := s.classifier.Classify(span); ok {
		res.Category = cat
		res.Candidate = true
		if cat == models.CategoryClass {
			res.ClassID = parser.TemplateToClass(span)
		}
	}
	return res, nil
}

// Observe records the latest mapping totals.
func (s *Service) Observe(totals models.Statistics) {
	s.mu.Lock()
	s.totals = totals
	s.mu.Unlock()
}

// Stats returns oracle counts (when available) and the latest mapping totals.
func (s *Service) Stats(ctx context.Context) (*StatsResult, error) {
	s.mu.RLock()
	res := &StatsResult{Mapping: s.totals}
	s.mu.RUnlock()

	if s.counter != nil {
		counts, err := s.counter.Counts(ctx)
		if err != nil {
			return nil, err
		}
		res.Oracle = counts
	}
	return res, nil
}

func tagged(uri string) string {
	uri = strings.TrimSpace(uri)
	if uri == "" || uri == "<>" {
		return ""
	}
	if strings.HasPrefix(uri, "<") && strings.HasSuffix(uri, ">") {
		return uri
	}
	return "<" + strings.Trim(uri, "<>") + ">"
}
