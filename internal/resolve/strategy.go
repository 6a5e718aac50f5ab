// Package resolve maps candidate URIs to equivalent entities of the reference
// knowledge base, one strategy per candidate category.
package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/starford/wikimapper/internal/models"
	"github.com/starford/wikimapper/internal/oracle"
	"github.com/starford/wikimapper/internal/parser"
)

// NoMapping is the marker written when no equivalent entity was found.
const NoMapping = "<null>"

// Strategy resolves candidates of a single category. Resolve is total: any
// input, malformed or not, yields either a URI or NoMapping.
type Strategy interface {
	Category() models.Category
	Resolve(ctx context.Context, candidate string) string
}

// Set holds one Strategy per category.
type Set map[models.Category]Strategy

// NewSet builds the default strategies on top of o.
func NewSet(o oracle.Oracle, ontologyBase string, logger *slog.Logger) Set {
	return Set{
		models.CategoryResource: &ResourceStrategy{Oracle: o, Logger: logger},
		models.CategoryProperty: &PropertyStrategy{Oracle: o, Logger: logger},
		models.CategoryClass:    &ClassStrategy{Oracle: o, OntologyBase: ontologyBase, Logger: logger},
	}
}

// For returns the strategy registered for cat.
func (s Set) For(cat models.Category) (Strategy, error) {
	st, ok := s[cat]
	if !ok {
		return nil, fmt.Errorf("resolve: no strategy for category %q", cat)
	}
	return st, nil
}

// All resolves every member of set with st. Results are ordered by candidate.
func All(ctx context.Context, st Strategy, set models.CandidateSet) []models.Mapping {
	out := make([]models.Mapping, 0, len(set))
	for _, c := range set.Sorted() {
		out = append(out, models.Mapping{Candidate: c, Resolved: st.Resolve(ctx, c)})
	}
	return out
}

// PropertyStrategy prefers an ontology term over a raw property.
type PropertyStrategy struct {
	Oracle oracle.Oracle
	Logger *slog.Logger
}

func (s *PropertyStrategy) Category() models.Category { return models.CategoryProperty }

// Resolve tries candidate with every "/property/" turned into "/ontology/"
// first, then the lower-cased property itself.
func (s *PropertyStrategy) Resolve(ctx context.Context, candidate string) string {
	if candidate == "" {
		return NoMapping
	}
	onto := strings.ReplaceAll(candidate, parser.PropertyMarker, parser.OntologyMarker)
	if ask(ctx, s.Logger, s.Oracle.OntologyClassExists, onto) {
		return onto
	}
	lower := strings.ToLower(candidate)
	if ask(ctx, s.Logger, s.Oracle.PropertyExists, lower) {
		return lower
	}
	return NoMapping
}

// ResourceStrategy accepts the resource as-is or with its local name capitalized.
type ResourceStrategy struct {
	Oracle oracle.Oracle
	Logger *slog.Logger
}

func (s *ResourceStrategy) Category() models.Category { return models.CategoryResource }

func (s *ResourceStrategy) Resolve(ctx context.Context, candidate string) string {
	if candidate == "" {
		return NoMapping
	}
	if ask(ctx, s.Logger, s.Oracle.ResourceExists, candidate) {
		return candidate
	}
	if capped := capitalizeLocalName(candidate); capped != candidate {
		if ask(ctx, s.Logger, s.Oracle.ResourceExists, capped) {
			return capped
		}
	}
	return NoMapping
}

// ClassStrategy maps an infobox template to an ontology class.
type ClassStrategy struct {
	Oracle       oracle.Oracle
	OntologyBase string
	Logger       *slog.Logger
}

func (s *ClassStrategy) Category() models.Category { return models.CategoryClass }

// Resolve looks up the full class name first ("football_club" as
// FootballClub), then its head word ("Club").
func (s *ClassStrategy) Resolve(ctx context.Context, candidate string) string {
	id := parser.TemplateToClass(candidate)
	if id == "" {
		return NoMapping
	}
	full := s.classURI(candidate, parser.UpperCamel(id))
	if ask(ctx, s.Logger, s.Oracle.OntologyClassExists, full) {
		return full
	}
	words := strings.Split(id, "_")
	if len(words) > 1 {
		head := s.classURI(candidate, parser.UpperCamel(words[len(words)-1]))
		if ask(ctx, s.Logger, s.Oracle.OntologyClassExists, head) {
			return head
		}
	}
	return NoMapping
}

func (s *ClassStrategy) classURI(candidate, local string) string {
	uri := strings.TrimRight(s.OntologyBase, "/") + "/" + local
	if strings.HasPrefix(candidate, "<") {
		return "<" + uri + ">"
	}
	return uri
}

// ask runs one oracle check. A failed lookup counts as "not found".
func ask(ctx context.Context, logger *slog.Logger, fn func(context.Context, string) (bool, error), uri string) bool {
	ok, err := fn(ctx, uri)
	if err != nil {
		if logger != nil {
			logger.Debug("resolve: oracle lookup failed",
				slog.String("uri", uri),
				slog.String("error", err.Error()))
		}
		return false
	}
	return ok
}

// capitalizeLocalName upper-cases the first letter after the last '/'.
func capitalizeLocalName(uri string) string {
	i := strings.LastIndex(uri, "/")
	if i < 0 || i+1 >= len(uri) {
		return uri
	}
	r, size := utf8.DecodeRuneInString(uri[i+1:])
	if r == utf8.RuneError || !unicode.IsLower(r) {
		return uri
	}
	return uri[:i+1] + string(unicode.ToUpper(r)) + uri[i+1+size:]
}

// SortMappings orders results by candidate.
func SortMappings(results []models.Mapping) {
	sort.Slice(results, func(i, j int) bool { return results[i].Candidate < results[j].Candidate })
}
