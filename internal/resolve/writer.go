package resolve

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/starford/wikimapper/internal/models"
	"github.com/starford/wikimapper/internal/parser"
)

// Equivalence predicates used in mapping files.
const (
	PredicateSameAs             = "<http://www.w3.org/2002/07/owl#sameAs>"
	PredicateEquivalentProperty = "<http://www.w3.org/2002/07/owl#equivalentProperty>"
	PredicateEquivalentClass    = "<http://www.w3.org/2002/07/owl#equivalentClass>"
)

// Predicate returns the mapping predicate for cat.
func Predicate(cat models.Category) string {
	switch cat {
	case models.CategoryProperty:
		return PredicateEquivalentProperty
	case models.CategoryClass:
		return PredicateEquivalentClass
	default:
		return PredicateSameAs
	}
}

// FileName returns the mapping file name of cat, e.g. "class_mappings.ttl".
func FileName(cat models.Category, mappingFileName string) string {
	return string(cat) + "_" + mappingFileName
}

// WriterOptions configure WriteMappings.
type WriterOptions struct {
	PlatformDomain   string
	Namespace        string
	IncludeNoMapping bool
}

// WriteMappings writes one row per result:
//
//	<subject> <predicate> <resolved> .
//
// The subject is the candidate moved into the Source namespace. Rows are
// ordered by candidate. It returns the number of rows written.
func WriteMappings(w io.Writer, cat models.Category, results []models.Mapping, opts WriterOptions) (int, error) {
	sorted := make([]models.Mapping, len(results))
	copy(sorted, results)
	SortMappings(sorted)

	bw := bufio.NewWriter(w)
	pred := Predicate(cat)
	n := 0
	for _, m := range sorted {
		resolved := m.Resolved
		if resolved == "" {
			resolved = NoMapping
		}
		if resolved == NoMapping && !opts.IncludeNoMapping {
			continue
		}
		subject := bracket(parser.RewriteDomain(m.Candidate, opts.PlatformDomain, opts.Namespace))
		if _, err := fmt.Fprintf(bw, "%s %s %s .\n", subject, pred, bracket(resolved)); err != nil {
			return n, fmt.Errorf("resolve: write mapping: %w", err)
		}
		n++
	}
	if err := bw.Flush(); err != nil {
		return n, fmt.Errorf("resolve: flush mappings: %w", err)
	}
	return n, nil
}

func bracket(uri string) string {
	uri = strings.TrimSpace(uri)
	if strings.HasPrefix(uri, "<") && strings.HasSuffix(uri, ">") {
		return uri
	}
	return "<" + strings.Trim(uri, "<>") + ">"
}
