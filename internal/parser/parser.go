// Package parser extracts tagged URIs from dump lines and classifies them.
package parser

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/starford/wikimapper/internal/models"
)

var (
	// tagRe captures everything between angle brackets, brackets included.
	tagRe = regexp.MustCompile(`<[^<]*>`)

	templateRe = regexp.MustCompile(`(?i)^infobox[\s_\-:]*`)
	wordSepRe  = regexp.MustCompile(`[\s_\-]+`)
)

// DefaultExcludedMarkers are lower-case substrings that mark navigation and
// meta links: the wiki platform itself, its media host and category pages.
var DefaultExcludedMarkers = []string{
	"wikipedia.org",
	"commons.wikimedia.org",
	"category:",
}

// Path markers used for classification.
const (
	TemplateMarker = "/Template:"
	ResourceMarker = "/resource/"
	PropertyMarker = "/property/"
	OntologyMarker = "/ontology/"
)

// Classifier assigns tagged spans to candidate categories.
type Classifier struct {
	// Excluded holds lower-case markers; a span containing any of them is ignored.
	Excluded []string
}

// NewClassifier returns a Classifier using DefaultExcludedMarkers.
func NewClassifier() *Classifier {
	return &Classifier{Excluded: DefaultExcludedMarkers}
}

// ExtractTaggedSpans returns every <...> region of line in order of appearance.
func ExtractTaggedSpans(line string) []string {
	return tagRe.FindAllString(line, -1)
}

// IsExcluded reports whether span is a navigation/meta link.
func (c *Classifier) IsExcluded(span string) bool {
	lower := strings.ToLower(span)
	for _, m := range c.Excluded {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// Classify returns the category of span. The second result is false when
// span is excluded or matches no category.
//
// Template links win over the other shapes; a template that is not an
// infobox is never a candidate.
func (c *Classifier) Classify(span string) (models.Category, bool) {
	if c.IsExcluded(span) {
		return "", false
	}
	switch {
	case strings.Contains(span, TemplateMarker):
		if strings.Contains(strings.ToLower(span), "infobox") {
			return models.CategoryClass, true
		}
		return "", false
	case strings.Contains(span, ResourceMarker):
		return models.CategoryResource, true
	case strings.Contains(span, PropertyMarker):
		return models.CategoryProperty, true
	}
	return "", false
}

// ClassifyLine extracts the spans of line and adds each candidate to sets.
func (c *Classifier) ClassifyLine(line string, sets models.CandidateSets) {
	for _, span := range ExtractTaggedSpans(line) {
		if cat, ok := c.Classify(span); ok {
			sets.For(cat).Add(span)
		}
	}
}

// RewriteDomain replaces every literal occurrence of platformDomain in line.
func RewriteDomain(line, platformDomain, targetNamespace string) string {
	if platformDomain == "" {
		return line
	}
	return strings.ReplaceAll(line, platformDomain, targetNamespace)
}

// IsComment reports whether line is a statement comment (leading '#').
func IsComment(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "#")
}

// TemplateToClass normalizes a class candidate into a class identifier:
// "<http://x/resource/Template:Infobox_Football Club>" becomes "football_club".
func TemplateToClass(span string) string {
	s := strings.Trim(span, "<>")
	if i := strings.Index(s, TemplateMarker); i >= 0 {
		s = s[i+len(TemplateMarker):]
	}
	s = templateRe.ReplaceAllString(s, "")
	words := wordSepRe.Split(strings.TrimSpace(s), -1)
	out := words[:0]
	for _, w := range words {
		if w != "" {
			out = append(out, strings.ToLower(w))
		}
	}
	return strings.Join(out, "_")
}

// UpperCamel turns a normalized class identifier into an ontology local name:
// "football_club" becomes "FootballClub".
func UpperCamel(id string) string {
	var b strings.Builder
	for _, w := range strings.Split(id, "_") {
		if w == "" {
			continue
		}
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		b.WriteString(string(r))
	}
	return b.String()
}
