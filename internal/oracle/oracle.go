// Package oracle answers whether an entity exists in the reference knowledge base.
package oracle

import (
	"context"
	"fmt"
	"strings"
)

// Kind is the kind of reference entity.
type Kind string

// Reference entity kinds.
const (
	KindOntology Kind = "ontology"
	KindProperty Kind = "property"
	KindResource Kind = "resource"
)

// Kinds lists every entity kind.
var Kinds = []Kind{KindOntology, KindProperty, KindResource}

// ParseKind converts a string into a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindOntology, KindProperty, KindResource:
		return Kind(s), nil
	}
	return "", fmt.Errorf("oracle: unknown kind %q", s)
}

// KindOf classifies a reference URI by its path shape.
func KindOf(uri string) (Kind, bool) {
	switch {
	case strings.Contains(uri, "/ontology/"):
		return KindOntology, true
	case strings.Contains(uri, "/property/"):
		return KindProperty, true
	case strings.Contains(uri, "/resource/"):
		return KindResource, true
	}
	return "", false
}

// Oracle is the existence-check capability consumed by resolution strategies.
// Lookups are exact and case-sensitive.
type Oracle interface {
	OntologyClassExists(ctx context.Context, uri string) (bool, error)
	PropertyExists(ctx context.Context, uri string) (bool, error)
	ResourceExists(ctx context.Context, uri string) (bool, error)
}

// Exists dispatches a lookup of the given kind to o.
func Exists(ctx context.Context, o Oracle, kind Kind, uri string) (bool, error) {
	switch kind {
	case KindOntology:
		return o.OntologyClassExists(ctx, uri)
	case KindProperty:
		return o.PropertyExists(ctx, uri)
	case KindResource:
		return o.ResourceExists(ctx, uri)
	}
	return false, fmt.Errorf("oracle: unknown kind %q", kind)
}

// Normalize strips surrounding whitespace and angle brackets so that
// "<http://x/a>" and "http://x/a" denote the same entity.
func Normalize(uri string) string {
	return strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(uri), "<"), ">")
}
