// Package models defines the domain types for wikimapper.
package models

import (
	"fmt"
	"sort"
)

// Category is the kind of entity a candidate URI refers to.
type Category string

// Candidate categories.
const (
	CategoryResource Category = "resource"
	CategoryProperty Category = "property"
	CategoryClass    Category = "class"
)

// Categories lists every category in output order.
var Categories = []Category{CategoryResource, CategoryProperty, CategoryClass}

// ParseCategory converts a string into a Category.
func ParseCategory(s string) (Category, error) {
	switch Category(s) {
	case CategoryResource, CategoryProperty, CategoryClass:
		return Category(s), nil
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// Source is one wiki dump directory under the sources root.
type Source struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// CandidateSet is an unordered set of unique candidate URIs.
type CandidateSet map[string]struct{}

// Add inserts uri into the set.
func (s CandidateSet) Add(uri string) {
	s[uri] = struct{}{}
}

// Has reports whether uri is in the set.
func (s CandidateSet) Has(uri string) bool {
	_, ok := s[uri]
	return ok
}

// Sorted returns the members in lexical order.
func (s CandidateSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for uri := range s {
		out = append(out, uri)
	}
	sort.Strings(out)
	return out
}

// CandidateSets holds the per-category candidates discovered for one Source.
type CandidateSets struct {
	Resources  CandidateSet
	Properties CandidateSet
	Classes    CandidateSet
}

// NewCandidateSets returns empty, ready-to-use sets.
func NewCandidateSets() CandidateSets {
	return CandidateSets{
		Resources:  CandidateSet{},
		Properties: CandidateSet{},
		Classes:    CandidateSet{},
	}
}

// For returns the set holding candidates of category c.
func (c CandidateSets) For(cat Category) CandidateSet {
	switch cat {
	case CategoryResource:
		return c.Resources
	case CategoryProperty:
		return c.Properties
	case CategoryClass:
		return c.Classes
	}
	return nil
}

// Mapping pairs a candidate URI with its resolved equivalent (or the NoMapping marker).
type Mapping struct {
	Candidate string `json:"candidate"`
	Resolved  string `json:"resolved"`
}

// Statistics are the running totals over all processed Sources.
type Statistics struct {
	Resources  int `json:"resources"`
	Properties int `json:"properties"`
	Classes    int `json:"classes"`
	Sources    int `json:"sources"`
	Failed     int `json:"failed"`
}

// Add returns s with the sizes of sets folded in.
func (s Statistics) Add(sets CandidateSets) Statistics {
	s.Resources += len(sets.Resources)
	s.Properties += len(sets.Properties)
	s.Classes += len(sets.Classes)
	s.Sources++
	return s
}

// Text renders the statistics file content.
func (s Statistics) Text() string {
	return fmt.Sprintf("Total number of resources found: %d\n"+
		"Total number of properties found: %d\n"+
		"Total number of classes found: %d",
		s.Resources, s.Properties, s.Classes)
}
