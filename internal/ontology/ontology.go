// Package ontology turns the global class universe into an OWL class file.
package ontology

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/knakk/rdf"

	"github.com/starford/wikimapper/internal/models"
	"github.com/starford/wikimapper/internal/parser"
)

const (
	rdfType   = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"
	rdfsLabel = "http://www.w3.org/2000/01/rdf-schema#label"
	owlClass  = "http://www.w3.org/2002/07/owl#Class"
)

// Options configure Assemble.
type Options struct {
	// Base is the namespace new classes are minted in.
	Base string
	// NTriples selects N-Triples output instead of Turtle.
	NTriples bool
	// LabelLang tags rdfs:label literals; empty means plain literals.
	LabelLang string
	// Logger reports classes left out of the output. May be nil.
	Logger *slog.Logger
}

// Universe adds the normalized identifiers of class candidates to u.
// Candidates that normalize to nothing are dropped.
func Universe(u models.CandidateSet, candidates models.CandidateSet) {
	for c := range candidates {
		if id := parser.TemplateToClass(c); id != "" {
			u.Add(id)
		}
	}
}

// Assemble writes one owl:Class with an rdfs:label per identifier in classes,
// in sorted order, and returns the number of classes written. Identifiers
// that do not form a valid IRI (template names may carry '|', '{' and the
// like) are skipped with a warning.
func Assemble(w io.Writer, classes models.CandidateSet, opts Options) (int, error) {
	format := rdf.Turtle
	if opts.NTriples {
		format = rdf.NTriples
	}
	base := strings.TrimRight(opts.Base, "/") + "/"

	typ, err := rdf.NewIRI(rdfType)
	if err != nil {
		return 0, err
	}
	label, err := rdf.NewIRI(rdfsLabel)
	if err != nil {
		return 0, err
	}
	class, err := rdf.NewIRI(owlClass)
	if err != nil {
		return 0, err
	}

	enc := rdf.NewTripleEncoder(w, format)
	n := 0
	for _, id := range classes.Sorted() {
		local := parser.UpperCamel(id)
		if local == "" {
			continue
		}
		subj, err := rdf.NewIRI(base + local)
		if err != nil {
			skip(opts.Logger, id, err)
			continue
		}
		lit, err := newLabel(strings.ReplaceAll(id, "_", " "), opts.LabelLang)
		if err != nil {
			skip(opts.Logger, id, err)
			continue
		}
		if err := enc.Encode(rdf.Triple{Subj: subj, Pred: typ, Obj: class}); err != nil {
			return n, fmt.Errorf("ontology: encode: %w", err)
		}
		if err := enc.Encode(rdf.Triple{Subj: subj, Pred: label, Obj: lit}); err != nil {
			return n, fmt.Errorf("ontology: encode: %w", err)
		}
		n++
	}
	if err := enc.Close(); err != nil {
		return n, fmt.Errorf("ontology: flush: %w", err)
	}
	return n, nil
}

func newLabel(text, lang string) (rdf.Literal, error) {
	if lang == "" {
		return rdf.NewLiteral(text)
	}
	return rdf.NewLangLiteral(text, lang)
}

func skip(logger *slog.Logger, id string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("ontology: class skipped",
		slog.String("class", id),
		slog.String("error", err.Error()))
}
