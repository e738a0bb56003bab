// Package plugin defines the three extension roles of the inference
// pipeline and the registry that holds them. Plugins are pure: a
// registry built once is safe for concurrent use by scoring workers.
package plugin

import (
	"github.com/banshee-data/framelens/internal/infer/corpus"
	"github.com/banshee-data/framelens/internal/infer/hypothesis"
	"github.com/banshee-data/framelens/internal/infer/score"
	"github.com/banshee-data/framelens/internal/infer/segment"
)

// Generator proposes candidate hypotheses for a corpus. Propose must be
// pure and deterministic; pruning bad candidates is the scorer's job.
type Generator interface {
	Name() string
	Propose(c *corpus.Corpus) []hypothesis.Hypothesis
}

// Parser decomposes every PDU of a corpus under one hypothesis. The
// first registered parser whose Applicable returns true wins.
type Parser interface {
	Name() string
	Applicable(h hypothesis.Hypothesis) bool
	ParseCorpus(c *corpus.Corpus, h hypothesis.Hypothesis) *segment.ParsedCorpus
}

// Scorer assigns a description-length score to a parsed hypothesis.
// Only the first registered scorer is consulted.
type Scorer interface {
	Name() string
	Score(c *corpus.Corpus, parsed *segment.ParsedCorpus, h hypothesis.Hypothesis) score.Score
}

// Registry holds the three plugin collections in registration order.
// Iteration order is fixed, which fixes tie-breaks among hypotheses of
// equal score.
type Registry struct {
	generators []Generator
	parsers    []Parser
	scorers    []Scorer
}

func NewRegistry() *Registry { return &Registry{} }

func (r *Registry) RegisterGenerator(g Generator) { r.generators = append(r.generators, g) }
func (r *Registry) RegisterParser(p Parser)       { r.parsers = append(r.parsers, p) }
func (r *Registry) RegisterScorer(s Scorer)       { r.scorers = append(r.scorers, s) }

func (r *Registry) Generators() []Generator { return r.generators }
func (r *Registry) Parsers() []Parser       { return r.parsers }
func (r *Registry) Scorers() []Scorer       { return r.scorers }

// ParserFor returns the first applicable parser for h, or nil.
func (r *Registry) ParserFor(h hypothesis.Hypothesis) Parser {
	for _, p := range r.parsers {
		if p.Applicable(h) {
			return p
		}
	}
	return nil
}
