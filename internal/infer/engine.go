// Package infer owns the recursive inference driver: it generates
// candidate framings for a corpus, parses and scores them in parallel,
// adopts the best one as a layer, and recurses into the payload bytes
// that layer exposes until nothing compresses further.
package infer

import (
	"runtime"
	"sort"
	"sync"

	"github.com/banshee-data/framelens/internal/infer/corpus"
	"github.com/banshee-data/framelens/internal/infer/hypothesis"
	"github.com/banshee-data/framelens/internal/infer/measures"
	"github.com/banshee-data/framelens/internal/infer/plugin"
	"github.com/banshee-data/framelens/internal/infer/score"
	"github.com/banshee-data/framelens/internal/infer/segment"
	"github.com/banshee-data/framelens/internal/monitoring"
)

// Engine defaults. MinGainEpsilon is the number of bits a layer must
// save over the compressed raw baseline to be adopted; MinSduSize is
// both the recursion floor for mean PDU length and the minimum size of
// an SDU worth carrying into the next depth.
const (
	DefaultMaxDepth       = 6
	DefaultTopK           = 10
	DefaultMinGainEpsilon = 100.0
	DefaultMinSduSize     = 4
)

// Engine drives recursive framing inference. Configure the exported
// fields before calling Infer; the engine itself holds no state across
// calls.
type Engine struct {
	MaxDepth       int
	TopK           int
	MinGainEpsilon float64
	MinSduSize     int
}

// NewEngine returns an engine with the default limits.
func NewEngine() *Engine {
	return &Engine{
		MaxDepth:       DefaultMaxDepth,
		TopK:           DefaultTopK,
		MinGainEpsilon: DefaultMinGainEpsilon,
		MinSduSize:     DefaultMinSduSize,
	}
}

// HypothesisResult is one scored candidate.
type HypothesisResult struct {
	Hypothesis hypothesis.Hypothesis
	Score      score.Score
	Parsed     *segment.ParsedCorpus
}

// Layer is one adopted level of the structural hypothesis stack.
// Immutable after the engine emits it.
type Layer struct {
	Hypothesis hypothesis.Hypothesis
	Score      score.Score
	Parsed     *segment.ParsedCorpus
	// SduCorpus is the next-depth corpus built from this layer's SDUs,
	// nil when the layer exposed none of useful size.
	SduCorpus *corpus.Corpus
	// AllHypotheses holds the top-K candidates for this depth, best
	// first, including the adopted one.
	AllHypotheses []HypothesisResult
}

// InferenceResult is the full stack of adopted layers, outermost first,
// plus the original corpus.
type InferenceResult struct {
	Layers []Layer
	Corpus *corpus.Corpus
}

// Infer runs the recursive loop over c using the plugins in registry.
// It never fails: an input no hypothesis explains yields zero layers.
func (e *Engine) Infer(c *corpus.Corpus, registry *plugin.Registry) *InferenceResult {
	layers := []Layer{}
	current := c

	for depth := 0; depth < e.MaxDepth; depth++ {
		if current.IsEmpty() || current.MeanPduLen() < float64(e.MinSduSize) {
			break
		}

		var candidates []hypothesis.Hypothesis
		for _, g := range registry.Generators() {
			candidates = append(candidates, g.Propose(current)...)
		}
		if len(candidates) == 0 {
			break
		}

		scored := e.scoreCandidates(current, registry, candidates)
		if len(scored) == 0 {
			break
		}

		// Stable ascending sort; NaN totals compare as equal so the
		// generation order decides.
		sort.SliceStable(scored, func(i, j int) bool {
			return score.Less(scored[i].Score, scored[j].Score)
		})

		top := scored
		if len(top) > e.TopK {
			top = top[:e.TopK]
		}
		best := top[0]

		rawScore := e.RawScore(current)
		gain := rawScore.TotalBits - best.Score.TotalBits
		monitoring.Logf("depth %d: %d candidates, best %s (total=%.1f bits, psr=%.2f, gain=%.1f)",
			depth, len(candidates), hypothesis.Summary(best.Hypothesis),
			best.Score.TotalBits, best.Score.Breakdown.ParseSuccessRatio, gain)
		if gain < e.MinGainEpsilon {
			break
		}

		sduCorpus := e.extractSduCorpus(current, best.Parsed)

		layers = append(layers, Layer{
			Hypothesis:    best.Hypothesis,
			Score:         best.Score,
			Parsed:        best.Parsed,
			SduCorpus:     sduCorpus,
			AllHypotheses: top,
		})

		if sduCorpus == nil {
			break
		}
		current = sduCorpus
	}

	return &InferenceResult{Layers: layers, Corpus: c}
}

// scoreCandidates parses and scores every candidate, fanning out across
// workers. The registry and corpus are read-only, each candidate's
// buffers are worker-local, and results land in a slot per candidate,
// so evaluation order cannot affect the outcome.
func (e *Engine) scoreCandidates(c *corpus.Corpus, registry *plugin.Registry, candidates []hypothesis.Hypothesis) []HypothesisResult {
	scorers := registry.Scorers()
	if len(scorers) == 0 {
		return nil
	}
	scorer := scorers[0]

	results := make([]*HypothesisResult, len(candidates))
	indexes := make(chan int)
	var wg sync.WaitGroup

	workers := runtime.NumCPU()
	if workers > len(candidates) {
		workers = len(candidates)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				h := candidates[i]
				parser := registry.ParserFor(h)
				if parser == nil {
					continue
				}
				parsed := parser.ParseCorpus(c, h)
				results[i] = &HypothesisResult{
					Hypothesis: h,
					Score:      scorer.Score(c, parsed, h),
					Parsed:     parsed,
				}
			}
		}()
	}
	for i := range candidates {
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	out := make([]HypothesisResult, 0, len(candidates))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}

// RawScore is the do-nothing baseline a layer must beat: no model, the
// whole corpus deflated as-is, a perfect parse and no penalties.
// Exported so the gain invariant is checkable from outside.
func (e *Engine) RawScore(c *corpus.Corpus) score.Score {
	return score.New(score.Breakdown{
		MdlModelBits:      0,
		MdlDataBits:       measures.CompressedBits(c.Concat()),
		ParseSuccessRatio: 1,
	})
}

// extractSduCorpus collects every SDU segment of at least MinSduSize
// bytes into a new corpus. The new PduRefs are sub-views over the same
// payload buffers; no bytes are copied.
func (e *Engine) extractSduCorpus(c *corpus.Corpus, parsed *segment.ParsedCorpus) *corpus.Corpus {
	var items []corpus.PduRef

	n := len(c.Items)
	if len(parsed.Pdus) < n {
		n = len(parsed.Pdus)
	}
	for i := 0; i < n; i++ {
		pdu := c.Items[i]
		for _, seg := range parsed.Pdus[i].Segments {
			if seg.Kind == segment.Sdu && seg.Len() >= e.MinSduSize {
				items = append(items, pdu.Slice(seg.Start, seg.End))
			}
		}
	}
	if len(items) == 0 {
		return nil
	}
	return corpus.New(items, c.Meta.Source+"_sdu", c.Meta.FlowID)
}
