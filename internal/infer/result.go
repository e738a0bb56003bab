package infer

import (
	"encoding/json"

	"github.com/banshee-data/framelens/internal/infer/hypothesis"
	"github.com/banshee-data/framelens/internal/infer/score"
)

// The serialized forms carry summaries only: parsed segments and PDU
// bytes stay in memory for interactive inspection and are deliberately
// not part of the JSON output.

type hypothesisResultJSON struct {
	Hypothesis     hypothesis.Envelope `json:"hypothesis"`
	Score          score.Score         `json:"score"`
	ParsedPduCount int                 `json:"parsed_pdu_count"`
}

// MarshalJSON summarizes the candidate without its parsed segments.
func (r HypothesisResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(hypothesisResultJSON{
		Hypothesis:     hypothesis.Describe(r.Hypothesis),
		Score:          r.Score,
		ParsedPduCount: len(r.Parsed.Pdus),
	})
}

type layerJSON struct {
	Hypothesis         hypothesis.Envelope `json:"hypothesis"`
	Score              score.Score         `json:"score"`
	ParsedPduCount     int                 `json:"parsed_pdu_count"`
	HasSduCorpus       bool                `json:"has_sdu_corpus"`
	AllHypothesesCount int                 `json:"all_hypotheses_count"`
}

// MarshalJSON summarizes the layer: hypothesis, score, counts.
func (l Layer) MarshalJSON() ([]byte, error) {
	return json.Marshal(layerJSON{
		Hypothesis:         hypothesis.Describe(l.Hypothesis),
		Score:              l.Score,
		ParsedPduCount:     len(l.Parsed.Pdus),
		HasSduCorpus:       l.SduCorpus != nil,
		AllHypothesesCount: len(l.AllHypotheses),
	})
}

type inferenceResultJSON struct {
	Layers           []Layer `json:"layers"`
	CorpusPduCount   int     `json:"corpus_pdu_count"`
	CorpusTotalBytes int     `json:"corpus_total_bytes"`
}

// MarshalJSON emits the layer stack plus corpus counters.
func (r *InferenceResult) MarshalJSON() ([]byte, error) {
	layers := r.Layers
	if layers == nil {
		layers = []Layer{}
	}
	return json.Marshal(inferenceResultJSON{
		Layers:           layers,
		CorpusPduCount:   r.Corpus.Len(),
		CorpusTotalBytes: r.Corpus.TotalBytes(),
	})
}
