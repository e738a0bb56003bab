// Package score holds the MDL score breakdown shared by scorers and the
// engine.
package score

import (
	"encoding/json"
	"math"
)

// bits is a float64 that serializes non-finite values as null, so
// rejected (infinite) scores survive JSON encoding.
type bits float64

func (b bits) MarshalJSON() ([]byte, error) {
	f := float64(b)
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return []byte("null"), nil
	}
	return json.Marshal(f)
}

// Breakdown itemizes an MDL score. All values are in bits except the
// parse success ratio.
type Breakdown struct {
	MdlModelBits      float64
	MdlDataBits       float64
	ParseSuccessRatio float64
	AlignmentGainBits float64
	EntropyDropBits   float64
	PenaltiesBits     float64
}

type breakdownJSON struct {
	MdlModelBits      bits    `json:"mdl_model_bits"`
	MdlDataBits       bits    `json:"mdl_data_bits"`
	ParseSuccessRatio float64 `json:"parse_success_ratio"`
	AlignmentGainBits bits    `json:"alignment_gain_bits"`
	EntropyDropBits   bits    `json:"entropy_drop_bits"`
	PenaltiesBits     bits    `json:"penalties_bits"`
}

func (b Breakdown) MarshalJSON() ([]byte, error) {
	return json.Marshal(breakdownJSON{
		MdlModelBits:      bits(b.MdlModelBits),
		MdlDataBits:       bits(b.MdlDataBits),
		ParseSuccessRatio: b.ParseSuccessRatio,
		AlignmentGainBits: bits(b.AlignmentGainBits),
		EntropyDropBits:   bits(b.EntropyDropBits),
		PenaltiesBits:     bits(b.PenaltiesBits),
	})
}

// TotalBits combines the terms: model and data cost minus the alignment
// and entropy credits, plus penalties. Lower is better.
func (b Breakdown) TotalBits() float64 {
	return b.MdlModelBits + b.MdlDataBits - b.AlignmentGainBits - b.EntropyDropBits + b.PenaltiesBits
}

// Score caches the combined total alongside its breakdown.
type Score struct {
	Breakdown Breakdown
	TotalBits float64
}

type scoreJSON struct {
	Breakdown Breakdown `json:"breakdown"`
	TotalBits bits      `json:"total_bits"`
}

func (s Score) MarshalJSON() ([]byte, error) {
	return json.Marshal(scoreJSON{Breakdown: s.Breakdown, TotalBits: bits(s.TotalBits)})
}

// New derives the total from the breakdown.
func New(b Breakdown) Score {
	return Score{Breakdown: b, TotalBits: b.TotalBits()}
}

// Rejected is the score of a hypothesis eliminated by a hard
// constraint: model, data and penalty bits infinite (the alignment and
// entropy-drop credits stay zero, so the total is +Inf rather than NaN),
// with the observed parse ratio preserved for diagnostics.
func Rejected(psr float64) Score {
	return New(Breakdown{
		MdlModelBits:      math.Inf(1),
		MdlDataBits:       math.Inf(1),
		ParseSuccessRatio: psr,
		PenaltiesBits:     math.Inf(1),
	})
}

// Less orders scores ascending by total bits. NaN compares as not less,
// so a stable sort leaves NaN scores in their original positions.
func Less(a, b Score) bool {
	return a.TotalBits < b.TotalBits
}
