// Package segment models the decomposition a parser produces for each
// PDU: an ordered list of byte ranges classified as control information,
// payload, field, boundary or error.
package segment

import "encoding/json"

// Kind classifies a segment.
type Kind int

const (
	// Pci marks header bytes carrying framing metadata.
	Pci Kind = iota
	// Sdu marks payload bytes delivered to the next layer.
	Sdu
	// MessageBoundary marks the separation between bundled messages.
	// Zero-width for length-prefixed bundling; covers the delimiter
	// bytes for delimiter bundling.
	MessageBoundary
	// Field marks a named framing field (length, tag, bitmap, ...).
	Field
	// Error marks a range the parser could not decode.
	Error
)

func (k Kind) String() string {
	switch k {
	case Pci:
		return "pci"
	case Sdu:
		return "sdu"
	case MessageBoundary:
		return "message_boundary"
	case Field:
		return "field"
	case Error:
		return "error"
	}
	return "unknown"
}

func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// Segment is a classified byte range [Start, End) within its parent PDU.
// Label carries the field name for Field segments and the message for
// Error segments; empty otherwise.
type Segment struct {
	Kind  Kind   `json:"kind"`
	Label string `json:"label,omitempty"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// NewSegment builds an unlabelled segment.
func NewSegment(kind Kind, start, end int) Segment {
	return Segment{Kind: kind, Start: start, End: end}
}

// NewField builds a named field segment.
func NewField(name string, start, end int) Segment {
	return Segment{Kind: Field, Label: name, Start: start, End: end}
}

// NewError builds an error segment covering the undecodable range.
func NewError(msg string, start, end int) Segment {
	return Segment{Kind: Error, Label: msg, Start: start, End: end}
}

func (s Segment) Len() int { return s.End - s.Start }

// ParsedPdu is the decomposition of one PDU: ordered segments plus any
// exception strings recorded while parsing.
type ParsedPdu struct {
	Segments   []Segment `json:"segments"`
	Exceptions []string  `json:"exceptions,omitempty"`
}

// IsSuccess reports whether parsing produced no error segments.
func (p *ParsedPdu) IsSuccess() bool {
	for _, s := range p.Segments {
		if s.Kind == Error {
			return false
		}
	}
	return true
}

// SduRanges returns the [start, end) ranges of all SDU segments.
func (p *ParsedPdu) SduRanges() [][2]int {
	var out [][2]int
	for _, s := range p.Segments {
		if s.Kind == Sdu {
			out = append(out, [2]int{s.Start, s.End})
		}
	}
	return out
}

// ParsedCorpus holds one ParsedPdu per input PDU, in input order.
type ParsedCorpus struct {
	Pdus []ParsedPdu `json:"pdus"`
}

// ParseSuccessRatio is the fraction of PDUs parsed without error
// segments; 0 for an empty corpus.
func (c *ParsedCorpus) ParseSuccessRatio() float64 {
	if len(c.Pdus) == 0 {
		return 0
	}
	ok := 0
	for i := range c.Pdus {
		if c.Pdus[i].IsSuccess() {
			ok++
		}
	}
	return float64(ok) / float64(len(c.Pdus))
}

// ExceptionCount sums exception strings across all PDUs.
func (c *ParsedCorpus) ExceptionCount() int {
	n := 0
	for i := range c.Pdus {
		n += len(c.Pdus[i].Exceptions)
	}
	return n
}
