package segment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsSuccess(t *testing.T) {
	t.Parallel()

	ok := ParsedPdu{Segments: []Segment{
		NewField("length", 0, 2),
		NewSegment(Sdu, 2, 10),
	}}
	assert.True(t, ok.IsSuccess())

	failed := ParsedPdu{Segments: []Segment{
		NewField("length", 0, 2),
		NewError("Message overflow", 2, 10),
	}}
	assert.False(t, failed.IsSuccess())

	// Exceptions alone do not fail a PDU; only error segments do.
	hiccup := ParsedPdu{
		Segments:   []Segment{NewSegment(Sdu, 0, 4)},
		Exceptions: []string{"trailing residue"},
	}
	assert.True(t, hiccup.IsSuccess())
}

func TestParseSuccessRatio(t *testing.T) {
	t.Parallel()

	empty := ParsedCorpus{}
	assert.Equal(t, 0.0, empty.ParseSuccessRatio())

	mixed := ParsedCorpus{Pdus: []ParsedPdu{
		{Segments: []Segment{NewSegment(Sdu, 0, 4)}},
		{Segments: []Segment{NewError("PDU too short", 0, 2)}},
		{Segments: []Segment{NewSegment(Sdu, 0, 4)}},
		{Segments: []Segment{NewSegment(Sdu, 0, 4)}},
	}}
	assert.InDelta(t, 0.75, mixed.ParseSuccessRatio(), 1e-9)
}

func TestSduRanges(t *testing.T) {
	t.Parallel()

	p := ParsedPdu{Segments: []Segment{
		NewField("length", 0, 2),
		NewSegment(Sdu, 2, 10),
		NewSegment(MessageBoundary, 10, 10),
		NewField("length", 10, 12),
		NewSegment(Sdu, 12, 20),
	}}
	assert.Equal(t, [][2]int{{2, 10}, {12, 20}}, p.SduRanges())
}

func TestExceptionCount(t *testing.T) {
	t.Parallel()

	c := ParsedCorpus{Pdus: []ParsedPdu{
		{Exceptions: []string{"a", "b"}},
		{},
		{Exceptions: []string{"c"}},
	}}
	assert.Equal(t, 3, c.ExceptionCount())
}

func TestKindStrings(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "pci", Pci.String())
	assert.Equal(t, "sdu", Sdu.String())
	assert.Equal(t, "message_boundary", MessageBoundary.String())
	assert.Equal(t, "field", Field.String())
	assert.Equal(t, "error", Error.String())
}
