package plugins

import (
	"github.com/banshee-data/framelens/internal/infer/corpus"
	"github.com/banshee-data/framelens/internal/infer/hypothesis"
)

// The generators enumerate fixed Cartesian products of parameter
// choices. They are intentionally broad: pruning bad candidates is the
// scorer's job, so no generator inspects payload bytes beyond the first
// PDU's length.

// LengthPrefixGenerator proposes length-prefix bundling over small
// header offsets, the three common field widths and both endiannesses.
type LengthPrefixGenerator struct{}

func (LengthPrefixGenerator) Name() string { return "LengthPrefixGenerator" }

func (LengthPrefixGenerator) Propose(c *corpus.Corpus) []hypothesis.Hypothesis {
	if c.IsEmpty() {
		return nil
	}
	var out []hypothesis.Hypothesis
	for offset := 0; offset <= 4; offset++ {
		for _, width := range []int{1, 2, 4} {
			for _, endian := range []hypothesis.Endianness{hypothesis.Little, hypothesis.Big} {
				out = append(out, hypothesis.LengthPrefixBundle{
					Offset:         offset,
					Width:          width,
					Endian:         endian,
					IncludesHeader: false,
				})
			}
		}
	}
	return out
}

// DelimiterGenerator proposes the delimiter patterns commonly seen in
// text and record-oriented protocols.
type DelimiterGenerator struct{}

func (DelimiterGenerator) Name() string { return "DelimiterGenerator" }

func (DelimiterGenerator) Propose(c *corpus.Corpus) []hypothesis.Hypothesis {
	if c.IsEmpty() {
		return nil
	}
	patterns := []string{
		"\x00\x00",
		"\x0a",
		"\x0d\x0a",
		"\xff\xff",
	}
	out := make([]hypothesis.Hypothesis, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, hypothesis.DelimiterBundle{Pattern: p})
	}
	return out
}

// FixedHeaderGenerator proposes constant header lengths from 2 bytes up
// to 32 or the first PDU's length, whichever is smaller.
type FixedHeaderGenerator struct{}

func (FixedHeaderGenerator) Name() string { return "FixedHeaderGenerator" }

func (FixedHeaderGenerator) Propose(c *corpus.Corpus) []hypothesis.Hypothesis {
	if c.IsEmpty() {
		return nil
	}
	max := 32
	if first := c.Items[0].Len(); first < max {
		max = first
	}
	var out []hypothesis.Hypothesis
	for length := 2; length <= max; length++ {
		out = append(out, hypothesis.FixedHeader{Len: length})
	}
	return out
}

// ExtensibleBitmapGenerator proposes bitmap starts, continuation bit
// positions and both stop polarities, capped at 8 bitmap bytes.
type ExtensibleBitmapGenerator struct{}

func (ExtensibleBitmapGenerator) Name() string { return "ExtensibleBitmapGenerator" }

func (ExtensibleBitmapGenerator) Propose(c *corpus.Corpus) []hypothesis.Hypothesis {
	if c.IsEmpty() {
		return nil
	}
	var out []hypothesis.Hypothesis
	for start := 0; start <= 4; start++ {
		for contBit := 0; contBit < 8; contBit++ {
			for _, stop := range []int{0, 1} {
				out = append(out, hypothesis.ExtensibleBitmap{
					Start:     start,
					ContBit:   contBit,
					StopValue: stop,
					MaxBytes:  8,
				})
			}
		}
	}
	return out
}

// TlvGenerator proposes tag/length layouts over small offsets, the
// three definite length rules and both header-inclusion conventions.
type TlvGenerator struct{}

func (TlvGenerator) Name() string { return "TlvGenerator" }

func (TlvGenerator) Propose(c *corpus.Corpus) []hypothesis.Hypothesis {
	if c.IsEmpty() {
		return nil
	}
	var out []hypothesis.Hypothesis
	for tagOffset := 0; tagOffset <= 2; tagOffset++ {
		for tagBytes := 1; tagBytes <= 3; tagBytes++ {
			for _, delta := range []int{0, 1} {
				for _, rule := range []hypothesis.TlvLenRule{hypothesis.DefShort, hypothesis.DefMedium, hypothesis.DefLong} {
					for _, inclHdr := range []bool{false, true} {
						out = append(out, hypothesis.Tlv{
							TagOffset:            tagOffset,
							TagBytes:             tagBytes,
							LenOffset:            tagOffset + tagBytes + delta,
							LenRule:              rule,
							LengthIncludesHeader: inclHdr,
						})
					}
				}
			}
		}
	}
	return out
}

// VarintGenerator proposes the protobuf-style key framings.
type VarintGenerator struct{}

func (VarintGenerator) Name() string { return "VarintGenerator" }

func (VarintGenerator) Propose(c *corpus.Corpus) []hypothesis.Hypothesis {
	if c.IsEmpty() {
		return nil
	}
	return []hypothesis.Hypothesis{
		hypothesis.VarintKeyWireType{KeyMaxBytes: 5, AllowEmbedded: false},
		hypothesis.VarintKeyWireType{KeyMaxBytes: 5, AllowEmbedded: true},
		hypothesis.VarintKeyWireType{KeyMaxBytes: 10, AllowEmbedded: false},
	}
}
