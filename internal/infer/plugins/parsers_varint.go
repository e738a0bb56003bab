package plugins

import (
	"fmt"

	"github.com/banshee-data/framelens/internal/infer/corpus"
	"github.com/banshee-data/framelens/internal/infer/hypothesis"
	"github.com/banshee-data/framelens/internal/infer/segment"
)

// Wire types carried in the low three bits of a varint key.
const (
	wireVarint          = 0
	wireFixed64         = 1
	wireLengthDelimited = 2
	wireFixed32         = 5

	// maxValueVarintBytes caps a value varint at the 10 bytes a 64-bit
	// value can occupy.
	maxValueVarintBytes = 10
)

// VarintParser handles VarintKeyWireType hypotheses: protobuf-style
// fields keyed by a base-128 varint of (field_number<<3)|wire_type.
//
// The length of a length-delimited value is read as a single byte, not
// a varint; this mirrors the behaviour the hypothesis space was built
// against rather than real protobuf.
type VarintParser struct{}

func (VarintParser) Name() string { return "VarintParser" }

func (VarintParser) Applicable(h hypothesis.Hypothesis) bool {
	_, ok := h.(hypothesis.VarintKeyWireType)
	return ok
}

func (VarintParser) ParseCorpus(c *corpus.Corpus, h hypothesis.Hypothesis) *segment.ParsedCorpus {
	hyp, ok := h.(hypothesis.VarintKeyWireType)
	if !ok {
		return &segment.ParsedCorpus{}
	}

	parsed := &segment.ParsedCorpus{Pdus: make([]segment.ParsedPdu, 0, c.Len())}
	for _, pdu := range c.Items {
		parsed.Pdus = append(parsed.Pdus, parseVarintPdu(pdu.Bytes(), hyp))
	}
	return parsed
}

func parseVarintPdu(data []byte, hyp hypothesis.VarintKeyWireType) segment.ParsedPdu {
	var segments []segment.Segment
	var exceptions []string
	pos := 0

	for pos < len(data) {
		keyStart := pos
		keyBytes := 0
		var keyValue uint64

		for keyBytes < hyp.KeyMaxBytes && pos < len(data) {
			b := data[pos]
			keyValue |= uint64(b&0x7f) << uint(keyBytes*7)
			keyBytes++
			pos++
			if b&0x80 == 0 {
				break
			}
		}

		if keyBytes >= hyp.KeyMaxBytes && pos < len(data) && data[pos-1]&0x80 != 0 {
			exceptions = append(exceptions, "Varint key too long")
			break
		}

		segments = append(segments, segment.NewField("key", keyStart, pos))

		wireType := int(keyValue & 0x7)
		switch wireType {
		case wireVarint:
			valStart := pos
			valBytes := 0
			for valBytes < maxValueVarintBytes && pos < len(data) {
				b := data[pos]
				valBytes++
				pos++
				if b&0x80 == 0 {
					break
				}
			}
			segments = append(segments, segment.NewField("value_varint", valStart, pos))

		case wireFixed64:
			if pos+8 > len(data) {
				exceptions = append(exceptions, "Incomplete fixed64")
				goto done
			}
			segments = append(segments, segment.NewField("value_fixed64", pos, pos+8))
			pos += 8

		case wireLengthDelimited:
			if pos >= len(data) {
				exceptions = append(exceptions, "Incomplete length")
				goto done
			}
			valLen := int(data[pos])
			pos++
			if pos+valLen > len(data) {
				exceptions = append(exceptions, "Length-delimited value extends beyond PDU")
				goto done
			}
			segments = append(segments, segment.NewField("value_length", pos-1, pos))
			segments = append(segments, segment.NewSegment(segment.Sdu, pos, pos+valLen))
			pos += valLen

		case wireFixed32:
			if pos+4 > len(data) {
				exceptions = append(exceptions, "Incomplete fixed32")
				goto done
			}
			segments = append(segments, segment.NewField("value_fixed32", pos, pos+4))
			pos += 4

		default:
			exceptions = append(exceptions, fmt.Sprintf("Unknown wire type: %d", wireType))
			goto done
		}
	}

done:
	return segment.ParsedPdu{Segments: segments, Exceptions: exceptions}
}
