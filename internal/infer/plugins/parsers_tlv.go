package plugins

import (
	"encoding/binary"
	"fmt"

	"github.com/banshee-data/framelens/internal/infer/corpus"
	"github.com/banshee-data/framelens/internal/infer/hypothesis"
	"github.com/banshee-data/framelens/internal/infer/segment"
)

// TlvParser handles Tlv hypotheses: repeated tag/length/value records,
// BER-like, with optional fixed prefixes before the tag and between tag
// and length.
type TlvParser struct{}

func (TlvParser) Name() string { return "TlvParser" }

func (TlvParser) Applicable(h hypothesis.Hypothesis) bool {
	_, ok := h.(hypothesis.Tlv)
	return ok
}

func (TlvParser) ParseCorpus(c *corpus.Corpus, h hypothesis.Hypothesis) *segment.ParsedCorpus {
	hyp, ok := h.(hypothesis.Tlv)
	if !ok {
		return &segment.ParsedCorpus{}
	}

	parsed := &segment.ParsedCorpus{Pdus: make([]segment.ParsedPdu, 0, c.Len())}
	for _, pdu := range c.Items {
		parsed.Pdus = append(parsed.Pdus, parseTlvPdu(pdu.Bytes(), hyp))
	}
	return parsed
}

func parseTlvPdu(data []byte, hyp hypothesis.Tlv) segment.ParsedPdu {
	var segments []segment.Segment
	var exceptions []string
	pos := 0

	for pos < len(data) {
		tagStart := pos + hyp.TagOffset
		if tagStart+hyp.TagBytes > len(data) {
			exceptions = append(exceptions, "Incomplete tag")
			segments = append(segments, segment.NewError("Incomplete tag", pos, len(data)))
			break
		}

		if hyp.TagOffset > 0 {
			segments = append(segments, segment.NewSegment(segment.Pci, pos, tagStart))
		}
		segments = append(segments, segment.NewField("tag", tagStart, tagStart+hyp.TagBytes))

		lenStart := pos + hyp.LenOffset

		var msgLen int
		switch hyp.LenRule {
		case hypothesis.DefShort:
			if lenStart >= len(data) {
				exceptions = append(exceptions, "Incomplete length")
				goto done
			}
			msgLen = int(data[lenStart])
		case hypothesis.DefMedium:
			if lenStart+2 > len(data) {
				exceptions = append(exceptions, "Incomplete length")
				goto done
			}
			// Length fields are big-endian in every definite rule.
			msgLen = int(binary.BigEndian.Uint16(data[lenStart:]))
		case hypothesis.DefLong:
			if lenStart+4 > len(data) {
				exceptions = append(exceptions, "Incomplete length")
				goto done
			}
			msgLen = int(binary.BigEndian.Uint32(data[lenStart:]))
		case hypothesis.IndefiniteWithEoc:
			eoc := findEoc(data, lenStart)
			if eoc < 0 {
				exceptions = append(exceptions, "EOC not found")
				goto done
			}
			msgLen = eoc - lenStart
		}

		{
			fieldSize := hyp.LenRule.FieldSize()
			lenEnd := lenStart + fieldSize

			// Filler between tag end and the length field.
			if tagStart+hyp.TagBytes < lenStart {
				segments = append(segments, segment.NewSegment(segment.Pci, tagStart+hyp.TagBytes, lenStart))
			}
			if fieldSize > 0 {
				segments = append(segments, segment.NewField("length", lenStart, lenEnd))
			}

			valueStart := lenEnd
			remaining := len(data) - valueStart
			if remaining < 0 {
				remaining = 0
			}
			if msgLen > remaining+lengthSanityMargin {
				exceptions = append(exceptions, fmt.Sprintf(
					"Length field appears invalid: len=%d, remaining=%d, stopping TLV parsing", msgLen, remaining))
				break
			}

			actualLen := msgLen
			if hyp.LengthIncludesHeader {
				headerSize := lenEnd - tagStart
				if msgLen < headerSize {
					exceptions = append(exceptions, fmt.Sprintf(
						"Length too small to include header: len=%d, header_size=%d", msgLen, headerSize))
					break
				}
				actualLen = msgLen - headerSize
			}

			if valueStart+actualLen > len(data) {
				exceptions = append(exceptions, fmt.Sprintf(
					"Value extends beyond PDU: value_start=%d, actual_len=%d, data_len=%d",
					valueStart, actualLen, len(data)))
				break
			}
			if actualLen > remaining {
				exceptions = append(exceptions, fmt.Sprintf(
					"Length too large for remaining data: actual_len=%d, remaining=%d", actualLen, remaining))
				break
			}

			if actualLen > 0 {
				segments = append(segments, segment.NewSegment(segment.Sdu, valueStart, valueStart+actualLen))
			}

			switch {
			case hyp.LenRule == hypothesis.IndefiniteWithEoc:
				// Skip the value and the two EOC bytes.
				pos = lenStart + msgLen + 2
			case hyp.LengthIncludesHeader:
				pos = tagStart + msgLen
			default:
				pos = valueStart + actualLen
			}
		}
	}

done:
	return segment.ParsedPdu{Segments: segments, Exceptions: exceptions}
}

// findEoc returns the offset of the first 0x00 0x00 pair at or after
// from, or -1.
func findEoc(data []byte, from int) int {
	for i := from; i+1 < len(data); i++ {
		if data[i] == 0x00 && data[i+1] == 0x00 {
			return i
		}
	}
	return -1
}
