// Package plugins provides the built-in generators, parsers and scorer,
// plus the default registry wiring them together.
//
// Parser conventions shared by all six framings:
//   - each PDU is parsed independently; a failure in one PDU never
//     affects another
//   - insufficient bytes at a reading step append an exception string
//     and stop that PDU; segments already emitted are preserved
//   - residue after the last successful message is not emitted as SDU
//     unless the framing defines it (delimiter tails)
//   - a decoded length overshooting the remaining bytes by more than
//     lengthSanityMargin stops the PDU with an exception, guarding
//     against pathological hypotheses on unstructured data
package plugins

import (
	"encoding/binary"
	"fmt"

	"github.com/banshee-data/framelens/internal/infer/corpus"
	"github.com/banshee-data/framelens/internal/infer/hypothesis"
	"github.com/banshee-data/framelens/internal/infer/segment"
)

// lengthSanityMargin bounds how far a decoded length may overshoot the
// remaining bytes before the hypothesis is treated as nonsense rather
// than a short read.
const lengthSanityMargin = 1000

// LengthPrefixParser handles LengthPrefixBundle hypotheses: repeated
// [offset][length][body] records until the PDU is exhausted.
type LengthPrefixParser struct{}

func (LengthPrefixParser) Name() string { return "LengthPrefixParser" }

func (LengthPrefixParser) Applicable(h hypothesis.Hypothesis) bool {
	_, ok := h.(hypothesis.LengthPrefixBundle)
	return ok
}

func (LengthPrefixParser) ParseCorpus(c *corpus.Corpus, h hypothesis.Hypothesis) *segment.ParsedCorpus {
	hyp, ok := h.(hypothesis.LengthPrefixBundle)
	if !ok {
		return &segment.ParsedCorpus{}
	}

	parsed := &segment.ParsedCorpus{Pdus: make([]segment.ParsedPdu, 0, c.Len())}
	for _, pdu := range c.Items {
		data := pdu.Bytes()
		var segments []segment.Segment
		var exceptions []string
		pos := 0

		for pos < len(data) {
			lenPos := pos + hyp.Offset
			if lenPos+hyp.Width > len(data) {
				exceptions = append(exceptions, fmt.Sprintf("Incomplete length field at pos %d", pos))
				segments = append(segments, segment.NewError("Incomplete length field", pos, len(data)))
				break
			}

			var msgLen int
			switch hyp.Width {
			case 1:
				msgLen = int(data[lenPos])
			case 2:
				if hyp.Endian == hypothesis.Little {
					msgLen = int(binary.LittleEndian.Uint16(data[lenPos:]))
				} else {
					msgLen = int(binary.BigEndian.Uint16(data[lenPos:]))
				}
			case 4:
				if hyp.Endian == hypothesis.Little {
					msgLen = int(binary.LittleEndian.Uint32(data[lenPos:]))
				} else {
					msgLen = int(binary.BigEndian.Uint32(data[lenPos:]))
				}
			}

			headerEnd := lenPos + hyp.Width
			messageEnd := headerEnd + msgLen

			if messageEnd > len(data) {
				exceptions = append(exceptions, fmt.Sprintf("Message extends beyond PDU at pos %d", pos))
				segments = append(segments, segment.NewError("Message overflow", pos, len(data)))
				break
			}

			if pos < headerEnd {
				segments = append(segments, segment.NewField("length", pos, headerEnd))
			}
			if headerEnd < messageEnd {
				segments = append(segments, segment.NewSegment(segment.Sdu, headerEnd, messageEnd))
			}
			if messageEnd < len(data) {
				segments = append(segments, segment.NewSegment(segment.MessageBoundary, messageEnd, messageEnd))
			}
			pos = messageEnd
		}

		parsed.Pdus = append(parsed.Pdus, segment.ParsedPdu{Segments: segments, Exceptions: exceptions})
	}
	return parsed
}

// DelimiterParser handles DelimiterBundle hypotheses: messages
// separated by a fixed byte pattern. A tail with no trailing delimiter
// is still an SDU.
type DelimiterParser struct{}

func (DelimiterParser) Name() string { return "DelimiterParser" }

func (DelimiterParser) Applicable(h hypothesis.Hypothesis) bool {
	_, ok := h.(hypothesis.DelimiterBundle)
	return ok
}

func (DelimiterParser) ParseCorpus(c *corpus.Corpus, h hypothesis.Hypothesis) *segment.ParsedCorpus {
	hyp, ok := h.(hypothesis.DelimiterBundle)
	if !ok {
		return &segment.ParsedCorpus{}
	}
	pattern := hyp.PatternBytes()

	parsed := &segment.ParsedCorpus{Pdus: make([]segment.ParsedPdu, 0, c.Len())}
	for _, pdu := range c.Items {
		data := pdu.Bytes()
		var segments []segment.Segment
		pos := 0

		for pos < len(data) {
			next := indexOf(data, pattern, pos)
			boundary := next
			if next < 0 {
				boundary = len(data)
			}
			if pos < boundary {
				segments = append(segments, segment.NewSegment(segment.Sdu, pos, boundary))
			}
			if next >= 0 {
				segments = append(segments, segment.NewSegment(segment.MessageBoundary, boundary, boundary+len(pattern)))
				pos = boundary + len(pattern)
			} else {
				pos = len(data)
			}
		}

		parsed.Pdus = append(parsed.Pdus, segment.ParsedPdu{Segments: segments})
	}
	return parsed
}

// indexOf finds the first occurrence of pattern in data at or after
// from, or -1.
func indexOf(data, pattern []byte, from int) int {
	if len(pattern) == 0 {
		return -1
	}
	for i := from; i+len(pattern) <= len(data); i++ {
		match := true
		for j := range pattern {
			if data[i+j] != pattern[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// FixedHeaderParser handles FixedHeader hypotheses: a constant-size PCI
// prefix followed by the SDU. No iteration.
type FixedHeaderParser struct{}

func (FixedHeaderParser) Name() string { return "FixedHeaderParser" }

func (FixedHeaderParser) Applicable(h hypothesis.Hypothesis) bool {
	_, ok := h.(hypothesis.FixedHeader)
	return ok
}

func (FixedHeaderParser) ParseCorpus(c *corpus.Corpus, h hypothesis.Hypothesis) *segment.ParsedCorpus {
	hyp, ok := h.(hypothesis.FixedHeader)
	if !ok {
		return &segment.ParsedCorpus{}
	}

	parsed := &segment.ParsedCorpus{Pdus: make([]segment.ParsedPdu, 0, c.Len())}
	for _, pdu := range c.Items {
		data := pdu.Bytes()
		var segments []segment.Segment

		if len(data) < hyp.Len {
			segments = append(segments, segment.NewError("PDU too short", 0, len(data)))
		} else {
			segments = append(segments, segment.NewSegment(segment.Pci, 0, hyp.Len))
			if hyp.Len < len(data) {
				segments = append(segments, segment.NewSegment(segment.Sdu, hyp.Len, len(data)))
			}
		}

		parsed.Pdus = append(parsed.Pdus, segment.ParsedPdu{Segments: segments})
	}
	return parsed
}

// ExtensibleBitmapParser handles ExtensibleBitmap hypotheses: a
// variable-length bitmap whose continuation bit signals more bytes.
type ExtensibleBitmapParser struct{}

func (ExtensibleBitmapParser) Name() string { return "ExtensibleBitmapParser" }

func (ExtensibleBitmapParser) Applicable(h hypothesis.Hypothesis) bool {
	_, ok := h.(hypothesis.ExtensibleBitmap)
	return ok
}

func (ExtensibleBitmapParser) ParseCorpus(c *corpus.Corpus, h hypothesis.Hypothesis) *segment.ParsedCorpus {
	hyp, ok := h.(hypothesis.ExtensibleBitmap)
	if !ok {
		return &segment.ParsedCorpus{}
	}

	parsed := &segment.ParsedCorpus{Pdus: make([]segment.ParsedPdu, 0, c.Len())}
	for _, pdu := range c.Items {
		data := pdu.Bytes()
		var segments []segment.Segment
		var exceptions []string

		if len(data) < hyp.Start {
			segments = append(segments, segment.NewError("PDU too short for bitmap start", 0, len(data)))
			parsed.Pdus = append(parsed.Pdus, segment.ParsedPdu{Segments: segments})
			continue
		}

		bitmapPos := hyp.Start
		bitmapLen := 0
		for bitmapPos < len(data) && bitmapLen < hyp.MaxBytes {
			b := data[bitmapPos]
			contBit := int(b>>uint(hyp.ContBit)) & 1
			bitmapLen++
			if contBit == hyp.StopValue {
				break
			}
			bitmapPos++
		}

		bitmapEnd := hyp.Start + bitmapLen
		if bitmapEnd > len(data) {
			exceptions = append(exceptions, "Bitmap extends beyond PDU")
			segments = append(segments, segment.NewError("Bitmap overflow", 0, len(data)))
		} else {
			if hyp.Start > 0 {
				segments = append(segments, segment.NewSegment(segment.Pci, 0, hyp.Start))
			}
			segments = append(segments, segment.NewField("bitmap", hyp.Start, bitmapEnd))
			if bitmapEnd < len(data) {
				segments = append(segments, segment.NewSegment(segment.Sdu, bitmapEnd, len(data)))
			}
		}

		parsed.Pdus = append(parsed.Pdus, segment.ParsedPdu{Segments: segments, Exceptions: exceptions})
	}
	return parsed
}
