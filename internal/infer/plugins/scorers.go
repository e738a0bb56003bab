package plugins

import (
	"math"
	"strings"

	"github.com/banshee-data/framelens/internal/infer/corpus"
	"github.com/banshee-data/framelens/internal/infer/hypothesis"
	"github.com/banshee-data/framelens/internal/infer/measures"
	"github.com/banshee-data/framelens/internal/infer/score"
	"github.com/banshee-data/framelens/internal/infer/segment"
)

// fatalExceptionMarkers identify overflow exceptions that invalidate a
// hypothesis outright: a framing rule that decodes lengths past the end
// of a PDU did not merely fail on one record, it is structurally wrong
// for the data.
var fatalExceptionMarkers = []string{
	"extends beyond PDU",
	"Length too large for remaining data",
	"Message extends beyond PDU",
	"Bitmap extends beyond PDU",
	"Length-delimited value extends beyond PDU",
}

// Scoring penalty weights, in bits.
const (
	overSegmentationThreshold = 10.0
	overSegmentationWeight    = 8.0
	exceptionWeight           = 16.0
	smallSegmentWeight        = 4.0
	smallSegmentLen           = 2
)

// MdlScorer computes the minimum-description-length score of a parsed
// hypothesis: bits to describe the model (framing rule plus the PCI and
// field bytes it claims) plus bits to describe the remaining payload,
// credited with the compression the decomposition achieves over the raw
// bytes and charged for parse failures and fragmentation.
type MdlScorer struct {
	MinParseSuccessRatio float64
}

// NewMdlScorer returns a scorer with the default 0.95 parse-success
// floor.
func NewMdlScorer() *MdlScorer {
	return &MdlScorer{MinParseSuccessRatio: 0.95}
}

func (*MdlScorer) Name() string { return "MdlScorer" }

func (s *MdlScorer) Score(c *corpus.Corpus, parsed *segment.ParsedCorpus, h hypothesis.Hypothesis) score.Score {
	// Overflow exceptions reject the hypothesis before any ratio math:
	// PSR could still be high when only a few PDUs overflow, but an
	// overflow means the decoded structure is wrong, not noisy.
	for i := range parsed.Pdus {
		for _, exc := range parsed.Pdus[i].Exceptions {
			if isFatalException(exc) {
				return score.Rejected(0)
			}
		}
	}

	psr := parsed.ParseSuccessRatio()
	if psr < s.MinParseSuccessRatio {
		return score.Rejected(psr)
	}

	pciBuf, fieldBuf, sduBuf := partitionSegments(c, parsed)

	encPci := encodeBits(pciBuf)
	encFields := encodeBits(fieldBuf)
	encSdu := encodeBits(sduBuf)

	modelBits := baseModelBits(h) + encPci + encFields

	var dataBits float64
	if len(sduBuf) > 0 {
		dataBits = encSdu
	} else {
		// The model exposed no payload at all; charge the whole corpus.
		dataBits = float64(c.TotalBytes()) * 8
	}

	rawBits := measures.CompressedBits(c.Concat())
	entropyDrop := rawBits - (encPci + encFields + encSdu)
	if entropyDrop < 0 {
		entropyDrop = 0
	}

	return score.New(score.Breakdown{
		MdlModelBits:      modelBits,
		MdlDataBits:       dataBits,
		ParseSuccessRatio: psr,
		AlignmentGainBits: 0,
		EntropyDropBits:   entropyDrop,
		PenaltiesBits:     s.penalties(parsed),
	})
}

func (s *MdlScorer) penalties(parsed *segment.ParsedCorpus) float64 {
	var penalties float64

	totalSegments := 0
	smallSegments := 0
	for i := range parsed.Pdus {
		totalSegments += len(parsed.Pdus[i].Segments)
		for _, seg := range parsed.Pdus[i].Segments {
			if seg.Len() < smallSegmentLen {
				smallSegments++
			}
		}
	}

	pduCount := len(parsed.Pdus)
	if pduCount == 0 {
		pduCount = 1
	}
	avgSegments := float64(totalSegments) / float64(pduCount)
	if avgSegments > overSegmentationThreshold {
		penalties += (avgSegments - overSegmentationThreshold) * overSegmentationWeight
	}

	penalties += float64(parsed.ExceptionCount()) * exceptionWeight
	penalties += float64(smallSegments) * smallSegmentWeight
	return penalties
}

func isFatalException(exc string) bool {
	for _, marker := range fatalExceptionMarkers {
		if strings.Contains(exc, marker) {
			return true
		}
	}
	return false
}

// partitionSegments concatenates PCI, field and SDU bytes into three
// buffers, preserving order within each. Error and boundary segments
// carry no bytes worth modelling.
func partitionSegments(c *corpus.Corpus, parsed *segment.ParsedCorpus) (pci, fields, sdu []byte) {
	n := len(c.Items)
	if len(parsed.Pdus) < n {
		n = len(parsed.Pdus)
	}
	for i := 0; i < n; i++ {
		data := c.Items[i].Bytes()
		for _, seg := range parsed.Pdus[i].Segments {
			switch seg.Kind {
			case segment.Pci:
				pci = append(pci, data[seg.Start:seg.End]...)
			case segment.Field:
				fields = append(fields, data[seg.Start:seg.End]...)
			case segment.Sdu:
				sdu = append(sdu, data[seg.Start:seg.End]...)
			}
		}
	}
	return pci, fields, sdu
}

// encodeBits is the description length of a buffer: the better of
// entropy coding and deflate. Empty buffers cost nothing.
func encodeBits(buf []byte) float64 {
	if len(buf) == 0 {
		return 0
	}
	entropyBits := measures.Entropy(buf) * float64(len(buf))
	compressedBits := entropyBits
	if size, err := measures.CompressedSize(buf); err == nil {
		compressedBits = float64(size) * 8
	}
	return math.Min(entropyBits, compressedBits)
}

// baseModelBits is the fixed description cost of each hypothesis
// family's parameters.
func baseModelBits(h hypothesis.Hypothesis) float64 {
	switch v := h.(type) {
	case hypothesis.LengthPrefixBundle:
		return 32
	case hypothesis.DelimiterBundle:
		return 16 + float64(len(v.Pattern))*8
	case hypothesis.FixedHeader:
		return 16 + math.Log2(float64(v.Len))*2
	case hypothesis.ExtensibleBitmap:
		return 40
	case hypothesis.Tlv:
		return 24
	case hypothesis.VarintKeyWireType:
		return 24
	}
	return 32
}
