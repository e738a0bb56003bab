// Package hypothesis defines the framing rules the engine can propose
// for a protocol layer. Each rule is a small value type; parsers select
// on the concrete type, and the values are comparable so they can be
// deduplicated or used as map keys.
package hypothesis

import (
	"encoding/json"
	"fmt"
)

// Endianness of a multi-byte length field.
type Endianness int

const (
	Little Endianness = iota
	Big
)

func (e Endianness) String() string {
	if e == Big {
		return "big"
	}
	return "little"
}

// MarshalJSON emits the endianness as its lowercase name.
func (e Endianness) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.String())
}

// TlvLenRule selects how a TLV length field is decoded.
type TlvLenRule int

const (
	DefShort         TlvLenRule = iota // 1 byte
	DefMedium                          // 2 bytes, big-endian
	DefLong                            // 4 bytes, big-endian
	IndefiniteWithEoc                  // value runs until 0x00 0x00
)

func (r TlvLenRule) String() string {
	switch r {
	case DefShort:
		return "def_short"
	case DefMedium:
		return "def_medium"
	case DefLong:
		return "def_long"
	case IndefiniteWithEoc:
		return "indefinite_with_eoc"
	}
	return fmt.Sprintf("tlv_len_rule(%d)", int(r))
}

func (r TlvLenRule) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// FieldSize is the number of bytes the length field itself occupies
// (0 for the indefinite form).
func (r TlvLenRule) FieldSize() int {
	switch r {
	case DefShort:
		return 1
	case DefMedium:
		return 2
	case DefLong:
		return 4
	}
	return 0
}

// Hypothesis is one candidate framing rule. Concrete types below; all
// are comparable value types.
type Hypothesis interface {
	// Name is the stable family name used in serialized results.
	Name() string
}

// LengthPrefixBundle frames messages as [optional offset][length][body],
// repeated until the PDU is exhausted.
type LengthPrefixBundle struct {
	Offset         int        `json:"offset"`
	Width          int        `json:"width"` // 1, 2 or 4
	Endian         Endianness `json:"endian"`
	IncludesHeader bool       `json:"includes_header"`
}

func (LengthPrefixBundle) Name() string { return "LengthPrefixBundle" }

// DelimiterBundle separates messages with a fixed byte pattern. The
// pattern is held as a string so the hypothesis stays comparable.
type DelimiterBundle struct {
	Pattern string `json:"pattern"`
}

func (DelimiterBundle) Name() string { return "DelimiterBundle" }

// PatternBytes returns the delimiter as raw bytes.
func (d DelimiterBundle) PatternBytes() []byte { return []byte(d.Pattern) }

// FixedHeader strips a constant-size header off the front of each PDU.
type FixedHeader struct {
	Len int `json:"len"`
}

func (FixedHeader) Name() string { return "FixedHeader" }

// ExtensibleBitmap reads a PER-style extensible bitmap: bytes from Start
// until the continuation bit equals StopValue or MaxBytes are consumed.
type ExtensibleBitmap struct {
	Start     int `json:"start"`
	ContBit   int `json:"cont_bit"` // 0..7
	StopValue int `json:"stop_value"`
	MaxBytes  int `json:"max_bytes"`
}

func (ExtensibleBitmap) Name() string { return "ExtensibleBitmap" }

// Tlv frames messages as tag/length/value records, BER-like. LenOffset
// is relative to the record start and must not precede the end of the
// tag.
type Tlv struct {
	TagOffset            int        `json:"tag_offset"`
	TagBytes             int        `json:"tag_bytes"` // 1..3
	LenOffset            int        `json:"len_offset"`
	LenRule              TlvLenRule `json:"len_rule"`
	LengthIncludesHeader bool       `json:"length_includes_header"`
}

func (Tlv) Name() string { return "TLV" }

// VarintKeyWireType frames fields protobuf-style: a base-128 varint key
// encoding (field_number<<3)|wire_type, followed by a value shaped by
// the wire type.
type VarintKeyWireType struct {
	KeyMaxBytes   int  `json:"key_max_bytes"`
	AllowEmbedded bool `json:"allow_embedded"`
}

func (VarintKeyWireType) Name() string { return "VarintKeyWireType" }

// Envelope is the tagged-variant JSON form of a hypothesis.
type Envelope struct {
	Type   string     `json:"type"`
	Params Hypothesis `json:"params"`
}

// Describe wraps a hypothesis for serialization.
func Describe(h Hypothesis) Envelope {
	return Envelope{Type: h.Name(), Params: h}
}

// Summary renders a compact one-line description for logs.
func Summary(h Hypothesis) string {
	switch v := h.(type) {
	case LengthPrefixBundle:
		return fmt.Sprintf("%s{offset=%d width=%d endian=%s}", v.Name(), v.Offset, v.Width, v.Endian)
	case DelimiterBundle:
		return fmt.Sprintf("%s{pattern=%x}", v.Name(), v.Pattern)
	case FixedHeader:
		return fmt.Sprintf("%s{len=%d}", v.Name(), v.Len)
	case ExtensibleBitmap:
		return fmt.Sprintf("%s{start=%d cont_bit=%d stop=%d}", v.Name(), v.Start, v.ContBit, v.StopValue)
	case Tlv:
		return fmt.Sprintf("%s{tag_offset=%d tag_bytes=%d len_offset=%d rule=%s incl_hdr=%t}",
			v.Name(), v.TagOffset, v.TagBytes, v.LenOffset, v.LenRule, v.LengthIncludesHeader)
	case VarintKeyWireType:
		return fmt.Sprintf("%s{key_max=%d embedded=%t}", v.Name(), v.KeyMaxBytes, v.AllowEmbedded)
	}
	return h.Name()
}
