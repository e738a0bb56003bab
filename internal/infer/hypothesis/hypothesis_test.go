package hypothesis

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNames(t *testing.T) {
	t.Parallel()

	cases := []struct {
		h    Hypothesis
		want string
	}{
		{LengthPrefixBundle{Width: 2}, "LengthPrefixBundle"},
		{DelimiterBundle{Pattern: "\r\n"}, "DelimiterBundle"},
		{FixedHeader{Len: 4}, "FixedHeader"},
		{ExtensibleBitmap{MaxBytes: 8}, "ExtensibleBitmap"},
		{Tlv{TagBytes: 1}, "TLV"},
		{VarintKeyWireType{KeyMaxBytes: 5}, "VarintKeyWireType"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.h.Name())
	}
}

// Hypotheses are value types usable as map keys, which is what makes
// candidate deduplication and determinism tests cheap.
func TestComparable(t *testing.T) {
	t.Parallel()

	seen := map[Hypothesis]int{}
	seen[FixedHeader{Len: 4}]++
	seen[FixedHeader{Len: 4}]++
	seen[DelimiterBundle{Pattern: "\x00\x00"}]++

	assert.Equal(t, 2, seen[FixedHeader{Len: 4}])
	assert.Equal(t, 1, seen[DelimiterBundle{Pattern: "\x00\x00"}])
}

func TestDescribeJSON(t *testing.T) {
	t.Parallel()

	h := LengthPrefixBundle{Offset: 1, Width: 2, Endian: Big, IncludesHeader: false}
	data, err := json.Marshal(Describe(h))
	require.NoError(t, err)

	var decoded struct {
		Type   string `json:"type"`
		Params struct {
			Offset         int    `json:"offset"`
			Width          int    `json:"width"`
			Endian         string `json:"endian"`
			IncludesHeader bool   `json:"includes_header"`
		} `json:"params"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "LengthPrefixBundle", decoded.Type)
	assert.Equal(t, 1, decoded.Params.Offset)
	assert.Equal(t, 2, decoded.Params.Width)
	assert.Equal(t, "big", decoded.Params.Endian)
	assert.False(t, decoded.Params.IncludesHeader)
}

func TestTlvLenRuleFieldSize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1, DefShort.FieldSize())
	assert.Equal(t, 2, DefMedium.FieldSize())
	assert.Equal(t, 4, DefLong.FieldSize())
	assert.Equal(t, 0, IndefiniteWithEoc.FieldSize())
}

func TestSummary(t *testing.T) {
	t.Parallel()

	s := Summary(Tlv{TagOffset: 0, TagBytes: 1, LenOffset: 1, LenRule: DefShort})
	assert.Contains(t, s, "TLV")
	assert.Contains(t, s, "def_short")
}
