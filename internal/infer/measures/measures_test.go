package measures

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/framelens/internal/infer/corpus"
)

func TestEntropy(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0.0, Entropy(nil))
	assert.Equal(t, 0.0, Entropy(bytes.Repeat([]byte{0x42}, 100)))

	// Two equally frequent symbols: exactly one bit per byte.
	assert.InDelta(t, 1.0, Entropy([]byte{0, 1, 0, 1, 0, 1, 0, 1}), 1e-9)

	// All 256 values once: exactly eight bits per byte.
	full := make([]byte, 256)
	for i := range full {
		full[i] = byte(i)
	}
	assert.InDelta(t, 8.0, Entropy(full), 1e-9)
}

func TestEntropyByOffset(t *testing.T) {
	t.Parallel()

	// Offset 0 is constant across PDUs, offset 1 varies.
	c := corpus.FromDatagrams([]corpus.Datagram{
		{Payload: []byte{0xAA, 0x00}},
		{Payload: []byte{0xAA, 0x01}},
		{Payload: []byte{0xAA, 0x02}},
		{Payload: []byte{0xAA, 0x03}},
	}, nil)

	entropies := EntropyByOffset(c, 3)
	require.Len(t, entropies, 3)
	assert.Equal(t, 0.0, entropies[0])
	assert.InDelta(t, 2.0, entropies[1], 1e-9)
	// No PDU reaches offset 2.
	assert.Equal(t, 0.0, entropies[2])
}

func TestCompressedSize(t *testing.T) {
	t.Parallel()

	repetitive := bytes.Repeat([]byte{0x00}, 4096)
	size, err := CompressedSize(repetitive)
	require.NoError(t, err)
	assert.Less(t, size, len(repetitive)/10)

	// Empty input still produces a (tiny) valid stream.
	size, err = CompressedSize(nil)
	require.NoError(t, err)
	assert.Greater(t, size, 0)
}

func TestCompressedBits(t *testing.T) {
	t.Parallel()

	repetitive := bytes.Repeat([]byte{0xAB}, 1000)
	bits := CompressedBits(repetitive)
	assert.Greater(t, bits, 0.0)
	assert.Less(t, bits, float64(len(repetitive))*8)
}

func TestAlignmentGain(t *testing.T) {
	t.Parallel()

	c := corpus.FromDatagrams([]corpus.Datagram{
		{Payload: []byte{0x01, 0x10, 0x20, 0x30}},
		{Payload: []byte{0x01, 0x11, 0x21, 0x31}},
		{Payload: []byte{0x01, 0x12, 0x22, 0x32}},
	}, nil)

	gain := ComputeAlignmentGain(c, []int{0}, 4)

	// Anchoring only at the constant offset discards the entropy the
	// varying offsets contribute, so aligned entropy must be lower.
	assert.Less(t, gain.AlignedEntropy, gain.OriginalEntropy)
	assert.Greater(t, gain.GainBits, 0.0)
	assert.Equal(t, []int{0}, gain.AnchorOffsets)
}
