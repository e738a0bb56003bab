// Package measures provides the information-theoretic primitives the
// MDL scorer is built from: Shannon byte entropy, per-offset entropy
// across a corpus, a deflate compressed-size proxy, and the alignment
// gain computation.
package measures

import (
	"bytes"
	"fmt"
	"math"

	"github.com/klauspost/compress/flate"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/framelens/internal/infer/corpus"
)

// Entropy returns the empirical Shannon entropy of data in bits per
// byte. Empty input has zero entropy.
func Entropy(data []byte) float64 {
	if len(data) == 0 {
		return 0
	}
	var counts [256]float64
	for _, b := range data {
		counts[b]++
	}
	n := float64(len(data))
	dist := make([]float64, 0, 64)
	for _, c := range counts {
		if c > 0 {
			dist = append(dist, c/n)
		}
	}
	// stat.Entropy works in nats; rescale to bits.
	return stat.Entropy(dist) / math.Ln2
}

// EntropyByOffset computes the entropy of the byte distribution at each
// of the first maxOffset positions across all PDUs in the corpus.
func EntropyByOffset(c *corpus.Corpus, maxOffset int) []float64 {
	samples := make([][]byte, maxOffset)
	for _, pdu := range c.Items {
		data := pdu.Bytes()
		for i := 0; i < len(data) && i < maxOffset; i++ {
			samples[i] = append(samples[i], data[i])
		}
	}
	out := make([]float64, maxOffset)
	for i, s := range samples {
		out[i] = Entropy(s)
	}
	return out
}

// CompressedSize deflates data at the default level and returns the
// output size in bytes. It is the MDL proxy for "true" description
// length; entropy·len is the fallback when compression fails.
func CompressedSize(data []byte) (int, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return 0, fmt.Errorf("measures: create deflate writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return 0, fmt.Errorf("measures: deflate write: %w", err)
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("measures: deflate close: %w", err)
	}
	return buf.Len(), nil
}

// CompressedBits returns 8·CompressedSize, falling back to entropy·len
// when deflate fails.
func CompressedBits(data []byte) float64 {
	size, err := CompressedSize(data)
	if err != nil {
		return Entropy(data) * float64(len(data))
	}
	return float64(size) * 8
}

// AlignmentGain compares per-offset entropy before and after resampling
// only at anchor positions. Not wired into the default scorer; kept for
// scorers that want to reward bitmap-style anchors.
type AlignmentGain struct {
	OriginalEntropy float64
	AlignedEntropy  float64
	GainBits        float64
	AnchorOffsets   []int
}

// ComputeAlignmentGain measures the entropy reduction obtained by
// sampling only anchor offsets over the first maxOffset positions.
func ComputeAlignmentGain(c *corpus.Corpus, anchorOffsets []int, maxOffset int) AlignmentGain {
	original := EntropyByOffset(c, maxOffset)
	var originalSum float64
	for _, e := range original {
		originalSum += e
	}

	aligned := make([][]byte, maxOffset)
	for _, pdu := range c.Items {
		data := pdu.Bytes()
		for _, anchor := range anchorOffsets {
			if anchor < len(data) && anchor < maxOffset {
				aligned[anchor] = append(aligned[anchor], data[anchor])
			}
		}
	}
	var alignedSum float64
	for _, s := range aligned {
		alignedSum += Entropy(s)
	}

	return AlignmentGain{
		OriginalEntropy: originalSum,
		AlignedEntropy:  alignedSum,
		GainBits:        (originalSum - alignedSum) * float64(c.TotalBytes()) / 8,
		AnchorOffsets:   append([]int(nil), anchorOffsets...),
	}
}
