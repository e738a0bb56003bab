// Package report renders an HTML report of an inference run using
// go-echarts: the per-offset entropy profile of the input corpus and
// the candidate score spread at each adopted layer.
package report

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/framelens/internal/infer"
	"github.com/banshee-data/framelens/internal/infer/corpus"
	"github.com/banshee-data/framelens/internal/infer/hypothesis"
	"github.com/banshee-data/framelens/internal/infer/measures"
)

// DefaultEntropyOffsets is how many leading byte positions the entropy
// profile covers.
const DefaultEntropyOffsets = 32

// Write renders the report for result into w.
func Write(w io.Writer, c *corpus.Corpus, result *infer.InferenceResult) error {
	page := components.NewPage()
	page.AddCharts(entropyProfileChart(c))
	for depth, layer := range result.Layers {
		page.AddCharts(layerScoreChart(depth, layer))
	}

	if err := page.Render(w); err != nil {
		return fmt.Errorf("report: render: %w", err)
	}
	return nil
}

// WriteFile renders the report to path.
func WriteFile(path string, c *corpus.Corpus, result *infer.InferenceResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: create %s: %w", path, err)
	}
	defer f.Close()
	return Write(f, c, result)
}

// entropyProfileChart plots the byte entropy at each of the first
// DefaultEntropyOffsets positions across the corpus. Low-entropy
// positions are the visual signature of framing fields.
func entropyProfileChart(c *corpus.Corpus) *charts.Line {
	entropies := measures.EntropyByOffset(c, DefaultEntropyOffsets)

	xAxis := make([]string, len(entropies))
	series := make([]opts.LineData, len(entropies))
	for i, e := range entropies {
		xAxis[i] = fmt.Sprintf("%d", i)
		series[i] = opts.LineData{Value: e}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "framelens report"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Per-offset entropy",
			Subtitle: fmt.Sprintf("%d PDUs, %d bytes", c.Len(), c.TotalBytes()),
		}),
		charts.WithXAxisOpts(opts.XAxis{Name: "offset"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "bits"}),
	)
	line.SetXAxis(xAxis).AddSeries("entropy", series)
	return line
}

// layerScoreChart plots the finite total-bit scores of the layer's
// top-K candidates, best first.
func layerScoreChart(depth int, layer infer.Layer) *charts.Scatter {
	var xAxis []string
	var series []opts.ScatterData
	for rank, hr := range layer.AllHypotheses {
		if math.IsInf(hr.Score.TotalBits, 0) || math.IsNaN(hr.Score.TotalBits) {
			continue
		}
		xAxis = append(xAxis, fmt.Sprintf("#%d", rank+1))
		series = append(series, opts.ScatterData{
			Value: hr.Score.TotalBits,
			Name:  hypothesis.Summary(hr.Hypothesis),
		})
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("Depth %d: %s", depth, hypothesis.Summary(layer.Hypothesis)),
			Subtitle: fmt.Sprintf("top %d candidates by total bits", len(layer.AllHypotheses)),
		}),
		charts.WithYAxisOpts(opts.YAxis{Name: "total bits"}),
	)
	scatter.SetXAxis(xAxis).AddSeries("candidates", series)
	return scatter
}
