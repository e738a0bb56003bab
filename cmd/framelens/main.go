// Command framelens infers the layered framing structure of an unknown
// datagram protocol from a pcap capture and writes the ranked
// hypothesis stack as JSON.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"

	"github.com/banshee-data/framelens/internal/capture"
	"github.com/banshee-data/framelens/internal/config"
	"github.com/banshee-data/framelens/internal/infer"
	"github.com/banshee-data/framelens/internal/infer/corpus"
	"github.com/banshee-data/framelens/internal/infer/plugins"
	"github.com/banshee-data/framelens/internal/report"
	"github.com/banshee-data/framelens/internal/runstore"
)

var (
	pcapFile   = flag.String("pcap", "", "pcap file to analyse (required)")
	outFile    = flag.String("out", "", "output JSON path (required)")
	dbFile     = flag.String("db", "", "optional sqlite run store path")
	reportFile = flag.String("report", "", "optional HTML report path")
	configFile = flag.String("config", "", "optional tuning config JSON path")
	maxDepth   = flag.Int("max-depth", infer.DefaultMaxDepth, "maximum recursion depth")
	topK       = flag.Int("top-k", infer.DefaultTopK, "hypotheses kept per layer")
	udpPort    = flag.Int("port", 0, "UDP port filter (0 = all UDP traffic)")
)

// output is the top-level JSON document written to -out.
type output struct {
	Source     string                 `json:"source"`
	PduCount   int                    `json:"pdu_count"`
	TotalBytes int                    `json:"total_bytes"`
	LayerCount int                    `json:"layer_count"`
	RunID      string                 `json:"run_id,omitempty"`
	Result     *infer.InferenceResult `json:"result"`
}

func main() {
	flag.Parse()

	if *pcapFile == "" || *outFile == "" {
		flag.Usage()
		os.Exit(2)
	}

	engine := infer.NewEngine()
	engine.MaxDepth = *maxDepth
	engine.TopK = *topK
	port := *udpPort

	if *configFile != "" {
		cfg, err := config.LoadTuningConfig(*configFile)
		if err != nil {
			log.Fatalf("failed to load tuning config: %v", err)
		}
		cfg.ApplyTo(engine)
		if cfg.UDPPort != nil {
			port = *cfg.UDPPort
		}
	}

	log.Printf("loading capture: %s", *pcapFile)
	flow, err := capture.ReadFile(*pcapFile, port)
	if err != nil {
		log.Fatalf("capture failed: %v", err)
	}

	c := corpus.FromDatagrams(flow.Datagrams, nil)
	log.Printf("corpus built: %d PDUs, %d bytes", c.Len(), c.TotalBytes())

	registry := plugins.DefaultRegistry()
	result := engine.Infer(c, registry)
	log.Printf("inference complete: %d layers", len(result.Layers))

	doc := output{
		Source:     c.Meta.Source,
		PduCount:   c.Len(),
		TotalBytes: c.TotalBytes(),
		LayerCount: len(result.Layers),
		Result:     result,
	}

	if *dbFile != "" {
		store, err := runstore.Open(*dbFile)
		if err != nil {
			log.Fatalf("failed to open run store: %v", err)
		}
		defer store.Close()

		runID, err := store.SaveRun(result, engine)
		if err != nil {
			log.Fatalf("failed to save run: %v", err)
		}
		doc.RunID = runID
		log.Printf("run saved: %s", runID)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		log.Fatalf("failed to marshal result: %v", err)
	}
	if err := os.WriteFile(*outFile, data, 0o644); err != nil {
		log.Fatalf("failed to write %s: %v", *outFile, err)
	}
	log.Printf("results written: %s", *outFile)

	if *reportFile != "" {
		if err := report.WriteFile(*reportFile, c, result); err != nil {
			log.Fatalf("failed to write report: %v", err)
		}
		log.Printf("report written: %s", *reportFile)
	}
}
