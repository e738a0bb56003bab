// Package config loads engine tuning parameters from JSON. All fields
// are pointers so a partial file only overrides what it names; omitted
// fields keep the engine defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/framelens/internal/infer"
)

// TuningConfig is the root tuning document. The schema mirrors the
// engine's exported fields plus the capture port filter, so one JSON
// file configures a whole run.
type TuningConfig struct {
	MaxDepth           *int     `json:"max_depth,omitempty"`
	TopK               *int     `json:"top_k,omitempty"`
	MinGainEpsilonBits *float64 `json:"min_gain_epsilon_bits,omitempty"`
	MinSduSize         *int     `json:"min_sdu_size,omitempty"`
	UDPPort            *int     `json:"udp_port,omitempty"`
}

// maxFileSize caps tuning files at 1MB as a safety check.
const maxFileSize = 1 * 1024 * 1024

// LoadTuningConfig loads a TuningConfig from a JSON file. The path must
// have a .json extension and the file must be under the size cap.
// Partial configs are safe: absent fields stay nil.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	raw, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg TuningConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", cleanPath, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the engine cannot run with.
func (c *TuningConfig) Validate() error {
	if c.MaxDepth != nil && *c.MaxDepth < 1 {
		return fmt.Errorf("max_depth must be >= 1, got %d", *c.MaxDepth)
	}
	if c.TopK != nil && *c.TopK < 1 {
		return fmt.Errorf("top_k must be >= 1, got %d", *c.TopK)
	}
	if c.MinGainEpsilonBits != nil && *c.MinGainEpsilonBits < 0 {
		return fmt.Errorf("min_gain_epsilon_bits must be >= 0, got %g", *c.MinGainEpsilonBits)
	}
	if c.MinSduSize != nil && *c.MinSduSize < 1 {
		return fmt.Errorf("min_sdu_size must be >= 1, got %d", *c.MinSduSize)
	}
	if c.UDPPort != nil && (*c.UDPPort < 0 || *c.UDPPort > 65535) {
		return fmt.Errorf("udp_port must be in 0..65535, got %d", *c.UDPPort)
	}
	return nil
}

// ApplyTo overrides the engine fields the config names.
func (c *TuningConfig) ApplyTo(e *infer.Engine) {
	if c.MaxDepth != nil {
		e.MaxDepth = *c.MaxDepth
	}
	if c.TopK != nil {
		e.TopK = *c.TopK
	}
	if c.MinGainEpsilonBits != nil {
		e.MinGainEpsilon = *c.MinGainEpsilonBits
	}
	if c.MinSduSize != nil {
		e.MinSduSize = *c.MinSduSize
	}
}
