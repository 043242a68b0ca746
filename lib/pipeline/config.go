// Copyright 2025 Antfly, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pipeline

import (
	"os"
	"path/filepath"

	"github.com/bytedance/sonic"

	"github.com/antflydb/glean/lib/extraction"
)

// Config holds decode parameters for a pipeline. The zero value is not
// usable; start from DefaultConfig or LoadConfig.
type Config struct {
	// MaxWidth is the maximum entity span width in tokens
	MaxWidth int `json:"max_width"`
	// MaxLength is the maximum subword sequence length
	MaxLength int `json:"max_len"`
	// Threshold is the probability threshold for entity detection (0.0-1.0)
	Threshold float32 `json:"threshold"`
	// RelationThreshold is the probability threshold for relation detection,
	// independent of Threshold
	RelationThreshold float32 `json:"relation_threshold"`
	// FlatNER if true forbids nested/overlapping entities (default: true)
	FlatNER bool `json:"flat_ner"`
	// MultiLabel if true allows a span to carry multiple labels
	MultiLabel bool `json:"multi_label"`
	// SortEntities if true re-sorts entities into reading order; when false
	// they stay in decode (acceptance) order. DefaultConfig turns this on:
	// callers indexing or displaying text almost always want position order,
	// and the per-entity probability is still there for anyone who needs the
	// acceptance ranking back.
	SortEntities bool `json:"sort_entities"`
	// DefaultLabels are used when a request supplies no labels
	DefaultLabels []string `json:"labels"`
	// WordsJoiner joins words when rebuilding span text (typically space)
	WordsJoiner string `json:"words_joiner"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxWidth:          12,
		MaxLength:         512,
		Threshold:         0.5,
		RelationThreshold: 0.5,
		FlatNER:           true,
		MultiLabel:        false,
		SortEntities:      true,
		DefaultLabels:     []string{"person", "organization", "location", "date", "product"},
		WordsJoiner:       " ",
	}
}

// LoadConfig loads pipeline configuration from a model directory's
// gliner_config.json. Missing file or fields fall back to defaults.
func LoadConfig(modelPath string) Config {
	config := DefaultConfig()

	data, err := os.ReadFile(filepath.Join(modelPath, "gliner_config.json"))
	if err != nil {
		return config
	}

	if err := sonic.Unmarshal(data, &config); err != nil {
		return DefaultConfig()
	}
	if config.WordsJoiner == "" {
		config.WordsJoiner = " "
	}

	return config
}

// Validate checks parameter ranges, reporting the first violation as a
// *extraction.ConfigurationError.
func (c Config) Validate() error {
	if c.MaxWidth < 1 {
		return &extraction.ConfigurationError{
			Field:  "max_width",
			Reason: "must be at least 1",
		}
	}
	if c.MaxLength < 1 {
		return &extraction.ConfigurationError{
			Field:  "max_len",
			Reason: "must be at least 1",
		}
	}
	if c.Threshold < 0 || c.Threshold > 1 {
		return &extraction.ConfigurationError{
			Field:  "threshold",
			Reason: "must be in [0, 1]",
		}
	}
	if c.RelationThreshold < 0 || c.RelationThreshold > 1 {
		return &extraction.ConfigurationError{
			Field:  "relation_threshold",
			Reason: "must be in [0, 1]",
		}
	}
	return nil
}
