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

// Package glean provides zero-shot entity and relation extraction: callers
// name the entity types and relation schema at request time, and the decode
// pipeline turns encoder span scores into entities and typed relations.
//
// The numeric runtime is pluggable behind encoding.Session; glean ships the
// decode pipeline, pooling, caching, and model artifact tooling.
package glean

import (
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/antflydb/glean/lib/encoding"
	"github.com/antflydb/glean/lib/modelregistry"
	"github.com/antflydb/glean/lib/pipeline"
	"github.com/antflydb/glean/lib/tokens"
)

// OpenOption configures OpenModel.
type OpenOption func(*openConfig)

type openConfig struct {
	poolSize int
	logger   *zap.Logger
	name     string
}

// WithPoolSize sets the number of pooled pipelines (0 = auto).
func WithPoolSize(n int) OpenOption {
	return func(c *openConfig) { c.poolSize = n }
}

// WithLogger sets the logger (default: no logging).
func WithLogger(logger *zap.Logger) OpenOption {
	return func(c *openConfig) { c.logger = logger }
}

// WithName overrides the model name used in logs and metrics (default: the
// model directory base name).
func WithName(name string) OpenOption {
	return func(c *openConfig) { c.name = name }
}

// OpenModel builds a pooled extractor from a local GLiNER model directory
// and a session factory for the numeric runtime. The directory's
// gliner_config.json supplies the decode parameters; its vocab.txt, when
// present, supplies the subword tokenizer.
func OpenModel(modelPath string, sessions encoding.SessionFactory, opts ...OpenOption) (*Pooled, error) {
	cfg := &openConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.name == "" {
		cfg.name = filepath.Base(modelPath)
	}

	modelFile := modelregistry.FindONNXFile(modelPath, []string{
		"model.onnx",
		"model_quantized.onnx",
		"gliner.onnx",
	})
	if modelFile == "" {
		return nil, fmt.Errorf("no ONNX model file found in %s", modelPath)
	}

	pipeCfg := pipeline.LoadConfig(modelPath)
	if err := pipeCfg.Validate(); err != nil {
		return nil, err
	}

	subword, err := tokens.NewWordPieceCounter(filepath.Join(modelPath, "vocab.txt"))
	if err != nil {
		return nil, fmt.Errorf("loading tokenizer: %w", err)
	}

	// Multitask models carry the relation-capable span head.
	multitask := strings.Contains(strings.ToLower(filepath.Base(modelPath)), "multitask")

	factory := func() (encoding.Encoder, error) {
		session, err := sessions.CreateSession(modelFile)
		if err != nil {
			return nil, fmt.Errorf("creating session: %w", err)
		}
		return encoding.NewSessionEncoder(session, subword, encoding.SessionEncoderConfig{
			MaxWidth:    pipeCfg.MaxWidth,
			MaxLength:   pipeCfg.MaxLength,
			Multitask:   multitask,
			WordsJoiner: pipeCfg.WordsJoiner,
		}), nil
	}

	return NewPooled(factory, PooledConfig{
		Name:            cfg.name,
		PoolSize:        cfg.poolSize,
		Pipeline:        pipeCfg,
		PipelineOptions: []pipeline.Option{pipeline.WithCounter(subword)},
		Logger:          cfg.logger,
	})
}
