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

package glean

import (
	"context"
	"fmt"
	"reflect"
	"runtime"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/antflydb/glean/lib/encoding"
	"github.com/antflydb/glean/lib/extraction"
	"github.com/antflydb/glean/lib/labels"
	"github.com/antflydb/glean/lib/pipeline"
)

// Ensure Pooled implements the Extractor interface.
var _ Extractor = (*Pooled)(nil)

// Extractor is the top-level zero-shot extraction interface.
type Extractor interface {
	// Extract runs one extraction request.
	Extract(ctx context.Context, req pipeline.Request) (*extraction.Result, error)

	// ExtractBatch runs extraction over several texts with shared labels
	// and schema. Results are positional.
	ExtractBatch(ctx context.Context, texts []string, labelNames []string, rels []labels.RelationType) ([]*extraction.Result, error)

	// Close releases all resources held by the extractor.
	Close() error
}

// EncoderFactory creates one encoder per pooled pipeline. Each call must
// return an independent encoder; encoders are never shared across pipelines.
type EncoderFactory func() (encoding.Encoder, error)

// PooledConfig holds configuration for creating a Pooled extractor.
type PooledConfig struct {
	// Name identifies the model in logs and metrics
	Name string

	// PoolSize determines how many concurrent requests can be processed
	// (0 = auto-detect from CPU count)
	PoolSize int

	// Pipeline holds the decode parameters (zero value = DefaultConfig)
	Pipeline pipeline.Config

	// PipelineOptions are passed through to every pooled pipeline
	PipelineOptions []pipeline.Option

	// Logger for logging (nil = no logging)
	Logger *zap.Logger
}

// Pooled manages multiple pipelines for concurrent extraction. A weighted
// semaphore bounds concurrency at the pool size and requests pick pipelines
// round-robin.
type Pooled struct {
	pipelineList []*pipeline.Pipeline
	sem          *semaphore.Weighted
	nextPipeline atomic.Uint64
	closed       atomic.Bool
	logger       *zap.Logger
	name         string
	poolSize     int
}

// NewPooled creates a pooled extractor, building one pipeline per slot via
// the encoder factory.
func NewPooled(factory EncoderFactory, cfg PooledConfig) (*Pooled, error) {
	if factory == nil {
		return nil, &extraction.ConfigurationError{
			Field:  "factory",
			Reason: "encoder factory is required",
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	// Auto-detect pool size from CPU count if not specified
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = min(runtime.NumCPU(), 4)
	}

	pipeCfg := cfg.Pipeline
	if reflect.DeepEqual(pipeCfg, pipeline.Config{}) {
		pipeCfg = pipeline.DefaultConfig()
	}

	name := cfg.Name
	if name == "" {
		name = "default"
	}

	logger.Info("Initializing pooled extractor",
		zap.String("model", name),
		zap.Int("poolSize", poolSize),
		zap.Int("max_width", pipeCfg.MaxWidth),
		zap.Float32("threshold", pipeCfg.Threshold),
		zap.Bool("flat_ner", pipeCfg.FlatNER),
		zap.Bool("multi_label", pipeCfg.MultiLabel))

	pipelineList := make([]*pipeline.Pipeline, poolSize)
	for i := 0; i < poolSize; i++ {
		encoder, err := factory()
		if err != nil {
			for j := 0; j < i; j++ {
				_ = pipelineList[j].Close()
			}
			logger.Error("Failed to create encoder",
				zap.Int("index", i),
				zap.Error(err))
			return nil, fmt.Errorf("creating encoder %d: %w", i, err)
		}

		opts := append([]pipeline.Option{pipeline.WithLogger(logger)}, cfg.PipelineOptions...)
		p, err := pipeline.New(encoder, pipeCfg, opts...)
		if err != nil {
			_ = encoder.Close()
			for j := 0; j < i; j++ {
				_ = pipelineList[j].Close()
			}
			return nil, fmt.Errorf("creating pipeline %d: %w", i, err)
		}
		pipelineList[i] = p
		logger.Debug("Created pipeline", zap.Int("index", i))
	}

	logger.Info("Successfully created pooled pipelines",
		zap.Int("count", poolSize),
		zap.String("model", name))

	return &Pooled{
		pipelineList: pipelineList,
		sem:          semaphore.NewWeighted(int64(poolSize)),
		logger:       logger,
		name:         name,
		poolSize:     poolSize,
	}, nil
}

// Name returns the model name used in logs and metrics.
func (p *Pooled) Name() string { return p.name }

// Extract implements Extractor. Thread-safe: the semaphore bounds
// concurrency at the pool size.
func (p *Pooled) Extract(ctx context.Context, req pipeline.Request) (*extraction.Result, error) {
	pipe, release, err := p.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	RecordExtractionRequest(p.name)
	start := time.Now()

	result, err := pipe.Extract(ctx, req)
	if err != nil {
		RecordRequestDuration("extract", p.name, "error", time.Since(start).Seconds())
		p.logger.Error("Extraction failed", zap.Error(err))
		return nil, err
	}

	RecordRequestDuration("extract", p.name, "ok", time.Since(start).Seconds())
	RecordEntityCreation(p.name, len(result.Entities))
	RecordRelationCreation(p.name, len(result.Relations))

	p.logger.Debug("Extraction completed",
		zap.Int("num_entities", len(result.Entities)),
		zap.Int("num_relations", len(result.Relations)),
		zap.Duration("duration", time.Since(start)))

	return result, nil
}

// ExtractBatch implements Extractor.
func (p *Pooled) ExtractBatch(ctx context.Context, texts []string, labelNames []string, rels []labels.RelationType) ([]*extraction.Result, error) {
	if len(texts) == 0 {
		return []*extraction.Result{}, nil
	}

	pipe, release, err := p.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	RecordExtractionRequest(p.name)
	start := time.Now()

	results, err := pipe.ExtractBatch(ctx, texts, labelNames, rels)
	if err != nil {
		RecordRequestDuration("extract_batch", p.name, "error", time.Since(start).Seconds())
		return nil, err
	}

	RecordRequestDuration("extract_batch", p.name, "ok", time.Since(start).Seconds())
	total := 0
	totalRels := 0
	for _, r := range results {
		total += len(r.Entities)
		totalRels += len(r.Relations)
	}
	RecordEntityCreation(p.name, total)
	RecordRelationCreation(p.name, totalRels)

	return results, nil
}

// acquire blocks for a free pipeline slot and returns it with its release.
func (p *Pooled) acquire(ctx context.Context) (*pipeline.Pipeline, func(), error) {
	if p.closed.Load() {
		return nil, nil, extraction.ErrClosed
	}

	waitStart := time.Now()
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, nil, fmt.Errorf("acquiring pipeline slot: %w", err)
	}
	RecordPoolWaitTime(time.Since(waitStart).Seconds())

	if p.closed.Load() {
		p.sem.Release(1)
		return nil, nil, extraction.ErrClosed
	}

	// Round-robin pipeline selection
	idx := int(p.nextPipeline.Add(1) % uint64(p.poolSize))
	p.logger.Debug("Using pipeline", zap.Int("pipelineIndex", idx))

	return p.pipelineList[idx], func() { p.sem.Release(1) }, nil
}

// Close implements Extractor. Subsequent calls return nil; in-flight
// requests already holding a pipeline finish normally.
func (p *Pooled) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}

	p.logger.Info("Closing pooled extractor", zap.String("model", p.name))
	var lastErr error
	for i, pipe := range p.pipelineList {
		if err := pipe.Close(); err != nil {
			p.logger.Warn("Failed to close pipeline",
				zap.Int("index", i),
				zap.Error(err))
			lastErr = err
		}
	}
	p.pipelineList = nil
	return lastErr
}
