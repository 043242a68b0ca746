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
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/antflydb/glean/lib/extraction"
	"github.com/antflydb/glean/lib/labels"
	"github.com/antflydb/glean/lib/pipeline"
)

// countingExtractor fabricates one entity per call and counts invocations.
type countingExtractor struct {
	calls  atomic.Int64
	err    error
	closed bool
}

func (e *countingExtractor) Extract(ctx context.Context, req pipeline.Request) (*extraction.Result, error) {
	e.calls.Add(1)
	if e.err != nil {
		return nil, e.err
	}
	return &extraction.Result{
		Entities: []extraction.Entity{
			{Text: req.Text, Label: "person", Score: 0.9},
		},
	}, nil
}

func (e *countingExtractor) ExtractBatch(ctx context.Context, texts []string, labelNames []string, rels []labels.RelationType) ([]*extraction.Result, error) {
	results := make([]*extraction.Result, len(texts))
	for i, text := range texts {
		res, err := e.Extract(ctx, pipeline.Request{Text: text, Labels: labelNames, Relations: rels})
		if err != nil {
			return nil, err
		}
		results[i] = res
	}
	return results, nil
}

func (e *countingExtractor) Close() error {
	e.closed = true
	return nil
}

func TestCachedExtractorHit(t *testing.T) {
	ec := NewExtractionCache(zap.NewNop())
	defer ec.Close()

	inner := &countingExtractor{}
	cached := ec.Wrap(inner, "test-model")

	req := pipeline.Request{Text: "Ada", Labels: []string{"person"}}

	first, err := cached.Extract(context.Background(), req)
	require.NoError(t, err)
	second, err := cached.Extract(context.Background(), req)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.EqualValues(t, 1, inner.calls.Load())

	stats := cached.Stats()
	assert.Equal(t, "test-model", stats.Model)
	assert.EqualValues(t, 1, stats.Hits)
	assert.EqualValues(t, 1, stats.Misses)
}

func TestCachedExtractorKeyCoversInputs(t *testing.T) {
	ec := NewExtractionCache(zap.NewNop())
	defer ec.Close()

	inner := &countingExtractor{}
	cached := ec.Wrap(inner, "test-model")

	base := pipeline.Request{Text: "Ada", Labels: []string{"person"}}
	_, err := cached.Extract(context.Background(), base)
	require.NoError(t, err)

	variants := []pipeline.Request{
		{Text: "Grace", Labels: []string{"person"}},
		{Text: "Ada", Labels: []string{"organization"}},
		{Text: "Ada", Labels: []string{"person"}, Relations: []labels.RelationType{
			{Name: "works_for", SubjectLabels: []string{"person"}, ObjectLabels: []string{"organization"}},
		}},
	}
	for _, req := range variants {
		_, err := cached.Extract(context.Background(), req)
		require.NoError(t, err)
	}

	// Every variant missed: text, labels, and schema are all part of the key.
	assert.EqualValues(t, 4, inner.calls.Load())
}

func TestCachedExtractorSameCacheSharedByName(t *testing.T) {
	ec := NewExtractionCache(zap.NewNop())
	defer ec.Close()

	innerA := &countingExtractor{}
	innerB := &countingExtractor{}
	cachedA := ec.Wrap(innerA, "model-a")
	cachedB := ec.Wrap(innerB, "model-b")

	req := pipeline.Request{Text: "Ada", Labels: []string{"person"}}

	_, err := cachedA.Extract(context.Background(), req)
	require.NoError(t, err)
	_, err = cachedB.Extract(context.Background(), req)
	require.NoError(t, err)

	// Same request against different models must not collide.
	assert.EqualValues(t, 1, innerA.calls.Load())
	assert.EqualValues(t, 1, innerB.calls.Load())
}

func TestCachedExtractorError(t *testing.T) {
	ec := NewExtractionCache(zap.NewNop())
	defer ec.Close()

	boom := errors.New("session crashed")
	inner := &countingExtractor{err: boom}
	cached := ec.Wrap(inner, "test-model")

	req := pipeline.Request{Text: "Ada", Labels: []string{"person"}}

	_, err := cached.Extract(context.Background(), req)
	require.ErrorIs(t, err, boom)

	// Errors are not cached; the next call reaches the extractor again.
	_, err = cached.Extract(context.Background(), req)
	require.ErrorIs(t, err, boom)
	assert.EqualValues(t, 2, inner.calls.Load())
}

func TestCachedExtractorBatchSharesEntries(t *testing.T) {
	ec := NewExtractionCache(zap.NewNop())
	defer ec.Close()

	inner := &countingExtractor{}
	cached := ec.Wrap(inner, "test-model")

	texts := []string{"Ada", "Grace", "Ada"}
	results, err := cached.ExtractBatch(context.Background(), texts, []string{"person"}, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)

	// The duplicate text is served from cache.
	assert.EqualValues(t, 2, inner.calls.Load())
	assert.Same(t, results[0], results[2])
}

func TestCachedExtractorClose(t *testing.T) {
	ec := NewExtractionCache(zap.NewNop())
	defer ec.Close()

	inner := &countingExtractor{}
	cached := ec.Wrap(inner, "test-model")

	require.NoError(t, cached.Close())
	assert.True(t, inner.closed)
}
