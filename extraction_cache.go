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
	"encoding/binary"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/antflydb/glean/lib/extraction"
	"github.com/antflydb/glean/lib/labels"
	"github.com/antflydb/glean/lib/pipeline"
)

// ExtractionCacheTTL is the default TTL for cached extraction results
const ExtractionCacheTTL = 2 * time.Minute

// CachedExtractor wraps an Extractor with caching support. The cache key
// covers the text, the label vocabulary, and the relation schema: two
// requests hit the same entry only when the full decode inputs match.
type CachedExtractor struct {
	inner   Extractor
	name    string
	cache   *ttlcache.Cache[string, *extraction.Result]
	sfGroup *singleflight.Group
	logger  *zap.Logger

	// Metrics
	hits   atomic.Uint64
	misses atomic.Uint64
	sfHits atomic.Uint64
}

// NewCachedExtractor wraps an extractor with caching
func NewCachedExtractor(
	inner Extractor,
	name string,
	cache *ttlcache.Cache[string, *extraction.Result],
	logger *zap.Logger,
) *CachedExtractor {
	return &CachedExtractor{
		inner:   inner,
		name:    name,
		cache:   cache,
		sfGroup: &singleflight.Group{},
		logger:  logger,
	}
}

// Extract runs one extraction request with caching support
func (c *CachedExtractor) Extract(ctx context.Context, req pipeline.Request) (*extraction.Result, error) {
	key := c.cacheKey(req)

	// Check cache first
	if item := c.cache.Get(key); item != nil {
		c.hits.Add(1)
		RecordCacheHit("extraction")
		c.logger.Debug("Extraction cache hit",
			zap.String("model", c.name))
		return item.Value(), nil
	}

	// Use singleflight to deduplicate concurrent identical requests
	result, err, shared := c.sfGroup.Do(key, func() (any, error) {
		c.misses.Add(1)
		RecordCacheMiss("extraction")

		start := time.Now()
		res, err := c.inner.Extract(ctx, req)
		if err != nil {
			return nil, err
		}

		c.cache.Set(key, res, ttlcache.DefaultTTL)

		c.logger.Debug("Extraction completed and cached",
			zap.String("model", c.name),
			zap.Duration("duration", time.Since(start)))

		return res, nil
	})

	if err != nil {
		return nil, err
	}

	if shared {
		c.sfHits.Add(1)
		c.logger.Debug("Singleflight hit for extraction request",
			zap.String("model", c.name))
	}

	return result.(*extraction.Result), nil
}

// ExtractBatch runs extraction per text, each one cached independently so
// overlapping batches share entries.
func (c *CachedExtractor) ExtractBatch(ctx context.Context, texts []string, labelNames []string, rels []labels.RelationType) ([]*extraction.Result, error) {
	results := make([]*extraction.Result, len(texts))
	for i, text := range texts {
		res, err := c.Extract(ctx, pipeline.Request{Text: text, Labels: labelNames, Relations: rels})
		if err != nil {
			return nil, fmt.Errorf("processing text %d: %w", i, err)
		}
		results[i] = res
	}
	return results, nil
}

// cacheKey generates a unique cache key from the full decode inputs
func (c *CachedExtractor) cacheKey(req pipeline.Request) string {
	h := xxhash.New()

	// Include model name
	_, _ = h.WriteString(c.name)
	_, _ = h.WriteString("|")

	_, _ = h.WriteString("x:")
	_, _ = h.WriteString(req.Text)
	_, _ = h.WriteString("|")

	for i, label := range req.Labels {
		_, _ = h.WriteString("l")
		// Use index to ensure order matters
		_, _ = h.Write([]byte{byte(i >> 8), byte(i)})
		_, _ = h.WriteString(":")
		_, _ = h.WriteString(label)
		_, _ = h.WriteString("|")
	}

	for i, rel := range req.Relations {
		_, _ = h.WriteString("r")
		_, _ = h.Write([]byte{byte(i >> 8), byte(i)})
		_, _ = h.WriteString(":")
		_, _ = h.WriteString(rel.Name)
		for _, s := range rel.SubjectLabels {
			_, _ = h.WriteString(",s=")
			_, _ = h.WriteString(s)
		}
		for _, o := range rel.ObjectLabels {
			_, _ = h.WriteString(",o=")
			_, _ = h.WriteString(o)
		}
		_, _ = h.WriteString("|")
	}

	// Convert uint64 hash to string key
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], h.Sum64())
	return string(buf[:])
}

// Close closes the underlying extractor
func (c *CachedExtractor) Close() error {
	return c.inner.Close()
}

// Stats returns cache statistics for this extractor
func (c *CachedExtractor) Stats() ExtractionCacheStats {
	return ExtractionCacheStats{
		Model:            c.name,
		Hits:             c.hits.Load(),
		Misses:           c.misses.Load(),
		SingleflightHits: c.sfHits.Load(),
	}
}

// ExtractionCacheStats holds cache statistics for an extractor
type ExtractionCacheStats struct {
	Model            string `json:"model"`
	Hits             uint64 `json:"hits"`
	Misses           uint64 `json:"misses"`
	SingleflightHits uint64 `json:"singleflight_hits"`
}

// ExtractionCache manages caching for multiple extractors
type ExtractionCache struct {
	cache  *ttlcache.Cache[string, *extraction.Result]
	logger *zap.Logger
	cancel context.CancelFunc
}

// NewExtractionCache creates a new extraction cache
func NewExtractionCache(logger *zap.Logger) *ExtractionCache {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, *extraction.Result](ExtractionCacheTTL),
	)
	go cache.Start()

	ctx, cancel := context.WithCancel(context.Background())
	ec := &ExtractionCache{
		cache:  cache,
		logger: logger,
		cancel: cancel,
	}

	// Log cache stats periodically
	go ec.logStats(ctx)

	return ec
}

// Wrap wraps an extractor with caching
func (ec *ExtractionCache) Wrap(inner Extractor, name string) *CachedExtractor {
	return NewCachedExtractor(inner, name, ec.cache, ec.logger.Named(name))
}

// Close stops the cache
func (ec *ExtractionCache) Close() {
	ec.cancel()
	ec.cache.Stop()
}

// logStats logs cache statistics periodically
func (ec *ExtractionCache) logStats(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics := ec.cache.Metrics()
			if metrics.Hits > 0 || metrics.Misses > 0 {
				hitRate := float64(0)
				total := metrics.Hits + metrics.Misses
				if total > 0 {
					hitRate = float64(metrics.Hits) / float64(total) * 100
				}
				ec.logger.Info("Extraction cache stats",
					zap.Uint64("hits", metrics.Hits),
					zap.Uint64("misses", metrics.Misses),
					zap.Float64("hit_rate_pct", hitRate),
					zap.Int("items", ec.cache.Len()))
			}
		}
	}
}

// Stats returns global cache statistics
func (ec *ExtractionCache) Stats() map[string]any {
	metrics := ec.cache.Metrics()
	return map[string]any{
		"hits":   metrics.Hits,
		"misses": metrics.Misses,
		"items":  ec.cache.Len(),
	}
}
