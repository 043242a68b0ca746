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

// Package pipeline orchestrates one extraction pass: text to word tokens,
// tokens to span candidates, candidates through the encoder to a score
// grid, and the grid through the span and relation decoders to a Result.
package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/antflydb/glean/lib/encoding"
	"github.com/antflydb/glean/lib/extraction"
	"github.com/antflydb/glean/lib/labels"
	"github.com/antflydb/glean/lib/relations"
	"github.com/antflydb/glean/lib/scores"
	"github.com/antflydb/glean/lib/spans"
	"github.com/antflydb/glean/lib/tokens"
)

// Request is one extraction task.
type Request struct {
	// Text is the input text
	Text string
	// Labels is the entity vocabulary (falls back to Config.DefaultLabels)
	Labels []string
	// Relations, when non-empty, requests relation extraction under this
	// schema
	Relations []labels.RelationType
}

// Pipeline runs extraction over a single encoder. Not safe for concurrent
// use when the underlying encoder isn't; pool pipelines instead of sharing.
type Pipeline struct {
	cfg      Config
	encoder  encoding.Encoder
	splitter tokens.Splitter
	counter  tokens.Counter
	logger   *zap.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger (default: no logging).
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithSplitter sets the word splitter (default: WhitespaceSplitter).
func WithSplitter(s tokens.Splitter) Option {
	return func(p *Pipeline) { p.splitter = s }
}

// WithCounter sets a subword counter used to budget MaxLength. Without one,
// the word count itself is capped at MaxLength.
func WithCounter(c tokens.Counter) Option {
	return func(p *Pipeline) { p.counter = c }
}

// New validates the config and builds a pipeline around an encoder.
func New(encoder encoding.Encoder, cfg Config, opts ...Option) (*Pipeline, error) {
	if encoder == nil {
		return nil, &extraction.ConfigurationError{
			Field:  "encoder",
			Reason: "encoder is required",
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Pipeline{
		cfg:      cfg,
		encoder:  encoder,
		splitter: tokens.WhitespaceSplitter{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Close releases the encoder.
func (p *Pipeline) Close() error {
	return p.encoder.Close()
}

// Extract runs the full decode for one request. Degenerate text (empty, or
// whitespace only) yields an empty Result, never an error; invalid labels,
// schema, or score shapes do error.
func (p *Pipeline) Extract(ctx context.Context, req Request) (*extraction.Result, error) {
	labelNames := req.Labels
	if len(labelNames) == 0 {
		labelNames = p.cfg.DefaultLabels
	}
	vocab, err := labels.NewVocabulary(labelNames)
	if err != nil {
		return nil, err
	}

	var schema *labels.Schema
	if len(req.Relations) > 0 {
		schema, err = labels.NewSchema(vocab, req.Relations)
		if err != nil {
			return nil, err
		}
	}

	toks := p.splitter.Split(req.Text)
	toks = p.truncate(toks, p.sequenceBudget(vocab.Labels()))
	if len(toks) == 0 {
		return &extraction.Result{}, nil
	}

	p.logger.Debug("Extracting",
		zap.Int("num_tokens", len(toks)),
		zap.Int("num_labels", vocab.Len()),
		zap.Bool("relations", schema != nil))

	decoded, entities, err := p.decodeSpans(ctx, req.Text, toks, vocab)
	if err != nil {
		return nil, err
	}

	result := &extraction.Result{Entities: entities}

	if schema != nil && len(entities) > 1 {
		rels, err := p.decodeRelations(ctx, toks, decoded, entities, schema)
		if err != nil {
			return nil, err
		}
		result.Relations = rels
	}

	if p.cfg.SortEntities {
		extraction.SortEntitiesByOffset(result.Entities)
	}

	return result, nil
}

// ExtractBatch runs Extract over each text with shared labels and schema.
// Results are positional: result i belongs to text i.
func (p *Pipeline) ExtractBatch(ctx context.Context, texts []string, labelNames []string, rels []labels.RelationType) ([]*extraction.Result, error) {
	results := make([]*extraction.Result, len(texts))
	for i, text := range texts {
		res, err := p.Extract(ctx, Request{Text: text, Labels: labelNames, Relations: rels})
		if err != nil {
			return nil, fmt.Errorf("processing text %d: %w", i, err)
		}
		results[i] = res
	}
	return results, nil
}

// decodeSpans runs the encoder and the span decoder. It returns the decoded
// spans (token indices) and their formatted entities in matching order.
func (p *Pipeline) decodeSpans(ctx context.Context, text string, toks []tokens.Token, vocab *labels.Vocabulary) ([]spans.Scored, []extraction.Entity, error) {
	numTokens := len(toks)
	numLabels := vocab.Len()
	maxWidth := p.cfg.MaxWidth

	logits, shape, err := p.encoder.SpanLogits(ctx, toks, vocab.Labels())
	if err != nil {
		return nil, nil, fmt.Errorf("scoring spans: %w", err)
	}

	// The span grid must agree exactly with what the candidate generator
	// and vocabulary imply. A silently different layout would misattribute
	// every score, so any disagreement is fatal.
	expected := []int{1, numTokens, maxWidth, numLabels}
	if len(shape) != 4 ||
		shape[0] != 1 || shape[1] != numTokens ||
		shape[2] != maxWidth || shape[3] != numLabels {
		return nil, nil, &extraction.ShapeMismatchError{Expected: expected, Actual: shape}
	}
	if len(logits) != numTokens*maxWidth*numLabels {
		return nil, nil, &extraction.ShapeMismatchError{
			Expected: expected,
			Actual:   []int{len(logits)},
		}
	}

	// Compact the fixed [tokens x maxWidth] grid down to the valid
	// candidates: slots whose span runs past the end of text are masked and
	// carry no meaning.
	cands := spans.Candidates(numTokens, maxWidth)
	compact := make([]float32, 0, len(cands)*numLabels)
	for _, c := range cands {
		base := spans.GridSlot(c, maxWidth) * numLabels
		compact = append(compact, logits[base:base+numLabels]...)
	}
	grid, err := scores.NewGrid(compact, len(cands), numLabels)
	if err != nil {
		return nil, nil, err
	}

	var scoredAll []spans.Scored
	for row, c := range cands {
		for col := 0; col < numLabels; col++ {
			prob := grid.Probability(row, col)
			if prob >= p.cfg.Threshold {
				scoredAll = append(scoredAll, spans.Scored{
					Start: c.Start,
					End:   c.End,
					Label: col,
					Prob:  prob,
				})
			}
		}
	}

	decoder := spans.Decoder{
		Threshold:  p.cfg.Threshold,
		MultiLabel: p.cfg.MultiLabel,
	}
	if !p.cfg.FlatNER {
		decoder.Policy = spans.NestedPolicy{}
	}
	decoded := decoder.Decode(scoredAll)

	entities := extraction.FormatEntities(text, toks, decoded, vocab.Labels())
	return decoded, entities, nil
}

// decodeRelations scores schema-valid entity pairs and decodes relations.
// decoded and entities must be index-aligned.
func (p *Pipeline) decodeRelations(ctx context.Context, toks []tokens.Token, decoded []spans.Scored, entities []extraction.Entity, schema *labels.Schema) ([]extraction.Relation, error) {
	pairs := relations.Pairs(entities, schema)
	if len(pairs) == 0 {
		return nil, nil
	}

	logits, err := p.encoder.PairLogits(ctx, toks, decoded, pairs, schema.Names())
	if err != nil {
		return nil, fmt.Errorf("scoring relations: %w", err)
	}

	grid, err := scores.NewGrid(logits, len(pairs), schema.Len())
	if err != nil {
		return nil, err
	}

	decoder := relations.Decoder{Threshold: p.cfg.RelationThreshold}
	return decoder.Decode(entities, pairs, grid, schema)
}

// sequenceBudget returns the sequence positions left for text after the
// encoder's fixed overhead (label prompt, special tokens). The encoder caps
// the whole sequence at MaxLength; truncating against the same number here
// would hand it more text than fits and shrink the span grid under the
// shape check.
func (p *Pipeline) sequenceBudget(labelNames []string) int {
	budget := p.cfg.MaxLength
	if sizer, ok := p.encoder.(encoding.PromptSizer); ok {
		budget -= sizer.PromptOverhead(labelNames)
	}
	if budget < 1 {
		budget = 1
	}
	return budget
}

// truncate enforces the sequence budget. With a subword counter the budget
// is subword tokens; otherwise words.
func (p *Pipeline) truncate(toks []tokens.Token, budget int) []tokens.Token {
	if len(toks) > budget {
		toks = toks[:budget]
	}
	if p.counter == nil {
		return toks
	}

	total := 0
	for i, tok := range toks {
		n := p.counter.CountTokens(tok.Text)
		if n < 1 {
			n = 1
		}
		if total+n > budget {
			p.logger.Debug("Truncating input to sequence budget",
				zap.Int("kept_tokens", i),
				zap.Int("dropped_tokens", len(toks)-i))
			return toks[:i]
		}
		total += n
	}
	return toks
}
