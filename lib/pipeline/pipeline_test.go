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
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antflydb/glean/lib/extraction"
	"github.com/antflydb/glean/lib/labels"
	"github.com/antflydb/glean/lib/relations"
	"github.com/antflydb/glean/lib/spans"
	"github.com/antflydb/glean/lib/tokens"
)

// spanScore seeds one (span, label) grid cell in the fake encoder.
type spanScore struct {
	start int // word token index
	width int // span width in tokens
	label int // label index
	prob  float64
}

// fakeEncoder emits a deterministic span grid so decode behavior can be
// tested without a model session.
type fakeEncoder struct {
	maxWidth   int
	spanScores []spanScore

	pairLogits []float32 // row-major [pairs x relations]
	pairErr    error

	badShape       []int // overrides the reported shape when set
	promptOverhead int   // fixed sequence positions reserved per request
	spanCalls      int
	lastNumTokens  int
	pairCalls      int
	closed         bool
}

func (f *fakeEncoder) PromptOverhead(labelNames []string) int {
	return f.promptOverhead
}

func (f *fakeEncoder) SpanLogits(ctx context.Context, toks []tokens.Token, labelNames []string) ([]float32, []int, error) {
	f.spanCalls++
	f.lastNumTokens = len(toks)

	numTokens := len(toks)
	numLabels := len(labelNames)
	logits := make([]float32, numTokens*f.maxWidth*numLabels)
	for i := range logits {
		logits[i] = logit(0.01)
	}
	for _, s := range f.spanScores {
		idx := s.start*f.maxWidth*numLabels + (s.width-1)*numLabels + s.label
		logits[idx] = logit(s.prob)
	}

	shape := []int{1, numTokens, f.maxWidth, numLabels}
	if f.badShape != nil {
		shape = f.badShape
	}
	return logits, shape, nil
}

func (f *fakeEncoder) PairLogits(ctx context.Context, toks []tokens.Token, mentions []spans.Scored, pairs []relations.Pair, relationNames []string) ([]float32, error) {
	f.pairCalls++
	if f.pairErr != nil {
		return nil, f.pairErr
	}
	return f.pairLogits, nil
}

func (f *fakeEncoder) Close() error {
	f.closed = true
	return nil
}

// logit inverts the sigmoid so fixtures can be written in probabilities.
func logit(p float64) float32 {
	return float32(math.Log(p / (1 - p)))
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxWidth = 4
	return cfg
}

func TestExtractSingleEntity(t *testing.T) {
	enc := &fakeEncoder{
		maxWidth: 4,
		spanScores: []spanScore{
			// "James Bond": tokens 2..3, label 0 (person)
			{start: 2, width: 2, label: 0, prob: 0.90},
		},
	}
	p, err := New(enc, testConfig())
	require.NoError(t, err)

	result, err := p.Extract(context.Background(), Request{
		Text:   "I am James Bond",
		Labels: []string{"person", "organization"},
	})
	require.NoError(t, err)

	require.Len(t, result.Entities, 1)
	got := result.Entities[0]
	assert.Equal(t, "James Bond", got.Text)
	assert.Equal(t, "person", got.Label)
	assert.Equal(t, 5, got.Start)
	assert.Equal(t, 15, got.End)
	assert.InDelta(t, 0.90, got.Score, 1e-4)
	assert.Empty(t, result.Relations)
}

func TestExtractEmptyText(t *testing.T) {
	enc := &fakeEncoder{maxWidth: 4}
	p, err := New(enc, testConfig())
	require.NoError(t, err)

	for _, text := range []string{"", "   \t\n "} {
		result, err := p.Extract(context.Background(), Request{Text: text, Labels: []string{"person"}})
		require.NoError(t, err)
		assert.Empty(t, result.Entities)
		assert.Empty(t, result.Relations)
	}
	// Degenerate input never reaches the encoder.
	assert.Zero(t, enc.spanCalls)
}

func TestExtractOverlapResolution(t *testing.T) {
	// "New York City is big": "York City" overlaps the stronger
	// "New York City"; flat decoding keeps only the stronger span.
	enc := &fakeEncoder{
		maxWidth: 4,
		spanScores: []spanScore{
			{start: 0, width: 3, label: 0, prob: 0.92}, // New York City
			{start: 1, width: 2, label: 0, prob: 0.70}, // York City
		},
	}
	p, err := New(enc, testConfig())
	require.NoError(t, err)

	result, err := p.Extract(context.Background(), Request{
		Text:   "New York City is big",
		Labels: []string{"location"},
	})
	require.NoError(t, err)

	require.Len(t, result.Entities, 1)
	assert.Equal(t, "New York City", result.Entities[0].Text)
}

func TestExtractNestedPolicy(t *testing.T) {
	enc := &fakeEncoder{
		maxWidth: 4,
		spanScores: []spanScore{
			{start: 0, width: 3, label: 0, prob: 0.92}, // New York City
			{start: 0, width: 2, label: 0, prob: 0.70}, // New York (nested)
		},
	}
	cfg := testConfig()
	cfg.FlatNER = false
	p, err := New(enc, cfg)
	require.NoError(t, err)

	result, err := p.Extract(context.Background(), Request{
		Text:   "New York City is big",
		Labels: []string{"location"},
	})
	require.NoError(t, err)

	require.Len(t, result.Entities, 2)
	// SortEntities puts the shorter nested span first at equal start.
	assert.Equal(t, "New York", result.Entities[0].Text)
	assert.Equal(t, "New York City", result.Entities[1].Text)
}

func TestExtractMultiLabel(t *testing.T) {
	enc := &fakeEncoder{
		maxWidth: 4,
		spanScores: []spanScore{
			{start: 0, width: 1, label: 0, prob: 0.9},
			{start: 0, width: 1, label: 1, prob: 0.8},
		},
	}
	cfg := testConfig()
	cfg.MultiLabel = true
	p, err := New(enc, cfg)
	require.NoError(t, err)

	result, err := p.Extract(context.Background(), Request{
		Text:   "Tesla builds cars",
		Labels: []string{"organization", "product"},
	})
	require.NoError(t, err)

	require.Len(t, result.Entities, 2)
	assert.Equal(t, "Tesla", result.Entities[0].Text)
	assert.Equal(t, "Tesla", result.Entities[1].Text)
	assert.NotEqual(t, result.Entities[0].Label, result.Entities[1].Label)
}

func TestExtractSortEntities(t *testing.T) {
	enc := &fakeEncoder{
		maxWidth: 4,
		spanScores: []spanScore{
			{start: 4, width: 1, label: 1, prob: 0.95}, // Antfly
			{start: 0, width: 1, label: 0, prob: 0.90}, // Ada
		},
	}

	t.Run("sorted into reading order", func(t *testing.T) {
		p, err := New(enc, testConfig())
		require.NoError(t, err)

		result, err := p.Extract(context.Background(), Request{
			Text:   "Ada now works for Antfly",
			Labels: []string{"person", "organization"},
		})
		require.NoError(t, err)
		require.Len(t, result.Entities, 2)
		assert.Equal(t, "Ada", result.Entities[0].Text)
		assert.Equal(t, "Antfly", result.Entities[1].Text)
	})

	t.Run("decode order when disabled", func(t *testing.T) {
		cfg := testConfig()
		cfg.SortEntities = false
		p, err := New(enc, cfg)
		require.NoError(t, err)

		result, err := p.Extract(context.Background(), Request{
			Text:   "Ada now works for Antfly",
			Labels: []string{"person", "organization"},
		})
		require.NoError(t, err)
		require.Len(t, result.Entities, 2)
		assert.Equal(t, "Antfly", result.Entities[0].Text)
		assert.Equal(t, "Ada", result.Entities[1].Text)
	})
}

func TestExtractShapeMismatch(t *testing.T) {
	enc := &fakeEncoder{
		maxWidth: 4,
		badShape: []int{1, 99, 4, 1},
	}
	p, err := New(enc, testConfig())
	require.NoError(t, err)

	_, err = p.Extract(context.Background(), Request{
		Text:   "some text here",
		Labels: []string{"person"},
	})
	var shapeErr *extraction.ShapeMismatchError
	require.ErrorAs(t, err, &shapeErr)
}

func TestExtractInvalidLabels(t *testing.T) {
	enc := &fakeEncoder{maxWidth: 4}
	p, err := New(enc, testConfig())
	require.NoError(t, err)

	_, err = p.Extract(context.Background(), Request{
		Text:   "some text",
		Labels: []string{"person", "person"},
	})
	var cfgErr *extraction.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestExtractDefaultLabels(t *testing.T) {
	enc := &fakeEncoder{
		maxWidth: 4,
		spanScores: []spanScore{
			{start: 0, width: 1, label: 0, prob: 0.9}, // label 0 = "person"
		},
	}
	p, err := New(enc, testConfig())
	require.NoError(t, err)

	result, err := p.Extract(context.Background(), Request{Text: "Ada was here"})
	require.NoError(t, err)
	require.Len(t, result.Entities, 1)
	assert.Equal(t, "person", result.Entities[0].Label)
}

func TestExtractWithRelations(t *testing.T) {
	// "Ada works for Antfly in Berlin": person, organization, location.
	enc := &fakeEncoder{
		maxWidth: 4,
		spanScores: []spanScore{
			{start: 0, width: 1, label: 0, prob: 0.95}, // Ada
			{start: 3, width: 1, label: 1, prob: 0.92}, // Antfly
			{start: 5, width: 1, label: 2, prob: 0.97}, // Berlin
		},
		// Schema-valid pairs enumerate as (Ada, Antfly) then
		// (Antfly, Berlin). Columns: works_for, located_in.
		pairLogits: []float32{
			logit(0.85), logit(0.02),
			logit(0.01), logit(0.91),
		},
	}
	p, err := New(enc, testConfig())
	require.NoError(t, err)

	schema := []labels.RelationType{
		{Name: "works_for", SubjectLabels: []string{"person"}, ObjectLabels: []string{"organization"}},
		{Name: "located_in", SubjectLabels: []string{"organization"}, ObjectLabels: []string{"location"}},
	}

	result, err := p.Extract(context.Background(), Request{
		Text:      "Ada works for Antfly in Berlin",
		Labels:    []string{"person", "organization", "location"},
		Relations: schema,
	})
	require.NoError(t, err)
	require.Len(t, result.Entities, 3)
	require.Len(t, result.Relations, 2)

	// Probability descending.
	located := result.Relations[0]
	assert.Equal(t, "located_in", located.Label)
	assert.Equal(t, "Antfly", located.Subject.Text)
	assert.Equal(t, "Berlin", located.Object.Text)
	assert.InDelta(t, 0.91, located.Score, 1e-4)

	works := result.Relations[1]
	assert.Equal(t, "works_for", works.Label)
	assert.Equal(t, "Ada", works.Subject.Text)
	assert.Equal(t, "Antfly", works.Object.Text)

	// Embedded entities carry character offsets into the original text.
	assert.Equal(t, 0, works.Subject.Start)
	assert.Equal(t, 3, works.Subject.End)
	assert.Equal(t, 1, enc.pairCalls)
}

func TestExtractRelationsSkippedForSingleEntity(t *testing.T) {
	enc := &fakeEncoder{
		maxWidth: 4,
		spanScores: []spanScore{
			{start: 0, width: 1, label: 0, prob: 0.95},
		},
	}
	p, err := New(enc, testConfig())
	require.NoError(t, err)

	result, err := p.Extract(context.Background(), Request{
		Text:   "Ada speaks",
		Labels: []string{"person", "organization"},
		Relations: []labels.RelationType{
			{Name: "works_for", SubjectLabels: []string{"person"}, ObjectLabels: []string{"organization"}},
		},
	})
	require.NoError(t, err)
	require.Len(t, result.Entities, 1)
	assert.Empty(t, result.Relations)
	assert.Zero(t, enc.pairCalls)
}

func TestExtractRelationsNotSupported(t *testing.T) {
	enc := &fakeEncoder{
		maxWidth: 4,
		spanScores: []spanScore{
			{start: 0, width: 1, label: 0, prob: 0.95},
			{start: 3, width: 1, label: 1, prob: 0.92},
		},
		pairErr: extraction.ErrNotSupported,
	}
	p, err := New(enc, testConfig())
	require.NoError(t, err)

	_, err = p.Extract(context.Background(), Request{
		Text:   "Ada works for Antfly",
		Labels: []string{"person", "organization"},
		Relations: []labels.RelationType{
			{Name: "works_for", SubjectLabels: []string{"person"}, ObjectLabels: []string{"organization"}},
		},
	})
	require.ErrorIs(t, err, extraction.ErrNotSupported)
}

func TestExtractInvalidSchema(t *testing.T) {
	enc := &fakeEncoder{maxWidth: 4}
	p, err := New(enc, testConfig())
	require.NoError(t, err)

	_, err = p.Extract(context.Background(), Request{
		Text:   "Ada works for Antfly",
		Labels: []string{"person", "organization"},
		Relations: []labels.RelationType{
			{Name: "works_for", SubjectLabels: []string{"alien"}, ObjectLabels: []string{"organization"}},
		},
	})
	var schemaErr *extraction.SchemaValidationError
	require.ErrorAs(t, err, &schemaErr)
	// Schema validation fails before any inference runs.
	assert.Zero(t, enc.spanCalls)
}

func TestExtractBatch(t *testing.T) {
	enc := &fakeEncoder{
		maxWidth: 4,
		spanScores: []spanScore{
			{start: 0, width: 1, label: 0, prob: 0.9},
		},
	}
	p, err := New(enc, testConfig())
	require.NoError(t, err)

	results, err := p.ExtractBatch(context.Background(),
		[]string{"Ada speaks", "", "Grace listens"},
		[]string{"person"}, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "Ada", results[0].Entities[0].Text)
	assert.Empty(t, results[1].Entities)
	assert.Equal(t, "Grace", results[2].Entities[0].Text)
}

func TestNewValidation(t *testing.T) {
	t.Run("nil encoder", func(t *testing.T) {
		_, err := New(nil, testConfig())
		var cfgErr *extraction.ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "encoder", cfgErr.Field)
	})

	t.Run("bad threshold", func(t *testing.T) {
		cfg := testConfig()
		cfg.Threshold = 1.5
		_, err := New(&fakeEncoder{maxWidth: 4}, cfg)
		var cfgErr *extraction.ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "threshold", cfgErr.Field)
	})

	t.Run("bad max width", func(t *testing.T) {
		cfg := testConfig()
		cfg.MaxWidth = 0
		_, err := New(&fakeEncoder{maxWidth: 4}, cfg)
		var cfgErr *extraction.ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
	})
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{name: "defaults valid", mutate: func(c *Config) {}},
		{name: "max width", mutate: func(c *Config) { c.MaxWidth = 0 }, wantField: "max_width"},
		{name: "max length", mutate: func(c *Config) { c.MaxLength = -1 }, wantField: "max_len"},
		{name: "threshold low", mutate: func(c *Config) { c.Threshold = -0.1 }, wantField: "threshold"},
		{name: "relation threshold high", mutate: func(c *Config) { c.RelationThreshold = 2 }, wantField: "relation_threshold"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var cfgErr *extraction.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.wantField, cfgErr.Field)
		})
	}
}

func TestTruncateWordBudget(t *testing.T) {
	enc := &fakeEncoder{maxWidth: 2}
	cfg := testConfig()
	cfg.MaxWidth = 2
	cfg.MaxLength = 3
	p, err := New(enc, cfg)
	require.NoError(t, err)

	result, err := p.Extract(context.Background(), Request{
		Text:   "one two three four five",
		Labels: []string{"person"},
	})
	require.NoError(t, err)
	assert.Empty(t, result.Entities)
	// The encoder saw only the first MaxLength words.
	assert.Equal(t, 1, enc.spanCalls)
}

// countingCounter reports a fixed subword count per word.
type countingCounter struct{ perWord int }

func (c countingCounter) CountTokens(string) int { return c.perWord }

func TestTruncateSubwordBudget(t *testing.T) {
	enc := &fakeEncoder{
		maxWidth: 2,
		spanScores: []spanScore{
			{start: 0, width: 1, label: 0, prob: 0.9},
		},
	}
	cfg := testConfig()
	cfg.MaxWidth = 2
	cfg.MaxLength = 5
	p, err := New(enc, cfg, WithCounter(countingCounter{perWord: 2}))
	require.NoError(t, err)

	result, err := p.Extract(context.Background(), Request{
		Text:   "one two three four five",
		Labels: []string{"person"},
	})
	require.NoError(t, err)
	// 5-subword budget at 2 subwords per word keeps 2 words.
	require.Len(t, result.Entities, 1)
	assert.Equal(t, "one", result.Entities[0].Text)
}

func TestTruncateReservesPromptOverhead(t *testing.T) {
	// The encoder caps [CLS] + prompt + text + [SEP] at MaxLength. Text that
	// fills MaxLength by itself would get cut encoder-side and come back with
	// a smaller span grid than the shape check expects, so the budget here
	// must shrink by the encoder's reported overhead.
	enc := &fakeEncoder{maxWidth: 2, promptOverhead: 3}
	cfg := testConfig()
	cfg.MaxWidth = 2
	cfg.MaxLength = 8
	p, err := New(enc, cfg, WithCounter(countingCounter{perWord: 1}))
	require.NoError(t, err)

	result, err := p.Extract(context.Background(), Request{
		Text:   "one two three four five six",
		Labels: []string{"person"},
	})
	require.NoError(t, err)
	assert.Empty(t, result.Entities)
	// 8 positions minus 3 overhead leaves room for 5 one-subword words.
	assert.Equal(t, 5, enc.lastNumTokens)
}
