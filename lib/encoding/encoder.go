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

package encoding

import (
	"context"
	"fmt"
	"strings"

	"github.com/antflydb/glean/lib/extraction"
	"github.com/antflydb/glean/lib/relations"
	"github.com/antflydb/glean/lib/spans"
	"github.com/antflydb/glean/lib/tokens"
)

// Encoder produces raw logits for the decode pipeline. Implementations are
// opaque to the decoders: the pipeline only sees logit slices and their
// reported shapes, and validates both before decoding.
type Encoder interface {
	// SpanLogits scores every (token, width, label) cell of the span grid
	// for one text. The reported shape is [batch, tokens, maxWidth, labels];
	// spans running past the end of text occupy masked grid slots whose
	// values are unspecified.
	SpanLogits(ctx context.Context, toks []tokens.Token, labelNames []string) (logits []float32, shape []int, err error)

	// PairLogits scores every (pair, relation) cell for already-decoded
	// entity mentions. The result is row-major [len(pairs) x len(relationNames)].
	// Returns extraction.ErrNotSupported if the model cannot score relations.
	PairLogits(ctx context.Context, toks []tokens.Token, mentions []spans.Scored, pairs []relations.Pair, relationNames []string) ([]float32, error)

	// Close releases resources held by the encoder.
	Close() error
}

// SubwordEncoder produces model token IDs for a piece of text.
type SubwordEncoder interface {
	Encode(text string) []int
}

// PromptSizer is implemented by encoders whose input sequence carries fixed
// overhead beyond the text subwords, such as label prompts and special
// tokens. Callers budgeting a sequence length must reserve this overhead
// or the encoder will truncate the text on its own and return a shorter
// span grid than the token count implies.
type PromptSizer interface {
	// PromptOverhead returns the number of sequence positions the label
	// prompt and special tokens occupy for the given label set.
	PromptOverhead(labelNames []string) int
}

// SessionEncoderConfig configures a SessionEncoder.
type SessionEncoderConfig struct {
	// MaxWidth is the span grid width in tokens
	MaxWidth int
	// MaxLength is the maximum subword sequence length
	MaxLength int
	// Multitask enables relation scoring via subject-conditioned prompts
	Multitask bool
	// WordsJoiner joins token texts when building prompts (default " ")
	WordsJoiner string
}

// SessionEncoder drives a Session with GLiNER-style inputs: the entity
// labels are spliced into the sequence as <<ENT>>label<<SEP>> prompt tokens
// ahead of the text, and the span grid is described to the model through
// span_idx and span_mask tensors.
type SessionEncoder struct {
	session Session
	subword SubwordEncoder
	cfg     SessionEncoderConfig
}

// NewSessionEncoder wraps a session and a subword tokenizer.
func NewSessionEncoder(session Session, subword SubwordEncoder, cfg SessionEncoderConfig) *SessionEncoder {
	if cfg.MaxWidth <= 0 {
		cfg.MaxWidth = 12
	}
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = 512
	}
	if cfg.WordsJoiner == "" {
		cfg.WordsJoiner = " "
	}
	return &SessionEncoder{session: session, subword: subword, cfg: cfg}
}

// SpanLogits implements Encoder.
func (e *SessionEncoder) SpanLogits(ctx context.Context, toks []tokens.Token, labelNames []string) ([]float32, []int, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	inputs, err := e.buildInputs(toks, labelNames)
	if err != nil {
		return nil, nil, fmt.Errorf("building inputs: %w", err)
	}

	outputs, err := e.session.Run(inputs)
	if err != nil {
		return nil, nil, fmt.Errorf("running inference: %w", err)
	}

	logits, shape, err := findLogits(outputs)
	if err != nil {
		return nil, nil, err
	}
	return logits, shape, nil
}

// unscoredLogit fills cells the model never scored. Its sigmoid is
// indistinguishable from zero, so an unscored cell can never clear a
// decode threshold.
const unscoredLogit = float32(-1e4)

// PairLogits implements Encoder. Relation scoring reuses the span head with
// subject-conditioned labels ("<subject> <> <relation>"): for each pair the
// model scores the object's span against every conditioned relation label,
// one forward pass per pair. Pairs whose object span is wider than the
// model's grid stay unscored.
func (e *SessionEncoder) PairLogits(ctx context.Context, toks []tokens.Token, mentions []spans.Scored, pairs []relations.Pair, relationNames []string) ([]float32, error) {
	if !e.cfg.Multitask {
		return nil, extraction.ErrNotSupported
	}
	if len(pairs) == 0 || len(relationNames) == 0 {
		return nil, nil
	}

	numRels := len(relationNames)
	out := make([]float32, len(pairs)*numRels)
	for i := range out {
		out[i] = unscoredLogit
	}

	for pi, pair := range pairs {
		subj := mentions[pair.Subject]
		obj := mentions[pair.Object]

		subjText := joinTokens(toks, subj.Start, subj.End, e.cfg.WordsJoiner)
		conditioned := make([]string, numRels)
		for ri, rel := range relationNames {
			conditioned[ri] = subjText + " <> " + rel
		}

		logits, shape, err := e.SpanLogits(ctx, toks, conditioned)
		if err != nil {
			return nil, fmt.Errorf("scoring pair %d: %w", pi, err)
		}
		if len(shape) < 4 {
			return nil, fmt.Errorf("scoring pair %d: unexpected logits rank %d", pi, len(shape))
		}

		maxWidth := shape[2]
		gridLabels := shape[3]
		if gridLabels < numRels {
			// The model returned fewer label columns than relations asked
			// for; guessing which relation each column belongs to would
			// misattribute scores.
			return nil, &extraction.ShapeMismatchError{
				Expected: []int{shape[0], shape[1], maxWidth, numRels},
				Actual:   shape,
			}
		}
		objWidth := obj.End - obj.Start + 1
		if objWidth > maxWidth {
			continue
		}
		base := obj.Start*maxWidth*gridLabels + (objWidth-1)*gridLabels
		for ri := 0; ri < numRels; ri++ {
			idx := base + ri
			if idx < len(logits) {
				out[pi*numRels+ri] = logits[idx]
			}
		}
	}

	return out, nil
}

// Close releases the underlying session.
func (e *SessionEncoder) Close() error {
	if e.session != nil {
		return e.session.Close()
	}
	return nil
}

/// promptIDs tokenizes the label prompt: <<ENT>>label1<<SEP>><<ENT>>label2...
// <<ENT>> and <<SEP>> are special tokens in the model vocabulary.
func (e *SessionEncoder) promptIDs(labelNames []string) []int {
	var sb strings.Builder
	for _, label := range labelNames {
		sb.WriteString("<<ENT>>")
		sb.WriteString(label)
		sb.WriteString("<<SEP>>")
	}
	return stripSpecial(e.subword.Encode(sb.String()))
}

// PromptOverhead implements PromptSizer: the label prompt subwords plus the
// [CLS] and [SEP] framing tokens.
func (e *SessionEncoder) PromptOverhead(labelNames []string) int {
	return len(e.promptIDs(labelNames)) + 2
}

// buildInputs constructs the model input tensors for one text.
func (e *SessionEncoder) buildInputs(toks []tokens.Token, labelNames []string) ([]NamedTensor, error) {
	promptIDs := e.promptIDs(labelNames)

	// Tokenize each word separately so words_mask can tie subwords back to
	// their word position.
	wordIDs := make([][]int, len(toks))
	totalTextTokens := 0
	for i, tok := range toks {
		wordIDs[i] = stripSpecial(e.subword.Encode(tok.Text))
		totalTextTokens += len(wordIDs[i])
	}

	// Sequence: [CLS] + prompt + text tokens + [SEP], capped at MaxLength.
	seqLen := len(promptIDs) + totalTextTokens + 2
	if seqLen > e.cfg.MaxLength {
		seqLen = e.cfg.MaxLength
	}

	inputIDs := make([]int64, seqLen)
	attentionMask := make([]int64, seqLen)
	wordsMask := make([]int64, seqLen)

	// DeBERTa special token IDs: [CLS]=1, [SEP]=2, [PAD]=0
	const clsID, sepID, padID = int64(1), int64(2), int64(0)

	idx := 0
	inputIDs[idx] = clsID
	attentionMask[idx] = 1
	idx++

	for _, id := range promptIDs {
		if idx >= seqLen-1 {
			break
		}
		inputIDs[idx] = int64(id)
		attentionMask[idx] = 1
		idx++
	}

	textStartIdx := idx
	wordIdx := int64(1) // 0 is reserved for non-word positions
	for _, ids := range wordIDs {
		emitted := false
		for _, id := range ids {
			if idx >= seqLen-1 {
				break
			}
			inputIDs[idx] = int64(id)
			attentionMask[idx] = 1
			wordsMask[idx] = wordIdx
			idx++
			emitted = true
		}
		if emitted {
			wordIdx++
		}
		if idx >= seqLen-1 {
			break
		}
	}
	numTextTokens := idx - textStartIdx

	if idx < seqLen {
		inputIDs[idx] = sepID
		attentionMask[idx] = 1
		idx++
	}
	for ; idx < seqLen; idx++ {
		inputIDs[idx] = padID
	}

	if numTextTokens < 1 {
		numTextTokens = 1
	}
	textLengths := []int64{int64(numTextTokens)}

	// Fixed span grid [numTextTokens x maxWidth]; the mask flags slots whose
	// span would run past the end of text.
	maxWidth := e.cfg.MaxWidth
	numSpans := numTextTokens * maxWidth
	spanIdx := make([]int64, numSpans*2)
	spanMask := make([]bool, numSpans)
	for t := 0; t < numTextTokens; t++ {
		for wi := 0; wi < maxWidth; wi++ {
			slot := t*maxWidth + wi
			spanIdx[slot*2] = int64(t)
			spanIdx[slot*2+1] = int64(t + wi)
			spanMask[slot] = t+wi < numTextTokens
		}
	}

	return []NamedTensor{
		{Name: "input_ids", Shape: []int64{1, int64(seqLen)}, Data: inputIDs},
		{Name: "attention_mask", Shape: []int64{1, int64(seqLen)}, Data: attentionMask},
		{Name: "words_mask", Shape: []int64{1, int64(seqLen)}, Data: wordsMask},
		{Name: "text_lengths", Shape: []int64{1, 1}, Data: textLengths},
		{Name: "span_idx", Shape: []int64{1, int64(numSpans), 2}, Data: spanIdx},
		{Name: "span_mask", Shape: []int64{1, int64(numSpans)}, Data: spanMask},
	}, nil
}

// findLogits locates the logits tensor among session outputs: by name first,
// then the first float32 output.
func findLogits(outputs []NamedTensor) ([]float32, []int, error) {
	var logits []float32
	var shape []int64

	for _, out := range outputs {
		if strings.Contains(strings.ToLower(out.Name), "logits") || out.Name == "output" {
			if data, ok := out.Data.([]float32); ok {
				logits = data
				shape = out.Shape
				break
			}
		}
	}
	if logits == nil {
		for _, out := range outputs {
			if data, ok := out.Data.([]float32); ok {
				logits = data
				shape = out.Shape
				break
			}
		}
	}
	if logits == nil {
		return nil, nil, fmt.Errorf("no logits output found")
	}

	dims := make([]int, len(shape))
	for i, d := range shape {
		dims[i] = int(d)
	}
	return logits, dims, nil
}

// stripSpecial drops PAD/CLS/SEP IDs the subword tokenizer may add.
func stripSpecial(ids []int) []int {
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if id == 0 || id == 1 || id == 2 {
			continue
		}
		out = append(out, id)
	}
	return out
}

// joinTokens rebuilds the surface text of a token range.
func joinTokens(toks []tokens.Token, start, end int, joiner string) string {
	parts := make([]string, 0, end-start+1)
	for i := start; i <= end && i < len(toks); i++ {
		parts = append(parts, toks[i].Text)
	}
	return strings.Join(parts, joiner)
}
