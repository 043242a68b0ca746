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

package tokens

import (
	"fmt"
	"os"
	"strings"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/decoder"
	"github.com/sugarme/tokenizer/model"
	"github.com/sugarme/tokenizer/model/wordpiece"
	"github.com/sugarme/tokenizer/normalizer"
	"github.com/sugarme/tokenizer/pretokenizer"
	"github.com/sugarme/tokenizer/processor"
	"github.com/sugarme/tokenizer/util"
)

// Counter provides subword token counting for sequence-length budgeting.
type Counter interface {
	// CountTokens returns the number of subword tokens in the text.
	// Returns a character-based estimate on error.
	CountTokens(text string) int
}

// WordPieceCounter counts tokens with a BERT-style WordPiece vocabulary,
// matching the subword segmentation of encoder models that ship a vocab.txt.
type WordPieceCounter struct {
	tokenizer *tokenizer.Tokenizer
}

// NewWordPieceCounter creates a WordPiece counter from a vocab file
// (one token per line, ID is line number), as found in model directories.
func NewWordPieceCounter(vocabPath string) (*WordPieceCounter, error) {
	data, err := os.ReadFile(vocabPath)
	if err != nil {
		return nil, fmt.Errorf("reading vocab file: %w", err)
	}

	vocab := make(model.Vocab)
	for i, line := range strings.Split(string(data), "\n") {
		if line != "" {
			vocab[strings.TrimRight(line, "\r")] = i
		}
	}
	if len(vocab) == 0 {
		return nil, fmt.Errorf("vocab file %s is empty", vocabPath)
	}

	// Create WordPiece model with [UNK] as unknown token
	opts := util.NewParams(map[string]any{
		"unk_token": "[UNK]",
	})
	wp, err := wordpiece.New(vocab, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create wordpiece model: %w", err)
	}

	tk := tokenizer.NewTokenizer(wp)

	// Configure BERT normalizer: clean text, lowercase, handle Chinese chars, strip accents
	tk.WithNormalizer(normalizer.NewBertNormalizer(true, true, true, true))
	tk.WithPreTokenizer(pretokenizer.NewBertPreTokenizer())

	// Configure post-processor with SEP and CLS tokens when present
	sepId, okSep := tk.TokenToId("[SEP]")
	clsId, okCls := tk.TokenToId("[CLS]")
	if okSep && okCls {
		tk.WithPostProcessor(processor.NewBertProcessing(
			processor.PostToken{Id: sepId, Value: "[SEP]"},
			processor.PostToken{Id: clsId, Value: "[CLS]"},
		))
		tk.AddSpecialTokens([]tokenizer.AddedToken{tokenizer.NewAddedToken("[SEP]", true)})
		tk.AddSpecialTokens([]tokenizer.AddedToken{tokenizer.NewAddedToken("[CLS]", true)})
	}
	tk.AddSpecialTokens([]tokenizer.AddedToken{tokenizer.NewAddedToken("[MASK]", true)})

	tk.WithDecoder(decoder.DefaultWordpieceDecoder())

	return &WordPieceCounter{tokenizer: tk}, nil
}

// CountTokens returns the number of subword tokens in the text.
// Uses a recover wrapper to handle panics from the underlying tokenizer
// library (github.com/sugarme/tokenizer has a bounds check bug in
// BertNormalizer.TransformRange).
func (t *WordPieceCounter) CountTokens(text string) (count int) {
	if text == "" {
		return 0
	}

	defer func() {
		if r := recover(); r != nil {
			// Fallback: rough approximation (1 token ≈ 4 chars for English)
			count = len(text) / 4
		}
	}()

	enc, err := t.tokenizer.EncodeSingle(text)
	if err != nil {
		return len(text) / 4
	}

	return len(enc.Ids)
}

// Encode returns the subword token IDs for the text, without special tokens
// beyond what the post-processor adds. Returns nil on tokenizer failure.
func (t *WordPieceCounter) Encode(text string) (ids []int) {
	if text == "" {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			ids = nil
		}
	}()

	enc, err := t.tokenizer.EncodeSingle(text)
	if err != nil {
		return nil
	}

	return enc.Ids
}
