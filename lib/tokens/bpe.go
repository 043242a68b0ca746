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

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

func init() {
	// Set the offline loader for tiktoken to avoid network requests
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

// BPECounter counts tokens with OpenAI's tiktoken BPE encodings. Used for
// budgeting when a model directory ships no WordPiece vocab.
type BPECounter struct {
	tiktoken *tiktoken.Tiktoken
}

// NewBPECounter creates a BPE counter using tiktoken-go with embedded
// dictionaries. The encoding parameter specifies which BPE encoding to use:
//   - "cl100k_base": GPT-4, GPT-3.5-turbo, text-embedding-ada-002 (default)
//   - "o200k_base": GPT-4o models
//   - "p50k_base": Codex models
//   - "r50k_base": GPT-3 models
func NewBPECounter(encoding string) (*BPECounter, error) {
	if encoding == "" {
		encoding = "cl100k_base"
	}

	tk, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to get tiktoken encoding %q: %w", encoding, err)
	}

	return &BPECounter{tiktoken: tk}, nil
}

// CountTokens returns the number of tokens in the text.
func (t *BPECounter) CountTokens(text string) int {
	if text == "" {
		return 0
	}

	return len(t.tiktoken.Encode(text, nil, nil))
}
