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

// Package tokens splits text into word-level tokens with character offsets
// and provides subword token counting for sequence-length budgeting.
package tokens

// Token is a word-level token with its byte offsets in the source text.
type Token struct {
	// Text is the token text
	Text string `json:"text"`
	// Start is the byte offset where the token begins
	Start int `json:"start"`
	// End is the byte offset where the token ends (exclusive)
	End int `json:"end"`
}

// Splitter splits text into word-level tokens. Implementations must be
// deterministic: the same text always yields the same tokens.
type Splitter interface {
	Split(text string) []Token
}

// WhitespaceSplitter splits on runs of whitespace. Offsets index into the
// original text, so token text can always be recovered as text[Start:End].
type WhitespaceSplitter struct{}

// Split splits text into whitespace-delimited tokens.
func (WhitespaceSplitter) Split(text string) []Token {
	var toks []Token

	wordStart := -1
	for i, r := range text {
		if isWordChar(r) {
			if wordStart == -1 {
				wordStart = i
			}
		} else if wordStart != -1 {
			toks = append(toks, Token{Text: text[wordStart:i], Start: wordStart, End: i})
			wordStart = -1
		}
	}

	// Handle last word
	if wordStart != -1 {
		toks = append(toks, Token{Text: text[wordStart:], Start: wordStart, End: len(text)})
	}

	return toks
}

// isWordChar returns true if the rune is part of a word.
func isWordChar(r rune) bool {
	return r != ' ' && r != '\t' && r != '\n' && r != '\r'
}
