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

// Package labels holds the per-request label registry: the entity label
// vocabulary and the typed relation schema. Both are validated up front and
// immutable afterwards, so every downstream index lookup is trusted.
package labels

import (
	"strings"

	"github.com/antflydb/glean/lib/extraction"
)

// Vocabulary is a validated, ordered set of entity labels. Indices are
// dense and fixed at construction: the label at index i stays at index i
// for the life of the vocabulary, which is what ties score tensor columns
// back to label names.
type Vocabulary struct {
	names []string
	index map[string]int
}

// NewVocabulary validates and freezes an ordered label list. Labels must be
// non-empty after trimming and unique; violations are reported as
// *extraction.ConfigurationError.
func NewVocabulary(names []string) (*Vocabulary, error) {
	if len(names) == 0 {
		return nil, &extraction.ConfigurationError{
			Field:  "labels",
			Reason: "at least one entity label is required",
		}
	}

	v := &Vocabulary{
		names: make([]string, 0, len(names)),
		index: make(map[string]int, len(names)),
	}
	for i, name := range names {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			return nil, &extraction.ConfigurationError{
				Field:  "labels",
				Reason: "label must not be empty",
			}
		}
		if _, dup := v.index[trimmed]; dup {
			return nil, &extraction.ConfigurationError{
				Field:  "labels",
				Reason: "duplicate label " + trimmed,
			}
		}
		v.index[trimmed] = i
		v.names = append(v.names, trimmed)
	}

	return v, nil
}

// Len returns the number of labels.
func (v *Vocabulary) Len() int { return len(v.names) }

// Labels returns the labels in index order. The slice is a copy.
func (v *Vocabulary) Labels() []string {
	out := make([]string, len(v.names))
	copy(out, v.names)
	return out
}

// Name returns the label at index i.
func (v *Vocabulary) Name(i int) string { return v.names[i] }

// Index returns the index of a label and whether it exists.
func (v *Vocabulary) Index(name string) (int, bool) {
	i, ok := v.index[name]
	return i, ok
}
