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

// Package spans enumerates candidate token spans and decodes scored spans
// into a non-conflicting set of entity mentions.
package spans

// Candidate is a contiguous token span. Start and End are word-token
// indices, End inclusive. Width is End-Start+1.
type Candidate struct {
	Start int
	End   int
	Width int
}

// Candidates enumerates every span of width 1..maxWidth that fits inside a
// text of numTokens word tokens, ordered by (start asc, width asc). The
// enumeration is exhaustive and deterministic: index i in the returned slice
// always refers to the same span for the same (numTokens, maxWidth).
func Candidates(numTokens, maxWidth int) []Candidate {
	if numTokens <= 0 || maxWidth <= 0 {
		return nil
	}

	out := make([]Candidate, 0, CandidateCount(numTokens, maxWidth))
	for start := 0; start < numTokens; start++ {
		for width := 1; width <= maxWidth; width++ {
			end := start + width - 1
			if end >= numTokens {
				break
			}
			out = append(out, Candidate{Start: start, End: end, Width: width})
		}
	}
	return out
}

// CandidateCount returns len(Candidates(numTokens, maxWidth)) without
// materializing the slice.
func CandidateCount(numTokens, maxWidth int) int {
	if numTokens <= 0 || maxWidth <= 0 {
		return 0
	}
	if maxWidth > numTokens {
		maxWidth = numTokens
	}
	// Every start position contributes min(maxWidth, numTokens-start) spans.
	full := numTokens - maxWidth + 1
	count := full * maxWidth
	for w := maxWidth - 1; w >= 1; w-- {
		count += w
	}
	return count
}

// GridSlot returns the candidate's position in the model's fixed
// [numTokens x maxWidth] span grid, where row is the start token and column
// is the width index. Spans running past the end of text occupy masked slots
// in that grid; GridSlot lets the adapter skip them when compacting model
// output down to the candidate list.
func GridSlot(c Candidate, maxWidth int) int {
	return c.Start*maxWidth + (c.Width - 1)
}
