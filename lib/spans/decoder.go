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

package spans

import "sort"

// Scored is a candidate span paired with a label and its probability.
// Start and End are word-token indices, End inclusive.
type Scored struct {
	Start int
	End   int
	// Label is the index into the entity label vocabulary
	Label int
	// Prob is the sigmoid probability for (span, label)
	Prob float32
}

// width returns the span width in tokens.
func (s Scored) width() int {
	return s.End - s.Start + 1
}

// overlaps reports whether two spans share at least one token.
func (s Scored) overlaps(o Scored) bool {
	return s.Start <= o.End && o.Start <= s.End
}

// contains reports whether s fully contains o.
func (s Scored) contains(o Scored) bool {
	return s.Start <= o.Start && o.End <= s.End
}

// Policy decides whether an already-accepted span blocks a new one.
type Policy interface {
	// Conflicts reports whether candidate next cannot coexist with accepted.
	Conflicts(accepted, next Scored) bool
}

// FlatPolicy forbids any token overlap between accepted spans. This is the
// default: each token belongs to at most one entity.
type FlatPolicy struct{}

func (FlatPolicy) Conflicts(accepted, next Scored) bool {
	return accepted.overlaps(next)
}

// NestedPolicy allows fully nested spans but rejects partial (crossing)
// overlaps, so "New York" inside "New York City" survives while two spans
// that merely cross do not.
type NestedPolicy struct{}

func (NestedPolicy) Conflicts(accepted, next Scored) bool {
	if !accepted.overlaps(next) {
		return false
	}
	return !accepted.contains(next) && !next.contains(accepted)
}

// Decoder turns scored candidates into an accepted set of spans.
//
// Decoding is greedy: candidates at or above Threshold are ranked by
// probability descending, with narrower spans before wider ones and earlier
// start positions first on ties, then accepted one by one unless the Policy
// says an earlier acceptance blocks them. The ranking makes the output a
// pure function of the scores, so identical inputs decode identically.
type Decoder struct {
	// Threshold is the minimum probability for a candidate to be considered
	Threshold float32
	// Policy resolves overlap conflicts (nil = FlatPolicy)
	Policy Policy
	// MultiLabel permits the same span to be accepted once per label.
	// When false, a span is emitted with only its best-scoring label.
	MultiLabel bool
}

// Decode filters, ranks, and greedily accepts scored spans. The returned
// slice is in acceptance order (best first).
func (d *Decoder) Decode(candidates []Scored) []Scored {
	policy := d.Policy
	if policy == nil {
		policy = FlatPolicy{}
	}

	kept := make([]Scored, 0, len(candidates))
	for _, c := range candidates {
		if c.Prob >= d.Threshold {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		return nil
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Prob != kept[j].Prob {
			return kept[i].Prob > kept[j].Prob
		}
		if kept[i].width() != kept[j].width() {
			return kept[i].width() < kept[j].width()
		}
		return kept[i].Start < kept[j].Start
	})

	var accepted []Scored
	for _, c := range kept {
		blocked := false
		for _, a := range accepted {
			if a.Start == c.Start && a.End == c.End {
				// Same span, different label: only multi-label mode keeps both.
				if !d.MultiLabel {
					blocked = true
					break
				}
				if a.Label == c.Label {
					blocked = true
					break
				}
				continue
			}
			if policy.Conflicts(a, c) {
				blocked = true
				break
			}
		}
		if !blocked {
			accepted = append(accepted, c)
		}
	}

	return accepted
}
