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

// Package relations decodes typed relations between already-extracted
// entities. Unlike span decoding there is no overlap resolution: every
// (pair, relation) cell that satisfies the schema and clears the threshold
// is emitted, since one entity pair can legitimately hold several relations.
package relations

import (
	"sort"

	"github.com/antflydb/glean/lib/extraction"
	"github.com/antflydb/glean/lib/labels"
	"github.com/antflydb/glean/lib/scores"
)

// Pair is an ordered (subject, object) combination of entity indices.
// Direction matters: (i, j) and (j, i) are distinct candidates.
type Pair struct {
	// Subject is the index of the subject entity
	Subject int
	// Object is the index of the object entity
	Object int
}

// Pairs enumerates the ordered entity pairs worth scoring: subject and
// object must be different entities, and at least one relation type in the
// schema must accept the pair's label combination. Order is deterministic,
// subject index ascending then object index ascending, so pair i always
// maps to score grid row i.
func Pairs(entities []extraction.Entity, schema *labels.Schema) []Pair {
	if len(entities) < 2 || schema == nil || schema.Len() == 0 {
		return nil
	}

	var out []Pair
	for subj := range entities {
		for obj := range entities {
			if subj == obj {
				continue
			}
			for rel := 0; rel < schema.Len(); rel++ {
				if schema.AllowsPair(rel, entities[subj].Label, entities[obj].Label) {
					out = append(out, Pair{Subject: subj, Object: obj})
					break
				}
			}
		}
	}
	return out
}

// Decoder emits relations from a pair-by-relation score grid.
type Decoder struct {
	// Threshold is the minimum probability for a relation to be emitted.
	// Independent of the span decoder's threshold.
	Threshold float32
}

// Decode scans the [len(pairs) x schema.Len()] grid and emits every
// schema-valid cell at or above the threshold. Entities are embedded by
// value. Output is sorted by probability descending; ties break by pair
// index then relation index, keeping decode byte-identical across runs.
//
// Returns *extraction.ShapeMismatchError if the grid dimensions disagree
// with the pair and relation counts.
func (d *Decoder) Decode(entities []extraction.Entity, pairs []Pair, grid *scores.Grid, schema *labels.Schema) ([]extraction.Relation, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	if grid.Rows() != len(pairs) || grid.Cols() != schema.Len() {
		return nil, &extraction.ShapeMismatchError{
			Expected: []int{len(pairs), schema.Len()},
			Actual:   []int{grid.Rows(), grid.Cols()},
		}
	}

	type scored struct {
		pair int
		rel  int
		prob float32
	}

	var hits []scored
	for pi, pair := range pairs {
		subj := entities[pair.Subject]
		obj := entities[pair.Object]
		for rel := 0; rel < schema.Len(); rel++ {
			if !schema.AllowsPair(rel, subj.Label, obj.Label) {
				continue
			}
			prob := grid.Probability(pi, rel)
			if prob >= d.Threshold {
				hits = append(hits, scored{pair: pi, rel: rel, prob: prob})
			}
		}
	}
	if len(hits) == 0 {
		return nil, nil
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].prob != hits[j].prob {
			return hits[i].prob > hits[j].prob
		}
		if hits[i].pair != hits[j].pair {
			return hits[i].pair < hits[j].pair
		}
		return hits[i].rel < hits[j].rel
	})

	out := make([]extraction.Relation, len(hits))
	for i, h := range hits {
		pair := pairs[h.pair]
		out[i] = extraction.Relation{
			Subject: entities[pair.Subject],
			Object:  entities[pair.Object],
			Label:   schema.Name(h.rel),
			Score:   h.prob,
		}
	}
	return out, nil
}
