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

package extraction

import (
	"sort"

	"github.com/antflydb/glean/lib/spans"
	"github.com/antflydb/glean/lib/tokens"
)

// FormatEntities maps decoded spans from token indices to character-offset
// entities. Offsets come straight from the splitter's token boundaries, so
// Text is always exactly text[Start:End], including any interior whitespace
// of multi-token entities. Input order is preserved: formatting never
// reorders, merges, or drops spans.
func FormatEntities(text string, toks []tokens.Token, decoded []spans.Scored, labelNames []string) []Entity {
	if len(decoded) == 0 {
		return nil
	}

	out := make([]Entity, 0, len(decoded))
	for _, s := range decoded {
		if s.Start < 0 || s.End >= len(toks) || s.Label < 0 || s.Label >= len(labelNames) {
			continue
		}
		charStart := toks[s.Start].Start
		charEnd := toks[s.End].End
		out = append(out, Entity{
			Text:  text[charStart:charEnd],
			Label: labelNames[s.Label],
			Start: charStart,
			End:   charEnd,
			Score: s.Prob,
		})
	}
	return out
}

// SortEntitiesByOffset stably re-sorts entities into reading order,
// (start asc, end asc). Stable so that equal spans keep their decode order,
// making the sort idempotent.
func SortEntitiesByOffset(entities []Entity) {
	sort.SliceStable(entities, func(i, j int) bool {
		if entities[i].Start != entities[j].Start {
			return entities[i].Start < entities[j].Start
		}
		return entities[i].End < entities[j].End
	})
}
