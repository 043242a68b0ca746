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
	"reflect"
	"testing"

	"github.com/antflydb/glean/lib/spans"
	"github.com/antflydb/glean/lib/tokens"
)

func TestFormatEntities(t *testing.T) {
	text := "I am James Bond"
	toks := tokens.WhitespaceSplitter{}.Split(text)
	labelNames := []string{"person", "organization"}

	decoded := []spans.Scored{
		{Start: 2, End: 3, Label: 0, Prob: 0.9},
	}

	got := FormatEntities(text, toks, decoded, labelNames)
	want := []Entity{
		{Text: "James Bond", Label: "person", Start: 5, End: 15, Score: 0.9},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("FormatEntities = %+v, want %+v", got, want)
	}
}

func TestFormatEntitiesMultiTokenIncludesInteriorSpace(t *testing.T) {
	text := "based in New   York today"
	toks := tokens.WhitespaceSplitter{}.Split(text)

	got := FormatEntities(text, toks, []spans.Scored{
		{Start: 2, End: 3, Label: 0, Prob: 0.8},
	}, []string{"location"})

	if len(got) != 1 {
		t.Fatalf("FormatEntities = %+v", got)
	}
	if got[0].Text != "New   York" {
		t.Errorf("Text = %q, want %q", got[0].Text, "New   York")
	}
	if text[got[0].Start:got[0].End] != got[0].Text {
		t.Errorf("offsets do not recover text: %q", text[got[0].Start:got[0].End])
	}
}

func TestFormatEntitiesPreservesOrder(t *testing.T) {
	text := "Ada met Grace at Antfly"
	toks := tokens.WhitespaceSplitter{}.Split(text)
	labelNames := []string{"person", "organization"}

	// Decode order (probability descending), not reading order.
	decoded := []spans.Scored{
		{Start: 4, End: 4, Label: 1, Prob: 0.95},
		{Start: 0, End: 0, Label: 0, Prob: 0.90},
		{Start: 2, End: 2, Label: 0, Prob: 0.85},
	}

	got := FormatEntities(text, toks, decoded, labelNames)
	if len(got) != 3 {
		t.Fatalf("FormatEntities returned %d entities", len(got))
	}
	if got[0].Text != "Antfly" || got[1].Text != "Ada" || got[2].Text != "Grace" {
		t.Errorf("order not preserved: %+v", got)
	}
}

func TestSortEntitiesByOffset(t *testing.T) {
	entities := []Entity{
		{Text: "Antfly", Start: 17, End: 23},
		{Text: "Ada", Start: 0, End: 3},
		{Text: "Grace", Start: 8, End: 13},
	}

	SortEntitiesByOffset(entities)

	if entities[0].Text != "Ada" || entities[1].Text != "Grace" || entities[2].Text != "Antfly" {
		t.Errorf("sorted = %+v", entities)
	}

	// Idempotent
	before := make([]Entity, len(entities))
	copy(before, entities)
	SortEntitiesByOffset(entities)
	if !reflect.DeepEqual(entities, before) {
		t.Error("second sort changed the order")
	}
}

func TestFormatEntitiesEmpty(t *testing.T) {
	if got := FormatEntities("text", nil, nil, nil); got != nil {
		t.Errorf("FormatEntities with no spans = %+v, want nil", got)
	}
}
