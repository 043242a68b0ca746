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

// Package extraction defines the result types shared by the span and
// relation decoders: entities, relations, and the per-text Result.
package extraction

// Entity represents a named entity extracted from text.
type Entity struct {
	// Text is the entity text (e.g., "James Bond")
	Text string `json:"text"`
	// Label is the entity type (e.g., "person", "organization")
	Label string `json:"label"`
	// Start is the character offset where the entity begins
	Start int `json:"start"`
	// End is the character offset where the entity ends (exclusive)
	End int `json:"end"`
	// Score is the confidence score (0.0 to 1.0)
	Score float32 `json:"score"`
}

// Relation represents a typed relationship between two entities.
// Both endpoints are embedded by value so a relation stays meaningful
// even when serialized on its own.
type Relation struct {
	// Subject is the source entity of the relationship
	Subject Entity `json:"subject"`
	// Object is the target entity of the relationship
	Object Entity `json:"object"`
	// Label is the relationship type (e.g., "works_for", "located_in")
	Label string `json:"label"`
	// Score is the confidence score (0.0 to 1.0)
	Score float32 `json:"score"`
}

// Result holds everything extracted from a single input text.
type Result struct {
	// Entities in decode order (use SortEntitiesByOffset for reading order)
	Entities []Entity `json:"entities"`
	// Relations sorted by descending score
	Relations []Relation `json:"relations,omitempty"`
}
