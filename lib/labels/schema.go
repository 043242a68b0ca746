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

package labels

import (
	"strings"

	"github.com/antflydb/glean/lib/extraction"
)

// RelationType declares a relation and which entity labels may fill each
// endpoint. A relation only ever connects a subject whose label is in
// SubjectLabels to an object whose label is in ObjectLabels.
type RelationType struct {
	// Name is the relation type (e.g., "works_for")
	Name string `json:"name"`
	// SubjectLabels are entity labels allowed as the relation's subject
	SubjectLabels []string `json:"subject_labels"`
	// ObjectLabels are entity labels allowed as the relation's object
	ObjectLabels []string `json:"object_labels"`
}

// Schema is a validated set of relation types bound to an entity
// vocabulary. Like the vocabulary, relation indices are dense and fixed,
// mapping score tensor columns to relation names.
type Schema struct {
	relations []RelationType
	index     map[string]int
	subjects  []map[string]struct{}
	objects   []map[string]struct{}
}

// NewSchema validates relation types against the vocabulary. Every endpoint
// label must exist in vocab, relation names must be non-empty and unique,
// and neither endpoint set may be empty; violations are reported as
// *extraction.SchemaValidationError.
func NewSchema(vocab *Vocabulary, relations []RelationType) (*Schema, error) {
	if vocab == nil {
		return nil, &extraction.SchemaValidationError{
			Reason: "entity vocabulary is required",
		}
	}
	if len(relations) == 0 {
		return nil, &extraction.SchemaValidationError{
			Reason: "at least one relation type is required",
		}
	}

	s := &Schema{
		relations: make([]RelationType, 0, len(relations)),
		index:     make(map[string]int, len(relations)),
		subjects:  make([]map[string]struct{}, 0, len(relations)),
		objects:   make([]map[string]struct{}, 0, len(relations)),
	}

	for i, rel := range relations {
		name := strings.TrimSpace(rel.Name)
		if name == "" {
			return nil, &extraction.SchemaValidationError{
				Reason: "relation name must not be empty",
			}
		}
		if _, dup := s.index[name]; dup {
			return nil, &extraction.SchemaValidationError{
				Relation: name,
				Reason:   "duplicate relation type",
			}
		}

		subjects, err := endpointSet(vocab, name, "subject", rel.SubjectLabels)
		if err != nil {
			return nil, err
		}
		objects, err := endpointSet(vocab, name, "object", rel.ObjectLabels)
		if err != nil {
			return nil, err
		}

		s.index[name] = i
		s.relations = append(s.relations, RelationType{
			Name:          name,
			SubjectLabels: append([]string(nil), rel.SubjectLabels...),
			ObjectLabels:  append([]string(nil), rel.ObjectLabels...),
		})
		s.subjects = append(s.subjects, subjects)
		s.objects = append(s.objects, objects)
	}

	return s, nil
}

// endpointSet validates one endpoint label list against the vocabulary.
func endpointSet(vocab *Vocabulary, relation, side string, names []string) (map[string]struct{}, error) {
	if len(names) == 0 {
		return nil, &extraction.SchemaValidationError{
			Relation: relation,
			Reason:   side + " label set must not be empty",
		}
	}

	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, ok := vocab.Index(name); !ok {
			return nil, &extraction.SchemaValidationError{
				Relation: relation,
				Reason:   side + " label " + name + " is not in the entity vocabulary",
			}
		}
		set[name] = struct{}{}
	}
	return set, nil
}

// Len returns the number of relation types.
func (s *Schema) Len() int { return len(s.relations) }

// Relations returns the relation types in index order. The slice is a copy.
func (s *Schema) Relations() []RelationType {
	out := make([]RelationType, len(s.relations))
	copy(out, s.relations)
	return out
}

// Name returns the relation type name at index i.
func (s *Schema) Name(i int) string { return s.relations[i].Name }

// Names returns all relation type names in index order.
func (s *Schema) Names() []string {
	out := make([]string, len(s.relations))
	for i, rel := range s.relations {
		out[i] = rel.Name
	}
	return out
}

// Index returns the index of a relation type and whether it exists.
func (s *Schema) Index(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// AllowsSubject reports whether the relation at index rel accepts an entity
// with the given label as subject.
func (s *Schema) AllowsSubject(rel int, label string) bool {
	_, ok := s.subjects[rel][label]
	return ok
}

// AllowsObject reports whether the relation at index rel accepts an entity
// with the given label as object.
func (s *Schema) AllowsObject(rel int, label string) bool {
	_, ok := s.objects[rel][label]
	return ok
}

// AllowsPair reports whether the relation at index rel accepts the given
// (subject label, object label) combination.
func (s *Schema) AllowsPair(rel int, subjectLabel, objectLabel string) bool {
	return s.AllowsSubject(rel, subjectLabel) && s.AllowsObject(rel, objectLabel)
}
