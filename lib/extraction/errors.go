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
	"errors"
	"fmt"
)

// ErrClosed is returned when an operation is attempted on a closed extractor.
var ErrClosed = errors.New("extractor is closed")

// ErrNotSupported is returned when a model doesn't support a particular
// operation, such as relation extraction on a span-only model.
var ErrNotSupported = errors.New("operation not supported by this model")

// ConfigurationError reports an invalid caller-supplied parameter: an empty
// label vocabulary, a threshold outside [0,1], a non-positive span width.
// Distinguish it from schema problems with errors.As.
type ConfigurationError struct {
	// Field is the name of the offending parameter
	Field string
	// Reason describes why the value was rejected
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// SchemaValidationError reports a relation schema that references unknown
// entity labels, duplicates a relation name, or leaves an endpoint set empty.
type SchemaValidationError struct {
	// Relation is the relation type that failed validation ("" for
	// schema-wide problems)
	Relation string
	// Reason describes the violation
	Reason string
}

func (e *SchemaValidationError) Error() string {
	if e.Relation == "" {
		return fmt.Sprintf("invalid relation schema: %s", e.Reason)
	}
	return fmt.Sprintf("invalid relation schema: %s: %s", e.Relation, e.Reason)
}

// ShapeMismatchError reports a score tensor whose dimensions disagree with
// what the candidate generator and label registry require. The decode stage
// never guesses at a layout; it fails with the expected and actual shapes.
type ShapeMismatchError struct {
	// Expected is the required shape
	Expected []int
	// Actual is the shape that was provided
	Actual []int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("score tensor shape mismatch: expected %v, got %v", e.Expected, e.Actual)
}
