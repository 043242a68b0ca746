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

// Package scores adapts raw encoder logits into an indexed probability
// lookup for the decoders. The adapter owns the sigmoid: everything
// downstream works in probabilities, everything upstream in logits.
package scores

import (
	"math"

	"github.com/antflydb/glean/lib/extraction"
)

// Grid is a dense [rows x cols] logit matrix. Rows index candidates (spans
// or entity pairs), columns index labels (entity types or relation types).
type Grid struct {
	raw  []float32
	rows int
	cols int
}

// NewGrid wraps raw row-major logits. The element count must equal
// rows*cols exactly; anything else is reported as a
// *extraction.ShapeMismatchError. A truncated or padded tensor would
// silently shift every row, so it is never accepted.
func NewGrid(raw []float32, rows, cols int) (*Grid, error) {
	if rows < 0 || cols < 0 || len(raw) != rows*cols {
		return nil, &extraction.ShapeMismatchError{
			Expected: []int{rows, cols},
			Actual:   []int{len(raw)},
		}
	}
	return &Grid{raw: raw, rows: rows, cols: cols}, nil
}

// Rows returns the candidate dimension.
func (g *Grid) Rows() int { return g.rows }

// Cols returns the label dimension.
func (g *Grid) Cols() int { return g.cols }

// Logit returns the raw score at (row, col).
func (g *Grid) Logit(row, col int) float32 {
	return g.raw[row*g.cols+col]
}

// Probability returns sigmoid(logit) at (row, col). Each (candidate, label)
// cell is an independent probability; rows do not sum to one.
func (g *Grid) Probability(row, col int) float32 {
	return Sigmoid(g.raw[row*g.cols+col])
}

// Sigmoid applies the logistic function.
func Sigmoid(x float32) float32 {
	return float32(1.0 / (1.0 + math.Exp(-float64(x))))
}
