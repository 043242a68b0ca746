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

package scores

import (
	"errors"
	"math"
	"testing"

	"github.com/antflydb/glean/lib/extraction"
)

func TestNewGrid(t *testing.T) {
	tests := []struct {
		name    string
		raw     []float32
		rows    int
		cols    int
		wantErr bool
	}{
		{name: "exact fit", raw: make([]float32, 6), rows: 2, cols: 3},
		{name: "empty", raw: nil, rows: 0, cols: 0},
		{name: "too short", raw: make([]float32, 5), rows: 2, cols: 3, wantErr: true},
		{name: "too long", raw: make([]float32, 7), rows: 2, cols: 3, wantErr: true},
		{name: "negative rows", raw: nil, rows: -1, cols: 3, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := NewGrid(tt.raw, tt.rows, tt.cols)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				var shapeErr *extraction.ShapeMismatchError
				if !errors.As(err, &shapeErr) {
					t.Fatalf("expected ShapeMismatchError, got %T", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if g.Rows() != tt.rows || g.Cols() != tt.cols {
				t.Errorf("dims = (%d, %d), want (%d, %d)", g.Rows(), g.Cols(), tt.rows, tt.cols)
			}
		})
	}
}

func TestGridIndexing(t *testing.T) {
	g, err := NewGrid([]float32{0, 1, 2, 3, 4, 5}, 2, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := g.Logit(1, 2); got != 5 {
		t.Errorf("Logit(1, 2) = %v, want 5", got)
	}
	if got := g.Logit(0, 1); got != 1 {
		t.Errorf("Logit(0, 1) = %v, want 1", got)
	}
}

func TestSigmoid(t *testing.T) {
	tests := []struct {
		logit float32
		want  float64
	}{
		{0, 0.5},
		{2.1972246, 0.9}, // ln(0.9/0.1)
		{-2.1972246, 0.1},
		{20, 1.0},
		{-20, 0.0},
	}

	for _, tt := range tests {
		if got := Sigmoid(tt.logit); math.Abs(float64(got)-tt.want) > 1e-4 {
			t.Errorf("Sigmoid(%v) = %v, want %v", tt.logit, got, tt.want)
		}
	}
}

func TestProbability(t *testing.T) {
	g, err := NewGrid([]float32{2.1972246, -2.1972246}, 1, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := g.Probability(0, 0); math.Abs(float64(got)-0.9) > 1e-4 {
		t.Errorf("Probability(0, 0) = %v, want 0.9", got)
	}
	if got := g.Probability(0, 1); math.Abs(float64(got)-0.1) > 1e-4 {
		t.Errorf("Probability(0, 1) = %v, want 0.1", got)
	}
}
