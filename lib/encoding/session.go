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

// Package encoding is the boundary between the decode pipeline and the
// numeric runtime. A Session runs tensor computations without knowledge of
// extraction semantics; an Encoder drives a Session to produce the raw
// logits the decoders consume.
package encoding

// Session represents a low-level inference session that can run tensor
// computations. This is the primitive interface a runtime provides - it
// handles tensor I/O without knowledge of model semantics.
//
// Implementations must be safe for use from a single goroutine at a time;
// concurrency is handled by pooling sessions, not by sharing one.
type Session interface {
	// Run executes the session with the given named inputs.
	// Returns named outputs as tensors.
	Run(inputs []NamedTensor) ([]NamedTensor, error)

	// InputInfo returns metadata about expected inputs.
	InputInfo() []TensorInfo

	// OutputInfo returns metadata about outputs.
	OutputInfo() []TensorInfo

	// Close releases resources associated with the session.
	Close() error
}

// NamedTensor associates a name with tensor data.
type NamedTensor struct {
	Name  string
	Shape []int64
	Data  interface{} // []float32, []int64, []bool, etc.
}

// TensorInfo describes a tensor's metadata.
type TensorInfo struct {
	Name     string
	Shape    []int64  // -1 for dynamic dimensions
	DataType DataType // float32, int64, etc.
}

// DataType represents tensor element types.
type DataType string

const (
	DataTypeFloat32 DataType = "float32"
	DataTypeFloat16 DataType = "float16"
	DataTypeInt64   DataType = "int64"
	DataTypeInt32   DataType = "int32"
	DataTypeBool    DataType = "bool"
)

// SessionFactory creates sessions from model files. Each runtime implements
// this to provide its session creation mechanism.
type SessionFactory interface {
	// CreateSession creates a session from a model file (e.g., ONNX file).
	CreateSession(modelPath string) (Session, error)
}
