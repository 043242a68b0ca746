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

// Package modelregistry resolves model references and pulls GLiNER model
// artifacts from HuggingFace Hub into a local models directory.
package modelregistry

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ModelRef represents a parsed model reference
type ModelRef struct {
	// Owner is the namespace/organization (e.g., "onnx-community", "urchade")
	Owner string
	// Name is the model name (e.g., "gliner_small-v2.1")
	Name string
	// Variant is the optional ONNX variant (e.g., "fp16", "quantized")
	Variant string
	// IsHuggingFace indicates if this was a hf: prefixed reference
	IsHuggingFace bool
}

// FullName returns "owner/name" format (e.g., "onnx-community/gliner_small-v2.1")
func (r ModelRef) FullName() string {
	if r.Owner == "" {
		return r.Name
	}
	return r.Owner + "/" + r.Name
}

// DirPath returns the directory path relative to the models directory,
// e.g., "onnx-community/gliner_small-v2.1"
func (r ModelRef) DirPath() string {
	if r.Owner == "" {
		return r.Name
	}
	return filepath.Join(r.Owner, r.Name)
}

// String returns a human-readable representation
func (r ModelRef) String() string {
	s := r.FullName()
	if r.Variant != "" {
		s += ":" + r.Variant
	}
	if r.IsHuggingFace {
		s = "hf:" + s
	}
	return s
}

// ParseModelRef parses model reference formats:
//
//	"urchade/gliner_small-v2.1"           -> Owner: urchade, Name: gliner_small-v2.1
//	"urchade/gliner_small-v2.1:quantized" -> same, Variant: quantized
//	"hf:urchade/gliner_small-v2.1"        -> same, IsHuggingFace: true
//	"gliner_small-v2.1"                   -> Owner: "", Name: gliner_small-v2.1
func ParseModelRef(ref string) (ModelRef, error) {
	if ref == "" {
		return ModelRef{}, fmt.Errorf("empty model reference")
	}

	result := ModelRef{}

	// Check for hf: prefix
	if after, ok := strings.CutPrefix(ref, "hf:"); ok {
		result.IsHuggingFace = true
		ref = after
	}

	// Check for variant suffix (colon-separated like Docker/Ollama tags)
	if idx := strings.LastIndex(ref, ":"); idx != -1 {
		result.Variant = ref[idx+1:]
		ref = ref[:idx]

		if !IsValidVariant(result.Variant) {
			return ModelRef{}, fmt.Errorf("invalid variant %q: valid variants are %v",
				result.Variant, ValidVariants())
		}
	}

	// Split owner/name
	parts := strings.SplitN(ref, "/", 2)
	if len(parts) == 2 {
		result.Owner = parts[0]
		result.Name = parts[1]
	} else {
		result.Name = parts[0]
	}

	if result.Name == "" {
		return ModelRef{}, fmt.Errorf("model reference has empty name: %q", ref)
	}

	return result, nil
}

// ParseHuggingFaceRef parses a model reference like "hf:owner/repo" and
// returns the repo ID
func ParseHuggingFaceRef(ref string) (repoID string, isHF bool) {
	if after, ok := strings.CutPrefix(ref, "hf:"); ok {
		return after, true
	}
	return "", false
}

// ValidVariants returns the list of valid ONNX variant names
func ValidVariants() []string {
	return []string{"", "fp16", "q4", "q4f16", "quantized"}
}

// IsValidVariant checks if a variant name is valid
func IsValidVariant(variant string) bool {
	for _, v := range ValidVariants() {
		if v == variant {
			return true
		}
	}
	return false
}

// VariantDescription returns a human-readable description of a variant
func VariantDescription(variant string) string {
	switch variant {
	case "":
		return "full precision (default)"
	case "fp16":
		return "half precision (FP16)"
	case "q4":
		return "4-bit quantized"
	case "q4f16":
		return "4-bit quantized with FP16"
	case "quantized":
		return "INT8 quantized"
	default:
		return "unknown"
	}
}
