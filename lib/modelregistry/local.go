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

package modelregistry

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LocalModel describes a model directory under the local models dir.
type LocalModel struct {
	// Ref is the owner/name reference reconstructed from the path
	Ref ModelRef `json:"ref"`
	// Path is the absolute model directory
	Path string `json:"path"`
	// HasConfig is true when gliner_config.json is present
	HasConfig bool `json:"has_config"`
	// Variants lists the ONNX variants found in the directory
	Variants []string `json:"variants"`
	// SizeBytes is the total size of the directory's files
	SizeBytes int64 `json:"size_bytes"`
}

// ScanLocalModels enumerates model directories under modelsDir. Layout is
// owner/name (flat name directories are accepted too). Directories without
// any ONNX file are skipped.
func ScanLocalModels(modelsDir string) ([]LocalModel, error) {
	entries, err := os.ReadDir(modelsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var models []LocalModel
	for _, owner := range entries {
		if !owner.IsDir() {
			continue
		}
		ownerDir := filepath.Join(modelsDir, owner.Name())

		// A directory holding ONNX files directly is a flat (ownerless) model.
		if m, ok := scanModelDir(ownerDir, ModelRef{Name: owner.Name()}); ok {
			models = append(models, m)
			continue
		}

		children, err := os.ReadDir(ownerDir)
		if err != nil {
			continue
		}
		for _, child := range children {
			if !child.IsDir() {
				continue
			}
			ref := ModelRef{Owner: owner.Name(), Name: child.Name()}
			if m, ok := scanModelDir(filepath.Join(ownerDir, child.Name()), ref); ok {
				models = append(models, m)
			}
		}
	}

	sort.Slice(models, func(i, j int) bool {
		return models[i].Ref.FullName() < models[j].Ref.FullName()
	})
	return models, nil
}

// scanModelDir inspects one candidate model directory.
func scanModelDir(dir string, ref ModelRef) (LocalModel, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return LocalModel{}, false
	}

	m := LocalModel{Ref: ref, Path: dir}
	hasONNX := false
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err == nil {
			m.SizeBytes += info.Size()
		}
		name := e.Name()
		switch {
		case name == "gliner_config.json":
			m.HasConfig = true
		case strings.HasSuffix(name, ".onnx"):
			hasONNX = true
			m.Variants = append(m.Variants, onnxVariant(name))
		}
	}
	if !hasONNX {
		return LocalModel{}, false
	}

	sort.Strings(m.Variants)
	return m, true
}

// onnxVariant maps an ONNX file name to its variant label.
func onnxVariant(name string) string {
	base := strings.TrimSuffix(name, ".onnx")
	switch base {
	case "model", "gliner":
		return "default"
	default:
		return strings.TrimPrefix(base, "model_")
	}
}
