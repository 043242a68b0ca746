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
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gomlx/go-huggingface/hub"
)

// ProgressHandler reports download progress: bytes done, total, file name.
type ProgressHandler func(done, total int64, fileName string)

// HuggingFaceClient pulls GLiNER model artifacts from HuggingFace Hub
type HuggingFaceClient struct {
	token           string
	progressHandler ProgressHandler
}

// HFClientOption configures the HuggingFace client
type HFClientOption func(*HuggingFaceClient)

// NewHuggingFaceClient creates a new HuggingFace client
func NewHuggingFaceClient(opts ...HFClientOption) *HuggingFaceClient {
	c := &HuggingFaceClient{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithHFToken sets the HuggingFace API token for gated models
func WithHFToken(token string) HFClientOption {
	return func(c *HuggingFaceClient) { c.token = token }
}

// WithHFProgressHandler sets the progress handler for downloads
func WithHFProgressHandler(h ProgressHandler) HFClientOption {
	return func(c *HuggingFaceClient) { c.progressHandler = h }
}

// PullModel downloads the files a GLiNER model directory needs from a
// HuggingFace repo: the ONNX model (matching the requested variant),
// gliner_config.json, and the tokenizer/vocab files.
//
// The model is stored in the owner/model directory structure:
//
//	destDir/owner/model-name/
func (c *HuggingFaceClient) PullModel(ctx context.Context, repoID, destDir, variant string) error {
	ref, err := ParseModelRef(repoID)
	if err != nil {
		return fmt.Errorf("parsing repo ID: %w", err)
	}

	repo := hub.New(repoID)
	if c.token != "" {
		repo = repo.WithAuth(c.token)
	}

	// List all files in repo
	var files []string
	for fileName, err := range repo.IterFileNames() {
		if err != nil {
			return fmt.Errorf("listing files: %w", err)
		}
		files = append(files, fileName)
	}

	toDownload := selectModelFiles(files, variant)
	if len(toDownload) == 0 {
		return fmt.Errorf("no model files found in %s", repoID)
	}

	modelDir := filepath.Join(destDir, ref.DirPath())
	if err := os.MkdirAll(modelDir, 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	for _, fileName := range toDownload {
		if err := ctx.Err(); err != nil {
			return err
		}

		localPath, err := repo.DownloadFile(fileName)
		if err != nil {
			return fmt.Errorf("downloading %s: %w", fileName, err)
		}

		// Flatten path (e.g., "onnx/model.onnx" -> "model.onnx")
		destName := filepath.Base(fileName)
		destPath := filepath.Join(modelDir, destName)

		if c.progressHandler != nil {
			c.progressHandler(0, 0, destName)
		}

		if err := copyFile(localPath, destPath); err != nil {
			return fmt.Errorf("copying %s: %w", fileName, err)
		}

		if c.progressHandler != nil {
			if info, err := os.Stat(destPath); err == nil {
				c.progressHandler(info.Size(), info.Size(), destName)
			}
		}
	}

	return nil
}

// ListRepoFiles returns all files in a HuggingFace repo (useful for inspection)
func (c *HuggingFaceClient) ListRepoFiles(ctx context.Context, repoID string) ([]string, error) {
	repo := hub.New(repoID)
	if c.token != "" {
		repo = repo.WithAuth(c.token)
	}

	var files []string
	for fileName, err := range repo.IterFileNames() {
		if err != nil {
			return nil, fmt.Errorf("listing files: %w", err)
		}
		files = append(files, fileName)
	}
	return files, nil
}

// DetectAvailableVariants returns which ONNX variants are available in a repo
func (c *HuggingFaceClient) DetectAvailableVariants(ctx context.Context, repoID string) ([]string, error) {
	files, err := c.ListRepoFiles(ctx, repoID)
	if err != nil {
		return nil, err
	}

	variants := []string{}
	variantPatterns := map[string]string{
		"":          "model.onnx",
		"fp16":      "model_fp16.onnx",
		"q4":        "model_q4.onnx",
		"q4f16":     "model_q4f16.onnx",
		"quantized": "model_quantized.onnx",
	}

	for variant, pattern := range variantPatterns {
		for _, f := range files {
			if filepath.Base(f) == pattern {
				if variant == "" {
					variants = append(variants, "default")
				} else {
					variants = append(variants, variant)
				}
				break
			}
		}
	}

	return variants, nil
}

// selectModelFiles filters repo files down to what a GLiNER model directory
// needs: config and tokenizer files plus the ONNX file matching the variant.
func selectModelFiles(files []string, variant string) []string {
	var result []string

	configFiles := []string{
		"gliner_config.json",
		"config.json",
		"tokenizer.json",
		"tokenizer_config.json",
		"special_tokens_map.json",
		"vocab.txt",
		"spm.model",
	}
	for _, cf := range configFiles {
		for _, f := range files {
			if filepath.Base(f) == cf {
				result = append(result, f)
				break
			}
		}
	}

	var onnxBase string
	switch variant {
	case "fp16":
		onnxBase = "model_fp16"
	case "q4":
		onnxBase = "model_q4"
	case "q4f16":
		onnxBase = "model_q4f16"
	case "quantized":
		onnxBase = "model_quantized"
	default:
		onnxBase = "model"
	}

	for _, f := range files {
		base := filepath.Base(f)
		// Match exact model file or its external data file
		if base == onnxBase+".onnx" || base == onnxBase+".onnx_data" || base == onnxBase+".onnx.data" {
			result = append(result, f)
		}
	}

	return result
}

// IsGLiNERModel checks if a model path contains a GLiNER model by looking
// for gliner_config.json or "gliner" in the model name.
func IsGLiNERModel(modelPath string) bool {
	configPath := filepath.Join(modelPath, "gliner_config.json")
	if _, err := os.Stat(configPath); err == nil {
		return true
	}

	modelName := strings.ToLower(filepath.Base(modelPath))
	return strings.Contains(modelName, "gliner")
}

// FindONNXFile returns the first existing candidate ONNX file in a model
// directory, or "" when none exists.
func FindONNXFile(modelPath string, candidates []string) string {
	for _, name := range candidates {
		p := filepath.Join(modelPath, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// copyFile copies a file from src to dst
func copyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer func() { _ = srcFile.Close() }()

	dstFile, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating destination: %w", err)
	}

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		_ = dstFile.Close()
		return fmt.Errorf("copying: %w", err)
	}

	return dstFile.Close()
}
