// Copyright 2025 Antfly, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bytedance/sonic/encoder"
	"github.com/spf13/cobra"

	"github.com/antflydb/glean/lib/modelregistry"
	"github.com/antflydb/glean/lib/pipeline"
	"github.com/antflydb/glean/lib/spans"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <model-name>",
	Short: "Show a local model's decode configuration",
	Long: `Show the decode configuration a local GLiNER model will run with:
thresholds, span width, sequence budget, and default labels, merged from
gliner_config.json and the built-in defaults.

Examples:
  # Inspect a pulled model
  glean inspect urchade/gliner_small-v2.1

  # Show the candidate-grid size for a given text length
  glean inspect urchade/gliner_small-v2.1 --tokens 128`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	// Inspect command flags
	inspectCmd.Flags().Int("tokens", 0, "Also report the span-candidate count for a text of this many tokens")
}

// inspectOutput is the machine-readable inspect report.
type inspectOutput struct {
	Model          string          `json:"model"`
	Path           string          `json:"path"`
	HasConfig      bool            `json:"has_config"`
	Config         pipeline.Config `json:"config"`
	CandidateCount *int            `json:"candidate_count,omitempty"`
}

func runInspect(cmd *cobra.Command, args []string) error {
	ref, err := modelregistry.ParseModelRef(args[0])
	if err != nil {
		return err
	}

	modelPath := filepath.Join(modelsDir, ref.DirPath())
	if _, err := os.Stat(modelPath); err != nil {
		return fmt.Errorf("model %s not found in %s (use 'glean pull' first)", ref.FullName(), modelsDir)
	}

	cfg := pipeline.LoadConfig(modelPath)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("model config invalid: %w", err)
	}

	out := inspectOutput{
		Model:     ref.FullName(),
		Path:      modelPath,
		HasConfig: modelregistry.IsGLiNERModel(modelPath),
		Config:    cfg,
	}

	if tokens, _ := cmd.Flags().GetInt("tokens"); tokens > 0 {
		n := spans.CandidateCount(tokens, cfg.MaxWidth)
		out.CandidateCount = &n
	}

	enc := encoder.NewStreamEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
