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

	"github.com/spf13/cobra"

	"github.com/antflydb/glean/lib/modelregistry"
)

var pullCmd = &cobra.Command{
	Use:   "pull <model-name> [model-name...]",
	Short: "Pull GLiNER model(s) from HuggingFace",
	Long: `Download one or more GLiNER models from HuggingFace Hub.

Each model is downloaded to the models directory using the
owner/model-name layout, together with its gliner_config.json and
tokenizer files.

Variants:
  fp16       - FP16 half precision (~50% smaller)
  q4         - 4-bit quantized
  q4f16      - 4-bit quantized with FP16
  quantized  - INT8 quantized (smallest, fastest CPU)

Examples:
  # Pull the default FP32 model
  glean pull urchade/gliner_small-v2.1

  # Pull the INT8 variant (smaller download)
  glean pull urchade/gliner_small-v2.1:quantized

  # Pull a multitask model (entities + relations)
  glean pull knowledgator/gliner-multitask-large-v0.5

  # Pull to a custom directory
  glean pull --models-dir /opt/antfly/models urchade/gliner_small-v2.1`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPull,
}

func init() {
	rootCmd.AddCommand(pullCmd)

	// Pull command flags
	pullCmd.Flags().String("hf-token", "",
		"HuggingFace API token for gated models (or use HF_TOKEN env var)")
	pullCmd.Flags().String("variant", "",
		"ONNX variant (fp16, q4, q4f16, quantized)")
}

func runPull(cmd *cobra.Command, args []string) error {
	hfToken, _ := cmd.Flags().GetString("hf-token")
	if hfToken == "" {
		hfToken = os.Getenv("HF_TOKEN")
	}
	variant, _ := cmd.Flags().GetString("variant")

	client := modelregistry.NewHuggingFaceClient(
		modelregistry.WithHFToken(hfToken),
		modelregistry.WithHFProgressHandler(func(done, total int64, fileName string) {
			if done > 0 && done == total {
				fmt.Printf("  %s (%d bytes)\n", fileName, done)
			}
		}),
	)

	for _, modelRef := range args {
		fmt.Printf("\n=== Pulling %s ===\n", modelRef)

		ref, err := modelregistry.ParseModelRef(modelRef)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", modelRef, err)
		}

		pullVariant := variant
		if pullVariant == "" {
			pullVariant = ref.Variant
		}

		if err := client.PullModel(cmd.Context(), ref.FullName(), modelsDir, pullVariant); err != nil {
			return fmt.Errorf("failed to pull %s: %w", modelRef, err)
		}
	}

	return nil
}
