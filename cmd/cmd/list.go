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
	"strings"

	"github.com/bytedance/sonic"
	"github.com/bytedance/sonic/encoder"
	"github.com/spf13/cobra"

	"github.com/antflydb/glean/lib/modelregistry"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List local GLiNER models",
	Long: `List GLiNER models installed in the models directory.

Examples:
  # List local models
  glean list

  # List remote variants available for a HuggingFace repo
  glean list --remote urchade/gliner_small-v2.1

  # Machine-readable output
  glean list --json`,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)

	// List command flags
	listCmd.Flags().String("remote", "", "List ONNX variants available in a HuggingFace repo")
	listCmd.Flags().Bool("json", false, "Emit JSON instead of a table")
}

func runList(cmd *cobra.Command, args []string) error {
	remote, _ := cmd.Flags().GetString("remote")
	asJSON, _ := cmd.Flags().GetBool("json")

	if remote != "" {
		return listRemoteVariants(cmd, remote, asJSON)
	}

	models, err := modelregistry.ScanLocalModels(modelsDir)
	if err != nil {
		return fmt.Errorf("scanning %s: %w", modelsDir, err)
	}

	if asJSON {
		enc := encoder.NewStreamEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(models)
	}

	if len(models) == 0 {
		fmt.Printf("No models found in %s\n", modelsDir)
		fmt.Println("Use 'glean pull <model>' to download one.")
		return nil
	}

	fmt.Printf("%-45s %-22s %-10s %s\n", "MODEL", "VARIANTS", "CONFIG", "SIZE")
	for _, m := range models {
		config := "-"
		if m.HasConfig {
			config = "yes"
		}
		fmt.Printf("%-45s %-22s %-10s %s\n",
			m.Ref.FullName(),
			strings.Join(m.Variants, ","),
			config,
			humanSize(m.SizeBytes))
	}
	return nil
}

func listRemoteVariants(cmd *cobra.Command, repoID string, asJSON bool) error {
	client := modelregistry.NewHuggingFaceClient(
		modelregistry.WithHFToken(os.Getenv("HF_TOKEN")),
	)

	variants, err := client.DetectAvailableVariants(cmd.Context(), repoID)
	if err != nil {
		return fmt.Errorf("listing %s: %w", repoID, err)
	}

	if asJSON {
		data, err := sonic.MarshalIndent(variants, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("Variants in %s:\n", repoID)
	for _, v := range variants {
		fmt.Printf("  %s\n", v)
	}
	return nil
}

// humanSize formats a byte count.
func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
