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
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Version is set from main via goreleaser ldflags.
var Version = "dev"

var modelsDir string

var rootCmd = &cobra.Command{
	Use:   "glean",
	Short: "Zero-shot entity and relation extraction tooling",
	Long: `glean manages GLiNER model artifacts for zero-shot entity and
relation extraction. Models are pulled from HuggingFace into a local
models directory and loaded by the glean library at runtime.`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.Version = Version

	rootCmd.PersistentFlags().StringVar(&modelsDir, "models-dir", defaultModelsDir(),
		"Directory holding local model files")
	mustBindPFlag("models_dir", rootCmd.PersistentFlags().Lookup("models-dir"))
}

// initConfig wires environment variables: GLEAN_MODELS_DIR etc.
func initConfig() {
	viper.SetEnvPrefix("GLEAN")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if v := viper.GetString("models_dir"); v != "" {
		modelsDir = v
	}
}

// defaultModelsDir returns ~/.glean/models, falling back to ./models when
// the home directory cannot be resolved.
func defaultModelsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "models"
	}
	return filepath.Join(home, ".glean", "models")
}

func mustBindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("binding flag %s: %v", key, err))
	}
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
