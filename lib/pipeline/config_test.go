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

package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Run("missing file falls back to defaults", func(t *testing.T) {
		cfg := LoadConfig(t.TempDir())
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("partial config keeps defaults for missing fields", func(t *testing.T) {
		dir := t.TempDir()
		data := `{"max_width": 8, "threshold": 0.3, "labels": ["person"]}`
		require.NoError(t, os.WriteFile(filepath.Join(dir, "gliner_config.json"), []byte(data), 0o644))

		cfg := LoadConfig(dir)
		assert.Equal(t, 8, cfg.MaxWidth)
		assert.InDelta(t, 0.3, cfg.Threshold, 1e-6)
		assert.Equal(t, []string{"person"}, cfg.DefaultLabels)
		// Untouched fields keep their defaults.
		assert.Equal(t, 512, cfg.MaxLength)
		assert.InDelta(t, 0.5, cfg.RelationThreshold, 1e-6)
		assert.Equal(t, " ", cfg.WordsJoiner)
	})

	t.Run("malformed file falls back to defaults", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "gliner_config.json"), []byte("{nope"), 0o644))

		cfg := LoadConfig(dir)
		assert.Equal(t, DefaultConfig(), cfg)
	})
}
