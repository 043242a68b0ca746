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

// Command glean manages GLiNER model artifacts for zero-shot entity and
// relation extraction.
//
// Usage:
//
//	glean pull <model>             # Download a model from HuggingFace
//	glean list                     # List local models
//	glean inspect <model>          # Show a local model's decode config
package main

import (
	"github.com/antflydb/glean/cmd/cmd"
)

// https://goreleaser.com/cookbooks/using-main.version/
//
// main.version: Current Git tag (the v prefix is stripped) or the name of
// the snapshot, if you're using the --snapshot flag
var version = "dev"

func main() {
	cmd.Version = version
	cmd.Execute()
}
