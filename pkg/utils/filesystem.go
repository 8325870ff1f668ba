// Copyright 2026 The Nyx Orchestrator Authors
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

// Package utils holds small filesystem helpers shared across packages.
package utils

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureStateDir ensures a .nyx state directory exists under basePath and
// returns its path. Used for the default sqlite path, vector index
// snapshots, and checkpoint storage when no explicit path is configured.
func EnsureStateDir(basePath string) (string, error) {
	var dir string
	if basePath == "" || basePath == "." {
		dir = ".nyx"
	} else {
		dir = filepath.Join(basePath, ".nyx")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create state dir %q: %w", dir, err)
	}

	return dir, nil
}
