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

package observability

import "sync"

var (
	globalRecorder Recorder
	recorderMu     sync.RWMutex
)

// SetGlobalRecorder installs the process-wide Recorder. Runtime calls this
// once at startup with the Manager's Prometheus-backed Metrics when metrics
// are enabled; packages that record metrics from deep call stacks (pkg/llm,
// pkg/agent, pkg/tools) reach it through GetGlobalRecorder rather than
// threading a Recorder through every constructor.
func SetGlobalRecorder(r Recorder) {
	recorderMu.Lock()
	defer recorderMu.Unlock()
	globalRecorder = r
}

// GetGlobalRecorder returns the installed Recorder, or a NoopMetrics when
// none has been installed (metrics disabled, or called before startup).
func GetGlobalRecorder() Recorder {
	recorderMu.RLock()
	defer recorderMu.RUnlock()
	if globalRecorder == nil {
		return NoopMetrics{}
	}
	return globalRecorder
}
