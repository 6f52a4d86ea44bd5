// Copyright 2026 Blink Labs Software
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
	"log/slog"
	"runtime"

	"github.com/blinklabs-io/webbundle/verifier"
)

// DefaultMaxPendingBundles is the default limit for out-of-order bundles buffered
// in the report stage.
const DefaultMaxPendingBundles = 1024

// PipelineConfig holds configuration for a BundlePipeline.
type PipelineConfig struct {
	// ParseWorkers is the number of parallel parse workers.
	ParseWorkers int
	// VerifyWorkers is the number of parallel verify workers. Zero disables
	// verification; bundles are then only parsed.
	VerifyWorkers int
	// PrefetchBufferSize is the buffer size for inter-stage channels.
	PrefetchBufferSize int
	// MaxPendingBundles limits out-of-order bundles buffered in the report stage.
	MaxPendingBundles int
	// Verifier checks signatures in the verify stage. Required when VerifyWorkers
	// is non-zero.
	Verifier *verifier.Verifier
	// ReportFunc is called for every bundle in submission order.
	ReportFunc ReportFunc
	// Logger is used by all stages; defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultPipelineConfig returns a PipelineConfig with sensible defaults.
// Verification is disabled by default (VerifyWorkers = 0) since it requires a
// Verifier. To enable it, use WithVerifier().
func DefaultPipelineConfig() PipelineConfig {
	numCPU := runtime.NumCPU()

	// Parsing mostly waits on reads, so it gets at least a couple of workers
	parseWorkers := max(numCPU/2, 2)

	return PipelineConfig{
		ParseWorkers:       parseWorkers,
		VerifyWorkers:      0,
		PrefetchBufferSize: 64,
		MaxPendingBundles:  DefaultMaxPendingBundles,
	}
}

// PipelineOption is a functional option for configuring a BundlePipeline.
type PipelineOption func(*PipelineConfig)

// WithConfig applies a complete PipelineConfig, replacing all default values.
//
// Note: Options applied after WithConfig will still override the config values.
func WithConfig(config PipelineConfig) PipelineOption {
	return func(c *PipelineConfig) {
		*c = config
	}
}

// WithParseWorkers sets the number of parse workers.
func WithParseWorkers(n int) PipelineOption {
	return func(c *PipelineConfig) {
		if n > 0 {
			c.ParseWorkers = n
		}
	}
}

// WithVerifyWorkers sets the number of verify workers.
// Set to 0 to disable verification entirely.
func WithVerifyWorkers(n int) PipelineOption {
	return func(c *PipelineConfig) {
		if n >= 0 {
			c.VerifyWorkers = n
		}
	}
}

// WithPrefetchBufferSize sets the buffer size for inter-stage channels.
func WithPrefetchBufferSize(size int) PipelineOption {
	return func(c *PipelineConfig) {
		if size > 0 {
			c.PrefetchBufferSize = size
		}
	}
}

// WithMaxPendingBundles sets the limit for out-of-order bundles in the report stage.
func WithMaxPendingBundles(n int) PipelineOption {
	return func(c *PipelineConfig) {
		if n > 0 {
			c.MaxPendingBundles = n
		}
	}
}

// WithVerifier sets the verifier and enables verification with one worker per CPU
// unless the number of verify workers was already set.
func WithVerifier(v *verifier.Verifier) PipelineOption {
	return func(c *PipelineConfig) {
		c.Verifier = v
		if v != nil && c.VerifyWorkers == 0 {
			c.VerifyWorkers = runtime.NumCPU()
		}
	}
}

// WithReportFunc sets the report function.
// A nil function is ignored (the pipeline will use a no-op report).
func WithReportFunc(fn ReportFunc) PipelineOption {
	return func(c *PipelineConfig) {
		if fn != nil {
			c.ReportFunc = fn
		}
	}
}

// WithLogger specifies the logger to use
func WithLogger(logger *slog.Logger) PipelineOption {
	return func(c *PipelineConfig) {
		c.Logger = logger
	}
}
