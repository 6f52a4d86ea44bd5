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

// Package pipeline provides a concurrent processing pipeline for signed web bundles.
// It supports parallel parsing and verification with ordered reporting.
package pipeline

import (
	"context"
	"time"

	"github.com/blinklabs-io/webbundle/datasource"
)

// Stage represents a processing stage in the bundle pipeline.
type Stage interface {
	// Name returns the name of the stage for logging and metrics.
	Name() string
	// Process processes a single bundle item. Returns an error if processing fails.
	Process(ctx context.Context, item *BundleItem) error
}

// StageFunc is an adapter that allows using ordinary functions as Stage implementations.
type StageFunc struct {
	name string
	fn   func(ctx context.Context, item *BundleItem) error
}

// NewStageFunc creates a new StageFunc with the given name and processing function.
func NewStageFunc(name string, fn func(ctx context.Context, item *BundleItem) error) *StageFunc {
	return &StageFunc{
		name: name,
		fn:   fn,
	}
}

// Name returns the name of the stage.
func (s *StageFunc) Name() string {
	return s.name
}

// Process calls the underlying function.
func (s *StageFunc) Process(ctx context.Context, item *BundleItem) error {
	return s.fn(ctx, item)
}

// Pipeline represents a bundle processing pipeline.
type Pipeline interface {
	// Start starts the pipeline processing.
	Start(ctx context.Context) error
	// Submit submits a new bundle for processing.
	// The context allows callers to handle timeouts or cancellations when the
	// pipeline is full and applying backpressure.
	Submit(ctx context.Context, name string, source datasource.DataSource) error
	// Results returns a channel of processed bundle items, in submission order.
	Results() <-chan *BundleItem
	// Errors returns a channel of processing errors.
	Errors() <-chan error
	// Stop gracefully stops the pipeline.
	Stop() error
	// WaitForDrain waits for all submitted bundles to be processed.
	WaitForDrain(ctx context.Context) error
	// Stats returns the current pipeline statistics.
	Stats() PipelineStats
}

// PipelineStats contains statistics about pipeline performance.
type PipelineStats struct {
	// BundlesSubmitted is the total number of bundles submitted to the pipeline.
	BundlesSubmitted uint64
	// BundlesParsed is the total number of integrity blocks successfully parsed.
	BundlesParsed uint64
	// BundlesVerified is the total number of bundles whose signatures verified.
	BundlesVerified uint64
	// BundlesReported is the total number of bundles successfully reported.
	BundlesReported uint64
	// ParseErrors is the total number of parse errors.
	ParseErrors uint64
	// FormatErrors, VersionErrors and InternalErrors break ParseErrors down by
	// parser error type.
	FormatErrors   uint64
	VersionErrors  uint64
	InternalErrors uint64
	// VerifyErrors is the total number of verification errors.
	VerifyErrors uint64
	// ReportErrors is the total number of report errors.
	ReportErrors uint64

	// ParseTime and VerifyTime are the cumulative time spent in each stage.
	ParseTime  time.Duration
	VerifyTime time.Duration

	// CurrentQueueDepth is the current number of bundles in the pipeline.
	CurrentQueueDepth int
	// PeakQueueDepth is the maximum queue depth observed.
	PeakQueueDepth int

	// LastBundleTime is the time the last bundle was reported.
	LastBundleTime time.Time
	// StartTime is when the pipeline was started.
	StartTime time.Time
}
