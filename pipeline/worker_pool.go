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
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
)

// MetricsRecorder is a function that records metrics for a processed bundle item.
// It receives the item that was processed and the error (if any) from processing.
// The function should extract the appropriate duration from the item based on
// which stage recorded the timing (e.g., ParseDuration, VerifyDuration).
type MetricsRecorder func(item *BundleItem, err error)

// ShouldRecordMetrics is a function that determines whether metrics should be
// recorded for a given bundle item. This allows stages to skip metric recording
// for items that weren't actually processed (e.g., verification skipping items
// that failed to parse).
type ShouldRecordMetrics func(item *BundleItem) bool

// StageWorkerPool runs multiple workers in parallel for a given stage.
// This is a generic worker pool that can be used with any stage implementing
// the Stage interface.
type StageWorkerPool struct {
	stage         Stage
	numWorkers    int
	input         <-chan *BundleItem
	output        chan<- *BundleItem
	errors        chan<- error
	recordMetrics MetricsRecorder
	shouldRecord  ShouldRecordMetrics
	logger        *slog.Logger
	wg            sync.WaitGroup
	started       atomic.Bool
}

// StageWorkerPoolConfig holds configuration for creating a StageWorkerPool.
type StageWorkerPoolConfig struct {
	// Stage is the processing stage to use (required, panics if nil).
	Stage Stage
	// NumWorkers is the number of parallel workers; defaults to 1 if <= 0.
	NumWorkers int
	// Input is the channel to receive bundle items from.
	Input <-chan *BundleItem
	// Output is the channel to send processed items to.
	Output chan<- *BundleItem
	// Errors is the channel to send errors to; may be nil.
	Errors chan<- error
	// RecordMetrics is called after processing to record metrics.
	// If nil, no metrics are recorded.
	RecordMetrics MetricsRecorder
	// ShouldRecord determines whether to record metrics for an item.
	// If nil, metrics are recorded for all items.
	ShouldRecord ShouldRecordMetrics
	// Logger receives worker lifecycle and per-item debug logs; defaults to
	// slog.Default().
	Logger *slog.Logger
}

// NewStageWorkerPool creates a new worker pool for the given stage.
//
// Parameters:
//   - config: Configuration for the worker pool (Stage is required)
//
// Note: If input or output channels are nil, workers will block indefinitely
// when attempting to receive or send items.
func NewStageWorkerPool(config StageWorkerPoolConfig) *StageWorkerPool {
	if config.Stage == nil {
		panic(ErrNilStage)
	}
	numWorkers := config.NumWorkers
	if numWorkers <= 0 {
		numWorkers = 1
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &StageWorkerPool{
		logger:        logger,
		stage:         config.Stage,
		numWorkers:    numWorkers,
		input:         config.Input,
		output:        config.Output,
		errors:        config.Errors,
		recordMetrics: config.RecordMetrics,
		shouldRecord:  config.ShouldRecord,
	}
}

// Start starts the worker pool. Call Stop to wait for completion.
// This method is idempotent - calling it multiple times has no effect.
func (p *StageWorkerPool) Start(ctx context.Context) {
	if p.started.Swap(true) {
		return // Already started
	}
	p.logger.Debug(
		"starting stage workers",
		"component", "pipeline",
		"stage", p.stage.Name(),
		"workers", p.numWorkers,
	)
	for i := range p.numWorkers {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Stop waits for all workers to complete.
func (p *StageWorkerPool) Stop() {
	p.wg.Wait()
}

func (p *StageWorkerPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case item, ok := <-p.input:
			if !ok {
				return
			}

			err := p.stage.Process(ctx, item)
			if err != nil {
				p.logger.Debug(
					"stage failed",
					"component", "pipeline",
					"stage", p.stage.Name(),
					"worker", id,
					"bundle", item.Name(),
					"sequence", item.SequenceNumber(),
					"error", err,
				)
			}

			// Record metrics only for actual processing attempts (not context cancellation)
			// and only if the shouldRecord check passes (or is nil)
			if p.recordMetrics != nil &&
				!errors.Is(err, context.Canceled) &&
				!errors.Is(err, context.DeadlineExceeded) &&
				(p.shouldRecord == nil || p.shouldRecord(item)) {
				p.recordMetrics(item, err)
			}

			if err != nil && p.errors != nil {
				// Send error but still forward item for tracking
				select {
				case p.errors <- err:
				case <-ctx.Done():
					return
				}
			}

			// Forward to next stage (even on error, for stats tracking)
			select {
			case p.output <- item:
			case <-ctx.Done():
				return
			}
		}
	}
}

// ParseMetricsRecorder returns a MetricsRecorder for the parse stage.
func ParseMetricsRecorder(metrics *PipelineMetrics) MetricsRecorder {
	if metrics == nil {
		return nil
	}
	return func(item *BundleItem, err error) {
		metrics.RecordParse(item.ParseDuration(), err)
	}
}

// VerifyMetricsRecorder returns a MetricsRecorder for the verify stage.
func VerifyMetricsRecorder(metrics *PipelineMetrics) MetricsRecorder {
	if metrics == nil {
		return nil
	}
	return func(item *BundleItem, err error) {
		metrics.RecordVerify(item.VerifyDuration(), err)
	}
}

// AlwaysRecordMetrics is a ShouldRecordMetrics that always returns true.
func AlwaysRecordMetrics(item *BundleItem) bool {
	return true
}

// RecordIfParsed is a ShouldRecordMetrics that only records metrics
// if the item's integrity block was successfully parsed.
func RecordIfParsed(item *BundleItem) bool {
	return item.IsParsed()
}
