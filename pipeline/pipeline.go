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
	"time"

	"github.com/blinklabs-io/webbundle/datasource"
)

// ErrPipelineStopped is returned when trying to submit to a stopped pipeline.
var ErrPipelineStopped = errors.New("pipeline is stopped")

// ErrPipelineNotStarted is returned when trying to use a pipeline that hasn't been started.
var ErrPipelineNotStarted = errors.New("pipeline not started")

// ErrMissingVerifier is returned when verification is enabled but no Verifier is configured.
var ErrMissingVerifier = errors.New("pipeline: verification enabled but Verifier not configured")

// closedResultsChan is a closed channel returned by Results() before Start() is called.
// This prevents callers from blocking indefinitely on a nil channel.
var closedResultsChan = func() <-chan *BundleItem {
	ch := make(chan *BundleItem)
	close(ch)
	return ch
}()

// newNotStartedErrorsChan creates a fresh channel that yields ErrPipelineNotStarted once.
// Each call creates a new channel to ensure all callers receive the error.
func newNotStartedErrorsChan() <-chan error {
	ch := make(chan error, 1)
	ch <- ErrPipelineNotStarted
	close(ch)
	return ch
}

// BundlePipeline orchestrates the bundle processing pipeline.
type BundlePipeline struct {
	config PipelineConfig
	logger *slog.Logger

	// Stages
	parseStage  *ParseStage
	verifyStage *VerifyStage
	reportStage *ReportStage

	// Worker pools and runners
	parsePool    *StageWorkerPool
	verifyPool   *StageWorkerPool
	reportRunner *ReportStageRunner

	// Channels
	submitChan   chan *BundleItem
	parsedChan   chan *BundleItem
	verifiedChan chan *BundleItem
	resultsChan  chan *BundleItem
	errorsChan   chan error

	// Metrics
	metrics *PipelineMetrics

	// State
	sequenceCounter uint64
	ctx             context.Context
	cancel          context.CancelFunc
	started         atomic.Bool
	stopped         atomic.Bool
	wg              sync.WaitGroup
	mu              sync.Mutex   // protects Start/Stop
	submitMu        sync.RWMutex // protects Submit against concurrent Stop
}

// NewBundlePipeline creates a new BundlePipeline using functional options.
// Use With* options to customize the pipeline configuration.
//
// Example:
//
//	p := NewBundlePipeline(
//	    WithParseWorkers(4),
//	    WithVerifier(verifier.New()),
//	    WithReportFunc(myReportFunc),
//	)
func NewBundlePipeline(opts ...PipelineOption) *BundlePipeline {
	config := DefaultPipelineConfig()
	for _, opt := range opts {
		opt(&config)
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &BundlePipeline{
		config:  config,
		logger:  logger,
		metrics: NewPipelineMetrics(),
	}
}

// Start starts the pipeline processing.
func (p *BundlePipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped.Load() {
		return ErrPipelineStopped
	}

	if p.started.Load() {
		return nil // Already started
	}

	verifyEnabled := p.config.VerifyWorkers > 0
	if verifyEnabled && p.config.Verifier == nil {
		return ErrMissingVerifier
	}

	// Create cancellable context
	p.ctx, p.cancel = context.WithCancel(ctx)

	// Create channels
	bufSize := p.config.PrefetchBufferSize
	p.submitChan = make(chan *BundleItem, bufSize)
	p.parsedChan = make(chan *BundleItem, bufSize)
	p.resultsChan = make(chan *BundleItem, bufSize)
	p.errorsChan = make(chan error, bufSize)

	p.parseStage = NewParseStage(p.logger)
	p.reportStage = NewReportStage(p.config.ReportFunc, p.config.MaxPendingBundles)

	p.parsePool = NewStageWorkerPool(StageWorkerPoolConfig{
		Stage:         p.parseStage,
		NumWorkers:    p.config.ParseWorkers,
		Input:         p.submitChan,
		Output:        p.parsedChan,
		Errors:        p.errorsChan,
		RecordMetrics: ParseMetricsRecorder(p.metrics),
		Logger:        p.logger,
	})

	// Determine input channel for report stage
	var reportInput <-chan *BundleItem

	if verifyEnabled {
		p.verifiedChan = make(chan *BundleItem, bufSize)
		p.verifyStage = NewVerifyStage(p.config.Verifier)
		p.verifyPool = NewStageWorkerPool(StageWorkerPoolConfig{
			Stage:         p.verifyStage,
			NumWorkers:    p.config.VerifyWorkers,
			Input:         p.parsedChan,
			Output:        p.verifiedChan,
			Errors:        p.errorsChan,
			RecordMetrics: VerifyMetricsRecorder(p.metrics),
			ShouldRecord:  RecordIfParsed,
			Logger:        p.logger,
		})
		reportInput = p.verifiedChan
	} else {
		// Skip verification - parsed bundles go directly to report
		reportInput = p.parsedChan
	}

	p.reportRunner = NewReportStageRunner(
		p.reportStage,
		reportInput,
		p.resultsChan,
		p.errorsChan,
	)
	p.reportRunner.SetMetrics(p.metrics)

	// Start all stages
	// Note: p.ctx is derived from the passed ctx via context.WithCancel above
	p.parsePool.Start(p.ctx) //nolint:contextcheck
	if verifyEnabled {
		p.verifyPool.Start(p.ctx) //nolint:contextcheck
	}
	p.reportRunner.Start(p.ctx) //nolint:contextcheck

	p.logger.Info(
		"started bundle pipeline",
		"component", "pipeline",
		"parse_workers", p.config.ParseWorkers,
		"verify_workers", p.config.VerifyWorkers,
	)

	// Start metrics collection goroutine
	p.wg.Add(1)
	go p.metricsCollector()

	p.started.Store(true)
	return nil
}

// Submit submits a new bundle for processing.
// This method is safe to call concurrently with Stop().
// The context allows callers to handle timeouts or cancellations when the
// pipeline is full and applying backpressure.
func (p *BundlePipeline) Submit(ctx context.Context, name string, source datasource.DataSource) error {
	// Early checks for common cases (before acquiring lock)
	if !p.started.Load() {
		return ErrPipelineNotStarted
	}

	// RLock allows concurrent submits while preventing races with Stop().
	// This is critical: between the stopped check and channel send, Stop() could
	// close submitChan causing a panic. The RLock ensures Stop() waits until
	// all in-flight submits complete before closing the channel.
	p.submitMu.RLock()
	defer p.submitMu.RUnlock()

	// Check stopped under lock to ensure we don't race with Stop()
	if p.stopped.Load() {
		return ErrPipelineStopped
	}

	// Allocate sequence number only once, then send.
	// We use a single blocking select to avoid sequence gaps that would occur
	// if we allocated in a non-blocking attempt that failed.
	item := NewBundleItem(name, source, atomic.AddUint64(&p.sequenceCounter, 1)-1)

	select {
	case p.submitChan <- item:
		p.metrics.RecordSubmit()
		return nil
	case <-ctx.Done():
		// Context cancelled while waiting - sequence gap is acceptable
		// because this typically means shutdown.
		return ctx.Err()
	case <-p.ctx.Done():
		return ErrPipelineStopped
	}
}

// Results returns a channel of processed bundle items in submission order. Items
// that failed to parse or verify are included; check BundleItem.Err.
// If the pipeline has not been started, returns a closed channel to prevent blocking.
func (p *BundlePipeline) Results() <-chan *BundleItem {
	if !p.started.Load() {
		return closedResultsChan
	}
	return p.resultsChan
}

// Errors returns a channel of processing errors.
// If the pipeline has not been started, returns a channel that yields
// ErrPipelineNotStarted once and then closes.
func (p *BundlePipeline) Errors() <-chan error {
	if !p.started.Load() {
		return newNotStartedErrorsChan()
	}
	return p.errorsChan
}

// Stop gracefully stops the pipeline.
func (p *BundlePipeline) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started.Load() || p.stopped.Load() {
		return nil
	}

	// Cancel context FIRST to unblock any Submit() calls waiting on channel send.
	// This must happen before acquiring submitMu.Lock() to avoid deadlock:
	// Submit() holds RLock while blocking on channel, and we need it to unblock
	// via ctx.Done() before we can acquire the write lock.
	p.cancel()

	// Now acquire write lock to ensure no Submit() calls are in progress.
	// Any Submit() blocked on channel send will now return via ctx.Done().
	p.submitMu.Lock()
	p.stopped.Store(true)
	// Close input channel to signal shutdown
	close(p.submitChan)
	p.submitMu.Unlock()

	// Wait for parse workers to finish
	p.parsePool.Stop()
	close(p.parsedChan)

	// Wait for verify workers to finish (if verification is enabled)
	if p.verifyPool != nil {
		p.verifyPool.Stop()
		close(p.verifiedChan)
	}

	// Wait for report runner to finish
	p.reportRunner.Stop()

	// Close output channels
	close(p.resultsChan)
	close(p.errorsChan)

	// Wait for metrics collector
	p.wg.Wait()

	stats := p.metrics.Stats()
	p.logger.Info(
		"stopped bundle pipeline",
		"component", "pipeline",
		"submitted", stats.BundlesSubmitted,
		"reported", stats.BundlesReported,
		"parse_errors", stats.ParseErrors,
		"verify_errors", stats.VerifyErrors,
	)
	return nil
}

// Stats returns the current pipeline statistics.
func (p *BundlePipeline) Stats() PipelineStats {
	return p.metrics.Stats()
}

// PendingCount returns the approximate number of items still being processed.
// This includes items in inter-stage channels and items buffered in the report stage.
func (p *BundlePipeline) PendingCount() int {
	if !p.started.Load() {
		return 0
	}
	channelDepth := len(p.submitChan) + len(p.parsedChan) + len(p.verifiedChan)
	reportPending := 0
	if p.reportStage != nil {
		reportPending = p.reportStage.PendingCount()
	}
	return channelDepth + reportPending
}

// WaitForDrain blocks until no submitted items are waiting in the pipeline or the
// context is cancelled.
func (p *BundlePipeline) WaitForDrain(ctx context.Context) error {
	if !p.started.Load() {
		return ErrPipelineNotStarted
	}

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if p.PendingCount() == 0 {
				return nil
			}
		}
	}
}

// metricsCollector collects metrics from processed items.
func (p *BundlePipeline) metricsCollector() {
	defer p.wg.Done()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			// Update queue depth
			depth := len(p.submitChan) + len(p.parsedChan) + len(p.verifiedChan)
			p.metrics.UpdateQueueDepth(depth)
		}
	}
}
