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
	"sync"
	"time"
)

// ErrPendingLimitExceeded is returned when the report stage's pending buffer is full.
var ErrPendingLimitExceeded = errors.New("pipeline: pending bundle limit exceeded")

// ReportFunc is called once for every bundle, in sequence order (by SequenceNumber),
// whether or not it was parsed and verified successfully.
type ReportFunc func(*BundleItem) error

// ReportStage buffers processed bundles and reports them in sequence order.
//
// Thread-safety: While ReportStage uses internal locking for state management,
// ProcessWithStatus must be called from a single goroutine to guarantee ordered
// execution of ReportFunc. The ReportStageRunner provides this guarantee.
type ReportStage struct {
	reportFunc ReportFunc
	maxPending int
	mu         sync.Mutex
	// pending holds out-of-order items waiting to be reported
	pending map[uint64]*BundleItem
	// nextSequence is the next sequence number to report
	nextSequence uint64
}

// NewReportStage creates a new ReportStage with the given report function.
// maxPending limits the number of out-of-order bundles that can be buffered.
// Use 0 for unlimited.
func NewReportStage(reportFunc ReportFunc, maxPending int) *ReportStage {
	return &ReportStage{
		reportFunc: reportFunc,
		maxPending: maxPending,
		pending:    make(map[uint64]*BundleItem),
	}
}

// Name returns the stage name.
func (s *ReportStage) Name() string {
	return "report"
}

// Process buffers the item and reports any items that are now in order.
// Returns nil even if the item is buffered (not yet reported).
func (s *ReportStage) Process(ctx context.Context, item *BundleItem) error {
	_, err := s.ProcessWithStatus(ctx, item)
	return err
}

// ProcessWithStatus processes an item and returns all items that were reported.
// If the item is next in sequence, it is reported immediately along with any
// buffered items that become ready. If the item is out of order, it is buffered
// and the returned slice will be nil.
func (s *ReportStage) ProcessWithStatus(ctx context.Context, item *BundleItem) ([]*BundleItem, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	s.mu.Lock()

	if item.SequenceNumber() == s.nextSequence {
		s.nextSequence++
		s.mu.Unlock()
		s.reportItem(ctx, item)
		buffered := s.reportPending(ctx)
		processed := make([]*BundleItem, 0, 1+len(buffered))
		processed = append(processed, item)
		processed = append(processed, buffered...)
		return processed, nil
	}

	// Buffer for later - always add to preserve sequence ordering
	s.pending[item.SequenceNumber()] = item
	pendingCount := len(s.pending)
	s.mu.Unlock()

	// The item stays buffered, the error only signals backpressure
	if s.maxPending > 0 && pendingCount > s.maxPending {
		return nil, ErrPendingLimitExceeded
	}
	return nil, nil
}

// reportItem reports a single item without holding the lock.
func (s *ReportStage) reportItem(ctx context.Context, item *BundleItem) {
	select {
	case <-ctx.Done():
		item.SetReported(false, ctx.Err(), 0)
		return
	default:
	}

	start := time.Now()
	var err error
	if s.reportFunc != nil {
		err = s.reportFunc(item)
	}
	item.SetReported(err == nil, err, time.Since(start))
}

// reportPending reports any pending items that are now in order.
// Returns a slice of all items that were processed from the pending buffer.
func (s *ReportStage) reportPending(ctx context.Context) []*BundleItem {
	var processed []*BundleItem
	for {
		select {
		case <-ctx.Done():
			return processed
		default:
		}

		s.mu.Lock()
		item, ok := s.pending[s.nextSequence]
		if !ok {
			s.mu.Unlock()
			return processed
		}
		delete(s.pending, s.nextSequence)
		s.nextSequence++
		s.mu.Unlock()

		s.reportItem(ctx, item)
		processed = append(processed, item)
	}
}

// Reset resets the stage state for reuse.
func (s *ReportStage) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = make(map[uint64]*BundleItem)
	s.nextSequence = 0
}

// PendingCount returns the number of items waiting to be reported.
func (s *ReportStage) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// ReportStageRunner runs the report stage as a single goroutine.
type ReportStageRunner struct {
	stage   *ReportStage
	input   <-chan *BundleItem
	output  chan<- *BundleItem
	errors  chan<- error
	metrics *PipelineMetrics
	done    chan struct{}
	running bool
	mu      sync.Mutex
}

// NewReportStageRunner creates a new runner for the report stage.
func NewReportStageRunner(
	stage *ReportStage,
	input <-chan *BundleItem,
	output chan<- *BundleItem,
	errors chan<- error,
) *ReportStageRunner {
	return &ReportStageRunner{
		stage:  stage,
		input:  input,
		output: output,
		errors: errors,
		done:   make(chan struct{}),
	}
}

// SetMetrics sets the metrics collector for the runner.
// Must be called before Start() to avoid data races.
func (r *ReportStageRunner) SetMetrics(metrics *PipelineMetrics) {
	r.metrics = metrics
}

// Start starts the report stage runner.
func (r *ReportStageRunner) Start(ctx context.Context) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.done = make(chan struct{})
	r.mu.Unlock()

	go r.run(ctx)
}

// Stop waits for the runner to complete. The runner will exit when the context
// passed to Start is cancelled or the input channel is closed. This method blocks
// until completion; it does not signal the runner to stop.
func (r *ReportStageRunner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	// Capture done channel while holding lock to avoid race with concurrent Start()
	done := r.done
	r.mu.Unlock()

	<-done
}

func (r *ReportStageRunner) run(ctx context.Context) {
	defer func() {
		r.mu.Lock()
		r.running = false
		close(r.done)
		r.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case item, ok := <-r.input:
			if !ok {
				return
			}

			processed, err := r.stage.ProcessWithStatus(ctx, item)
			if err != nil {
				select {
				case r.errors <- err:
				case <-ctx.Done():
					return
				}
				continue
			}

			for _, p := range processed {
				r.forwardItem(ctx, p)
			}
		}
	}
}

// forwardItem sends an item to output and reports any report errors.
func (r *ReportStageRunner) forwardItem(ctx context.Context, item *BundleItem) {
	if r.metrics != nil {
		r.metrics.RecordReport(item.ReportDuration(), item.ReportError())
	}

	select {
	case r.output <- item:
	case <-ctx.Done():
		return
	}

	if reportErr := item.ReportError(); reportErr != nil {
		select {
		case r.errors <- reportErr:
		case <-ctx.Done():
			return
		}
	}
}
