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
	"sync"
	"sync/atomic"
	"time"

	"github.com/blinklabs-io/webbundle/integrityblock"
)

// PipelineMetrics tracks metrics for the entire pipeline.
// Uses atomic counters for thread-safe operation.
type PipelineMetrics struct {
	// Counters (atomic)
	bundlesSubmitted atomic.Uint64
	bundlesParsed    atomic.Uint64
	bundlesVerified  atomic.Uint64
	bundlesReported  atomic.Uint64
	parseErrors      atomic.Uint64
	formatErrors     atomic.Uint64
	versionErrors    atomic.Uint64
	internalErrors   atomic.Uint64
	verifyErrors     atomic.Uint64
	reportErrors     atomic.Uint64

	// Cumulative stage time in nanoseconds (atomic)
	parseNanos  atomic.Int64
	verifyNanos atomic.Int64

	// Queue tracking (requires mutex)
	mu                sync.RWMutex
	currentQueueDepth int
	peakQueueDepth    int

	// Timing
	lastBundleTime time.Time
	startTime      time.Time
}

// NewPipelineMetrics creates a new PipelineMetrics.
func NewPipelineMetrics() *PipelineMetrics {
	return &PipelineMetrics{
		startTime: time.Now(),
	}
}

// RecordSubmit increments the submitted counter.
func (m *PipelineMetrics) RecordSubmit() {
	m.bundlesSubmitted.Add(1)
}

// RecordParse records a parse result. Parse errors are also counted by parser
// error type.
func (m *PipelineMetrics) RecordParse(duration time.Duration, err error) {
	m.parseNanos.Add(int64(duration))
	if err == nil {
		m.bundlesParsed.Add(1)
		return
	}
	m.parseErrors.Add(1)
	errType, ok := ParseErrorType(err)
	if !ok {
		return
	}
	switch errType {
	case integrityblock.ErrorTypeFormat:
		m.formatErrors.Add(1)
	case integrityblock.ErrorTypeVersion:
		m.versionErrors.Add(1)
	case integrityblock.ErrorTypeParserInternal:
		m.internalErrors.Add(1)
	}
}

// RecordVerify records a verification result.
func (m *PipelineMetrics) RecordVerify(duration time.Duration, err error) {
	m.verifyNanos.Add(int64(duration))
	if err != nil {
		m.verifyErrors.Add(1)
	} else {
		m.bundlesVerified.Add(1)
	}
}

// RecordReport records a report result.
func (m *PipelineMetrics) RecordReport(duration time.Duration, err error) {
	if err != nil {
		m.reportErrors.Add(1)
	} else {
		m.bundlesReported.Add(1)
		m.mu.Lock()
		m.lastBundleTime = time.Now()
		m.mu.Unlock()
	}
}

// UpdateQueueDepth updates the queue depth tracking.
func (m *PipelineMetrics) UpdateQueueDepth(depth int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentQueueDepth = depth
	if depth > m.peakQueueDepth {
		m.peakQueueDepth = depth
	}
}

// Stats returns a snapshot of the current metrics.
func (m *PipelineMetrics) Stats() PipelineStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return PipelineStats{
		BundlesSubmitted:  m.bundlesSubmitted.Load(),
		BundlesParsed:     m.bundlesParsed.Load(),
		BundlesVerified:   m.bundlesVerified.Load(),
		BundlesReported:   m.bundlesReported.Load(),
		ParseErrors:       m.parseErrors.Load(),
		FormatErrors:      m.formatErrors.Load(),
		VersionErrors:     m.versionErrors.Load(),
		InternalErrors:    m.internalErrors.Load(),
		VerifyErrors:      m.verifyErrors.Load(),
		ReportErrors:      m.reportErrors.Load(),
		ParseTime:         time.Duration(m.parseNanos.Load()),
		VerifyTime:        time.Duration(m.verifyNanos.Load()),
		CurrentQueueDepth: m.currentQueueDepth,
		PeakQueueDepth:    m.peakQueueDepth,
		LastBundleTime:    m.lastBundleTime,
		StartTime:         m.startTime,
	}
}

// Reset resets all metrics.
func (m *PipelineMetrics) Reset() {
	m.bundlesSubmitted.Store(0)
	m.bundlesParsed.Store(0)
	m.bundlesVerified.Store(0)
	m.bundlesReported.Store(0)
	m.parseErrors.Store(0)
	m.formatErrors.Store(0)
	m.versionErrors.Store(0)
	m.internalErrors.Store(0)
	m.verifyErrors.Store(0)
	m.reportErrors.Store(0)
	m.parseNanos.Store(0)
	m.verifyNanos.Store(0)

	m.mu.Lock()
	m.currentQueueDepth = 0
	m.peakQueueDepth = 0
	m.lastBundleTime = time.Time{}
	m.startTime = time.Now()
	m.mu.Unlock()
}
