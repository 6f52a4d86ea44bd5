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
	"time"

	"github.com/blinklabs-io/webbundle/datasource"
	"github.com/blinklabs-io/webbundle/integrityblock"
	"github.com/blinklabs-io/webbundle/verifier"
)

// BundleItem represents a bundle as it moves through the pipeline.
// It is thread-safe and tracks the processing state at each stage.
type BundleItem struct {
	// Immutable fields (set at construction, never modified)
	name           string
	source         datasource.DataSource
	sequenceNumber uint64
	receivedAt     time.Time

	// Mutable fields protected by mutex
	mu sync.RWMutex

	// Parse stage results
	block         *integrityblock.IntegrityBlock
	parseError    error
	parseDuration time.Duration

	// Verify stage results
	result         *verifier.Result
	verifyError    error
	verifyDuration time.Duration

	// Report stage results
	reported       bool
	reportError    error
	reportDuration time.Duration
}

// NewBundleItem creates a new BundleItem. The source is shared, not copied, and must
// stay readable until the item has been reported.
func NewBundleItem(name string, source datasource.DataSource, seq uint64) *BundleItem {
	return &BundleItem{
		name:           name,
		source:         source,
		sequenceNumber: seq,
		receivedAt:     time.Now(),
	}
}

// Name returns the name the bundle was submitted with, usually a file path.
func (b *BundleItem) Name() string {
	return b.name
}

// Source returns the data source the bundle is read from.
func (b *BundleItem) Source() datasource.DataSource {
	return b.source
}

// SequenceNumber returns the sequence number assigned to this bundle.
func (b *BundleItem) SequenceNumber() uint64 {
	return b.sequenceNumber
}

// ReceivedAt returns the time when this bundle was submitted.
func (b *BundleItem) ReceivedAt() time.Time {
	return b.receivedAt
}

// Block returns the parsed integrity block, or nil if not yet parsed or parsing failed.
func (b *BundleItem) Block() *integrityblock.IntegrityBlock {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.block
}

// SetBlock sets the parsed integrity block and parse duration.
// Clears any previously set parse error for consistency.
func (b *BundleItem) SetBlock(block *integrityblock.IntegrityBlock, duration time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.block = block
	b.parseError = nil
	b.parseDuration = duration
}

// ParseError returns the parse error, if any.
func (b *BundleItem) ParseError() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.parseError
}

// SetParseError sets the parse error and duration.
// Clears any previously set block for consistency.
func (b *BundleItem) SetParseError(err error, duration time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.block = nil
	b.parseError = err
	b.parseDuration = duration
}

// ParseDuration returns the time spent in the parse stage.
func (b *BundleItem) ParseDuration() time.Duration {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.parseDuration
}

// IsParsed returns true if the integrity block has been successfully parsed.
func (b *BundleItem) IsParsed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.block != nil
}

// SetVerification sets the verification result.
func (b *BundleItem) SetVerification(result *verifier.Result, err error, duration time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.result = result
	b.verifyError = err
	b.verifyDuration = duration
}

// Result returns the verification result, or nil if not verified.
func (b *BundleItem) Result() *verifier.Result {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.result
}

// IsVerified returns true if the bundle passed verification.
func (b *BundleItem) IsVerified() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.result != nil && b.verifyError == nil
}

// VerifyError returns the verification error, if any.
func (b *BundleItem) VerifyError() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.verifyError
}

// VerifyDuration returns the time spent in the verify stage.
func (b *BundleItem) VerifyDuration() time.Duration {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.verifyDuration
}

// SetReported sets the report result.
func (b *BundleItem) SetReported(reported bool, err error, duration time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reported = reported
	b.reportError = err
	b.reportDuration = duration
}

// IsReported returns true if the bundle has been reported.
func (b *BundleItem) IsReported() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.reported
}

// ReportError returns the report error, if any.
func (b *BundleItem) ReportError() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.reportError
}

// ReportDuration returns the time spent in the report stage.
func (b *BundleItem) ReportDuration() time.Duration {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.reportDuration
}

// Err returns the first parse or verification error, if any.
func (b *BundleItem) Err() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.parseError != nil {
		return b.parseError
	}
	return b.verifyError
}

// TotalDuration returns the total processing time from receipt to completion.
func (b *BundleItem) TotalDuration() time.Duration {
	return time.Since(b.receivedAt)
}
