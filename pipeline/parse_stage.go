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
	"fmt"
	"log/slog"
	"time"

	"github.com/blinklabs-io/webbundle/integrityblock"
)

// ErrNilStage is returned when a nil stage is passed to a worker pool.
var ErrNilStage = errors.New("pipeline: nil stage")

// ParseStage parses the integrity block at the start of each bundle.
type ParseStage struct {
	logger *slog.Logger
}

// NewParseStage creates a new ParseStage.
func NewParseStage(logger *slog.Logger) *ParseStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &ParseStage{
		logger: logger,
	}
}

// Name returns the stage name.
func (s *ParseStage) Name() string {
	return "parse"
}

// Process parses the integrity block of the bundle item.
func (s *ParseStage) Process(ctx context.Context, item *BundleItem) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	start := time.Now()
	block, err := integrityblock.Parse(
		ctx,
		item.Source(),
		integrityblock.WithLogger(s.logger),
	)
	duration := time.Since(start)

	if err != nil {
		// Keep cancellation recognizable to the worker pool
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			item.SetParseError(err, duration)
			return ctxErr
		}
		parseErr := fmt.Errorf("bundle %q: %w", item.Name(), err)
		item.SetParseError(parseErr, duration)
		s.logger.Warn(
			"rejected bundle",
			"component", "pipeline",
			"bundle", item.Name(),
			"error", err,
		)
		return parseErr
	}

	item.SetBlock(block, duration)
	return nil
}

// ParseErrorType returns the parser error type of err, or false if err does not
// come from the integrity block parser.
func ParseErrorType(err error) (integrityblock.ErrorType, bool) {
	var parserErr *integrityblock.ParserError
	if !errors.As(err, &parserErr) {
		return 0, false
	}
	return parserErr.Type, true
}
