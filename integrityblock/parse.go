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

package integrityblock

import (
	"context"

	"github.com/blinklabs-io/webbundle/datasource"
)

// Parse reads the integrity block from source and blocks until it is parsed, fails,
// or ctx is done. A cancelled parse returns a ParserInternalError wrapping ctx.Err().
func Parse(
	ctx context.Context,
	source datasource.DataSource,
	opts ...ParserOption,
) (*IntegrityBlock, error) {
	type parseResult struct {
		block *IntegrityBlock
		err   *ParserError
	}
	// Buffered so the completion never blocks, whichever goroutine delivers it
	resultChan := make(chan parseResult, 1)
	parser := NewParser(source, opts...)
	parser.StartParsing(func(block *IntegrityBlock, err *ParserError) {
		resultChan <- parseResult{block: block, err: err}
	})
	var res parseResult
	select {
	case res = <-resultChan:
	case <-ctx.Done():
		parser.closeWithCause(ctx.Err())
		// The completion has been delivered by now, either by the close or by a
		// parse that finished first
		res = <-resultChan
	}
	if res.err != nil {
		return nil, res.err
	}
	return res.block, nil
}
