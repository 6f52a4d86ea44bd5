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

// Package datasource provides offset-based asynchronous byte sources that signed web
// bundles are read from.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrClosed is returned for reads against a source that has been disconnected
var ErrClosed = errors.New("datasource: source closed")

// ReadCallback receives the result of a single Read call
type ReadCallback func(data []byte, err error)

// DataSource is a read-only, random access byte source.
//
// Read requests length bytes starting at offset and invokes callback exactly once,
// either before Read returns or later from another goroutine. When fewer than length
// bytes remain, the available prefix is returned without an error. A read starting at
// or beyond the end of the data with a non-zero length fails with io.EOF. The data
// passed to the callback is owned by the callee.
//
// A DataSource may be shared by any number of concurrent readers.
type DataSource interface {
	Read(offset uint64, length uint64, callback ReadCallback)
	Length() (uint64, error)
}

// ReadFull performs a single Read and blocks until it completes or ctx is done.
// Unlike DataSource.Read, a short read is reported as io.ErrUnexpectedEOF.
func ReadFull(
	ctx context.Context,
	source DataSource,
	offset uint64,
	length uint64,
) ([]byte, error) {
	type readResult struct {
		data []byte
		err  error
	}
	// Buffered so a late callback never blocks after we stop waiting
	resultChan := make(chan readResult, 1)
	source.Read(offset, length, func(data []byte, err error) {
		resultChan <- readResult{data: data, err: err}
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultChan:
		if res.err != nil {
			return nil, res.err
		}
		if uint64(len(res.data)) != length {
			return nil, fmt.Errorf(
				"read %d bytes at offset %d, wanted %d: %w",
				len(res.data),
				offset,
				length,
				io.ErrUnexpectedEOF,
			)
		}
		return res.data, nil
	}
}

// availableLength returns how many of the requested bytes exist in a source of the
// given size, or io.EOF when none do
func availableLength(size, offset, length uint64) (uint64, error) {
	if length == 0 {
		return 0, nil
	}
	if offset >= size {
		return 0, io.EOF
	}
	return min(length, size-offset), nil
}
