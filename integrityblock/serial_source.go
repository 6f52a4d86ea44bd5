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
	"sync"
	"sync/atomic"

	"github.com/blinklabs-io/webbundle/datasource"
)

// serialSource wraps the data source of a single parse. Completions are queued and
// run one at a time by whichever goroutine delivers first, so a parser never sees two
// callbacks at once and a synchronous source does not grow the stack with every read.
// Once closed, pending and future completions are dropped.
type serialSource struct {
	source   datasource.DataSource
	closed   atomic.Bool
	mu       sync.Mutex
	queue    []func()
	draining bool
}

func newSerialSource(source datasource.DataSource) *serialSource {
	return &serialSource{
		source: source,
	}
}

func (s *serialSource) Read(
	offset uint64,
	length uint64,
	callback datasource.ReadCallback,
) {
	if s.closed.Load() {
		return
	}
	s.source.Read(offset, length, func(data []byte, err error) {
		s.run(func() {
			callback(data, err)
		})
	})
}

func (s *serialSource) Length() (uint64, error) {
	return s.source.Length()
}

// Close drops all outstanding completions. A completion that is already running is
// allowed to finish.
func (s *serialSource) Close() {
	s.closed.Store(true)
}

func (s *serialSource) run(fn func()) {
	s.mu.Lock()
	s.queue = append(s.queue, fn)
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true
	for len(s.queue) > 0 {
		next := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.mu.Unlock()
		if !s.closed.Load() {
			next()
		}
		s.mu.Lock()
	}
	s.draining = false
	s.mu.Unlock()
}
