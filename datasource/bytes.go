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

package datasource

import (
	"sync/atomic"
)

// BytesSource is an in-memory DataSource. Reads complete synchronously.
type BytesSource struct {
	data   []byte
	closed atomic.Bool
}

// NewBytesSource creates a BytesSource over a private copy of data
func NewBytesSource(data []byte) *BytesSource {
	tmp := make([]byte, len(data))
	copy(tmp, data)
	return &BytesSource{
		data: tmp,
	}
}

func (s *BytesSource) Read(offset uint64, length uint64, callback ReadCallback) {
	if s.closed.Load() {
		callback(nil, ErrClosed)
		return
	}
	n, err := availableLength(uint64(len(s.data)), offset, length)
	if err != nil {
		callback(nil, err)
		return
	}
	ret := make([]byte, n)
	if n > 0 {
		copy(ret, s.data[offset:offset+n])
	}
	callback(ret, nil)
}

func (s *BytesSource) Length() (uint64, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	return uint64(len(s.data)), nil
}

// Close disconnects the source. Later reads fail with ErrClosed.
func (s *BytesSource) Close() error {
	s.closed.Store(true)
	return nil
}
