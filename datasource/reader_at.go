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
	"errors"
	"io"
	"math"
	"sync"
)

// ReaderAtSource is a DataSource backed by an io.ReaderAt of known size, such as an
// *os.File
type ReaderAtSource struct {
	reader io.ReaderAt
	size   uint64
	async  bool
	closer io.Closer

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// ReaderAtSourceOption is a functional option for configuring a ReaderAtSource
type ReaderAtSourceOption func(*ReaderAtSource)

// WithAsyncReads makes every read run on its own goroutine, with the callback invoked
// from that goroutine
func WithAsyncReads(async bool) ReaderAtSourceOption {
	return func(s *ReaderAtSource) {
		s.async = async
	}
}

// WithCloser sets a closer (usually the underlying file) that is closed together with
// the source
func WithCloser(closer io.Closer) ReaderAtSourceOption {
	return func(s *ReaderAtSource) {
		s.closer = closer
	}
}

// NewReaderAtSource creates a ReaderAtSource over the first size bytes of reader
func NewReaderAtSource(
	reader io.ReaderAt,
	size uint64,
	opts ...ReaderAtSourceOption,
) *ReaderAtSource {
	s := &ReaderAtSource{
		reader: reader,
		size:   size,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ReaderAtSource) Read(offset uint64, length uint64, callback ReadCallback) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		callback(nil, ErrClosed)
		return
	}
	if !s.async {
		s.mu.RUnlock()
		callback(s.readAt(offset, length))
		return
	}
	// Register the read while holding the lock so that Close waits for it
	s.wg.Add(1)
	s.mu.RUnlock()
	go func() {
		defer s.wg.Done()
		callback(s.readAt(offset, length))
	}()
}

func (s *ReaderAtSource) readAt(offset uint64, length uint64) ([]byte, error) {
	n, err := availableLength(s.size, offset, length)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return []byte{}, nil
	}
	if offset > math.MaxInt64 {
		return nil, io.EOF
	}
	buf := make([]byte, n)
	read, err := s.reader.ReadAt(buf, int64(offset))
	// ReadAt may report io.EOF together with the final bytes of the input
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if read == 0 {
		return nil, io.EOF
	}
	return buf[:read], nil
}

func (s *ReaderAtSource) Length() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}
	return s.size, nil
}

// Close disconnects the source. It waits for in-flight asynchronous reads to deliver
// their callbacks, then closes the configured closer, if any. Reads issued after
// Close fail with ErrClosed.
func (s *ReaderAtSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	s.wg.Wait()
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
