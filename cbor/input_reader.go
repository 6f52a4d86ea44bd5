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

package cbor

import (
	"unicode/utf8"
)

// InputReader is a cursor over an immutable byte buffer that understands CBOR item
// headers. It never decodes nested items on its own: callers read a header, then read
// exactly as many bytes as the header announced.
//
// All methods report failure with a false return value and leave the cursor where
// it was.
type InputReader struct {
	data   []byte
	offset int
}

// NewInputReader creates an InputReader positioned at the start of data
func NewInputReader(data []byte) *InputReader {
	return &InputReader{
		data: data,
	}
}

// CurrentOffset returns the number of bytes consumed from the start of the buffer
func (r *InputReader) CurrentOffset() uint64 {
	return uint64(r.offset)
}

// Remaining returns the number of unread bytes
func (r *InputReader) Remaining() int {
	return len(r.data) - r.offset
}

// ReadBytes returns the next n bytes. The returned slice aliases the reader's buffer.
func (r *InputReader) ReadBytes(n uint64) ([]byte, bool) {
	if n > uint64(r.Remaining()) {
		return nil, false
	}
	ret := r.data[r.offset : r.offset+int(n)]
	r.offset += int(n)
	return ret, true
}

// ReadString returns the next n bytes as text. The bytes must be valid UTF-8.
func (r *InputReader) ReadString(n uint64) (string, bool) {
	if n > uint64(r.Remaining()) {
		return "", false
	}
	raw := r.data[r.offset : r.offset+int(n)]
	if !utf8.Valid(raw) {
		return "", false
	}
	r.offset += int(n)
	return string(raw), true
}

// ReadCborHeader decodes a definite-length CBOR item header and returns its argument,
// which is the length for strings, arrays and maps. The header must be of the
// expected major type.
func (r *InputReader) ReadCborHeader(majorType uint8) (uint64, bool) {
	arg, headerSize, err := HeaderInfo(r.data[r.offset:], majorType)
	if err != nil {
		return 0, false
	}
	r.offset += headerSize
	return arg, true
}
