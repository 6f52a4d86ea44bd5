// Copyright 2024 Blink Labs Software
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
	"bytes"
	"encoding/binary"
	"sync"

	_cbor "github.com/fxamacker/cbor/v2"
)

var (
	cachedEncMode     _cbor.EncMode
	cachedEncModeErr  error
	cachedEncModeOnce sync.Once
)

func getEncMode() (_cbor.EncMode, error) {
	cachedEncModeOnce.Do(func() {
		opts := _cbor.EncOptions{
			// Make sure that maps have ordered keys
			Sort: _cbor.SortCoreDeterministic,
			// Nil slices and maps are written as empty containers, never as null
			NilContainers: _cbor.NilContainerAsEmpty,
		}
		cachedEncMode, cachedEncModeErr = opts.EncMode()
	})
	return cachedEncMode, cachedEncModeErr
}

func Encode(data any) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	em, err := getEncMode()
	if err != nil {
		return nil, err
	}
	enc := em.NewEncoder(buf)
	err = enc.Encode(data)
	return buf.Bytes(), err
}

// EncodeHeader returns the shortest CBOR item header for the given major type and
// argument
func EncodeHeader(majorType uint8, arg uint64) []byte {
	majorType &= CborTypeMask
	switch {
	case arg <= uint64(CborMaxUintSimple):
		return []byte{majorType | uint8(arg)}
	case arg <= 0xff:
		return []byte{majorType | CborArgUint8, uint8(arg)}
	case arg <= 0xffff:
		ret := []byte{majorType | CborArgUint16, 0, 0}
		binary.BigEndian.PutUint16(ret[1:], uint16(arg))
		return ret
	case arg <= 0xffffffff:
		ret := []byte{majorType | CborArgUint32, 0, 0, 0, 0}
		binary.BigEndian.PutUint32(ret[1:], uint32(arg))
		return ret
	default:
		ret := make([]byte, 9)
		ret[0] = majorType | CborArgUint64
		binary.BigEndian.PutUint64(ret[1:], arg)
		return ret
	}
}

// EncodeByteString returns data encoded as a definite-length CBOR byte string
func EncodeByteString(data []byte) []byte {
	header := EncodeHeader(CborTypeByteString, uint64(len(data)))
	ret := make([]byte, 0, len(header)+len(data))
	ret = append(ret, header...)
	return append(ret, data...)
}
