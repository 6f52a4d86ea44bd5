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
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	_cbor "github.com/fxamacker/cbor/v2"
)

var (
	cachedDecMode     _cbor.DecMode
	cachedDecModeErr  error
	cachedDecModeOnce sync.Once
)

// getDecMode returns a cached DecMode, initializing it on first use.
// Uses sync.Once for thread-safe lazy initialization.
// Returns the cached error if initialization failed.
func getDecMode() (_cbor.DecMode, error) {
	cachedDecModeOnce.Do(func() {
		decOptions := _cbor.DecOptions{
			ExtraReturnErrors: _cbor.ExtraDecErrorUnknownField,
			// Duplicate map keys are never valid in the formats we handle
			DupMapKey: _cbor.DupMapKeyEnforcedAPF,
		}
		cachedDecMode, cachedDecModeErr = decOptions.DecMode()
	})
	return cachedDecMode, cachedDecModeErr
}

// Decode decodes the first CBOR item in dataBytes into dest and returns the number
// of bytes consumed
func Decode(dataBytes []byte, dest any) (int, error) {
	data := bytes.NewReader(dataBytes)
	decMode, err := getDecMode()
	if err != nil {
		return 0, err
	}
	if decMode == nil {
		return 0, errors.New("CBOR decoder mode not initialized")
	}
	dec := decMode.NewDecoder(data)
	err = dec.Decode(dest)
	return dec.NumBytesRead(), err
}

// HeaderInfo extracts the argument (length or value) and header size from a CBOR item
// header of the given major type. Only definite-length headers are accepted.
// Returns (argument, headerSize, error).
func HeaderInfo(data []byte, majorType uint8) (uint64, int, error) {
	if len(data) == 0 {
		return 0, 0, errors.New("unexpected end of data")
	}
	firstByte := data[0]
	if firstByte&CborTypeMask != majorType {
		return 0, 0, fmt.Errorf(
			"expected %s (0x%x), got 0x%x",
			MajorTypeName(majorType),
			majorType,
			firstByte&CborTypeMask,
		)
	}
	additionalInfo := firstByte & CborAdditionalInfoMask
	switch {
	case additionalInfo <= CborMaxUintSimple:
		return uint64(additionalInfo), 1, nil
	case additionalInfo == CborArgUint8:
		if len(data) < 2 {
			return 0, 0, errors.New("unexpected end of data reading header argument")
		}
		return uint64(data[1]), 2, nil
	case additionalInfo == CborArgUint16:
		if len(data) < 3 {
			return 0, 0, errors.New("unexpected end of data reading header argument")
		}
		return uint64(binary.BigEndian.Uint16(data[1:3])), 3, nil
	case additionalInfo == CborArgUint32:
		if len(data) < 5 {
			return 0, 0, errors.New("unexpected end of data reading header argument")
		}
		return uint64(binary.BigEndian.Uint32(data[1:5])), 5, nil
	case additionalInfo == CborArgUint64:
		if len(data) < 9 {
			return 0, 0, errors.New("unexpected end of data reading header argument")
		}
		return binary.BigEndian.Uint64(data[1:9]), 9, nil
	case additionalInfo == 31:
		return 0, 0, fmt.Errorf(
			"indefinite length %s not supported",
			MajorTypeName(majorType),
		)
	default:
		return 0, 0, fmt.Errorf("invalid additional info: %d", additionalInfo)
	}
}
