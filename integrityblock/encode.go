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
	"bytes"
	"errors"
	"fmt"

	"github.com/blinklabs-io/webbundle/cbor"
)

// MarshalCBOR serializes the integrity block. Entries produced by the parser are
// written with their original bytes, so a parsed block round-trips exactly when its
// headers were minimally encoded.
func (b *IntegrityBlock) MarshalCBOR() ([]byte, error) {
	if len(b.SignatureStack) == 0 {
		return nil, errors.New("integrity block must contain at least one signature")
	}
	ret := IntegrityBlockCborPrefix()
	ret = append(
		ret,
		cbor.EncodeHeader(cbor.CborTypeArray, uint64(len(b.SignatureStack)))...,
	)
	for idx, entry := range b.SignatureStack {
		entryCbor, err := entry.MarshalCBOR()
		if err != nil {
			return nil, fmt.Errorf("signature stack entry %d: %w", idx, err)
		}
		ret = append(ret, entryCbor...)
	}
	return ret, nil
}

// MarshalCBOR returns the original entry bytes when available and encodes the entry
// otherwise
func (e *SignatureStackEntry) MarshalCBOR() ([]byte, error) {
	if len(e.CompleteEntryCbor) > 0 {
		return bytes.Clone(e.CompleteEntryCbor), nil
	}
	return EncodeSignatureStackEntry(e.Attributes, e.SignatureInfo.SignatureBytes())
}

// IntegrityBlockCborPrefix returns the magic and version bytes that start every
// integrity block
func IntegrityBlockCborPrefix() []byte {
	ret := make(
		[]byte,
		0,
		len(IntegrityBlockMagicBytes)+len(IntegrityBlockVersionMagicBytes),
	)
	ret = append(ret, IntegrityBlockMagicBytes...)
	return append(ret, IntegrityBlockVersionMagicBytes...)
}

// EncodeAttributes returns the deterministic CBOR encoding of an attributes map
func EncodeAttributes(attributes AttributesMap) ([]byte, error) {
	if attributes == nil {
		attributes = AttributesMap{}
	}
	return cbor.Encode(map[string][]byte(attributes))
}

// EncodeSignatureStackEntry encodes [attributes, signature]
func EncodeSignatureStackEntry(
	attributes AttributesMap,
	signatureBytes []byte,
) ([]byte, error) {
	attributesCbor, err := EncodeAttributes(attributes)
	if err != nil {
		return nil, err
	}
	ret := cbor.EncodeHeader(cbor.CborTypeArray, 2)
	ret = append(ret, attributesCbor...)
	return append(ret, cbor.EncodeByteString(signatureBytes)...), nil
}
