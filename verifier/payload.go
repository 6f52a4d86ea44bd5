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

package verifier

import (
	"encoding/binary"

	"github.com/blinklabs-io/webbundle/cbor"
	"github.com/blinklabs-io/webbundle/integrityblock"
)

// IntegrityBlockCborForSigning returns the integrity block as it is covered by every
// signature: the magic and version followed by an empty signature stack
func IntegrityBlockCborForSigning() []byte {
	ret := integrityblock.IntegrityBlockCborPrefix()
	return append(ret, cbor.EncodeHeader(cbor.CborTypeArray, 0)...)
}

// SignaturePayload builds the message signed by a signature stack entry. Each part is
// prefixed with its length as a 64-bit big endian integer.
func SignaturePayload(
	unsignedBundleHash []byte,
	integrityBlockCbor []byte,
	attributesCbor []byte,
) []byte {
	parts := [][]byte{unsignedBundleHash, integrityBlockCbor, attributesCbor}
	size := 0
	for _, part := range parts {
		size += 8 + len(part)
	}
	ret := make([]byte, 0, size)
	for _, part := range parts {
		ret = binary.BigEndian.AppendUint64(ret, uint64(len(part)))
		ret = append(ret, part...)
	}
	return ret
}
