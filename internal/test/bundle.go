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

package test

import (
	"github.com/blinklabs-io/webbundle/cbor"
)

// Raw integrity block building blocks. These are spelled out byte by byte instead of
// going through the integrityblock encoder so tests can produce malformed input.
var (
	MagicBytes   = []byte{0x83, 0x48, 0xf0, 0x9f, 0x96, 0x8b, 0xf0, 0x9f, 0x93, 0xa6}
	VersionBytes = []byte{0x44, 0x31, 0x62, 0x00, 0x00}
)

// Attribute is a single attribute map entry. A slice of them keeps the wire order.
type Attribute struct {
	Name  string
	Value []byte
}

// AttributesCbor encodes attrs as a CBOR map in the given order. Duplicate names are
// written as given.
func AttributesCbor(attrs ...Attribute) []byte {
	ret := cbor.EncodeHeader(cbor.CborTypeMap, uint64(len(attrs)))
	for _, attr := range attrs {
		ret = append(
			ret,
			cbor.EncodeHeader(cbor.CborTypeTextString, uint64(len(attr.Name)))...,
		)
		ret = append(ret, attr.Name...)
		ret = append(ret, cbor.EncodeByteString(attr.Value)...)
	}
	return ret
}

// EntryCbor builds a signature stack entry from encoded attributes and a raw signature
func EntryCbor(attributesCbor []byte, sig []byte) []byte {
	ret := cbor.EncodeHeader(cbor.CborTypeArray, 2)
	ret = append(ret, attributesCbor...)
	return append(ret, cbor.EncodeByteString(sig)...)
}

// IntegrityBlockCbor builds an integrity block from encoded entries
func IntegrityBlockCbor(entries ...[]byte) []byte {
	ret := IntegrityBlockPrefix()
	ret = append(ret, cbor.EncodeHeader(cbor.CborTypeArray, uint64(len(entries)))...)
	for _, entry := range entries {
		ret = append(ret, entry...)
	}
	return ret
}

// IntegrityBlockPrefix returns the magic and version bytes
func IntegrityBlockPrefix() []byte {
	ret := make([]byte, 0, len(MagicBytes)+len(VersionBytes))
	ret = append(ret, MagicBytes...)
	return append(ret, VersionBytes...)
}

// Ed25519Entry builds an entry with a single ed25519PublicKey attribute
func Ed25519Entry(publicKey []byte, sig []byte) []byte {
	return EntryCbor(
		AttributesCbor(Attribute{Name: "ed25519PublicKey", Value: publicKey}),
		sig,
	)
}

// EcdsaP256Entry builds an entry with a single ecdsaP256SHA256PublicKey attribute
func EcdsaP256Entry(publicKey []byte, sig []byte) []byte {
	return EntryCbor(
		AttributesCbor(Attribute{Name: "ecdsaP256SHA256PublicKey", Value: publicKey}),
		sig,
	)
}

// Filled returns a slice of n copies of b
func Filled(n int, b byte) []byte {
	ret := make([]byte, n)
	for i := range ret {
		ret[i] = b
	}
	return ret
}
