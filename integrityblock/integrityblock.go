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

// Package integrityblock parses the integrity block that prefixes a signed web bundle.
//
// The integrity block is a CBOR array of the magic bytes, the format version and the
// signature stack:
//
//	[
//	  h'F09F968BF09F93A6',                          ; magic
//	  h'31620000',                                  ; version "1b\0\0"
//	  [                                             ; signature stack, >= 1 entry
//	    [ { "ed25519PublicKey": h'...' }, h'...' ], ; [attributes, signature]
//	    ...
//	  ]
//	]
//
// Parsing is incremental: every item header and every value is requested separately
// from a datasource.DataSource, and each parser is a small state machine resumed by
// the completion of its outstanding read.
package integrityblock

import (
	"github.com/blinklabs-io/webbundle/signature"
)

var (
	// IntegrityBlockMagicBytes is the CBOR array header of the integrity block followed
	// by the byte string holding the magic ("🖋📦")
	IntegrityBlockMagicBytes = []byte{
		0x83, 0x48, 0xf0, 0x9f, 0x96, 0x8b, 0xf0, 0x9f, 0x93, 0xa6,
	}
	// IntegrityBlockVersionMagicBytes is the byte string holding the only supported
	// format version, "1b\0\0"
	IntegrityBlockVersionMagicBytes = []byte{0x44, '1', 'b', 0x00, 0x00}
)

// Attribute names selecting the cipher of a signature stack entry
const (
	AttributeNameEd25519PublicKey         = "ed25519PublicKey"
	AttributeNameEcdsaP256SHA256PublicKey = "ecdsaP256SHA256PublicKey"
)

// AttributesMap holds the attributes of a signature stack entry
type AttributesMap map[string][]byte

// SignatureType identifies the cipher of a signature stack entry
type SignatureType uint8

const (
	SignatureTypeUnknown SignatureType = iota
	SignatureTypeEd25519
	SignatureTypeEcdsaP256SHA256
)

func (t SignatureType) String() string {
	switch t {
	case SignatureTypeEd25519:
		return "Ed25519"
	case SignatureTypeEcdsaP256SHA256:
		return "EcdsaP256SHA256"
	default:
		return "Unknown"
	}
}

type Ed25519SignatureInfo struct {
	PublicKey signature.Ed25519PublicKey
	Signature signature.Ed25519Signature
}

type EcdsaP256SHA256SignatureInfo struct {
	PublicKey signature.EcdsaP256PublicKey
	Signature signature.EcdsaP256SHA256Signature
}

// UnknownSignatureInfo is kept for entries whose cipher could not be determined.
// Such entries cannot be verified, but are carried along so that the block can be
// serialized again.
type UnknownSignatureInfo struct {
	Signature []byte
}

// SignatureInfo is a tagged union. Only the member matching Type is set.
type SignatureInfo struct {
	Type            SignatureType
	Ed25519         *Ed25519SignatureInfo
	EcdsaP256SHA256 *EcdsaP256SHA256SignatureInfo
	Unknown         *UnknownSignatureInfo
}

// SignatureBytes returns the raw signature regardless of the cipher
func (i SignatureInfo) SignatureBytes() []byte {
	switch i.Type {
	case SignatureTypeEd25519:
		if i.Ed25519 != nil {
			return i.Ed25519.Signature.Bytes()
		}
	case SignatureTypeEcdsaP256SHA256:
		if i.EcdsaP256SHA256 != nil {
			return i.EcdsaP256SHA256.Signature.Bytes()
		}
	default:
		if i.Unknown != nil {
			return append([]byte(nil), i.Unknown.Signature...)
		}
	}
	return nil
}

// PublicKey returns the public key of a known cipher, or nil
func (i SignatureInfo) PublicKey() signature.PublicKey {
	switch i.Type {
	case SignatureTypeEd25519:
		if i.Ed25519 != nil {
			return i.Ed25519.PublicKey
		}
	case SignatureTypeEcdsaP256SHA256:
		if i.EcdsaP256SHA256 != nil {
			return i.EcdsaP256SHA256.PublicKey
		}
	}
	return nil
}

// SignatureStackEntry is a single [attributes, signature] element of the signature
// stack
type SignatureStackEntry struct {
	Attributes    AttributesMap
	SignatureInfo SignatureInfo
	// CompleteEntryCbor holds the exact bytes of the entry as read from the bundle
	CompleteEntryCbor []byte
	// AttributesCbor holds the exact bytes of the attributes map, which are covered
	// by the signature
	AttributesCbor []byte
}

// IntegrityBlock is the parsed integrity block of a signed web bundle
type IntegrityBlock struct {
	// Size is the number of bytes the integrity block occupies at the start of the
	// bundle. The unsigned bundle starts at this offset.
	Size uint64
	// SignatureStack is never empty. The first entry is the primary signature and
	// always has a known cipher.
	SignatureStack []*SignatureStackEntry
}

// WebBundleID derives the signed web bundle ID from the primary signature
func (b *IntegrityBlock) WebBundleID() (signature.WebBundleID, error) {
	if len(b.SignatureStack) == 0 {
		return signature.WebBundleID{}, newFormatError(errMsgEmptySignatureStack)
	}
	key := b.SignatureStack[0].SignatureInfo.PublicKey()
	if key == nil {
		return signature.WebBundleID{}, newFormatError(errMsgUnknownFirstCipher)
	}
	return signature.NewWebBundleID(key)
}
