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

package signature

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/multiformats/go-base32"
)

// ErrInvalidWebBundleID is wrapped by ParseWebBundleID errors
var ErrInvalidWebBundleID = errors.New("invalid signed web bundle ID")

// Key type suffixes appended to the public key before encoding a bundle ID
var (
	webBundleIDSuffixEd25519   = []byte{0x00, 0x01, 0x02}
	webBundleIDSuffixEcdsaP256 = []byte{0x00, 0x02, 0x02}
)

var webBundleIDEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// WebBundleID identifies a signed web bundle by the public key of its primary
// signature. Its text form is the lowercase, unpadded base32 encoding of the key
// followed by a key type suffix.
type WebBundleID struct {
	keyType KeyType
	key     []byte
}

// NewWebBundleID derives the bundle ID for a public key
func NewWebBundleID(key PublicKey) (WebBundleID, error) {
	switch key.KeyType() {
	case KeyTypeEd25519, KeyTypeEcdsaP256:
		return WebBundleID{keyType: key.KeyType(), key: key.Bytes()}, nil
	default:
		return WebBundleID{}, fmt.Errorf(
			"%w: unsupported key type %s",
			ErrInvalidWebBundleID,
			key.KeyType(),
		)
	}
}

// ParseWebBundleID parses the text form of a bundle ID. Upper case input is accepted.
func ParseWebBundleID(id string) (WebBundleID, error) {
	decoded, err := webBundleIDEncoding.DecodeString(strings.ToUpper(id))
	if err != nil {
		return WebBundleID{}, fmt.Errorf("%w: %w", ErrInvalidWebBundleID, err)
	}
	switch {
	case len(decoded) == Ed25519PublicKeySize+len(webBundleIDSuffixEd25519) &&
		bytes.HasSuffix(decoded, webBundleIDSuffixEd25519):
		return WebBundleID{
			keyType: KeyTypeEd25519,
			key:     decoded[:Ed25519PublicKeySize],
		}, nil
	case len(decoded) == EcdsaP256PublicKeySize+len(webBundleIDSuffixEcdsaP256) &&
		bytes.HasSuffix(decoded, webBundleIDSuffixEcdsaP256):
		return WebBundleID{
			keyType: KeyTypeEcdsaP256,
			key:     decoded[:EcdsaP256PublicKeySize],
		}, nil
	default:
		return WebBundleID{}, fmt.Errorf(
			"%w: unrecognized length %d or key type suffix",
			ErrInvalidWebBundleID,
			len(decoded),
		)
	}
}

func (id WebBundleID) KeyType() KeyType {
	return id.keyType
}

// PublicKey returns the raw public key bytes the ID was derived from
func (id WebBundleID) PublicKey() []byte {
	return bytes.Clone(id.key)
}

func (id WebBundleID) Equal(other WebBundleID) bool {
	return id.keyType == other.keyType && bytes.Equal(id.key, other.key)
}

func (id WebBundleID) String() string {
	var suffix []byte
	switch id.keyType {
	case KeyTypeEd25519:
		suffix = webBundleIDSuffixEd25519
	case KeyTypeEcdsaP256:
		suffix = webBundleIDSuffixEcdsaP256
	default:
		return ""
	}
	raw := make([]byte, 0, len(id.key)+len(suffix))
	raw = append(raw, id.key...)
	raw = append(raw, suffix...)
	return strings.ToLower(webBundleIDEncoding.EncodeToString(raw))
}
