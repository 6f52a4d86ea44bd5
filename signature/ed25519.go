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
	"crypto/ed25519"
	"fmt"

	"filippo.io/edwards25519"
)

const (
	Ed25519PublicKeySize = ed25519.PublicKeySize
	Ed25519SignatureSize = ed25519.SignatureSize
)

// Ed25519PublicKey is a 32-byte Ed25519 public key
type Ed25519PublicKey struct {
	key [Ed25519PublicKeySize]byte
}

// NewEd25519PublicKey creates an Ed25519PublicKey. Only the length is checked here;
// the point encoding is checked when verifying.
func NewEd25519PublicKey(data []byte) (Ed25519PublicKey, error) {
	var ret Ed25519PublicKey
	if len(data) != Ed25519PublicKeySize {
		return ret, fmt.Errorf(
			"%w: Ed25519 public key must be %d bytes, got %d",
			ErrInvalidPublicKey,
			Ed25519PublicKeySize,
			len(data),
		)
	}
	copy(ret.key[:], data)
	return ret, nil
}

func (k Ed25519PublicKey) KeyType() KeyType {
	return KeyTypeEd25519
}

func (k Ed25519PublicKey) Bytes() []byte {
	ret := make([]byte, Ed25519PublicKeySize)
	copy(ret, k.key[:])
	return ret
}

func (k Ed25519PublicKey) Equal(other Ed25519PublicKey) bool {
	return k.key == other.key
}

// Verify checks sig over message. The key must be a canonical encoding of a curve
// point outside the small-order subgroup.
func (k Ed25519PublicKey) Verify(message []byte, sig Ed25519Signature) error {
	point, err := new(edwards25519.Point).SetBytes(k.key[:])
	if err != nil {
		return fmt.Errorf("%w: Ed25519 public key is not a valid point: %w", ErrInvalidPublicKey, err)
	}
	if new(edwards25519.Point).MultByCofactor(point).Equal(edwards25519.NewIdentityPoint()) == 1 {
		return fmt.Errorf("%w: Ed25519 public key has small order", ErrInvalidPublicKey)
	}
	if !ed25519.Verify(ed25519.PublicKey(k.key[:]), message, sig.sig[:]) {
		return ErrVerificationFailed
	}
	return nil
}

// Ed25519Signature is a 64-byte Ed25519 signature
type Ed25519Signature struct {
	sig [Ed25519SignatureSize]byte
}

func NewEd25519Signature(data []byte) (Ed25519Signature, error) {
	var ret Ed25519Signature
	if len(data) != Ed25519SignatureSize {
		return ret, fmt.Errorf(
			"%w: Ed25519 signature must be %d bytes, got %d",
			ErrInvalidSignature,
			Ed25519SignatureSize,
			len(data),
		)
	}
	copy(ret.sig[:], data)
	return ret, nil
}

func (s Ed25519Signature) Bytes() []byte {
	ret := make([]byte, Ed25519SignatureSize)
	copy(ret, s.sig[:])
	return ret
}
