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
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"fmt"
	"math/big"

	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/cryptobyte/asn1"
)

// EcdsaP256PublicKeySize is the size of a compressed P-256 point
const EcdsaP256PublicKeySize = 33

// EcdsaP256PublicKey is an ECDSA public key on the NIST P-256 curve, kept in its
// compressed SEC1 encoding
type EcdsaP256PublicKey struct {
	compressed []byte
	key        *ecdsa.PublicKey
}

// NewEcdsaP256PublicKey creates an EcdsaP256PublicKey from a compressed point
func NewEcdsaP256PublicKey(data []byte) (EcdsaP256PublicKey, error) {
	var ret EcdsaP256PublicKey
	if len(data) != EcdsaP256PublicKeySize {
		return ret, fmt.Errorf(
			"%w: ECDSA P-256 public key must be %d bytes, got %d",
			ErrInvalidPublicKey,
			EcdsaP256PublicKeySize,
			len(data),
		)
	}
	curve := elliptic.P256()
	x, y := elliptic.UnmarshalCompressed(curve, data)
	if x == nil {
		return ret, fmt.Errorf(
			"%w: ECDSA P-256 public key is not a valid compressed point",
			ErrInvalidPublicKey,
		)
	}
	ret.compressed = bytes.Clone(data)
	ret.key = &ecdsa.PublicKey{Curve: curve, X: x, Y: y}
	return ret, nil
}

func (k EcdsaP256PublicKey) KeyType() KeyType {
	return KeyTypeEcdsaP256
}

func (k EcdsaP256PublicKey) Bytes() []byte {
	return bytes.Clone(k.compressed)
}

func (k EcdsaP256PublicKey) Equal(other EcdsaP256PublicKey) bool {
	return bytes.Equal(k.compressed, other.compressed)
}

// Verify checks sig over the SHA-256 digest of message
func (k EcdsaP256PublicKey) Verify(message []byte, sig EcdsaP256SHA256Signature) error {
	if k.key == nil {
		return fmt.Errorf("%w: empty ECDSA P-256 public key", ErrInvalidPublicKey)
	}
	digest := sha256.Sum256(message)
	if !ecdsa.VerifyASN1(k.key, digest[:], sig.der) {
		return ErrVerificationFailed
	}
	return nil
}

// EcdsaP256SHA256Signature is a DER encoded ECDSA signature
type EcdsaP256SHA256Signature struct {
	der []byte
}

// NewEcdsaP256SHA256Signature creates an EcdsaP256SHA256Signature from a DER
// SEQUENCE of the two INTEGERs r and s, both in [1, N-1]
func NewEcdsaP256SHA256Signature(data []byte) (EcdsaP256SHA256Signature, error) {
	var ret EcdsaP256SHA256Signature
	r, s := new(big.Int), new(big.Int)
	input := cryptobyte.String(data)
	var inner cryptobyte.String
	if !input.ReadASN1(&inner, asn1.SEQUENCE) ||
		!input.Empty() ||
		!inner.ReadASN1Integer(r) ||
		!inner.ReadASN1Integer(s) ||
		!inner.Empty() {
		return ret, fmt.Errorf("%w: malformed DER ECDSA signature", ErrInvalidSignature)
	}
	order := elliptic.P256().Params().N
	for _, v := range []*big.Int{r, s} {
		if v.Sign() <= 0 || v.Cmp(order) >= 0 {
			return ret, fmt.Errorf(
				"%w: ECDSA signature value out of range",
				ErrInvalidSignature,
			)
		}
	}
	ret.der = bytes.Clone(data)
	return ret, nil
}

func (s EcdsaP256SHA256Signature) Bytes() []byte {
	return bytes.Clone(s.der)
}
