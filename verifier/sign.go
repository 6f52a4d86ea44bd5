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
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"errors"
	"fmt"

	"github.com/blinklabs-io/webbundle/integrityblock"
)

// Signer produces one signature stack entry
type Signer interface {
	// Attributes returns the attributes of the entry, including the public key
	Attributes() integrityblock.AttributesMap
	Sign(payload []byte) ([]byte, error)
}

type Ed25519Signer struct {
	key ed25519.PrivateKey
}

func NewEd25519Signer(key ed25519.PrivateKey) (*Ed25519Signer, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf(
			"Ed25519 private key must be %d bytes, got %d",
			ed25519.PrivateKeySize,
			len(key),
		)
	}
	return &Ed25519Signer{key: key}, nil
}

func (s *Ed25519Signer) Attributes() integrityblock.AttributesMap {
	pub, _ := s.key.Public().(ed25519.PublicKey)
	return integrityblock.AttributesMap{
		integrityblock.AttributeNameEd25519PublicKey: []byte(pub),
	}
}

func (s *Ed25519Signer) Sign(payload []byte) ([]byte, error) {
	return ed25519.Sign(s.key, payload), nil
}

type EcdsaP256Signer struct {
	key *ecdsa.PrivateKey
}

func NewEcdsaP256Signer(key *ecdsa.PrivateKey) (*EcdsaP256Signer, error) {
	if key == nil || key.Curve != elliptic.P256() {
		return nil, errors.New("ECDSA private key must be on the P-256 curve")
	}
	return &EcdsaP256Signer{key: key}, nil
}

func (s *EcdsaP256Signer) Attributes() integrityblock.AttributesMap {
	return integrityblock.AttributesMap{
		integrityblock.AttributeNameEcdsaP256SHA256PublicKey: elliptic.MarshalCompressed(
			elliptic.P256(),
			s.key.X,
			s.key.Y,
		),
	}
}

func (s *EcdsaP256Signer) Sign(payload []byte) ([]byte, error) {
	digest := sha256.Sum256(payload)
	return ecdsa.SignASN1(rand.Reader, s.key, digest[:])
}

// SignBundle prepends an integrity block with one signature per signer to an
// unsigned web bundle. The first signer determines the bundle ID.
func SignBundle(unsignedBundle []byte, signers ...Signer) ([]byte, error) {
	if len(signers) == 0 {
		return nil, errors.New("at least one signer is required")
	}
	bundleHash := sha512.Sum512(unsignedBundle)
	integrityBlockCbor := IntegrityBlockCborForSigning()
	block := &integrityblock.IntegrityBlock{}
	for idx, signer := range signers {
		attributes := signer.Attributes()
		attributesCbor, err := integrityblock.EncodeAttributes(attributes)
		if err != nil {
			return nil, fmt.Errorf("signer %d: %w", idx, err)
		}
		sig, err := signer.Sign(
			SignaturePayload(bundleHash[:], integrityBlockCbor, attributesCbor),
		)
		if err != nil {
			return nil, fmt.Errorf("signer %d: %w", idx, err)
		}
		entryCbor, err := integrityblock.EncodeSignatureStackEntry(attributes, sig)
		if err != nil {
			return nil, fmt.Errorf("signer %d: %w", idx, err)
		}
		block.SignatureStack = append(
			block.SignatureStack,
			&integrityblock.SignatureStackEntry{
				Attributes:        attributes,
				CompleteEntryCbor: entryCbor,
				AttributesCbor:    attributesCbor,
			},
		)
	}
	blockCbor, err := block.MarshalCBOR()
	if err != nil {
		return nil, err
	}
	ret := make([]byte, 0, len(blockCbor)+len(unsignedBundle))
	ret = append(ret, blockCbor...)
	return append(ret, unsignedBundle...), nil
}
