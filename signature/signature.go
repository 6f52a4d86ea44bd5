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

// Package signature provides the public key and signature value types used in signed
// web bundle signature stacks, and verification of signatures made with them.
//
// Constructors only check the structure of their input (lengths, point encodings,
// DER layout). Whether a signature actually matches a payload is decided by the
// Verify methods.
package signature

import (
	"errors"
)

var (
	// ErrInvalidPublicKey is wrapped by every public key constructor error
	ErrInvalidPublicKey = errors.New("invalid public key")
	// ErrInvalidSignature is wrapped by every signature constructor error
	ErrInvalidSignature = errors.New("invalid signature")
	// ErrVerificationFailed is returned when a well-formed signature does not match
	ErrVerificationFailed = errors.New("signature verification failed")
)

// KeyType identifies the cipher of a public key
type KeyType uint8

const (
	KeyTypeEd25519 KeyType = iota + 1
	KeyTypeEcdsaP256
)

func (t KeyType) String() string {
	switch t {
	case KeyTypeEd25519:
		return "Ed25519"
	case KeyTypeEcdsaP256:
		return "ECDSA P-256"
	default:
		return "unknown"
	}
}

// PublicKey is implemented by the public key types of this package
type PublicKey interface {
	KeyType() KeyType
	Bytes() []byte
}
