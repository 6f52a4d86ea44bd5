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

package signature_test

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"strings"
	"testing"

	"github.com/blinklabs-io/webbundle/signature"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEd25519SignAndVerify(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	message := []byte("signed web bundle payload")

	key, err := signature.NewEd25519PublicKey(pub)
	require.NoError(t, err)
	assert.Equal(t, []byte(pub), key.Bytes())
	assert.Equal(t, signature.KeyTypeEd25519, key.KeyType())

	sig, err := signature.NewEd25519Signature(ed25519.Sign(priv, message))
	require.NoError(t, err)
	require.NoError(t, key.Verify(message, sig))

	err = key.Verify([]byte("other payload"), sig)
	assert.ErrorIs(t, err, signature.ErrVerificationFailed)
}

func TestEd25519ConstructorLengths(t *testing.T) {
	_, err := signature.NewEd25519PublicKey(make([]byte, 31))
	assert.ErrorIs(t, err, signature.ErrInvalidPublicKey)
	_, err = signature.NewEd25519PublicKey(make([]byte, 33))
	assert.ErrorIs(t, err, signature.ErrInvalidPublicKey)

	_, err = signature.NewEd25519Signature(make([]byte, 63))
	require.ErrorIs(t, err, signature.ErrInvalidSignature)
	assert.Contains(t, err.Error(), "64 bytes")
}

func TestEd25519SmallOrderKeyRejected(t *testing.T) {
	// Encoding of the identity point
	identity := make([]byte, 32)
	identity[0] = 0x01
	key, err := signature.NewEd25519PublicKey(identity)
	require.NoError(t, err)
	sig, err := signature.NewEd25519Signature(make([]byte, 64))
	require.NoError(t, err)
	err = key.Verify([]byte("payload"), sig)
	assert.ErrorIs(t, err, signature.ErrInvalidPublicKey)
	assert.Contains(t, err.Error(), "small order")
}

func generateEcdsaKey(t *testing.T) (*ecdsa.PrivateKey, []byte) {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return priv, elliptic.MarshalCompressed(elliptic.P256(), priv.X, priv.Y)
}

func TestEcdsaSignAndVerify(t *testing.T) {
	priv, compressed := generateEcdsaKey(t)
	message := []byte("signed web bundle payload")
	digest := sha256.Sum256(message)
	der, err := ecdsa.SignASN1(rand.Reader, priv, digest[:])
	require.NoError(t, err)

	key, err := signature.NewEcdsaP256PublicKey(compressed)
	require.NoError(t, err)
	assert.Equal(t, compressed, key.Bytes())
	assert.Equal(t, signature.KeyTypeEcdsaP256, key.KeyType())

	sig, err := signature.NewEcdsaP256SHA256Signature(der)
	require.NoError(t, err)
	assert.Equal(t, der, sig.Bytes())
	require.NoError(t, key.Verify(message, sig))

	err = key.Verify([]byte("other payload"), sig)
	assert.ErrorIs(t, err, signature.ErrVerificationFailed)
}

func TestEcdsaPublicKeyValidation(t *testing.T) {
	_, compressed := generateEcdsaKey(t)

	_, err := signature.NewEcdsaP256PublicKey(compressed[:32])
	assert.ErrorIs(t, err, signature.ErrInvalidPublicKey)

	// Uncompressed prefix with a compressed length
	bad := append([]byte{0x04}, compressed[1:]...)
	_, err = signature.NewEcdsaP256PublicKey(bad)
	assert.ErrorIs(t, err, signature.ErrInvalidPublicKey)
}

func TestEcdsaSignatureValidation(t *testing.T) {
	testDefs := []struct {
		name string
		der  []byte
	}{
		{"empty", nil},
		{"not a sequence", []byte{0x02, 0x01, 0x01}},
		{"single integer", []byte{0x30, 0x03, 0x02, 0x01, 0x01}},
		{"trailing data", []byte{0x30, 0x06, 0x02, 0x01, 0x01, 0x02, 0x01, 0x01, 0x00}},
		{"zero r", []byte{0x30, 0x06, 0x02, 0x01, 0x00, 0x02, 0x01, 0x01}},
		{"negative s", []byte{0x30, 0x06, 0x02, 0x01, 0x01, 0x02, 0x01, 0xff}},
	}
	for _, test := range testDefs {
		t.Run(test.name, func(t *testing.T) {
			_, err := signature.NewEcdsaP256SHA256Signature(test.der)
			assert.ErrorIs(t, err, signature.ErrInvalidSignature)
		})
	}

	sig, err := signature.NewEcdsaP256SHA256Signature(
		[]byte{0x30, 0x06, 0x02, 0x01, 0x01, 0x02, 0x01, 0x01},
	)
	require.NoError(t, err)
	assert.Len(t, sig.Bytes(), 8)
}

func TestWebBundleIDEd25519(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	key, err := signature.NewEd25519PublicKey(pub)
	require.NoError(t, err)

	id, err := signature.NewWebBundleID(key)
	require.NoError(t, err)
	text := id.String()
	// 35 bytes of key and suffix encode to exactly 56 base32 characters
	assert.Len(t, text, 56)
	assert.Equal(t, strings.ToLower(text), text)

	parsed, err := signature.ParseWebBundleID(text)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(id))
	assert.Equal(t, signature.KeyTypeEd25519, parsed.KeyType())
	assert.Equal(t, []byte(pub), parsed.PublicKey())

	upper, err := signature.ParseWebBundleID(strings.ToUpper(text))
	require.NoError(t, err)
	assert.True(t, upper.Equal(id))
}

func TestWebBundleIDEcdsa(t *testing.T) {
	_, compressed := generateEcdsaKey(t)
	key, err := signature.NewEcdsaP256PublicKey(compressed)
	require.NoError(t, err)

	id, err := signature.NewWebBundleID(key)
	require.NoError(t, err)
	parsed, err := signature.ParseWebBundleID(id.String())
	require.NoError(t, err)
	assert.True(t, parsed.Equal(id))
	assert.Equal(t, signature.KeyTypeEcdsaP256, parsed.KeyType())
}

func TestParseWebBundleIDErrors(t *testing.T) {
	_, err := signature.ParseWebBundleID("not base32 !")
	assert.ErrorIs(t, err, signature.ErrInvalidWebBundleID)

	// Valid base32 of the wrong length
	_, err = signature.ParseWebBundleID("aaaaaaaa")
	assert.ErrorIs(t, err, signature.ErrInvalidWebBundleID)
}
