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

package integrityblock_test

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/blinklabs-io/webbundle/datasource"
	"github.com/blinklabs-io/webbundle/integrityblock"
	"github.com/blinklabs-io/webbundle/internal/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

var (
	testEd25519Key = test.Filled(32, 0xaa)
	testEd25519Sig = test.Filled(64, 0xbb)
)

func parseBytes(t *testing.T, data []byte) (*integrityblock.IntegrityBlock, error) {
	t.Helper()
	return integrityblock.Parse(
		context.Background(),
		datasource.NewBytesSource(data),
	)
}

func requireParserError(
	t *testing.T,
	err error,
	errType integrityblock.ErrorType,
) *integrityblock.ParserError {
	t.Helper()
	require.Error(t, err)
	var parserErr *integrityblock.ParserError
	require.ErrorAs(t, err, &parserErr)
	require.Equal(
		t,
		errType,
		parserErr.Type,
		"unexpected error type, message: %s",
		parserErr.Message,
	)
	return parserErr
}

func TestParseSingleEd25519Signature(t *testing.T) {
	attrs := test.AttributesCbor(
		test.Attribute{Name: "ed25519PublicKey", Value: testEd25519Key},
	)
	entry := test.EntryCbor(attrs, testEd25519Sig)
	data := test.IntegrityBlockCbor(entry)

	block, err := parseBytes(t, data)
	require.NoError(t, err)
	assert.Equal(t, uint64(len(data)), block.Size)
	require.Len(t, block.SignatureStack, 1)

	parsed := block.SignatureStack[0]
	require.Equal(
		t,
		integrityblock.SignatureTypeEd25519,
		parsed.SignatureInfo.Type,
	)
	require.NotNil(t, parsed.SignatureInfo.Ed25519)
	assert.Equal(t, testEd25519Key, parsed.SignatureInfo.Ed25519.PublicKey.Bytes())
	assert.Equal(t, testEd25519Sig, parsed.SignatureInfo.Ed25519.Signature.Bytes())
	assert.Equal(t, entry, parsed.CompleteEntryCbor)
	assert.Equal(t, attrs, parsed.AttributesCbor)
	assert.Equal(
		t,
		integrityblock.AttributesMap{"ed25519PublicKey": testEd25519Key},
		parsed.Attributes,
	)
}

func TestParseStopsAtEndOfIntegrityBlock(t *testing.T) {
	block := test.IntegrityBlockCbor(test.Ed25519Entry(testEd25519Key, testEd25519Sig))
	data := append(bytes.Clone(block), []byte("unsigned web bundle follows")...)

	parsed, err := parseBytes(t, data)
	require.NoError(t, err)
	assert.Equal(t, uint64(len(block)), parsed.Size)
}

func TestParseEd25519WrongSignatureLength(t *testing.T) {
	for _, sigLen := range []int{0, 63, 65} {
		data := test.IntegrityBlockCbor(
			test.Ed25519Entry(testEd25519Key, test.Filled(sigLen, 0xbb)),
		)
		_, err := parseBytes(t, data)
		parserErr := requireParserError(t, err, integrityblock.ErrorTypeFormat)
		assert.Contains(t, parserErr.Message, "64 bytes", "signature length %d", sigLen)
		assert.ErrorIs(t, err, integrityblock.ErrFormat)
	}
}

func TestParseEmptySignatureStack(t *testing.T) {
	_, err := parseBytes(t, test.IntegrityBlockCbor())
	parserErr := requireParserError(t, err, integrityblock.ErrorTypeFormat)
	assert.Contains(t, parserErr.Message, "at least one signature")
}

func TestParseWrongMagicBytes(t *testing.T) {
	valid := test.IntegrityBlockCbor(test.Ed25519Entry(testEd25519Key, testEd25519Sig))
	for idx := range test.MagicBytes {
		data := bytes.Clone(valid)
		data[idx] ^= 0xff
		_, err := parseBytes(t, data)
		parserErr := requireParserError(t, err, integrityblock.ErrorTypeFormat)
		assert.Equal(t, "Wrong array size or magic bytes.", parserErr.Message)
	}
}

func TestParseWrongVersion(t *testing.T) {
	valid := test.IntegrityBlockCbor(test.Ed25519Entry(testEd25519Key, testEd25519Sig))
	versionStart := len(test.MagicBytes)
	for idx := range test.VersionBytes {
		data := bytes.Clone(valid)
		data[versionStart+idx] ^= 0x01
		_, err := parseBytes(t, data)
		parserErr := requireParserError(t, err, integrityblock.ErrorTypeVersion)
		assert.Contains(t, parserErr.Message, `"1b\x00\x00"`)
		assert.ErrorIs(t, err, integrityblock.ErrVersion)
		assert.NotErrorIs(t, err, integrityblock.ErrFormat)
	}
	// A well formed but different version string
	data := bytes.Clone(valid)
	copy(data[versionStart:], []byte{0x44, '2', 'b', 0x00, 0x00})
	_, err := parseBytes(t, data)
	requireParserError(t, err, integrityblock.ErrorTypeVersion)
}

func TestParseDuplicateAttributeName(t *testing.T) {
	attrs := test.AttributesCbor(
		test.Attribute{Name: "ed25519PublicKey", Value: testEd25519Key},
		test.Attribute{Name: "ed25519PublicKey", Value: test.Filled(32, 0xcc)},
	)
	data := test.IntegrityBlockCbor(test.EntryCbor(attrs, testEd25519Sig))
	_, err := parseBytes(t, data)
	parserErr := requireParserError(t, err, integrityblock.ErrorTypeFormat)
	assert.Contains(t, parserErr.Message, "Duplicate attribute name")
	assert.Contains(t, parserErr.Message, `"ed25519PublicKey"`)
}

func TestParseUnknownCipher(t *testing.T) {
	unknownEntry := test.EntryCbor(
		test.AttributesCbor(test.Attribute{Name: "futureKeyType", Value: []byte{1, 2, 3}}),
		[]byte{4, 5, 6},
	)
	bothKeysEntry := test.EntryCbor(
		test.AttributesCbor(
			test.Attribute{Name: "ed25519PublicKey", Value: testEd25519Key},
			test.Attribute{Name: "ecdsaP256SHA256PublicKey", Value: test.Filled(33, 0x02)},
		),
		testEd25519Sig,
	)
	noAttributesEntry := test.EntryCbor(test.AttributesCbor(), []byte{})

	t.Run("first entry unknown", func(t *testing.T) {
		for _, first := range [][]byte{unknownEntry, bothKeysEntry, noAttributesEntry} {
			data := test.IntegrityBlockCbor(
				first,
				test.Ed25519Entry(testEd25519Key, testEd25519Sig),
			)
			_, err := parseBytes(t, data)
			parserErr := requireParserError(t, err, integrityblock.ErrorTypeFormat)
			assert.Equal(t, "Unknown cipher type of the first signature.", parserErr.Message)
		}
	})

	t.Run("later entries unknown", func(t *testing.T) {
		data := test.IntegrityBlockCbor(
			test.Ed25519Entry(testEd25519Key, testEd25519Sig),
			unknownEntry,
			bothKeysEntry,
			noAttributesEntry,
		)
		block, err := parseBytes(t, data)
		require.NoError(t, err)
		require.Len(t, block.SignatureStack, 4)
		assert.Equal(t, integrityblock.SignatureTypeEd25519, block.SignatureStack[0].SignatureInfo.Type)
		for _, entry := range block.SignatureStack[1:] {
			assert.Equal(t, integrityblock.SignatureTypeUnknown, entry.SignatureInfo.Type)
			require.NotNil(t, entry.SignatureInfo.Unknown)
			assert.Nil(t, entry.SignatureInfo.PublicKey())
		}
		assert.Equal(t, []byte{4, 5, 6}, block.SignatureStack[1].SignatureInfo.Unknown.Signature)
		assert.Equal(t, unknownEntry, block.SignatureStack[1].CompleteEntryCbor)
		assert.Equal(t, uint64(len(data)), block.Size)
	})
}

func TestParseEcdsaP256Signature(t *testing.T) {
	privKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	compressed := elliptic.MarshalCompressed(elliptic.P256(), privKey.X, privKey.Y)
	digest := sha256.Sum256([]byte("payload"))
	sig, err := ecdsa.SignASN1(rand.Reader, privKey, digest[:])
	require.NoError(t, err)

	data := test.IntegrityBlockCbor(test.EcdsaP256Entry(compressed, sig))
	block, err := parseBytes(t, data)
	require.NoError(t, err)
	require.Len(t, block.SignatureStack, 1)
	info := block.SignatureStack[0].SignatureInfo
	require.Equal(t, integrityblock.SignatureTypeEcdsaP256SHA256, info.Type)
	require.NotNil(t, info.EcdsaP256SHA256)
	assert.Equal(t, compressed, info.EcdsaP256SHA256.PublicKey.Bytes())
	assert.Equal(t, sig, info.EcdsaP256SHA256.Signature.Bytes())
	assert.Equal(t, sig, info.SignatureBytes())

	t.Run("invalid public key", func(t *testing.T) {
		badKey := bytes.Clone(compressed)
		badKey[0] = 0x05
		_, err := parseBytes(t, test.IntegrityBlockCbor(test.EcdsaP256Entry(badKey, sig)))
		requireParserError(t, err, integrityblock.ErrorTypeFormat)
	})

	t.Run("invalid signature", func(t *testing.T) {
		_, err := parseBytes(
			t,
			test.IntegrityBlockCbor(test.EcdsaP256Entry(compressed, test.Filled(64, 0xbb))),
		)
		requireParserError(t, err, integrityblock.ErrorTypeFormat)
	})
}

func TestParseInvalidEd25519PublicKeyLength(t *testing.T) {
	data := test.IntegrityBlockCbor(test.Ed25519Entry(test.Filled(31, 0xaa), testEd25519Sig))
	_, err := parseBytes(t, data)
	requireParserError(t, err, integrityblock.ErrorTypeFormat)
}

func TestParseMalformedStructure(t *testing.T) {
	validAttrs := test.AttributesCbor(
		test.Attribute{Name: "ed25519PublicKey", Value: testEd25519Key},
	)
	sigCbor := append([]byte{0x58, 0x40}, testEd25519Sig...)
	testDefs := []struct {
		name    string
		data    []byte
		message string
	}{
		{
			name:    "stack is not an array",
			data:    append(test.IntegrityBlockPrefix(), 0xa1),
			message: "Cannot parse the size of the signature stack.",
		},
		{
			name: "entry with three elements",
			data: test.IntegrityBlockCbor(
				append(append([]byte{0x83}, validAttrs...), append(sigCbor, 0x40)...),
			),
			message: "Each signature stack entry must contain exactly two elements (attributes and signature).",
		},
		{
			name:    "entry with one element",
			data:    test.IntegrityBlockCbor(append([]byte{0x81}, validAttrs...)),
			message: "Each signature stack entry must contain exactly two elements (attributes and signature).",
		},
		{
			name:    "entry is not an array",
			data:    test.IntegrityBlockCbor(validAttrs),
			message: "Cannot parse the size of the signature stack entry.",
		},
		{
			name: "indefinite length attributes map",
			data: test.IntegrityBlockCbor(
				append([]byte{0x82, 0xbf}, sigCbor...),
			),
			message: "Cannot parse attributes map size.",
		},
		{
			name: "attribute name is a byte string",
			data: test.IntegrityBlockCbor(
				append([]byte{0x82, 0xa1, 0x41, 'k', 0x41, 0x00}, sigCbor...),
			),
			message: "Cannot parse attribute name size.",
		},
		{
			name: "attribute name is not UTF-8",
			data: test.IntegrityBlockCbor(
				append([]byte{0x82, 0xa1, 0x62, 0xff, 0xfe, 0x41, 0x00}, sigCbor...),
			),
			message: "Attribute name is not valid UTF-8.",
		},
		{
			name: "attribute value is a text string",
			data: test.IntegrityBlockCbor(
				append([]byte{0x82, 0xa1, 0x61, 'k', 0x61, 'v'}, sigCbor...),
			),
			message: "Cannot parse attribute value size.",
		},
		{
			name: "signature is a text string",
			data: test.IntegrityBlockCbor(
				append(append([]byte{0x82}, validAttrs...), 0x60),
			),
			message: "Cannot parse the size of the signature.",
		},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			_, err := parseBytes(t, testDef.data)
			parserErr := requireParserError(t, err, integrityblock.ErrorTypeFormat)
			assert.Equal(t, testDef.message, parserErr.Message)
		})
	}
}

func TestParseTruncatedInput(t *testing.T) {
	data := test.IntegrityBlockCbor(
		test.Ed25519Entry(testEd25519Key, testEd25519Sig),
		test.EntryCbor(
			test.AttributesCbor(
				test.Attribute{Name: "a", Value: []byte{1}},
				test.Attribute{Name: "b", Value: []byte{2, 3}},
			),
			[]byte{4, 5, 6, 7},
		),
	)
	for length := range len(data) {
		_, err := parseBytes(t, data[:length])
		requireParserError(t, err, integrityblock.ErrorTypeFormat)
	}
	_, err := parseBytes(t, data)
	require.NoError(t, err)
}

func TestParseHugeLengthsDoNotPreallocate(t *testing.T) {
	// Stack and attribute counts far beyond the available data
	data := test.IntegrityBlockPrefix()
	data = append(data, 0x9b, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff)
	data = append(data, 0x82, 0xbb, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff)
	_, err := parseBytes(t, data)
	requireParserError(t, err, integrityblock.ErrorTypeFormat)
}

func TestParseNonCanonicalHeaders(t *testing.T) {
	// Map header with a one byte argument and signature header with a two byte argument
	entry := []byte{0x82, 0xb8, 0x01, 0x70}
	entry = append(entry, "ed25519PublicKey"...)
	entry = append(entry, 0x58, 0x20)
	entry = append(entry, testEd25519Key...)
	entry = append(entry, 0x59, 0x00, 0x40)
	entry = append(entry, testEd25519Sig...)
	data := test.IntegrityBlockCbor(entry)

	block, err := parseBytes(t, data)
	require.NoError(t, err)
	require.Len(t, block.SignatureStack, 1)
	assert.Equal(t, entry, block.SignatureStack[0].CompleteEntryCbor)
	assert.Equal(t, entry[1:len(entry)-67], block.SignatureStack[0].AttributesCbor)

	encoded, err := block.MarshalCBOR()
	require.NoError(t, err)
	assert.Equal(t, data, encoded)
}

func TestParseLongSignatureStack(t *testing.T) {
	unknownEntry := test.EntryCbor(test.AttributesCbor(), []byte{0x01})
	entries := [][]byte{test.Ed25519Entry(testEd25519Key, testEd25519Sig)}
	for range 5000 {
		entries = append(entries, unknownEntry)
	}
	data := test.IntegrityBlockCbor(entries...)
	block, err := parseBytes(t, data)
	require.NoError(t, err)
	assert.Len(t, block.SignatureStack, 5001)
	assert.Equal(t, uint64(len(data)), block.Size)
}

type errorSource struct {
	err error
}

func (s errorSource) Read(_ uint64, _ uint64, callback datasource.ReadCallback) {
	callback(nil, s.err)
}

func (errorSource) Length() (uint64, error) {
	return 0, nil
}

// stalledSource records reads and never completes them
type stalledSource struct {
	reads atomic.Int32
}

func (s *stalledSource) Read(uint64, uint64, datasource.ReadCallback) {
	s.reads.Add(1)
}

func (*stalledSource) Length() (uint64, error) {
	return 0, nil
}

func TestParseSourceFailure(t *testing.T) {
	ioErr := errors.New("disk on fire")
	_, err := integrityblock.Parse(context.Background(), errorSource{err: ioErr})
	requireParserError(t, err, integrityblock.ErrorTypeParserInternal)
	assert.ErrorIs(t, err, ioErr)
	assert.ErrorIs(t, err, integrityblock.ErrParserInternal)
}

func TestParseClosedSource(t *testing.T) {
	source := datasource.NewBytesSource(
		test.IntegrityBlockCbor(test.Ed25519Entry(testEd25519Key, testEd25519Sig)),
	)
	require.NoError(t, source.Close())
	_, err := integrityblock.Parse(context.Background(), source)
	requireParserError(t, err, integrityblock.ErrorTypeParserInternal)
	assert.ErrorIs(t, err, datasource.ErrClosed)
}

func TestParserCloseBeforeCompletion(t *testing.T) {
	source := &stalledSource{}
	parser := integrityblock.NewParser(source)
	var calls atomic.Int32
	var gotErr *integrityblock.ParserError
	parser.StartParsing(func(block *integrityblock.IntegrityBlock, err *integrityblock.ParserError) {
		calls.Add(1)
		assert.Nil(t, block)
		gotErr = err
	})
	assert.Equal(t, int32(1), source.reads.Load())
	assert.Equal(t, int32(0), calls.Load())
	parser.Close()
	parser.Close()
	assert.Equal(t, int32(1), calls.Load())
	require.NotNil(t, gotErr)
	assert.Equal(t, integrityblock.ErrorTypeParserInternal, gotErr.Type)
}

func TestParserCloseBeforeStart(t *testing.T) {
	source := &stalledSource{}
	parser := integrityblock.NewParser(source)
	parser.Close()
	var calls atomic.Int32
	parser.StartParsing(func(block *integrityblock.IntegrityBlock, err *integrityblock.ParserError) {
		calls.Add(1)
		require.NotNil(t, err)
		assert.Equal(t, integrityblock.ErrorTypeParserInternal, err.Type)
	})
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int32(0), source.reads.Load())
}

func TestParserCloseAfterCompletion(t *testing.T) {
	parser := integrityblock.NewParser(
		datasource.NewBytesSource(
			test.IntegrityBlockCbor(test.Ed25519Entry(testEd25519Key, testEd25519Sig)),
		),
	)
	var calls atomic.Int32
	parser.StartParsing(func(block *integrityblock.IntegrityBlock, err *integrityblock.ParserError) {
		calls.Add(1)
		assert.Nil(t, err)
		assert.NotNil(t, block)
	})
	parser.Close()
	assert.Equal(t, int32(1), calls.Load())
}

func TestParserNoReadsAfterError(t *testing.T) {
	var reads atomic.Int32
	source := datasource.NewBytesSource(append(test.IntegrityBlockPrefix(), 0x80))
	counting := countingSource{DataSource: source, reads: &reads}
	_, err := integrityblock.Parse(context.Background(), counting)
	requireParserError(t, err, integrityblock.ErrorTypeFormat)
	// Magic and version, then the stack header
	assert.Equal(t, int32(2), reads.Load())
}

type countingSource struct {
	datasource.DataSource
	reads *atomic.Int32
}

func (s countingSource) Read(offset uint64, length uint64, callback datasource.ReadCallback) {
	s.reads.Add(1)
	s.DataSource.Read(offset, length, callback)
}

func TestParseContextCancel(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := integrityblock.Parse(ctx, &stalledSource{})
	requireParserError(t, err, integrityblock.ErrorTypeParserInternal)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestParseAsyncSource(t *testing.T) {
	defer goleak.VerifyNone(t)
	data := test.IntegrityBlockCbor(
		test.Ed25519Entry(testEd25519Key, testEd25519Sig),
		test.EntryCbor(
			test.AttributesCbor(test.Attribute{Name: "x", Value: []byte{1}}),
			[]byte{2},
		),
	)
	source := datasource.NewReaderAtSource(
		bytes.NewReader(data),
		uint64(len(data)),
		datasource.WithAsyncReads(true),
	)
	defer func() {
		require.NoError(t, source.Close())
	}()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			block, err := integrityblock.Parse(context.Background(), source)
			if !assert.NoError(t, err) {
				return
			}
			assert.Equal(t, uint64(len(data)), block.Size)
			assert.Len(t, block.SignatureStack, 2)
		}()
	}
	wg.Wait()
}

func TestWebBundleIDFromBlock(t *testing.T) {
	block, err := parseBytes(
		t,
		test.IntegrityBlockCbor(test.Ed25519Entry(testEd25519Key, testEd25519Sig)),
	)
	require.NoError(t, err)
	id, err := block.WebBundleID()
	require.NoError(t, err)
	assert.Equal(t, testEd25519Key, id.PublicKey())
	assert.Len(t, id.String(), 56)
}
