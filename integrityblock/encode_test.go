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
	"testing"

	"github.com/blinklabs-io/webbundle/datasource"
	"github.com/blinklabs-io/webbundle/integrityblock"
	"github.com/blinklabs-io/webbundle/internal/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalParsedBlockIsByteIdentical(t *testing.T) {
	data := test.IntegrityBlockCbor(
		test.Ed25519Entry(testEd25519Key, testEd25519Sig),
		test.EntryCbor(
			test.AttributesCbor(
				test.Attribute{Name: "zz", Value: []byte{1}},
				test.Attribute{Name: "a", Value: []byte{2}},
			),
			[]byte{3},
		),
	)
	block, err := parseBytes(t, data)
	require.NoError(t, err)
	encoded, err := block.MarshalCBOR()
	require.NoError(t, err)
	assert.Equal(t, data, encoded)
}

func TestReencodedBlockRoundTrip(t *testing.T) {
	data := test.IntegrityBlockCbor(
		test.Ed25519Entry(testEd25519Key, testEd25519Sig),
		test.EntryCbor(
			test.AttributesCbor(
				test.Attribute{Name: "zz", Value: []byte{1}},
				test.Attribute{Name: "a", Value: []byte{2}},
			),
			[]byte{3},
		),
	)
	block, err := parseBytes(t, data)
	require.NoError(t, err)

	// Drop the retained bytes so every entry is encoded from its fields
	rebuilt := &integrityblock.IntegrityBlock{}
	for _, entry := range block.SignatureStack {
		rebuilt.SignatureStack = append(
			rebuilt.SignatureStack,
			&integrityblock.SignatureStackEntry{
				Attributes:    entry.Attributes,
				SignatureInfo: entry.SignatureInfo,
			},
		)
	}
	encoded, err := rebuilt.MarshalCBOR()
	require.NoError(t, err)

	reparsed, err := parseBytes(t, encoded)
	require.NoError(t, err)
	assert.Equal(t, uint64(len(encoded)), reparsed.Size)
	require.Len(t, reparsed.SignatureStack, len(block.SignatureStack))
	for idx, entry := range reparsed.SignatureStack {
		orig := block.SignatureStack[idx]
		assert.Equal(t, orig.Attributes, entry.Attributes)
		assert.Equal(t, orig.SignatureInfo.Type, entry.SignatureInfo.Type)
		assert.Equal(t, orig.SignatureInfo.SignatureBytes(), entry.SignatureInfo.SignatureBytes())
	}
	// Keys are written in deterministic order, which differs from the input
	assert.Equal(
		t,
		test.AttributesCbor(
			test.Attribute{Name: "a", Value: []byte{2}},
			test.Attribute{Name: "zz", Value: []byte{1}},
		),
		reparsed.SignatureStack[1].AttributesCbor,
	)
}

func TestMarshalEmptyStack(t *testing.T) {
	_, err := (&integrityblock.IntegrityBlock{}).MarshalCBOR()
	require.Error(t, err)
}

func TestEncodeSignatureStackEntry(t *testing.T) {
	encoded, err := integrityblock.EncodeSignatureStackEntry(
		integrityblock.AttributesMap{"ed25519PublicKey": testEd25519Key},
		testEd25519Sig,
	)
	require.NoError(t, err)
	assert.Equal(t, test.Ed25519Entry(testEd25519Key, testEd25519Sig), encoded)

	encoded, err = integrityblock.EncodeSignatureStackEntry(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x82, 0xa0, 0x40}, encoded)
}

func TestEncodeNilAttributeValueRoundTrip(t *testing.T) {
	entry, err := integrityblock.EncodeSignatureStackEntry(
		integrityblock.AttributesMap{
			"ed25519PublicKey": testEd25519Key,
			"extra":            nil,
		},
		testEd25519Sig,
	)
	require.NoError(t, err)

	block, err := parseBytes(t, test.IntegrityBlockCbor(entry))
	require.NoError(t, err)
	require.Len(t, block.SignatureStack, 1)
	parsed := block.SignatureStack[0]
	assert.Equal(t, integrityblock.SignatureTypeEd25519, parsed.SignatureInfo.Type)
	require.Contains(t, parsed.Attributes, "extra")
	assert.Empty(t, parsed.Attributes["extra"])
	assert.Equal(t, entry, parsed.CompleteEntryCbor)
}

func TestAttributeMapParserStandalone(t *testing.T) {
	attrs := test.AttributesCbor(
		test.Attribute{Name: "one", Value: []byte{1}},
		test.Attribute{Name: "two", Value: []byte{}},
	)
	// Leading junk so the map starts at a non-zero offset
	data := append([]byte{0xff, 0xff}, attrs...)
	var calls int
	parser := integrityblock.NewAttributeMapParser(
		datasource.NewBytesSource(data),
		func(attributes integrityblock.AttributesMap, offset uint64, err *integrityblock.ParserError) {
			calls++
			require.Nil(t, err)
			assert.Equal(t, uint64(len(data)), offset)
			assert.Equal(
				t,
				integrityblock.AttributesMap{"one": {1}, "two": {}},
				attributes,
			)
		},
	)
	parser.Parse(2)
	assert.Equal(t, 1, calls)
}

func TestSignatureStackEntryParserStandalone(t *testing.T) {
	entry := test.Ed25519Entry(testEd25519Key, testEd25519Sig)
	var calls int
	parser := integrityblock.NewSignatureStackEntryParser(
		datasource.NewBytesSource(entry),
		func(parsed *integrityblock.SignatureStackEntry, offset uint64, err *integrityblock.ParserError) {
			calls++
			require.Nil(t, err)
			assert.Equal(t, uint64(len(entry)), offset)
			assert.Equal(t, entry, parsed.CompleteEntryCbor)
		},
	)
	parser.Parse(0)
	assert.Equal(t, 1, calls)
}
