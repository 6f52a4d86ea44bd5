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

package cbor_test

import (
	"encoding/hex"
	"testing"

	"github.com/blinklabs-io/webbundle/cbor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type readHeaderTestDefinition struct {
	name       string
	cborHex    string
	majorType  uint8
	expected   uint64
	headerSize uint64
	ok         bool
}

var readHeaderTests = []readHeaderTestDefinition{
	{
		name:       "array in initial byte",
		cborHex:    "82",
		majorType:  cbor.CborTypeArray,
		expected:   2,
		headerSize: 1,
		ok:         true,
	},
	{
		name:       "byte string with uint8 length",
		cborHex:    "5840",
		majorType:  cbor.CborTypeByteString,
		expected:   64,
		headerSize: 2,
		ok:         true,
	},
	{
		name:       "map with uint16 length",
		cborHex:    "b90100",
		majorType:  cbor.CborTypeMap,
		expected:   256,
		headerSize: 3,
		ok:         true,
	},
	{
		name:       "text string with uint32 length",
		cborHex:    "7a00010000",
		majorType:  cbor.CborTypeTextString,
		expected:   65536,
		headerSize: 5,
		ok:         true,
	},
	{
		name:       "array with uint64 length",
		cborHex:    "9b0000000100000000",
		majorType:  cbor.CborTypeArray,
		expected:   1 << 32,
		headerSize: 9,
		ok:         true,
	},
	{
		// Non-minimal encodings are valid CBOR and must be accepted
		name:       "non-minimal array length",
		cborHex:    "980001",
		majorType:  cbor.CborTypeArray,
		expected:   0,
		headerSize: 2,
		ok:         true,
	},
	{
		name:      "wrong major type",
		cborHex:   "a1",
		majorType: cbor.CborTypeArray,
	},
	{
		name:      "indefinite length",
		cborHex:   "9f",
		majorType: cbor.CborTypeArray,
	},
	{
		name:      "reserved additional info",
		cborHex:   "5c",
		majorType: cbor.CborTypeByteString,
	},
	{
		name:      "truncated argument",
		cborHex:   "5900",
		majorType: cbor.CborTypeByteString,
	},
	{
		name:      "empty input",
		cborHex:   "",
		majorType: cbor.CborTypeMap,
	},
}

func TestInputReaderReadCborHeader(t *testing.T) {
	for _, test := range readHeaderTests {
		t.Run(test.name, func(t *testing.T) {
			data, err := hex.DecodeString(test.cborHex)
			require.NoError(t, err)
			reader := cbor.NewInputReader(data)
			value, ok := reader.ReadCborHeader(test.majorType)
			require.Equal(t, test.ok, ok)
			if !test.ok {
				// Failed reads must not move the cursor
				assert.Equal(t, uint64(0), reader.CurrentOffset())
				return
			}
			assert.Equal(t, test.expected, value)
			assert.Equal(t, test.headerSize, reader.CurrentOffset())
		})
	}
}

func TestInputReaderReadBytes(t *testing.T) {
	reader := cbor.NewInputReader([]byte{0x01, 0x02, 0x03, 0x04})

	first, ok := reader.ReadBytes(3)
	require.True(t, ok)
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, first)
	assert.Equal(t, uint64(3), reader.CurrentOffset())

	_, ok = reader.ReadBytes(2)
	assert.False(t, ok)
	assert.Equal(t, uint64(3), reader.CurrentOffset())

	last, ok := reader.ReadBytes(1)
	require.True(t, ok)
	assert.Equal(t, []byte{0x04}, last)
	assert.Equal(t, 0, reader.Remaining())

	empty, ok := reader.ReadBytes(0)
	assert.True(t, ok)
	assert.Empty(t, empty)
}

func TestInputReaderReadString(t *testing.T) {
	reader := cbor.NewInputReader([]byte("ed25519PublicKey\xff"))

	name, ok := reader.ReadString(16)
	require.True(t, ok)
	assert.Equal(t, "ed25519PublicKey", name)

	// A lone 0xff byte is never valid UTF-8
	_, ok = reader.ReadString(1)
	assert.False(t, ok)
	assert.Equal(t, uint64(16), reader.CurrentOffset())

	_, ok = reader.ReadString(2)
	assert.False(t, ok)
}

func TestInputReaderSequence(t *testing.T) {
	// [h'0102', "a"]
	data, err := hex.DecodeString("8242010261" + "61")
	require.NoError(t, err)
	reader := cbor.NewInputReader(data)

	length, ok := reader.ReadCborHeader(cbor.CborTypeArray)
	require.True(t, ok)
	assert.Equal(t, uint64(2), length)

	byteLen, ok := reader.ReadCborHeader(cbor.CborTypeByteString)
	require.True(t, ok)
	value, ok := reader.ReadBytes(byteLen)
	require.True(t, ok)
	assert.Equal(t, []byte{0x01, 0x02}, value)

	textLen, ok := reader.ReadCborHeader(cbor.CborTypeTextString)
	require.True(t, ok)
	text, ok := reader.ReadString(textLen)
	require.True(t, ok)
	assert.Equal(t, "a", text)
	assert.Equal(t, uint64(len(data)), reader.CurrentOffset())
}
