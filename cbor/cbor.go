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

package cbor

const (
	CborTypeUnsignedInt uint8 = 0x00
	CborTypeNegativeInt uint8 = 0x20
	CborTypeByteString  uint8 = 0x40
	CborTypeTextString  uint8 = 0x60
	CborTypeArray       uint8 = 0x80
	CborTypeMap         uint8 = 0xa0
	CborTypeTag         uint8 = 0xc0
	CborTypeSimple      uint8 = 0xe0

	// Only the top 3 bits are used to specify the type
	CborTypeMask uint8 = 0xe0

	// The bottom 5 bits hold the "additional information" value
	CborAdditionalInfoMask uint8 = 0x1f

	// Max value able to be stored in a single byte without type prefix
	CborMaxUintSimple uint8 = 0x17

	// Additional information values selecting the width of the argument
	CborArgUint8  uint8 = 24
	CborArgUint16 uint8 = 25
	CborArgUint32 uint8 = 26
	CborArgUint64 uint8 = 27
)

// MaxHeaderSize is the largest possible size of a CBOR item header: the initial
// byte followed by an 8-byte argument
const MaxHeaderSize = 9

// Useful for embedding and easier to remember
type StructAsArray struct {
	// Tells the CBOR decoder to convert to/from a struct and a CBOR array
	_ struct{} `cbor:",toarray"`
}

// MajorTypeName returns a human readable name for a CBOR major type, for use in
// error messages
func MajorTypeName(majorType uint8) string {
	switch majorType & CborTypeMask {
	case CborTypeUnsignedInt:
		return "unsigned integer"
	case CborTypeNegativeInt:
		return "negative integer"
	case CborTypeByteString:
		return "byte string"
	case CborTypeTextString:
		return "text string"
	case CborTypeArray:
		return "array"
	case CborTypeMap:
		return "map"
	case CborTypeTag:
		return "tag"
	default:
		return "simple/float"
	}
}
