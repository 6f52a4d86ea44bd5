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

package integrityblock

import (
	"bytes"

	"github.com/blinklabs-io/webbundle/cbor"
	"github.com/blinklabs-io/webbundle/datasource"
	"github.com/blinklabs-io/webbundle/signature"
)

// EntryCallback receives a parsed signature stack entry and the offset just past it,
// or an error
type EntryCallback func(entry *SignatureStackEntry, offset uint64, err *ParserError)

type entryParserState uint8

const (
	entryStateInitial entryParserState = iota
	entryStateArrayHeader
	entryStateAttributes
	entryStateAttributesBytes
	entryStateSignatureHeader
	entryStateSignature
	entryStateDone
)

// SignatureStackEntryParser reads a single [attributes, signature] entry and keeps
// the exact bytes it was read from
type SignatureStackEntryParser struct {
	source            datasource.DataSource
	callback          EntryCallback
	state             entryParserState
	entryStart        uint64
	attributesStart   uint64
	offset            uint64
	attributes        AttributesMap
	completeEntryCbor []byte
	attributesCbor    []byte
	signatureLength   uint64
}

func NewSignatureStackEntryParser(
	source datasource.DataSource,
	callback EntryCallback,
) *SignatureStackEntryParser {
	return &SignatureStackEntryParser{
		source:   source,
		callback: callback,
	}
}

// Parse starts reading the entry at offset. The callback is invoked exactly once.
func (p *SignatureStackEntryParser) Parse(offset uint64) {
	p.entryStart = offset
	p.offset = offset
	p.read(p.offset, cbor.MaxHeaderSize, entryStateArrayHeader)
}

func (p *SignatureStackEntryParser) read(
	offset uint64,
	length uint64,
	state entryParserState,
) {
	p.state = state
	p.source.Read(offset, length, p.onRead)
}

func (p *SignatureStackEntryParser) onRead(data []byte, err error) {
	switch p.state {
	case entryStateArrayHeader:
		p.parseSignatureStackEntryHeader(data, err)
	case entryStateAttributesBytes:
		p.readAttributesBytes(data, err)
	case entryStateSignatureHeader:
		p.parseSignatureHeader(data, err)
	case entryStateSignature:
		p.parseSignature(data, err)
	default:
		p.fail(
			newInternalError(
				nil,
				"Unexpected read completion while parsing a signature stack entry (state %d).",
				p.state,
			),
		)
	}
}

func (p *SignatureStackEntryParser) parseSignatureStackEntryHeader(
	data []byte,
	err error,
) {
	if err != nil {
		p.fail(readError(err, "signature stack entry header"))
		return
	}
	reader := cbor.NewInputReader(data)
	numElements, ok := reader.ReadCborHeader(cbor.CborTypeArray)
	if !ok {
		p.fail(newFormatError(errMsgEntryArraySize))
		return
	}
	if numElements != 2 {
		p.fail(newFormatError(errMsgEntryElementCount))
		return
	}
	p.offset += reader.CurrentOffset()
	p.attributesStart = p.offset
	p.state = entryStateAttributes
	NewAttributeMapParser(p.source, p.onAttributesParsed).Parse(p.offset)
}

func (p *SignatureStackEntryParser) onAttributesParsed(
	attributes AttributesMap,
	offset uint64,
	err *ParserError,
) {
	if err != nil {
		p.fail(err)
		return
	}
	p.attributes = attributes
	p.offset = offset
	// Re-read everything consumed so far so the entry keeps its exact encoding
	p.read(p.entryStart, p.offset-p.entryStart, entryStateAttributesBytes)
}

func (p *SignatureStackEntryParser) readAttributesBytes(data []byte, err error) {
	if err != nil {
		p.fail(readError(err, "signature stack entry"))
		return
	}
	if uint64(len(data)) != p.offset-p.entryStart {
		p.fail(shortReadError("signature stack entry"))
		return
	}
	p.completeEntryCbor = bytes.Clone(data)
	p.attributesCbor = bytes.Clone(data[p.attributesStart-p.entryStart:])
	p.read(p.offset, cbor.MaxHeaderSize, entryStateSignatureHeader)
}

func (p *SignatureStackEntryParser) parseSignatureHeader(data []byte, err error) {
	if err != nil {
		p.fail(readError(err, "signature header"))
		return
	}
	reader := cbor.NewInputReader(data)
	signatureLength, ok := reader.ReadCborHeader(cbor.CborTypeByteString)
	if !ok {
		p.fail(newFormatError(errMsgSignatureSize))
		return
	}
	headerSize := reader.CurrentOffset()
	p.completeEntryCbor = append(p.completeEntryCbor, data[:headerSize]...)
	p.offset += headerSize
	p.signatureLength = signatureLength
	p.read(p.offset, signatureLength, entryStateSignature)
}

func (p *SignatureStackEntryParser) parseSignature(data []byte, err error) {
	if err != nil {
		p.fail(readError(err, "signature"))
		return
	}
	if uint64(len(data)) != p.signatureLength {
		p.fail(shortReadError("signature"))
		return
	}
	p.completeEntryCbor = append(p.completeEntryCbor, data...)
	p.offset += p.signatureLength
	signatureInfo, parseErr := signatureInfoFromAttributes(
		p.attributes,
		bytes.Clone(data),
	)
	if parseErr != nil {
		p.fail(parseErr)
		return
	}
	entry := &SignatureStackEntry{
		Attributes:        p.attributes,
		SignatureInfo:     signatureInfo,
		CompleteEntryCbor: p.completeEntryCbor,
		AttributesCbor:    p.attributesCbor,
	}
	p.state = entryStateDone
	p.attributes = nil
	p.completeEntryCbor = nil
	p.attributesCbor = nil
	p.callback(entry, p.offset, nil)
}

func (p *SignatureStackEntryParser) fail(err *ParserError) {
	p.state = entryStateDone
	p.attributes = nil
	p.completeEntryCbor = nil
	p.attributesCbor = nil
	p.callback(nil, 0, err)
}

// signatureInfoFromAttributes determines the cipher from the public key attribute.
// Exactly one known public key attribute selects a cipher; none or both leave the
// entry as unknown.
func signatureInfoFromAttributes(
	attributes AttributesMap,
	signatureBytes []byte,
) (SignatureInfo, *ParserError) {
	ed25519Key, hasEd25519 := attributes[AttributeNameEd25519PublicKey]
	ecdsaKey, hasEcdsa := attributes[AttributeNameEcdsaP256SHA256PublicKey]
	switch {
	case hasEd25519 && !hasEcdsa:
		publicKey, err := signature.NewEd25519PublicKey(ed25519Key)
		if err != nil {
			return SignatureInfo{}, newFormatError(
				"Invalid Ed25519 public key: %s",
				err,
			)
		}
		if len(signatureBytes) != signature.Ed25519SignatureSize {
			return SignatureInfo{}, newFormatError(
				"The signature does not have the correct length, expected %d bytes.",
				signature.Ed25519SignatureSize,
			)
		}
		sig, err := signature.NewEd25519Signature(signatureBytes)
		if err != nil {
			return SignatureInfo{}, newFormatError("Invalid Ed25519 signature: %s", err)
		}
		return SignatureInfo{
			Type: SignatureTypeEd25519,
			Ed25519: &Ed25519SignatureInfo{
				PublicKey: publicKey,
				Signature: sig,
			},
		}, nil
	case hasEcdsa && !hasEd25519:
		publicKey, err := signature.NewEcdsaP256PublicKey(ecdsaKey)
		if err != nil {
			return SignatureInfo{}, newFormatError(
				"Invalid ECDSA P-256 public key: %s",
				err,
			)
		}
		sig, err := signature.NewEcdsaP256SHA256Signature(signatureBytes)
		if err != nil {
			return SignatureInfo{}, newFormatError(
				"Invalid ECDSA P-256 SHA-256 signature: %s",
				err,
			)
		}
		return SignatureInfo{
			Type: SignatureTypeEcdsaP256SHA256,
			EcdsaP256SHA256: &EcdsaP256SHA256SignatureInfo{
				PublicKey: publicKey,
				Signature: sig,
			},
		}, nil
	default:
		return SignatureInfo{
			Type: SignatureTypeUnknown,
			Unknown: &UnknownSignatureInfo{
				Signature: signatureBytes,
			},
		}, nil
	}
}
