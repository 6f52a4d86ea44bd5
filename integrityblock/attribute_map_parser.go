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
)

// AttributesCallback receives the parsed attributes and the offset just past the map,
// or an error
type AttributesCallback func(attributes AttributesMap, offset uint64, err *ParserError)

type attributeMapParserState uint8

const (
	attributeMapStateInitial attributeMapParserState = iota
	attributeMapStateMapHeader
	attributeMapStateNameHeader
	attributeMapStateName
	attributeMapStateValueHeader
	attributeMapStateValue
	attributeMapStateDone
)

// Upper bound for preallocating the attributes map from an untrusted entry count
const maxAttributesPrealloc = 8

// AttributeMapParser reads a CBOR map of text string names to byte string values
type AttributeMapParser struct {
	source      datasource.DataSource
	callback    AttributesCallback
	state       attributeMapParserState
	offset      uint64
	entriesLeft uint64
	attributes  AttributesMap
	nameLength  uint64
	valueLength uint64
	currentName string
}

func NewAttributeMapParser(
	source datasource.DataSource,
	callback AttributesCallback,
) *AttributeMapParser {
	return &AttributeMapParser{
		source:   source,
		callback: callback,
	}
}

// Parse starts reading the map at offset. The callback is invoked exactly once.
func (p *AttributeMapParser) Parse(offset uint64) {
	p.offset = offset
	p.read(cbor.MaxHeaderSize, attributeMapStateMapHeader)
}

func (p *AttributeMapParser) read(length uint64, state attributeMapParserState) {
	p.state = state
	p.source.Read(p.offset, length, p.onRead)
}

func (p *AttributeMapParser) onRead(data []byte, err error) {
	switch p.state {
	case attributeMapStateMapHeader:
		p.readAttributesMapHeader(data, err)
	case attributeMapStateNameHeader:
		p.readAttributeNameHeader(data, err)
	case attributeMapStateName:
		p.readAttributeName(data, err)
	case attributeMapStateValueHeader:
		p.readAttributeValueHeader(data, err)
	case attributeMapStateValue:
		p.readAttributeValue(data, err)
	default:
		p.fail(
			newInternalError(
				nil,
				"Unexpected read completion while parsing attributes (state %d).",
				p.state,
			),
		)
	}
}

func (p *AttributeMapParser) readAttributesMapHeader(data []byte, err error) {
	if err != nil {
		p.fail(readError(err, "attributes map header"))
		return
	}
	reader := cbor.NewInputReader(data)
	numEntries, ok := reader.ReadCborHeader(cbor.CborTypeMap)
	if !ok {
		p.fail(newFormatError(errMsgAttributesMapSize))
		return
	}
	p.offset += reader.CurrentOffset()
	p.entriesLeft = numEntries
	p.attributes = make(AttributesMap, min(numEntries, maxAttributesPrealloc))
	p.readNextAttributeEntry()
}

func (p *AttributeMapParser) readNextAttributeEntry() {
	if p.entriesLeft == 0 {
		p.state = attributeMapStateDone
		attributes := p.attributes
		p.attributes = nil
		p.callback(attributes, p.offset, nil)
		return
	}
	p.entriesLeft--
	p.read(cbor.MaxHeaderSize, attributeMapStateNameHeader)
}

func (p *AttributeMapParser) readAttributeNameHeader(data []byte, err error) {
	if err != nil {
		p.fail(readError(err, "attribute name header"))
		return
	}
	reader := cbor.NewInputReader(data)
	nameLength, ok := reader.ReadCborHeader(cbor.CborTypeTextString)
	if !ok {
		p.fail(newFormatError(errMsgAttributeNameSize))
		return
	}
	p.offset += reader.CurrentOffset()
	p.nameLength = nameLength
	p.read(nameLength, attributeMapStateName)
}

func (p *AttributeMapParser) readAttributeName(data []byte, err error) {
	if err != nil {
		p.fail(readError(err, "attribute name"))
		return
	}
	if uint64(len(data)) != p.nameLength {
		p.fail(shortReadError("attribute name"))
		return
	}
	reader := cbor.NewInputReader(data)
	name, ok := reader.ReadString(p.nameLength)
	if !ok {
		p.fail(newFormatError(errMsgAttributeNameUTF8))
		return
	}
	if _, exists := p.attributes[name]; exists {
		p.fail(
			newFormatError(
				"Duplicate attribute name %q in the attributes map.",
				name,
			),
		)
		return
	}
	p.offset += p.nameLength
	p.currentName = name
	p.read(cbor.MaxHeaderSize, attributeMapStateValueHeader)
}

func (p *AttributeMapParser) readAttributeValueHeader(data []byte, err error) {
	if err != nil {
		p.fail(readError(err, "attribute value header"))
		return
	}
	reader := cbor.NewInputReader(data)
	valueLength, ok := reader.ReadCborHeader(cbor.CborTypeByteString)
	if !ok {
		p.fail(newFormatError(errMsgAttributeValueSize))
		return
	}
	p.offset += reader.CurrentOffset()
	p.valueLength = valueLength
	p.read(valueLength, attributeMapStateValue)
}

func (p *AttributeMapParser) readAttributeValue(data []byte, err error) {
	if err != nil {
		p.fail(readError(err, "attribute value"))
		return
	}
	if uint64(len(data)) != p.valueLength {
		p.fail(shortReadError("attribute value"))
		return
	}
	p.attributes[p.currentName] = bytes.Clone(data)
	p.offset += p.valueLength
	p.currentName = ""
	p.readNextAttributeEntry()
}

func (p *AttributeMapParser) fail(err *ParserError) {
	p.state = attributeMapStateDone
	p.attributes = nil
	p.callback(nil, 0, err)
}
