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
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/blinklabs-io/webbundle/cbor"
	"github.com/blinklabs-io/webbundle/datasource"
)

// CompletionFunc receives the result of a parse. Exactly one of block and err is
// non-nil.
type CompletionFunc func(block *IntegrityBlock, err *ParserError)

type parserState uint8

const (
	parserStateInitial parserState = iota
	parserStateMagicAndVersion
	parserStateSignatureStackHeader
	parserStateSignatureStackEntry
	parserStateDone
)

func (s parserState) String() string {
	switch s {
	case parserStateInitial:
		return "Initial"
	case parserStateMagicAndVersion:
		return "MagicAndVersion"
	case parserStateSignatureStackHeader:
		return "SignatureStackHeader"
	case parserStateSignatureStackEntry:
		return "SignatureStackEntry"
	case parserStateDone:
		return "Done"
	default:
		return fmt.Sprintf("parserState(%d)", uint8(s))
	}
}

// Upper bound for preallocating the signature stack from an untrusted entry count
const maxSignatureStackPrealloc = 16

// Parser reads the integrity block at the start of a data source.
//
// The completion callback runs exactly once: with the parsed block, with the first
// error encountered, or with a ParserInternalError when Close is called first. No
// read completions are processed after that.
type Parser struct {
	source      *serialSource
	logger      *slog.Logger
	started     atomic.Bool
	closed      atomic.Bool
	once        sync.Once
	callbackMu  sync.Mutex
	callback    CompletionFunc
	state       parserState
	offset      uint64
	entriesLeft uint64
	stack       []*SignatureStackEntry
}

// ParserOption is a function that sets an option on the parser
type ParserOption func(*Parser)

// WithLogger specifies the logger to use
func WithLogger(logger *slog.Logger) ParserOption {
	return func(p *Parser) {
		p.logger = logger
	}
}

// NewParser returns a parser for the integrity block read from source
func NewParser(source datasource.DataSource, opts ...ParserOption) *Parser {
	p := &Parser{
		source: newSerialSource(source),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// StartParsing begins parsing and returns immediately. It may be called only once.
func (p *Parser) StartParsing(callback CompletionFunc) {
	if callback == nil {
		panic("integrityblock: StartParsing called with nil callback")
	}
	if !p.started.CompareAndSwap(false, true) {
		panic("integrityblock: StartParsing called more than once")
	}
	p.callbackMu.Lock()
	p.callback = callback
	p.callbackMu.Unlock()
	if p.closed.Load() {
		p.abort(nil, errMsgParserClosed)
		return
	}
	p.state = parserStateMagicAndVersion
	p.source.Read(
		0,
		uint64(len(IntegrityBlockMagicBytes)+len(IntegrityBlockVersionMagicBytes)),
		p.onRead,
	)
}

// Close abandons the parse. If the result has not been delivered yet, the callback
// receives a ParserInternalError. Close is safe to call at any time, from any
// goroutine, any number of times.
func (p *Parser) Close() {
	p.closeWithCause(nil)
}

func (p *Parser) closeWithCause(cause error) {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	if cause != nil {
		p.abort(cause, fmt.Sprintf("%s (%s)", errMsgParserClosed, cause))
		return
	}
	p.abort(nil, errMsgParserClosed)
}

// abort stops processing reads and reports an internal error unless a result was
// already delivered. It may run concurrently with a read completion, so it leaves
// the parse state alone.
func (p *Parser) abort(cause error, message string) {
	p.source.Close()
	p.finish(nil, newInternalError(cause, "%s", message))
}

func (p *Parser) onRead(data []byte, err error) {
	switch p.state {
	case parserStateMagicAndVersion:
		p.parseMagicBytesAndVersion(data, err)
	case parserStateSignatureStackHeader:
		p.parseSignatureStack(data, err)
	default:
		p.runErrorCallback(
			newInternalError(
				nil,
				"Unexpected read completion in parser state %s.",
				p.state,
			),
		)
	}
}

func (p *Parser) parseMagicBytesAndVersion(data []byte, err error) {
	if err != nil {
		p.runErrorCallback(
			readError(err, "the integrity block array structure and magic bytes"),
		)
		return
	}
	magicLen := len(IntegrityBlockMagicBytes)
	if len(data) != magicLen+len(IntegrityBlockVersionMagicBytes) {
		p.runErrorCallback(newFormatError(errMsgReadMagicBytes))
		return
	}
	if !bytes.Equal(data[:magicLen], IntegrityBlockMagicBytes) {
		p.runErrorCallback(newFormatError(errMsgWrongMagicBytes))
		return
	}
	if !bytes.Equal(data[magicLen:], IntegrityBlockVersionMagicBytes) {
		p.runErrorCallback(
			newVersionError(
				"Unexpected integrity block version. Currently supported versions are: %q",
				IntegrityBlockVersionMagicBytes[1:],
			),
		)
		return
	}
	p.offset = uint64(len(data))
	p.state = parserStateSignatureStackHeader
	p.source.Read(p.offset, cbor.MaxHeaderSize, p.onRead)
}

func (p *Parser) parseSignatureStack(data []byte, err error) {
	if err != nil {
		p.runErrorCallback(readError(err, "the signature stack header"))
		return
	}
	reader := cbor.NewInputReader(data)
	numSignatures, ok := reader.ReadCborHeader(cbor.CborTypeArray)
	if !ok {
		p.runErrorCallback(newFormatError(errMsgSignatureStackSize))
		return
	}
	if numSignatures == 0 {
		p.runErrorCallback(newFormatError(errMsgEmptySignatureStack))
		return
	}
	p.offset += reader.CurrentOffset()
	p.entriesLeft = numSignatures
	p.stack = make(
		[]*SignatureStackEntry,
		0,
		min(numSignatures, maxSignatureStackPrealloc),
	)
	p.readSignatureStackEntry()
}

func (p *Parser) readSignatureStackEntry() {
	p.state = parserStateSignatureStackEntry
	NewSignatureStackEntryParser(p.source, p.nextSignatureStackEntry).Parse(p.offset)
}

func (p *Parser) nextSignatureStackEntry(
	entry *SignatureStackEntry,
	offset uint64,
	err *ParserError,
) {
	if err != nil {
		p.runErrorCallback(err)
		return
	}
	// The primary signature determines the bundle ID, so its cipher must be known.
	// Unknown ciphers are tolerated further down the stack.
	if len(p.stack) == 0 &&
		entry.SignatureInfo.Type == SignatureTypeUnknown {
		p.runErrorCallback(newFormatError(errMsgUnknownFirstCipher))
		return
	}
	p.stack = append(p.stack, entry)
	p.offset = offset
	p.entriesLeft--
	if p.entriesLeft > 0 {
		p.readSignatureStackEntry()
		return
	}
	p.runSuccessCallback()
}

func (p *Parser) runSuccessCallback() {
	p.state = parserStateDone
	block := &IntegrityBlock{
		Size:           p.offset,
		SignatureStack: p.stack,
	}
	p.stack = nil
	p.finish(block, nil)
}

func (p *Parser) runErrorCallback(err *ParserError) {
	p.state = parserStateDone
	p.stack = nil
	p.finish(nil, err)
}

func (p *Parser) finish(block *IntegrityBlock, err *ParserError) {
	p.callbackMu.Lock()
	callback := p.callback
	p.callbackMu.Unlock()
	// Not started yet: StartParsing reports the closed parser
	if callback == nil {
		return
	}
	p.once.Do(func() {
		p.source.Close()
		if err != nil {
			p.logger.Debug(
				"integrity block parsing failed",
				"component", "integrityblock",
				"error_type", err.Type.String(),
				"error", err.Message,
			)
		} else {
			p.logger.Debug(
				"integrity block parsed",
				"component", "integrityblock",
				"size", block.Size,
				"signatures", len(block.SignatureStack),
			)
		}
		callback(block, err)
	})
}
