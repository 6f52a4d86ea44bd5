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
	"errors"
	"fmt"
	"io"
)

// ErrorType classifies a ParserError
type ErrorType uint8

const (
	// ErrorTypeParserInternal is used when the data source failed or went away, or the
	// parser was closed before it completed
	ErrorTypeParserInternal ErrorType = iota
	// ErrorTypeFormat is used for every structural violation, including truncated input
	ErrorTypeFormat
	// ErrorTypeVersion is used when the version bytes do not name a supported version
	ErrorTypeVersion
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeParserInternal:
		return "ParserInternalError"
	case ErrorTypeFormat:
		return "FormatError"
	case ErrorTypeVersion:
		return "VersionError"
	default:
		return fmt.Sprintf("ErrorType(%d)", uint8(t))
	}
}

// Sentinel errors matching a ParserError of the corresponding type with errors.Is
var (
	ErrParserInternal = errors.New("integrity block parser internal error")
	ErrFormat         = errors.New("integrity block format error")
	ErrVersion        = errors.New("integrity block version error")
)

// ParserError is the terminal error of a parse
type ParserError struct {
	Type    ErrorType
	Message string
	// Cause is the underlying error, if any, such as a data source failure
	Cause error
}

func (e *ParserError) Error() string {
	return e.Type.String() + ": " + e.Message
}

func (e *ParserError) Unwrap() error {
	return e.Cause
}

func (e *ParserError) Is(target error) bool {
	switch e.Type {
	case ErrorTypeParserInternal:
		return target == ErrParserInternal
	case ErrorTypeFormat:
		return target == ErrFormat
	case ErrorTypeVersion:
		return target == ErrVersion
	}
	return false
}

const (
	errMsgReadMagicBytes      = "Error reading the integrity block array structure and magic bytes."
	errMsgWrongMagicBytes     = "Wrong array size or magic bytes."
	errMsgSignatureStackSize  = "Cannot parse the size of the signature stack."
	errMsgEmptySignatureStack = "The signature stack must contain at least one signature."
	errMsgUnknownFirstCipher  = "Unknown cipher type of the first signature."
	errMsgEntryArraySize      = "Cannot parse the size of the signature stack entry."
	errMsgEntryElementCount   = "Each signature stack entry must contain exactly two elements (attributes and signature)."
	errMsgSignatureSize       = "Cannot parse the size of the signature."
	errMsgAttributesMapSize   = "Cannot parse attributes map size."
	errMsgAttributeNameSize   = "Cannot parse attribute name size."
	errMsgAttributeNameUTF8   = "Attribute name is not valid UTF-8."
	errMsgAttributeValueSize  = "Cannot parse attribute value size."
	errMsgParserClosed        = "The integrity block parser was closed before parsing completed."
)

func newFormatError(format string, args ...any) *ParserError {
	return &ParserError{
		Type:    ErrorTypeFormat,
		Message: fmt.Sprintf(format, args...),
	}
}

func newVersionError(format string, args ...any) *ParserError {
	return &ParserError{
		Type:    ErrorTypeVersion,
		Message: fmt.Sprintf(format, args...),
	}
}

func newInternalError(cause error, format string, args ...any) *ParserError {
	return &ParserError{
		Type:    ErrorTypeParserInternal,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// readError maps a data source failure while reading the named item. Running out of
// data means the input is truncated, which is a format error. Anything else means
// the source could not deliver.
func readError(err error, what string) *ParserError {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &ParserError{
			Type:    ErrorTypeFormat,
			Message: "Error reading " + what + ".",
			Cause:   err,
		}
	}
	return newInternalError(err, "Error reading %s: %s", what, err)
}

// shortReadError is used when the source returned fewer bytes than requested for a
// value of known length
func shortReadError(what string) *ParserError {
	return &ParserError{
		Type:    ErrorTypeFormat,
		Message: "Error reading " + what + ".",
		Cause:   io.ErrUnexpectedEOF,
	}
}
