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

// Package verifier checks the signatures of a parsed integrity block against the
// unsigned web bundle that follows it.
package verifier

import (
	"context"
	"crypto/sha512"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/blinklabs-io/webbundle/cbor"
	"github.com/blinklabs-io/webbundle/datasource"
	"github.com/blinklabs-io/webbundle/integrityblock"
	"github.com/blinklabs-io/webbundle/signature"
)

const defaultHashChunkSize = 1 << 20

var (
	ErrVerificationFailed  = errors.New("signature verification failed")
	ErrWebBundleIDMismatch = errors.New("web bundle ID mismatch")
	ErrTruncatedBundle     = errors.New("bundle is shorter than its integrity block")
)

// Verdict is the cacheable outcome of verifying one integrity block against one
// unsigned bundle
type Verdict struct {
	cbor.StructAsArray
	Valid       bool
	WebBundleID string
	Message     string
	CheckedAt   int64
}

// VerdictStore remembers verdicts by key. Get reports false when no verdict is
// stored.
type VerdictStore interface {
	Get(key []byte) (Verdict, bool, error)
	Put(key []byte, verdict Verdict) error
}

// Result describes a successful verification
type Result struct {
	WebBundleID        signature.WebBundleID
	UnsignedBundleHash []byte
	VerifiedSignatures int
	SkippedSignatures  int
	Cached             bool
}

type Verifier struct {
	logger        *slog.Logger
	expectedID    *signature.WebBundleID
	store         VerdictStore
	hashChunkSize uint64
}

// VerifierOption is a function that sets an option on the verifier
type VerifierOption func(*Verifier)

// WithLogger specifies the logger to use
func WithLogger(logger *slog.Logger) VerifierOption {
	return func(v *Verifier) {
		v.logger = logger
	}
}

// WithExpectedWebBundleID rejects bundles whose primary signature belongs to a
// different bundle ID
func WithExpectedWebBundleID(id signature.WebBundleID) VerifierOption {
	return func(v *Verifier) {
		v.expectedID = &id
	}
}

// WithVerdictStore caches verdicts so the same bundle is only verified once
func WithVerdictStore(store VerdictStore) VerifierOption {
	return func(v *Verifier) {
		v.store = store
	}
}

// WithHashChunkSize sets the size of the reads used to hash the unsigned bundle
func WithHashChunkSize(size uint64) VerifierOption {
	return func(v *Verifier) {
		v.hashChunkSize = size
	}
}

func New(opts ...VerifierOption) *Verifier {
	v := &Verifier{
		hashChunkSize: defaultHashChunkSize,
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.logger == nil {
		v.logger = slog.Default()
	}
	if v.hashChunkSize == 0 {
		v.hashChunkSize = defaultHashChunkSize
	}
	return v
}

// Verify checks every signature with a known cipher in block against the unsigned
// bundle, which spans from block.Size to the end of source. Entries with an unknown
// cipher are skipped.
func (v *Verifier) Verify(
	ctx context.Context,
	source datasource.DataSource,
	block *integrityblock.IntegrityBlock,
) (*Result, error) {
	if block == nil || len(block.SignatureStack) == 0 {
		return nil, errors.New("integrity block has no signatures")
	}
	bundleHash, err := v.hashUnsignedBundle(ctx, source, block.Size)
	if err != nil {
		return nil, err
	}
	var cacheKey []byte
	if v.store != nil {
		cacheKey, err = verdictKey(block, bundleHash)
		if err != nil {
			return nil, err
		}
		verdict, ok, err := v.store.Get(cacheKey)
		if err != nil {
			v.logger.Warn(
				"failed to read cached verdict",
				"component", "verifier",
				"error", err,
			)
		} else if ok {
			return v.resultFromVerdict(block, bundleHash, verdict)
		}
	}
	result, verifyErr := v.verifySignatures(block, bundleHash)
	if v.store != nil {
		verdict := Verdict{
			Valid:     verifyErr == nil,
			CheckedAt: time.Now().Unix(),
		}
		if verifyErr != nil {
			verdict.Message = verifyErr.Error()
		} else {
			verdict.WebBundleID = result.WebBundleID.String()
		}
		if err := v.store.Put(cacheKey, verdict); err != nil {
			v.logger.Warn(
				"failed to store verdict",
				"component", "verifier",
				"error", err,
			)
		}
	}
	if verifyErr != nil {
		return nil, verifyErr
	}
	if err := v.checkExpectedID(result.WebBundleID); err != nil {
		return nil, err
	}
	return result, nil
}

func (v *Verifier) verifySignatures(
	block *integrityblock.IntegrityBlock,
	bundleHash []byte,
) (*Result, error) {
	webBundleID, err := block.WebBundleID()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVerificationFailed, err)
	}
	result := &Result{
		WebBundleID:        webBundleID,
		UnsignedBundleHash: bundleHash,
	}
	integrityBlockCbor := IntegrityBlockCborForSigning()
	for idx, entry := range block.SignatureStack {
		payload := SignaturePayload(bundleHash, integrityBlockCbor, entry.AttributesCbor)
		info := entry.SignatureInfo
		switch info.Type {
		case integrityblock.SignatureTypeEd25519:
			err = info.Ed25519.PublicKey.Verify(payload, info.Ed25519.Signature)
		case integrityblock.SignatureTypeEcdsaP256SHA256:
			err = info.EcdsaP256SHA256.PublicKey.Verify(
				payload,
				info.EcdsaP256SHA256.Signature,
			)
		default:
			v.logger.Debug(
				"skipping signature with unknown cipher",
				"component", "verifier",
				"index", idx,
			)
			result.SkippedSignatures++
			continue
		}
		if err != nil {
			return nil, fmt.Errorf(
				"%w: signature %d (%s): %w",
				ErrVerificationFailed,
				idx,
				info.Type,
				err,
			)
		}
		result.VerifiedSignatures++
	}
	v.logger.Debug(
		"verified integrity block",
		"component", "verifier",
		"web_bundle_id", webBundleID.String(),
		"verified", result.VerifiedSignatures,
		"skipped", result.SkippedSignatures,
	)
	return result, nil
}

func (v *Verifier) resultFromVerdict(
	block *integrityblock.IntegrityBlock,
	bundleHash []byte,
	verdict Verdict,
) (*Result, error) {
	if !verdict.Valid {
		return nil, fmt.Errorf("%w (cached): %s", ErrVerificationFailed, verdict.Message)
	}
	webBundleID, err := signature.ParseWebBundleID(verdict.WebBundleID)
	if err != nil {
		return nil, fmt.Errorf("cached verdict: %w", err)
	}
	if err := v.checkExpectedID(webBundleID); err != nil {
		return nil, err
	}
	result := &Result{
		WebBundleID:        webBundleID,
		UnsignedBundleHash: bundleHash,
		Cached:             true,
	}
	for _, entry := range block.SignatureStack {
		if entry.SignatureInfo.Type == integrityblock.SignatureTypeUnknown {
			result.SkippedSignatures++
		} else {
			result.VerifiedSignatures++
		}
	}
	return result, nil
}

func (v *Verifier) checkExpectedID(id signature.WebBundleID) error {
	if v.expectedID == nil || v.expectedID.Equal(id) {
		return nil
	}
	return fmt.Errorf(
		"%w: expected %s, got %s",
		ErrWebBundleIDMismatch,
		v.expectedID.String(),
		id.String(),
	)
}

// hashUnsignedBundle returns the SHA-512 digest of everything after the integrity
// block
func (v *Verifier) hashUnsignedBundle(
	ctx context.Context,
	source datasource.DataSource,
	offset uint64,
) ([]byte, error) {
	length, err := source.Length()
	if err != nil {
		return nil, fmt.Errorf("failed to get bundle length: %w", err)
	}
	if length < offset {
		return nil, fmt.Errorf(
			"%w: length %d, integrity block size %d",
			ErrTruncatedBundle,
			length,
			offset,
		)
	}
	hasher := sha512.New()
	for offset < length {
		chunk := min(v.hashChunkSize, length-offset)
		data, err := datasource.ReadFull(ctx, source, offset, chunk)
		if err != nil {
			return nil, fmt.Errorf("failed to read unsigned bundle: %w", err)
		}
		hasher.Write(data)
		offset += chunk
	}
	return hasher.Sum(nil), nil
}

// verdictKey identifies a block and bundle pair
func verdictKey(block *integrityblock.IntegrityBlock, bundleHash []byte) ([]byte, error) {
	blockCbor, err := block.MarshalCBOR()
	if err != nil {
		return nil, err
	}
	hasher := sha512.New()
	hasher.Write(blockCbor)
	hasher.Write(bundleHash)
	return hasher.Sum(nil), nil
}
