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

// Package cbor provides CBOR encoding/decoding utilities for signed web bundles.
//
// Whole-item encoding and decoding wraps github.com/fxamacker/cbor/v2 with cached
// modes (deterministic key ordering on encode, duplicate map keys rejected on decode).
//
// Incremental parsing does not go through the upstream decoder. Integrity blocks are
// read in small chunks from an asynchronous source, so callers decode one item header
// at a time with InputReader and then request exactly the announced number of bytes.
//
// # Header Gotchas
//
//  1. Only definite-length items are valid; indefinite length (additional info 31)
//     and reserved values (28-30) are rejected.
//  2. Non-minimal argument encodings are accepted. Signatures cover the exact bytes,
//     so never re-encode a parsed item to obtain its "original" bytes.
//  3. A header is at most MaxHeaderSize bytes; requesting that many bytes is always
//     enough to decode any header.
package cbor
