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

package main

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/blinklabs-io/webbundle/signature"
	"github.com/blinklabs-io/webbundle/verifier"
)

func signBundle(logger *slog.Logger, args []string) error {
	flags := flag.NewFlagSet("sign", flag.ExitOnError)
	keyFile := flags.String("key", "", "file holding a hex encoded 32-byte Ed25519 seed")
	outFile := flags.String("out", "", "path of the signed bundle to write")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *keyFile == "" || *outFile == "" || flags.NArg() != 1 {
		return errors.New("usage: sign -key <seed file> -out <signed bundle> <unsigned bundle>")
	}
	seedHex, err := os.ReadFile(*keyFile)
	if err != nil {
		return err
	}
	seed, err := hex.DecodeString(strings.TrimSpace(string(seedHex)))
	if err != nil {
		return fmt.Errorf("failed to decode key: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return fmt.Errorf("key must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	privateKey := ed25519.NewKeyFromSeed(seed)
	signer, err := verifier.NewEd25519Signer(privateKey)
	if err != nil {
		return err
	}
	unsigned, err := os.ReadFile(flags.Arg(0))
	if err != nil {
		return err
	}
	signed, err := verifier.SignBundle(unsigned, signer)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*outFile, signed, 0o644); err != nil {
		return err
	}
	publicKey, err := signature.NewEd25519PublicKey(privateKey.Public().(ed25519.PublicKey))
	if err != nil {
		return err
	}
	id, err := signature.NewWebBundleID(publicKey)
	if err != nil {
		return err
	}
	logger.Info(
		"signed bundle",
		"component", "wbn-tool",
		"out", *outFile,
		"web_bundle_id", id.String(),
	)
	return nil
}
