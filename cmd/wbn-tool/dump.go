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
	"context"
	"errors"
	"fmt"

	"github.com/blinklabs-io/webbundle/cbor"
	"github.com/blinklabs-io/webbundle/datasource"
	"github.com/blinklabs-io/webbundle/integrityblock"
)

func dumpBundles(ctx context.Context, files []string) error {
	if len(files) == 0 {
		return errors.New("no bundle files specified")
	}
	for _, name := range files {
		if err := dumpBundle(ctx, name); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func dumpBundle(ctx context.Context, name string) error {
	source, err := openBundle(name)
	if err != nil {
		return err
	}
	defer source.Close()
	block, err := integrityblock.Parse(ctx, source)
	if err != nil {
		return err
	}
	raw, err := datasource.ReadFull(ctx, source, 0, block.Size)
	if err != nil {
		return err
	}
	dump, err := cbor.DumpCbor(raw)
	if err != nil {
		return err
	}
	fmt.Printf("%s: integrity block of %d bytes\n%s", name, block.Size, dump)
	for idx, entry := range block.SignatureStack {
		fmt.Printf(
			"signature %d: type=%s attributes=%d signature=%d bytes\n",
			idx,
			entry.SignatureInfo.Type,
			len(entry.Attributes),
			len(entry.SignatureInfo.SignatureBytes()),
		)
	}
	if id, err := block.WebBundleID(); err == nil {
		fmt.Printf("web bundle ID: %s\n", id)
	}
	return nil
}
