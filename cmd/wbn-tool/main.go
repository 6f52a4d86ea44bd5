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
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/blinklabs-io/webbundle/cmd/common"
)

func main() {
	f := common.NewGlobalFlags()
	f.Parse()

	logger := common.NewLogger(f.Debug)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if len(f.Flagset.Args()) == 0 {
		fmt.Printf("You must specify a subcommand (parse, verify, dump or sign)\n")
		os.Exit(1)
	}
	args := f.Flagset.Args()[1:]
	var err error
	switch f.Flagset.Arg(0) {
	case "parse":
		err = checkBundles(ctx, f, logger, args, false)
	case "verify":
		err = checkBundles(ctx, f, logger, args, true)
	case "dump":
		err = dumpBundles(ctx, args)
	case "sign":
		err = signBundle(logger, args)
	default:
		fmt.Printf("Unknown subcommand: %s\n", f.Flagset.Arg(0))
		os.Exit(1)
	}
	if err != nil {
		fmt.Printf("ERROR: %s\n", err)
		os.Exit(1)
	}
}
