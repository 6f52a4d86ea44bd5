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

package common

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"
)

type GlobalFlags struct {
	Flagset *flag.FlagSet
	Debug   bool
	// Field names match pipeline.PipelineConfig so they can be copied across
	ParseWorkers       int
	VerifyWorkers      int
	PrefetchBufferSize int
	MaxPendingBundles  int
	CacheDir           string
	CacheTTL           time.Duration
	ExpectedID         string
	MetricsListen      string
}

func NewGlobalFlags() *GlobalFlags {
	f := &GlobalFlags{
		Flagset: flag.NewFlagSet(os.Args[0], flag.ExitOnError),
	}
	f.Flagset.BoolVar(&f.Debug, "debug", false, "enable debug logging")
	f.Flagset.IntVar(
		&f.ParseWorkers,
		"workers",
		0,
		"number of parse workers (defaults to half the CPUs, at least 2)",
	)
	f.Flagset.IntVar(
		&f.VerifyWorkers,
		"verify-workers",
		0,
		"number of verify workers (defaults to one per CPU)",
	)
	f.Flagset.IntVar(
		&f.PrefetchBufferSize,
		"buffer",
		0,
		"size of the buffers between pipeline stages",
	)
	f.Flagset.IntVar(
		&f.MaxPendingBundles,
		"max-pending",
		0,
		"maximum number of out-of-order bundles held before reporting",
	)
	f.Flagset.StringVar(
		&f.CacheDir,
		"cache-dir",
		"",
		"directory of the verdict cache (disabled if empty)",
	)
	f.Flagset.DurationVar(
		&f.CacheTTL,
		"cache-ttl",
		0,
		"expire cached verdicts after this duration (0 keeps them forever)",
	)
	f.Flagset.StringVar(
		&f.ExpectedID,
		"expected-id",
		"",
		"reject bundles that do not belong to this signed web bundle ID",
	)
	f.Flagset.StringVar(
		&f.MetricsListen,
		"metrics-listen",
		"",
		"serve Prometheus metrics on this address, for example :9090",
	)
	return f
}

func (f *GlobalFlags) Parse() {
	if err := f.Flagset.Parse(os.Args[1:]); err != nil {
		fmt.Printf("failed to parse command args: %s\n", err)
		os.Exit(1)
	}
	if f.ParseWorkers < 0 || f.VerifyWorkers < 0 {
		fmt.Printf("Worker counts must not be negative\n")
		os.Exit(1)
	}
}

// NewLogger returns a text logger on stderr, at debug level if requested
func NewLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}),
	)
}
