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
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blinklabs-io/webbundle/cache"
	"github.com/blinklabs-io/webbundle/cmd/common"
	"github.com/blinklabs-io/webbundle/datasource"
	"github.com/blinklabs-io/webbundle/pipeline"
	"github.com/blinklabs-io/webbundle/signature"
	"github.com/blinklabs-io/webbundle/verifier"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var errBundlesRejected = errors.New("one or more bundles were rejected")

// checkBundles runs every file through the bundle pipeline and prints one line per
// bundle, in the order given
func checkBundles(
	ctx context.Context,
	f *common.GlobalFlags,
	logger *slog.Logger,
	files []string,
	verify bool,
) error {
	if len(files) == 0 {
		return errors.New("no bundle files specified")
	}
	cfg, err := f.PipelineConfig()
	if err != nil {
		return err
	}
	var rejected atomic.Uint64
	cfg.Logger = logger
	cfg.ReportFunc = func(item *pipeline.BundleItem) error {
		if !printReport(item) {
			rejected.Add(1)
		}
		return nil
	}
	opts := []pipeline.PipelineOption{pipeline.WithConfig(cfg)}
	if verify {
		v, closeCache, err := newVerifier(f, logger)
		if err != nil {
			return err
		}
		defer closeCache()
		opts = append(opts, pipeline.WithVerifier(v))
	} else {
		opts = append(opts, pipeline.WithVerifyWorkers(0))
	}

	sources := make([]*datasource.ReaderAtSource, 0, len(files))
	names := make([]string, 0, len(files))
	defer func() {
		for _, source := range sources {
			_ = source.Close()
		}
	}()
	for _, name := range files {
		source, err := openBundle(name)
		if err != nil {
			fmt.Printf("%s: ERROR: %s\n", name, err)
			rejected.Add(1)
			continue
		}
		sources = append(sources, source)
		names = append(names, name)
	}

	p := pipeline.NewBundlePipeline(opts...)
	if err := p.Start(ctx); err != nil {
		return fmt.Errorf("failed to start pipeline: %w", err)
	}
	if f.MetricsListen != "" {
		stopMetrics, err := serveMetrics(f.MetricsListen, p, logger)
		if err != nil {
			_ = p.Stop()
			return err
		}
		defer stopMetrics()
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for err := range p.Errors() {
			logger.Debug("pipeline error", "component", "wbn-tool", "error", err)
		}
	}()
	go func() {
		defer wg.Done()
		for idx, source := range sources {
			if err := p.Submit(ctx, names[idx], source); err != nil {
				logger.Error(
					"failed to submit bundle",
					"component", "wbn-tool",
					"bundle", names[idx],
					"error", err,
				)
				return
			}
		}
	}()

	received := 0
receiveLoop:
	for received < len(sources) {
		select {
		case _, ok := <-p.Results():
			if !ok {
				break receiveLoop
			}
			received++
		case <-ctx.Done():
			break receiveLoop
		}
	}
	if err := p.Stop(); err != nil {
		return err
	}
	wg.Wait()

	stats := p.Stats()
	logger.Debug(
		"finished",
		"component", "wbn-tool",
		"parsed", stats.BundlesParsed,
		"verified", stats.BundlesVerified,
		"parse_time", stats.ParseTime,
		"verify_time", stats.VerifyTime,
	)
	if received < len(sources) {
		return fmt.Errorf("interrupted after %d of %d bundles", received, len(sources))
	}
	if rejected.Load() > 0 {
		return fmt.Errorf("%w: %d of %d", errBundlesRejected, rejected.Load(), len(files))
	}
	return nil
}

// printReport prints the outcome for a bundle and reports whether it was accepted
func printReport(item *pipeline.BundleItem) bool {
	if err := item.Err(); err != nil {
		errType := "VerificationError"
		if parseErrType, ok := pipeline.ParseErrorType(err); ok {
			errType = parseErrType.String()
		}
		fmt.Printf("%s: REJECTED (%s): %s\n", item.Name(), errType, err)
		return false
	}
	block := item.Block()
	if result := item.Result(); result != nil {
		fmt.Printf(
			"%s: VERIFIED id=%s signatures=%d skipped=%d cached=%t\n",
			item.Name(),
			result.WebBundleID,
			result.VerifiedSignatures,
			result.SkippedSignatures,
			result.Cached,
		)
		return true
	}
	id, err := block.WebBundleID()
	if err != nil {
		fmt.Printf("%s: REJECTED: %s\n", item.Name(), err)
		return false
	}
	fmt.Printf(
		"%s: OK id=%s size=%d signatures=%d\n",
		item.Name(),
		id,
		block.Size,
		len(block.SignatureStack),
	)
	return true
}

func newVerifier(
	f *common.GlobalFlags,
	logger *slog.Logger,
) (*verifier.Verifier, func(), error) {
	opts := []verifier.VerifierOption{
		verifier.WithLogger(logger),
	}
	if f.ExpectedID != "" {
		id, err := signature.ParseWebBundleID(f.ExpectedID)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid -expected-id: %w", err)
		}
		opts = append(opts, verifier.WithExpectedWebBundleID(id))
	}
	closeCache := func() {}
	if f.CacheDir != "" {
		verdicts, err := cache.Open(cache.Config{
			Dir:    f.CacheDir,
			TTL:    f.CacheTTL,
			Logger: logger,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open verdict cache: %w", err)
		}
		opts = append(opts, verifier.WithVerdictStore(verdicts))
		closeCache = func() {
			if err := verdicts.Close(); err != nil {
				logger.Warn(
					"failed to close verdict cache",
					"component", "wbn-tool",
					"error", err,
				)
			}
		}
	}
	return verifier.New(opts...), closeCache, nil
}

// serveMetrics exposes the pipeline metrics over HTTP until the returned function
// is called
func serveMetrics(
	address string,
	p *pipeline.BundlePipeline,
	logger *slog.Logger,
) (func(), error) {
	registry := prometheus.NewRegistry()
	if err := registry.Register(pipeline.NewPrometheusCollector(p)); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "component", "wbn-tool", "error", err)
		}
	}()
	logger.Info("serving metrics", "component", "wbn-tool", "address", listener.Addr().String())
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}, nil
}

func openBundle(name string) (*datasource.ReaderAtSource, error) {
	file, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	return datasource.NewReaderAtSource(
		file,
		uint64(info.Size()),
		datasource.WithCloser(file),
	), nil
}
