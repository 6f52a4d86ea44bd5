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

// Package cache persists verification verdicts in a badger database so that a bundle
// seen before is not verified again.
package cache

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/blinklabs-io/webbundle/cbor"
	"github.com/blinklabs-io/webbundle/verifier"
	"github.com/dgraph-io/badger/v4"
)

const verdictKeyPrefix = "verdict:"

type Config struct {
	// Dir is the database directory. It is ignored when InMemory is set.
	Dir      string
	InMemory bool
	// TTL expires verdicts after the given duration. Zero keeps them forever.
	TTL    time.Duration
	Logger *slog.Logger
}

// VerdictCache implements verifier.VerdictStore
type VerdictCache struct {
	db     *badger.DB
	ttl    time.Duration
	logger *slog.Logger
}

var _ verifier.VerdictStore = (*VerdictCache)(nil)

func Open(cfg Config) (*VerdictCache, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Dir == "" {
			return nil, errors.New("cache directory must be set")
		}
		opts = badger.DefaultOptions(cfg.Dir)
	}
	opts = opts.WithLogger(badgerLogger{logger: logger})
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open verdict cache: %w", err)
	}
	logger.Debug(
		"opened verdict cache",
		"component", "cache",
		"dir", cfg.Dir,
		"in_memory", cfg.InMemory,
	)
	return &VerdictCache{
		db:     db,
		ttl:    cfg.TTL,
		logger: logger,
	}, nil
}

func (c *VerdictCache) Get(key []byte) (verifier.Verdict, bool, error) {
	var verdict verifier.Verdict
	found := false
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(verdictKey(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		return item.Value(func(val []byte) error {
			if _, err := cbor.Decode(val, &verdict); err != nil {
				return fmt.Errorf("failed to decode verdict: %w", err)
			}
			found = true
			return nil
		})
	})
	if err != nil {
		return verifier.Verdict{}, false, err
	}
	return verdict, found, nil
}

func (c *VerdictCache) Put(key []byte, verdict verifier.Verdict) error {
	val, err := cbor.Encode(&verdict)
	if err != nil {
		return fmt.Errorf("failed to encode verdict: %w", err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(verdictKey(key), val)
		if c.ttl > 0 {
			entry = entry.WithTTL(c.ttl)
		}
		return txn.SetEntry(entry)
	})
}

func (c *VerdictCache) Close() error {
	return c.db.Close()
}

func verdictKey(key []byte) []byte {
	ret := make([]byte, 0, len(verdictKeyPrefix)+len(key))
	ret = append(ret, verdictKeyPrefix...)
	return append(ret, key...)
}

// badgerLogger adapts badger's logging to slog. Badger's info messages are routine
// housekeeping and are logged at debug level.
type badgerLogger struct {
	logger *slog.Logger
}

func (l badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(badgerMessage(format, args...), "component", "cache")
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(badgerMessage(format, args...), "component", "cache")
}

func (l badgerLogger) Infof(format string, args ...any) {
	l.logger.Debug(badgerMessage(format, args...), "component", "cache")
}

func (l badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(badgerMessage(format, args...), "component", "cache")
}

func badgerMessage(format string, args ...any) string {
	return strings.TrimSpace(fmt.Sprintf(format, args...))
}
