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

package cache_test

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/blinklabs-io/webbundle/cache"
	"github.com/blinklabs-io/webbundle/verifier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestVerdictCacheInMemory(t *testing.T) {
	c, err := cache.Open(cache.Config{InMemory: true, Logger: discardLogger()})
	require.NoError(t, err)
	defer func() {
		require.NoError(t, c.Close())
	}()

	_, found, err := c.Get([]byte("missing"))
	require.NoError(t, err)
	assert.False(t, found)

	verdict := verifier.Verdict{
		Valid:       true,
		WebBundleID: "example",
		CheckedAt:   time.Now().Unix(),
	}
	require.NoError(t, c.Put([]byte("key"), verdict))
	got, found, err := c.Get([]byte("key"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, verdict, got)

	failed := verifier.Verdict{Message: "bad signature"}
	require.NoError(t, c.Put([]byte("key"), failed))
	got, found, err = c.Get([]byte("key"))
	require.NoError(t, err)
	require.True(t, found)
	assert.False(t, got.Valid)
	assert.Equal(t, "bad signature", got.Message)
}

func TestVerdictCachePersists(t *testing.T) {
	dir := t.TempDir()
	c, err := cache.Open(cache.Config{Dir: dir, Logger: discardLogger()})
	require.NoError(t, err)
	require.NoError(t, c.Put([]byte{0x01, 0x02}, verifier.Verdict{Valid: true, WebBundleID: "id"}))
	require.NoError(t, c.Close())

	c, err = cache.Open(cache.Config{Dir: dir, Logger: discardLogger()})
	require.NoError(t, err)
	defer func() {
		require.NoError(t, c.Close())
	}()
	got, found, err := c.Get([]byte{0x01, 0x02})
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "id", got.WebBundleID)
}

func TestVerdictCacheRequiresDir(t *testing.T) {
	_, err := cache.Open(cache.Config{})
	require.Error(t, err)
}
