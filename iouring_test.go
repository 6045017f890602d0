/*
 * Copyright 2025 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package iouringfs

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipIfUnsupported(t *testing.T) {
	t.Helper()
	if runtime.GOOS != "linux" {
		t.Skip("io_uring is only supported on Linux")
	}
	e, err := New(1, nil)
	if err != nil {
		t.Skipf("io_uring unavailable: %v", err)
	}
	e.Close()
}

func TestEngineGetRangesEndToEnd(t *testing.T) {
	skipIfUnsupported(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")
	want := make([]byte, 16*1024)
	for i := range want {
		want[i] = byte(i)
	}
	require.NoError(t, os.WriteFile(path, want, 0o644))

	e, err := New(4, nil)
	require.NoError(t, err)
	defer e.Close()

	ranges := []Range{
		{Start: 0, End: 512},
		{Start: 1000, End: 3000},
		{Start: -4096, End: -1},
	}
	tokens := []uint64{1, 2, 3}
	require.NoError(t, e.GetRanges(path, ranges, tokens))

	got := make(map[uint64]Result, len(ranges))
	for i := 0; i < len(ranges); i++ {
		select {
		case r := <-e.Completion():
			got[r.Token] = r
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for result %d/%d", i+1, len(ranges))
		}
	}

	for i, rg := range ranges {
		r, ok := got[tokens[i]]
		require.True(t, ok)
		require.NoError(t, r.Err)
		start, end := rg.Start, rg.End
		if start < 0 {
			start += int64(len(want))
		}
		if end < 0 {
			end += int64(len(want)) + 1
		}
		assert.Equal(t, want[start:end], r.Chunk.Bytes())
		r.Chunk.Release()
	}
}

func TestEngineGetRangesReportsErrNotFound(t *testing.T) {
	skipIfUnsupported(t)

	e, err := New(1, nil)
	require.NoError(t, err)
	defer e.Close()

	require.NoError(t, e.GetRanges(filepath.Join(t.TempDir(), "missing.bin"),
		[]Range{{Start: 0, End: 1}}, []uint64{1}))

	select {
	case r := <-e.Completion():
		require.Error(t, r.Err)
		var opErr *OpError
		require.ErrorAs(t, r.Err, &opErr)
		assert.True(t, errors.Is(r.Err, ErrNotFound))
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for result")
	}
}

func TestEngineCloseReturnsWhenIdle(t *testing.T) {
	skipIfUnsupported(t)

	e, err := New(2, nil)
	require.NoError(t, err)

	closed := make(chan struct{})
	go func() {
		e.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return")
	}
}
