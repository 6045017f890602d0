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

package ringio

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lightspeedio/iouringfs/internal/pool"
	"github.com/lightspeedio/iouringfs/internal/uapi"
)

// skipIfUnsupported mirrors uapi's helper of the same name - duplicated
// rather than exported since ringio intentionally doesn't import uapi's
// test-only code.
func skipIfUnsupported(t *testing.T) {
	t.Helper()
	if runtime.GOOS != "linux" {
		t.Skip("io_uring is only supported on Linux")
	}
	ring, err := uapi.NewRing(8)
	if err != nil {
		t.Skipf("io_uring unavailable: %v", err)
	}
	ring.Close()
}

// newTestPool starts a single-worker pool running one Driver, returning the
// pool and its output channel; closing both is registered with t.Cleanup.
func newTestPool(t *testing.T, ringSize uint32) (*pool.Pool[Operation], chan Result) {
	t.Helper()
	ring, err := uapi.NewRing(ringSize)
	require.NoError(t, err)

	out := make(chan Result, 256)
	driver := NewDriver(ring, out)

	p := pool.New[Operation](1, func(h *pool.Handle[Operation]) {
		driver.Run(h)
	})
	t.Cleanup(func() {
		p.Close()
		ring.Close()
	})
	return p, out
}

func collect(t *testing.T, out <-chan Result, n int) []Result {
	t.Helper()
	results := make([]Result, 0, n)
	for i := 0; i < n; i++ {
		select {
		case r := <-out:
			results = append(results, r)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for result %d/%d", i+1, n)
		}
	}
	return results
}

func TestWholeFileRead(t *testing.T) {
	skipIfUnsupported(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "whole.bin")
	want := make([]byte, 4096)
	for i := range want {
		want[i] = byte(i)
	}
	require.NoError(t, os.WriteFile(path, want, 0o644))

	p, out := newTestPool(t, 16)
	p.Push(NewGetRanges(path, []Range{{Start: 0, End: -1}}, []uint64{1}))

	results := collect(t, out, 1)
	require.NoError(t, results[0].Err)
	assert.Equal(t, uint64(1), results[0].Token)
	assert.Equal(t, want, results[0].Chunk.Bytes())
	results[0].Chunk.Release()
}

func TestManyAlignedRanges(t *testing.T) {
	skipIfUnsupported(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "many.bin")
	const fileSize = 64 * 1024
	data := make([]byte, fileSize)
	for i := range data {
		data[i] = byte(i % 251)
	}
	require.NoError(t, os.WriteFile(path, data, 0o644))

	const nRanges = 16
	ranges := make([]Range, nRanges)
	tokens := make([]uint64, nRanges)
	chunk := fileSize / nRanges
	for i := 0; i < nRanges; i++ {
		ranges[i] = Range{Start: int64(i * chunk), End: int64((i + 1) * chunk)}
		tokens[i] = uint64(100 + i)
	}

	p, out := newTestPool(t, 64)
	p.Push(NewGetRanges(path, ranges, tokens))

	results := collect(t, out, nRanges)
	byToken := make(map[uint64]Result, nRanges)
	for _, r := range results {
		byToken[r.Token] = r
	}
	for i := 0; i < nRanges; i++ {
		r, ok := byToken[tokens[i]]
		require.True(t, ok)
		require.NoError(t, r.Err)
		assert.Equal(t, data[ranges[i].Start:ranges[i].End], r.Chunk.Bytes())
		r.Chunk.Release()
	}
}

func TestMissingFileReportsNotExist(t *testing.T) {
	skipIfUnsupported(t)

	p, out := newTestPool(t, 16)
	p.Push(NewGetRanges(filepath.Join(t.TempDir(), "nope.bin"), []Range{{Start: 0, End: 10}}, []uint64{7}))

	results := collect(t, out, 1)
	require.Error(t, results[0].Err)
	assert.True(t, errors.Is(results[0].Err, fs.ErrNotExist))
}

func TestUnalignedSubBlockRange(t *testing.T) {
	skipIfUnsupported(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "unaligned.bin")
	data := make([]byte, 8192)
	for i := range data {
		data[i] = byte(i % 256)
	}
	require.NoError(t, os.WriteFile(path, data, 0o644))

	p, out := newTestPool(t, 16)
	// A range starting and ending mid-sector, unlikely to be 512-aligned.
	p.Push(NewGetRanges(path, []Range{{Start: 100, End: 613}}, []uint64{9}))

	results := collect(t, out, 1)
	require.NoError(t, results[0].Err)
	assert.Equal(t, data[100:613], results[0].Chunk.Bytes())
	results[0].Chunk.Release()
}

func TestConcurrentMultiFile(t *testing.T) {
	skipIfUnsupported(t)

	dir := t.TempDir()
	const nFiles = 4
	paths := make([]string, nFiles)
	contents := make([][]byte, nFiles)
	for i := 0; i < nFiles; i++ {
		paths[i] = filepath.Join(dir, "f"+string(rune('a'+i))+".bin")
		contents[i] = make([]byte, 4096)
		for j := range contents[i] {
			contents[i][j] = byte(i*16 + j%16)
		}
		require.NoError(t, os.WriteFile(paths[i], contents[i], 0o644))
	}

	p, out := newTestPool(t, 64)
	for i := 0; i < nFiles; i++ {
		p.Push(NewGetRanges(paths[i], []Range{{Start: 0, End: -1}}, []uint64{uint64(i)}))
	}

	results := collect(t, out, nFiles)
	byToken := make(map[uint64]Result, nFiles)
	for _, r := range results {
		byToken[r.Token] = r
	}
	for i := 0; i < nFiles; i++ {
		r, ok := byToken[uint64(i)]
		require.True(t, ok)
		require.NoError(t, r.Err)
		assert.Equal(t, contents[i], r.Chunk.Bytes())
		r.Chunk.Release()
	}
}

func TestPoolCloseDrainsCleanly(t *testing.T) {
	skipIfUnsupported(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "drain.bin")
	require.NoError(t, os.WriteFile(path, []byte("drain me"), 0o644))

	p, out := newTestPool(t, 16)
	p.Push(NewGetRanges(path, []Range{{Start: 0, End: -1}}, []uint64{1}))
	results := collect(t, out, 1)
	results[0].Chunk.Release()

	closed := make(chan struct{})
	go func() {
		p.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("pool did not close cleanly - operations still in flight")
	}
}
