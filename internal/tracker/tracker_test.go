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

package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocatePutGetRemove(t *testing.T) {
	tr := New[string](4)
	assert.True(t, tr.IsEmpty())
	assert.False(t, tr.IsFull())

	idx, ok := tr.Allocate()
	require.True(t, ok)
	tr.Put(idx, "hello")

	v, ok := tr.Get(idx)
	require.True(t, ok)
	assert.Equal(t, "hello", v)
	assert.False(t, tr.IsEmpty())

	got, ok := tr.Remove(idx)
	require.True(t, ok)
	assert.Equal(t, "hello", got)
	assert.True(t, tr.IsEmpty())

	_, ok = tr.Get(idx)
	assert.False(t, ok)
}

func TestAllocateFailsWhenFull(t *testing.T) {
	tr := New[int](2)
	_, ok := tr.Allocate()
	require.True(t, ok)
	_, ok = tr.Allocate()
	require.True(t, ok)
	assert.True(t, tr.IsFull())

	_, ok = tr.Allocate()
	assert.False(t, ok)
}

func TestFreedIndexIsReused(t *testing.T) {
	tr := New[int](2)
	a, _ := tr.Allocate()
	tr.Put(a, 1)
	b, _ := tr.Allocate()
	tr.Put(b, 2)

	tr.Remove(a)
	c, ok := tr.Allocate()
	require.True(t, ok)
	assert.Equal(t, a, c, "freed index should be handed back out (FIFO free list)")
}

func TestOutOfBoundsIndexPanics(t *testing.T) {
	tr := New[int](2)
	assert.Panics(t, func() { tr.Put(5, 1) })
	assert.Panics(t, func() { tr.Get(5) })
}

func TestRemoveTwiceIsNoop(t *testing.T) {
	tr := New[int](2)
	idx, _ := tr.Allocate()
	tr.Put(idx, 42)
	_, ok := tr.Remove(idx)
	require.True(t, ok)
	_, ok = tr.Remove(idx)
	assert.False(t, ok)
}

func TestUserDataRoundTrip(t *testing.T) {
	cases := []struct {
		index  uint32
		opcode uint8
	}{
		{0, 0},
		{1, 22},
		{4294967295, 255},
		{12345, 19},
	}
	for _, c := range cases {
		word := Pack(c.index, c.opcode)
		gotIdx, gotOp := Unpack(word)
		assert.Equal(t, c.index, gotIdx)
		assert.Equal(t, c.opcode, gotOp)
	}
}

func TestUserDataOnlyLowByteOfOpcodeIsSignificant(t *testing.T) {
	// Pack truncates opcode to uint8 at the call site, so this documents
	// that the reserved upper 24 bits of the lower word are always zero.
	word := Pack(7, 22)
	assert.Equal(t, uint64(0), (word>>8)&0xFFFFFF)
}
