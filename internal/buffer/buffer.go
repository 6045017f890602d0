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

package buffer

import (
	"fmt"
)

// Mutable is an exclusive, writable view [lo, hi) over a region. It is the
// handle a Read SQE's Addr/Len are built from. Grounded on
// lsio_aligned_bytes::AlignedBytesMut.
type Mutable struct {
	r      *region
	lo, hi int
}

// NewMutable allocates a fresh region aligned to align, rounding length up
// to the next multiple of align - O_DIRECT reads need their length aligned
// just as much as their base address and file offset do. Len() on the
// returned handle reports the rounded-up size, which is also the length a
// Read SQE built from it requests.
func NewMutable(length, align int) (*Mutable, error) {
	rounded := ((length + align - 1) / align) * align
	r, err := newRegion(rounded, align)
	if err != nil {
		return nil, err
	}
	return &Mutable{r: r, lo: 0, hi: rounded}, nil
}

// Len is the number of bytes in this handle's view.
func (m *Mutable) Len() int { return m.hi - m.lo }

// Bytes exposes the view for filling by the caller (e.g. a read syscall's
// destination, or copying in test fixtures). The slice is only valid until
// the handle is split, frozen, or released.
func (m *Mutable) Bytes() []byte {
	return m.r.buf[m.lo:m.hi]
}

// Align reports the region's alignment.
func (m *Mutable) Align() int { return m.r.align }

// SplitTo splits off [lo, at) into a new handle, narrowing this handle to
// [at, hi). at must be a multiple of the region's alignment and strictly
// within (lo, hi]; violating either is a caller bug, reported as an error
// rather than a panic so alignment-padding trims can be attempted
// speculatively.
func (m *Mutable) SplitTo(at int) (*Mutable, error) {
	if at <= m.lo || at > m.hi {
		return nil, fmt.Errorf("buffer: split point %d out of range (%d, %d]", at, m.lo, m.hi)
	}
	if at%m.r.align != 0 {
		return nil, fmt.Errorf("buffer: split point %d is not a multiple of alignment %d", at, m.r.align)
	}
	m.r.addRef()
	head := &Mutable{r: m.r, lo: m.lo, hi: at}
	m.lo = at
	return head, nil
}

// Freeze converts this handle into an Immutable view over the FULL
// underlying region - not the possibly-narrowed [lo,hi) this handle held -
// succeeding only if no other handle still references the region. This
// mirrors AlignedBytesMut::freeze_and_grow: the caller must re-narrow via
// Slice after freezing.
func (m *Mutable) Freeze() (*Immutable, error) {
	if m.r.refCount() != 1 {
		return nil, fmt.Errorf("buffer: cannot freeze, %d other handle(s) still reference this region", m.r.refCount()-1)
	}
	return &Immutable{r: m.r, lo: 0, hi: len(m.r.buf)}, nil
}

// Release drops this handle's reference to the region without freezing,
// e.g. for discarding an alignment-padding prefix produced by SplitTo.
func (m *Mutable) Release() error {
	_, err := m.r.release()
	return err
}

// Immutable is a shareable, read-only view [lo, hi) over a region.
// Grounded on lsio_aligned_bytes::AlignedBytes.
type Immutable struct {
	r      *region
	lo, hi int
}

// Bytes returns the bytes in this handle's view.
func (b *Immutable) Bytes() []byte {
	return b.r.buf[b.lo:b.hi]
}

// Len is the number of bytes in this handle's view.
func (b *Immutable) Len() int { return b.hi - b.lo }

// Slice narrows the view to an absolute [lo, hi) range against the full
// underlying region and bumps the refcount so the narrowed handle can be
// released independently of its parent. Panics if the range is empty or
// runs past the region's capacity - a caller bug, not a runtime condition.
func (b *Immutable) Slice(lo, hi int) *Immutable {
	if lo >= hi {
		panic(fmt.Sprintf("buffer: empty slice range [%d, %d)", lo, hi))
	}
	if hi > len(b.r.buf) {
		panic(fmt.Sprintf("buffer: slice end %d exceeds region capacity %d", hi, len(b.r.buf)))
	}
	b.r.addRef()
	return &Immutable{r: b.r, lo: lo, hi: hi}
}

// Release drops this handle's reference to the region, unmapping the
// backing memory if it was the last one.
func (b *Immutable) Release() error {
	_, err := b.r.release()
	return err
}
