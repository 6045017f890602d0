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

// Package buffer provides aligned, refcounted memory regions suitable as
// O_DIRECT read targets: one independently mmap'd region per buffer
// request, both base address and capacity a multiple of the requested
// alignment.
package buffer

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// region is the single heap allocation backing one buffer request. It is
// shared (refcounted) across every Mutable/Immutable handle carved out of
// it; the last handle to release its reference unmaps the memory.
type region struct {
	raw   []byte // the full, over-sized mmap'd mapping - only used by Munmap
	buf   []byte // the aligned, exactly-capacity window into raw
	align int
	refs  int32
}

// newRegion mmaps capacity+align bytes anonymously and carves out an
// aligned, exactly-capacity window. mmap always returns page-aligned
// memory; over-allocating by align and trimming the pointer (not the
// mapping - partial munmap requires page-aligned boundaries, which a
// slop of less than a page can't guarantee) gives us an arbitrary
// power-of-two alignment without relying on page size.
func newRegion(capacity, align int) (*region, error) {
	if capacity < 0 {
		return nil, fmt.Errorf("buffer: negative capacity %d", capacity)
	}
	if align <= 0 || align&(align-1) != 0 {
		return nil, fmt.Errorf("buffer: alignment %d is not a positive power of two", align)
	}

	raw, err := unix.Mmap(-1, 0, capacity+align,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("buffer: mmap %d bytes: %w", capacity+align, err)
	}

	base := uintptr(0)
	if len(raw) > 0 {
		base = uintptr(unsafe.Pointer(&raw[0]))
	}
	alignedBase := (base + uintptr(align-1)) &^ uintptr(align-1)
	headSlack := int(alignedBase - base)

	return &region{
		raw:   raw,
		buf:   raw[headSlack : headSlack+capacity],
		align: align,
		refs:  1,
	}, nil
}

func (r *region) addRef() {
	atomic.AddInt32(&r.refs, 1)
}

// release drops one reference, munmapping the backing mapping when the
// count reaches zero. Returns true if this call did the munmap.
func (r *region) release() (bool, error) {
	if atomic.AddInt32(&r.refs, -1) > 0 {
		return false, nil
	}
	return true, unix.Munmap(r.raw)
}

// refCount is exposed for tests and for Freeze's sole-owner check.
func (r *region) refCount() int32 {
	return atomic.LoadInt32(&r.refs)
}
