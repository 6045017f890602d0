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

import "github.com/lightspeedio/iouringfs/container/ring"

// freeList is a fixed-capacity FIFO of free slot indices, backed by a
// ring.Ring so the index storage is one dense, GC-friendly allocation
// instead of a resizable slice. The head/tail cursors turn the Ring's
// random-access Get into push/pop-front queue semantics.
type freeList struct {
	r          *ring.Ring[uint32]
	head, tail int
	count      int
}

func newFreeList(n int) *freeList {
	vv := make([]uint32, n)
	for i := range vv {
		vv[i] = uint32(i)
	}
	return &freeList{r: ring.NewFromSlice(vv), count: n}
}

func (f *freeList) pop() (uint32, bool) {
	if f.count == 0 {
		return 0, false
	}
	item, _ := f.r.Get(f.head)
	v := item.Value()
	f.head = (f.head + 1) % f.r.Len()
	f.count--
	return v, true
}

func (f *freeList) push(v uint32) {
	item, _ := f.r.Get(f.tail)
	*item.Pointer() = v
	f.tail = (f.tail + 1) % f.r.Len()
	f.count++
}

func (f *freeList) len() int { return f.count }
