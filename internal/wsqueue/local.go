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

// Package wsqueue implements the work-stealing deque pair used by the
// worker pool: a single-owner Local queue that peers can steal from, and a
// multi-producer Injector that freshly-submitted tasks land on. Grounded on the Chase-Lev deque sketch in
// _examples/other_examples/a05db883_ha1tch-ual__worksteal.go.go, extended
// with dynamic buffer growth (that sketch's fixed-capacity array can't
// absorb an unbounded fan-out, e.g. GetRanges spawning hundreds of
// GetRange children at once) and with the injector/batch-steal shape from
// lsio_threadpool's use of crossbeam-deque.
package wsqueue

import (
	"math/bits"
	"sync/atomic"
)

// StealResult is the three-way outcome of a steal attempt, mirroring
// crossbeam-deque's Steal<T>: a concurrent Local.Pop may cause a steal to
// lose a race, which is reported as Retry (try again) rather than Empty
// (nothing there) so callers can tell the two apart.
type StealResult[T any] struct {
	kind  stealKind
	value T
}

type stealKind int

const (
	stealEmpty stealKind = iota
	stealRetry
	stealSuccess
)

func Empty[T any]() StealResult[T]   { return StealResult[T]{kind: stealEmpty} }
func Retry[T any]() StealResult[T]   { return StealResult[T]{kind: stealRetry} }
func Success[T any](v T) StealResult[T] {
	return StealResult[T]{kind: stealSuccess, value: v}
}

func (r StealResult[T]) IsEmpty() bool   { return r.kind == stealEmpty }
func (r StealResult[T]) IsRetry() bool   { return r.kind == stealRetry }
func (r StealResult[T]) IsSuccess() bool { return r.kind == stealSuccess }
func (r StealResult[T]) Value() T        { return r.value }

type ringBuf[T any] struct {
	mask int64
	data []T
}

func newRingBuf[T any](capLog2 uint) *ringBuf[T] {
	n := int64(1) << capLog2
	return &ringBuf[T]{mask: n - 1, data: make([]T, n)}
}

func (b *ringBuf[T]) cap() int64 { return int64(len(b.data)) }

func (b *ringBuf[T]) get(i int64) T    { return b.data[i&b.mask] }
func (b *ringBuf[T]) put(i int64, v T) { b.data[i&b.mask] = v }

// grow copies the live range [top, bottom) into a buffer twice the size.
func (b *ringBuf[T]) grow(bottom, top int64) *ringBuf[T] {
	next := newRingBuf[T](uint(bits.Len64(uint64(len(b.data)))))
	for i := top; i < bottom; i++ {
		next.put(i, b.get(i))
	}
	return next
}

const localInitialCapLog2 = 6 // 64 slots to start; doubles on overflow.

// Local is one worker's private end of a Chase-Lev deque: the owner
// Push/Pops from the bottom, peers Steal from the top via a Stealer handle.
// Not safe for concurrent Push/Pop from more than one goroutine - only
// Steal is safe to call concurrently with the owner.
type Local[T any] struct {
	top    int64 // atomically CAS'd by stealers and the owner's Pop
	bottom int64 // published atomically so stealers can see it; only the owner writes it
	buf    atomic.Pointer[ringBuf[T]]
}

func NewLocal[T any]() *Local[T] {
	l := &Local[T]{}
	l.buf.Store(newRingBuf[T](localInitialCapLog2))
	return l
}

// Push adds a task to the bottom of the deque, growing the backing buffer
// if it's full. Owner-only.
func (l *Local[T]) Push(v T) {
	b := atomic.LoadInt64(&l.bottom)
	t := atomic.LoadInt64(&l.top)
	buf := l.buf.Load()

	if b-t >= buf.cap() {
		buf = buf.grow(b, t)
		l.buf.Store(buf)
	}
	buf.put(b, v)
	atomic.StoreInt64(&l.bottom, b+1)
}

// Pop removes and returns the task at the bottom of the deque, racing
// against concurrent Stealers for the last remaining element. Owner-only.
func (l *Local[T]) Pop() (T, bool) {
	var zero T
	b := atomic.LoadInt64(&l.bottom) - 1
	buf := l.buf.Load()
	atomic.StoreInt64(&l.bottom, b)
	t := atomic.LoadInt64(&l.top)

	if t > b {
		// Deque was already empty; restore bottom.
		atomic.StoreInt64(&l.bottom, b+1)
		return zero, false
	}

	v := buf.get(b)
	if t == b {
		// Last element: race a Stealer for it via CAS on top.
		if !atomic.CompareAndSwapInt64(&l.top, t, t+1) {
			atomic.StoreInt64(&l.bottom, b+1)
			return zero, false
		}
		atomic.StoreInt64(&l.bottom, b+1)
		return v, true
	}
	return v, true
}

// Len reports the approximate number of tasks currently queued.
func (l *Local[T]) Len() int {
	b := atomic.LoadInt64(&l.bottom)
	t := atomic.LoadInt64(&l.top)
	if d := b - t; d > 0 {
		return int(d)
	}
	return 0
}

// Stealer returns a handle peers use to steal from this deque. Safe to
// share across any number of goroutines.
func (l *Local[T]) Stealer() *Stealer[T] {
	return &Stealer[T]{l: l}
}

// Stealer lets a peer worker take one task from the top of someone else's
// Local deque.
type Stealer[T any] struct {
	l *Local[T]
}

// Steal attempts to take one task from the top of the deque.
func (s *Stealer[T]) Steal() StealResult[T] {
	var zero T
	t := atomic.LoadInt64(&s.l.top)
	b := atomic.LoadInt64(&s.l.bottom)
	if t >= b {
		return Empty[T]()
	}
	buf := s.l.buf.Load()
	v := buf.get(t)
	if !atomic.CompareAndSwapInt64(&s.l.top, t, t+1) {
		return Retry[T]()
	}
	return Success(v)
}
