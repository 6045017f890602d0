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

// Package pool is the work-stealing thread pool: one goroutine per worker,
// each pinned to its OS thread (so the io_uring ring a worker creates is
// always submitted to from that one thread, matching the reference
// implementation's dedicated std::thread per worker), coordinating task
// discovery via wsqueue and parking via park. Grounded on
// lsio_threadpool::threadpool and ::worker.
package pool

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/lightspeedio/iouringfs/internal/park"
	"github.com/lightspeedio/iouringfs/internal/wsqueue"
)

// Pool owns the injector queue, the park coordinator, and the set of
// worker goroutines running body.
type Pool[T any] struct {
	injector    *wsqueue.Injector[T]
	coordinator *park.Coordinator
	handles     []*park.Handle
	keepRunning atomic.Bool
	wg          sync.WaitGroup
}

// New starts n worker goroutines, each running body(handle) until the pool
// is closed. body is expected to loop on handle.KeepRunning().
func New[T any](n int, body func(*Handle[T])) *Pool[T] {
	p := &Pool[T]{
		injector:    wsqueue.NewInjector[T](),
		coordinator: park.New(),
	}
	p.keepRunning.Store(true)
	go p.coordinator.Run()

	locals := make([]*wsqueue.Local[T], n)
	stealers := make([]*wsqueue.Stealer[T], n)
	for i := range locals {
		locals[i] = wsqueue.NewLocal[T]()
		stealers[i] = locals[i].Stealer()
	}

	p.handles = make([]*park.Handle, n)

	p.wg.Add(n)
	for i := 0; i < n; i++ {
		h := &Handle[T]{
			pool:       p,
			local:      locals[i],
			stealers:   stealers,
			parkHandle: park.NewHandle(),
		}
		p.handles[i] = h.parkHandle
		go func() {
			defer p.wg.Done()
			runtime.LockOSThread()
			body(h)
		}()
	}
	return p
}

// Push enqueues a task for some worker to pick up, waking a parked worker
// if one is available.
func (p *Pool[T]) Push(task T) {
	p.injector.Push(task)
	p.coordinator.WakeAtMostN(1)
}

// Close signals every worker to stop and blocks until all worker
// goroutines have exited, then stops the park coordinator.
//
// Waking is done by calling Wake directly on every retained handle rather
// than through coordinator.WakeAtMostN: that fast path reads an atomic
// "anyone parked" flag before bothering the coordinator goroutine, which
// is the right tradeoff for the hot Push path but is racy against a worker
// that has decided to park but not yet registered with the coordinator -
// such a worker would never see a WakeAtMostN-driven wakeup and wg.Wait
// below would hang forever. Handle.Wake is a non-blocking buffered send,
// so calling it on a worker that isn't parked yet just pre-arms its next
// Wait, the same way Drop unparks every retained thread handle directly in
// the reference pool instead of routing shutdown through the cheap check.
func (p *Pool[T]) Close() {
	p.keepRunning.Store(false)
	for _, h := range p.handles {
		h.Wake()
	}
	p.wg.Wait()
	p.coordinator.Stop()
}

// Handle is the view of the pool each worker goroutine drives its loop
// through: task discovery, submission of new work, and parking.
type Handle[T any] struct {
	pool       *Pool[T]
	local      *wsqueue.Local[T]
	stealers   []*wsqueue.Stealer[T]
	parkHandle *park.Handle
}

// KeepRunning reports whether the pool wants this worker to keep looping.
func (h *Handle[T]) KeepRunning() bool {
	return h.pool.keepRunning.Load()
}

// FindTask looks for work in this order: the worker's own local queue
// first, then a batch-steal from the injector, then one steal attempt
// against each peer's local queue (including, harmlessly, its own).
// A Retry result at any stage restarts the whole search rather than
// reporting a spurious empty result. Mirrors lsio_threadpool::worker's
// find_task / crossbeam-deque's Steal::or_else + collect composition.
func (h *Handle[T]) FindTask() (T, bool) {
	if v, ok := h.local.Pop(); ok {
		return v, true
	}
	for {
		if r := h.pool.injector.StealBatchAndPop(h.local); r.IsSuccess() {
			return r.Value(), true
		}

		combined := wsqueue.Empty[T]()
		for _, s := range h.stealers {
			r := s.Steal()
			if r.IsSuccess() {
				combined = r
				break
			}
			if r.IsRetry() {
				combined = r
			}
		}

		if combined.IsSuccess() {
			return combined.Value(), true
		}
		if combined.IsRetry() {
			continue
		}
		var zero T
		return zero, false
	}
}

// Push adds a new task to this worker's own local queue, waking peers if
// there's more than one task now sitting there for them to steal.
//
// TODO: also check whether at least one thread is parked before deciding
// how many peers to wake, rather than always waking len-1 - same
// simplification the reference thread pool leaves as a TODO.
func (h *Handle[T]) Push(task T) {
	h.local.Push(task)
	if n := h.local.Len(); n > 1 {
		h.pool.coordinator.WakeAtMostN(n - 1)
	}
}

// Park tells the coordinator this worker is going idle and blocks until
// woken.
func (h *Handle[T]) Park() {
	h.pool.coordinator.ThreadParked(h.parkHandle)
	h.parkHandle.Wait()
}
