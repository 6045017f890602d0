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

package pool

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPoolRunsAllTasks mirrors lsio_threadpool's embedded test_threadpool:
// N_THREADS workers, N_TASKS tasks, every task must run exactly once.
func TestPoolRunsAllTasks(t *testing.T) {
	const nThreads = 4
	const nTasks = 32

	var completed int64
	done := make(chan struct{}, nTasks)

	p := New[func()](nThreads, func(h *Handle[func()]) {
		for h.KeepRunning() {
			task, ok := h.FindTask()
			if !ok {
				h.Park()
				continue
			}
			task()
		}
	})
	defer p.Close()

	for i := 0; i < nTasks; i++ {
		p.Push(func() {
			atomic.AddInt64(&completed, 1)
			done <- struct{}{}
		})
	}

	for i := 0; i < nTasks; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for task %d/%d", i+1, nTasks)
		}
	}

	assert.Equal(t, int64(nTasks), atomic.LoadInt64(&completed))
}

// TestPoolCloseDrainsAndReturns checks shutdown: Close must not return
// until every worker has observed keepRunning=false and exited.
func TestPoolCloseDrainsAndReturns(t *testing.T) {
	p := New[func()](3, func(h *Handle[func()]) {
		for h.KeepRunning() {
			task, ok := h.FindTask()
			if !ok {
				h.Park()
				continue
			}
			task()
		}
	})

	closed := make(chan struct{})
	go func() {
		p.Close()
		close(closed)
	}()

	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return - a worker failed to exit")
	}
}

// TestPushFromWithinTaskFansOut exercises worker-local Push (as GetRanges
// spawning GetRange children does), confirming a task pushed by one worker
// is eventually picked up (by itself or a peer, via steal) rather than
// stuck forever.
func TestPushFromWithinTaskFansOut(t *testing.T) {
	const fanout = 50
	var completed int64
	done := make(chan struct{}, fanout)

	type task = func(h *taskHandle)
	var real *Pool[task]
	real = New[task](4, func(h *Handle[task]) {
		for h.KeepRunning() {
			tk, ok := h.FindTask()
			if !ok {
				h.Park()
				continue
			}
			tk(&taskHandle{h: h})
		}
	})
	defer real.Close()

	real.Push(func(h *taskHandle) {
		for i := 0; i < fanout; i++ {
			h.h.Push(func(h *taskHandle) {
				atomic.AddInt64(&completed, 1)
				done <- struct{}{}
			})
		}
	})

	for i := 0; i < fanout; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for fanned-out task %d/%d", i+1, fanout)
		}
	}
	require.Equal(t, int64(fanout), atomic.LoadInt64(&completed))
}

type taskHandle struct {
	h *Handle[func(*taskHandle)]
}
