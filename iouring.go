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

// Package iouringfs reads byte ranges out of files using Linux io_uring,
// spreading requests across a fixed pool of worker threads that each own a
// private ring and steal work from one another when idle.
package iouringfs

import (
	"fmt"

	"github.com/lightspeedio/iouringfs/internal/pool"
	"github.com/lightspeedio/iouringfs/internal/ringio"
	"github.com/lightspeedio/iouringfs/internal/uapi"
)

// Range is a byte range within a file. A negative Start or End is resolved
// against the file's size once it's known: Start s < 0 becomes size+s and
// End e < 0 becomes size+e+1, so End -1 reads through the last byte.
type Range = ringio.Range

// Result is one item of output from a GetRanges call: the bytes read for
// Token, or the error that prevented it. Callers must call
// Chunk.Release() once done reading it.
type Result = ringio.Result

// Engine is a running pool of io_uring workers. Create one with New, issue
// requests with GetRanges, read results from Completion, and release
// resources with Close.
type Engine struct {
	pool *pool.Pool[ringio.Operation]
	out  chan Result
}

// New starts an Engine with nWorkers worker threads, each owning its own
// io_uring instance sized per cfg (or DefaultConfig() if cfg is nil).
func New(nWorkers int, cfg *Config) (*Engine, error) {
	if nWorkers <= 0 {
		return nil, fmt.Errorf("iouringfs: nWorkers must be positive, got %d", nWorkers)
	}
	cfg = cfg.withDefaults()

	out := make(chan Result, cfg.OutputChanBuffer)
	setupErrs := make(chan error, nWorkers)

	var p *pool.Pool[ringio.Operation]
	p = pool.New[ringio.Operation](nWorkers, func(h *pool.Handle[ringio.Operation]) {
		ring, err := uapi.NewRing(cfg.RingSize)
		if err != nil {
			wrapped := fmt.Errorf("iouringfs: worker ring setup: %w", err)
			cfg.logf("iouringfs: %v", wrapped)
			setupErrs <- wrapped
			// Keep looping so Close() can still join this goroutine, just
			// without ever doing any work.
			for h.KeepRunning() {
				h.Park()
			}
			return
		}
		defer func() {
			if err := ring.Close(); err != nil {
				cfg.logf("iouringfs: worker ring teardown: %v", err)
			}
		}()
		setupErrs <- nil
		ringio.NewDriver(ring, out).Run(h)
	})

	for i := 0; i < nWorkers; i++ {
		if err := <-setupErrs; err != nil {
			p.Close()
			return nil, err
		}
	}

	return &Engine{pool: p, out: out}, nil
}

// GetRanges asynchronously reads ranges from path. ranges and tokens must
// be the same length, paired by index; each token is echoed back on
// exactly one Result delivered via Completion.
func (e *Engine) GetRanges(path string, ranges []Range, tokens []uint64) error {
	if len(ranges) != len(tokens) {
		return fmt.Errorf("iouringfs: %d ranges but %d tokens", len(ranges), len(tokens))
	}
	e.pool.Push(ringio.NewGetRanges(path, ranges, tokens))
	return nil
}

// Completion is the channel every Result is delivered on, across every
// GetRanges call made against this Engine.
func (e *Engine) Completion() <-chan Result {
	return e.out
}

// Close stops every worker, waits for the worker goroutines to exit, then
// closes the completion channel. It does not wait for in-flight operations:
// every requested Result must have been received first, since a worker
// that stops with operations still in flight panics. No further Results
// will arrive after Close returns. Close must be called only once.
func (e *Engine) Close() {
	e.pool.Close()
	close(e.out)
}
