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

// Package ringio is the per-worker ring driver: the Operation state
// machines (GetRanges, GetRange, Close), the main submit/drain loop, and
// the file/buffer lifetimes they share. Grounded on lsio_uring's
// operation.rs, get_ranges.rs, get_range.rs, close.rs and worker.rs.
package ringio

import (
	"fmt"

	"github.com/lightspeedio/iouringfs/internal/buffer"
	"github.com/lightspeedio/iouringfs/internal/pool"
	"github.com/lightspeedio/iouringfs/internal/uapi"
)

// Range is a byte range within a file. Negative Start/End are resolved
// against the file's size once known: Start s < 0 becomes size+s and End
// e < 0 becomes size+e+1, so End -1 reads through the last byte.
type Range struct {
	Start, End int64
}

// Result is one item of output: either the bytes read for Token, or the
// error that prevented it. Chunk is nil when Err is non-nil. The caller
// must call Chunk.Release() once done with it.
type Result struct {
	Token uint64
	Chunk *buffer.Immutable
	Err   error
}

// OpError describes a failed operation against a specific file.
type OpError struct {
	Op    string
	Path  string
	Token uint64
	Err   error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("ringio: %s %q (token %d): %v", e.Op, e.Path, e.Token, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// maxSingleReadBytes is the largest range a single Read SQE can cover.
// Grounded on lsio_uring::get_range's MAX_ENTRIES_AT_ONCE-adjacent
// single-read limit: io_uring (like read(2)) will silently cap a transfer
// at just under 2 GiB, so a range larger than this would succeed with a
// short read instead of failing - rejected explicitly here instead.
//
// TODO: split oversized ranges into multiple chained reads rather than
// rejecting them; not needed by any caller yet.
const maxSingleReadBytes = 0x7ffff000

// Step is the outcome of processing one completion.
type Step int

const (
	// StepPending means the operation is still waiting on further
	// completions (e.g. GetRanges waiting on both openat and statx).
	StepPending Step = iota
	// StepDone means the operation is finished and its tracker slot
	// should be freed.
	StepDone
)

// Operation is one in-flight io_uring request as tracked by a worker's
// driver loop. Unlike the Rust original's closed Operation enum, Go models
// this as an interface - GetRanges, GetRange and Close each implement it
// independently, with no shared enum dispatch needed.
type Operation interface {
	// SubmitFirstStep queues this operation's initial SQE(s) against ring,
	// tagging them with idx (via tracker.Pack) so completions route back
	// here. Returns an error (never consuming fewer than all entries it
	// started with) if the ring doesn't have room; the driver retries
	// after the ring drains.
	SubmitFirstStep(idx uint32, ring *uapi.Ring) error

	// ProcessCompletion handles one completion tagged with idx/opcode and
	// carrying result res (io_uring's res: bytes transferred, or -errno).
	// worker lets the operation spawn follow-up work (e.g. GetRanges
	// spawning GetRange children); out is where finished range reads are
	// reported.
	ProcessCompletion(idx uint32, opcode uint8, res int32, ring *uapi.Ring, worker *pool.Handle[Operation], out chan<- Result) Step
}
