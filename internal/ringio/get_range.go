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
	"fmt"

	"github.com/lightspeedio/iouringfs/internal/buffer"
	"github.com/lightspeedio/iouringfs/internal/pool"
	"github.com/lightspeedio/iouringfs/internal/tracker"
	"github.com/lightspeedio/iouringfs/internal/uapi"
)

// ErrShortRead wraps a completion that transferred fewer bytes than its
// read requested.
var ErrShortRead = errors.New("ringio: short read")

// GetRange reads one byte range from an already-open, already-stat'd file.
// Always terminal on its first completion - there is no partial-read retry
// here (a short read is reported as an error; see the TODO in
// ProcessCompletion). Grounded on lsio_uring::get_range::GetRange.
type GetRange struct {
	file  *OpenFile
	token uint64

	start, end int64 // may still be negative (unresolved) until SubmitFirstStep
	wantBytes  int64 // bytes from the aligned start through the end of the range

	chunk *buffer.Immutable
}

// NewGetRange builds a GetRange reading r from file, reporting its result
// under token. file must already carry one reference for this range (the
// caller - GetRanges - is responsible for sizing OpenFile's refcount).
func NewGetRange(file *OpenFile, r Range, token uint64) *GetRange {
	return &GetRange{file: file, token: token, start: r.Start, end: r.End}
}

// SubmitFirstStep resolves the range against the file's size, rounds down
// to the file's required alignment, allocates a buffer sized for the
// aligned read, and submits it. The SQE's Addr/Len are taken from the
// buffer's full, pre-split view - the kernel fills the whole aligned
// region regardless of how that memory is later split/frozen/sliced on the
// Go side, so narrowing happens only after the SQE is built.
func (g *GetRange) SubmitFirstStep(idx uint32, ring *uapi.Ring) error {
	size := g.file.Size()
	start, end := g.start, g.end
	if start < 0 {
		start = size + start
	}
	if end < 0 {
		end = size + end + 1
	}
	if end < start {
		end = start
	}
	if end-start > maxSingleReadBytes {
		panic(fmt.Sprintf("ringio: range [%d, %d) is %d bytes, over the %d single-read limit",
			start, end, end-start, maxSingleReadBytes))
	}

	align := g.file.Align()
	alignedStart := (start / int64(align)) * int64(align)

	mut, err := buffer.NewMutable(int(end-alignedStart), align)
	if err != nil {
		return err
	}
	g.wantBytes = end - alignedStart

	sqe := ring.PeekSQE(true)
	if sqe == nil {
		mut.Release()
		return errRingFull
	}
	uapi.BuildRead(sqe, g.file.FD(), mut.Bytes(), uint64(alignedStart), tracker.Pack(idx, uapi.IORING_OP_READ))
	ring.AdvanceSQ()

	imm, err := mut.Freeze()
	if err != nil {
		return err
	}
	lo, hi := int(start-alignedStart), int(end-alignedStart)
	g.chunk = imm.Slice(lo, hi)
	if err := imm.Release(); err != nil {
		return err
	}

	g.start, g.end = start, end
	return nil
}

// ProcessCompletion reports the read's outcome and, if this was the last
// outstanding range against file, spawns its Close.
func (g *GetRange) ProcessCompletion(idx uint32, opcode uint8, res int32, ring *uapi.Ring, worker *pool.Handle[Operation], out chan<- Result) Step {
	if opcode != uapi.IORING_OP_READ {
		panic("ringio: GetRange received a completion for an opcode it never submitted")
	}

	switch {
	case res < 0:
		out <- Result{Token: g.token, Err: &OpError{Op: "read", Path: g.file.Path(), Token: g.token, Err: errnoIfNegative(res)}}
		g.chunk.Release()
	case int64(res) < g.wantBytes:
		// A short read against O_DIRECT would otherwise silently hand back
		// fewer bytes than the range promised. Reading less than the
		// rounded-up buffer length is fine as long as the requested range
		// is covered (e.g. a range ending at an unaligned end of file).
		//
		// TODO: retry the remainder instead of surfacing this as an error.
		out <- Result{Token: g.token, Err: &OpError{Op: "read", Path: g.file.Path(), Token: g.token,
			Err: fmt.Errorf("%w: got %d bytes, wanted %d", ErrShortRead, res, g.wantBytes)}}
		g.chunk.Release()
	default:
		out <- Result{Token: g.token, Chunk: g.chunk}
	}

	if g.file.release() {
		worker.Push(NewClose(g.file))
	}
	return StepDone
}
