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

	"github.com/lightspeedio/iouringfs/internal/pool"
	"github.com/lightspeedio/iouringfs/internal/tracker"
	"github.com/lightspeedio/iouringfs/internal/uapi"
	"golang.org/x/sys/unix"
)

// errRingFull is returned by an Operation's SubmitFirstStep when the ring
// doesn't have room for the SQE(s) it needs; the driver retries after the
// next submit/drain cycle frees space.
var errRingFull = errors.New("ringio: submission queue full")

// GetRanges opens path, stats it, and - once both complete - spawns one
// GetRange child per requested range sharing the resulting OpenFile.
// Grounded on lsio_uring::get_ranges::GetRanges.
type GetRanges struct {
	pathC   []byte // NUL-terminated, kept alive until both completions land
	builder *openFileBuilder

	ranges []Range
	tokens []uint64
}

// NewGetRanges builds a GetRanges request. ranges and tokens must be the
// same length, paired by index.
func NewGetRanges(path string, ranges []Range, tokens []uint64) *GetRanges {
	pathC := make([]byte, len(path)+1)
	copy(pathC, path)
	return &GetRanges{
		pathC:   pathC,
		builder: newOpenFileBuilder(path),
		ranges:  append([]Range(nil), ranges...),
		tokens:  append([]uint64(nil), tokens...),
	}
}

// SubmitFirstStep submits both the openat and the statx SQEs. Both must fit
// or neither is considered submitted from the driver's point of view - the
// driver only calls this when it knows at least MaxEntriesAtOnce slots are
// free, so this should not normally fail after that check.
func (g *GetRanges) SubmitFirstStep(idx uint32, ring *uapi.Ring) error {
	openSQE := ring.PeekSQE(true)
	if openSQE == nil {
		return errRingFull
	}
	uapi.BuildOpenAt(openSQE, uapi.AtFDCWD, g.pathC, uint32(unix.O_RDONLY|unix.O_DIRECT|unix.O_CLOEXEC),
		tracker.Pack(idx, uapi.IORING_OP_OPENAT))
	ring.AdvanceSQ()

	statxSQE := ring.PeekSQE(true)
	if statxSQE == nil {
		return errRingFull
	}
	uapi.BuildStatx(statxSQE, uapi.AtFDCWD, g.pathC, uapi.AtStatxSyncAsStat, uapi.StatxBasicStats, g.builder.statxPtr(),
		tracker.Pack(idx, uapi.IORING_OP_STATX))
	ring.AdvanceSQ()
	return nil
}

// ProcessCompletion records whichever of openat/statx just completed and,
// once both have arrived, either fans out the error to every token or
// builds the OpenFile and spawns the GetRange children. Waiting for BOTH
// completions before deciding (rather than failing fast on the first
// error) keeps the "exactly one output item per requested range" invariant
// even when only one of the two calls fails.
func (g *GetRanges) ProcessCompletion(idx uint32, opcode uint8, res int32, ring *uapi.Ring, worker *pool.Handle[Operation], out chan<- Result) Step {
	switch opcode {
	case uapi.IORING_OP_OPENAT:
		g.builder.setOpenResult(res, errnoIfNegative(res))
	case uapi.IORING_OP_STATX:
		g.builder.setStatxResult(errnoIfNegative(res))
	default:
		panic("ringio: GetRanges received a completion for an opcode it never submitted")
	}

	if !g.builder.ready() {
		return StepPending
	}

	if err := g.builder.err(); err != nil {
		for _, tok := range g.tokens {
			out <- Result{Token: tok, Err: &OpError{Op: "open", Path: g.builder.path, Token: tok, Err: err}}
		}
		if g.builder.openSucceeded() {
			// statx failed after open succeeded: the fd is real and must
			// still be closed, just with nothing left to read through it.
			lone := &OpenFile{path: g.builder.path, fd: g.builder.fd}
			lone.refs.Store(1)
			worker.Push(NewClose(lone))
		}
		return StepDone
	}

	file := g.builder.build(len(g.ranges))
	for i, r := range g.ranges {
		worker.Push(NewGetRange(file, r, g.tokens[i]))
	}
	return StepDone
}
