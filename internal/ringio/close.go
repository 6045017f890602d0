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
	"github.com/lightspeedio/iouringfs/internal/pool"
	"github.com/lightspeedio/iouringfs/internal/tracker"
	"github.com/lightspeedio/iouringfs/internal/uapi"
)

// Close submits IORING_OP_CLOSE for a file whose last reference just
// dropped. Grounded on lsio_uring::close::Close. A failed close is
// reported on out - there's no range Token to attach it to, so Token is
// zero - but a successful close produces no output at all, keeping the
// output channel's item count equal to the number of ranges requested.
type Close struct {
	file *OpenFile
}

// NewClose builds a Close for file. Callers must only do this once file's
// refcount has reached zero.
func NewClose(file *OpenFile) *Close {
	return &Close{file: file}
}

func (c *Close) SubmitFirstStep(idx uint32, ring *uapi.Ring) error {
	sqe := ring.PeekSQE(true)
	if sqe == nil {
		return errRingFull
	}
	uapi.BuildClose(sqe, c.file.FD(), tracker.Pack(idx, uapi.IORING_OP_CLOSE))
	ring.AdvanceSQ()
	return nil
}

func (c *Close) ProcessCompletion(idx uint32, opcode uint8, res int32, ring *uapi.Ring, worker *pool.Handle[Operation], out chan<- Result) Step {
	if opcode != uapi.IORING_OP_CLOSE {
		panic("ringio: Close received a completion for an opcode it never submitted")
	}
	if res < 0 {
		out <- Result{Err: &OpError{Op: "close", Path: c.file.Path(), Err: errnoIfNegative(res)}}
	}
	return StepDone
}
