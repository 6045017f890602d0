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

// Package uapi provides a low-level interface to Linux io_uring for
// high-performance asynchronous I/O. io_uring enables efficient submission
// and completion of I/O operations through shared memory ring buffers,
// avoiding a syscall per operation.
//
// Requires Linux kernel 5.6+ (IORING_OP_OPENAT/STATX/CLOSE, IORING_FEAT_SINGLE_MMAP).
//
// Example usage:
//
//	ring, err := uapi.NewRing(64)
//	if err != nil {
//	    // handle error
//	}
//	defer ring.Close()
//
//	sqe := ring.PeekSQE(true)
//	sqe.Opcode = uapi.IORING_OP_NOP
//	ring.AdvanceSQ()
//	ring.Submit()
//
//	cqe, err := ring.WaitCQE()
//	if err != nil {
//	    // handle error
//	}
//	ring.AdvanceCQ()
package uapi

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"syscall"
	"unsafe"
)

// IoUringParams is the input/output struct for io_uring_setup(2).
type IoUringParams struct {
	SqEntries    uint32
	CqEntries    uint32
	Flags        uint32
	SqThreadCpu  uint32
	SqThreadIdle uint32
	Features     uint32
	WqFd         uint32
	Resv         [3]uint32
	SqOff        IoSqringOffsets
	CqOff        IoCqringOffsets
}

// IoSqringOffsets - byte offsets into the mmap'd SQ ring for locating fields.
type IoSqringOffsets struct {
	Head        uint32
	Tail        uint32
	RingMask    uint32
	RingEntries uint32
	Flags       uint32
	Dropped     uint32
	Array       uint32
	Resv1       uint32
	Resv2       uint64
}

// IoCqringOffsets - byte offsets into the mmap'd CQ ring for locating fields.
type IoCqringOffsets struct {
	Head        uint32
	Tail        uint32
	RingMask    uint32
	RingEntries uint32
	Overflow    uint32
	Cqes        uint32
	Flags       uint64
	Resv1       uint32
	Resv2       uint64
}

// Ring is one worker's private io_uring instance: the fd plus its
// memory-mapped submission and completion queues. Not safe for concurrent
// use - each worker goroutine owns exactly one Ring.
type Ring struct {
	fd      int
	params  IoUringParams
	sq      submissionQueue
	cq      completionQueue
	sqeMem  []byte
	ringMem []byte
}

type submissionQueue struct {
	head        *uint32
	tail        *uint32
	ringMask    uint32
	ringEntries uint32
	flags       *uint32
	dropped     *uint32
	array       *uint32
	sqes        []IOUringSQE
}

type completionQueue struct {
	head        *uint32
	tail        *uint32
	ringMask    uint32
	ringEntries uint32
	overflow    *uint32
	cqes        []IOUringCQE
}

// NewRing creates a worker-private io_uring instance.
// entries is the size of the submission queue (rounded up to a power of 2
// by the kernel). Requires IORING_FEAT_SINGLE_MMAP (Linux 5.4+).
func NewRing(entries uint32) (*Ring, error) {
	params := IoUringParams{}
	fd, err := Setup(entries, &params)
	if err != nil {
		return nil, fmt.Errorf("io_uring_setup failed: %w", err)
	}

	if params.Features&IORING_FEAT_SINGLE_MMAP == 0 {
		syscall.Close(fd)
		return nil, fmt.Errorf("kernel does not support IORING_FEAT_SINGLE_MMAP (requires Linux 5.4+)")
	}

	ring := &Ring{fd: fd, params: params}

	pageSize := uint32(syscall.Getpagesize())

	sqRingSize := params.SqOff.Array + params.SqEntries*uint32(unsafe.Sizeof(uint32(0)))
	cqRingSize := params.CqOff.Cqes + params.CqEntries*uint32(unsafe.Sizeof(IOUringCQE{}))

	ringSize := sqRingSize
	if cqRingSize > ringSize {
		ringSize = cqRingSize
	}
	ringSize = (ringSize + pageSize - 1) &^ (pageSize - 1)

	ringPtr, err := syscall.Mmap(fd, 0, int(ringSize),
		syscall.PROT_READ|syscall.PROT_WRITE,
		syscall.MAP_SHARED|syscall.MAP_POPULATE)
	if err != nil {
		ring.Close()
		return nil, fmt.Errorf("mmap ring (single) failed: %w", err)
	}
	ring.ringMem = ringPtr

	sqeSize := params.SqEntries * uint32(unsafe.Sizeof(IOUringSQE{}))
	sqePtr, err := syscall.Mmap(fd, int64(0x10000000), int(sqeSize),
		syscall.PROT_READ|syscall.PROT_WRITE,
		syscall.MAP_SHARED|syscall.MAP_POPULATE)
	if err != nil {
		ring.Close()
		return nil, fmt.Errorf("mmap sqe failed: %w", err)
	}
	ring.sqeMem = sqePtr

	ring.sq.head = (*uint32)(unsafe.Pointer(&ring.ringMem[params.SqOff.Head]))
	ring.sq.tail = (*uint32)(unsafe.Pointer(&ring.ringMem[params.SqOff.Tail]))
	ring.sq.ringMask = *(*uint32)(unsafe.Pointer(&ring.ringMem[params.SqOff.RingMask]))
	ring.sq.ringEntries = *(*uint32)(unsafe.Pointer(&ring.ringMem[params.SqOff.RingEntries]))
	ring.sq.flags = (*uint32)(unsafe.Pointer(&ring.ringMem[params.SqOff.Flags]))
	ring.sq.dropped = (*uint32)(unsafe.Pointer(&ring.ringMem[params.SqOff.Dropped]))
	ring.sq.array = (*uint32)(unsafe.Pointer(&ring.ringMem[params.SqOff.Array]))
	ring.sq.sqes = (*[0x10000]IOUringSQE)(unsafe.Pointer(&ring.sqeMem[0]))[:params.SqEntries]

	ring.cq.head = (*uint32)(unsafe.Pointer(&ring.ringMem[params.CqOff.Head]))
	ring.cq.tail = (*uint32)(unsafe.Pointer(&ring.ringMem[params.CqOff.Tail]))
	ring.cq.ringMask = *(*uint32)(unsafe.Pointer(&ring.ringMem[params.CqOff.RingMask]))
	ring.cq.ringEntries = *(*uint32)(unsafe.Pointer(&ring.ringMem[params.CqOff.RingEntries]))
	ring.cq.overflow = (*uint32)(unsafe.Pointer(&ring.ringMem[params.CqOff.Overflow]))
	cqesPtr := unsafe.Pointer(&ring.ringMem[params.CqOff.Cqes])
	ring.cq.cqes = (*[0x10000]IOUringCQE)(cqesPtr)[:params.CqEntries]

	runtime.SetFinalizer(ring, func(r *Ring) { r.Close() })

	return ring, nil
}

// PeekSQE returns a submission queue entry for the caller to fill. It does
// NOT make the entry visible to the kernel - call AdvanceSQ for that.
// Returns nil if the submission queue is full.
func (ring *Ring) PeekSQE(reset bool) *IOUringSQE {
	q := &ring.sq

	tail := atomic.LoadUint32(q.tail)
	head := atomic.LoadUint32(q.head)

	if tail-head >= q.ringEntries {
		return nil
	}

	sqe := &q.sqes[tail&q.ringMask]

	if reset {
		*sqe = IOUringSQE{}
	}

	arrayIdx := tail & q.ringMask
	arrayPtr := (*uint32)(unsafe.Pointer(uintptr(unsafe.Pointer(q.array)) + uintptr(arrayIdx)*4))
	*arrayPtr = arrayIdx

	return sqe
}

// AdvanceSQ makes one submission queue entry visible to the kernel.
func (ring *Ring) AdvanceSQ() {
	atomic.AddUint32(ring.sq.tail, 1)
}

// SQLen reports the number of submission queue entries produced but not yet
// consumed by the kernel.
func (ring *Ring) SQLen() uint32 {
	return atomic.LoadUint32(ring.sq.tail) - atomic.LoadUint32(ring.sq.head)
}

// CQLen reports the number of completion queue entries produced by the
// kernel but not yet drained by AdvanceCQ.
func (ring *Ring) CQLen() uint32 {
	return atomic.LoadUint32(ring.cq.tail) - atomic.LoadUint32(ring.cq.head)
}

// Entries is the configured size of the ring (SQ entry count).
func (ring *Ring) Entries() uint32 {
	return ring.sq.ringEntries
}

// Submit flushes queued SQEs to the kernel without waiting for completions.
func (ring *Ring) Submit() (int, syscall.Errno) {
	toSubmit := ring.SQLen()
	if toSubmit == 0 {
		return 0, 0
	}
	for {
		submitted, errno := Enter(ring.fd, toSubmit, 0, 0, nil)
		if errno == syscall.EINTR {
			continue
		}
		return submitted, errno
	}
}

// SubmitAndWait flushes queued SQEs and blocks until at least minComplete
// completions are available.
func (ring *Ring) SubmitAndWait(minComplete uint32) (int, syscall.Errno) {
	toSubmit := ring.SQLen()
	for {
		submitted, errno := Enter(ring.fd, toSubmit, minComplete, IORING_ENTER_GETEVENTS, nil)
		if errno == syscall.EINTR {
			continue
		}
		return submitted, errno
	}
}

// PeekCQE checks for a completion without blocking. Returns nil if the
// completion queue is empty. Does not advance the head - call AdvanceCQ.
func (ring *Ring) PeekCQE() *IOUringCQE {
	q := &ring.cq
	head := atomic.LoadUint32(q.head)
	tail := atomic.LoadUint32(q.tail)

	if head == tail {
		return nil
	}

	return &q.cqes[head&q.ringMask]
}

// WaitCQE blocks until at least one completion is available. Does not
// advance the head - call AdvanceCQ after processing.
func (ring *Ring) WaitCQE() (*IOUringCQE, error) {
	q := &ring.cq
	head := atomic.LoadUint32(q.head)
	tail := atomic.LoadUint32(q.tail)

	for head == tail {
		_, errno := Enter(ring.fd, 0, 1, IORING_ENTER_GETEVENTS, nil)
		if errno == syscall.EINTR || errno == syscall.EAGAIN {
			runtime.Gosched()
			tail = atomic.LoadUint32(q.tail)
			continue
		}
		if errno != 0 {
			return nil, errno
		}
		tail = atomic.LoadUint32(q.tail)
	}

	return &q.cqes[head&q.ringMask], nil
}

// AdvanceCQ advances the completion queue head by one, freeing the oldest
// CQE slot.
func (ring *Ring) AdvanceCQ() {
	atomic.AddUint32(ring.cq.head, 1)
}

// Close tears down the ring: unmaps both regions and closes the fd.
// Returns the first error encountered, if any.
func (ring *Ring) Close() error {
	if ring == nil {
		return nil
	}
	runtime.SetFinalizer(ring, nil)

	var firstErr error

	if ring.ringMem != nil {
		if err := syscall.Munmap(ring.ringMem); err != nil && firstErr == nil {
			firstErr = err
		}
		ring.ringMem = nil
	}

	if ring.sqeMem != nil {
		if err := syscall.Munmap(ring.sqeMem); err != nil && firstErr == nil {
			firstErr = err
		}
		ring.sqeMem = nil
	}
	if ring.fd >= 0 {
		if err := syscall.Close(ring.fd); err != nil && firstErr == nil {
			firstErr = err
		}
		ring.fd = -1
	}
	return firstErr
}
