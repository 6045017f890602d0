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

// Package uapi is the raw Linux io_uring kernel ABI: syscalls, the SQE/CQE
// wire structs, and the ring mmap layout. Nothing in this package knows
// about files, ranges or buffers - that belongs to package ringio.
package uapi

import "unsafe"

// IOUringSQE represents a submission queue entry describing one I/O
// operation. Size must be exactly 64 bytes for kernel ABI compatibility.
type IOUringSQE struct {
	Opcode      uint8     // Operation code (IORING_OP_*)
	Flags       uint8     // Flags modifier for operation
	IoPrio      uint16    // Priority for this request
	Fd          int32     // File descriptor to operate on
	Off         uint64    // Offset for operations (or addr2/statx buf pointer)
	Addr        uint64    // Pointer to buffer or input args
	Len         uint32    // Length of buffer, iovec count, or statx mask
	OpcodeFlags uint32    // Opcode-specific flags (rw_flags/open_flags/statx_flags/...)
	UserData    uint64    // User data (returned verbatim in CQE)
	BufIndex    uint16    // Index into registered buffer array
	Personality uint16    // Personality to use (registered credentials)
	SpliceFdIn  int32     // File descriptor for splice operations
	_           [2]uint64 // Padding to 64 bytes
}

// IOUringCQE represents a completion queue entry: the result of one
// previously-submitted SQE, correlated back via UserData.
// Size must be exactly 16 bytes for kernel ABI compatibility.
type IOUringCQE struct {
	UserData uint64 // Echoed back from the submitting SQE
	Res      int32  // Bytes transferred, or -errno
	Flags    uint32 // Completion flags
}

// Iovec represents an I/O vector for readv/writev operations.
type Iovec struct {
	Base uintptr
	Len  uint64
}

func (p *Iovec) Set(b []byte) {
	p.Len = uint64(len(b))
	if p.Len > 0 {
		p.Base = uintptr(unsafe.Pointer(&b[0]))
	}
}

// TimeSpec mirrors the kernel's __kernel_timespec layout.
type TimeSpec struct {
	TvSec  int64
	TvNsec int64
}

func (p *TimeSpec) IsZero() bool {
	return *p == TimeSpec{}
}

// Statx mirrors struct statx from linux/stat.h. We keep our own copy rather
// than depend on golang.org/x/sys/unix.Statx_t so the dio_mem_align fields
// (only meaningful on kernels >=6.1) are always present regardless of which
// x/sys/unix version is vendored.
type Statx struct {
	Mask            uint32
	Blksize         uint32
	Attributes      uint64
	Nlink           uint32
	UID             uint32
	GID             uint32
	Mode            uint16
	spare0          [1]uint16
	Ino             uint64
	Size            uint64
	Blocks          uint64
	AttributesMask  uint64
	Atime           StatxTimestamp
	Btime           StatxTimestamp
	Ctime           StatxTimestamp
	Mtime           StatxTimestamp
	RdevMajor       uint32
	RdevMinor       uint32
	DevMajor        uint32
	DevMinor        uint32
	MntID           uint64
	DioMemAlign     uint32
	DioOffsetAlign  uint32
	spare3          [12]uint64
}

type StatxTimestamp struct {
	Sec     int64
	Nsec    uint32
	reserve int32
}

// STATX_* mask bits we request.
const (
	StatxSize       = 0x00000200
	StatxBasicStats = 0x000007ff
)

// AT_* flags used with openat/statx.
const (
	AtFDCWD           = -100
	AtStatxSyncAsStat = 0x0000
	AtEmptyPath       = 0x1000
)
