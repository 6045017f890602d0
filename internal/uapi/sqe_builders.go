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

package uapi

import "unsafe"

// BuildOpenAt fills sqe as an IORING_OP_OPENAT request. path must be a
// NUL-terminated byte slice kept alive by the caller until the completion
// for userData arrives.
func BuildOpenAt(sqe *IOUringSQE, dirFD int32, path []byte, flags uint32, userData uint64) {
	*sqe = IOUringSQE{
		Opcode:      IORING_OP_OPENAT,
		Fd:          dirFD,
		Addr:        uint64(uintptr(unsafe.Pointer(&path[0]))),
		Len:         0, // mode, unused for read-only opens
		OpcodeFlags: flags,
		UserData:    userData,
	}
}

// BuildStatx fills sqe as an IORING_OP_STATX request. path and buf must
// outlive the completion.
func BuildStatx(sqe *IOUringSQE, dirFD int32, path []byte, flags uint32, mask uint32, buf *Statx, userData uint64) {
	*sqe = IOUringSQE{
		Opcode:      IORING_OP_STATX,
		Fd:          dirFD,
		Addr:        uint64(uintptr(unsafe.Pointer(&path[0]))),
		Len:         mask,
		Off:         uint64(uintptr(unsafe.Pointer(buf))),
		OpcodeFlags: flags,
		UserData:    userData,
	}
}

// BuildRead fills sqe as an IORING_OP_READ request reading into buf at the
// given file offset.
func BuildRead(sqe *IOUringSQE, fd int32, buf []byte, offset uint64, userData uint64) {
	s := IOUringSQE{
		Opcode:   IORING_OP_READ,
		Fd:       fd,
		Off:      offset,
		Len:      uint32(len(buf)),
		UserData: userData,
	}
	if len(buf) > 0 {
		s.Addr = uint64(uintptr(unsafe.Pointer(&buf[0])))
	}
	*sqe = s
}

// BuildClose fills sqe as an IORING_OP_CLOSE request.
func BuildClose(sqe *IOUringSQE, fd int32, userData uint64) {
	*sqe = IOUringSQE{
		Opcode:   IORING_OP_CLOSE,
		Fd:       fd,
		UserData: userData,
	}
}
