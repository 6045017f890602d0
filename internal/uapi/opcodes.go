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

// io_uring opcodes - these define the type of I/O operation submitted via
// the submission queue. Only the subset this module's driver actually emits
// (OPENAT, STATX, READ, CLOSE) plus NOP for smoke-testing is exercised;
// the rest are kept for completeness of the ABI surface.
const (
	IORING_OP_NOP             = 0  // No operation (useful for testing)
	IORING_OP_READV           = 1  // Vectored read (readv)
	IORING_OP_WRITEV          = 2  // Vectored write (writev)
	IORING_OP_FSYNC           = 3  // File synchronization
	IORING_OP_READ_FIXED      = 4  // Read using pre-registered buffers
	IORING_OP_WRITE_FIXED     = 5  // Write using pre-registered buffers
	IORING_OP_POLL_ADD        = 6  // Add a poll request
	IORING_OP_POLL_REMOVE     = 7  // Remove a poll request
	IORING_OP_SYNC_FILE_RANGE = 8  // Sync file range
	IORING_OP_SENDMSG         = 9  // Send message on socket
	IORING_OP_RECVMSG         = 10 // Receive message from socket
	IORING_OP_TIMEOUT         = 11 // Timeout operation
	IORING_OP_FALLOCATE       = 17 // Preallocate file space
	IORING_OP_OPENAT          = 18 // Open a file relative to a directory fd (Linux 5.6+)
	IORING_OP_CLOSE           = 19 // Close file descriptor (Linux 5.6+)
	IORING_OP_FILES_UPDATE    = 20 // Update a registered file table slot
	IORING_OP_STATX           = 21 // statx(2) (Linux 5.6+)
	IORING_OP_READ            = 22 // Read from file descriptor (Linux 5.6+)
	IORING_OP_WRITE           = 23 // Write to file descriptor (Linux 5.6+)
	IORING_OP_ACCEPT          = 13 // Accept incoming connection (Linux 5.5+)
	IORING_OP_ASYNC_CANCEL    = 14 // Cancel async operation (Linux 5.5+)
	IORING_OP_LINK_TIMEOUT    = 15 // Linked timeout (Linux 5.5+)
	IORING_OP_CONNECT         = 16 // Connect to socket (Linux 5.5+)
	IORING_OP_SEND            = 26 // Send data on socket (Linux 5.6+)
	IORING_OP_RECV            = 27 // Receive data from socket (Linux 5.6+)
)

// io_uring setup flags - control behavior of the io_uring instance.
const (
	IORING_SETUP_IOPOLL     = (1 << 0)
	IORING_SETUP_SQPOLL     = (1 << 1)
	IORING_SETUP_SQ_AFF     = (1 << 2)
	IORING_SETUP_CQSIZE     = (1 << 3)
	IORING_SETUP_CLAMP      = (1 << 4)
	IORING_SETUP_ATTACH_WQ  = (1 << 5)
	IORING_SETUP_R_DISABLED = (1 << 6)
)

// io_uring feature flags - returned in params.Features after setup.
const (
	IORING_FEAT_SINGLE_MMAP = (1 << 0)
)

// io_uring enter flags - control behavior of the io_uring_enter syscall.
const (
	IORING_ENTER_GETEVENTS = (1 << 0)
	IORING_ENTER_SQ_WAKEUP = (1 << 1)
	IORING_ENTER_SQ_WAIT   = (1 << 2)
	IORING_ENTER_EXT_ARG   = (1 << 3)
)

// SQE flags - control behavior of individual operations.
const (
	IOSQE_FIXED_FILE = (1 << 0)
	IOSQE_IO_LINK    = (1 << 2)
)

// io_uring register opcodes - for SYS_IO_URING_REGISTER.
const (
	IORING_REGISTER_BUFFERS      = 0
	IORING_UNREGISTER_BUFFERS    = 1
	IORING_REGISTER_FILES        = 2
	IORING_UNREGISTER_FILES      = 3
	IORING_REGISTER_EVENTFD      = 4
	IORING_UNREGISTER_EVENTFD    = 5
	IORING_REGISTER_FILES_UPDATE = 6
)
