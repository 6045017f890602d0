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
	"sync/atomic"

	"github.com/lightspeedio/iouringfs/internal/uapi"
)

// defaultAlign is used when stx_dio_mem_align is zero. GetRanges' statx
// request mask (StatxBasicStats) does not include STATX_DIOALIGN, so the
// kernel leaves that field zero and every file uses this value. 512 is the
// smallest sector size in practice.
const defaultAlign = 512

// OpenFile is a shared, refcounted handle on one open fd: one GetRanges
// request opens a file once, then hands the same OpenFile to every spawned
// GetRange child. The last child to finish closes it. Grounded on
// lsio_uring::open_file::OpenFile.
type OpenFile struct {
	path  string
	fd    int32
	size  int64
	align uint32
	refs  atomic.Int32
}

// FD is the open file descriptor.
func (f *OpenFile) FD() int32 { return f.fd }

// Size is the file size in bytes, as reported by statx at open time.
func (f *OpenFile) Size() int64 { return f.size }

// Align is the alignment used for buffer addresses, lengths and file
// offsets of reads against this file: stx_dio_mem_align if statx filled it
// in, otherwise defaultAlign. It is not checked against the device's
// actual O_DIRECT requirement.
func (f *OpenFile) Align() int {
	if f.align == 0 {
		return defaultAlign
	}
	return int(f.align)
}

// Path is the file path this handle was opened from, used only for error
// reporting.
func (f *OpenFile) Path() string { return f.path }

// release drops one reference, returning true if this call brought the
// count to zero (the caller should submit a Close for fd).
func (f *OpenFile) release() bool {
	return f.refs.Add(-1) == 0
}

// openFileBuilder accumulates the two completions (openat, statx) a
// GetRanges request needs before an OpenFile can be built. Grounded on
// lsio_uring::open_file::OpenFileBuilder.
type openFileBuilder struct {
	path string

	fd       int32
	fdSet    bool
	fdErr    error
	statx    uapi.Statx
	statxSet bool
	statxErr error
}

func newOpenFileBuilder(path string) *openFileBuilder {
	return &openFileBuilder{path: path}
}

// statxPtr is the destination buffer a statx SQE writes its result into.
func (b *openFileBuilder) statxPtr() *uapi.Statx { return &b.statx }

func (b *openFileBuilder) setOpenResult(fd int32, err error) {
	b.fd = fd
	b.fdSet = true
	b.fdErr = err
}

func (b *openFileBuilder) setStatxResult(err error) {
	b.statxSet = true
	b.statxErr = err
}

// openDone reports whether the openat completion has arrived, success or
// failure.
func (b *openFileBuilder) openDone() bool { return b.fdSet }

// statxDone reports whether the statx completion has arrived.
func (b *openFileBuilder) statxDone() bool { return b.statxSet }

// ready reports whether both completions have arrived.
func (b *openFileBuilder) ready() bool { return b.openDone() && b.statxDone() }

// err returns the first error recorded by either completion, if any.
func (b *openFileBuilder) err() error {
	if b.fdErr != nil {
		return b.fdErr
	}
	return b.statxErr
}

// openSucceeded reports whether the openat completion produced a live fd -
// used to decide whether a stray fd needs closing when statx failed.
func (b *openFileBuilder) openSucceeded() bool { return b.fdSet && b.fdErr == nil }

// build constructs the OpenFile once ready() and err() == nil. refCount is
// the number of GetRange children that will share it (one reference per
// range requested against this file).
func (b *openFileBuilder) build(refCount int) *OpenFile {
	f := &OpenFile{
		path:  b.path,
		fd:    b.fd,
		size:  int64(b.statx.Size),
		align: b.statx.DioMemAlign,
	}
	f.refs.Store(int32(refCount))
	return f
}
