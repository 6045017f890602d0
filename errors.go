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

package iouringfs

import "github.com/lightspeedio/iouringfs/internal/ringio"

// OpError describes a failed open, statx, read, or close against a
// specific path. Use errors.As to recover one from a Result.Err, and
// errors.Is against fs.ErrNotExist/fs.ErrPermission etc. to classify the
// underlying syscall.Errno it wraps.
type OpError = ringio.OpError

// ErrNotFound is the error errors.Is matches against an OpError whose
// underlying syscall.Errno is ENOENT. fs.ErrNotExist also matches, since
// syscall.Errno implements its own Is; ErrNotFound exists for callers who'd
// rather not depend on that implicit detail.
var ErrNotFound = ringio.ErrNotFound

// ErrShortRead is the error errors.Is matches against an OpError for a read
// that completed with fewer bytes than it requested.
var ErrShortRead = ringio.ErrShortRead
