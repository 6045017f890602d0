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
	"syscall"
)

// ErrNotFound wraps any completion that failed with ENOENT, in addition to
// the syscall.Errno itself - both errors.Is(err, ErrNotFound) and
// errors.Is(err, fs.ErrNotExist) classify it.
var ErrNotFound = errors.New("ringio: not found")

// errnoIfNegative turns an io_uring CQE result (bytes transferred, or
// -errno) into an error, or nil for a non-negative result.
func errnoIfNegative(res int32) error {
	if res >= 0 {
		return nil
	}
	errno := syscall.Errno(-res)
	if errno == 0 {
		return fmt.Errorf("ringio: unknown negative completion result %d", res)
	}
	if errno == syscall.ENOENT {
		return fmt.Errorf("%w: %w", ErrNotFound, errno)
	}
	return errno
}
