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

package park

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParkAndWake(t *testing.T) {
	c := New()
	go c.Run()
	defer c.Stop()

	h := NewHandle()
	woke := make(chan struct{})
	go func() {
		c.ThreadParked(h)
		h.Wait()
		close(woke)
	}()

	require.Eventually(t, func() bool {
		c.WakeAtMostN(1)
		select {
		case <-woke:
			return true
		default:
			return false
		}
	}, time.Second, time.Millisecond)
}

func TestWakeAtMostNWakesOnlyThatMany(t *testing.T) {
	c := New()
	go c.Run()
	defer c.Stop()

	const n = 5
	handles := make([]*Handle, n)
	woke := make([]chan struct{}, n)
	for i := range handles {
		handles[i] = NewHandle()
		woke[i] = make(chan struct{})
		idx := i
		go func() {
			c.ThreadParked(handles[idx])
			handles[idx].Wait()
			close(woke[idx])
		}()
	}

	// Give every goroutine a chance to register as parked.
	require.Eventually(t, func() bool {
		return c.atLeastOneParked.Load()
	}, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)

	c.WakeAtMostN(2)

	wokenCount := func() int {
		n := 0
		for _, ch := range woke {
			select {
			case <-ch:
				n++
			default:
			}
		}
		return n
	}

	require.Eventually(t, func() bool { return wokenCount() >= 2 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 2, wokenCount(), "WakeAtMostN(2) must not wake more than 2")

	// Drain the rest so goroutines don't leak past the test.
	c.WakeAtMostN(n)
	require.Eventually(t, func() bool { return wokenCount() == n }, time.Second, time.Millisecond)
}

func TestWakeAtMostNIsCheapWhenNobodyParked(t *testing.T) {
	c := New()
	go c.Run()
	defer c.Stop()

	assert.False(t, c.atLeastOneParked.Load())
	c.WakeAtMostN(3) // must not block even though no command is consumed synchronously
}
