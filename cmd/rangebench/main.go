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

// Command rangebench issues many GetRanges calls against a single file
// concurrently and reports throughput. It is a usage example and a smoke
// test, not a reimplementation of the original project's benchmark suite.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/lightspeedio/iouringfs"
	"github.com/lightspeedio/iouringfs/concurrency/gopool"
)

func main() {
	path := flag.String("file", "", "path to read ranges from")
	workers := flag.Int("workers", 4, "number of io_uring worker threads")
	nRanges := flag.Int("ranges", 1000, "number of ranges to request")
	rangeSize := flag.Int("range-size", 64<<10, "size in bytes of each range")
	concurrency := flag.Int("concurrency", 64, "number of GetRanges calls in flight at once")
	flag.Parse()

	if *path == "" {
		fmt.Fprintln(os.Stderr, "usage: rangebench -file <path> [flags]")
		os.Exit(2)
	}

	info, err := os.Stat(*path)
	if err != nil {
		log.Fatalf("stat %s: %v", *path, err)
	}
	size := info.Size()
	if size == 0 {
		log.Fatalf("%s is empty", *path)
	}

	engine, err := iouringfs.New(*workers, iouringfs.DefaultConfig())
	if err != nil {
		log.Fatalf("starting engine: %v", err)
	}
	defer engine.Close()

	ranges := make([]iouringfs.Range, *nRanges)
	rng := rand.New(rand.NewSource(1))
	for i := range ranges {
		start := rng.Int63n(maxInt64(1, size-int64(*rangeSize)))
		end := start + int64(*rangeSize)
		if end > size {
			end = size
		}
		ranges[i] = iouringfs.Range{Start: start, End: end}
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, *concurrency)
	var bytesRead int64
	var mu sync.Mutex

	done := make(chan struct{})
	go func() {
		for i := 0; i < *nRanges; i++ {
			r := <-engine.Completion()
			if r.Err != nil {
				log.Printf("range failed: %v", r.Err)
				continue
			}
			mu.Lock()
			bytesRead += int64(r.Chunk.Len())
			mu.Unlock()
			r.Chunk.Release()
		}
		close(done)
	}()

	start := time.Now()
	for i, r := range ranges {
		wg.Add(1)
		sem <- struct{}{}
		token := uint64(i)
		gopool.Go(func() {
			defer wg.Done()
			defer func() { <-sem }()
			if err := engine.GetRanges(*path, []iouringfs.Range{r}, []uint64{token}); err != nil {
				log.Printf("submit failed: %v", err)
			}
		})
	}
	wg.Wait()
	<-done
	elapsed := time.Since(start)

	mu.Lock()
	defer mu.Unlock()
	fmt.Printf("read %d ranges (%d bytes) in %s (%.1f MiB/s)\n",
		*nRanges, bytesRead, elapsed, float64(bytesRead)/elapsed.Seconds()/(1<<20))
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
