// elPrep: a high-performance tool for analyzing SAM/BAM files.
// Copyright (c) 2017-2020 imec vzw.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version, and Additional Terms
// (see below).

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License and Additional Terms along with this program. If not, see
// <https://github.com/ExaScience/elprep/blob/master/LICENSE.txt>.

// Package pfor drives a bounded pool of worker goroutines over an
// integer index range, chunked for throughput, with output serialized
// back into input order regardless of which worker finishes first.
package pfor

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/exascience/pargo/pipeline"

	"github.com/raj347/nanocall/internal"
)

// Config bounds a Run call.
type Config struct {
	// Threads is the worker pool size. 0 lets pargo/pipeline pick
	// GOMAXPROCS, the same convention elprep's own LimitedPar(0, ...)
	// call sites use.
	Threads int
	// ChunkSize is the number of indices fetched per pipeline batch.
	ChunkSize int
	// Output receives each chunk's rendered bytes, strictly in input
	// order, on a single goroutine.
	Output io.Writer
}

const defaultChunkSize = 10

// Run applies process to every index in [0, n), across cfg.Threads
// worker goroutines, and writes each chunk's accumulated output to
// cfg.Output strictly in ascending index order. progress, if non-nil,
// is called at most once per wall-clock second while chunks complete,
// and once more when the run finishes, with the number of items
// completed so far and the elapsed time since Run started.
//
// A panic inside process propagates out of Run and is not recovered:
// the harness has no way to reason about partial output ordering once
// a worker has failed mid-chunk.
func Run(cfg Config, n int, process func(i int, out *bytes.Buffer), progress func(done int, elapsed time.Duration)) error {
	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}

	src := &indexSource{n: n, chunkSize: chunkSize}
	start := time.Now()
	done := 0
	lastReport := start

	var p pipeline.Pipeline
	p.Source(src)
	p.Add(
		pipeline.LimitedPar(cfg.Threads, pipeline.Receive(func(_ int, data interface{}) interface{} {
			idxs := data.([]int)
			buf := internal.ReserveBuffer()
			for _, i := range idxs {
				process(i, buf)
			}
			return chunkResult{indices: idxs, buf: buf}
		})),
		pipeline.StrictOrd(pipeline.Receive(func(_ int, data interface{}) interface{} {
			res := data.(chunkResult)
			if cfg.Output != nil && res.buf.Len() > 0 {
				if _, err := io.Copy(cfg.Output, res.buf); err != nil {
					p.SetErr(err)
				}
			}
			internal.ReleaseBuffer(res.buf)

			done += len(res.indices)
			if progress != nil {
				now := time.Now()
				if now.Sub(lastReport) >= time.Second {
					progress(done, now.Sub(start))
					lastReport = now
				}
			}
			return nil
		})),
	)
	if err := internal.RunPipeline(&p); err != nil {
		return err
	}
	if progress != nil {
		progress(done, time.Since(start))
	}
	return nil
}

type chunkResult struct {
	indices []int
	buf     *bytes.Buffer
}

// indexSource is a pipeline.Source dispensing increasing integer
// indices chunkSize at a time.
type indexSource struct {
	next      int
	n         int
	chunkSize int
	fetched   []int
}

func (s *indexSource) Err() error { return nil }

func (s *indexSource) Prepare(ctx context.Context) int { return -1 }

func (s *indexSource) Fetch(size int) int {
	if s.next >= s.n {
		s.fetched = nil
		return 0
	}
	remaining := s.n - s.next
	take := s.chunkSize
	if take > remaining {
		take = remaining
	}
	s.fetched = make([]int, take)
	for i := 0; i < take; i++ {
		s.fetched[i] = s.next + i
	}
	s.next += take
	return take
}

func (s *indexSource) Data() interface{} { return s.fetched }
