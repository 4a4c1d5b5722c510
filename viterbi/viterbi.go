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

// Package viterbi implements the max-product dynamic program that
// decodes the single most probable k-mer path (and its base sequence)
// through an event sequence.
package viterbi

import (
	"math"

	"github.com/raj347/nanocall/events"
	"github.com/raj347/nanocall/logmath"
	"github.com/raj347/nanocall/pmodel"
	"github.com/raj347/nanocall/transitions"
)

// Result holds the filled DP table plus the derived path.
type Result struct {
	numStates int
	numEvents int
	v         []float64
	back      []uint32

	PathLogProbability float64
	path               []int
}

func (r *Result) at(t, j int) float64     { return r.v[t*r.numStates+j] }
func (r *Result) set(t, j int, x float64) { r.v[t*r.numStates+j] = x }
func (r *Result) bp(t, j int) int         { return int(r.back[t*r.numStates+j]) }

// Fill runs the Viterbi recurrence over evs against model and trans,
// returning the filled table together with the most probable path's
// log-probability. The DP table and back-pointer buffer are each a
// single flat allocation, row-major with S contiguous states per row,
// to avoid the allocation churn of a [][]float64.
func Fill(model *pmodel.Model, trans *transitions.Table, evs events.Sequence) *Result {
	s := trans.NumStates()
	t := evs.Len()
	r := &Result{
		numStates: s,
		numEvents: t,
		v:         make([]float64, t*s),
		back:      make([]uint32, t*s),
	}
	if t == 0 {
		r.PathLogProbability = logmath.NegInf
		return r
	}

	logUniform := -math.Log(float64(s))
	for j := 0; j < s; j++ {
		r.set(0, j, logUniform+model.EmissionLogPDF(j, evs.Events[0]))
	}

	for ti := 1; ti < t; ti++ {
		ev := evs.Events[ti]
		for j := 0; j < s; j++ {
			best := logmath.NegInf
			bestI := 0
			for _, e := range trans.Predecessors(j) {
				cand := r.at(ti-1, e.Src) + e.LogP
				if cand > best {
					best = cand
					bestI = e.Src
				}
			}
			r.set(ti, j, best+model.EmissionLogPDF(j, ev))
			r.back[ti*s+j] = uint32(bestI)
		}
	}

	best := logmath.NegInf
	bestJ := 0
	for j := 0; j < s; j++ {
		if v := r.at(t-1, j); v > best {
			best = v
			bestJ = j
		}
	}
	r.PathLogProbability = best
	r.path = r.traceback(bestJ)
	return r
}

func (r *Result) traceback(lastState int) []int {
	path := make([]int, r.numEvents)
	if r.numEvents == 0 {
		return path
	}
	j := lastState
	for ti := r.numEvents - 1; ti >= 0; ti-- {
		path[ti] = j
		if ti > 0 {
			j = r.bp(ti, j)
		}
	}
	return path
}

// Traceback returns the most probable k-mer state at each event index.
func (r *Result) Traceback() []int {
	return r.path
}

// BaseSequence reconstructs the base sequence implied by the k-mer
// path: the first k-mer contributes all K of its bases, and every
// following k-mer contributes only the bases introduced by the skip
// between it and its predecessor (a stay contributes none, a skip of
// length n contributes n+1 new bases read off the low bits of the new
// k-mer, most significant of the new bases first).
func (r *Result) BaseSequence() string {
	if len(r.path) == 0 {
		return ""
	}
	buf := make([]byte, 0, len(r.path)+pmodel.K)
	buf = append(buf, []byte(pmodel.KmerString(r.path[0]))...)
	for i := 1; i < len(r.path); i++ {
		prev, cur := r.path[i-1], r.path[i]
		if prev == cur {
			continue
		}
		skip := skipLength(prev, cur)
		curStr := pmodel.KmerString(cur)
		nNew := skip + 1
		if nNew > pmodel.K {
			nNew = pmodel.K
		}
		buf = append(buf, curStr[pmodel.K-nNew:]...)
	}
	return string(buf)
}

// skipLength recovers how many bases were skipped between prev and cur
// by finding the smallest shift for which prev's low (K-shift) bases
// equal cur's high (K-shift) bases; the skip length is that shift minus
// one (0 for a single-base step). A perfect match at shift 0 would
// mean prev == cur, already handled by the stay check in the caller, so
// this only runs for shift >= 1.
func skipLength(prev, cur int) int {
	for shift := 1; shift <= pmodel.K; shift++ {
		shifted := (prev << uint(2*shift)) & (pmodel.NumStates - 1)
		low := (1 << uint(2*shift)) - 1
		if shifted == cur&^low {
			return shift - 1
		}
	}
	return pmodel.K - 1
}
