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

// Package forwardback implements the sum-product forward/backward
// dynamic program: total sequence log-likelihood and posterior
// state occupancy, both used as the trainer's EM weights.
package forwardback

import (
	"math"

	"github.com/raj347/nanocall/events"
	"github.com/raj347/nanocall/logmath"
	"github.com/raj347/nanocall/pmodel"
	"github.com/raj347/nanocall/transitions"
)

// Result holds the filled alpha/beta tables and the total
// log-likelihood Z.
type Result struct {
	numStates int
	numEvents int
	alpha     []float64
	beta      []float64

	Z float64
}

func (r *Result) idx(t, j int) int { return t*r.numStates + j }

// Alpha returns the forward log-probability of being in state j after
// having generated events[0:t+1].
func (r *Result) Alpha(t, j int) float64 { return r.alpha[r.idx(t, j)] }

// Beta returns the backward log-probability of generating
// events[t+1:] given state j at time t.
func (r *Result) Beta(t, j int) float64 { return r.beta[r.idx(t, j)] }

// Posterior returns log P(state j at time t | all events), the EM
// weight the trainer accumulates sufficient statistics with.
func (r *Result) Posterior(t, j int) float64 {
	return r.Alpha(t, j) + r.Beta(t, j) - r.Z
}

// Run fills alpha and beta over evs against model and trans, and
// computes the total log-likelihood Z. Both tables are single flat
// row-major allocations, matching viterbi.Fill's layout.
func Run(model *pmodel.Model, trans *transitions.Table, evs events.Sequence) *Result {
	s := trans.NumStates()
	t := evs.Len()
	r := &Result{
		numStates: s,
		numEvents: t,
		alpha:     make([]float64, t*s),
		beta:      make([]float64, t*s),
	}
	if t == 0 {
		r.Z = logmath.NegInf
		return r
	}

	logUniform := -math.Log(float64(s))
	for j := 0; j < s; j++ {
		r.alpha[r.idx(0, j)] = logUniform + model.EmissionLogPDF(j, evs.Events[0])
	}
	for ti := 1; ti < t; ti++ {
		ev := evs.Events[ti]
		for j := 0; j < s; j++ {
			terms := make([]float64, 0, len(trans.Predecessors(j)))
			for _, e := range trans.Predecessors(j) {
				terms = append(terms, r.Alpha(ti-1, e.Src)+e.LogP)
			}
			r.alpha[r.idx(ti, j)] = logmath.LogSumExp(terms) + model.EmissionLogPDF(j, ev)
		}
	}

	for j := 0; j < s; j++ {
		r.beta[r.idx(t-1, j)] = 0
	}
	for ti := t - 2; ti >= 0; ti-- {
		next := evs.Events[ti+1]
		for i := 0; i < s; i++ {
			succ := trans.Successors(i)
			terms := make([]float64, 0, len(succ))
			for _, e := range succ {
				terms = append(terms, e.LogP+model.EmissionLogPDF(e.Dst, next)+r.Beta(ti+1, e.Dst))
			}
			r.beta[r.idx(ti, i)] = logmath.LogSumExp(terms)
		}
	}

	final := make([]float64, s)
	for j := 0; j < s; j++ {
		final[j] = r.Alpha(t-1, j)
	}
	r.Z = logmath.LogSumExp(final)
	return r
}
