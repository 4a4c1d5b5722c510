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

package forwardback

import (
	"math"
	"testing"

	"github.com/raj347/nanocall/events"
	"github.com/raj347/nanocall/pmodel"
	"github.com/raj347/nanocall/transitions"
	"github.com/raj347/nanocall/viterbi"
)

func sampleEvents(m *pmodel.Model) events.Sequence {
	return events.New([]events.Event{
		{Mean: m.Entries[0].Mean, Stdv: m.Entries[0].StdvSD, Start: 0, Length: 1},
		{Mean: m.Entries[5].Mean, Stdv: m.Entries[5].StdvSD, Start: 1, Length: 1},
		{Mean: m.Entries[42].Mean, Stdv: m.Entries[42].StdvSD, Start: 2, Length: 1},
		{Mean: m.Entries[100].Mean, Stdv: m.Entries[100].StdvSD, Start: 3, Length: 1},
	})
}

func TestZAgreesWithAlphaBetaAtAnyTimestep(t *testing.T) {
	m, err := pmodel.Builtin("builtin_template")
	if err != nil {
		t.Fatalf("Builtin: %v", err)
	}
	trans := transitions.Compute(0.1, 0.4, 0.001)
	evs := sampleEvents(m)
	r := Run(m, trans, evs)

	for _, ti := range []int{0, 1, 2, 3} {
		var terms []float64
		for j := 0; j < trans.NumStates(); j++ {
			terms = append(terms, r.Alpha(ti, j)+r.Beta(ti, j))
		}
		got := logSumExp(terms)
		if math.Abs(got-r.Z) > 1e-6 {
			t.Errorf("timestep %d: alpha+beta sum = %v, want Z = %v", ti, got, r.Z)
		}
	}
}

func TestViterbiPathAtMostForwardBackwardZ(t *testing.T) {
	m, err := pmodel.Builtin("builtin_template")
	if err != nil {
		t.Fatalf("Builtin: %v", err)
	}
	trans := transitions.Compute(0.1, 0.4, 0.001)
	evs := sampleEvents(m)

	fb := Run(m, trans, evs)
	vit := viterbi.Fill(m, trans, evs)

	if vit.PathLogProbability > fb.Z+1e-9 {
		t.Errorf("Viterbi path log-probability %v exceeds ForwardBackward Z %v", vit.PathLogProbability, fb.Z)
	}
}

func TestEmptySequenceHasNegInfZ(t *testing.T) {
	m, err := pmodel.Builtin("builtin_template")
	if err != nil {
		t.Fatalf("Builtin: %v", err)
	}
	trans := transitions.Compute(0.1, 0.4, 0.001)
	r := Run(m, trans, events.New(nil))
	if !math.IsInf(r.Z, -1) {
		t.Errorf("Z = %v, want -Inf for empty sequence", r.Z)
	}
}

func logSumExp(xs []float64) float64 {
	max := math.Inf(-1)
	for _, x := range xs {
		if x > max {
			max = x
		}
	}
	if math.IsInf(max, -1) {
		return max
	}
	var sum float64
	for _, x := range xs {
		sum += math.Exp(x - max)
	}
	return max + math.Log(sum)
}
