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

package viterbi

import (
	"math"
	"testing"

	"github.com/raj347/nanocall/events"
	"github.com/raj347/nanocall/pmodel"
	"github.com/raj347/nanocall/transitions"
)

func flatModel(t *testing.T) *pmodel.Model {
	t.Helper()
	m, err := pmodel.Builtin("builtin_template")
	if err != nil {
		t.Fatalf("Builtin: %v", err)
	}
	return m
}

func TestFillEmptySequence(t *testing.T) {
	m := flatModel(t)
	trans := transitions.Compute(0.1, 0.4, 0.001)
	r := Fill(m, trans, events.New(nil))
	if !math.IsInf(r.PathLogProbability, -1) {
		t.Errorf("PathLogProbability = %v, want -Inf for empty sequence", r.PathLogProbability)
	}
	if r.BaseSequence() != "" {
		t.Errorf("BaseSequence() = %q, want empty", r.BaseSequence())
	}
}

func TestFillProducesFiniteLogProbability(t *testing.T) {
	m := flatModel(t)
	trans := transitions.Compute(0.1, 0.4, 0.001)
	evs := events.New([]events.Event{
		{Mean: m.Entries[0].Mean, Stdv: m.Entries[0].StdvSD, Start: 0, Length: 1},
		{Mean: m.Entries[5].Mean, Stdv: m.Entries[5].StdvSD, Start: 1, Length: 1},
		{Mean: m.Entries[42].Mean, Stdv: m.Entries[42].StdvSD, Start: 2, Length: 1},
	})
	r := Fill(m, trans, evs)
	if math.IsInf(r.PathLogProbability, 0) || math.IsNaN(r.PathLogProbability) {
		t.Fatalf("PathLogProbability = %v, want finite", r.PathLogProbability)
	}
	if len(r.Traceback()) != 3 {
		t.Fatalf("len(Traceback()) = %d, want 3", len(r.Traceback()))
	}
}

func TestBaseSequenceFirstKmerContributesAllBases(t *testing.T) {
	m := flatModel(t)
	trans := transitions.Compute(0, 0, 0)
	evs := events.New([]events.Event{
		{Mean: m.Entries[0].Mean, Stdv: m.Entries[0].StdvSD, Start: 0, Length: 1},
	})
	r := Fill(m, trans, evs)
	if len(r.BaseSequence()) != pmodel.K {
		t.Fatalf("BaseSequence() = %q, want length %d", r.BaseSequence(), pmodel.K)
	}
}

func TestBaseSequenceStayEmitsNoNewBases(t *testing.T) {
	m := flatModel(t)
	trans := transitions.Compute(0.001, 0.9, 0.0001)
	ev := events.Event{Mean: m.Entries[7].Mean, Stdv: m.Entries[7].StdvSD, Start: 0, Length: 1}
	evs := events.New([]events.Event{ev, ev, ev})
	r := Fill(m, trans, evs)
	path := r.Traceback()
	if path[0] == path[1] && path[1] == path[2] {
		if len(r.BaseSequence()) != pmodel.K {
			t.Errorf("stay-only path: BaseSequence() = %q, want length %d", r.BaseSequence(), pmodel.K)
		}
	}
}
