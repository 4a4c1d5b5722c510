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

package read

import (
	"strings"
	"testing"

	"github.com/raj347/nanocall/events"
	"github.com/raj347/nanocall/pmodel"
	"github.com/raj347/nanocall/transitions"
)

// fakeHandle is a minimal in-memory container.ReadHandle for tests.
type fakeHandle struct {
	id, base   string
	evs        [2]events.Sequence
	persisted  map[int]map[string]pmodel.Params
	loadCalled bool
	dropCalled bool
}

func (h *fakeHandle) ReadID() string       { return h.id }
func (h *fakeHandle) BaseFileName() string { return h.base }
func (h *fakeHandle) HaveEDEvents() bool   { return true }
func (h *fakeHandle) StrandBounds() [4]int {
	return [4]int{0, len(h.evs[0].Events), 0, len(h.evs[1].Events)}
}
func (h *fakeHandle) LoadEvents() error { h.loadCalled = true; return nil }
func (h *fakeHandle) PersistedParams() map[int]map[string]pmodel.Params {
	return h.persisted
}
func (h *fakeHandle) DropEvents() { h.dropCalled = true }
func (h *fakeHandle) Events(strand int) events.Sequence { return h.evs[strand] }

func syntheticEvents(m *pmodel.Model, kmers []int) events.Sequence {
	evs := make([]events.Event, len(kmers))
	for i, k := range kmers {
		e := m.Entries[k]
		evs[i] = events.Event{Mean: e.Mean, Stdv: e.Stdv, Start: float64(i), Length: 1}
	}
	return events.New(evs)
}

func testModels(t *testing.T) map[string]*pmodel.Model {
	t.Helper()
	tmpl, err := pmodel.Builtin("builtin_template")
	if err != nil {
		t.Fatalf("Builtin(template): %v", err)
	}
	comp, err := pmodel.Builtin("builtin_complement")
	if err != nil {
		t.Fatalf("Builtin(complement): %v", err)
	}
	return map[string]*pmodel.Model{
		"builtin_template":   tmpl,
		"builtin_complement": comp,
	}
}

func testTransitions(t *testing.T, models map[string]*pmodel.Model) *transitions.Table {
	t.Helper()
	return transitions.Compute(0.1, 0.4, 0.0)
}

func TestNewSummarySeedsParamsFromPersisted(t *testing.T) {
	persisted := map[int]map[string]pmodel.Params{
		0: {"builtin_template": {Shift: 1, Scale: 2, Var: 1, ScaleSD: 1, VarSD: 1}},
	}
	h := &fakeHandle{id: "r1", base: "f1", persisted: persisted}
	rs := NewSummary(h)
	got := rs.Params[0]["builtin_template"]
	if got.Shift != 1 || got.Scale != 2 {
		t.Fatalf("Params[0][builtin_template] = %+v, want Shift=1 Scale=2", got)
	}
}

func TestTrainingWindowsOverlapOnShortReads(t *testing.T) {
	evs := make([]events.Event, 10)
	seq := events.New(evs)
	prefix, suffix := trainingWindows(seq, 100)
	if prefix.Len() != 5 || suffix.Len() != 5 {
		t.Fatalf("prefix.Len()=%d suffix.Len()=%d, want 5 and 5", prefix.Len(), suffix.Len())
	}
}

func TestTrainingWindowsEmptyForZeroLength(t *testing.T) {
	prefix, suffix := trainingWindows(events.New(nil), 100)
	if prefix.Len() != 0 || suffix.Len() != 0 {
		t.Fatalf("expected empty windows for empty sequence")
	}
}

func TestRescaleSingleStrandLoadsAndDropsEvents(t *testing.T) {
	models := testModels(t)
	trans := testTransitions(t, models)

	tmpl := models["builtin_template"]
	kmers := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}
	h := &fakeHandle{id: "r1", base: "f1"}
	h.evs[0] = syntheticEvents(tmpl, kmers)

	rs := NewSummary(h)
	cfg := Config{MinReadLen: 1, ScaleNumEvents: 8, ScaleMaxRounds: 3}
	if err := Rescale(rs, models, trans, cfg); err != nil {
		t.Fatalf("Rescale: %v", err)
	}
	if !h.loadCalled || !h.dropCalled {
		t.Fatalf("LoadEvents/DropEvents not both called: load=%v drop=%v", h.loadCalled, h.dropCalled)
	}
	if _, ok := rs.Params[0]["builtin_template"]; !ok {
		t.Fatalf("Params[0] missing builtin_template entry after Rescale")
	}
}

func TestRescaleSkipsStrandBelowMinReadLen(t *testing.T) {
	models := testModels(t)
	trans := testTransitions(t, models)

	h := &fakeHandle{id: "r1", base: "f1"}
	h.evs[0] = events.New(make([]events.Event, 2))

	rs := NewSummary(h)
	cfg := Config{MinReadLen: 50, ScaleNumEvents: 8, ScaleMaxRounds: 3}
	if err := Rescale(rs, models, trans, cfg); err != nil {
		t.Fatalf("Rescale: %v", err)
	}
	if len(rs.Params[0]) != 0 {
		t.Fatalf("Params[0] should stay empty when strand is too short, got %v", rs.Params[0])
	}
}

func TestBasecallPicksHighestLogProbabilityAndSetsPreferred(t *testing.T) {
	models := testModels(t)
	trans := testTransitions(t, models)

	tmpl := models["builtin_template"]
	kmers := []int{0, 1, 2, 3, 4, 5, 6, 7}
	h := &fakeHandle{id: "readA", base: "fileA"}
	h.evs[0] = syntheticEvents(tmpl, kmers)

	rs := NewSummary(h)
	cfg := Config{MinReadLen: 1, FastaLineWidth: 60}
	// Restrict candidates to the template model only, so the winner is
	// deterministic without depending on the complement model's fit to
	// unrelated events.
	rs.Preferred[0] = "builtin_template"

	buf, err := Basecall(rs, models, trans, cfg, nil)
	if err != nil {
		t.Fatalf("Basecall: %v", err)
	}
	out := string(buf)
	if !strings.HasPrefix(out, ">readA:fileA:0\n") {
		t.Fatalf("output header = %q, want prefix >readA:fileA:0", out)
	}
	if rs.Preferred[0] != "builtin_template" {
		t.Fatalf("Preferred[0] = %q, want builtin_template", rs.Preferred[0])
	}
}

func TestBasecallSkipsStrandWithNoQualifyingEvents(t *testing.T) {
	models := testModels(t)
	trans := testTransitions(t, models)

	h := &fakeHandle{id: "r1", base: "f1"}
	rs := NewSummary(h)
	cfg := Config{MinReadLen: 10}

	buf, err := Basecall(rs, models, trans, cfg, nil)
	if err != nil {
		t.Fatalf("Basecall: %v", err)
	}
	if len(buf) != 0 {
		t.Fatalf("expected no output for a read with no events, got %q", string(buf))
	}
}
