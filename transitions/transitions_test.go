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

package transitions

import (
	"bytes"
	"math"
	"testing"

	"github.com/raj347/nanocall/pmodel"
)

func TestComputeRowsSumToOneWithZeroCutoff(t *testing.T) {
	tbl := Compute(0.1, 0.1, 0)
	for i := 0; i < tbl.NumStates(); i++ {
		var sum float64
		for _, e := range tbl.Successors(i) {
			sum += math.Exp(e.LogP)
		}
		if math.Abs(sum-1) > 1e-6 {
			t.Fatalf("state %d: row sums to %v, want 1", i, sum)
		}
	}
}

func TestComputeNoSkipNoStayOnlyOneStepSuccessors(t *testing.T) {
	tbl := Compute(0, 0, 0)
	for i := 0; i < tbl.NumStates(); i++ {
		for _, e := range tbl.Successors(i) {
			if e.Dst == i {
				t.Fatalf("state %d: unexpected self-loop with pStay=0", i)
			}
		}
		if len(tbl.Successors(i)) != 4 {
			t.Fatalf("state %d: got %d successors, want 4 (one-step only)", i, len(tbl.Successors(i)))
		}
	}
}

func TestPredecessorsAgreeWithSuccessors(t *testing.T) {
	tbl := Compute(0.1, 0.1, 0.001)
	for i := 0; i < tbl.NumStates(); i++ {
		for _, e := range tbl.Successors(i) {
			found := false
			for _, p := range tbl.Predecessors(e.Dst) {
				if p.Src == i && math.Abs(p.LogP-e.LogP) < 1e-12 {
					found = true
					break
				}
			}
			if !found {
				t.Fatalf("successor %d->%d (logp %v) missing from predecessor index", i, e.Dst, e.LogP)
			}
		}
	}
}

func TestLogPMatchesSuccessors(t *testing.T) {
	tbl := Compute(0.1, 0.1, 0.001)
	for _, e := range tbl.Successors(0) {
		if got := tbl.LogP(0, e.Dst); got != e.LogP {
			t.Errorf("LogP(0,%d) = %v, want %v", e.Dst, got, e.LogP)
		}
	}
	if got := tbl.LogP(0, -1); !math.IsInf(got, -1) {
		t.Errorf("LogP for absent transition = %v, want -Inf", got)
	}
}

func TestLoadWriteRoundTrip(t *testing.T) {
	orig := Compute(0.1, 0.1, 0.01)
	var buf bytes.Buffer
	if _, err := orig.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	loaded, err := Load("roundtrip", bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded.Triples()) != len(orig.Triples()) {
		t.Fatalf("triple count mismatch: %d vs %d", len(loaded.Triples()), len(orig.Triples()))
	}
}

func TestLoadRejectsMalformedRow(t *testing.T) {
	kmer := pmodel.KmerString(0)
	if _, err := Load("bad", bytes.NewReader([]byte(kmer+"\tonly-two-fields\n"))); err == nil {
		t.Fatal("expected error for wrong field count")
	}
}
