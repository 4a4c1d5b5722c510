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

package events

import "testing"

func sampleSequence() Sequence {
	return New([]Event{
		{Mean: 10, Stdv: 1, Start: 0, Length: 1},
		{Mean: 20, Stdv: 1, Start: 5, Length: 1},
		{Mean: 30, Stdv: 1, Start: 10, Length: 1},
	})
}

func TestApplyDriftCorrectionZeroIsIdentity(t *testing.T) {
	s := sampleSequence()
	before := append([]Event(nil), s.Events...)
	s = s.ApplyDriftCorrection(0)
	for i, e := range s.Events {
		if e != before[i] {
			t.Fatalf("event %d changed under zero drift correction: %+v vs %+v", i, e, before[i])
		}
	}
}

func TestApplyDriftCorrectionSubtractsDriftTimesStart(t *testing.T) {
	s := sampleSequence()
	s = s.ApplyDriftCorrection(0.5)
	want := []float64{10 - 0.5*0, 20 - 0.5*5, 30 - 0.5*10}
	for i, e := range s.Events {
		if e.Mean != want[i] {
			t.Errorf("event %d mean = %v, want %v", i, e.Mean, want[i])
		}
	}
}

func TestCopyIsIndependent(t *testing.T) {
	s := sampleSequence()
	c := s.Copy()
	c.Events[0].Mean = 999
	if s.Events[0].Mean == 999 {
		t.Fatal("Copy shares backing array with the original")
	}
}

func TestMeanStdv(t *testing.T) {
	s := sampleSequence()
	mean, stdv := s.MeanStdv()
	if mean != 20 {
		t.Errorf("mean = %v, want 20", mean)
	}
	if stdv <= 0 {
		t.Errorf("stdv = %v, want > 0", stdv)
	}
}
