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

package seqio

import (
	"strings"
	"testing"

	"github.com/raj347/nanocall/pmodel"
)

func TestWriteRecordWrapsAtLineWidth(t *testing.T) {
	seq := strings.Repeat("ACGT", 10) // 40 bases
	out := WriteRecord(nil, "read1:file1:0", seq, 10)
	s := string(out)
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if lines[0] != ">read1:file1:0" {
		t.Fatalf("header = %q, want >read1:file1:0", lines[0])
	}
	for _, l := range lines[1:] {
		if len(l) > 10 {
			t.Fatalf("line %q exceeds width 10", l)
		}
	}
	if len(lines) != 5 { // header + 4 wrapped lines
		t.Fatalf("len(lines) = %d, want 5", len(lines))
	}
}

func TestWriteRecordDefaultWidth(t *testing.T) {
	seq := strings.Repeat("A", 200)
	out := WriteRecord(nil, "h", seq, 0)
	lines := strings.Split(strings.TrimRight(string(out), "\n"), "\n")
	if len(lines[1]) != DefaultLineWidth {
		t.Fatalf("first body line length = %d, want %d", len(lines[1]), DefaultLineWidth)
	}
}

func TestWriteStatsRecordWithoutFits(t *testing.T) {
	rec := StatsRecord{ReadID: "r1", HaveEvents: false, StrandBounds: [4]int{0, 0, 0, 0}}
	out := WriteStatsRecord(nil, rec)
	if !strings.Contains(string(out), "r1\tfalse") {
		t.Fatalf("output = %q, missing expected prefix", string(out))
	}
}

func TestWriteStatsRecordWithFits(t *testing.T) {
	rec := StatsRecord{
		ReadID:       "r2",
		HaveEvents:   true,
		StrandBounds: [4]int{0, 100, 0, 95},
		Preferred:    [2]string{"builtin_template", "builtin_complement"},
		Fits: []ModelFit{
			{Strand: 0, Model: "builtin_template", Params: pmodel.IdentityParams(), Fit: -123.4},
		},
	}
	out := WriteStatsRecord(nil, rec)
	if !strings.Contains(string(out), "builtin_template") {
		t.Fatalf("output missing model name: %q", string(out))
	}
}
