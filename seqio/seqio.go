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

// Package seqio writes the two output record formats this tool
// produces: fasta-style basecalled sequences, and tab-separated
// per-read scaling statistics.
package seqio

import (
	"fmt"

	"github.com/raj347/nanocall/pmodel"
)

// DefaultLineWidth is the fasta wrap width used when the caller
// specifies none.
const DefaultLineWidth = 80

// WriteRecord writes one fasta-style record: a ">header" line followed
// by seq wrapped at lineWidth columns. lineWidth <= 0 falls back to
// DefaultLineWidth.
func WriteRecord(buf []byte, header, seq string, lineWidth int) []byte {
	if lineWidth <= 0 {
		lineWidth = DefaultLineWidth
	}
	buf = append(buf, '>')
	buf = append(buf, header...)
	buf = append(buf, '\n')
	for i := 0; i < len(seq); i += lineWidth {
		end := i + lineWidth
		if end > len(seq) {
			end = len(seq)
		}
		buf = append(buf, seq[i:end]...)
		buf = append(buf, '\n')
	}
	return buf
}

// ModelFit is one shortlisted model's final scaling parameters and fit
// for a single strand, as written into a stats record.
type ModelFit struct {
	Strand int
	Model  string
	Params pmodel.Params
	Fit    float64
}

// StatsRecord is the set of per-read fields written by
// WriteStatsRecord.
type StatsRecord struct {
	ReadID       string
	HaveEvents   bool
	StrandBounds [4]int
	Fits         []ModelFit
	Preferred    [2]string
}

// WriteStatsRecord appends a tab-separated stats line for rec to buf.
// One line per (strand, model) entry in rec.Fits shares the read's
// leading identity columns, mirroring how a wide per-read table is
// usually flattened for streaming output.
func WriteStatsRecord(buf []byte, rec StatsRecord) []byte {
	if len(rec.Fits) == 0 {
		buf = appendStatsPrefix(buf, rec)
		buf = append(buf, "\t-\t-\n"...)
		return buf
	}
	for _, mf := range rec.Fits {
		buf = appendStatsPrefix(buf, rec)
		buf = append(buf, '\t')
		buf = append(buf, fmt.Sprintf("%d\t%s\t%.6g\t%.6g\t%.6g\t%.6g\t%.6g\t%.6g\t%.6g",
			mf.Strand, mf.Model, mf.Params.Shift, mf.Params.Scale, mf.Params.Drift,
			mf.Params.Var, mf.Params.ScaleSD, mf.Params.VarSD, mf.Fit)...)
		buf = append(buf, '\n')
	}
	return buf
}

func appendStatsPrefix(buf []byte, rec StatsRecord) []byte {
	buf = append(buf, fmt.Sprintf("%s\t%t\t%d\t%d\t%d\t%d\t%s\t%s",
		rec.ReadID, rec.HaveEvents,
		rec.StrandBounds[0], rec.StrandBounds[1], rec.StrandBounds[2], rec.StrandBounds[3],
		orDash(rec.Preferred[0]), orDash(rec.Preferred[1]))...)
	return buf
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
