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

// Package pmodel implements the pore model: a per-k-mer emission
// distribution (mean, stdv, mean_sd, stdv_sd), its per-read scaling
// transform, and its plain-text serialization.
package pmodel

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/raj347/nanocall/events"
	"github.com/raj347/nanocall/internal"
	"github.com/raj347/nanocall/logmath"
)

// K is the k-mer length defining the state space; the state space has
// NumStates = 4^K states.
const K = 6

// NumStates is 4^K, the width of every DP table.
var NumStates = pow4(K)

func pow4(k int) int {
	n := 1
	for i := 0; i < k; i++ {
		n *= 4
	}
	return n
}

// Strand tags a model as applying to the template strand, the
// complement strand, or either.
type Strand int

const (
	Template   Strand = 0
	Complement Strand = 1
	Either     Strand = 2
)

// Entry holds the four emission parameters for a single k-mer.
type Entry struct {
	Mean, Stdv, MeanSD, StdvSD float64
}

// Params is the six-parameter per-read scaling transform. Identity is
// the zero value with Scale, Var, ScaleSD, VarSD all set to 1.
type Params struct {
	Shift, Scale, Drift, Var, ScaleSD, VarSD float64
}

// IdentityParams is the no-op scaling transform.
func IdentityParams() Params {
	return Params{Shift: 0, Scale: 1, Drift: 0, Var: 1, ScaleSD: 1, VarSD: 1}
}

// Model is a pore model: NumStates entries indexed by k-mer id, plus a
// strand tag and global mean/stdv summary statistics.
type Model struct {
	Name    string
	Strand  Strand
	Entries []Entry
	mean    float64
	stdv    float64
}

// ParseError reports a malformed pore model file.
type ParseError struct {
	Filename string
	Line     int
	Text     string
	Reason   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %s: %q", e.Filename, e.Line, e.Reason, e.Text)
}

// New allocates a Model with NumStates zeroed entries.
func New(name string, strand Strand) *Model {
	return &Model{Name: name, Strand: strand, Entries: make([]Entry, NumStates)}
}

// Mean returns the model's global mean current level.
func (m *Model) Mean() float64 { return m.mean }

// Stdv returns the model's global stdv of current level.
func (m *Model) Stdv() float64 { return m.stdv }

func (m *Model) recomputeStatistics() {
	var sum, sumsq float64
	n := float64(len(m.Entries))
	for _, e := range m.Entries {
		sum += e.Mean
		sumsq += e.Mean * e.Mean
	}
	m.mean = sum / n
	variance := sumsq/n - m.mean*m.mean
	if variance < 0 {
		variance = 0
	}
	m.stdv = math.Sqrt(variance)
}

// Validate checks the invariants required of a usable pore model: every
// entry has strictly positive Stdv and StdvSD, and there are exactly
// NumStates entries.
func (m *Model) Validate() error {
	if len(m.Entries) != NumStates {
		return fmt.Errorf("pmodel: model %q has %d entries, want %d", m.Name, len(m.Entries), NumStates)
	}
	for i, e := range m.Entries {
		if !(e.Stdv > 0) {
			return fmt.Errorf("pmodel: model %q k-mer %d has non-positive stdv %v", m.Name, i, e.Stdv)
		}
		if !(e.StdvSD > 0) {
			return fmt.Errorf("pmodel: model %q k-mer %d has non-positive stdv_sd %v", m.Name, i, e.StdvSD)
		}
	}
	return nil
}

// Scale returns a new Model with p applied to every entry:
// mean' = scale*mean + shift, stdv' = var*stdv,
// mean_sd' = scale_sd*mean_sd, stdv_sd' = var_sd*stdv_sd.
// The receiver is never mutated.
func (m *Model) Scale(p Params) *Model {
	out := &Model{Name: m.Name, Strand: m.Strand, Entries: make([]Entry, len(m.Entries))}
	for i, e := range m.Entries {
		out.Entries[i] = Entry{
			Mean:   p.Scale*e.Mean + p.Shift,
			Stdv:   p.Var * e.Stdv,
			MeanSD: p.ScaleSD * e.MeanSD,
			StdvSD: p.VarSD * e.StdvSD,
		}
	}
	out.recomputeStatistics()
	return out
}

// EmissionLogPDF is the log-density of observing event ev while in
// k-mer state i: the level term plus the stdv term (included only when
// the model carries a positive StdvSD for that k-mer).
func (m *Model) EmissionLogPDF(state int, ev events.Event) float64 {
	e := m.Entries[state]
	lp := logmath.LogNormalPDF(ev.Mean, e.Mean, e.Stdv)
	if e.StdvSD > 0 {
		lp += logmath.LogNormalPDF(ev.Stdv, e.MeanSD, e.StdvSD)
	}
	return lp
}

// Load reads a pore model from r: one row per k-mer, whitespace
// separated fields {k-mer, mean, stdv, mean_sd, stdv_sd}. Lines starting
// with '#' and blank lines are skipped. The stream is transparently
// unwrapped if gzip/bgzf-compressed.
func Load(name string, strand Strand, r io.Reader) (*Model, error) {
	stream, err := internal.HandleCompressed(r)
	if err != nil {
		return nil, err
	}
	m := New(name, strand)
	seen := make([]bool, NumStates)
	scanner := bufio.NewScanner(stream)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		fields := bytes.Fields(line)
		if len(fields) != 5 {
			return nil, &ParseError{Filename: name, Line: lineNo, Text: string(line), Reason: "expected 5 fields"}
		}
		id, err := KmerID(string(fields[0]))
		if err != nil {
			return nil, &ParseError{Filename: name, Line: lineNo, Text: string(line), Reason: err.Error()}
		}
		mean, err1 := strconv.ParseFloat(string(fields[1]), 64)
		stdv, err2 := strconv.ParseFloat(string(fields[2]), 64)
		meanSD, err3 := strconv.ParseFloat(string(fields[3]), 64)
		stdvSD, err4 := strconv.ParseFloat(string(fields[4]), 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			return nil, &ParseError{Filename: name, Line: lineNo, Text: string(line), Reason: "non-numeric field"}
		}
		if !isFinite(mean) || !isFinite(stdv) || !isFinite(meanSD) || !isFinite(stdvSD) {
			return nil, &ParseError{Filename: name, Line: lineNo, Text: string(line), Reason: "non-finite value"}
		}
		m.Entries[id] = Entry{Mean: mean, Stdv: stdv, MeanSD: meanSD, StdvSD: stdvSD}
		seen[id] = true
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	for id, ok := range seen {
		if !ok {
			return nil, &ParseError{Filename: name, Line: lineNo, Text: kmerString(id), Reason: "missing k-mer row"}
		}
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	m.recomputeStatistics()
	return m, nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// WriteTo serializes m in the same format Load reads: one row per
// k-mer in ascending k-mer id order, five whitespace separated fields.
// Loading a model written by WriteTo reproduces it bit-identically.
func (m *Model) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var total int64
	for id, e := range m.Entries {
		n, err := fmt.Fprintf(bw, "%s\t%.17g\t%.17g\t%.17g\t%.17g\n", kmerString(id), e.Mean, e.Stdv, e.MeanSD, e.StdvSD)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	if err := bw.Flush(); err != nil {
		return total, err
	}
	return total, nil
}

var bases = [4]byte{'A', 'C', 'G', 'T'}

// KmerString returns the K-length base string for a lexicographic k-mer
// id, base A<C<G<T, most significant base first.
func KmerString(id int) string {
	return kmerString(id)
}

func kmerString(id int) string {
	buf := make([]byte, K)
	for i := K - 1; i >= 0; i-- {
		buf[i] = bases[id&3]
		id >>= 2
	}
	return string(buf)
}

// KmerID parses a K-length base string into its lexicographic id.
// Returns an error if the string has the wrong length or contains a
// character other than A, C, G, T (case sensitive).
func KmerID(kmer string) (int, error) {
	if len(kmer) != K {
		return 0, fmt.Errorf("pmodel: k-mer %q has length %d, want %d", kmer, len(kmer), K)
	}
	id := 0
	for i := 0; i < K; i++ {
		id <<= 2
		switch kmer[i] {
		case 'A':
			id |= 0
		case 'C':
			id |= 1
		case 'G':
			id |= 2
		case 'T':
			id |= 3
		default:
			return 0, fmt.Errorf("pmodel: k-mer %q has invalid base %q", kmer, kmer[i])
		}
	}
	return id, nil
}
