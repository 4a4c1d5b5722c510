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

// Package transitions implements the sparse k-mer to k-mer transition
// matrix in log-space, built either from (p_skip, p_stay, cutoff) or
// loaded from an external stream.
package transitions

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"

	"github.com/raj347/nanocall/internal"
	"github.com/raj347/nanocall/logmath"
	"github.com/raj347/nanocall/pmodel"
)

// Edge is one sparse transition: destination state and its log
// probability.
type Edge struct {
	Dst   int
	LogP  float64
	Src   int
}

// Table is a sparse, row-major transition matrix in log-space, indexed
// by source state. It also carries the reverse (predecessor) adjacency
// list so the forward pass (iterates predecessors) and the backward
// pass (iterates successors) never walk the dense S x S matrix.
type Table struct {
	numStates    int
	successors   [][]Edge
	predecessors [][]Edge
}

// NumStates returns the state-space width the table was built for.
func (t *Table) NumStates() int { return t.numStates }

// Successors returns the sparse list of (dst, log_p) pairs leaving
// state i.
func (t *Table) Successors(i int) []Edge { return t.successors[i] }

// Predecessors returns the sparse list of (src, log_p) pairs entering
// state j; Edge.Dst is set to j for uniformity with Successors, and
// Edge.Src holds the predecessor's state id.
func (t *Table) Predecessors(j int) []Edge { return t.predecessors[j] }

// LogP returns the log-probability of transitioning from i to j, or
// logmath.NegInf if no such transition exists.
func (t *Table) LogP(i, j int) float64 {
	for _, e := range t.successors[i] {
		if e.Dst == j {
			return e.LogP
		}
	}
	return logmath.NegInf
}

// Triples returns every (src, dst, log_p) transition as a flat slice,
// used by callers (e.g. stats/debug output) that want to iterate the
// whole table without caring about direction.
func (t *Table) Triples() []Edge {
	var out []Edge
	for src, edges := range t.successors {
		for _, e := range edges {
			out = append(out, Edge{Src: src, Dst: e.Dst, LogP: e.LogP})
		}
	}
	return out
}

// Compute builds a transition table over pmodel.NumStates states from
// three scalars:
//
//   - pStay is the self-loop mass.
//   - pSkip is the total mass on "skip >= 1" transitions, geometrically
//     distributed over skip lengths 1, 2, ...: a k-mer transitions to
//     each of its 4 one-skip successors with equal mass under
//     (1-pStay-pSkip); to its 4^2 two-skip successors with total mass
//     pSkip*(1-pSkip); and each further skip length carries pSkip times
//     the previous length's mass.
//   - cutoff drops any transition with linear probability below it, and
//     any transition with zero probability; the remaining masses are
//     renormalized to sum to 1 per row.
func Compute(pSkip, pStay, cutoff float64) *Table {
	n := pmodel.NumStates
	t := &Table{numStates: n, successors: make([][]Edge, n), predecessors: make([][]Edge, n)}

	maxSkip := pmodel.K // beyond this, 4^skip successors dilute mass below any sane cutoff
	for src := 0; src < n; src++ {
		type candidate struct {
			dst int
			p   float64
		}
		var cands []candidate

		cands = append(cands, candidate{dst: src, p: pStay})

		// mass on skip length 1 is (1-pStay-pSkip), split evenly over
		// the 4 one-skip successors; skip length 2 carries
		// pSkip*(1-pSkip) and each further skip length pSkip times the
		// previous length's total mass, split evenly over that length's
		// 4^skip successors.
		massAtSkip := 1 - pStay - pSkip
		for skip := 1; skip <= maxSkip; skip++ {
			nDst := 1 << uint(2*skip) // 4^skip
			perDst := massAtSkip / float64(nDst)
			if perDst <= 0 {
				break
			}
			for k := 0; k < nDst; k++ {
				dst := skipDestination(src, skip, k)
				cands = append(cands, candidate{dst: dst, p: perDst})
			}
			if skip == 1 {
				massAtSkip = pSkip * (1 - pSkip)
			} else {
				massAtSkip *= pSkip
			}
			if massAtSkip < cutoff {
				break
			}
		}

		// merge duplicate destinations (can occur for small K where
		// wraparound of skip windows collides), then apply the cutoff
		// and renormalize.
		byDst := make(map[int]float64, len(cands))
		for _, c := range cands {
			byDst[c.dst] += c.p
		}
		var kept []candidate
		var sum float64
		for dst, p := range byDst {
			if p <= 0 || p < cutoff {
				continue
			}
			kept = append(kept, candidate{dst: dst, p: p})
			sum += p
		}
		if sum <= 0 {
			// degenerate row (cutoff ate everything): fall back to a
			// pure self-loop so every row still sums to 1.
			kept = []candidate{{dst: src, p: 1}}
			sum = 1
		}
		sort.Slice(kept, func(i, j int) bool { return kept[i].dst < kept[j].dst })
		edges := make([]Edge, len(kept))
		for i, c := range kept {
			edges[i] = Edge{Src: src, Dst: c.dst, LogP: math.Log(c.p / sum)}
		}
		t.successors[src] = edges
	}

	t.buildPredecessors()
	return t
}

func (t *Table) buildPredecessors() {
	for src, edges := range t.successors {
		for _, e := range edges {
			t.predecessors[e.Dst] = append(t.predecessors[e.Dst], Edge{Src: src, Dst: e.Dst, LogP: e.LogP})
		}
	}
	for j := range t.predecessors {
		sort.Slice(t.predecessors[j], func(a, b int) bool { return t.predecessors[j][a].Src < t.predecessors[j][b].Src })
	}
}

// skipDestination returns the k-th (0-based, lexicographic in the
// appended bases) state reachable from src by skipping ahead `skip`
// bases: the low (K-skip) bases of src become the high bases of dst,
// and the low `skip` bases of dst range over all 4^skip combinations.
func skipDestination(src, skip, k int) int {
	K := pmodel.K
	if skip >= K {
		return k % pmodel.NumStates
	}
	shifted := (src << uint(2*skip)) & (pmodel.NumStates - 1)
	return shifted | k
}

// ParseError reports a malformed transition file.
type ParseError struct {
	Filename string
	Line     int
	Text     string
	Reason   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %s: %q", e.Filename, e.Line, e.Reason, e.Text)
}

// Load parses a transition table from r: rows "src_kmer dst_kmer
// log_p", replacing the computed table entirely. The stream is
// transparently unwrapped if gzip/bgzf-compressed.
func Load(filename string, r io.Reader) (*Table, error) {
	stream, err := internal.HandleCompressed(r)
	if err != nil {
		return nil, err
	}
	n := pmodel.NumStates
	t := &Table{numStates: n, successors: make([][]Edge, n), predecessors: make([][]Edge, n)}
	scanner := bufio.NewScanner(stream)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		fields := bytes.Fields(line)
		if len(fields) != 3 {
			return nil, &ParseError{Filename: filename, Line: lineNo, Text: string(line), Reason: "expected 3 fields"}
		}
		src, err := pmodel.KmerID(string(fields[0]))
		if err != nil {
			return nil, &ParseError{Filename: filename, Line: lineNo, Text: string(line), Reason: err.Error()}
		}
		dst, err := pmodel.KmerID(string(fields[1]))
		if err != nil {
			return nil, &ParseError{Filename: filename, Line: lineNo, Text: string(line), Reason: err.Error()}
		}
		logp, err := strconv.ParseFloat(string(fields[2]), 64)
		if err != nil || math.IsNaN(logp) {
			return nil, &ParseError{Filename: filename, Line: lineNo, Text: string(line), Reason: "non-numeric log probability"}
		}
		t.successors[src] = append(t.successors[src], Edge{Src: src, Dst: dst, LogP: logp})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	for src := range t.successors {
		sort.Slice(t.successors[src], func(a, b int) bool { return t.successors[src][a].Dst < t.successors[src][b].Dst })
	}
	t.buildPredecessors()
	return t, nil
}

// WriteTo serializes t as "src_kmer dst_kmer log_p" rows, one per
// sparse entry, sorted by (src, dst).
func (t *Table) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var total int64
	for src, edges := range t.successors {
		for _, e := range edges {
			n, err := fmt.Fprintf(bw, "%s\t%s\t%.17g\n", pmodel.KmerString(src), pmodel.KmerString(e.Dst), e.LogP)
			total += int64(n)
			if err != nil {
				return total, err
			}
		}
	}
	if err := bw.Flush(); err != nil {
		return total, err
	}
	return total, nil
}
