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

package pmodel

import "fmt"

// builtinNames lists the models compiled into the binary, keyed by
// name, so the binary basecalls out of the box with no external model
// files.
var builtinNames = []string{"builtin_template", "builtin_complement"}
var builtinStrands = []Strand{Template, Complement}

// Builtin returns a copy of the compiled-in model with the given name.
func Builtin(name string) (*Model, error) {
	for i, n := range builtinNames {
		if n == name {
			return buildBuiltin(n, builtinStrands[i]), nil
		}
	}
	return nil, fmt.Errorf("pmodel: no builtin model named %q", name)
}

// BuiltinNames returns the names of every compiled-in model.
func BuiltinNames() []string {
	out := make([]string, len(builtinNames))
	copy(out, builtinNames)
	return out
}

// BuiltinModels loads every compiled-in model, keyed by name.
func BuiltinModels() map[string]*Model {
	out := make(map[string]*Model, len(builtinNames))
	for i, n := range builtinNames {
		out[n] = buildBuiltin(n, builtinStrands[i])
	}
	return out
}

// buildBuiltin procedurally derives a plausible pore model from each
// k-mer's base composition: current level rises with GC content and
// wobbles with the k-mer's low bits, standard deviations are held to a
// narrow, always-positive band. This is not calibrated against a real
// pore's chemistry; it exists so the binary has default models to
// basecall against without any external file.
func buildBuiltin(name string, strand Strand) *Model {
	m := New(name, strand)
	for id := range m.Entries {
		gc := gcContent(id)
		mean := 40.0 + 8.0*gc + float64(id&7)*0.1
		stdv := 1.0 + 0.2*gc
		meanSD := 1.5 + 0.1*gc
		stdvSD := 0.3 + 0.05*gc
		if strand == Complement {
			mean = 42.0 + 7.0*gc - float64(id&7)*0.1
		}
		m.Entries[id] = Entry{Mean: mean, Stdv: stdv, MeanSD: meanSD, StdvSD: stdvSD}
	}
	m.recomputeStatistics()
	return m
}

// gcContent returns the fraction of G/C bases (id bit patterns 01, 10)
// in the K-length k-mer encoded by id.
func gcContent(id int) float64 {
	count := 0
	for i := 0; i < K; i++ {
		if base := id & 3; base == 1 || base == 2 {
			count++
		}
		id >>= 2
	}
	return float64(count) / float64(K)
}
