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

package cmd

import (
	"fmt"
	"strings"

	"github.com/raj347/nanocall/internal"
	"github.com/raj347/nanocall/pmodel"
	"github.com/raj347/nanocall/transitions"
)

// modelFlag accumulates repeated -model strand:path arguments.
type modelFlag []string

func (m *modelFlag) String() string {
	if m == nil {
		return ""
	}
	return strings.Join(*m, ",")
}

func (m *modelFlag) Set(v string) error {
	*m = append(*m, v)
	return nil
}

// parseModelSpec splits a strand:path argument. A non-numeric strand
// digit panics through internal.ParseInt to the cmd.Main recover
// boundary rather than being reported as an ordinary error here.
func parseModelSpec(spec string) (pmodel.Strand, string, error) {
	parts := strings.SplitN(spec, ":", 2)
	if len(parts) != 2 {
		return 0, "", fmt.Errorf("cmd: malformed -model argument %q, want strand:path", spec)
	}
	n := internal.ParseInt(parts[0], 10, 64)
	if n < 0 || n > 2 {
		return 0, "", fmt.Errorf("cmd: malformed -model strand %q, want 0, 1, or 2", parts[0])
	}
	return pmodel.Strand(n), parts[1], nil
}

// loadModels starts from the compiled-in pore models and adds/overrides
// entries from specs, each formatted strand:path.
func loadModels(specs []string) (map[string]*pmodel.Model, error) {
	models := pmodel.BuiltinModels()
	for _, spec := range specs {
		strand, path, err := parseModelSpec(spec)
		if err != nil {
			return nil, err
		}
		f, err := internal.FileOpen(path)
		if err != nil {
			return nil, err
		}
		m, err := pmodel.Load(path, strand, f)
		closeErr := f.Close()
		if err != nil {
			return nil, err
		}
		if closeErr != nil {
			return nil, closeErr
		}
		models[m.Name] = m
	}
	return models, nil
}

func loadTransitions(path string, prSkip, prStay, prCutoff float64) (*transitions.Table, error) {
	if path == "" {
		return transitions.Compute(prSkip, prStay, prCutoff), nil
	}
	f, err := internal.FileOpen(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return transitions.Load(path, f)
}
