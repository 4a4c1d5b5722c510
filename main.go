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

// nanocall is an offline basecaller for Oxford Nanopore event data: it
// rescales per-read pore model parameters against a shortlist of
// candidate models, then basecalls every qualifying strand with a
// Viterbi decoder over a k-mer hidden Markov model.
package main

import (
	"fmt"
	"os"

	"github.com/raj347/nanocall/cmd"
)

func printHelp() {
	fmt.Fprintln(os.Stderr, "Available commands: basecall")
	fmt.Fprint(os.Stderr, "\n", cmd.BasecallHelp)
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Incorrect number of parameters.")
		printHelp()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "basecall":
		cmd.Main(cmd.Basecall)
	case "help", "-help", "--help", "-h", "--h":
		printHelp()
	default:
		fmt.Fprintln(os.Stderr, "Unknown command:", os.Args[1])
		printHelp()
		os.Exit(1)
	}
}
