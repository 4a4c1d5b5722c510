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
	"bytes"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/raj347/nanocall/container"
	"github.com/raj347/nanocall/internal"
	"github.com/raj347/nanocall/pfor"
	"github.com/raj347/nanocall/read"
	"github.com/raj347/nanocall/seqio"
)

// BasecallHelp is the help string for the basecall command.
const BasecallHelp = "\nbasecall parameters:\n" +
	"nanocall basecall input-path\n" +
	"[--model strand:path] (repeatable)\n" +
	"[--trans path]\n" +
	"[--output path]\n" +
	"[--stats path]\n" +
	"[--min-read-len n]\n" +
	"[--scale-num-events n]\n" +
	"[--scale-max-rounds n]\n" +
	"[--scale-min-fit-progress f]\n" +
	"[--scale-strands-together]\n" +
	"[--scale-select-model-single-round]\n" +
	"[--accurate]\n" +
	"[--scale-only]\n" +
	"[--pr-skip f]\n" +
	"[--pr-stay f]\n" +
	"[--pr-cutoff f]\n" +
	"[--threads n]\n" +
	"[--fasta-line-width n]\n"

// Basecall implements the basecall command: it discovers reads under
// the given input path, optionally rescales each read's pore model
// parameters against a shortlist of candidate models, then basecalls
// every qualifying strand and writes fasta-style records.
func Basecall() error {
	var (
		models                      modelFlag
		transFile                   string
		outputPath                  string
		statsPath                   string
		minReadLen                  int
		scaleNumEvents              int
		scaleMaxRounds              int
		scaleMinFitProgress         float64
		scaleStrandsTogether        bool
		scaleSelectModelSingleRound bool
		accurate                    bool
		scaleOnly                   bool
		prSkip, prStay, prCutoff    float64
		threads                     int
		fastaLineWidth              int
	)

	var flags flag.FlagSet
	flags.Var(&models, "model", "pore model, formatted strand:path (repeatable)")
	flags.StringVar(&transFile, "trans", "", "custom transition table file")
	flags.StringVar(&outputPath, "output", "", "output sequence file (stdout if empty)")
	flags.StringVar(&statsPath, "stats", "", "stats TSV output file")
	flags.IntVar(&minReadLen, "min-read-len", 100, "minimum events per strand to consider")
	flags.IntVar(&scaleNumEvents, "scale-num-events", 200, "total events used for scaling, split between prefix/suffix")
	flags.IntVar(&scaleMaxRounds, "scale-max-rounds", 10, "hard cap on EM training rounds")
	flags.Float64Var(&scaleMinFitProgress, "scale-min-fit-progress", 1.0, "early-stop threshold on fit delta")
	flags.BoolVar(&scaleStrandsTogether, "scale-strands-together", false, "share scaling params across strands, select joint model")
	flags.BoolVar(&scaleSelectModelSingleRound, "scale-select-model-single-round", false, "pick the best model after round 0, then converge")
	flags.BoolVar(&accurate, "accurate", false, "enable the rescaling pass")
	flags.BoolVar(&scaleOnly, "scale-only", false, "skip basecalling")
	flags.Float64Var(&prSkip, "pr-skip", 0.1, "transition builder: probability of a >1-step skip")
	flags.Float64Var(&prStay, "pr-stay", 0.1, "transition builder: probability of a self-loop")
	flags.Float64Var(&prCutoff, "pr-cutoff", 0.001, "transition builder: pruning cutoff")
	flags.IntVar(&threads, "threads", 0, "worker thread count (0 lets the runtime pick)")
	flags.IntVar(&fastaLineWidth, "fasta-line-width", seqio.DefaultLineWidth, "output wrap width")

	parseFlags(flags, 3, BasecallHelp)

	inputPath := getFilename(os.Args[2], BasecallHelp)

	if !checkExist("", inputPath) {
		return fmt.Errorf("cmd: invalid input path %q", inputPath)
	}

	poreModels, err := loadModels(models)
	if err != nil {
		return err
	}
	trans, err := loadTransitions(transFile, prSkip, prStay, prCutoff)
	if err != nil {
		return err
	}

	cfg := read.Config{
		MinReadLen:                  minReadLen,
		ScaleNumEvents:              scaleNumEvents,
		ScaleMaxRounds:              scaleMaxRounds,
		ScaleMinFitProgress:         scaleMinFitProgress,
		ScaleStrandsTogether:        scaleStrandsTogether,
		ScaleSelectModelSingleRound: scaleSelectModelSingleRound,
		Accurate:                    accurate,
		ScaleOnly:                   scaleOnly,
		FastaLineWidth:              fastaLineWidth,
	}

	cont, err := container.Open(inputPath)
	if err != nil {
		return err
	}
	defer internal.Close(cont)

	handles, err := cont.Reads()
	if err != nil {
		return err
	}
	if len(handles) == 0 {
		return fmt.Errorf("cmd: no input reads found under %q", inputPath)
	}

	summaries := make([]*read.Summary, len(handles))
	for i, h := range handles {
		summaries[i] = read.NewSummary(h)
	}

	if cfg.ScalingEnabled() {
		err := pfor.Run(pfor.Config{Threads: threads}, len(summaries), func(i int, _ *bytes.Buffer) {
			if err := read.Rescale(summaries[i], poreModels, trans, cfg); err != nil {
				log.Printf("rescale read=%s: %v", summaries[i].ID, err)
			}
		}, logProgress("rescaling"))
		if err != nil {
			return err
		}
	}

	var output *os.File
	if outputPath == "" {
		output = os.Stdout
	} else {
		output, err = internal.FileCreate(outputPath)
		if err != nil {
			return err
		}
		defer internal.Close(output)
	}

	if !cfg.ScaleOnly {
		err := pfor.Run(pfor.Config{Threads: threads, Output: output}, len(summaries), func(i int, buf *bytes.Buffer) {
			out, err := read.Basecall(summaries[i], poreModels, trans, cfg, nil)
			if err != nil {
				log.Printf("basecall read=%s: %v", summaries[i].ID, err)
				return
			}
			buf.Write(out)
		}, logProgress("basecalling"))
		if err != nil {
			return err
		}
	}

	if statsPath != "" {
		return writeStats(statsPath, summaries)
	}
	return nil
}

func logProgress(phase string) func(done int, elapsed time.Duration) {
	return func(done int, elapsed time.Duration) {
		log.Printf("%s: %d reads done in %v", phase, done, elapsed)
	}
}

func writeStats(path string, summaries []*read.Summary) error {
	f, err := internal.FileCreate(path)
	if err != nil {
		return err
	}
	defer internal.Close(f)

	var buf []byte
	for _, rs := range summaries {
		rec := seqio.StatsRecord{
			ReadID:       rs.ID,
			HaveEvents:   rs.Container.HaveEDEvents(),
			StrandBounds: rs.Container.StrandBounds(),
			Preferred:    rs.Preferred,
		}
		for strand := 0; strand < 2; strand++ {
			for name, p := range rs.Params[strand] {
				rec.Fits = append(rec.Fits, seqio.ModelFit{Strand: strand, Model: name, Params: p, Fit: rs.Fits[strand][name]})
			}
		}
		buf = seqio.WriteStatsRecord(buf, rec)
	}
	_, err = f.Write(buf)
	return err
}
