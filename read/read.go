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

// Package read orchestrates the two passes a single read goes
// through: rescaling its pore model parameters against a shortlist of
// candidate models, then basecalling each strand against the winner.
package read

import (
	"fmt"
	"log"
	"math"
	"sort"

	"github.com/raj347/nanocall/container"
	"github.com/raj347/nanocall/events"
	"github.com/raj347/nanocall/pmodel"
	"github.com/raj347/nanocall/seqio"
	"github.com/raj347/nanocall/trainer"
	"github.com/raj347/nanocall/transitions"
	"github.com/raj347/nanocall/viterbi"
)

// MeansApartThreshold is the current-level gap, in pA, above which a
// scaled model's mean and a strand's observed event mean are flagged
// as suspiciously far apart. Held as a constant pending real-world
// calibration data on what threshold indicates a genuine scaling
// failure versus a merely unusual read.
const MeansApartThreshold = 5.0

// Config bounds one run's rescaling and basecalling behavior.
type Config struct {
	MinReadLen                  int
	ScaleNumEvents              int
	ScaleMaxRounds              int
	ScaleMinFitProgress         float64
	ScaleStrandsTogether        bool
	ScaleSelectModelSingleRound bool
	Accurate                    bool
	ScaleOnly                   bool
	FastaLineWidth              int
}

// ScalingEnabled reports whether Pass A should run at all.
func (c Config) ScalingEnabled() bool {
	return c.Accurate || c.ScaleStrandsTogether || c.ScaleSelectModelSingleRound
}

// Summary carries one read's identity, per-strand events, per-strand
// (and per-strand-pair) scaling parameters, and the model each strand
// currently prefers.
//
// Params and Events are both indexed [0]=template, [1]=complement,
// [2]=the strands-scaled-together slot: Params[2] holds params keyed
// by the joined "model0+model1" name, mirroring the original source's
// three-way params table; Events[2] is unused; it exists only to keep
// the two arrays' shapes symmetric.
type Summary struct {
	ID         string
	SourceFile string
	Events     [3]events.Sequence
	Params     [3]map[string]pmodel.Params
	Fits       [3]map[string]float64
	Preferred  [2]string
	Container  container.ReadHandle
}

// NewSummary builds a Summary for handle, seeding Params from any
// scaling results the container persisted from a previous run.
func NewSummary(handle container.ReadHandle) *Summary {
	rs := &Summary{
		ID:         handle.ReadID(),
		SourceFile: handle.BaseFileName(),
		Container:  handle,
	}
	for i := range rs.Params {
		rs.Params[i] = map[string]pmodel.Params{}
		rs.Fits[i] = map[string]float64{}
	}
	if persisted := handle.PersistedParams(); persisted != nil {
		for strand, byModel := range persisted {
			if strand < 0 || strand > 2 {
				continue
			}
			for name, p := range byModel {
				rs.Params[strand][name] = p
			}
		}
	}
	return rs
}

func candidateModels(models map[string]*pmodel.Model, strand int) []string {
	var names []string
	for name, m := range models {
		if int(m.Strand) == strand || m.Strand == pmodel.Either {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (rs *Summary) shortlist(strand int, models map[string]*pmodel.Model) []string {
	if pref := rs.Preferred[strand]; pref != "" {
		if _, ok := models[pref]; ok {
			return []string{pref}
		}
	}
	return candidateModels(models, strand)
}

func (rs *Summary) paramsFor(strand int, name string) pmodel.Params {
	if p, ok := rs.Params[strand][name]; ok {
		return p
	}
	return pmodel.IdentityParams()
}

// trainingWindows carves the prefix/suffix event windows Rescale
// trains on: min(scaleNumEvents/2, len/2) events from each end, which
// may overlap on a short read rather than shrink to disjointness.
func trainingWindows(evs events.Sequence, scaleNumEvents int) (prefix, suffix events.Sequence) {
	n := evs.Len()
	half := scaleNumEvents / 2
	if n/2 < half {
		half = n / 2
	}
	if half <= 0 {
		return events.Sequence{}, events.Sequence{}
	}
	prefixEvs := make([]events.Event, half)
	copy(prefixEvs, evs.Events[:half])
	suffixEvs := make([]events.Event, half)
	copy(suffixEvs, evs.Events[n-half:])
	return events.New(prefixEvs), events.New(suffixEvs)
}

func convergeConfig(cfg Config) trainer.ConvergeConfig {
	return trainer.ConvergeConfig{
		MaxRounds:      cfg.ScaleMaxRounds,
		MinFitProgress: cfg.ScaleMinFitProgress,
	}
}

// Rescale runs Pass A: it loads events, builds a per-strand candidate
// model shortlist and training windows, and updates rs.Params (and,
// when selection is enabled, rs.Preferred) by running the trainer to
// convergence.
func Rescale(rs *Summary, models map[string]*pmodel.Model, trans *transitions.Table, cfg Config) error {
	if err := rs.Container.LoadEvents(); err != nil {
		return err
	}
	defer rs.Container.DropEvents()

	var qualifies [2]bool
	var prefix, suffix [2]events.Sequence
	var shortlist [2][]string
	for s := 0; s < 2; s++ {
		rs.Events[s] = rs.Container.Events(s)
		if rs.Events[s].Len() < cfg.MinReadLen {
			continue
		}
		qualifies[s] = true
		shortlist[s] = rs.shortlist(s, models)
		prefix[s], suffix[s] = trainingWindows(rs.Events[s], cfg.ScaleNumEvents)
	}

	if cfg.ScaleStrandsTogether && qualifies[0] && qualifies[1] {
		rescaleTogether(rs, models, trans, cfg, shortlist, prefix, suffix)
		return nil
	}
	for s := 0; s < 2; s++ {
		if !qualifies[s] {
			continue
		}
		rescaleSingleStrand(rs, s, models, trans, cfg, shortlist[s], prefix[s], suffix[s])
	}
	return nil
}

func rescaleSingleStrand(rs *Summary, strand int, models map[string]*pmodel.Model, trans *transitions.Table, cfg Config, names []string, prefix, suffix events.Sequence) {
	if len(names) == 0 {
		return
	}
	bundlesFor := func(name string) []trainer.Bundle {
		m := models[name]
		return []trainer.Bundle{{Events: prefix, Model: m}, {Events: suffix, Model: m}}
	}

	if !cfg.ScaleSelectModelSingleRound {
		for _, name := range names {
			final, fit, rounds := trainer.Converge(bundlesFor(name), trans, rs.paramsFor(strand, name), convergeConfig(cfg))
			rs.Params[strand][name] = final
			rs.Fits[strand][name] = fit
			log.Printf("scaling_result read=%s strand=%d model=%s fit=%v rounds=%d", rs.ID, strand, name, fit, rounds)
		}
		return
	}

	bestName := names[0]
	bestFit := math.Inf(-1)
	for _, name := range names {
		p0, fit0, _ := trainer.TrainOneRound(bundlesFor(name), trans, rs.paramsFor(strand, name))
		rs.Params[strand][name] = p0
		rs.Fits[strand][name] = fit0
		if fit0 > bestFit {
			bestFit = fit0
			bestName = name
		}
	}
	rs.Preferred[strand] = bestName
	final, fit, rounds := trainer.Converge(bundlesFor(bestName), trans, rs.paramsFor(strand, bestName), convergeConfig(cfg))
	rs.Params[strand][bestName] = final
	rs.Fits[strand][bestName] = fit
	log.Printf("scaling_result read=%s strand=%d model=%s fit=%v rounds=%d", rs.ID, strand, bestName, fit, rounds)
}

func rescaleTogether(rs *Summary, models map[string]*pmodel.Model, trans *transitions.Table, cfg Config, shortlist [2][]string, prefix, suffix [2]events.Sequence) {
	if len(shortlist[0]) == 0 || len(shortlist[1]) == 0 {
		return
	}
	bundlesFor := func(m0, m1 string) []trainer.Bundle {
		return []trainer.Bundle{
			{Events: prefix[0], Model: models[m0]},
			{Events: suffix[0], Model: models[m0]},
			{Events: prefix[1], Model: models[m1]},
			{Events: suffix[1], Model: models[m1]},
		}
	}

	bestKey := ""
	bestM0, bestM1 := shortlist[0][0], shortlist[1][0]
	bestFit := math.Inf(-1)
	// Round 0 always picks the argmax-fit pair, even when
	// ScaleSelectModelSingleRound is unset: the joint scaling problem
	// only makes sense for a single chosen pair of models, since
	// otherwise every (m0, m1) combination would keep training
	// independently despite sharing one set of scaling parameters.
	for _, m0 := range shortlist[0] {
		for _, m1 := range shortlist[1] {
			key := m0 + "+" + m1
			old := rs.paramsFor(2, key)
			p0, fit0, _ := trainer.TrainOneRound(bundlesFor(m0, m1), trans, old)
			rs.Params[2][key] = p0
			rs.Fits[2][key] = fit0
			if fit0 > bestFit {
				bestFit = fit0
				bestKey = key
				bestM0, bestM1 = m0, m1
			}
		}
	}
	rs.Preferred[0], rs.Preferred[1] = bestM0, bestM1

	final, fit, rounds := trainer.Converge(bundlesFor(bestM0, bestM1), trans, rs.paramsFor(2, bestKey), convergeConfig(cfg))
	rs.Params[2][bestKey] = final
	rs.Params[0][bestM0] = final
	rs.Params[1][bestM1] = final
	rs.Fits[2][bestKey] = fit
	rs.Fits[0][bestM0] = fit
	rs.Fits[1][bestM1] = fit
	log.Printf("scaling_result read=%s strand=2 model=%s fit=%v rounds=%d", rs.ID, bestKey, fit, rounds)
}

type candidateResult struct {
	logProb float64
	name    string
	baseSeq string
}

// Basecall runs Pass B: for each strand meeting MinReadLen, it scores
// every shortlisted model with Viterbi, keeps the highest-probability
// path, updates rs.Preferred, and appends a fasta-style record for it
// to buf. It returns without appending anything for a strand that
// doesn't qualify.
func Basecall(rs *Summary, models map[string]*pmodel.Model, trans *transitions.Table, cfg Config, buf []byte) ([]byte, error) {
	if err := rs.Container.LoadEvents(); err != nil {
		return buf, err
	}
	defer rs.Container.DropEvents()

	for s := 0; s < 2; s++ {
		rs.Events[s] = rs.Container.Events(s)
		if rs.Events[s].Len() < cfg.MinReadLen {
			continue
		}
		names := rs.shortlist(s, models)
		if len(names) == 0 {
			continue
		}
		var results []candidateResult
		for _, name := range names {
			p := rs.paramsFor(s, name)
			scaled := models[name].Scale(p)
			evs := rs.Events[s].Copy().ApplyDriftCorrection(p.Drift)
			vit := viterbi.Fill(scaled, trans, evs)
			results = append(results, candidateResult{logProb: vit.PathLogProbability, name: name, baseSeq: vit.BaseSequence()})

			meanEv, _ := rs.Events[s].MeanStdv()
			if math.Abs(meanEv-scaled.Mean()) > MeansApartThreshold {
				log.Printf("means_apart read=%s strand=%d model=%s event_mean=%v model_mean=%v", rs.ID, s, name, meanEv, scaled.Mean())
			}
		}
		sort.Slice(results, func(i, j int) bool { return results[i].logProb < results[j].logProb })
		winner := results[len(results)-1]
		rs.Preferred[s] = winner.name

		header := fmt.Sprintf("%s:%s:%d", rs.ID, rs.SourceFile, s)
		buf = seqio.WriteRecord(buf, header, winner.baseSeq, cfg.FastaLineWidth)
	}
	return buf, nil
}
