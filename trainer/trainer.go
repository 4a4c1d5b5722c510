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

// Package trainer implements the per-read Baum-Welch-style parameter
// scaling loop: one forward/backward pass over a shortlist of small
// training event windows produces posterior weights, which are then
// turned into an updated pmodel.Params by weighted linear regression.
package trainer

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/raj347/nanocall/events"
	"github.com/raj347/nanocall/forwardback"
	"github.com/raj347/nanocall/pmodel"
	"github.com/raj347/nanocall/transitions"
)

// Bundle pairs a training event window with the model it should be
// scored against. When strands are trained together, the first half of
// a bundle list points at strand 0's model and the second half at
// strand 1's model, so both strands contribute to one shared set of
// scaling parameters.
type Bundle struct {
	Events events.Sequence
	Model  *pmodel.Model
}

// ConvergeConfig bounds a Converge run.
type ConvergeConfig struct {
	MaxRounds      int
	MinFitProgress float64
}

// weightedSample is one (x, y) observation entering a weighted regression.
// variance is the model's own expected variance for this observation
// (entry.Stdv^2 on the mean side, entry.StdvSD^2 on the stdv side), used
// both to fold 1/variance into w and to normalize residuals in
// weightedResidualVarianceRatio.
type weightedSample struct {
	x, y, w, variance float64
}

// driftInput holds the per-event materials needed to build a drift
// regression sample once shift/scale are known from meanSamples.
type driftInput struct {
	entryMean, evStart, evMean, w float64
}

// TrainOneRound scales each bundle's model by old, drift-corrects a
// fresh copy of its events, runs forwardback.Run to get posteriors,
// and re-estimates pmodel.Params by weighted linear regression against
// the accumulated (event, k-mer parameter) sufficient statistics.
//
// fit is the summed total log-likelihood across bundles. done is true
// when the regression is singular (a zero-weight column, or fewer than
// two distinct k-mers observed); in that case new equals old and the
// caller should stop iterating.
func TrainOneRound(bundles []Bundle, trans *transitions.Table, old pmodel.Params) (updated pmodel.Params, fit float64, done bool) {
	var meanSamples, sdSamples []weightedSample
	var driftRaw []driftInput

	for _, b := range bundles {
		scaled := b.Model.Scale(old)
		evs := b.Events.Copy().ApplyDriftCorrection(old.Drift)
		res := forwardback.Run(scaled, trans, evs)
		fit += res.Z
		if math.IsInf(res.Z, -1) {
			continue
		}

		s := trans.NumStates()
		for t, ev := range evs.Events {
			for j := 0; j < s; j++ {
				logGamma := res.Posterior(t, j)
				if logGamma < -30 {
					continue // negligible weight, skip to keep the regression sparse
				}
				gamma := math.Exp(logGamma)
				// regress against the unscaled model and the event means
				// before old's drift correction, so the solved params are
				// absolute rather than relative to old.
				entry := b.Model.Entries[j]
				meanVar := entry.Stdv * entry.Stdv
				sdVar := entry.StdvSD * entry.StdvSD
				wMean := gamma / meanVar
				wSD := gamma / sdVar
				meanSamples = append(meanSamples, weightedSample{x: entry.Mean, y: ev.Mean, w: wMean, variance: meanVar})
				sdSamples = append(sdSamples, weightedSample{x: entry.MeanSD, y: ev.Stdv, w: wSD, variance: sdVar})
				driftRaw = append(driftRaw, driftInput{entryMean: entry.Mean, evStart: ev.Start, evMean: ev.Mean + old.Drift*ev.Start, w: wMean})
			}
		}
	}

	shift, scale, ok1 := weightedAffineRegression(meanSamples)
	if !ok1 {
		return old, fit, true
	}

	driftSamples := make([]weightedSample, len(driftRaw))
	for i, d := range driftRaw {
		driftSamples[i] = weightedSample{x: d.evStart, y: d.evMean - (scale*d.entryMean + shift), w: d.w}
	}
	drift, ok2 := weightedOriginRegression(driftSamples)
	if !ok2 {
		drift = old.Drift
	}
	scaleSD, ok3 := weightedRatioRegression(sdSamples)
	if !ok3 {
		return old, fit, true
	}

	varRatio := weightedResidualVarianceRatio(meanSamples, shift, scale)
	varSDRatio := weightedResidualVarianceRatio(sdSamples, 0, scaleSD)

	updated = pmodel.Params{
		Shift:   shift,
		Scale:   scale,
		Drift:   drift,
		Var:     varRatio,
		ScaleSD: scaleSD,
		VarSD:   varSDRatio,
	}
	if !finiteParams(updated) {
		return old, fit, true
	}
	return updated, fit, false
}

// Converge drives round 0 followed by up to cfg.MaxRounds-1 further
// rounds of TrainOneRound, stopping on singularity, on fit regression
// (reverting to the previous round's params), on reaching MaxRounds, or
// once the fit improvement across a round drops below MinFitProgress
// (checked only from round 2 onward, so a slow-starting first
// improvement is never mistaken for convergence).
func Converge(bundles []Bundle, trans *transitions.Table, initial pmodel.Params, cfg ConvergeConfig) (final pmodel.Params, fit float64, rounds int) {
	crtParams, crtFit, done := TrainOneRound(bundles, trans, initial)
	rounds = 1
	if done || cfg.MaxRounds <= 1 {
		return crtParams, crtFit, rounds
	}

	for {
		oldParams, oldFit := crtParams, crtFit
		var localDone bool
		crtParams, crtFit, localDone = TrainOneRound(bundles, trans, oldParams)
		if localDone {
			return oldParams, oldFit, rounds
		}
		if crtFit < oldFit {
			return oldParams, oldFit, rounds
		}
		rounds++
		if rounds >= cfg.MaxRounds {
			return crtParams, crtFit, rounds
		}
		if rounds > 2 && crtFit-oldFit < cfg.MinFitProgress {
			return crtParams, crtFit, rounds
		}
	}
}

func finiteParams(p pmodel.Params) bool {
	vals := []float64{p.Shift, p.Scale, p.Drift, p.Var, p.ScaleSD, p.VarSD}
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// weightedAffineRegression solves the weighted normal equations for
// y = scale*x + shift over the given samples, via gonum's general
// linear solve. A singular design matrix (e.g. every x identical, or
// no samples) is reported as ok=false.
func weightedAffineRegression(samples []weightedSample) (shift, scale float64, ok bool) {
	if len(samples) < 2 {
		return 0, 0, false
	}
	var sw, swx, swy, swxx, swxy float64
	for _, s := range samples {
		sw += s.w
		swx += s.w * s.x
		swy += s.w * s.y
		swxx += s.w * s.x * s.x
		swxy += s.w * s.x * s.y
	}
	a := mat.NewDense(2, 2, []float64{sw, swx, swx, swxx})
	b := mat.NewDense(2, 1, []float64{swy, swxy})
	var x mat.Dense
	if err := x.Solve(a, b); err != nil {
		return 0, 0, false
	}
	shift, scale = x.At(0, 0), x.At(1, 0)
	if math.IsNaN(shift) || math.IsNaN(scale) || math.IsInf(shift, 0) || math.IsInf(scale, 0) {
		return 0, 0, false
	}
	return shift, scale, true
}

// weightedOriginRegression solves the weighted normal equation for
// y = a*x through the origin.
func weightedOriginRegression(samples []weightedSample) (a float64, ok bool) {
	if len(samples) == 0 {
		return 0, false
	}
	var swxx, swxy float64
	for _, s := range samples {
		swxx += s.w * s.x * s.x
		swxy += s.w * s.x * s.y
	}
	if swxx <= 0 {
		return 0, false
	}
	a = swxy / swxx
	if math.IsNaN(a) || math.IsInf(a, 0) {
		return 0, false
	}
	return a, true
}

// weightedRatioRegression solves y = a*x through the origin, used for
// the stdv_sd scaling coefficient (same shape as weightedOriginRegression
// but kept distinct so its caller reads as the stdv-side counterpart of
// weightedAffineRegression rather than an ad hoc reuse).
func weightedRatioRegression(samples []weightedSample) (a float64, ok bool) {
	return weightedOriginRegression(samples)
}

// weightedResidualVarianceRatio returns the gamma-weighted ratio of
// observed to expected squared residuals after removing the fitted
// shift/scale (or scale-only, when shift is 0) trend, normalized by each
// sample's own model variance, used to update the var/var_sd scaling
// coefficients. The square root turns the averaged variance ratio into a
// stdv-scale multiplier, matching how Var/VarSD scale pmodel.Model.Stdv.
func weightedResidualVarianceRatio(samples []weightedSample, shift, scale float64) float64 {
	var sw, swr float64
	for _, s := range samples {
		predicted := scale*s.x + shift
		resid := s.y - predicted
		sw += s.w
		swr += s.w * resid * resid / s.variance
	}
	if sw <= 0 {
		return 1
	}
	ratio := swr / sw
	if ratio <= 0 || math.IsNaN(ratio) {
		return 1
	}
	return math.Sqrt(ratio)
}
