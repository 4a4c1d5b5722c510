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

// Package logmath provides the numerically safe log-space primitives that
// the DP engines and trainer build on: log-add, log-sum-exp, and the
// log-density of a normal distribution.
package logmath

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// NegInf is the sentinel used whenever a probability is zero or a
// transition is absent. It propagates correctly through LogAddExp and
// LogSumExp.
var NegInf = math.Inf(-1)

// LogAddExp returns log(exp(a) + exp(b)) computed as
// max(a,b) + log1p(exp(-|a-b|)), which stays accurate even when a and b
// are large negative numbers. A NegInf argument yields the other
// argument unchanged.
func LogAddExp(a, b float64) float64 {
	if math.IsInf(a, -1) {
		return b
	}
	if math.IsInf(b, -1) {
		return a
	}
	hi, lo := a, b
	if b > a {
		hi, lo = b, a
	}
	return hi + math.Log1p(math.Exp(lo-hi))
}

// LogSumExp reduces a slice of log-space values to log(sum(exp(xs))).
// An empty slice returns NegInf. The n-ary reduction is delegated to
// gonum's floats.LogSumExp, which uses the same max-shift stabilization
// as LogAddExp above.
func LogSumExp(xs []float64) float64 {
	if len(xs) == 0 {
		return NegInf
	}
	return floats.LogSumExp(xs)
}

// LogNormalPDF returns the log-density of a normal distribution with
// mean mu and standard deviation sigma at x:
// -log(sigma*sqrt(2*pi)) - (x-mu)^2/(2*sigma^2).
func LogNormalPDF(x, mu, sigma float64) float64 {
	z := x - mu
	return -math.Log(sigma*sqrt2pi) - (z*z)/(2*sigma*sigma)
}

var sqrt2pi = math.Sqrt(2 * math.Pi)
