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

// Package events implements the ordered event vector and its drift
// correction.
package events

import "gonum.org/v1/gonum/stat"

// Event is one measurement produced by upstream signal segmentation.
type Event struct {
	Mean, Stdv, Start, Length float64
}

// Sequence is an ordered vector of events belonging to one strand of one
// read.
type Sequence struct {
	Events []Event
	// drift is the cumulative drift correction already applied to
	// Events, so a caller can tell whether a further call is a delta
	// on top of a previous correction rather than a fresh one.
	drift float64
}

// New wraps a slice of events into a Sequence with no drift applied yet.
func New(evs []Event) Sequence {
	return Sequence{Events: evs}
}

// Len returns the number of events.
func (s Sequence) Len() int { return len(s.Events) }

// Copy returns a deep copy of s, used whenever a fresh, unmodified event
// vector is needed for a new processing step (the trainer and Pass B
// each start from a pristine copy before applying drift correction).
func (s Sequence) Copy() Sequence {
	evs := make([]Event, len(s.Events))
	copy(evs, s.Events)
	return Sequence{Events: evs, drift: s.drift}
}

// ApplyDriftCorrection subtracts drift*event.Start from event.Mean for
// every event, in place, and accumulates drift into the sequence's
// tracked baseline. Calling ApplyDriftCorrection(0) is always the
// identity; calling it twice with the same nonzero drift is not
// idempotent, since each call is a further correction on top of the
// last (callers that want a clean correction should start from a fresh
// Copy, as the trainer and read pipeline do).
func (s Sequence) ApplyDriftCorrection(drift float64) Sequence {
	if drift == 0 {
		return s
	}
	for i := range s.Events {
		s.Events[i].Mean -= drift * s.Events[i].Start
	}
	s.drift += drift
	return s
}

// Drift returns the cumulative drift correction applied to s so far.
func (s Sequence) Drift() float64 { return s.drift }

// MeanStdv returns the mean and standard deviation of the events' Mean
// field, used for the "means_apart" diagnostic. Grounded on the
// mean/stdv helper the original source calls before basecalling each
// strand.
func (s Sequence) MeanStdv() (mean, stdv float64) {
	means := make([]float64, len(s.Events))
	for i, e := range s.Events {
		means[i] = e.Mean
	}
	return stat.MeanStdDev(means, nil)
}
