// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package waveform maintains landmark annotations on physiological
// waveforms, segments them into cycles and resamples them for EDF export.
package waveform

import (
	"fmt"
	"math"
	"slices"
	"time"
)

// Signal is an immutable time series. Timestamps are nanoseconds since an
// arbitrary epoch and are strictly increasing.
type Signal struct {
	timestamps []int64
	values     []float64
}

// NewSignal creates a signal from copies of the given timestamps and values.
func NewSignal(timestamps []int64, values []float64) (*Signal, error) {
	if len(timestamps) != len(values) {
		return nil, fmt.Errorf("%w: %d timestamps, %d values", ErrLengthMismatch, len(timestamps), len(values))
	}
	for i := 1; i < len(timestamps); i++ {
		if timestamps[i] <= timestamps[i-1] {
			return nil, fmt.Errorf("%w: index %d (%d after %d)", ErrNotIncreasing, i, timestamps[i], timestamps[i-1])
		}
	}

	return &Signal{
		timestamps: slices.Clone(timestamps),
		values:     slices.Clone(values),
	}, nil
}

// Len returns the number of samples.
func (s *Signal) Len() int {
	return len(s.timestamps)
}

// Timestamps returns a copy of the time axis.
func (s *Signal) Timestamps() []int64 {
	return slices.Clone(s.timestamps)
}

// Values returns a copy of the sample values.
func (s *Signal) Values() []float64 {
	return slices.Clone(s.values)
}

// At returns the i-th sample.
func (s *Signal) At(i int) (int64, float64) {
	return s.timestamps[i], s.values[i]
}

// First returns the first timestamp. The signal must not be empty.
func (s *Signal) First() int64 {
	return s.timestamps[0]
}

// Last returns the last timestamp. The signal must not be empty.
func (s *Signal) Last() int64 {
	return s.timestamps[len(s.timestamps)-1]
}

// Nearest returns the index of the sample closest to t. On an exact midpoint
// between two samples the earlier one wins. The signal must not be empty.
func (s *Signal) Nearest(t int64) int {
	return nearest(s.timestamps, t)
}

// ValueAt returns the value stored at exactly t.
func (s *Signal) ValueAt(t int64) (float64, bool) {
	i, found := slices.BinarySearch(s.timestamps, t)
	if !found {
		return 0, false
	}
	return s.values[i], true
}

// SampleRate estimates the average sample rate in Hz, the number of sample
// intervals per second rounded to the nearest integer. It returns 0 for
// signals with fewer than two samples.
func (s *Signal) SampleRate() float64 {
	if len(s.timestamps) < 2 {
		return 0
	}
	span := time.Duration(s.Last() - s.First()).Seconds()
	return math.Round(float64(len(s.timestamps)-1) / span)
}

// nearest returns the index of the element of the ascending slice ts closest
// to t, preferring the lower index on ties. ts must not be empty.
func nearest(ts []int64, t int64) int {
	i, found := slices.BinarySearch(ts, t)
	switch {
	case found:
		return i
	case i == 0:
		return 0
	case i == len(ts):
		return len(ts) - 1
	}

	// ts[i-1] < t < ts[i]
	if t-ts[i-1] <= ts[i]-t {
		return i - 1
	}
	return i
}
