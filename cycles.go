// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package waveform

import (
	"fmt"
	"slices"
)

// Window is an inclusive time range in nanoseconds.
type Window struct {
	Min int64
	Max int64
}

// Contains reports whether t lies within the window.
func (w Window) Contains(t int64) bool {
	return w.Min <= t && t <= w.Max
}

func (w Window) clip(ts []int64) []int64 {
	var clipped []int64
	for _, t := range ts {
		if w.Contains(t) {
			clipped = append(clipped, t)
		}
	}
	return clipped
}

// Cycle is a single segment of a signal, usually one heart beat or one flow
// cycle.
type Cycle struct {
	Begin    int64 // Timestamp of the first sample of the cycle
	Duration int64 // Nanoseconds
}

// End returns the timestamp at which the cycle ends.
func (c Cycle) End() int64 {
	return c.Begin + c.Duration
}

// Segment splits the signal of idx into cycles using its start and stop
// landmarks. A nil window covers the whole signal.
//
// Without start landmarks the window is a single cycle. With starts but no
// stops each start ends at the next one and the last ends at the end of the
// window. With both, starts and stops inside the window are paired in order.
// Stops preceding the first start are discarded, as are trailing starts or
// stops left without a partner.
func Segment(idx *LandmarkIndex, w *Window) ([]Cycle, error) {
	if idx == nil || idx.signal.Len() == 0 {
		return nil, ErrEmptySignal
	}
	sig := idx.signal

	window := Window{Min: sig.First(), Max: sig.Last()}
	if w != nil {
		window = *w
	}
	snap := func(t int64) int64 {
		return sig.timestamps[sig.Nearest(t)]
	}

	starts, stops := idx.sets[Start], idx.sets[Stop]

	var begins, ends []int64
	switch {
	case len(starts) == 0:
		begins = []int64{snap(window.Min)}
		ends = []int64{snap(window.Max)}
	case len(stops) == 0:
		begins = window.clip(starts)
		if len(begins) == 0 {
			return []Cycle{}, nil
		}
		ends = append(slices.Clone(begins[1:]), snap(window.Max))
	default:
		begins = window.clip(starts)
		ends = window.clip(stops)
	}

	// Drop the end of a cycle that started before the window.
	for len(begins) > 0 && len(ends) > 0 && ends[0] <= begins[0] {
		ends = ends[1:]
	}

	n := min(len(begins), len(ends))
	cycles := make([]Cycle, n)
	for i := range cycles {
		duration := ends[i] - begins[i]
		if duration < 0 {
			return nil, fmt.Errorf("%w: cycle %d begins at %d but ends at %d", ErrCycleOrdering, i, begins[i], ends[i])
		}
		cycles[i] = Cycle{Begin: begins[i], Duration: duration}
	}

	return cycles, nil
}

// PointsIn returns the landmarks of a single category that fall within the
// window, with their signal values. A nil window covers the whole signal.
func (idx *LandmarkIndex) PointsIn(c Category, w *Window) []Point {
	var points []Point
	for _, t := range idx.sets[c] {
		if w != nil && !w.Contains(t) {
			continue
		}
		v, _ := idx.signal.ValueAt(t)
		points = append(points, Point{Time: t, Value: v, Category: c})
	}
	return points
}
