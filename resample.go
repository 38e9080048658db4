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
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"
)

// FillValue is written to grid points outside a channel's own time extent.
const FillValue = 0.0

// Channel is a signal to be resampled onto a uniform grid.
type Channel struct {
	Label             string
	Signal            *Signal
	SampleRate        float64 // Target sample rate in Hz
	PhysicalMin       float64 // Derived from the signal when equal to PhysicalMax
	PhysicalMax       float64
	PhysicalDimension string
	Landmarks         *LandmarkIndex // Optional, exported as annotations
}

// ChannelHeader describes a resampled channel to a file writer.
type ChannelHeader struct {
	Label             string
	SampleRate        float64
	PhysicalMin       float64
	PhysicalMax       float64
	PhysicalDimension string
}

// ResampledChannel is a channel evaluated on its uniform grid.
type ResampledChannel struct {
	Header    ChannelHeader
	Values    []float64
	Landmarks []Point
}

// Frame holds every resampled channel of one export. All channels span the
// same time window, [Begin, End), but may hold different sample counts when
// their rates differ.
type Frame struct {
	Begin    int64
	End      int64
	Channels []ResampledChannel
}

// Resample evaluates each channel by linear interpolation on a uniform grid at
// the channel's own rate. The grid starts at the earliest first timestamp and
// stops before the latest last timestamp over all channels. Grid points
// outside a channel's own extent hold FillValue.
//
// Channel timestamps are assumed sorted, which Signal guarantees.
func Resample(channels []Channel) (*Frame, error) {
	if len(channels) == 0 {
		return nil, ErrNoChannels
	}

	for _, ch := range channels {
		if ch.Signal == nil || ch.Signal.Len() < 2 {
			n := 0
			if ch.Signal != nil {
				n = ch.Signal.Len()
			}
			return nil, fmt.Errorf("channel %q: %w: %d samples, need at least 2", ch.Label, ErrInsufficientSamples, n)
		}
		if !(ch.SampleRate > 0) || math.IsInf(ch.SampleRate, 0) {
			return nil, fmt.Errorf("channel %q: %w: %g Hz", ch.Label, ErrInvalidSampleRate, ch.SampleRate)
		}
		if ch.Landmarks != nil && ch.Landmarks.Signal() != ch.Signal {
			return nil, fmt.Errorf("channel %q: %w", ch.Label, ErrForeignLandmarks)
		}
	}

	frame := &Frame{
		Begin: channels[0].Signal.First(),
		End:   channels[0].Signal.Last(),
	}
	for _, ch := range channels[1:] {
		frame.Begin = min(frame.Begin, ch.Signal.First())
		frame.End = max(frame.End, ch.Signal.Last())
	}

	for _, ch := range channels {
		values, err := resampleSignal(ch.Signal, ch.SampleRate, frame.Begin, frame.End)
		if err != nil {
			return nil, fmt.Errorf("channel %q: %w", ch.Label, err)
		}

		header := ChannelHeader{
			Label:             ch.Label,
			SampleRate:        ch.SampleRate,
			PhysicalMin:       ch.PhysicalMin,
			PhysicalMax:       ch.PhysicalMax,
			PhysicalDimension: ch.PhysicalDimension,
		}
		if header.PhysicalMin == header.PhysicalMax {
			header.PhysicalMin = floats.Min(ch.Signal.values)
			header.PhysicalMax = floats.Max(ch.Signal.values)
		}
		// A flat signal still needs a usable quantization range.
		if header.PhysicalMin == header.PhysicalMax {
			header.PhysicalMax = header.PhysicalMin + 1
		}

		resampled := ResampledChannel{Header: header, Values: values}
		if ch.Landmarks != nil {
			resampled.Landmarks = ch.Landmarks.Points()
		}
		frame.Channels = append(frame.Channels, resampled)
	}

	return frame, nil
}

func resampleSignal(sig *Signal, rate float64, begin, end int64) ([]float64, error) {
	step := float64(time.Second) / rate
	n := int(math.Ceil(float64(end-begin) / step))

	// Offsets from begin keep nanosecond precision in float64.
	xs := make([]float64, sig.Len())
	for i, t := range sig.timestamps {
		xs[i] = float64(t - begin)
	}

	var pl interp.PiecewiseLinear
	if err := pl.Fit(xs, sig.values); err != nil {
		return nil, err
	}

	lo, hi := xs[0], xs[len(xs)-1]
	values := make([]float64, n)
	for k := range values {
		x := float64(k) * step
		if x < lo || x > hi {
			values[k] = FillValue
			continue
		}
		values[k] = pl.Predict(x)
	}

	return values, nil
}
