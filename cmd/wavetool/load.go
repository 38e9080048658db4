// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/OpenPSG/waveform"
	"github.com/OpenPSG/waveform/edf"
)

// recording is the content of an EDF file as waveform signals.
type recording struct {
	name    string
	start   time.Time
	labels  []string
	signals map[string]*waveform.Signal
	units   map[string]string
}

// curve returns the key under which the landmarks of a signal are stored.
func (r *recording) curve(label string) string {
	return r.name + "/" + label
}

func (r *recording) signal(label string) (*waveform.Signal, error) {
	sig, ok := r.signals[label]
	if !ok {
		return nil, fmt.Errorf("%s has no signal %q", r.name, label)
	}
	return sig, nil
}

// loadRecording reads every ordinary signal of an EDF file. Sample i of a
// signal is timestamped at the start of its data record plus its offset
// within the record. EDF+ files may start the first record after the header
// start time.
func loadRecording(path string) (*recording, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	er, err := edf.Open(f)
	if err != nil {
		return nil, fmt.Errorf("error opening %s: %w", path, err)
	}
	hdr := er.Header()

	rec := &recording{
		name:    filepath.Base(path),
		start:   hdr.StartTime.Add(hdr.StartOffset),
		signals: make(map[string]*waveform.Signal),
		units:   make(map[string]string),
	}

	start := rec.start.UnixNano()
	recordDuration := int64(hdr.DataRecordDuration)

	for i, s := range hdr.Signals {
		if s.IsAnnotations() || s.SamplesPerRecord <= 0 {
			continue
		}

		sr, err := er.Signal(i)
		if err != nil {
			return nil, err
		}

		values := make([]float64, sr.Len())
		if _, err := sr.Read(values); err != nil && err != io.EOF {
			return nil, fmt.Errorf("error reading signal %q: %w", s.Label, err)
		}

		spr := int64(s.SamplesPerRecord)
		timestamps := make([]int64, len(values))
		for j := range timestamps {
			record, offset := int64(j)/spr, int64(j)%spr
			timestamps[j] = start + record*recordDuration + offset*recordDuration/spr
		}

		sig, err := waveform.NewSignal(timestamps, values)
		if err != nil {
			return nil, fmt.Errorf("signal %q: %w", s.Label, err)
		}

		rec.labels = append(rec.labels, s.Label)
		rec.signals[s.Label] = sig
		rec.units[s.Label] = s.PhysicalDimension
	}

	return rec, nil
}
