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
	"cmp"
	"fmt"
	"io"
	"math"
	"slices"
	"time"

	"github.com/OpenPSG/waveform/edf"
)

// ExportOptions controls how a Frame is written as EDF.
type ExportOptions struct {
	PatientID      string
	RecordingID    string
	RecordDuration time.Duration // Defaults to one second
}

// WriteEDF writes the frame as an EDF file. Each channel stores
// round(rate * record duration) samples per data record; the last record is
// padded with FillValue. Landmarks are written as annotations of the form
// "<label> <category>".
//
// The file is EDF+ when any channel carries landmarks or when the frame does
// not begin on a whole second: the header start time has one-second
// resolution, the remainder is kept in the records' time-keeping TALs.
func WriteEDF(w io.WriteSeeker, frame *Frame, opts ExportOptions) error {
	if frame == nil || len(frame.Channels) == 0 {
		return ErrNoChannels
	}

	recordDuration := opts.RecordDuration
	if recordDuration <= 0 {
		recordDuration = time.Second
	}

	signals := make([]edf.Signal, 0, len(frame.Channels)+1)
	records := 0
	for _, ch := range frame.Channels {
		spr := int(math.Round(ch.Header.SampleRate * recordDuration.Seconds()))
		if spr < 1 {
			return fmt.Errorf("channel %q: %w: %g Hz gives no samples per %s record", ch.Header.Label, ErrInvalidSampleRate, ch.Header.SampleRate, recordDuration)
		}

		signals = append(signals, edf.Signal{
			Label:             ch.Header.Label,
			PhysicalDimension: ch.Header.PhysicalDimension,
			PhysicalMin:       ch.Header.PhysicalMin,
			PhysicalMax:       ch.Header.PhysicalMax,
			DigitalMin:        edf.DigitalMin,
			DigitalMax:        edf.DigitalMax,
			SamplesPerRecord:  spr,
		})
		records = max(records, (len(ch.Values)+spr-1)/spr)
	}
	if records == 0 {
		return fmt.Errorf("%w: every channel is empty", ErrInsufficientSamples)
	}

	start := time.Unix(0, frame.Begin).UTC()
	startOffset := start.Sub(start.Truncate(time.Second))
	start = start.Truncate(time.Second)

	annotations, annotated := recordAnnotations(frame, start.UnixNano(), recordDuration, records)
	if annotated || startOffset != 0 {
		signals = append(signals, edf.Signal{
			Label:            edf.AnnotationsLabel,
			PhysicalMin:      -1,
			PhysicalMax:      1,
			DigitalMin:       edf.DigitalMin,
			DigitalMax:       edf.DigitalMax,
			SamplesPerRecord: edf.AnnotationSamplesPerRecord(startOffset, recordDuration, annotations),
		})
	}

	ew, err := edf.Create(w, edf.Header{
		Version:            edf.Version0,
		PatientID:          opts.PatientID,
		RecordingID:        opts.RecordingID,
		StartTime:          start,
		StartOffset:        startOffset,
		DataRecordDuration: recordDuration,
		Signals:            signals,
	})
	if err != nil {
		return err
	}

	for r := 0; r < records; r++ {
		data := make([][]float64, len(frame.Channels))
		for i, ch := range frame.Channels {
			spr := signals[i].SamplesPerRecord
			chunk := make([]float64, spr)
			for j := range chunk {
				chunk[j] = FillValue
			}
			if from := r * spr; from < len(ch.Values) {
				copy(chunk, ch.Values[from:min(from+spr, len(ch.Values))])
			}
			data[i] = chunk
		}

		if err := ew.WriteAnnotatedRecord(data, annotations[r]); err != nil {
			return fmt.Errorf("error writing record %d: %w", r, err)
		}
	}

	return ew.Close()
}

// recordAnnotations groups the landmarks of every channel by the data record
// they fall in. Onsets are relative to start, the header start time. It
// reports whether there is any landmark at all.
func recordAnnotations(frame *Frame, start int64, recordDuration time.Duration, records int) ([][]edf.Annotation, bool) {
	annotations := make([][]edf.Annotation, records)
	annotated := false
	for _, ch := range frame.Channels {
		for _, p := range ch.Landmarks {
			r := min(max(int(time.Duration(p.Time-frame.Begin)/recordDuration), 0), records-1)
			annotations[r] = append(annotations[r], edf.Annotation{
				Onset: time.Duration(p.Time - start),
				Text:  ch.Header.Label + " " + p.Category.String(),
			})
			annotated = true
		}
	}

	for _, a := range annotations {
		slices.SortStableFunc(a, func(x, y edf.Annotation) int {
			return cmp.Compare(x.Onset, y.Onset)
		})
	}

	return annotations, annotated
}
