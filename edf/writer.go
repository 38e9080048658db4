// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package edf

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"time"
)

// maxRecordBytes is the data record size limit recommended by the EDF standard.
const maxRecordBytes = 61440

// Writer writes EDF/EDF+ files.
type Writer struct {
	w           io.WriteSeeker
	hdr         *Header
	dataRecords int // Number of data records written so far.
}

// Create creates a new EDF writer that writes to the given writer.
// If the header contains an annotations signal the file is written as EDF+.
func Create(w io.WriteSeeker, hdr Header) (*Writer, error) {
	hdr.DataRecords = -1 // Unknown number of data records (at this time).
	if hdr.SignalCount == 0 {
		hdr.SignalCount = len(hdr.Signals)
	}
	if hdr.SignalCount != len(hdr.Signals) {
		return nil, fmt.Errorf("signal count %d does not match %d signal headers", hdr.SignalCount, len(hdr.Signals))
	}
	annotated := slices.ContainsFunc(hdr.Signals, Signal.IsAnnotations)
	if hdr.Reserved == "" && annotated {
		hdr.Reserved = ReservedEDFPlusContinuous
	}
	if hdr.StartOffset != 0 && !annotated {
		return nil, fmt.Errorf("start offset %s needs an %q signal", hdr.StartOffset, AnnotationsLabel)
	}

	// Samples are quantized with the bounds exactly as the header stores them.
	hdr.Signals = slices.Clone(hdr.Signals)
	for i := range hdr.Signals {
		s := &hdr.Signals[i]
		s.PhysicalMin = parseFloat([]byte(formatPhysicalValue(s.PhysicalMin, false)))
		s.PhysicalMax = parseFloat([]byte(formatPhysicalValue(s.PhysicalMax, true)))
	}

	ew := &Writer{w: w, hdr: &hdr}

	// Write the initial header
	if err := ew.writeHeader(); err != nil {
		return nil, fmt.Errorf("error writing header: %w", err)
	}

	return ew, nil
}

// Close finalizes the EDF file by updating the header with the total number of data records.
func (ew *Writer) Close() error {
	ew.hdr.DataRecords = ew.dataRecords
	if err := ew.writeHeader(); err != nil {
		return fmt.Errorf("error writing header: %w", err)
	}

	return nil
}

// WriteRecord writes a single data record to the EDF file. There must be one
// slice of physical values per ordinary (non-annotation) signal, in header
// order.
func (ew *Writer) WriteRecord(signals [][]float64) error {
	return ew.WriteAnnotatedRecord(signals, nil)
}

// WriteAnnotatedRecord writes a single data record along with the annotations
// that fall within it. Annotations are stored in the first annotations signal
// of the header, after the record's time-keeping TAL.
func (ew *Writer) WriteAnnotatedRecord(signals [][]float64, annotations []Annotation) error {
	var ordinary, annotationSignal int
	annotationSignal = -1
	for i, signal := range ew.hdr.Signals {
		if signal.IsAnnotations() {
			if annotationSignal < 0 {
				annotationSignal = i
			}
			continue
		}
		ordinary++
	}

	if len(signals) != ordinary {
		return fmt.Errorf("expected %d signals, got %d", ordinary, len(signals))
	}
	if len(annotations) > 0 && annotationSignal < 0 {
		return fmt.Errorf("header has no %q signal", AnnotationsLabel)
	}

	var totalBytes int
	for _, signal := range ew.hdr.Signals {
		totalBytes += signal.SamplesPerRecord * 2
	}

	// As recommended by the EDF standard.
	if totalBytes > maxRecordBytes {
		return fmt.Errorf("data record too large: %d bytes, max is %d bytes", totalBytes, maxRecordBytes)
	}

	onset := ew.hdr.StartOffset + time.Duration(ew.dataRecords)*ew.hdr.DataRecordDuration
	writer := bufio.NewWriter(ew.w)

	next := 0
	for i, signal := range ew.hdr.Signals {
		if signal.IsAnnotations() {
			var recordAnnotations []Annotation
			if i == annotationSignal {
				recordAnnotations = annotations
			}
			tal, err := encodeTAL(onset, recordAnnotations, signal.SamplesPerRecord*2)
			if err != nil {
				return fmt.Errorf("error encoding annotations: %w", err)
			}
			if _, err := writer.Write(tal); err != nil {
				return err
			}
			continue
		}

		samples := signals[next]
		next++
		if len(samples) != signal.SamplesPerRecord {
			return fmt.Errorf("signal %q: expected %d samples, got %d", signal.Label, signal.SamplesPerRecord, len(samples))
		}

		for _, sample := range samples {
			digitalValue := convertPhysicalToDigital(sample, signal.PhysicalMin, signal.PhysicalMax, signal.DigitalMin, signal.DigitalMax)
			if err := binary.Write(writer, binary.LittleEndian, digitalValue); err != nil {
				return err
			}
		}
	}

	// Ensure all data is flushed to the underlying writer
	if err := writer.Flush(); err != nil {
		return err
	}

	ew.dataRecords++
	return nil
}

// writeHeader rewinds the underlying writer and writes the EDF header.
func (ew *Writer) writeHeader() error {
	// Rewind to the beginning of the file.
	if _, err := ew.w.Seek(0, io.SeekStart); err != nil {
		return err
	}

	hdr := ew.hdr
	hdr.HeaderBytes = 256 + (hdr.SignalCount * 256)

	fields := []string{
		pad(string(hdr.Version), 8),
		pad(hdr.PatientID, 80),
		pad(hdr.RecordingID, 80),
		pad(hdr.StartTime.Format("02.01.06"), 8),
		pad(hdr.StartTime.Format("15.04.05"), 8),
		pad(strconv.Itoa(hdr.HeaderBytes), 8),
		pad(hdr.Reserved, 44),
		pad(strconv.Itoa(hdr.DataRecords), 8),
		pad(formatRecordDuration(hdr.DataRecordDuration), 8),
		pad(strconv.Itoa(hdr.SignalCount), 4),
	}

	// Signal headers are stored field by field, each field for all signals.
	perSignal := []func(Signal) string{
		func(s Signal) string { return pad(s.Label, 16) },
		func(s Signal) string { return pad(s.TransducerType, 80) },
		func(s Signal) string { return pad(s.PhysicalDimension, 8) },
		func(s Signal) string { return pad(formatPhysicalValue(s.PhysicalMin, false), 8) },
		func(s Signal) string { return pad(formatPhysicalValue(s.PhysicalMax, true), 8) },
		func(s Signal) string { return pad(strconv.Itoa(s.DigitalMin), 8) },
		func(s Signal) string { return pad(strconv.Itoa(s.DigitalMax), 8) },
		func(s Signal) string { return pad(s.Prefiltering, 80) },
		func(s Signal) string { return pad(strconv.Itoa(s.SamplesPerRecord), 8) },
		func(s Signal) string { return pad(s.Reserved, 32) },
	}
	for _, field := range perSignal {
		for _, signal := range hdr.Signals {
			fields = append(fields, field(signal))
		}
	}

	writer := bufio.NewWriter(ew.w)
	for _, field := range fields {
		if _, err := writer.WriteString(field); err != nil {
			return err
		}
	}

	// Ensure all data is flushed to the underlying writer
	return writer.Flush()
}

// pad left-aligns s in a space padded field of the given width, truncating
// values that do not fit.
func pad(s string, width int) string {
	if len(s) > width {
		s = s[:width]
	}
	return fmt.Sprintf("%-*s", width, s)
}

// convertPhysicalToDigital converts a physical value to a digital value using
// the calibration factors. Values outside the physical range saturate.
func convertPhysicalToDigital(physical float64, pmin, pmax float64, dmin, dmax int) int16 {
	if pmax == pmin {
		return 0 // Avoid division by zero
	}
	digital := math.Round(((physical - pmin) * (float64(dmax - dmin)) / (pmax - pmin)) + float64(dmin))
	digital = math.Max(digital, float64(dmin))
	digital = math.Min(digital, float64(dmax))
	return int16(digital)
}

// formatPhysicalValue formats a physical bound as the most precise decimal
// that fits the 8 character header field. Values that need rounding are
// rounded outwards: down for a minimum, up for a maximum.
func formatPhysicalValue(val float64, up bool) string {
	if val == 0 {
		val = 0 // No negative zero.
	}
	if s := strconv.FormatFloat(val, 'f', -1, 64); len(s) <= 8 {
		return s
	}

	round := math.Floor
	if up {
		round = math.Ceil
	}
	for prec := 7; prec >= 0; prec-- {
		scale := math.Pow10(prec)
		v := round(val*scale) / scale
		if v == 0 {
			v = 0 // No negative zero.
		}
		s := strconv.FormatFloat(v, 'f', -1, 64)
		if len(s) <= 8 {
			return s
		}
	}

	return strconv.FormatFloat(round(val), 'f', 0, 64)
}

func formatRecordDuration(d time.Duration) string {
	if d%time.Second == 0 {
		return strconv.Itoa(int(d / time.Second))
	}
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}
