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
	"strconv"
	"strings"
	"time"
)

// Reader reads EDF/EDF+ files.
type Reader struct {
	r   io.ReadSeeker
	hdr *Header
}

// Open opens an EDF/EDF+ file for reading.
func Open(r io.ReadSeeker) (*Reader, error) {
	reader := bufio.NewReader(r)

	b := make([]byte, 256)
	if _, err := io.ReadFull(reader, b); err != nil {
		return nil, fmt.Errorf("error reading header: %w", err)
	}

	field := func(from, to int) string {
		return strings.TrimSpace(string(b[from:to]))
	}

	// Parse fields based on EDF/EDF+ specifications
	hdr := &Header{
		Version:     Version(field(0, 8)),
		PatientID:   field(8, 88),
		RecordingID: field(88, 168),
		Reserved:    field(192, 236),
	}

	startDate, err := time.Parse("02.01.06", field(168, 176))
	if err != nil {
		return nil, fmt.Errorf("error parsing start date: %w", err)
	}
	startTime, err := time.Parse("15.04.05", field(176, 184))
	if err != nil {
		return nil, fmt.Errorf("error parsing start time: %w", err)
	}
	hdr.StartTime = time.Date(startDate.Year(), startDate.Month(), startDate.Day(),
		startTime.Hour(), startTime.Minute(), startTime.Second(), 0, time.UTC)

	if hdr.HeaderBytes, err = strconv.Atoi(field(184, 192)); err != nil {
		return nil, fmt.Errorf("error parsing header bytes: %w", err)
	}

	if hdr.DataRecords, err = strconv.Atoi(field(236, 244)); err != nil {
		return nil, fmt.Errorf("error parsing number of data records: %w", err)
	}

	hdr.DataRecordDuration, err = time.ParseDuration(field(244, 252) + "s")
	if err != nil {
		return nil, fmt.Errorf("error parsing data record duration: %w", err)
	}

	if hdr.SignalCount, err = strconv.Atoi(field(252, 256)); err != nil {
		return nil, fmt.Errorf("error parsing signal count: %w", err)
	}

	// Signal headers are stored field by field, each field for all signals.
	hdr.Signals = make([]Signal, hdr.SignalCount)
	perSignal := []struct {
		width int
		set   func(*Signal, []byte)
	}{
		{16, func(s *Signal, b []byte) { s.Label = strings.TrimSpace(string(b)) }},
		{80, func(s *Signal, b []byte) { s.TransducerType = strings.TrimSpace(string(b)) }},
		{8, func(s *Signal, b []byte) { s.PhysicalDimension = strings.TrimSpace(string(b)) }},
		{8, func(s *Signal, b []byte) { s.PhysicalMin = parseFloat(b) }},
		{8, func(s *Signal, b []byte) { s.PhysicalMax = parseFloat(b) }},
		{8, func(s *Signal, b []byte) { s.DigitalMin = parseInt(b) }},
		{8, func(s *Signal, b []byte) { s.DigitalMax = parseInt(b) }},
		{80, func(s *Signal, b []byte) { s.Prefiltering = strings.TrimSpace(string(b)) }},
		{8, func(s *Signal, b []byte) { s.SamplesPerRecord = parseInt(b) }},
		{32, func(s *Signal, b []byte) { s.Reserved = strings.TrimSpace(string(b)) }},
	}

	for _, f := range perSignal {
		b := make([]byte, f.width)
		for i := range hdr.Signals {
			if _, err := io.ReadFull(reader, b); err != nil {
				return nil, fmt.Errorf("error reading signal headers: %w", err)
			}
			f.set(&hdr.Signals[i], b)
		}
	}

	er := &Reader{
		r:   r,
		hdr: hdr,
	}

	// EDF+ keeps the sub-second start in the first time-keeping TAL.
	if hdr.DataRecords > 0 {
		offset := 0
		for _, signal := range hdr.Signals {
			size := signal.SamplesPerRecord * 2
			if !signal.IsAnnotations() {
				offset += size
				continue
			}

			b, err := er.readRecordBytes(0, offset, size)
			if err != nil {
				return nil, err
			}
			if hdr.StartOffset, err = decodeRecordOnset(b); err != nil {
				return nil, fmt.Errorf("error parsing record start: %w", err)
			}
			break
		}
	}

	return er, nil
}

func (er *Reader) readRecordBytes(record, offset, size int) ([]byte, error) {
	pos := int64(er.hdr.HeaderBytes) + int64(record)*int64(er.recordSize()) + int64(offset)
	if _, err := er.r.Seek(pos, io.SeekStart); err != nil {
		return nil, fmt.Errorf("error seeking to position: %w", err)
	}

	b := make([]byte, size)
	if _, err := io.ReadFull(er.r, b); err != nil {
		return nil, fmt.Errorf("error reading annotation data: %w", err)
	}
	return b, nil
}

// Header returns a copy of the parsed file header.
func (er *Reader) Header() Header {
	hdr := *er.hdr
	hdr.Signals = append([]Signal(nil), er.hdr.Signals...)
	return hdr
}

// Annotations reads every EDF+ annotation stored in the file, in record order.
// Time-keeping TALs are not returned.
func (er *Reader) Annotations() ([]Annotation, error) {
	var annotations []Annotation
	for record := 0; record < er.hdr.DataRecords; record++ {
		offset := 0
		for _, signal := range er.hdr.Signals {
			size := signal.SamplesPerRecord * 2
			if !signal.IsAnnotations() {
				offset += size
				continue
			}

			b, err := er.readRecordBytes(record, offset, size)
			if err != nil {
				return nil, err
			}

			recordAnnotations, err := decodeTAL(b)
			if err != nil {
				return nil, fmt.Errorf("record %d: %w", record, err)
			}
			annotations = append(annotations, recordAnnotations...)

			offset += size
		}
	}

	return annotations, nil
}

func (er *Reader) recordSize() int {
	size := 0
	for _, sig := range er.hdr.Signals {
		size += sig.SamplesPerRecord * 2
	}
	return size
}

// SignalReader reads continuous signal data from an EDF/EDF+ file.
type SignalReader struct {
	r                io.ReadSeeker
	hdr              *Header
	signalIndex      int // Index of the signal to read
	currentRecord    int // Current record being processed
	currentSample    int // Current sample in the record
	recordSize       int // Total size of one data record
	signalOffset     int // Byte offset of the signal in a record
	samplesPerRecord int // Number of samples per record for the signal
}

// Signal creates a new SignalReader for a specified signal index.
func (er *Reader) Signal(signalIndex int) (*SignalReader, error) {
	if signalIndex < 0 || signalIndex >= len(er.hdr.Signals) {
		return nil, fmt.Errorf("signal index out of range")
	}

	signal := er.hdr.Signals[signalIndex]
	if signal.IsAnnotations() {
		return nil, fmt.Errorf("signal %d holds annotations, not samples", signalIndex)
	}

	signalOffset := 0
	for _, sig := range er.hdr.Signals[:signalIndex] {
		signalOffset += sig.SamplesPerRecord * 2
	}

	return &SignalReader{
		r:                er.r,
		hdr:              er.hdr,
		signalIndex:      signalIndex,
		recordSize:       er.recordSize(),
		signalOffset:     signalOffset,
		samplesPerRecord: signal.SamplesPerRecord,
	}, nil
}

// Len returns the total number of samples of the signal across all data records.
func (sr *SignalReader) Len() int {
	return sr.hdr.DataRecords * sr.samplesPerRecord
}

// Read fills the provided float64 slice with the physical values from the signal.
func (sr *SignalReader) Read(data []float64) (int, error) {
	buf := make([]byte, 2)
	signal := sr.hdr.Signals[sr.signalIndex]

	n := 0
	for n < len(data) {
		if sr.currentRecord >= sr.hdr.DataRecords {
			return n, io.EOF // End of data records
		}

		// Calculate position to read the digital sample from
		pos := int64(sr.hdr.HeaderBytes) + int64(sr.currentRecord)*int64(sr.recordSize) + int64(sr.signalOffset) + int64(sr.currentSample*2)
		if _, err := sr.r.Seek(pos, io.SeekStart); err != nil {
			return n, fmt.Errorf("error seeking to position: %w", err)
		}

		if _, err := io.ReadFull(sr.r, buf); err != nil {
			return n, fmt.Errorf("error reading sample data: %w", err)
		}
		digitalValue := int16(binary.LittleEndian.Uint16(buf))
		data[n] = convertDigitalToPhysical(digitalValue, signal.DigitalMin, signal.DigitalMax, signal.PhysicalMin, signal.PhysicalMax)

		n++

		// Move to the next sample
		sr.currentSample++
		if sr.currentSample >= sr.samplesPerRecord {
			sr.currentSample = 0
			sr.currentRecord++
		}
	}

	return n, nil
}

// convertDigitalToPhysical converts a digital value from the data record to a physical value using the calibration factors.
func convertDigitalToPhysical(digital int16, dmin, dmax int, pmin, pmax float64) float64 {
	if dmax == dmin {
		return 0 // Avoid division by zero
	}
	return pmin + (float64(digital)-float64(dmin))*(pmax-pmin)/float64(dmax-dmin)
}

func parseFloat(b []byte) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(string(b)), 64)
	if err != nil {
		return 0.0
	}
	return f
}

func parseInt(b []byte) int {
	i, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil {
		return 0
	}
	return i
}
