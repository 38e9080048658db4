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
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Time-stamped annotation list (TAL) delimiters, as defined by EDF+.
const (
	talDuration  = 0x15
	talSeparator = 0x14
	talEnd       = 0x00
)

// AnnotationSamplesPerRecord returns the number of 2-byte samples an
// annotations signal needs so that every record in records fits, including the
// record's time-keeping TAL. startOffset is the header's StartOffset.
func AnnotationSamplesPerRecord(startOffset, recordDuration time.Duration, records [][]Annotation) int {
	// Even an empty record carries its time-keeping TAL.
	maxBytes := len(appendTAL(nil, startOffset, nil))
	for i, annotations := range records {
		n := len(appendTAL(nil, startOffset+time.Duration(i)*recordDuration, annotations))
		if n > maxBytes {
			maxBytes = n
		}
	}
	return (maxBytes + 1) / 2
}

// encodeTAL encodes the time-keeping TAL for a record starting at onset,
// followed by the given annotations, zero padded to size bytes.
func encodeTAL(onset time.Duration, annotations []Annotation, size int) ([]byte, error) {
	b := appendTAL(make([]byte, 0, size), onset, annotations)
	if len(b) > size {
		return nil, fmt.Errorf("annotations too large: %d bytes, record has room for %d bytes", len(b), size)
	}
	return append(b, make([]byte, size-len(b))...), nil
}

func appendTAL(b []byte, onset time.Duration, annotations []Annotation) []byte {
	b = append(b, formatOnset(onset)...)
	b = append(b, talSeparator, talSeparator, talEnd)

	for _, a := range annotations {
		b = append(b, formatOnset(a.Onset)...)
		if a.Duration > 0 {
			b = append(b, talDuration)
			b = append(b, formatSeconds(a.Duration)...)
		}
		b = append(b, talSeparator)
		b = append(b, a.Text...)
		b = append(b, talSeparator, talEnd)
	}

	return b
}

// decodeTAL parses the TALs of a single data record. The time-keeping TAL
// (which has no text) is dropped.
func decodeTAL(b []byte) ([]Annotation, error) {
	var annotations []Annotation
	for _, tal := range bytes.Split(b, []byte{talEnd}) {
		if len(tal) == 0 {
			continue
		}

		parts := strings.Split(string(tal), string(rune(talSeparator)))
		if len(parts) < 2 {
			return nil, fmt.Errorf("malformed TAL %q", tal)
		}

		timing := strings.SplitN(parts[0], string(rune(talDuration)), 2)
		onset, err := parseSeconds(timing[0])
		if err != nil {
			return nil, fmt.Errorf("error parsing annotation onset: %w", err)
		}

		var duration time.Duration
		if len(timing) == 2 {
			duration, err = parseSeconds(timing[1])
			if err != nil {
				return nil, fmt.Errorf("error parsing annotation duration: %w", err)
			}
		}

		// The last part is always empty because every TAL ends with a separator.
		for _, text := range parts[1 : len(parts)-1] {
			if text == "" {
				continue
			}
			annotations = append(annotations, Annotation{Onset: onset, Duration: duration, Text: text})
		}
	}

	return annotations, nil
}

// decodeRecordOnset returns the onset of the time-keeping TAL that starts
// every EDF+ annotations signal record.
func decodeRecordOnset(b []byte) (time.Duration, error) {
	tal, _, _ := bytes.Cut(b, []byte{talEnd})
	timing, _, ok := bytes.Cut(tal, []byte{talSeparator})
	if !ok {
		return 0, fmt.Errorf("malformed time-keeping TAL %q", tal)
	}
	onset, _, _ := bytes.Cut(timing, []byte{talDuration})
	return parseSeconds(string(onset))
}

func formatOnset(d time.Duration) string {
	if d < 0 {
		return "-" + formatSeconds(-d)
	}
	return "+" + formatSeconds(d)
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}

func parseSeconds(s string) (time.Duration, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	return time.Duration(math.Round(f * float64(time.Second))), nil
}
