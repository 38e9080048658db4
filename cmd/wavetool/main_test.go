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
	"bytes"
	"context"
	"flag"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/OpenPSG/waveform"
	"github.com/OpenPSG/waveform/edf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var recordingStart = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

// writeRecording writes three seconds of a 1 Hz pressure wave at 100 Hz.
func writeRecording(t *testing.T, dir string) string {
	t.Helper()

	base := recordingStart.UnixNano()
	step := int64(10 * time.Millisecond)
	timestamps := make([]int64, 301)
	values := make([]float64, 301)
	for i := range timestamps {
		timestamps[i] = base + int64(i)*step
		values[i] = 80 + 40*math.Sin(2*math.Pi*float64(i)/100)
	}

	sig, err := waveform.NewSignal(timestamps, values)
	require.NoError(t, err)

	frame, err := waveform.Resample([]waveform.Channel{{Label: "ABP", Signal: sig, SampleRate: 100, PhysicalDimension: "mmHg"}})
	require.NoError(t, err)

	path := filepath.Join(dir, "input.edf")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, waveform.WriteEDF(f, frame, waveform.ExportOptions{}))
	require.NoError(t, f.Close())

	return path
}

func wavetool(t *testing.T, args ...string) (string, int) {
	t.Helper()

	var stdout bytes.Buffer
	code := run0(args, &stdout)
	return stdout.String(), code
}

func TestLoadRecording(t *testing.T) {
	path := writeRecording(t, t.TempDir())

	rec, err := loadRecording(path)
	require.NoError(t, err)

	assert.Equal(t, "input.edf", rec.name)
	assert.Equal(t, recordingStart, rec.start)
	assert.Equal(t, []string{"ABP"}, rec.labels)
	assert.Equal(t, "mmHg", rec.units["ABP"])
	assert.Equal(t, "input.edf/ABP", rec.curve("ABP"))

	sig, err := rec.signal("ABP")
	require.NoError(t, err)
	assert.Equal(t, 300, sig.Len())
	assert.Equal(t, recordingStart.UnixNano(), sig.First())
	assert.Equal(t, recordingStart.Add(2990*time.Millisecond).UnixNano(), sig.Last())
	assert.Equal(t, 100.0, sig.SampleRate())

	_, err = rec.signal("Flow")
	require.Error(t, err)
}

func TestCommands(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("WAVETOOL_STORE", filepath.Join(dir, "landmarks.db"))
	t.Setenv("WAVETOOL_LOG_LEVEL", "error")
	t.Setenv("WAVETOOL_RECORD_DURATION", "")

	in := writeRecording(t, dir)

	_, code := wavetool(t, "mark", "-in", in, "-signal", "ABP", "-category", "start", "-at", "0.5s,1.5s,2.5s")
	require.Zero(t, code)

	out, code := wavetool(t, "points", "-in", in, "-signal", "ABP")
	require.Zero(t, code)
	assert.Contains(t, out, "start")
	assert.Contains(t, out, "1.500")

	out, code = wavetool(t, "cycles", "-in", in, "-signal", "ABP")
	require.Zero(t, code)
	assert.Regexp(t, `0\.500\s+1\.000`, out)
	assert.Regexp(t, `1\.500\s+1\.000`, out)
	assert.Regexp(t, `2\.500\s+0\.490`, out)

	_, code = wavetool(t, "unmark", "-in", in, "-signal", "ABP", "-category", "start", "-at", "1.4s")
	require.Zero(t, code)

	out, code = wavetool(t, "cycles", "-in", in, "-signal", "ABP", "-to", "2s")
	require.Zero(t, code)
	assert.Regexp(t, `0\.500\s+1\.500`, out)
	assert.NotContains(t, out, "2.500")

	exported := filepath.Join(dir, "output.edf")
	_, code = wavetool(t, "export", "-in", in, "-out", exported, "-rate", "ABP=50")
	require.Zero(t, code)

	f, err := os.Open(exported)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, f.Close())
	})

	er, err := edf.Open(f)
	require.NoError(t, err)
	hdr := er.Header()
	require.Len(t, hdr.Signals, 2)
	assert.Equal(t, 50, hdr.Signals[0].SamplesPerRecord)
	annotations, err := er.Annotations()
	require.NoError(t, err)
	assert.Equal(t, []edf.Annotation{
		{Onset: 500 * time.Millisecond, Text: "ABP start"},
		{Onset: 2500 * time.Millisecond, Text: "ABP start"},
	}, annotations)

	image := filepath.Join(dir, "abp.png")
	_, code = wavetool(t, "plot", "-in", in, "-signal", "ABP", "-out", image, "-from", "1s")
	require.Zero(t, code)
	require.FileExists(t, image)
}

func TestCommandErrors(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("WAVETOOL_STORE", filepath.Join(dir, "landmarks.db"))
	t.Setenv("WAVETOOL_LOG_LEVEL", "error")

	in := writeRecording(t, dir)

	_, code := wavetool(t)
	assert.Equal(t, 1, code)

	_, code = wavetool(t, "frobnicate")
	assert.Equal(t, 1, code)

	_, code = wavetool(t, "mark", "-in", in, "-signal", "ABP", "-category", "peak", "-at", "1s")
	assert.Equal(t, 1, code)

	_, code = wavetool(t, "mark", "-in", in, "-signal", "Flow", "-at", "1s")
	assert.Equal(t, 1, code)

	_, code = wavetool(t, "export", "-in", in, "-out", filepath.Join(dir, "x.edf"), "-rate", "Flow=10")
	assert.Equal(t, 1, code)
}

func TestLoadRecordingSubSecondStart(t *testing.T) {
	begin := recordingStart.Add(300 * time.Millisecond)

	timestamps := make([]int64, 201)
	values := make([]float64, 201)
	for i := range timestamps {
		timestamps[i] = begin.UnixNano() + int64(i)*int64(10*time.Millisecond)
		values[i] = float64(i % 50)
	}
	sig, err := waveform.NewSignal(timestamps, values)
	require.NoError(t, err)

	frame, err := waveform.Resample([]waveform.Channel{{Label: "Flow", Signal: sig, SampleRate: 100}})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "offset.edf")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, waveform.WriteEDF(f, frame, waveform.ExportOptions{}))
	require.NoError(t, f.Close())

	rec, err := loadRecording(path)
	require.NoError(t, err)
	assert.True(t, begin.Equal(rec.start), "start %s", rec.start)

	loaded, err := rec.signal("Flow")
	require.NoError(t, err)
	assert.Equal(t, begin.UnixNano(), loaded.First())
	assert.Equal(t, sig.Timestamps()[:200], loaded.Timestamps())
}

func TestCommandUsage(t *testing.T) {
	for _, name := range []string{"mark", "unmark", "points", "cycles", "plot", "export"} {
		var stderr bytes.Buffer
		env := &environment{stderr: &stderr}

		err := commands[name](context.Background(), env, []string{"-h"})
		require.ErrorIs(t, err, flag.ErrHelp, name)
		assert.Contains(t, stderr.String(), "Usage of "+name+":", name)
	}
}

func TestRateFlags(t *testing.T) {
	rates := rateFlags{}
	require.NoError(t, rates.Set("ABP=125"))
	require.NoError(t, rates.Set("Flow=62.5"))
	require.Error(t, rates.Set("ABP"))
	require.Error(t, rates.Set("ABP=-1"))
	require.Error(t, rates.Set("=10"))

	assert.Equal(t, "ABP=125,Flow=62.5", rates.String())
}
