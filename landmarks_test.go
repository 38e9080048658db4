// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package waveform_test

import (
	"slices"
	"testing"

	"github.com/OpenPSG/waveform"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIndex(t *testing.T, sig *waveform.Signal) *waveform.LandmarkIndex {
	t.Helper()

	idx, err := waveform.NewLandmarkIndex(sig)
	require.NoError(t, err)
	return idx
}

func TestCategory(t *testing.T) {
	for _, c := range waveform.Categories() {
		parsed, err := waveform.ParseCategory(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, parsed)
	}

	_, err := waveform.ParseCategory("peak")
	require.Error(t, err)
}

func TestNewLandmarkIndexEmptySignal(t *testing.T) {
	empty, err := waveform.NewSignal(nil, nil)
	require.NoError(t, err)

	_, err = waveform.NewLandmarkIndex(empty)
	require.ErrorIs(t, err, waveform.ErrEmptySignal)

	_, err = waveform.NewLandmarkIndex(nil)
	require.ErrorIs(t, err, waveform.ErrEmptySignal)
}

func TestAddPointsSnapsToSignal(t *testing.T) {
	sig := newSignal(t, 0, 10, 41, identity) // 0..400
	timestamps := sig.Timestamps()

	for req := int64(-20); req <= 420; req++ {
		idx := newIndex(t, sig)
		idx.AddPoints(waveform.Start, req)

		got := idx.Timestamps(waveform.Start)
		require.Len(t, got, 1)
		require.Contains(t, timestamps, got[0])

		// No other signal timestamp is strictly closer.
		for _, ts := range timestamps {
			require.LessOrEqual(t, abs(got[0]-req), abs(ts-req), "request %d", req)
		}
	}

	idx := newIndex(t, sig)
	idx.AddPoints(waveform.Start, 15, 25)
	assert.Equal(t, []int64{10, 20}, idx.Timestamps(waveform.Start), "midpoints snap to the earlier sample")
}

func TestAddPointsIdempotent(t *testing.T) {
	sig := newSignal(t, 0, 10, 41, identity)

	once := newIndex(t, sig)
	once.AddPoints(waveform.Systole, 120, 42)

	twice := newIndex(t, sig)
	twice.AddPoints(waveform.Systole, 120, 42)
	twice.AddPoints(waveform.Systole, 120, 42)
	twice.AddPoints(waveform.Systole, 119)

	if diff := cmp.Diff(once.Timestamps(waveform.Systole), twice.Timestamps(waveform.Systole)); diff != "" {
		t.Errorf("landmarks mismatch (-once +twice):\n%s", diff)
	}
}

func TestLandmarksStaySorted(t *testing.T) {
	sig := newSignal(t, 0, 10, 101, identity)
	idx := newIndex(t, sig)

	idx.AddPoints(waveform.Stop, 500, 30, 970, 30, 210)
	idx.RemovePoints(waveform.Stop, 480)
	idx.AddPoints(waveform.Stop, 660, 0, 2000)
	idx.RemovePoints(waveform.Stop, -5)

	got := idx.Timestamps(waveform.Stop)
	assert.Equal(t, []int64{30, 210, 660, 970, 1000}, got)
	assert.True(t, slices.IsSorted(got))
}

func TestSetPointsReplaces(t *testing.T) {
	sig := newSignal(t, 0, 10, 41, identity)
	idx := newIndex(t, sig)

	idx.AddPoints(waveform.Start, 100, 200)
	idx.SetPoints(waveform.Start, 305, 51)

	assert.Equal(t, []int64{50, 300}, idx.Timestamps(waveform.Start))
}

func TestRemovePoints(t *testing.T) {
	sig := newSignal(t, 0, 10, 41, identity)
	idx := newIndex(t, sig)
	idx.AddPoints(waveform.Start, 100, 200, 300)

	// Removal snaps to the nearest stored landmark, not the nearest sample.
	idx.RemovePoints(waveform.Start, 240)
	assert.Equal(t, []int64{100, 300}, idx.Timestamps(waveform.Start))

	idx.RemovePoints(waveform.Start, 0, 1000)
	assert.Empty(t, idx.Timestamps(waveform.Start))

	// Nothing left to remove.
	idx.RemovePoints(waveform.Start, 100)
	assert.Empty(t, idx.Timestamps(waveform.Start))
}

func TestRemovePointsNeverPopulated(t *testing.T) {
	sig := newSignal(t, 0, 10, 41, identity)
	idx := newIndex(t, sig)
	idx.AddPoints(waveform.Start, 100)

	before := idx.Points()
	idx.RemovePoints(waveform.Dicrotic, 100)

	assert.Equal(t, before, idx.Points())
	assert.Zero(t, idx.Len(waveform.Dicrotic))
}

func TestSelection(t *testing.T) {
	sig := newSignal(t, 0, 10, 41, identity)
	idx := newIndex(t, sig)
	idx.AddPoints(waveform.Start, 100, 200, 300)
	idx.AddPoints(waveform.Stop, 150, 250)

	a := waveform.Landmark{Time: 200, Category: waveform.Start}
	b := waveform.Landmark{Time: 250, Category: waveform.Stop}

	assert.True(t, idx.ToggleSelection(a))
	assert.True(t, idx.ToggleSelection(b))
	idx.Select(b)
	assert.Equal(t, []waveform.Landmark{a, b}, idx.Selected())

	assert.False(t, idx.ToggleSelection(a))
	assert.False(t, idx.IsSelected(a))
	idx.Select(a)

	idx.RemoveSelected()

	assert.Empty(t, idx.Selected())
	assert.Equal(t, []int64{100, 300}, idx.Timestamps(waveform.Start))
	assert.Equal(t, []int64{150}, idx.Timestamps(waveform.Stop))

	// Selections are discarded even when the landmark is already gone.
	idx.Select(a)
	idx.RemoveSelected()
	assert.Empty(t, idx.Selected())
}

func TestPoints(t *testing.T) {
	sig := newSignal(t, 0, 10, 41, func(ts int64) float64 { return float64(ts) * 2 })
	idx := newIndex(t, sig)

	assert.Empty(t, idx.Points())

	idx.AddPoints(waveform.Dicrotic, 330)
	idx.AddPoints(waveform.Start, 200, 100)
	idx.AddPoints(waveform.Stop) // creates nothing to render

	want := []waveform.Point{
		{Time: 100, Value: 200, Category: waveform.Start},
		{Time: 200, Value: 400, Category: waveform.Start},
		{Time: 330, Value: 660, Category: waveform.Dicrotic},
	}
	if diff := cmp.Diff(want, idx.Points()); diff != "" {
		t.Errorf("points mismatch (-want +got):\n%s", diff)
	}

	window := waveform.Window{Min: 150, Max: 400}
	assert.Equal(t, want[1:2], idx.PointsIn(waveform.Start, &window))
	assert.Equal(t, want[:2], idx.PointsIn(waveform.Start, nil))
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
