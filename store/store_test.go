// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/OpenPSG/waveform"
	"github.com/OpenPSG/waveform/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIndex(t *testing.T) *waveform.LandmarkIndex {
	t.Helper()

	timestamps := make([]int64, 100)
	values := make([]float64, 100)
	for i := range timestamps {
		timestamps[i] = int64(i) * 10
		values[i] = float64(i)
	}

	sig, err := waveform.NewSignal(timestamps, values)
	require.NoError(t, err)

	idx, err := waveform.NewLandmarkIndex(sig)
	require.NoError(t, err)
	return idx
}

func openStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.Open(filepath.Join(t.TempDir(), "landmarks.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})

	return s
}

func TestSaveLoad(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	idx := newIndex(t)
	idx.AddPoints(waveform.Start, 100, 300, 500)
	idx.AddPoints(waveform.Stop, 250, 450)
	idx.AddPoints(waveform.Dicrotic, 170)
	require.NoError(t, s.Save(ctx, "ABP", idx))

	loaded := newIndex(t)
	loaded.AddPoints(waveform.Systole, 20) // replaced by the stored state
	n, err := s.Load(ctx, "ABP", loaded)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, idx.Points(), loaded.Points())

	// Saving again replaces the previous rows.
	idx.RemovePoints(waveform.Start, 300)
	require.NoError(t, s.Save(ctx, "ABP", idx))

	n, err = s.Load(ctx, "ABP", loaded)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, []int64{100, 500}, loaded.Timestamps(waveform.Start))
}

func TestCurvesAndDelete(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	idx := newIndex(t)
	idx.AddPoints(waveform.Start, 100)
	require.NoError(t, s.Save(ctx, "Flow", idx))
	require.NoError(t, s.Save(ctx, "ABP", idx))

	curves, err := s.Curves(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"ABP", "Flow"}, curves)

	require.NoError(t, s.Delete(ctx, "ABP"))

	curves, err = s.Curves(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Flow"}, curves)

	// Loading an unknown curve leaves an empty index.
	loaded := newIndex(t)
	loaded.AddPoints(waveform.Start, 10)
	n, err := s.Load(ctx, "ABP", loaded)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, loaded.Points())
}
