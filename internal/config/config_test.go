// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"WAVETOOL_STORE", "WAVETOOL_LOG_LEVEL", "WAVETOOL_RECORD_DURATION", "WAVETOOL_PATIENT_ID", "WAVETOOL_RECORDING_ID"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "landmarks.db", cfg.StorePath)
	assert.Equal(t, time.Second, cfg.RecordDuration)
	assert.Equal(t, "X X X X", cfg.PatientID)
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("WAVETOOL_STORE", "/tmp/marks.db")
	t.Setenv("WAVETOOL_LOG_LEVEL", "debug")
	t.Setenv("WAVETOOL_RECORD_DURATION", "500ms")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/marks.db", cfg.StorePath)
	assert.Equal(t, 500*time.Millisecond, cfg.RecordDuration)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestEnvDurationInvalid(t *testing.T) {
	t.Setenv("TEST_DURATION_BAD", "soon")
	_, err := envDuration("TEST_DURATION_BAD", time.Second)
	require.Error(t, err)
	assert.Equal(t, `TEST_DURATION_BAD="soon" is not a valid duration`, err.Error())
}

func TestValidate(t *testing.T) {
	valid := Config{StorePath: "x.db", LogLevel: "warn", RecordDuration: time.Second}
	require.NoError(t, valid.Validate())

	noStore := valid
	noStore.StorePath = ""
	require.Error(t, noStore.Validate())

	badDuration := valid
	badDuration.RecordDuration = 0
	require.Error(t, badDuration.Validate())

	badLevel := valid
	badLevel.LogLevel = "loud"
	require.Error(t, badLevel.Validate())
}
