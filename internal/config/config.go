// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package config loads wavetool configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Config holds all wavetool configuration.
type Config struct {
	StorePath      string        // SQLite database holding landmarks.
	LogLevel       string        // "debug", "info", "warn" or "error".
	RecordDuration time.Duration // EDF data record duration used on export.
	PatientID      string        // EDF+ patient identification written on export.
	RecordingID    string        // EDF+ recording identification written on export.
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (Config, error) {
	var errs []error

	recordDuration, err := envDuration("WAVETOOL_RECORD_DURATION", time.Second)
	errs = append(errs, err)

	cfg := Config{
		StorePath:      envStr("WAVETOOL_STORE", "landmarks.db"),
		LogLevel:       envStr("WAVETOOL_LOG_LEVEL", "info"),
		RecordDuration: recordDuration,
		PatientID:      envStr("WAVETOOL_PATIENT_ID", "X X X X"),
		RecordingID:    envStr("WAVETOOL_RECORDING_ID", "Startdate X X X X"),
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.StorePath == "" {
		return errors.New("config: WAVETOOL_STORE is required")
	}
	if c.RecordDuration <= 0 {
		return errors.New("config: WAVETOOL_RECORD_DURATION must be positive")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: WAVETOOL_LOG_LEVEL: %w", err)
	}
	return nil
}

// SlogLevel returns the configured log level.
func (c Config) SlogLevel() slog.Level {
	level, _ := parseLevel(c.LogLevel)
	return level
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return slog.LevelInfo, err
	}
	return level, nil
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal, fmt.Errorf("%s=%q is not a valid duration", key, v)
	}
	return d, nil
}
