// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Command wavetool annotates the signals of an EDF file with cycle
// landmarks, lists their cycles, plots them and re-exports them at new
// sample rates.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/OpenPSG/waveform/internal/config"
	"github.com/OpenPSG/waveform/store"
)

const usage = `usage: wavetool <command> [flags]

commands:
  mark     add landmarks to a signal
  unmark   remove the landmarks nearest to the given times
  points   list the landmarks of a signal
  cycles   list the cycles of a signal
  plot     draw a signal and its landmarks
  export   resample signals and write them, with landmarks, as EDF+
`

func main() {
	os.Exit(run0(os.Args[1:], os.Stdout))
}

func run0(args []string, stdout io.Writer) int {
	// Load .env file if present (non-fatal).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger, args, stdout); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("missing command\n%s", usage)
	}

	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("unknown command %q\n%s", args[0], usage)
	}

	st, err := store.Open(cfg.StorePath, logger)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	env := &environment{
		cfg:    cfg,
		logger: logger,
		store:  st,
		stdout: stdout,
		stderr: os.Stderr,
	}
	return cmd(ctx, env, args[1:])
}
