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
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/OpenPSG/waveform"
	"github.com/OpenPSG/waveform/internal/config"
	"github.com/OpenPSG/waveform/render"
	"github.com/OpenPSG/waveform/store"
)

type environment struct {
	cfg    config.Config
	logger *slog.Logger
	store  *store.Store
	stdout io.Writer
	stderr io.Writer
}

// flagSet returns a flag set for the named command, reporting to stderr.
func (env *environment) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(env.stderr)
	return fs
}

type command func(ctx context.Context, env *environment, args []string) error

var commands = map[string]command{
	"mark":   markCommand(false),
	"unmark": markCommand(true),
	"points": pointsCommand,
	"cycles": cyclesCommand,
	"plot":   plotCommand,
	"export": exportCommand,
}

// signalFlags are the flags shared by every command working on one signal.
type signalFlags struct {
	in    string
	label string
	from  time.Duration
	to    time.Duration
}

func (f *signalFlags) register(fs *flag.FlagSet, window bool) {
	fs.StringVar(&f.in, "in", "", "input EDF file")
	fs.StringVar(&f.label, "signal", "", "signal label")
	if window {
		fs.DurationVar(&f.from, "from", 0, "window start, from the start of the recording")
		fs.DurationVar(&f.to, "to", 0, "window end, from the start of the recording (0 for the end of the signal)")
	}
}

// window returns the selected time window, or nil for the whole signal.
func (f *signalFlags) window(rec *recording, sig *waveform.Signal) *waveform.Window {
	if f.from == 0 && f.to == 0 {
		return nil
	}
	w := waveform.Window{Min: rec.start.UnixNano() + int64(f.from), Max: sig.Last()}
	if f.to > 0 {
		w.Max = rec.start.UnixNano() + int64(f.to)
	}
	return &w
}

// open loads the recording, the selected signal and its stored landmarks.
func (f *signalFlags) open(ctx context.Context, env *environment) (*recording, *waveform.LandmarkIndex, error) {
	if f.in == "" || f.label == "" {
		return nil, nil, errors.New("-in and -signal are required")
	}

	rec, err := loadRecording(f.in)
	if err != nil {
		return nil, nil, err
	}

	sig, err := rec.signal(f.label)
	if err != nil {
		return nil, nil, err
	}

	idx, err := waveform.NewLandmarkIndex(sig)
	if err != nil {
		return nil, nil, fmt.Errorf("signal %q: %w", f.label, err)
	}

	if _, err := env.store.Load(ctx, rec.curve(f.label), idx); err != nil {
		return nil, nil, err
	}

	return rec, idx, nil
}

func markCommand(remove bool) command {
	return func(ctx context.Context, env *environment, args []string) error {
		var sf signalFlags
		var category, at string

		name := "mark"
		if remove {
			name = "unmark"
		}

		fs := env.flagSet(name)
		sf.register(fs, false)
		fs.StringVar(&category, "category", "start", "landmark category: start, stop, diastole, systole or dicrotic")
		fs.StringVar(&at, "at", "", "comma separated times from the start of the recording, e.g. 1.2s,2.05s")
		if err := fs.Parse(args); err != nil {
			return err
		}

		c, err := waveform.ParseCategory(category)
		if err != nil {
			return err
		}

		rec, idx, err := sf.open(ctx, env)
		if err != nil {
			return err
		}

		offsets, err := parseOffsets(at)
		if err != nil {
			return err
		}
		timestamps := make([]int64, len(offsets))
		for i, offset := range offsets {
			timestamps[i] = rec.start.UnixNano() + int64(offset)
		}

		before := idx.Len(c)
		if remove {
			idx.RemovePoints(c, timestamps...)
		} else {
			idx.AddPoints(c, timestamps...)
		}

		if err := env.store.Save(ctx, rec.curve(sf.label), idx); err != nil {
			return err
		}

		env.logger.Info("updated landmarks", "curve", rec.curve(sf.label), "category", c.String(), "before", before, "after", idx.Len(c))
		return nil
	}
}

func pointsCommand(ctx context.Context, env *environment, args []string) error {
	var sf signalFlags

	fs := env.flagSet("points")
	sf.register(fs, false)
	if err := fs.Parse(args); err != nil {
		return err
	}

	rec, idx, err := sf.open(ctx, env)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(env.stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tTIME (s)\tVALUE")
	for _, p := range idx.Points() {
		fmt.Fprintf(tw, "%s\t%.3f\t%g\n", p.Category, seconds(rec, p.Time), p.Value)
	}
	return tw.Flush()
}

func cyclesCommand(ctx context.Context, env *environment, args []string) error {
	var sf signalFlags

	fs := env.flagSet("cycles")
	sf.register(fs, true)
	if err := fs.Parse(args); err != nil {
		return err
	}

	rec, idx, err := sf.open(ctx, env)
	if err != nil {
		return err
	}

	cycles, err := waveform.Segment(idx, sf.window(rec, idx.Signal()))
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(env.stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "BEGIN (s)\tDURATION (s)")
	for _, c := range cycles {
		fmt.Fprintf(tw, "%.3f\t%.3f\n", seconds(rec, c.Begin), time.Duration(c.Duration).Seconds())
	}
	return tw.Flush()
}

func plotCommand(ctx context.Context, env *environment, args []string) error {
	var sf signalFlags
	var out string

	fs := env.flagSet("plot")
	sf.register(fs, true)
	fs.StringVar(&out, "out", "", "output image, format from extension (png, svg, pdf)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if out == "" {
		return errors.New("-out is required")
	}

	rec, idx, err := sf.open(ctx, env)
	if err != nil {
		return err
	}

	p, err := render.Plot(idx, sf.label, sf.window(rec, idx.Signal()))
	if err != nil {
		return err
	}
	if err := render.Save(p, out); err != nil {
		return err
	}

	env.logger.Info("wrote plot", "path", out)
	return nil
}

// rateFlags collects repeated -rate label=Hz flags.
type rateFlags map[string]float64

func (r rateFlags) String() string {
	var parts []string
	for label, rate := range r {
		parts = append(parts, fmt.Sprintf("%s=%g", label, rate))
	}
	slices.Sort(parts)
	return strings.Join(parts, ",")
}

func (r rateFlags) Set(v string) error {
	label, rate, ok := strings.Cut(v, "=")
	if !ok || label == "" {
		return fmt.Errorf("expected label=Hz, got %q", v)
	}
	hz, err := strconv.ParseFloat(rate, 64)
	if err != nil || hz <= 0 {
		return fmt.Errorf("invalid sample rate %q for %q", rate, label)
	}
	r[label] = hz
	return nil
}

func exportCommand(ctx context.Context, env *environment, args []string) error {
	var in, out string
	rates := rateFlags{}

	fs := env.flagSet("export")
	fs.StringVar(&in, "in", "", "input EDF file")
	fs.StringVar(&out, "out", "", "output EDF+ file")
	fs.Var(rates, "rate", "label=Hz, repeatable; exports only the named signals (default: all signals at their estimated rate)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if in == "" || out == "" {
		return errors.New("-in and -out are required")
	}

	rec, err := loadRecording(in)
	if err != nil {
		return err
	}

	var channels []waveform.Channel
	for _, label := range rec.labels {
		rate, ok := rates[label]
		if len(rates) > 0 && !ok {
			continue
		}

		sig := rec.signals[label]
		if !ok {
			rate = sig.SampleRate()
		}

		ch := waveform.Channel{
			Label:             label,
			Signal:            sig,
			SampleRate:        rate,
			PhysicalDimension: rec.units[label],
		}

		if sig.Len() > 0 {
			idx, err := waveform.NewLandmarkIndex(sig)
			if err != nil {
				return err
			}
			n, err := env.store.Load(ctx, rec.curve(label), idx)
			if err != nil {
				return err
			}
			if n > 0 {
				ch.Landmarks = idx
			}
		}

		channels = append(channels, ch)
	}

	for label := range rates {
		if _, ok := rec.signals[label]; !ok {
			return fmt.Errorf("%s has no signal %q", rec.name, label)
		}
	}

	frame, err := waveform.Resample(channels)
	if err != nil {
		return err
	}

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()

	err = waveform.WriteEDF(f, frame, waveform.ExportOptions{
		PatientID:      env.cfg.PatientID,
		RecordingID:    env.cfg.RecordingID,
		RecordDuration: env.cfg.RecordDuration,
	})
	if err != nil {
		return err
	}

	env.logger.Info("exported recording", "path", out, "channels", len(frame.Channels))
	return f.Close()
}

func parseOffsets(list string) ([]time.Duration, error) {
	if strings.TrimSpace(list) == "" {
		return nil, errors.New("-at is required")
	}

	var offsets []time.Duration
	for _, s := range strings.Split(list, ",") {
		d, err := time.ParseDuration(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("invalid time %q: %w", s, err)
		}
		offsets = append(offsets, d)
	}
	return offsets, nil
}

func seconds(rec *recording, t int64) float64 {
	return time.Duration(t - rec.start.UnixNano()).Seconds()
}
