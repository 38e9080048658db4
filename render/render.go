// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package render draws a signal and its landmarks.
package render

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/OpenPSG/waveform"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

const (
	width  = 14 * vg.Inch
	height = 6 * vg.Inch
)

// Plot draws the signal of idx as a line and each landmark category as a
// scatter of its own glyph. The x axis is in seconds from the start of the
// window; a nil window covers the whole signal.
func Plot(idx *waveform.LandmarkIndex, title string, w *waveform.Window) (*plot.Plot, error) {
	sig := idx.Signal()

	window := waveform.Window{Min: sig.First(), Max: sig.Last()}
	if w != nil {
		window = *w
	}
	seconds := func(t int64) float64 {
		return time.Duration(t - window.Min).Seconds()
	}

	var samples plotter.XYs
	for i := 0; i < sig.Len(); i++ {
		t, v := sig.At(i)
		if window.Contains(t) {
			samples = append(samples, plotter.XY{X: seconds(t), Y: v})
		}
	}
	if len(samples) == 0 {
		return nil, errors.New("no samples in window")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Time (s)"

	line, err := plotter.NewLine(samples)
	if err != nil {
		return nil, err
	}
	line.Color = plotutil.Color(0)
	line.Width = vg.Points(1)
	p.Add(line)
	p.Legend.Add(title, line)

	for i, c := range waveform.Categories() {
		points := idx.PointsIn(c, &window)
		if len(points) == 0 {
			continue
		}

		xys := make(plotter.XYs, len(points))
		for j, pt := range points {
			xys[j] = plotter.XY{X: seconds(pt.Time), Y: pt.Value}
		}

		scatter, err := plotter.NewScatter(xys)
		if err != nil {
			return nil, fmt.Errorf("%s landmarks: %w", c, err)
		}
		scatter.GlyphStyle.Shape = glyph(c)
		scatter.GlyphStyle.Color = plotutil.Color(i + 1)
		scatter.GlyphStyle.Radius = vg.Points(4)
		p.Add(scatter)
		p.Legend.Add(c.String(), scatter)
	}

	p.Legend.Top = true
	p.Legend.Left = false

	return p, nil
}

// Save writes the plot to path, the format following the file extension.
func Save(p *plot.Plot, path string) error {
	if err := p.Save(width, height, path); err != nil {
		return fmt.Errorf("save plot: %w", err)
	}
	return nil
}

// Encode writes the plot to w in the given format ("png", "svg", "pdf", ...).
func Encode(w io.Writer, p *plot.Plot, format string) error {
	wt, err := p.WriterTo(width, height, format)
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}

func glyph(c waveform.Category) draw.GlyphDrawer {
	switch c {
	case waveform.Start:
		return draw.CrossGlyph{}
	case waveform.Stop:
		return draw.BoxGlyph{}
	case waveform.Diastole:
		return draw.RingGlyph{}
	case waveform.Systole:
		return draw.TriangleGlyph{}
	case waveform.Dicrotic:
		return draw.PyramidGlyph{}
	default:
		return draw.CircleGlyph{}
	}
}
