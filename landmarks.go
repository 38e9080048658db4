// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package waveform

import (
	"fmt"
	"slices"
)

// Category identifies the kind of a landmark.
type Category int

const (
	Start Category = iota
	Stop
	Diastole
	Systole
	Dicrotic
)

// Categories returns every landmark category in canonical order.
func Categories() []Category {
	return []Category{Start, Stop, Diastole, Systole, Dicrotic}
}

func (c Category) String() string {
	switch c {
	case Start:
		return "start"
	case Stop:
		return "stop"
	case Diastole:
		return "diastole"
	case Systole:
		return "systole"
	case Dicrotic:
		return "dicrotic"
	default:
		return fmt.Sprintf("Category(%d)", int(c))
	}
}

// ParseCategory is the inverse of Category.String.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories() {
		if c.String() == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown landmark category %q", s)
}

// Landmark is a labeled timestamp.
type Landmark struct {
	Time     int64
	Category Category
}

// Point is a landmark together with the signal value at its timestamp.
type Point struct {
	Time     int64
	Value    float64
	Category Category
}

// LandmarkIndex holds, per category, the sorted set of landmark timestamps
// of a single signal. Every stored timestamp is an exact timestamp of that
// signal.
//
// A LandmarkIndex is not safe for concurrent mutation.
type LandmarkIndex struct {
	signal   *Signal
	sets     map[Category][]int64
	selected []Landmark
}

// NewLandmarkIndex creates an empty index attached to sig.
func NewLandmarkIndex(sig *Signal) (*LandmarkIndex, error) {
	if sig == nil || sig.Len() == 0 {
		return nil, ErrEmptySignal
	}
	return &LandmarkIndex{
		signal: sig,
		sets:   make(map[Category][]int64),
	}, nil
}

// Signal returns the signal the index is attached to.
func (idx *LandmarkIndex) Signal() *Signal {
	return idx.signal
}

// AddPoints snaps each timestamp to the nearest signal timestamp and inserts
// it into the category. Duplicates are ignored.
func (idx *LandmarkIndex) AddPoints(c Category, ts ...int64) {
	set := idx.sets[c]
	for _, t := range ts {
		snapped := idx.signal.timestamps[idx.signal.Nearest(t)]
		i, found := slices.BinarySearch(set, snapped)
		if !found {
			set = slices.Insert(set, i, snapped)
		}
	}
	idx.sets[c] = set
}

// SetPoints replaces the contents of the category with the snapped timestamps.
func (idx *LandmarkIndex) SetPoints(c Category, ts ...int64) {
	delete(idx.sets, c)
	idx.AddPoints(c, ts...)
}

// RemovePoints deletes, for each timestamp, the stored landmark of the
// category nearest to it. Removing from an empty or unknown category does
// nothing.
func (idx *LandmarkIndex) RemovePoints(c Category, ts ...int64) {
	for _, t := range ts {
		set := idx.sets[c]
		if len(set) == 0 {
			return
		}
		i := nearest(set, t)
		idx.sets[c] = slices.Delete(set, i, i+1)
	}
}

// Timestamps returns a copy of the stored timestamps of the category.
func (idx *LandmarkIndex) Timestamps(c Category) []int64 {
	return slices.Clone(idx.sets[c])
}

// Len returns the number of landmarks in the category.
func (idx *LandmarkIndex) Len(c Category) int {
	return len(idx.sets[c])
}

// Select marks a landmark as selected.
func (idx *LandmarkIndex) Select(l Landmark) {
	if !idx.IsSelected(l) {
		idx.selected = append(idx.selected, l)
	}
}

// Unselect clears the selection of a landmark.
func (idx *LandmarkIndex) Unselect(l Landmark) {
	idx.selected = slices.DeleteFunc(idx.selected, func(s Landmark) bool { return s == l })
}

// ToggleSelection selects an unselected landmark and unselects a selected one.
// It reports whether the landmark is selected afterwards.
func (idx *LandmarkIndex) ToggleSelection(l Landmark) bool {
	if idx.IsSelected(l) {
		idx.Unselect(l)
		return false
	}
	idx.Select(l)
	return true
}

// IsSelected reports whether the landmark is selected.
func (idx *LandmarkIndex) IsSelected(l Landmark) bool {
	return slices.Contains(idx.selected, l)
}

// Selected returns the selected landmarks in selection order.
func (idx *LandmarkIndex) Selected() []Landmark {
	return slices.Clone(idx.selected)
}

// RemoveSelected removes every selected landmark and clears the selection.
func (idx *LandmarkIndex) RemoveSelected() {
	for _, l := range idx.selected {
		idx.RemovePoints(l.Category, l.Time)
	}
	idx.selected = nil
}

// Points returns every landmark with its signal value, categories in
// canonical order and timestamps ascending within a category.
func (idx *LandmarkIndex) Points() []Point {
	var points []Point
	for _, c := range Categories() {
		for _, t := range idx.sets[c] {
			v, _ := idx.signal.ValueAt(t)
			points = append(points, Point{Time: t, Value: v, Category: c})
		}
	}
	return points
}
