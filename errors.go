// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package waveform

import "errors"

var (
	// ErrEmptySignal is returned when an operation needs at least one sample.
	ErrEmptySignal = errors.New("empty signal")
	// ErrLengthMismatch is returned when timestamps and values differ in length.
	ErrLengthMismatch = errors.New("timestamps and values differ in length")
	// ErrNotIncreasing is returned when timestamps are not strictly increasing.
	ErrNotIncreasing = errors.New("timestamps are not strictly increasing")
	// ErrCycleOrdering is returned when landmarks produce a cycle that ends
	// before it begins. It indicates corrupted landmark data.
	ErrCycleOrdering = errors.New("cycle ordering violation")
	// ErrNoChannels is returned when exporting an empty channel list.
	ErrNoChannels = errors.New("no channels")
	// ErrInsufficientSamples is returned when a channel has fewer than two samples.
	ErrInsufficientSamples = errors.New("insufficient samples")
	// ErrForeignLandmarks is returned when a channel's landmarks are attached
	// to a signal other than the channel's own.
	ErrForeignLandmarks = errors.New("landmarks belong to another signal")
	// ErrInvalidSampleRate is returned for non-positive or non-finite sample rates.
	ErrInvalidSampleRate = errors.New("invalid sample rate")
)
