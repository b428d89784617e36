// Map Kiosk
// Copyright (c) 2026 The Map Kiosk Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Map Kiosk.
//
// Map Kiosk is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Map Kiosk is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Map Kiosk.  If not, see <http://www.gnu.org/licenses/>.

// Package input turns key presses and button box bytes into preset
// selections.
package input

import (
	"fmt"
	"time"

	"github.com/KilpolaMuseum/mapkiosk/pkg/layers"
	"github.com/KilpolaMuseum/mapkiosk/pkg/presets"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	// DefaultWarnEvery and DefaultWarnBurst bound how often bad input is
	// logged, so a noisy serial line can't flood the log.
	DefaultWarnEvery = time.Second
	DefaultWarnBurst = 5
)

type Action int

const (
	ActionNone Action = iota
	ActionAdvance
	ActionQuit
)

func (a Action) String() string {
	switch a {
	case ActionAdvance:
		return "advance"
	case ActionQuit:
		return "quit"
	default:
		return "none"
	}
}

// Mode decides how a device byte is read.
type Mode int

const (
	// ModePreset treats a byte as a preset index.
	ModePreset Mode = iota
	// ModeMask treats a byte as a bitmask of layers to show.
	ModeMask
)

func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "preset":
		return ModePreset, nil
	case "mask":
		return ModeMask, nil
	default:
		return 0, fmt.Errorf("%w: unknown input mode %q", layers.ErrConfig, s)
	}
}

// ZeroByte decides what a 0 byte from the device means.
type ZeroByte int

const (
	// ZeroIgnore treats 0 as "no signal".
	ZeroIgnore ZeroByte = iota
	// ZeroBlank fades every layer out.
	ZeroBlank
)

func ParseZeroByte(s string) (ZeroByte, error) {
	switch s {
	case "", "ignore":
		return ZeroIgnore, nil
	case "blank":
		return ZeroBlank, nil
	default:
		return 0, fmt.Errorf("%w: unknown zero byte meaning %q", layers.ErrConfig, s)
	}
}

// Engine is the part of the transition engine the dispatcher drives.
type Engine interface {
	Select(index int) error
	Apply(p presets.Preset)
	Current() int
	Catalog() *presets.Catalog
}

// SignalReader is the button box: one byte per read, ok=false on timeout.
type SignalReader interface {
	ReadSignal() (v byte, ok bool, err error)
}

type Options struct {
	Logger    *zerolog.Logger
	WarnEvery time.Duration
	WarnBurst int
	Mode      Mode
	ZeroByte  ZeroByte
}

type Dispatcher struct {
	engine     Engine
	device     SignalReader
	warn       *rate.Limiter
	logger     *zerolog.Logger
	suppressed int
	rejected   int
	mode       Mode
	zero       ZeroByte
	quitting   bool
}

// New builds a dispatcher. device may be nil for a keyboard-only kiosk.
func New(engine Engine, device SignalReader, opts Options) *Dispatcher {
	if opts.WarnEvery <= 0 {
		opts.WarnEvery = DefaultWarnEvery
	}
	if opts.WarnBurst <= 0 {
		opts.WarnBurst = DefaultWarnBurst
	}
	if opts.Logger == nil {
		opts.Logger = &log.Logger
	}

	return &Dispatcher{
		engine: engine,
		device: device,
		warn:   rate.NewLimiter(rate.Every(opts.WarnEvery), opts.WarnBurst),
		logger: opts.Logger,
		mode:   opts.Mode,
		zero:   opts.ZeroByte,
	}
}

// HandleAction runs a key action. It reports whether a sweep was started.
func (d *Dispatcher) HandleAction(a Action) bool {
	switch a {
	case ActionAdvance:
		next := d.engine.Catalog().Next(d.engine.Current())
		d.logger.Debug().Int("preset", next).Msg("advance key")
		if err := d.engine.Select(next); err != nil {
			d.reject(err, "failed to advance preset")
			return false
		}
		return true
	case ActionQuit:
		if !d.quitting {
			d.logger.Info().Msg("quit key pressed")
		}
		d.quitting = true
		return false
	default:
		return false
	}
}

// Quitting reports whether the quit key has been pressed.
func (d *Dispatcher) Quitting() bool {
	return d.quitting
}

// Rejected counts inputs dropped because of config errors.
func (d *Dispatcher) Rejected() int {
	return d.rejected
}

// Poll reads at most one byte from the device and handles it. It reports
// whether a sweep was started.
func (d *Dispatcher) Poll() bool {
	if d.device == nil {
		return false
	}

	v, ok, err := d.device.ReadSignal()
	if err != nil {
		if d.warn.Allow() {
			d.logger.Error().Err(err).Msg("button box read failed")
		}
		return false
	}
	if !ok {
		return false
	}
	return d.HandleByte(v)
}

// HandleByte applies one device byte according to the input mode.
func (d *Dispatcher) HandleByte(v byte) bool {
	if v == 0 {
		if d.zero == ZeroBlank {
			d.logger.Debug().Msg("zero byte, blanking")
			d.engine.Apply(presets.Blank())
			return true
		}
		return false
	}

	if d.mode == ModeMask {
		p := d.engine.Catalog().FromMask(v)
		d.logger.Debug().Str("preset", p.Name).Msg("mask signal")
		d.engine.Apply(p)
		return true
	}

	d.logger.Debug().Uint8("byte", v).Msg("preset signal")
	if err := d.engine.Select(int(v)); err != nil {
		d.reject(err, "ignoring signal")
		return false
	}
	return true
}

func (d *Dispatcher) reject(err error, msg string) {
	d.rejected++
	if !d.warn.Allow() {
		d.suppressed++
		return
	}

	ev := d.logger.Warn().Err(err)
	if d.suppressed > 0 {
		ev = ev.Int("suppressed", d.suppressed)
		d.suppressed = 0
	}
	ev.Msg(msg)
}
