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

// Package kiosk wires the exhibit together: config, layers, presets, the
// transition engine, the button box and the display host.
package kiosk

import (
	"errors"
	"fmt"
	"image"

	"github.com/KilpolaMuseum/mapkiosk/pkg/buttonbox"
	"github.com/KilpolaMuseum/mapkiosk/pkg/config"
	"github.com/KilpolaMuseum/mapkiosk/pkg/display"
	"github.com/KilpolaMuseum/mapkiosk/pkg/input"
	"github.com/KilpolaMuseum/mapkiosk/pkg/presets"
	"github.com/KilpolaMuseum/mapkiosk/pkg/scheduler"
	"github.com/KilpolaMuseum/mapkiosk/pkg/transition"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

const (
	pollTimer    = "poll"
	animateTimer = "animate"
)

type Options struct {
	Fs          afero.Fs
	Clock       clockwork.Clock
	PortFactory buttonbox.PortFactory
	DataDir     string
	// Screen overrides the surface size images are scaled to. Zero means
	// ask the display.
	Screen      image.Point
	NoDevice    bool
	Windowed    bool
}

type Kiosk struct {
	cfg        *config.Instance
	engine     *transition.Engine
	dispatcher *input.Dispatcher
	sched      *scheduler.Scheduler
	host       *display.Host
	device     *buttonbox.Box
	watcher    *config.Watcher
	fs         afero.Fs
	dataDir    string
	screen     image.Point
	reloads    int
}

// New builds a kiosk ready to run. Any error here is a startup failure.
func New(cfg *config.Instance, opts Options) (*Kiosk, error) {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	disp := cfg.Display()
	fullscreen := disp.Fullscreen && !opts.Windowed
	if opts.Screen == (image.Point{}) {
		opts.Screen = display.ScreenSize(fullscreen, disp.WindowWidth, disp.WindowHeight)
	}

	in := cfg.Input()
	mode, err := input.ParseMode(in.Mode)
	if err != nil {
		return nil, err
	}
	zero, err := input.ParseZeroByte(in.ZeroByte)
	if err != nil {
		return nil, err
	}
	bindings, err := display.Bindings(in.AdvanceKey, in.QuitKey)
	if err != nil {
		return nil, err
	}
	policy, err := transition.ParsePolicy(cfg.TransitionPolicy())
	if err != nil {
		return nil, err
	}

	cat, err := BuildCatalog(cfg, opts.Fs, opts.DataDir, opts.Screen)
	if err != nil {
		return nil, err
	}

	engine, err := transition.New(cat, transition.Options{
		Clock:    opts.Clock,
		Duration: cfg.TransitionDuration(),
		Policy:   policy,
	})
	if err != nil {
		return nil, err
	}
	engine.OnFinished(func(_, to presets.Preset) {
		log.Info().Int("index", to.Index).Str("preset", to.Name).Msg("preset shown")
	})

	k := &Kiosk{
		cfg:     cfg,
		engine:  engine,
		sched:   scheduler.New(opts.Clock),
		fs:      opts.Fs,
		dataDir: opts.DataDir,
		screen:  opts.Screen,
	}

	var device input.SignalReader
	if opts.NoDevice {
		log.Info().Msg("button box disabled, keyboard only")
	} else {
		serialCfg := cfg.Serial()
		box, openErr := buttonbox.Open(serialCfg.Port, buttonbox.Options{
			Factory:     opts.PortFactory,
			BaudRate:    serialCfg.BaudRate,
			ReadTimeout: cfg.ReadTimeout(),
		})
		if openErr != nil {
			return nil, openErr
		}
		k.device = box
		device = box
	}

	k.dispatcher = input.New(engine, device, input.Options{Mode: mode, ZeroByte: zero})

	k.sched.Every(pollTimer, cfg.PollInterval(), k.poll)
	k.sched.Every(animateTimer, 0, k.animate)

	k.host = display.NewHost(engine, k.dispatcher, k.sched, display.Options{
		Title:      config.AppName,
		Bindings:   bindings,
		Width:      disp.WindowWidth,
		Height:     disp.WindowHeight,
		Fullscreen: fullscreen,
	})

	return k, nil
}

func (k *Kiosk) poll() {
	if k.dispatcher.Poll() {
		k.sched.RequestRepaint()
	}
}

func (k *Kiosk) animate() {
	if k.engine.Advance() {
		k.sched.RequestRepaint()
	}
}

func (k *Kiosk) Engine() *transition.Engine {
	return k.engine
}

func (k *Kiosk) Dispatcher() *input.Dispatcher {
	return k.dispatcher
}

func (k *Kiosk) Scheduler() *scheduler.Scheduler {
	return k.sched
}

// Reload re-reads the config file and swaps in the new layers and presets.
// A broken file is logged and the running exhibit is left alone. Serial,
// key and transition settings take effect on the next start.
func (k *Kiosk) Reload() error {
	if err := k.cfg.Load(); err != nil {
		log.Error().Err(err).Msg("config reload failed, keeping current exhibit")
		return fmt.Errorf("reload config: %w", err)
	}

	cat, err := BuildCatalog(k.cfg, k.fs, k.dataDir, k.screen)
	if err != nil {
		log.Error().Err(err).Msg("config reload failed, keeping current exhibit")
		return fmt.Errorf("reload catalog: %w", err)
	}

	if err := k.engine.Reload(cat); err != nil {
		log.Error().Err(err).Msg("config reload failed, keeping current exhibit")
		return fmt.Errorf("reload engine: %w", err)
	}

	k.sched.Reschedule(pollTimer, k.cfg.PollInterval())
	k.sched.RequestRepaint()
	k.reloads++
	log.Info().Int("presets", cat.Len()).Msg("config reloaded")
	return nil
}

// Reloads counts successful reloads.
func (k *Kiosk) Reloads() int {
	return k.reloads
}

// Watch reloads the exhibit whenever the config file changes. The reload
// itself runs on the display thread.
func (k *Kiosk) Watch() error {
	w, err := k.cfg.Watch(func() {
		k.sched.Post(func() {
			_ = k.Reload()
		})
	})
	if err != nil {
		return fmt.Errorf("watch config: %w", err)
	}
	k.watcher = w
	return nil
}

// Run blocks on the display loop, then releases the device.
func (k *Kiosk) Run() error {
	runErr := k.host.Run()
	return errors.Join(runErr, k.Close())
}

// Close stops the scheduler and releases the watcher and the button box.
// It is safe to call more than once.
func (k *Kiosk) Close() error {
	k.sched.Stop()

	var errs []error
	if k.watcher != nil {
		if err := k.watcher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close config watcher: %w", err))
		}
		k.watcher = nil
	}
	if k.device != nil {
		if err := k.device.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close button box: %w", err))
		}
		k.device = nil
	}
	return errors.Join(errs...)
}
