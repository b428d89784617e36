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

package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"

	"github.com/KilpolaMuseum/mapkiosk/pkg/buttonbox"
	"github.com/KilpolaMuseum/mapkiosk/pkg/config"
	"github.com/KilpolaMuseum/mapkiosk/pkg/helpers"
	"github.com/KilpolaMuseum/mapkiosk/pkg/kiosk"
	"github.com/rs/zerolog/log"
)

// ErrExit is returned by Pre when a flag was fully handled and the program
// should stop without error.
var ErrExit = errors.New("exit requested")

type Flags struct {
	set       *flag.FlagSet
	Config    *string
	Version   *bool
	ListPorts *bool
	NoDevice  *bool
	Windowed  *bool
	Debug     *bool
}

// SetupFlags defines the kiosk's flags on fs.
func SetupFlags(fs *flag.FlagSet) *Flags {
	return &Flags{
		set: fs,
		Config: fs.String(
			"config",
			"",
			"path to config file (default: user config dir)",
		),
		Version: fs.Bool(
			"version",
			false,
			"print version and exit",
		),
		ListPorts: fs.Bool(
			"list-ports",
			false,
			"list serial ports that could be the button box and exit",
		),
		NoDevice: fs.Bool(
			"no-device",
			false,
			"run without a button box, keyboard only",
		),
		Windowed: fs.Bool(
			"windowed",
			false,
			"run in a window instead of full screen",
		),
		Debug: fs.Bool(
			"debug",
			false,
			"enable debug logging",
		),
	}
}

// PortLister is swapped out in tests.
type PortLister func() ([]buttonbox.PortInfo, error)

// Pre parses args and handles the flags that need no environment. It
// returns ErrExit when the program should stop.
func (f *Flags) Pre(args []string, out io.Writer, list PortLister) error {
	if err := f.set.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	switch {
	case *f.Version:
		_, _ = fmt.Fprintf(out, "Map Kiosk v%s\n", config.AppVersion)
		return ErrExit
	case *f.ListPorts:
		if list == nil {
			list = buttonbox.ListPorts
		}
		ports, err := list()
		if err != nil {
			return err
		}
		if len(ports) == 0 {
			_, _ = fmt.Fprintln(out, "no serial ports found")
		}
		for _, p := range ports {
			_, _ = fmt.Fprintln(out, p.String())
		}
		return ErrExit
	}
	return nil
}

// Setup starts logging and loads the config.
func (f *Flags) Setup(defaults config.Values, logDir string, writers []io.Writer) (*config.Instance, error) {
	runID, err := helpers.InitLogging(logDir, writers)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	var cfg *config.Instance
	if *f.Config != "" {
		cfg, err = config.NewConfigAt(filepath.Clean(*f.Config), defaults)
	} else {
		cfg, err = config.NewConfig(helpers.ConfigDir(), defaults)
	}
	if err != nil {
		log.Error().Err(err).Msg("error loading config")
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfg.SetDebugLogging(*f.Debug || cfg.DebugLogging())

	log.Info().
		Str("version", config.AppVersion).
		Str("run_id", runID).
		Str("config", cfg.Path()).
		Msg("map kiosk starting")
	return cfg, nil
}

// Options turns the runtime flags into kiosk options.
func (f *Flags) Options(dataDir string) kiosk.Options {
	return kiosk.Options{
		DataDir:  dataDir,
		NoDevice: *f.NoDevice,
		Windowed: *f.Windowed,
	}
}

// Run builds the kiosk and blocks until it quits.
func Run(cfg *config.Instance, opts kiosk.Options) error {
	k, err := kiosk.New(cfg, opts)
	if err != nil {
		log.Error().Err(err).Msg("kiosk failed to start")
		return err
	}

	if err := k.Watch(); err != nil {
		log.Warn().Err(err).Msg("config changes will need a restart")
	}

	if err := k.Run(); err != nil {
		log.Error().Err(err).Msg("kiosk stopped with error")
		return err
	}
	log.Info().Msg("kiosk stopped")
	return nil
}
