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

package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/KilpolaMuseum/mapkiosk/pkg/cli"
	"github.com/KilpolaMuseum/mapkiosk/pkg/config"
	"github.com/KilpolaMuseum/mapkiosk/pkg/helpers"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	flags := cli.SetupFlags(flag.CommandLine)

	err := flags.Pre(os.Args[1:], os.Stdout, nil)
	if errors.Is(err, cli.ErrExit) {
		return nil
	} else if err != nil {
		return err
	}

	var logWriters []io.Writer
	if *flags.Windowed || *flags.Debug {
		logWriters = []io.Writer{helpers.ConsoleWriter()}
	}

	cfg, err := flags.Setup(config.BaseDefaults, helpers.LogDir(), logWriters)
	if err != nil {
		return err
	}

	defer func() {
		if err := recover(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Panic: %s\n", err)
			log.Fatal().Msgf("panic: %v", err)
		}
	}()

	return cli.Run(cfg, flags.Options(helpers.DataDir()))
}
