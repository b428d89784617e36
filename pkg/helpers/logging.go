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

package helpers

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/KilpolaMuseum/mapkiosk/pkg/config"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// InitLogging sends the global logger to a rotating file in logDir, plus any
// extra writers (usually a console writer). Every line carries the run id so
// kiosk restarts can be told apart in the rotated files.
func InitLogging(logDir string, writers []io.Writer) (string, error) {
	err := os.MkdirAll(logDir, 0o750)
	if err != nil {
		return "", fmt.Errorf("failed to create log directory: %w", err)
	}

	logWriters := []io.Writer{&lumberjack.Logger{
		Filename:   filepath.Join(logDir, config.LogFile),
		MaxSize:    1,
		MaxBackups: 2,
	}}

	if len(writers) > 0 {
		logWriters = append(logWriters, writers...)
	}

	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	runID := uuid.New().String()
	log.Logger = log.Output(io.MultiWriter(logWriters...)).
		With().Timestamp().Caller().Str("run_id", runID).Logger()

	return runID, nil
}

// ConsoleWriter is the human readable stderr writer used in the foreground.
func ConsoleWriter() io.Writer {
	return zerolog.ConsoleWriter{Out: os.Stderr}
}
