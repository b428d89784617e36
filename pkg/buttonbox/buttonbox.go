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

// Package buttonbox talks to the exhibit's button box: a microcontroller on
// a serial line that sends one byte per button press.
package buttonbox

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/rs/zerolog/log"
	"go.bug.st/serial"
)

// ErrConnection is returned when the serial device can't be opened.
var ErrConnection = errors.New("connection error")

const (
	DefaultBaudRate    = 9600
	DefaultReadTimeout = 80 * time.Millisecond
)

// SerialPort defines the serial port operations the box needs (for mocking
// in tests).
type SerialPort interface {
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
	Close() error
	SetReadTimeout(t time.Duration) error
}

// PortFactory opens a serial port connection.
type PortFactory func(path string, mode *serial.Mode) (SerialPort, error)

// DefaultPortFactory opens real serial ports.
func DefaultPortFactory(path string, mode *serial.Mode) (SerialPort, error) {
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}
	return port, nil
}

type Options struct {
	Factory     PortFactory
	BaudRate    int
	ReadTimeout time.Duration
}

// Box is an open connection to the button box.
type Box struct {
	port SerialPort
	path string
	buf  [1]byte
}

// Open connects to the device at path. A missing or busy device returns an
// error wrapping ErrConnection.
func Open(path string, opts Options) (*Box, error) {
	if opts.Factory == nil {
		opts.Factory = DefaultPortFactory
	}
	if opts.BaudRate <= 0 {
		opts.BaudRate = DefaultBaudRate
	}

	if path == "" {
		return nil, fmt.Errorf("%w: no serial port configured", ErrConnection)
	}

	if runtime.GOOS != "windows" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%w: failed to stat device path %s: %w", ErrConnection, path, err)
		}
	}

	port, err := opts.Factory(path, &serial.Mode{
		BaudRate: opts.BaudRate,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open serial port %s: %w", ErrConnection, path, err)
	}

	err = port.SetReadTimeout(opts.ReadTimeout)
	if err != nil {
		if cerr := port.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("failed to close serial port")
		}
		return nil, fmt.Errorf("%w: failed to set read timeout on %s: %w", ErrConnection, path, err)
	}

	log.Info().
		Str("path", path).
		Int("baud", opts.BaudRate).
		Dur("read_timeout", opts.ReadTimeout).
		Msg("opened button box")

	return &Box{port: port, path: path}, nil
}

// ReadSignal reads at most one byte, waiting no longer than the read timeout.
// ok is false when nothing arrived in time; that is not an error.
func (b *Box) ReadSignal() (v byte, ok bool, err error) {
	n, err := b.port.Read(b.buf[:])
	if err != nil {
		return 0, false, fmt.Errorf("failed to read from serial port: %w", err)
	}
	if n == 0 {
		return 0, false, nil
	}
	return b.buf[0], true, nil
}

// Write sends raw bytes to the box, e.g. to drive indicator LEDs.
func (b *Box) Write(p []byte) (int, error) {
	n, err := b.port.Write(p)
	if err != nil {
		return n, fmt.Errorf("failed to write to serial port: %w", err)
	}
	return n, nil
}

func (b *Box) Close() error {
	if err := b.port.Close(); err != nil {
		return fmt.Errorf("failed to close serial port: %w", err)
	}
	return nil
}

func (b *Box) Path() string {
	return b.path
}
