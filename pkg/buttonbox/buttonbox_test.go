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

package buttonbox

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/KilpolaMuseum/mapkiosk/pkg/buttonbox/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

// fakeDevice creates a file standing in for the device node.
func fakeDevice(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ttyUSB0")
	require.NoError(t, os.WriteFile(path, nil, 0o600))
	return path
}

func factoryFor(port SerialPort, gotMode **serial.Mode) PortFactory {
	return func(_ string, mode *serial.Mode) (SerialPort, error) {
		if gotMode != nil {
			*gotMode = mode
		}
		return port, nil
	}
}

func TestOpen(t *testing.T) {
	t.Parallel()

	mock := testutils.NewMockSerialPort()
	var mode *serial.Mode

	box, err := Open(fakeDevice(t), Options{
		Factory:     factoryFor(mock, &mode),
		BaudRate:    9600,
		ReadTimeout: 80 * time.Millisecond,
	})
	require.NoError(t, err)

	require.NotNil(t, mode)
	assert.Equal(t, 9600, mode.BaudRate)
	assert.Equal(t, 80*time.Millisecond, mock.Timeout)
	assert.Equal(t, "ttyUSB0", filepath.Base(box.Path()))
}

func TestOpen_DefaultBaud(t *testing.T) {
	t.Parallel()

	var mode *serial.Mode
	_, err := Open(fakeDevice(t), Options{Factory: factoryFor(testutils.NewMockSerialPort(), &mode)})
	require.NoError(t, err)
	assert.Equal(t, DefaultBaudRate, mode.BaudRate)
}

func TestOpen_ConnectionErrors(t *testing.T) {
	t.Parallel()

	t.Run("no path", func(t *testing.T) {
		t.Parallel()
		_, err := Open("", Options{})
		assert.ErrorIs(t, err, ErrConnection)
	})

	t.Run("missing device", func(t *testing.T) {
		t.Parallel()
		if runtime.GOOS == "windows" {
			t.Skip("device paths are not stat'd on windows")
		}
		_, err := Open(filepath.Join(t.TempDir(), "ttyUSB9"), Options{})
		assert.ErrorIs(t, err, ErrConnection)
	})

	t.Run("busy device", func(t *testing.T) {
		t.Parallel()
		busy := func(string, *serial.Mode) (SerialPort, error) {
			return nil, errors.New("device busy")
		}
		_, err := Open(fakeDevice(t), Options{Factory: busy})
		require.ErrorIs(t, err, ErrConnection)
		assert.Contains(t, err.Error(), "device busy")
	})

	t.Run("timeout rejected", func(t *testing.T) {
		t.Parallel()
		mock := testutils.NewMockSerialPort()
		mock.TimeoutErr = errors.New("unsupported")
		_, err := Open(fakeDevice(t), Options{Factory: factoryFor(mock, nil)})
		require.ErrorIs(t, err, ErrConnection)
		assert.True(t, mock.IsClosed(), "port is closed when setup fails")
	})
}

func TestReadSignal(t *testing.T) {
	t.Parallel()

	mock := testutils.NewMockSerialPort(3, 0, 7)
	box, err := Open(fakeDevice(t), Options{Factory: factoryFor(mock, nil)})
	require.NoError(t, err)

	for _, want := range []byte{3, 0, 7} {
		v, ok, err := box.ReadSignal()
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, want, v)
	}

	v, ok, err := box.ReadSignal()
	require.NoError(t, err)
	assert.False(t, ok, "timeout is not a signal")
	assert.Zero(t, v)

	mock.ReadError = errors.New("unplugged")
	_, ok, err = box.ReadSignal()
	require.Error(t, err)
	assert.False(t, ok)
}

func TestWriteAndClose(t *testing.T) {
	t.Parallel()

	mock := testutils.NewMockSerialPort()
	box, err := Open(fakeDevice(t), Options{Factory: factoryFor(mock, nil)})
	require.NoError(t, err)

	n, err := box.Write([]byte("L1"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []byte("L1"), mock.Written)

	mock.WriteError = errors.New("gone")
	_, err = box.Write([]byte{1})
	require.Error(t, err)

	require.NoError(t, box.Close())
	assert.True(t, mock.IsClosed())
}

func TestLikelyBox(t *testing.T) {
	t.Parallel()

	tests := []struct {
		goos string
		name string
		want bool
	}{
		{goos: "linux", name: "/dev/ttyUSB0", want: true},
		{goos: "linux", name: "/dev/ttyACM1", want: true},
		{goos: "linux", name: "/dev/ttyS0", want: false},
		{goos: "darwin", name: "/dev/cu.usbmodem1421", want: true},
		{goos: "darwin", name: "/dev/cu.Bluetooth-Incoming-Port", want: false},
		{goos: "windows", name: "COM3", want: true},
		{goos: "freebsd", name: "/dev/cuaU0", want: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.goos+" "+tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, likelyBox(tt.goos, tt.name))
		})
	}
}

func TestPortInfoString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/dev/ttyS0", PortInfo{Name: "/dev/ttyS0"}.String())
	assert.Equal(t, "/dev/ttyACM0 (USB 2341:0043 Arduino Uno)",
		PortInfo{Name: "/dev/ttyACM0", USB: true, VID: "2341", PID: "0043", Product: "Arduino Uno"}.String())
}
