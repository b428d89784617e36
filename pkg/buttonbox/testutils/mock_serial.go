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

package testutils

import (
	"errors"
	"time"

	"github.com/KilpolaMuseum/mapkiosk/pkg/helpers/syncutil"
)

// MockSerialPort is an in-memory serial port. Queued bytes are returned one
// read at a time; an empty queue behaves like a read timeout.
type MockSerialPort struct {
	ReadError  error
	WriteError error
	CloseError error
	TimeoutErr error
	ReadFunc   func(p []byte) (n int, err error)
	ReadData   []byte
	Written    []byte
	Timeout    time.Duration
	ReadIndex  int
	Closed     bool
	mu         syncutil.RWMutex
}

func NewMockSerialPort(data ...byte) *MockSerialPort {
	return &MockSerialPort{ReadData: data}
}

func (m *MockSerialPort) Read(p []byte) (n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Closed {
		return 0, errors.New("port closed")
	}
	if m.ReadFunc != nil {
		return m.ReadFunc(p)
	}
	if m.ReadError != nil {
		return 0, m.ReadError
	}
	if m.ReadIndex >= len(m.ReadData) {
		return 0, nil
	}

	n = copy(p, m.ReadData[m.ReadIndex:])
	m.ReadIndex += n
	return n, nil
}

func (m *MockSerialPort) Write(p []byte) (n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.WriteError != nil {
		return 0, m.WriteError
	}
	m.Written = append(m.Written, p...)
	return len(p), nil
}

// Push queues more bytes for reading.
func (m *MockSerialPort) Push(data ...byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReadData = append(m.ReadData, data...)
}

func (m *MockSerialPort) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return m.CloseError
}

func (m *MockSerialPort) SetReadTimeout(t time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Timeout = t
	return m.TimeoutErr
}

func (m *MockSerialPort) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Closed
}
