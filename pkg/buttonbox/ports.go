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
	"fmt"
	"runtime"
	"strings"

	"go.bug.st/serial/enumerator"
)

// PortInfo describes a candidate serial device.
type PortInfo struct {
	Name    string
	VID     string
	PID     string
	Product string
	Serial  string
	USB     bool
}

func (p PortInfo) String() string {
	if !p.USB {
		return p.Name
	}
	s := fmt.Sprintf("%s (USB %s:%s", p.Name, strings.ToLower(p.VID), strings.ToLower(p.PID))
	if p.Product != "" {
		s += " " + p.Product
	}
	return s + ")"
}

// likelyBox reports whether a device name looks like a USB serial adapter
// or an Arduino, the only things a button box shows up as.
func likelyBox(goos, name string) bool {
	switch goos {
	case "linux":
		return strings.HasPrefix(name, "/dev/ttyUSB") || strings.HasPrefix(name, "/dev/ttyACM")
	case "darwin":
		return strings.HasPrefix(name, "/dev/cu.usbserial") ||
			strings.HasPrefix(name, "/dev/cu.usbmodem") ||
			strings.HasPrefix(name, "/dev/tty.usbserial") ||
			strings.HasPrefix(name, "/dev/tty.usbmodem")
	case "windows":
		return strings.HasPrefix(name, "COM")
	default:
		return true
	}
}

// ListPorts lists serial devices that could be the button box.
func ListPorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		if !d.IsUSB && !likelyBox(runtime.GOOS, d.Name) {
			continue
		}
		ports = append(ports, PortInfo{
			Name:    d.Name,
			USB:     d.IsUSB,
			VID:     d.VID,
			PID:     d.PID,
			Product: d.Product,
			Serial:  d.SerialNumber,
		})
	}
	return ports, nil
}
