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
	"path/filepath"

	"github.com/KilpolaMuseum/mapkiosk/pkg/config"
	"github.com/adrg/xdg"
)

func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, config.AppName)
}

// DataDir holds the image folder when the config gives a relative path.
func DataDir() string {
	return filepath.Join(xdg.DataHome, config.AppName)
}

func LogDir() string {
	return filepath.Join(xdg.StateHome, config.AppName, config.LogsDir)
}
