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

// Package render composites the engine's layer snapshot onto a canvas.
package render

import (
	"github.com/KilpolaMuseum/mapkiosk/pkg/layers"
	"github.com/KilpolaMuseum/mapkiosk/pkg/transition"
	"github.com/rs/zerolog/log"
)

// Canvas is the drawing surface. Blending and clearing are up to the
// backend.
type Canvas interface {
	Size() (w, h int)
	Clear()
	DrawLayer(l *layers.Layer, x, y int, opacity float64)
}

type Compositor struct {
	missing map[string]struct{}
}

func NewCompositor() *Compositor {
	return &Compositor{missing: make(map[string]struct{})}
}

// Origin centres a w*h raster on a cw*ch canvas. Rasters larger than the
// canvas get a negative origin.
func Origin(cw, ch, w, h int) (x, y int) {
	return (cw - w) / 2, (ch - h) / 2
}

// Render clears the canvas and draws every snapshot entry in order. It
// returns how many layers were drawn.
func (c *Compositor) Render(canvas Canvas, reg *layers.Registry, snapshot []transition.LayerState) int {
	canvas.Clear()
	cw, ch := canvas.Size()

	drawn := 0
	for _, s := range snapshot {
		l, ok := reg.Get(s.Name)
		if !ok || l.Raster == nil {
			if _, seen := c.missing[s.Name]; !seen {
				c.missing[s.Name] = struct{}{}
				log.Debug().Str("layer", s.Name).Msg("layer has no raster, skipping")
			}
			continue
		}

		size := l.Size()
		x, y := Origin(cw, ch, size.X, size.Y)
		canvas.DrawLayer(l, x, y, s.Opacity)
		drawn++
	}
	return drawn
}
