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

package display

import (
	"fmt"
	"image/color"

	"github.com/KilpolaMuseum/mapkiosk/pkg/input"
	"github.com/KilpolaMuseum/mapkiosk/pkg/layers"
	"github.com/hajimehoshi/ebiten/v2"
)

// Binding maps a key to a dispatcher action.
type Binding struct {
	Key    ebiten.Key
	Action input.Action
}

// ParseKey accepts ebiten key names such as "Space", "Escape" or "F12".
func ParseKey(name string) (ebiten.Key, error) {
	var k ebiten.Key
	if err := k.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("%w: unknown key %q", layers.ErrConfig, name)
	}
	return k, nil
}

// Bindings builds the advance and quit bindings from key names.
func Bindings(advance, quit string) ([]Binding, error) {
	a, err := ParseKey(advance)
	if err != nil {
		return nil, fmt.Errorf("advance key: %w", err)
	}
	q, err := ParseKey(quit)
	if err != nil {
		return nil, fmt.Errorf("quit key: %w", err)
	}
	if a == q {
		return nil, fmt.Errorf("%w: advance and quit share key %s", layers.ErrConfig, a)
	}
	return []Binding{
		{Key: a, Action: input.ActionAdvance},
		{Key: q, Action: input.ActionQuit},
	}, nil
}

// Canvas draws layers onto an ebiten image. GPU copies of the rasters are
// made on first use and kept until the registry changes.
type Canvas struct {
	target *ebiten.Image
	reg    *layers.Registry
	cache  map[*layers.Layer]*ebiten.Image
}

func NewCanvas() *Canvas {
	return &Canvas{cache: make(map[*layers.Layer]*ebiten.Image)}
}

// Bind points the canvas at this frame's screen. A new registry drops the
// cached images.
func (c *Canvas) Bind(target *ebiten.Image, reg *layers.Registry) {
	c.target = target
	if reg == c.reg {
		return
	}
	for l, img := range c.cache {
		img.Deallocate()
		delete(c.cache, l)
	}
	c.reg = reg
}

func (c *Canvas) Size() (w, h int) {
	b := c.target.Bounds()
	return b.Dx(), b.Dy()
}

func (c *Canvas) Clear() {
	c.target.Fill(color.Black)
}

func (c *Canvas) DrawLayer(l *layers.Layer, x, y int, opacity float64) {
	img, ok := c.cache[l]
	if !ok {
		img = ebiten.NewImageFromImage(l.Raster)
		c.cache[l] = img
	}

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Translate(float64(x), float64(y))
	op.ColorScale.ScaleAlpha(float32(opacity))
	op.Filter = ebiten.FilterLinear
	c.target.DrawImage(img, op)
}
