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

// Package layers holds the fixed set of image overlays a kiosk can show.
package layers

import (
	"errors"
	"fmt"
	"image"
	"slices"
	"strings"
)

// ErrConfig marks configuration that cannot be used: bad layer tables,
// presets naming undeclared layers, preset indices outside the catalog.
var ErrConfig = errors.New("config error")

// Def declares a layer before its raster is loaded.
type Def struct {
	Name    string
	File    string
	ZOrder  int
	Opacity float64
}

// Layer is a named overlay. Lower ZOrder is drawn first.
type Layer struct {
	Raster  image.Image
	Name    string
	File    string
	ZOrder  int
	Opacity float64
}

// Size returns the raster size, or zero when nothing is loaded yet.
func (l *Layer) Size() image.Point {
	if l.Raster == nil {
		return image.Point{}
	}
	return l.Raster.Bounds().Size()
}

// Registry maps layer names to layers. It is immutable once the rasters are
// loaded at startup.
type Registry struct {
	byName  map[string]*Layer
	ordered []*Layer
}

func NewRegistry(defs []Def) (*Registry, error) {
	r := &Registry{
		byName:  make(map[string]*Layer, len(defs)),
		ordered: make([]*Layer, 0, len(defs)),
	}

	for _, d := range defs {
		name := strings.TrimSpace(d.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: layer with empty name (file %q)", ErrConfig, d.File)
		}
		if _, ok := r.byName[name]; ok {
			return nil, fmt.Errorf("%w: duplicate layer %q", ErrConfig, name)
		}
		if d.Opacity < 0 || d.Opacity > 1 {
			return nil, fmt.Errorf("%w: layer %q opacity %v outside [0,1]", ErrConfig, name, d.Opacity)
		}

		l := &Layer{
			Name:    name,
			File:    d.File,
			ZOrder:  d.ZOrder,
			Opacity: d.Opacity,
		}
		r.byName[name] = l
		r.ordered = append(r.ordered, l)
	}

	// duplicate z-orders are allowed; name breaks the tie so draw order is
	// the same on every run
	slices.SortStableFunc(r.ordered, func(a, b *Layer) int {
		return Compare(a.ZOrder, a.Name, b.ZOrder, b.Name)
	})

	return r, nil
}

// Compare orders layers bottom to top: by z-order, then by name.
func Compare(za int, na string, zb int, nb string) int {
	if za != zb {
		if za < zb {
			return -1
		}
		return 1
	}
	return strings.Compare(na, nb)
}

func (r *Registry) Get(name string) (*Layer, bool) {
	l, ok := r.byName[name]
	return l, ok
}

func (r *Registry) Len() int {
	return len(r.ordered)
}

// Ordered returns the layers in draw order.
func (r *Registry) Ordered() []*Layer {
	return slices.Clone(r.ordered)
}

// Names returns layer names in draw order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.ordered))
	for i, l := range r.ordered {
		names[i] = l.Name
	}
	return names
}

func (r *Registry) SetRaster(name string, img image.Image) error {
	l, ok := r.byName[name]
	if !ok {
		return fmt.Errorf("%w: unknown layer %q", ErrConfig, name)
	}
	l.Raster = img
	return nil
}
