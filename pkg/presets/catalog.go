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

// Package presets maps preset indices to the layers they show.
package presets

import (
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/KilpolaMuseum/mapkiosk/pkg/layers"
)

// CustomIndex is the index of presets built at runtime (mask mode, blank)
// rather than taken from the catalog.
const CustomIndex = -1

// MaxMaskLayers is how many layers a single mask byte can address.
const MaxMaskLayers = 8

// ErrUnknownPreset is returned for indices outside the catalog. It is a
// config error: the input referenced a preset that isn't configured.
var ErrUnknownPreset = fmt.Errorf("%w: unknown preset", layers.ErrConfig)

// EntryDef is one row of a preset table as configured.
type EntryDef struct {
	Order   *int
	Opacity float64
}

// Entry is a layer's target opacity within a preset.
type Entry struct {
	Layer   string
	Opacity float64
	Order   int
}

// Preset is an immutable set of layer targets, ordered by Entry.Order.
type Preset struct {
	Name    string
	Entries []Entry
	Index   int
}

// Opacity returns the preset's default opacity for layer.
func (p Preset) Opacity(layer string) (float64, bool) {
	for _, e := range p.Entries {
		if e.Layer == layer {
			return e.Opacity, true
		}
	}
	return 0, false
}

func (p Preset) Layers() []string {
	names := make([]string, len(p.Entries))
	for i, e := range p.Entries {
		names[i] = e.Layer
	}
	return names
}

func (p Preset) Custom() bool {
	return p.Index == CustomIndex
}

// Catalog holds presets 0..K-1.
type Catalog struct {
	reg     *layers.Registry
	presets []Preset
}

// NewCatalog validates the preset tables against the registry and builds the
// catalog. Indices must run 0..K-1 without gaps.
func NewCatalog(reg *layers.Registry, tables map[int]map[string]EntryDef) (*Catalog, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("%w: no presets configured", layers.ErrConfig)
	}

	c := &Catalog{
		reg:     reg,
		presets: make([]Preset, len(tables)),
	}

	for i := 0; i < len(tables); i++ {
		table, ok := tables[i]
		if !ok {
			return nil, fmt.Errorf("%w: preset indices must run 0..%d, missing %d",
				layers.ErrConfig, len(tables)-1, i)
		}

		p, err := buildPreset(reg, i, table)
		if err != nil {
			return nil, err
		}
		c.presets[i] = p
	}

	return c, nil
}

func buildPreset(reg *layers.Registry, index int, table map[string]EntryDef) (Preset, error) {
	p := Preset{
		Index:   index,
		Name:    strconv.Itoa(index),
		Entries: make([]Entry, 0, len(table)),
	}

	for name, def := range table {
		l, ok := reg.Get(name)
		if !ok {
			return Preset{}, fmt.Errorf("%w: preset %d references undeclared layer %q",
				layers.ErrConfig, index, name)
		}
		if def.Opacity < 0 || def.Opacity > 1 {
			return Preset{}, fmt.Errorf("%w: preset %d layer %q opacity %v outside [0,1]",
				layers.ErrConfig, index, name, def.Opacity)
		}

		order := l.ZOrder
		if def.Order != nil {
			order = *def.Order
		}
		p.Entries = append(p.Entries, Entry{Layer: name, Opacity: def.Opacity, Order: order})
	}

	sortEntries(p.Entries)
	return p, nil
}

func sortEntries(entries []Entry) {
	slices.SortFunc(entries, func(a, b Entry) int {
		return layers.Compare(a.Order, a.Layer, b.Order, b.Layer)
	})
}

// ParseTables converts config tables keyed by decimal strings.
func ParseTables[E any](raw map[string]map[string]E, conv func(E) EntryDef) (map[int]map[string]EntryDef, error) {
	out := make(map[int]map[string]EntryDef, len(raw))
	for key, table := range raw {
		i, err := strconv.Atoi(key)
		if err != nil || i < 0 {
			return nil, fmt.Errorf("%w: invalid preset index %q", layers.ErrConfig, key)
		}
		if _, dup := out[i]; dup {
			return nil, fmt.Errorf("%w: preset index %d declared twice", layers.ErrConfig, i)
		}
		defs := make(map[string]EntryDef, len(table))
		for name, e := range table {
			defs[name] = conv(e)
		}
		out[i] = defs
	}
	return out, nil
}

// Solo builds one preset per layer, each showing that layer alone at its
// own opacity. It is the catalog used when no presets are configured.
func Solo(reg *layers.Registry) map[int]map[string]EntryDef {
	out := make(map[int]map[string]EntryDef, reg.Len())
	for i, l := range reg.Ordered() {
		out[i] = map[string]EntryDef{l.Name: {Opacity: l.Opacity}}
	}
	return out
}

func (c *Catalog) Len() int {
	return len(c.presets)
}

func (c *Catalog) Registry() *layers.Registry {
	return c.reg
}

func (c *Catalog) Valid(index int) bool {
	return index >= 0 && index < len(c.presets)
}

func (c *Catalog) Get(index int) (Preset, error) {
	if !c.Valid(index) {
		return Preset{}, fmt.Errorf("%w %d (catalog has %d)", ErrUnknownPreset, index, len(c.presets))
	}
	return c.presets[index], nil
}

// Next is the index the advance key cycles to. Custom presets cycle back
// to 0.
func (c *Catalog) Next(index int) int {
	if index < 0 || len(c.presets) == 0 {
		return 0
	}
	return (index + 1) % len(c.presets)
}

// FromMask builds a custom preset from a layer bitmask: bit i turns on the
// i-th layer in draw order at the layer's own opacity. Mask 0 is blank.
func (c *Catalog) FromMask(mask uint8) Preset {
	p := Preset{
		Index: CustomIndex,
		Name:  fmt.Sprintf("mask %08b", mask),
	}

	for i, l := range c.reg.Ordered() {
		if i >= MaxMaskLayers {
			break
		}
		if mask&(1<<i) == 0 {
			continue
		}
		p.Entries = append(p.Entries, Entry{Layer: l.Name, Opacity: l.Opacity, Order: l.ZOrder})
	}
	return p
}

// Blank is the empty custom preset; fading to it clears the screen.
func Blank() Preset {
	return Preset{Index: CustomIndex, Name: "blank"}
}

// IsUnknown reports whether err came from an out-of-range preset index.
func IsUnknown(err error) bool {
	return errors.Is(err, ErrUnknownPreset)
}
