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

package kiosk

import (
	"fmt"
	"image"

	"github.com/KilpolaMuseum/mapkiosk/pkg/config"
	"github.com/KilpolaMuseum/mapkiosk/pkg/layers"
	"github.com/KilpolaMuseum/mapkiosk/pkg/presets"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

// LayerDefs returns the configured layers, or one layer per image file in
// the folder when none are declared.
func LayerDefs(cfg *config.Instance, fs afero.Fs, folder string) ([]layers.Def, error) {
	declared := cfg.Layers()
	if len(declared) == 0 {
		log.Info().Str("folder", folder).Msg("no layers configured, discovering images")
		return layers.Discover(fs, folder)
	}

	defs := make([]layers.Def, 0, len(declared))
	for _, l := range declared {
		defs = append(defs, layers.Def{
			Name:    l.Name,
			File:    l.File,
			ZOrder:  l.ZOrder,
			Opacity: l.DefaultOpacity(),
		})
	}
	return defs, nil
}

func entryDef(e config.PresetEntry) presets.EntryDef {
	return presets.EntryDef{Order: e.Order, Opacity: e.Opacity}
}

// BuildCatalog loads every layer image scaled to screen and validates the
// preset tables against them.
func BuildCatalog(cfg *config.Instance, fs afero.Fs, dataDir string, screen image.Point) (*presets.Catalog, error) {
	folder := cfg.ImageFolder(dataDir)

	defs, err := LayerDefs(cfg, fs, folder)
	if err != nil {
		return nil, err
	}

	reg, err := layers.NewRegistry(defs)
	if err != nil {
		return nil, err
	}

	log.Info().Int("layers", reg.Len()).Str("folder", folder).Msg("loading layer images")
	if err := layers.NewLoader(fs).LoadAll(reg, folder, screen); err != nil {
		return nil, err
	}

	tables, err := presets.ParseTables(cfg.Presets(), entryDef)
	if err != nil {
		return nil, err
	}
	if len(tables) == 0 {
		log.Info().Msg("no presets configured, one preset per layer")
		tables = presets.Solo(reg)
	}

	cat, err := presets.NewCatalog(reg, tables)
	if err != nil {
		return nil, fmt.Errorf("presets: %w", err)
	}
	return cat, nil
}
