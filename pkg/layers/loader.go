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

package layers

import (
	"fmt"
	"image"
	// decoders for the supported layer formats
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// Extensions are the image file types Discover picks up.
var Extensions = []string{".png", ".jpg", ".jpeg", ".bmp"}

// DecodeError reports a layer image that could not be loaded.
type DecodeError struct {
	Err   error
	Layer string
	Path  string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to load layer %q from %s: %v", e.Layer, e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Loader reads and scales layer images.
type Loader struct {
	Fs afero.Fs
}

func NewLoader(fs afero.Fs) *Loader {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Loader{Fs: fs}
}

// Load decodes the image at path and scales it to fit inside target while
// keeping its aspect ratio. A zero target leaves the image at native size.
func (ld *Loader) Load(path string, target image.Point) (image.Image, error) {
	f, err := ld.Fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			log.Warn().Err(cerr).Str("path", path).Msg("failed to close image file")
		}
	}()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	log.Debug().Str("path", path).Str("format", format).
		Stringer("size", img.Bounds().Size()).Msg("decoded image")

	return Scale(img, target), nil
}

// FitSize returns the largest size with src's aspect ratio that fits target.
func FitSize(src, target image.Point) image.Point {
	if src.X <= 0 || src.Y <= 0 || target.X <= 0 || target.Y <= 0 {
		return src
	}

	// compare src.X/src.Y against target.X/target.Y without floats
	if src.X*target.Y >= target.X*src.Y {
		h := src.Y * target.X / src.X
		return image.Pt(target.X, max(h, 1))
	}
	w := src.X * target.Y / src.Y
	return image.Pt(max(w, 1), target.Y)
}

// Scale resamples img to FitSize with a Catmull-Rom kernel.
func Scale(img image.Image, target image.Point) image.Image {
	src := img.Bounds().Size()
	size := FitSize(src, target)
	if size == src {
		return img
	}

	dst := image.NewRGBA(image.Rectangle{Max: size})
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}

// LoadAll loads every registered layer from dir. The first failure aborts:
// a kiosk must not come up with a layer silently missing.
func (ld *Loader) LoadAll(reg *Registry, dir string, target image.Point) error {
	for _, l := range reg.Ordered() {
		path := l.File
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}

		img, err := ld.Load(path, target)
		if err != nil {
			return &DecodeError{Layer: l.Name, Path: path, Err: err}
		}
		if err := reg.SetRaster(l.Name, img); err != nil {
			return err
		}

		log.Info().Str("layer", l.Name).Str("path", path).
			Stringer("size", img.Bounds().Size()).Msg("loaded layer")
	}
	return nil
}

// Discover declares one layer per image file in dir, named by the file stem
// and stacked in lexicographic file order.
func Discover(fs afero.Fs, dir string) ([]Def, error) {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read image folder: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !slices.Contains(Extensions, ext) {
			continue
		}
		files = append(files, e.Name())
	}
	slices.Sort(files)

	defs := make([]Def, 0, len(files))
	for i, name := range files {
		defs = append(defs, Def{
			Name:    strings.TrimSuffix(name, filepath.Ext(name)),
			File:    name,
			ZOrder:  i,
			Opacity: 1,
		})
	}

	if len(defs) == 0 {
		return nil, fmt.Errorf("%w: no images found in %s", ErrConfig, dir)
	}
	return defs, nil
}
