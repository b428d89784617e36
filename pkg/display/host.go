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

// Package display hosts the kiosk on an ebiten window: it owns the frame
// loop, turns key presses into dispatcher actions, and paints the
// compositor's output.
package display

import (
	"errors"
	"fmt"
	"image"

	"github.com/KilpolaMuseum/mapkiosk/pkg/input"
	"github.com/KilpolaMuseum/mapkiosk/pkg/presets"
	"github.com/KilpolaMuseum/mapkiosk/pkg/render"
	"github.com/KilpolaMuseum/mapkiosk/pkg/scheduler"
	"github.com/KilpolaMuseum/mapkiosk/pkg/transition"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/rs/zerolog/log"
)

// Scene is what the host paints: the engine's live snapshot.
type Scene interface {
	Snapshot() []transition.LayerState
	Catalog() *presets.Catalog
}

// Actions receives key actions.
type Actions interface {
	HandleAction(a input.Action) bool
	Quitting() bool
}

type Options struct {
	Title      string
	Bindings   []Binding
	Width      int
	Height     int
	Fullscreen bool
}

type Host struct {
	scene      Scene
	actions    Actions
	sched      *scheduler.Scheduler
	compositor *render.Compositor
	canvas     *Canvas
	bindings   []Binding
	opts       Options
	layout     image.Point
	dirty      bool
}

func NewHost(scene Scene, actions Actions, sched *scheduler.Scheduler, opts Options) *Host {
	return &Host{
		scene:      scene,
		actions:    actions,
		sched:      sched,
		compositor: render.NewCompositor(),
		canvas:     NewCanvas(),
		bindings:   opts.Bindings,
		opts:       opts,
		dirty:      true,
	}
}

// ScreenSize is the surface the layers are scaled to: the monitor in
// full-screen mode, the window otherwise.
func ScreenSize(fullscreen bool, width, height int) image.Point {
	if fullscreen {
		if m := ebiten.Monitor(); m != nil {
			w, h := m.Size()
			if w > 0 && h > 0 {
				return image.Pt(w, h)
			}
		}
		log.Warn().Msg("monitor size unavailable, using window size")
	}
	return image.Pt(width, height)
}

// Run opens the window and blocks until the quit key is pressed, the
// window is closed or the scheduler is stopped.
func (h *Host) Run() error {
	ebiten.SetWindowTitle(h.opts.Title)
	ebiten.SetWindowSize(h.opts.Width, h.opts.Height)
	ebiten.SetFullscreen(h.opts.Fullscreen)
	if h.opts.Fullscreen {
		ebiten.SetCursorMode(ebiten.CursorModeHidden)
	}
	ebiten.SetScreenClearedEveryFrame(false)

	log.Info().
		Bool("fullscreen", h.opts.Fullscreen).
		Int("width", h.opts.Width).
		Int("height", h.opts.Height).
		Msg("starting display")

	err := ebiten.RunGame(h)
	if err != nil && !errors.Is(err, ebiten.Termination) {
		return fmt.Errorf("display loop: %w", err)
	}
	return nil
}

func (h *Host) Update() error {
	return h.update(inpututil.IsKeyJustPressed)
}

func (h *Host) update(justPressed func(ebiten.Key) bool) error {
	for _, b := range h.bindings {
		if !justPressed(b.Key) {
			continue
		}
		if h.actions.HandleAction(b.Action) {
			h.sched.RequestRepaint()
		}
	}

	if h.actions.Quitting() {
		h.sched.Stop()
	}
	if h.sched.Stopped() {
		return ebiten.Termination
	}

	if h.sched.Step() {
		h.dirty = true
	}
	return nil
}

func (h *Host) Draw(screen *ebiten.Image) {
	if !h.dirty {
		return
	}
	h.canvas.Bind(screen, h.scene.Catalog().Registry())
	h.paint(h.canvas)
}

func (h *Host) paint(c render.Canvas) {
	h.compositor.Render(c, h.scene.Catalog().Registry(), h.scene.Snapshot())
	h.dirty = false
}

func (h *Host) Layout(outsideWidth, outsideHeight int) (int, int) {
	size := image.Pt(outsideWidth, outsideHeight)
	if size != h.layout {
		// the screen image is new, nothing on it survives
		h.layout = size
		h.dirty = true
	}
	return outsideWidth, outsideHeight
}
