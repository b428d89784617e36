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

// Package transition animates the kiosk from one preset to the next.
//
// The engine holds the only mutable state in the kiosk: the current and next
// preset and the live opacity of every layer either of them touches. It is
// driven from a single goroutine (the display loop) and does no locking.
package transition

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/KilpolaMuseum/mapkiosk/pkg/layers"
	"github.com/KilpolaMuseum/mapkiosk/pkg/presets"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// DefaultDuration is the sweep length used when none is configured.
const DefaultDuration = time.Second

// Policy decides what happens to the outgoing preset's layers during a sweep.
type Policy int

const (
	// PolicyFreeze holds outgoing layers at their default opacity while the
	// incoming preset ramps up, then clears them when the sweep finishes.
	PolicyFreeze Policy = iota
	// PolicyCrossfade ramps outgoing layers down by (1-t) while the incoming
	// preset ramps up. Layers in both presets move linearly between their
	// two defaults.
	PolicyCrossfade
)

func (p Policy) String() string {
	switch p {
	case PolicyFreeze:
		return "freeze"
	case PolicyCrossfade:
		return "crossfade"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "freeze":
		return PolicyFreeze, nil
	case "crossfade":
		return PolicyCrossfade, nil
	default:
		return 0, fmt.Errorf("%w: unknown transition policy %q", layers.ErrConfig, s)
	}
}

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAnimating
)

func (p Phase) String() string {
	if p == PhaseAnimating {
		return "animating"
	}
	return "idle"
}

// LayerState is one renderable layer in a snapshot.
type LayerState struct {
	Name    string
	Opacity float64
	ZOrder  int
}

// FinishedFunc is called when a sweep completes.
type FinishedFunc func(from, to presets.Preset)

type Options struct {
	Clock    clockwork.Clock
	Duration time.Duration
	Policy   Policy
}

type Engine struct {
	startedAt  time.Time
	clock      clockwork.Clock
	catalog    *presets.Catalog
	opacity    map[string]float64
	onFinished []FinishedFunc
	current    presets.Preset
	next       presets.Preset
	duration   time.Duration
	progress   float64
	policy     Policy
	phase      Phase
}

// New creates an engine resting on preset 0.
func New(catalog *presets.Catalog, opts Options) (*Engine, error) {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Duration < 0 {
		return nil, fmt.Errorf("%w: negative transition duration %s", layers.ErrConfig, opts.Duration)
	}

	first, err := catalog.Get(0)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		clock:    opts.Clock,
		catalog:  catalog,
		duration: opts.Duration,
		policy:   opts.Policy,
	}
	e.settle(first)
	return e, nil
}

// OnFinished registers fn to run each time a sweep completes.
func (e *Engine) OnFinished(fn FinishedFunc) {
	e.onFinished = append(e.onFinished, fn)
}

// Select starts a sweep to the catalog preset at index. An unknown index
// returns presets.ErrUnknownPreset and leaves the state untouched.
func (e *Engine) Select(index int) error {
	p, err := e.catalog.Get(index)
	if err != nil {
		return err
	}
	e.begin(p)
	return nil
}

// Apply starts a sweep to a preset built outside the catalog.
func (e *Engine) Apply(p presets.Preset) {
	e.begin(p)
}

func samePreset(a, b presets.Preset) bool {
	return a.Index == b.Index && a.Name == b.Name
}

func (e *Engine) begin(p presets.Preset) {
	if samePreset(e.current, p) {
		if e.phase == PhaseAnimating {
			log.Debug().Str("preset", p.Name).Msg("sweep cancelled, back to current preset")
			e.settle(e.current)
		}
		return
	}

	if e.phase == PhaseAnimating {
		// the half-done sweep is dropped; the new one restarts from the
		// current preset's defaults rather than from what is on screen
		log.Debug().
			Str("abandoned", e.next.Name).
			Float64("progress", e.progress).
			Msg("restarting sweep")
	}

	e.next = p
	e.phase = PhaseAnimating
	e.startedAt = e.clock.Now()
	e.progress = 0

	e.opacity = make(map[string]float64, len(e.current.Entries)+len(p.Entries))
	e.applyAt(0)

	log.Debug().
		Str("from", e.current.Name).
		Str("to", p.Name).
		Dur("duration", e.duration).
		Stringer("policy", e.policy).
		Msg("sweep started")
}

// Tick moves the sweep to elapsed time since it started. It reports whether
// anything changed.
func (e *Engine) Tick(elapsed time.Duration) bool {
	if e.phase != PhaseAnimating {
		return false
	}

	t := 1.0
	if e.duration > 0 {
		t = clamp(float64(elapsed) / float64(e.duration))
	}

	if t >= 1 {
		e.finish()
		return true
	}

	e.progress = t
	e.applyAt(t)
	return true
}

// Advance samples the clock and ticks to the elapsed sweep time.
func (e *Engine) Advance() bool {
	if e.phase != PhaseAnimating {
		return false
	}
	return e.Tick(e.clock.Since(e.startedAt))
}

func (e *Engine) applyAt(t float64) {
	for _, c := range e.current.Entries {
		if _, shared := e.next.Opacity(c.Layer); shared {
			continue
		}
		switch e.policy {
		case PolicyCrossfade:
			e.opacity[c.Layer] = clamp((1 - t) * c.Opacity)
		default:
			e.opacity[c.Layer] = clamp(c.Opacity)
		}
	}

	for _, n := range e.next.Entries {
		from, shared := e.current.Opacity(n.Layer)
		if shared && e.policy == PolicyCrossfade {
			e.opacity[n.Layer] = clamp(from + (n.Opacity-from)*t)
			continue
		}
		e.opacity[n.Layer] = clamp(t * n.Opacity)
	}
}

func (e *Engine) finish() {
	from := e.current
	to := e.next

	e.settle(to)

	log.Debug().Str("from", from.Name).Str("to", to.Name).Msg("sweep finished")
	for _, fn := range e.onFinished {
		fn(from, to)
	}
}

// settle puts p on screen at its defaults with no sweep in flight. Layers
// that p doesn't touch drop out of the state, which is the same as zero.
func (e *Engine) settle(p presets.Preset) {
	e.current = p
	e.next = p
	e.phase = PhaseIdle
	e.progress = 1

	e.opacity = make(map[string]float64, len(p.Entries))
	for _, entry := range p.Entries {
		e.opacity[entry.Layer] = clamp(entry.Opacity)
	}
}

// Reload swaps in a new catalog. The engine stays on the current preset if
// its index still exists, otherwise it falls back to preset 0. Any sweep in
// flight is dropped.
func (e *Engine) Reload(catalog *presets.Catalog) error {
	p := e.current
	if !p.Custom() {
		index := p.Index
		if !catalog.Valid(index) {
			index = 0
		}
		var err error
		p, err = catalog.Get(index)
		if err != nil {
			return err
		}
	}

	e.catalog = catalog
	e.settle(p)
	return nil
}

// Snapshot returns every layer of the current and next preset with its live
// opacity, bottom to top. It has no side effects.
func (e *Engine) Snapshot() []LayerState {
	reg := e.catalog.Registry()
	out := make([]LayerState, 0, len(e.current.Entries)+len(e.next.Entries))
	seen := make(map[string]struct{}, cap(out))

	add := func(entries []presets.Entry) {
		for _, entry := range entries {
			if _, ok := seen[entry.Layer]; ok {
				continue
			}
			seen[entry.Layer] = struct{}{}

			z := entry.Order
			if l, ok := reg.Get(entry.Layer); ok {
				z = l.ZOrder
			}
			out = append(out, LayerState{
				Name:    entry.Layer,
				Opacity: clamp(e.opacity[entry.Layer]),
				ZOrder:  z,
			})
		}
	}
	add(e.current.Entries)
	add(e.next.Entries)

	slices.SortFunc(out, func(a, b LayerState) int {
		return layers.Compare(a.ZOrder, a.Name, b.ZOrder, b.Name)
	})
	return out
}

// Opacity is the live opacity of a layer; untouched layers are 0.
func (e *Engine) Opacity(layer string) float64 {
	return e.opacity[layer]
}

func (e *Engine) Current() int {
	return e.current.Index
}

func (e *Engine) Next() int {
	return e.next.Index
}

func (e *Engine) CurrentPreset() presets.Preset {
	return e.current
}

func (e *Engine) NextPreset() presets.Preset {
	return e.next
}

func (e *Engine) Catalog() *presets.Catalog {
	return e.catalog
}

func (e *Engine) Phase() Phase {
	return e.phase
}

// Progress is the sweep position t in [0,1]; 1 when idle.
func (e *Engine) Progress() float64 {
	return e.progress
}

func (e *Engine) Duration() time.Duration {
	return e.duration
}

func (e *Engine) Policy() Policy {
	return e.policy
}

func clamp(v float64) float64 {
	switch {
	case v < 0 || math.IsNaN(v):
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
