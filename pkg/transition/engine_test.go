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

package transition

import (
	"testing"
	"time"

	"github.com/KilpolaMuseum/mapkiosk/pkg/layers"
	"github.com/KilpolaMuseum/mapkiosk/pkg/presets"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const delta = 1e-9

type tables = map[int]map[string]presets.EntryDef

// testingT is satisfied by both *testing.T and *rapid.T.
type testingT interface {
	require.TestingT
	Helper()
}

func testRegistry(t testingT) *layers.Registry {
	t.Helper()

	reg, err := layers.NewRegistry([]layers.Def{
		{Name: "base", ZOrder: 0, Opacity: 1},
		{Name: "rivers", ZOrder: 1, Opacity: 0.5},
		{Name: "roads", ZOrder: 2, Opacity: 0.5},
		{Name: "labels", ZOrder: 2, Opacity: 1},
		{Name: "A", ZOrder: 1, Opacity: 1},
	})
	require.NoError(t, err)
	return reg
}

func newEngine(t testingT, tbl tables, policy Policy) (*Engine, *clockwork.FakeClock) {
	t.Helper()

	cat, err := presets.NewCatalog(testRegistry(t), tbl)
	require.NoError(t, err)

	clock := clockwork.NewFakeClock()
	e, err := New(cat, Options{Clock: clock, Duration: time.Second, Policy: policy})
	require.NoError(t, err)
	return e, clock
}

// museumTables is a small three-preset exhibit.
func museumTables() tables {
	return tables{
		0: {"base": {Opacity: 1}, "rivers": {Opacity: 0.5}},
		1: {"base": {Opacity: 0.6}, "roads": {Opacity: 0.8}},
		2: {"labels": {Opacity: 1}},
	}
}

func snapshotMap(e *Engine) map[string]float64 {
	out := make(map[string]float64)
	for _, s := range e.Snapshot() {
		out[s.Name] = s.Opacity
	}
	return out
}

func TestNew_RestsOnPresetZero(t *testing.T) {
	t.Parallel()

	e, _ := newEngine(t, museumTables(), PolicyFreeze)

	assert.Equal(t, 0, e.Current())
	assert.Equal(t, 0, e.Next())
	assert.Equal(t, PhaseIdle, e.Phase())
	assert.InDelta(t, 1.0, e.Progress(), delta)
	assert.Equal(t, time.Second, e.Duration())
	assert.Equal(t, PolicyFreeze, e.Policy())
	assert.Equal(t, []LayerState{
		{Name: "base", Opacity: 1, ZOrder: 0},
		{Name: "rivers", Opacity: 0.5, ZOrder: 1},
	}, e.Snapshot())
}

func TestNew_Errors(t *testing.T) {
	t.Parallel()

	cat, err := presets.NewCatalog(testRegistry(t), museumTables())
	require.NoError(t, err)

	_, err = New(cat, Options{Duration: -time.Second})
	require.ErrorIs(t, err, layers.ErrConfig)

	e, err := New(cat, Options{})
	require.NoError(t, err, "nil clock falls back to the real clock")
	assert.Equal(t, time.Duration(0), e.Duration())
}

func TestSweep_HalfwayAndFinished(t *testing.T) {
	t.Parallel()

	e, _ := newEngine(t, tables{
		0: {"A": {Opacity: 0.0}},
		1: {"A": {Opacity: 1.0}},
	}, PolicyFreeze)

	require.NoError(t, e.Select(1))
	assert.Equal(t, PhaseAnimating, e.Phase())

	assert.True(t, e.Tick(500*time.Millisecond))
	assert.InDelta(t, 0.5, e.Opacity("A"), delta)
	assert.InDelta(t, 0.5, e.Progress(), delta)

	assert.True(t, e.Tick(1000*time.Millisecond))
	assert.InDelta(t, 1.0, e.Opacity("A"), delta)
	assert.Equal(t, 1, e.Current())
	assert.Equal(t, 1, e.Next())
	assert.Equal(t, PhaseIdle, e.Phase())
}

func TestSelect_UnknownIndexLeavesState(t *testing.T) {
	t.Parallel()

	tbl := tables{}
	for i := 0; i < 8; i++ {
		tbl[i] = map[string]presets.EntryDef{"base": {Opacity: float64(i) / 8}}
	}
	e, _ := newEngine(t, tbl, PolicyFreeze)

	require.NoError(t, e.Select(3))
	e.Tick(250 * time.Millisecond)
	before := e.Snapshot()

	err := e.Select(99)
	require.Error(t, err)
	assert.ErrorIs(t, err, presets.ErrUnknownPreset)
	assert.ErrorIs(t, err, layers.ErrConfig)

	assert.Equal(t, before, e.Snapshot())
	assert.Equal(t, 0, e.Current())
	assert.Equal(t, 3, e.Next())
	assert.Equal(t, PhaseAnimating, e.Phase())
	assert.InDelta(t, 0.25, e.Progress(), delta)
}

func TestTick_ZeroIsStartInvariant(t *testing.T) {
	t.Parallel()

	e, _ := newEngine(t, museumTables(), PolicyFreeze)
	require.NoError(t, e.Select(1))
	e.Tick(0)

	assert.Equal(t, map[string]float64{
		"base":   0,   // in next: starts at 0
		"rivers": 0.5, // only in current: its default
		"roads":  0,
	}, snapshotMap(e))
}

func TestTick_FinishInvariant(t *testing.T) {
	t.Parallel()

	for _, elapsed := range []time.Duration{time.Second, 5 * time.Second} {
		e, _ := newEngine(t, museumTables(), PolicyFreeze)

		var finished []int
		e.OnFinished(func(from, to presets.Preset) {
			finished = append(finished, from.Index, to.Index)
		})

		require.NoError(t, e.Select(1))
		assert.True(t, e.Tick(elapsed))

		assert.Equal(t, map[string]float64{"base": 0.6, "roads": 0.8}, snapshotMap(e))
		assert.Zero(t, e.Opacity("rivers"))
		assert.Equal(t, e.Current(), e.Next())
		assert.Equal(t, 1, e.Current())
		assert.Equal(t, []int{0, 1}, finished)

		assert.False(t, e.Tick(elapsed), "idle tick is a no-op")
		assert.Equal(t, []int{0, 1}, finished)
	}
}

func TestFreeze_HoldsOutgoingLayers(t *testing.T) {
	t.Parallel()

	e, _ := newEngine(t, museumTables(), PolicyFreeze)
	require.NoError(t, e.Select(1))
	e.Tick(250 * time.Millisecond)

	got := snapshotMap(e)
	assert.InDelta(t, 0.5, got["rivers"], delta)
	assert.InDelta(t, 0.2, got["roads"], delta)
	assert.InDelta(t, 0.15, got["base"], delta)
}

func TestCrossfade_FadesOutgoingLayers(t *testing.T) {
	t.Parallel()

	e, _ := newEngine(t, museumTables(), PolicyCrossfade)
	require.NoError(t, e.Select(1))

	e.Tick(0)
	got := snapshotMap(e)
	assert.InDelta(t, 1.0, got["base"], delta, "shared layer starts at the outgoing default")
	assert.InDelta(t, 0.5, got["rivers"], delta)
	assert.InDelta(t, 0.0, got["roads"], delta)

	e.Tick(250 * time.Millisecond)
	got = snapshotMap(e)
	assert.InDelta(t, 0.375, got["rivers"], delta)
	assert.InDelta(t, 0.2, got["roads"], delta)
	assert.InDelta(t, 0.9, got["base"], delta)

	e.Tick(time.Second)
	assert.Equal(t, map[string]float64{"base": 0.6, "roads": 0.8}, snapshotMap(e))
}

func TestSelect_WhileAnimatingRestarts(t *testing.T) {
	t.Parallel()

	e, clock := newEngine(t, museumTables(), PolicyFreeze)
	require.NoError(t, e.Select(1))
	clock.Advance(600 * time.Millisecond)
	require.True(t, e.Advance())

	require.NoError(t, e.Select(2))
	assert.Equal(t, 0, e.Current(), "current preset is kept")
	assert.Equal(t, 2, e.Next())
	assert.InDelta(t, 0.0, e.Progress(), delta)

	assert.Equal(t, map[string]float64{
		"base":   1,
		"rivers": 0.5,
		"labels": 0,
	}, snapshotMap(e), "abandoned preset's layers are dropped")

	clock.Advance(500 * time.Millisecond)
	require.True(t, e.Advance())
	assert.InDelta(t, 0.5, e.Opacity("labels"), delta, "sweep restarted from the new select")

	clock.Advance(500 * time.Millisecond)
	require.True(t, e.Advance())
	assert.Equal(t, 2, e.Current())
	assert.Equal(t, map[string]float64{"labels": 1}, snapshotMap(e))
}

func TestSelect_CurrentPreset(t *testing.T) {
	t.Parallel()

	e, _ := newEngine(t, museumTables(), PolicyFreeze)

	require.NoError(t, e.Select(0))
	assert.Equal(t, PhaseIdle, e.Phase(), "selecting the resting preset is a no-op")

	require.NoError(t, e.Select(1))
	e.Tick(300 * time.Millisecond)

	require.NoError(t, e.Select(0))
	assert.Equal(t, PhaseIdle, e.Phase(), "selecting current mid-sweep cancels it")
	assert.Equal(t, 0, e.Next())
	assert.Equal(t, map[string]float64{"base": 1, "rivers": 0.5}, snapshotMap(e))
}

func TestAdvance_SamplesClock(t *testing.T) {
	t.Parallel()

	e, clock := newEngine(t, museumTables(), PolicyFreeze)
	assert.False(t, e.Advance(), "idle engine has nothing to advance")

	require.NoError(t, e.Select(2))
	clock.Advance(250 * time.Millisecond)
	assert.True(t, e.Advance())
	assert.InDelta(t, 0.25, e.Progress(), delta)
	assert.InDelta(t, 0.25, e.Opacity("labels"), delta)

	clock.Advance(2 * time.Second)
	assert.True(t, e.Advance())
	assert.Equal(t, PhaseIdle, e.Phase())
	assert.Equal(t, 2, e.Current())
}

func TestZeroDuration_FinishesOnFirstTick(t *testing.T) {
	t.Parallel()

	cat, err := presets.NewCatalog(testRegistry(t), museumTables())
	require.NoError(t, err)
	e, err := New(cat, Options{Clock: clockwork.NewFakeClock()})
	require.NoError(t, err)

	require.NoError(t, e.Select(2))
	assert.True(t, e.Tick(0))
	assert.Equal(t, 2, e.Current())
	assert.Equal(t, PhaseIdle, e.Phase())
}

func TestTick_NegativeElapsedClamps(t *testing.T) {
	t.Parallel()

	e, _ := newEngine(t, museumTables(), PolicyFreeze)
	require.NoError(t, e.Select(2))
	e.Tick(-time.Second)

	assert.InDelta(t, 0.0, e.Opacity("labels"), delta)
	assert.InDelta(t, 0.0, e.Progress(), delta)
}

func TestSnapshot_EqualZOrderSortedByName(t *testing.T) {
	t.Parallel()

	e, _ := newEngine(t, tables{
		0: {"roads": {Opacity: 0.5}, "labels": {Opacity: 1}, "base": {Opacity: 1}},
	}, PolicyFreeze)

	for i := 0; i < 10; i++ {
		snap := e.Snapshot()
		require.Len(t, snap, 3)
		assert.Equal(t, "base", snap[0].Name)
		assert.Equal(t, "labels", snap[1].Name)
		assert.Equal(t, "roads", snap[2].Name)
	}
}

func TestSnapshot_Idempotent(t *testing.T) {
	t.Parallel()

	e, _ := newEngine(t, museumTables(), PolicyCrossfade)
	require.NoError(t, e.Select(1))
	e.Tick(420 * time.Millisecond)

	first := e.Snapshot()
	second := e.Snapshot()
	assert.Equal(t, first, second)

	first[0].Opacity = 42
	assert.NotEqual(t, first, e.Snapshot(), "snapshot is a copy")
}

func TestApply_CustomPreset(t *testing.T) {
	t.Parallel()

	e, clock := newEngine(t, museumTables(), PolicyFreeze)

	e.Apply(e.Catalog().FromMask(0b0001))
	clock.Advance(time.Second)
	e.Advance()

	assert.Equal(t, presets.CustomIndex, e.Current())
	assert.Equal(t, map[string]float64{"base": 1}, snapshotMap(e))

	e.Apply(presets.Blank())
	e.Tick(time.Second)
	assert.Empty(t, e.Snapshot())
	assert.Equal(t, "blank", e.CurrentPreset().Name)
}

func TestReload(t *testing.T) {
	t.Parallel()

	e, _ := newEngine(t, museumTables(), PolicyFreeze)
	require.NoError(t, e.Select(2))
	e.Tick(time.Second)

	smaller, err := presets.NewCatalog(e.Catalog().Registry(), tables{
		0: {"roads": {Opacity: 0.3}},
		1: {"labels": {Opacity: 0.5}},
		2: {"labels": {Opacity: 0.25}},
	})
	require.NoError(t, err)

	require.NoError(t, e.Reload(smaller))
	assert.Equal(t, 2, e.Current())
	assert.Equal(t, map[string]float64{"labels": 0.25}, snapshotMap(e))

	tiny, err := presets.NewCatalog(e.Catalog().Registry(), tables{
		0: {"roads": {Opacity: 0.3}},
	})
	require.NoError(t, err)

	require.NoError(t, e.Select(1))
	require.NoError(t, e.Reload(tiny))
	assert.Equal(t, 0, e.Current(), "missing index falls back to preset 0")
	assert.Equal(t, PhaseIdle, e.Phase())
	assert.Equal(t, map[string]float64{"roads": 0.3}, snapshotMap(e))
}

func TestParsePolicy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Policy
		wantErr bool
	}{
		{in: "", want: PolicyFreeze},
		{in: "freeze", want: PolicyFreeze},
		{in: "crossfade", want: PolicyCrossfade},
		{in: "bounce", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, err := ParsePolicy(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, layers.ErrConfig)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.String(), got.String())
		})
	}
}
