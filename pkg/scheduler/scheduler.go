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

// Package scheduler is the kiosk's single-threaded reactor. Everything
// that touches the transition state runs from Step, on the display
// thread; other goroutines hand work over with Post.
package scheduler

import (
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// PostQueueSize is how many posted functions can wait for the next step.
const PostQueueSize = 16

type timer struct {
	next     time.Time
	fn       func()
	name     string
	interval time.Duration
}

type Scheduler struct {
	clock   clockwork.Clock
	posted  chan func()
	timers  []*timer
	stopped atomic.Bool
	repaint bool
}

func New(clock clockwork.Clock) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Scheduler{
		clock:  clock,
		posted: make(chan func(), PostQueueSize),
	}
}

// Every runs fn at a fixed cadence, first after one interval. An interval
// of zero runs fn on every step.
func (s *Scheduler) Every(name string, interval time.Duration, fn func()) {
	if interval < 0 {
		interval = 0
	}
	s.timers = append(s.timers, &timer{
		name:     name,
		interval: interval,
		fn:       fn,
		next:     s.clock.Now().Add(interval),
	})
}

// Reschedule changes the interval of a named timer. The new cadence starts
// from now.
func (s *Scheduler) Reschedule(name string, interval time.Duration) bool {
	if interval < 0 {
		interval = 0
	}
	for _, t := range s.timers {
		if t.name == name {
			t.interval = interval
			t.next = s.clock.Now().Add(interval)
			return true
		}
	}
	return false
}

// Post queues fn to run at the start of the next step. It is safe to call
// from any goroutine and never blocks; it reports false when the queue is
// full or the scheduler has stopped.
func (s *Scheduler) Post(fn func()) bool {
	if s.stopped.Load() {
		return false
	}
	select {
	case s.posted <- fn:
		return true
	default:
		log.Warn().Msg("scheduler queue full, dropping posted work")
		return false
	}
}

// RequestRepaint marks the screen dirty.
func (s *Scheduler) RequestRepaint() {
	s.repaint = true
}

// Step runs posted work, then every due timer in registration order. It
// reports whether a repaint was requested since the last step.
func (s *Scheduler) Step() bool {
	if s.stopped.Load() {
		return false
	}

	// work posted while draining waits for the next step
	for n := len(s.posted); n > 0; n-- {
		(<-s.posted)()
	}

	now := s.clock.Now()
	for _, t := range s.timers {
		if t.interval > 0 && now.Before(t.next) {
			continue
		}
		t.fn()
		if s.stopped.Load() {
			return false
		}

		// late timers fire once and resync rather than catching up
		t.next = t.next.Add(t.interval)
		if !t.next.After(now) {
			t.next = now.Add(t.interval)
		}
	}

	repaint := s.repaint
	s.repaint = false
	return repaint
}

// Stop makes every later Step a no-op.
func (s *Scheduler) Stop() {
	if s.stopped.CompareAndSwap(false, true) {
		log.Debug().Msg("scheduler stopped")
	}
}

func (s *Scheduler) Stopped() bool {
	return s.stopped.Load()
}
