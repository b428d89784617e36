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

package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// WatchDebounce collapses the burst of events an editor save produces.
const WatchDebounce = 250 * time.Millisecond

// Watcher reports changes to the config file on disk.
type Watcher struct {
	watcher  *fsnotify.Watcher
	onChange func()
	done     chan struct{}
	target   string
	debounce time.Duration
}

// Watch starts watching the config file and calls onChange from the watcher
// goroutine after each debounced change. The parent directory is watched so
// editors that replace the file on save are still seen.
func (c *Instance) Watch(onChange func()) (*Watcher, error) {
	target := filepath.Clean(c.Path())

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create config watcher: %w", err)
	}

	if err := fw.Add(filepath.Dir(target)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	w := &Watcher{
		watcher:  fw,
		onChange: onChange,
		done:     make(chan struct{}),
		target:   target,
		debounce: WatchDebounce,
	}
	go w.run()

	log.Debug().Str("path", target).Msg("watching config file")
	return w, nil
}

func (w *Watcher) run() {
	defer close(w.done)

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("config watcher error")
		case <-fire:
			fire = nil
			log.Info().Str("path", w.target).Msg("config file changed")
			w.onChange()
		}
	}
}

// Close stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	if err != nil {
		return fmt.Errorf("failed to close config watcher: %w", err)
	}
	return nil
}
