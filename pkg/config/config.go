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
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/KilpolaMuseum/mapkiosk/pkg/helpers/syncutil"
	"github.com/go-playground/validator/v10"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	SchemaVersion = 1
	CfgEnv        = "MAPKIOSK_CFG"

	InputModePreset = "preset"
	InputModeMask   = "mask"

	ZeroByteIgnore = "ignore"
	ZeroByteBlank  = "blank"

	PolicyFreeze    = "freeze"
	PolicyCrossfade = "crossfade"

	// DefaultLayerOpacity applies to layers that don't set one.
	DefaultLayerOpacity = 1.0
)

var ErrInvalid = errors.New("invalid config")

type Values struct {
	Presets      map[string]map[string]PresetEntry `toml:"presets,omitempty" validate:"dive,keys,numeric,endkeys,dive"`
	ImageFolder  string                            `toml:"image_folder"`
	Layers       []Layer                           `toml:"layers,omitempty" validate:"dive"`
	Serial       Serial                            `toml:"serial"`
	Input        Input                             `toml:"input"`
	Display      Display                           `toml:"display"`
	Transition   Transition                        `toml:"transition"`
	ConfigSchema int                               `toml:"config_schema"`
	DebugLogging bool                              `toml:"debug_logging"`
}

type Serial struct {
	Port           string `toml:"port"`
	BaudRate       int    `toml:"baud_rate" validate:"gt=0"`
	ReadTimeoutMs  int    `toml:"read_timeout_ms" validate:"gte=0,lte=1000"`
	PollIntervalMs int    `toml:"poll_interval_ms" validate:"gt=0"`
}

type Input struct {
	Mode       string `toml:"mode" validate:"oneof=preset mask"`
	ZeroByte   string `toml:"zero_byte" validate:"oneof=ignore blank"`
	AdvanceKey string `toml:"advance_key" validate:"required"`
	QuitKey    string `toml:"quit_key" validate:"required,nefield=AdvanceKey"`
}

type Transition struct {
	Policy     string `toml:"policy" validate:"oneof=freeze crossfade"`
	DurationMs int    `toml:"duration_ms" validate:"gte=0"`
}

type Display struct {
	WindowWidth  int  `toml:"window_width" validate:"gt=0"`
	WindowHeight int  `toml:"window_height" validate:"gt=0"`
	Fullscreen   bool `toml:"fullscreen"`
}

// Layer declares one image overlay. File is relative to the image folder.
type Layer struct {
	Opacity *float64 `toml:"opacity,omitempty" validate:"omitempty,gte=0,lte=1"`
	Name    string   `toml:"name" validate:"required"`
	File    string   `toml:"file" validate:"required"`
	ZOrder  int      `toml:"z_order"`
}

// DefaultOpacity is the opacity the layer shows at when toggled on its own.
func (l Layer) DefaultOpacity() float64 {
	if l.Opacity == nil {
		return DefaultLayerOpacity
	}
	return *l.Opacity
}

// PresetEntry is one layer's target within a preset. A nil Order falls back
// to the layer's z-order.
type PresetEntry struct {
	Order   *int    `toml:"order,omitempty"`
	Opacity float64 `toml:"opacity" validate:"gte=0,lte=1"`
}

var BaseDefaults = Values{
	ConfigSchema: SchemaVersion,
	ImageFolder:  ImagesDir,
	Serial: Serial{
		Port:           "/dev/ttyUSB0",
		BaudRate:       9600,
		ReadTimeoutMs:  10,
		PollIntervalMs: 50,
	},
	Input: Input{
		Mode:       InputModePreset,
		ZeroByte:   ZeroByteIgnore,
		AdvanceKey: "Space",
		QuitKey:    "Escape",
	},
	Transition: Transition{
		DurationMs: 1000,
		Policy:     PolicyFreeze,
	},
	Display: Display{
		Fullscreen:   true,
		WindowWidth:  1280,
		WindowHeight: 720,
	},
}

type Instance struct {
	validate *validator.Validate
	cfgPath  string
	vals     Values
	defaults Values
	mu       syncutil.RWMutex
}

// NewConfig opens the config file in configDir, or the file named by the
// MAPKIOSK_CFG environment variable. A default config is written to disk if
// none exists.
//
//nolint:gocritic // config struct copied for immutability
func NewConfig(configDir string, defaults Values) (*Instance, error) {
	cfgPath := os.Getenv(CfgEnv)
	log.Debug().Msgf("env config path: %s", cfgPath)

	if cfgPath == "" {
		cfgPath = filepath.Join(configDir, CfgFile)
	}

	return NewConfigAt(cfgPath, defaults)
}

// NewConfigAt opens the config file at an explicit path.
//
//nolint:gocritic // config struct copied for immutability
func NewConfigAt(cfgPath string, defaults Values) (*Instance, error) {
	cfg := Instance{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		cfgPath:  cfgPath,
		vals:     defaults,
		defaults: defaults,
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		log.Info().Str("path", cfgPath).Msg("saving new default config to disk")

		err := os.MkdirAll(filepath.Dir(cfgPath), 0o750)
		if err != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", err)
		}

		err = cfg.Save()
		if err != nil {
			return nil, err
		}
	}

	err := cfg.Load()
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Instance) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfgPath == "" {
		return errors.New("config path not set")
	}

	data, err := os.ReadFile(c.cfgPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults, then unmarshal file values on top.
	newVals := c.defaults
	newVals.Layers = nil
	newVals.Presets = nil
	err = toml.Unmarshal(data, &newVals)
	if err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if newVals.ConfigSchema != SchemaVersion {
		log.Error().Msgf(
			"schema version mismatch: got %d, expecting %d",
			newVals.ConfigSchema,
			SchemaVersion,
		)
		return errors.New("schema version mismatch")
	}

	if err := c.validateValues(&newVals); err != nil {
		return err
	}

	c.vals = newVals
	return nil
}

func (c *Instance) validateValues(vals *Values) error {
	if c.validate == nil {
		c.validate = validator.New(validator.WithRequiredStructEnabled())
	}
	if err := c.validate.Struct(vals); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed on %q", ErrInvalid, fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

func (c *Instance) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfgPath == "" {
		return errors.New("config path not set")
	}

	c.vals.ConfigSchema = SchemaVersion

	data, err := toml.Marshal(&c.vals)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(c.cfgPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func (c *Instance) Path() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfgPath
}

// ImageFolder returns the resolved image folder. Relative paths are resolved
// against dataDir.
func (c *Instance) ImageFolder(dataDir string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	path := c.vals.ImageFolder
	if path == "" {
		path = ImagesDir
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dataDir, path)
}

func (c *Instance) Serial() Serial {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Serial
}

func (c *Instance) SetSerialPort(port string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Serial.Port = port
}

func (c *Instance) PollInterval() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.vals.Serial.PollIntervalMs) * time.Millisecond
}

func (c *Instance) ReadTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.vals.Serial.ReadTimeoutMs) * time.Millisecond
}

func (c *Instance) Input() Input {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Input
}

func (c *Instance) TransitionPolicy() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Transition.Policy
}

func (c *Instance) TransitionDuration() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.vals.Transition.DurationMs) * time.Millisecond
}

func (c *Instance) Display() Display {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Display
}

func (c *Instance) SetFullscreen(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Display.Fullscreen = enabled
}

// Layers returns a copy of the declared layers.
func (c *Instance) Layers() []Layer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.vals.Layers)
}

// Presets returns a copy of the preset tables, keyed by preset index.
func (c *Instance) Presets() map[string]map[string]PresetEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]map[string]PresetEntry, len(c.vals.Presets))
	for k, v := range c.vals.Presets {
		out[k] = maps.Clone(v)
	}
	return out
}

func (c *Instance) DebugLogging() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.DebugLogging
}

func (c *Instance) SetDebugLogging(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.DebugLogging = enabled
	if enabled {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
