// Copyright (C) 2021  Antonio Lassandro

// This program is free software: you can redistribute it and/or modify it
// under the terms of the GNU General Public License as published by the Free
// Software Foundation, either version 3 of the License, or (at your option)
// any later version.

// This program is distributed in the hope that it will be useful, but WITHOUT
// ANY WARRANTY; without even the implied warranty of MERCHANTABILITY or
// FITNESS FOR A PARTICULAR PURPOSE.  See the GNU General Public License for
// more details.

// You should have received a copy of the GNU General Public License along
// with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package config loads the host settings: instruction rate, audio, scaling,
// key mappings and the debugger switches.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/juju/errors"
	"github.com/juju/loggo"
	"gopkg.in/yaml.v2"

	"github.com/lassandro/gochip8/pkg/machine"
)

var logger = loggo.GetLogger("gochip8.config")

// Keymap maps host key names to keypad keys 0x0-0xF.
type Keymap map[string]uint8

type GeneralKeyMapping struct {
	RestartVM string `yaml:"restart_vm"`
}

type DebuggerKeyMapping struct {
	ToggleBreak    string `yaml:"toggle_break"`
	StepPrevious   string `yaml:"step_previous"`
	StepNext       string `yaml:"step_next"`
	PrintRegisters string `yaml:"print_registers"`
	PrintStack     string `yaml:"print_stack"`
	PrintTimers    string `yaml:"print_timers"`
}

type DebuggerConfig struct {
	Enable       bool               `yaml:"enable"`
	HistoryLimit int                `yaml:"history_limit"`
	KeyMapping   DebuggerKeyMapping `yaml:"key_mapping"`
}

type Config struct {
	Hz                int               `yaml:"hz"`
	BeepFrequency     float64           `yaml:"beep_frequency"`
	ROM               string            `yaml:"rom"`
	ScreenScaling     int               `yaml:"screen_scaling"`
	GeneralKeyMapping GeneralKeyMapping `yaml:"general_key_mapping"`
	DefaultKeyMapping Keymap            `yaml:"default_key_mapping"`
	ROMKeyMappings    map[string]Keymap `yaml:"rom_key_mappings"`
	Debugger          DebuggerConfig    `yaml:"debugger"`
	LogLevel          string            `yaml:"log_level"`
}

// KeyNames lists every host key name a mapping may use.
var KeyNames = func() []string {
	names := []string{
		"Key0", "Key1", "Key2", "Key3", "Key4",
		"Key5", "Key6", "Key7", "Key8", "Key9",
		"Up", "Down", "Left", "Right", "Space", "Return", "Tab",
	}

	for c := 'A'; c <= 'Z'; c++ {
		names = append(names, string(c))
	}

	for i := 1; i <= 12; i++ {
		names = append(names, fmt.Sprintf("F%d", i))
	}

	return names
}()

func knownKey(name string) bool {
	for _, known := range KeyNames {
		if known == name {
			return true
		}
	}

	return false
}

// DefaultKeymap maps the digit keys and A-F onto the keypad one to one.
func DefaultKeymap() Keymap {
	keymap := make(Keymap, machine.KEY_COUNT)

	for i := 0; i < 10; i++ {
		keymap[fmt.Sprintf("Key%d", i)] = uint8(i)
	}

	for i, name := range []string{"A", "B", "C", "D", "E", "F"} {
		keymap[name] = uint8(0xA + i)
	}

	return keymap
}

func Default() Config {
	return Config{
		Hz:            60,
		BeepFrequency: 440,
		ROM:           "roms/PONG2",
		ScreenScaling: 10,
		GeneralKeyMapping: GeneralKeyMapping{
			RestartVM: "F5",
		},
		DefaultKeyMapping: DefaultKeymap(),
		ROMKeyMappings:    make(map[string]Keymap),
		Debugger: DebuggerConfig{
			Enable:       false,
			HistoryLimit: 0,
			KeyMapping: DebuggerKeyMapping{
				ToggleBreak:    "F1",
				StepPrevious:   "F2",
				StepNext:       "F3",
				PrintRegisters: "F4",
				PrintStack:     "F6",
				PrintTimers:    "F7",
			},
		},
		LogLevel: "INFO",
	}
}

// Load reads the configuration at path over the defaults. A missing file
// is not an error: the defaults are written there for the user to edit.
func Load(path string) (Config, error) {
	config := Default()

	data, err := os.ReadFile(path)

	if os.IsNotExist(err) {
		logger.Infof("%s not found, writing defaults", path)

		if err := config.Save(path); err != nil {
			logger.Warningf("failed to write default config to %s: %v", path, err)
		}

		return config, nil
	} else if err != nil {
		return config, errors.Annotatef(err, "reading %s", path)
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, errors.Annotatef(err, "parsing %s", path)
	}

	if err := config.Validate(); err != nil {
		return config, errors.Annotatef(err, "%s", path)
	}

	return config, nil
}

func (config *Config) Save(path string) error {
	data, err := yaml.Marshal(config)

	if err != nil {
		return errors.Trace(err)
	}

	return errors.Trace(os.WriteFile(path, data, 0666))
}

func validateKeymap(name string, keymap Keymap) error {
	for key, value := range keymap {
		if !knownKey(key) {
			return errors.NotValidf("%s key %q", name, key)
		}

		if value >= machine.KEY_COUNT {
			return errors.NotValidf("%s value %#x for %q", name, value, key)
		}
	}

	return nil
}

func (config *Config) Validate() error {
	if config.Hz < 0 {
		return errors.NotValidf("hz %d", config.Hz)
	}

	if config.BeepFrequency <= 0 {
		return errors.NotValidf("beep_frequency %g", config.BeepFrequency)
	}

	if config.ScreenScaling < 1 {
		return errors.NotValidf("screen_scaling %d", config.ScreenScaling)
	}

	if config.Debugger.HistoryLimit < 0 {
		return errors.NotValidf("history_limit %d", config.Debugger.HistoryLimit)
	}

	if _, ok := loggo.ParseLevel(config.LogLevel); !ok {
		return errors.NotValidf("log_level %q", config.LogLevel)
	}

	if err := validateKeymap("default_key_mapping", config.DefaultKeyMapping); err != nil {
		return err
	}

	for rom, keymap := range config.ROMKeyMappings {
		if err := validateKeymap(fmt.Sprintf("rom_key_mappings[%s]", rom), keymap); err != nil {
			return err
		}
	}

	dk := config.Debugger.KeyMapping
	hostKeys := map[string]string{
		"restart_vm":      config.GeneralKeyMapping.RestartVM,
		"toggle_break":    dk.ToggleBreak,
		"step_previous":   dk.StepPrevious,
		"step_next":       dk.StepNext,
		"print_registers": dk.PrintRegisters,
		"print_stack":     dk.PrintStack,
		"print_timers":    dk.PrintTimers,
	}

	actions := make([]string, 0, len(hostKeys))
	for action := range hostKeys {
		actions = append(actions, action)
	}

	sort.Strings(actions)

	for _, action := range actions {
		if key := hostKeys[action]; !knownKey(key) {
			return errors.NotValidf("%s key %q", action, key)
		}
	}

	return nil
}

// Keymap resolves the mapping for the configured ROM: the built-in digit
// mapping, overlaid with default_key_mapping, overlaid with the entry in
// rom_key_mappings named after the ROM file.
func (config *Config) Keymap() Keymap {
	keymap := DefaultKeymap()

	for key, value := range config.DefaultKeyMapping {
		keymap[key] = value
	}

	if rom, exists := config.ROMKeyMappings[filepath.Base(config.ROM)]; exists {
		for key, value := range rom {
			keymap[key] = value
		}
	}

	return keymap
}

func (config *Config) ReadROM() ([]byte, error) {
	rom, err := os.ReadFile(config.ROM)

	if os.IsNotExist(err) {
		return nil, errors.NewNotFound(err, fmt.Sprintf("rom %q", config.ROM))
	} else if err != nil {
		return nil, errors.Annotatef(err, "reading rom %q", config.ROM)
	}

	if len(rom) > machine.PROGRAM_SIZE {
		return nil, errors.NotValidf(
			"rom %q of %d bytes (limit %d)", config.ROM, len(rom), machine.PROGRAM_SIZE,
		)
	}

	return rom, nil
}

// ConfigureLogging applies log_level to every gochip8 logger.
func (config *Config) ConfigureLogging() error {
	level, ok := loggo.ParseLevel(config.LogLevel)

	if !ok {
		return errors.NotValidf("log_level %q", config.LogLevel)
	}

	loggo.GetLogger("gochip8").SetLogLevel(level)
	return nil
}
