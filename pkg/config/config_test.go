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

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lassandro/gochip8/pkg/config"
)

func TestLoadMissingWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)

	written, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, written)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")

	yaml := "" +
		"hz: 500\n" +
		"rom: roms/BRIX\n" +
		"rom_key_mappings:\n" +
		"  BRIX:\n" +
		"    Left: 4\n" +
		"    Right: 6\n" +
		"debugger:\n" +
		"  enable: true\n" +
		"  history_limit: 1000\n"

	require.NoError(t, os.WriteFile(path, []byte(yaml), 0666))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.Hz)
	assert.Equal(t, 440.0, cfg.BeepFrequency)
	assert.True(t, cfg.Debugger.Enable)
	assert.Equal(t, 1000, cfg.Debugger.HistoryLimit)
	assert.Equal(t, "F1", cfg.Debugger.KeyMapping.ToggleBreak)
	assert.Equal(t, "F5", cfg.GeneralKeyMapping.RestartVM)

	keymap := cfg.Keymap()
	assert.Equal(t, uint8(4), keymap["Left"])
	assert.Equal(t, uint8(6), keymap["Right"])
	assert.Equal(t, uint8(0xA), keymap["A"])
	assert.Equal(t, uint8(7), keymap["Key7"])
}

func TestKeymapIgnoresOtherROMs(t *testing.T) {
	cfg := config.Default()
	cfg.ROM = "roms/PONG2"
	cfg.ROMKeyMappings["BRIX"] = config.Keymap{"Left": 4}
	cfg.DefaultKeyMapping["Q"] = 0x1

	keymap := cfg.Keymap()

	_, exists := keymap["Left"]
	assert.False(t, exists)
	assert.Equal(t, uint8(0x1), keymap["Q"])
	assert.Len(t, keymap, 17)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		Name   string
		Modify func(*config.Config)
	}{
		{"Negative Hz", func(c *config.Config) { c.Hz = -1 }},
		{"Zero Beep", func(c *config.Config) { c.BeepFrequency = 0 }},
		{"Zero Scaling", func(c *config.Config) { c.ScreenScaling = 0 }},
		{"Negative History", func(c *config.Config) { c.Debugger.HistoryLimit = -5 }},
		{"Log Level", func(c *config.Config) { c.LogLevel = "LOUD" }},
		{"Keypad Range", func(c *config.Config) { c.DefaultKeyMapping["Key1"] = 0x10 }},
		{"Unknown Key", func(c *config.Config) { c.DefaultKeyMapping["Hyper"] = 1 }},
		{"ROM Keymap", func(c *config.Config) { c.ROMKeyMappings["X"] = config.Keymap{"Key1": 99} }},
		{"Debugger Key", func(c *config.Config) { c.Debugger.KeyMapping.StepNext = "Pedal" }},
	}

	cfg := config.Default()
	require.NoError(t, cfg.Validate())

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			cfg := config.Default()
			test.Modify(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsNotValid(err), "%v", err)
		})
	}
}

func TestLoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("hz: -3\n"), 0666))

	_, err := config.Load(path)
	require.Error(t, err)
	assert.True(t, errors.IsNotValid(errors.Cause(err)))

	require.NoError(t, os.WriteFile(path, []byte("hz: [\n"), 0666))

	_, err = config.Load(path)
	assert.Error(t, err)
}

func TestReadROM(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()

	cfg.ROM = filepath.Join(dir, "missing")
	_, err := cfg.ReadROM()
	assert.True(t, errors.IsNotFound(err), "%v", err)

	cfg.ROM = filepath.Join(dir, "big")
	require.NoError(t, os.WriteFile(cfg.ROM, make([]byte, 0xE01), 0666))
	_, err = cfg.ReadROM()
	assert.True(t, errors.IsNotValid(err), "%v", err)

	cfg.ROM = filepath.Join(dir, "ok")
	require.NoError(t, os.WriteFile(cfg.ROM, []byte{0x60, 0x05}, 0666))
	rom, err := cfg.ReadROM()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x60, 0x05}, rom)
}
