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

package main

import (
	"sync"

	"github.com/juju/loggo"

	"github.com/lassandro/gochip8/pkg/config"
	"github.com/lassandro/gochip8/pkg/machine"
	"github.com/lassandro/gochip8/pkg/scheduler"
)

var logger = loggo.GetLogger("gochip8.host")

// controls turns host key names into keypad keys and scheduler commands.
// Both front ends share it.
type controls struct {
	mu      sync.Mutex
	sched   *scheduler.Scheduler
	path    string
	cfg     config.Config
	keymap  config.Keymap
	restart string
	actions map[string]scheduler.CommandType
}

func newControls(cfg config.Config, path string) *controls {
	c := &controls{path: path}
	c.configure(cfg)
	return c
}

func (c *controls) configure(cfg config.Config) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cfg = cfg
	c.keymap = cfg.Keymap()
	c.restart = cfg.GeneralKeyMapping.RestartVM
	c.actions = make(map[string]scheduler.CommandType)

	if cfg.Debugger.Enable {
		keys := cfg.Debugger.KeyMapping
		c.actions[keys.ToggleBreak] = scheduler.COMMAND_TOGGLE_BREAK
		c.actions[keys.StepPrevious] = scheduler.COMMAND_STEP_PREVIOUS
		c.actions[keys.StepNext] = scheduler.COMMAND_STEP_NEXT
		c.actions[keys.PrintRegisters] = scheduler.COMMAND_PRINT_REGISTERS
		c.actions[keys.PrintStack] = scheduler.COMMAND_PRINT_STACK
		c.actions[keys.PrintTimers] = scheduler.COMMAND_PRINT_TIMERS
	}
}

// Remap swaps in the key mapping of a reloaded ROM.
func (c *controls) Remap(keymap config.Keymap) {
	c.mu.Lock()
	c.keymap = keymap
	c.mu.Unlock()
}

// key reports the keypad key a host key is mapped to.
func (c *controls) key(name string) (uint8, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key, exists := c.keymap[name]
	return key, exists
}

// repeats reports whether holding name should resend its command every
// frame, which only the step keys do.
func (c *controls) repeats(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	action, exists := c.actions[name]

	return exists && (action == scheduler.COMMAND_STEP_NEXT ||
		action == scheduler.COMMAND_STEP_PREVIOUS)
}

// press handles a host key going down and reports whether it was a control
// key rather than a keypad key.
func (c *controls) press(name string) bool {
	c.mu.Lock()
	restart := name == c.restart
	action, exists := c.actions[name]
	c.mu.Unlock()

	switch {
	case restart:
		c.reload()
		return true

	case exists:
		c.sched.Submit(scheduler.Command{Type: action})
		return true
	}

	return false
}

// reload rereads the config file and ROM so edits take effect without
// restarting the process.
func (c *controls) reload() {
	cfg, err := config.Load(c.path)

	if err != nil {
		logger.Errorf("reload: %v", err)
		return
	}

	overrideConfig(&cfg)

	rom, err := cfg.ReadROM()

	if err != nil {
		logger.Errorf("reload: %v", err)
		return
	}

	c.configure(cfg)

	logger.Infof("reloading %s", cfg.ROM)

	c.sched.Submit(scheduler.Command{
		Type:   scheduler.COMMAND_RELOAD,
		Rate:   cfg.Hz,
		ROM:    rom,
		Keymap: cfg.Keymap(),
	})
}

// keys folds the held host keys into a keypad bitmask.
func (c *controls) keys(held func(name string) bool) machine.Keys {
	c.mu.Lock()
	defer c.mu.Unlock()

	var keys machine.Keys

	for name, key := range c.keymap {
		if held(name) {
			keys = keys.Press(key)
		}
	}

	return keys
}
