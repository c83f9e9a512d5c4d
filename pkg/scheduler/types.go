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

package scheduler

import (
	"io"
	"time"

	"github.com/lassandro/gochip8/pkg/config"
	"github.com/lassandro/gochip8/pkg/debugger"
	"github.com/lassandro/gochip8/pkg/machine"
)

type CommandType uint

const (
	COMMAND_PAUSE CommandType = iota
	COMMAND_RESUME
	COMMAND_RESTART
	COMMAND_RELOAD
	COMMAND_TOGGLE_BREAK
	COMMAND_STEP_NEXT
	COMMAND_STEP_PREVIOUS
	COMMAND_PRINT_REGISTERS
	COMMAND_PRINT_STACK
	COMMAND_PRINT_TIMERS
	COMMAND_PRINT_MEMORY
	COMMAND_PRINT_INSTRUCTION
	COMMAND_EXPORT_TRACE
	COMMAND_QUIT
)

// Command is a control request applied between instruction steps. Only the
// fields of its type are read.
type Command struct {
	Type CommandType

	// COMMAND_RELOAD, a negative Rate keeps the current one and a nil ROM
	// or Keymap keeps the current one
	Rate   int
	ROM    []byte
	Keymap config.Keymap

	// COMMAND_PRINT_MEMORY
	Addr  uint16
	Count uint16

	// COMMAND_EXPORT_TRACE, CSV goes to Writer unless Path names a Parquet
	// file to create
	Writer io.Writer
	Path   string
}

type Keypad interface {
	Keys() machine.Keys
}

// Remapper is implemented by keypads that can take a new key mapping on
// reload.
type Remapper interface {
	Remap(keymap config.Keymap)
}

type Display interface {
	Refresh(display machine.Display)
}

// Indicator is implemented by displays that show whether execution is
// paused or halted.
type Indicator interface {
	Indicate(paused bool, fault error)
}

type Speaker interface {
	Tone(on bool)
}

type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type Options struct {
	// Instructions per second, 0 runs unthrottled
	Rate int

	// Snapshots kept when Debug is set, 0 keeps everything
	History int
	Debug   bool

	Seed uint32

	Keypad  Keypad
	Display Display
	Speaker Speaker
	Clock   Clock

	// Destination of the debugger printers
	Output io.Writer

	OnFault func(err error)

	// OnBreak runs on the scheduling goroutine whenever execution stops for
	// the debugger. It may drive the scheduler through Apply.
	OnBreak func(s *Scheduler)
}

type status struct {
	paused bool
	fault  error
}

type Scheduler struct {
	opts     Options
	rom      []byte
	period   time.Duration
	commands chan Command

	state    machine.State
	keys     machine.Keys
	debugger *debugger.Debugger

	cpu   time.Duration
	delay time.Duration
	sound time.Duration

	paused   bool
	broke    bool
	quit     bool
	dirty    bool
	sounding bool
	status   *status
	fault    error
	steps    uint64
}
