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

package debugger

import (
	"io"

	"github.com/lassandro/gochip8/pkg/assembler"
	"github.com/lassandro/gochip8/pkg/machine"
)

type WatchpointType uint

const (
	ReadWatch WatchpointType = iota
	WriteWatch
	ReadWriteWatch
)

type Watchpoint struct {
	Addr uint16
	Type WatchpointType
}

type Breakpoint struct {
	Addr      uint16
	Condition *Condition
}

// Snapshot is the machine state after one executed step along with the
// keypad state the step observed.
type Snapshot struct {
	Step  uint64
	State machine.State
	Keys  machine.Keys
}

// History is an arena of snapshots with a cursor. Entry 0 is the state the
// timeline started from.
type History struct {
	entries []Snapshot
	start   int
	count   int
	cursor  int
	limit   int
}

type Debugger struct {
	Break bool

	Breakpoints []Breakpoint
	Watchpoints []Watchpoint

	History *History
	Output  io.Writer

	Source   io.ReadSeeker
	SymTable *assembler.SymTable
}
