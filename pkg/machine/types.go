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

package machine

import (
	"fmt"
)

type Op uint
type FaultKind uint

// Keys is the host keypad as a bitmask, bit n set while key n is held.
type Keys uint16

func (k Keys) Pressed(key uint8) bool {
	return key < KEY_COUNT && k&(1<<key) != 0
}

func (k Keys) Press(key uint8) Keys {
	if key >= KEY_COUNT {
		return k
	}
	return k | (1 << key)
}

func (k Keys) Release(key uint8) Keys {
	if key >= KEY_COUNT {
		return k
	}
	return k &^ (1 << key)
}

// Lowest returns the smallest key id currently held.
func (k Keys) Lowest() (uint8, bool) {
	for key := uint8(0); key < KEY_COUNT; key++ {
		if k.Pressed(key) {
			return key, true
		}
	}
	return 0, false
}

// Display holds one row per word, column 0 in the most significant bit.
type Display [DISPLAY_HEIGHT]uint64

func (d *Display) Pixel(x, y int) bool {
	x %= DISPLAY_WIDTH
	y %= DISPLAY_HEIGHT
	return (d[y]>>(DISPLAY_WIDTH-1-x))&0x1 == 1
}

func (d *Display) Clear() {
	for y := range d {
		d[y] = 0
	}
}

// Wait records a pending FX0A and the register that receives the key.
type Wait struct {
	Active   bool
	Register uint8
}

type State struct {
	Memory    [MEMORY_SIZE]byte
	Registers [16]byte

	Index   uint16
	Program uint16

	Stack [STACK_SIZE]uint16
	Depth int

	DelayTimer uint8
	SoundTimer uint8

	Display Display
	Keys    Keys
	Waiting Wait

	// xorshift32 state consumed by RND
	Random uint32
}

type Effects struct {
	DisplayDirty bool
	SoundActive  bool
}

type Instruction struct {
	Op     Op
	Opcode uint16

	X   uint8
	Y   uint8
	N   uint8
	NN  uint8
	NNN uint16
}

type Fault struct {
	Kind    FaultKind
	Program uint16
	Opcode  uint16
}

func (err *Fault) Error() string {
	var reason string

	switch err.Kind {
	case FAULT_UNKNOWN_OPCODE:
		reason = "Unknown opcode"
	case FAULT_STACK_OVERFLOW:
		reason = "Stack overflow"
	case FAULT_STACK_UNDERFLOW:
		reason = "Stack underflow"
	case FAULT_ADDRESS:
		reason = "Address out of range"
	default:
		reason = "<invalid>"
	}

	return fmt.Sprintf(
		"[%#03x]: %s\n\topcode:%#04x", err.Program, reason, err.Opcode,
	)
}
