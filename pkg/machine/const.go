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

const (
	MEMORY_SIZE  = 0x1000
	ADDRESS_MASK = 0x0FFF
	STACK_SIZE   = 16
	KEY_COUNT    = 16
	FLAG         = 0xF
)

const (
	MEMSPACE_FONT    uint16 = 0x0000
	MEMSPACE_PROGRAM uint16 = 0x0200

	// Largest ROM that fits between MEMSPACE_PROGRAM and the end of memory
	PROGRAM_SIZE = MEMORY_SIZE - int(MEMSPACE_PROGRAM)
)

const (
	DISPLAY_WIDTH  = 64
	DISPLAY_HEIGHT = 32
)

const (
	TIMER_HZ   = 60
	GLYPH_SIZE = 5
)

const (
	OP_INVALID Op = iota

	OP_CLS  // 00E0
	OP_RET  // 00EE
	OP_SYS  // 0NNN
	OP_JP   // 1NNN
	OP_CALL // 2NNN

	OP_SE_BYTE  // 3XNN
	OP_SNE_BYTE // 4XNN
	OP_SE_REG   // 5XY0
	OP_LD_BYTE  // 6XNN
	OP_ADD_BYTE // 7XNN

	OP_LD_REG  // 8XY0
	OP_OR      // 8XY1
	OP_AND     // 8XY2
	OP_XOR     // 8XY3
	OP_ADD_REG // 8XY4
	OP_SUB     // 8XY5
	OP_SHR     // 8XY6
	OP_SUBN    // 8XY7
	OP_SHL     // 8XYE

	OP_SNE_REG // 9XY0
	OP_LD_I    // ANNN
	OP_JP_V0   // BNNN
	OP_RND     // CXNN
	OP_DRW     // DXYN
	OP_SKP     // EX9E
	OP_SKNP    // EXA1

	OP_LD_VX_DT // FX07
	OP_LD_VX_K  // FX0A
	OP_LD_DT_VX // FX15
	OP_LD_ST_VX // FX18
	OP_ADD_I    // FX1E
	OP_LD_F     // FX29
	OP_LD_B     // FX33
	OP_LD_MEM   // FX55
	OP_LD_REGS  // FX65
)

const (
	FAULT_UNKNOWN_OPCODE FaultKind = iota
	FAULT_STACK_OVERFLOW
	FAULT_STACK_UNDERFLOW
	FAULT_ADDRESS
)

// Hexadecimal digit sprites 0-F, GLYPH_SIZE bytes each
var FONT = [KEY_COUNT * GLYPH_SIZE]byte{
	0xF0, 0x90, 0x90, 0x90, 0xF0, // 0
	0x20, 0x60, 0x20, 0x20, 0x70, // 1
	0xF0, 0x10, 0xF0, 0x80, 0xF0, // 2
	0xF0, 0x10, 0xF0, 0x10, 0xF0, // 3
	0x90, 0x90, 0xF0, 0x10, 0x10, // 4
	0xF0, 0x80, 0xF0, 0x10, 0xF0, // 5
	0xF0, 0x80, 0xF0, 0x90, 0xF0, // 6
	0xF0, 0x10, 0x20, 0x40, 0x40, // 7
	0xF0, 0x90, 0xF0, 0x90, 0xF0, // 8
	0xF0, 0x90, 0xF0, 0x10, 0xF0, // 9
	0xF0, 0x90, 0xF0, 0x90, 0x90, // A
	0xE0, 0x90, 0xE0, 0x90, 0xE0, // B
	0xF0, 0x80, 0x80, 0x80, 0xF0, // C
	0xE0, 0x90, 0x90, 0x90, 0xE0, // D
	0xF0, 0x80, 0xF0, 0x80, 0xF0, // E
	0xF0, 0x80, 0xF0, 0x80, 0x80, // F
}
