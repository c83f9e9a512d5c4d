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
	"errors"
	"fmt"

	"github.com/lassandro/gochip8/pkg/encoding"
)

var ErrOversizedROM = errors.New("ROM exceeds program memory")

// Load builds the power-on state for rom. A zero seed is replaced so the
// random generator never sticks at zero.
func Load(rom []byte, seed uint32) (State, error) {
	var s State

	if len(rom) > PROGRAM_SIZE {
		return s, fmt.Errorf(
			"%w\n\twant:%d\n\thave:%d", ErrOversizedROM, PROGRAM_SIZE, len(rom),
		)
	}

	s.Reset(seed)
	copy(s.Memory[MEMSPACE_PROGRAM:], rom)

	return s, nil
}

// Reset clears everything but leaves the program area of memory alone.
func (s *State) Reset(seed uint32) {
	for i := range s.Registers {
		s.Registers[i] = 0
	}

	for i := 0; i < int(MEMSPACE_PROGRAM); i++ {
		s.Memory[i] = 0
	}

	copy(s.Memory[MEMSPACE_FONT:], FONT[:])

	s.Index = 0
	s.Program = MEMSPACE_PROGRAM
	s.Stack = [STACK_SIZE]uint16{}
	s.Depth = 0
	s.DelayTimer = 0
	s.SoundTimer = 0
	s.Display.Clear()
	s.Keys = 0
	s.Waiting = Wait{}

	if seed == 0 {
		seed = 0x2545F491
	}
	s.Random = seed
}

func (s *State) TickDelay() {
	if s.DelayTimer > 0 {
		s.DelayTimer--
	}
}

func (s *State) TickSound() {
	if s.SoundTimer > 0 {
		s.SoundTimer--
	}
}

// Fetch returns the opcode at the program counter.
func (s *State) Fetch() (uint16, error) {
	if int(s.Program)+1 >= MEMORY_SIZE {
		return 0, &Fault{Kind: FAULT_ADDRESS, Program: s.Program}
	}

	return encoding.Opcode(s.Memory[s.Program], s.Memory[s.Program+1]), nil
}

func (s *State) push(value uint16) bool {
	if s.Depth >= STACK_SIZE {
		return false
	}

	s.Stack[s.Depth] = value & ADDRESS_MASK
	s.Depth++
	return true
}

func (s *State) pop() (uint16, bool) {
	if s.Depth == 0 {
		return 0, false
	}

	s.Depth--
	value := s.Stack[s.Depth]
	s.Stack[s.Depth] = 0
	return value, true
}

func (s *State) random() uint8 {
	x := s.Random
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	s.Random = x
	return uint8(x >> 24)
}

// draw XORs an 8 pixel wide sprite row by row, wrapping on both axes, and
// reports whether any lit pixel was turned off.
func (s *State) draw(x, y uint8, sprite []byte) bool {
	collision := false
	col := int(x) % DISPLAY_WIDTH

	for i, row := range sprite {
		line := (int(y) + i) % DISPLAY_HEIGHT

		// Spread the byte across columns col..col+7 then rotate into place
		bits := uint64(row) << (DISPLAY_WIDTH - 8)
		bits = bits>>uint(col) | bits<<uint(DISPLAY_WIDTH-col)

		if s.Display[line]&bits != 0 {
			collision = true
		}

		s.Display[line] ^= bits
	}

	return collision
}

func inRange(addr uint16, size uint16) bool {
	return int(addr)+int(size) <= MEMORY_SIZE
}

// Step executes the instruction at the program counter. The input state is
// never modified; on a fault it is returned unchanged alongside the error.
func Step(s State, keys Keys) (State, Effects, error) {
	in := s
	s.Keys = keys

	var fx Effects

	fault := func(kind FaultKind, opcode uint16) (State, Effects, error) {
		return in, Effects{SoundActive: in.SoundTimer > 0}, &Fault{
			Kind: kind, Program: in.Program, Opcode: opcode,
		}
	}

	if s.Waiting.Active {
		key, ok := keys.Lowest()

		if !ok {
			fx.SoundActive = s.SoundTimer > 0
			return s, fx, nil
		}

		s.Registers[s.Waiting.Register] = key
		s.Waiting = Wait{}
		s.Program = (s.Program + 2) & ADDRESS_MASK

		fx.SoundActive = s.SoundTimer > 0
		return s, fx, nil
	}

	opcode, err := s.Fetch()

	if err != nil {
		return fault(FAULT_ADDRESS, 0)
	}

	inst, err := Decode(opcode)

	if err != nil {
		return fault(FAULT_UNKNOWN_OPCODE, opcode)
	}

	x := inst.X
	y := inst.Y
	next := (s.Program + 2) & ADDRESS_MASK
	skip := (s.Program + 4) & ADDRESS_MASK

	switch inst.Op {
	// CLS  |0000|0000|1110|0000| Clear display
	// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
	case OP_CLS:
		s.Display.Clear()
		fx.DisplayDirty = true
		s.Program = next

	// RET  |0000|0000|1110|1110| Return from subroutine
	// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
	case OP_RET:
		addr, ok := s.pop()

		if !ok {
			return fault(FAULT_STACK_UNDERFLOW, opcode)
		}

		s.Program = addr

	// SYS  |0000|nnn           | Machine code routine (ignored)
	// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
	case OP_SYS:
		s.Program = next

	// JP   |0001|nnn           | Jump
	// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
	case OP_JP:
		s.Program = inst.NNN

	// CALL |0010|nnn           | Call subroutine
	// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
	case OP_CALL:
		if !s.push(next) {
			return fault(FAULT_STACK_OVERFLOW, opcode)
		}

		s.Program = inst.NNN

	// SE   |0011|x   |nn       | Skip if Vx == nn
	// SNE  |0100|x   |nn       | Skip if Vx != nn
	// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
	case OP_SE_BYTE:
		if s.Registers[x] == inst.NN {
			s.Program = skip
		} else {
			s.Program = next
		}

	case OP_SNE_BYTE:
		if s.Registers[x] != inst.NN {
			s.Program = skip
		} else {
			s.Program = next
		}

	// SE   |0101|x   |y   |0000| Skip if Vx == Vy
	// SNE  |1001|x   |y   |0000| Skip if Vx != Vy
	// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
	case OP_SE_REG:
		if s.Registers[x] == s.Registers[y] {
			s.Program = skip
		} else {
			s.Program = next
		}

	case OP_SNE_REG:
		if s.Registers[x] != s.Registers[y] {
			s.Program = skip
		} else {
			s.Program = next
		}

	// LD   |0110|x   |nn       | Vx = nn
	// ADD  |0111|x   |nn       | Vx += nn, VF untouched
	// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
	case OP_LD_BYTE:
		s.Registers[x] = inst.NN
		s.Program = next

	case OP_ADD_BYTE:
		s.Registers[x] += inst.NN
		s.Program = next

	// LD   |1000|x   |y   |0000| Vx = Vy
	// OR   |1000|x   |y   |0001| Vx |= Vy
	// AND  |1000|x   |y   |0010| Vx &= Vy
	// XOR  |1000|x   |y   |0011| Vx ^= Vy
	// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
	case OP_LD_REG:
		s.Registers[x] = s.Registers[y]
		s.Program = next

	case OP_OR:
		s.Registers[x] |= s.Registers[y]
		s.Program = next

	case OP_AND:
		s.Registers[x] &= s.Registers[y]
		s.Program = next

	case OP_XOR:
		s.Registers[x] ^= s.Registers[y]
		s.Program = next

	// The flag is computed from the operands before the write, and VF is
	// written last so a VF destination still ends up holding the flag.

	// ADD  |1000|x   |y   |0100| Vx += Vy, VF = carry
	// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
	case OP_ADD_REG:
		sum := uint16(s.Registers[x]) + uint16(s.Registers[y])
		s.Registers[x] = uint8(sum)
		s.Registers[FLAG] = uint8(sum >> 8)
		s.Program = next

	// SUB  |1000|x   |y   |0101| Vx = Vx - Vy, VF = !borrow
	// SUBN |1000|x   |y   |0111| Vx = Vy - Vx, VF = !borrow
	// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
	case OP_SUB, OP_SUBN:
		a, b := s.Registers[x], s.Registers[y]

		if inst.Op == OP_SUBN {
			a, b = b, a
		}

		var flag uint8
		if a >= b {
			flag = 1
		}

		s.Registers[x] = a - b
		s.Registers[FLAG] = flag
		s.Program = next

	// SHR  |1000|x   |y   |0110| Vx >>= 1, VF = shifted out bit
	// SHL  |1000|x   |y   |1110| Vx <<= 1, VF = shifted out bit
	// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
	case OP_SHR:
		flag := s.Registers[x] & 0x1
		s.Registers[x] >>= 1
		s.Registers[FLAG] = flag
		s.Program = next

	case OP_SHL:
		flag := s.Registers[x] >> 7
		s.Registers[x] <<= 1
		s.Registers[FLAG] = flag
		s.Program = next

	// LD   |1010|nnn           | I = nnn
	// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
	case OP_LD_I:
		s.Index = inst.NNN
		s.Program = next

	// JP   |1011|nnn           | Jump to V0 + nnn
	// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
	case OP_JP_V0:
		s.Program = (uint16(s.Registers[0]) + inst.NNN) & ADDRESS_MASK

	// RND  |1100|x   |nn       | Vx = random & nn
	// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
	case OP_RND:
		s.Registers[x] = s.random() & inst.NN
		s.Program = next

	// DRW  |1101|x   |y   |n   | Draw n rows from I at (Vx, Vy)
	// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
	case OP_DRW:
		if !inRange(s.Index, uint16(inst.N)) {
			return fault(FAULT_ADDRESS, opcode)
		}

		sprite := s.Memory[s.Index : s.Index+uint16(inst.N)]
		collision := s.draw(s.Registers[x], s.Registers[y], sprite)

		if collision {
			s.Registers[FLAG] = 1
		} else {
			s.Registers[FLAG] = 0
		}

		fx.DisplayDirty = true
		s.Program = next

	// SKP  |1110|x   |1001|1110| Skip if key Vx held
	// SKNP |1110|x   |1010|0001| Skip if key Vx not held
	// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
	case OP_SKP:
		if keys.Pressed(s.Registers[x]) {
			s.Program = skip
		} else {
			s.Program = next
		}

	case OP_SKNP:
		if !keys.Pressed(s.Registers[x]) {
			s.Program = skip
		} else {
			s.Program = next
		}

	// LD   |1111|x   |0000|0111| Vx = DT
	// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
	case OP_LD_VX_DT:
		s.Registers[x] = s.DelayTimer
		s.Program = next

	// LD   |1111|x   |0000|1010| Vx = next key press
	// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
	case OP_LD_VX_K:
		if key, ok := keys.Lowest(); ok {
			s.Registers[x] = key
			s.Program = next
		} else {
			s.Waiting = Wait{Active: true, Register: x}
		}

	// LD   |1111|x   |0001|0101| DT = Vx
	// LD   |1111|x   |0001|1000| ST = Vx
	// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
	case OP_LD_DT_VX:
		s.DelayTimer = s.Registers[x]
		s.Program = next

	case OP_LD_ST_VX:
		s.SoundTimer = s.Registers[x]
		s.Program = next

	// ADD  |1111|x   |0001|1110| I += Vx, VF = overflow past 0xFFF
	// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
	case OP_ADD_I:
		sum := s.Index + uint16(s.Registers[x])
		s.Index = sum & ADDRESS_MASK

		if sum > ADDRESS_MASK {
			s.Registers[FLAG] = 1
		} else {
			s.Registers[FLAG] = 0
		}

		s.Program = next

	// LD   |1111|x   |0010|1001| I = glyph address of Vx
	// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
	case OP_LD_F:
		s.Index = (MEMSPACE_FONT + uint16(s.Registers[x])*GLYPH_SIZE) &
			ADDRESS_MASK
		s.Program = next

	// LD   |1111|x   |0011|0011| BCD of Vx into I..I+2
	// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
	case OP_LD_B:
		if !inRange(s.Index, 3) {
			return fault(FAULT_ADDRESS, opcode)
		}

		value := s.Registers[x]
		s.Memory[s.Index] = value / 100
		s.Memory[s.Index+1] = (value / 10) % 10
		s.Memory[s.Index+2] = value % 10
		s.Program = next

	// LD   |1111|x   |0101|0101| Store V0..Vx at I, I += x + 1
	// LD   |1111|x   |0110|0101| Load V0..Vx from I, I += x + 1
	// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
	case OP_LD_MEM:
		if !inRange(s.Index, uint16(x)+1) {
			return fault(FAULT_ADDRESS, opcode)
		}

		copy(s.Memory[s.Index:], s.Registers[:x+1])
		s.Index = (s.Index + uint16(x) + 1) & ADDRESS_MASK
		s.Program = next

	case OP_LD_REGS:
		if !inRange(s.Index, uint16(x)+1) {
			return fault(FAULT_ADDRESS, opcode)
		}

		copy(s.Registers[:x+1], s.Memory[s.Index:])
		s.Index = (s.Index + uint16(x) + 1) & ADDRESS_MASK
		s.Program = next

	default:
		return fault(FAULT_UNKNOWN_OPCODE, opcode)
	}

	fx.SoundActive = s.SoundTimer > 0

	return s, fx, nil
}
