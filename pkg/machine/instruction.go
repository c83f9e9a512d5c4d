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

	"github.com/lassandro/gochip8/pkg/encoding"
)

// Decode splits an opcode into its operand fields and selects the operation
// from the nibbles. Opcodes outside the instruction set return a Fault of
// kind FAULT_UNKNOWN_OPCODE with Program left zero.
func Decode(opcode uint16) (Instruction, error) {
	inst := Instruction{
		Opcode: opcode,
		X:      encoding.NibbleX(opcode),
		Y:      encoding.NibbleY(opcode),
		N:      encoding.NibbleN(opcode),
		NN:     uint8(opcode & 0xFF),
		NNN:    opcode & ADDRESS_MASK,
	}

	switch opcode >> 12 {
	case 0x0:
		switch opcode {
		case 0x00E0:
			inst.Op = OP_CLS
		case 0x00EE:
			inst.Op = OP_RET
		default:
			inst.Op = OP_SYS
		}

	case 0x1:
		inst.Op = OP_JP
	case 0x2:
		inst.Op = OP_CALL
	case 0x3:
		inst.Op = OP_SE_BYTE
	case 0x4:
		inst.Op = OP_SNE_BYTE

	case 0x5:
		if inst.N == 0 {
			inst.Op = OP_SE_REG
		}

	case 0x6:
		inst.Op = OP_LD_BYTE
	case 0x7:
		inst.Op = OP_ADD_BYTE

	case 0x8:
		switch inst.N {
		case 0x0:
			inst.Op = OP_LD_REG
		case 0x1:
			inst.Op = OP_OR
		case 0x2:
			inst.Op = OP_AND
		case 0x3:
			inst.Op = OP_XOR
		case 0x4:
			inst.Op = OP_ADD_REG
		case 0x5:
			inst.Op = OP_SUB
		case 0x6:
			inst.Op = OP_SHR
		case 0x7:
			inst.Op = OP_SUBN
		case 0xE:
			inst.Op = OP_SHL
		}

	case 0x9:
		if inst.N == 0 {
			inst.Op = OP_SNE_REG
		}

	case 0xA:
		inst.Op = OP_LD_I
	case 0xB:
		inst.Op = OP_JP_V0
	case 0xC:
		inst.Op = OP_RND
	case 0xD:
		inst.Op = OP_DRW

	case 0xE:
		switch inst.NN {
		case 0x9E:
			inst.Op = OP_SKP
		case 0xA1:
			inst.Op = OP_SKNP
		}

	case 0xF:
		switch inst.NN {
		case 0x07:
			inst.Op = OP_LD_VX_DT
		case 0x0A:
			inst.Op = OP_LD_VX_K
		case 0x15:
			inst.Op = OP_LD_DT_VX
		case 0x18:
			inst.Op = OP_LD_ST_VX
		case 0x1E:
			inst.Op = OP_ADD_I
		case 0x29:
			inst.Op = OP_LD_F
		case 0x33:
			inst.Op = OP_LD_B
		case 0x55:
			inst.Op = OP_LD_MEM
		case 0x65:
			inst.Op = OP_LD_REGS
		}
	}

	if inst.Op == OP_INVALID {
		return inst, &Fault{Kind: FAULT_UNKNOWN_OPCODE, Opcode: opcode}
	}

	return inst, nil
}

// Mnemonic returns the assembler keyword for the operation.
func (op Op) Mnemonic() string {
	switch op {
	case OP_CLS:
		return "CLS"
	case OP_RET:
		return "RET"
	case OP_SYS:
		return "SYS"
	case OP_JP, OP_JP_V0:
		return "JP"
	case OP_CALL:
		return "CALL"
	case OP_SE_BYTE, OP_SE_REG:
		return "SE"
	case OP_SNE_BYTE, OP_SNE_REG:
		return "SNE"
	case OP_LD_BYTE, OP_LD_REG, OP_LD_I, OP_LD_VX_DT, OP_LD_VX_K, OP_LD_DT_VX,
		OP_LD_ST_VX, OP_LD_F, OP_LD_B, OP_LD_MEM, OP_LD_REGS:
		return "LD"
	case OP_ADD_BYTE, OP_ADD_REG, OP_ADD_I:
		return "ADD"
	case OP_OR:
		return "OR"
	case OP_AND:
		return "AND"
	case OP_XOR:
		return "XOR"
	case OP_SUB:
		return "SUB"
	case OP_SHR:
		return "SHR"
	case OP_SUBN:
		return "SUBN"
	case OP_SHL:
		return "SHL"
	case OP_RND:
		return "RND"
	case OP_DRW:
		return "DRW"
	case OP_SKP:
		return "SKP"
	case OP_SKNP:
		return "SKNP"
	}

	return "???"
}

// String renders the instruction the way the assembler accepts it.
func (inst Instruction) String() string {
	name := inst.Op.Mnemonic()

	switch inst.Op {
	case OP_CLS, OP_RET:
		return name

	case OP_SYS, OP_JP, OP_CALL:
		return fmt.Sprintf("%s $%03X", name, inst.NNN)

	case OP_JP_V0:
		return fmt.Sprintf("%s V0, $%03X", name, inst.NNN)

	case OP_SE_BYTE, OP_SNE_BYTE, OP_LD_BYTE, OP_ADD_BYTE, OP_RND:
		return fmt.Sprintf("%s V%X, $%02X", name, inst.X, inst.NN)

	case OP_SE_REG, OP_SNE_REG, OP_LD_REG, OP_OR, OP_AND, OP_XOR, OP_ADD_REG,
		OP_SUB, OP_SUBN:
		return fmt.Sprintf("%s V%X, V%X", name, inst.X, inst.Y)

	case OP_SHR, OP_SHL:
		return fmt.Sprintf("%s V%X", name, inst.X)

	case OP_LD_I:
		return fmt.Sprintf("%s I, $%03X", name, inst.NNN)

	case OP_DRW:
		return fmt.Sprintf("%s V%X, V%X, %d", name, inst.X, inst.Y, inst.N)

	case OP_SKP, OP_SKNP:
		return fmt.Sprintf("%s V%X", name, inst.X)

	case OP_LD_VX_DT:
		return fmt.Sprintf("%s V%X, DT", name, inst.X)
	case OP_LD_VX_K:
		return fmt.Sprintf("%s V%X, K", name, inst.X)
	case OP_LD_DT_VX:
		return fmt.Sprintf("%s DT, V%X", name, inst.X)
	case OP_LD_ST_VX:
		return fmt.Sprintf("%s ST, V%X", name, inst.X)
	case OP_ADD_I:
		return fmt.Sprintf("%s I, V%X", name, inst.X)
	case OP_LD_F:
		return fmt.Sprintf("%s F, V%X", name, inst.X)
	case OP_LD_B:
		return fmt.Sprintf("%s B, V%X", name, inst.X)
	case OP_LD_MEM:
		return fmt.Sprintf("%s [I], V%X", name, inst.X)
	case OP_LD_REGS:
		return fmt.Sprintf("%s V%X, [I]", name, inst.X)
	}

	return fmt.Sprintf("DW $%04X", inst.Opcode)
}

// Access reports the memory range the instruction touches when executed
// against s. Size is zero for instructions that do not access memory.
func (inst Instruction) Access(s *State) (addr uint16, size uint16, write bool) {
	switch inst.Op {
	case OP_DRW:
		return s.Index, uint16(inst.N), false
	case OP_LD_B:
		return s.Index, 3, true
	case OP_LD_MEM:
		return s.Index, uint16(inst.X) + 1, true
	case OP_LD_REGS:
		return s.Index, uint16(inst.X) + 1, false
	}

	return 0, 0, false
}
