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

package assembler

const (
	TOKEN_NONE TokenType = iota
	TOKEN_IDENT
	TOKEN_DIRECTIVE
	TOKEN_STRING
	TOKEN_LITERAL
	TOKEN_INDIRECT
)

const (
	LITERAL_NIBBLE  LiteralType = 4
	LITERAL_BYTE                = 8
	LITERAL_ADDRESS             = 12
	LITERAL_WORD                = 16
)

const (
	INSTRUCTION_INVALID InstructionType = iota
	INSTRUCTION_CLS
	INSTRUCTION_RET
	INSTRUCTION_SYS
	INSTRUCTION_JP
	INSTRUCTION_CALL
	INSTRUCTION_SE
	INSTRUCTION_SNE
	INSTRUCTION_LD
	INSTRUCTION_ADD
	INSTRUCTION_OR
	INSTRUCTION_AND
	INSTRUCTION_XOR
	INSTRUCTION_SUB
	INSTRUCTION_SHR
	INSTRUCTION_SUBN
	INSTRUCTION_SHL
	INSTRUCTION_RND
	INSTRUCTION_DRW
	INSTRUCTION_SKP
	INSTRUCTION_SKNP
)

const (
	DIRECTIVE_INVALID DirectiveType = iota
	DIRECTIVE_BYTE
	DIRECTIVE_WORD
	DIRECTIVE_TEXT
	DIRECTIVE_SPACE
	DIRECTIVE_END
)

// Where an operand lands in the opcode
const (
	SLOT_X     SlotType = iota // register, bits 8-11
	SLOT_Y                     // register, bits 4-7
	SLOT_V0                    // the V0 register, no bits
	SLOT_N                     // nibble literal
	SLOT_NN                    // byte literal
	SLOT_NNN                   // address literal or label
	SLOT_NAMED                 // fixed keyword such as I, DT or [I]
)

var instructions = map[string]InstructionType{
	"CLS":  INSTRUCTION_CLS,
	"RET":  INSTRUCTION_RET,
	"SYS":  INSTRUCTION_SYS,
	"JP":   INSTRUCTION_JP,
	"CALL": INSTRUCTION_CALL,
	"SE":   INSTRUCTION_SE,
	"SNE":  INSTRUCTION_SNE,
	"LD":   INSTRUCTION_LD,
	"ADD":  INSTRUCTION_ADD,
	"OR":   INSTRUCTION_OR,
	"AND":  INSTRUCTION_AND,
	"XOR":  INSTRUCTION_XOR,
	"SUB":  INSTRUCTION_SUB,
	"SHR":  INSTRUCTION_SHR,
	"SUBN": INSTRUCTION_SUBN,
	"SHL":  INSTRUCTION_SHL,
	"RND":  INSTRUCTION_RND,
	"DRW":  INSTRUCTION_DRW,
	"SKP":  INSTRUCTION_SKP,
	"SKNP": INSTRUCTION_SKNP,
}

var directives = map[string]DirectiveType{
	".BYTE":  DIRECTIVE_BYTE,
	".WORD":  DIRECTIVE_WORD,
	".TEXT":  DIRECTIVE_TEXT,
	".SPACE": DIRECTIVE_SPACE,
	".END":   DIRECTIVE_END,
}

// Operand keywords that can never name a label
var keywords = []string{"I", "DT", "ST", "K", "F", "B", "[I]"}

var x = Slot{Type: SLOT_X}
var y = Slot{Type: SLOT_Y}
var n = Slot{Type: SLOT_N}
var nn = Slot{Type: SLOT_NN}
var nnn = Slot{Type: SLOT_NNN}
var v0 = Slot{Type: SLOT_V0}

func named(keyword string) Slot {
	return Slot{Type: SLOT_NAMED, Name: keyword}
}

var forms = map[InstructionType][]Form{
	INSTRUCTION_CLS:  {{0x00E0, nil}},
	INSTRUCTION_RET:  {{0x00EE, nil}},
	INSTRUCTION_SYS:  {{0x0000, []Slot{nnn}}},
	INSTRUCTION_JP:   {{0x1000, []Slot{nnn}}, {0xB000, []Slot{v0, nnn}}},
	INSTRUCTION_CALL: {{0x2000, []Slot{nnn}}},
	INSTRUCTION_SE:   {{0x3000, []Slot{x, nn}}, {0x5000, []Slot{x, y}}},
	INSTRUCTION_SNE:  {{0x4000, []Slot{x, nn}}, {0x9000, []Slot{x, y}}},
	INSTRUCTION_LD: {
		{0x6000, []Slot{x, nn}},
		{0x8000, []Slot{x, y}},
		{0xA000, []Slot{named("I"), nnn}},
		{0xF007, []Slot{x, named("DT")}},
		{0xF00A, []Slot{x, named("K")}},
		{0xF015, []Slot{named("DT"), x}},
		{0xF018, []Slot{named("ST"), x}},
		{0xF029, []Slot{named("F"), x}},
		{0xF033, []Slot{named("B"), x}},
		{0xF055, []Slot{named("[I]"), x}},
		{0xF065, []Slot{x, named("[I]")}},
	},
	INSTRUCTION_ADD: {
		{0x7000, []Slot{x, nn}},
		{0x8004, []Slot{x, y}},
		{0xF01E, []Slot{named("I"), x}},
	},
	INSTRUCTION_OR:   {{0x8001, []Slot{x, y}}},
	INSTRUCTION_AND:  {{0x8002, []Slot{x, y}}},
	INSTRUCTION_XOR:  {{0x8003, []Slot{x, y}}},
	INSTRUCTION_SUB:  {{0x8005, []Slot{x, y}}},
	INSTRUCTION_SHR:  {{0x8006, []Slot{x}}, {0x8006, []Slot{x, y}}},
	INSTRUCTION_SUBN: {{0x8007, []Slot{x, y}}},
	INSTRUCTION_SHL:  {{0x800E, []Slot{x}}, {0x800E, []Slot{x, y}}},
	INSTRUCTION_RND:  {{0xC000, []Slot{x, nn}}},
	INSTRUCTION_DRW:  {{0xD000, []Slot{x, y, n}}},
	INSTRUCTION_SKP:  {{0xE09E, []Slot{x}}},
	INSTRUCTION_SKNP: {{0xE0A1, []Slot{x}}},
}
