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

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/lassandro/gochip8/pkg/encoding"
	"github.com/lassandro/gochip8/pkg/machine"
)

func parseInstruction(ident string) InstructionType {
	return instructions[strings.ToUpper(ident)]
}

func parseDirective(ident string) DirectiveType {
	return directives[strings.ToUpper(ident)]
}

func parseLiteral(token *Token, bits LiteralType) (uint16, error) {
	var value int64

	if strings.HasPrefix(token.Value, "$") || strings.ContainsAny(token.Value, "xX") {
		result, err := encoding.DecodeHex(token.Value)

		if err != nil {
			return 0, &InvalidLiteralError{token.Position}
		}

		value = int64(result)
	} else {
		result, err := encoding.DecodeInt(token.Value)

		if err != nil {
			return 0, &InvalidLiteralError{token.Position}
		}

		value = int64(result)
	}

	// Negative values are allowed down to the signed range of the field
	limit := int64(1) << bits

	if value >= limit || value < -(limit/2) {
		return 0, &OversizedLiteralError{token.Position, limit - 1, value}
	}

	return uint16(value & (limit - 1)), nil
}

func parseRegister(token *Token) (uint16, bool) {
	ident := token.Value

	if token.Type != TOKEN_IDENT || len(ident) != 2 {
		return 0, false
	}

	if ident[0] != 'V' && ident[0] != 'v' {
		return 0, false
	}

	reg, err := strconv.ParseUint(ident[1:], 16, 8)

	if err != nil {
		return 0, false
	}

	return uint16(reg), true
}

func isKeyword(ident string) bool {
	for _, keyword := range keywords {
		if strings.EqualFold(ident, keyword) {
			return true
		}
	}

	return false
}

// A label may not shadow a register, keyword or mnemonic.
func isReserved(ident string) bool {
	_, register := parseRegister(&Token{Type: TOKEN_IDENT, Value: ident})

	return register ||
		isKeyword(ident) ||
		parseInstruction(ident) != INSTRUCTION_INVALID
}

func tokenizeLine(line string, cursor Cursor) (tokens []Token, errs []error) {
	var builder strings.Builder
	var tokenType TokenType = TOKEN_NONE
	var tokenStart int = 0
	var escaped bool = false

	// Position of a trailing comma still waiting for an operand
	var comma *Cursor = nil

	at := func(column int) Cursor {
		pos := cursor
		pos.Column = column
		pos.Byte = cursor.LineByte + int64(column-1)
		return pos
	}

	flush := func() {
		if builder.Len() > 0 {
			tokens = append(tokens, Token{
				Type: tokenType,
				Position: Cursor{
					Line:     cursor.Line,
					Column:   tokenStart,
					Byte:     cursor.LineByte + int64(tokenStart-1),
					Size:     int64(builder.Len()),
					LineByte: cursor.LineByte,
				},
				Value: builder.String(),
			})

			comma = nil
			builder.Reset()
		}

		tokenType = TOKEN_NONE
	}

	for i, char := range line {
		column := i + 1

		if tokenType == TOKEN_STRING {
			if char > unicode.MaxASCII {
				errs = append(errs, &OversizedCharacterError{at(column)})
			}

			builder.WriteRune(char)

			if char == '"' && !escaped {
				flush()
			}

			escaped = char == '\\' && !escaped
			continue
		}

		if tokenType == TOKEN_NONE {
			tokenStart = column
		}

		switch {
		// Whitespace
		case unicode.IsSpace(char):
			flush()

		// Comments
		case char == ';':
			flush()

			if comma != nil {
				errs = append(errs, &UnexpectedCharacterError{*comma, ','})
			}

			return

		// Operand separator
		case char == ',':
			flush()

			if comma != nil || len(tokens) < 2 {
				errs = append(errs, &UnexpectedCharacterError{at(column), char})
			}

			pos := at(column)
			comma = &pos

		// Label terminator (i.e. loop:)
		case char == ':':
			if tokenType == TOKEN_IDENT && len(tokens) == 0 {
				flush()
			} else {
				errs = append(errs, &UnexpectedCharacterError{at(column), char})
			}

		// Assembler directives
		case char == '.':
			if tokenType == TOKEN_NONE {
				tokenType = TOKEN_DIRECTIVE
				builder.WriteRune(char)
			} else {
				errs = append(errs, &UnexpectedCharacterError{at(column), char})
			}

		// String literal
		case char == '"':
			if tokenType == TOKEN_NONE {
				tokenType = TOKEN_STRING
				escaped = false
				builder.WriteRune(char)
			} else {
				errs = append(errs, &UnexpectedCharacterError{at(column), char})
			}

		// Indirect operand (i.e. [I])
		case char == '[':
			if tokenType == TOKEN_NONE {
				tokenType = TOKEN_INDIRECT
				builder.WriteRune(char)
			} else {
				errs = append(errs, &UnexpectedCharacterError{at(column), char})
			}

		case char == ']':
			if tokenType == TOKEN_INDIRECT {
				builder.WriteRune(char)
				flush()
			} else {
				errs = append(errs, &UnexpectedCharacterError{at(column), char})
			}

		// Base 10 (i.e. #42) and hex (i.e. $2A) literals
		case char == '#' || char == '$':
			if tokenType == TOKEN_NONE {
				tokenType = TOKEN_LITERAL
				builder.WriteRune(char)
			} else {
				errs = append(errs, &UnexpectedCharacterError{at(column), char})
			}

		// Numeric sign
		case char == '-':
			if tokenType == TOKEN_NONE {
				tokenType = TOKEN_LITERAL
				builder.WriteRune(char)
			} else if tokenType == TOKEN_LITERAL && builder.String() == "#" {
				builder.WriteRune(char)
			} else {
				errs = append(errs, &UnexpectedCharacterError{at(column), char})
			}

		// Numeric literal
		case unicode.IsDigit(char):
			if tokenType == TOKEN_NONE {
				tokenType = TOKEN_LITERAL
			}

			builder.WriteRune(char)

		// Identifier
		case char == '_' || unicode.IsLetter(char):
			if char > unicode.MaxASCII {
				errs = append(errs, &OversizedCharacterError{at(column)})
				continue
			}

			if tokenType == TOKEN_NONE {
				tokenType = TOKEN_IDENT
			}

			builder.WriteRune(char)

		default:
			if char > unicode.MaxASCII {
				errs = append(errs, &OversizedCharacterError{at(column)})
			} else {
				errs = append(errs, &UnexpectedCharacterError{at(column), char})
			}
		}
	}

	switch tokenType {
	case TOKEN_STRING:
		errs = append(errs, &InvalidStringError{at(tokenStart)})
	case TOKEN_INDIRECT:
		errs = append(errs, &UnexpectedCharacterError{at(tokenStart), '['})
		comma = nil
	default:
		flush()
	}

	if comma != nil {
		errs = append(errs, &UnexpectedCharacterError{*comma, ','})
	}

	return
}

type labelRef struct {
	Label    string
	Addr     uint16
	Size     LiteralType
	Position Cursor
}

// matchSlot reports why an operand cannot fill a slot, or nil if it can.
func matchSlot(slot Slot, operand *Token) error {
	switch slot.Type {
	case SLOT_X, SLOT_Y:
		if operand.Type != TOKEN_IDENT {
			return &InvalidOperandError{
				operand.Position, []TokenType{TOKEN_IDENT}, operand.Type,
			}
		}

		if _, ok := parseRegister(operand); !ok {
			return &InvalidRegisterError{operand.Position}
		}

	case SLOT_V0:
		if reg, ok := parseRegister(operand); !ok || reg != 0 {
			return &InvalidKeywordError{operand.Position, "V0", operand.Value}
		}

	case SLOT_N, SLOT_NN:
		if operand.Type != TOKEN_LITERAL {
			return &InvalidOperandError{
				operand.Position, []TokenType{TOKEN_LITERAL}, operand.Type,
			}
		}

	case SLOT_NNN:
		if operand.Type == TOKEN_IDENT && isReserved(operand.Value) {
			return &InvalidKeywordError{operand.Position, "label", operand.Value}
		}

		if operand.Type != TOKEN_LITERAL && operand.Type != TOKEN_IDENT {
			return &InvalidOperandError{
				operand.Position,
				[]TokenType{TOKEN_LITERAL, TOKEN_IDENT},
				operand.Type,
			}
		}

	case SLOT_NAMED:
		if !strings.EqualFold(operand.Value, slot.Name) {
			return &InvalidKeywordError{operand.Position, slot.Name, operand.Value}
		}
	}

	return nil
}

// selectForm picks the first form whose slots accept every operand. When
// none do, the error comes from the form that matched the most operands.
func selectForm(keyword *Token, candidates []Form, operands []Token) (*Form, error) {
	var best error = nil
	var bestDepth int = -1

	for i := range candidates {
		form := &candidates[i]

		if len(form.Slots) != len(operands) {
			continue
		}

		depth := 0
		var failure error = nil

		for ; depth < len(operands); depth++ {
			if failure = matchSlot(form.Slots[depth], &operands[depth]); failure != nil {
				break
			}
		}

		if failure == nil {
			return form, nil
		}

		if depth > bestDepth {
			best = failure
			bestDepth = depth
		}
	}

	if best == nil {
		return nil, &InvalidNumArgumentsError{
			keyword.Position, len(candidates[0].Slots), len(operands),
		}
	}

	return nil, best
}

// encodeForm fills the operand fields of form into an opcode. Label operands
// are left zero and queued on refs.
func encodeForm(form *Form, operands []Token, addr uint16, refs *[]labelRef) (uint16, []error) {
	var errs []error
	var scratch uint16 = form.Base

	for i, slot := range form.Slots {
		operand := &operands[i]

		switch slot.Type {
		case SLOT_X:
			reg, _ := parseRegister(operand)
			scratch |= reg << 8

		case SLOT_Y:
			reg, _ := parseRegister(operand)
			scratch |= reg << 4

		case SLOT_N:
			literal, err := parseLiteral(operand, LITERAL_NIBBLE)

			if err != nil {
				errs = append(errs, err)
			}

			scratch |= literal & 0xF

		case SLOT_NN:
			literal, err := parseLiteral(operand, LITERAL_BYTE)

			if err != nil {
				errs = append(errs, err)
			}

			scratch |= literal & 0xFF

		case SLOT_NNN:
			if operand.Type == TOKEN_IDENT {
				*refs = append(
					*refs,
					labelRef{operand.Value, addr, LITERAL_ADDRESS, operand.Position},
				)

				break
			}

			literal, err := parseLiteral(operand, LITERAL_ADDRESS)

			if err != nil {
				errs = append(errs, err)
			}

			scratch |= literal & machine.ADDRESS_MASK
		}
	}

	return scratch, errs
}

// AssembleSource assembles a program for the 0x200 load address. Labels may
// be used before they are declared. The symbol table, if given, receives the
// source line of every emitted address and every label.
func AssembleSource(input io.Reader, symtable *SymTable) (result []byte, errs []error) {
	var labels = make(map[string]uint16)
	var labelRefs []labelRef

	var program int = 0
	var image [machine.PROGRAM_SIZE]byte

	var scanner = bufio.NewScanner(input)
	var cursor = Cursor{Line: 1}

	errs = make([]error, 0)

	emit := func(b byte) bool {
		if program >= len(image) {
			return false
		}

		image[program] = b
		program++
		return true
	}

	address := func() uint16 {
		return machine.MEMSPACE_PROGRAM + uint16(program)
	}

assemble:
	for ; scanner.Scan(); cursor.Line++ {
		line := scanner.Text()
		next := cursor.LineByte + int64(len(line)+1)

		cursor.Size = int64(len(line))
		cursor.Byte = cursor.LineByte

		tokens, lineErrs := tokenizeLine(line, cursor)

		// Skip assembling lines that failed to parse
		if len(lineErrs) > 0 {
			errs = append(errs, lineErrs...)
			cursor.LineByte = next
			continue
		}

		if len(tokens) == 0 {
			cursor.LineByte = next
			continue
		}

		var directive DirectiveType
		var instruction InstructionType
		var keyword *Token = nil
		var operands []Token

		// Optional leading label
		if tokens[0].Type == TOKEN_IDENT && parseInstruction(tokens[0].Value) == INSTRUCTION_INVALID {
			label := &tokens[0]

			if isReserved(label.Value) {
				errs = append(errs, &UnknownIdentifierError{label.Position, label.Value})
			} else if _, exists := labels[label.Value]; exists {
				errs = append(errs, &RedeclaredLabelError{label.Position, label.Value})
			} else {
				labels[label.Value] = address()
			}

			tokens = tokens[1:]
		}

		if len(tokens) == 0 {
			cursor.LineByte = next
			continue
		}

		keyword = &tokens[0]
		operands = tokens[1:]

		if keyword.Type == TOKEN_IDENT {
			instruction = parseInstruction(keyword.Value)
		} else if keyword.Type == TOKEN_DIRECTIVE {
			directive = parseDirective(keyword.Value)
		}

		if instruction == INSTRUCTION_INVALID && directive == DIRECTIVE_INVALID {
			errs = append(errs, &UnknownIdentifierError{keyword.Position, keyword.Value})
			cursor.LineByte = next
			continue
		}

		start := address()
		overflow := false

		switch directive {
		// .BYTE #, #, ...
		case DIRECTIVE_BYTE:
			if len(operands) == 0 {
				errs = append(errs, &InvalidNumArgumentsError{keyword.Position, 1, 0})
				break
			}

			for i := range operands {
				if operands[i].Type != TOKEN_LITERAL {
					errs = append(
						errs,
						&InvalidOperandError{
							operands[i].Position,
							[]TokenType{TOKEN_LITERAL},
							operands[i].Type,
						},
					)

					continue
				}

				literal, err := parseLiteral(&operands[i], LITERAL_BYTE)

				if err != nil {
					errs = append(errs, err)
				}

				overflow = overflow || !emit(byte(literal))
			}

		// .WORD # | label
		case DIRECTIVE_WORD:
			if count := len(operands); count != 1 {
				errs = append(errs, &InvalidNumArgumentsError{keyword.Position, 1, count})
				break
			}

			var word uint16

			switch operands[0].Type {
			case TOKEN_LITERAL:
				literal, err := parseLiteral(&operands[0], LITERAL_WORD)

				if err != nil {
					errs = append(errs, err)
				}

				word = literal

			case TOKEN_IDENT:
				labelRefs = append(
					labelRefs,
					labelRef{operands[0].Value, start, LITERAL_WORD, operands[0].Position},
				)

			default:
				errs = append(
					errs,
					&InvalidOperandError{
						operands[0].Position,
						[]TokenType{TOKEN_LITERAL, TOKEN_IDENT},
						operands[0].Type,
					},
				)
			}

			overflow = !emit(byte(word>>8)) || !emit(byte(word))

		// .TEXT "..."
		case DIRECTIVE_TEXT:
			if count := len(operands); count != 1 {
				errs = append(errs, &InvalidNumArgumentsError{keyword.Position, 1, count})
				break
			}

			if operands[0].Type != TOKEN_STRING {
				errs = append(
					errs,
					&InvalidOperandError{
						operands[0].Position,
						[]TokenType{TOKEN_STRING},
						operands[0].Type,
					},
				)

				break
			}

			s, err := strconv.Unquote(operands[0].Value)

			if err != nil {
				errs = append(errs, &InvalidStringError{operands[0].Position})
				break
			}

			for i := 0; i < len(s) && !overflow; i++ {
				overflow = !emit(s[i])
			}

		// .SPACE #
		case DIRECTIVE_SPACE:
			if count := len(operands); count != 1 {
				errs = append(errs, &InvalidNumArgumentsError{keyword.Position, 1, count})
				break
			}

			if operands[0].Type != TOKEN_LITERAL {
				errs = append(
					errs,
					&InvalidOperandError{
						operands[0].Position,
						[]TokenType{TOKEN_LITERAL},
						operands[0].Type,
					},
				)

				break
			}

			literal, err := parseLiteral(&operands[0], LITERAL_ADDRESS)

			if err != nil {
				errs = append(errs, err)
				break
			}

			for i := uint16(0); i < literal && !overflow; i++ {
				overflow = !emit(0)
			}

		// .END
		case DIRECTIVE_END:
			if count := len(operands); count != 0 {
				errs = append(errs, &InvalidNumArgumentsError{keyword.Position, 0, count})
			}

			break assemble
		}

		if instruction != INSTRUCTION_INVALID {
			form, err := selectForm(keyword, forms[instruction], operands)

			if err != nil {
				errs = append(errs, err)
			} else {
				opcode, encodeErrs := encodeForm(form, operands, start, &labelRefs)
				errs = append(errs, encodeErrs...)

				overflow = !emit(byte(opcode>>8)) || !emit(byte(opcode))
			}
		}

		if overflow {
			errs = append(errs, &OversizedBinaryError{})
			return
		}

		if symtable != nil && address() != start {
			symtable.Symbols[start] = cursor.LineByte
		}

		cursor.LineByte = next
	}

	// Labels
	// - Resolve forward and backward references
	// - Add labels to symbol table
	for _, ref := range labelRefs {
		addr, exists := labels[ref.Label]

		if !exists {
			errs = append(errs, &UnknownLabelError{ref.Position, ref.Label})
			continue
		}

		offset := ref.Addr - machine.MEMSPACE_PROGRAM

		if ref.Size == LITERAL_WORD {
			image[offset] = byte(addr >> 8)
			image[offset+1] = byte(addr)
		} else {
			image[offset] |= byte((addr & machine.ADDRESS_MASK) >> 8)
			image[offset+1] = byte(addr)
		}
	}

	if symtable != nil {
		for label, addr := range labels {
			symtable.Labels[addr] = label
		}
	}

	result = make([]byte, program)
	copy(result, image[:program])

	return
}
