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

package encoding

import (
	"errors"
	"strconv"
	"strings"
)

var ErrInvalidHex = errors.New("Invalid hex string")

// Decodes a hexadecimal string in the formats: 0xFFF, xFFF, $FFF
func DecodeHex(s string) (uint16, error) {
	if strings.HasPrefix(s, "$") {
		s = "0x" + s[1:]
	} else if i := strings.IndexAny(s, "xX"); i == 0 {
		s = "0" + s
	} else if i != 1 || s[0] != '0' {
		return 0, ErrInvalidHex
	}

	if len(s) <= 2 {
		return 0, ErrInvalidHex
	}

	result, err := strconv.ParseUint(s, 0, 16)

	if err != nil {
		return 0, err
	}

	return uint16(result), nil
}

// Decodes a base-10 string in the formats: #123, 123
func DecodeInt(s string) (int16, error) {
	if i := strings.Index(s, "#"); i == 0 {
		s = s[1:]
	}

	result, err := strconv.ParseInt(s, 10, 16)

	if err != nil {
		return 0, err
	}

	return int16(result), nil
}

// Opcode joins the two big-endian bytes of an instruction.
func Opcode(hi, lo byte) uint16 {
	return uint16(hi)<<8 | uint16(lo)
}

func NibbleX(opcode uint16) uint8 {
	return uint8((opcode >> 8) & 0xF)
}

func NibbleY(opcode uint16) uint8 {
	return uint8((opcode >> 4) & 0xF)
}

func NibbleN(opcode uint16) uint8 {
	return uint8(opcode & 0xF)
}
