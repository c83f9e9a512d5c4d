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

package machine_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lassandro/gochip8/pkg/machine"
)

type testMachineState struct {
	Registers  [16]byte
	Index      uint16
	Program    uint16
	Stack      []uint16
	DelayTimer uint8
	SoundTimer uint8
	Memory     map[uint16]byte
	Display    *machine.Display
	Waiting    machine.Wait
}

type testCase struct {
	Name    string
	Steps   uint
	Keys    machine.Keys
	Input   testMachineState
	Output  testMachineState
	Effects *machine.Effects
}

type failCase struct {
	Name  string
	Input testMachineState
	Kind  machine.FaultKind
}

func buildState(t *testing.T, in testMachineState) machine.State {
	s, err := machine.Load(nil, 1)
	require.NoError(t, err)

	s.Registers = in.Registers
	s.Index = in.Index
	s.Program = in.Program
	s.DelayTimer = in.DelayTimer
	s.SoundTimer = in.SoundTimer
	s.Waiting = in.Waiting

	if s.Program == 0 {
		s.Program = machine.MEMSPACE_PROGRAM
	}

	for i, addr := range in.Stack {
		s.Stack[i] = addr
	}
	s.Depth = len(in.Stack)

	for addr, value := range in.Memory {
		s.Memory[addr] = value
	}

	if in.Display != nil {
		s.Display = *in.Display
	}

	return s
}

func testMachineSuccess(t *testing.T, test *testCase) {
	s := buildState(t, test.Input)
	want := s

	if test.Steps == 0 {
		test.Steps = 1
	}

	var fx machine.Effects

	for i := uint(0); i < test.Steps; i++ {
		var err error
		s, fx, err = machine.Step(s, test.Keys)
		require.NoError(t, err)
	}

	want.Registers = test.Output.Registers
	want.Index = test.Output.Index
	want.Program = test.Output.Program
	want.DelayTimer = test.Output.DelayTimer
	want.SoundTimer = test.Output.SoundTimer
	want.Waiting = test.Output.Waiting
	want.Keys = test.Keys
	want.Random = s.Random

	want.Stack = [machine.STACK_SIZE]uint16{}
	for i, addr := range test.Output.Stack {
		want.Stack[i] = addr
	}
	want.Depth = len(test.Output.Stack)

	for addr, value := range test.Output.Memory {
		want.Memory[addr] = value
	}

	if test.Output.Display != nil {
		want.Display = *test.Output.Display
	}

	if diff := cmp.Diff(want, s); diff != "" {
		t.Errorf("State mismatch (-want +have):\n%s", diff)
	}

	if test.Effects != nil {
		assert.Equal(t, *test.Effects, fx, "Effects mismatch")
	}
}

func testMachineFail(t *testing.T, test *failCase) {
	s := buildState(t, test.Input)

	have, _, err := machine.Step(s, 0)
	require.Error(t, err)

	var fault *machine.Fault
	require.True(t, errors.As(err, &fault), "want:*machine.Fault\nhave:%T", err)

	assert.Equal(t, test.Kind, fault.Kind)
	assert.Equal(t, s.Program, fault.Program)

	if diff := cmp.Diff(s, have); diff != "" {
		t.Errorf("Faulted step changed state (-want +have):\n%s", diff)
	}
}

func testSuccess(t *testing.T, tests []testCase) {
	t.Run("Success", func(t *testing.T) {
		for _, test := range tests {
			t.Run(test.Name, func(t *testing.T) {
				testMachineSuccess(t, &test)
			})
		}
	})
}

func testFail(t *testing.T, tests []failCase) {
	t.Run("Fail", func(t *testing.T) {
		for _, test := range tests {
			t.Run(test.Name, func(t *testing.T) {
				testMachineFail(t, &test)
			})
		}
	})
}

func rows(set map[int]uint64) *machine.Display {
	var d machine.Display
	for y, row := range set {
		d[y] = row
	}
	return &d
}

func TestLoad(t *testing.T) {
	s, err := machine.Load([]byte{0x60, 0x05}, 0)
	require.NoError(t, err)

	assert.Equal(t, machine.MEMSPACE_PROGRAM, s.Program)
	assert.Equal(t, byte(0x60), s.Memory[0x200])
	assert.Equal(t, byte(0x05), s.Memory[0x201])
	assert.Equal(t, machine.FONT[:], s.Memory[:len(machine.FONT)])
	assert.Zero(t, s.Depth)
	assert.NotZero(t, s.Random)

	_, err = machine.Load(make([]byte, machine.PROGRAM_SIZE), 1)
	assert.NoError(t, err)

	_, err = machine.Load(make([]byte, machine.PROGRAM_SIZE+1), 1)
	assert.True(t, errors.Is(err, machine.ErrOversizedROM))
}

// CLS  |0000|0000|1110|0000| Clear display
// RET  |0000|0000|1110|1110| Return from subroutine
// SYS  |0000|nnn           | Machine code routine (ignored)
// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
func TestSystem(t *testing.T) {
	testSuccess(t, []testCase{
		{
			Name: "CLS",
			Input: testMachineState{
				Memory:  map[uint16]byte{0x200: 0x00, 0x201: 0xE0},
				Display: rows(map[int]uint64{0: 0xFF, 31: 1 << 63}),
			},
			Output: testMachineState{
				Program: 0x202,
				Display: rows(nil),
			},
			Effects: &machine.Effects{DisplayDirty: true},
		},
		{
			Name: "RET",
			Input: testMachineState{
				Program: 0x300,
				Stack:   []uint16{0x204, 0x3A2},
				Memory:  map[uint16]byte{0x300: 0x00, 0x301: 0xEE},
			},
			Output: testMachineState{
				Program: 0x3A2,
				Stack:   []uint16{0x204},
			},
		},
		{
			Name: "SYS",
			Input: testMachineState{
				Memory: map[uint16]byte{0x200: 0x01, 0x201: 0x23},
			},
			Output: testMachineState{
				Program: 0x202,
			},
			Effects: &machine.Effects{},
		},
	})

	testFail(t, []failCase{
		{
			Name: "RET Empty Stack",
			Input: testMachineState{
				Memory: map[uint16]byte{0x200: 0x00, 0x201: 0xEE},
			},
			Kind: machine.FAULT_STACK_UNDERFLOW,
		},
	})
}

// JP   |0001|nnn           | Jump
// CALL |0010|nnn           | Call subroutine
// JP   |1011|nnn           | Jump to V0 + nnn
// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
func TestJump(t *testing.T) {
	full := make([]uint16, machine.STACK_SIZE)
	almost := make([]uint16, machine.STACK_SIZE-1)

	for i := range full {
		full[i] = 0x202
	}

	for i := range almost {
		almost[i] = 0x202
	}

	testSuccess(t, []testCase{
		{
			Name: "JP",
			Input: testMachineState{
				Memory: map[uint16]byte{0x200: 0x1A, 0x201: 0xBC},
			},
			Output: testMachineState{
				Program: 0xABC,
			},
		},
		{
			Name:  "JP Self",
			Steps: 10,
			Input: testMachineState{
				Registers: [16]byte{3: 0x42},
				Memory:    map[uint16]byte{0x200: 0x12, 0x201: 0x00},
			},
			Output: testMachineState{
				Registers: [16]byte{3: 0x42},
				Program:   0x200,
			},
		},
		{
			Name: "CALL",
			Input: testMachineState{
				Memory: map[uint16]byte{0x200: 0x23, 0x201: 0x00},
			},
			Output: testMachineState{
				Program: 0x300,
				Stack:   []uint16{0x202},
			},
		},
		{
			Name: "CALL Sixteenth",
			Input: testMachineState{
				Stack:  almost,
				Memory: map[uint16]byte{0x200: 0x23, 0x201: 0x00},
			},
			Output: testMachineState{
				Program: 0x300,
				Stack:   full,
			},
		},
		{
			Name: "JP V0",
			Input: testMachineState{
				Registers: [16]byte{0: 0x10},
				Memory:    map[uint16]byte{0x200: 0xB3, 0x201: 0x00},
			},
			Output: testMachineState{
				Registers: [16]byte{0: 0x10},
				Program:   0x310,
			},
		},
		{
			Name: "JP V0 Wraps",
			Input: testMachineState{
				Registers: [16]byte{0: 0xFF},
				Memory:    map[uint16]byte{0x200: 0xBF, 0x201: 0xFF},
			},
			Output: testMachineState{
				Registers: [16]byte{0: 0xFF},
				Program:   0x0FE,
			},
		},
	})

	testFail(t, []failCase{
		{
			Name: "CALL Seventeenth",
			Input: testMachineState{
				Stack:  full,
				Memory: map[uint16]byte{0x200: 0x23, 0x201: 0x00},
			},
			Kind: machine.FAULT_STACK_OVERFLOW,
		},
		{
			Name: "Fetch Past Memory",
			Input: testMachineState{
				Program: 0xFFF,
			},
			Kind: machine.FAULT_ADDRESS,
		},
	})
}

// SE   |0011|x   |nn       | Skip if Vx == nn
// SNE  |0100|x   |nn       | Skip if Vx != nn
// SE   |0101|x   |y   |0000| Skip if Vx == Vy
// SNE  |1001|x   |y   |0000| Skip if Vx != Vy
// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
func TestSkip(t *testing.T) {
	testSuccess(t, []testCase{
		{
			Name: "SE Byte Taken",
			Input: testMachineState{
				Registers: [16]byte{1: 0x33},
				Memory:    map[uint16]byte{0x200: 0x31, 0x201: 0x33},
			},
			Output: testMachineState{
				Registers: [16]byte{1: 0x33},
				Program:   0x204,
			},
		},
		{
			Name: "SE Byte Not Taken",
			Input: testMachineState{
				Registers: [16]byte{1: 0x32},
				Memory:    map[uint16]byte{0x200: 0x31, 0x201: 0x33},
			},
			Output: testMachineState{
				Registers: [16]byte{1: 0x32},
				Program:   0x202,
			},
		},
		{
			Name: "SNE Byte Taken",
			Input: testMachineState{
				Registers: [16]byte{1: 0x32},
				Memory:    map[uint16]byte{0x200: 0x41, 0x201: 0x33},
			},
			Output: testMachineState{
				Registers: [16]byte{1: 0x32},
				Program:   0x204,
			},
		},
		{
			Name: "SE Register Taken",
			Input: testMachineState{
				Registers: [16]byte{2: 0x07, 3: 0x07},
				Memory:    map[uint16]byte{0x200: 0x52, 0x201: 0x30},
			},
			Output: testMachineState{
				Registers: [16]byte{2: 0x07, 3: 0x07},
				Program:   0x204,
			},
		},
		{
			Name: "SNE Register Not Taken",
			Input: testMachineState{
				Registers: [16]byte{2: 0x07, 3: 0x07},
				Memory:    map[uint16]byte{0x200: 0x92, 0x201: 0x30},
			},
			Output: testMachineState{
				Registers: [16]byte{2: 0x07, 3: 0x07},
				Program:   0x202,
			},
		},
	})

	testFail(t, []failCase{
		{
			Name: "SE Register Nonzero Tail",
			Input: testMachineState{
				Memory: map[uint16]byte{0x200: 0x52, 0x201: 0x31},
			},
			Kind: machine.FAULT_UNKNOWN_OPCODE,
		},
		{
			Name: "SNE Register Nonzero Tail",
			Input: testMachineState{
				Memory: map[uint16]byte{0x200: 0x92, 0x201: 0x3F},
			},
			Kind: machine.FAULT_UNKNOWN_OPCODE,
		},
	})
}

// LD   |0110|x   |nn       | Vx = nn
// ADD  |0111|x   |nn       | Vx += nn, VF untouched
// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
func TestConst(t *testing.T) {
	testSuccess(t, []testCase{
		{
			Name: "LD Byte",
			Input: testMachineState{
				Memory: map[uint16]byte{0x200: 0x60, 0x201: 0x05},
			},
			Output: testMachineState{
				Registers: [16]byte{0: 0x05},
				Program:   0x202,
			},
		},
		{
			Name: "ADD Byte Overflow Leaves Flag",
			Input: testMachineState{
				Registers: [16]byte{4: 0xFF, 0xF: 0x07},
				Memory:    map[uint16]byte{0x200: 0x74, 0x201: 0x02},
			},
			Output: testMachineState{
				Registers: [16]byte{4: 0x01, 0xF: 0x07},
				Program:   0x202,
			},
		},
	})
}

// LD   |1000|x   |y   |0000| Vx = Vy
// OR   |1000|x   |y   |0001| Vx |= Vy
// AND  |1000|x   |y   |0010| Vx &= Vy
// XOR  |1000|x   |y   |0011| Vx ^= Vy
// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
func TestBitwise(t *testing.T) {
	testSuccess(t, []testCase{
		{
			Name: "LD Register",
			Input: testMachineState{
				Registers: [16]byte{1: 0xAA, 2: 0x55},
				Memory:    map[uint16]byte{0x200: 0x81, 0x201: 0x20},
			},
			Output: testMachineState{
				Registers: [16]byte{1: 0x55, 2: 0x55},
				Program:   0x202,
			},
		},
		{
			Name: "OR",
			Input: testMachineState{
				Registers: [16]byte{1: 0xA0, 2: 0x05},
				Memory:    map[uint16]byte{0x200: 0x81, 0x201: 0x21},
			},
			Output: testMachineState{
				Registers: [16]byte{1: 0xA5, 2: 0x05},
				Program:   0x202,
			},
		},
		{
			Name: "AND",
			Input: testMachineState{
				Registers: [16]byte{1: 0xF0, 2: 0x3C},
				Memory:    map[uint16]byte{0x200: 0x81, 0x201: 0x22},
			},
			Output: testMachineState{
				Registers: [16]byte{1: 0x30, 2: 0x3C},
				Program:   0x202,
			},
		},
		{
			Name: "XOR",
			Input: testMachineState{
				Registers: [16]byte{1: 0xFF, 2: 0x0F},
				Memory:    map[uint16]byte{0x200: 0x81, 0x201: 0x23},
			},
			Output: testMachineState{
				Registers: [16]byte{1: 0xF0, 2: 0x0F},
				Program:   0x202,
			},
		},
	})
}

// ADD  |1000|x   |y   |0100| Vx += Vy, VF = carry
// SUB  |1000|x   |y   |0101| Vx = Vx - Vy, VF = !borrow
// SHR  |1000|x   |y   |0110| Vx >>= 1, VF = shifted out bit
// SUBN |1000|x   |y   |0111| Vx = Vy - Vx, VF = !borrow
// SHL  |1000|x   |y   |1110| Vx <<= 1, VF = shifted out bit
// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
func TestArithmetic(t *testing.T) {
	testSuccess(t, []testCase{
		{
			Name: "ADD Carry",
			Input: testMachineState{
				Registers: [16]byte{1: 0xF0, 2: 0x20},
				Memory:    map[uint16]byte{0x200: 0x81, 0x201: 0x24},
			},
			Output: testMachineState{
				Registers: [16]byte{1: 0x10, 2: 0x20, 0xF: 1},
				Program:   0x202,
			},
		},
		{
			Name: "ADD No Carry",
			Input: testMachineState{
				Registers: [16]byte{1: 0x10, 2: 0x20, 0xF: 1},
				Memory:    map[uint16]byte{0x200: 0x81, 0x201: 0x24},
			},
			Output: testMachineState{
				Registers: [16]byte{1: 0x30, 2: 0x20},
				Program:   0x202,
			},
		},
		{
			Name: "ADD Into VF Keeps Flag",
			Input: testMachineState{
				Registers: [16]byte{1: 0xFF, 0xF: 0x02},
				Memory:    map[uint16]byte{0x200: 0x8F, 0x201: 0x14},
			},
			Output: testMachineState{
				Registers: [16]byte{1: 0xFF, 0xF: 1},
				Program:   0x202,
			},
		},
		{
			Name: "SUB No Borrow",
			Input: testMachineState{
				Registers: [16]byte{1: 0x30, 2: 0x10},
				Memory:    map[uint16]byte{0x200: 0x81, 0x201: 0x25},
			},
			Output: testMachineState{
				Registers: [16]byte{1: 0x20, 2: 0x10, 0xF: 1},
				Program:   0x202,
			},
		},
		{
			Name: "SUB Equal",
			Input: testMachineState{
				Registers: [16]byte{1: 0x30, 2: 0x30},
				Memory:    map[uint16]byte{0x200: 0x81, 0x201: 0x25},
			},
			Output: testMachineState{
				Registers: [16]byte{1: 0x00, 2: 0x30, 0xF: 1},
				Program:   0x202,
			},
		},
		{
			Name: "SUB Borrow",
			Input: testMachineState{
				Registers: [16]byte{1: 0x10, 2: 0x30, 0xF: 1},
				Memory:    map[uint16]byte{0x200: 0x81, 0x201: 0x25},
			},
			Output: testMachineState{
				Registers: [16]byte{1: 0xE0, 2: 0x30},
				Program:   0x202,
			},
		},
		{
			Name: "SUB VF Source",
			Input: testMachineState{
				Registers: [16]byte{0xF: 0x05, 2: 0x03},
				Memory:    map[uint16]byte{0x200: 0x8F, 0x201: 0x25},
			},
			Output: testMachineState{
				Registers: [16]byte{0xF: 1, 2: 0x03},
				Program:   0x202,
			},
		},
		{
			Name: "SUBN No Borrow",
			Input: testMachineState{
				Registers: [16]byte{1: 0x10, 2: 0x30},
				Memory:    map[uint16]byte{0x200: 0x81, 0x201: 0x27},
			},
			Output: testMachineState{
				Registers: [16]byte{1: 0x20, 2: 0x30, 0xF: 1},
				Program:   0x202,
			},
		},
		{
			Name: "SUBN Borrow",
			Input: testMachineState{
				Registers: [16]byte{1: 0x30, 2: 0x10},
				Memory:    map[uint16]byte{0x200: 0x81, 0x201: 0x27},
			},
			Output: testMachineState{
				Registers: [16]byte{1: 0xE0, 2: 0x10},
				Program:   0x202,
			},
		},
		{
			Name: "SHR Odd",
			Input: testMachineState{
				Registers: [16]byte{1: 0x05, 2: 0xFF},
				Memory:    map[uint16]byte{0x200: 0x81, 0x201: 0x26},
			},
			Output: testMachineState{
				Registers: [16]byte{1: 0x02, 2: 0xFF, 0xF: 1},
				Program:   0x202,
			},
		},
		{
			Name: "SHR Even",
			Input: testMachineState{
				Registers: [16]byte{1: 0x04, 0xF: 1},
				Memory:    map[uint16]byte{0x200: 0x81, 0x201: 0x06},
			},
			Output: testMachineState{
				Registers: [16]byte{1: 0x02},
				Program:   0x202,
			},
		},
		{
			Name: "SHL High Bit",
			Input: testMachineState{
				Registers: [16]byte{1: 0x81},
				Memory:    map[uint16]byte{0x200: 0x81, 0x201: 0x0E},
			},
			Output: testMachineState{
				Registers: [16]byte{1: 0x02, 0xF: 1},
				Program:   0x202,
			},
		},
		{
			Name: "SHL VF Keeps Flag",
			Input: testMachineState{
				Registers: [16]byte{0xF: 0x40},
				Memory:    map[uint16]byte{0x200: 0x8F, 0x201: 0x0E},
			},
			Output: testMachineState{
				Registers: [16]byte{0xF: 0},
				Program:   0x202,
			},
		},
	})

	testFail(t, []failCase{
		{
			Name: "Unknown Arithmetic",
			Input: testMachineState{
				Memory: map[uint16]byte{0x200: 0x81, 0x201: 0x28},
			},
			Kind: machine.FAULT_UNKNOWN_OPCODE,
		},
	})
}

// LD   |1010|nnn           | I = nnn
// ADD  |1111|x   |0001|1110| I += Vx, VF = overflow past 0xFFF
// LD   |1111|x   |0010|1001| I = glyph address of Vx
// LD   |1111|x   |0011|0011| BCD of Vx into I..I+2
// LD   |1111|x   |0101|0101| Store V0..Vx at I, I += x + 1
// LD   |1111|x   |0110|0101| Load V0..Vx from I, I += x + 1
// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
func TestMemory(t *testing.T) {
	testSuccess(t, []testCase{
		{
			Name: "LD I",
			Input: testMachineState{
				Memory: map[uint16]byte{0x200: 0xA1, 0x201: 0x23},
			},
			Output: testMachineState{
				Index:   0x123,
				Program: 0x202,
			},
		},
		{
			Name: "ADD I",
			Input: testMachineState{
				Index:     0x100,
				Registers: [16]byte{2: 0x20},
				Memory:    map[uint16]byte{0x200: 0xF2, 0x201: 0x1E},
			},
			Output: testMachineState{
				Index:     0x120,
				Registers: [16]byte{2: 0x20},
				Program:   0x202,
			},
		},
		{
			Name: "ADD I Overflow",
			Input: testMachineState{
				Index:     0xFFF,
				Registers: [16]byte{2: 0x02},
				Memory:    map[uint16]byte{0x200: 0xF2, 0x201: 0x1E},
			},
			Output: testMachineState{
				Index:     0x001,
				Registers: [16]byte{2: 0x02, 0xF: 1},
				Program:   0x202,
			},
		},
		{
			Name: "LD F",
			Input: testMachineState{
				Registers: [16]byte{3: 0xA},
				Memory:    map[uint16]byte{0x200: 0xF3, 0x201: 0x29},
			},
			Output: testMachineState{
				Index:     0x032,
				Registers: [16]byte{3: 0xA},
				Program:   0x202,
			},
		},
		{
			Name: "LD B",
			Input: testMachineState{
				Index:     0x300,
				Registers: [16]byte{5: 254},
				Memory:    map[uint16]byte{0x200: 0xF5, 0x201: 0x33},
			},
			Output: testMachineState{
				Index:     0x300,
				Registers: [16]byte{5: 254},
				Program:   0x202,
				Memory:    map[uint16]byte{0x300: 2, 0x301: 5, 0x302: 4},
			},
		},
		{
			Name: "LD [I]",
			Input: testMachineState{
				Index:     0x300,
				Registers: [16]byte{0: 0x11, 1: 0x22, 2: 0x33, 3: 0x44},
				Memory:    map[uint16]byte{0x200: 0xF2, 0x201: 0x55},
			},
			Output: testMachineState{
				Index:     0x303,
				Registers: [16]byte{0: 0x11, 1: 0x22, 2: 0x33, 3: 0x44},
				Program:   0x202,
				Memory:    map[uint16]byte{0x300: 0x11, 0x301: 0x22, 0x302: 0x33},
			},
		},
		{
			Name: "LD Vx [I]",
			Input: testMachineState{
				Index:  0x300,
				Memory: map[uint16]byte{0x200: 0xF1, 0x201: 0x65, 0x300: 0xAB, 0x301: 0xCD, 0x302: 0xEF},
			},
			Output: testMachineState{
				Index:     0x302,
				Registers: [16]byte{0: 0xAB, 1: 0xCD},
				Program:   0x202,
			},
		},
	})

	testFail(t, []failCase{
		{
			Name: "LD B Past Memory",
			Input: testMachineState{
				Index:  0xFFE,
				Memory: map[uint16]byte{0x200: 0xF0, 0x201: 0x33},
			},
			Kind: machine.FAULT_ADDRESS,
		},
		{
			Name: "LD [I] Past Memory",
			Input: testMachineState{
				Index:  0xFFC,
				Memory: map[uint16]byte{0x200: 0xF7, 0x201: 0x55},
			},
			Kind: machine.FAULT_ADDRESS,
		},
		{
			Name: "Unknown Misc",
			Input: testMachineState{
				Memory: map[uint16]byte{0x200: 0xF0, 0x201: 0xFF},
			},
			Kind: machine.FAULT_UNKNOWN_OPCODE,
		},
	})
}

// DRW  |1101|x   |y   |n   | Draw n rows from I at (Vx, Vy)
// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
func TestDraw(t *testing.T) {
	testSuccess(t, []testCase{
		{
			Name: "DRW",
			Input: testMachineState{
				Index:     0x300,
				Registers: [16]byte{0: 0, 1: 0},
				Memory:    map[uint16]byte{0x200: 0xD0, 0x201: 0x12, 0x300: 0xF0, 0x301: 0x90},
			},
			Output: testMachineState{
				Index:     0x300,
				Registers: [16]byte{},
				Program:   0x202,
				Display:   rows(map[int]uint64{0: 0xF0 << 56, 1: 0x90 << 56}),
			},
			Effects: &machine.Effects{DisplayDirty: true},
		},
		{
			Name: "DRW Horizontal Wrap",
			Input: testMachineState{
				Index:     0x300,
				Registers: [16]byte{0: 60, 1: 0},
				Memory:    map[uint16]byte{0x200: 0xD0, 0x201: 0x11, 0x300: 0xFF},
			},
			Output: testMachineState{
				Index:     0x300,
				Registers: [16]byte{0: 60},
				Program:   0x202,
				Display:   rows(map[int]uint64{0: 0xF00000000000000F}),
			},
		},
		{
			Name: "DRW Vertical Wrap",
			Input: testMachineState{
				Index:     0x300,
				Registers: [16]byte{0: 0, 1: 31},
				Memory:    map[uint16]byte{0x200: 0xD0, 0x201: 0x12, 0x300: 0x80, 0x301: 0x80},
			},
			Output: testMachineState{
				Index:     0x300,
				Registers: [16]byte{1: 31},
				Program:   0x202,
				Display:   rows(map[int]uint64{31: 1 << 63, 0: 1 << 63}),
			},
		},
		{
			Name: "DRW Coordinates Modulo",
			Input: testMachineState{
				Index:     0x300,
				Registers: [16]byte{0: 64 + 1, 1: 32 + 2},
				Memory:    map[uint16]byte{0x200: 0xD0, 0x201: 0x11, 0x300: 0x80},
			},
			Output: testMachineState{
				Index:     0x300,
				Registers: [16]byte{0: 65, 1: 34},
				Program:   0x202,
				Display:   rows(map[int]uint64{2: 1 << 62}),
			},
		},
		{
			Name: "DRW Collision",
			Input: testMachineState{
				Index:     0x300,
				Registers: [16]byte{0: 0, 1: 0},
				Display:   rows(map[int]uint64{0: 0x80 << 56}),
				Memory:    map[uint16]byte{0x200: 0xD0, 0x201: 0x11, 0x300: 0xC0},
			},
			Output: testMachineState{
				Index:     0x300,
				Registers: [16]byte{0xF: 1},
				Program:   0x202,
				Display:   rows(map[int]uint64{0: 0x40 << 56}),
			},
		},
		{
			Name: "DRW Twice Erases",
			Steps: 2,
			Input: testMachineState{
				Index: 0x300,
				Memory: map[uint16]byte{
					0x200: 0xD0, 0x201: 0x11,
					0x202: 0xD0, 0x203: 0x11,
					0x300: 0xAA,
				},
			},
			Output: testMachineState{
				Index:     0x300,
				Registers: [16]byte{0xF: 1},
				Program:   0x204,
				Display:   rows(nil),
			},
		},
	})

	testFail(t, []failCase{
		{
			Name: "DRW Past Memory",
			Input: testMachineState{
				Index:  0xFFE,
				Memory: map[uint16]byte{0x200: 0xD0, 0x201: 0x15},
			},
			Kind: machine.FAULT_ADDRESS,
		},
	})
}

// SKP  |1110|x   |1001|1110| Skip if key Vx held
// SKNP |1110|x   |1010|0001| Skip if key Vx not held
// LD   |1111|x   |0000|1010| Vx = next key press
// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
func TestKeys(t *testing.T) {
	testSuccess(t, []testCase{
		{
			Name: "SKP Held",
			Keys: machine.Keys(0).Press(0xA),
			Input: testMachineState{
				Registers: [16]byte{0: 0xA},
				Memory:    map[uint16]byte{0x200: 0xE0, 0x201: 0x9E},
			},
			Output: testMachineState{
				Registers: [16]byte{0: 0xA},
				Program:   0x204,
			},
		},
		{
			Name: "SKP Out Of Range Key",
			Keys: 0xFFFF,
			Input: testMachineState{
				Registers: [16]byte{0: 0x1F},
				Memory:    map[uint16]byte{0x200: 0xE0, 0x201: 0x9E},
			},
			Output: testMachineState{
				Registers: [16]byte{0: 0x1F},
				Program:   0x202,
			},
		},
		{
			Name: "SKNP Not Held",
			Keys: machine.Keys(0).Press(0x1),
			Input: testMachineState{
				Registers: [16]byte{0: 0x2},
				Memory:    map[uint16]byte{0x200: 0xE0, 0x201: 0xA1},
			},
			Output: testMachineState{
				Registers: [16]byte{0: 0x2},
				Program:   0x204,
			},
		},
		{
			Name: "LD K Pressed",
			Keys: machine.Keys(0).Press(0x7).Press(0x3),
			Input: testMachineState{
				Memory: map[uint16]byte{0x200: 0xF4, 0x201: 0x0A},
			},
			Output: testMachineState{
				Registers: [16]byte{4: 0x3},
				Program:   0x202,
			},
		},
		{
			Name:  "LD K Waits",
			Steps: 5,
			Input: testMachineState{
				Memory: map[uint16]byte{0x200: 0xF4, 0x201: 0x0A},
			},
			Output: testMachineState{
				Program: 0x200,
				Waiting: machine.Wait{Active: true, Register: 4},
			},
		},
		{
			Name: "LD K Resumes",
			Keys: machine.Keys(0).Press(0xC),
			Input: testMachineState{
				Waiting: machine.Wait{Active: true, Register: 4},
				Memory:  map[uint16]byte{0x200: 0xF4, 0x201: 0x0A},
			},
			Output: testMachineState{
				Registers: [16]byte{4: 0xC},
				Program:   0x202,
			},
		},
	})
}

// LD   |1111|x   |0000|0111| Vx = DT
// LD   |1111|x   |0001|0101| DT = Vx
// LD   |1111|x   |0001|1000| ST = Vx
// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
func TestTimers(t *testing.T) {
	testSuccess(t, []testCase{
		{
			Name: "LD Vx DT",
			Input: testMachineState{
				DelayTimer: 0x21,
				Memory:     map[uint16]byte{0x200: 0xF6, 0x201: 0x07},
			},
			Output: testMachineState{
				DelayTimer: 0x21,
				Registers:  [16]byte{6: 0x21},
				Program:    0x202,
			},
		},
		{
			Name: "LD DT Vx",
			Input: testMachineState{
				Registers: [16]byte{6: 0x3C},
				Memory:    map[uint16]byte{0x200: 0xF6, 0x201: 0x15},
			},
			Output: testMachineState{
				DelayTimer: 0x3C,
				Registers:  [16]byte{6: 0x3C},
				Program:    0x202,
			},
			Effects: &machine.Effects{},
		},
		{
			Name: "LD ST Vx",
			Input: testMachineState{
				Registers: [16]byte{6: 0x3C},
				Memory:    map[uint16]byte{0x200: 0xF6, 0x201: 0x18},
			},
			Output: testMachineState{
				SoundTimer: 0x3C,
				Registers:  [16]byte{6: 0x3C},
				Program:    0x202,
			},
			Effects: &machine.Effects{SoundActive: true},
		},
	})

	var s machine.State
	s.DelayTimer = 1
	s.TickDelay()
	s.TickDelay()
	s.TickSound()
	assert.Zero(t, s.DelayTimer)
	assert.Zero(t, s.SoundTimer)
}

// RND  |1100|x   |nn       | Vx = random & nn
// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
func TestRandom(t *testing.T) {
	rom := []byte{0xC0, 0x0F, 0xC1, 0xFF, 0xC2, 0x00}

	run := func(seed uint32) machine.State {
		s, err := machine.Load(rom, seed)
		require.NoError(t, err)

		for i := 0; i < 3; i++ {
			s, _, err = machine.Step(s, 0)
			require.NoError(t, err)
		}

		return s
	}

	a := run(42)
	b := run(42)

	assert.Equal(t, a, b)
	assert.LessOrEqual(t, a.Registers[0], uint8(0x0F))
	assert.Zero(t, a.Registers[2])
}

func TestStepLeavesInput(t *testing.T) {
	s, err := machine.Load([]byte{0x60, 0x05, 0x23, 0x00}, 1)
	require.NoError(t, err)

	before := s
	after, _, err := machine.Step(s, 0)
	require.NoError(t, err)

	assert.Equal(t, before, s)
	assert.Equal(t, uint8(5), after.Registers[0])

	next, _, err := machine.Step(after, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, after.Depth)
	assert.Equal(t, 1, next.Depth)
}

func TestNestedCalls(t *testing.T) {
	// Each CALL targets the next instruction
	rom := make([]byte, 0, 2*(machine.STACK_SIZE+1))
	for i := 0; i <= machine.STACK_SIZE; i++ {
		target := 0x202 + 2*i
		rom = append(rom, byte(0x20|target>>8), byte(target))
	}

	s, err := machine.Load(rom, 1)
	require.NoError(t, err)

	for i := 0; i < machine.STACK_SIZE; i++ {
		s, _, err = machine.Step(s, 0)
		require.NoError(t, err, "call %d", i+1)
	}

	assert.Equal(t, machine.STACK_SIZE, s.Depth)
	assert.Equal(t, uint16(0x200+2*machine.STACK_SIZE), s.Program)

	for i := 0; i < machine.STACK_SIZE; i++ {
		assert.Equal(t, uint16(0x202+2*i), s.Stack[i], "frame %d", i)
	}

	after, _, err := machine.Step(s, 0)

	var fault *machine.Fault
	require.True(t, errors.As(err, &fault), "want:*machine.Fault\nhave:%T", err)
	assert.Equal(t, machine.FAULT_STACK_OVERFLOW, fault.Kind)
	assert.Equal(t, s, after)
}

func TestDecode(t *testing.T) {
	type decodeCase struct {
		Opcode uint16
		Op     machine.Op
		Text   string
	}

	for _, test := range []decodeCase{
		{0x00E0, machine.OP_CLS, "CLS"},
		{0x00EE, machine.OP_RET, "RET"},
		{0x0123, machine.OP_SYS, "SYS $123"},
		{0x1ABC, machine.OP_JP, "JP $ABC"},
		{0x2300, machine.OP_CALL, "CALL $300"},
		{0x3A12, machine.OP_SE_BYTE, "SE VA, $12"},
		{0x4A12, machine.OP_SNE_BYTE, "SNE VA, $12"},
		{0x5120, machine.OP_SE_REG, "SE V1, V2"},
		{0x6005, machine.OP_LD_BYTE, "LD V0, $05"},
		{0x7F01, machine.OP_ADD_BYTE, "ADD VF, $01"},
		{0x8120, machine.OP_LD_REG, "LD V1, V2"},
		{0x8124, machine.OP_ADD_REG, "ADD V1, V2"},
		{0x8127, machine.OP_SUBN, "SUBN V1, V2"},
		{0x810E, machine.OP_SHL, "SHL V1"},
		{0x9120, machine.OP_SNE_REG, "SNE V1, V2"},
		{0xA123, machine.OP_LD_I, "LD I, $123"},
		{0xB123, machine.OP_JP_V0, "JP V0, $123"},
		{0xC1FF, machine.OP_RND, "RND V1, $FF"},
		{0xD125, machine.OP_DRW, "DRW V1, V2, 5"},
		{0xE19E, machine.OP_SKP, "SKP V1"},
		{0xE1A1, machine.OP_SKNP, "SKNP V1"},
		{0xF107, machine.OP_LD_VX_DT, "LD V1, DT"},
		{0xF10A, machine.OP_LD_VX_K, "LD V1, K"},
		{0xF115, machine.OP_LD_DT_VX, "LD DT, V1"},
		{0xF118, machine.OP_LD_ST_VX, "LD ST, V1"},
		{0xF11E, machine.OP_ADD_I, "ADD I, V1"},
		{0xF129, machine.OP_LD_F, "LD F, V1"},
		{0xF133, machine.OP_LD_B, "LD B, V1"},
		{0xF155, machine.OP_LD_MEM, "LD [I], V1"},
		{0xF165, machine.OP_LD_REGS, "LD V1, [I]"},
	} {
		inst, err := machine.Decode(test.Opcode)
		require.NoError(t, err, "%#04x", test.Opcode)
		assert.Equal(t, test.Op, inst.Op, "%#04x", test.Opcode)
		assert.Equal(t, test.Text, inst.String(), "%#04x", test.Opcode)
	}

	for _, opcode := range []uint16{0x5121, 0x9128, 0x8128, 0xE100, 0xF100} {
		_, err := machine.Decode(opcode)
		assert.Error(t, err, "%#04x", opcode)
	}
}
