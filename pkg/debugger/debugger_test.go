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

package debugger_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"path/filepath"
	"strings"
	"testing"

	"github.com/juju/errors"
	"github.com/rocketlaunchr/dataframe-go/imports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go-source/local"

	"github.com/lassandro/gochip8/pkg/assembler"
	"github.com/lassandro/gochip8/pkg/debugger"
	"github.com/lassandro/gochip8/pkg/machine"
)

type triggerCase struct {
	Name        string
	Program     []byte
	Index       uint16
	Breakpoints []debugger.Breakpoint
	Watchpoints []debugger.Watchpoint
	Want        bool
}

func mustCondition(t *testing.T, expr string) *debugger.Condition {
	cond, err := debugger.NewCondition(expr)
	require.NoError(t, err)
	t.Cleanup(cond.Close)
	return cond
}

func TestTriggered(t *testing.T) {
	tests := []triggerCase{
		{
			Name:        "Breakpoint",
			Program:     []byte{0x60, 0x05},
			Breakpoints: []debugger.Breakpoint{{Addr: 0x202}},
			Want:        true,
		},
		{
			Name:        "Breakpoint Elsewhere",
			Program:     []byte{0x60, 0x05},
			Breakpoints: []debugger.Breakpoint{{Addr: 0x204}},
			Want:        false,
		},
		{
			Name:    "Conditional Breakpoint Holds",
			Program: []byte{0x60, 0x05},
			Breakpoints: []debugger.Breakpoint{
				{Addr: 0x202, Condition: mustCondition(t, "V[0] == 5 and PC == 0x202")},
			},
			Want: true,
		},
		{
			Name:    "Conditional Breakpoint Fails",
			Program: []byte{0x60, 0x04},
			Breakpoints: []debugger.Breakpoint{
				{Addr: 0x202, Condition: mustCondition(t, "V[0] == 5")},
			},
			Want: false,
		},
		{
			Name:    "Conditional Breakpoint Memory",
			Program: []byte{0x60, 0x04},
			Breakpoints: []debugger.Breakpoint{
				{Addr: 0x202, Condition: mustCondition(t, "mem(0x200) == 0x60")},
			},
			Want: true,
		},
		{
			Name:        "Write Watch BCD",
			Program:     []byte{0xF0, 0x33},
			Index:       0x300,
			Watchpoints: []debugger.Watchpoint{{0x302, debugger.WriteWatch}},
			Want:        true,
		},
		{
			Name:        "Read Watch Ignores Write",
			Program:     []byte{0xF0, 0x33},
			Index:       0x300,
			Watchpoints: []debugger.Watchpoint{{0x301, debugger.ReadWatch}},
			Want:        false,
		},
		{
			Name:        "Read Watch Sprite",
			Program:     []byte{0xD0, 0x05},
			Index:       0x000,
			Watchpoints: []debugger.Watchpoint{{0x004, debugger.ReadWatch}},
			Want:        true,
		},
		{
			Name:        "Watch Outside Range",
			Program:     []byte{0xF1, 0x55},
			Index:       0x300,
			Watchpoints: []debugger.Watchpoint{{0x302, debugger.ReadWriteWatch}},
			Want:        false,
		},
	}

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			before, err := machine.Load(test.Program, 1)
			require.NoError(t, err)
			before.Index = test.Index

			after, _, err := machine.Step(before, 0)
			require.NoError(t, err)

			dbg := debugger.New(before, 0, &bytes.Buffer{})
			dbg.Breakpoints = test.Breakpoints
			dbg.Watchpoints = test.Watchpoints

			assert.Equal(t, test.Want, dbg.Triggered(&before, &after))
		})
	}
}

func TestConditionInvalid(t *testing.T) {
	_, err := debugger.NewCondition("V[0] ==")
	require.Error(t, err)
	assert.True(t, errors.IsNotValid(err))
}

func TestPrintStack(t *testing.T) {
	var out bytes.Buffer
	dbg := debugger.New(machine.State{}, 0, &out)

	var s machine.State
	dbg.PrintStack(&s)
	assert.Equal(t, "Stack is empty\n", out.String())

	out.Reset()
	s.Stack[0] = 0x202
	s.Stack[1] = 0x30A
	s.Depth = 2
	dbg.PrintStack(&s)
	assert.Equal(t, "Frame #1: 0x30a\nFrame #0: 0x202\n", out.String())
}

func TestPrintRegisters(t *testing.T) {
	var out bytes.Buffer
	dbg := debugger.New(machine.State{}, 0, &out)

	var s machine.State
	s.Registers[0xA] = 0x42
	s.Program = 0x204
	s.Index = 0x3F0

	dbg.PrintRegisters(&s)

	assert.Contains(t, out.String(), "\033[1mVA:\033[0m 0x42")
	assert.Contains(t, out.String(), "\033[1mPC:\033[0m 0x204")
	assert.Contains(t, out.String(), "\033[1mI:\033[0m 0x3f0")
}

func TestPrintTimersAndInstruction(t *testing.T) {
	var out bytes.Buffer

	s, err := machine.Load([]byte{0xF3, 0x0A}, 1)
	require.NoError(t, err)
	s.DelayTimer = 12
	s.SoundTimer = 3

	dbg := debugger.New(s, 0, &out)
	dbg.PrintTimers(&s)
	dbg.PrintInstruction(&s)

	assert.Contains(t, out.String(), "DT:\033[0m 12\n")
	assert.Contains(t, out.String(), "ST:\033[0m 3\n")
	assert.Contains(t, out.String(), "F30A  LD V3, K")
}

func TestPrintSource(t *testing.T) {
	source := "start\n\tLD V0, 5\n\tJP start\n"

	symtable := assembler.NewSymTable("")
	_, errs := assembler.AssembleSource(strings.NewReader(source), symtable)
	require.Empty(t, errs)

	var out bytes.Buffer
	dbg := debugger.New(machine.State{}, 0, &out)
	dbg.SymTable = symtable
	dbg.Source = strings.NewReader(source)

	dbg.PrintSource(0x202, 1)
	assert.Equal(t, "\033[1m[0x202]\033[0m \tJP start\n", out.String())

	out.Reset()
	dbg.PrintSource(0x300, 1)
	assert.Equal(t, "No instruction found at 0x300\n", out.String())
}

func TestExportTrace(t *testing.T) {
	initial, err := machine.Load(counter, 1)
	require.NoError(t, err)

	h := debugger.NewHistory(initial, 0)
	record(t, h, initial, 3)

	var out bytes.Buffer
	require.NoError(t, h.ExportTrace(context.Background(), &out))

	rows, err := csv.NewReader(&out).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 5)

	assert.Equal(t, "step", rows[0][0])
	assert.Equal(t, "pc", rows[0][1])
	assert.Equal(t, "instruction", rows[0][3])
	assert.Equal(t, "ADD V0, $01", rows[1][3])
	assert.Equal(t, "JP $200", rows[2][3])
}

func TestExportTraceParquet(t *testing.T) {
	initial, err := machine.Load(counter, 1)
	require.NoError(t, err)

	h := debugger.NewHistory(initial, 0)
	record(t, h, initial, 3)

	path := filepath.Join(t.TempDir(), "trace.parquet")
	require.NoError(t, h.ExportTraceParquet(context.Background(), path))

	fr, err := local.NewLocalFileReader(path)
	require.NoError(t, err)
	defer fr.Close()

	df, err := imports.LoadFromParquet(context.Background(), fr)
	require.NoError(t, err)

	assert.Equal(t, 4, df.NRows())
	assert.Contains(t, df.Names(), "instruction")
}
