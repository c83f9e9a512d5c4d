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
	"strings"

	"github.com/juju/errors"
	lua "github.com/yuin/gopher-lua"

	"github.com/lassandro/gochip8/pkg/machine"
)

// Condition is a Lua expression guarding a breakpoint, e.g.
//
//	V[0] == 5 and DT == 0
//
// The globals V (indexed 0-15), VF, I, PC, DT, ST, SP and K (keypad bitmask)
// hold the state after the step; mem(addr) reads a byte of memory.
type Condition struct {
	Source string

	lstate  *lua.LState
	fn      *lua.LFunction
	current *machine.State
}

func NewCondition(expr string) (*Condition, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})

	fn, err := L.Load(strings.NewReader("return "+expr), "condition")

	if err != nil {
		L.Close()
		return nil, errors.NewNotValid(err, "invalid breakpoint condition")
	}

	cond := &Condition{Source: expr, lstate: L, fn: fn}

	L.SetGlobal("mem", L.NewFunction(func(L *lua.LState) int {
		addr := L.CheckInt(1) & machine.ADDRESS_MASK
		L.Push(lua.LNumber(cond.current.Memory[addr]))
		return 1
	}))

	return cond, nil
}

func (cond *Condition) Eval(s *machine.State) (bool, error) {
	L := cond.lstate
	cond.current = s

	registers := L.NewTable()
	for i, value := range s.Registers {
		registers.RawSetInt(i, lua.LNumber(value))
	}

	L.SetGlobal("V", registers)
	L.SetGlobal("VF", lua.LNumber(s.Registers[machine.FLAG]))
	L.SetGlobal("I", lua.LNumber(s.Index))
	L.SetGlobal("PC", lua.LNumber(s.Program))
	L.SetGlobal("DT", lua.LNumber(s.DelayTimer))
	L.SetGlobal("ST", lua.LNumber(s.SoundTimer))
	L.SetGlobal("SP", lua.LNumber(s.Depth))
	L.SetGlobal("K", lua.LNumber(s.Keys))

	L.Push(cond.fn)

	if err := L.PCall(0, 1, nil); err != nil {
		return false, errors.Annotatef(err, "evaluating %q", cond.Source)
	}

	result := L.Get(-1)
	L.Pop(1)

	return lua.LVAsBool(result), nil
}

func (cond *Condition) Close() {
	cond.lstate.Close()
}
