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
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/juju/loggo"

	"github.com/lassandro/gochip8/pkg/machine"
)

var logger = loggo.GetLogger("gochip8.debugger")

func New(initial machine.State, limit int, output io.Writer) *Debugger {
	if output == nil {
		output = os.Stdout
	}

	return &Debugger{
		History: NewHistory(initial, limit),
		Output:  output,
	}
}

// Triggered reports whether the step from before to after should stop
// execution: a breakpoint at the new program counter whose condition holds,
// or a watched address touched by the executed instruction.
func (dbg *Debugger) Triggered(before, after *machine.State) bool {
	for _, breakpoint := range dbg.Breakpoints {
		if after.Program != breakpoint.Addr {
			continue
		}

		if breakpoint.Condition == nil {
			return true
		}

		hit, err := breakpoint.Condition.Eval(after)

		if err != nil {
			logger.Warningf(
				"breakpoint [%#03x] condition %q: %v",
				breakpoint.Addr, breakpoint.Condition.Source, err,
			)
			return true
		}

		if hit {
			return true
		}
	}

	if len(dbg.Watchpoints) == 0 {
		return false
	}

	opcode, err := before.Fetch()

	if err != nil {
		return false
	}

	inst, err := machine.Decode(opcode)

	if err != nil {
		return false
	}

	addr, size, write := inst.Access(before)

	for _, watchpoint := range dbg.Watchpoints {
		if watchpoint.Addr < addr || watchpoint.Addr >= addr+size {
			continue
		}

		switch watchpoint.Type {
		case ReadWatch:
			if !write {
				return true
			}
		case WriteWatch:
			if write {
				return true
			}
		case ReadWriteWatch:
			return true
		}
	}

	return false
}

func (dbg *Debugger) PrintRegisters(s *machine.State) {
	for i, register := range s.Registers {
		fmt.Fprintf(dbg.Output, "\033[1mV%X:\033[0m %#x\t", i, register)
		if i%4 == 3 {
			fmt.Fprintln(dbg.Output)
		}
	}

	fmt.Fprintf(
		dbg.Output,
		"\033[1mPC:\033[0m %#03x\t\033[1mI:\033[0m %#03x\n",
		s.Program,
		s.Index,
	)
}

func (dbg *Debugger) PrintStack(s *machine.State) {
	if s.Depth == 0 {
		fmt.Fprintln(dbg.Output, "Stack is empty")
		return
	}

	for i := s.Depth - 1; i >= 0; i-- {
		fmt.Fprintf(dbg.Output, "Frame #%d: %#03x\n", i, s.Stack[i])
	}
}

func (dbg *Debugger) PrintTimers(s *machine.State) {
	fmt.Fprintf(dbg.Output, "\033[1mDT:\033[0m %d\n", s.DelayTimer)
	fmt.Fprintf(dbg.Output, "\033[1mST:\033[0m %d\n", s.SoundTimer)
}

// PrintInstruction disassembles the instruction at the program counter.
func (dbg *Debugger) PrintInstruction(s *machine.State) {
	opcode, err := s.Fetch()

	if err != nil {
		fmt.Fprintln(dbg.Output, err)
		return
	}

	fmt.Fprintf(dbg.Output, "\033[1m[%#03x]\033[0m %04X  ", s.Program, opcode)

	if inst, err := machine.Decode(opcode); err == nil {
		fmt.Fprintln(dbg.Output, inst)
	} else {
		fmt.Fprintln(dbg.Output, "\033[1;30m???\033[0m")
	}

	if s.Waiting.Active {
		fmt.Fprintf(
			dbg.Output, "\033[1;30m(waiting for key into V%X)\033[0m\n",
			s.Waiting.Register,
		)
	}
}

func (dbg *Debugger) PrintMem(s *machine.State, addr, count uint16) {
	for i := addr; i < addr+count && int(i) < machine.MEMORY_SIZE; i++ {
		if i == addr {
			fmt.Fprintf(dbg.Output, "\033[1m[%#03x]\033[0m ", i)
		} else if (i-addr)%8 == 0 {
			fmt.Fprintln(dbg.Output)
			fmt.Fprintf(dbg.Output, "\033[1m[%#03x]\033[0m ", i)
		}

		result := s.Memory[i]

		if result == 0 {
			fmt.Fprintf(dbg.Output, "\033[1;30m%#x\033[0m ", result)
		} else {
			fmt.Fprintf(dbg.Output, "%#x ", result)
		}
	}

	fmt.Fprintln(dbg.Output)
}

func (dbg *Debugger) PrintSource(addr uint16, count uint16) {
	if dbg.Source == nil {
		fmt.Fprintln(dbg.Output, "No source file loaded")
		return
	}

	if dbg.SymTable == nil {
		fmt.Fprintln(dbg.Output, "No symbol table loaded")
		return
	}

	offset, exists := dbg.SymTable.Symbols[addr]

	if !exists {
		fmt.Fprintf(dbg.Output, "No instruction found at %#03x\n", addr)
		return
	}

	if _, err := dbg.Source.Seek(offset, io.SeekStart); err != nil {
		fmt.Fprintln(dbg.Output, err)
		return
	}

	lines := make(map[int64]uint16, len(dbg.SymTable.Symbols))
	for lineaddr, linebyte := range dbg.SymTable.Symbols {
		lines[linebyte] = lineaddr
	}

	scanner := bufio.NewScanner(dbg.Source)
	scanner.Split(bufio.ScanLines)

	for i := uint16(0); i < count; i++ {
		if !scanner.Scan() {
			break
		}

		line := scanner.Text()

		if lineaddr, found := lines[offset]; found {
			fmt.Fprintf(dbg.Output, "\033[1m[%#03x]\033[0m ", lineaddr)
		} else {
			fmt.Fprint(dbg.Output, "\033[1;30m~~~~~~~\033[0m ")
		}

		fmt.Fprintln(dbg.Output, line)

		offset += int64(len(line) + 1)
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintln(dbg.Output, err)
	}
}

// PrintDisplay renders the framebuffer with half blocks, two rows per line.
func (dbg *Debugger) PrintDisplay(s *machine.State) {
	w := bufio.NewWriter(dbg.Output)
	RenderDisplay(w, &s.Display)
	w.Flush()
}

func RenderDisplay(w io.Writer, d *machine.Display) {
	for y := 0; y < machine.DISPLAY_HEIGHT; y += 2 {
		for x := 0; x < machine.DISPLAY_WIDTH; x++ {
			top := d.Pixel(x, y)
			bottom := d.Pixel(x, y+1)

			switch {
			case top && bottom:
				io.WriteString(w, "█")
			case top:
				io.WriteString(w, "▀")
			case bottom:
				io.WriteString(w, "▄")
			default:
				io.WriteString(w, " ")
			}
		}

		io.WriteString(w, "\r\n")
	}
}
