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

package main

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/lassandro/gochip8/pkg/debugger"
	"github.com/lassandro/gochip8/pkg/encoding"
	"github.com/lassandro/gochip8/pkg/machine"
	"github.com/lassandro/gochip8/pkg/scheduler"
)

type lineReader interface {
	ReadLine() (string, bool)
}

type scannerLines struct {
	scanner *bufio.Scanner
}

func newScannerLines(r io.Reader) scannerLines {
	return scannerLines{bufio.NewScanner(r)}
}

func (l scannerLines) ReadLine() (string, bool) {
	if !l.scanner.Scan() {
		return "", false
	}

	return l.scanner.Text(), true
}

var lastcmd []string

func digitsFormat(count int, suffix string) string {
	digits := math.Floor(math.Log10(float64(count + 1)))
	return fmt.Sprintf("#%%0%dd: %s\n", int64(digits)+1, suffix)
}

// resolveAddr accepts a hex address or a label from the symbol table.
func resolveAddr(dbg *debugger.Debugger, arg string) (uint16, error) {
	if dbg.SymTable != nil {
		if addr, exists := dbg.SymTable.Lookup(arg); exists {
			return addr, nil
		}
	}

	addr, err := encoding.DecodeHex(arg)

	if err != nil {
		return 0, err
	}

	return addr & machine.ADDRESS_MASK, nil
}

func debugBreak(dbg *debugger.Debugger, args []string) {
	const usage = "break [add|list|remove|clear]"

	if len(args) == 0 {
		args = append(args, "l")
	}

	cmd := args[0]
	args = args[1:]

	switch cmd {
	case "a", "add":
		const usage = "break add [0x###|label] [if condition]"

		if len(args) != 1 && (len(args) < 3 || args[1] != "if") {
			log.Println(usage)
			return
		}

		addr, err := resolveAddr(dbg, args[0])

		if err != nil {
			log.Println(err)
			return
		}

		breakpoint := debugger.Breakpoint{Addr: addr}

		if len(args) > 2 {
			breakpoint.Condition, err = debugger.NewCondition(strings.Join(args[2:], " "))

			if err != nil {
				log.Println(err)
				return
			}
		}

		for i, existing := range dbg.Breakpoints {
			if existing.Addr == addr {
				if existing.Condition != nil {
					existing.Condition.Close()
				}

				dbg.Breakpoints[i] = breakpoint
				fmt.Printf("Breakpoint replaced [%#03x]\n", addr)
				return
			}
		}

		dbg.Breakpoints = append(dbg.Breakpoints, breakpoint)

		if breakpoint.Condition != nil {
			fmt.Printf(
				"Breakpoint added [%#03x] if %s\n", addr, breakpoint.Condition.Source,
			)
		} else {
			fmt.Printf("Breakpoint added [%#03x]\n", addr)
		}

	case "l", "ls", "list":
		const usage = "break list"

		if len(args) != 0 {
			log.Println(usage)
			return
		}

		fmtstring := digitsFormat(len(dbg.Breakpoints), "%#03x%s")

		for i, breakpoint := range dbg.Breakpoints {
			var condition string

			if breakpoint.Condition != nil {
				condition = " if " + breakpoint.Condition.Source
			}

			fmt.Printf(fmtstring, i, breakpoint.Addr, condition)
		}

	case "r", "rm", "remove":
		const usage = "break remove [#]"

		if len(args) != 1 {
			log.Println(usage)
			return
		}

		i, err := strconv.ParseInt(args[0], 10, 64)

		if err != nil {
			log.Println(err)
			return
		}

		if i < 0 || i >= int64(len(dbg.Breakpoints)) {
			log.Println("Invalid breakpoint number")
			return
		}

		if dbg.Breakpoints[i].Condition != nil {
			dbg.Breakpoints[i].Condition.Close()
		}

		dbg.Breakpoints[i] = dbg.Breakpoints[len(dbg.Breakpoints)-1]
		dbg.Breakpoints = dbg.Breakpoints[:len(dbg.Breakpoints)-1]
		fmt.Printf("Breakpoint removed [%d]\n", i)

	case "clear":
		for _, breakpoint := range dbg.Breakpoints {
			if breakpoint.Condition != nil {
				breakpoint.Condition.Close()
			}
		}

		dbg.Breakpoints = make([]debugger.Breakpoint, 0)
		fmt.Println("Breakpoints reset")

	default:
		log.Printf("break: '%s' is not a valid command\n", cmd)
		log.Println(usage)
	}
}

func debugWatch(dbg *debugger.Debugger, args []string) {
	const usage = "watch [add|list|rm|clear]"

	if len(args) == 0 {
		log.Println(usage)
		return
	}

	cmd := args[0]
	args = args[1:]

	typenames := map[debugger.WatchpointType]string{
		debugger.ReadWatch:      "read",
		debugger.WriteWatch:     "write",
		debugger.ReadWriteWatch: "rwrite",
	}

	switch cmd {
	case "a", "add":
		const usage = "watch add [0x###|label] [read|write|readwrite]"

		if len(args) != 2 {
			log.Println(usage)
			return
		}

		addr, err := resolveAddr(dbg, args[0])

		if err != nil {
			log.Println(err)
			return
		}

		var wtype debugger.WatchpointType

		switch args[1] {
		case "r", "read":
			wtype = debugger.ReadWatch
		case "w", "write":
			wtype = debugger.WriteWatch
		case "rw", "rwrite", "readwrite":
			wtype = debugger.ReadWriteWatch
		default:
			log.Println(usage)
			return
		}

		for _, watchpoint := range dbg.Watchpoints {
			if watchpoint.Addr == addr && watchpoint.Type == wtype {
				return
			}
		}

		dbg.Watchpoints = append(
			dbg.Watchpoints,
			debugger.Watchpoint{Addr: addr, Type: wtype},
		)

		fmt.Printf("Watchpoint added [%#03x] (%s)\n", addr, typenames[wtype])

	case "l", "ls", "list":
		const usage = "watch list"

		if len(args) != 0 {
			log.Println(usage)
			return
		}

		fmtstring := digitsFormat(len(dbg.Watchpoints), "%#03x %s")

		for i, watchpoint := range dbg.Watchpoints {
			fmt.Printf(fmtstring, i, watchpoint.Addr, typenames[watchpoint.Type])
		}

	case "r", "rm", "remove":
		const usage = "watch rm [#]"

		if len(args) != 1 {
			log.Println(usage)
			return
		}

		i, err := strconv.ParseInt(args[0], 10, 64)

		if err != nil {
			log.Println(err)
			return
		}

		if i < 0 || i >= int64(len(dbg.Watchpoints)) {
			log.Println("Invalid watchpoint number")
			return
		}

		dbg.Watchpoints[i] = dbg.Watchpoints[len(dbg.Watchpoints)-1]
		dbg.Watchpoints = dbg.Watchpoints[:len(dbg.Watchpoints)-1]
		fmt.Printf("Watchpoint removed [%d]\n", i)

	case "clear":
		dbg.Watchpoints = make([]debugger.Watchpoint, 0)
		fmt.Println("Watchpoints reset")

	default:
		log.Printf("watch: '%s' is not a valid command\n", cmd)
	}
}

func debugReg(sched *scheduler.Scheduler, args []string) {
	const usage = "register [V#|I|PC|DT|ST] [0x##]"

	if len(args) == 0 {
		sched.Apply(scheduler.Command{Type: scheduler.COMMAND_PRINT_REGISTERS})
		return
	}

	if len(args) != 2 {
		log.Println(usage)
		return
	}

	value, err := encoding.DecodeHex(args[1])

	if err != nil {
		log.Println(err)
		return
	}

	name := strings.ToUpper(args[0])

	var edit func(s *machine.State)

	switch name {
	case "I":
		edit = func(s *machine.State) { s.Index = value & machine.ADDRESS_MASK }
	case "PC":
		edit = func(s *machine.State) { s.Program = value & machine.ADDRESS_MASK }
	case "DT":
		edit = func(s *machine.State) { s.DelayTimer = uint8(value) }
	case "ST":
		edit = func(s *machine.State) { s.SoundTimer = uint8(value) }
	default:
		if len(name) != 2 || name[0] != 'V' {
			log.Println("Invalid register")
			return
		}

		r, err := strconv.ParseUint(name[1:], 16, 4)

		if err != nil {
			log.Println("Invalid register")
			return
		}

		edit = func(s *machine.State) { s.Registers[r] = uint8(value) }
	}

	if name != "I" && name != "PC" && value > math.MaxUint8 {
		log.Printf("%s holds a single byte\n", name)
		return
	}

	sched.Modify(edit)
	fmt.Printf("\033[1m%s:\033[0m %#x\n", name, value)
}

func debugSource(sched *scheduler.Scheduler, dbg *debugger.Debugger, args []string) {
	const usage = "source [0x###|label] [#]"

	if len(args) > 2 {
		log.Println(usage)
		return
	}

	if dbg.SymTable == nil {
		fmt.Println("No symbol table loaded")
		return
	}

	var addr uint16 = sched.State().Program
	var size uint16 = 3
	var err error

	if len(args) > 0 {
		addr, err = resolveAddr(dbg, args[0])

		if err != nil {
			var value int64
			value, err = strconv.ParseInt(args[0], 10, 16)

			if err != nil {
				log.Println(err)
				return
			}

			addr = sched.State().Program
			size = uint16(value)
		}
	}

	if len(args) > 1 {
		var value int64
		value, err = strconv.ParseInt(args[1], 10, 16)

		if err != nil {
			log.Println(err)
			return
		}

		size = uint16(value)
	}

	dbg.PrintSource(addr, size)
}

func debugLabels(dbg *debugger.Debugger, args []string) {
	const usage = "labels"

	if len(args) > 0 {
		fmt.Println(usage)
		return
	}

	if dbg.SymTable == nil {
		fmt.Println("No symbol table loaded")
		return
	}

	keys := make([]uint16, 0, len(dbg.SymTable.Labels))
	for addr := range dbg.SymTable.Labels {
		keys = append(keys, addr)
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	for _, addr := range keys {
		fmt.Printf(
			"\033[1m[%#03x]\033[0m %s\n", addr, dbg.SymTable.Labels[addr],
		)
	}
}

func debugJump(sched *scheduler.Scheduler, dbg *debugger.Debugger, args []string) {
	const usage = "jump [0x###|label]"

	if len(args) != 1 {
		fmt.Println(usage)
		return
	}

	addr, err := resolveAddr(dbg, args[0])

	if err != nil {
		fmt.Printf("Unable to find '%s'\n", args[0])
		return
	}

	sched.Modify(func(s *machine.State) { s.Program = addr })

	if dbg.SymTable != nil {
		if label, exists := dbg.SymTable.Labels[addr]; exists {
			fmt.Printf(
				"\033[1mPC:\033[0m %#03x \033[1;30m(%s)\033[0m\n", addr, label,
			)
			return
		}
	}

	fmt.Printf("\033[1mPC:\033[0m %#03x\n", addr)
}

func debugMemory(sched *scheduler.Scheduler, dbg *debugger.Debugger, args []string) {
	const usage = "memory [0x###|label|#] [#]"

	if len(args) > 2 {
		log.Println(usage)
		return
	}

	var size uint16 = 1
	var addr uint16 = sched.State().Index
	var err error

	if len(args) > 0 {
		addr, err = resolveAddr(dbg, args[0])

		if err != nil {
			var value int64
			value, err = strconv.ParseInt(args[0], 10, 16)

			if err != nil {
				log.Println(err)
				return
			}

			addr = sched.State().Index
			size = uint16(value)
		}
	}

	if len(args) > 1 {
		var value int64
		value, err = strconv.ParseInt(args[1], 10, 16)

		if err != nil {
			log.Println(err)
			return
		}

		size = uint16(value)
	}

	sched.Apply(scheduler.Command{
		Type:  scheduler.COMMAND_PRINT_MEMORY,
		Addr:  addr,
		Count: size,
	})
}

func debugSet(sched *scheduler.Scheduler, dbg *debugger.Debugger, args []string) {
	const usage = "set [0x###|label] [0x##]"

	if len(args) != 2 {
		log.Println(usage)
		return
	}

	addr, err := resolveAddr(dbg, args[0])

	if err != nil {
		log.Println(err)
		return
	}

	value, err := encoding.DecodeHex(args[1])

	if err != nil {
		log.Println(err)
		return
	}

	if value > math.MaxUint8 {
		log.Println("Memory holds single bytes")
		return
	}

	sched.Modify(func(s *machine.State) { s.Memory[addr] = uint8(value) })
	sched.Apply(scheduler.Command{
		Type:  scheduler.COMMAND_PRINT_MEMORY,
		Addr:  addr,
		Count: 1,
	})
}

func debugHistory(sched *scheduler.Scheduler, args []string) {
	const usage = "history"

	if len(args) != 0 {
		log.Println(usage)
		return
	}

	history := sched.Debugger().History

	limit := "unbounded"
	if history.Limit() > 0 {
		limit = strconv.Itoa(history.Limit())
	}

	fmt.Printf(
		"\033[1mStep:\033[0m %d (%d of %d retained, limit %s)\n",
		history.Current().Step, history.Cursor()+1, history.Len(), limit,
	)
}

func debugExport(sched *scheduler.Scheduler, args []string) {
	const usage = "export [file.csv|file.parquet]"

	if len(args) != 1 {
		log.Println(usage)
		return
	}

	if strings.EqualFold(filepath.Ext(args[0]), ".parquet") {
		sched.Apply(scheduler.Command{
			Type: scheduler.COMMAND_EXPORT_TRACE,
			Path: args[0],
		})

		fmt.Printf("Trace written to %s\n", args[0])
		return
	}

	file, err := os.Create(args[0])

	if err != nil {
		log.Println(err)
		return
	}

	defer file.Close()

	sched.Apply(scheduler.Command{
		Type:   scheduler.COMMAND_EXPORT_TRACE,
		Writer: file,
	})

	fmt.Printf("Trace written to %s\n", args[0])
}

func debugHelp() {
	fmt.Println(strings.TrimSpace(`
break [add|list|remove|clear]   manage breakpoints, add takes "if <lua>"
watch [add|list|rm|clear]       manage watchpoints
register [V#|I|PC|DT|ST] [0x##] show or set registers
stack | timers | display        show machine state
memory [0x###|label|#] [#]      dump memory, defaulting to I
set [0x###|label] [0x##]        write a byte of memory
source [0x###|label] [#]        show assembly source
labels                          list symbol table labels
jump [0x###|label]              move the program counter
n, next | p, prev               step forward or back through history
history                         show the history cursor
export [file.csv|.parquet]      write the history as CSV or Parquet
c, continue | reset | q, quit`))
}

func debugREPL(sched *scheduler.Scheduler, input lineReader) {
	dbg := sched.Debugger()

	for {
		fmt.Print("\033[1;30m(dbg)\033[0m ")

		line, ok := input.ReadLine()

		if !ok {
			fmt.Println()
			sched.Apply(scheduler.Command{Type: scheduler.COMMAND_QUIT})
			return
		}

		args := strings.Fields(line)

		if len(args) == 0 {
			if len(lastcmd) == 0 {
				continue
			}
			args = lastcmd
		} else {
			lastcmd = make([]string, len(args))
			copy(lastcmd, args)
		}

		cmd := args[0]
		args = args[1:]

		switch cmd {
		case "b", "bp", "break", "breakpoint":
			debugBreak(dbg, args)

		case "w", "wp", "watch", "watchpoint":
			debugWatch(dbg, args)

		case "r", "reg", "register", "registers":
			debugReg(sched, args)

		case "stack":
			sched.Apply(scheduler.Command{Type: scheduler.COMMAND_PRINT_STACK})

		case "t", "timers":
			sched.Apply(scheduler.Command{Type: scheduler.COMMAND_PRINT_TIMERS})

		case "d", "display":
			state := sched.State()
			dbg.PrintDisplay(&state)

		case "s", "src", "source":
			debugSource(sched, dbg, args)

		case "l", "label", "labels":
			debugLabels(dbg, args)

		case "j", "jmp", "jump":
			debugJump(sched, dbg, args)

		case "m", "mem", "memory":
			debugMemory(sched, dbg, args)

		case "set":
			debugSet(sched, dbg, args)

		case "n", "next":
			sched.Apply(scheduler.Command{Type: scheduler.COMMAND_STEP_NEXT})

		case "p", "prev", "previous":
			sched.Apply(scheduler.Command{Type: scheduler.COMMAND_STEP_PREVIOUS})

		case "h", "hist", "history":
			debugHistory(sched, args)

		case "e", "export":
			debugExport(sched, args)

		case "c", "continue":
			sched.Apply(scheduler.Command{Type: scheduler.COMMAND_RESUME})
			return

		case "q", "quit", "exit":
			sched.Apply(scheduler.Command{Type: scheduler.COMMAND_QUIT})
			return

		case "clear":
			fmt.Print("\033[H\033[2J")

		case "reset":
			sched.Apply(scheduler.Command{Type: scheduler.COMMAND_RESTART})
			sched.Apply(scheduler.Command{Type: scheduler.COMMAND_PRINT_INSTRUCTION})

		case "help", "?":
			debugHelp()

		default:
			fmt.Printf("error: '%s' is not a valid command\n", cmd)
		}
	}
}

// handleBreak prints where execution stopped and hands control to the
// prompt until the user continues or quits.
func handleBreak(sched *scheduler.Scheduler, input lineReader) {
	dbg := sched.Debugger()

	if fault := sched.Fault(); fault != nil {
		fmt.Println(fault)
	}

	if dbg.SymTable != nil && dbg.Source != nil {
		fmt.Println()
		fmt.Println("Program stopped")
		dbg.PrintSource(sched.State().Program, 8)
	}

	debugREPL(sched, input)
}
