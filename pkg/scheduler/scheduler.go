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

// Package scheduler paces the interpreter against wall-clock time. It owns
// the live machine state, the debugger history and the 60 Hz timers, and
// applies control commands between instruction steps.
package scheduler

import (
	"context"
	"time"

	"github.com/juju/errors"
	"github.com/juju/loggo"

	"github.com/lassandro/gochip8/pkg/debugger"
	"github.com/lassandro/gochip8/pkg/machine"
)

var logger = loggo.GetLogger("gochip8.scheduler")

var ErrQuit = errors.New("quit")

const TIMER_PERIOD = time.Second / machine.TIMER_HZ

// Longest interval a single tick will account for; a stall beyond it (a
// blocked debugger prompt, a suspended process) is dropped, not replayed.
const MAX_ELAPSED = time.Second / 4

// Commands submitted beyond this many between two ticks are dropped.
const COMMAND_QUEUE = 64

type realClock struct{}

func (realClock) Now() time.Time        { return time.Now() }
func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

func New(rom []byte, opts Options) (*Scheduler, error) {
	if opts.Rate < 0 {
		return nil, errors.NotValidf("instruction rate %d", opts.Rate)
	}

	if opts.History < 0 {
		return nil, errors.NotValidf("history limit %d", opts.History)
	}

	if opts.Clock == nil {
		opts.Clock = realClock{}
	}

	state, err := machine.Load(rom, opts.Seed)

	if err != nil {
		return nil, errors.Trace(err)
	}

	s := &Scheduler{
		opts:     opts,
		rom:      append([]byte(nil), rom...),
		commands: make(chan Command, COMMAND_QUEUE),
		state:    state,
		dirty:    true,
	}

	s.debugger = debugger.New(state, opts.History, opts.Output)
	s.setRate(opts.Rate)

	return s, nil
}

func (s *Scheduler) setRate(rate int) {
	s.opts.Rate = rate
	s.period = 0

	if rate > 0 {
		s.period = time.Second / time.Duration(rate)
	}

	if s.opts.Debug && rate == 0 && s.opts.History == 0 {
		logger.Warningf(
			"history is unbounded while running unthrottled, memory use will grow without limit",
		)
	}
}

// Submit queues a command for the next tick. Safe from any goroutine, and
// never blocks: once COMMAND_QUEUE commands are pending further ones are
// dropped until the next tick drains them.
func (s *Scheduler) Submit(cmd Command) {
	select {
	case s.commands <- cmd:
	default:
		logger.Warningf("command queue full, dropped command %d", cmd.Type)
	}
}

func (s *Scheduler) State() machine.State {
	return s.state
}

func (s *Scheduler) Debugger() *debugger.Debugger {
	return s.debugger
}

func (s *Scheduler) Paused() bool {
	return s.paused
}

// Fault is the error that halted execution, nil while the machine is healthy.
func (s *Scheduler) Fault() error {
	return s.fault
}

// Steps counts the instructions executed since the last restart.
func (s *Scheduler) Steps() uint64 {
	return s.steps
}

func (s *Scheduler) Rate() int {
	return s.opts.Rate
}

// inspected is the state the debugger printers read: the snapshot under the
// history cursor when recording, the live state otherwise.
func (s *Scheduler) inspected() *machine.State {
	if s.opts.Debug {
		snapshot := s.debugger.History.Current()
		return &snapshot.State
	}

	return &s.state
}

func (s *Scheduler) halt(err error) {
	s.fault = err
	logger.Errorf("machine halted: %v", err)

	if s.opts.OnFault != nil {
		s.opts.OnFault(err)
	}
}

func (s *Scheduler) reset() {
	state, err := machine.Load(s.rom, s.opts.Seed)

	s.cpu, s.delay, s.sound = 0, 0, 0
	s.steps = 0
	s.dirty = true

	if err != nil {
		s.halt(err)
		return
	}

	s.fault = nil
	s.state = state
	s.debugger.History.Reset(state)
}

// execute runs one instruction against the live state and returns the state
// it started from.
func (s *Scheduler) execute() (machine.State, bool) {
	before := s.state
	after, effects, err := machine.Step(s.state, s.keys)

	if err != nil {
		s.halt(err)
		return before, false
	}

	s.state = after
	s.steps++

	if effects.DisplayDirty {
		s.dirty = true
	}

	if s.opts.Debug {
		s.debugger.History.Record(after, s.keys)
	}

	return before, true
}

func (s *Scheduler) pause() {
	if !s.paused {
		s.paused = true
		s.broke = true
		s.debugger.Break = true

		logger.Infof("execution paused at %#03x", s.state.Program)
	}
}

func (s *Scheduler) resume() {
	if s.paused {
		s.paused = false
		s.debugger.Break = false
		s.cpu = 0

		logger.Infof("execution resumed at %#03x", s.state.Program)
	}
}

func (s *Scheduler) stepNext() {
	if !s.paused {
		logger.Debugf("step_next ignored while running")
		return
	}

	history := s.debugger.History

	if s.opts.Debug && !history.AtEnd() {
		history.Next()
		s.state = history.Current().State
		s.dirty = true
	} else if s.fault == nil {
		s.execute()
	}

	s.debugger.PrintInstruction(s.inspected())
}

func (s *Scheduler) stepPrevious() {
	if !s.paused {
		logger.Debugf("step_previous ignored while running")
		return
	}

	if !s.opts.Debug {
		logger.Warningf("step_previous needs the debugger history enabled")
		return
	}

	history := s.debugger.History

	if history.Previous() {
		s.state = history.Current().State
		s.dirty = true
	}

	s.debugger.PrintInstruction(s.inspected())
}

// Apply executes a command immediately. It must only be called from the
// goroutine driving Tick, such as from inside OnBreak.
func (s *Scheduler) Apply(cmd Command) {
	switch cmd.Type {
	case COMMAND_PAUSE:
		s.pause()

	case COMMAND_RESUME:
		s.resume()

	case COMMAND_TOGGLE_BREAK:
		if s.paused {
			s.resume()
		} else {
			s.pause()
			s.debugger.PrintInstruction(s.inspected())
		}

	case COMMAND_RESTART:
		logger.Infof("restarting")
		s.reset()

	case COMMAND_RELOAD:
		if cmd.ROM != nil {
			s.rom = append([]byte(nil), cmd.ROM...)
		}

		if cmd.Rate >= 0 {
			s.setRate(cmd.Rate)
		}

		if cmd.Keymap != nil {
			if remapper, ok := s.opts.Keypad.(Remapper); ok {
				remapper.Remap(cmd.Keymap)
			}
		}

		logger.Infof("reloaded at %d Hz with a %d byte rom", s.opts.Rate, len(s.rom))
		s.reset()

	case COMMAND_STEP_NEXT:
		s.stepNext()

	case COMMAND_STEP_PREVIOUS:
		s.stepPrevious()

	case COMMAND_PRINT_REGISTERS:
		s.debugger.PrintRegisters(s.inspected())

	case COMMAND_PRINT_STACK:
		s.debugger.PrintStack(s.inspected())

	case COMMAND_PRINT_TIMERS:
		s.debugger.PrintTimers(s.inspected())

	case COMMAND_PRINT_MEMORY:
		s.debugger.PrintMem(s.inspected(), cmd.Addr, cmd.Count)

	case COMMAND_PRINT_INSTRUCTION:
		s.debugger.PrintInstruction(s.inspected())

	case COMMAND_EXPORT_TRACE:
		if !s.opts.Debug {
			logger.Warningf("export_trace needs the debugger history enabled")
			break
		}

		var err error

		if cmd.Path != "" {
			err = s.debugger.History.ExportTraceParquet(context.Background(), cmd.Path)
		} else {
			err = s.debugger.History.ExportTrace(context.Background(), cmd.Writer)
		}

		if err != nil {
			logger.Errorf("%v", err)
		}

	case COMMAND_QUIT:
		s.quit = true

	default:
		logger.Warningf("unknown command %d", cmd.Type)
	}
}

// Modify edits the live state in place for the debugger's register and
// memory commands. With history enabled the edit is recorded after the
// cursor, so stepping back undoes it.
func (s *Scheduler) Modify(edit func(state *machine.State)) {
	edit(&s.state)
	s.dirty = true

	if s.opts.Debug {
		s.debugger.History.Record(s.state, s.keys)
	}
}

func (s *Scheduler) drain() {
	for {
		select {
		case cmd := <-s.commands:
			s.Apply(cmd)
		default:
			return
		}
	}
}

func (s *Scheduler) running() bool {
	return !s.paused && s.fault == nil && !s.quit
}

// flush forwards a dirty frame to the display and a changed tone to the
// speaker. The speaker stays silent while execution is stopped.
func (s *Scheduler) flush() {
	if s.dirty {
		s.dirty = false

		if s.opts.Display != nil {
			s.opts.Display.Refresh(s.state.Display)
		}
	}

	if indicator, ok := s.opts.Display.(Indicator); ok {
		current := status{paused: s.paused, fault: s.fault}

		if s.status == nil || *s.status != current {
			s.status = &current
			indicator.Indicate(current.paused, current.fault)
		}
	}

	tone := s.running() && s.state.SoundTimer > 0

	if tone != s.sounding {
		s.sounding = tone

		if s.opts.Speaker != nil {
			s.opts.Speaker.Tone(tone)
		}
	}
}

// Tick advances the machine by elapsed wall-clock time: pending commands
// are applied, the keypad is polled once, the instructions owed at the
// configured rate run (exactly one when unthrottled), and each timer drops
// once per 1/60 s accumulated. Nothing advances while paused or halted.
func (s *Scheduler) Tick(elapsed time.Duration) error {
	if elapsed > MAX_ELAPSED {
		elapsed = MAX_ELAPSED
	} else if elapsed < 0 {
		elapsed = 0
	}

	s.drain()

	if s.quit {
		return ErrQuit
	}

	if s.opts.Keypad != nil {
		s.keys = s.opts.Keypad.Keys()
	}

	if s.running() {
		if s.period == 0 {
			s.advance()
		} else {
			s.cpu += elapsed

			for s.cpu >= s.period && s.running() {
				s.cpu -= s.period
				s.advance()
			}
		}
	}

	if s.running() {
		ticked := false

		s.delay += elapsed
		for ; s.delay >= TIMER_PERIOD; s.delay -= TIMER_PERIOD {
			s.state.TickDelay()
			ticked = true
		}

		s.sound += elapsed
		for ; s.sound >= TIMER_PERIOD; s.sound -= TIMER_PERIOD {
			s.state.TickSound()
			ticked = true
		}

		// The newest snapshot tracks the live timers
		if ticked && s.opts.Debug {
			s.debugger.History.Amend(s.state)
		}
	}

	s.flush()

	if s.broke {
		s.broke = false

		if s.opts.OnBreak != nil {
			s.opts.OnBreak(s)
			s.flush()
		}
	}

	if s.quit {
		return ErrQuit
	}

	return nil
}

// advance executes one instruction and stops at breakpoints and
// watchpoints.
func (s *Scheduler) advance() {
	before, ok := s.execute()

	if !ok {
		return
	}

	if s.debugger.Triggered(&before, &s.state) {
		logger.Infof("break at %#03x", s.state.Program)
		s.pause()
		s.debugger.PrintInstruction(s.inspected())
	}
}

// wait is how long Run may sleep before the next instruction or timer tick
// falls due, never longer than one timer period.
func (s *Scheduler) wait() time.Duration {
	if !s.running() {
		return TIMER_PERIOD
	}

	d := TIMER_PERIOD - s.delay

	if owed := s.period - s.cpu; owed < d {
		d = owed
	}

	if d < 0 {
		d = 0
	}

	return d
}

// Run ticks until ctx is cancelled or a quit command arrives. Unthrottled
// execution never sleeps while running.
func (s *Scheduler) Run(ctx context.Context) error {
	clock := s.opts.Clock
	last := clock.Now()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		now := clock.Now()
		elapsed := now.Sub(last)
		last = now

		if err := s.Tick(elapsed); err == ErrQuit {
			return nil
		} else if err != nil {
			return err
		}

		if s.period > 0 || !s.running() {
			clock.Sleep(s.wait())
		}
	}
}
