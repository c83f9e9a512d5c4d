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
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"github.com/lassandro/gochip8/pkg/config"
	"github.com/lassandro/gochip8/pkg/debugger"
	"github.com/lassandro/gochip8/pkg/machine"
)

// Terminals only report presses, so a key counts as held for this long
// after its last press or autorepeat.
const KEY_HOLD = 200 * time.Millisecond

var escapes = map[string]string{
	"\033[A": "Up", "\033[B": "Down", "\033[C": "Right", "\033[D": "Left",
	"\033OP": "F1", "\033OQ": "F2", "\033OR": "F3", "\033OS": "F4",
	"\033[15~": "F5", "\033[17~": "F6", "\033[18~": "F7", "\033[19~": "F8",
	"\033[20~": "F9", "\033[21~": "F10", "\033[23~": "F11", "\033[24~": "F12",
}

// decodeKey reads one key from the front of input and returns its host key
// name, empty for bytes that map to nothing. partial is set when input ends
// inside an escape sequence.
func decodeKey(input []byte) (name string, size int, partial bool) {
	c := input[0]

	switch {
	case c == '\033':
		for seq, name := range escapes {
			if bytes.HasPrefix(input, []byte(seq)) {
				return name, len(seq), false
			}

			if bytes.HasPrefix([]byte(seq), input) {
				partial = true
			}
		}

		if partial {
			return "", 0, true
		}

		return "", 1, false

	case c >= '0' && c <= '9':
		return fmt.Sprintf("Key%c", c), 1, false

	case c >= 'a' && c <= 'z':
		return strings.ToUpper(string(c)), 1, false

	case c >= 'A' && c <= 'Z':
		return string(c), 1, false

	case c == ' ':
		return "Space", 1, false

	case c == '\r' || c == '\n':
		return "Return", 1, false

	case c == '\t':
		return "Tab", 1, false
	}

	return "", 1, false
}

// terminal is the headless front end: the display drawn with half blocks and
// keys read from a raw mode stdin.
type terminal struct {
	controls *controls
	fd       int
	raw      bool
	restore  unix.Termios
	now      func() time.Time

	input   <-chan byte
	pending []byte
	held    [machine.KEY_COUNT]time.Time

	out    *bufio.Writer
	frame  machine.Display
	paused bool
	fault  error
}

// pump copies r into a channel so keys can be polled without blocking. The
// channel is closed when r ends.
func pump(r io.Reader) <-chan byte {
	input := make(chan byte, 256)

	go func() {
		defer close(input)

		buf := make([]byte, 64)

		for {
			n, err := r.Read(buf)

			for _, b := range buf[:n] {
				input <- b
			}

			if err != nil {
				return
			}
		}
	}()

	return input
}

func newTerminal(controls *controls, fd int, input <-chan byte, out io.Writer) *terminal {
	t := &terminal{
		controls: controls,
		fd:       fd,
		now:      time.Now,
		input:    input,
		out:      bufio.NewWriter(out),
	}

	if w, h, err := term.GetSize(fd); err == nil {
		if w < machine.DISPLAY_WIDTH || h < machine.DISPLAY_HEIGHT/2+2 {
			logger.Warningf(
				"terminal is %dx%d, the display needs %dx%d",
				w, h, machine.DISPLAY_WIDTH, machine.DISPLAY_HEIGHT/2+2,
			)
		}
	}

	return t
}

func (t *terminal) enterRawTerm() {
	if !term.IsTerminal(t.fd) {
		return
	}

	termios, err := unix.IoctlGetTermios(t.fd, ioctlGetTermios)

	if err != nil {
		logger.Warningf("raw mode unavailable: %v", err)
		return
	}

	t.restore = *termios
	termstate := *termios

	termstate.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.INLCR
	termstate.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.IEXTEN
	termstate.Cflag &^= unix.CSIZE | unix.PARENB
	termstate.Cflag |= unix.CS8

	termstate.Cc[unix.VMIN] = 1
	termstate.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(t.fd, ioctlSetTermios, &termstate); err != nil {
		logger.Warningf("raw mode unavailable: %v", err)
		return
	}

	t.raw = true

	// Hide the cursor
	fmt.Fprint(t.out, "\033[?25l\033[H\033[2J")
	t.redraw()
}

func (t *terminal) exitRawTerm() {
	if !t.raw {
		return
	}

	fmt.Fprint(t.out, "\033[?25h")
	t.out.Flush()

	if err := unix.IoctlSetTermios(t.fd, ioctlSetTermios, &t.restore); err != nil {
		logger.Errorf("restoring terminal: %v", err)
	}

	t.raw = false
}

func (t *terminal) hit(name string) {
	if t.controls.press(name) {
		return
	}

	if key, exists := t.controls.key(name); exists {
		t.held[key] = t.now().Add(KEY_HOLD)
	}
}

func (t *terminal) Keys() machine.Keys {
	for drained := false; !drained; {
		select {
		case b, ok := <-t.input:
			if !ok {
				drained = true
				break
			}

			t.pending = append(t.pending, b)
		default:
			drained = true
		}
	}

	for len(t.pending) > 0 {
		name, size, partial := decodeKey(t.pending)

		if partial {
			break
		}

		t.pending = t.pending[size:]

		if name != "" {
			t.hit(name)
		}
	}

	now := t.now()

	var keys machine.Keys

	for key, until := range t.held {
		if now.Before(until) {
			keys = keys.Press(uint8(key))
		}
	}

	return keys
}

func (t *terminal) Remap(keymap config.Keymap) {
	t.controls.Remap(keymap)
}

func (t *terminal) Refresh(display machine.Display) {
	t.frame = display
	t.redraw()
}

func (t *terminal) Indicate(paused bool, fault error) {
	t.paused = paused
	t.fault = fault
	t.redraw()
}

func (t *terminal) redraw() {
	fmt.Fprint(t.out, "\033[H")
	debugger.RenderDisplay(t.out, &t.frame)

	switch {
	case t.fault != nil:
		fmt.Fprintf(t.out, "\033[1;31mHALTED\033[0m %s\033[K\n",
			strings.ReplaceAll(t.fault.Error(), "\n\t", " "))
	case t.paused:
		fmt.Fprint(t.out, "\033[1;33mPAUSED\033[0m\033[K\n")
	default:
		fmt.Fprint(t.out, "\033[K\n")
	}

	t.out.Flush()
}

// ReadLine blocks for a line of input for the debugger prompt.
func (t *terminal) ReadLine() (string, bool) {
	var line []byte

	for b := range t.input {
		if b == '\n' {
			return strings.TrimRight(string(line), "\r"), true
		}

		line = append(line, b)
	}

	return string(line), len(line) > 0
}

// flushInput discards keys typed while the machine was running.
func (t *terminal) flushInput() {
	t.pending = t.pending[:0]

	for {
		select {
		case _, ok := <-t.input:
			if !ok {
				return
			}
		default:
			return
		}
	}
}
