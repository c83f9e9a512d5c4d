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
	"image/color"
	"sync"
	"sync/atomic"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text"
	"golang.org/x/image/font/basicfont"

	"github.com/lassandro/gochip8/pkg/config"
	"github.com/lassandro/gochip8/pkg/machine"
)

var ebitenKeys = map[string]ebiten.Key{
	"Key0": ebiten.KeyDigit0, "Key1": ebiten.KeyDigit1,
	"Key2": ebiten.KeyDigit2, "Key3": ebiten.KeyDigit3,
	"Key4": ebiten.KeyDigit4, "Key5": ebiten.KeyDigit5,
	"Key6": ebiten.KeyDigit6, "Key7": ebiten.KeyDigit7,
	"Key8": ebiten.KeyDigit8, "Key9": ebiten.KeyDigit9,

	"A": ebiten.KeyA, "B": ebiten.KeyB, "C": ebiten.KeyC, "D": ebiten.KeyD,
	"E": ebiten.KeyE, "F": ebiten.KeyF, "G": ebiten.KeyG, "H": ebiten.KeyH,
	"I": ebiten.KeyI, "J": ebiten.KeyJ, "K": ebiten.KeyK, "L": ebiten.KeyL,
	"M": ebiten.KeyM, "N": ebiten.KeyN, "O": ebiten.KeyO, "P": ebiten.KeyP,
	"Q": ebiten.KeyQ, "R": ebiten.KeyR, "S": ebiten.KeyS, "T": ebiten.KeyT,
	"U": ebiten.KeyU, "V": ebiten.KeyV, "W": ebiten.KeyW, "X": ebiten.KeyX,
	"Y": ebiten.KeyY, "Z": ebiten.KeyZ,

	"F1": ebiten.KeyF1, "F2": ebiten.KeyF2, "F3": ebiten.KeyF3,
	"F4": ebiten.KeyF4, "F5": ebiten.KeyF5, "F6": ebiten.KeyF6,
	"F7": ebiten.KeyF7, "F8": ebiten.KeyF8, "F9": ebiten.KeyF9,
	"F10": ebiten.KeyF10, "F11": ebiten.KeyF11, "F12": ebiten.KeyF12,

	"Up":     ebiten.KeyArrowUp,
	"Down":   ebiten.KeyArrowDown,
	"Left":   ebiten.KeyArrowLeft,
	"Right":  ebiten.KeyArrowRight,
	"Space":  ebiten.KeySpace,
	"Return": ebiten.KeyEnter,
	"Tab":    ebiten.KeyTab,
}

var (
	pixelOn  = color.RGBA{0xE8, 0xE8, 0xE8, 0xFF}
	pixelOff = color.RGBA{0x10, 0x10, 0x10, 0xFF}
	notice   = color.RGBA{0xFF, 0xB0, 0x00, 0xFF}
	alert    = color.RGBA{0xFF, 0x40, 0x40, 0xFF}
)

// window is the ebiten front end. Update and Draw run on the ebiten
// goroutine while Keys, Refresh and Indicate are called by the scheduler.
type window struct {
	controls *controls
	scale    int
	done     <-chan struct{}

	held atomic.Uint32

	mu     sync.Mutex
	frame  machine.Display
	paused bool
	fault  error

	image  *ebiten.Image
	pixels []byte
}

func newWindow(controls *controls, scale int, done <-chan struct{}) *window {
	return &window{
		controls: controls,
		scale:    scale,
		done:     done,
		pixels:   make([]byte, machine.DISPLAY_WIDTH*machine.DISPLAY_HEIGHT*4),
	}
}

func (w *window) Keys() machine.Keys {
	return machine.Keys(w.held.Load())
}

func (w *window) Remap(keymap config.Keymap) {
	w.controls.Remap(keymap)
}

func (w *window) Refresh(display machine.Display) {
	w.mu.Lock()
	w.frame = display
	w.mu.Unlock()
}

func (w *window) Indicate(paused bool, fault error) {
	w.mu.Lock()
	w.paused = paused
	w.fault = fault
	w.mu.Unlock()
}

func (w *window) Update() error {
	select {
	case <-w.done:
		return ebiten.Termination
	default:
	}

	shift := ebiten.IsKeyPressed(ebiten.KeyShiftLeft) ||
		ebiten.IsKeyPressed(ebiten.KeyShiftRight)

	for name, key := range ebitenKeys {
		if inpututil.IsKeyJustPressed(key) ||
			(shift && ebiten.IsKeyPressed(key) && w.controls.repeats(name)) {
			w.controls.press(name)
		}
	}

	keys := w.controls.keys(func(name string) bool {
		key, exists := ebitenKeys[name]
		return exists && ebiten.IsKeyPressed(key)
	})

	w.held.Store(uint32(keys))

	return nil
}

func (w *window) Draw(screen *ebiten.Image) {
	if w.image == nil {
		w.image = ebiten.NewImage(machine.DISPLAY_WIDTH, machine.DISPLAY_HEIGHT)
	}

	w.mu.Lock()
	frame := w.frame
	paused := w.paused
	fault := w.fault
	w.mu.Unlock()

	for y := 0; y < machine.DISPLAY_HEIGHT; y++ {
		for x := 0; x < machine.DISPLAY_WIDTH; x++ {
			c := pixelOff
			if frame.Pixel(x, y) {
				c = pixelOn
			}

			i := (y*machine.DISPLAY_WIDTH + x) * 4
			w.pixels[i] = c.R
			w.pixels[i+1] = c.G
			w.pixels[i+2] = c.B
			w.pixels[i+3] = c.A
		}
	}

	w.image.WritePixels(w.pixels)

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(float64(w.scale), float64(w.scale))
	screen.DrawImage(w.image, op)

	switch {
	case fault != nil:
		text.Draw(screen, "HALTED: "+fault.Error(), basicfont.Face7x13, 4, 14, alert)
	case paused:
		text.Draw(screen, "PAUSED", basicfont.Face7x13, 4, 14, notice)
	}
}

func (w *window) Layout(_, _ int) (int, int) {
	return machine.DISPLAY_WIDTH * w.scale, machine.DISPLAY_HEIGHT * w.scale
}

func runWindow(w *window, title string) error {
	ebiten.SetWindowSize(
		machine.DISPLAY_WIDTH*w.scale, machine.DISPLAY_HEIGHT*w.scale,
	)
	ebiten.SetWindowTitle(title)
	ebiten.SetRunnableOnUnfocused(true)

	return ebiten.RunGame(w)
}
