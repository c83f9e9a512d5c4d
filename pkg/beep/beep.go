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

// Package beep synthesizes the buzzer tone.
package beep

import (
	"encoding/binary"
	"io"
	"math"
	"sync"
	"sync/atomic"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/juju/errors"
	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("gochip8.beep")

const (
	SAMPLE_RATE  = 48000
	BIT_DEPTH    = 16
	CHANNELS     = 1
	AMPLITUDE    = 0.25
	FORMAT_PCM   = 1
	SAMPLE_BYTES = BIT_DEPTH / 8
)

// Sine renders a whole number of periods of a sine at freq, so the buffer
// loops without a click.
func Sine(freq float64) (*audio.IntBuffer, error) {
	if freq <= 0 || freq >= SAMPLE_RATE/2 || math.IsNaN(freq) {
		return nil, errors.NotValidf("beep frequency %g", freq)
	}

	cycles := math.Max(1, math.Round(freq))
	samples := int(math.Round(cycles * SAMPLE_RATE / freq))

	data := make([]int, samples)
	peak := AMPLITUDE * math.MaxInt16

	for i := range data {
		phase := 2 * math.Pi * cycles * float64(i) / float64(samples)
		data[i] = int(math.Round(peak * math.Sin(phase)))
	}

	logger.Debugf("%g Hz tone, %d samples", freq, samples)

	return &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: CHANNELS,
			SampleRate:  SAMPLE_RATE,
		},
		Data:           data,
		SourceBitDepth: BIT_DEPTH,
	}, nil
}

func EncodeWAV(w io.WriteSeeker, buf *audio.IntBuffer) error {
	encoder := wav.NewEncoder(w, SAMPLE_RATE, BIT_DEPTH, CHANNELS, FORMAT_PCM)

	if err := encoder.Write(buf); err != nil {
		return errors.Annotate(err, "encoding wav")
	}

	return errors.Annotate(encoder.Close(), "encoding wav")
}

// PCM lays the samples out as signed 16-bit little endian.
func PCM(buf *audio.IntBuffer) []byte {
	pcm := make([]byte, len(buf.Data)*SAMPLE_BYTES)

	for i, sample := range buf.Data {
		binary.LittleEndian.PutUint16(pcm[i*SAMPLE_BYTES:], uint16(int16(sample)))
	}

	return pcm
}

// Tone is an endless PCM stream that plays the looped buffer while on and
// silence while off. Read and Tone may be called from different goroutines.
type Tone struct {
	on  atomic.Bool
	mu  sync.Mutex
	pcm []byte
	pos int
}

func NewTone(freq float64) (*Tone, error) {
	buf, err := Sine(freq)

	if err != nil {
		return nil, errors.Trace(err)
	}

	return &Tone{pcm: PCM(buf)}, nil
}

func (t *Tone) Tone(on bool) {
	t.on.Store(on)
}

func (t *Tone) On() bool {
	return t.on.Load()
}

func (t *Tone) Read(p []byte) (int, error) {
	// Whole samples only
	n := len(p) - len(p)%SAMPLE_BYTES

	if !t.on.Load() {
		for i := range p[:n] {
			p[i] = 0
		}

		return n, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for written := 0; written < n; {
		copied := copy(p[written:n], t.pcm[t.pos:])
		written += copied
		t.pos = (t.pos + copied) % len(t.pcm)
	}

	return n, nil
}
