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
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/juju/errors"

	"github.com/lassandro/gochip8/pkg/beep"
)

// speaker plays the looping beep through oto. The player runs for the life
// of the process and the tone is gated on and off.
type speaker struct {
	*beep.Tone
	player *oto.Player
}

func openSpeaker(freq float64) (*speaker, error) {
	tone, err := beep.NewTone(freq)

	if err != nil {
		return nil, errors.Trace(err)
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   beep.SAMPLE_RATE,
		ChannelCount: beep.CHANNELS,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   40 * time.Millisecond,
	})

	if err != nil {
		return nil, errors.Annotate(err, "opening audio device")
	}

	<-ready

	player := ctx.NewPlayer(tone)
	player.Play()

	return &speaker{Tone: tone, player: player}, nil
}

func (s *speaker) Close() {
	s.Tone.Tone(false)

	if err := s.player.Close(); err != nil {
		logger.Warningf("closing audio: %v", err)
	}
}
