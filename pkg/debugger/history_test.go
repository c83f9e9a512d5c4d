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
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lassandro/gochip8/pkg/debugger"
	"github.com/lassandro/gochip8/pkg/machine"
)

// Counts V0 up forever
var counter = []byte{
	0x70, 0x01, // ADD V0, 1
	0x12, 0x00, // JP 0x200
}

func record(t *testing.T, h *debugger.History, s machine.State, n int) []machine.State {
	states := make([]machine.State, 0, n)

	for i := 0; i < n; i++ {
		var err error
		s, _, err = machine.Step(s, 0)
		require.NoError(t, err)

		h.Record(s, 0)
		states = append(states, s)
	}

	return states
}

func TestHistoryReversible(t *testing.T) {
	initial, err := machine.Load(counter, 1)
	require.NoError(t, err)

	h := debugger.NewHistory(initial, 0)
	states := record(t, h, initial, 5)

	for i := 0; i < 3; i++ {
		require.True(t, h.Previous())
	}

	assert.Equal(t, uint64(2), h.Current().Step)
	assert.False(t, h.AtEnd())

	for i := 0; i < 3; i++ {
		require.True(t, h.Next())
	}

	assert.True(t, h.AtEnd())

	if diff := cmp.Diff(states[4], h.Current().State); diff != "" {
		t.Errorf("State mismatch (-want +have):\n%s", diff)
	}
}

func TestHistoryBounds(t *testing.T) {
	initial, err := machine.Load(counter, 1)
	require.NoError(t, err)

	h := debugger.NewHistory(initial, 0)

	assert.False(t, h.Previous())
	assert.False(t, h.Next())
	assert.Equal(t, 1, h.Len())
	assert.Equal(t, initial, h.Current().State)

	record(t, h, initial, 2)
	assert.False(t, h.Next())

	assert.True(t, h.Previous())
	assert.True(t, h.Previous())
	assert.False(t, h.Previous())
	assert.Equal(t, initial, h.Current().State)
	assert.Equal(t, 3, h.Len(), "stepping back must not drop entries")
}

func TestHistoryFork(t *testing.T) {
	initial, err := machine.Load(counter, 1)
	require.NoError(t, err)

	h := debugger.NewHistory(initial, 0)
	states := record(t, h, initial, 5)

	h.Previous()
	h.Previous()

	forked := states[2]
	forked.Registers[1] = 0x99
	h.Record(forked, machine.Keys(0).Press(3))

	assert.Equal(t, 5, h.Len())
	assert.True(t, h.AtEnd())
	assert.Equal(t, uint64(4), h.Current().Step)
	assert.Equal(t, byte(0x99), h.Current().State.Registers[1])
	assert.True(t, h.Current().Keys.Pressed(3))
	assert.False(t, h.Next())
}

func TestHistoryLimit(t *testing.T) {
	initial, err := machine.Load(counter, 1)
	require.NoError(t, err)

	h := debugger.NewHistory(initial, 3)
	states := record(t, h, initial, 5)

	assert.Equal(t, 3, h.Len())
	assert.Equal(t, uint64(3), h.At(0).Step)
	assert.Equal(t, uint64(5), h.Current().Step)
	assert.Equal(t, states[4], h.Current().State)

	assert.True(t, h.Previous())
	assert.True(t, h.Previous())
	assert.False(t, h.Previous())
	assert.Equal(t, states[2], h.Current().State)

	// Forking inside a full ring keeps the order intact
	record(t, h, h.Current().State, 4)

	assert.Equal(t, 3, h.Len())
	for i := 1; i < h.Len(); i++ {
		assert.Equal(t, h.At(i-1).Step+1, h.At(i).Step)
	}
}

func TestHistoryReset(t *testing.T) {
	initial, err := machine.Load(counter, 1)
	require.NoError(t, err)

	h := debugger.NewHistory(initial, 0)
	record(t, h, initial, 4)

	other, err := machine.Load([]byte{0x00, 0xE0}, 1)
	require.NoError(t, err)

	h.Reset(other)

	assert.Equal(t, 1, h.Len())
	assert.True(t, h.AtEnd())
	assert.Equal(t, uint64(0), h.Current().Step)
	assert.Equal(t, other, h.Current().State)
}

func TestHistoryAmend(t *testing.T) {
	initial, err := machine.Load(counter, 1)
	require.NoError(t, err)

	h := debugger.NewHistory(initial, 0)
	states := record(t, h, initial, 4)

	amended := states[3]
	amended.DelayTimer = 7
	h.Amend(amended)

	assert.Equal(t, 5, h.Len())
	assert.Equal(t, uint64(4), h.Current().Step)
	assert.Equal(t, amended, h.Current().State)

	require.True(t, h.Previous())
	require.True(t, h.Previous())

	amended = states[1]
	amended.SoundTimer = 3
	h.Amend(amended)

	assert.Equal(t, 3, h.Len(), "snapshots past the cursor are dropped")
	assert.True(t, h.AtEnd())
	assert.Equal(t, amended, h.Current().State)
}
