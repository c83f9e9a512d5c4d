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
	"github.com/lassandro/gochip8/pkg/machine"
)

// NewHistory starts a timeline at initial. A limit of zero keeps every
// snapshot; otherwise the oldest entries are dropped once limit is reached.
func NewHistory(initial machine.State, limit int) *History {
	h := &History{limit: limit}
	h.Reset(initial)
	return h
}

func (h *History) Reset(initial machine.State) {
	h.entries = h.entries[:0]
	h.entries = append(h.entries, Snapshot{State: initial})
	h.start = 0
	h.count = 1
	h.cursor = 0
}

func (h *History) index(i int) int {
	return (h.start + i) % len(h.entries)
}

// Record appends a snapshot after the cursor. Entries past the cursor are
// discarded first, so recording from the middle of the timeline forks it.
func (h *History) Record(state machine.State, keys machine.Keys) {
	snap := Snapshot{
		Step:  h.Current().Step + 1,
		State: state,
		Keys:  keys,
	}

	h.count = h.cursor + 1

	if h.limit > 0 && h.count >= h.limit {
		h.start = h.index(1)
		h.count--
	}

	if h.count < len(h.entries) {
		h.entries[h.index(h.count)] = snap
	} else {
		h.entries = append(h.entries, snap)
	}

	h.count++
	h.cursor = h.count - 1
}

// Amend replaces the state at the cursor and discards the snapshots after
// it, keeping the step number and keys.
func (h *History) Amend(state machine.State) {
	h.entries[h.index(h.cursor)].State = state
	h.count = h.cursor + 1
}

func (h *History) Previous() bool {
	if h.cursor == 0 {
		return false
	}

	h.cursor--
	return true
}

func (h *History) Next() bool {
	if h.cursor >= h.count-1 {
		return false
	}

	h.cursor++
	return true
}

func (h *History) Current() Snapshot {
	return h.entries[h.index(h.cursor)]
}

// At returns the i-th retained snapshot, oldest first.
func (h *History) At(i int) Snapshot {
	return h.entries[h.index(i)]
}

func (h *History) AtEnd() bool {
	return h.cursor == h.count-1
}

func (h *History) Len() int {
	return h.count
}

func (h *History) Cursor() int {
	return h.cursor
}

func (h *History) Limit() int {
	return h.limit
}
