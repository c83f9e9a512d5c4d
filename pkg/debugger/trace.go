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
	"context"
	"fmt"
	"io"

	"github.com/juju/errors"
	"github.com/rocketlaunchr/dataframe-go"
	"github.com/rocketlaunchr/dataframe-go/exports"
	"github.com/xitongsys/parquet-go-source/local"

	"github.com/lassandro/gochip8/pkg/machine"
)

// Trace lays the retained history out as one row per snapshot: the step
// number, the instruction about to run and the registers at that point.
func (h *History) Trace() *dataframe.DataFrame {
	n := h.Len()

	step := make([]interface{}, n)
	pc := make([]interface{}, n)
	opcode := make([]interface{}, n)
	mnemonic := make([]interface{}, n)
	index := make([]interface{}, n)
	delay := make([]interface{}, n)
	sound := make([]interface{}, n)
	depth := make([]interface{}, n)
	keys := make([]interface{}, n)

	var registers [16][]interface{}
	for r := range registers {
		registers[r] = make([]interface{}, n)
	}

	for i := 0; i < n; i++ {
		snap := h.At(i)
		s := &snap.State

		step[i] = int64(snap.Step)
		pc[i] = int64(s.Program)
		index[i] = int64(s.Index)
		delay[i] = int64(s.DelayTimer)
		sound[i] = int64(s.SoundTimer)
		depth[i] = int64(s.Depth)
		keys[i] = int64(snap.Keys)

		if op, err := s.Fetch(); err == nil {
			opcode[i] = fmt.Sprintf("%04X", op)

			if inst, err := machine.Decode(op); err == nil {
				mnemonic[i] = inst.String()
			} else {
				mnemonic[i] = "???"
			}
		} else {
			opcode[i] = "----"
			mnemonic[i] = "???"
		}

		for r, value := range s.Registers {
			registers[r][i] = int64(value)
		}
	}

	series := []dataframe.Series{
		dataframe.NewSeriesInt64("step", nil, step...),
		dataframe.NewSeriesInt64("pc", nil, pc...),
		dataframe.NewSeriesString("opcode", nil, opcode...),
		dataframe.NewSeriesString("instruction", nil, mnemonic...),
		dataframe.NewSeriesInt64("i", nil, index...),
	}

	for r := range registers {
		series = append(
			series,
			dataframe.NewSeriesInt64(fmt.Sprintf("v%x", r), nil, registers[r]...),
		)
	}

	series = append(
		series,
		dataframe.NewSeriesInt64("dt", nil, delay...),
		dataframe.NewSeriesInt64("st", nil, sound...),
		dataframe.NewSeriesInt64("sp", nil, depth...),
		dataframe.NewSeriesInt64("keys", nil, keys...),
	)

	return dataframe.NewDataFrame(series...)
}

// ExportTrace writes the history as CSV.
func (h *History) ExportTrace(ctx context.Context, w io.Writer) error {
	if err := exports.ExportToCSV(ctx, w, h.Trace()); err != nil {
		return errors.Annotate(err, "exporting trace")
	}

	return nil
}

// ExportTraceParquet writes the history to a new Parquet file at path.
func (h *History) ExportTraceParquet(ctx context.Context, path string) error {
	fw, err := local.NewLocalFileWriter(path)

	if err != nil {
		return errors.Annotatef(err, "creating %s", path)
	}

	if err := exports.ExportToParquet(ctx, fw, h.Trace()); err != nil {
		fw.Close()
		return errors.Annotate(err, "exporting trace")
	}

	return fw.Close()
}
