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
	"context"
	"encoding/gob"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/profile"

	"github.com/lassandro/gochip8/pkg/assembler"
	"github.com/lassandro/gochip8/pkg/beep"
	"github.com/lassandro/gochip8/pkg/config"
	"github.com/lassandro/gochip8/pkg/debugger"
	"github.com/lassandro/gochip8/pkg/scheduler"
	"github.com/lassandro/gochip8/pkg/statsview"
)

var helpvar bool
var configvar string
var hzvar int
var historyvar int
var seedvar uint
var debugvar bool
var headlessvar bool
var replvar bool
var mutevar bool
var dumpbeepvar string
var profilevar string
var statsvar bool

const usage = "gochip8 [flags] [rom]"

func init() {
	exe, _ := os.Executable()
	log.SetFlags(0)
	log.SetPrefix(fmt.Sprintf("%s: ", filepath.Base(exe)))
	log.SetOutput(os.Stderr)
}

func init() {
	flag.BoolVar(&helpvar, "help", false, "Displays command usage")
	flag.StringVar(&configvar, "config", "config.yml", "Configuration file")
	flag.IntVar(&hzvar, "hz", -1, "Instructions per second, 0 runs unthrottled")
	flag.IntVar(&historyvar, "history", -1, "Debugger history limit, 0 keeps everything")
	flag.UintVar(&seedvar, "seed", 0, "Random generator seed, 0 picks one")
	flag.BoolVar(&debugvar, "debug", false, "Enables the debugger")
	flag.BoolVar(&headlessvar, "headless", false, "Runs in the terminal without a window")
	flag.BoolVar(&replvar, "repl", false, "Opens the debugger prompt on stdin when execution breaks")
	flag.BoolVar(&mutevar, "mute", false, "Disables audio")
	flag.StringVar(&dumpbeepvar, "dump-beep", "", "Writes the beep tone to a WAV file and exits")
	flag.StringVar(&profilevar, "cpuprofile", "", "Writes a CPU profile to this directory")
	flag.BoolVar(&statsvar, "statsview", false, "Serves runtime statistics over HTTP")
}

// overrideConfig applies the command line over a loaded configuration.
func overrideConfig(cfg *config.Config) {
	if rom := flag.Arg(0); rom != "" {
		cfg.ROM = rom
	}

	if hzvar >= 0 {
		cfg.Hz = hzvar
	}

	if historyvar >= 0 {
		cfg.Debugger.HistoryLimit = historyvar
	}

	if debugvar {
		cfg.Debugger.Enable = true
	}
}

// loadSymbols reads the symbol table the assembler writes next to a ROM,
// and the source file it names.
func loadSymbols(dbg *debugger.Debugger, rom string) {
	filename := filepath.Join(
		filepath.Dir(rom),
		strings.TrimSuffix(filepath.Base(rom), filepath.Ext(rom))+".c8db",
	)

	file, err := os.Open(filename)

	if os.IsNotExist(err) {
		return
	} else if err != nil {
		log.Println("Error loading symbol file")
		log.Println(err)
		return
	}

	var symtable assembler.SymTable

	if err := gob.NewDecoder(file).Decode(&symtable); err == nil {
		dbg.SymTable = &symtable
	} else {
		log.Println("Error loading symbol file")
		log.Println(err)
	}

	file.Close()

	if dbg.SymTable != nil && dbg.SymTable.Source != "" {
		if file, err := os.Open(dbg.SymTable.Source); err == nil {
			dbg.Source = file
		} else {
			log.Println("Error loading source file")
			log.Println(err)
		}
	}
}

func dumpBeep(cfg *config.Config, path string) error {
	buf, err := beep.Sine(cfg.BeepFrequency)

	if err != nil {
		return err
	}

	file, err := os.Create(path)

	if err != nil {
		return err
	}

	if err := beep.EncodeWAV(file, buf); err != nil {
		file.Close()
		return err
	}

	return file.Close()
}

func gochip8() int {
	flag.Parse()

	if helpvar {
		fmt.Println(usage)
		flag.PrintDefaults()
		return 0
	}

	if flag.NArg() > 1 {
		log.Println(usage)
		return 1
	}

	cfg, err := config.Load(configvar)

	if err != nil {
		log.Println(err)
		return 1
	}

	overrideConfig(&cfg)

	if err := cfg.ConfigureLogging(); err != nil {
		log.Println(err)
		return 1
	}

	if profilevar != "" {
		defer profile.Start(
			profile.CPUProfile, profile.ProfilePath(profilevar), profile.Quiet,
		).Stop()
	}

	if statsvar {
		statsview.Launch(os.Stderr)
	}

	if dumpbeepvar != "" {
		if err := dumpBeep(&cfg, dumpbeepvar); err != nil {
			log.Println(err)
			return 1
		}

		return 0
	}

	rom, err := cfg.ReadROM()

	if err != nil {
		log.Println(err)
		return 1
	}

	seed := uint32(seedvar)
	if seed == 0 {
		seed = uint32(time.Now().UnixNano())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	controls := newControls(cfg, configvar)

	opts := scheduler.Options{
		Rate:    cfg.Hz,
		History: cfg.Debugger.HistoryLimit,
		Debug:   cfg.Debugger.Enable,
		Seed:    seed,
		Output:  os.Stdout,
	}

	if !mutevar {
		if speaker, err := openSpeaker(cfg.BeepFrequency); err == nil {
			defer speaker.Close()
			opts.Speaker = speaker.Tone
		} else {
			log.Println(err)
		}
	}

	done := make(chan struct{})

	var input lineReader
	var tty *terminal
	var win *window

	if headlessvar {
		tty = newTerminal(controls, int(os.Stdin.Fd()), pump(os.Stdin), os.Stdout)
		opts.Keypad = tty
		opts.Display = tty
		input = tty
	} else {
		win = newWindow(controls, cfg.ScreenScaling, done)
		opts.Keypad = win
		opts.Display = win

		if replvar {
			input = newScannerLines(os.Stdin)
		}
	}

	var sched *scheduler.Scheduler

	if cfg.Debugger.Enable && input != nil {
		opts.OnBreak = func(s *scheduler.Scheduler) {
			if tty != nil {
				tty.exitRawTerm()
				tty.flushInput()
				defer tty.enterRawTerm()
			}

			handleBreak(s, input)
		}

		opts.OnFault = func(err error) {
			sched.Submit(scheduler.Command{Type: scheduler.COMMAND_PAUSE})
		}
	}

	sched, err = scheduler.New(rom, opts)

	if err != nil {
		log.Println(err)
		return 1
	}

	controls.sched = sched

	if cfg.Debugger.Enable {
		loadSymbols(sched.Debugger(), cfg.ROM)

		if source, ok := sched.Debugger().Source.(*os.File); ok {
			defer source.Close()
		}
	}

	c := make(chan os.Signal, 1)
	defer close(c)

	signal.Notify(c, os.Interrupt)
	defer signal.Stop(c)

	go func() {
		for range c {
			if cfg.Debugger.Enable {
				sched.Submit(scheduler.Command{Type: scheduler.COMMAND_PAUSE})
			} else {
				cancel()
			}
		}
	}()

	if headlessvar {
		tty.enterRawTerm()
		defer tty.exitRawTerm()

		if err := sched.Run(ctx); err != nil {
			log.Println(err)
			return 1
		}

		return 0
	}

	result := make(chan error, 1)

	go func() {
		defer close(done)
		result <- sched.Run(ctx)
	}()

	title := fmt.Sprintf("gochip8 - %s", filepath.Base(cfg.ROM))

	if err := runWindow(win, title); err != nil {
		log.Println(err)
		return 1
	}

	cancel()

	if err := <-result; err != nil {
		log.Println(err)
		return 1
	}

	return 0
}

func main() {
	os.Exit(gochip8())
}
