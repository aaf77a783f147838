// Copyright 2026 the usbmon Authors.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command usbmon supervises USB devices on power-switching hubs and power
// cycles the port of any device that stops responding.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/apex/log"
	"github.com/apex/log/handlers/text"
	"github.com/google/gousb"
	"golang.org/x/sync/errgroup"

	"github.com/gatewatch/usbmon"
)

const pidFile = "/var/run/usbmon.pid"

var (
	logPath  = flag.String("o", "", "redirect the log to this file (truncated on open)")
	confPath = flag.String("c", "", "load configuration from this file")
	detach   = flag.Bool("d", false, "detach from the controlling terminal (done first, before locking, configuration and USB setup)")
)

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "usbmon: %v\n", err)
	os.Exit(1)
}

func main() {
	flag.Parse()

	// Re-exec into the background before anything else so the instance
	// lock is owned by the process that keeps running.
	if *detach {
		if err := daemonize(); err != nil {
			fatal(err)
		}
	}

	if err := lockPIDFile(pidFile); err != nil {
		fatal(err)
	}

	sink := os.Stderr
	if *logPath != "" {
		f, err := os.Create(*logPath)
		if err != nil {
			fatal(fmt.Errorf("creating log file: %w", err))
		}
		defer f.Close()
		sink = f
	}
	logger := &log.Logger{Handler: text.New(sink), Level: log.InfoLevel}

	var cfg *usbmon.Config
	if *confPath != "" {
		var err error
		if cfg, err = usbmon.LoadConfig(*confPath); err != nil {
			fatal(err)
		}
	}

	usb := gousb.NewContext()
	defer usb.Close()

	bus, err := usbmon.NewBus(usb)
	if err != nil {
		fatal(err)
	}
	defer bus.Close()

	mon := usbmon.New(bus, logger)
	if cfg != nil {
		if err := cfg.Apply(mon); err != nil {
			fatal(err)
		}
	}

	// The operator signal only posts a message; state stays on the loop.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGUSR1)

	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-sig:
				mon.ForceReset()
			}
		}
	})
	g.Go(func() error {
		return mon.Run(ctx)
	})
	if err := g.Wait(); err != nil && err != context.Canceled {
		fatal(err)
	}
}
