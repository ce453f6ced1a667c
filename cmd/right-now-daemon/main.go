// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/colelawrence/right-now-daemon/internal/config"
	"github.com/colelawrence/right-now-daemon/internal/daemon"
)

var version = "0.1.0"

func main() {
	showVersion := flag.Bool("version", false, "Show version")
	flag.BoolVar(showVersion, "v", false, "Show version (short)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("right-now-daemon %s\n", version)
		os.Exit(0)
	}

	cfg := config.FromEnv()
	overrides, err := config.LoadOverrides(cfg.DaemonOverridesFile())
	if err != nil {
		log.Fatalf("right-now-daemon: load overrides: %v", err)
	}

	d := daemon.New(cfg, overrides)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Printf("right-now-daemon: signal received, shutting down")
		d.Stop()
	}()

	if err := d.Start(); err != nil {
		log.Fatalf("right-now-daemon: %v", err)
	}
}
