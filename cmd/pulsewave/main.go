// Copyright (c) 2024-present PulseWave, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pulsewave/pulsewave/logger"
	"github.com/pulsewave/pulsewave/service"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config/config.toml", "Path to the configuration file for the pulsewave service.")
	flag.Parse()

	cfg, err := loadConfig(configPath)
	if err != nil {
		log.Fatalf("pulsewave: failed to load config: %s", err.Error())
	}

	if err := cfg.IsValid(); err != nil {
		log.Fatalf("pulsewave: failed to validate config: %s", err.Error())
	}

	logg, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("pulsewave: failed to create logger: %s", err.Error())
	}
	defer func() {
		if err := logg.Shutdown(); err != nil {
			log.Printf("pulsewave: failed to shutdown logger: %s", err.Error())
		}
	}()

	svc, err := service.New(cfg, logg)
	if err != nil {
		log.Fatalf("pulsewave: failed to create service: %s", err.Error())
	}

	if err := svc.Start(); err != nil {
		log.Fatalf("pulsewave: failed to start service: %s", err.Error())
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	if err := svc.Stop(); err != nil {
		log.Fatalf("pulsewave: failed to stop service: %s", err.Error())
	}
}
