// Copyright 2024 The Apogee Link Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/tudsat-rocket/apogeelink/telemetry"
)

var cfg = viper.New()

var rootCmd = &cobra.Command{
	Use:   "fcsim",
	Short: "Run a simulated Flight Computer against an in-memory transceiver",
	RunE:  runSim,
}

func init() {
	flags := rootCmd.Flags()
	flags.String("config", "", "path to a YAML config file overriding the flags below")
	flags.Duration("tick-interval", time.Millisecond, "wall-clock duration of one link tick")
	flags.Int("ticks", 0, "number of ticks to run, 0 runs until interrupted")
	flags.Duration("downlink-period", time.Second, "sim-time interval between downlink sends")
	flags.String("initial-mode", "Idle", "starting FlightMode")
	flags.String("log-level", "info", "zap level: debug, info, warn, error")

	_ = cfg.BindPFlags(flags)
	cfg.SetEnvPrefix("FCSIM")
	cfg.AutomaticEnv()
}

func buildLogger() (*zap.Logger, error) {
	var level zap.AtomicLevel
	if err := level.UnmarshalText([]byte(cfg.GetString("log-level"))); err != nil {
		return nil, fmt.Errorf("invalid --log-level: %w", err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = level
	zc.Encoding = "console"
	zc.EncoderConfig.TimeKey = "t"
	return zc.Build()
}

func parseFlightMode(s string) (telemetry.FlightMode, error) {
	switch s {
	case "Idle":
		return telemetry.Idle, nil
	case "HardwareArmed":
		return telemetry.HardwareArmed, nil
	case "Armed":
		return telemetry.Armed, nil
	case "Flight":
		return telemetry.Flight, nil
	case "RecoveryDrogue":
		return telemetry.RecoveryDrogue, nil
	case "RecoveryMain":
		return telemetry.RecoveryMain, nil
	case "Landed":
		return telemetry.Landed, nil
	default:
		return 0, fmt.Errorf("unknown flight mode %q", s)
	}
}

func runSim(cmd *cobra.Command, args []string) error {
	if path := cfg.GetString("config"); path != "" {
		cfg.SetConfigFile(path)
		if err := cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config: %w", err)
		}
	}

	log, err := buildLogger()
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	mode, err := parseFlightMode(cfg.GetString("initial-mode"))
	if err != nil {
		return err
	}

	return simulate(log, mode, cfg.GetDuration("tick-interval"), cfg.GetDuration("downlink-period"), cfg.GetInt("ticks"))
}
