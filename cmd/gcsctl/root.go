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
)

var cfg = viper.New()

var rootCmd = &cobra.Command{
	Use:   "gcsctl",
	Short: "Queue one uplink command and run the GCS link until it is sent",
}

func init() {
	pflags := rootCmd.PersistentFlags()
	pflags.Duration("tick-interval", time.Millisecond, "wall-clock duration of one link tick")
	pflags.Duration("timeout", 5*time.Second, "how long to wait for the command to go out before giving up")
	pflags.String("log-level", "info", "zap level: debug, info, warn, error")

	_ = cfg.BindPFlags(pflags)
	cfg.SetEnvPrefix("GCSCTL")
	cfg.AutomaticEnv()

	rootCmd.AddCommand(
		heartbeatCmd,
		setFlightModeCmd,
		setFlightModeAuthCmd,
		rebootCmd,
		rebootAuthCmd,
		rebootBootloaderCmd,
		readFlashCmd,
		eraseFlashCmd,
		eraseFlashAuthCmd,
	)
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
