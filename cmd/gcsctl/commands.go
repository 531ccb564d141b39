// Copyright 2024 The Apogee Link Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tudsat-rocket/apogeelink/telemetry"
)

func runQueue(cmd *cobra.Command, msg telemetry.UplinkMessage) error {
	log, err := buildLogger()
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	return queueAndRun(log, msg, cfg.GetDuration("tick-interval"), cfg.GetDuration("timeout"))
}

func parseMAC(s string) (uint64, error) {
	mac, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid --mac: %w", err)
	}
	return mac, nil
}

var heartbeatCmd = &cobra.Command{
	Use:   "heartbeat",
	Short: "Queue a heartbeat (this is also what gets sent when nothing is queued)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQueue(cmd, telemetry.Heartbeat{})
	},
}

var rebootCmd = &cobra.Command{
	Use:   "reboot",
	Short: "Queue an unauthenticated reboot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQueue(cmd, telemetry.Reboot{})
	},
}

var rebootBootloaderCmd = &cobra.Command{
	Use:   "reboot-bootloader",
	Short: "Queue a reboot directly into the bootloader",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQueue(cmd, telemetry.RebootToBootloader{})
	},
}

var rebootAuthMac string

var rebootAuthCmd = &cobra.Command{
	Use:   "reboot-auth",
	Short: "Queue an authenticated reboot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mac, err := parseMAC(rebootAuthMac)
		if err != nil {
			return err
		}
		return runQueue(cmd, telemetry.RebootAuth{Mac: mac})
	},
}

func init() {
	rebootAuthCmd.Flags().StringVar(&rebootAuthMac, "mac", "", "hash-chain MAC for this command, as computed by ground tooling (required)")
	_ = rebootAuthCmd.MarkFlagRequired("mac")
}

var setFlightModeValue string

var setFlightModeCmd = &cobra.Command{
	Use:   "set-flight-mode",
	Short: "Queue an unauthenticated flight mode transition",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := parseFlightMode(setFlightModeValue)
		if err != nil {
			return err
		}
		return runQueue(cmd, telemetry.SetFlightMode{Mode: mode})
	},
}

func init() {
	setFlightModeCmd.Flags().StringVar(&setFlightModeValue, "mode", "", "target FlightMode (required)")
	_ = setFlightModeCmd.MarkFlagRequired("mode")
}

var setFlightModeAuthValue, setFlightModeAuthMac string

var setFlightModeAuthCmd = &cobra.Command{
	Use:   "set-flight-mode-auth",
	Short: "Queue an authenticated flight mode transition",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := parseFlightMode(setFlightModeAuthValue)
		if err != nil {
			return err
		}
		mac, err := parseMAC(setFlightModeAuthMac)
		if err != nil {
			return err
		}
		return runQueue(cmd, telemetry.SetFlightModeAuth{Mode: mode, Mac: mac})
	},
}

func init() {
	flags := setFlightModeAuthCmd.Flags()
	flags.StringVar(&setFlightModeAuthValue, "mode", "", "target FlightMode (required)")
	flags.StringVar(&setFlightModeAuthMac, "mac", "", "hash-chain MAC for this command, as computed by ground tooling (required)")
	_ = setFlightModeAuthCmd.MarkFlagRequired("mode")
	_ = setFlightModeAuthCmd.MarkFlagRequired("mac")
}

var readFlashAddr, readFlashLen uint32

var readFlashCmd = &cobra.Command{
	Use:   "read-flash",
	Short: "Queue a flash read",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQueue(cmd, telemetry.ReadFlash{Addr: readFlashAddr, Len: readFlashLen})
	},
}

func init() {
	flags := readFlashCmd.Flags()
	flags.Uint32Var(&readFlashAddr, "addr", 0, "flash address to read from")
	flags.Uint32Var(&readFlashLen, "len", 0, "number of bytes to read")
}

var eraseFlashCmd = &cobra.Command{
	Use:   "erase-flash",
	Short: "Queue an unauthenticated flash erase",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQueue(cmd, telemetry.EraseFlash{})
	},
}

var eraseFlashAuthMac string

var eraseFlashAuthCmd = &cobra.Command{
	Use:   "erase-flash-auth",
	Short: "Queue an authenticated flash erase",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mac, err := parseMAC(eraseFlashAuthMac)
		if err != nil {
			return err
		}
		return runQueue(cmd, telemetry.EraseFlashAuth{Mac: mac})
	},
}

func init() {
	eraseFlashAuthCmd.Flags().StringVar(&eraseFlashAuthMac, "mac", "", "hash-chain MAC for this command, as computed by ground tooling (required)")
	_ = eraseFlashAuthCmd.MarkFlagRequired("mac")
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
