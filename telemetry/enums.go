// Copyright 2024 The Apogee Link Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package telemetry

import "fmt"

// FlightMode is an ordered progression of the vehicle's flight state. The
// ordering itself is part of the contract: the radio link uses mode >=
// Armed to decide whether to run the transceiver at high power.
type FlightMode uint8

const (
	Idle FlightMode = iota
	HardwareArmed
	Armed
	Flight
	RecoveryDrogue
	RecoveryMain
	Landed
)

func (m FlightMode) String() string {
	switch m {
	case Idle:
		return "Idle"
	case HardwareArmed:
		return "HardwareArmed"
	case Armed:
		return "Armed"
	case Flight:
		return "Flight"
	case RecoveryDrogue:
		return "RecoveryDrogue"
	case RecoveryMain:
		return "RecoveryMain"
	case Landed:
		return "Landed"
	default:
		return fmt.Sprintf("FlightMode(%d)", uint8(m))
	}
}

// HighPower reports whether the link should run the transceiver at its
// high-power setting while the vehicle is in this mode.
func (m FlightMode) HighPower() bool {
	return m >= Armed
}

// LogLevel is an ordered severity used by Log messages.
type LogLevel uint8

const (
	Debug LogLevel = iota
	Info
	Warning
	Error
	Critical
)

func (l LogLevel) String() string {
	switch l {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warning:
		return "WARNING"
	case Error:
		return "ERROR"
	case Critical:
		return "CRITICAL"
	default:
		return fmt.Sprintf("LogLevel(%d)", uint8(l))
	}
}

// GPSFixType describes the quality of a GPS fix.
type GPSFixType uint8

const (
	NoFix GPSFixType = iota
	AutonomousFix
	DifferentialFix
	RTKFix
	RTKFloat
	DeadReckoningFix
)

func (f GPSFixType) String() string {
	switch f {
	case NoFix:
		return "NoFix"
	case AutonomousFix:
		return "AutonomousFix"
	case DifferentialFix:
		return "DifferentialFix"
	case RTKFix:
		return "RTKFix"
	case RTKFloat:
		return "RTKFloat"
	case DeadReckoningFix:
		return "DeadReckoningFix"
	default:
		return fmt.Sprintf("GPSFixType(%d)", uint8(f))
	}
}
