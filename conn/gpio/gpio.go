// Copyright 2024 The Apogee Link Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package gpio defines digital pins.
//
// The pins are described by their logical functionality, not their physical
// position, since the radio driver only ever cares about BUSY, DIO1, RESET
// and the chip-select-adjacent lines it is wired to.
package gpio

import (
	"fmt"
	"time"
)

// Level is the level of the pin: Low or High.
type Level bool

const (
	// Low represents 0v.
	Low Level = false
	// High represents Vin, generally 3.3v or 5v.
	High Level = true
)

func (l Level) String() string {
	if l == Low {
		return "Low"
	}
	return "High"
}

// Pull specifies the internal pull-up or pull-down for a pin set as input.
type Pull uint8

// Acceptable pull values.
const (
	Float        Pull = 0 // Let the input float
	Down         Pull = 1 // Apply pull-down
	Up           Pull = 2 // Apply pull-up
	PullNoChange Pull = 3 // Do not change the previous pull resistor setting or an unknown value
)

const pullName = "FloatDownUpPullNoChange"

var pullIndex = [...]uint8{0, 5, 9, 11, 23}

func (i Pull) String() string {
	if i >= Pull(len(pullIndex)-1) {
		return fmt.Sprintf("Pull(%d)", i)
	}
	return pullName[pullIndex[i]:pullIndex[i+1]]
}

// Edge specifies if an input pin should have edge detection enabled.
//
// Only enable it when needed, since this causes system interrupts.
type Edge uint8

// Acceptable edge detection values.
const (
	None    Edge = 0
	Rising  Edge = 1
	Falling Edge = 2
	Both    Edge = 3
)

const edgeName = "NoneRisingFallingBoth"

var edgeIndex = [...]uint8{0, 4, 10, 17, 21}

func (i Edge) String() string {
	if i >= Edge(len(edgeIndex)-1) {
		return fmt.Sprintf("Edge(%d)", i)
	}
	return edgeName[edgeIndex[i]:edgeIndex[i+1]]
}

// Pin is the base interface shared by every pin, functional or not.
type Pin interface {
	fmt.Stringer
	// Name returns the pin name, e.g. "BUSY" or "DIO1".
	Name() string
}

// PinIn is an input GPIO pin.
//
// It may optionally support internal pull resistor and edge based triggering.
type PinIn interface {
	Pin
	// In setups a pin as an input.
	//
	// If WaitForEdge() is planned to be called, make sure to use one of the
	// Edge values. Otherwise, use None to not generate unneeded interrupts.
	In(pull Pull, edge Edge) error
	// Read returns the current pin level.
	//
	// Behavior is undefined if In() wasn't called before.
	Read() Level
	// WaitForEdge waits for the next edge or immediately returns if an edge
	// occurred since the last call.
	//
	// Returns true if an edge was detected during or before this call.
	// Returns false if the timeout occurred or In() was called while
	// waiting, causing the function to exit.
	//
	// Specify -1 to effectively disable the timeout.
	WaitForEdge(timeout time.Duration) bool
	// Pull returns the internal pull resistor if the pin is set as input.
	// Returns PullNoChange if the value cannot be read.
	Pull() Pull
}

// PinOut is an output GPIO pin.
type PinOut interface {
	Pin
	// Out sets a pin as output if it wasn't already and sets its level.
	Out(l Level) error
}

// PinIO is a GPIO pin that supports both input and output.
type PinIO interface {
	Pin
	In(pull Pull, edge Edge) error
	Read() Level
	WaitForEdge(timeout time.Duration) bool
	Pull() Pull
	Out(l Level) error
}

// INVALID implements PinIO and fails on all access.
var INVALID PinIO = invalidPin{}

// BasicPin implements Pin as a non-functional named pin, useful as a
// placeholder when a board wiring leaves a line unconnected.
type BasicPin struct {
	PinName string
}

func (b *BasicPin) String() string {
	return b.PinName
}

// Name implements Pin.
func (b *BasicPin) Name() string {
	return b.PinName
}

// In implements PinIn.
func (b *BasicPin) In(Pull, Edge) error {
	return fmt.Errorf("%s cannot be used as input", b.PinName)
}

// Read implements PinIn.
func (b *BasicPin) Read() Level {
	return Low
}

// WaitForEdge implements PinIn.
func (b *BasicPin) WaitForEdge(timeout time.Duration) bool {
	return false
}

// Pull implements PinIn.
func (b *BasicPin) Pull() Pull {
	return PullNoChange
}

// Out implements PinOut.
func (b *BasicPin) Out(Level) error {
	return fmt.Errorf("%s cannot be used as output", b.PinName)
}

var errInvalidPin = fmt.Errorf("invalid pin")

// invalidPin implements PinIO for compatibility but fails on all access.
type invalidPin struct{}

func (invalidPin) Name() string                           { return "INVALID" }
func (invalidPin) String() string                         { return "INVALID" }
func (invalidPin) In(Pull, Edge) error                    { return errInvalidPin }
func (invalidPin) Read() Level                            { return Low }
func (invalidPin) WaitForEdge(timeout time.Duration) bool { return false }
func (invalidPin) Pull() Pull                             { return PullNoChange }
func (invalidPin) Out(Level) error                        { return errInvalidPin }

var _ PinIn = INVALID
var _ PinOut = INVALID
var _ PinIO = INVALID
