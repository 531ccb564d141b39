// Copyright 2024 The Apogee Link Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package radio

// OpCode is an LLCC68 command opcode. See the LLCC68 datasheet chapter 11
// for the full command reference; only the commands this driver issues are
// named here.
type OpCode uint8

const (
	// Operational modes (11.1)
	OpSetTx OpCode = 0x83
	OpSetRx OpCode = 0x82

	// Register & buffer access (11.2)
	OpWriteRegister OpCode = 0x0d
	OpReadRegister  OpCode = 0x1d
	OpWriteBuffer   OpCode = 0x0e
	OpReadBuffer    OpCode = 0x1e

	// DIO & IRQ control (11.3)
	OpSetDioIrqParams       OpCode = 0x08
	OpGetIrqStatus          OpCode = 0x12
	OpClearIrqStatus        OpCode = 0x02
	OpSetDIO2AsRfSwitchCtrl OpCode = 0x9d

	// RF, modulation & packet (11.4)
	OpSetRfFrequency      OpCode = 0x86
	OpSetPacketType       OpCode = 0x8a
	OpSetTxParams         OpCode = 0x8e
	OpSetModulationParams OpCode = 0x8b
	OpSetPacketParams     OpCode = 0x8c
	OpSetBufferBaseAddr   OpCode = 0x8f
	OpSetPaConfig         OpCode = 0x95

	// Status (11.5)
	OpGetStatus         OpCode = 0xc0
	OpGetRxBufferStatus OpCode = 0x13
	OpGetPacketStatus   OpCode = 0x14
)

// PacketType selects the modem's framing.
type PacketType uint8

const (
	PacketTypeGFSK PacketType = 0x00
	PacketTypeLoRa PacketType = 0x01
)

// OutputPower is one of the four power levels the LLCC68 supports.
type OutputPower uint8

const (
	Power14dBm OutputPower = 14
	Power17dBm OutputPower = 17
	Power20dBm OutputPower = 20
	Power22dBm OutputPower = 22
)

// RampTime is the PA ramp-up duration used with SetTxParams.
type RampTime uint8

const (
	Ramp10u   RampTime = 0x00
	Ramp20u   RampTime = 0x01
	Ramp40u   RampTime = 0x02
	Ramp80u   RampTime = 0x03
	Ramp200u  RampTime = 0x04
	Ramp800u  RampTime = 0x05
	Ramp1700u RampTime = 0x06
	Ramp3400u RampTime = 0x07
)

// LoRaBandwidth is the modem's channel bandwidth.
type LoRaBandwidth uint8

const (
	Bw125 LoRaBandwidth = 0x04
	Bw250 LoRaBandwidth = 0x05
	Bw500 LoRaBandwidth = 0x06
)

// LoRaSpreadingFactor controls the modem's chips-per-symbol.
type LoRaSpreadingFactor uint8

const (
	SF5  LoRaSpreadingFactor = 0x05
	SF6  LoRaSpreadingFactor = 0x06
	SF7  LoRaSpreadingFactor = 0x07
	SF8  LoRaSpreadingFactor = 0x08
	SF9  LoRaSpreadingFactor = 0x09
	SF10 LoRaSpreadingFactor = 0x0a
	SF11 LoRaSpreadingFactor = 0x0b
)

// LoRaCodingRate is the modem's forward error correction rate.
type LoRaCodingRate uint8

const (
	CR4of5 LoRaCodingRate = 0x01
	CR4of6 LoRaCodingRate = 0x02
	CR4of7 LoRaCodingRate = 0x03
	CR4of8 LoRaCodingRate = 0x04
)

// Interrupt is a bit in the LLCC68's IRQ mask.
type Interrupt uint16

const (
	IrqTxDone Interrupt = 0x01
	IrqRxDone Interrupt = 0x02
	IrqCrcErr Interrupt = 0x40
)
