// Copyright 2024 The Apogee Link Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package radio drives an LLCC68 LoRa transceiver through an opcode-level
// SPI interface. It owns the chip's Init → Idle ↔ Transmitting state
// machine and the handful of vendor workarounds the datasheet calls for,
// but knows nothing about the channel plan, the uplink schedule or message
// framing; those live in the link package, which is the only caller.
//
// Datasheet: https://www.mouser.com/pdfDocs/DS_LLCC68_V10-2.pdf
package radio

import (
	"go.uber.org/zap"

	"github.com/tudsat-rocket/apogeelink/conn"
	"github.com/tudsat-rocket/apogeelink/conn/gpio"
)

// Phase is the radio's coarse state.
type Phase int

const (
	// Init is the state before the chip has been successfully configured.
	Init Phase = iota
	// Idle means the chip is listening for packets.
	Idle
	// Transmitting means a packet write is in flight; the chip returns to
	// Idle automatically once the transmission timeout elapses.
	Transmitting
)

func (p Phase) String() string {
	switch p {
	case Init:
		return "Init"
	case Idle:
		return "Idle"
	case Transmitting:
		return "Transmitting"
	default:
		return "Unknown"
	}
}

const (
	txBaseAddress = 0
	rxBaseAddress = 64
)

// Options configures a Dev. Every field is a protocol constant owned by
// the caller (normally the link package) rather than by the driver, so
// this package stays free of channel-plan or scheduler knowledge.
type Options struct {
	// TxPacketSize and RxPacketSize are this role's fixed payload sizes:
	// 24/14 on the FC, 14/24 on the GCS.
	TxPacketSize int
	RxPacketSize int
	// InitFreqHz is the frequency Configure tunes to before the first hop.
	InitFreqHz uint32
	// TxTimeoutMS is the hardware transmission timeout; the driver adds 2ms
	// of software margin before returning to Idle, per the datasheet note
	// that the chip needs a short additional delay to actually finish.
	TxTimeoutMS uint32
	Logger      *zap.Logger
}

// Dev is a driver for one LLCC68 transceiver.
type Dev struct {
	spi  conn.Conn
	busy gpio.PinIn
	dio1 gpio.PinIn
	log  *zap.Logger

	opts Options

	time           uint32
	phase          Phase
	stateEnteredAt uint32

	highPowerDesired    bool
	highPowerConfigured bool

	rssi       uint8
	rssiSignal uint8
	snr        uint8
}

// New returns a Dev in the Init phase. TickCommon must be called to drive
// it through configuration before any other operation is useful.
func New(bus conn.Conn, busy, dio1 gpio.PinIn, opts Options) *Dev {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Dev{
		spi:        bus,
		busy:       busy,
		dio1:       dio1,
		log:        log,
		opts:       opts,
		phase:      Init,
		rssi:       255,
		rssiSignal: 255,
	}
}

// Phase returns the radio's current phase.
func (d *Dev) Phase() Phase { return d.phase }

// RSSI, RSSISignal and SNR return the signal metrics of the most recently
// received packet.
func (d *Dev) RSSI() uint8       { return d.rssi }
func (d *Dev) RSSISignal() uint8 { return d.rssiSignal }
func (d *Dev) SNR() uint8        { return d.snr }

// SetHighPowerDesired records whether the next tick should reconfigure the
// transceiver to run at 22dBm (true) or 14dBm (false).
func (d *Dev) SetHighPowerDesired(v bool) { d.highPowerDesired = v }

// Command performs one atomic SPI transaction: opcode, then params, then
// responseLen padding bytes to clock out the response. If BUSY is high on
// entry it returns ErrBusy without touching the bus.
func (d *Dev) Command(op OpCode, params []byte, responseLen int) ([]byte, error) {
	if d.busy != nil && d.busy.Read() == gpio.High {
		return nil, ErrBusy
	}

	payload := make([]byte, 1+len(params)+responseLen)
	payload[0] = byte(op)
	copy(payload[1:], params)

	resp := make([]byte, len(payload))
	if err := d.spi.Tx(payload, resp); err != nil {
		return nil, &TransportError{Err: err}
	}
	return resp[1+len(params):], nil
}

func (d *Dev) readRegister(addr uint16) (uint8, error) {
	resp, err := d.Command(OpReadRegister, []byte{byte(addr >> 8), byte(addr)}, 2)
	if err != nil {
		return 0, err
	}
	return resp[1], nil
}

func (d *Dev) writeRegister(addr uint16, value uint8) error {
	_, err := d.Command(OpWriteRegister, []byte{byte(addr >> 8), byte(addr), value}, 0)
	return err
}

func (d *Dev) setPacketType(t PacketType) error {
	_, err := d.Command(OpSetPacketType, []byte{byte(t)}, 0)
	return err
}

// xtalFreqHz is the LLCC68's crystal frequency.
const xtalFreqHz = 32_000_000

// pllStepScaled is xtalFreqHz >> (25 - 14), the PLL's step resolution.
const pllStepScaled = xtalFreqHz >> 11

// SetRfFrequency tunes the transceiver to frequencyHz, translating the
// requested frequency to the chip's PLL step with a fixed-point
// approximation. The rounding must match bit-for-bit between FC and GCS,
// since both sides compute the same channel schedule independently.
func (d *Dev) SetRfFrequency(frequencyHz uint32) error {
	intPart := frequencyHz / pllStepScaled
	frac := frequencyHz % pllStepScaled
	fracSteps := ((frac << 14) + (pllStepScaled >> 1)) / pllStepScaled
	pll := (intPart << 14) + fracSteps

	params := []byte{byte(pll >> 24), byte(pll >> 16), byte(pll >> 8), byte(pll)}
	_, err := d.Command(OpSetRfFrequency, params, 0)
	return err
}

// SetOutputPower selects one of the four supported power levels and
// applies the datasheet's tx-clamp workaround (chapter 15.2) that would
// otherwise overly restrict the chip's output.
func (d *Dev) SetOutputPower(power OutputPower, ramp RampTime) error {
	var dutyCycle, hpMax byte
	switch power {
	case Power14dBm:
		dutyCycle, hpMax = 0x02, 0x02
	case Power17dBm:
		dutyCycle, hpMax = 0x02, 0x03
	case Power20dBm:
		dutyCycle, hpMax = 0x03, 0x05
	case Power22dBm:
		dutyCycle, hpMax = 0x04, 0x07
	}
	if _, err := d.Command(OpSetPaConfig, []byte{dutyCycle, hpMax, 0x00, 0x01}, 0); err != nil {
		return err
	}
	// The power byte here is always 22 regardless of the selected level;
	// SetPaConfig's hpMax is what actually limits the output.
	if _, err := d.Command(OpSetTxParams, []byte{22, byte(ramp)}, 0); err != nil {
		return err
	}

	clamp, err := d.readRegister(0x08d8)
	if err != nil {
		return err
	}
	return d.writeRegister(0x08d8, clamp|0x1e)
}

// SetLoRaModParams configures the modem's bandwidth, spreading factor and
// coding rate, downgrading the spreading factor where the datasheet
// forbids a combination of wide spreading factor and narrow bandwidth.
func (d *Dev) SetLoRaModParams(bw LoRaBandwidth, sf LoRaSpreadingFactor, cr LoRaCodingRate, ldro bool) error {
	if bw == Bw125 && (sf == SF10 || sf == SF11) {
		sf = SF9
	}
	if bw == Bw250 && sf == SF11 {
		sf = SF10
	}
	var ldroByte byte
	if ldro {
		ldroByte = 1
	}
	_, err := d.Command(OpSetModulationParams, []byte{byte(sf), byte(bw), byte(cr), ldroByte}, 0)
	return err
}

// SetLoRaPacketParams configures the preamble length (clamped to at least
// 1 symbol), header mode, payload length, CRC and IQ inversion.
func (d *Dev) SetLoRaPacketParams(preambleLength uint16, fixedHeader bool, payloadLength uint8, crc, invertIQ bool) error {
	if preambleLength < 1 {
		preambleLength = 1
	}
	params := []byte{
		byte(preambleLength >> 8), byte(preambleLength),
		boolByte(fixedHeader), payloadLength, boolByte(crc), boolByte(invertIQ),
	}
	_, err := d.Command(OpSetPacketParams, params, 0)
	return err
}

func (d *Dev) setBufferBaseAddresses(tx, rx uint8) error {
	_, err := d.Command(OpSetBufferBaseAddr, []byte{tx, rx}, 0)
	return err
}

func (d *Dev) setDIO1Interrupt(irqMask, dio1Mask Interrupt) error {
	params := []byte{
		byte(irqMask >> 8), byte(irqMask),
		byte(dio1Mask >> 8), byte(dio1Mask),
		0, 0, 0, 0,
	}
	_, err := d.Command(OpSetDioIrqParams, params, 0)
	return err
}

func (d *Dev) setTxMode(timeoutUS uint32) error {
	timeout := uint32(float32(timeoutUS) / 15.625)
	_, err := d.Command(OpSetTx, []byte{byte(timeout >> 16), byte(timeout >> 8), byte(timeout)}, 0)
	return err
}

func (d *Dev) setRxMode() error {
	// Continuous RX: the chip is always listening until told otherwise.
	_, err := d.Command(OpSetRx, []byte{0, 0, 0}, 0)
	return err
}

// SwitchToRX re-arms the packet params for reception and puts the chip in
// continuous RX mode.
func (d *Dev) SwitchToRX() error {
	if err := d.SetLoRaPacketParams(12, true, uint8(d.opts.RxPacketSize), true, false); err != nil {
		return err
	}
	return d.setRxMode()
}

// Configure runs the full configuration sequence: poll for chip readiness,
// enable the RF switch, boost RX gain, set LoRa modulation, tune to the
// initial frequency, lay out the TX/RX buffer halves, set the default
// output power, arm the RxDone/CrcErr interrupts, and enter RX.
func (d *Dev) Configure() error {
	var err error
	for i := 0; i < 5; i++ {
		if _, err = d.Command(OpGetStatus, nil, 1); err == nil {
			break
		}
	}
	if err != nil {
		return err
	}

	if _, err := d.Command(OpSetDIO2AsRfSwitchCtrl, []byte{1}, 0); err != nil {
		return err
	}
	if err := d.writeRegister(0x08ac, 0x96); err != nil { // boost RX gain, datasheet 9.6
		return err
	}
	if err := d.setPacketType(PacketTypeLoRa); err != nil {
		return err
	}
	if err := d.SetLoRaModParams(Bw500, SF6, CR4of6, false); err != nil {
		return err
	}
	if err := d.SetRfFrequency(d.opts.InitFreqHz); err != nil {
		return err
	}
	if err := d.setBufferBaseAddresses(txBaseAddress, rxBaseAddress); err != nil {
		return err
	}
	if err := d.SetOutputPower(Power14dBm, Ramp20u); err != nil {
		return err
	}
	if err := d.setDIO1Interrupt(IrqRxDone|IrqCrcErr, IrqRxDone); err != nil {
		return err
	}
	return d.SwitchToRX()
}

// SendPacket transmits payload if the radio is Idle. If the radio is not
// Idle the send is silently dropped, matching the datasheet-driven
// requirement that a transmission in flight is never interrupted. An
// oversized payload is refused with ErrOversizedPayload and never reaches
// the bus.
func (d *Dev) SendPacket(payload []byte) error {
	if d.phase != Idle {
		return nil
	}
	if len(payload) > d.opts.TxPacketSize {
		d.log.Error("message exceeds tx packet size", zap.Int("len", len(payload)), zap.Int("max", d.opts.TxPacketSize))
		return ErrOversizedPayload
	}

	// Datasheet chapter 15.1 (p.97): 500kHz bandwidth needs this bit
	// cleared to avoid modulation quality issues.
	reg, err := d.readRegister(0x0889)
	if err != nil {
		return err
	}
	if reg&0xfb != reg {
		if err := d.writeRegister(0x0889, reg&0xfb); err != nil {
			return err
		}
	}

	if err := d.SetLoRaPacketParams(12, true, uint8(d.opts.TxPacketSize), true, false); err != nil {
		return err
	}

	params := make([]byte, d.opts.TxPacketSize+1)
	params[0] = txBaseAddress
	copy(params[1:], payload)
	if _, err := d.Command(OpWriteBuffer, params, 0); err != nil {
		return err
	}
	if err := d.setTxMode(d.opts.TxTimeoutMS * 1000); err != nil {
		return err
	}

	d.phase = Transmitting
	d.stateEnteredAt = d.time
	return nil
}

// ReceiveData checks for a completed reception and returns its payload
// bytes. It returns (nil, nil) if DIO1 (RxDone) is not asserted, and
// ErrCrcMismatch if the chip reported a CRC error, in which case the
// caller should discard the frame and continue listening.
func (d *Dev) ReceiveData() ([]byte, error) {
	if d.dio1 != nil && d.dio1.Read() != gpio.High {
		return nil, nil
	}

	irqResp, err := d.Command(OpGetIrqStatus, nil, 3)
	var irqStatus uint16
	if err == nil {
		irqStatus = uint16(irqResp[1])<<8 | uint16(irqResp[2])
	}
	if _, err := d.Command(OpClearIrqStatus, []byte{0xff, 0xff}, 0); err != nil {
		return nil, err
	}

	packetStatus, err := d.Command(OpGetPacketStatus, nil, 4)
	if err != nil {
		return nil, err
	}
	d.rssi = packetStatus[1]
	d.snr = packetStatus[2]
	d.rssiSignal = packetStatus[3]

	if irqStatus&uint16(IrqCrcErr) != 0 {
		return nil, ErrCrcMismatch
	}

	rxBufferStatus, err := d.Command(OpGetRxBufferStatus, nil, 3)
	if err != nil {
		return nil, err
	}
	length := int(rxBufferStatus[1])
	if length > d.opts.RxPacketSize {
		length = d.opts.RxPacketSize
	}

	buffer, err := d.Command(OpReadBuffer, []byte{rxBufferStatus[2]}, length+1)
	if err != nil {
		return nil, err
	}
	if err := d.setRxMode(); err != nil {
		return nil, err
	}
	return buffer[1:], nil
}

// TickCommon runs the phase-independent radio maintenance for tick time:
// completing configuration out of Init, returning to Idle once the
// transmission timeout elapses, and reconciling the configured output
// power with the desired one.
func (d *Dev) TickCommon(time uint32) {
	d.time = time

	if d.phase == Init {
		if err := d.Configure(); err != nil {
			d.log.Error("failed to configure transceiver", zap.Error(err))
		} else {
			d.phase = Idle
			d.stateEnteredAt = time
		}
	}

	if d.phase == Transmitting && time == d.stateEnteredAt+d.opts.TxTimeoutMS+2 {
		if err := d.SwitchToRX(); err != nil {
			d.log.Error("failed to return to rx mode", zap.Error(err))
		} else {
			d.phase = Idle
			d.stateEnteredAt = time
		}
	}

	if d.highPowerDesired != d.highPowerConfigured {
		power := Power14dBm
		if d.highPowerDesired {
			power = Power22dBm
		}
		if err := d.SetOutputPower(power, Ramp20u); err != nil {
			d.log.Error("failed to set power level", zap.Error(err))
		} else {
			d.highPowerConfigured = d.highPowerDesired
		}
	}
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
