// Copyright 2024 The Apogee Link Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package radio_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tudsat-rocket/apogeelink/conn/gpio"
	"github.com/tudsat-rocket/apogeelink/conn/gpio/gpiotest"
	"github.com/tudsat-rocket/apogeelink/conn/spi/spitest"
	"github.com/tudsat-rocket/apogeelink/radio"
)

// fakeTransceiver answers every LLCC68 opcode the driver issues with a
// plausible response, so tests can drive Dev through its full
// configuration sequence without hand-authoring a byte-exact transaction
// recording for every test case.
type fakeTransceiver struct {
	registers  map[uint16]uint8
	crcErr     bool
	rxLength   uint8
	rxPayload  []byte
	rssi       uint8
	snr        uint8
	rssiSignal uint8
}

func newFakeTransceiver() *fakeTransceiver {
	return &fakeTransceiver{registers: map[uint16]uint8{}}
}

func (f *fakeTransceiver) Tx(w, r []byte) error {
	if len(w) == 0 {
		return nil
	}
	switch radio.OpCode(w[0]) {
	case radio.OpReadRegister:
		addr := uint16(w[1])<<8 | uint16(w[2])
		r[len(r)-1] = f.registers[addr]
	case radio.OpGetIrqStatus:
		var status uint16
		if f.crcErr {
			status = uint16(radio.IrqCrcErr)
		}
		r[2] = byte(status >> 8)
		r[3] = byte(status)
	case radio.OpGetPacketStatus:
		r[2] = f.rssi
		r[3] = f.snr
		r[4] = f.rssiSignal
	case radio.OpGetRxBufferStatus:
		r[2] = f.rxLength
		r[3] = 64 // rx base address
	case radio.OpReadBuffer:
		copy(r[len(r)-int(f.rxLength):], f.rxPayload)
	}
	return nil
}

func newDev(spi *fakeTransceiver, busy, dio1 gpio.PinIn, opts radio.Options) *radio.Dev {
	dev, _ := newRecordedDev(spi, busy, dio1, opts)
	return dev
}

func newRecordedDev(spi *fakeTransceiver, busy, dio1 gpio.PinIn, opts radio.Options) (*radio.Dev, *spitest.Record) {
	rec := &spitest.Record{Conn: spi}
	return radio.New(rec, busy, dio1, opts), rec
}

func testOptions() radio.Options {
	return radio.Options{
		TxPacketSize: 24,
		RxPacketSize: 14,
		InitFreqHz:   866_250_000,
		TxTimeoutMS:  12,
	}
}

func TestConfigureEntersIdleWithinFiveTicks(t *testing.T) {
	dev := newDev(newFakeTransceiver(), nil, nil, testOptions())
	for tTick := uint32(0); tTick <= 5; tTick++ {
		dev.TickCommon(tTick)
		if dev.Phase() == radio.Idle {
			assert.LessOrEqual(t, tTick, uint32(5))
			return
		}
	}
	t.Fatal("radio never reached Idle")
}

func TestCommandReturnsBusyWithoutTouchingBus(t *testing.T) {
	busy := &gpiotest.Pin{N: "BUSY", L: true}
	dev := newDev(newFakeTransceiver(), busy, nil, testOptions())

	_, err := dev.Command(radio.OpGetStatus, nil, 1)
	assert.ErrorIs(t, err, radio.ErrBusy)
}

func TestSendPacketTransmitsThenReturnsToIdleAfterTimeout(t *testing.T) {
	dev := newDev(newFakeTransceiver(), nil, nil, testOptions())
	dev.TickCommon(0)
	require.Equal(t, radio.Idle, dev.Phase())
	dev.TickCommon(1000)

	require.NoError(t, dev.SendPacket(make([]byte, 20)))
	assert.Equal(t, radio.Transmitting, dev.Phase())

	for tTick := uint32(1001); tTick < 1014; tTick++ {
		dev.TickCommon(tTick)
		assert.Equal(t, radio.Transmitting, dev.Phase(), "tick %d", tTick)
	}
	dev.TickCommon(1014)
	assert.Equal(t, radio.Idle, dev.Phase())
}

func TestSendPacketRejectsOversizedPayload(t *testing.T) {
	dev := newDev(newFakeTransceiver(), nil, nil, testOptions())
	dev.TickCommon(0)
	require.Equal(t, radio.Idle, dev.Phase())

	err := dev.SendPacket(make([]byte, 25))
	assert.ErrorIs(t, err, radio.ErrOversizedPayload)
	assert.Equal(t, radio.Idle, dev.Phase())
}

func TestSendPacketWhileTransmittingIsSilentlyDropped(t *testing.T) {
	dev := newDev(newFakeTransceiver(), nil, nil, testOptions())
	dev.TickCommon(0)
	require.NoError(t, dev.SendPacket(make([]byte, 10)))
	require.Equal(t, radio.Transmitting, dev.Phase())

	err := dev.SendPacket(make([]byte, 10))
	assert.NoError(t, err)
}

func TestReceiveDataReportsCrcMismatchAndStaysInRx(t *testing.T) {
	fake := newFakeTransceiver()
	fake.crcErr = true
	dio1 := &gpiotest.Pin{N: "DIO1", L: true}
	dev := newDev(fake, nil, dio1, testOptions())
	dev.TickCommon(0)

	_, err := dev.ReceiveData()
	assert.True(t, errors.Is(err, radio.ErrCrcMismatch))
	assert.Equal(t, radio.Idle, dev.Phase())
}

func TestReceiveDataReturnsPayloadAndSignalMetrics(t *testing.T) {
	fake := newFakeTransceiver()
	fake.rxLength = 5
	fake.rxPayload = []byte{1, 2, 3, 4, 5}
	fake.rssi, fake.snr, fake.rssiSignal = 120, 8, 118
	dio1 := &gpiotest.Pin{N: "DIO1", L: true}
	dev := newDev(fake, nil, dio1, testOptions())
	dev.TickCommon(0)

	data, err := dev.ReceiveData()
	require.NoError(t, err)
	assert.Equal(t, fake.rxPayload, data)
	assert.Equal(t, uint8(120), dev.RSSI())
	assert.Equal(t, uint8(8), dev.SNR())
	assert.Equal(t, uint8(118), dev.RSSISignal())
}

func TestReceiveDataReturnsNilWithoutRxDoneIRQ(t *testing.T) {
	dio1 := &gpiotest.Pin{N: "DIO1", L: false}
	dev := newDev(newFakeTransceiver(), nil, dio1, testOptions())
	dev.TickCommon(0)

	data, err := dev.ReceiveData()
	assert.NoError(t, err)
	assert.Nil(t, data)
}

func TestPowerReconfiguresOnlyOnDesiredChange(t *testing.T) {
	dev, rec := newRecordedDev(newFakeTransceiver(), nil, nil, testOptions())
	dev.TickCommon(0)

	dev.SetHighPowerDesired(true)
	dev.TickCommon(1)
	afterChange := len(rec.Ops)

	// Ticking again with the same desired value converged must not
	// re-issue SetOutputPower's command sequence.
	dev.TickCommon(2)
	assert.Equal(t, afterChange, len(rec.Ops))
}
