// Copyright 2024 The Apogee Link Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package link_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tudsat-rocket/apogeelink/conn/gpio"
	"github.com/tudsat-rocket/apogeelink/conn/gpio/gpiotest"
	"github.com/tudsat-rocket/apogeelink/conn/spi/spitest"
	"github.com/tudsat-rocket/apogeelink/link"
	"github.com/tudsat-rocket/apogeelink/radio"
	"github.com/tudsat-rocket/apogeelink/telemetry"
)

// fakeTransceiver answers every LLCC68 opcode with a plausible response, the
// same technique radio.Dev's own tests use, so these tests can drive an FC
// and a GCS through many ticks without a byte-exact transaction recording.
type fakeTransceiver struct {
	rxLength  uint8
	rxPayload []byte
	crcErr    bool
}

func (f *fakeTransceiver) Tx(w, r []byte) error {
	if len(w) == 0 {
		return nil
	}
	switch radio.OpCode(w[0]) {
	case radio.OpGetIrqStatus:
		var status uint16
		if f.crcErr {
			status = uint16(radio.IrqCrcErr)
		}
		r[2] = byte(status >> 8)
		r[3] = byte(status)
	case radio.OpGetRxBufferStatus:
		r[2] = f.rxLength
		r[3] = 64
	case radio.OpReadBuffer:
		copy(r[len(r)-int(f.rxLength):], f.rxPayload)
	}
	return nil
}

func newFC(t *testing.T, dio1 gpio.PinIn) (*link.FC, *fakeTransceiver) {
	t.Helper()
	tr := &fakeTransceiver{}
	dev := radio.New(tr, nil, dio1, radio.Options{
		TxPacketSize: link.DownlinkPacketSize,
		RxPacketSize: link.UplinkPacketSize,
		InitFreqHz:   866_750_000,
		TxTimeoutMS:  link.TxTimeoutMS,
	})
	fc := link.NewFC(dev, nil)
	fc.Tick(0)
	require.Equal(t, radio.Idle, dev.Phase())
	return fc, tr
}

func newGCS(t *testing.T, dio1 gpio.PinIn) (*link.GCS, *fakeTransceiver) {
	t.Helper()
	tr := &fakeTransceiver{}
	dev := radio.New(tr, nil, dio1, radio.Options{
		TxPacketSize: link.UplinkPacketSize,
		RxPacketSize: link.DownlinkPacketSize,
		InitFreqHz:   863_250_000,
		TxTimeoutMS:  link.TxTimeoutMS,
	})
	gcs := link.NewGCS(dev, nil)
	gcs.Tick(0)
	require.Equal(t, radio.Idle, dev.Phase())
	return gcs, tr
}

func TestFreqAtRepeatsEveryFullHopCycle(t *testing.T) {
	const cycle = link.MsgInterval * 14
	for tTick := uint32(0); tTick < 1000; tTick++ {
		assert.Equal(t, link.FreqAt(tTick), link.FreqAt(tTick+cycle), "tick %d", tTick)
	}
}

func TestFreqAtCoversEveryChannelOncePerCycle(t *testing.T) {
	seen := map[uint32]bool{}
	for i := 0; i < 14; i++ {
		seen[uint32(link.FreqAt(uint32(i)*link.MsgInterval))] = true
	}
	assert.Len(t, seen, 14)
}

func TestIsUplinkWindowFirstOnlyIsOneMillisecondPer200(t *testing.T) {
	count := 0
	for tTick := uint32(0); tTick < 2000; tTick++ {
		if link.IsUplinkWindow(tTick, true) {
			count++
			assert.Equal(t, uint32(100), tTick%link.UplinkInterval)
		}
	}
	assert.Equal(t, 10, count)
}

func TestIsUplinkWindowWideCoversTheFull25msSlice(t *testing.T) {
	count := 0
	for tTick := uint32(0); tTick < 2000; tTick++ {
		if link.IsUplinkWindow(tTick, false) {
			count++
		}
	}
	// One MsgInterval-wide listening slice per 200ms period.
	assert.Equal(t, 250, count)

	// The slice is consecutive: every ms of [100, 125) and nothing adjacent.
	assert.False(t, link.IsUplinkWindow(99, false))
	for tTick := uint32(100); tTick < 125; tTick++ {
		assert.True(t, link.IsUplinkWindow(tTick, false), "tick %d", tTick)
	}
	assert.False(t, link.IsUplinkWindow(125, false))
}

func TestFCColdStartEntersIdleWithinFiveTicks(t *testing.T) {
	fc, _ := newFCUnconfigured(t)
	for tTick := uint32(1); tTick <= 5; tTick++ {
		fc.Tick(tTick)
		if fc.Radio().Phase() == radio.Idle {
			return
		}
	}
	t.Fatal("FC never reached Idle")
}

func newFCUnconfigured(t *testing.T) (*link.FC, *fakeTransceiver) {
	t.Helper()
	tr := &fakeTransceiver{}
	dev := radio.New(tr, nil, nil, radio.Options{
		TxPacketSize: link.DownlinkPacketSize,
		RxPacketSize: link.UplinkPacketSize,
		InitFreqHz:   866_750_000,
		TxTimeoutMS:  link.TxTimeoutMS,
	})
	return link.NewFC(dev, nil), tr
}

func TestFCSendDownlinkTransmitsThenReturnsIdleAfterTimeout(t *testing.T) {
	fc, _ := newFC(t, nil)
	for tTick := uint32(1); tTick <= 1000; tTick++ {
		fc.Tick(tTick)
	}

	msg := &telemetry.TelemetryMainCompressed{TimeMS: 1000, Mode: telemetry.Armed}
	require.NoError(t, fc.SendDownlink(msg))
	assert.Equal(t, radio.Transmitting, fc.Radio().Phase())

	for tTick := uint32(1001); tTick < 1014; tTick++ {
		fc.Tick(tTick)
		assert.Equal(t, radio.Transmitting, fc.Radio().Phase(), "tick %d", tTick)
	}
	fc.Tick(1014)
	assert.Equal(t, radio.Idle, fc.Radio().Phase())
}

// advanceAuthTo replicates the FC's own hash-chain advance schedule on an
// independent Authenticator seeded with the same key, returning the digest
// captured at the last advance at or before upTo.
func advanceAuthTo(upTo uint32) uint64 {
	ref := link.NewAuthenticator(link.SiphashKey)
	var mac uint64
	for tTick := uint32(link.MsgInterval); tTick <= upTo; tTick += link.MsgInterval {
		mac = ref.Advance()
	}
	return mac
}

func TestFCAcceptsAnAuthenticatedUplinkWithAMatchingMAC(t *testing.T) {
	dio1 := &gpiotest.Pin{N: "DIO1"}
	fc, tr := newFC(t, dio1)

	mac := advanceAuthTo(100)
	cmd := telemetry.SetFlightModeAuth{Mode: telemetry.Armed, Mac: mac}
	frame, err := telemetry.MarshalUplink(cmd)
	require.NoError(t, err)

	dio1.L = gpio.High
	tr.rxLength = uint8(len(frame))
	tr.rxPayload = frame

	for tTick := uint32(1); tTick <= 100; tTick++ {
		fc.Tick(tTick)
	}

	accepted, ok := fc.AcceptedUplink()
	require.True(t, ok)
	assert.Equal(t, cmd, accepted)
}

func TestFCRejectsAReplayedMAC(t *testing.T) {
	dio1 := &gpiotest.Pin{N: "DIO1"}
	fc, tr := newFC(t, dio1)

	staleMac := advanceAuthTo(50)
	cmd := telemetry.SetFlightModeAuth{Mode: telemetry.Armed, Mac: staleMac}
	frame, err := telemetry.MarshalUplink(cmd)
	require.NoError(t, err)

	dio1.L = gpio.High
	tr.rxLength = uint8(len(frame))
	tr.rxPayload = frame

	for tTick := uint32(1); tTick <= 100; tTick++ {
		fc.Tick(tTick)
	}

	_, ok := fc.AcceptedUplink()
	assert.False(t, ok, "a MAC from two hash-chain steps ago must not verify")
}

func TestFCAcceptsAnUnauthenticatedRebootRegardless(t *testing.T) {
	dio1 := &gpiotest.Pin{N: "DIO1"}
	fc, tr := newFC(t, dio1)

	frame, err := telemetry.MarshalUplink(telemetry.Reboot{})
	require.NoError(t, err)

	dio1.L = gpio.High
	tr.rxLength = uint8(len(frame))
	tr.rxPayload = frame

	for tTick := uint32(1); tTick <= 100; tTick++ {
		fc.Tick(tTick)
	}

	accepted, ok := fc.AcceptedUplink()
	require.True(t, ok)
	assert.Equal(t, telemetry.Reboot{}, accepted)
}

func TestFCCrcErrorLeavesItListeningWithNoAcceptedCommand(t *testing.T) {
	dio1 := &gpiotest.Pin{N: "DIO1"}
	fc, tr := newFC(t, dio1)
	tr.crcErr = true

	dio1.L = gpio.High
	for tTick := uint32(1); tTick <= 100; tTick++ {
		fc.Tick(tTick)
	}

	_, ok := fc.AcceptedUplink()
	assert.False(t, ok)
	assert.Equal(t, radio.Idle, fc.Radio().Phase())
}

func TestGCSStaysOutOfContactUntilItReceivesADownlink(t *testing.T) {
	dio1 := &gpiotest.Pin{N: "DIO1"}
	gcs, _ := newGCS(t, dio1)

	for tTick := uint32(1); tTick < 500; tTick++ {
		gcs.Tick(tTick)
		assert.False(t, gcs.InContact(tTick), "tick %d", tTick)
	}
}

func TestGCSSweepsANewChannelEvery2000msWhileOutOfContact(t *testing.T) {
	tr := &fakeTransceiver{}
	rec := &spitest.Record{Conn: tr}
	dev := radio.New(rec, nil, nil, radio.Options{
		TxPacketSize: link.UplinkPacketSize,
		RxPacketSize: link.DownlinkPacketSize,
		InitFreqHz:   866_750_000,
		TxTimeoutMS:  link.TxTimeoutMS,
	})
	gcs := link.NewGCS(dev, nil)

	for tTick := uint32(0); tTick <= 8000; tTick++ {
		gcs.Tick(tTick)
	}

	var tunes [][]byte
	for _, op := range rec.Ops {
		if len(op.Write) > 0 && radio.OpCode(op.Write[0]) == radio.OpSetRfFrequency {
			tunes = append(tunes, op.Write[1:])
		}
	}
	// One tune during Configure, then one sweep at each of t=0, 2000, 4000,
	// 6000 and 8000.
	require.Len(t, tunes, 6)
	sweeps := tunes[1:]
	for i := 0; i < len(sweeps); i++ {
		for j := i + 1; j < len(sweeps); j++ {
			assert.NotEqual(t, sweeps[i], sweeps[j], "sweeps %d and %d landed on the same channel", i, j)
		}
	}
}

func TestGCSEntersContactAndEstimatesFCTimeFromADownlink(t *testing.T) {
	dio1 := &gpiotest.Pin{N: "DIO1"}
	gcs, tr := newGCS(t, dio1)

	downlink := &telemetry.TelemetryMainCompressed{TimeMS: 5000, Mode: telemetry.Armed}
	frame, err := telemetry.MarshalDownlink(downlink)
	require.NoError(t, err)

	const recvTick = 123
	for tTick := uint32(1); tTick < recvTick; tTick++ {
		gcs.Tick(tTick)
	}

	dio1.L = gpio.High
	tr.rxLength = uint8(len(frame))
	tr.rxPayload = frame
	gcs.Tick(recvTick)

	require.True(t, gcs.InContact(recvTick))
	got, ok := gcs.LastDownlink()
	require.True(t, ok)
	assert.Equal(t, downlink, got)
	assert.Equal(t, downlink.TimeMS+link.TxTimeoutMS, gcs.FCTime(recvTick))
}

func TestGCSTransmitsTheQueuedUplinkInItsOwnWindow(t *testing.T) {
	dio1 := &gpiotest.Pin{N: "DIO1"}
	gcs, tr := newGCS(t, dio1)

	downlink := &telemetry.TelemetryMainCompressed{TimeMS: 1000, Mode: telemetry.Armed}
	frame, err := telemetry.MarshalDownlink(downlink)
	require.NoError(t, err)
	dio1.L = gpio.High
	tr.rxLength = uint8(len(frame))
	tr.rxPayload = frame

	gcs.Tick(1)
	_, ok := gcs.LastDownlink()
	require.True(t, ok)

	gcs.QueueUplink(telemetry.Heartbeat{})
	tr.rxPayload = nil
	tr.rxLength = 0
	dio1.L = gpio.Low

	for tTick := uint32(2); tTick < 2000; tTick++ {
		gcs.Tick(tTick)
		if gcs.Radio().Phase() == radio.Transmitting {
			assert.True(t, link.IsUplinkWindow(gcs.FCTime(tTick)-5, true))
			return
		}
	}
	t.Fatal("GCS never transmitted its queued uplink")
}
