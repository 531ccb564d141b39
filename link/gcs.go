// Copyright 2024 The Apogee Link Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package link

import (
	"errors"

	"go.uber.org/zap"

	"github.com/tudsat-rocket/apogeelink/conn/physic"
	"github.com/tudsat-rocket/apogeelink/radio"
	"github.com/tudsat-rocket/apogeelink/telemetry"
)

// GCS is the ground-control-station side of the link: it tracks the FC's
// clock without any explicit time exchange, follows the FC's channel
// schedule once in contact, and transmits one queued uplink command per
// uplink window.
type GCS struct {
	radio *radio.Dev
	log   *zap.Logger

	fcTimeOffset        int64
	lastMessageReceived uint32

	queuedUplink telemetry.UplinkMessage

	lastDownlink telemetry.DownlinkMessage
	hasDownlink  bool
}

// NewGCS returns a GCS driving dev. If log is nil a no-op logger is used.
func NewGCS(dev *radio.Dev, log *zap.Logger) *GCS {
	if log == nil {
		log = zap.NewNop()
	}
	return &GCS{radio: dev, log: log}
}

// Radio returns the underlying transceiver driver.
func (g *GCS) Radio() *radio.Dev { return g.radio }

// QueueUplink sets the command to send at the next uplink window,
// replacing anything previously queued and not yet sent. This is the only
// operator-visible surface of the link core.
func (g *GCS) QueueUplink(msg telemetry.UplinkMessage) {
	g.queuedUplink = msg
}

// LastDownlink returns the downlink message received this tick, if any.
// The value is cleared at the start of every Tick.
func (g *GCS) LastDownlink() (telemetry.DownlinkMessage, bool) {
	return g.lastDownlink, g.hasDownlink
}

// InContact reports whether a downlink has arrived within the last 5000ms.
func (g *GCS) InContact(t uint32) bool {
	return g.lastMessageReceived > 0 && t-g.lastMessageReceived < outOfContactMS
}

// FCTime projects the FC's clock at GCS time t, using the offset estimated
// from the most recently received downlink timestamp.
func (g *GCS) FCTime(t uint32) uint32 {
	return uint32(int64(t) + g.fcTimeOffset)
}

// Tick runs one millisecond of GCS scheduling: radio maintenance, contact
// tracking, channel following (or slow sweep while out of contact), the
// single uplink transmission per window, and downlink receive.
func (g *GCS) Tick(t uint32) {
	g.lastDownlink = nil
	g.hasDownlink = false

	g.radio.TickCommon(t)
	if g.radio.Phase() != radio.Idle {
		return
	}

	inContact := g.InContact(t)
	fcTime := g.FCTime(t)

	if !inContact && t%sweepIntervalMS == 0 {
		i := int((t / sweepIntervalMS) % uint32(len(Channels)))
		if err := g.hopAndRearm(Channels[i]); err != nil {
			g.log.Error("failed to sweep channels", zap.Error(err))
		}
	}

	if inContact && fcTime%MsgInterval == 0 {
		if err := g.hopAndRearm(FreqAt(fcTime)); err != nil {
			g.log.Error("failed to follow fc channel hop", zap.Error(err))
		}
	}

	if inContact && IsUplinkWindow(fcTime-5, true) {
		g.sendUplink()
		return
	}

	g.receiveDownlink(t)
}

func (g *GCS) hopAndRearm(freq physic.Frequency) error {
	if err := g.radio.SetRfFrequency(hz(freq)); err != nil {
		return err
	}
	return g.radio.SwitchToRX()
}

func (g *GCS) sendUplink() {
	msg := g.queuedUplink
	if msg == nil {
		msg = telemetry.Heartbeat{}
	} else {
		g.queuedUplink = nil
	}

	frame, err := telemetry.MarshalUplink(msg)
	if err != nil {
		g.log.Error("failed to marshal uplink message", zap.Error(err))
		return
	}
	if err := g.radio.SendPacket(frame); err != nil {
		g.log.Error("failed to send uplink message", zap.Error(err))
	}
}

func (g *GCS) receiveDownlink(t uint32) {
	raw, err := g.radio.ReceiveData()
	if err != nil {
		if !errors.Is(err, radio.ErrCrcMismatch) && !errors.Is(err, radio.ErrBusy) {
			g.log.Error("error receiving downlink", zap.Error(err))
		}
		return
	}
	if raw == nil {
		return
	}

	msg, ok := telemetry.ReadValidDownlink(raw)
	if !ok {
		g.log.Error("failed to decode downlink message", zap.Binary("bytes", raw))
		return
	}

	g.lastMessageReceived = t
	g.fcTimeOffset = int64(msg.Time()) - int64(t) + int64(TxTimeoutMS)

	if tm, ok := msg.(*telemetry.TelemetryMainCompressed); ok {
		g.radio.SetHighPowerDesired(tm.Mode.HighPower())
	}

	g.lastDownlink = msg
	g.hasDownlink = true
}
