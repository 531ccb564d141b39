// Copyright 2024 The Apogee Link Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package telemetry

import (
	"bytes"
	"fmt"

	"github.com/tudsat-rocket/apogeelink/codec"
)

const (
	tagHeartbeat byte = iota
	tagReboot
	tagRebootAuth
	tagRebootToBootloader
	tagSetFlightMode
	tagSetFlightModeAuth
	tagReadFlash
	tagEraseFlash
	tagEraseFlashAuth
)

// UplinkMessage is the tagged union of every command the GCS can send.
// All variants fit within the 14 byte uplink payload bound.
type UplinkMessage interface {
	marshalPayload() []byte
}

// Authenticated reports whether this message carries a hash-chain MAC that
// the FC must verify before acting on it, and returns that MAC.
type Authenticated interface {
	MAC() uint64
}

// Heartbeat keeps the uplink window occupied when no command is queued.
type Heartbeat struct{}

func (Heartbeat) marshalPayload() []byte { return []byte{tagHeartbeat} }

// Reboot requests an unconditional, unauthenticated restart. Kept for
// legacy ground tooling that predates the authenticated variant.
type Reboot struct{}

func (Reboot) marshalPayload() []byte { return []byte{tagReboot} }

// RebootAuth requests a restart, authenticated against the FC's hash
// chain.
type RebootAuth struct {
	Mac uint64
}

func (m RebootAuth) MAC() uint64 { return m.Mac }

func (m RebootAuth) marshalPayload() []byte {
	var buf bytes.Buffer
	buf.WriteByte(tagRebootAuth)
	writeU64(&buf, m.Mac)
	return buf.Bytes()
}

// RebootToBootloader requests a restart directly into the bootloader.
type RebootToBootloader struct{}

func (RebootToBootloader) marshalPayload() []byte { return []byte{tagRebootToBootloader} }

// SetFlightMode requests an unauthenticated flight mode transition.
type SetFlightMode struct {
	Mode FlightMode
}

func (m SetFlightMode) marshalPayload() []byte {
	return []byte{tagSetFlightMode, byte(m.Mode)}
}

// SetFlightModeAuth requests an authenticated flight mode transition.
type SetFlightModeAuth struct {
	Mode FlightMode
	Mac  uint64
}

func (m SetFlightModeAuth) MAC() uint64 { return m.Mac }

func (m SetFlightModeAuth) marshalPayload() []byte {
	var buf bytes.Buffer
	buf.WriteByte(tagSetFlightModeAuth)
	buf.WriteByte(byte(m.Mode))
	writeU64(&buf, m.Mac)
	return buf.Bytes()
}

// ReadFlash requests a chunk of flash storage starting at Addr.
type ReadFlash struct {
	Addr uint32
	Len  uint32
}

func (m ReadFlash) marshalPayload() []byte {
	var buf bytes.Buffer
	buf.WriteByte(tagReadFlash)
	writeU32(&buf, m.Addr)
	writeU32(&buf, m.Len)
	return buf.Bytes()
}

// EraseFlash requests an unauthenticated flash erase.
type EraseFlash struct{}

func (EraseFlash) marshalPayload() []byte { return []byte{tagEraseFlash} }

// EraseFlashAuth requests an authenticated flash erase.
type EraseFlashAuth struct {
	Mac uint64
}

func (m EraseFlashAuth) MAC() uint64 { return m.Mac }

func (m EraseFlashAuth) marshalPayload() []byte {
	var buf bytes.Buffer
	buf.WriteByte(tagEraseFlashAuth)
	writeU64(&buf, m.Mac)
	return buf.Bytes()
}

// MarshalUplink wraps msg in the framed wire envelope.
func MarshalUplink(msg UplinkMessage) ([]byte, error) {
	return codec.WriteFrame(msg.marshalPayload())
}

// UnmarshalUplink decodes an UplinkMessage from a framing payload.
func UnmarshalUplink(body []byte) (UplinkMessage, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("telemetry: empty uplink payload")
	}
	tag, rest := body[0], body[1:]
	r := newReader(rest)
	switch tag {
	case tagHeartbeat:
		return Heartbeat{}, nil
	case tagReboot:
		return Reboot{}, nil
	case tagRebootAuth:
		m := RebootAuth{Mac: r.u64()}
		return m, r.err
	case tagRebootToBootloader:
		return RebootToBootloader{}, nil
	case tagSetFlightMode:
		m := SetFlightMode{Mode: FlightMode(r.u8())}
		return m, r.err
	case tagSetFlightModeAuth:
		m := SetFlightModeAuth{Mode: FlightMode(r.u8()), Mac: r.u64()}
		return m, r.err
	case tagReadFlash:
		m := ReadFlash{Addr: r.u32(), Len: r.u32()}
		return m, r.err
	case tagEraseFlash:
		return EraseFlash{}, nil
	case tagEraseFlashAuth:
		m := EraseFlashAuth{Mac: r.u64()}
		return m, r.err
	default:
		return nil, fmt.Errorf("telemetry: unknown uplink tag %d", tag)
	}
}

// ReadValidUplink decodes an UplinkMessage at the start of buf without
// modifying it.
func ReadValidUplink(buf []byte) (UplinkMessage, bool) {
	payload, ok := codec.ReadValid(buf)
	if !ok {
		return nil, false
	}
	msg, err := UnmarshalUplink(payload)
	if err != nil {
		return nil, false
	}
	return msg, true
}

// PopValidUplink scans buf for a frame, decodes and consumes it, and
// returns the remaining bytes.
func PopValidUplink(buf []byte) (msg UplinkMessage, rest []byte, ok bool) {
	payload, rest, ok := codec.PopValid(buf)
	if !ok {
		return nil, rest, false
	}
	decoded, err := UnmarshalUplink(payload)
	if err != nil {
		return nil, rest, false
	}
	return decoded, rest, true
}
