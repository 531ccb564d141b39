// Copyright 2024 The Apogee Link Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package telemetry

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/tudsat-rocket/apogeelink/codec"
)

// downlink tags. These are the wire contract and must never change once a
// message type has shipped.
const (
	tagTelemetryMain byte = iota
	tagTelemetryMainCompressed
	tagTelemetryRawSensors
	tagTelemetryRawSensorsCompressed
	tagTelemetryDiagnostics
	tagTelemetryGPS
	tagTelemetryGCS
	tagLog
	tagFlashContent
)

// DownlinkMessage is the tagged union of every message the FC can send.
type DownlinkMessage interface {
	// Time returns the millisecond timestamp the message was produced at.
	// FlashContent has no meaningful timestamp and returns 0.
	Time() uint32

	marshalPayload() []byte
}

// Quaternion is a unit orientation quaternion. Unlike the rest of the wire
// format this has no compressed counterpart of its own; TelemetryMain
// carries it in full precision and is not meant to cross the radio link.
type Quaternion struct {
	W, X, Y, Z float32
}

// TelemetryMain is the full-precision attitude/altitude snapshot. It is
// intentionally too large for the 24 byte downlink payload bound and is
// meant for a wired/USB diagnostic stream rather than the LoRa link;
// TelemetryMainCompressed is its on-air counterpart.
type TelemetryMain struct {
	TimeMS                uint32
	Mode                  FlightMode
	Orientation           *Quaternion // nil if no orientation estimate yet
	VerticalSpeed         float32
	VerticalAccel         float32
	VerticalAccelFiltered float32
	AltitudeBaro          float32
	AltitudeMax           float32
	Altitude              float32
}

func (m *TelemetryMain) Time() uint32 { return m.TimeMS }

func (m *TelemetryMain) marshalPayload() []byte {
	var buf bytes.Buffer
	buf.WriteByte(tagTelemetryMain)
	writeU32(&buf, m.TimeMS)
	buf.WriteByte(byte(m.Mode))
	if m.Orientation != nil {
		buf.WriteByte(1)
		writeF32(&buf, m.Orientation.W)
		writeF32(&buf, m.Orientation.X)
		writeF32(&buf, m.Orientation.Y)
		writeF32(&buf, m.Orientation.Z)
	} else {
		buf.WriteByte(0)
	}
	writeF32(&buf, m.VerticalSpeed)
	writeF32(&buf, m.VerticalAccel)
	writeF32(&buf, m.VerticalAccelFiltered)
	writeF32(&buf, m.AltitudeBaro)
	writeF32(&buf, m.AltitudeMax)
	writeF32(&buf, m.Altitude)
	return buf.Bytes()
}

func unmarshalTelemetryMain(body []byte) (*TelemetryMain, error) {
	r := newReader(body)
	m := &TelemetryMain{}
	m.TimeMS = r.u32()
	m.Mode = FlightMode(r.u8())
	if r.u8() != 0 {
		m.Orientation = &Quaternion{W: r.f32(), X: r.f32(), Y: r.f32(), Z: r.f32()}
	}
	m.VerticalSpeed = r.f32()
	m.VerticalAccel = r.f32()
	m.VerticalAccelFiltered = r.f32()
	m.AltitudeBaro = r.f32()
	m.AltitudeMax = r.f32()
	m.Altitude = r.f32()
	return m, r.err
}

// TelemetryMainCompressed is the on-air counterpart of TelemetryMain: f8
// floats, a quantized orientation, and u16 altitudes. It fits well within
// the 24 byte downlink payload bound.
type TelemetryMainCompressed struct {
	TimeMS                uint32
	Mode                  FlightMode
	Orientation           [4]uint8 // quantized quaternion components
	VerticalSpeed         codec.F8
	VerticalAccel         codec.F8
	VerticalAccelFiltered codec.F8
	AltitudeBaro          uint16
	AltitudeMax           uint16
	Altitude              uint16
}

func (m *TelemetryMainCompressed) Time() uint32 { return m.TimeMS }

func (m *TelemetryMainCompressed) marshalPayload() []byte {
	var buf bytes.Buffer
	buf.WriteByte(tagTelemetryMainCompressed)
	writeU32(&buf, m.TimeMS)
	buf.WriteByte(byte(m.Mode))
	buf.Write(m.Orientation[:])
	buf.WriteByte(byte(m.VerticalSpeed))
	buf.WriteByte(byte(m.VerticalAccel))
	buf.WriteByte(byte(m.VerticalAccelFiltered))
	writeU16(&buf, m.AltitudeBaro)
	writeU16(&buf, m.AltitudeMax)
	writeU16(&buf, m.Altitude)
	return buf.Bytes()
}

func unmarshalTelemetryMainCompressed(body []byte) (*TelemetryMainCompressed, error) {
	r := newReader(body)
	m := &TelemetryMainCompressed{}
	m.TimeMS = r.u32()
	m.Mode = FlightMode(r.u8())
	copy(m.Orientation[:], r.bytes(4))
	m.VerticalSpeed = codec.F8(r.u8())
	m.VerticalAccel = codec.F8(r.u8())
	m.VerticalAccelFiltered = codec.F8(r.u8())
	m.AltitudeBaro = r.u16()
	m.AltitudeMax = r.u16()
	m.Altitude = r.u16()
	return m, r.err
}

// vec3f8 is three f8 values, used for the compressed IMU axes.
type vec3f8 [3]codec.F8

// TelemetryRawSensors is the full-precision raw IMU/barometer snapshot,
// meant for a wired diagnostic stream rather than the radio link.
type TelemetryRawSensors struct {
	TimeMS          uint32
	Gyro            [3]float32
	Accelerometer1  [3]float32
	Accelerometer2  [3]float32
	Magnetometer    [3]float32
	TemperatureBaro float32
	PressureBaro    float32
}

func (m *TelemetryRawSensors) Time() uint32 { return m.TimeMS }

func (m *TelemetryRawSensors) marshalPayload() []byte {
	var buf bytes.Buffer
	buf.WriteByte(tagTelemetryRawSensors)
	writeU32(&buf, m.TimeMS)
	for _, v := range [][3]float32{m.Gyro, m.Accelerometer1, m.Accelerometer2, m.Magnetometer} {
		writeF32(&buf, v[0])
		writeF32(&buf, v[1])
		writeF32(&buf, v[2])
	}
	writeF32(&buf, m.TemperatureBaro)
	writeF32(&buf, m.PressureBaro)
	return buf.Bytes()
}

func unmarshalTelemetryRawSensors(body []byte) (*TelemetryRawSensors, error) {
	r := newReader(body)
	m := &TelemetryRawSensors{}
	m.TimeMS = r.u32()
	for _, v := range []*[3]float32{&m.Gyro, &m.Accelerometer1, &m.Accelerometer2, &m.Magnetometer} {
		v[0], v[1], v[2] = r.f32(), r.f32(), r.f32()
	}
	m.TemperatureBaro = r.f32()
	m.PressureBaro = r.f32()
	return m, r.err
}

// TelemetryRawSensorsCompressed fits within the 24 byte downlink bound.
type TelemetryRawSensorsCompressed struct {
	TimeMS          uint32
	Gyro            vec3f8
	Accelerometer1  vec3f8
	Accelerometer2  vec3f8
	Magnetometer    vec3f8
	TemperatureBaro int8
	PressureBaro    uint16
}

func (m *TelemetryRawSensorsCompressed) Time() uint32 { return m.TimeMS }

func (m *TelemetryRawSensorsCompressed) marshalPayload() []byte {
	var buf bytes.Buffer
	buf.WriteByte(tagTelemetryRawSensorsCompressed)
	writeU32(&buf, m.TimeMS)
	for _, v := range []vec3f8{m.Gyro, m.Accelerometer1, m.Accelerometer2, m.Magnetometer} {
		buf.WriteByte(byte(v[0]))
		buf.WriteByte(byte(v[1]))
		buf.WriteByte(byte(v[2]))
	}
	buf.WriteByte(byte(m.TemperatureBaro))
	writeU16(&buf, m.PressureBaro)
	return buf.Bytes()
}

func unmarshalTelemetryRawSensorsCompressed(body []byte) (*TelemetryRawSensorsCompressed, error) {
	r := newReader(body)
	m := &TelemetryRawSensorsCompressed{}
	m.TimeMS = r.u32()
	for _, v := range []*vec3f8{&m.Gyro, &m.Accelerometer1, &m.Accelerometer2, &m.Magnetometer} {
		v[0], v[1], v[2] = codec.F8(r.u8()), codec.F8(r.u8()), codec.F8(r.u8())
	}
	m.TemperatureBaro = int8(r.u8())
	m.PressureBaro = r.u16()
	return m, r.err
}

// TelemetryDiagnostics carries system health: power, CPU and link quality.
type TelemetryDiagnostics struct {
	TimeMS           uint32
	CPUUtilization   uint8
	HeapUtilization  uint8
	TemperatureCore  int8
	CPUVoltageMV     uint16
	BatteryVoltageMV uint16
	ArmVoltageMV     uint16
	CurrentMA        uint16
	LoraRSSI         uint8
	AltitudeGround   uint16
}

func (m *TelemetryDiagnostics) Time() uint32 { return m.TimeMS }

func (m *TelemetryDiagnostics) marshalPayload() []byte {
	var buf bytes.Buffer
	buf.WriteByte(tagTelemetryDiagnostics)
	writeU32(&buf, m.TimeMS)
	buf.WriteByte(m.CPUUtilization)
	buf.WriteByte(m.HeapUtilization)
	buf.WriteByte(byte(m.TemperatureCore))
	writeU16(&buf, m.CPUVoltageMV)
	writeU16(&buf, m.BatteryVoltageMV)
	writeU16(&buf, m.ArmVoltageMV)
	writeU16(&buf, m.CurrentMA)
	buf.WriteByte(m.LoraRSSI)
	writeU16(&buf, m.AltitudeGround)
	return buf.Bytes()
}

func unmarshalTelemetryDiagnostics(body []byte) (*TelemetryDiagnostics, error) {
	r := newReader(body)
	m := &TelemetryDiagnostics{}
	m.TimeMS = r.u32()
	m.CPUUtilization = r.u8()
	m.HeapUtilization = r.u8()
	m.TemperatureCore = int8(r.u8())
	m.CPUVoltageMV = r.u16()
	m.BatteryVoltageMV = r.u16()
	m.ArmVoltageMV = r.u16()
	m.CurrentMA = r.u16()
	m.LoraRSSI = r.u8()
	m.AltitudeGround = r.u16()
	return m, r.err
}

// TelemetryGPS carries a compressed GPS fix.
type TelemetryGPS struct {
	TimeMS       uint32
	FixAndSats   uint8 // low nibble: fix type, high nibble: satellite count
	HDOP         uint16
	Latitude     [3]byte
	Longitude    [3]byte
	AltitudeASL  uint16
	FlashPointer uint16
}

func (m *TelemetryGPS) Time() uint32 { return m.TimeMS }

func (m *TelemetryGPS) marshalPayload() []byte {
	var buf bytes.Buffer
	buf.WriteByte(tagTelemetryGPS)
	writeU32(&buf, m.TimeMS)
	buf.WriteByte(m.FixAndSats)
	writeU16(&buf, m.HDOP)
	buf.Write(m.Latitude[:])
	buf.Write(m.Longitude[:])
	writeU16(&buf, m.AltitudeASL)
	writeU16(&buf, m.FlashPointer)
	return buf.Bytes()
}

func unmarshalTelemetryGPS(body []byte) (*TelemetryGPS, error) {
	r := newReader(body)
	m := &TelemetryGPS{}
	m.TimeMS = r.u32()
	m.FixAndSats = r.u8()
	m.HDOP = r.u16()
	copy(m.Latitude[:], r.bytes(3))
	copy(m.Longitude[:], r.bytes(3))
	m.AltitudeASL = r.u16()
	m.FlashPointer = r.u16()
	return m, r.err
}

// TelemetryGCS carries link quality metrics measured on the ground station.
type TelemetryGCS struct {
	TimeMS         uint32
	LoraRSSI       uint8
	LoraRSSISignal uint8
	LoraSNR        uint8
}

func (m *TelemetryGCS) Time() uint32 { return m.TimeMS }

func (m *TelemetryGCS) marshalPayload() []byte {
	var buf bytes.Buffer
	buf.WriteByte(tagTelemetryGCS)
	writeU32(&buf, m.TimeMS)
	buf.WriteByte(m.LoraRSSI)
	buf.WriteByte(m.LoraRSSISignal)
	buf.WriteByte(m.LoraSNR)
	return buf.Bytes()
}

func unmarshalTelemetryGCS(body []byte) (*TelemetryGCS, error) {
	r := newReader(body)
	m := &TelemetryGCS{}
	m.TimeMS = r.u32()
	m.LoraRSSI = r.u8()
	m.LoraRSSISignal = r.u8()
	m.LoraSNR = r.u8()
	return m, r.err
}

// Log is a free-form diagnostic log line, tagged with a source location and
// severity. It is not bounded to the 24 byte radio payload since it is
// also carried over wired diagnostic streams.
type Log struct {
	TimeMS   uint32
	Location string
	Level    LogLevel
	Text     string
}

func (m *Log) Time() uint32 { return m.TimeMS }

func (m *Log) marshalPayload() []byte {
	var buf bytes.Buffer
	buf.WriteByte(tagLog)
	writeU32(&buf, m.TimeMS)
	writeString(&buf, m.Location)
	buf.WriteByte(byte(m.Level))
	writeString(&buf, m.Text)
	return buf.Bytes()
}

func unmarshalLog(body []byte) (*Log, error) {
	r := newReader(body)
	m := &Log{}
	m.TimeMS = r.u32()
	m.Location = r.str()
	m.Level = LogLevel(r.u8())
	m.Text = r.str()
	return m, r.err
}

// FlashContent carries a chunk of flight-log flash storage back in response
// to a ReadFlash request. Flash dumps are timestamp-less bulk data, so Time
// always reads as 0.
type FlashContent struct {
	Addr uint32
	Data []byte
}

func (m *FlashContent) Time() uint32 { return 0 }

func (m *FlashContent) marshalPayload() []byte {
	var buf bytes.Buffer
	buf.WriteByte(tagFlashContent)
	writeU32(&buf, m.Addr)
	writeBytes(&buf, m.Data)
	return buf.Bytes()
}

func unmarshalFlashContent(body []byte) (*FlashContent, error) {
	r := newReader(body)
	m := &FlashContent{}
	m.Addr = r.u32()
	m.Data = r.byteSlice()
	return m, r.err
}

// MarshalDownlink wraps msg in the framed wire envelope.
func MarshalDownlink(msg DownlinkMessage) ([]byte, error) {
	return codec.WriteFrame(msg.marshalPayload())
}

// UnmarshalDownlink decodes a DownlinkMessage from a framing payload (the
// bytes between the length prefix and the end of the frame).
func UnmarshalDownlink(body []byte) (DownlinkMessage, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("telemetry: empty downlink payload")
	}
	tag, rest := body[0], body[1:]
	switch tag {
	case tagTelemetryMain:
		return unmarshalTelemetryMain(rest)
	case tagTelemetryMainCompressed:
		return unmarshalTelemetryMainCompressed(rest)
	case tagTelemetryRawSensors:
		return unmarshalTelemetryRawSensors(rest)
	case tagTelemetryRawSensorsCompressed:
		return unmarshalTelemetryRawSensorsCompressed(rest)
	case tagTelemetryDiagnostics:
		return unmarshalTelemetryDiagnostics(rest)
	case tagTelemetryGPS:
		return unmarshalTelemetryGPS(rest)
	case tagTelemetryGCS:
		return unmarshalTelemetryGCS(rest)
	case tagLog:
		return unmarshalLog(rest)
	case tagFlashContent:
		return unmarshalFlashContent(rest)
	default:
		return nil, fmt.Errorf("telemetry: unknown downlink tag %d", tag)
	}
}

// ReadValidDownlink decodes a DownlinkMessage at the start of buf without
// modifying it.
func ReadValidDownlink(buf []byte) (DownlinkMessage, bool) {
	payload, ok := codec.ReadValid(buf)
	if !ok {
		return nil, false
	}
	msg, err := UnmarshalDownlink(payload)
	if err != nil {
		return nil, false
	}
	return msg, true
}

// PopValidDownlink scans buf for a frame, decodes and consumes it, and
// returns the remaining bytes.
func PopValidDownlink(buf []byte) (msg DownlinkMessage, rest []byte, ok bool) {
	payload, rest, ok := codec.PopValid(buf)
	if !ok {
		return nil, rest, false
	}
	decoded, err := UnmarshalDownlink(payload)
	if err != nil {
		return nil, rest, false
	}
	return decoded, rest, true
}

func writeU16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func writeF32(buf *bytes.Buffer, v float32) {
	writeU32(buf, math.Float32bits(v))
}

func writeString(buf *bytes.Buffer, s string) {
	writeBytes(buf, []byte(s))
}

func writeBytes(buf *bytes.Buffer, b []byte) {
	writeU16(buf, uint16(len(b)))
	buf.Write(b)
}

// reader is a small cursor over a byte slice that records the first error
// encountered and becomes a no-op after that, so callers can chain field
// reads without checking after every one.
type reader struct {
	buf []byte
	pos int
	err error
}

func newReader(buf []byte) *reader {
	return &reader{buf: buf}
}

func (r *reader) bytes(n int) []byte {
	if r.err != nil {
		return make([]byte, n)
	}
	if r.pos+n > len(r.buf) {
		r.err = fmt.Errorf("telemetry: short payload")
		return make([]byte, n)
	}
	out := r.buf[r.pos : r.pos+n]
	r.pos += n
	return out
}

func (r *reader) u8() uint8 {
	b := r.bytes(1)
	return b[0]
}

func (r *reader) u16() uint16 {
	return binary.LittleEndian.Uint16(r.bytes(2))
}

func (r *reader) u32() uint32 {
	return binary.LittleEndian.Uint32(r.bytes(4))
}

func (r *reader) u64() uint64 {
	return binary.LittleEndian.Uint64(r.bytes(8))
}

func (r *reader) f32() float32 {
	return math.Float32frombits(r.u32())
}

func (r *reader) byteSlice() []byte {
	n := int(r.u16())
	return append([]byte(nil), r.bytes(n)...)
}

func (r *reader) str() string {
	return string(r.byteSlice())
}
