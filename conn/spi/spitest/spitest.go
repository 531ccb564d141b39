// Copyright 2024 The Apogee Link Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package spitest is meant to be used to test drivers over a fake SPI bus.
package spitest

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/tudsat-rocket/apogeelink/conn"
	"github.com/tudsat-rocket/apogeelink/conn/spi"
)

// IO is one transaction recorded by Record or expected by Playback.
type IO struct {
	Write []byte
	Read  []byte
}

// Record implements spi.Conn and records every transaction made against it,
// optionally forwarding it to an underlying Conn first.
//
// This is used to assert the exact opcode/parameter byte sequence the radio
// driver emits, since the LLCC68 command set has no acknowledgement beyond
// the bytes that come back on MISO.
type Record struct {
	Conn conn.Conn // Conn can be nil if only writes are being recorded.
	Lock sync.Mutex
	Ops  []IO
}

func (r *Record) String() string {
	return "record"
}

// Tx implements spi.Conn.
func (r *Record) Tx(w, read []byte) error {
	r.Lock.Lock()
	defer r.Lock.Unlock()
	if r.Conn != nil {
		if err := r.Conn.Tx(w, read); err != nil {
			return err
		}
	}
	io := IO{Write: make([]byte, len(w))}
	copy(io.Write, w)
	if len(read) != 0 {
		io.Read = make([]byte, len(read))
		copy(io.Read, read)
	}
	r.Ops = append(r.Ops, io)
	return nil
}

// TxPackets implements spi.Conn.
func (r *Record) TxPackets(p []spi.Packet) error {
	for _, pkt := range p {
		if err := r.Tx(pkt.W, pkt.R); err != nil {
			return err
		}
	}
	return nil
}

// Playback implements spi.Conn and plays back a recorded I/O flow.
//
// Each Tx call consumes the next entry of Ops and asserts the bytes written
// match exactly, then copies the recorded Read bytes (if any) into the
// caller's read buffer.
type Playback struct {
	sync.Mutex
	Ops   []IO
	Count int
}

func (p *Playback) String() string {
	return "playback"
}

// Tx implements spi.Conn.
func (p *Playback) Tx(w, read []byte) error {
	p.Lock()
	defer p.Unlock()
	if len(p.Ops) == 0 {
		return errors.New("spitest: no more ops to playback")
	}
	if !bytes.Equal(p.Ops[0].Write, w) {
		return fmt.Errorf("spitest: unexpected write, expected %#v, got %#v", p.Ops[0].Write, w)
	}
	if len(read) != 0 {
		if len(p.Ops[0].Read) != len(read) {
			return fmt.Errorf("spitest: unexpected read buffer length %d, expected %d", len(read), len(p.Ops[0].Read))
		}
		copy(read, p.Ops[0].Read)
	}
	p.Ops = p.Ops[1:]
	p.Count++
	return nil
}

// TxPackets implements spi.Conn.
func (p *Playback) TxPackets(pkts []spi.Packet) error {
	for _, pkt := range pkts {
		if err := p.Tx(pkt.W, pkt.R); err != nil {
			return err
		}
	}
	return nil
}

var _ spi.Conn = &Record{}
var _ spi.Conn = &Playback{}
