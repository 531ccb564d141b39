// Copyright 2024 The Apogee Link Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package siphash implements SipHash-2-4 (2 compression rounds, 4
// finalization rounds) as a streaming, peekable hash.
//
// The uplink authenticator needs to repeatedly compute the digest of
// everything written so far without closing the stream, then keep feeding
// more data into the same running state. The standard library's hash.Hash64
// contract does not guarantee that Sum is non-destructive, so this package
// implements the primitive directly rather than adapting one of the several
// one-shot SipHash packages in the wider Go ecosystem.
package siphash

import "encoding/binary"

const (
	cRounds = 2
	dRounds = 4
)

// Hash is a SipHash-2-4 state that can be queried with Sum64 without ending
// the stream, mirroring the behavior the hash chain authenticator depends
// on: peek the current digest, then absorb it as the next input.
type Hash struct {
	v0, v1, v2, v3 uint64
	buf            [8]byte
	bufLen         int
	length         uint8 // total bytes written, mod 256, folded into the final block
}

// New returns a Hash keyed with a 16 byte key.
func New(key [16]byte) *Hash {
	k0 := binary.LittleEndian.Uint64(key[0:8])
	k1 := binary.LittleEndian.Uint64(key[8:16])
	h := &Hash{
		v0: k0 ^ 0x736f6d6570736575,
		v1: k1 ^ 0x646f72616e646f6d,
		v2: k0 ^ 0x6c7967656e657261,
		v3: k1 ^ 0x7465646279746573,
	}
	return h
}

// Write absorbs bytes into the running hash state. It never returns an
// error.
func (h *Hash) Write(p []byte) (int, error) {
	n := len(p)
	h.length += uint8(n)
	for len(p) > 0 {
		if h.bufLen == 0 && len(p) >= 8 {
			h.compress(binary.LittleEndian.Uint64(p))
			p = p[8:]
			continue
		}
		c := copy(h.buf[h.bufLen:], p)
		h.bufLen += c
		p = p[c:]
		if h.bufLen == 8 {
			h.compress(binary.LittleEndian.Uint64(h.buf[:]))
			h.bufLen = 0
		}
	}
	return n, nil
}

// WriteUint64 absorbs a single little-endian 64 bit word. It is equivalent
// to Write of its 8 byte encoding but avoids the allocation.
func (h *Hash) WriteUint64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	_, _ = h.Write(b[:])
}

// Sum64 returns the digest of everything written so far without mutating
// the running state: a later Write continues from exactly where it left
// off, as if Sum64 had never been called.
func (h *Hash) Sum64() uint64 {
	v0, v1, v2, v3 := h.v0, h.v1, h.v2, h.v3

	var last [8]byte
	copy(last[:], h.buf[:h.bufLen])
	last[7] = h.length
	m := binary.LittleEndian.Uint64(last[:])

	v3 ^= m
	for i := 0; i < cRounds; i++ {
		v0, v1, v2, v3 = sipRound(v0, v1, v2, v3)
	}
	v0 ^= m

	v2 ^= 0xff
	for i := 0; i < dRounds; i++ {
		v0, v1, v2, v3 = sipRound(v0, v1, v2, v3)
	}
	return v0 ^ v1 ^ v2 ^ v3
}

func (h *Hash) compress(m uint64) {
	h.v3 ^= m
	for i := 0; i < cRounds; i++ {
		h.v0, h.v1, h.v2, h.v3 = sipRound(h.v0, h.v1, h.v2, h.v3)
	}
	h.v0 ^= m
}

func sipRound(v0, v1, v2, v3 uint64) (uint64, uint64, uint64, uint64) {
	v0 += v1
	v1 = rotl(v1, 13)
	v1 ^= v0
	v0 = rotl(v0, 32)
	v2 += v3
	v3 = rotl(v3, 16)
	v3 ^= v2
	v0 += v3
	v3 = rotl(v3, 21)
	v3 ^= v0
	v2 += v1
	v1 = rotl(v1, 17)
	v1 ^= v2
	v2 = rotl(v2, 32)
	return v0, v1, v2, v3
}

func rotl(x uint64, b uint) uint64 {
	return (x << b) | (x >> (64 - b))
}
