// Copyright 2024 The Apogee Link Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package link

import "github.com/tudsat-rocket/apogeelink/internal/siphash"

// Authenticator is the FC's rolling hash-chain MAC source. It exposes
// exactly the two operations the scheduler needs and never lets the
// underlying hasher state leak: Advance captures and rolls the chain
// forward once per MsgInterval boundary, Verify checks a MAC against the
// two digests a genuine sender could have used.
type Authenticator struct {
	h        *siphash.Hash
	lastHash uint64
}

// NewAuthenticator returns an Authenticator seeded with key. The FC and
// every GCS on the link must agree on key (see SiphashKey).
func NewAuthenticator(key [16]byte) *Authenticator {
	return &Authenticator{h: siphash.New(key)}
}

// Advance captures the hasher's current digest as the MAC for the
// MsgInterval just ending, folds that digest back into the running hash
// so the chain never repeats, and returns the captured value.
func (a *Authenticator) Advance() uint64 {
	a.lastHash = a.h.Sum64()
	a.h.WriteUint64(a.lastHash)
	return a.lastHash
}

// Verify reports whether mac matches the digest captured at the last
// Advance or the hasher's current (not yet advanced) digest. A received
// MAC is valid across exactly one MsgInterval boundary: this is what lets
// a command authenticated just before a boundary still verify just after
// it.
func (a *Authenticator) Verify(mac uint64) bool {
	return mac == a.lastHash || mac == a.h.Sum64()
}
