// Copyright 2024 The Apogee Link Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package radio

import (
	"errors"
	"fmt"
)

// ErrBusy is returned by Command when the transceiver's BUSY line was
// already high on entry; the caller may retry on the next tick.
var ErrBusy = errors.New("radio: transceiver busy")

// ErrCrcMismatch is returned by ReceiveData when the chip reported a CRC
// error on the last received frame. The scheduler should discard the frame
// and stay in RX; it never desyncs the state machine.
var ErrCrcMismatch = errors.New("radio: crc mismatch")

// ErrOversizedPayload is returned by SendPacket when the payload is larger
// than the configured TX packet size.
var ErrOversizedPayload = errors.New("radio: payload exceeds tx packet size")

// TransportError wraps a failure of the underlying SPI transfer.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("radio: spi transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
