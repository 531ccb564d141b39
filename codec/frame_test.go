// Copyright 2024 The Apogee Link Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFrameShortForm(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB}, 24)
	frame, err := WriteFrame(payload)
	require.NoError(t, err)
	assert.Equal(t, StartByte, frame[0])
	assert.Equal(t, byte(24), frame[1])
	assert.Equal(t, payload, frame[2:])
}

func TestWriteFrameLongForm(t *testing.T) {
	payload := bytes.Repeat([]byte{0xCD}, 200)
	frame, err := WriteFrame(payload)
	require.NoError(t, err)
	assert.Equal(t, StartByte, frame[0])
	assert.NotZero(t, frame[1]&0x80)
	n := int(frame[1]&0x7f)<<8 | int(frame[2])
	assert.Equal(t, 200, n)
	assert.Equal(t, payload, frame[3:])
}

func TestLengthGateBoundary(t *testing.T) {
	short, err := WriteFrame(make([]byte, 127))
	require.NoError(t, err)
	assert.Zero(t, short[1]&0x80)

	long, err := WriteFrame(make([]byte, 128))
	require.NoError(t, err)
	assert.NotZero(t, long[1]&0x80)
}

func TestReadValidRoundTrip(t *testing.T) {
	payload := []byte{1, 2, 3, 4}
	frame, err := WriteFrame(payload)
	require.NoError(t, err)

	got, ok := ReadValid(frame)
	require.True(t, ok)
	assert.Equal(t, payload, got)
}

func TestPopValidLeavesTail(t *testing.T) {
	payload := []byte{9, 8, 7}
	frame, err := WriteFrame(payload)
	require.NoError(t, err)
	tail := []byte{0xde, 0xad}
	buf := append(append([]byte{}, frame...), tail...)

	got, rest, ok := PopValid(buf)
	require.True(t, ok)
	assert.Equal(t, payload, got)
	assert.Equal(t, tail, rest)
}

func TestPopValidResyncsPastGarbage(t *testing.T) {
	payload := []byte{1, 2, 3}
	frame, err := WriteFrame(payload)
	require.NoError(t, err)
	garbage := []byte{0x00, 0x01, 0xff, 0x7e}
	buf := append(append([]byte{}, garbage...), frame...)

	got, _, ok := PopValid(buf)
	require.True(t, ok)
	assert.Equal(t, payload, got)
}

func TestPopValidWaitsForMoreData(t *testing.T) {
	payload := []byte{1, 2, 3, 4, 5}
	frame, err := WriteFrame(payload)
	require.NoError(t, err)
	partial := frame[:len(frame)-1]

	_, rest, ok := PopValid(partial)
	assert.False(t, ok)
	assert.Equal(t, partial, rest)
}

func TestReadValidRejectsBadStartByte(t *testing.T) {
	_, ok := ReadValid([]byte{0x00, 0x01, 0x02})
	assert.False(t, ok)
}

func TestWriteFrameRejectsOversizedPayload(t *testing.T) {
	_, err := WriteFrame(make([]byte, MaxPayloadLen+1))
	assert.Error(t, err)
}
