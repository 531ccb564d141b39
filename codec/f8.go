// Copyright 2024 The Apogee Link Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package codec

import "math"

// F8 is an 8-bit floating-point format used only inside compressed
// telemetry payloads: 1 sign bit, 4 exponent bits biased by 7, 3 fraction
// bits. It trades precision for a quarter of the size of a float32.
//
// The conversion is lossy and not injective: zero, subnormals, NaN and
// infinities are not preserved, and small magnitudes saturate to the
// smallest representable non-zero value instead of underflowing to zero.
type F8 uint8

// EncodeF8 converts a float32 to its 8-bit representation.
func EncodeF8(v float32) F8 {
	bits := math.Float32bits(v)
	sign := (bits >> 31) & 1
	exponent := int32((bits >> 23) & 0xff)
	fraction := bits & 0x7fffff

	expoSmall := exponent - 0x80
	if expoSmall < -7 {
		expoSmall = -7
	} else if expoSmall > 8 {
		expoSmall = 8
	}
	expoSmall += 7

	fractionSmall := fraction >> 20

	return F8((sign << 7) | (uint32(expoSmall) << 3) | fractionSmall)
}

// Float32 converts the 8-bit representation back to a float32.
func (f F8) Float32() float32 {
	raw := uint32(f)
	sign := (raw >> 7) & 1
	expoSmall := int32((raw >> 3) & 0xf)
	fractionSmall := raw & 0x7

	expoLarge := expoSmall - 7 + 0x80
	fractionLarge := fractionSmall << 20

	bits := (sign << 31) | (uint32(expoLarge) << 23) | fractionLarge
	return math.Float32frombits(bits)
}
