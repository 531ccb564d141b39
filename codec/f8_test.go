// Copyright 2024 The Apogee Link Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestF8RoundTripVectors(t *testing.T) {
	in := []float32{-0.00001, 0.008, -0.125, 0.5, 1.0, -10.0, 100.0, 1000.0}
	want := []float32{-0.01953125, 0.015625, -0.125, 0.5, 1.0, -10.0, 96.0, 960.0}

	for i, v := range in {
		got := EncodeF8(v).Float32()
		assert.Equal(t, want[i], got, "input %v", v)
	}
}

func TestF8ExactValuesRoundTripExactly(t *testing.T) {
	for _, v := range []float32{1.0, -10.0, 0.5, -0.125} {
		assert.Equal(t, v, EncodeF8(v).Float32())
	}
}
