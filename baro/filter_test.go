// Copyright 2024 The Apogee Link Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package baro

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPushDespikesASingleSampleOutlier(t *testing.T) {
	samples := []int32{1000, 1001, 1000, 9999, 1002, 1001}
	want := []int32{1000, 1000, 1000, 1000, 1000, 1001}

	var f Filter
	for i, x := range samples {
		got := f.Push(x, uint32(i))
		assert.Equal(t, want[i], got, "sample %d", i)
	}
}

func TestLastFilteredReflectsMostRecentPush(t *testing.T) {
	var f Filter
	_, ok := f.LastFiltered()
	assert.False(t, ok)

	f.Push(1000, 0)
	v, ok := f.LastFiltered()
	assert.True(t, ok)
	assert.Equal(t, int32(1000), v)
}

func TestWindowNeverExceedsCapacity(t *testing.T) {
	var f Filter
	for i := int32(0); i < 100; i++ {
		f.Push(i, uint32(i))
	}
	assert.LessOrEqual(t, len(f.window), windowCapacity)
}

func TestPeriodicSpikesAreSuppressedOnceWindowIsSeeded(t *testing.T) {
	var f Filter
	baseline := int32(1000)
	for i := 0; i < 2; i++ {
		f.Push(baseline, uint32(i))
	}
	for i := 2; i < 60; i++ {
		x := baseline
		if i%13 == 0 {
			x += 1_000_000
		}
		got := f.Push(x, uint32(i))
		assert.InDelta(t, baseline, got, 1, "tick %d", i)
	}
}
