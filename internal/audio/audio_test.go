// SPDX-License-Identifier: AGPL-3.0-or-later
// rtpcast - Stream PCM audio over lossy networks
// Copyright (C) 2025-2026 rtpcast Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// The source code is available at <https://github.com/rtpcast/rtpcast>

package audio_test

import (
	"math"
	"testing"

	"github.com/rtpcast/rtpcast/internal/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelLayouts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		channels int
	}{
		{"mono", 1},
		{"stereo", 2},
		{"2.1", 3},
		{"3.0", 3},
		{"3.1", 4},
		{"4.0", 4},
		{"4.1", 5},
		{"5.0", 5},
		{"5.1", 6},
		{"5.1.2", 8},
		{"5.1.4", 10},
		{"6.0", 6},
		{"6.1", 7},
		{"7.0", 7},
		{"7.1", 8},
		{"7.1.2", 10},
		{"7.1.4", 12},
	}

	for _, tc := range tests {
		mask, ok := audio.LookupLayout(tc.name)
		require.True(t, ok, "layout %q missing", tc.name)
		assert.Equal(t, tc.channels, mask.NumChannels(), "layout %q", tc.name)
		assert.Equal(t, tc.name, audio.LayoutName(mask), "layout %q", tc.name)
	}

	_, ok := audio.LookupLayout("8.2")
	assert.False(t, ok)
	assert.Equal(t, "", audio.LayoutName(audio.ChannelMask(0)))
}

func TestMixerSumsInputs(t *testing.T) {
	t.Parallel()

	mixer := audio.NewMixer()
	a := &staticReader{sample: 100, n: 8}
	b := &staticReader{sample: 23, n: 4}

	mixer.AddInput(a)
	mixer.AddInput(b)
	assert.Equal(t, 2, mixer.NumInputs())

	out := mixer.ReadFrame(8)
	require.Len(t, out, 8)

	// Short inputs contribute silence for the remainder.
	for i := 0; i < 4; i++ {
		assert.Equal(t, int16(123), out[i])
	}
	for i := 4; i < 8; i++ {
		assert.Equal(t, int16(100), out[i])
	}

	mixer.RemoveInput(b)
	assert.Equal(t, 1, mixer.NumInputs())
}

func TestMixerSaturates(t *testing.T) {
	t.Parallel()

	mixer := audio.NewMixer()
	mixer.AddInput(&staticReader{sample: math.MaxInt16, n: 2})
	mixer.AddInput(&staticReader{sample: 1000, n: 2})

	out := mixer.ReadFrame(2)
	require.Len(t, out, 2)
	assert.Equal(t, int16(math.MaxInt16), out[0])
	assert.Equal(t, int16(math.MaxInt16), out[1])

	mixer = audio.NewMixer()
	mixer.AddInput(&staticReader{sample: math.MinInt16, n: 1})
	mixer.AddInput(&staticReader{sample: -1000, n: 1})

	out = mixer.ReadFrame(1)
	require.Len(t, out, 1)
	assert.Equal(t, int16(math.MinInt16), out[0])
}

func TestPCMRoundTrip(t *testing.T) {
	t.Parallel()

	samples := []int16{0, 1, -1, math.MaxInt16, math.MinInt16, 12345}
	buf := make([]byte, len(samples)*2)
	audio.EncodeS16BE(buf, samples)

	assert.Equal(t, samples, audio.DecodeS16BE(buf))
}

// staticReader yields n constant samples, then silence.
type staticReader struct {
	sample int16
	n      int
}

func (r *staticReader) ReadFrame(n int) []int16 {
	if r.n < n {
		n = r.n
	}
	r.n -= n
	out := make([]int16, n)
	for i := range out {
		out[i] = r.sample
	}
	return out
}
