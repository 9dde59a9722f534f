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

package audio

import "math"

// FrameReader yields up to n samples of signed 16-bit PCM. A short or empty
// result means the input has nothing more to contribute right now.
type FrameReader interface {
	ReadFrame(n int) []int16
}

// Mixer sums PCM frames from all registered inputs 1:1 with saturation.
// It is owned by the pipeline context; inputs are the per-session frame
// readers.
type Mixer struct {
	inputs []FrameReader
}

// NewMixer creates a mixer with no inputs.
func NewMixer() *Mixer {
	return &Mixer{}
}

// AddInput registers a frame reader.
func (m *Mixer) AddInput(r FrameReader) {
	m.inputs = append(m.inputs, r)
}

// RemoveInput unregisters a frame reader.
func (m *Mixer) RemoveInput(r FrameReader) {
	for i, in := range m.inputs {
		if in == r {
			m.inputs = append(m.inputs[:i], m.inputs[i+1:]...)
			return
		}
	}
}

// NumInputs returns the number of registered inputs.
func (m *Mixer) NumInputs() int {
	return len(m.inputs)
}

// ReadFrame mixes n samples. Inputs with fewer than n samples available
// contribute silence for the remainder.
func (m *Mixer) ReadFrame(n int) []int16 {
	out := make([]int16, n)

	for _, in := range m.inputs {
		samples := in.ReadFrame(n)
		for i, s := range samples {
			sum := int32(out[i]) + int32(s)
			if sum > math.MaxInt16 {
				sum = math.MaxInt16
			}
			if sum < math.MinInt16 {
				sum = math.MinInt16
			}
			out[i] = int16(sum)
		}
	}

	return out
}
