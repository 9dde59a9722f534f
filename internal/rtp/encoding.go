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

package rtp

// PayloadTypeL16Stereo is the static RTP payload type for L16 stereo at
// 44100 Hz (RFC 3551).
const PayloadTypeL16Stereo = 10

// PayloadTypeL16Mono is the static RTP payload type for L16 mono at 44100 Hz.
const PayloadTypeL16Mono = 11

// Encoding describes how samples travel in RTP payloads. Identity is
// carried per-packet by payload type; this core never negotiates it.
type Encoding struct {
	PayloadType uint8
	SampleRate  int
	Channels    int
}

// sampleSize is the byte size of one 16-bit sample.
const sampleSize = 2

// FrameSize returns the payload byte size of the given duration in
// timestamp units.
func (e Encoding) FrameSize(duration int) int {
	return duration * e.Channels * sampleSize
}

// Duration returns the duration in timestamp units of a payload.
func (e Encoding) Duration(payloadLen int) int {
	if e.Channels == 0 {
		return 0
	}
	return payloadLen / sampleSize / e.Channels
}

// defaultEncodings is the static payload-type table.
var defaultEncodings = []Encoding{ //nolint:gochecknoglobals
	{PayloadType: PayloadTypeL16Stereo, SampleRate: 44100, Channels: 2},
	{PayloadType: PayloadTypeL16Mono, SampleRate: 44100, Channels: 1},
}

// LookupEncoding finds the encoding for a payload type.
func LookupEncoding(payloadType uint8) (Encoding, bool) {
	for _, enc := range defaultEncodings {
		if enc.PayloadType == payloadType {
			return enc, true
		}
	}
	return Encoding{}, false
}
