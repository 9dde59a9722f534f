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

import "encoding/binary"

// Network byte order L16 per RFC 3551.

// DecodeS16BE decodes big-endian signed 16-bit samples.
func DecodeS16BE(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.BigEndian.Uint16(data[i*2:])) //nolint:gosec
	}
	return samples
}

// EncodeS16BE encodes samples as big-endian signed 16-bit PCM into dst,
// which must hold 2*len(samples) bytes.
func EncodeS16BE(dst []byte, samples []int16) {
	for i, s := range samples {
		binary.BigEndian.PutUint16(dst[i*2:], uint16(s)) //nolint:gosec
	}
}
