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

package packet

// Signed distances between serial numbers per RFC 1982. A positive result
// means a is ahead of b modulo the counter width.

// SeqNumDiff returns the signed distance between two sequence numbers.
func SeqNumDiff(a, b SeqNum) int {
	return int(int16(a - b))
}

// SeqNumLT returns true if a is strictly before b.
func SeqNumLT(a, b SeqNum) bool {
	return SeqNumDiff(a, b) < 0
}

// SeqNumLE returns true if a is before or equal to b.
func SeqNumLE(a, b SeqNum) bool {
	return SeqNumDiff(a, b) <= 0
}

// BlockNumDiff returns the signed distance between two source block numbers.
func BlockNumDiff(a, b BlockNum) int {
	return int(int16(a - b))
}

// BlockNumLT returns true if a is strictly before b.
func BlockNumLT(a, b BlockNum) bool {
	return BlockNumDiff(a, b) < 0
}

// BlockNumLE returns true if a is before or equal to b.
func BlockNumLE(a, b BlockNum) bool {
	return BlockNumDiff(a, b) <= 0
}

// TimestampDiff returns the signed distance between two stream timestamps.
func TimestampDiff(a, b Timestamp) int {
	return int(int32(a - b))
}

// TimestampLT returns true if a is strictly before b.
func TimestampLT(a, b Timestamp) bool {
	return TimestampDiff(a, b) < 0
}

// TimestampLE returns true if a is before or equal to b.
func TimestampLE(a, b Timestamp) bool {
	return TimestampDiff(a, b) <= 0
}
