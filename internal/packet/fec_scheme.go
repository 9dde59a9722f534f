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

// FECScheme identifies the erasure code protecting a stream.
type FECScheme uint8

const (
	// FECNone means the stream carries no repair packets.
	FECNone FECScheme = iota
	// FECReedSolomonM8 is Reed-Solomon over GF(2^8).
	FECReedSolomonM8
	// FECLDPCStaircase is the LDPC-Staircase code.
	FECLDPCStaircase
)

func (s FECScheme) String() string {
	switch s {
	case FECNone:
		return "none"
	case FECReedSolomonM8:
		return "rs8m"
	case FECLDPCStaircase:
		return "ldpc"
	}
	return "invalid"
}
