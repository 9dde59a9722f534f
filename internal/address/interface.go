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

package address

// Interface enumerates the endpoint kinds a slot can expose.
type Interface int

const (
	// IfaceAggregate is a single endpoint bundling all streams (e.g. RTSP).
	IfaceAggregate Interface = iota
	// IfaceAudioSource carries source (media) packets.
	IfaceAudioSource
	// IfaceAudioRepair carries FEC repair packets.
	IfaceAudioRepair
	// IfaceAudioControl carries control (RTCP) packets.
	IfaceAudioControl
	// IfaceMax sizes per-interface arrays.
	IfaceMax
)

func (i Interface) String() string {
	switch i {
	case IfaceAggregate:
		return "aggregate"
	case IfaceAudioSource:
		return "audio-source"
	case IfaceAudioRepair:
		return "audio-repair"
	case IfaceAudioControl:
		return "audio-control"
	case IfaceMax:
	}
	return "invalid"
}
