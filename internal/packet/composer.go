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

// Composer turns a packet's views into wire bytes in the packet buffer.
type Composer interface {
	// Prepare allocates and sizes the packet buffer for a payload of the
	// given size, activating the views the composer owns.
	Prepare(p *Packet, payloadSize int) error
	// Compose writes the headers into the buffer. The packet must be
	// prepared and have its view fields filled in.
	Compose(p *Packet) error
}

// Parser fills a packet's views from wire bytes.
type Parser interface {
	Parse(p *Packet, data []byte) error
}
