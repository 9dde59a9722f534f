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

import "errors"

var (
	// ErrDrain means no packet is available right now; try again later.
	ErrDrain = errors.New("packet stream drained")
	// ErrAbort means the component latched dead; no packet will ever follow.
	ErrAbort = errors.New("packet stream aborted")
	// ErrFinish means the stream ended cleanly.
	ErrFinish = errors.New("packet stream finished")
	// ErrNoRoute means no session matched the packet.
	ErrNoRoute = errors.New("no route for packet")
)

// ReadMode selects whether a read consumes the packet.
type ReadMode int

const (
	// ModeFetch consumes and returns the next packet.
	ModeFetch ReadMode = iota
	// ModePeek returns what ModeFetch would return without consuming it.
	ModePeek
)

// Reader is a pull interface for packet streams.
type Reader interface {
	ReadPacket(mode ReadMode) (*Packet, error)
}

// Writer is a push interface for packet streams.
type Writer interface {
	WritePacket(p *Packet) error
}
