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

// Queue is an unbounded FIFO of packets. It is not safe for concurrent use;
// each queue is owned by exactly one pipeline stage.
type Queue struct {
	packets []*Packet
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Size returns the number of queued packets.
func (q *Queue) Size() int {
	return len(q.packets)
}

// Head returns the front packet without consuming it, or nil when empty.
func (q *Queue) Head() *Packet {
	if len(q.packets) == 0 {
		return nil
	}
	return q.packets[0]
}

// ReadPacket implements Reader.
func (q *Queue) ReadPacket(mode ReadMode) (*Packet, error) {
	if len(q.packets) == 0 {
		return nil, ErrDrain
	}
	p := q.packets[0]
	if mode == ModeFetch {
		q.packets[0] = nil
		q.packets = q.packets[1:]
	}
	return p, nil
}

// WritePacket implements Writer.
func (q *Queue) WritePacket(p *Packet) error {
	q.packets = append(q.packets, p)
	return nil
}
