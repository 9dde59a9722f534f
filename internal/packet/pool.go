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

import "sync"

// defaultBufferSize fits a full UDP datagram on a 1500-byte MTU path.
const defaultBufferSize = 1472

// Pool hands out packets and byte buffers, recycling them to keep the hot
// per-packet path off the heap. Safe for concurrent use from all contexts.
type Pool struct {
	bufferSize int
	packets    sync.Pool
	buffers    sync.Pool
}

// NewPool creates a pool with the given buffer size, or the default MTU-sized
// buffers when bufferSize is zero.
func NewPool(bufferSize int) *Pool {
	if bufferSize == 0 {
		bufferSize = defaultBufferSize
	}
	p := &Pool{bufferSize: bufferSize}
	p.packets.New = func() any {
		return &Packet{}
	}
	p.buffers.New = func() any {
		b := make([]byte, 0, bufferSize)
		return &b
	}
	return p
}

// BufferSize returns the capacity of buffers handed out by NewBuffer.
func (p *Pool) BufferSize() int {
	return p.bufferSize
}

// NewPacket returns a cleared packet.
func (p *Pool) NewPacket() *Packet {
	pkt := p.packets.Get().(*Packet) //nolint:errcheck,forcetypeassert
	pkt.reset()
	return pkt
}

// NewBuffer returns an empty buffer with the pool's capacity.
func (p *Pool) NewBuffer() []byte {
	bp := p.buffers.Get().(*[]byte) //nolint:errcheck,forcetypeassert
	return (*bp)[:0]
}

// PutBuffer recycles a buffer. The caller must be the only holder.
func (p *Pool) PutBuffer(b []byte) {
	if cap(b) < p.bufferSize {
		return
	}
	b = b[:0]
	p.buffers.Put(&b)
}

// PutPacket recycles a packet once the last reference is done with it.
// Callers must not touch the packet afterwards.
func (p *Pool) PutPacket(pkt *Packet) {
	pkt.reset()
	p.packets.Put(pkt)
}
