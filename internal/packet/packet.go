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

import (
	"fmt"
	"net/netip"
)

// SourceID identifies an RTP stream (SSRC).
type SourceID = uint32

// SeqNum is a 16-bit RTP sequence number with wrap-around.
type SeqNum = uint16

// BlockNum is a 16-bit FEC source block number with wrap-around.
type BlockNum = uint16

// Timestamp is a 32-bit RTP stream timestamp with wrap-around.
type Timestamp = uint32

// Flags describes which views and states are active on a packet.
type Flags uint16

const (
	// FlagUDP means the packet has a UDP transport view.
	FlagUDP Flags = 1 << iota
	// FlagRTP means the packet has a parsed or composed RTP view.
	FlagRTP
	// FlagFEC means the packet has a FEC view.
	FlagFEC
	// FlagAudio means the packet carries audio samples.
	FlagAudio
	// FlagRepair means the packet carries FEC repair symbols, not audio.
	FlagRepair
	// FlagControl means the packet belongs to the control plane (RTCP).
	FlagControl
	// FlagPrepared means the packet buffer is allocated and sized.
	FlagPrepared
	// FlagComposed means the packet headers have been written to the buffer.
	FlagComposed
	// FlagRestored means the packet was synthesized by the FEC decoder
	// rather than received from the network.
	FlagRestored
)

// UDP is the transport view of a packet.
type UDP struct {
	SrcAddr netip.AddrPort
	DstAddr netip.AddrPort
}

// RTP is the media view of a packet.
type RTP struct {
	SourceID        SourceID
	SeqNum          SeqNum
	StreamTimestamp Timestamp
	PayloadType     uint8
	Marker          bool
	// Duration is the packet length in stream timestamp units.
	Duration Timestamp
	// Payload is a sub-slice of the packet buffer holding the samples.
	Payload []byte
}

// FEC is the erasure-coding view of a packet.
type FEC struct {
	Scheme FECScheme
	// EncodingSymbolID is the packet index within its block. Source packets
	// occupy 0..k-1, repair packets k..n-1.
	EncodingSymbolID uint
	SourceBlockNumber BlockNum
	// RepairSeqNum orders repair packets across blocks. Zero on source
	// packets.
	RepairSeqNum SeqNum
	// SourceBlockLength is k, the number of source packets per block.
	SourceBlockLength uint
	// BlockLength is n = k plus the number of repair packets. Zero on
	// source packets of schemes that carry it only in repair packets.
	BlockLength uint
	// Payload is the protected region of the buffer. For source packets
	// it spans the whole composed RTP packet; for repair packets it holds
	// the repair symbols.
	Payload []byte
}

// Packet is one network packet flowing through the pipeline. It owns a byte
// buffer and up to three layered views activated as the packet is parsed or
// composed. Packets are shared between pipeline stages; the pool hands out
// cleared instances.
type Packet struct {
	flags  Flags
	buffer []byte

	UDP *UDP
	RTP *RTP
	FEC *FEC
}

// HasFlags returns true when all given flags are set.
func (p *Packet) HasFlags(fl Flags) bool {
	return p.flags&fl == fl
}

// AddFlags sets the given flags.
func (p *Packet) AddFlags(fl Flags) {
	p.flags |= fl
}

// Buffer returns the underlying byte buffer.
func (p *Packet) Buffer() []byte {
	return p.buffer
}

// SetBuffer attaches a byte buffer to the packet.
func (p *Packet) SetBuffer(b []byte) {
	p.buffer = b
}

// HasSourceID reports whether the packet carries a stream source identifier.
func (p *Packet) HasSourceID() bool {
	return p.RTP != nil
}

// StreamSourceID returns the RTP SSRC, or zero when absent.
func (p *Packet) StreamSourceID() SourceID {
	if p.RTP == nil {
		return 0
	}
	return p.RTP.SourceID
}

// StreamTimestamp returns the RTP stream timestamp, or zero when absent.
func (p *Packet) StreamTimestamp() Timestamp {
	if p.RTP == nil {
		return 0
	}
	return p.RTP.StreamTimestamp
}

// reset clears the packet for reuse by the pool.
func (p *Packet) reset() {
	p.flags = 0
	p.buffer = nil
	p.UDP = nil
	p.RTP = nil
	p.FEC = nil
}

func (p *Packet) String() string {
	if p.RTP != nil {
		return fmt.Sprintf("Packet: ssrc=0x%08x seq=%d ts=%d pt=%d payload=%d flags=0x%03x",
			p.RTP.SourceID, p.RTP.SeqNum, p.RTP.StreamTimestamp, p.RTP.PayloadType, len(p.RTP.Payload), uint16(p.flags))
	}
	if p.FEC != nil {
		return fmt.Sprintf("Packet: sbn=%d esi=%d sblen=%d blen=%d payload=%d flags=0x%03x",
			p.FEC.SourceBlockNumber, p.FEC.EncodingSymbolID, p.FEC.SourceBlockLength, p.FEC.BlockLength, len(p.FEC.Payload), uint16(p.flags))
	}
	return fmt.Sprintf("Packet: buffer=%d flags=0x%03x", len(p.buffer), uint16(p.flags))
}
