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

package fec

// Wire framing, per RFC 6363 payload-ID placement. Source packets are RTP
// packets followed by an explicit-source-FEC footer; the repair stream is
// FEC-framed with its own header. The protected region of a source packet
// is the whole RTP packet, so a repaired symbol re-parses as RTP directly.

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/rtpcast/rtpcast/internal/packet"
	"github.com/rtpcast/rtpcast/internal/rtp"
)

// sourceFooterSize is the payload-ID footer on source packets:
// SBN(2) ESI(2) SBLEN(2).
const sourceFooterSize = 6

// repairHeaderSize is the header on repair packets:
// SBN(2) ESI(2) SBLEN(2) BLEN(2) SEQNUM(2).
const repairHeaderSize = 10

var (
	// ErrFraming means the datagram is too short or malformed for its
	// FEC framing.
	ErrFraming = errors.New("malformed fec framing")
)

// SourceComposer composes RTP packets with the source payload-ID footer.
type SourceComposer struct {
	scheme packet.FECScheme
	inner  *rtp.Composer
}

// NewSourceComposer creates a composer for source packets of a scheme.
func NewSourceComposer(scheme packet.FECScheme) *SourceComposer {
	return &SourceComposer{scheme: scheme, inner: rtp.NewComposer()}
}

// Prepare implements packet.Composer. The buffer holds the RTP packet plus
// the footer; the FEC payload spans the RTP portion.
func (c *SourceComposer) Prepare(p *packet.Packet, payloadSize int) error {
	buf := make([]byte, rtp.HeaderSize+payloadSize+sourceFooterSize)
	protected := buf[:rtp.HeaderSize+payloadSize]

	p.SetBuffer(buf)
	p.RTP = &packet.RTP{Payload: protected[rtp.HeaderSize:]}
	p.FEC = &packet.FEC{Scheme: c.scheme, Payload: protected}
	p.AddFlags(packet.FlagRTP | packet.FlagAudio | packet.FlagFEC | packet.FlagPrepared)

	return nil
}

// Compose implements packet.Composer: RTP header first, then the footer
// from the FEC view fields.
func (c *SourceComposer) Compose(p *packet.Packet) error {
	if p.FEC == nil {
		return ErrFraming
	}

	if err := c.inner.Compose(p); err != nil {
		return err
	}

	buf := p.Buffer()
	footer := buf[len(buf)-sourceFooterSize:]
	binary.BigEndian.PutUint16(footer[0:2], p.FEC.SourceBlockNumber)
	binary.BigEndian.PutUint16(footer[2:4], uint16(p.FEC.EncodingSymbolID))   //nolint:gosec
	binary.BigEndian.PutUint16(footer[4:6], uint16(p.FEC.SourceBlockLength)) //nolint:gosec

	return nil
}

// SourceParser parses datagrams of a source endpoint: RTP plus footer.
type SourceParser struct {
	scheme packet.FECScheme
	inner  *rtp.Parser
}

// NewSourceParser creates a parser for source packets of a scheme.
func NewSourceParser(scheme packet.FECScheme) *SourceParser {
	return &SourceParser{scheme: scheme, inner: rtp.NewParser()}
}

// Parse implements packet.Parser.
func (pr *SourceParser) Parse(p *packet.Packet, data []byte) error {
	if len(data) <= rtp.HeaderSize+sourceFooterSize {
		return fmt.Errorf("%w: short source packet: size=%d", ErrFraming, len(data))
	}

	protected := data[:len(data)-sourceFooterSize]
	footer := data[len(data)-sourceFooterSize:]

	if err := pr.inner.Parse(p, protected); err != nil {
		return err
	}

	p.FEC = &packet.FEC{
		Scheme:            pr.scheme,
		SourceBlockNumber: binary.BigEndian.Uint16(footer[0:2]),
		EncodingSymbolID:  uint(binary.BigEndian.Uint16(footer[2:4])),
		SourceBlockLength: uint(binary.BigEndian.Uint16(footer[4:6])),
		Payload:           protected,
	}
	p.SetBuffer(data)
	p.AddFlags(packet.FlagFEC)

	return nil
}

// RepairComposer composes FEC-framed repair packets.
type RepairComposer struct {
	scheme packet.FECScheme
}

// NewRepairComposer creates a composer for repair packets of a scheme.
func NewRepairComposer(scheme packet.FECScheme) *RepairComposer {
	return &RepairComposer{scheme: scheme}
}

// Prepare implements packet.Composer. The FEC payload spans the repair
// symbols after the header.
func (c *RepairComposer) Prepare(p *packet.Packet, payloadSize int) error {
	buf := make([]byte, repairHeaderSize+payloadSize)

	p.SetBuffer(buf)
	p.FEC = &packet.FEC{Scheme: c.scheme, Payload: buf[repairHeaderSize:]}
	p.AddFlags(packet.FlagFEC | packet.FlagRepair | packet.FlagPrepared)

	return nil
}

// Compose implements packet.Composer.
func (c *RepairComposer) Compose(p *packet.Packet) error {
	if p.FEC == nil || !p.HasFlags(packet.FlagPrepared) {
		return ErrFraming
	}

	hdr := p.Buffer()[:repairHeaderSize]
	binary.BigEndian.PutUint16(hdr[0:2], p.FEC.SourceBlockNumber)
	binary.BigEndian.PutUint16(hdr[2:4], uint16(p.FEC.EncodingSymbolID))   //nolint:gosec
	binary.BigEndian.PutUint16(hdr[4:6], uint16(p.FEC.SourceBlockLength)) //nolint:gosec
	binary.BigEndian.PutUint16(hdr[6:8], uint16(p.FEC.BlockLength))       //nolint:gosec
	binary.BigEndian.PutUint16(hdr[8:10], p.FEC.RepairSeqNum)

	p.AddFlags(packet.FlagComposed)

	return nil
}

// RepairParser parses datagrams of a repair endpoint.
type RepairParser struct {
	scheme packet.FECScheme
}

// NewRepairParser creates a parser for repair packets of a scheme.
func NewRepairParser(scheme packet.FECScheme) *RepairParser {
	return &RepairParser{scheme: scheme}
}

// Parse implements packet.Parser.
func (pr *RepairParser) Parse(p *packet.Packet, data []byte) error {
	if len(data) <= repairHeaderSize {
		return fmt.Errorf("%w: short repair packet: size=%d", ErrFraming, len(data))
	}

	p.FEC = &packet.FEC{
		Scheme:            pr.scheme,
		SourceBlockNumber: binary.BigEndian.Uint16(data[0:2]),
		EncodingSymbolID:  uint(binary.BigEndian.Uint16(data[2:4])),
		SourceBlockLength: uint(binary.BigEndian.Uint16(data[4:6])),
		BlockLength:       uint(binary.BigEndian.Uint16(data[6:8])),
		RepairSeqNum:      binary.BigEndian.Uint16(data[8:10]),
		Payload:           data[repairHeaderSize:],
	}
	p.SetBuffer(data)
	p.AddFlags(packet.FlagFEC | packet.FlagRepair)

	return nil
}
