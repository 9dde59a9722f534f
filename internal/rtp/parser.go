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

package rtp

import (
	"errors"
	"fmt"

	pionrtp "github.com/pion/rtp"
	"github.com/rtpcast/rtpcast/internal/packet"
)

// ErrParse means the datagram is not a well-formed RTP packet.
var ErrParse = errors.New("malformed rtp packet")

// Parser fills the RTP view of packets from wire bytes.
type Parser struct{}

// NewParser creates an RTP parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse implements packet.Parser. On success the packet has its RTP view
// activated and the RTP, Audio flags set; the payload aliases data.
func (pr *Parser) Parse(p *packet.Packet, data []byte) error {
	var wire pionrtp.Packet
	if err := wire.Unmarshal(data); err != nil {
		return fmt.Errorf("%w: %w", ErrParse, err)
	}

	view := &packet.RTP{
		SourceID:        wire.SSRC,
		SeqNum:          wire.SequenceNumber,
		StreamTimestamp: wire.Timestamp,
		PayloadType:     wire.PayloadType,
		Marker:          wire.Marker,
		Payload:         wire.Payload,
	}

	if enc, ok := LookupEncoding(wire.PayloadType); ok {
		view.Duration = packet.Timestamp(enc.Duration(len(wire.Payload))) //nolint:gosec
	}

	p.RTP = view
	p.SetBuffer(data)
	p.AddFlags(packet.FlagRTP | packet.FlagAudio)

	return nil
}
