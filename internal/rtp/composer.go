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

// rtpVersion is the fixed version field of every RTP header.
const rtpVersion = 2

// HeaderSize is the fixed RTP header size without CSRCs or extensions.
const HeaderSize = 12

var (
	// ErrCompose means the packet is missing state the composer needs.
	ErrCompose = errors.New("can't compose rtp packet")
)

// Composer writes RTP headers and payloads into packet buffers.
type Composer struct{}

// NewComposer creates an RTP composer.
func NewComposer() *Composer {
	return &Composer{}
}

// Prepare implements packet.Composer. It sizes the buffer for the header
// plus payload, activates the RTP view, and points the view payload at the
// payload region.
func (c *Composer) Prepare(p *packet.Packet, payloadSize int) error {
	buf := make([]byte, HeaderSize+payloadSize)

	p.SetBuffer(buf)
	p.RTP = &packet.RTP{Payload: buf[HeaderSize:]}
	p.AddFlags(packet.FlagRTP | packet.FlagAudio | packet.FlagPrepared)

	return nil
}

// Compose implements packet.Composer. The RTP view fields must be filled
// and the payload written in place.
func (c *Composer) Compose(p *packet.Packet) error {
	if p.RTP == nil || !p.HasFlags(packet.FlagPrepared) {
		return ErrCompose
	}

	hdr := pionrtp.Header{
		Version:        rtpVersion,
		Marker:         p.RTP.Marker,
		PayloadType:    p.RTP.PayloadType,
		SequenceNumber: p.RTP.SeqNum,
		Timestamp:      p.RTP.StreamTimestamp,
		SSRC:           p.RTP.SourceID,
	}

	buf := p.Buffer()
	n, err := hdr.MarshalTo(buf)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCompose, err)
	}
	if n != HeaderSize {
		return ErrCompose
	}

	p.AddFlags(packet.FlagComposed)

	return nil
}
