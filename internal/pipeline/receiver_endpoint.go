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

package pipeline

import (
	"errors"
	"log/slog"
	"net/netip"
	"sync"

	"github.com/rtpcast/rtpcast/internal/address"
	"github.com/rtpcast/rtpcast/internal/fec"
	"github.com/rtpcast/rtpcast/internal/packet"
	"github.com/rtpcast/rtpcast/internal/rtp"
)

// ErrUnsupportedProto means no pipeline endpoint exists for the protocol.
var ErrUnsupportedProto = errors.New("unsupported endpoint protocol")

// ReceiverEndpoint is the inbound entry of one interface of a receiver
// slot. The network loop hands it raw datagrams; parsed packets queue up
// until the pipeline drains them into the session group. The queue lock is
// the only cross-context synchronization on the inbound hot path.
type ReceiverEndpoint struct {
	proto  address.Protocol
	iface  address.Interface
	parser packet.Parser
	pool   *packet.Pool

	mu    sync.Mutex
	queue *packet.Queue
}

// NewReceiverEndpoint creates the endpoint for a protocol.
func NewReceiverEndpoint(proto address.Protocol, pool *packet.Pool) (*ReceiverEndpoint, error) {
	attrs := address.LookupProtocol(proto)
	if attrs == nil {
		return nil, ErrUnsupportedProto
	}

	e := &ReceiverEndpoint{
		proto: proto,
		iface: attrs.Iface,
		pool:  pool,
		queue: packet.NewQueue(),
	}

	switch proto {
	case address.ProtoRTP:
		e.parser = rtp.NewParser()
	case address.ProtoRTPRS8M, address.ProtoRTPLDPC:
		e.parser = fec.NewSourceParser(attrs.FECScheme)
	case address.ProtoRS8M, address.ProtoLDPC:
		e.parser = fec.NewRepairParser(attrs.FECScheme)
	case address.ProtoRTCP:
		// Control packets pass through unparsed; the communicator owns
		// their wire format.
	case address.ProtoRTSP, address.ProtoNone:
		return nil, ErrUnsupportedProto
	}

	return e, nil
}

// Interface returns the interface kind this endpoint serves.
func (e *ReceiverEndpoint) Interface() address.Interface {
	return e.iface
}

// HandleDatagram implements the network loop's inbound delivery. Malformed
// datagrams are dropped, the endpoint keeps running.
func (e *ReceiverEndpoint) HandleDatagram(data []byte, src, dst netip.AddrPort) {
	p := e.pool.NewPacket()
	p.UDP = &packet.UDP{SrcAddr: src, DstAddr: dst}
	p.AddFlags(packet.FlagUDP)

	if e.parser == nil {
		p.SetBuffer(data)
		p.AddFlags(packet.FlagControl)
	} else if err := e.parser.Parse(p, data); err != nil {
		slog.Debug("endpoint: dropping malformed packet",
			"proto", e.proto, "src", src, "error", err)
		e.pool.PutPacket(p)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.queue.WritePacket(p); err != nil {
		slog.Error("endpoint: can't queue packet", "error", err)
	}
}

// ReadPacket implements packet.Reader for the pipeline side.
func (e *ReceiverEndpoint) ReadPacket(mode packet.ReadMode) (*packet.Packet, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.queue.ReadPacket(mode)
}
