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
	"time"

	"github.com/rtpcast/rtpcast/internal/address"
	"github.com/rtpcast/rtpcast/internal/audio"
	"github.com/rtpcast/rtpcast/internal/packet"
)

// ErrEndpointExists means the interface already has an endpoint.
var ErrEndpointExists = errors.New("endpoint already exists on interface")

// ReceiverSlot is the pipeline half of one receiver connection: one
// endpoint per bound interface feeding a session group.
type ReceiverSlot struct {
	group     *ReceiverSessionGroup
	endpoints [address.IfaceMax]*ReceiverEndpoint
}

// NewReceiverSlot creates a pipeline slot whose sessions feed the mixer.
func NewReceiverSlot(
	sessionDefaults ReceiverSessionConfig,
	mixer *audio.Mixer,
	pool *packet.Pool,
) (*ReceiverSlot, error) {
	group, err := NewReceiverSessionGroup(sessionDefaults, mixer, pool)
	if err != nil {
		return nil, err
	}
	return &ReceiverSlot{group: group}, nil
}

// Group exposes the session group.
func (s *ReceiverSlot) Group() *ReceiverSessionGroup {
	return s.group
}

// AddEndpoint creates the endpoint for an interface. For the control
// interface, outboundWriter carries generated reports back to the network.
func (s *ReceiverSlot) AddEndpoint(
	iface address.Interface,
	proto address.Protocol,
	pool *packet.Pool,
	outboundWriter packet.Writer,
) (*ReceiverEndpoint, error) {
	if iface < 0 || iface >= address.IfaceMax {
		return nil, ErrUnsupportedProto
	}
	if s.endpoints[iface] != nil {
		return nil, ErrEndpointExists
	}

	endpoint, err := NewReceiverEndpoint(proto, pool)
	if err != nil {
		return nil, err
	}
	if endpoint.Interface() != iface {
		return nil, ErrUnsupportedProto
	}

	s.endpoints[iface] = endpoint

	if iface == address.IfaceAudioControl {
		s.group.CreateControlPipeline(outboundWriter)
	}

	return endpoint, nil
}

// RemoveEndpoints detaches all endpoints and sessions.
func (s *ReceiverSlot) RemoveEndpoints() {
	for i := range s.endpoints {
		s.endpoints[i] = nil
	}
	s.group.Close()
}

// Refresh drains all endpoint queues into the session group, then ticks
// the sessions. It returns the earliest next deadline.
func (s *ReceiverSlot) Refresh(now time.Time) (time.Time, error) {
	for _, endpoint := range s.endpoints {
		if endpoint == nil {
			continue
		}
		for {
			p, err := endpoint.ReadPacket(packet.ModeFetch)
			if err != nil {
				break
			}
			if err := s.group.RoutePacket(p, now); err != nil {
				// Unroutable packets are dropped; the slot keeps going.
				continue
			}
		}
	}

	return s.group.RefreshSessions(now)
}
