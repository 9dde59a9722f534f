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

package address

import "github.com/rtpcast/rtpcast/internal/packet"

// Protocol identifies an endpoint protocol.
type Protocol int

const (
	// ProtoNone is the zero value; not a registered protocol.
	ProtoNone Protocol = iota
	// ProtoRTSP is an aggregate RTSP session endpoint.
	ProtoRTSP
	// ProtoRTP is bare RTP without FEC.
	ProtoRTP
	// ProtoRTPRS8M is RTP with Reed-Solomon (m=8) source packets.
	ProtoRTPRS8M
	// ProtoRS8M is the Reed-Solomon (m=8) repair stream.
	ProtoRS8M
	// ProtoRTPLDPC is RTP with LDPC-Staircase source packets.
	ProtoRTPLDPC
	// ProtoLDPC is the LDPC-Staircase repair stream.
	ProtoLDPC
	// ProtoRTCP is the control stream.
	ProtoRTCP
)

func (p Protocol) String() string {
	if attrs := LookupProtocol(p); attrs != nil {
		return attrs.SchemeName
	}
	return "none"
}

// ProtocolAttrs describes one registry entry.
type ProtocolAttrs struct {
	Protocol   Protocol
	SchemeName string
	Iface      Interface
	FECScheme  packet.FECScheme
	// DefaultPort is -1 when the protocol requires an explicit port.
	DefaultPort   int
	PathSupported bool
}

// protocolRegistry is the process-wide protocol table. Populated once here,
// read-only afterwards.
var protocolRegistry = []ProtocolAttrs{ //nolint:gochecknoglobals
	{ProtoRTSP, "rtsp", IfaceAggregate, packet.FECNone, 554, true},
	{ProtoRTP, "rtp", IfaceAudioSource, packet.FECNone, -1, false},
	{ProtoRTPRS8M, "rtp+rs8m", IfaceAudioSource, packet.FECReedSolomonM8, -1, false},
	{ProtoRS8M, "rs8m", IfaceAudioRepair, packet.FECReedSolomonM8, -1, false},
	{ProtoRTPLDPC, "rtp+ldpc", IfaceAudioSource, packet.FECLDPCStaircase, -1, false},
	{ProtoLDPC, "ldpc", IfaceAudioRepair, packet.FECLDPCStaircase, -1, false},
	{ProtoRTCP, "rtcp", IfaceAudioControl, packet.FECNone, -1, false},
}

// LookupProtocol returns the registry entry for a protocol id, or nil.
func LookupProtocol(proto Protocol) *ProtocolAttrs {
	for i := range protocolRegistry {
		if protocolRegistry[i].Protocol == proto {
			return &protocolRegistry[i]
		}
	}
	return nil
}

// LookupScheme returns the registry entry for a scheme name, or nil.
func LookupScheme(scheme string) *ProtocolAttrs {
	for i := range protocolRegistry {
		if protocolRegistry[i].SchemeName == scheme {
			return &protocolRegistry[i]
		}
	}
	return nil
}

// Protocols returns all registered protocols in registry order.
func Protocols() []ProtocolAttrs {
	out := make([]ProtocolAttrs, len(protocolRegistry))
	copy(out, protocolRegistry)
	return out
}
