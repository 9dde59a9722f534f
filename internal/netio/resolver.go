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

package netio

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"

	"github.com/rtpcast/rtpcast/internal/address"
)

// ErrResolve means the URI's host or port could not be resolved.
var ErrResolve = errors.New("can't resolve endpoint address")

// ResolveURI resolves a network URI's host and port to a UDP address.
// The URI must verify; the port falls back to the registry default.
func ResolveURI(uri *address.NetworkUri) (netip.AddrPort, error) {
	if !uri.Verify(address.FieldProto | address.FieldHost | address.FieldPort) {
		return netip.AddrPort{}, ErrResolve
	}

	host := uri.Host()
	// Bracketed IPv6 literals resolve without the brackets.
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")

	service := uri.Service()
	if service == "" {
		return netip.AddrPort{}, ErrResolve
	}

	udpAddr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(host, service))
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("%w: %w", ErrResolve, err)
	}

	addrPort := udpAddr.AddrPort()
	if !addrPort.IsValid() {
		return netip.AddrPort{}, ErrResolve
	}

	return addrPort, nil
}
