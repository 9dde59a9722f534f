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

package netio_test

import (
	"testing"

	"github.com/rtpcast/rtpcast/internal/address"
	"github.com/rtpcast/rtpcast/internal/netio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveURIIPv4(t *testing.T) {
	t.Parallel()

	uri, err := address.ParseNetworkUri("rtp://127.0.0.1:5000")
	require.NoError(t, err)

	addr, err := netio.ResolveURI(uri)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:5000", addr.String())
}

func TestResolveURIIPv6Literal(t *testing.T) {
	t.Parallel()

	uri, err := address.ParseNetworkUri("rtp://[::1]:5000")
	require.NoError(t, err)

	addr, err := netio.ResolveURI(uri)
	require.NoError(t, err)
	assert.Equal(t, uint16(5000), addr.Port())
	assert.True(t, addr.Addr().Is6())
}

func TestResolveURIDefaultPort(t *testing.T) {
	t.Parallel()

	uri, err := address.ParseNetworkUri("rtsp://127.0.0.1")
	require.NoError(t, err)

	addr, err := netio.ResolveURI(uri)
	require.NoError(t, err)
	assert.Equal(t, uint16(554), addr.Port())
}

func TestResolveURIRejectsUnverified(t *testing.T) {
	t.Parallel()

	uri := address.NewNetworkUri()
	_, err := netio.ResolveURI(uri)
	assert.ErrorIs(t, err, netio.ErrResolve)
}

func TestOpenUdpPortEphemeral(t *testing.T) {
	t.Parallel()

	port, err := netio.OpenUdpPort(netio.UdpConfig{})
	require.NoError(t, err)
	defer port.Close()

	assert.NotZero(t, port.LocalAddr().Port())
}
