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

package address_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rtpcast/rtpcast/internal/address"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNetworkUriBasic(t *testing.T) {
	t.Parallel()

	u, err := address.ParseNetworkUri("rtp://192.168.0.1:5000")
	require.NoError(t, err)

	assert.Equal(t, address.ProtoRTP, u.Proto())
	assert.Equal(t, "192.168.0.1", u.Host())
	assert.Equal(t, 5000, u.Port())
	assert.Equal(t, "", u.Path())
	assert.Equal(t, "rtp://192.168.0.1:5000", u.String())
}

func TestParseNetworkUriIPv6(t *testing.T) {
	t.Parallel()

	u, err := address.ParseNetworkUri("rtp+rs8m://[2001:db8::1]:5000/")
	require.NoError(t, err)

	assert.Equal(t, address.ProtoRTPRS8M, u.Proto())
	assert.Equal(t, "[2001:db8::1]", u.Host())
	assert.Equal(t, 5000, u.Port())
	assert.True(t, u.Verify(address.FieldsAll))
	// Trailing "/" normalizes away.
	assert.Equal(t, "rtp+rs8m://[2001:db8::1]:5000", u.String())
}

func TestParseNetworkUriDefaultPort(t *testing.T) {
	t.Parallel()

	u, err := address.ParseNetworkUri("rtsp://host")
	require.NoError(t, err)

	assert.Equal(t, -1, u.Port())
	assert.Equal(t, 554, u.PortOrDefault())
	assert.Equal(t, "554", u.Service())
	assert.Equal(t, "rtsp://host", u.String())
}

func TestParseNetworkUriPortRequired(t *testing.T) {
	t.Parallel()

	// rtp has no registry default, so the port is mandatory.
	_, err := address.ParseNetworkUri("rtp://host")
	assert.Error(t, err)
}

func TestParseNetworkUriPathRules(t *testing.T) {
	t.Parallel()

	u, err := address.ParseNetworkUri("rtsp://host:554/sessions/main?rate=48000")
	require.NoError(t, err)
	assert.Equal(t, "/sessions/main", u.Path())
	assert.Equal(t, "rate=48000", u.EncodedQuery())

	// Path is forbidden for protocols without path support.
	_, err = address.ParseNetworkUri("rtp://host:5000/path")
	assert.Error(t, err)

	_, err = address.ParseNetworkUri("rtp://host:5000?query")
	assert.Error(t, err)
}

func TestParseNetworkUriPercentDecoding(t *testing.T) {
	t.Parallel()

	u, err := address.ParseNetworkUri("rtsp://host:554/a%20b")
	require.NoError(t, err)
	assert.Equal(t, "/a b", u.Path())
	assert.Equal(t, "rtsp://host:554/a%20b", u.String())
}

func TestParseNetworkUriRejects(t *testing.T) {
	t.Parallel()

	for _, input := range []string{
		"",
		"host:5000",
		"rtp://",
		"rtp://host:port",
		"rtp://host:70000",
		"rtp://host:5000#frag",
		"http://host:5000",
		"rtp://[2001:db8::1:5000",
	} {
		_, err := address.ParseNetworkUri(input)
		assert.Error(t, err, "input %q", input)
	}
}

func TestNetworkUriBrokenFieldIsSticky(t *testing.T) {
	t.Parallel()

	u := address.NewNetworkUri()
	require.True(t, u.SetProto(address.ProtoRTP))
	require.True(t, u.SetHost("host"))

	assert.False(t, u.SetPort(100000))
	assert.Equal(t, address.FieldBroken, u.FieldState(address.FieldPort))

	// Other fields survive the malformed set.
	assert.Equal(t, "host", u.Host())
	assert.False(t, u.Verify(address.FieldsAll))
	assert.Equal(t, "<bad>", u.String())

	// Repairing the field restores validity.
	require.True(t, u.SetPort(5000))
	assert.True(t, u.Verify(address.FieldsAll))
}

func TestNetworkUriRoundTrip(t *testing.T) {
	t.Parallel()

	for _, input := range []string{
		"rtsp://host:554",
		"rtsp://host",
		"rtp://1.2.3.4:5000",
		"rtp+rs8m://[::1]:10001",
		"rs8m://host.example.com:10002",
		"rtp+ldpc://host:20000",
		"ldpc://host:20001",
		"rtcp://host:30000",
		"rtsp://host:554/path?query=1",
	} {
		u, err := address.ParseNetworkUri(input)
		require.NoError(t, err, "input %q", input)

		reparsed, err := address.ParseNetworkUri(u.String())
		require.NoError(t, err, "formatted %q", u.String())

		assert.True(t, u.Equal(reparsed), "diff: %s",
			cmp.Diff(u.String(), reparsed.String()))
	}
}

func TestProtocolRegistry(t *testing.T) {
	t.Parallel()

	attrs := address.LookupScheme("rtp+rs8m")
	require.NotNil(t, attrs)
	assert.Equal(t, address.IfaceAudioSource, attrs.Iface)
	assert.Equal(t, "rtp+rs8m", attrs.SchemeName)

	attrs = address.LookupProtocol(address.ProtoRS8M)
	require.NotNil(t, attrs)
	assert.Equal(t, address.IfaceAudioRepair, attrs.Iface)

	assert.Nil(t, address.LookupScheme("http"))
	assert.Nil(t, address.LookupProtocol(address.ProtoNone))

	assert.Len(t, address.Protocols(), 7)
}
