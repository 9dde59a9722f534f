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

package rtp_test

import (
	"testing"

	"github.com/rtpcast/rtpcast/internal/packet"
	"github.com/rtpcast/rtpcast/internal/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComposeParseRoundTrip(t *testing.T) {
	t.Parallel()

	pool := packet.NewPool(0)
	composer := rtp.NewComposer()

	p := pool.NewPacket()
	require.NoError(t, composer.Prepare(p, 16))

	p.RTP.SourceID = 0xDEADBEEF
	p.RTP.SeqNum = 4242
	p.RTP.StreamTimestamp = 88200
	p.RTP.PayloadType = rtp.PayloadTypeL16Stereo
	p.RTP.Marker = true
	for i := range p.RTP.Payload {
		p.RTP.Payload[i] = byte(i)
	}
	require.NoError(t, composer.Compose(p))
	assert.True(t, p.HasFlags(packet.FlagComposed))

	parsed := pool.NewPacket()
	require.NoError(t, rtp.NewParser().Parse(parsed, p.Buffer()))

	assert.Equal(t, p.RTP.SourceID, parsed.RTP.SourceID)
	assert.Equal(t, p.RTP.SeqNum, parsed.RTP.SeqNum)
	assert.Equal(t, p.RTP.StreamTimestamp, parsed.RTP.StreamTimestamp)
	assert.Equal(t, p.RTP.PayloadType, parsed.RTP.PayloadType)
	assert.Equal(t, p.RTP.Marker, parsed.RTP.Marker)
	assert.Equal(t, p.RTP.Payload, parsed.RTP.Payload)
	assert.True(t, parsed.HasFlags(packet.FlagRTP|packet.FlagAudio))
	// 16 bytes of stereo L16 is 4 timestamp units.
	assert.Equal(t, packet.Timestamp(4), parsed.RTP.Duration)
}

func TestParseRejectsGarbage(t *testing.T) {
	t.Parallel()

	parsed := packet.NewPool(0).NewPacket()
	err := rtp.NewParser().Parse(parsed, []byte{0x00, 0x01, 0x02})
	assert.ErrorIs(t, err, rtp.ErrParse)
}

func TestComposeRequiresPreparedPacket(t *testing.T) {
	t.Parallel()

	p := packet.NewPool(0).NewPacket()
	assert.ErrorIs(t, rtp.NewComposer().Compose(p), rtp.ErrCompose)
}

func TestIdentity(t *testing.T) {
	t.Parallel()

	id, err := rtp.NewIdentity()
	require.NoError(t, err)

	assert.NotEmpty(t, id.CNAME())

	first := id.SSRC()
	require.NoError(t, id.ChangeSSRC())
	// Technically the same value can be drawn twice, but with 32 random
	// bits two draws colliding would fail one run in four billion.
	assert.NotEqual(t, first, id.SSRC())
}

func TestLookupEncoding(t *testing.T) {
	t.Parallel()

	enc, ok := rtp.LookupEncoding(rtp.PayloadTypeL16Stereo)
	require.True(t, ok)
	assert.Equal(t, 2, enc.Channels)
	assert.Equal(t, 44100, enc.SampleRate)
	assert.Equal(t, 40, enc.FrameSize(10))
	assert.Equal(t, 10, enc.Duration(40))

	_, ok = rtp.LookupEncoding(96)
	assert.False(t, ok)
}
