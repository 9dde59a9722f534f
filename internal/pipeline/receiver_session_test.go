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

package pipeline_test

import (
	"net/netip"
	"testing"
	"time"

	"github.com/rtpcast/rtpcast/internal/packet"
	"github.com/rtpcast/rtpcast/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionDropsLatePackets(t *testing.T) {
	t.Parallel()

	sess := newTestSession(t)
	now := time.Now()
	addr := netip.MustParseAddrPort("10.0.0.1:4000")

	require.NoError(t, sess.RoutePacket(makeSourcePacket(0x11, 1, 1000, addr, 1, 4), now))
	require.NoError(t, sess.RoutePacket(makeSourcePacket(0x11, 2, 2000, addr, 2, 4), now))
	// A stale packet arrives after newer ones.
	require.NoError(t, sess.RoutePacket(makeSourcePacket(0x11, 3, 500, addr, 3, 4), now))

	samples := sess.ReadFrame(16)
	assert.Len(t, samples, 8)

	m := sess.Metrics()
	assert.Equal(t, uint64(2), m.PacketsTotal)
	assert.Equal(t, uint64(1), m.PacketsLate)
}

func TestSessionTimestampWrapAround(t *testing.T) {
	t.Parallel()

	sess := newTestSession(t)
	now := time.Now()
	addr := netip.MustParseAddrPort("10.0.0.1:4000")

	// Timestamps crossing the 32-bit boundary stay in order.
	require.NoError(t, sess.RoutePacket(makeSourcePacket(0x11, 1, 0xFFFFFFF0, addr, 1, 4), now))
	require.NoError(t, sess.RoutePacket(makeSourcePacket(0x11, 2, 0x00000010, addr, 2, 4), now))

	sess.ReadFrame(8)

	m := sess.Metrics()
	assert.Equal(t, uint64(2), m.PacketsTotal)
	assert.Equal(t, uint64(0), m.PacketsLate)
}

func TestSessionLearnsSourceID(t *testing.T) {
	t.Parallel()

	sess := newTestSession(t)
	addr := netip.MustParseAddrPort("10.0.0.1:4000")

	require.NoError(t, sess.RoutePacket(makeSourcePacket(0xABCD, 1, 0, addr, 1, 4), time.Now()))
	assert.Equal(t, packet.SourceID(0xABCD), sess.SourceID())
}

func TestSessionUnknownPayloadType(t *testing.T) {
	t.Parallel()

	_, err := pipeline.NewReceiverSession(pipeline.ReceiverSessionConfig{
		PayloadType: 96,
	}, packet.NewPool(0))
	assert.Error(t, err)
}

func TestSessionLDPCUnsupported(t *testing.T) {
	t.Parallel()

	_, err := pipeline.NewReceiverSession(pipeline.ReceiverSessionConfig{
		PayloadType: 10,
		FECScheme:   packet.FECLDPCStaircase,
	}, packet.NewPool(0))
	assert.Error(t, err)
}
