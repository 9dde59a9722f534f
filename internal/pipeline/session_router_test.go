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

	"github.com/rtpcast/rtpcast/internal/packet"
	"github.com/rtpcast/rtpcast/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T) *pipeline.ReceiverSession {
	t.Helper()

	sess, err := pipeline.NewReceiverSession(pipeline.ReceiverSessionConfig{
		PayloadType: 10,
	}, packet.NewPool(0))
	require.NoError(t, err)
	return sess
}

func TestSessionRouterBySource(t *testing.T) {
	t.Parallel()

	router := pipeline.NewSessionRouter()
	sess := newTestSession(t)
	addr := netip.MustParseAddrPort("192.168.0.1:5000")

	require.NoError(t, router.AddSession(sess, 0x11, addr))

	assert.Same(t, sess, router.FindBySource(0x11))
	assert.Same(t, sess, router.FindByAddress(addr))
	assert.Nil(t, router.FindBySource(0x22))
	assert.True(t, router.HasSession(sess))
}

func TestSessionRouterConflicts(t *testing.T) {
	t.Parallel()

	router := pipeline.NewSessionRouter()
	first := newTestSession(t)
	second := newTestSession(t)
	addr := netip.MustParseAddrPort("192.168.0.1:5000")
	otherAddr := netip.MustParseAddrPort("192.168.0.2:5000")

	require.NoError(t, router.AddSession(first, 0x11, addr))

	assert.ErrorIs(t, router.AddSession(second, 0x11, otherAddr), pipeline.ErrRouteConflict)
	assert.ErrorIs(t, router.AddSession(second, 0x22, addr), pipeline.ErrRouteConflict)
	assert.NoError(t, router.AddSession(second, 0x22, otherAddr))
}

func TestSessionRouterLinkSourceJoinsStreams(t *testing.T) {
	t.Parallel()

	router := pipeline.NewSessionRouter()
	sess := newTestSession(t)
	addr := netip.MustParseAddrPort("10.0.0.1:4000")

	require.NoError(t, router.AddSession(sess, 0x11, addr))

	// Link the session's SSRC to a CNAME, then link a second SSRC to the
	// same CNAME: both route to the same session.
	require.NoError(t, router.LinkSource(0x11, "participant-a"))
	require.NoError(t, router.LinkSource(0x99, "participant-a"))

	assert.Same(t, sess, router.FindBySource(0x99))
}

func TestSessionRouterPendingLink(t *testing.T) {
	t.Parallel()

	router := pipeline.NewSessionRouter()
	sess := newTestSession(t)
	addr := netip.MustParseAddrPort("10.0.0.1:4000")

	// The control plane may announce the pair before any media arrives.
	require.NoError(t, router.LinkSource(0x11, "participant-a"))

	require.NoError(t, router.AddSession(sess, 0x11, addr))
	require.NoError(t, router.LinkSource(0x99, "participant-a"))

	assert.Same(t, sess, router.FindBySource(0x99))
}

func TestSessionRouterUnlinkSource(t *testing.T) {
	t.Parallel()

	router := pipeline.NewSessionRouter()
	sess := newTestSession(t)
	addr := netip.MustParseAddrPort("10.0.0.1:4000")

	require.NoError(t, router.AddSession(sess, 0x11, addr))
	router.UnlinkSource(0x11)

	assert.Nil(t, router.FindBySource(0x11))
	// The address route remains until the session is removed.
	assert.True(t, router.HasSession(sess))
}

func TestSessionRouterRemoveSession(t *testing.T) {
	t.Parallel()

	router := pipeline.NewSessionRouter()
	sess := newTestSession(t)
	addr := netip.MustParseAddrPort("10.0.0.1:4000")

	require.NoError(t, router.AddSession(sess, 0x11, addr))
	require.NoError(t, router.LinkSource(0x11, "participant-a"))

	router.RemoveSession(sess)

	assert.Nil(t, router.FindBySource(0x11))
	assert.Nil(t, router.FindByAddress(addr))
	assert.False(t, router.HasSession(sess))
}
