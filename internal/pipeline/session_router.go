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
	"net/netip"

	"github.com/puzpuzpuz/xsync/v4"
	"github.com/rtpcast/rtpcast/internal/packet"
)

var (
	// ErrRouteConflict means a mapping for the key already points at a
	// different session.
	ErrRouteConflict = errors.New("conflicting session route")
)

// SessionRouter maps inbound packets to sessions. Three views are kept
// mutually consistent: SSRC, control-plane CNAME, and remote address as a
// best-effort fallback when no control protocol is in use. The maps are
// written by the pipeline context and read concurrently by metrics queries.
type SessionRouter struct {
	bySource  *xsync.Map[packet.SourceID, *ReceiverSession]
	byAddr    *xsync.Map[netip.AddrPort, *ReceiverSession]
	byCNAME   *xsync.Map[string, *ReceiverSession]
	sourceCNAME *xsync.Map[packet.SourceID, string]
}

// NewSessionRouter creates an empty router.
func NewSessionRouter() *SessionRouter {
	return &SessionRouter{
		bySource:    xsync.NewMap[packet.SourceID, *ReceiverSession](),
		byAddr:      xsync.NewMap[netip.AddrPort, *ReceiverSession](),
		byCNAME:     xsync.NewMap[string, *ReceiverSession](),
		sourceCNAME: xsync.NewMap[packet.SourceID, string](),
	}
}

// FindBySource resolves a session by SSRC.
func (r *SessionRouter) FindBySource(source packet.SourceID) *ReceiverSession {
	sess, _ := r.bySource.Load(source)
	return sess
}

// FindByAddress resolves a session by remote source address.
func (r *SessionRouter) FindByAddress(addr netip.AddrPort) *ReceiverSession {
	sess, _ := r.byAddr.Load(addr)
	return sess
}

// HasSession returns true while at least one route points at the session.
func (r *SessionRouter) HasSession(sess *ReceiverSession) bool {
	found := false
	r.bySource.Range(func(_ packet.SourceID, s *ReceiverSession) bool {
		if s == sess {
			found = true
			return false
		}
		return true
	})
	if found {
		return true
	}
	r.byAddr.Range(func(_ netip.AddrPort, s *ReceiverSession) bool {
		if s == sess {
			found = true
			return false
		}
		return true
	})
	return found
}

// LinkSource binds an SSRC to a control-plane CNAME. When the CNAME is
// already associated with a session, the SSRC is routed to that session;
// otherwise the pair is remembered until a session appears.
func (r *SessionRouter) LinkSource(source packet.SourceID, cname string) error {
	r.sourceCNAME.Store(source, cname)

	sessBySource := r.FindBySource(source)
	sessByCNAME, _ := r.byCNAME.Load(cname)

	switch {
	case sessBySource == nil && sessByCNAME == nil:
		// Nothing to join yet; the pair stays pending.
	case sessBySource != nil && sessByCNAME == nil:
		r.byCNAME.Store(cname, sessBySource)
	case sessBySource == nil && sessByCNAME != nil:
		// A related stream already has a session; route this SSRC there.
		r.bySource.Store(source, sessByCNAME)
	case sessBySource != sessByCNAME:
		return ErrRouteConflict
	}

	return nil
}

// UnlinkSource removes the SSRC route and its CNAME association.
func (r *SessionRouter) UnlinkSource(source packet.SourceID) {
	r.bySource.Delete(source)
	r.sourceCNAME.Delete(source)
}

// AddSession installs routes for a new session. Existing routes for the
// same SSRC or address are a conflict.
func (r *SessionRouter) AddSession(sess *ReceiverSession, source packet.SourceID, addr netip.AddrPort) error {
	if existing := r.FindBySource(source); existing != nil && existing != sess {
		return ErrRouteConflict
	}
	if addr.IsValid() {
		if existing := r.FindByAddress(addr); existing != nil && existing != sess {
			return ErrRouteConflict
		}
	}

	r.bySource.Store(source, sess)
	if addr.IsValid() {
		r.byAddr.Store(addr, sess)
	}

	if cname, ok := r.sourceCNAME.Load(source); ok {
		r.byCNAME.Store(cname, sess)
	}

	return nil
}

// RemoveSession removes every mapping pointing at the session.
func (r *SessionRouter) RemoveSession(sess *ReceiverSession) {
	r.bySource.Range(func(source packet.SourceID, s *ReceiverSession) bool {
		if s == sess {
			r.bySource.Delete(source)
		}
		return true
	})
	r.byAddr.Range(func(addr netip.AddrPort, s *ReceiverSession) bool {
		if s == sess {
			r.byAddr.Delete(addr)
		}
		return true
	})
	r.byCNAME.Range(func(cname string, s *ReceiverSession) bool {
		if s == sess {
			r.byCNAME.Delete(cname)
		}
		return true
	})
}
