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
	"time"

	"github.com/rtpcast/rtpcast/internal/audio"
	"github.com/rtpcast/rtpcast/internal/metrics"
	"github.com/rtpcast/rtpcast/internal/packet"
	"github.com/rtpcast/rtpcast/internal/rtcp"
	"github.com/rtpcast/rtpcast/internal/rtp"
)

// ErrNoControl means a control packet arrived on a slot without a control
// endpoint.
var ErrNoControl = errors.New("no control pipeline on this slot")

// SlotMetrics is the per-slot snapshot exposed through the node.
type SlotMetrics struct {
	SourceID        packet.SourceID
	NumParticipants int
}

// ReceiverSessionGroup owns the sessions of one receiver slot. Transport
// packets are routed to sessions, auto-creating them for unknown source
// streams; control packets feed the RTCP communicator whose callbacks
// drive the router.
type ReceiverSessionGroup struct {
	sessionDefaults ReceiverSessionConfig

	mixer *audio.Mixer
	pool  *packet.Pool

	router   *SessionRouter
	sessions []*ReceiverSession

	identity     *rtp.Identity
	communicator *rtcp.Communicator
}

// NewReceiverSessionGroup creates an empty session group.
func NewReceiverSessionGroup(
	sessionDefaults ReceiverSessionConfig,
	mixer *audio.Mixer,
	pool *packet.Pool,
) (*ReceiverSessionGroup, error) {
	identity, err := rtp.NewIdentity()
	if err != nil {
		return nil, err
	}

	return &ReceiverSessionGroup{
		sessionDefaults: sessionDefaults,
		mixer:           mixer,
		pool:            pool,
		router:          NewSessionRouter(),
		identity:        identity,
	}, nil
}

// CreateControlPipeline attaches the RTCP communicator, using the given
// writer for outbound reports. May be called once, when the control
// interface is bound.
func (g *ReceiverSessionGroup) CreateControlPipeline(out packet.Writer) {
	g.communicator = rtcp.NewCommunicator(g, out, g.pool)
}

// Router exposes the session router for tests and metrics.
func (g *ReceiverSessionGroup) Router() *SessionRouter {
	return g.router
}

// NumSessions returns the current session count.
func (g *ReceiverSessionGroup) NumSessions() int {
	return len(g.sessions)
}

// RoutePacket dispatches one inbound packet.
func (g *ReceiverSessionGroup) RoutePacket(p *packet.Packet, now time.Time) error {
	if p.HasFlags(packet.FlagControl) {
		return g.routeControlPacket(p, now)
	}
	return g.routeTransportPacket(p, now)
}

// RefreshSessions ticks every session, removes finished ones, and returns
// the earliest next deadline. Report generation runs first so that report
// emission sees the current session set.
func (g *ReceiverSessionGroup) RefreshSessions(now time.Time) (time.Time, error) {
	var nextDeadline time.Time

	if g.communicator != nil {
		deadline, err := g.communicator.GenerateReports(now)
		if err != nil {
			return time.Time{}, err
		}
		nextDeadline = deadline
	}

	// Iterate a copy: removal mutates g.sessions.
	sessions := make([]*ReceiverSession, len(g.sessions))
	copy(sessions, g.sessions)

	for _, sess := range sessions {
		deadline, err := sess.Refresh(now)

		if err != nil {
			// Session failures break only the session, never the group.
			if errors.Is(err, packet.ErrFinish) || errors.Is(err, packet.ErrAbort) {
				g.removeSession(sess, err)
				continue
			}
			return time.Time{}, err
		}

		if !deadline.IsZero() && (nextDeadline.IsZero() || deadline.Before(nextDeadline)) {
			nextDeadline = deadline
		}
	}

	return nextDeadline, nil
}

// GetSlotMetrics snapshots the slot-level counters.
func (g *ReceiverSessionGroup) GetSlotMetrics() SlotMetrics {
	return SlotMetrics{
		SourceID:        g.identity.SSRC(),
		NumParticipants: len(g.sessions),
	}
}

// GetParticipantMetrics snapshots the per-session counters.
func (g *ReceiverSessionGroup) GetParticipantMetrics() []SessionMetrics {
	out := make([]SessionMetrics, 0, len(g.sessions))
	for _, sess := range g.sessions {
		out = append(out, sess.Metrics())
	}
	return out
}

// Close removes all sessions.
func (g *ReceiverSessionGroup) Close() {
	slog.Debug("session group: removing all sessions")
	for len(g.sessions) > 0 {
		g.removeSession(g.sessions[len(g.sessions)-1], nil)
	}
}

// ParticipantInfo implements rtcp.Participant.
func (g *ReceiverSessionGroup) ParticipantInfo() (string, packet.SourceID) {
	return g.identity.CNAME(), g.identity.SSRC()
}

// NotifyRecvStream implements rtcp.Participant: the control plane linked
// an SSRC with a CNAME.
func (g *ReceiverSessionGroup) NotifyRecvStream(source packet.SourceID, cname string) error {
	oldSess := g.router.FindBySource(source)

	if err := g.router.LinkSource(source, cname); err != nil {
		return err
	}

	if oldSess != nil && !g.router.HasSession(oldSess) {
		// The last route to the session disappeared with this link.
		g.removeSession(oldSess, nil)
	}

	if curSess := g.router.FindBySource(source); curSess != nil {
		curSess.ProcessReport(cname)
	}

	return nil
}

// HaltRecvStream implements rtcp.Participant: the remote said goodbye.
func (g *ReceiverSessionGroup) HaltRecvStream(source packet.SourceID) {
	oldSess := g.router.FindBySource(source)

	g.router.UnlinkSource(source)

	if oldSess != nil && !g.router.HasSession(oldSess) {
		g.removeSession(oldSess, nil)
	}
}

// QueryRecvStreams implements rtcp.Participant.
func (g *ReceiverSessionGroup) QueryRecvStreams() []rtcp.RecvStream {
	out := make([]rtcp.RecvStream, 0, len(g.sessions))
	for _, sess := range g.sessions {
		m := sess.Metrics()
		out = append(out, rtcp.RecvStream{
			SourceID:        m.SourceID,
			PacketsReceived: m.PacketsTotal,
		})
	}
	return out
}

func (g *ReceiverSessionGroup) routeControlPacket(p *packet.Packet, now time.Time) error {
	if g.communicator == nil {
		return ErrNoControl
	}
	return g.communicator.ProcessPacket(p, now)
}

func (g *ReceiverSessionGroup) routeTransportPacket(p *packet.Packet, now time.Time) error {
	var sess *ReceiverSession

	if p.HasSourceID() {
		sess = g.router.FindBySource(p.StreamSourceID())
	}

	if sess == nil && p.UDP != nil {
		// Fall back to routing by remote source address. Packets from one
		// address are assumed to belong to one session; with a working
		// control protocol the SSRC route wins before we get here.
		sess = g.router.FindByAddress(p.UDP.SrcAddr)
	}

	if sess != nil {
		if err := sess.RoutePacket(p, now); err != nil {
			slog.Error("session group: session failed, removing", "error", err)
			g.removeSession(sess, err)
		}
		return nil
	}

	if !g.canCreateSession(p) {
		return packet.ErrNoRoute
	}

	return g.createSession(p, now)
}

func (g *ReceiverSessionGroup) canCreateSession(p *packet.Packet) bool {
	if p.HasFlags(packet.FlagRepair) {
		slog.Debug("session group: ignoring repair packet for unknown session")
		return false
	}
	return true
}

func (g *ReceiverSessionGroup) createSession(p *packet.Packet, now time.Time) error {
	if !p.HasFlags(packet.FlagRTP) {
		slog.Error("session group: can't create session, unexpected non-rtp packet")
		return packet.ErrNoRoute
	}

	if !p.HasFlags(packet.FlagUDP) || p.UDP == nil {
		slog.Error("session group: can't create session, unexpected non-udp packet")
		return packet.ErrNoRoute
	}

	config := g.makeSessionConfig(p)
	sourceID := p.StreamSourceID()
	srcAddr := p.UDP.SrcAddr

	slog.Info("session group: creating session",
		"ssrc", sourceID, "src_addr", srcAddr, "dst_addr", p.UDP.DstAddr)

	sess, err := NewReceiverSession(config, g.pool)
	if err != nil {
		slog.Error("session group: can't create session", "error", err)
		return err
	}

	if err := sess.RoutePacket(p, now); err != nil {
		slog.Error("session group: can't create session, can't handle first packet", "error", err)
		return err
	}

	if err := g.router.AddSession(sess, sourceID, srcAddr); err != nil {
		slog.Error("session group: can't create session, can't create route", "error", err)
		return err
	}

	g.mixer.AddInput(sess)
	g.sessions = append(g.sessions, sess)

	metrics.SessionsTotal.Inc()
	metrics.SessionsActive.Inc()

	return nil
}

func (g *ReceiverSessionGroup) removeSession(sess *ReceiverSession, reason error) {
	if reason != nil {
		slog.Info("session group: removing session", "reason", reason)
	} else {
		slog.Info("session group: removing session")
	}

	g.mixer.RemoveInput(sess)

	for i, s := range g.sessions {
		if s == sess {
			g.sessions = append(g.sessions[:i], g.sessions[i+1:]...)
			metrics.SessionsActive.Dec()
			break
		}
	}

	g.router.RemoveSession(sess)
}

func (g *ReceiverSessionGroup) makeSessionConfig(p *packet.Packet) ReceiverSessionConfig {
	config := g.sessionDefaults

	if p.RTP != nil {
		config.PayloadType = p.RTP.PayloadType
	}
	if p.FEC != nil {
		config.FECScheme = p.FEC.Scheme
	}

	return config
}
