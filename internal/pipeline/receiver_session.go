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
	"fmt"
	"log/slog"
	"time"

	"github.com/rtpcast/rtpcast/internal/audio"
	"github.com/rtpcast/rtpcast/internal/fec"
	"github.com/rtpcast/rtpcast/internal/metrics"
	"github.com/rtpcast/rtpcast/internal/packet"
	"github.com/rtpcast/rtpcast/internal/rtp"
)

// defaultSessionTimeout removes a session after this long without packets.
const defaultSessionTimeout = 2 * time.Second

// ReceiverSessionConfig describes one inbound stream.
type ReceiverSessionConfig struct {
	PayloadType uint8
	FECScheme   packet.FECScheme
	FECReader   fec.BlockReaderConfig
	// Timeout is the no-playback watchdog; zero selects the default.
	Timeout time.Duration
}

// SessionMetrics is a per-participant snapshot.
type SessionMetrics struct {
	SourceID       packet.SourceID
	CNAME          string
	PacketsTotal   uint64
	PacketsRestored uint64
	PacketsLate    uint64
}

// ReceiverSession handles one inbound media stream from one remote
// participant: packet queues, optional FEC reader, depacketizing into PCM
// frames exposed to the mixer, and the no-playback watchdog.
type ReceiverSession struct {
	config ReceiverSessionConfig

	sourceQueue *packet.Queue
	repairQueue *packet.Queue

	// packetReader is the FEC reader when the stream is protected, or the
	// bare source queue otherwise.
	packetReader packet.Reader

	encoding rtp.Encoding

	sourceID packet.SourceID
	cname    string

	samples []int16

	lastTimestamp      packet.Timestamp
	lastTimestampValid bool

	lastActivity time.Time
	timeout      time.Duration

	metrics SessionMetrics

	dead error
}

// NewReceiverSession creates a session for the stream described by the
// config. The payload type must be a known encoding.
func NewReceiverSession(config ReceiverSessionConfig, pool *packet.Pool) (*ReceiverSession, error) {
	enc, ok := rtp.LookupEncoding(config.PayloadType)
	if !ok {
		return nil, fmt.Errorf("%w: payload_type=%d", packet.ErrNoRoute, config.PayloadType)
	}

	if config.Timeout == 0 {
		config.Timeout = defaultSessionTimeout
	}

	s := &ReceiverSession{
		config:      config,
		sourceQueue: packet.NewQueue(),
		repairQueue: packet.NewQueue(),
		encoding:    enc,
		timeout:     config.Timeout,
	}

	if config.FECScheme == packet.FECNone {
		s.packetReader = s.sourceQueue
	} else {
		decoder, err := fec.NewBlockDecoder(config.FECScheme)
		if err != nil {
			return nil, err
		}
		s.packetReader = fec.NewBlockReader(
			config.FECReader, config.FECScheme, decoder,
			s.sourceQueue, s.repairQueue, rtp.NewParser(), pool)
	}

	return s, nil
}

// SourceID returns the stream SSRC learned from the first routed packet.
func (s *ReceiverSession) SourceID() packet.SourceID {
	return s.sourceID
}

// SetCNAME records the control-plane participant name.
func (s *ReceiverSession) SetCNAME(cname string) {
	s.cname = cname
}

// RoutePacket accepts one transport packet belonging to this session.
func (s *ReceiverSession) RoutePacket(p *packet.Packet, now time.Time) error {
	if s.dead != nil {
		return s.dead
	}

	s.lastActivity = now

	if p.HasFlags(packet.FlagRepair) {
		return s.repairQueue.WritePacket(p)
	}

	if s.sourceID == 0 && p.HasSourceID() {
		s.sourceID = p.StreamSourceID()
	}

	return s.sourceQueue.WritePacket(p)
}

// Refresh pumps the pipeline and runs the watchdog. It returns the next
// deadline at which Refresh wants to run again. ErrFinish means the
// session timed out; ErrAbort means the stream is broken beyond recovery.
// Either removes the session, not the group.
func (s *ReceiverSession) Refresh(now time.Time) (time.Time, error) {
	if s.dead != nil {
		return time.Time{}, s.dead
	}

	if err := s.pump(); err != nil {
		s.dead = err
		return time.Time{}, err
	}

	if s.lastActivity.IsZero() {
		s.lastActivity = now
	}

	deadline := s.lastActivity.Add(s.timeout)
	if !now.Before(deadline) {
		slog.Info("session: no playback timeout", "ssrc", s.sourceID)
		s.dead = packet.ErrFinish
		return time.Time{}, s.dead
	}

	return deadline, nil
}

// pump drains the packet reader and depacketizes into the frame buffer.
// Within one session the delivered stream preserves RTP timestamp order;
// late packets are dropped.
func (s *ReceiverSession) pump() error {
	for {
		p, err := s.packetReader.ReadPacket(packet.ModeFetch)
		if err != nil {
			if err == packet.ErrDrain { //nolint:errorlint
				return nil
			}
			return err
		}

		if p.RTP == nil {
			continue
		}

		if s.lastTimestampValid && packet.TimestampLT(p.RTP.StreamTimestamp, s.lastTimestamp) {
			s.metrics.PacketsLate++
			metrics.PacketsDropped.WithLabelValues("late").Inc()
			continue
		}

		s.lastTimestamp = p.RTP.StreamTimestamp
		s.lastTimestampValid = true

		s.metrics.PacketsTotal++
		if p.HasFlags(packet.FlagRestored) {
			s.metrics.PacketsRestored++
			metrics.PacketsRestored.Inc()
		}

		s.samples = append(s.samples, audio.DecodeS16BE(p.RTP.Payload)...)
	}
}

// ReadFrame implements audio.FrameReader for the mixer.
func (s *ReceiverSession) ReadFrame(n int) []int16 {
	if s.dead == nil {
		if err := s.pump(); err != nil {
			s.dead = err
		}
	}

	if n > len(s.samples) {
		n = len(s.samples)
	}
	out := s.samples[:n]
	s.samples = s.samples[n:]
	return out
}

// ProcessReport accepts the control-plane description of the sending side.
func (s *ReceiverSession) ProcessReport(cname string) {
	s.cname = cname
}

// Metrics returns a snapshot of the per-stream counters.
func (s *ReceiverSession) Metrics() SessionMetrics {
	m := s.metrics
	m.SourceID = s.sourceID
	m.CNAME = s.cname
	return m
}
