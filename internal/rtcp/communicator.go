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

package rtcp

import (
	"fmt"
	"log/slog"
	"time"

	pionrtcp "github.com/pion/rtcp"
	"github.com/rtpcast/rtpcast/internal/packet"
)

// reportInterval is the fixed RTCP report generation period.
const reportInterval = 5 * time.Second

// RecvStream is one inbound stream described in generated reports.
type RecvStream struct {
	SourceID        packet.SourceID
	PacketsReceived uint64
}

// Participant is the session group as seen by the communicator. Parsed
// control packets drive these callbacks; report generation queries them.
type Participant interface {
	// ParticipantInfo returns the local CNAME and SSRC.
	ParticipantInfo() (string, packet.SourceID)
	// NotifyRecvStream links a remote SSRC with its CNAME.
	NotifyRecvStream(source packet.SourceID, cname string) error
	// HaltRecvStream is called when the remote side says goodbye.
	HaltRecvStream(source packet.SourceID)
	// QueryRecvStreams snapshots the inbound streams for reports.
	QueryRecvStreams() []RecvStream
}

// Communicator parses inbound control packets and periodically emits
// receiver reports. The control plane bypasses the FEC layer entirely.
type Communicator struct {
	participant Participant
	out         packet.Writer
	pool        *packet.Pool

	lastReport time.Time
}

// NewCommunicator creates a communicator. The outbound writer may be nil
// when the control endpoint has no send path.
func NewCommunicator(participant Participant, out packet.Writer, pool *packet.Pool) *Communicator {
	return &Communicator{
		participant: participant,
		out:         out,
		pool:        pool,
	}
}

// ProcessPacket parses one compound control packet and drives the
// participant callbacks.
func (c *Communicator) ProcessPacket(p *packet.Packet, _ time.Time) error {
	pkts, err := pionrtcp.Unmarshal(p.Buffer())
	if err != nil {
		return fmt.Errorf("malformed control packet: %w", err)
	}

	for _, pkt := range pkts {
		switch pkt := pkt.(type) {
		case *pionrtcp.SourceDescription:
			c.processSourceDescription(pkt)
		case *pionrtcp.Goodbye:
			for _, src := range pkt.Sources {
				c.participant.HaltRecvStream(src)
			}
		default:
			// Sender and receiver reports carry timing we don't consume yet.
		}
	}

	return nil
}

func (c *Communicator) processSourceDescription(sdes *pionrtcp.SourceDescription) {
	for _, chunk := range sdes.Chunks {
		for _, item := range chunk.Items {
			if item.Type != pionrtcp.SDESCNAME {
				continue
			}
			if err := c.participant.NotifyRecvStream(chunk.Source, item.Text); err != nil {
				slog.Error("rtcp: can't link source",
					"ssrc", chunk.Source, "cname", item.Text, "error", err)
			}
		}
	}
}

// GenerateReports emits a receiver report plus SDES when the interval
// elapsed, and returns the next generation deadline.
func (c *Communicator) GenerateReports(now time.Time) (time.Time, error) {
	if !c.lastReport.IsZero() && now.Sub(c.lastReport) < reportInterval {
		return c.lastReport.Add(reportInterval), nil
	}
	c.lastReport = now

	if c.out == nil {
		return now.Add(reportInterval), nil
	}

	cname, ssrc := c.participant.ParticipantInfo()

	report := &pionrtcp.ReceiverReport{SSRC: ssrc}
	for _, stream := range c.participant.QueryRecvStreams() {
		report.Reports = append(report.Reports, pionrtcp.ReceptionReport{
			SSRC: stream.SourceID,
		})
	}

	sdes := &pionrtcp.SourceDescription{
		Chunks: []pionrtcp.SourceDescriptionChunk{{
			Source: ssrc,
			Items: []pionrtcp.SourceDescriptionItem{{
				Type: pionrtcp.SDESCNAME,
				Text: cname,
			}},
		}},
	}

	data, err := pionrtcp.Marshal([]pionrtcp.Packet{report, sdes})
	if err != nil {
		return time.Time{}, fmt.Errorf("can't compose control packet: %w", err)
	}

	p := c.pool.NewPacket()
	p.SetBuffer(data)
	p.AddFlags(packet.FlagControl | packet.FlagPrepared | packet.FlagComposed)

	if err := c.out.WritePacket(p); err != nil {
		return time.Time{}, err
	}

	return now.Add(reportInterval), nil
}
