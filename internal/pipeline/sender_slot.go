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
	"math/rand/v2"

	"github.com/rtpcast/rtpcast/internal/address"
	"github.com/rtpcast/rtpcast/internal/audio"
	"github.com/rtpcast/rtpcast/internal/fec"
	"github.com/rtpcast/rtpcast/internal/packet"
	"github.com/rtpcast/rtpcast/internal/rtp"
)

// defaultPacketDuration is the per-packet length in timestamp units.
const defaultPacketDuration = 320

var (
	// ErrNotReady means the slot misses an endpoint its config requires.
	ErrNotReady = errors.New("sender slot is not ready")
	// ErrDead means the slot's FEC writer latched dead.
	ErrDead = errors.New("sender slot is dead")
)

// SenderSlotConfig describes one outbound connection.
type SenderSlotConfig struct {
	PayloadType uint8
	FECScheme   packet.FECScheme
	FECWriter   fec.BlockWriterConfig
	// PacketDuration is the samples-per-channel carried by one packet;
	// zero selects the default.
	PacketDuration int
}

// SenderSlot is the pipeline half of one outbound connection: it
// packetizes PCM frames into RTP, runs them through the FEC writer, and
// routes source and repair packets to their interface writers.
type SenderSlot struct {
	config   SenderSlotConfig
	encoding rtp.Encoding
	identity *rtp.Identity
	pool     *packet.Pool

	composer  packet.Composer
	fecWriter *fec.BlockWriter

	writers [address.IfaceMax]packet.Writer

	seqNum    packet.SeqNum
	timestamp packet.Timestamp

	pending []int16
}

// NewSenderSlot creates a sender pipeline slot.
func NewSenderSlot(config SenderSlotConfig, pool *packet.Pool) (*SenderSlot, error) {
	enc, ok := rtp.LookupEncoding(config.PayloadType)
	if !ok {
		return nil, packet.ErrNoRoute
	}

	if config.PacketDuration == 0 {
		config.PacketDuration = defaultPacketDuration
	}

	identity, err := rtp.NewIdentity()
	if err != nil {
		return nil, err
	}

	s := &SenderSlot{
		config:    config,
		encoding:  enc,
		identity:  identity,
		pool:      pool,
		seqNum:    packet.SeqNum(rand.Uint32()),    //nolint:gosec
		timestamp: packet.Timestamp(rand.Uint32()), //nolint:gosec
	}

	if config.FECScheme == packet.FECNone {
		s.composer = rtp.NewComposer()
	} else {
		s.composer = fec.NewSourceComposer(config.FECScheme)
	}

	return s, nil
}

// SourceID returns the slot's outbound SSRC.
func (s *SenderSlot) SourceID() packet.SourceID {
	return s.identity.SSRC()
}

// CNAME returns the slot's participant name.
func (s *SenderSlot) CNAME() string {
	return s.identity.CNAME()
}

// AttachWriter wires the outbound writer of one interface. Once the
// interfaces the config requires are present, the FEC writer spins up.
func (s *SenderSlot) AttachWriter(iface address.Interface, w packet.Writer) error {
	if iface < 0 || iface >= address.IfaceMax {
		return ErrUnsupportedProto
	}
	if s.writers[iface] != nil {
		return ErrEndpointExists
	}
	s.writers[iface] = w

	if s.fecWriter == nil && s.config.FECScheme != packet.FECNone && s.isReady() {
		encoder, err := fec.NewBlockEncoder(s.config.FECScheme)
		if err != nil {
			return err
		}

		s.fecWriter, err = fec.NewBlockWriter(
			s.config.FECWriter, s.config.FECScheme, encoder,
			writerFunc(s.routePacket),
			fec.NewSourceComposer(s.config.FECScheme),
			fec.NewRepairComposer(s.config.FECScheme),
			s.pool)
		if err != nil {
			return err
		}
	}

	return nil
}

// isReady reports whether every interface the config needs is attached.
func (s *SenderSlot) isReady() bool {
	if s.writers[address.IfaceAudioSource] == nil {
		return false
	}
	if s.config.FECScheme != packet.FECNone && s.writers[address.IfaceAudioRepair] == nil {
		return false
	}
	return true
}

// WriteFrame packetizes PCM samples and pushes them down the pipeline.
func (s *SenderSlot) WriteFrame(samples []int16) error {
	if !s.isReady() {
		return ErrNotReady
	}
	if s.fecWriter != nil && !s.fecWriter.IsAlive() {
		return ErrDead
	}

	s.pending = append(s.pending, samples...)

	packetSamples := s.config.PacketDuration * s.encoding.Channels

	for len(s.pending) >= packetSamples {
		chunk := s.pending[:packetSamples]
		s.pending = s.pending[packetSamples:]

		if err := s.writePacket(chunk); err != nil {
			return err
		}
	}

	return nil
}

func (s *SenderSlot) writePacket(samples []int16) error {
	p := s.pool.NewPacket()

	payloadSize := len(samples) * 2
	if err := s.composer.Prepare(p, payloadSize); err != nil {
		return err
	}

	p.RTP.SourceID = s.identity.SSRC()
	p.RTP.SeqNum = s.seqNum
	p.RTP.StreamTimestamp = s.timestamp
	p.RTP.PayloadType = s.config.PayloadType
	p.RTP.Duration = packet.Timestamp(s.config.PacketDuration) //nolint:gosec
	audio.EncodeS16BE(p.RTP.Payload, samples)

	s.seqNum++
	s.timestamp += packet.Timestamp(s.config.PacketDuration) //nolint:gosec

	if s.fecWriter != nil {
		return s.fecWriter.WritePacket(p)
	}

	if err := s.composer.Compose(p); err != nil {
		return err
	}
	return s.routePacket(p)
}

// routePacket delivers one composed packet to its interface writer.
func (s *SenderSlot) routePacket(p *packet.Packet) error {
	iface := address.IfaceAudioSource
	if p.HasFlags(packet.FlagRepair) {
		iface = address.IfaceAudioRepair
	}

	w := s.writers[iface]
	if w == nil {
		return ErrNotReady
	}
	return w.WritePacket(p)
}

// writerFunc adapts a function to packet.Writer.
type writerFunc func(*packet.Packet) error

func (f writerFunc) WritePacket(p *packet.Packet) error {
	return f(p)
}
