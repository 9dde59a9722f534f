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

package node

import (
	"errors"
	"log/slog"
	"net/netip"
	"sync"

	"github.com/puzpuzpuz/xsync/v4"
	"github.com/rtpcast/rtpcast/internal/address"
	"github.com/rtpcast/rtpcast/internal/metrics"
	"github.com/rtpcast/rtpcast/internal/netio"
	"github.com/rtpcast/rtpcast/internal/packet"
	"github.com/rtpcast/rtpcast/internal/pipeline"
)

// ErrProtoInconsistent means the same interface uses different protocols
// across slots.
var ErrProtoInconsistent = errors.New("interface protocol differs between slots")

// senderSlot binds one sender pipeline slot to its network ports. A single
// outbound port is shared across interfaces whose configs are identical,
// so a receiver without a control protocol can still associate related
// streams by source address.
type senderSlot struct {
	index    SlotIndex
	broken   bool
	pipeline *pipeline.SenderSlot
	ports    [address.IfaceMax]*netio.UdpPort
	configs  [address.IfaceMax]netio.UdpConfig
	protos   [address.IfaceMax]address.Protocol
}

// Sender is the sending node: slots connect interfaces to remote endpoint
// URIs and user threads push PCM frames that fan out to every ready slot.
type Sender struct {
	controlMu sync.Mutex
	frameMu   sync.Mutex

	pool         *packet.Pool
	slotDefaults pipeline.SenderSlotConfig

	slots *xsync.Map[SlotIndex, *senderSlot]
}

// NewSender creates a sender node.
func NewSender(slotDefaults pipeline.SenderSlotConfig) *Sender {
	return &Sender{
		pool:         packet.NewPool(0),
		slotDefaults: slotDefaults,
		slots:        xsync.NewMap[SlotIndex, *senderSlot](),
	}
}

// Configure sets the UDP config of an interface before it is connected.
func (s *Sender) Configure(slotIndex SlotIndex, iface address.Interface, config netio.UdpConfig) error {
	s.controlMu.Lock()
	defer s.controlMu.Unlock()

	slog.Debug("sender node: configuring interface", "iface", iface, "slot", slotIndex)

	slot, err := s.getSlot(slotIndex, true)
	if err != nil {
		return err
	}

	if slot.broken {
		return ErrSlotBroken
	}

	if slot.ports[iface] != nil {
		s.breakSlot(slot)
		return ErrIfaceBusy
	}

	slot.configs[iface] = config

	return nil
}

// Connect connects an interface of a slot to a remote endpoint URI.
func (s *Sender) Connect(slotIndex SlotIndex, iface address.Interface, uri *address.NetworkUri) error {
	s.controlMu.Lock()
	defer s.controlMu.Unlock()

	slog.Info("sender node: connecting interface", "iface", iface, "slot", slotIndex, "uri", uri)

	slot, err := s.getSlot(slotIndex, true)
	if err != nil {
		return err
	}

	if slot.broken {
		return ErrSlotBroken
	}

	if slot.ports[iface] != nil {
		s.breakSlot(slot)
		return ErrIfaceBusy
	}

	if !uri.Verify(address.FieldsAll) {
		s.breakSlot(slot)
		return ErrBadURI
	}

	attrs := address.LookupProtocol(uri.Proto())
	if attrs == nil || attrs.Iface != iface {
		s.breakSlot(slot)
		return ErrIfaceMismatch
	}

	if err := s.checkProtoConsistency(iface, uri.Proto()); err != nil {
		s.breakSlot(slot)
		return err
	}

	dstAddr, err := netio.ResolveURI(uri)
	if err != nil {
		s.breakSlot(slot)
		return err
	}

	port, err := s.getOutboundPort(slot, iface)
	if err != nil {
		s.breakSlot(slot)
		return err
	}

	s.frameMu.Lock()
	err = slot.pipeline.AttachWriter(iface, &addrWriter{port: port, dst: dstAddr})
	s.frameMu.Unlock()
	if err != nil {
		s.breakSlot(slot)
		return err
	}

	slot.ports[iface] = port
	slot.protos[iface] = uri.Proto()

	return nil
}

// getOutboundPort reuses a port already opened for a compatible interface
// of the same slot when the configs are identical, or opens a new one.
func (s *Sender) getOutboundPort(slot *senderSlot, iface address.Interface) (*netio.UdpPort, error) {
	for other := address.Interface(0); other < address.IfaceMax; other++ {
		if slot.ports[other] == nil {
			continue
		}
		if slot.configs[other] == slot.configs[iface] {
			return slot.ports[other], nil
		}
	}

	port, err := netio.OpenUdpPort(slot.configs[iface])
	if err != nil {
		return nil, err
	}
	port.StartSend()

	return port, nil
}

// checkProtoConsistency verifies the same interface uses the same protocol
// on every slot.
func (s *Sender) checkProtoConsistency(iface address.Interface, proto address.Protocol) error {
	consistent := true
	s.slots.Range(func(_ SlotIndex, other *senderSlot) bool {
		if other.protos[iface] != address.ProtoNone && other.protos[iface] != proto {
			consistent = false
			return false
		}
		return true
	})
	if !consistent {
		return ErrProtoInconsistent
	}
	return nil
}

// Unlink tears a slot down: network ports first, then the pipeline slot,
// since the pipeline writes into the ports.
func (s *Sender) Unlink(slotIndex SlotIndex) error {
	s.controlMu.Lock()
	defer s.controlMu.Unlock()

	slog.Debug("sender node: unlinking slot", "slot", slotIndex)

	slot, err := s.getSlot(slotIndex, false)
	if err != nil {
		return err
	}

	s.cleanupSlot(slot)
	s.slots.Delete(slotIndex)

	if slot.broken {
		metrics.BrokenSlots.Dec()
	}

	return nil
}

// HasBrokenSlots returns true while any slot is latched broken.
func (s *Sender) HasBrokenSlots() bool {
	s.controlMu.Lock()
	defer s.controlMu.Unlock()

	broken := false
	s.slots.Range(func(_ SlotIndex, slot *senderSlot) bool {
		if slot.broken {
			broken = true
			return false
		}
		return true
	})
	return broken
}

// WriteFrame pushes PCM samples to every ready slot.
func (s *Sender) WriteFrame(samples []int16) error {
	s.frameMu.Lock()
	defer s.frameMu.Unlock()

	var firstErr error
	s.slots.Range(func(_ SlotIndex, slot *senderSlot) bool {
		if slot.broken || slot.pipeline == nil {
			return true
		}

		if err := slot.pipeline.WriteFrame(samples); err != nil {
			if errors.Is(err, pipeline.ErrNotReady) {
				return true
			}
			slog.Error("sender node: slot write failed", "slot", slot.index, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
		return true
	})

	return firstErr
}

// Close unlinks every slot.
func (s *Sender) Close() {
	s.controlMu.Lock()
	defer s.controlMu.Unlock()

	s.slots.Range(func(index SlotIndex, slot *senderSlot) bool {
		s.cleanupSlot(slot)
		s.slots.Delete(index)
		return true
	})
}

func (s *Sender) getSlot(slotIndex SlotIndex, autoCreate bool) (*senderSlot, error) {
	if slot, ok := s.slots.Load(slotIndex); ok {
		return slot, nil
	}

	if !autoCreate {
		return nil, ErrSlotNotFound
	}

	pipelineSlot, err := pipeline.NewSenderSlot(s.slotDefaults, s.pool)
	if err != nil {
		return nil, err
	}

	slot := &senderSlot{
		index:    slotIndex,
		pipeline: pipelineSlot,
	}
	s.slots.Store(slotIndex, slot)

	return slot, nil
}

// cleanupSlot removes network ports before the pipeline half.
func (s *Sender) cleanupSlot(slot *senderSlot) {
	closed := make(map[*netio.UdpPort]bool)
	for i, port := range slot.ports {
		if port != nil && !closed[port] {
			port.Close()
			closed[port] = true
		}
		slot.ports[i] = nil
	}

	s.frameMu.Lock()
	slot.pipeline = nil
	s.frameMu.Unlock()
}

func (s *Sender) breakSlot(slot *senderSlot) {
	slog.Error("sender node: marking slot as broken, it needs to be unlinked",
		"slot", slot.index)

	if !slot.broken {
		slot.broken = true
		metrics.BrokenSlots.Inc()
	}
	s.cleanupSlot(slot)
}

// addrWriter stamps the interface's destination address into the UDP view
// before handing the packet to the shared port.
type addrWriter struct {
	port *netio.UdpPort
	dst  netip.AddrPort
}

func (w *addrWriter) WritePacket(p *packet.Packet) error {
	if p.UDP == nil {
		p.UDP = &packet.UDP{}
		p.AddFlags(packet.FlagUDP)
	}
	p.UDP.DstAddr = w.dst
	return w.port.WritePacket(p)
}
