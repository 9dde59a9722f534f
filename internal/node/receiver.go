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
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"github.com/rtpcast/rtpcast/internal/address"
	"github.com/rtpcast/rtpcast/internal/audio"
	"github.com/rtpcast/rtpcast/internal/metrics"
	"github.com/rtpcast/rtpcast/internal/netio"
	"github.com/rtpcast/rtpcast/internal/packet"
	"github.com/rtpcast/rtpcast/internal/pipeline"
)

// SlotIndex addresses one logical connection of a node.
type SlotIndex = uint64

// refreshInterval caps the sleep of the pipeline loop between ticks.
const refreshInterval = 10 * time.Millisecond

var (
	// ErrSlotBroken means the slot latched broken and must be unlinked.
	ErrSlotBroken = errors.New("slot is marked broken and should be unlinked")
	// ErrSlotNotFound means no slot exists at the index.
	ErrSlotNotFound = errors.New("slot not found")
	// ErrBadURI means the endpoint URI does not verify.
	ErrBadURI = errors.New("invalid endpoint uri")
	// ErrIfaceMismatch means the URI protocol serves another interface.
	ErrIfaceMismatch = errors.New("protocol does not match interface")
	// ErrIfaceBusy means the interface already has an attached port.
	ErrIfaceBusy = errors.New("interface is already bound or connected")
)

// receiverSlot binds one pipeline slot to its network ports.
type receiverSlot struct {
	index    SlotIndex
	broken   bool
	pipeline *pipeline.ReceiverSlot
	ports    [address.IfaceMax]*netio.UdpPort
	configs  [address.IfaceMax]netio.UdpConfig
}

// Receiver is the receiving node: it owns the pipeline loop, the mixer,
// and the slots binding endpoints to UDP ports. Public methods may be
// called from any goroutine; a control mutex serializes configuration and
// a pipeline mutex guards the session state shared with the refresh loop.
type Receiver struct {
	controlMu sync.Mutex
	frameMu   sync.Mutex
	pipeMu    sync.Mutex

	pool            *packet.Pool
	mixer           *audio.Mixer
	sessionDefaults pipeline.ReceiverSessionConfig

	slots *xsync.Map[SlotIndex, *receiverSlot]

	done     chan struct{}
	stopOnce sync.Once
}

// NewReceiver creates a receiver node and starts its pipeline loop.
func NewReceiver(sessionDefaults pipeline.ReceiverSessionConfig) *Receiver {
	r := &Receiver{
		pool:            packet.NewPool(0),
		mixer:           audio.NewMixer(),
		sessionDefaults: sessionDefaults,
		slots:           xsync.NewMap[SlotIndex, *receiverSlot](),
		done:            make(chan struct{}),
	}

	go r.refreshLoop()

	return r
}

// refreshLoop ticks all slots, rearming its timer to the earliest session
// deadline.
func (r *Receiver) refreshLoop() {
	timer := time.NewTimer(refreshInterval)
	defer timer.Stop()

	for {
		select {
		case <-r.done:
			return
		case now := <-timer.C:
			next := r.refreshSlots(now)

			wait := refreshInterval
			if !next.IsZero() && time.Until(next) < wait {
				wait = max(time.Until(next), time.Millisecond)
			}
			timer.Reset(wait)
		}
	}
}

func (r *Receiver) refreshSlots(now time.Time) time.Time {
	r.pipeMu.Lock()
	defer r.pipeMu.Unlock()

	var next time.Time

	r.slots.Range(func(_ SlotIndex, slot *receiverSlot) bool {
		if slot.broken {
			return true
		}

		deadline, err := slot.pipeline.Refresh(now)
		if err != nil {
			slog.Error("receiver node: slot refresh failed", "slot", slot.index, "error", err)
			return true
		}

		if !deadline.IsZero() && (next.IsZero() || deadline.Before(next)) {
			next = deadline
		}
		return true
	})

	return next
}

// Configure sets the UDP config of an interface before it is bound.
func (r *Receiver) Configure(slotIndex SlotIndex, iface address.Interface, config netio.UdpConfig) error {
	r.controlMu.Lock()
	defer r.controlMu.Unlock()

	slog.Debug("receiver node: configuring interface", "iface", iface, "slot", slotIndex)

	slot, err := r.getSlot(slotIndex, true)
	if err != nil {
		return err
	}

	if slot.broken {
		return ErrSlotBroken
	}

	if slot.ports[iface] != nil {
		r.breakSlot(slot)
		return ErrIfaceBusy
	}

	slot.configs[iface] = config

	return nil
}

// Bind binds an interface of a slot to a local endpoint URI. On any step's
// failure the slot is marked broken and the operation fails.
func (r *Receiver) Bind(slotIndex SlotIndex, iface address.Interface, uri *address.NetworkUri) error {
	r.controlMu.Lock()
	defer r.controlMu.Unlock()

	slog.Info("receiver node: binding interface", "iface", iface, "slot", slotIndex, "uri", uri)

	slot, err := r.getSlot(slotIndex, true)
	if err != nil {
		return err
	}

	if slot.broken {
		return ErrSlotBroken
	}

	if slot.ports[iface] != nil {
		r.breakSlot(slot)
		return ErrIfaceBusy
	}

	if !uri.Verify(address.FieldsAll) {
		r.breakSlot(slot)
		return ErrBadURI
	}

	attrs := address.LookupProtocol(uri.Proto())
	if attrs == nil || attrs.Iface != iface {
		r.breakSlot(slot)
		return ErrIfaceMismatch
	}

	bindAddr, err := netio.ResolveURI(uri)
	if err != nil {
		r.breakSlot(slot)
		return err
	}

	config := slot.configs[iface]
	config.Bind = bindAddr

	port, err := netio.OpenUdpPort(config)
	if err != nil {
		r.breakSlot(slot)
		return err
	}

	// Control interfaces also send: reports go back out the same port.
	var outboundWriter packet.Writer
	if iface == address.IfaceAudioControl {
		port.StartSend()
		outboundWriter = port
	}

	r.pipeMu.Lock()
	endpoint, err := slot.pipeline.AddEndpoint(iface, uri.Proto(), r.pool, outboundWriter)
	r.pipeMu.Unlock()
	if err != nil {
		port.Close()
		r.breakSlot(slot)
		return err
	}

	port.StartRecv(endpoint)

	slot.ports[iface] = port

	if uri.Port() == 0 {
		// Report back the ephemeral port we selected.
		uri.SetPort(int(port.LocalAddr().Port()))
	}

	return nil
}

// Unlink tears a slot down: the pipeline slot first, then the network
// ports, since the ports write into the pipeline's endpoints.
func (r *Receiver) Unlink(slotIndex SlotIndex) error {
	r.controlMu.Lock()
	defer r.controlMu.Unlock()

	slog.Debug("receiver node: unlinking slot", "slot", slotIndex)

	slot, err := r.getSlot(slotIndex, false)
	if err != nil {
		return err
	}

	r.cleanupSlot(slot)
	r.slots.Delete(slotIndex)

	if slot.broken {
		metrics.BrokenSlots.Dec()
	}

	return nil
}

// GetMetrics snapshots slot and per-participant metrics. It never blocks
// on the network.
func (r *Receiver) GetMetrics(slotIndex SlotIndex) (pipeline.SlotMetrics, []pipeline.SessionMetrics, error) {
	r.controlMu.Lock()
	defer r.controlMu.Unlock()

	slot, err := r.getSlot(slotIndex, false)
	if err != nil {
		return pipeline.SlotMetrics{}, nil, err
	}

	r.pipeMu.Lock()
	defer r.pipeMu.Unlock()

	group := slot.pipeline.Group()
	return group.GetSlotMetrics(), group.GetParticipantMetrics(), nil
}

// HasBrokenSlots returns true while any slot is latched broken.
func (r *Receiver) HasBrokenSlots() bool {
	r.controlMu.Lock()
	defer r.controlMu.Unlock()

	broken := false
	r.slots.Range(func(_ SlotIndex, slot *receiverSlot) bool {
		if slot.broken {
			broken = true
			return false
		}
		return true
	})
	return broken
}

// ReadFrame mixes and returns exactly n samples across all sessions;
// samples that no session supplies are silence.
func (r *Receiver) ReadFrame(n int) []int16 {
	r.frameMu.Lock()
	defer r.frameMu.Unlock()

	r.pipeMu.Lock()
	defer r.pipeMu.Unlock()

	return r.mixer.ReadFrame(n)
}

// Close stops the pipeline loop and unlinks every slot.
func (r *Receiver) Close() {
	r.stopOnce.Do(func() {
		close(r.done)

		r.controlMu.Lock()
		defer r.controlMu.Unlock()

		r.slots.Range(func(index SlotIndex, slot *receiverSlot) bool {
			r.cleanupSlot(slot)
			r.slots.Delete(index)
			return true
		})
	})
}

func (r *Receiver) getSlot(slotIndex SlotIndex, autoCreate bool) (*receiverSlot, error) {
	if slot, ok := r.slots.Load(slotIndex); ok {
		return slot, nil
	}

	if !autoCreate {
		return nil, ErrSlotNotFound
	}

	pipelineSlot, err := pipeline.NewReceiverSlot(r.sessionDefaults, r.mixer, r.pool)
	if err != nil {
		return nil, err
	}

	slot := &receiverSlot{
		index:    slotIndex,
		pipeline: pipelineSlot,
	}
	r.slots.Store(slotIndex, slot)

	return slot, nil
}

// cleanupSlot removes the pipeline half before the network ports.
func (r *Receiver) cleanupSlot(slot *receiverSlot) {
	r.pipeMu.Lock()
	slot.pipeline.RemoveEndpoints()
	r.pipeMu.Unlock()

	for i, port := range slot.ports {
		if port != nil {
			port.Close()
			slot.ports[i] = nil
		}
	}
}

func (r *Receiver) breakSlot(slot *receiverSlot) {
	slog.Error("receiver node: marking slot as broken, it needs to be unlinked",
		"slot", slot.index)

	if !slot.broken {
		slot.broken = true
		metrics.BrokenSlots.Inc()
	}
	r.cleanupSlot(slot)
}
