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

package fec

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/rtpcast/rtpcast/internal/packet"
)

// BlockWriterConfig holds the initial block geometry of a writer.
type BlockWriterConfig struct {
	// SourceBlockLength is k, the number of source packets per block.
	SourceBlockLength int
	// RepairBlockLength is n-k, the number of repair packets per block.
	RepairBlockLength int
}

var (
	// ErrWriterPacket means a packet handed to the writer is not a
	// prepared, uncomposed FEC packet of the writer's scheme.
	ErrWriterPacket = errors.New("unexpected packet in fec writer")
	// ErrResize means the requested block geometry is not allowed.
	ErrResize = errors.New("invalid fec writer resize")
)

// BlockWriter packetizes a source stream into FEC blocks and emits repair
// packets after each block. Source packets pass through with their FEC
// fields filled; repair packets are produced from the encoder.
//
// After a fatal configuration error the writer latches dead: writes become
// no-ops returning nil, and the owner detects the state via IsAlive.
type BlockWriter struct {
	curSBLen  int
	nextSBLen int
	curRBLen  int
	nextRBLen int

	curPayloadSize int

	encoder        BlockEncoder
	out            packet.Writer
	sourceComposer packet.Composer
	repairComposer packet.Composer
	pool           *packet.Pool

	repairBlock []*packet.Packet

	firstPacket bool
	curPacket   int

	curSBN           packet.BlockNum
	curBlockRepairSN packet.SeqNum

	scheme packet.FECScheme
	alive  bool
}

// NewBlockWriter creates a block writer. The initial SBN and repair
// sequence number are drawn from a random source; subsequent values are
// monotonic with wrap-around.
func NewBlockWriter(
	cfg BlockWriterConfig,
	scheme packet.FECScheme,
	encoder BlockEncoder,
	out packet.Writer,
	sourceComposer packet.Composer,
	repairComposer packet.Composer,
	pool *packet.Pool,
) (*BlockWriter, error) {
	w := &BlockWriter{
		encoder:          encoder,
		out:              out,
		sourceComposer:   sourceComposer,
		repairComposer:   repairComposer,
		pool:             pool,
		firstPacket:      true,
		curSBN:           packet.BlockNum(rand.Uint32()), //nolint:gosec
		curBlockRepairSN: packet.SeqNum(rand.Uint32()),   //nolint:gosec
		scheme:           scheme,
		alive:            true,
	}

	if err := w.Resize(cfg.SourceBlockLength, cfg.RepairBlockLength); err != nil {
		return nil, err
	}

	return w, nil
}

// IsAlive returns false once the writer latched dead.
func (w *BlockWriter) IsAlive() bool {
	return w.alive
}

// Resize sets the block geometry applied at the next block boundary.
func (w *BlockWriter) Resize(sblen, rblen int) error {
	if w.nextSBLen == sblen && w.nextRBLen == rblen {
		return nil
	}

	if sblen == 0 {
		return fmt.Errorf("%w: sblen can't be zero", ErrResize)
	}

	if sblen+rblen > w.encoder.MaxBlockLength() {
		return fmt.Errorf("%w: sblen=%d rblen=%d max_blen=%d",
			ErrResize, sblen, rblen, w.encoder.MaxBlockLength())
	}

	slog.Debug("fec block writer: update block size",
		"cur_sblen", w.curSBLen, "cur_rblen", w.curRBLen,
		"new_sblen", sblen, "new_rblen", rblen)

	w.nextSBLen = sblen
	w.nextRBLen = rblen

	return nil
}

// WritePacket implements packet.Writer. Packets must be prepared, not yet
// composed, and carry a FEC view of the writer's scheme.
func (w *BlockWriter) WritePacket(p *packet.Packet) error {
	if !w.alive {
		// Dead writers swallow packets; the owner polls IsAlive.
		return nil
	}

	if err := w.validatePacket(p); err != nil {
		return err
	}

	w.firstPacket = false

	if w.curPacket == 0 {
		if !w.beginBlock(p) {
			return nil
		}
	}

	if !w.validateSourcePacket(p) {
		return nil
	}

	if err := w.writeSourcePacket(p); err != nil {
		return err
	}

	w.curPacket++

	if w.curPacket == w.curSBLen {
		if err := w.endBlock(); err != nil {
			return err
		}
		w.nextBlock()
	}

	return nil
}

func (w *BlockWriter) beginBlock(p *packet.Packet) bool {
	if !w.applySizes(w.nextSBLen, w.nextRBLen, len(p.FEC.Payload)) {
		return false
	}

	if err := w.encoder.BeginBlock(w.curSBLen, w.curRBLen, w.curPayloadSize); err != nil {
		slog.Error("fec block writer: can't begin encoder block, shutting down",
			"sblen", w.curSBLen, "rblen", w.curRBLen, "error", err)
		w.alive = false
		return false
	}

	return true
}

func (w *BlockWriter) applySizes(sblen, rblen, payloadSize int) bool {
	if payloadSize == 0 {
		slog.Error("fec block writer: payload size can't be zero, shutting down")
		w.alive = false
		return false
	}

	if len(w.repairBlock) != rblen {
		w.repairBlock = make([]*packet.Packet, rblen)
	}

	w.curSBLen = sblen
	w.curRBLen = rblen
	w.curPayloadSize = payloadSize

	return true
}

func (w *BlockWriter) validatePacket(p *packet.Packet) error {
	if !p.HasFlags(packet.FlagPrepared) {
		return fmt.Errorf("%w: should be prepared", ErrWriterPacket)
	}
	if p.HasFlags(packet.FlagComposed) {
		return fmt.Errorf("%w: should not be composed", ErrWriterPacket)
	}
	if p.FEC == nil {
		return fmt.Errorf("%w: non-fec packet", ErrWriterPacket)
	}
	if p.FEC.Scheme != w.scheme {
		return fmt.Errorf("%w: packet_scheme=%s session_scheme=%s",
			ErrWriterPacket, p.FEC.Scheme, w.scheme)
	}
	return nil
}

func (w *BlockWriter) validateSourcePacket(p *packet.Packet) bool {
	if len(p.FEC.Payload) != w.curPayloadSize {
		slog.Error("fec block writer: can't change payload size in the middle of a block",
			"sbn", w.curSBN, "esi", w.curPacket,
			"old_size", w.curPayloadSize, "new_size", len(p.FEC.Payload))
		w.alive = false
		return false
	}
	return true
}

func (w *BlockWriter) writeSourcePacket(p *packet.Packet) error {
	w.encoder.SetBuffer(w.curPacket, p.FEC.Payload)

	w.fillPacketFECFields(p, w.curPacket)

	if err := w.sourceComposer.Compose(p); err != nil {
		return fmt.Errorf("fec block writer: can't compose source packet: %w", err)
	}
	p.AddFlags(packet.FlagComposed)

	return w.out.WritePacket(p)
}

func (w *BlockWriter) endBlock() error {
	w.makeRepairPackets()

	if err := w.encodeRepairPackets(); err != nil {
		return err
	}

	if !w.alive {
		return nil
	}

	if err := w.composeRepairPackets(); err != nil {
		return err
	}

	if err := w.writeRepairPackets(); err != nil {
		return err
	}

	w.encoder.EndBlock()

	return nil
}

func (w *BlockWriter) nextBlock() {
	w.curBlockRepairSN += packet.SeqNum(w.curRBLen) //nolint:gosec
	w.curSBN++
	w.curPacket = 0
}

func (w *BlockWriter) makeRepairPackets() {
	for i := 0; i < w.curRBLen; i++ {
		rp := w.makeRepairPacket(i)
		if rp == nil {
			continue
		}
		w.repairBlock[i] = rp
	}
}

func (w *BlockWriter) makeRepairPacket(n int) *packet.Packet {
	rp := w.pool.NewPacket()

	if err := w.repairComposer.Prepare(rp, w.curPayloadSize); err != nil {
		slog.Error("fec block writer: can't prepare repair packet", "error", err)
		return nil
	}

	w.fillPacketFECFields(rp, w.curSBLen+n)
	rp.FEC.RepairSeqNum = w.curBlockRepairSN + packet.SeqNum(n) //nolint:gosec

	return rp
}

func (w *BlockWriter) encodeRepairPackets() error {
	for i := 0; i < w.curRBLen; i++ {
		if rp := w.repairBlock[i]; rp != nil {
			w.encoder.SetBuffer(w.curSBLen+i, rp.FEC.Payload)
		}
	}

	if err := w.encoder.Fill(); err != nil {
		slog.Error("fec block writer: encoder failed, shutting down", "error", err)
		w.alive = false
		return nil
	}

	return nil
}

func (w *BlockWriter) composeRepairPackets() error {
	for i := 0; i < w.curRBLen; i++ {
		rp := w.repairBlock[i]
		if rp == nil {
			continue
		}
		if err := w.repairComposer.Compose(rp); err != nil {
			return fmt.Errorf("fec block writer: can't compose repair packet: %w", err)
		}
	}
	return nil
}

func (w *BlockWriter) writeRepairPackets() error {
	for i := 0; i < w.curRBLen; i++ {
		rp := w.repairBlock[i]
		if rp == nil {
			continue
		}
		if err := w.out.WritePacket(rp); err != nil {
			return err
		}
		w.repairBlock[i] = nil
	}
	return nil
}

func (w *BlockWriter) fillPacketFECFields(p *packet.Packet, n int) {
	p.FEC.EncodingSymbolID = uint(n) //nolint:gosec
	p.FEC.SourceBlockNumber = w.curSBN
	p.FEC.SourceBlockLength = uint(w.curSBLen) //nolint:gosec
	p.FEC.BlockLength = uint(w.curSBLen + w.curRBLen) //nolint:gosec
}
