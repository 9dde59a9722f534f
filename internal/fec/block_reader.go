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
	"log/slog"

	"github.com/rtpcast/rtpcast/internal/packet"
)

// defaultMaxSBNJump bounds the accepted forward or backward SBN distance
// before the stream is considered broken beyond recovery.
const defaultMaxSBNJump = 100

// BlockReaderConfig holds the reader's tunables.
type BlockReaderConfig struct {
	// MaxSBNJump is the maximum SBN delta, in either direction, before
	// the reader latches dead.
	MaxSBNJump int
}

// DefaultBlockReaderConfig returns the config used when none is given.
func DefaultBlockReaderConfig() BlockReaderConfig {
	return BlockReaderConfig{MaxSBNJump: defaultMaxSBNJump}
}

// BlockReader assembles FEC blocks from a source and a repair stream,
// repairs missing source packets, and emits source packets in strict ESI
// order within each block, SBN-monotonic across blocks.
//
// The reader declines to start until a source packet with ESI 0 appears;
// earlier packets of a partial block are dropped. Once any fatal condition
// is hit (scheme mismatch, oversized block, too-long SBN jump) the reader
// latches dead and every read returns ErrAbort.
type BlockReader struct {
	decoder      BlockDecoder
	sourceReader packet.Reader
	repairReader packet.Reader
	parser       packet.Parser
	pool         *packet.Pool

	sourceQueue *packet.Queue
	repairQueue *packet.Queue

	sourceBlock []*packet.Packet
	repairBlock []*packet.Packet

	alive     bool
	started   bool
	canRepair bool

	headIndex int
	curSBN    packet.BlockNum

	payloadSize int

	sourceBlockResized bool
	repairBlockResized bool
	payloadResized     bool

	nPackets uint

	prevBlockTimestamp      packet.Timestamp
	prevBlockTimestampValid bool
	blockMaxDuration        int

	maxSBNJump int
	scheme     packet.FECScheme
}

// NewBlockReader creates a block reader. The parser is used to re-parse
// restored payloads into RTP packets.
func NewBlockReader(
	cfg BlockReaderConfig,
	scheme packet.FECScheme,
	decoder BlockDecoder,
	sourceReader packet.Reader,
	repairReader packet.Reader,
	parser packet.Parser,
	pool *packet.Pool,
) *BlockReader {
	return &BlockReader{
		decoder:      decoder,
		sourceReader: sourceReader,
		repairReader: repairReader,
		parser:       parser,
		pool:         pool,
		sourceQueue:  packet.NewQueue(),
		repairQueue:  packet.NewQueue(),
		alive:        true,
		maxSBNJump:   cfg.MaxSBNJump,
		scheme:       scheme,
	}
}

// IsStarted returns true once the first block boundary was found.
func (r *BlockReader) IsStarted() bool {
	return r.started
}

// IsAlive returns false once the reader latched dead.
func (r *BlockReader) IsAlive() bool {
	return r.alive
}

// MaxBlockDuration returns the maximum block duration seen since the last
// block resize, in stream timestamp units.
func (r *BlockReader) MaxBlockDuration() packet.Timestamp {
	return packet.Timestamp(r.blockMaxDuration) //nolint:gosec
}

// ReadPacket implements packet.Reader. ModeFetch consumes the next source
// packet; ModePeek previews it without advancing.
func (r *BlockReader) ReadPacket(mode packet.ReadMode) (*packet.Packet, error) {
	if !r.alive {
		return nil, packet.ErrAbort
	}

	pp, err := r.read(mode)

	if !r.alive {
		return nil, packet.ErrAbort
	}

	if err == nil && mode == packet.ModeFetch {
		r.nPackets++
	}

	return pp, err
}

func (r *BlockReader) read(mode packet.ReadMode) (*packet.Packet, error) {
	if err := r.fetchAllPackets(); err != nil {
		return nil, err
	}

	if !r.started {
		r.started = r.tryStart()
	}

	if !r.started {
		return nil, packet.ErrDrain
	}

	return r.getNextPacket(mode)
}

// tryStart drains leading source packets until one with ESI 0 is found,
// then seeds the current SBN from it and discards stale repair packets.
func (r *BlockReader) tryStart() bool {
	for {
		pp := r.sourceQueue.Head()
		if pp == nil {
			return false
		}

		fec := pp.FEC

		if !r.processSourcePacket(pp) {
			slog.Debug("fec block reader: dropping leading source packet",
				"esi", fec.EncodingSymbolID, "sblen", fec.SourceBlockLength,
				"blen", fec.BlockLength, "payload_size", len(fec.Payload))
			if !r.alive {
				return false
			}
			r.dropHead(r.sourceQueue)
			continue
		}

		r.curSBN = fec.SourceBlockNumber
		r.dropRepairPacketsFromPrevBlocks()

		if fec.EncodingSymbolID > 0 {
			// Wait until the first packet of a block arrives; packets of
			// a partial block are not recoverable without its head.
			r.dropHead(r.sourceQueue)
			continue
		}

		slog.Debug("fec block reader: got first packet in a block, start decoding",
			"n_packets_before", r.nPackets, "sbn", r.curSBN)

		return true
	}
}

func (r *BlockReader) dropHead(q *packet.Queue) {
	if _, err := q.ReadPacket(packet.ModeFetch); err != nil {
		slog.Error("fec block reader: queue head vanished", "error", err)
	}
}

func (r *BlockReader) getNextPacket(mode packet.ReadMode) (*packet.Packet, error) {
	r.fillBlock()

	pkt := r.sourceBlock[r.headIndex]

	for r.alive {
		nextIndex := 0

		if pkt != nil {
			nextIndex = r.headIndex + 1
		} else {
			// Try repairing as much as possible and store in the block.
			r.tryRepair()

			// Find the first present packet, starting from the head.
			for nextIndex = r.headIndex; nextIndex < len(r.sourceBlock); nextIndex++ {
				if r.sourceBlock[nextIndex] != nil {
					pkt = r.sourceBlock[nextIndex]
					nextIndex++
					break
				}
			}
		}

		if pkt == nil && r.sourceQueue.Size() == 0 {
			// No head packet and nothing queued, give up.
			break
		}
		if mode == packet.ModePeek {
			// Report what Fetch would return, without moving forward.
			break
		}

		r.headIndex = nextIndex
		if r.headIndex == len(r.sourceBlock) {
			r.nextBlock()
		}

		if pkt != nil {
			break
		}
	}

	if pkt == nil {
		return nil, packet.ErrDrain
	}
	return pkt, nil
}

func (r *BlockReader) nextBlock() {
	slog.Debug("fec block reader: next block", "sbn", r.curSBN)

	if r.sourceBlock[0] != nil {
		r.updateBlockDuration(r.sourceBlock[0])
	} else {
		r.prevBlockTimestampValid = false
	}

	for n := range r.sourceBlock {
		r.sourceBlock[n] = nil
	}
	for n := range r.repairBlock {
		r.repairBlock[n] = nil
	}

	r.curSBN++
	r.headIndex = 0

	r.sourceBlockResized = false
	r.repairBlockResized = false
	r.payloadResized = false

	r.canRepair = false

	r.fillBlock()
}

func (r *BlockReader) tryRepair() {
	if !r.canRepair {
		return
	}

	if !r.sourceBlockResized || !r.repairBlockResized || !r.payloadResized {
		return
	}

	if err := r.decoder.BeginBlock(len(r.sourceBlock), len(r.repairBlock), r.payloadSize); err != nil {
		slog.Debug("fec block reader: can't begin decoder block, shutting down",
			"sblen", len(r.sourceBlock), "rblen", len(r.repairBlock),
			"payload_size", r.payloadSize, "error", err)
		r.alive = false
		return
	}

	for n := range r.sourceBlock {
		if r.sourceBlock[n] == nil {
			continue
		}
		r.decoder.SetBuffer(n, r.sourceBlock[n].FEC.Payload)
	}

	for n := range r.repairBlock {
		if r.repairBlock[n] == nil {
			continue
		}
		r.decoder.SetBuffer(len(r.sourceBlock)+n, r.repairBlock[n].FEC.Payload)
	}

	for n := range r.sourceBlock {
		if r.sourceBlock[n] != nil {
			continue
		}

		buf := r.decoder.RepairBuffer(n)
		if buf == nil {
			continue
		}

		pp := r.parseRepairedPacket(buf)
		if pp == nil {
			continue
		}

		r.sourceBlock[n] = pp
	}

	r.decoder.EndBlock()
	r.canRepair = false
}

func (r *BlockReader) parseRepairedPacket(buf []byte) *packet.Packet {
	pp := r.pool.NewPacket()

	if err := r.parser.Parse(pp, buf); err != nil {
		slog.Debug("fec block reader: can't parse repaired packet", "error", err)
		r.pool.PutPacket(pp)
		return nil
	}

	pp.SetBuffer(buf)
	pp.AddFlags(packet.FlagRestored)

	return pp
}

func (r *BlockReader) fetchAllPackets() error {
	if err := r.fetchPackets(r.sourceReader, r.sourceQueue); err != nil {
		return err
	}
	if err := r.fetchPackets(r.repairReader, r.repairQueue); err != nil {
		return err
	}
	return nil
}

func (r *BlockReader) fetchPackets(reader packet.Reader, queue *packet.Queue) error {
	for {
		pp, err := reader.ReadPacket(packet.ModeFetch)
		if err != nil {
			if err == packet.ErrDrain { //nolint:errorlint
				break
			}
			return err
		}

		if !r.validateFECPacket(pp) {
			break
		}

		if err := queue.WritePacket(pp); err != nil {
			return err
		}
	}

	return nil
}

func (r *BlockReader) fillBlock() {
	r.fillSourceBlock()
	r.fillRepairBlock()
}

func (r *BlockReader) fillSourceBlock() {
	var nFetched, nAdded, nDropped int

	for {
		pp := r.sourceQueue.Head()
		if pp == nil {
			break
		}

		if !r.validateSBNSequence(pp) {
			break
		}

		fec := pp.FEC

		if !packet.BlockNumLE(fec.SourceBlockNumber, r.curSBN) {
			break
		}

		r.dropHead(r.sourceQueue)
		nFetched++

		if packet.BlockNumLT(fec.SourceBlockNumber, r.curSBN) {
			slog.Debug("fec block reader: dropping source packet from previous block",
				"cur_sbn", r.curSBN, "pkt_sbn", fec.SourceBlockNumber,
				"pkt_esi", fec.EncodingSymbolID)
			nDropped++
			continue
		}

		if !r.processSourcePacket(pp) {
			slog.Debug("fec block reader: dropping source packet from current block",
				"esi", fec.EncodingSymbolID, "sblen", fec.SourceBlockLength,
				"blen", fec.BlockLength, "payload_size", len(fec.Payload))
			nDropped++
			if !r.alive {
				break
			}
			continue
		}

		pNum := fec.EncodingSymbolID

		if r.sourceBlock[pNum] == nil {
			r.canRepair = true
			r.sourceBlock[pNum] = pp
			nAdded++
		}
	}

	if nDropped != 0 || nFetched != nAdded {
		slog.Debug("fec block reader: source queue",
			"fetched", nFetched, "added", nAdded, "dropped", nDropped)
	}
}

func (r *BlockReader) fillRepairBlock() {
	var nFetched, nAdded, nDropped int

	for {
		pp := r.repairQueue.Head()
		if pp == nil {
			break
		}

		if !r.validateSBNSequence(pp) {
			break
		}

		fec := pp.FEC

		if !packet.BlockNumLE(fec.SourceBlockNumber, r.curSBN) {
			break
		}

		r.dropHead(r.repairQueue)
		nFetched++

		if packet.BlockNumLT(fec.SourceBlockNumber, r.curSBN) {
			slog.Debug("fec block reader: dropping repair packet from previous block",
				"cur_sbn", r.curSBN, "pkt_sbn", fec.SourceBlockNumber)
			nDropped++
			continue
		}

		if !r.processRepairPacket(pp) {
			slog.Debug("fec block reader: dropping repair packet from current block",
				"esi", fec.EncodingSymbolID, "sblen", fec.SourceBlockLength,
				"blen", fec.BlockLength, "payload_size", len(fec.Payload))
			nDropped++
			if !r.alive {
				break
			}
			continue
		}

		pNum := fec.EncodingSymbolID - fec.SourceBlockLength

		if r.repairBlock[pNum] == nil {
			r.canRepair = true
			r.repairBlock[pNum] = pp
			nAdded++
		}
	}

	if nDropped != 0 || nFetched != nAdded {
		slog.Debug("fec block reader: repair queue",
			"fetched", nFetched, "added", nAdded, "dropped", nDropped)
	}
}

func (r *BlockReader) processSourcePacket(pp *packet.Packet) bool {
	fec := pp.FEC

	if !r.validateIncomingSourcePacket(pp) {
		return false
	}

	if !r.canUpdatePayloadSize(len(fec.Payload)) {
		return false
	}

	if !r.canUpdateSourceBlockSize(int(fec.SourceBlockLength)) { //nolint:gosec
		return false
	}

	if !r.updatePayloadSize(len(fec.Payload)) {
		return false
	}

	return r.updateSourceBlockSize(int(fec.SourceBlockLength)) //nolint:gosec
}

func (r *BlockReader) processRepairPacket(pp *packet.Packet) bool {
	fec := pp.FEC

	if !r.validateIncomingRepairPacket(pp) {
		return false
	}

	if !r.canUpdatePayloadSize(len(fec.Payload)) {
		return false
	}

	if !r.canUpdateSourceBlockSize(int(fec.SourceBlockLength)) { //nolint:gosec
		return false
	}

	if !r.canUpdateRepairBlockSize(int(fec.BlockLength)) { //nolint:gosec
		return false
	}

	if !r.updatePayloadSize(len(fec.Payload)) {
		return false
	}

	if !r.updateSourceBlockSize(int(fec.SourceBlockLength)) { //nolint:gosec
		return false
	}

	return r.updateRepairBlockSize(int(fec.BlockLength)) //nolint:gosec
}

func (r *BlockReader) validateFECPacket(pp *packet.Packet) bool {
	if pp.FEC == nil {
		slog.Error("fec block reader: unexpected non-fec packet, shutting down")
		r.alive = false
		return false
	}

	if pp.FEC.Scheme != r.scheme {
		slog.Debug("fec block reader: unexpected packet fec scheme, shutting down",
			"packet_scheme", pp.FEC.Scheme, "session_scheme", r.scheme)
		r.alive = false
		return false
	}

	return true
}

func (r *BlockReader) validateSBNSequence(pp *packet.Packet) bool {
	blkDist := packet.BlockNumDiff(pp.FEC.SourceBlockNumber, r.curSBN)
	if blkDist < 0 {
		blkDist = -blkDist
	}

	if blkDist > r.maxSBNJump {
		slog.Debug("fec block reader: too long source block number jump, shutting down",
			"cur_sbn", r.curSBN, "pkt_sbn", pp.FEC.SourceBlockNumber,
			"dist", blkDist, "max", r.maxSBNJump)
		r.alive = false
		return false
	}

	return true
}

func (r *BlockReader) validateIncomingSourcePacket(pp *packet.Packet) bool {
	fec := pp.FEC

	if fec.EncodingSymbolID >= fec.SourceBlockLength {
		return false
	}
	if fec.SourceBlockLength == 0 {
		return false
	}
	if fec.BlockLength != 0 && fec.SourceBlockLength > fec.BlockLength {
		return false
	}
	if len(fec.Payload) == 0 {
		return false
	}

	return true
}

func (r *BlockReader) validateIncomingRepairPacket(pp *packet.Packet) bool {
	fec := pp.FEC

	if fec.EncodingSymbolID < fec.SourceBlockLength {
		return false
	}
	if fec.SourceBlockLength == 0 {
		return false
	}
	if fec.BlockLength != 0 {
		if fec.EncodingSymbolID >= fec.BlockLength {
			return false
		}
		if fec.SourceBlockLength > fec.BlockLength {
			return false
		}
	}
	if len(fec.Payload) == 0 {
		return false
	}

	return true
}

func (r *BlockReader) canUpdatePayloadSize(newPayloadSize int) bool {
	if r.payloadSize == newPayloadSize {
		return true
	}

	if r.payloadResized {
		slog.Debug("fec block reader: can't change payload size in the middle of a block",
			"next_esi", r.headIndex, "cur_size", r.payloadSize, "new_size", newPayloadSize)
		return false
	}

	return true
}

func (r *BlockReader) updatePayloadSize(newPayloadSize int) bool {
	if r.payloadSize == newPayloadSize {
		r.payloadResized = true
		return true
	}

	slog.Debug("fec block reader: update payload size",
		"next_esi", r.headIndex, "cur_size", r.payloadSize, "new_size", newPayloadSize)

	r.payloadSize = newPayloadSize
	r.payloadResized = true

	return true
}

func (r *BlockReader) canUpdateSourceBlockSize(newSBLen int) bool {
	curSBLen := len(r.sourceBlock)

	if curSBLen == newSBLen {
		return true
	}

	if r.sourceBlockResized {
		slog.Debug("fec block reader: can't change source block size in the middle of a block",
			"next_esi", r.headIndex, "cur_sblen", curSBLen, "new_sblen", newSBLen)
		return false
	}

	if newSBLen > r.decoder.MaxBlockLength() {
		slog.Debug("fec block reader: can't change source block size above maximum, shutting down",
			"cur_sblen", curSBLen, "new_sblen", newSBLen,
			"max_blen", r.decoder.MaxBlockLength())
		r.alive = false
		return false
	}

	return true
}

func (r *BlockReader) updateSourceBlockSize(newSBLen int) bool {
	curSBLen := len(r.sourceBlock)

	if curSBLen == newSBLen {
		r.sourceBlockResized = true
		return true
	}

	// MaxBlockDuration reports the maximum since the last resize, so a
	// resize resets the estimate.
	r.prevBlockTimestampValid = false
	r.blockMaxDuration = 0

	r.sourceBlock = resizeSlots(r.sourceBlock, newSBLen)

	slog.Debug("fec block reader: update source block size",
		"cur_sblen", curSBLen, "cur_rblen", len(r.repairBlock), "new_sblen", newSBLen)

	r.sourceBlockResized = true

	return true
}

func (r *BlockReader) canUpdateRepairBlockSize(newBLen int) bool {
	curBLen := len(r.sourceBlock) + len(r.repairBlock)

	if newBLen == curBLen {
		return true
	}

	if r.repairBlockResized {
		slog.Debug("fec block reader: can't change repair block size in the middle of a block",
			"next_esi", r.headIndex, "cur_blen", curBLen, "new_blen", newBLen)
		return false
	}

	if newBLen > r.decoder.MaxBlockLength() {
		slog.Debug("fec block reader: can't change repair block size above maximum, shutting down",
			"cur_blen", curBLen, "new_blen", newBLen,
			"max_blen", r.decoder.MaxBlockLength())
		r.alive = false
		return false
	}

	return true
}

func (r *BlockReader) updateRepairBlockSize(newBLen int) bool {
	curSBLen := len(r.sourceBlock)
	curRBLen := len(r.repairBlock)

	if newBLen == curSBLen+curRBLen {
		r.repairBlockResized = true
		return true
	}

	if newBLen <= curSBLen {
		return false
	}

	// MaxBlockDuration reports the maximum since the last resize, so a
	// resize resets the estimate.
	r.prevBlockTimestampValid = false
	r.blockMaxDuration = 0

	newRBLen := newBLen - curSBLen

	r.repairBlock = resizeSlots(r.repairBlock, newRBLen)

	slog.Debug("fec block reader: update repair block size",
		"cur_sblen", curSBLen, "cur_rblen", curRBLen, "new_rblen", newRBLen)

	r.repairBlockResized = true

	return true
}

func (r *BlockReader) dropRepairPacketsFromPrevBlocks() {
	nDropped := 0

	for {
		pp := r.repairQueue.Head()
		if pp == nil {
			break
		}

		if !packet.BlockNumLT(pp.FEC.SourceBlockNumber, r.curSBN) {
			break
		}

		slog.Debug("fec block reader: dropping repair packet from previous blocks, decoding not started",
			"cur_sbn", r.curSBN, "pkt_sbn", pp.FEC.SourceBlockNumber)

		r.dropHead(r.repairQueue)
		nDropped++
	}

	if nDropped != 0 {
		slog.Debug("fec block reader: repair queue", "dropped", nDropped)
	}
}

func (r *BlockReader) updateBlockDuration(currBlockPkt *packet.Packet) {
	blockDur := 0
	if r.prevBlockTimestampValid {
		blockDur = packet.TimestampDiff(currBlockPkt.StreamTimestamp(), r.prevBlockTimestamp)
	}

	if blockDur < 0 {
		slog.Debug("fec block reader: negative block duration",
			"prev_ts", r.prevBlockTimestamp, "curr_ts", currBlockPkt.StreamTimestamp())
		r.prevBlockTimestampValid = false
	} else {
		r.blockMaxDuration = max(r.blockMaxDuration, blockDur)
		r.prevBlockTimestamp = currBlockPkt.StreamTimestamp()
		r.prevBlockTimestampValid = true
	}
}

func resizeSlots(slots []*packet.Packet, newLen int) []*packet.Packet {
	if newLen <= len(slots) {
		return slots[:newLen]
	}
	grown := make([]*packet.Packet, newLen)
	copy(grown, slots)
	return grown
}
