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

package fec_test

import (
	"testing"

	"github.com/rtpcast/rtpcast/internal/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// feed reparses written packets into the reader's input queues, skipping
// source ESIs for which drop returns true.
func feed(t *testing.T, out *collector, source, repair *packet.Queue, k int, drop func(block, esi int) bool) {
	t.Helper()

	for i, p := range out.source {
		block, esi := i/k, i%k
		if drop != nil && drop(block, esi) {
			continue
		}
		require.NoError(t, source.WritePacket(reparse(t, p)))
	}
	for _, p := range out.repair {
		require.NoError(t, repair.WritePacket(reparse(t, p)))
	}
}

func TestBlockReaderCleanPath(t *testing.T) {
	t.Parallel()

	const k, r, blocks = 10, 5, 100

	w, out, pool := newTestWriter(t, k, r)
	writeBlocks(t, w, pool, k, blocks)
	require.Len(t, out.source, k*blocks)
	require.Len(t, out.repair, r*blocks)

	source, repair := packet.NewQueue(), packet.NewQueue()
	feed(t, out, source, repair, k, nil)

	reader := newTestReader(t, 0, source, repair)
	got, err := drainReader(reader)
	require.NoError(t, err)

	require.Len(t, got, k*blocks)

	prevSeq := got[0].RTP.SeqNum
	for i, p := range got {
		assert.False(t, p.HasFlags(packet.FlagRestored), "packet %d restored", i)
		if i > 0 {
			assert.Equal(t, 1, packet.SeqNumDiff(p.RTP.SeqNum, prevSeq), "packet %d out of order", i)
			prevSeq = p.RTP.SeqNum
		}
	}

	assert.True(t, reader.IsAlive())
	assert.True(t, reader.IsStarted())
}

func TestBlockReaderBurstLossWithinBudget(t *testing.T) {
	t.Parallel()

	const k, r, blocks = 10, 5, 100

	w, out, pool := newTestWriter(t, k, r)
	writeBlocks(t, w, pool, k, blocks)

	source, repair := packet.NewQueue(), packet.NewQueue()
	feed(t, out, source, repair, k, func(_, esi int) bool {
		return esi == 3 || esi == 4 || esi == 5
	})

	reader := newTestReader(t, 0, source, repair)
	got, err := drainReader(reader)
	require.NoError(t, err)

	require.Len(t, got, k*blocks)

	restored := 0
	for i, p := range got {
		block, esi := i/k, i%k
		if p.HasFlags(packet.FlagRestored) {
			restored++
		} else {
			assert.NotContains(t, []int{3, 4, 5}, esi, "packet %d should have been dropped", i)
		}
		// Restored payloads match the originals byte-for-byte.
		assert.Equal(t, sourcePayload(block, esi), p.RTP.Payload, "payload mismatch at block %d esi %d", block, esi)
	}

	assert.Equal(t, 3*blocks, restored)
	assert.True(t, reader.IsAlive())
}

func TestBlockReaderLossBeyondBudget(t *testing.T) {
	t.Parallel()

	const k, r, blocks = 10, 2, 10
	const lossyBlock = 7

	w, out, pool := newTestWriter(t, k, r)
	writeBlocks(t, w, pool, k, blocks)

	source, repair := packet.NewQueue(), packet.NewQueue()
	feed(t, out, source, repair, k, func(block, esi int) bool {
		return block == lossyBlock && esi >= 1 && esi <= 5
	})

	reader := newTestReader(t, 0, source, repair)
	got, err := drainReader(reader)
	require.NoError(t, err)

	// The lossy block emits at most 7 packets (5 kept plus at most 2
	// reparable); every other block is complete.
	lost := k*blocks - len(got)
	assert.GreaterOrEqual(t, lost, 3)
	assert.LessOrEqual(t, lost, 5)

	// The reader advanced past the lossy block without latching dead.
	assert.True(t, reader.IsAlive())

	last := got[len(got)-1]
	assert.Equal(t, sourcePayload(blocks-1, k-1), last.RTP.Payload)
}

func TestBlockReaderSBNJumpKills(t *testing.T) {
	t.Parallel()

	const k, r = 10, 2
	const maxJump = 5

	w, out, pool := newTestWriter(t, k, r)
	// Two blocks: the second will be re-labeled far ahead.
	writeBlocks(t, w, pool, k, 2)

	source, repair := packet.NewQueue(), packet.NewQueue()

	var baseSBN packet.BlockNum
	for i, p := range out.source[:k] {
		rp := reparse(t, p)
		if i == 0 {
			baseSBN = rp.FEC.SourceBlockNumber
		}
		require.NoError(t, source.WritePacket(rp))
	}

	reader := newTestReader(t, maxJump, source, repair)

	// The first block is consumed in full.
	got, err := drainReader(reader)
	require.NoError(t, err)
	require.Len(t, got, k)
	require.True(t, reader.IsAlive())

	// A block beyond the jump threshold arrives next.
	for _, p := range out.source[k:] {
		rp := reparse(t, p)
		rp.FEC.SourceBlockNumber = baseSBN + maxJump + 2
		require.NoError(t, source.WritePacket(rp))
	}

	_, err = reader.ReadPacket(packet.ModeFetch)
	assert.ErrorIs(t, err, packet.ErrAbort)
	assert.False(t, reader.IsAlive())

	// Once dead, reads return Abort permanently.
	_, err = reader.ReadPacket(packet.ModeFetch)
	assert.ErrorIs(t, err, packet.ErrAbort)
	_, err = reader.ReadPacket(packet.ModePeek)
	assert.ErrorIs(t, err, packet.ErrAbort)
}

func TestBlockReaderSchemeMismatchKills(t *testing.T) {
	t.Parallel()

	const k, r = 4, 2

	w, out, pool := newTestWriter(t, k, r)
	writeBlocks(t, w, pool, k, 1)

	source, repair := packet.NewQueue(), packet.NewQueue()
	for _, p := range out.source {
		rp := reparse(t, p)
		rp.FEC.Scheme = packet.FECLDPCStaircase
		require.NoError(t, source.WritePacket(rp))
	}

	reader := newTestReader(t, 0, source, repair)

	_, err := reader.ReadPacket(packet.ModeFetch)
	assert.ErrorIs(t, err, packet.ErrAbort)
	assert.False(t, reader.IsAlive())
}

func TestBlockReaderWaitsForBlockStart(t *testing.T) {
	t.Parallel()

	const k, r = 10, 5

	w, out, pool := newTestWriter(t, k, r)
	writeBlocks(t, w, pool, k, 2)

	source, repair := packet.NewQueue(), packet.NewQueue()
	// Drop the head of the first block; its tail can't start a stream.
	feed(t, out, source, repair, k, func(block, esi int) bool {
		return block == 0 && esi == 0
	})

	reader := newTestReader(t, 0, source, repair)
	got, err := drainReader(reader)
	require.NoError(t, err)

	// The partial first block is discarded; decoding starts at the next
	// block head (ESI 0).
	assert.True(t, reader.IsStarted())
	assert.True(t, reader.IsAlive())
	require.Len(t, got, k)

	assert.Equal(t, sourcePayload(1, 0), got[0].RTP.Payload)
	assert.Equal(t, sourcePayload(1, k-1), got[k-1].RTP.Payload)
}

func TestBlockReaderPeekDoesNotAdvance(t *testing.T) {
	t.Parallel()

	const k, r = 4, 2

	w, out, pool := newTestWriter(t, k, r)
	writeBlocks(t, w, pool, k, 1)

	source, repair := packet.NewQueue(), packet.NewQueue()
	feed(t, out, source, repair, k, nil)

	reader := newTestReader(t, 0, source, repair)

	peeked, err := reader.ReadPacket(packet.ModePeek)
	require.NoError(t, err)

	fetched, err := reader.ReadPacket(packet.ModeFetch)
	require.NoError(t, err)

	assert.Equal(t, peeked.RTP.SeqNum, fetched.RTP.SeqNum)
}

func TestBlockReaderDropsMidBlockPayloadChange(t *testing.T) {
	t.Parallel()

	const k, r = 4, 2

	w, out, pool := newTestWriter(t, k, r)
	writeBlocks(t, w, pool, k, 1)

	source, repair := packet.NewQueue(), packet.NewQueue()
	for i, p := range out.source {
		rp := reparse(t, p)
		if i == 2 {
			// Shrink one packet's protected payload mid-block.
			rp.FEC.Payload = rp.FEC.Payload[:payloadSize/2]
		}
		require.NoError(t, source.WritePacket(rp))
	}
	for _, p := range out.repair {
		require.NoError(t, repair.WritePacket(reparse(t, p)))
	}

	reader := newTestReader(t, 0, source, repair)
	got, err := drainReader(reader)
	require.NoError(t, err)

	// The offending packet is dropped but restored via FEC; the reader
	// stays alive.
	require.Len(t, got, k)
	assert.True(t, got[2].HasFlags(packet.FlagRestored))
	assert.True(t, reader.IsAlive())
}
