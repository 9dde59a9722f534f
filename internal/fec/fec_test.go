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

	"github.com/rtpcast/rtpcast/internal/fec"
	"github.com/rtpcast/rtpcast/internal/packet"
	"github.com/rtpcast/rtpcast/internal/rtp"
	"github.com/stretchr/testify/require"
)

// payloadSize is the RTP payload byte size used throughout these tests.
const payloadSize = 64

// collector splits a writer's output into source and repair streams.
type collector struct {
	source []*packet.Packet
	repair []*packet.Packet
}

func (c *collector) WritePacket(p *packet.Packet) error {
	if p.HasFlags(packet.FlagRepair) {
		c.repair = append(c.repair, p)
	} else {
		c.source = append(c.source, p)
	}
	return nil
}

// newTestWriter builds a block writer emitting into a fresh collector.
func newTestWriter(t *testing.T, k, r int) (*fec.BlockWriter, *collector, *packet.Pool) {
	t.Helper()

	pool := packet.NewPool(0)
	out := &collector{}

	encoder, err := fec.NewBlockEncoder(packet.FECReedSolomonM8)
	require.NoError(t, err)

	w, err := fec.NewBlockWriter(
		fec.BlockWriterConfig{SourceBlockLength: k, RepairBlockLength: r},
		packet.FECReedSolomonM8, encoder, out,
		fec.NewSourceComposer(packet.FECReedSolomonM8),
		fec.NewRepairComposer(packet.FECReedSolomonM8),
		pool)
	require.NoError(t, err)

	return w, out, pool
}

// sourcePayload generates a deterministic payload for one source packet.
func sourcePayload(block, esi int) []byte {
	data := make([]byte, payloadSize)
	for i := range data {
		data[i] = byte(block*31 + esi*7 + i)
	}
	return data
}

// writeBlocks pushes nBlocks blocks of source packets through the writer.
func writeBlocks(t *testing.T, w *fec.BlockWriter, pool *packet.Pool, k, nBlocks int) {
	t.Helper()

	composer := fec.NewSourceComposer(packet.FECReedSolomonM8)
	seq := packet.SeqNum(0)
	ts := packet.Timestamp(0)

	for block := 0; block < nBlocks; block++ {
		for esi := 0; esi < k; esi++ {
			p := pool.NewPacket()
			require.NoError(t, composer.Prepare(p, payloadSize))

			p.RTP.SourceID = 0xCAFE
			p.RTP.SeqNum = seq
			p.RTP.StreamTimestamp = ts
			p.RTP.PayloadType = rtp.PayloadTypeL16Stereo
			copy(p.RTP.Payload, sourcePayload(block, esi))

			seq++
			ts += payloadSize / 4

			require.NoError(t, w.WritePacket(p))
		}
	}
}

// reparse runs a composed packet through the wire parsers, as the receiver
// endpoint would.
func reparse(t *testing.T, p *packet.Packet) *packet.Packet {
	t.Helper()

	pool := packet.NewPool(0)
	out := pool.NewPacket()

	var parser packet.Parser
	if p.HasFlags(packet.FlagRepair) {
		parser = fec.NewRepairParser(packet.FECReedSolomonM8)
	} else {
		parser = fec.NewSourceParser(packet.FECReedSolomonM8)
	}

	data := make([]byte, len(p.Buffer()))
	copy(data, p.Buffer())

	require.NoError(t, parser.Parse(out, data))
	return out
}

// newTestReader builds a block reader fed from the given queues.
func newTestReader(t *testing.T, maxJump int, source, repair *packet.Queue) *fec.BlockReader {
	t.Helper()

	decoder, err := fec.NewBlockDecoder(packet.FECReedSolomonM8)
	require.NoError(t, err)

	cfg := fec.DefaultBlockReaderConfig()
	if maxJump != 0 {
		cfg.MaxSBNJump = maxJump
	}

	return fec.NewBlockReader(cfg, packet.FECReedSolomonM8, decoder,
		source, repair, rtp.NewParser(), packet.NewPool(0))
}

// drainReader fetches packets until the reader reports drain or death.
func drainReader(r *fec.BlockReader) ([]*packet.Packet, error) {
	var out []*packet.Packet
	for {
		p, err := r.ReadPacket(packet.ModeFetch)
		if err != nil {
			if err == packet.ErrDrain { //nolint:errorlint
				return out, nil
			}
			return out, err
		}
		out = append(out, p)
	}
}
