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
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRS8MEncodeRepairDecode(t *testing.T) {
	t.Parallel()

	const k, r, size = 5, 3, 32

	encoder, err := fec.NewBlockEncoder(packet.FECReedSolomonM8)
	require.NoError(t, err)

	source := make([][]byte, k)
	repair := make([][]byte, r)

	require.NoError(t, encoder.BeginBlock(k, r, size))
	for i := range source {
		source[i] = make([]byte, size)
		for j := range source[i] {
			source[i][j] = byte(i*13 + j)
		}
		encoder.SetBuffer(i, source[i])
	}
	for i := range repair {
		repair[i] = make([]byte, size)
		encoder.SetBuffer(k+i, repair[i])
	}
	require.NoError(t, encoder.Fill())
	encoder.EndBlock()

	decoder, err := fec.NewBlockDecoder(packet.FECReedSolomonM8)
	require.NoError(t, err)

	// Erase as many source symbols as there are repair symbols.
	require.NoError(t, decoder.BeginBlock(k, r, size))
	for i := r; i < k; i++ {
		decoder.SetBuffer(i, source[i])
	}
	for i := range repair {
		decoder.SetBuffer(k+i, repair[i])
	}
	for i := 0; i < r; i++ {
		restored := decoder.RepairBuffer(i)
		require.NotNil(t, restored, "symbol %d not restored", i)
		assert.Equal(t, source[i], restored)
	}
	decoder.EndBlock()
}

func TestRS8MTooManyErasures(t *testing.T) {
	t.Parallel()

	const k, r, size = 5, 2, 16

	decoder, err := fec.NewBlockDecoder(packet.FECReedSolomonM8)
	require.NoError(t, err)

	require.NoError(t, decoder.BeginBlock(k, r, size))
	// Only two symbols present; the block is beyond repair.
	decoder.SetBuffer(0, make([]byte, size))
	decoder.SetBuffer(1, make([]byte, size))

	assert.Nil(t, decoder.RepairBuffer(2))
	assert.Nil(t, decoder.RepairBuffer(3))
	decoder.EndBlock()
}

func TestRS8MBlockLimits(t *testing.T) {
	t.Parallel()

	encoder, err := fec.NewBlockEncoder(packet.FECReedSolomonM8)
	require.NoError(t, err)

	assert.Equal(t, 255, encoder.MaxBlockLength())
	assert.ErrorIs(t, encoder.BeginBlock(200, 100, 16), fec.ErrBadBlock)
	assert.ErrorIs(t, encoder.BeginBlock(0, 1, 16), fec.ErrBadBlock)
	assert.ErrorIs(t, encoder.BeginBlock(1, 1, 0), fec.ErrBadBlock)
}

func TestLDPCUnsupported(t *testing.T) {
	t.Parallel()

	_, err := fec.NewBlockEncoder(packet.FECLDPCStaircase)
	assert.ErrorIs(t, err, fec.ErrUnsupportedScheme)

	_, err = fec.NewBlockDecoder(packet.FECLDPCStaircase)
	assert.ErrorIs(t, err, fec.ErrUnsupportedScheme)

	_, err = fec.NewBlockDecoder(packet.FECNone)
	assert.ErrorIs(t, err, fec.ErrUnsupportedScheme)
}

func TestFramingRoundTrip(t *testing.T) {
	t.Parallel()

	pool := packet.NewPool(0)

	// Repair packet framing carries all FEC fields.
	composer := fec.NewRepairComposer(packet.FECReedSolomonM8)
	p := pool.NewPacket()
	require.NoError(t, composer.Prepare(p, 48))

	p.FEC.SourceBlockNumber = 7000
	p.FEC.EncodingSymbolID = 12
	p.FEC.SourceBlockLength = 10
	p.FEC.BlockLength = 15
	p.FEC.RepairSeqNum = 999
	for i := range p.FEC.Payload {
		p.FEC.Payload[i] = byte(i)
	}
	require.NoError(t, composer.Compose(p))

	parsed := pool.NewPacket()
	require.NoError(t, fec.NewRepairParser(packet.FECReedSolomonM8).Parse(parsed, p.Buffer()))

	assert.Equal(t, p.FEC.SourceBlockNumber, parsed.FEC.SourceBlockNumber)
	assert.Equal(t, p.FEC.EncodingSymbolID, parsed.FEC.EncodingSymbolID)
	assert.Equal(t, p.FEC.SourceBlockLength, parsed.FEC.SourceBlockLength)
	assert.Equal(t, p.FEC.BlockLength, parsed.FEC.BlockLength)
	assert.Equal(t, p.FEC.RepairSeqNum, parsed.FEC.RepairSeqNum)
	assert.Equal(t, p.FEC.Payload, parsed.FEC.Payload)
	assert.True(t, parsed.HasFlags(packet.FlagRepair))
	assert.False(t, parsed.HasFlags(packet.FlagAudio))
}
