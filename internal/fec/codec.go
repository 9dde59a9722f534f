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

	"github.com/rtpcast/rtpcast/internal/packet"
)

var (
	// ErrUnsupportedScheme means no codec for the scheme is built in.
	ErrUnsupportedScheme = errors.New("unsupported fec scheme")
	// ErrBadBlock means the requested block geometry is not encodable.
	ErrBadBlock = errors.New("invalid fec block parameters")
)

// BlockEncoder produces repair symbols for one block at a time. Usage:
// BeginBlock, SetBuffer for every source index 0..k-1 and every repair
// index k..n-1, Fill, EndBlock.
type BlockEncoder interface {
	// MaxBlockLength returns the maximum supported n.
	MaxBlockLength() int
	// Alignment returns the required buffer alignment in bytes.
	Alignment() int
	// BeginBlock starts a block of k source and r repair symbols of the
	// given payload size.
	BeginBlock(k, r, payloadSize int) error
	// SetBuffer hands the symbol buffer at the given index to the codec.
	// Repair buffers are written in place by Fill.
	SetBuffer(index int, payload []byte)
	// Fill computes the repair symbols into the repair buffers.
	Fill() error
	// EndBlock finishes the block and releases buffer references.
	EndBlock()
}

// BlockDecoder reconstructs missing source symbols of one block at a time.
// Usage: BeginBlock, SetBuffer for every present symbol, RepairBuffer for
// every missing source index, EndBlock.
type BlockDecoder interface {
	// MaxBlockLength returns the maximum supported n.
	MaxBlockLength() int
	// BeginBlock starts a block of k source and r repair symbols of the
	// given payload size.
	BeginBlock(k, r, payloadSize int) error
	// SetBuffer hands a received symbol at the given index to the codec.
	SetBuffer(index int, payload []byte)
	// RepairBuffer returns the reconstructed source symbol at the given
	// index, or nil when the block has too many erasures.
	RepairBuffer(index int) []byte
	// EndBlock finishes the block and releases buffer references.
	EndBlock()
}

// NewBlockEncoder creates the encoder for a scheme.
func NewBlockEncoder(scheme packet.FECScheme) (BlockEncoder, error) {
	switch scheme {
	case packet.FECReedSolomonM8:
		return newRS8MEncoder(), nil
	case packet.FECNone, packet.FECLDPCStaircase:
	}
	return nil, ErrUnsupportedScheme
}

// NewBlockDecoder creates the decoder for a scheme.
func NewBlockDecoder(scheme packet.FECScheme) (BlockDecoder, error) {
	switch scheme {
	case packet.FECReedSolomonM8:
		return newRS8MDecoder(), nil
	case packet.FECNone, packet.FECLDPCStaircase:
	}
	return nil, ErrUnsupportedScheme
}
