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
	"fmt"
	"log/slog"

	"github.com/klauspost/reedsolomon"
)

// rs8mMaxBlockLength is the symbol limit of Reed-Solomon over GF(2^8).
const rs8mMaxBlockLength = 255

// rs8mEncoder implements BlockEncoder with Reed-Solomon over GF(2^8).
type rs8mEncoder struct {
	rs          reedsolomon.Encoder
	shards      [][]byte
	k           int
	payloadSize int
}

func newRS8MEncoder() *rs8mEncoder {
	return &rs8mEncoder{}
}

func (e *rs8mEncoder) MaxBlockLength() int {
	return rs8mMaxBlockLength
}

func (e *rs8mEncoder) Alignment() int {
	return 1
}

func (e *rs8mEncoder) BeginBlock(k, r, payloadSize int) error {
	if k <= 0 || r < 0 || k+r > rs8mMaxBlockLength || payloadSize <= 0 {
		return fmt.Errorf("%w: k=%d r=%d payload_size=%d", ErrBadBlock, k, r, payloadSize)
	}

	rs, err := reedsolomon.New(k, r)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBadBlock, err)
	}

	e.rs = rs
	e.k = k
	e.payloadSize = payloadSize
	e.shards = make([][]byte, k+r)

	return nil
}

func (e *rs8mEncoder) SetBuffer(index int, payload []byte) {
	e.shards[index] = payload
}

func (e *rs8mEncoder) Fill() error {
	if err := e.rs.Encode(e.shards); err != nil {
		return fmt.Errorf("rs8m encode failed: %w", err)
	}
	return nil
}

func (e *rs8mEncoder) EndBlock() {
	e.rs = nil
	e.shards = nil
}

// rs8mDecoder implements BlockDecoder with Reed-Solomon over GF(2^8).
type rs8mDecoder struct {
	rs            reedsolomon.Encoder
	shards        [][]byte
	k             int
	payloadSize   int
	reconstructed bool
	failed        bool
}

func newRS8MDecoder() *rs8mDecoder {
	return &rs8mDecoder{}
}

func (d *rs8mDecoder) MaxBlockLength() int {
	return rs8mMaxBlockLength
}

func (d *rs8mDecoder) BeginBlock(k, r, payloadSize int) error {
	if k <= 0 || r < 0 || k+r > rs8mMaxBlockLength || payloadSize <= 0 {
		return fmt.Errorf("%w: k=%d r=%d payload_size=%d", ErrBadBlock, k, r, payloadSize)
	}

	rs, err := reedsolomon.New(k, r)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBadBlock, err)
	}

	d.rs = rs
	d.k = k
	d.payloadSize = payloadSize
	d.shards = make([][]byte, k+r)
	d.reconstructed = false
	d.failed = false

	return nil
}

func (d *rs8mDecoder) SetBuffer(index int, payload []byte) {
	// The codec wants equal-length shards; shorter payloads were already
	// dropped by validation upstream.
	if len(payload) != d.payloadSize {
		return
	}
	d.shards[index] = payload
}

func (d *rs8mDecoder) RepairBuffer(index int) []byte {
	if !d.reconstructed {
		d.reconstructed = true
		if err := d.rs.Reconstruct(d.shards); err != nil {
			// Too many erasures; every repair request for this block fails.
			slog.Debug("rs8m reconstruction failed", "error", err)
			d.failed = true
		}
	}
	if d.failed {
		return nil
	}
	return d.shards[index]
}

func (d *rs8mDecoder) EndBlock() {
	d.rs = nil
	d.shards = nil
}
