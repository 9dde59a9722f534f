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

package rtp

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
	"github.com/rtpcast/rtpcast/internal/packet"
)

// Identity is the local participant: a stable CNAME plus an SSRC that can
// change on collision.
type Identity struct {
	cname string
	ssrc  packet.SourceID
}

// NewIdentity generates a fresh CNAME and SSRC.
func NewIdentity() (*Identity, error) {
	id := &Identity{
		cname: uuid.NewString(),
	}
	if err := id.ChangeSSRC(); err != nil {
		return nil, err
	}
	return id, nil
}

// CNAME returns the canonical participant name.
func (id *Identity) CNAME() string {
	return id.cname
}

// SSRC returns the current stream source identifier.
func (id *Identity) SSRC() packet.SourceID {
	return id.ssrc
}

// ChangeSSRC replaces the current SSRC with a new random one. Nothing in
// this module detects SSRC collisions or calls it for that reason.
func (id *Identity) ChangeSSRC() error {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return fmt.Errorf("failed to generate ssrc: %w", err)
	}
	id.ssrc = binary.BigEndian.Uint32(buf[:])
	return nil
}
