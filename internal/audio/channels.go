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

package audio

import "math/bits"

// ChannelPosition is one loudspeaker position.
type ChannelPosition uint32

const (
	// ChanFL is front left.
	ChanFL ChannelPosition = 1 << iota
	// ChanFR is front right.
	ChanFR
	// ChanFC is front center.
	ChanFC
	// ChanLFE is the low-frequency effects channel.
	ChanLFE
	// ChanBL is back left.
	ChanBL
	// ChanBR is back right.
	ChanBR
	// ChanBC is back center.
	ChanBC
	// ChanSL is side left.
	ChanSL
	// ChanSR is side right.
	ChanSR
	// ChanTML is top middle left.
	ChanTML
	// ChanTMR is top middle right.
	ChanTMR
	// ChanTFL is top front left.
	ChanTFL
	// ChanTFR is top front right.
	ChanTFR
	// ChanTBL is top back left.
	ChanTBL
	// ChanTBR is top back right.
	ChanTBR
)

// ChannelMask is a set of channel positions.
type ChannelMask uint32

// NumChannels returns the number of positions in the mask.
func (m ChannelMask) NumChannels() int {
	return bits.OnesCount32(uint32(m))
}

// channelLayouts maps layout names to position masks. The table is static
// and read-only; the sample engine consumes the masks, this core only
// carries the identities.
var channelLayouts = map[string]ChannelMask{ //nolint:gochecknoglobals
	"mono":   ChannelMask(ChanFC),
	"stereo": ChannelMask(ChanFL | ChanFR),
	"2.1":    ChannelMask(ChanFL | ChanFR | ChanLFE),
	"3.0":    ChannelMask(ChanFL | ChanFR | ChanFC),
	"3.1":    ChannelMask(ChanFL | ChanFR | ChanFC | ChanLFE),
	"4.0":    ChannelMask(ChanFL | ChanFR | ChanBL | ChanBR),
	"4.1":    ChannelMask(ChanFL | ChanFR | ChanBL | ChanBR | ChanLFE),
	"5.0":    ChannelMask(ChanFL | ChanFR | ChanFC | ChanBL | ChanBR),
	"5.1":    ChannelMask(ChanFL | ChanFR | ChanFC | ChanBL | ChanBR | ChanLFE),
	"5.1.2":  ChannelMask(ChanFL | ChanFR | ChanFC | ChanBL | ChanBR | ChanLFE | ChanTML | ChanTMR),
	"5.1.4":  ChannelMask(ChanFL | ChanFR | ChanFC | ChanBL | ChanBR | ChanLFE | ChanTFL | ChanTFR | ChanTBL | ChanTBR),
	"6.0":    ChannelMask(ChanFL | ChanFR | ChanFC | ChanBL | ChanBR | ChanBC),
	"6.1":    ChannelMask(ChanFL | ChanFR | ChanFC | ChanBL | ChanBR | ChanBC | ChanLFE),
	"7.0":    ChannelMask(ChanFL | ChanFR | ChanFC | ChanBL | ChanBR | ChanSL | ChanSR),
	"7.1":    ChannelMask(ChanFL | ChanFR | ChanFC | ChanBL | ChanBR | ChanSL | ChanSR | ChanLFE),
	"7.1.2":  ChannelMask(ChanFL | ChanFR | ChanFC | ChanBL | ChanBR | ChanSL | ChanSR | ChanLFE | ChanTML | ChanTMR),
	"7.1.4":  ChannelMask(ChanFL | ChanFR | ChanFC | ChanBL | ChanBR | ChanSL | ChanSR | ChanLFE | ChanTFL | ChanTFR | ChanTBL | ChanTBR),
}

// LookupLayout returns the channel mask for a layout name.
func LookupLayout(name string) (ChannelMask, bool) {
	mask, ok := channelLayouts[name]
	return mask, ok
}

// LayoutName returns the canonical name for a channel mask, or "" when the
// mask matches no named layout.
func LayoutName(mask ChannelMask) string {
	for name, m := range channelLayouts {
		if m == mask {
			return name
		}
	}
	return ""
}
