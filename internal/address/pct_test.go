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

package address_test

import (
	"strings"
	"testing"

	"github.com/rtpcast/rtpcast/internal/address"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestPctEncodeModes(t *testing.T) {
	t.Parallel()

	encoded, err := address.PctEncode("a b/c", address.PctNonUnreserved)
	require.NoError(t, err)
	assert.Equal(t, "a%20b%2Fc", encoded)

	encoded, err = address.PctEncode("a b/c", address.PctNonPath)
	require.NoError(t, err)
	assert.Equal(t, "a%20b/c", encoded)

	encoded, err = address.PctEncode("[2001:db8::1]", address.PctNonHost)
	require.NoError(t, err)
	assert.Equal(t, "[2001:db8::1]", encoded)
}

func TestPctEncodeUppercaseHex(t *testing.T) {
	t.Parallel()

	encoded, err := address.PctEncode("\xff", address.PctNonUnreserved)
	require.NoError(t, err)
	assert.Equal(t, "%FF", encoded)
}

func TestPctDecodeEitherCase(t *testing.T) {
	t.Parallel()

	decoded, err := address.PctDecode("a%2fb")
	require.NoError(t, err)
	assert.Equal(t, "a/b", decoded)

	decoded, err = address.PctDecode("a%2Fb")
	require.NoError(t, err)
	assert.Equal(t, "a/b", decoded)
}

func TestPctDecodeRejects(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"%00", "%", "%2", "%zz", "a%"} {
		_, err := address.PctDecode(input)
		assert.ErrorIs(t, err, address.ErrPctInput, "input %q", input)
	}
}

func TestPctRoundTrip(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		src := rapid.StringMatching(`[ -~]*`).Draw(t, "src")
		if strings.ContainsRune(src, 0) {
			t.Skip("NUL not representable")
		}
		for _, mode := range []address.PctMode{
			address.PctNonUnreserved, address.PctNonHost, address.PctNonPath,
		} {
			encoded, err := address.PctEncode(src, mode)
			if err != nil {
				t.Fatalf("encode failed: %v", err)
			}
			decoded, err := address.PctDecode(encoded)
			if err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			if decoded != src {
				t.Fatalf("round trip mismatch: %q -> %q -> %q", src, encoded, decoded)
			}
		}
	})
}
