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

package address

import "strings"

// IoUri addresses a local audio device or file:
//
//	DEVICE://NAME          audio device, e.g. alsa://card0
//	file:///ABS/PATH       absolute file
//	file://localhost/ABS   absolute file
//	file:/ABS/PATH         absolute file
//	file:REL/PATH          relative file
//	file:- or file://-     stdio
//
// Query and fragment are not accepted. The path is percent-decoded.
type IoUri struct {
	scheme string
	path   string
}

// ParseIoUri parses an I/O URI string.
func ParseIoUri(s string) (*IoUri, error) {
	if strings.ContainsAny(s, "#?") {
		return nil, ErrURISyntax
	}

	scheme, rest, ok := strings.Cut(s, ":")
	if !ok || scheme == "" || rest == "" {
		return nil, ErrURISyntax
	}

	u := &IoUri{scheme: scheme}

	if scheme != "file" {
		// Devices always use the SCHEME://NAME form.
		name, found := strings.CutPrefix(rest, "//")
		if !found || name == "" {
			return nil, ErrURISyntax
		}
		decoded, err := PctDecode(name)
		if err != nil {
			return nil, err
		}
		u.path = decoded
		return u, nil
	}

	if after, found := strings.CutPrefix(rest, "//"); found {
		switch {
		case after == "-":
			// file://- is stdio.
			rest = "-"
		case strings.HasPrefix(after, "/"):
			// file:///ABS/PATH keeps the absolute path.
			rest = after
		case strings.HasPrefix(after, "localhost/"):
			rest = strings.TrimPrefix(after, "localhost")
		default:
			// Any other authority is not a local file.
			return nil, ErrURISyntax
		}
	}

	if rest == "" {
		return nil, ErrURISyntax
	}

	decoded, err := PctDecode(rest)
	if err != nil {
		return nil, err
	}
	u.path = decoded

	return u, nil
}

// IsValid returns true when both scheme and path are present.
func (u *IoUri) IsValid() bool {
	return u.scheme != "" && u.path != ""
}

// IsFile returns true for file URIs.
func (u *IoUri) IsFile() bool {
	return u.IsValid() && u.scheme == "file"
}

// IsSpecialFile returns true for the stdio pseudo-file.
func (u *IoUri) IsSpecialFile() bool {
	return u.IsFile() && u.path == "-"
}

// Scheme returns the URI scheme.
func (u *IoUri) Scheme() string {
	return u.scheme
}

// Path returns the decoded device name or file path.
func (u *IoUri) Path() string {
	return u.path
}

// String formats the normalized URI. File URIs use the "file:" form since
// only it supports both absolute and relative paths. When verification
// fails the literal "<bad>" is returned.
func (u *IoUri) String() string {
	if !u.IsValid() {
		return "<bad>"
	}

	encoded, err := PctEncode(u.path, PctNonPath)
	if err != nil {
		return "<bad>"
	}

	if u.IsFile() {
		return u.scheme + ":" + encoded
	}
	return u.scheme + "://" + encoded
}
