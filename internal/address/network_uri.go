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

import (
	"errors"
	"strconv"
	"strings"
)

// Field identifies one semantic field of a network URI. Fields are bits so
// that per-field state can live in two masks.
type Field int

const (
	// FieldProto is the URI scheme.
	FieldProto Field = 1 << iota
	// FieldHost is the host name or address literal.
	FieldHost
	// FieldPort is the port number.
	FieldPort
	// FieldPath is the decoded path.
	FieldPath
	// FieldQuery is the raw query string.
	FieldQuery

	// FieldsAll covers every field.
	FieldsAll = FieldProto | FieldHost | FieldPort | FieldPath | FieldQuery
	// FieldsResource covers the optional resource part.
	FieldsResource = FieldPath | FieldQuery
)

// FieldState is the ternary state of a URI field.
type FieldState int

const (
	// FieldEmpty means the field is absent.
	FieldEmpty FieldState = iota
	// FieldNotEmpty means the field holds a well-formed value.
	FieldNotEmpty
	// FieldBroken means the last set attempt was malformed.
	FieldBroken
)

var (
	// ErrURISyntax means the URI string does not match the grammar.
	ErrURISyntax = errors.New("invalid uri syntax")
	// ErrURIField means a field value is malformed or out of range.
	ErrURIField = errors.New("invalid uri field")
)

// noPort marks an unset port.
const noPort = -1

// NetworkUri is a transport endpoint address:
//
//	PROTOCOL://HOST[:PORT][/PATH][?QUERY]
//
// Each field carries a ternary state tracked in two bitmasks; a malformed
// set flips the field to broken without discarding the others.
type NetworkUri struct {
	nonEmptyFields Field
	brokenFields   Field

	proto Protocol
	host  string
	port  int
	path  string
	query string
}

// NewNetworkUri returns a URI with all fields empty.
func NewNetworkUri() *NetworkUri {
	u := &NetworkUri{}
	u.ClearFields(FieldsAll)
	return u
}

// ParseNetworkUri parses a network URI string.
func ParseNetworkUri(s string) (*NetworkUri, error) {
	u := NewNetworkUri()

	if strings.ContainsRune(s, '#') {
		return nil, ErrURISyntax
	}

	scheme, rest, ok := strings.Cut(s, "://")
	if !ok || scheme == "" {
		return nil, ErrURISyntax
	}

	attrs := LookupScheme(scheme)
	if attrs == nil {
		return nil, ErrURIField
	}
	if !u.SetProto(attrs.Protocol) {
		return nil, ErrURIField
	}

	var query string
	if i := strings.IndexByte(rest, '?'); i >= 0 {
		rest, query = rest[:i], rest[i+1:]
		if query == "" {
			return nil, ErrURISyntax
		}
	}

	var path string
	hostport := rest
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		hostport, path = rest[:i], rest[i:]
	}

	host, port, err := splitHostPort(hostport)
	if err != nil {
		return nil, err
	}

	decodedHost, err := PctDecode(host)
	if err != nil {
		return nil, err
	}
	if !u.SetHost(decodedHost) {
		return nil, ErrURIField
	}

	if port != "" {
		portNum, err := strconv.Atoi(port)
		if err != nil {
			return nil, ErrURIField
		}
		if !u.SetPort(portNum) {
			return nil, ErrURIField
		}
	}

	// A bare "/" is an empty resource, not a path.
	if path != "" && path != "/" {
		if !u.SetEncodedPath(path) {
			return nil, ErrURIField
		}
	}

	if query != "" {
		if !u.SetEncodedQuery(query) {
			return nil, ErrURIField
		}
	}

	if !u.Verify(FieldsAll) {
		return nil, ErrURIField
	}

	return u, nil
}

// splitHostPort splits "host[:port]", honoring bracketed IPv6 literals.
func splitHostPort(hostport string) (host, port string, err error) {
	if hostport == "" {
		return "", "", ErrURISyntax
	}

	if hostport[0] == '[' {
		end := strings.IndexByte(hostport, ']')
		if end < 0 {
			return "", "", ErrURISyntax
		}
		host = hostport[:end+1]
		rest := hostport[end+1:]
		if rest == "" {
			return host, "", nil
		}
		if rest[0] != ':' || len(rest) == 1 {
			return "", "", ErrURISyntax
		}
		return host, rest[1:], nil
	}

	if i := strings.IndexByte(hostport, ':'); i >= 0 {
		if i == 0 || i == len(hostport)-1 {
			return "", "", ErrURISyntax
		}
		return hostport[:i], hostport[i+1:], nil
	}

	return hostport, "", nil
}

// Equal compares all five fields.
func (u *NetworkUri) Equal(other *NetworkUri) bool {
	return u.Proto() == other.Proto() &&
		u.Host() == other.Host() &&
		u.Port() == other.Port() &&
		u.Path() == other.Path() &&
		u.EncodedQuery() == other.EncodedQuery()
}

// FieldState returns the ternary state of a field.
func (u *NetworkUri) FieldState(f Field) FieldState {
	if u.brokenFields&f != 0 {
		return FieldBroken
	}
	if u.nonEmptyFields&f != 0 {
		return FieldNotEmpty
	}
	return FieldEmpty
}

func (u *NetworkUri) setFieldState(f Field, state FieldState) {
	if state == FieldBroken {
		u.brokenFields |= f
	} else {
		u.brokenFields &^= f
	}
	if state == FieldNotEmpty {
		u.nonEmptyFields |= f
	} else {
		u.nonEmptyFields &^= f
	}
}

// HasFields returns true when every field in the mask is non-empty.
func (u *NetworkUri) HasFields(mask Field) bool {
	return u.nonEmptyFields&mask == mask && u.brokenFields&mask == 0
}

// ClearFields resets the masked fields to empty.
func (u *NetworkUri) ClearFields(mask Field) {
	if mask&FieldProto != 0 {
		u.setFieldState(FieldProto, FieldEmpty)
		u.proto = ProtoNone
	}
	if mask&FieldHost != 0 {
		u.setFieldState(FieldHost, FieldEmpty)
		u.host = ""
	}
	if mask&FieldPort != 0 {
		u.setFieldState(FieldPort, FieldEmpty)
		u.port = noPort
	}
	if mask&FieldPath != 0 {
		u.setFieldState(FieldPath, FieldEmpty)
		u.path = ""
	}
	if mask&FieldQuery != 0 {
		u.setFieldState(FieldQuery, FieldEmpty)
		u.query = ""
	}
}

// SetProto sets the protocol; unknown protocols break the field.
func (u *NetworkUri) SetProto(proto Protocol) bool {
	if LookupProtocol(proto) == nil {
		u.proto = ProtoNone
		u.setFieldState(FieldProto, FieldBroken)
		return false
	}
	u.proto = proto
	u.setFieldState(FieldProto, FieldNotEmpty)
	return true
}

// Proto returns the protocol, or ProtoNone when unset.
func (u *NetworkUri) Proto() Protocol {
	if u.FieldState(FieldProto) != FieldNotEmpty {
		return ProtoNone
	}
	return u.proto
}

// SetHost sets the decoded host; empty hosts break the field.
func (u *NetworkUri) SetHost(host string) bool {
	if host == "" {
		u.host = ""
		u.setFieldState(FieldHost, FieldBroken)
		return false
	}
	u.host = host
	u.setFieldState(FieldHost, FieldNotEmpty)
	return true
}

// Host returns the decoded host, or "" when unset.
func (u *NetworkUri) Host() string {
	if u.FieldState(FieldHost) != FieldNotEmpty {
		return ""
	}
	return u.host
}

// SetPort sets the port; out-of-range values break the field.
func (u *NetworkUri) SetPort(port int) bool {
	if port == noPort {
		u.port = noPort
		u.setFieldState(FieldPort, FieldEmpty)
		return true
	}
	if port < 0 || port > 65535 {
		u.port = noPort
		u.setFieldState(FieldPort, FieldBroken)
		return false
	}
	u.port = port
	u.setFieldState(FieldPort, FieldNotEmpty)
	return true
}

// Port returns the explicit port, or -1 when unset.
func (u *NetworkUri) Port() int {
	if u.FieldState(FieldPort) != FieldNotEmpty {
		return noPort
	}
	return u.port
}

// PortOrDefault returns the explicit port, the registry default for the
// protocol, or -1.
func (u *NetworkUri) PortOrDefault() int {
	if u.FieldState(FieldPort) == FieldNotEmpty {
		return u.port
	}
	if u.FieldState(FieldProto) == FieldNotEmpty {
		if attrs := LookupProtocol(u.proto); attrs != nil && attrs.DefaultPort > 0 {
			return attrs.DefaultPort
		}
	}
	return noPort
}

// Service returns the port (explicit or default) as a decimal string, or ""
// when neither exists. Suitable for resolver service arguments.
func (u *NetworkUri) Service() string {
	port := u.PortOrDefault()
	if port == noPort {
		return ""
	}
	return strconv.Itoa(port)
}

// SetPath sets the decoded path.
func (u *NetworkUri) SetPath(path string) bool {
	u.path = path
	if path == "" {
		u.setFieldState(FieldPath, FieldEmpty)
	} else {
		u.setFieldState(FieldPath, FieldNotEmpty)
	}
	return true
}

// SetEncodedPath decodes and sets the path; bad escapes break the field.
func (u *NetworkUri) SetEncodedPath(path string) bool {
	decoded, err := PctDecode(path)
	if err != nil {
		u.path = ""
		u.setFieldState(FieldPath, FieldBroken)
		return false
	}
	return u.SetPath(decoded)
}

// Path returns the decoded path, or "" when unset.
func (u *NetworkUri) Path() string {
	if u.FieldState(FieldPath) != FieldNotEmpty {
		return ""
	}
	return u.path
}

// EncodedPath returns the path re-encoded with the path-safe set.
func (u *NetworkUri) EncodedPath() string {
	if u.FieldState(FieldPath) != FieldNotEmpty {
		return ""
	}
	encoded, err := PctEncode(u.path, PctNonPath)
	if err != nil {
		return ""
	}
	return encoded
}

// SetEncodedQuery stores the query verbatim.
func (u *NetworkUri) SetEncodedQuery(query string) bool {
	u.query = query
	if query == "" {
		u.setFieldState(FieldQuery, FieldEmpty)
	} else {
		u.setFieldState(FieldQuery, FieldNotEmpty)
	}
	return true
}

// EncodedQuery returns the raw query, or "" when unset.
func (u *NetworkUri) EncodedQuery() string {
	if u.FieldState(FieldQuery) != FieldNotEmpty {
		return ""
	}
	return u.query
}

// Verify returns true iff the requested subset is well-formed per the
// registry rules for the current protocol.
func (u *NetworkUri) Verify(subset Field) bool {
	if subset&FieldProto != 0 && u.FieldState(FieldProto) != FieldNotEmpty {
		return false
	}
	if subset&FieldHost != 0 && u.FieldState(FieldHost) != FieldNotEmpty {
		return false
	}

	if subset&(FieldPort|FieldsResource) == 0 {
		return true
	}

	attrs := LookupProtocol(u.proto)
	if attrs == nil {
		return false
	}

	if subset&FieldPort != 0 {
		if attrs.DefaultPort > 0 {
			if u.FieldState(FieldPort) == FieldBroken {
				return false
			}
		} else if u.FieldState(FieldPort) != FieldNotEmpty {
			return false
		}
	}

	if subset&FieldsResource != 0 {
		if u.FieldState(FieldPath) == FieldBroken || u.FieldState(FieldQuery) == FieldBroken {
			return false
		}
		if !attrs.PathSupported {
			if u.FieldState(FieldPath) != FieldEmpty || u.FieldState(FieldQuery) != FieldEmpty {
				return false
			}
		}
	}

	return true
}

// IsValid verifies all fields.
func (u *NetworkUri) IsValid() bool {
	return u.Verify(FieldsAll)
}

// String formats the normalized URI, omitting :PORT when absent. When
// verification fails the literal "<bad>" is returned.
func (u *NetworkUri) String() string {
	if !u.IsValid() {
		return "<bad>"
	}

	var b strings.Builder
	b.WriteString(u.proto.String())
	b.WriteString("://")

	host := u.host
	if strings.HasPrefix(host, "[") {
		b.WriteString(host)
	} else {
		encoded, err := PctEncode(host, PctNonHost)
		if err != nil {
			return "<bad>"
		}
		b.WriteString(encoded)
	}

	if u.FieldState(FieldPort) == FieldNotEmpty {
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(u.port))
	}

	if u.FieldState(FieldPath) == FieldNotEmpty {
		b.WriteString(u.EncodedPath())
	}

	if u.FieldState(FieldQuery) == FieldNotEmpty {
		b.WriteByte('?')
		b.WriteString(u.query)
	}

	return b.String()
}
