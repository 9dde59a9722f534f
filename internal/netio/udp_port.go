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

package netio

import (
	"errors"
	"log/slog"
	"net"
	"net/netip"
	"sync"

	"github.com/rtpcast/rtpcast/internal/metrics"
	"github.com/rtpcast/rtpcast/internal/packet"
)

const (
	// largestDatagramSize fits any datagram we are willing to parse.
	largestDatagramSize = 65536
	// socketBufferSize is requested for both socket directions.
	socketBufferSize = 1000000 // 1MB
	// outgoingChannelSize bounds queued outbound packets per port.
	outgoingChannelSize = 500
)

var (
	// ErrOpenSocket means the UDP socket could not be opened.
	ErrOpenSocket = errors.New("error opening socket")
	// ErrPortClosed means the port was closed while writing.
	ErrPortClosed = errors.New("udp port closed")
)

// UdpConfig configures one UDP port.
type UdpConfig struct {
	// Bind is the local address; the zero value picks an ephemeral port on
	// all interfaces.
	Bind netip.AddrPort
}

// DatagramHandler receives inbound datagrams from a port's read loop.
type DatagramHandler interface {
	HandleDatagram(data []byte, src, dst netip.AddrPort)
}

// UdpPort owns one UDP socket. Inbound datagrams flow to the attached
// handler from a read-loop goroutine; outbound packets are queued to a
// send goroutine, each carrying its own destination in the UDP view.
type UdpPort struct {
	conn      *net.UDPConn
	localAddr netip.AddrPort

	outgoing chan *packet.Packet
	done     chan struct{}
	stopOnce sync.Once

	recvStarted bool
	sendStarted bool
}

// OpenUdpPort binds a UDP socket.
func OpenUdpPort(config UdpConfig) (*UdpPort, error) {
	var local *net.UDPAddr
	if config.Bind.IsValid() {
		local = net.UDPAddrFromAddrPort(config.Bind)
	}

	conn, err := net.ListenUDP("udp", local)
	if err != nil {
		slog.Error("Error opening UDP socket", "bind", config.Bind, "error", err)
		return nil, ErrOpenSocket
	}

	if err := conn.SetReadBuffer(socketBufferSize); err != nil {
		slog.Warn("Error setting read buffer on UDP socket", "error", err)
	}
	if err := conn.SetWriteBuffer(socketBufferSize); err != nil {
		slog.Warn("Error setting write buffer on UDP socket", "error", err)
	}

	localAddr := conn.LocalAddr().(*net.UDPAddr).AddrPort() //nolint:errcheck,forcetypeassert

	return &UdpPort{
		conn:      conn,
		localAddr: localAddr,
		outgoing:  make(chan *packet.Packet, outgoingChannelSize),
		done:      make(chan struct{}),
	}, nil
}

// LocalAddr returns the bound address, with the ephemeral port resolved.
func (p *UdpPort) LocalAddr() netip.AddrPort {
	return p.localAddr
}

// StartRecv launches the read loop delivering into the handler.
func (p *UdpPort) StartRecv(handler DatagramHandler) {
	if p.recvStarted {
		return
	}
	p.recvStarted = true

	go func() {
		buf := make([]byte, largestDatagramSize)
		for {
			n, remote, err := p.conn.ReadFromUDPAddrPort(buf)
			if err != nil {
				select {
				case <-p.done:
					return
				default:
				}
				slog.Error("Error reading from UDP socket, swallowing error", "error", err)
				continue
			}

			// Copy out since buf is reused for the next read.
			data := make([]byte, n)
			copy(data, buf[:n])

			metrics.PacketsReceived.Inc()

			handler.HandleDatagram(data, remote, p.localAddr)
		}
	}()
}

// StartSend launches the send loop.
func (p *UdpPort) StartSend() {
	if p.sendStarted {
		return
	}
	p.sendStarted = true

	go func() {
		for {
			select {
			case <-p.done:
				return
			case pkt := <-p.outgoing:
				if pkt.UDP == nil || !pkt.UDP.DstAddr.IsValid() {
					slog.Debug("Dropping outbound packet without destination")
					continue
				}
				if _, err := p.conn.WriteToUDPAddrPort(pkt.Buffer(), pkt.UDP.DstAddr); err != nil {
					slog.Error("Error sending packet", "dst", pkt.UDP.DstAddr, "error", err)
					continue
				}
				metrics.PacketsSent.Inc()
			}
		}
	}()
}

// WritePacket implements packet.Writer. Packets without a destination in
// their UDP view are dropped by the send loop.
func (p *UdpPort) WritePacket(pkt *packet.Packet) error {
	select {
	case p.outgoing <- pkt:
		return nil
	case <-p.done:
		return ErrPortClosed
	}
}

// Close shuts the port down. Pending outbound packets are dropped.
func (p *UdpPort) Close() {
	p.stopOnce.Do(func() {
		close(p.done)
		if err := p.conn.Close(); err != nil {
			slog.Error("Error closing UDP socket", "error", err)
		}
	})
}
