// The MIT License (MIT)
//
// Copyright (c) 2015 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package udpfec

import "errors"

// Error kinds surfaced across the facade. Propagation policy is
// described in the component packages that raise them: WouldBlock and
// Timeout are transient, BufferFull on write is transient,
// BufferOverrun on read is fatal unless overrun is configured
// non-fatal, CodecError and FecMalformedHeader abort only the current
// group, and Closed supersedes everything once set.
var (
	ErrAddressResolution  = errors.New("udpfec: address resolution failed")
	ErrSocketCreate       = errors.New("udpfec: socket creation failed")
	ErrSocketOption       = errors.New("udpfec: socket option failed")
	ErrBindFailed         = errors.New("udpfec: bind failed")
	ErrConnectFailed      = errors.New("udpfec: connect failed")
	ErrMulticastJoin      = errors.New("udpfec: multicast join/leave failed")
	ErrWouldBlock         = errors.New("udpfec: would block")
	ErrTimeout            = errors.New("udpfec: timeout")
	ErrBufferFull         = errors.New("udpfec: ring buffer full")
	ErrBufferOverrun      = errors.New("udpfec: ring buffer overrun")
	ErrFecMalformedHeader = errors.New("udpfec: malformed fec header")
	ErrFecGroupFull       = errors.New("udpfec: fec group full")
	ErrCodecError         = errors.New("udpfec: codec error")
	ErrClosed             = errors.New("udpfec: endpoint closed")

	// ErrPacketTooLarge is raised by the facade when a caller's write
	// exceeds max_packet_size. Modeled as a boundary rejection rather
	// than a protocol error kind, but it still needs a sentinel to be
	// testable with errors.Is.
	ErrPacketTooLarge = errors.New("udpfec: packet exceeds max_packet_size")

	// ErrDirectionNotOpen is returned by Write when the transport
	// wasn't opened for writing, and by TryRead when the transport has
	// no read ring (not opened for reading, or reading in sync mode).
	// Read does not check the direction: on a transport not opened for
	// reading it performs a plain recv on the socket.
	ErrDirectionNotOpen = errors.New("udpfec: transport not opened for this direction")
)
