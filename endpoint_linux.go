//go:build linux

package udpfec

import (
	"net"
	"os"

	"golang.org/x/sys/unix"

	"github.com/pkg/errors"
)

// udpLiteCoverageDefault is the 8-byte header coverage used when no
// udplite_coverage option is given (spec §4.7).
const udpLiteCoverageDefault = 8

// openUDPLiteEndpoint builds a raw IPPROTO_UDPLITE socket (spec §4.7,
// supplemented from original_source/libavformat/udp.c which opens
// UDP-Lite directly) and wraps it back into a net.PacketConn via
// os.NewFile + net.FilePacketConn, the same raw-fd-into-interface
// pattern platform_linux.go uses for its own udpConn assertion.
func openUDPLiteEndpoint(pu *parsedURL, opts Options) (*Endpoint, error) {
	hostIP := net.ParseIP(pu.host)
	family := unix.AF_INET
	if hostIP != nil && hostIP.To4() == nil {
		family = unix.AF_INET6
	}

	fd, err := unix.Socket(family, unix.SOCK_DGRAM, unix.IPPROTO_UDPLITE)
	if err != nil {
		return nil, errors.Wrap(ErrSocketCreate, err.Error())
	}

	coverage := opts.UDPLiteCoverage
	if coverage == 0 {
		coverage = udpLiteCoverageDefault
	}
	if err := unix.SetsockoptInt(fd, unix.IPPROTO_UDPLITE, unix.UDPLITE_SEND_CSCOV, coverage); err != nil {
		unix.Close(fd)
		return nil, errors.Wrap(ErrSocketOption, err.Error())
	}
	if err := unix.SetsockoptInt(fd, unix.IPPROTO_UDPLITE, unix.UDPLITE_RECV_CSCOV, coverage); err != nil {
		unix.Close(fd)
		return nil, errors.Wrap(ErrSocketOption, err.Error())
	}

	reuse := opts.ReuseSocket
	if reuse == nil || *reuse {
		_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	}
	if opts.IsBroadcast {
		_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
	}

	port := atoiPort(pu.port)
	if family == unix.AF_INET {
		sa := &unix.SockaddrInet4{Port: port}
		if hostIP != nil {
			copy(sa.Addr[:], hostIP.To4())
		}
		if err := unix.Bind(fd, sa); err != nil {
			unix.Close(fd)
			return nil, errors.Wrap(ErrBindFailed, err.Error())
		}
	} else {
		sa := &unix.SockaddrInet6{Port: port}
		if hostIP != nil {
			copy(sa.Addr[:], hostIP.To16())
		}
		if err := unix.Bind(fd, sa); err != nil {
			unix.Close(fd)
			return nil, errors.Wrap(ErrBindFailed, err.Error())
		}
	}

	f := os.NewFile(uintptr(fd), "udplite")
	pc, err := net.FilePacketConn(f)
	if err != nil {
		f.Close()
		return nil, errors.Wrap(ErrSocketCreate, err.Error())
	}

	ep := &Endpoint{conn: pc, file: f}
	if opts.IsConnected && pu.host != "" {
		ep.connected = false // UDP-Lite raw sockets route through WriteTo with an explicit remote
		ep.remote = &net.UDPAddr{IP: hostIP, Port: port}
	}
	return ep, nil
}
