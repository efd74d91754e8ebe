package udpfec

import (
	"context"
	"net"
	"os"
	"syscall"
	"time"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
	"golang.org/x/sys/unix"

	"github.com/pkg/errors"
)

// Endpoint owns the UDP (or UDP-Lite) socket for one direction of the
// transport: resolution, bind/connect, multicast join/leave, and
// socket-option tuning (spec §4.7).
type Endpoint struct {
	conn      net.PacketConn
	file      *os.File // non-nil only for a raw UDP-Lite socket, see endpoint_linux.go
	remote    net.Addr // destination used by Send when not connected
	connected bool
	multicast bool
	pc4       *ipv4.PacketConn
	pc6       *ipv6.PacketConn
	isV6      bool
}

// openEndpoint resolves addresses and configures the socket per opts.
// forWrite/forRead indicate which directions the caller intends to
// use; they drive the connect-vs-listen choice and the multicast bind
// policy (spec §4.7).
func openEndpoint(pu *parsedURL, opts Options, forWrite, forRead bool) (*Endpoint, error) {
	hostIP := net.ParseIP(pu.host)
	multicast := hostIP != nil && hostIP.IsMulticast()

	if opts.UDPLite {
		return openUDPLiteEndpoint(pu, opts)
	}

	ep := &Endpoint{multicast: multicast}
	lc := newListenConfig(opts, multicast)

	switch {
	case forWrite && opts.IsConnected && !multicast:
		addr := joinHostPort(pu.host, pu.port)
		d := net.Dialer{Control: lc.Control}
		c, err := d.Dial("udp", addr)
		if err != nil {
			return nil, errors.Wrap(ErrConnectFailed, err.Error())
		}
		ep.conn = c.(net.PacketConn)
		ep.connected = true

	case multicast && forRead && !forWrite:
		// Attempt to bind the multicast address first; fall back to
		// the local address on failure (spec §4.7's bind policy).
		addr := joinHostPort(pu.host, pu.port)
		pc, err := lc.ListenPacket(context.Background(), "udp", addr)
		if err != nil {
			localAddr := ":" + pu.port
			pc, err = lc.ListenPacket(context.Background(), "udp", localAddr)
			if err != nil {
				return nil, errors.Wrap(ErrBindFailed, err.Error())
			}
		}
		ep.conn = pc

	case multicast && forWrite:
		// Also writing: skip the multicast bind entirely.
		pc, err := lc.ListenPacket(context.Background(), "udp", ":"+pu.port)
		if err != nil {
			return nil, errors.Wrap(ErrBindFailed, err.Error())
		}
		ep.conn = pc
		ep.remote = &net.UDPAddr{IP: hostIP, Port: atoiPort(pu.port)}

	case forWrite && !multicast:
		// Writing to an unconnected unicast peer: bind a local wildcard
		// socket on an ephemeral port (never the remote's own address or
		// port) and address every Send explicitly.
		pc, err := lc.ListenPacket(context.Background(), "udp", ":0")
		if err != nil {
			return nil, errors.Wrap(ErrBindFailed, err.Error())
		}
		ep.conn = pc
		if pu.host != "" {
			ep.remote = &net.UDPAddr{IP: hostIP, Port: atoiPort(pu.port)}
		}

	default:
		addr := joinHostPort(pu.host, pu.port)
		pc, err := lc.ListenPacket(context.Background(), "udp", addr)
		if err != nil {
			return nil, errors.Wrap(ErrBindFailed, err.Error())
		}
		ep.conn = pc
		if pu.host != "" {
			ep.remote = &net.UDPAddr{IP: hostIP, Port: atoiPort(pu.port)}
		}
	}

	if err := ep.applyOptions(opts, hostIP, multicast); err != nil {
		ep.conn.Close()
		return nil, err
	}
	return ep, nil
}

func (ep *Endpoint) applyOptions(opts Options, hostIP net.IP, multicast bool) error {
	if sb, ok := ep.conn.(interface{ SetReadBuffer(int) error }); ok {
		size := opts.RecvBufferSize
		if size == 0 {
			size = 65536
		}
		if err := sb.SetReadBuffer(size); err != nil {
			return errors.Wrap(ErrSocketOption, err.Error())
		}
	}
	if wb, ok := ep.conn.(interface{ SetWriteBuffer(int) error }); ok {
		size := opts.SendBufferSize
		if size == 0 {
			size = 32768
		}
		if err := wb.SetWriteBuffer(size); err != nil {
			return errors.Wrap(ErrSocketOption, err.Error())
		}
	}

	if multicast {
		if err := ep.joinMulticast(hostIP, opts); err != nil {
			return err
		}
	}
	if opts.TTL > 0 {
		if err := ep.setTTL(hostIP, opts.TTL); err != nil {
			return err
		}
	}
	return nil
}

func (ep *Endpoint) v4PacketConn() *ipv4.PacketConn {
	if ep.pc4 == nil {
		ep.pc4 = ipv4.NewPacketConn(ep.conn)
	}
	return ep.pc4
}

func (ep *Endpoint) v6PacketConn() *ipv6.PacketConn {
	if ep.pc6 == nil {
		ep.pc6 = ipv6.NewPacketConn(ep.conn)
	}
	return ep.pc6
}

// joinMulticast joins the group, applying a source filter when
// opts.Sources/opts.Block are set (spec §4.7's MCAST_JOIN_SOURCE_GROUP
// / MCAST_BLOCK_SOURCE equivalents via golang.org/x/net). IPv6 groups
// apply only opts.Sources; opts.Block is not applied to them.
func (ep *Endpoint) joinMulticast(ip net.IP, opts Options) error {
	group := &net.UDPAddr{IP: ip}

	if ip4 := ip.To4(); ip4 != nil {
		pc := ep.v4PacketConn()
		if len(opts.Sources) > 0 {
			for _, s := range opts.Sources {
				src := &net.UDPAddr{IP: net.ParseIP(s)}
				if err := pc.JoinSourceSpecificGroup(nil, group, src); err != nil {
					return errors.Wrap(ErrMulticastJoin, err.Error())
				}
			}
		} else if err := pc.JoinGroup(nil, group); err != nil {
			return errors.Wrap(ErrMulticastJoin, err.Error())
		}
		for _, b := range opts.Block {
			src := &net.UDPAddr{IP: net.ParseIP(b)}
			_ = pc.ExcludeSourceSpecificGroup(nil, group, src)
		}
		return nil
	}

	ep.isV6 = true
	pc := ep.v6PacketConn()
	if len(opts.Sources) > 0 {
		for _, s := range opts.Sources {
			src := &net.UDPAddr{IP: net.ParseIP(s)}
			if err := pc.JoinSourceSpecificGroup(nil, group, src); err != nil {
				return errors.Wrap(ErrMulticastJoin, err.Error())
			}
		}
	} else if err := pc.JoinGroup(nil, group); err != nil {
		return errors.Wrap(ErrMulticastJoin, err.Error())
	}
	return nil
}

func (ep *Endpoint) leaveMulticast(ip net.IP) error {
	group := &net.UDPAddr{IP: ip}
	if ep.isV6 {
		return ep.v6PacketConn().LeaveGroup(nil, group)
	}
	return ep.v4PacketConn().LeaveGroup(nil, group)
}

func (ep *Endpoint) setTTL(ip net.IP, ttl int) error {
	if ip4 := ip.To4(); ip4 != nil || !ep.isV6 {
		if err := ep.v4PacketConn().SetMulticastTTL(ttl); err != nil {
			return errors.Wrap(ErrSocketOption, err.Error())
		}
		return nil
	}
	if err := ep.v6PacketConn().SetMulticastHopLimit(ttl); err != nil {
		return errors.Wrap(ErrSocketOption, err.Error())
	}
	return nil
}

// Send writes one datagram. When the endpoint was opened connected, it
// writes through the connected socket; otherwise it addresses the
// configured remote explicitly.
func (ep *Endpoint) Send(payload []byte) error {
	if ep.connected {
		_, err := ep.conn.(net.Conn).Write(payload)
		return err
	}
	if ep.remote == nil {
		return errors.New("udpfec: endpoint has no remote to send to")
	}
	_, err := ep.conn.WriteTo(payload, ep.remote)
	return err
}

// Recv reads one datagram into buf.
func (ep *Endpoint) Recv(buf []byte) (int, error) {
	n, _, err := ep.conn.ReadFrom(buf)
	return n, err
}

// SetReadDeadline applies the configured read-side timeout (spec
// §4.7's timeout option).
func (ep *Endpoint) SetReadDeadline(t time.Time) error {
	return ep.conn.SetReadDeadline(t)
}

// LocalAddr reports the socket's local address, useful for tests and
// callers that bound to an ephemeral port.
func (ep *Endpoint) LocalAddr() net.Addr {
	return ep.conn.LocalAddr()
}

func (ep *Endpoint) Close() error {
	if ep.file != nil {
		ep.file.Close()
	}
	return ep.conn.Close()
}

// FileHandle exposes the endpoint's underlying descriptor (spec §6's
// get_file_handle), grounded on original_source/libavformat/udp.c's
// udp_get_file_handle.
func (ep *Endpoint) FileHandle() (*os.File, error) {
	if ep.file != nil {
		return ep.file, nil
	}
	if uc, ok := ep.conn.(*net.UDPConn); ok {
		return uc.File()
	}
	return nil, errors.New("udpfec: no file handle available for this endpoint")
}

func newListenConfig(opts Options, multicast bool) net.ListenConfig {
	reuse := opts.ReuseSocket
	effectiveReuse := multicast
	if reuse != nil {
		effectiveReuse = *reuse
	}
	broadcast := opts.IsBroadcast

	return net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var ctrlErr error
			err := c.Control(func(fd uintptr) {
				if effectiveReuse {
					if e := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); e != nil {
						ctrlErr = e
					}
				}
				if broadcast {
					if e := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1); e != nil {
						ctrlErr = e
					}
				}
			})
			if err != nil {
				return err
			}
			return ctrlErr
		},
	}
}

func joinHostPort(host, port string) string {
	if host == "" {
		return ":" + port
	}
	return net.JoinHostPort(host, port)
}

func atoiPort(port string) int {
	n, _ := parseInt(port)
	return n
}
