package udpfec

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Options configures an Endpoint (spec §4.7's enumerated option
// table) plus the FEC shape and the facade-level packet size. Options
// may be built programmatically or parsed from a udp:// URL (spec §6);
// when both a Config and a URL query are supplied, the query wins
// (spec §9's "query takes precedence").
type Options struct {
	// FEC shape.
	OriginalCount int // K
	RecoveryCount int // R

	// buffer_size: SO_SNDBUF/SO_RCVBUF. Separate tx/rx defaults per
	// spec §4.7 (tx 32768, rx 65536); 0 means "use the default".
	SendBufferSize int
	RecvBufferSize int

	// pkt_size: caller-visible MTU. max_packet_size = PacketSize - 3.
	PacketSize int

	TTL int

	// reuse_socket: tri-state so "unset" can still auto-enable for
	// multicast. nil means unset.
	ReuseSocket *bool

	IsBroadcast bool
	IsConnected bool

	// UDP-Lite.
	UDPLite         bool
	UDPLiteCoverage int // 0 means "use the 8-byte header default"

	Sources []string
	Block   []string

	// circular_buffer_size is the user-facing ring size in 188-byte
	// units; the ring's byte capacity is this value * 188 (spec §4.7).
	CircularBufferSize int

	Bitrate   int64
	BurstBits int64

	OverrunNonfatal bool

	// Timeout is the read-side deadline in milliseconds; 0 means none.
	Timeout int
}

// DefaultOptions returns the documented defaults (§3, §4.6, §4.7).
func DefaultOptions() Options {
	return Options{
		OriginalCount:      OriginalCount,
		RecoveryCount:      DefaultRecoveryCount,
		SendBufferSize:     32768,
		RecvBufferSize:     65536,
		PacketSize:         BlockBytes,
		CircularBufferSize: 7 * 4096,
	}
}

// MaxPacketSize is pkt_size - 3 (spec §4.4's facade-enforced bound:
// the header byte plus the 2-byte size prefix).
func (o Options) MaxPacketSize() int {
	return o.PacketSize - 3
}

// parsedURL is the decomposed udp:// URL (spec §6).
type parsedURL struct {
	host  string
	port  string
	query url.Values
}

// parseURL parses the udp://[host][:port][?opt=val(&opt=val)*] grammar.
// Empty host is permitted for a read-only listener.
func parseURL(raw string) (*parsedURL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, errors.Wrap(ErrAddressResolution, err.Error())
	}
	if u.Scheme != "udp" {
		return nil, errors.Wrapf(ErrAddressResolution, "unsupported scheme %q", u.Scheme)
	}

	host := u.Hostname()
	port := u.Port()
	if host == "" && port == "" && u.Opaque != "" {
		// udp://?opt=val with no host at all still parses Opaque in
		// some net/url versions; treat it as an empty host.
		host = ""
	}

	return &parsedURL{host: host, port: port, query: u.Query()}, nil
}

// applyQuery overlays the URL's recognized query options onto o,
// overriding any value already set from a Config (spec §9).
func (o *Options) applyQuery(q url.Values) error {
	for key, values := range q {
		if len(values) == 0 {
			continue
		}
		v := values[0]
		var err error
		switch key {
		case "buffer_size":
			err = setIntBoth(&o.SendBufferSize, &o.RecvBufferSize, v)
		case "sndbuf":
			o.SendBufferSize, err = parseInt(v)
		case "rcvbuf":
			o.RecvBufferSize, err = parseInt(v)
		case "pkt_size":
			o.PacketSize, err = parseInt(v)
		case "ttl":
			o.TTL, err = parseInt(v)
		case "reuse_socket":
			var b bool
			b, err = parseBool(v)
			o.ReuseSocket = &b
		case "is_broadcast":
			o.IsBroadcast, err = parseBool(v)
		case "is_connected":
			o.IsConnected, err = parseBool(v)
		case "udplite":
			o.UDPLite, err = parseBool(v)
		case "udplite_coverage":
			o.UDPLiteCoverage, err = parseInt(v)
		case "sources":
			o.Sources = splitList(v)
		case "block":
			o.Block = splitList(v)
		case "circular_buffer_size":
			o.CircularBufferSize, err = parseInt(v)
		case "bitrate":
			o.Bitrate, err = parseInt64(v)
		case "burst_bits":
			o.BurstBits, err = parseInt64(v)
		case "overrun_nonfatal":
			o.OverrunNonfatal, err = parseBool(v)
		case "timeout":
			o.Timeout, err = parseInt(v)
		case "datashard", "k":
			o.OriginalCount, err = parseInt(v)
		case "parityshard", "r":
			o.RecoveryCount, err = parseInt(v)
		default:
			// Unrecognized options are ignored (collaborator concern,
			// not core per spec §1).
		}
		if err != nil {
			return errors.Wrapf(err, "option %q=%q", key, v)
		}
	}
	return nil
}

func setIntBoth(a, b *int, v string) error {
	n, err := parseInt(v)
	if err != nil {
		return err
	}
	*a, *b = n, n
	return nil
}

func parseInt(v string) (int, error)     { n, err := strconv.Atoi(v); return n, err }
func parseInt64(v string) (int64, error) { n, err := strconv.ParseInt(v, 10, 64); return n, err }

func parseBool(v string) (bool, error) {
	switch v {
	case "1", "true":
		return true, nil
	case "0", "false", "":
		return false, nil
	default:
		return false, errors.Errorf("invalid boolean %q", v)
	}
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	return strings.Split(v, ",")
}
