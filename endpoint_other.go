//go:build !linux

package udpfec

import "github.com/pkg/errors"

// openUDPLiteEndpoint: UDP-Lite requires the IPPROTO_UDPLITE raw
// socket path, a Linux-only kernel feature (spec §4.7, §9's GLOSSARY
// entry on RFC 3828). Non-Linux platforms reject it rather than
// silently falling back to plain UDP.
func openUDPLiteEndpoint(pu *parsedURL, opts Options) (*Endpoint, error) {
	return nil, errors.Wrap(ErrSocketCreate, "udp-lite is only supported on linux")
}
