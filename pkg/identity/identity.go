package identity

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
)

// ErrInvalidAddress is returned when a peer address cannot be parsed.
var ErrInvalidAddress = errors.New("invalid peer address")

// Identity is the sender of a request as seen by the transport layer.
type Identity struct {
	// PeerAddress is the remote IP and port.
	PeerAddress netip.AddrPort

	// PSKIdentity is the pre-shared key identity used on a secured channel.
	// Empty for unsecured peers.
	PSKIdentity string
}

// Unsecure returns the identity of a peer reached without DTLS.
func Unsecure(addr netip.AddrPort) Identity {
	return Identity{PeerAddress: addr}
}

// PSK returns the identity of a peer authenticated with a pre-shared key.
func PSK(addr netip.AddrPort, pskIdentity string) Identity {
	return Identity{PeerAddress: addr, PSKIdentity: pskIdentity}
}

// IsSet returns true if the identity carries a usable peer address.
func (i Identity) IsSet() bool {
	return i.PeerAddress.Addr().IsValid()
}

// IsSecure returns true if the peer authenticated with a pre-shared key.
func (i Identity) IsSecure() bool {
	return i.PSKIdentity != ""
}

// Host returns the IP component of the peer address with any IPv4-in-IPv6
// mapping removed.
func (i Identity) Host() netip.Addr {
	return i.PeerAddress.Addr().Unmap()
}

// String returns the peer address, followed by the PSK identity if any.
func (i Identity) String() string {
	if !i.IsSet() {
		return "<unset>"
	}
	if i.IsSecure() {
		return fmt.Sprintf("%s (psk=%s)", i.PeerAddress, i.PSKIdentity)
	}
	return i.PeerAddress.String()
}

// Matches reports whether origin is the same host as authority.
// Both identities must carry a valid address. Ports are not compared.
func Matches(authority, origin Identity) bool {
	if !authority.IsSet() || !origin.IsSet() {
		return false
	}
	return authority.Host() == origin.Host()
}

// ParseIdentity parses "host:port", "[v6]:port" or a bare IP (port 0) into an
// unsecured identity.
func ParseIdentity(s string) (Identity, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Identity{}, ErrInvalidAddress
	}

	if ap, err := netip.ParseAddrPort(s); err == nil {
		return Unsecure(ap), nil
	}

	addr, err := netip.ParseAddr(strings.Trim(s, "[]"))
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return Unsecure(netip.AddrPortFrom(addr, 0)), nil
}

// MustParse is like ParseIdentity but panics on error. Intended for tests
// and static configuration.
func MustParse(s string) Identity {
	id, err := ParseIdentity(s)
	if err != nil {
		panic(err)
	}
	return id
}
