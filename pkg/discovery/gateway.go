package discovery

import (
	"errors"
	"maps"
	"net"
	"net/netip"
	"slices"
	"strings"
	"time"

	"github.com/wxnode/wxnode-go/pkg/transport"
)

const (
	// ServiceTypeGateway is the default service type browsed for.
	ServiceTypeGateway = "_mqtt._tcp"

	// Domain is the mDNS domain.
	Domain = "local."

	// BrowseTimeout is the default time spent collecting answers.
	BrowseTimeout = 3 * time.Second
)

// TXT record keys.
const (
	TXTKeyProtocol = "proto"
	TXTKeyID       = "id"
	TXTKeyVersion  = "ver"
)

// Errors.
var (
	ErrNotFound    = errors.New("no gateway found")
	ErrNoAddresses = errors.New("gateway has no usable address")
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// StringsToTXTRecords parses "key=value" strings. A key without '=' maps to
// the empty string.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		k, v, _ := strings.Cut(s, "=")
		if k != "" {
			txt[k] = v
		}
	}
	return txt
}

// Gateway is a discovered gateway instance.
type Gateway struct {
	Instance  string
	Host      string
	Port      uint16
	Addresses []netip.Addr
	TXT       TXTRecordMap
}

// Protocol returns the advertised transport flavour, if any.
func (g *Gateway) Protocol() string {
	return g.TXT[TXTKeyProtocol]
}

// Endpoint picks the address to connect to: a routable IPv6 address first,
// then IPv4, then a link-local IPv6 address.
func (g *Gateway) Endpoint() (transport.Endpoint, error) {
	port := g.Port
	if port == 0 {
		port = transport.DefaultPort
	}

	rank := func(a netip.Addr) int {
		switch {
		case a.Is6() && !a.IsLinkLocalUnicast():
			return 0
		case a.Is4():
			return 1
		default:
			return 2
		}
	}

	var best netip.Addr
	for _, a := range g.Addresses {
		if !a.IsValid() || a.IsUnspecified() {
			continue
		}
		if !best.IsValid() || rank(a) < rank(best) {
			best = a
		}
	}
	if !best.IsValid() {
		return transport.Endpoint{}, ErrNoAddresses
	}
	return transport.Endpoint{Addr: best, Port: port}, nil
}

func (g *Gateway) clone() *Gateway {
	c := *g
	c.Addresses = slices.Clone(g.Addresses)
	c.TXT = maps.Clone(g.TXT)
	return &c
}

// newGateway builds a Gateway from the fields of a service entry.
func newGateway(instance, host string, port int, text []string, v4, v6 []net.IP) *Gateway {
	g := &Gateway{
		Instance: instance,
		Host:     host,
		Port:     uint16(port),
		TXT:      StringsToTXTRecords(text),
	}
	for _, ip := range slices.Concat(v4, v6) {
		if a, ok := netip.AddrFromSlice(ip); ok {
			g.Addresses = mergeAddresses(g.Addresses, []netip.Addr{a.Unmap()})
		}
	}
	return g
}

// mergeAddresses adds new addresses to existing, avoiding duplicates.
func mergeAddresses(existing, add []netip.Addr) []netip.Addr {
	for _, a := range add {
		if !slices.Contains(existing, a) {
			existing = append(existing, a)
		}
	}
	return existing
}

// removeAddresses drops every address in gone from addrs.
func removeAddresses(addrs, gone []netip.Addr) []netip.Addr {
	return slices.DeleteFunc(addrs, func(a netip.Addr) bool {
		return slices.Contains(gone, a)
	})
}
