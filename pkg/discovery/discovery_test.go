package discovery

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/enbility/zeroconf/v3"

	"github.com/wxnode/wxnode-go/pkg/transport"
)

type browseEvent struct {
	entry   *zeroconf.ServiceEntry
	removed bool
}

func entry(instance string, port int, txt []string, addrs ...string) *zeroconf.ServiceEntry {
	e := &zeroconf.ServiceEntry{
		HostName: instance + ".local.",
		Port:     port,
		Text:     txt,
	}
	e.Instance = instance
	for _, a := range addrs {
		ip := net.ParseIP(a)
		if ip.To4() != nil {
			e.AddrIPv4 = append(e.AddrIPv4, ip)
		} else {
			e.AddrIPv6 = append(e.AddrIPv6, ip)
		}
	}
	return e
}

// scriptedBrowse replays events, then waits for the context like a real
// browse would.
func scriptedBrowse(t *testing.T, wantService string, events ...browseEvent) browseFunc {
	return func(ctx context.Context, service, domain string, entries, removed chan *zeroconf.ServiceEntry, _ ...zeroconf.ClientOption) error {
		if service != wantService {
			t.Errorf("browsed service %q, want %q", service, wantService)
		}
		if domain != Domain {
			t.Errorf("browsed domain %q, want %q", domain, Domain)
		}
		for _, ev := range events {
			ch := entries
			if ev.removed {
				ch = removed
			}
			select {
			case ch <- ev.entry:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		<-ctx.Done()
		return ctx.Err()
	}
}

func newTestBrowser(t *testing.T, events ...browseEvent) *Browser {
	b := NewBrowser(BrowserConfig{Timeout: 100 * time.Millisecond})
	b.browse = scriptedBrowse(t, ServiceTypeGateway, events...)
	return b
}

func TestFindAllMergesInterfaces(t *testing.T) {
	b := newTestBrowser(t,
		browseEvent{entry: entry("gw-b", 1883, []string{"proto=mqtt", "id=B"}, "192.168.1.20")},
		browseEvent{entry: entry("gw-a", 1885, []string{"proto=mqttsn"}, "fec0:affe::1")},
		browseEvent{entry: entry("gw-a", 1885, nil, "192.168.1.10")},
		browseEvent{entry: entry("gw-a", 1885, nil, "fec0:affe::1")},
	)

	found, err := b.FindAll(context.Background())
	if err != nil {
		t.Fatalf("FindAll() error = %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("FindAll() found %d gateways, want 2", len(found))
	}
	if found[0].Instance != "gw-a" || found[1].Instance != "gw-b" {
		t.Errorf("FindAll() order = %s, %s", found[0].Instance, found[1].Instance)
	}

	a := found[0]
	if len(a.Addresses) != 2 {
		t.Errorf("gw-a addresses = %v, want 2 merged", a.Addresses)
	}
	if a.Protocol() != "mqttsn" {
		t.Errorf("gw-a protocol = %q", a.Protocol())
	}
	if found[1].TXT[TXTKeyID] != "B" {
		t.Errorf("gw-b TXT = %v", found[1].TXT)
	}
}

func TestFindAllEmpty(t *testing.T) {
	b := newTestBrowser(t)

	found, err := b.FindAll(context.Background())
	if err != nil {
		t.Fatalf("FindAll() error = %v", err)
	}
	if len(found) != 0 {
		t.Errorf("FindAll() = %v, want none", found)
	}
}

func TestFindAllDropsRemovedGateway(t *testing.T) {
	e := entry("gw-a", 1883, nil, "192.168.1.10")
	b := newTestBrowser(t,
		browseEvent{entry: e},
		browseEvent{entry: e, removed: true},
		browseEvent{entry: entry("gw-a", 1883, nil, "192.168.1.11")},
	)

	found, err := b.FindAll(context.Background())
	if err != nil {
		t.Fatalf("FindAll() error = %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("FindAll() found %d gateways, want 1", len(found))
	}
	want := []netip.Addr{netip.MustParseAddr("192.168.1.11")}
	if len(found[0].Addresses) != 1 || found[0].Addresses[0] != want[0] {
		t.Errorf("addresses = %v, want %v", found[0].Addresses, want)
	}
}

func TestFirst(t *testing.T) {
	b := newTestBrowser(t, browseEvent{entry: entry("gw-a", 1883, nil, "fec0:affe::1")})

	gw, err := b.First(context.Background())
	if err != nil {
		t.Fatalf("First() error = %v", err)
	}
	if gw.Instance != "gw-a" {
		t.Errorf("First() = %s", gw.Instance)
	}

	b = newTestBrowser(t)
	if _, err := b.First(context.Background()); !errors.Is(err, ErrNotFound) {
		t.Errorf("First() on empty network error = %v, want ErrNotFound", err)
	}
}

func TestBrowseCustomService(t *testing.T) {
	b := NewBrowser(BrowserConfig{Service: "_mqtt-sn._udp", Timeout: 50 * time.Millisecond})
	b.browse = scriptedBrowse(t, "_mqtt-sn._udp")

	if _, err := b.FindAll(context.Background()); err != nil {
		t.Fatalf("FindAll() error = %v", err)
	}
}

func TestGatewayEndpoint(t *testing.T) {
	tests := []struct {
		name  string
		addrs []string
		port  uint16
		want  string
	}{
		{"routable IPv6 preferred", []string{"192.168.1.10", "fe80::1", "fec0:affe::1"}, 1883, "[fec0:affe::1]:1883"},
		{"IPv4 over link-local", []string{"fe80::1", "192.168.1.10"}, 1885, "192.168.1.10:1885"},
		{"link-local only", []string{"fe80::1"}, 1883, "[fe80::1]:1883"},
		{"default port", []string{"192.168.1.10"}, 0, "192.168.1.10:1883"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &Gateway{Port: tt.port}
			for _, a := range tt.addrs {
				g.Addresses = append(g.Addresses, netip.MustParseAddr(a))
			}
			ep, err := g.Endpoint()
			if err != nil {
				t.Fatalf("Endpoint() error = %v", err)
			}
			if ep.String() != tt.want {
				t.Errorf("Endpoint() = %s, want %s", ep, tt.want)
			}
		})
	}

	if _, err := (&Gateway{}).Endpoint(); !errors.Is(err, ErrNoAddresses) {
		t.Errorf("Endpoint() without addresses error = %v", err)
	}
}

func TestNewGatewayUnmapsIPv4(t *testing.T) {
	g := newGateway("gw", "gw.local.", 1883, []string{"flag", "proto=mqtt"},
		[]net.IP{net.ParseIP("10.0.0.1")}, nil)

	if len(g.Addresses) != 1 || !g.Addresses[0].Is4() {
		t.Fatalf("addresses = %v, want one IPv4", g.Addresses)
	}
	if _, ok := g.TXT["flag"]; !ok {
		t.Error("TXT key without value missing")
	}
	ep, err := g.Endpoint()
	if err != nil || ep != (transport.Endpoint{Addr: netip.MustParseAddr("10.0.0.1"), Port: 1883}) {
		t.Errorf("Endpoint() = %v, %v", ep, err)
	}
}
