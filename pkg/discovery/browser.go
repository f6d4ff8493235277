package discovery

import (
	"context"
	"maps"
	"net"
	"slices"
	"strings"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// BrowserConfig configures browser behavior.
type BrowserConfig struct {
	// Service is the DNS-SD service type. Default: ServiceTypeGateway.
	Service string

	// Domain is the browse domain. Default: Domain.
	Domain string

	// Timeout bounds FindAll. Default: BrowseTimeout.
	Timeout time.Duration

	// Interface restricts browsing to one network interface.
	// Empty string means all interfaces.
	Interface string
}

type browseFunc func(ctx context.Context, service, domain string, entries, removed chan *zeroconf.ServiceEntry, opts ...zeroconf.ClientOption) error

// Browser finds gateways with mDNS.
type Browser struct {
	config BrowserConfig
	browse browseFunc
}

// NewBrowser creates a gateway browser.
func NewBrowser(config BrowserConfig) *Browser {
	if config.Service == "" {
		config.Service = ServiceTypeGateway
	}
	if config.Domain == "" {
		config.Domain = Domain
	}
	if config.Timeout <= 0 {
		config.Timeout = BrowseTimeout
	}
	return &Browser{
		config: config,
		browse: func(ctx context.Context, service, domain string, entries, removed chan *zeroconf.ServiceEntry, opts ...zeroconf.ClientOption) error {
			return zeroconf.Browse(ctx, service, domain, entries, removed, opts...)
		},
	}
}

// Browse emits a snapshot of a gateway when it is first seen and again
// whenever another interface reports new addresses for it. The channel is
// closed when ctx is done.
func (b *Browser) Browse(ctx context.Context) <-chan *Gateway {
	out := make(chan *Gateway)
	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	go func() {
		defer close(out)

		gateways := make(map[string]*Gateway)
		gone := (<-chan *zeroconf.ServiceEntry)(removed)
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				gw := entryToGateway(entry)
				if existing, found := gateways[gw.Instance]; found {
					n := len(existing.Addresses)
					existing.Addresses = mergeAddresses(existing.Addresses, gw.Addresses)
					if len(existing.Addresses) == n {
						continue
					}
					gw = existing
				} else {
					gateways[gw.Instance] = gw
				}
				select {
				case out <- gw.clone():
				case <-ctx.Done():
					return
				}

			case entry, ok := <-gone:
				if !ok {
					gone = nil
					continue
				}
				lost := entryToGateway(entry)
				if existing, found := gateways[lost.Instance]; found {
					existing.Addresses = removeAddresses(existing.Addresses, lost.Addresses)
					if len(existing.Addresses) == 0 {
						delete(gateways, lost.Instance)
					}
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		_ = b.browse(ctx, b.config.Service, b.config.Domain, entries, removed, b.options()...)
	}()

	return out
}

// FindAll collects gateways until the configured timeout or ctx expires and
// returns them sorted by instance name. An empty result is not an error.
func (b *Browser) FindAll(ctx context.Context) ([]*Gateway, error) {
	ctx, cancel := context.WithTimeout(ctx, b.config.Timeout)
	defer cancel()

	latest := make(map[string]*Gateway)
	for gw := range b.Browse(ctx) {
		latest[gw.Instance] = gw
	}
	found := slices.Collect(maps.Values(latest))
	slices.SortFunc(found, func(x, y *Gateway) int {
		return strings.Compare(x.Instance, y.Instance)
	})
	return found, nil
}

// First returns the first gateway seen before the timeout.
func (b *Browser) First(ctx context.Context) (*Gateway, error) {
	ctx, cancel := context.WithTimeout(ctx, b.config.Timeout)
	defer cancel()

	gw, ok := <-b.Browse(ctx)
	if !ok {
		return nil, ErrNotFound
	}
	return gw, nil
}

func (b *Browser) options() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption
	if b.config.Interface != "" {
		iface, err := net.InterfaceByName(b.config.Interface)
		if err == nil {
			opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
		}
	}
	return opts
}

func entryToGateway(entry *zeroconf.ServiceEntry) *Gateway {
	return newGateway(entry.Instance, entry.HostName, entry.Port, entry.Text, entry.AddrIPv4, entry.AddrIPv6)
}
