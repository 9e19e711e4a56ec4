// Package dnsseeds builds a bootstrap Address set by resolving Bitcoin
// Core's hardcoded DNS seed hostnames. The core crawl engine (internal/crawl)
// never performs DNS seeding itself; it only consumes the Address slice this
// package produces, so the invoker decides how the crawl is bootstrapped.
package dnsseeds

import (
	"context"
	"fmt"
	"net"

	"github.com/p2p-crawler/crawler/internal/addr"
	"golang.org/x/sync/errgroup"
)

// DefaultPort is the Bitcoin mainnet P2P port seeds are assumed to listen on.
const DefaultPort uint16 = 8333

// Default is the hardcoded mainnet DNS seed list, mirrored from the set
// Bitcoin Core ships in its chainparams.
var Default = []string{
	"seed.bitcoin.sipa.be.",
	"dnsseed.bluematt.me.",
	"dnsseed.bitcoin.dashjr-list-of-p2p-nodes.us.",
	"seed.bitcoinstats.com.",
	"seed.bitcoin.jonasschnelli.ch.",
	"seed.btc.petertodd.net.",
	"seed.bitcoin.sprovoost.nl.",
	"dnsseed.emzy.de.",
	"seed.bitcoin.wiz.biz.",
	"seed.mainnet.achownodes.xyz.",
}

// Result is the set of Addresses one seed hostname resolved to.
type Result struct {
	Seed      string
	Addresses []addr.Address
	Err       error
}

// Query resolves every hostname in seeds concurrently and returns one
// Result per hostname, in the same order as seeds. A resolution failure for
// one seed does not affect the others; it is reported in that seed's
// Result.Err.
func Query(ctx context.Context, seeds []string, port uint16, resolver *net.Resolver) []Result {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	results := make([]Result, len(seeds))

	var g errgroup.Group
	for i, host := range seeds {
		i, host := i, host
		g.Go(func() error {
			ips, err := resolver.LookupIPAddr(ctx, host)
			if err != nil {
				log.Debugf("dnsseeds: lookup %s: %v", host, err)
				results[i] = Result{Seed: host, Err: fmt.Errorf("dnsseeds: lookup %s: %w", host, err)}
				return nil
			}
			addrs := make([]addr.Address, 0, len(ips))
			for _, ipAddr := range ips {
				addrs = append(addrs, addr.FromNetIP(ipAddr.IP, port))
			}
			results[i] = Result{Seed: host, Addresses: addrs}
			return nil
		})
	}
	// Each Go func writes only to its own index and never returns an
	// error, so this can't fail; Wait just blocks for completion.
	_ = g.Wait()
	return results
}

// Flatten merges every Result's addresses into one deduplicated slice,
// suitable as a crawl's bootstrap set.
func Flatten(results []Result) []addr.Address {
	seen := make(map[string]struct{})
	var out []addr.Address
	for _, r := range results {
		for _, a := range r.Addresses {
			key := a.Key()
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, a)
		}
	}
	return out
}
