package hostlookup

import (
	"net/netip"
	"strings"
	"sync"

	"github.com/miekg/dns"
)

// DelegationCache maps zone names to the IPv4 addresses of their
// nameservers, in the order the referral supplied them. A newer
// referral for the same zone overwrites the older one.
type DelegationCache struct {
	mu    sync.RWMutex
	zones map[string][]netip.Addr
}

func NewDelegationCache() *DelegationCache {
	return &DelegationCache{zones: make(map[string][]netip.Addr)}
}

// Set records addrs as the known servers for zone. Non-IPv4 addresses
// are dropped; an empty result leaves the cache untouched.
func (c *DelegationCache) Set(zone string, addrs []netip.Addr) {
	zone = dns.Fqdn(strings.ToLower(zone))
	kept := make([]netip.Addr, 0, len(addrs))
	for _, addr := range addrs {
		if addr.Is4() {
			kept = append(kept, addr)
		}
	}
	if len(kept) == 0 {
		return
	}
	c.mu.Lock()
	c.zones[zone] = kept
	c.mu.Unlock()
}

// Best returns the servers for the longest cached suffix of qname and
// the zone they belong to, or nil when no ancestor zone is cached.
func (c *DelegationCache) Best(qname string) (addrs []netip.Addr, zone string) {
	labels := dns.SplitDomainName(dns.Fqdn(strings.ToLower(qname)))
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := range labels {
		z := dns.Fqdn(strings.Join(labels[i:], "."))
		if cached, ok := c.zones[z]; ok && len(cached) > 0 {
			return append([]netip.Addr(nil), cached...), z
		}
	}
	return nil, ""
}

// Entries returns the number of zones with a cached delegation.
func (c *DelegationCache) Entries() (n int) {
	c.mu.RLock()
	n = len(c.zones)
	c.mu.RUnlock()
	return
}
