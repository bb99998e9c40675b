package hostlookup

import (
	"context"
	"net/netip"

	"github.com/miekg/dns"
)

// Resolver performs iterative DNS resolution.
type Resolver interface {
	DnsResolve(ctx context.Context, qname string, qtype uint16) (msg *dns.Msg, srv netip.Addr, err error)
}

// Cacher provides exact-answer caching for terminal DNS responses.
type Cacher interface {
	// DnsSet stores msg for the supplied question. Implementations may
	// keep a private copy, but the cached instance must have
	// dns.Msg.Zero set to true before it is returned by DnsGet.
	DnsSet(msg *dns.Msg)

	// DnsGet returns the cached dns.Msg for the given qname and qtype,
	// or nil if no entry exists. The returned message MUST keep
	// dns.Msg.Zero set to true to signal it originated from cache, and
	// callers MUST treat it as immutable, copying it before applying
	// any mutations.
	DnsGet(qname string, qtype uint16) *dns.Msg
}
