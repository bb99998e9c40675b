// Package hostlookup implements an iterative DNS resolver that walks
// delegations from the root servers down to an authoritative answer,
// using github.com/miekg/dns for wire format and transport.
package hostlookup

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"
	"golang.org/x/net/proxy"
)

//go:generate go run ./cmd/genhints roothints.gen.go

type Service struct {
	proxy.ContextDialer
	Timeout     time.Duration // per-server query bound, each server is tried exactly once
	DNSPort     uint16
	mu          sync.RWMutex // protects following
	rootServers []netip.Addr
}

var _ Resolver = &Service{}

// New returns a resolver seeded with the IANA IPv4 root servers.
func New() (r *Service) {
	return &Service{
		ContextDialer: &net.Dialer{},
		Timeout:       3 * time.Second,
		DNSPort:       53,
		rootServers:   append([]netip.Addr(nil), Roots4...),
	}
}

// Resolve performs iterative resolution for qname/qtype, starting from
// the closest cached delegation (or the roots) and following referrals
// down to a terminal answer. A nil session uses DefaultSession.
//
// Resolve returns the response exactly as the final server sent it;
// use Lookup if CNAME answers should be chased.
func (r *Service) Resolve(ctx context.Context, qname string, qtype uint16, logw io.Writer, session *Session) (msg *dns.Msg, srv netip.Addr, err error) {
	qry := r.newQuery(ctx, logw, session)
	return qry.resolve(dns.Fqdn(strings.ToLower(qname)), qtype)
}

// DnsResolve implements the Resolver interface using DefaultSession.
func (r *Service) DnsResolve(ctx context.Context, qname string, qtype uint16) (msg *dns.Msg, srv netip.Addr, err error) {
	return r.Resolve(ctx, qname, qtype, nil, DefaultSession)
}

func (r *Service) newQuery(ctx context.Context, logw io.Writer, session *Session) *query {
	if session == nil {
		session = DefaultSession
	}
	return &query{
		Service: r,
		ctx:     ctx,
		session: session,
		writer:  logw,
		start:   time.Now(),
	}
}

// SetRoots replaces the root server list, e.g. after loading an
// alternate hints file. Non-IPv4 addresses are dropped.
func (r *Service) SetRoots(addrs []netip.Addr) {
	var kept []netip.Addr
	for _, addr := range addrs {
		if addr.Is4() {
			kept = append(kept, addr)
		}
	}
	r.mu.Lock()
	r.rootServers = kept
	r.mu.Unlock()
}

func (r *Service) roots() (addrs []netip.Addr) {
	r.mu.RLock()
	addrs = append(addrs, r.rootServers...)
	r.mu.RUnlock()
	return
}

func (r *Service) addrPort(addr netip.Addr) netip.AddrPort {
	return netip.AddrPortFrom(addr, r.DNSPort)
}

func (r *Service) deadline(ctx context.Context) time.Time {
	var deadline time.Time
	if ctx != nil {
		if d, ok := ctx.Deadline(); ok {
			deadline = d
		}
	}
	if r.Timeout > 0 {
		limit := time.Now().Add(r.Timeout)
		if deadline.IsZero() || limit.Before(deadline) {
			deadline = limit
		}
	}
	return deadline
}

func setEDNS(m *dns.Msg) {
	opt := &dns.OPT{Hdr: dns.RR_Header{Name: ".", Rrtype: dns.TypeOPT}}
	opt.SetUDPSize(1232)
	m.Extra = append(m.Extra, opt)
}

func hasRRType(rrs []dns.RR, t uint16) bool {
	for _, rr := range rrs {
		if rr.Header().Rrtype == t {
			return true
		}
	}
	return false
}

func hasSOA(rrs []dns.RR) bool {
	for _, rr := range rrs {
		if _, ok := rr.(*dns.SOA); ok {
			return true
		}
	}
	return false
}

// extractDelegation returns the zone being delegated and the NS target
// names from the authority section, in the order they were sent.
func extractDelegation(m *dns.Msg) (zone string, nsNames []string) {
	for _, rr := range m.Ns {
		if ns, ok := rr.(*dns.NS); ok {
			zone = strings.ToLower(ns.Hdr.Name)
			nsNames = append(nsNames, dns.Fqdn(strings.ToLower(ns.Ns)))
		}
	}
	return
}

// glueAddresses collects IPv4 glue from the additional section for the
// referred NS names and reports which names were left unglued.
func glueAddresses(m *dns.Msg, nsNames []string) (addrs []netip.Addr, unglued []string) {
	need := make(map[string]bool, len(nsNames))
	for _, name := range nsNames {
		need[name] = false
	}
	for _, rr := range m.Extra {
		if a, ok := rr.(*dns.A); ok {
			name := dns.Fqdn(strings.ToLower(a.Hdr.Name))
			if _, want := need[name]; want {
				if addr := ipToAddr(a.A); addr.Is4() {
					addrs = append(addrs, addr)
					need[name] = true
				}
			}
		}
	}
	for _, name := range nsNames {
		if !need[name] {
			unglued = append(unglued, name)
		}
	}
	return dedupAddrs(addrs), unglued
}

// cnameFor returns the CNAME record owned by owner, or nil.
func cnameFor(resp *dns.Msg, owner string) *dns.CNAME {
	for _, rr := range resp.Answer {
		if cname, ok := rr.(*dns.CNAME); ok && strings.EqualFold(cname.Hdr.Name, owner) {
			return cname
		}
	}
	return nil
}

func dedupAddrs(addrs []netip.Addr) []netip.Addr {
	seen := map[netip.Addr]struct{}{}
	var out []netip.Addr
	for _, addr := range addrs {
		if _, ok := seen[addr]; !ok {
			seen[addr] = struct{}{}
			out = append(out, addr)
		}
	}
	return out
}

func newResponseMsg(qname string, qtype uint16, rcode int, answer, authority, extra []dns.RR) *dns.Msg {
	msg := new(dns.Msg)
	msg.SetQuestion(qname, qtype)
	msg.Rcode = rcode
	if len(answer) > 0 {
		msg.Answer = append(msg.Answer, answer...)
	}
	if len(authority) > 0 {
		msg.Ns = append(msg.Ns, authority...)
	}
	if len(extra) > 0 {
		msg.Extra = append(msg.Extra, extra...)
	}
	return msg
}

func ipToAddr(ip net.IP) (addr netip.Addr) {
	if ip != nil {
		if v4 := ip.To4(); v4 != nil {
			addr = netip.AddrFrom4([4]byte(v4))
		} else if v6 := ip.To16(); v6 != nil {
			addr = netip.AddrFrom16([16]byte(v6))
		}
	}
	return
}

func formatCounts(msg *dns.Msg) string {
	return fmt.Sprintf("%d+%d+%d A/N/E", len(msg.Answer), len(msg.Ns), len(msg.Extra))
}
