package hostlookup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/miekg/dns"
)

const maxDepth = 16     // max referral/sub-resolution recursion depth
const maxQueries = 1024 // max queries to make for a single top-level lookup
const maxNSAddrs = 3    // unglued NS resolution stops once this many addresses are known

var ErrResolutionTooDeep = errors.New("resolution too deep")
var ErrTooManyQueries = errors.New("too many queries, possible loop")
var ErrServersExhausted = errors.New("no usable response from any server")

type query struct {
	*Service
	ctx     context.Context
	session *Session
	writer  io.Writer
	start   time.Time
	depth   int
	queries int
}

func (q *query) dive() (err error) {
	q.depth++
	if q.depth > maxDepth {
		err = ErrResolutionTooDeep
	}
	return
}

func (q *query) surface() {
	q.depth--
}

// resolve starts at the closest cached delegation for qname, falling
// back to the roots when no ancestor zone is cached.
func (q *query) resolve(qname string, qtype uint16) (*dns.Msg, netip.Addr, error) {
	servers, zone := q.session.Delegations.Best(qname)
	if len(servers) == 0 {
		servers, zone = q.roots(), "."
	}
	q.logf("RESOLVE %s %q starting at %q (%d servers)", dns.Type(qtype), qname, zone, len(servers))
	return q.resolveFrom(qname, qtype, servers)
}

// resolveFrom tries each server exactly once, in the order supplied.
// A positive or negative answer is terminal; a referral with usable
// addresses is followed immediately, abandoning the remaining servers
// at the current level. Per-server failures never propagate, they
// just advance the loop.
func (q *query) resolveFrom(qname string, qtype uint16, servers []netip.Addr) (*dns.Msg, netip.Addr, error) {
	if err := q.dive(); err != nil {
		return nil, netip.Addr{}, err
	}
	defer q.surface()

	if msg := q.session.cacheGet(qname, qtype); msg != nil {
		q.logf("cache hit %s %q", dns.Type(qtype), qname)
		return msg, netip.Addr{}, nil
	}

	m := new(dns.Msg)
	m.SetQuestion(qname, qtype)
	m.RecursionDesired = false
	setEDNS(m)

	for _, server := range servers {
		if !server.Is4() {
			continue
		}
		resp, err := q.exchange(m, server)
		if err != nil {
			if errors.Is(err, ErrTooManyQueries) {
				return nil, netip.Addr{}, err
			}
			q.logf("server %s: %s", server, failureKind(err))
			continue
		}

		if len(resp.Answer) > 0 {
			q.session.cacheSet(resp)
			return resp, server, nil
		}
		if resp.Rcode != dns.RcodeSuccess {
			// NXDOMAIN and friends come from a server authoritative
			// for the zone, so the remaining servers are not tried.
			q.session.cacheSet(resp)
			q.logf("negative %s %s %q", dns.RcodeToString[resp.Rcode], dns.Type(qtype), qname)
			return resp, server, nil
		}
		if hasSOA(resp.Ns) {
			// NODATA: the name exists but has no records of this type.
			q.session.cacheSet(resp)
			q.logf("negative NODATA %s %q", dns.Type(qtype), qname)
			return resp, server, nil
		}

		zone, nsNames := extractDelegation(resp)
		if len(nsNames) == 0 {
			if len(resp.Ns) > 0 {
				// Authority without NS or SOA: nothing left to follow.
				q.session.cacheSet(resp)
				return resp, server, nil
			}
			q.logf("empty response from %s for %s %q", server, dns.Type(qtype), qname)
			continue
		}

		addrs, unglued := glueAddresses(resp, nsNames)
		if len(addrs) < maxNSAddrs && len(unglued) > 0 {
			addrs = q.resolveNSAddrs(unglued, addrs)
		}
		if len(addrs) == 0 {
			q.logf("referral to %q has no resolvable servers", zone)
			continue
		}
		q.session.Delegations.Set(zone, addrs)
		q.logf("referral %q => %q (%d servers)", qname, zone, len(addrs))
		return q.resolveFrom(qname, qtype, addrs)
	}
	return nil, netip.Addr{}, ErrServersExhausted
}

// resolveNSAddrs resolves unglued NS names for their A records from
// the roots, stopping once maxNSAddrs addresses are known. A name
// already being resolved on this chain is skipped to break
// self-referential delegations.
func (q *query) resolveNSAddrs(nsNames []string, addrs []netip.Addr) []netip.Addr {
	for _, host := range nsNames {
		if len(addrs) >= maxNSAddrs {
			break
		}
		host = dns.Fqdn(strings.ToLower(host))
		if !q.session.guards.enter(host) {
			q.logf("already resolving %q, skipping", host)
			continue
		}
		msg, _, err := q.resolveFrom(host, dns.TypeA, q.roots())
		q.session.guards.leave(host)
		if err != nil {
			q.logf("ns %q: %v", host, err)
			continue
		}
		for _, rr := range msg.Answer {
			if a, ok := rr.(*dns.A); ok {
				if addr := ipToAddr(a.A); addr.Is4() {
					addrs = append(addrs, addr)
				}
			}
		}
	}
	q.logf("resolveNS total addrs=%d", len(addrs))
	return dedupAddrs(addrs)
}

func (q *query) exchange(m *dns.Msg, server netip.Addr) (resp *dns.Msg, err error) {
	q.queries++
	if q.queries > maxQueries {
		return nil, ErrTooManyQueries
	}
	var dnsConn *dns.Conn
	if dnsConn, err = q.dialDNSConn(server); err == nil {
		defer dnsConn.Close()
		deadline := q.deadline(q.ctx)
		if !deadline.IsZero() {
			_ = dnsConn.SetDeadline(deadline)
		}
		question := m.Question[0]
		q.logQuerySend(server, question)
		start := time.Now()
		if err = dnsConn.WriteMsg(m); err == nil {
			if resp, err = dnsConn.ReadMsg(); err == nil {
				q.logQueryReceive(server, question, resp, time.Since(start))
			}
		}
	}
	return
}

func (q *query) dialDNSConn(server netip.Addr) (dnsConn *dns.Conn, err error) {
	var rawConn net.Conn
	addrPort := q.addrPort(server)
	if rawConn, err = q.DialContext(q.ctx, "udp4", addrPort.String()); err == nil {
		dnsConn = &dns.Conn{Conn: rawConn, UDPSize: dns.DefaultMsgSize}
	} else {
		q.logf("DIAL FAIL udp4: @%s err=%v", server.String(), err)
	}
	return
}

func (q *query) logf(format string, args ...any) {
	if q.writer != nil {
		_, _ = fmt.Fprintf(q.writer, "\n[%6dms]%*s", time.Since(q.start).Milliseconds(), 1+q.depth*2, "")
		_, _ = fmt.Fprintf(q.writer, format, args...)
	}
}

func (q *query) logQuerySend(addr netip.Addr, question dns.Question) {
	q.logf("SENDING  udp4: @%s %s %q", addr.String(), dns.Type(question.Qtype), question.Name)
}

func (q *query) logQueryReceive(addr netip.Addr, question dns.Question, resp *dns.Msg, dur time.Duration) {
	if resp != nil {
		var flag string
		if resp.Authoritative {
			flag = " AUTH"
		}
		q.logf("RECEIVED udp4: @%s %s %q => %s [%s] (%v, %d bytes%s)",
			addr.String(),
			dns.Type(question.Qtype),
			question.Name,
			dns.RcodeToString[resp.Rcode],
			formatCounts(resp),
			dur.Round(time.Millisecond),
			resp.Len(),
			flag,
		)
	}
}
