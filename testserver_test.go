package hostlookup

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/miekg/dns"
)

// fakeNet is a ContextDialer serving scripted DNS responses over
// net.Pipe, keyed by server address. A handler returning nil leaves
// the query unanswered so the client runs into its deadline.
type fakeNet struct {
	mu      sync.Mutex
	servers map[netip.Addr]*fakeServer
}

type fakeServer struct {
	handler func(*dns.Msg) *dns.Msg
	queries atomic.Int64
}

func newFakeNet() *fakeNet {
	return &fakeNet{servers: make(map[netip.Addr]*fakeServer)}
}

func (f *fakeNet) addServer(ip string, handler func(*dns.Msg) *dns.Msg) (netip.Addr, *fakeServer) {
	addr := netip.MustParseAddr(ip)
	srv := &fakeServer{handler: handler}
	f.mu.Lock()
	f.servers[addr] = srv
	f.mu.Unlock()
	return addr, srv
}

func (f *fakeNet) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	addrPort, err := netip.ParseAddrPort(address)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	srv := f.servers[addrPort.Addr()]
	f.mu.Unlock()
	if srv == nil {
		return nil, fmt.Errorf("dial %s %s: %w", network, address, syscall.ECONNREFUSED)
	}
	clientConn, serverConn := net.Pipe()
	go srv.serve(serverConn)
	return clientConn, nil
}

func (s *fakeServer) serve(conn net.Conn) {
	defer conn.Close()
	co := &dns.Conn{Conn: conn}
	req, err := co.ReadMsg()
	if err != nil {
		return
	}
	s.queries.Add(1)
	if resp := s.handler(req); resp != nil {
		_ = co.WriteMsg(resp)
		return
	}
	// Unresponsive server: hold the connection open until the client
	// gives up on its deadline.
	_, _ = conn.Read(make([]byte, 1))
}

// newTestService wires a Service to the fake network with a short
// timeout and the given scripted roots.
func newTestService(f *fakeNet, rootIPs ...string) *Service {
	r := New()
	r.ContextDialer = f
	r.Timeout = 250 * time.Millisecond
	var roots []netip.Addr
	for _, ip := range rootIPs {
		roots = append(roots, netip.MustParseAddr(ip))
	}
	r.SetRoots(roots)
	return r
}

func question(req *dns.Msg) (string, uint16) {
	q := req.Question[0]
	return q.Name, q.Qtype
}

func rrHeader(name string, rrtype uint16) dns.RR_Header {
	return dns.RR_Header{Name: dns.Fqdn(name), Rrtype: rrtype, Class: dns.ClassINET, Ttl: 300}
}

func aRecord(name, ip string) *dns.A {
	return &dns.A{Hdr: rrHeader(name, dns.TypeA), A: net.ParseIP(ip).To4()}
}

func cnameRecord(name, target string) *dns.CNAME {
	return &dns.CNAME{Hdr: rrHeader(name, dns.TypeCNAME), Target: dns.Fqdn(target)}
}

func nsRecord(zone, target string) *dns.NS {
	return &dns.NS{Hdr: rrHeader(zone, dns.TypeNS), Ns: dns.Fqdn(target)}
}

func soaRecord(zone string) *dns.SOA {
	return &dns.SOA{
		Hdr:    rrHeader(zone, dns.TypeSOA),
		Ns:     dns.Fqdn("ns1." + zone),
		Mbox:   dns.Fqdn("hostmaster." + zone),
		Serial: 1,
		Minttl: 900,
	}
}

func answer(req *dns.Msg, rrs ...dns.RR) *dns.Msg {
	resp := new(dns.Msg)
	resp.SetReply(req)
	resp.Authoritative = true
	resp.Answer = append(resp.Answer, rrs...)
	return resp
}

func referral(req *dns.Msg, zone string, nsTargets []string, glue ...dns.RR) *dns.Msg {
	resp := new(dns.Msg)
	resp.SetReply(req)
	for _, target := range nsTargets {
		resp.Ns = append(resp.Ns, nsRecord(zone, target))
	}
	resp.Extra = append(resp.Extra, glue...)
	return resp
}

func nxdomain(req *dns.Msg, zone string) *dns.Msg {
	resp := new(dns.Msg)
	resp.SetReply(req)
	resp.Authoritative = true
	resp.Rcode = dns.RcodeNameError
	resp.Ns = append(resp.Ns, soaRecord(zone))
	return resp
}

func nodata(req *dns.Msg, zone string) *dns.Msg {
	resp := new(dns.Msg)
	resp.SetReply(req)
	resp.Authoritative = true
	resp.Ns = append(resp.Ns, soaRecord(zone))
	return resp
}
