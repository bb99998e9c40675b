package hostlookup

import (
	"github.com/miekg/dns"

	"github.com/trinhphan275/hostlookup/cache"
)

// Session owns the state shared by every lookup in a run: the
// exact-answer cache, the delegation cache and the in-flight guard
// set. All three start empty and live until the session is dropped;
// the resolution engine is their sole mutator. Using a fresh Session
// per test isolates lookups completely.
type Session struct {
	Cache       Cacher
	Delegations *DelegationCache
	guards      guardSet
}

var DefaultSession = NewSession()

func NewSession() *Session {
	return &Session{
		Cache:       cache.New(),
		Delegations: NewDelegationCache(),
	}
}

func (s *Session) cacheGet(qname string, qtype uint16) (msg *dns.Msg) {
	if s.Cache != nil {
		msg = s.Cache.DnsGet(qname, qtype)
	}
	return
}

func (s *Session) cacheSet(msg *dns.Msg) (cached bool) {
	if s.Cache != nil && msg != nil && !msg.Zero && len(msg.Question) == 1 {
		s.Cache.DnsSet(msg)
		cached = true
	}
	return
}
