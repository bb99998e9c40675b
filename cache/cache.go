// Package cache provides a process-lifetime DNS response cache keyed
// by question name and type. Entries are never expired or evicted.
package cache

import (
	"sync/atomic"

	"github.com/miekg/dns"
)

const MaxQtype = 260

type Cache struct {
	count atomic.Uint64
	hits  atomic.Uint64
	cq    []*cacheQtype
}

func New() *Cache {
	cq := make([]*cacheQtype, MaxQtype+1)
	for i := range cq {
		cq[i] = newCacheQtype()
	}
	return &Cache{cq: cq}
}

// HitRatio returns the hit ratio as a percentage.
func (cache *Cache) HitRatio() (n float64) {
	if cache != nil {
		if count := cache.count.Load(); count > 0 {
			n = float64(cache.hits.Load()*100) / float64(count)
		}
	}
	return
}

// Entries returns the number of entries in the cache.
func (cache *Cache) Entries() (n int) {
	if cache != nil {
		for _, cq := range cache.cq {
			n += cq.entries()
		}
	}
	return
}

// DnsSet stores a private copy of msg under its question. The copy
// has dns.Msg.Zero set so callers can tell cached responses apart.
func (cache *Cache) DnsSet(msg *dns.Msg) {
	if cache != nil && msg != nil && !msg.Zero && len(msg.Question) == 1 {
		if qtype := msg.Question[0].Qtype; qtype <= MaxQtype {
			msg = msg.Copy()
			msg.Zero = true
			cache.cq[qtype].set(msg)
		}
	}
}

// DnsGet returns the cached response for qname/qtype, or nil. The
// returned message is shared; copy it before mutating.
func (cache *Cache) DnsGet(qname string, qtype uint16) (msg *dns.Msg) {
	if cache != nil {
		cache.count.Add(1)
		if qtype <= MaxQtype {
			if msg = cache.cq[qtype].get(qname); msg != nil {
				cache.hits.Add(1)
			}
		}
	}
	return
}

func (cache *Cache) Clear() {
	if cache != nil {
		for _, cq := range cache.cq {
			cq.clear()
		}
	}
}
