package cache

import (
	"sync"

	"github.com/miekg/dns"
)

type cacheQtype struct {
	mu    sync.RWMutex
	cache map[string]*dns.Msg
}

func newCacheQtype() *cacheQtype {
	return &cacheQtype{cache: make(map[string]*dns.Msg)}
}

func (cq *cacheQtype) entries() (n int) {
	cq.mu.RLock()
	n = len(cq.cache)
	cq.mu.RUnlock()
	return
}

func (cq *cacheQtype) set(msg *dns.Msg) {
	qname := msg.Question[0].Name
	cq.mu.Lock()
	cq.cache[qname] = msg
	cq.mu.Unlock()
}

func (cq *cacheQtype) get(qname string) (msg *dns.Msg) {
	cq.mu.RLock()
	msg = cq.cache[qname]
	cq.mu.RUnlock()
	return
}

func (cq *cacheQtype) clear() {
	cq.mu.Lock()
	clear(cq.cache)
	cq.mu.Unlock()
}
