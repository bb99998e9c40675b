package hostlookup

import (
	"context"
	"net/netip"
	"sort"
	"sync"
	"time"
)

// OrderRoots sorts the root server list by current latency and drops
// servers that do not respond within cutoff. Call it before resolving
// starts; the list is never touched once lookups are under way.
func (r *Service) OrderRoots(ctx context.Context, cutoff time.Duration) {
	if _, ok := ctx.Deadline(); !ok {
		newctx, cancel := context.WithTimeout(ctx, cutoff*2)
		defer cancel()
		ctx = newctx
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var l []*rootRtt
	var wg sync.WaitGroup
	for _, addr := range r.rootServers {
		rt := &rootRtt{addr: addr}
		l = append(l, rt)
		wg.Add(1)
		go timeRoot(ctx, r, &wg, rt)
	}
	wg.Wait()
	sort.Slice(l, func(i, j int) bool { return l[i].rtt < l[j].rtt })
	var ordered []netip.Addr
	for _, rt := range l {
		if rt.rtt <= cutoff {
			ordered = append(ordered, rt.addr)
		}
	}
	if len(ordered) > 0 {
		r.rootServers = ordered
	}
}
