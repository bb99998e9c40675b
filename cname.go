package hostlookup

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/miekg/dns"
)

const maxRestarts = 10 // CNAME restarts per top-level lookup

var ErrCNAMEChainTooDeep = errors.New("cname chain too deep")

// Lookup resolves qname/qtype, restarting resolution whenever the
// answer turns out to be a CNAME for the current name rather than the
// requested type. Each restart begins from the best known delegation,
// exactly like a fresh lookup. It returns the final response rewritten
// to carry the original question with the traversed chain ahead of the
// answers, together with that chain in traversal order.
func (r *Service) Lookup(ctx context.Context, qname string, qtype uint16, logw io.Writer, session *Session) (msg *dns.Msg, chain []*dns.CNAME, err error) {
	qry := r.newQuery(ctx, logw, session)
	origin := dns.Fqdn(strings.ToLower(qname))
	name := origin
	for restarts := 0; restarts < maxRestarts; restarts++ {
		var resp *dns.Msg
		if resp, _, err = qry.resolve(name, qtype); err != nil {
			return nil, chain, err
		}
		if hasRRType(resp.Answer, qtype) {
			msg = resp
			if len(chain) > 0 {
				msg = synthesizeChain(origin, qtype, resp, chain)
				qry.session.cacheSet(msg)
			}
			return msg, chain, nil
		}
		if cname := cnameFor(resp, name); cname != nil {
			target := dns.Fqdn(strings.ToLower(cname.Target))
			qry.logf("CNAME %q => %q", name, target)
			chain = append(chain, cname)
			name = target
			continue
		}
		// Negative or unrelated answer: terminal as-is.
		return resp, chain, nil
	}
	qry.logf("cname chain exceeded %d restarts for %q", maxRestarts, origin)
	return nil, chain, ErrCNAMEChainTooDeep
}

// synthesizeChain rebuilds the final response under the original
// question with the traversed CNAME records ahead of the answers.
func synthesizeChain(origin string, qtype uint16, resp *dns.Msg, chain []*dns.CNAME) *dns.Msg {
	answers := make([]dns.RR, 0, len(chain)+len(resp.Answer))
	for _, cname := range chain {
		answers = append(answers, cname)
	}
	answers = append(answers, resp.Answer...)
	return newResponseMsg(origin, qtype, resp.Rcode, answers, resp.Ns, nil)
}
