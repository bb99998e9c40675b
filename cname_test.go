package hostlookup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/miekg/dns"
)

func TestLookupFollowsCnameChain(t *testing.T) {
	t.Parallel()
	f := newFakeNet()
	f.addServer(testRootIP, func(req *dns.Msg) *dns.Msg {
		return referral(req, "web.test.", []string{"ns1.web.test."}, aRecord("ns1.web.test.", testAuthIP))
	})
	_, auth := f.addServer(testAuthIP, func(req *dns.Msg) *dns.Msg {
		switch name, _ := question(req); name {
		case "www.web.test.":
			return answer(req, cnameRecord("www.web.test.", "cdn.web.test."))
		case "cdn.web.test.":
			return answer(req, aRecord("cdn.web.test.", "203.0.113.20"))
		}
		return nxdomain(req, "web.test.")
	})
	r := newTestService(f, testRootIP)
	session := NewSession()

	msg, chain, err := r.Lookup(context.Background(), "www.web.test", dns.TypeA, nil, session)
	if err != nil {
		t.Fatal(err)
	}
	if len(chain) != 1 {
		t.Fatalf("chain length got=%d want=1", len(chain))
	}
	if x := chain[0].Target; x != "cdn.web.test." {
		t.Errorf("chain target got=%s", x)
	}
	if x := msg.Question[0].Name; x != "www.web.test." {
		t.Errorf("final question got=%s want=www.web.test.", x)
	}
	if !hasRRType(msg.Answer, dns.TypeCNAME) || !hasRRType(msg.Answer, dns.TypeA) {
		t.Fatalf("final answer must carry the chain and the A records, got %v", msg.Answer)
	}
	if x := auth.queries.Load(); x != 2 {
		t.Errorf("auth queries got=%d want=2", x)
	}

	// The synthesized result is cached under the original question.
	if cached := session.cacheGet("www.web.test.", dns.TypeA); cached == nil {
		t.Error("expected the synthesized chain response to be cached")
	} else if !hasRRType(cached.Answer, dns.TypeA) {
		t.Errorf("cached chain response lost its records: %v", cached.Answer)
	}
}

func TestLookupCnameCycleTerminates(t *testing.T) {
	t.Parallel()
	f := newFakeNet()
	f.addServer(testRootIP, func(req *dns.Msg) *dns.Msg {
		return referral(req, "cycle.test.", []string{"ns1.cycle.test."}, aRecord("ns1.cycle.test.", testAuthIP))
	})
	_, auth := f.addServer(testAuthIP, func(req *dns.Msg) *dns.Msg {
		switch name, _ := question(req); name {
		case "a.cycle.test.":
			return answer(req, cnameRecord("a.cycle.test.", "b.cycle.test."))
		case "b.cycle.test.":
			return answer(req, cnameRecord("b.cycle.test.", "a.cycle.test."))
		}
		return nxdomain(req, "cycle.test.")
	})
	r := newTestService(f, testRootIP)
	session := NewSession()

	done := make(chan struct{})
	var err error
	var chain []*dns.CNAME
	go func() {
		defer close(done)
		_, chain, err = r.Lookup(context.Background(), "a.cycle.test", dns.TypeA, nil, session)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("cname cycle did not terminate")
	}
	if !errors.Is(err, ErrCNAMEChainTooDeep) {
		t.Fatalf("err got=%v want=%v", err, ErrCNAMEChainTooDeep)
	}
	if len(chain) != maxRestarts {
		t.Errorf("chain length got=%d want=%d", len(chain), maxRestarts)
	}
	// The cycle is served from the exact cache after one query per name.
	if x := auth.queries.Load(); x != 2 {
		t.Errorf("auth queries got=%d want=2", x)
	}
}

func TestLookupCnameToMissingNameIsNegative(t *testing.T) {
	t.Parallel()
	f := newFakeNet()
	f.addServer(testRootIP, func(req *dns.Msg) *dns.Msg {
		return referral(req, "cn.test.", []string{"ns1.cn.test."}, aRecord("ns1.cn.test.", testAuthIP))
	})
	f.addServer(testAuthIP, func(req *dns.Msg) *dns.Msg {
		switch name, _ := question(req); name {
		case "www.cn.test.":
			return answer(req, cnameRecord("www.cn.test.", "missing.cn.test."))
		}
		return nxdomain(req, "cn.test.")
	})
	r := newTestService(f, testRootIP)
	session := NewSession()

	msg, chain, err := r.Lookup(context.Background(), "www.cn.test", dns.TypeA, nil, session)
	if err != nil {
		t.Fatal(err)
	}
	if len(chain) != 1 {
		t.Errorf("chain length got=%d want=1", len(chain))
	}
	if x := msg.Rcode; x != dns.RcodeNameError {
		t.Errorf("rcode got=%s want=NXDOMAIN", dns.RcodeToString[x])
	}
}

func TestLookupWithoutCnameReturnsEngineResult(t *testing.T) {
	t.Parallel()
	f := newFakeNet()
	f.addServer(testRootIP, func(req *dns.Msg) *dns.Msg {
		return referral(req, "plain.test.", []string{"ns1.plain.test."}, aRecord("ns1.plain.test.", testAuthIP))
	})
	f.addServer(testAuthIP, func(req *dns.Msg) *dns.Msg {
		return answer(req, aRecord("plain.test.", "203.0.113.21"))
	})
	r := newTestService(f, testRootIP)
	session := NewSession()

	msg, chain, err := r.Lookup(context.Background(), "plain.test", dns.TypeA, nil, session)
	if err != nil {
		t.Fatal(err)
	}
	if len(chain) != 0 {
		t.Errorf("unexpected chain %v", chain)
	}
	if !hasRRType(msg.Answer, dns.TypeA) {
		t.Fatalf("expected an A answer, got %v", msg.Answer)
	}
}
