// Command hostlookup performs iterative DNS resolution for one or
// more names and prints host(1)-style result lines for their A, AAAA
// and MX records.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/miekg/dns"

	"github.com/trinhphan275/hostlookup"
)

type options struct {
	Verbose    bool `short:"v" long:"verbose" description:"increase output verbosity"`
	Trace      bool `long:"trace" description:"write a resolution trace to stderr"`
	Positional struct {
		Names []string `positional-arg-name:"name" required:"yes" description:"DNS name(s) to look up"`
	} `positional-args:"yes"`
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		// go-flags has already reported the problem; usage errors and
		// resolution failures alike exit zero.
		return
	}
	r := hostlookup.New()
	session := hostlookup.NewSession()
	var tracew io.Writer
	if opts.Trace {
		tracew = os.Stderr
	}
	ctx := context.Background()
	start := time.Now()
	for _, name := range opts.Positional.Names {
		domainStart := time.Now()
		printResults(ctx, r, session, tracew, name)
		if opts.Verbose {
			fmt.Printf("[Time for %s: %.3fs]\n", name, time.Since(domainStart).Seconds())
		}
	}
	if opts.Verbose {
		fmt.Printf("[Total execution time: %.3fs]\n", time.Since(start).Seconds())
	}
}

// printResults looks up A, AAAA and MX for name in that order. A
// record type that cannot be resolved simply produces no output.
func printResults(ctx context.Context, r *hostlookup.Service, session *hostlookup.Session, tracew io.Writer, name string) {
	if msg, _, err := r.Lookup(ctx, name, dns.TypeA, tracew, session); err == nil {
		alias := display(name)
		for _, rr := range msg.Answer {
			if cname, ok := rr.(*dns.CNAME); ok {
				fmt.Printf("%s is an alias for %s\n", alias, display(cname.Target))
				alias = display(cname.Target)
			}
		}
		for _, rr := range msg.Answer {
			if a, ok := rr.(*dns.A); ok {
				fmt.Printf("%s has address %s\n", display(a.Hdr.Name), a.A)
			}
		}
	}
	if msg, _, err := r.Lookup(ctx, name, dns.TypeAAAA, tracew, session); err == nil {
		for _, rr := range msg.Answer {
			if aaaa, ok := rr.(*dns.AAAA); ok {
				fmt.Printf("%s has IPv6 address %s\n", display(aaaa.Hdr.Name), aaaa.AAAA)
			}
		}
	}
	if msg, _, err := r.Lookup(ctx, name, dns.TypeMX, tracew, session); err == nil {
		for _, rr := range msg.Answer {
			if mx, ok := rr.(*dns.MX); ok {
				fmt.Printf("%s mail is handled by %d %s\n", display(mx.Hdr.Name), mx.Preference, mx.Mx)
			}
		}
	}
}

// display strips the trailing root label for host-style output.
func display(name string) string {
	if name != "." {
		name = strings.TrimSuffix(name, ".")
	}
	return name
}
