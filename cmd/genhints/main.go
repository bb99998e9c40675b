// Command genhints regenerates the IPv4 root hints file from the
// authoritative named.root zone published by InterNIC.
package main

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"os"
	"sort"
	"text/template"

	"github.com/miekg/dns"
)

//go:embed roothints.go.tmpl
var roothintsgotmpl string

type roots struct {
	Roots4 []netip.Addr
}

func main() {
	resp, err := http.Get("https://www.internic.net/domain/named.root")
	if err == nil {
		defer resp.Body.Close()
		var body []byte
		if body, err = io.ReadAll(resp.Body); err == nil {
			var root4 []netip.Addr
			zp := dns.NewZoneParser(bytes.NewReader(body), "", "")
			for rr, ok := zp.Next(); ok; rr, ok = zp.Next() {
				if a, isA := rr.(*dns.A); isA {
					if ip, valid := netip.AddrFromSlice(a.A); valid {
						if ip = ip.Unmap(); ip.Is4() {
							root4 = append(root4, ip)
						}
					}
				}
			}
			sort.Slice(root4, func(i, j int) bool { return root4[i].Less(root4[j]) })
			if err = zp.Err(); err == nil {
				of := os.Stdout
				if len(os.Args) > 1 {
					if of, err = os.Create(os.Args[1]); err == nil {
						defer of.Close()
					}
				}
				if err == nil {
					tmpl := template.Must(template.New("roothints").Parse(roothintsgotmpl))
					err = tmpl.Execute(of, roots{Roots4: root4})
				}
			}
		}
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
