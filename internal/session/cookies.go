package session

import (
	"net/http"
	"sort"
	"strings"
)

// Cookies is a parsed Cookie header keyed by cookie name. When a name repeats
// the first value wins, as browsers send the most specific path first.
type Cookies map[string]string

// ParseCookies parses a raw Cookie header. Malformed pairs are skipped.
func ParseCookies(header string) Cookies {
	out := Cookies{}
	if strings.TrimSpace(header) == "" {
		return out
	}
	r := http.Request{Header: http.Header{"Cookie": {header}}}
	for _, c := range r.Cookies() {
		if _, seen := out[c.Name]; seen {
			continue
		}
		out[c.Name] = c.Value
	}
	return out
}

func (c Cookies) Get(name string) (string, bool) {
	v, ok := c[name]
	return v, ok && v != ""
}

// Header renders the cookies back into a Cookie header value in name order.
func (c Cookies) Header() string {
	names := make([]string, 0, len(c))
	for n := range c {
		names = append(names, n)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, n := range names {
		parts = append(parts, (&http.Cookie{Name: n, Value: c[n]}).String())
	}
	return strings.Join(parts, "; ")
}
