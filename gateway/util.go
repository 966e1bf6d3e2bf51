package gateway

import (
	"net"
	"net/http"
	"net/textproto"
	"strings"

	"golang.org/x/net/http/httpguts"
)

const toLower = 'a' - 'A'

// parseHeaderList splits a comma-separated header list into canonicalized
// header names without allocating per entry.
func parseHeaderList(headerList string) []string {
	var (
		t     = 0
		l     = len(headerList)
		h     = make([]byte, 0, l)
		upper = true
	)

	for i := 0; i < l; i++ {
		if headerList[i] == ',' {
			t++
		}
	}

	headers := make([]string, 0, t)

	for i := 0; i < l; i++ {
		b := headerList[i]

		switch {
		case b >= 'a' && b <= 'z':
			if upper {
				h = append(h, b-toLower)
			} else {
				h = append(h, b)
			}

		case b >= 'A' && b <= 'Z':
			if !upper {
				h = append(h, b+toLower)
			} else {
				h = append(h, b)
			}

		case b == '-' || b == '_' || b == '.' || (b >= '0' && b <= '9'):
			h = append(h, b)
		}

		if b == ' ' || b == ',' || i == l-1 {
			if len(h) > 0 {
				headers = append(headers, string(h))
				h = h[:0]
				upper = true
			}
		} else {
			upper = b == '-' || b == '_'
		}
	}

	return headers
}

// removeConnectionHeaders removes hop-by-hop headers listed in the "Connection" header of h.
// See RFC 7230, section 6.1
func removeConnectionHeaders(h http.Header) {
	for _, f := range h["Connection"] {
		for _, sf := range strings.Split(f, ",") {
			if sf = textproto.TrimString(sf); sf != "" {
				h.Del(sf)
			}
		}
	}
}

func upgradeType(h http.Header) string {
	if !httpguts.HeaderValuesContainsToken(h["Connection"], "Upgrade") {
		return ""
	}

	return strings.ToLower(h.Get("Upgrade"))
}

// callerKey derives the per-client admission key: the first non-empty of the
// configured headers (taking the first element of comma-separated values),
// falling back to the remote address.
func callerKey(r *http.Request, headers []string) string {
	for _, name := range headers {
		v := r.Header.Get(name)
		if v == "" {
			continue
		}

		if i := strings.IndexByte(v, ','); i != -1 {
			v = v[:i]
		}

		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}
