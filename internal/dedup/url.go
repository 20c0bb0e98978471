package dedup

import (
	"net/url"
	"strings"
)

// trackingParams are query parameters that identify campaigns, not content.
var trackingParams = map[string]struct{}{
	"gclid":    {},
	"fbclid":   {},
	"igshid":   {},
	"mc_cid":   {},
	"mc_eid":   {},
	"ref":      {},
	"ref_src":  {},
	"cmpid":    {},
	"spm":      {},
	"mkt_tok":  {},
	"referrer": {},
}

// CanonicalURL normalizes a URL for dedup comparison: lowercase scheme and
// host, default ports and fragments removed, tracking parameters stripped,
// remaining query sorted. An unparseable input canonicalizes to itself.
func CanonicalURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Scheme == "http" {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}
	u.Fragment = ""
	if u.Path == "" {
		u.Path = "/"
	}

	q := u.Query()
	for key := range q {
		lower := strings.ToLower(key)
		if _, tracked := trackingParams[lower]; tracked || strings.HasPrefix(lower, "utm_") {
			q.Del(key)
		}
	}
	u.RawQuery = q.Encode()

	return u.String()
}
