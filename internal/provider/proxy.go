package provider

import (
	"net/url"
	"strings"
)

// Proxies that take the target URL appended to their path.
var passthroughHosts = map[string]bool{
	"r.jina.ai":                   true,
	"cors-anywhere.herokuapp.com": true,
	"thingproxy.freeboard.io":     true,
}

type proxyRule struct {
	match func(proxy string) bool
	apply func(proxy, target string) string
}

// proxyRules are tried in order; the first match rewrites the URL.
var proxyRules = []proxyRule{
	{
		match: func(p string) bool { return strings.Contains(p, "{url}") },
		apply: func(p, t string) string { return strings.ReplaceAll(p, "{url}", url.QueryEscape(t)) },
	},
	{
		match: func(p string) bool { return strings.HasSuffix(p, "url=") },
		apply: func(p, t string) string { return p + url.QueryEscape(t) },
	},
	{
		match: func(p string) bool { return strings.HasSuffix(p, "?") || strings.HasSuffix(p, "&") },
		apply: func(p, t string) string { return p + url.QueryEscape(t) },
	},
	{
		match: func(p string) bool {
			u, err := url.Parse(p)
			return err == nil && passthroughHosts[strings.ToLower(u.Hostname())]
		},
		apply: func(p, t string) string { return strings.TrimRight(p, "/") + "/" + t },
	},
	{
		match: func(p string) bool {
			u, err := url.Parse(p)
			return err == nil && u.Scheme != "" && u.Host != "" &&
				(u.Path == "" || u.Path == "/") && u.RawQuery == "" && u.Fragment == ""
		},
		apply: func(p, t string) string {
			u, _ := url.Parse(p)
			return u.Scheme + "://" + u.Host + "/" + t
		},
	},
}

// ProxyURL rewrites target to travel through the CORS proxy. An empty
// proxy leaves target untouched; a proxy no rule recognizes is used as a
// plain prefix.
func ProxyURL(proxy, target string) string {
	proxy = strings.TrimSpace(proxy)
	if proxy == "" {
		return target
	}
	for _, r := range proxyRules {
		if r.match(proxy) {
			return r.apply(proxy, target)
		}
	}
	return proxy + target
}
