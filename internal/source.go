package fleettop

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// NormalizeBaseURL turns a configured agent address into the base URL the
// fetcher appends DataPath to.
//
//	192.0.2.10            -> http://192.0.2.10:19999
//	https://node1.lan/    -> https://node1.lan
//	http://node2:8080/nd/ -> http://node2:8080/nd
//
// A missing scheme defaults to http. A missing port defaults to the netdata
// port, unless the scheme was given explicitly.
func NormalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("url is required")
	}

	explicitScheme := strings.Contains(raw, "://")
	if !explicitScheme {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid url %q: scheme must be http or https", raw)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("invalid url %q: host is required", raw)
	}
	if u.Port() == "" && !explicitScheme {
		u.Host = net.JoinHostPort(u.Hostname(), DefaultAgentPort)
	}

	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}
