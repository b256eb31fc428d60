package service

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizeResourceURI canonicalizes an RFC 8707 resource indicator so that
// audience binding and matching compare like with like. Scheme and host are
// lowercased, a default port (80 for http, 443 for https) is dropped, and a
// trailing slash is stripped. Path case is preserved: paths are
// case-sensitive per RFC 3986.
func NormalizeResourceURI(resource string) (string, error) {
	u, err := url.Parse(resource)
	if err != nil {
		return "", fmt.Errorf("parse resource uri: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("resource uri %q must be absolute", resource)
	}

	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	if port := u.Port(); port != "" && !isDefaultPort(scheme, port) {
		host += ":" + port
	}

	path := strings.TrimSuffix(u.Path, "/")

	return scheme + "://" + host + path, nil
}

func isDefaultPort(scheme, port string) bool {
	return (scheme == "http" && port == "80") || (scheme == "https" && port == "443")
}

// AudienceMatches reports whether a request for resource is satisfied by a
// token bound to audience. Both sides must already be normalized. A match
// is either exact or a path-prefix extension of the audience, with the
// prefix ending on a path-segment boundary: a token for
// https://api.example.com/mcp covers https://api.example.com/mcp/tools but
// not https://api.example.com/mcp2.
func AudienceMatches(audience, resource string) bool {
	if audience == "" || resource == "" {
		return false
	}
	if resource == audience {
		return true
	}
	return strings.HasPrefix(resource, audience+"/")
}
