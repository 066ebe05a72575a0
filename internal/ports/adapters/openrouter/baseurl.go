package openrouter

import (
	"fmt"
	"net/url"
	"strings"
)

const defaultBaseURL = "https://openrouter.ai"

var defaultAllowedHosts = []string{"openrouter.ai", "api.openrouter.ai"}

func normalizeBaseURL(baseURL string) string {
	if baseURL = strings.TrimSpace(baseURL); baseURL == "" {
		return defaultBaseURL
	}
	return strings.TrimRight(baseURL, "/")
}

// ValidateBaseURL rejects endpoints the API key must not be sent to: anything that is
// not plain https on an allowed host.
func ValidateBaseURL(baseURL string, allowedHosts []string) error {
	baseURL = normalizeBaseURL(baseURL)
	bad := func(reason string) error {
		return fmt.Errorf("producer base url %q: %s", baseURL, reason)
	}

	u, err := url.Parse(baseURL)
	switch {
	case err != nil:
		return fmt.Errorf("producer base url: %w", err)
	case !u.IsAbs() || u.Hostname() == "":
		return bad("absolute URL with host is required")
	case u.User != nil:
		return bad("userinfo is not allowed")
	case u.RawQuery != "" || u.Fragment != "":
		return bad("query and fragment are not allowed")
	case !strings.EqualFold(u.Scheme, "https"):
		return bad("https is required")
	}

	host := strings.ToLower(u.Hostname())
	if _, ok := allowedHostSet(allowedHosts)[host]; !ok {
		return bad(fmt.Sprintf("host %q is not in OPENROUTER_ALLOWED_HOSTS", host))
	}
	return nil
}

// allowedHostSet accepts bare hosts as well as URLs and host:port entries.
func allowedHostSet(hosts []string) map[string]struct{} {
	out := make(map[string]struct{}, len(hosts))
	for _, h := range hosts {
		v := strings.ToLower(strings.TrimSpace(h))
		v = strings.TrimPrefix(strings.TrimPrefix(v, "http://"), "https://")
		v, _, _ = strings.Cut(strings.Trim(v, "/"), "/")
		v, _, _ = strings.Cut(v, ":")
		if v != "" {
			out[v] = struct{}{}
		}
	}
	if len(out) == 0 {
		for _, h := range defaultAllowedHosts {
			out[h] = struct{}{}
		}
	}
	return out
}
