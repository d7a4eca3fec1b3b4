package openrouter

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

const (
	defaultBaseURL = "https://openrouter.ai"
	apiPath        = "/api/v1"
)

var defaultAllowedHosts = map[string]struct{}{
	"openrouter.ai":     {},
	"api.openrouter.ai": {},
}

func normalizeBaseURL(baseURL string) string {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	return strings.TrimSuffix(baseURL, apiPath)
}

// apiBaseURL is the chat-completions root the client talks to.
func apiBaseURL(baseURL string) string {
	return normalizeBaseURL(baseURL) + apiPath
}

// ValidateBaseURL accepts https URLs on an allowed host, either bare or with
// the /api/v1 suffix; any other path is rejected. Plain http is only
// accepted for loopback hosts that are explicitly allowed, which covers local
// proxies and test servers.
func ValidateBaseURL(baseURL string, allowedHosts []string) error {
	baseURL = normalizeBaseURL(baseURL)

	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid HOOKCUT_OPENROUTER_BASE_URL: %w", err)
	}
	if !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("invalid HOOKCUT_OPENROUTER_BASE_URL %q: absolute URL with host is required", baseURL)
	}
	if u.User != nil {
		return fmt.Errorf("invalid HOOKCUT_OPENROUTER_BASE_URL %q: userinfo is not allowed", u.Redacted())
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return fmt.Errorf("invalid HOOKCUT_OPENROUTER_BASE_URL %q: query and fragment are not allowed", baseURL)
	}
	if u.Path != "" {
		return fmt.Errorf("invalid HOOKCUT_OPENROUTER_BASE_URL %q: path %q is not allowed (use https://host or https://host%s)", baseURL, u.Path, apiPath)
	}

	host := strings.ToLower(u.Hostname())
	allowed := normalizeAllowedHosts(allowedHosts)
	if _, ok := allowed[host]; !ok {
		return fmt.Errorf("invalid HOOKCUT_OPENROUTER_BASE_URL %q: host %q is not in HOOKCUT_OPENROUTER_ALLOWED_HOSTS", baseURL, host)
	}

	switch strings.ToLower(u.Scheme) {
	case "https":
	case "http":
		if !isLoopback(host) {
			return fmt.Errorf("invalid HOOKCUT_OPENROUTER_BASE_URL %q: https is required for non-loopback hosts", baseURL)
		}
	default:
		return fmt.Errorf("invalid HOOKCUT_OPENROUTER_BASE_URL %q: unsupported scheme %q", baseURL, u.Scheme)
	}
	return nil
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func normalizeAllowedHosts(allowedHosts []string) map[string]struct{} {
	out := make(map[string]struct{}, len(allowedHosts))
	for _, h := range allowedHosts {
		v := strings.ToLower(strings.TrimSpace(h))
		v = strings.TrimPrefix(v, "http://")
		v = strings.TrimPrefix(v, "https://")
		v = strings.Trim(v, "/")
		if v == "" {
			continue
		}
		if hp, _, err := net.SplitHostPort(v); err == nil {
			v = hp
		}
		out[v] = struct{}{}
	}
	if len(out) == 0 {
		return defaultAllowedHosts
	}
	return out
}
