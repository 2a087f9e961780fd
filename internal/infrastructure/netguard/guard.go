// Package netguard validates outbound URLs before the fetch layer touches
// the network. Every target URL is checked for scheme, hostname, and the
// full set of addresses it resolves to, so requests can never reach
// loopback, private, link-local, or cloud metadata ranges.
package netguard

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/turtacn/aivis/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/aivis/pkg/errors"
)

// Resolver looks up the IP addresses behind a hostname. *net.Resolver
// satisfies it; tests inject a canned implementation.
type Resolver interface {
	LookupIP(ctx context.Context, network, host string) ([]net.IP, error)
}

// Guard decides whether an outbound URL is safe to fetch.
type Guard struct {
	resolver Resolver
	log      logging.Logger
}

// Option customizes a Guard.
type Option func(*Guard)

// WithResolver replaces the DNS resolver, primarily for tests.
func WithResolver(r Resolver) Option {
	return func(g *Guard) { g.resolver = r }
}

// New builds a Guard backed by the system resolver.
func New(log logging.Logger, opts ...Option) *Guard {
	if log == nil {
		log = logging.NewNopLogger()
	}
	g := &Guard{
		resolver: net.DefaultResolver,
		log:      log.Named("netguard"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ValidateURL parses rawURL and verifies that fetching it cannot reach an
// internal address. It returns the parsed URL on success. Failures carry
// ErrCodeValidation for malformed input and ErrCodeSSRFBlocked for targets
// that point at blocked networks.
func (g *Guard) ValidateURL(ctx context.Context, rawURL string) (*url.URL, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, errors.Validation("url must not be empty")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Validation("url is not parseable").WithCause(err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, errors.Validation("url scheme must be http or https").
			WithDetailf("scheme=%s", parsed.Scheme)
	}

	hostname := parsed.Hostname()
	if hostname == "" {
		return nil, errors.Validation("url must include a host")
	}

	if IsBlockedHostname(hostname) {
		g.log.Warn("blocked url by hostname", logging.String("host", hostname))
		return nil, errors.SSRFBlocked("url host is not allowed").
			WithDetailf("host=%s", hostname)
	}

	// IP literals skip DNS entirely.
	if ip := net.ParseIP(hostname); ip != nil {
		if IsBlockedIP(ip) {
			g.log.Warn("blocked url by ip literal", logging.String("ip", ip.String()))
			return nil, errors.SSRFBlocked("url resolves to a blocked address").
				WithDetailf("host=%s", hostname)
		}
		return parsed, nil
	}

	ips, err := g.resolver.LookupIP(ctx, "ip", hostname)
	if err != nil || len(ips) == 0 {
		// A host we cannot resolve is a host we cannot clear.
		g.log.Warn("blocked url on resolve failure",
			logging.String("host", hostname), logging.Err(err))
		return nil, errors.SSRFBlocked("url host did not resolve").
			WithDetailf("host=%s", hostname).WithCause(err)
	}

	for _, ip := range ips {
		if IsBlockedIP(ip) {
			g.log.Warn("blocked url by resolved ip",
				logging.String("host", hostname), logging.String("ip", ip.String()))
			return nil, errors.SSRFBlocked("url resolves to a blocked address").
				WithDetailf("host=%s", hostname)
		}
	}

	return parsed, nil
}

// CheckRedirect returns an http.Client redirect policy that re-validates
// every hop and caps the chain length. Redirect targets are attacker
// controlled, so they get the same treatment as the original URL.
func (g *Guard) CheckRedirect(maxRedirects int) func(req *http.Request, via []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return errors.FetchFailed("too many redirects").
				WithDetailf("max=%d", maxRedirects)
		}
		if _, err := g.ValidateURL(req.Context(), req.URL.String()); err != nil {
			return err
		}
		return nil
	}
}

// IsBlockedHostname reports whether a hostname is rejected without DNS
// resolution. Covers localhost and mDNS-style suffixes.
func IsBlockedHostname(hostname string) bool {
	h := strings.ToLower(strings.TrimSuffix(hostname, "."))
	if h == "localhost" {
		return true
	}
	return strings.HasSuffix(h, ".localhost") || strings.HasSuffix(h, ".local")
}

// IsLiteralBlocked reports whether a hostname names a blocked target on its
// face, without DNS: a blocked hostname fast-path match or a literal IP in a
// blocked range. Hostnames that need resolution always return false here.
func IsLiteralBlocked(hostname string) bool {
	if IsBlockedHostname(hostname) {
		return true
	}
	if ip := net.ParseIP(hostname); ip != nil {
		return IsBlockedIP(ip)
	}
	return false
}

// Azure serves instance metadata from a fixed public-range address, so it
// needs an explicit entry alongside the standard 169.254.169.254.
var azureMetadataIP = net.ParseIP("168.63.129.16")

// IsBlockedIP reports whether an address belongs to a range that outbound
// fetches must never reach: loopback, RFC1918, link-local, carrier-grade
// NAT, benchmark and protocol-assignment blocks, and cloud metadata hosts.
func IsBlockedIP(ip net.IP) bool {
	if ip == nil {
		return true
	}

	if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}

	if ip.Equal(azureMetadataIP) {
		return true
	}

	if ip4 := ip.To4(); ip4 != nil {
		// 100.64.0.0/10 carrier-grade NAT.
		if ip4[0] == 100 && ip4[1] >= 64 && ip4[1] <= 127 {
			return true
		}
		// 192.0.0.0/24 protocol assignments.
		if ip4[0] == 192 && ip4[1] == 0 && ip4[2] == 0 {
			return true
		}
		// 198.18.0.0/15 benchmarking.
		if ip4[0] == 198 && (ip4[1] == 18 || ip4[1] == 19) {
			return true
		}
	}

	return false
}
