package security

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
)

// DetectionMetrics tracks security detection events
type DetectionMetrics struct {
	SuspiciousRequests int64
}

// Detector resolves client addresses behind trusted proxies and flags
// requests that look like scans.
type Detector struct {
	metrics        *DetectionMetrics
	trustedProxies []*net.IPNet
}

var suspiciousPatterns = []string{
	"../", "..\\", ".env", ".git", ".ssh", "wp-admin", "phpmyadmin",
	"etc/passwd", "<script", "union select", "cmd.exe",
}

var scannerAgents = []string{"sqlmap", "nmap", "nikto", "gobuster", "dirb"}

// NewDetector trusts loopback and private networks as proxies.
func NewDetector() *Detector {
	return &Detector{
		metrics: &DetectionMetrics{},
		trustedProxies: []*net.IPNet{
			parseCIDR("127.0.0.0/8"),
			parseCIDR("10.0.0.0/8"),
			parseCIDR("172.16.0.0/12"),
			parseCIDR("192.168.0.0/16"),
			parseCIDR("::1/128"),
		},
	}
}

func parseCIDR(cidr string) *net.IPNet {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		panic(fmt.Sprintf("failed to parse trusted proxy CIDR %s: %v", cidr, err))
	}
	return network
}

// DetectSuspiciousRequest reports path traversal attempts, injection markers and
// known scanner user agents.
func (d *Detector) DetectSuspiciousRequest(r *http.Request) bool {
	path := strings.ToLower(r.URL.Path)
	query := strings.ToLower(r.URL.RawQuery)
	agent := strings.ToLower(r.Header.Get("User-Agent"))

	suspicious := len(r.URL.String()) > 2048
	for _, p := range suspiciousPatterns {
		if strings.Contains(path, p) || strings.Contains(query, p) {
			suspicious = true
			break
		}
	}
	for _, a := range scannerAgents {
		if strings.Contains(agent, a) {
			suspicious = true
			break
		}
	}

	if suspicious {
		atomic.AddInt64(&d.metrics.SuspiciousRequests, 1)
	}
	return suspicious
}

// ExtractClientIP returns the peer address, or the first forwarded address
// when the peer is a trusted proxy.
func (d *Detector) ExtractClientIP(r *http.Request) string {
	directIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		directIP = r.RemoteAddr
	}

	parsed := net.ParseIP(directIP)
	if parsed == nil || !d.isTrustedProxy(parsed) {
		return directIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if net.ParseIP(first) != nil {
			return first
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(xri) != nil {
		return xri
	}
	return directIP
}

func (d *Detector) isTrustedProxy(ip net.IP) bool {
	for _, network := range d.trustedProxies {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// GetMetrics returns current security metrics
func (d *Detector) GetMetrics() DetectionMetrics {
	return DetectionMetrics{
		SuspiciousRequests: atomic.LoadInt64(&d.metrics.SuspiciousRequests),
	}
}

// AddTrustedProxy adds a trusted proxy network
func (d *Detector) AddTrustedProxy(cidr string) error {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		return fmt.Errorf("invalid CIDR %s: %w", cidr, err)
	}
	d.trustedProxies = append(d.trustedProxies, network)
	return nil
}
