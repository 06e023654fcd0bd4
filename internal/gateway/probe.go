package gateway

import (
	"net"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DialProbe reports connectivity by attempting a TCP dial to the remote API
// host. Results are cached for a short TTL so hot read paths do not dial on
// every call.
type DialProbe struct {
	addr    string
	timeout time.Duration
	ttl     time.Duration

	mu      sync.Mutex
	online  bool
	checked time.Time
}

// NewDialProbe builds a [DialProbe] for the given base URL. Port 443/80 is
// inferred from the scheme when the URL does not carry one. checkTimeout
// bounds each dial; ttl bounds how long a result is reused.
func NewDialProbe(baseURL string, checkTimeout, ttl time.Duration) (*DialProbe, error) {
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}

	host := u.Host
	if u.Port() == "" {
		port := "80"
		if u.Scheme == "https" {
			port = "443"
		}
		host = net.JoinHostPort(u.Hostname(), port)
	}

	return &DialProbe{addr: host, timeout: checkTimeout, ttl: ttl}, nil
}

// Online implements [ConnectivityProbe].
func (p *DialProbe) Online() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if time.Since(p.checked) < p.ttl {
		return p.online
	}

	conn, err := net.DialTimeout("tcp", p.addr, p.timeout)
	if err == nil {
		conn.Close()
	}

	p.online = err == nil
	p.checked = time.Now()
	return p.online
}

// StaticProbe is a [ConnectivityProbe] whose state is set explicitly. Used in
// tests to simulate connectivity transitions deterministically.
type StaticProbe struct {
	online atomic.Bool
}

// NewStaticProbe returns a probe pre-set to the given state.
func NewStaticProbe(online bool) *StaticProbe {
	p := &StaticProbe{}
	p.online.Store(online)
	return p
}

// SetOnline flips the probe's state.
func (p *StaticProbe) SetOnline(online bool) {
	p.online.Store(online)
}

// Online implements [ConnectivityProbe].
func (p *StaticProbe) Online() bool {
	return p.online.Load()
}
