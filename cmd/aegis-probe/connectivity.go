package main

import (
	"context"
	"net"
	"net/url"
	"sync"
	"time"

	"aegis/pkg/platform/clock"
)

const probeCacheTTL = 5 * time.Second

// tcpProbe answers "are we online" by dialing the backend host. Results are
// cached briefly so hot request paths do not dial on every call.
type tcpProbe struct {
	address string
	dialer  net.Dialer
	clock   clock.Clock

	mu        sync.Mutex
	lastCheck time.Time
	lastState bool
}

func newTCPProbe(baseURL string) (*tcpProbe, error) {
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
	return &tcpProbe{
		address: host,
		dialer:  net.Dialer{Timeout: 2 * time.Second},
		clock:   clock.NewSystem(),
	}, nil
}

// IsOnline implements pipeline.Connectivity.
func (p *tcpProbe) IsOnline(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock.Now()
	if !p.lastCheck.IsZero() && now.Sub(p.lastCheck) < probeCacheTTL {
		return p.lastState
	}

	conn, err := p.dialer.DialContext(ctx, "tcp", p.address)
	if err == nil {
		conn.Close()
	}
	p.lastCheck = now
	p.lastState = err == nil
	return p.lastState
}
