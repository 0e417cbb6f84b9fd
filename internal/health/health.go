package health

import (
	"context"
	"net/http"
	"time"
)

// DefaultTimeout bounds how long a freshly spawned agent may take to start
// serving its liveness endpoint.
const DefaultTimeout = 30 * time.Second

// DefaultInterval is the fixed delay between liveness attempts.
const DefaultInterval = 150 * time.Millisecond

// Process is the minimal view of a spawned handle the probe needs: once the
// process is gone, waiting for it to become healthy is pointless.
type Process interface {
	Exited() bool
}

// Probe polls an agent's liveness endpoint until it answers or a bound is
// hit. The zero value is usable.
type Probe struct {
	Client   *http.Client
	Interval time.Duration
	// Path of the liveness endpoint, default /healthz.
	Path string
}

// WaitHealthy polls GET <baseURL>/healthz every Interval until a success
// response arrives. It returns false when the process exits mid-wait, the
// timeout elapses, or ctx is canceled. Connection errors and 5xx responses
// mean "not ready yet", never failure.
func (p *Probe) WaitHealthy(ctx context.Context, baseURL string, proc Process, timeout time.Duration) bool {
	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Second}
	}
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	path := p.Path
	if path == "" {
		path = "/healthz"
	}
	url := baseURL + path

	deadline := time.Now().Add(timeout)
	for {
		if proc != nil && proc.Exited() {
			return false
		}
		if check(ctx, client, url) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(interval):
		}
	}
}

func check(ctx context.Context, client *http.Client, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode >= 200 && resp.StatusCode < 400
}
