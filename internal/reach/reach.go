// Package reach checks whether the host of the lab service answers ICMP
// echo requests. It backs the doctor command.
package reach

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"runtime"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

// ErrNoHost is returned when a service URL carries no host name.
var ErrNoHost = errors.New("reach: url has no host")

// Result is the outcome of a reachability check.
type Result struct {
	Target     string
	Success    bool
	LatencyMs  float64
	PacketLoss float64 // 0.0 to 1.0
	Error      string
	CheckedAt  time.Time
}

// Checker probes a single target.
type Checker interface {
	Check(ctx context.Context, target string) (*Result, error)
}

// ICMPChecker pings targets using pro-bing.
type ICMPChecker struct {
	timeout time.Duration
	count   int
}

// NewICMPChecker creates a checker sending count echo requests and giving
// up after timeout.
func NewICMPChecker(timeout time.Duration, count int) *ICMPChecker {
	if count < 1 {
		count = 1
	}
	return &ICMPChecker{timeout: timeout, count: count}
}

// Check pings target. Network failures are reported in the Result; an
// error is returned only when the pinger cannot be created.
func (c *ICMPChecker) Check(ctx context.Context, target string) (*Result, error) {
	pinger, err := probing.NewPinger(target)
	if err != nil {
		return nil, fmt.Errorf("create pinger: %w", err)
	}
	pinger.Count = c.count
	pinger.Timeout = c.timeout
	pinger.SetPrivileged(runtime.GOOS == "windows")

	done := make(chan error, 1)
	go func() {
		done <- pinger.Run()
	}()

	select {
	case runErr := <-done:
		res := &Result{Target: target, CheckedAt: time.Now().UTC()}
		if runErr != nil {
			res.Error = runErr.Error()
			res.PacketLoss = 1.0
			return res, nil
		}
		stats := pinger.Statistics()
		res.LatencyMs = float64(stats.AvgRtt) / float64(time.Millisecond)
		res.PacketLoss = stats.PacketLoss / 100.0
		res.Success = stats.PacketsRecv > 0
		if !res.Success {
			res.Error = "all packets lost"
		}
		return res, nil

	case <-ctx.Done():
		pinger.Stop()
		return &Result{
			Target:     target,
			PacketLoss: 1.0,
			Error:      "check cancelled",
			CheckedAt:  time.Now().UTC(),
		}, nil
	}
}

// Host returns the host name of a service base URL.
func Host(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", baseURL, err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("%q: %w", baseURL, ErrNoHost)
	}
	return u.Hostname(), nil
}

// Service pings the host serving baseURL.
func Service(ctx context.Context, c Checker, baseURL string) (*Result, error) {
	host, err := Host(baseURL)
	if err != nil {
		return nil, err
	}
	return c.Check(ctx, host)
}
