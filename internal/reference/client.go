// Package reference queries NTP servers to cross-check the hypervisor's time
// samples against an independent source.
package reference

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/beevik/ntp"

	"github.com/maximewewer/xentime-provider/pkg/logger"
)

// ErrInvalidResponse is returned for answers that fail NTP sanity checks, such
// as kiss-of-death packets or unsynchronised servers
var ErrInvalidResponse = errors.New("invalid ntp response")

// Querier queries one NTP server
type Querier interface {
	Query(ctx context.Context, server string) (*Response, error)
}

// Response is the subset of an NTP answer the cross-check uses
type Response struct {
	Server  string
	Offset  time.Duration
	RTT     time.Duration
	Stratum uint8
	Leap    ntp.LeapIndicator
	Time    time.Time
}

type queryFunc func(host string, opt ntp.QueryOptions) (*ntp.Response, error)

// Client queries NTP servers with github.com/beevik/ntp
type Client struct {
	timeout time.Duration
	version int
	query   queryFunc
}

// NewClient creates a client using the given protocol version
func NewClient(timeout time.Duration, version int) *Client {
	return &Client{
		timeout: timeout,
		version: version,
		query:   ntp.QueryWithOptions,
	}
}

// Query performs one NTP exchange with server. The exchange itself is bounded
// by the client timeout; ctx only abandons waiting for it.
func (c *Client) Query(ctx context.Context, server string) (*Response, error) {
	type result struct {
		resp *ntp.Response
		err  error
	}
	done := make(chan result, 1)

	go func() {
		resp, err := c.query(server, ntp.QueryOptions{Timeout: c.timeout, Version: c.version})
		done <- result{resp, err}
	}()

	var r result
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("query %s: %w", server, ctx.Err())
	case r = <-done:
	}

	if r.err != nil {
		logger.SafeDebug("reference", "NTP query failed", map[string]interface{}{
			"server": server,
			"error":  r.err.Error(),
		})
		return nil, fmt.Errorf("ntp query to %s failed: %w", server, r.err)
	}
	if err := r.resp.Validate(); err != nil {
		return nil, fmt.Errorf("%w from %s: %v", ErrInvalidResponse, server, err)
	}

	resp := &Response{
		Server:  server,
		Offset:  r.resp.ClockOffset,
		RTT:     r.resp.RTT,
		Stratum: r.resp.Stratum,
		Leap:    r.resp.Leap,
		Time:    r.resp.Time,
	}

	logger.SafeDebug("reference", "NTP query successful", map[string]interface{}{
		"server":  server,
		"offset":  resp.Offset.Seconds(),
		"rtt":     resp.RTT.Seconds(),
		"stratum": resp.Stratum,
	})
	return resp, nil
}
