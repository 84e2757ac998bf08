package loadgen

import (
	"net/http"
	"sync/atomic"
)

// Counter tallies probe outcomes by status class.
type Counter struct {
	allowed     atomic.Int64
	denied      atomic.Int64
	rateLimited atomic.Int64
	failed      atomic.Int64
}

type Summary struct {
	Allowed     int64 `json:"allowed"`
	Denied      int64 `json:"denied"`
	RateLimited int64 `json:"rate_limited"`
	Failed      int64 `json:"failed"`
}

func (s Summary) Total() int64 { return s.Allowed + s.Denied + s.RateLimited + s.Failed }

// Record counts one response status; 0 means the request never completed.
func (c *Counter) Record(status int) {
	switch status {
	case http.StatusOK:
		c.allowed.Add(1)
	case http.StatusForbidden:
		c.denied.Add(1)
	case http.StatusTooManyRequests:
		c.rateLimited.Add(1)
	default:
		c.failed.Add(1)
	}
}

func (c *Counter) Summary() Summary {
	return Summary{
		Allowed:     c.allowed.Load(),
		Denied:      c.denied.Load(),
		RateLimited: c.rateLimited.Load(),
		Failed:      c.failed.Load(),
	}
}
