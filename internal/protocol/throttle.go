package protocol

import (
	"context"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ioticlabs/qapi-core/internal/metrics"
)

// Throttler caps outbound request rate to one configured (count, interval)
// pair, re-expressing RateLimiter.py's deque-of-timestamps algorithm as a
// golang.org/x/time/rate.Limiter: the original records each send's
// timestamp and, before the next one, drops entries older than interval
// then sleeps if the deque is already at capacity. A token bucket refilling
// at count/interval tokens per second with a burst of count is the
// equivalent steady-state behaviour without the unbounded deque.
type Throttler struct {
	limiter *rate.Limiter
}

// newThrottler builds a Throttler allowing at most maxInInterval sends per
// interval, bursting up to maxInInterval at once (matching the original's
// "send immediately while the deque has room").
func newThrottler(maxInInterval int, interval time.Duration) *Throttler {
	perSecond := float64(maxInInterval) / interval.Seconds()
	return &Throttler{limiter: rate.NewLimiter(rate.Limit(perSecond), maxInInterval)}
}

// Wait blocks until a send is permitted or ctx is cancelled (the client's
// shutdown signal), per spec §4.D.7 Throttling.
func (t *Throttler) Wait(ctx context.Context) error {
	return t.limiter.Wait(ctx)
}

// parseThrottleConf parses a "count/seconds,count/seconds" configuration
// string into independent Throttlers, every one of which must grant
// permission before a send proceeds. Malformed entries are skipped rather
// than rejected outright, since throttling is advisory rate-shaping, not a
// correctness requirement.
func parseThrottleConf(conf string) []*Throttler {
	var out []*Throttler
	for _, part := range strings.Split(conf, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		halves := strings.SplitN(part, "/", 2)
		if len(halves) != 2 {
			continue
		}
		count, err := strconv.Atoi(strings.TrimSpace(halves[0]))
		if err != nil || count <= 0 {
			continue
		}
		secs, err := strconv.ParseFloat(strings.TrimSpace(halves[1]), 64)
		if err != nil || secs <= 0 {
			continue
		}
		out = append(out, newThrottler(count, time.Duration(secs*float64(time.Second))))
	}
	return out
}

// throttle waits on every configured Throttler in turn, so a send is only
// issued once it satisfies all configured rate windows simultaneously.
func (c *Client) throttle(ctx context.Context) error {
	if len(c.throttlers) == 0 {
		return nil
	}
	start := time.Now()
	defer func() { metrics.ThrottleWait(time.Since(start)) }()
	for _, t := range c.throttlers {
		if err := t.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}
