package utils

import (
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/time/rate"
)

// Throttle reports whether an action may run, allowing at most one run per interval. It is
// used to rate limit repeated warnings.
type Throttle struct {
	clk     clock.Clock
	limiter *rate.Limiter
}

// NewThrottle returns a Throttle that allows one action per interval as measured by clk.
func NewThrottle(clk clock.Clock, interval time.Duration) *Throttle {
	if clk == nil {
		clk = clock.New()
	}
	return &Throttle{clk: clk, limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Allow returns true the first time it is called and then at most once per interval.
func (th *Throttle) Allow() bool {
	return th.limiter.AllowN(th.clk.Now(), 1)
}
