package httpapi

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// pushLimiters hands out one token bucket per terminal serial number.
// Terminals re-push entire backlogs after reconnecting; the bucket lets a
// minute's quota through in a burst and refills at the configured rate.
type pushLimiters struct {
	mu    sync.Mutex
	every rate.Limit
	burst int
	bySN  map[string]*rate.Limiter
}

// newPushLimiters returns nil when perMinute is zero or negative; a nil
// registry allows everything.
func newPushLimiters(perMinute int) *pushLimiters {
	if perMinute <= 0 {
		return nil
	}
	return &pushLimiters{
		every: rate.Every(time.Minute / time.Duration(perMinute)),
		burst: perMinute,
		bySN:  make(map[string]*rate.Limiter),
	}
}

func (p *pushLimiters) allow(sn string) bool {
	if p == nil {
		return true
	}
	p.mu.Lock()
	l, ok := p.bySN[sn]
	if !ok {
		l = rate.NewLimiter(p.every, p.burst)
		p.bySN[sn] = l
	}
	p.mu.Unlock()
	return l.Allow()
}
