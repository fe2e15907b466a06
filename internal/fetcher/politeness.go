package fetcher

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// CrawlDelayer reports a host's robots.txt Crawl-delay.
type CrawlDelayer interface {
	CrawlDelay(host string) time.Duration
}

// Politeness spaces requests to each host of one job. The interval is the
// larger of the job's delay and the host's Crawl-delay.
type Politeness struct {
	delay  time.Duration
	robots CrawlDelayer

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewPoliteness creates a per-job limiter set. robots may be nil.
func NewPoliteness(delay time.Duration, robots CrawlDelayer) *Politeness {
	return &Politeness{
		delay:    delay,
		robots:   robots,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Wait blocks until a request to host may be sent.
func (p *Politeness) Wait(ctx context.Context, host string) error {
	return p.limiter(host).Wait(ctx)
}

func (p *Politeness) limiter(host string) *rate.Limiter {
	interval := p.delay
	if p.robots != nil {
		if cd := p.robots.CrawlDelay(host); cd > interval {
			interval = cd
		}
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	l, ok := p.limiters[host]
	if !ok {
		l = rate.NewLimiter(limit, 1)
		p.limiters[host] = l
		return l
	}
	if l.Limit() != limit {
		l.SetLimit(limit)
	}
	return l
}
