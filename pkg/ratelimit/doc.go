// Package ratelimit paces image fetches against the image host.
//
// Two strategies are available: a token bucket that refills in full once
// per period, and a sliding window that admits at most N requests in any
// trailing period. Wait honours context cancellation so a stopped download
// never blocks on pacing.
//
//	limiter := ratelimit.New(cfg.RateLimit) // nil when disabled
//	if limiter != nil {
//	    if err := limiter.Wait(ctx); err != nil {
//	        return err
//	    }
//	}
package ratelimit
