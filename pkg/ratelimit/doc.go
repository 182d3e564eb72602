// Package ratelimit paces outbound API calls.
//
// TokenBucket wraps golang.org/x/time/rate and paces Instagram requests.
// SlidingWindow caps Telegram uploads per channel. Both implement Limiter,
// whose Wait honors context cancellation.
//
//	limiter := ratelimit.NewPerMinute(30, 5)
//	if err := limiter.Wait(ctx); err != nil {
//	    return err
//	}
package ratelimit
