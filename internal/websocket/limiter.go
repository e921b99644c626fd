package websocket

import (
	"time"

	"golang.org/x/time/rate"
)

// DefaultTypingLimit is how many typing events a session may send per minute.
const DefaultTypingLimit = 60

// TypingLimiter lets a session burst up to limit typing events and refills
// them evenly over a minute.
type TypingLimiter struct {
	limiter *rate.Limiter
	now     func() time.Time
}

func NewTypingLimiter(limit int, now func() time.Time) *TypingLimiter {
	if limit <= 0 {
		limit = DefaultTypingLimit
	}
	if now == nil {
		now = time.Now
	}
	return &TypingLimiter{
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(limit)), limit),
		now:     now,
	}
}

func (l *TypingLimiter) Allow() bool {
	return l.limiter.AllowN(l.now(), 1)
}
