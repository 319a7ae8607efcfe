// Package models holds the value types shared by the rate limit store and
// middleware.
package models

import (
	"math"
	"time"
)

// Result is the outcome of one admission check against a bucket.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the whole number of seconds until the bucket frees a slot,
// never less than one.
func (r Result) RetryAfter(now time.Time) int {
	secs := int(math.Ceil(r.ResetAt.Sub(now).Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
