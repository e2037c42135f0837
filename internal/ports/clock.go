package ports

import "time"

// TimeSource supplies the current server time used for reveal computations.
type TimeSource interface {
	Now() time.Time
}

// SystemTime is a TimeSource backed by the wall clock, in UTC.
type SystemTime struct{}

// Now returns the current UTC time.
func (SystemTime) Now() time.Time { return time.Now().UTC() }
