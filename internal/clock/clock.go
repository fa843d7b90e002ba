package clock

import "time"

// Clock abstracts wall time for code that stamps records.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the host clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Fixed always returns the same instant.
type Fixed time.Time

func (f Fixed) Now() time.Time { return time.Time(f).UTC() }
