package testfixtures

import (
	"fmt"
	"sync"
	"time"
)

// Clock is a manually advanced UTC time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts a clock at start, or at ReferenceTime when start is zero.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{now: start.UTC()}
}

// Now reports the clock time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d and returns the new time.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// SyncWindow is the inbound sync range anchored at the clock time.
func (c *Clock) SyncWindow() (time.Time, time.Time) {
	now := c.Now()
	return now.AddDate(0, 0, -30), now.AddDate(0, 0, 90)
}

// Sequence hands out "<prefix>-<n>" identifiers in order.
type Sequence struct {
	mu     sync.Mutex
	prefix string
	issued int
}

// NewSequence returns a sequence using prefix, or "id" when prefix is empty.
func NewSequence(prefix string) *Sequence {
	if prefix == "" {
		prefix = "id"
	}
	return &Sequence{prefix: prefix}
}

// Next issues the following identifier.
func (s *Sequence) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	return fmt.Sprintf("%s-%d", s.prefix, s.issued)
}

// Issued reports how many identifiers have been handed out.
func (s *Sequence) Issued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issued
}
