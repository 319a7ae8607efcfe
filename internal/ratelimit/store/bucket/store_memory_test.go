package bucket

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

const (
	testLimit  = 10
	testWindow = time.Minute
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type InMemoryBucketStoreSuite struct {
	suite.Suite
	clock *manualClock
	store *InMemoryBucketStore
	ctx   context.Context
}

func TestInMemoryBucketStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryBucketStoreSuite))
}

func (s *InMemoryBucketStoreSuite) SetupTest() {
	s.clock = &manualClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	s.store = New(WithClock(s.clock.Now))
	s.ctx = context.Background()
}

func (s *InMemoryBucketStoreSuite) TestAllow() {
	s.Run("first request allowed", func() {
		result, err := s.store.Allow(s.ctx, "allow:first", testLimit, testWindow)
		s.Require().NoError(err)
		s.True(result.Allowed)
		s.Equal(testLimit, result.Limit)
		s.Equal(testLimit-1, result.Remaining)
		s.Equal(s.clock.Now().Add(testWindow), result.ResetAt)
	})

	s.Run("request over limit denied", func() {
		for range testLimit {
			result, err := s.store.Allow(s.ctx, "allow:over", testLimit, testWindow)
			s.Require().NoError(err)
			s.Require().True(result.Allowed)
		}
		result, err := s.store.Allow(s.ctx, "allow:over", testLimit, testWindow)
		s.Require().NoError(err)
		s.False(result.Allowed)
		s.Equal(testLimit, result.Limit)
		s.Equal(0, result.Remaining)
	})

	s.Run("denied requests are not counted", func() {
		for range testLimit + 5 {
			_, err := s.store.Allow(s.ctx, "allow:denied", testLimit, testWindow)
			s.Require().NoError(err)
		}
		count, err := s.store.CurrentCount(s.ctx, "allow:denied")
		s.Require().NoError(err)
		s.Equal(testLimit, count)
	})
}

func (s *InMemoryBucketStoreSuite) TestWindowSlides() {
	key := "slide"
	_, err := s.store.Allow(s.ctx, key, 2, testWindow)
	s.Require().NoError(err)
	s.clock.Advance(30 * time.Second)
	_, err = s.store.Allow(s.ctx, key, 2, testWindow)
	s.Require().NoError(err)

	denied, err := s.store.Allow(s.ctx, key, 2, testWindow)
	s.Require().NoError(err)
	s.False(denied.Allowed)
	s.Equal(s.clock.Now().Add(30*time.Second), denied.ResetAt, "reset is when the oldest request leaves the window")

	s.clock.Advance(31 * time.Second)
	result, err := s.store.Allow(s.ctx, key, 2, testWindow)
	s.Require().NoError(err)
	s.True(result.Allowed)
	s.Equal(0, result.Remaining)
}

func (s *InMemoryBucketStoreSuite) TestAllowN() {
	s.Run("cost of 5 consumes 5 slots", func() {
		result, err := s.store.AllowN(s.ctx, "allown:five", 5, testLimit, testWindow)
		s.Require().NoError(err)
		s.True(result.Allowed)
		s.Equal(5, result.Remaining)
	})

	s.Run("cost greater than remaining denied", func() {
		first, err := s.store.AllowN(s.ctx, "allown:deny", 7, testLimit, testWindow)
		s.Require().NoError(err)
		s.Require().True(first.Allowed)

		result, err := s.store.AllowN(s.ctx, "allown:deny", 4, testLimit, testWindow)
		s.Require().NoError(err)
		s.False(result.Allowed)
		s.Equal(0, result.Remaining)
	})
}

func (s *InMemoryBucketStoreSuite) TestReset() {
	_, err := s.store.AllowN(s.ctx, "reset", testLimit, testLimit, testWindow)
	s.Require().NoError(err)

	s.Require().NoError(s.store.Reset(s.ctx, "reset"))

	result, err := s.store.Allow(s.ctx, "reset", testLimit, testWindow)
	s.Require().NoError(err)
	s.True(result.Allowed)
	s.Equal(testLimit-1, result.Remaining)
}

func (s *InMemoryBucketStoreSuite) TestSweep() {
	_, err := s.store.Allow(s.ctx, "old", testLimit, testWindow)
	s.Require().NoError(err)
	s.clock.Advance(45 * time.Second)
	_, err = s.store.Allow(s.ctx, "fresh", testLimit, testWindow)
	s.Require().NoError(err)

	s.clock.Advance(20 * time.Second)
	s.Equal(1, s.store.Sweep())

	count, err := s.store.CurrentCount(s.ctx, "fresh")
	s.Require().NoError(err)
	s.Equal(1, count)
}

func (s *InMemoryBucketStoreSuite) TestConcurrent() {
	limit := 100
	key := "concurrent"
	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0

	for range 200 {
		wg.Go(func() {
			result, err := s.store.Allow(s.ctx, key, limit, testWindow)
			if err == nil && result.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		})
	}

	wg.Wait()
	s.Equal(limit, allowed)
}
