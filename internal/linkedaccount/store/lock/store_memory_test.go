package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *MemoryStore
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = NewMemory()
}

func (s *MemoryStoreSuite) TestAcquireIsExclusive() {
	ctx := context.Background()

	ok, err := s.store.Acquire(ctx, "account-verification:u1:a1", time.Minute)
	s.Require().NoError(err)
	s.True(ok)

	ok, err = s.store.Acquire(ctx, "account-verification:u1:a1", time.Minute)
	s.Require().NoError(err)
	s.False(ok, "second acquire must be refused while held")

	ok, err = s.store.Acquire(ctx, "account-verification:u1:a2", time.Minute)
	s.Require().NoError(err)
	s.True(ok, "different key is independent")
}

func (s *MemoryStoreSuite) TestExpiryReopensTheLock() {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s.store.WithClock(func() time.Time { return now })

	ok, err := s.store.Acquire(ctx, "k", 15*time.Minute)
	s.Require().NoError(err)
	s.True(ok)

	now = now.Add(14 * time.Minute)
	ok, err = s.store.Acquire(ctx, "k", 15*time.Minute)
	s.Require().NoError(err)
	s.False(ok)

	now = now.Add(2 * time.Minute)
	ok, err = s.store.Acquire(ctx, "k", 15*time.Minute)
	s.Require().NoError(err)
	s.True(ok, "expired lock must be acquirable again")
}

func (s *MemoryStoreSuite) TestReleaseIsIdempotent() {
	ctx := context.Background()

	ok, err := s.store.Acquire(ctx, "k", time.Minute)
	s.Require().NoError(err)
	s.True(ok)

	s.Require().NoError(s.store.Release(ctx, "k"))
	s.Require().NoError(s.store.Release(ctx, "k"))

	ok, err = s.store.Acquire(ctx, "k", time.Minute)
	s.Require().NoError(err)
	s.True(ok)
}

func (s *MemoryStoreSuite) TestConcurrentAcquire() {
	ctx := context.Background()
	const goroutines = 50

	var wg sync.WaitGroup
	var acquired atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.store.Acquire(ctx, "contended", time.Minute)
			s.NoError(err)
			if ok {
				acquired.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), acquired.Load(), "exactly one acquire should win")
}
