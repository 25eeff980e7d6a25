package autosave

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/domain/cgpa"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func draft(credits float64) Draft {
	return Draft{Courses: []cgpa.Course{{Name: "x", Credits: credits, Grade: cgpa.GradeA}}}
}

func TestFingerprint(t *testing.T) {
	assert.Equal(t, Fingerprint(draft(3)), Fingerprint(draft(3)))
	assert.NotEqual(t, Fingerprint(draft(3)), Fingerprint(draft(4)))
	assert.Equal(t, Fingerprint(Draft{}), Fingerprint(Draft{Courses: []cgpa.Course{}}))

	withEmptyPrior := Draft{Courses: draft(3).Courses, Prior: &cgpa.PriorHistory{CGPA: 3, Credits: 0}}
	assert.Equal(t, Fingerprint(draft(3)), Fingerprint(withEmptyPrior))

	withPrior := Draft{Courses: draft(3).Courses, Prior: &cgpa.PriorHistory{CGPA: 3, Credits: 30}}
	assert.NotEqual(t, Fingerprint(draft(3)), Fingerprint(withPrior))
}

func TestDraftEmpty(t *testing.T) {
	assert.True(t, Draft{}.Empty())
	assert.True(t, Draft{Prior: &cgpa.PriorHistory{CGPA: 3}}.Empty())
	assert.False(t, Draft{Prior: &cgpa.PriorHistory{CGPA: 3, Credits: 10}}.Empty())
	assert.False(t, draft(0).Empty())
}

func TestMemoryFingerprintStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryFingerprintStore(time.Minute)
	now := time.Now()
	store.now = func() time.Time { return now }

	_, ok, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, 1, 42))
	fp, ok, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(42), fp)

	now = now.Add(2 * time.Minute)
	_, ok, _ = store.Get(ctx, 1)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, 1, 7))
	require.NoError(t, store.Forget(ctx, 1))
	_, ok, _ = store.Get(ctx, 1)
	assert.False(t, ok)
}

func TestRedisFingerprintStore(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run redis integration tests")
	}
	ctx := context.Background()
	client := goredis.NewClient(&goredis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())

	store := NewRedisFingerprintStore(client, time.Minute)
	require.NoError(t, store.Forget(ctx, 99))

	_, ok, err := store.Get(ctx, 99)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, 99, 0xdeadbeef))
	fp, ok, err := store.Get(ctx, 99)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(0xdeadbeef), fp)
	require.NoError(t, store.Forget(ctx, 99))
}

type recorder struct {
	mu       sync.Mutex
	saved    []Draft
	inFlight int32
	maxSeen  int32
	delay    time.Duration
	fail     error
}

func (r *recorder) save(ctx context.Context, d Draft) error {
	n := atomic.AddInt32(&r.inFlight, 1)
	defer atomic.AddInt32(&r.inFlight, -1)
	for {
		m := atomic.LoadInt32(&r.maxSeen)
		if n <= m || atomic.CompareAndSwapInt32(&r.maxSeen, m, n) {
			break
		}
	}
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.saved = append(r.saved, d)
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.saved)
}

func (r *recorder) last() Draft {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saved[len(r.saved)-1]
}

func TestSchedulerDebounces(t *testing.T) {
	rec := &recorder{}
	s := NewScheduler(Policy{Debounce: 30 * time.Millisecond}, rec.save)

	for i := 1; i <= 5; i++ {
		assert.True(t, s.Submit(draft(float64(i))))
	}

	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 5.0, rec.last().Courses[0].Credits)

	// unchanged draft is skipped
	assert.False(t, s.Submit(draft(5)))
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, rec.count())
}

func TestSchedulerMaxWait(t *testing.T) {
	rec := &recorder{}
	s := NewScheduler(Policy{Debounce: 50 * time.Millisecond, MaxWait: 80 * time.Millisecond}, rec.save)

	deadline := time.Now().Add(200 * time.Millisecond)
	i := 0
	for time.Now().Before(deadline) {
		i++
		s.Submit(draft(float64(i)))
		time.Sleep(10 * time.Millisecond)
	}
	// constant edits never go quiet for 50ms, so only MaxWait triggers saves
	assert.GreaterOrEqual(t, rec.count(), 1)
	require.NoError(t, s.Stop(context.Background()))
}

func TestSchedulerFlush(t *testing.T) {
	rec := &recorder{}
	s := NewScheduler(Policy{Debounce: time.Hour}, rec.save)

	s.Submit(draft(3))
	assert.True(t, s.Pending())
	require.NoError(t, s.Flush(context.Background()))
	assert.Equal(t, 1, rec.count())
	assert.False(t, s.Pending())

	// nothing pending
	require.NoError(t, s.Flush(context.Background()))
	assert.Equal(t, 1, rec.count())
}

func TestSchedulerOneSaveInFlight(t *testing.T) {
	rec := &recorder{delay: 20 * time.Millisecond}
	s := NewScheduler(Policy{Debounce: time.Millisecond}, rec.save)

	var wg sync.WaitGroup
	for i := 1; i <= 10; i++ {
		s.Submit(draft(float64(i)))
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Flush(context.Background())
		}()
		time.Sleep(2 * time.Millisecond)
	}
	wg.Wait()
	require.NoError(t, s.Flush(context.Background()))

	assert.Equal(t, int32(1), atomic.LoadInt32(&rec.maxSeen))
	assert.Equal(t, 10.0, rec.last().Courses[0].Credits)
}

func TestSchedulerRetainsFailedDraft(t *testing.T) {
	rec := &recorder{fail: errors.New("db down")}
	s := NewScheduler(Policy{Debounce: time.Hour}, rec.save)

	s.Submit(draft(3))
	assert.Error(t, s.Flush(context.Background()))
	assert.True(t, s.Pending())

	rec.mu.Lock()
	rec.fail = nil
	rec.mu.Unlock()
	require.NoError(t, s.Flush(context.Background()))
	assert.Equal(t, 1, rec.count())
}

func TestSchedulerSeededFingerprint(t *testing.T) {
	rec := &recorder{}
	s := NewScheduler(Policy{Debounce: time.Millisecond}, rec.save, WithLastSaved(Fingerprint(draft(3))))
	assert.False(t, s.Submit(draft(3)))
	assert.True(t, s.Submit(draft(4)))
}

func TestSchedulerStopRejects(t *testing.T) {
	rec := &recorder{}
	s := NewScheduler(Policy{Debounce: time.Hour}, rec.save)
	s.Submit(draft(1))
	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, 1, rec.count())
	assert.False(t, s.Submit(draft(2)))
}

func TestSchedulerDiscard(t *testing.T) {
	rec := &recorder{}
	s := NewScheduler(Policy{Debounce: 20 * time.Millisecond}, rec.save)

	s.Submit(draft(3))
	s.Discard()
	assert.False(t, s.Pending())

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, s.Flush(context.Background()))
	assert.Equal(t, 0, rec.count())

	// later drafts still save
	assert.True(t, s.Submit(draft(4)))
	require.NoError(t, s.Flush(context.Background()))
	assert.Equal(t, 1, rec.count())
}
