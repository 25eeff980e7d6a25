package autosave

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Policy configures when drafts are saved
type Policy struct {
	// Debounce is the quiet period after the last change before saving
	Debounce time.Duration
	// MaxWait caps how long a stream of changes can postpone a save.
	// Zero disables the cap.
	MaxWait time.Duration
	// SaveTimeout bounds a timer-triggered save
	SaveTimeout time.Duration
}

// SaveFunc persists a draft
type SaveFunc func(ctx context.Context, d Draft) error

// Scheduler debounces drafts for one editing session. At most one save is in
// flight at a time and a draft identical to the last saved one is skipped.
type Scheduler struct {
	policy Policy
	save   SaveFunc
	logger zerolog.Logger
	now    func() time.Time

	// sem serializes saves
	sem chan struct{}

	mu           sync.Mutex
	timer        *time.Timer
	pending      *Draft
	firstPending time.Time
	lastSaved    uint64
	hasSaved     bool
	stopped      bool
}

// Option customizes a Scheduler
type Option func(*Scheduler)

// WithLastSaved seeds the last saved fingerprint
func WithLastSaved(fp uint64) Option {
	return func(s *Scheduler) {
		s.lastSaved = fp
		s.hasSaved = true
	}
}

// WithLogger sets the logger used for background save failures
func WithLogger(l zerolog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = l
	}
}

// NewScheduler creates a scheduler that calls save according to policy
func NewScheduler(policy Policy, save SaveFunc, opts ...Option) *Scheduler {
	if policy.SaveTimeout <= 0 {
		policy.SaveTimeout = 10 * time.Second
	}
	s := &Scheduler{
		policy: policy,
		save:   save,
		logger: zerolog.Nop(),
		now:    time.Now,
		sem:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit queues a draft. It returns false when the draft was dropped because
// it matches the last saved one or the scheduler is stopped.
func (s *Scheduler) Submit(d Draft) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return false
	}
	if s.pending == nil && s.hasSaved && Fingerprint(d) == s.lastSaved {
		return false
	}

	s.pending = &d
	now := s.now()
	if s.firstPending.IsZero() {
		s.firstPending = now
	}

	delay := s.policy.Debounce
	if s.policy.MaxWait > 0 {
		remaining := s.policy.MaxWait - now.Sub(s.firstPending)
		if remaining < delay {
			delay = remaining
		}
	}
	if delay < 0 {
		delay = 0
	}

	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(delay, s.onTimer)
	return true
}

func (s *Scheduler) onTimer() {
	ctx, cancel := context.WithTimeout(context.Background(), s.policy.SaveTimeout)
	defer cancel()
	if err := s.run(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Auto-save failed")
	}
}

// Flush saves the pending draft now, waiting for any save in flight.
func (s *Scheduler) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()
	return s.run(ctx)
}

// Stop flushes the pending draft and rejects further submissions
func (s *Scheduler) Stop(ctx context.Context) error {
	err := s.Flush(ctx)
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	return err
}

// Discard drops the pending draft without saving it
func (s *Scheduler) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.pending = nil
	s.firstPending = time.Time{}
}

// Pending reports whether a draft is waiting to be saved
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

func (s *Scheduler) run(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-s.sem }()

	s.mu.Lock()
	d := s.pending
	s.pending = nil
	s.firstPending = time.Time{}
	skip := d != nil && s.hasSaved && Fingerprint(*d) == s.lastSaved
	s.mu.Unlock()

	if d == nil || skip {
		return nil
	}

	fp := Fingerprint(*d)
	if err := s.save(ctx, *d); err != nil {
		s.mu.Lock()
		// keep the failed draft unless a newer one arrived meanwhile
		if s.pending == nil {
			s.pending = d
			s.firstPending = s.now()
		}
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.lastSaved = fp
	s.hasSaved = true
	s.mu.Unlock()
	return nil
}
