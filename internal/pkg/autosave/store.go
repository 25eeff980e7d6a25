package autosave

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// FingerprintStore remembers the last saved draft fingerprint per owner
type FingerprintStore interface {
	Get(ctx context.Context, ownerID int64) (fp uint64, ok bool, err error)
	Set(ctx context.Context, ownerID int64, fp uint64) error
	Forget(ctx context.Context, ownerID int64) error
}

type memoryEntry struct {
	fp      uint64
	expires time.Time
}

// MemoryFingerprintStore keeps fingerprints in process
type MemoryFingerprintStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[int64]memoryEntry
}

// NewMemoryFingerprintStore creates an in-process store. ttl <= 0 keeps
// entries forever.
func NewMemoryFingerprintStore(ttl time.Duration) *MemoryFingerprintStore {
	return &MemoryFingerprintStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[int64]memoryEntry),
	}
}

func (s *MemoryFingerprintStore) Get(_ context.Context, ownerID int64) (uint64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[ownerID]
	if !ok {
		return 0, false, nil
	}
	if !e.expires.IsZero() && s.now().After(e.expires) {
		delete(s.entries, ownerID)
		return 0, false, nil
	}
	return e.fp, true, nil
}

func (s *MemoryFingerprintStore) Set(_ context.Context, ownerID int64, fp uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := memoryEntry{fp: fp}
	if s.ttl > 0 {
		e.expires = s.now().Add(s.ttl)
	}
	s.entries[ownerID] = e
	return nil
}

func (s *MemoryFingerprintStore) Forget(_ context.Context, ownerID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, ownerID)
	return nil
}

const redisKeyPrefix = "cgpa:autosave:fp:"

// RedisFingerprintStore shares fingerprints across API instances
type RedisFingerprintStore struct {
	client goredis.UniversalClient
	ttl    time.Duration
}

// NewRedisFingerprintStore creates a Redis backed store
func NewRedisFingerprintStore(client goredis.UniversalClient, ttl time.Duration) *RedisFingerprintStore {
	return &RedisFingerprintStore{client: client, ttl: ttl}
}

func redisKey(ownerID int64) string {
	return redisKeyPrefix + strconv.FormatInt(ownerID, 10)
}

func (s *RedisFingerprintStore) Get(ctx context.Context, ownerID int64) (uint64, bool, error) {
	v, err := s.client.Get(ctx, redisKey(ownerID)).Result()
	if errors.Is(err, goredis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("redis get fingerprint: %w", err)
	}
	fp, err := strconv.ParseUint(v, 16, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse fingerprint %q: %w", v, err)
	}
	return fp, true, nil
}

func (s *RedisFingerprintStore) Set(ctx context.Context, ownerID int64, fp uint64) error {
	if err := s.client.Set(ctx, redisKey(ownerID), strconv.FormatUint(fp, 16), s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set fingerprint: %w", err)
	}
	return nil
}

func (s *RedisFingerprintStore) Forget(ctx context.Context, ownerID int64) error {
	if err := s.client.Del(ctx, redisKey(ownerID)).Err(); err != nil {
		return fmt.Errorf("redis forget fingerprint: %w", err)
	}
	return nil
}
