// Package refreshtest provides a conformance suite that every refresh.Store
// implementation runs from its own tests.
package refreshtest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/credcore/internal"
	"github.com/MrEthical07/credcore/refresh"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) refresh.Store

// NewRecord returns an unused record for subject created at now.
func NewRecord(t *testing.T, subject string, now time.Time, ttl time.Duration) refresh.Record {
	t.Helper()
	value, err := internal.NewRefreshValue(internal.MinRefreshValueSize)
	require.NoError(t, err)
	return refresh.Record{
		ID:        uuid.New(),
		Value:     value,
		SubjectID: subject,
		FamilyID:  uuid.New(),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// Run executes the store contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("CreateAndFind", func(t *testing.T) { testCreateAndFind(t, newStore(t)) })
	t.Run("CreateConflict", func(t *testing.T) { testCreateConflict(t, newStore(t)) })
	t.Run("FindUnknown", func(t *testing.T) { testFindUnknown(t, newStore(t)) })
	t.Run("MarkUsedCompareAndSet", func(t *testing.T) { testMarkUsed(t, newStore(t)) })
	t.Run("MarkUsedConcurrentSingleWinner", func(t *testing.T) { testMarkUsedConcurrent(t, newStore(t)) })
	t.Run("MarkRevokedIdempotent", func(t *testing.T) { testMarkRevoked(t, newStore(t)) })
	t.Run("RevokeAllForSubject", func(t *testing.T) { testRevokeAll(t, newStore(t)) })
	t.Run("RevokeAllCutoff", func(t *testing.T) { testRevokeAllCutoff(t, newStore(t)) })
	t.Run("MarkUsedRefusesRevoked", func(t *testing.T) { testMarkUsedRevoked(t, newStore(t)) })
	t.Run("CreateAfterSweepCutoff", func(t *testing.T) { testCreateAfterSweep(t, newStore(t)) })
	t.Run("RotateRacingSweep", func(t *testing.T) { testRotateRacingSweep(t, newStore) })
	t.Run("IssueInitialRacingSweep", func(t *testing.T) { testIssueRacingSweep(t, newStore(t)) })
}

func now() time.Time {
	// Second precision keeps comparisons stable across backends.
	return time.Now().UTC().Truncate(time.Second)
}

func testCreateAndFind(t *testing.T, s refresh.Store) {
	ctx := context.Background()
	rec := NewRecord(t, "user-1", now(), time.Hour)
	require.NoError(t, s.Create(ctx, rec))

	got, err := s.FindByValue(ctx, rec.Value)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.Value, got.Value)
	assert.Equal(t, rec.SubjectID, got.SubjectID)
	assert.Equal(t, rec.FamilyID, got.FamilyID)
	assert.True(t, rec.CreatedAt.Equal(got.CreatedAt), "created_at %v != %v", rec.CreatedAt, got.CreatedAt)
	assert.True(t, rec.ExpiresAt.Equal(got.ExpiresAt), "expires_at %v != %v", rec.ExpiresAt, got.ExpiresAt)
	assert.False(t, got.Used)
	assert.Nil(t, got.UsedAt)
	assert.False(t, got.Revoked)
	assert.Nil(t, got.RevokedAt)
}

func testCreateConflict(t *testing.T, s refresh.Store) {
	ctx := context.Background()
	rec := NewRecord(t, "user-1", now(), time.Hour)
	require.NoError(t, s.Create(ctx, rec))

	dup := NewRecord(t, "user-2", now(), time.Hour)
	dup.Value = rec.Value
	err := s.Create(ctx, dup)
	assert.True(t, errors.Is(err, refresh.ErrConflict), "expected ErrConflict, got %v", err)

	got, err := s.FindByValue(ctx, rec.Value)
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.SubjectID, "conflicting create must not overwrite")
}

func testFindUnknown(t *testing.T, s refresh.Store) {
	ctx := context.Background()
	_, err := s.FindByValue(ctx, "does-not-exist")
	assert.True(t, errors.Is(err, refresh.ErrNotFound), "expected ErrNotFound, got %v", err)

	_, err = s.MarkUsed(ctx, "does-not-exist", now())
	assert.True(t, errors.Is(err, refresh.ErrNotFound), "expected ErrNotFound, got %v", err)

	err = s.MarkRevoked(ctx, "does-not-exist", now())
	assert.True(t, errors.Is(err, refresh.ErrNotFound), "expected ErrNotFound, got %v", err)

	n, err := s.RevokeAllForSubject(ctx, "nobody", now())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func testMarkUsed(t *testing.T, s refresh.Store) {
	ctx := context.Background()
	at := now()
	rec := NewRecord(t, "user-1", at, time.Hour)
	require.NoError(t, s.Create(ctx, rec))

	swapped, err := s.MarkUsed(ctx, rec.Value, at)
	require.NoError(t, err)
	assert.True(t, swapped)

	swapped, err = s.MarkUsed(ctx, rec.Value, at.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, swapped, "second MarkUsed must not swap")

	got, err := s.FindByValue(ctx, rec.Value)
	require.NoError(t, err)
	assert.True(t, got.Used)
	require.NotNil(t, got.UsedAt)
	assert.True(t, got.UsedAt.Equal(at), "UsedAt must keep the first timestamp, got %v", got.UsedAt)
}

func testMarkUsedConcurrent(t *testing.T, s refresh.Store) {
	ctx := context.Background()
	rec := NewRecord(t, "user-1", now(), time.Hour)
	require.NoError(t, s.Create(ctx, rec))

	const workers = 16
	var (
		wg      sync.WaitGroup
		winners atomic.Int32
		errs    atomic.Int32
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			swapped, err := s.MarkUsed(ctx, rec.Value, time.Now())
			if err != nil {
				errs.Add(1)
				return
			}
			if swapped {
				winners.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Zero(t, errs.Load())
	assert.Equal(t, int32(1), winners.Load(), "exactly one MarkUsed must win")
}

func testMarkRevoked(t *testing.T, s refresh.Store) {
	ctx := context.Background()
	at := now()
	rec := NewRecord(t, "user-1", at, time.Hour)
	require.NoError(t, s.Create(ctx, rec))

	require.NoError(t, s.MarkRevoked(ctx, rec.Value, at))
	require.NoError(t, s.MarkRevoked(ctx, rec.Value, at.Add(time.Minute)))

	got, err := s.FindByValue(ctx, rec.Value)
	require.NoError(t, err)
	assert.True(t, got.Revoked)
	require.NotNil(t, got.RevokedAt)
	assert.True(t, got.RevokedAt.Equal(at), "RevokedAt must keep the first timestamp, got %v", got.RevokedAt)
	assert.False(t, got.Used, "revocation must not mark used")
}

func testRevokeAll(t *testing.T, s refresh.Store) {
	ctx := context.Background()
	at := now()

	a1 := NewRecord(t, "user-a", at, time.Hour)
	a2 := NewRecord(t, "user-a", at, time.Hour)
	a3 := NewRecord(t, "user-a", at, time.Hour)
	b1 := NewRecord(t, "user-b", at, time.Hour)
	for _, rec := range []refresh.Record{a1, a2, a3, b1} {
		require.NoError(t, s.Create(ctx, rec))
	}
	require.NoError(t, s.MarkRevoked(ctx, a3.Value, at))

	n, err := s.RevokeAllForSubject(ctx, "user-a", at.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, 2, n, "already revoked records are not counted")

	for _, v := range []string{a1.Value, a2.Value, a3.Value} {
		got, err := s.FindByValue(ctx, v)
		require.NoError(t, err)
		assert.True(t, got.Revoked)
		assert.NotNil(t, got.RevokedAt)
	}
	got, err := s.FindByValue(ctx, b1.Value)
	require.NoError(t, err)
	assert.False(t, got.Revoked, "other subjects must be untouched")

	n, err = s.RevokeAllForSubject(ctx, "user-a", at.Add(2*time.Second))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func testRevokeAllCutoff(t *testing.T, s refresh.Store) {
	ctx := context.Background()
	at := now()

	before := NewRecord(t, "user-a", at.Add(-time.Minute), time.Hour)
	same := NewRecord(t, "user-a", at, time.Hour)
	after := NewRecord(t, "user-a", at.Add(time.Minute), time.Hour)
	for _, rec := range []refresh.Record{before, same, after} {
		require.NoError(t, s.Create(ctx, rec))
	}

	n, err := s.RevokeAllForSubject(ctx, "user-a", at)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for v, wantRevoked := range map[string]bool{before.Value: true, same.Value: true, after.Value: false} {
		got, err := s.FindByValue(ctx, v)
		require.NoError(t, err)
		assert.Equal(t, wantRevoked, got.Revoked)
	}
}

func testMarkUsedRevoked(t *testing.T, s refresh.Store) {
	ctx := context.Background()
	at := now()
	rec := NewRecord(t, "user-1", at, time.Hour)
	require.NoError(t, s.Create(ctx, rec))
	require.NoError(t, s.MarkRevoked(ctx, rec.Value, at))

	swapped, err := s.MarkUsed(ctx, rec.Value, at)
	require.NoError(t, err)
	assert.False(t, swapped, "MarkUsed must not swap a revoked record")

	got, err := s.FindByValue(ctx, rec.Value)
	require.NoError(t, err)
	assert.False(t, got.Used)
	assert.Nil(t, got.UsedAt)
}

func testCreateAfterSweep(t *testing.T, s refresh.Store) {
	ctx := context.Background()
	at := now()

	_, err := s.RevokeAllForSubject(ctx, "user-a", at)
	require.NoError(t, err)
	// An older cutoff never lowers the watermark.
	_, err = s.RevokeAllForSubject(ctx, "user-a", at.Add(-time.Hour))
	require.NoError(t, err)

	for _, created := range []time.Time{at.Add(-time.Minute), at} {
		rec := NewRecord(t, "user-a", created, time.Hour)
		err := s.Create(ctx, rec)
		assert.True(t, errors.Is(err, refresh.ErrSubjectRevoked), "created %v: expected ErrSubjectRevoked, got %v", created, err)
		_, err = s.FindByValue(ctx, rec.Value)
		assert.True(t, errors.Is(err, refresh.ErrNotFound), "rejected record must not be stored, got %v", err)
	}

	later := NewRecord(t, "user-a", at.Add(time.Second), time.Hour)
	require.NoError(t, s.Create(ctx, later))
	other := NewRecord(t, "user-b", at.Add(-time.Minute), time.Hour)
	require.NoError(t, s.Create(ctx, other), "cutoffs are per subject")
}

// hookedStore runs each hook once, right before the matching call, and
// remembers every value it stored.
type hookedStore struct {
	refresh.Store
	beforeCreate, beforeMarkUsed func()

	mu      sync.Mutex
	created []string
}

func (h *hookedStore) Create(ctx context.Context, rec refresh.Record) error {
	if fn := h.beforeCreate; fn != nil {
		h.beforeCreate = nil
		fn()
	}
	err := h.Store.Create(ctx, rec)
	if err == nil {
		h.mu.Lock()
		h.created = append(h.created, rec.Value)
		h.mu.Unlock()
	}
	return err
}

func (h *hookedStore) MarkUsed(ctx context.Context, value string, at time.Time) (bool, error) {
	if fn := h.beforeMarkUsed; fn != nil {
		h.beforeMarkUsed = nil
		fn()
	}
	return h.Store.MarkUsed(ctx, value, at)
}

func testRotateRacingSweep(t *testing.T, newStore Factory) {
	for _, point := range []string{"before replacement is stored", "before presented value is consumed"} {
		t.Run(point, func(t *testing.T) {
			ctx := context.Background()
			h := &hookedStore{Store: newStore(t)}
			r, err := refresh.NewRotator(h, refresh.DefaultConfig())
			require.NoError(t, err)

			first, err := r.IssueInitial(ctx, "user-1")
			require.NoError(t, err)

			sweep := func() {
				_, err := h.Store.RevokeAllForSubject(ctx, "user-1", time.Now())
				assert.NoError(t, err)
			}
			if point == "before replacement is stored" {
				h.beforeCreate = sweep
			} else {
				h.beforeMarkUsed = sweep
			}

			out := r.Rotate(ctx, first.Value, "user-1")
			assert.Equal(t, refresh.OutcomeInvalid, out.Kind)
			assert.Nil(t, out.Next, "no replacement may be handed out")

			got, err := h.FindByValue(ctx, first.Value)
			require.NoError(t, err)
			assert.True(t, got.Revoked)
			assert.False(t, got.Used, "revoked token must not be consumed")

			h.mu.Lock()
			created := append([]string(nil), h.created...)
			h.mu.Unlock()
			for _, v := range created {
				got, err := h.FindByValue(ctx, v)
				require.NoError(t, err)
				assert.True(t, got.Revoked, "every stored token of the subject must be revoked")
			}
		})
	}
}

func testIssueRacingSweep(t *testing.T, s refresh.Store) {
	ctx := context.Background()
	h := &hookedStore{Store: s}
	r, err := refresh.NewRotator(h, refresh.DefaultConfig())
	require.NoError(t, err)

	var cutoff time.Time
	h.beforeCreate = func() {
		cutoff = time.Now()
		_, err := h.Store.RevokeAllForSubject(ctx, "user-1", cutoff)
		assert.NoError(t, err)
	}

	rec, err := r.IssueInitial(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, rec.CreatedAt.After(cutoff), "surviving token %v must postdate the cutoff %v", rec.CreatedAt, cutoff)

	got, err := h.FindByValue(ctx, rec.Value)
	require.NoError(t, err)
	assert.False(t, got.Revoked)
}
