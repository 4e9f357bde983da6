package postgres

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pscheid92/livecart/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestSession(t *testing.T, repo *SessionRepo, room, ingressID string) *domain.LiveSession {
	t.Helper()
	s, err := repo.Create(context.Background(), room, ingressID)
	require.NoError(t, err)
	return s
}

func TestSessionRepo_CreateAndGet(t *testing.T) {
	repo := NewSessionRepo(setupTestDB(t))
	ctx := context.Background()

	created := createTestSession(t, repo, "main-stage", "IN_main")
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.False(t, created.IsActive)
	assert.Nil(t, created.StartedAt)
	assert.Nil(t, created.EndedAt)
	assert.Empty(t, created.ProviderEgressID)

	byID, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "IN_main", byID.ProviderIngressID)

	byIngress, err := repo.GetByProviderIngressID(ctx, "IN_main")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byIngress.ID)

	byRoom, err := repo.GetByRoomName(ctx, "main-stage")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byRoom.ID)
}

func TestSessionRepo_CreateDuplicateIngress(t *testing.T) {
	repo := NewSessionRepo(setupTestDB(t))
	createTestSession(t, repo, "main-stage", "IN_main")

	_, err := repo.Create(context.Background(), "other-room", "IN_main")
	assert.ErrorIs(t, err, domain.ErrDuplicateIngress)
}

func TestSessionRepo_NotFound(t *testing.T) {
	repo := NewSessionRepo(setupTestDB(t))
	ctx := context.Background()

	_, err := repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	_, err = repo.GetByProviderIngressID(ctx, "IN_missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	_, err = repo.GetByRoomName(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	_, err = repo.MarkActive(ctx, uuid.New(), time.Now())
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	assert.ErrorIs(t, repo.SetEgress(ctx, uuid.New(), "EG_1"), domain.ErrSessionNotFound)
}

func TestSessionRepo_MarkActiveKeepsFirstStart(t *testing.T) {
	repo := NewSessionRepo(setupTestDB(t))
	ctx := context.Background()
	s := createTestSession(t, repo, "main-stage", "IN_main")

	first := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)
	transitioned, err := repo.MarkActive(ctx, s.ID, first)
	require.NoError(t, err)
	assert.True(t, transitioned)

	transitioned, err = repo.MarkActive(ctx, s.ID, first.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, transitioned)

	got, err := repo.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)
	require.NotNil(t, got.StartedAt)
	assert.True(t, first.Equal(*got.StartedAt))
}

func TestSessionRepo_FinalizeEndIsGuarded(t *testing.T) {
	repo := NewSessionRepo(setupTestDB(t))
	ctx := context.Background()
	s := createTestSession(t, repo, "main-stage", "IN_main")
	start := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

	finalized, err := repo.FinalizeEnd(ctx, s.ID, start)
	require.NoError(t, err)
	assert.False(t, finalized, "inactive session cannot be finalized")

	_, err = repo.MarkActive(ctx, s.ID, start)
	require.NoError(t, err)
	require.NoError(t, repo.SetEgress(ctx, s.ID, "EG_1"))

	end := start.Add(time.Hour)
	finalized, err = repo.FinalizeEnd(ctx, s.ID, end)
	require.NoError(t, err)
	assert.True(t, finalized)

	finalized, err = repo.FinalizeEnd(ctx, s.ID, end.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, finalized)

	got, err := repo.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	require.NotNil(t, got.EndedAt)
	assert.True(t, end.Equal(*got.EndedAt))
	assert.Empty(t, got.ProviderEgressID)
}

func TestSessionRepo_ConcurrentFinalizeOnlyOneWins(t *testing.T) {
	repo := NewSessionRepo(setupTestDB(t))
	ctx := context.Background()
	s := createTestSession(t, repo, "main-stage", "IN_main")
	_, err := repo.MarkActive(ctx, s.ID, time.Now())
	require.NoError(t, err)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() {
			ok, err := repo.FinalizeEnd(ctx, s.ID, time.Now())
			if err == nil && ok {
				wins.Add(1)
			}
		})
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestSessionRepo_RestartKeepsLastEndedAt(t *testing.T) {
	repo := NewSessionRepo(setupTestDB(t))
	ctx := context.Background()
	s := createTestSession(t, repo, "main-stage", "IN_main")
	t0 := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

	_, err := repo.MarkActive(ctx, s.ID, t0)
	require.NoError(t, err)
	_, err = repo.FinalizeEnd(ctx, s.ID, t0.Add(time.Hour))
	require.NoError(t, err)

	transitioned, err := repo.MarkActive(ctx, s.ID, t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.True(t, transitioned)

	got, err := repo.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)
	assert.True(t, t0.Add(2*time.Hour).Equal(*got.StartedAt))
	require.NotNil(t, got.EndedAt)
	assert.True(t, t0.Add(time.Hour).Equal(*got.EndedAt))
}

func TestSessionRepo_EgressAttachDetach(t *testing.T) {
	repo := NewSessionRepo(setupTestDB(t))
	ctx := context.Background()
	s := createTestSession(t, repo, "main-stage", "IN_main")

	require.NoError(t, repo.SetEgress(ctx, s.ID, "EG_1"))

	cleared, err := repo.ClearEgress(ctx, s.ID, "EG_other")
	require.NoError(t, err)
	assert.False(t, cleared)

	cleared, err = repo.ClearEgress(ctx, s.ID, "EG_1")
	require.NoError(t, err)
	assert.True(t, cleared)

	got, err := repo.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.False(t, got.HasEgress())
}

func TestSessionRepo_ListNewestFirst(t *testing.T) {
	repo := NewSessionRepo(setupTestDB(t))
	first := createTestSession(t, repo, "room-a", "IN_a")
	second := createTestSession(t, repo, "room-b", "IN_b")

	sessions, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, second.ID, sessions[0].ID)
	assert.Equal(t, first.ID, sessions[1].ID)
}
