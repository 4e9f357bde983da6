package app

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/livecart/internal/domain"
)

// --- Session repository ---

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*domain.LiveSession

	getErr        error
	markActiveErr error
	finalizeErr   error
	createFn      func(ctx context.Context, roomName, providerIngressID string) (*domain.LiveSession, error)
	finalizeCalls int
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[uuid.UUID]*domain.LiveSession)}
}

func (r *fakeSessionRepo) add(roomName, ingressID string) *domain.LiveSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := &domain.LiveSession{ID: uuid.New(), RoomName: roomName, ProviderIngressID: ingressID}
	r.sessions[s.ID] = s
	return s
}

func (r *fakeSessionRepo) snapshot(id uuid.UUID) domain.LiveSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.sessions[id]
}

func (r *fakeSessionRepo) Create(ctx context.Context, roomName, providerIngressID string) (*domain.LiveSession, error) {
	if r.createFn != nil {
		return r.createFn(ctx, roomName, providerIngressID)
	}
	r.mu.Lock()
	for _, s := range r.sessions {
		if s.ProviderIngressID == providerIngressID {
			r.mu.Unlock()
			return nil, domain.ErrDuplicateIngress
		}
	}
	r.mu.Unlock()
	return r.add(roomName, providerIngressID), nil
}

func (r *fakeSessionRepo) find(match func(*domain.LiveSession) bool) (*domain.LiveSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	for _, s := range r.sessions {
		if match(s) {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrSessionNotFound
}

func (r *fakeSessionRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.LiveSession, error) {
	return r.find(func(s *domain.LiveSession) bool { return s.ID == id })
}

func (r *fakeSessionRepo) GetByProviderIngressID(_ context.Context, ingressID string) (*domain.LiveSession, error) {
	return r.find(func(s *domain.LiveSession) bool { return s.ProviderIngressID == ingressID })
}

func (r *fakeSessionRepo) GetByRoomName(_ context.Context, roomName string) (*domain.LiveSession, error) {
	return r.find(func(s *domain.LiveSession) bool { return s.RoomName == roomName })
}

func (r *fakeSessionRepo) List(context.Context) ([]domain.LiveSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	out := make([]domain.LiveSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, *s)
	}
	return out, nil
}

func (r *fakeSessionRepo) MarkActive(_ context.Context, id uuid.UUID, startedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.markActiveErr != nil {
		return false, r.markActiveErr
	}
	s, ok := r.sessions[id]
	if !ok {
		return false, domain.ErrSessionNotFound
	}
	if s.IsActive {
		return false, nil
	}
	s.IsActive = true
	s.StartedAt = &startedAt
	return true, nil
}

func (r *fakeSessionRepo) FinalizeEnd(_ context.Context, id uuid.UUID, endedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finalizeCalls++
	if r.finalizeErr != nil {
		return false, r.finalizeErr
	}
	s, ok := r.sessions[id]
	if !ok {
		return false, domain.ErrSessionNotFound
	}
	if !s.IsActive {
		return false, nil
	}
	s.IsActive = false
	s.EndedAt = &endedAt
	s.ProviderEgressID = ""
	return true, nil
}

func (r *fakeSessionRepo) SetEgress(_ context.Context, id uuid.UUID, egressID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return domain.ErrSessionNotFound
	}
	s.ProviderEgressID = egressID
	return nil
}

func (r *fakeSessionRepo) ClearEgress(_ context.Context, id uuid.UUID, egressID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return false, domain.ErrSessionNotFound
	}
	if s.ProviderEgressID != egressID {
		return false, nil
	}
	s.ProviderEgressID = ""
	return true, nil
}

// --- Marker store ---

type fakeMarkerStore struct {
	mu      sync.Mutex
	markers map[string]time.Time

	writeErr error
	getErr   error
	clearErr error
	restores int
}

func newFakeMarkerStore() *fakeMarkerStore {
	return &fakeMarkerStore{markers: make(map[string]time.Time)}
}

func (m *fakeMarkerStore) Write(_ context.Context, ingressID string, createdAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.markers[ingressID] = createdAt
	return nil
}

func (m *fakeMarkerStore) Get(_ context.Context, ingressID string) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return time.Time{}, false, m.getErr
	}
	ts, ok := m.markers[ingressID]
	return ts, ok, nil
}

func (m *fakeMarkerStore) ClearIfMatch(_ context.Context, ingressID string, createdAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.clearErr != nil {
		return false, m.clearErr
	}
	ts, ok := m.markers[ingressID]
	if !ok || !ts.Equal(createdAt) {
		return false, nil
	}
	delete(m.markers, ingressID)
	return true, nil
}

func (m *fakeMarkerStore) Restore(_ context.Context, ingressID string, createdAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.restores++
	if _, ok := m.markers[ingressID]; !ok {
		m.markers[ingressID] = createdAt
	}
	return nil
}

func (m *fakeMarkerStore) has(ingressID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.markers[ingressID]
	return ok
}

// --- Egress gateway ---

type mockEgress struct {
	mu     sync.Mutex
	stopFn func(ctx context.Context, egressIDs ...string) error
	calls  [][]string
}

func (m *mockEgress) StopEgress(ctx context.Context, egressIDs ...string) error {
	m.mu.Lock()
	m.calls = append(m.calls, slices.Clone(egressIDs))
	m.mu.Unlock()
	if m.stopFn != nil {
		return m.stopFn(ctx, egressIDs...)
	}
	return nil
}

func (m *mockEgress) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// --- Notification bus ---

type publishedMessage struct {
	topic   string
	payload any
}

type mockBus struct {
	mu        sync.Mutex
	publishFn func(ctx context.Context, topic string, payload any) error
	published []publishedMessage
}

func (m *mockBus) Publish(ctx context.Context, topic string, payload any) error {
	if m.publishFn != nil {
		if err := m.publishFn(ctx, topic, payload); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, publishedMessage{topic: topic, payload: payload})
	return nil
}

func (m *mockBus) messages() []publishedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.published)
}

// --- Scheduler ---

type scheduledTask struct {
	due time.Time
	fn  func()
}

// manualScheduler queues tasks against a fake clock; runDue executes the ones
// whose due time has been reached, in schedule order.
type manualScheduler struct {
	clock   clockwork.Clock
	mu      sync.Mutex
	tasks   []scheduledTask
	stopped bool
}

func (s *manualScheduler) After(d time.Duration, fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return domain.ErrSchedulerStopped
	}
	s.tasks = append(s.tasks, scheduledTask{due: s.clock.Now().Add(d), fn: fn})
	return nil
}

func (s *manualScheduler) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.tasks = nil
}

func (s *manualScheduler) runDue() int {
	s.mu.Lock()
	now := s.clock.Now()
	var due, rest []scheduledTask
	for _, t := range s.tasks {
		if !t.due.After(now) {
			due = append(due, t)
		} else {
			rest = append(rest, t)
		}
	}
	s.tasks = rest
	s.mu.Unlock()

	for _, t := range due {
		t.fn()
	}
	return len(due)
}

func (s *manualScheduler) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}
