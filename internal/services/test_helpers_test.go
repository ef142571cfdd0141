package services

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/BradenHooton/warden/internal/config"
	"github.com/BradenHooton/warden/internal/models"
	pkglogger "github.com/BradenHooton/warden/pkg/logger"
)

var testEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func discardAuditLogger() *pkglogger.AuditLogger {
	return pkglogger.NewAuditLogger(discardLogger())
}

// fakeClock is a manually advanced time source
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: testEpoch}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// MemoryAttemptRepository is an in-memory AttemptRepository
type MemoryAttemptRepository struct {
	mu       sync.Mutex
	attempts []models.FailedAttempt
	nextID   int64
	Err      error
}

func NewMemoryAttemptRepository() *MemoryAttemptRepository {
	return &MemoryAttemptRepository{}
}

func (r *MemoryAttemptRepository) Insert(ctx context.Context, identity, source string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insertLocked(identity, source, at)
}

func (r *MemoryAttemptRepository) insertLocked(identity, source string, at time.Time) error {
	if r.Err != nil {
		return r.Err
	}
	r.nextID++
	r.attempts = append(r.attempts, models.FailedAttempt{ID: r.nextID, Identity: identity, Source: source, AttemptedAt: at})
	return nil
}

func (r *MemoryAttemptRepository) ListBetween(ctx context.Context, identity string, from, to time.Time) ([]models.FailedAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	return r.betweenLocked(identity, from, to), nil
}

func (r *MemoryAttemptRepository) betweenLocked(identity string, from, to time.Time) []models.FailedAttempt {
	out := []models.FailedAttempt{}
	for _, a := range r.attempts {
		if a.Identity == identity && !a.AttemptedAt.Before(from) && !a.AttemptedAt.After(to) {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AttemptedAt.Before(out[j].AttemptedAt) })
	return out
}

func (r *MemoryAttemptRepository) InsertAndCount(ctx context.Context, identity, source string, at, from time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.insertLocked(identity, source, at); err != nil {
		return 0, err
	}
	return len(r.betweenLocked(identity, from, at)), nil
}

// Sources returns the recorded source of every attempt for identity
func (r *MemoryAttemptRepository) Sources(identity string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, a := range r.attempts {
		if a.Identity == identity {
			out = append(out, a.Source)
		}
	}
	return out
}

// MemoryLockoutRepository is an in-memory LockoutRepository
type MemoryLockoutRepository struct {
	mu       sync.Mutex
	records  map[string]models.LockoutRecord
	counters map[string]int
	cleared  map[string]time.Time
	Err      error
	// GetDelay widens the gap between reading and writing a lock
	GetDelay time.Duration
}

func NewMemoryLockoutRepository() *MemoryLockoutRepository {
	return &MemoryLockoutRepository{
		records:  make(map[string]models.LockoutRecord),
		counters: make(map[string]int),
		cleared:  make(map[string]time.Time),
	}
}

func (r *MemoryLockoutRepository) Get(ctx context.Context, identity string) (*models.LockoutRecord, error) {
	r.mu.Lock()
	rec, ok := r.records[identity]
	err, delay := r.Err, r.GetDelay
	r.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.ErrNotFound
	}
	return &rec, nil
}

func (r *MemoryLockoutRepository) CreateLock(ctx context.Context, identity string, failedCount int, lockedAt time.Time, durationFor func(int) time.Duration) (*models.LockoutRecord, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, false, r.Err
	}
	if existing, ok := r.records[identity]; ok && existing.UnlockAt.After(lockedAt) {
		return &existing, false, nil
	}
	r.counters[identity]++
	count := r.counters[identity]
	rec := models.LockoutRecord{
		Identity:           identity,
		LockedAt:           lockedAt,
		UnlockAt:           lockedAt.Add(durationFor(count)),
		FailedAttemptCount: failedCount,
		LockoutCount:       count,
	}
	r.records[identity] = rec
	return &rec, true, nil
}

func (r *MemoryLockoutRepository) DeleteIfExpired(ctx context.Context, identity string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return false, r.Err
	}
	rec, ok := r.records[identity]
	if !ok || !rec.IsExpired(now) {
		return false, nil
	}
	delete(r.records, identity)
	return true, nil
}

func (r *MemoryLockoutRepository) Clear(ctx context.Context, identity string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	delete(r.records, identity)
	r.counters[identity] = 0
	r.cleared[identity] = at
	return nil
}

func (r *MemoryLockoutRepository) ClearedAt(ctx context.Context, identity string) (time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return time.Time{}, r.Err
	}
	return r.cleared[identity], nil
}

// Has reports whether a lock record exists for identity
func (r *MemoryLockoutRepository) Has(identity string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.records[identity]
	return ok
}

// MemorySecurityQuestionRepository is an in-memory SecurityQuestionRepository
type MemorySecurityQuestionRepository struct {
	mu        sync.Mutex
	questions map[string][]models.SecurityQuestion
	Err       error
}

func NewMemorySecurityQuestionRepository() *MemorySecurityQuestionRepository {
	return &MemorySecurityQuestionRepository{questions: make(map[string][]models.SecurityQuestion)}
}

func (r *MemorySecurityQuestionRepository) ReplaceAll(ctx context.Context, identity string, questions []models.SecurityQuestion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.questions[identity] = append([]models.SecurityQuestion(nil), questions...)
	return nil
}

func (r *MemorySecurityQuestionRepository) ListByIdentity(ctx context.Context, identity string) ([]models.SecurityQuestion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	return append([]models.SecurityQuestion(nil), r.questions[identity]...), nil
}

// MockIdentityStore implements IdentityStore for testing
type MockIdentityStore struct {
	LookupFunc func(ctx context.Context, email string) (*models.Identity, error)
}

func (m *MockIdentityStore) Lookup(ctx context.Context, email string) (*models.Identity, error) {
	if m.LookupFunc != nil {
		return m.LookupFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

// MockCredentialProvider implements CredentialProvider for testing
type MockCredentialProvider struct {
	AuthenticateFunc     func(ctx context.Context, email, password string) (*models.Identity, error)
	UpdateCredentialFunc func(ctx context.Context, identity, newPassword string) error

	mu          sync.Mutex
	UpdateCalls int
}

func (m *MockCredentialProvider) Authenticate(ctx context.Context, email, password string) (*models.Identity, error) {
	if m.AuthenticateFunc != nil {
		return m.AuthenticateFunc(ctx, email, password)
	}
	return nil, models.ErrUnauthorized
}

func (m *MockCredentialProvider) UpdateCredential(ctx context.Context, identity, newPassword string) error {
	m.mu.Lock()
	m.UpdateCalls++
	m.mu.Unlock()
	if m.UpdateCredentialFunc != nil {
		return m.UpdateCredentialFunc(ctx, identity, newPassword)
	}
	return nil
}

// MockNotifier implements Notifier for testing
type MockNotifier struct {
	NotifyLockoutFunc         func(ctx context.Context, identity string, unlockAt time.Time) error
	NotifyPasswordChangedFunc func(ctx context.Context, identity string) error

	mu              sync.Mutex
	Lockouts        []string
	PasswordChanges []string
}

func (m *MockNotifier) NotifyLockout(ctx context.Context, identity string, unlockAt time.Time) error {
	m.mu.Lock()
	m.Lockouts = append(m.Lockouts, identity)
	m.mu.Unlock()
	if m.NotifyLockoutFunc != nil {
		return m.NotifyLockoutFunc(ctx, identity, unlockAt)
	}
	return nil
}

func (m *MockNotifier) NotifyPasswordChanged(ctx context.Context, identity string) error {
	m.mu.Lock()
	m.PasswordChanges = append(m.PasswordChanges, identity)
	m.mu.Unlock()
	if m.NotifyPasswordChangedFunc != nil {
		return m.NotifyPasswordChangedFunc(ctx, identity)
	}
	return nil
}

// MockEventPublisher records published events
type MockEventPublisher struct {
	PublishFunc func(ctx context.Context, event models.SecurityEvent) error

	mu     sync.Mutex
	Events []models.SecurityEvent
}

func (m *MockEventPublisher) Publish(ctx context.Context, event models.SecurityEvent) error {
	m.mu.Lock()
	m.Events = append(m.Events, event)
	m.mu.Unlock()
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, event)
	}
	return nil
}

// Types returns the types of the published events in order
func (m *MockEventPublisher) Types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.Events))
	for _, e := range m.Events {
		out = append(out, e.Type)
	}
	return out
}

// lockoutFixture wires a LockoutService over in-memory repositories and a fake clock
type lockoutFixture struct {
	clock    *fakeClock
	attempts *MemoryAttemptRepository
	locks    *MemoryLockoutRepository
	notifier *MockNotifier
	events   *MockEventPublisher
	ledger   *AttemptLedger
	service  *LockoutService
}

func newLockoutFixture() *lockoutFixture {
	f := &lockoutFixture{
		clock:    newFakeClock(),
		attempts: NewMemoryAttemptRepository(),
		locks:    NewMemoryLockoutRepository(),
		notifier: &MockNotifier{},
		events:   &MockEventPublisher{},
	}
	f.ledger = NewAttemptLedger(f.attempts, f.clock.Now)
	f.service = NewLockoutService(
		f.ledger,
		f.locks,
		config.DefaultLockoutConfig(),
		Sinks{Notifier: f.notifier, Events: f.events},
		discardLogger(),
		discardAuditLogger(),
	)
	f.service.SetClock(f.clock.Now)
	return f
}

// failN registers n failures for identity and returns the last status
func (f *lockoutFixture) failN(ctx context.Context, identity string, n int) (models.LockStatus, error) {
	var status models.LockStatus
	var err error
	for i := 0; i < n; i++ {
		status, err = f.service.RegisterFailure(ctx, identity, models.AttemptSourceLogin)
		if err != nil {
			return status, err
		}
	}
	return status, nil
}
