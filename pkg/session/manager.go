package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/codeflow/internal/logging"
	"github.com/aretw0/codeflow/pkg/domain"
	"github.com/aretw0/codeflow/pkg/ports"
	"github.com/aretw0/codeflow/pkg/replay"
	"github.com/google/uuid"
)

// DefaultLockTTL bounds how long a distributed lock survives a crashed holder.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates replay sessions over stored recordings, serializing
// every read-modify-write of a recording's cursor.
// It uses reference counting to garbage collect unused locks.
type Manager struct {
	store ports.RecordingStore

	mu    sync.Mutex
	locks map[string]*lockEntry

	locker  ports.DistributedLocker
	lockTTL time.Duration
	logger  *slog.Logger
	replay  []replay.Option
	newID   func() string
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL overrides DefaultLockTTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithReplayOptions configures the step model used for every Step.
func WithReplayOptions(opts ...replay.Option) Option {
	return func(m *Manager) {
		m.replay = opts
	}
}

// WithIDGenerator replaces the UUID generator of Create.
func WithIDGenerator(fn func() string) Option {
	return func(m *Manager) {
		if fn != nil {
			m.newID = fn
		}
	}
}

// NewManager creates a new session manager over store.
func NewManager(store ports.RecordingStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// View is the replay state at one cursor position.
type View struct {
	RecordingID string                  `json:"recordingId"`
	Cursor      int                     `json:"cursor"`
	Total       int                     `json:"total"`
	AtEnd       bool                    `json:"atEnd"`
	Moved       bool                    `json:"moved"`
	Event       *domain.TraceEvent      `json:"event"`
	Line        int                     `json:"line"`
	Variables   domain.VariableSnapshot `json:"variables"`
	CallStack   []domain.CallFrame      `json:"callStack"`
	Array       *domain.ArraySnapshot   `json:"array,omitempty"`
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(id) after unlocking.
func (m *Manager) acquire(id string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[id]
	if !exists {
		entry = &lockEntry{}
		m.locks[id] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[id]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, id)
	}
}

// Create stores result as a new recording positioned before the first event.
func (m *Manager) Create(ctx context.Context, source string, breakpoints []int, result *domain.TraceResult) (*domain.Recording, error) {
	if result == nil {
		return nil, errors.New("nil trace result")
	}
	rec := domain.NewRecording(m.newID(), source, breakpoints, *result)
	err := m.WithLock(ctx, rec.ID, func(ctx context.Context) error {
		return m.store.Save(ctx, rec)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save recording: %w", err)
	}
	m.logger.Debug("recording created", "recording_id", rec.ID, "events", len(rec.Result.Events))
	return rec, nil
}

// Load retrieves a recording.
func (m *Manager) Load(ctx context.Context, id string) (*domain.Recording, error) {
	var rec *domain.Recording
	err := m.WithLock(ctx, id, func(ctx context.Context) error {
		var err error
		rec, err = m.store.Load(ctx, id)
		return err
	})
	return rec, err
}

// Delete removes a recording and its session.
func (m *Manager) Delete(ctx context.Context, id string) error {
	return m.WithLock(ctx, id, func(ctx context.Context) error {
		return m.store.Delete(ctx, id)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying recording store.
func (m *Manager) Store() ports.RecordingStore {
	return m.store
}

// View returns the replay state at the stored cursor without moving it.
func (m *Manager) View(ctx context.Context, id string) (*View, error) {
	var view *View
	err := m.WithLock(ctx, id, func(ctx context.Context) error {
		rec, err := m.store.Load(ctx, id)
		if err != nil {
			return err
		}
		model := replay.New(rec.Result.Events, m.replay...)
		model.Seek(rec.Cursor)
		view = newView(rec.ID, model, false)
		return nil
	})
	return view, err
}

// Step applies action to the session of recording id and persists the new cursor.
// Unknown actions fail with domain.ErrUnknownAction and leave the cursor unchanged.
func (m *Manager) Step(ctx context.Context, id string, action domain.StepAction) (*View, error) {
	var view *View
	err := m.WithLock(ctx, id, func(ctx context.Context) error {
		rec, err := m.store.Load(ctx, id)
		if err != nil {
			return err
		}
		model := replay.New(rec.Result.Events, m.replay...)
		model.Seek(rec.Cursor)

		moved, err := model.Apply(action)
		if err != nil {
			return fmt.Errorf("%w: %q", err, action)
		}
		if moved {
			rec.Cursor = model.Cursor()
			if err := m.store.Save(ctx, rec); err != nil {
				return fmt.Errorf("failed to save cursor: %w", err)
			}
		}
		view = newView(rec.ID, model, moved)
		return nil
	})
	return view, err
}

func newView(id string, model *replay.Model, moved bool) *View {
	v := &View{
		RecordingID: id,
		Cursor:      model.Cursor(),
		Total:       model.Len(),
		AtEnd:       model.AtEnd(),
		Moved:       moved,
		Line:        model.CurrentLine(),
		Variables:   model.CurrentVariables(),
		CallStack:   model.CurrentCallStack(),
	}
	if ev, ok := model.Current(); ok {
		v.Event = &ev
	}
	if arr, ok := model.CurrentArray(); ok {
		v.Array = &arr
	}
	return v
}

// WithLock executes a function while holding the lock for the recording.
func (m *Manager) WithLock(ctx context.Context, id string, fn func(context.Context) error) error {
	entry := m.acquire(id)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(id)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, id, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"recording_id", id,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
