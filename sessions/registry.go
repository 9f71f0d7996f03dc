package sessions

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-homeserver-login/homeserver"
	"github.com/jrsteele09/go-homeserver-login/internal/errors"
)

// Registry is an in-memory map of session id to Session. A single mutex
// guards the whole map; callbacks passed to WithSession run while it is held
// and must not block.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	newID    func() string
	nowTime  func() time.Time
}

// RegistryOption defines a function type to modify the Registry instance.
type RegistryOption func(*Registry)

// WithIDGenerator replaces the uuid generator (primarily for testing)
func WithIDGenerator(newID func() string) RegistryOption {
	return func(r *Registry) {
		r.newID = newID
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) RegistryOption {
	return func(r *Registry) {
		r.nowTime = nowFunc
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(options ...RegistryOption) *Registry {
	r := &Registry{
		sessions: make(map[string]*Session),
		newID:    func() string { return uuid.New().String() },
		nowTime:  time.Now,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Insert stores conn under a freshly generated id and returns the id.
func (r *Registry) Insert(conn homeserver.Connection) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.newID()
	for r.taken(id) {
		id = r.newID()
	}
	r.store(id, conn, StateCreated)
	return id
}

// Store places conn under a caller supplied id, replacing any session that
// was stored there.
func (r *Registry) Store(id string, conn homeserver.Connection, state State) error {
	if strings.TrimSpace(id) == "" {
		return errors.Wrapf(errors.ErrMissingField, "[Registry.Store] session id")
	}
	if conn == nil {
		return errors.Wrapf(errors.ErrMissingField, "[Registry.Store] connection")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.store(id, conn, state)
	return nil
}

func (r *Registry) taken(id string) bool {
	_, ok := r.sessions[id]
	return ok || id == ""
}

func (r *Registry) store(id string, conn homeserver.Connection, state State) {
	now := r.nowTime()
	r.sessions[id] = &Session{
		ID:         id,
		Connection: conn,
		State:      state,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// WithSession runs fn with exclusive access to the session stored under id.
// It returns errors.ErrSessionNotFound if there is none.
func (r *Registry) WithSession(id string, fn func(*Session)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return errors.Wrapf(errors.ErrSessionNotFound, "[Registry.WithSession] %s", id)
	}
	fn(session)
	return nil
}

// Connection returns the connection stored under id.
func (r *Registry) Connection(id string) (homeserver.Connection, bool) {
	var conn homeserver.Connection
	if err := r.WithSession(id, func(s *Session) { conn = s.Connection }); err != nil {
		return nil, false
	}
	return conn, true
}

// Advance moves the session under id to state, provided it still holds conn.
// It reports whether the session was updated.
func (r *Registry) Advance(id string, conn homeserver.Connection, state State) bool {
	updated := false
	_ = r.WithSession(id, func(s *Session) {
		if s.Connection != conn {
			return
		}
		s.State = state
		s.UpdatedAt = r.nowTime()
		updated = true
	})
	return updated
}

// Remove deletes the session under id and reports whether one existed.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	return true
}

// Len returns the number of stored sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
