package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nrednav/cuid2"
)

// Data is the session payload. Category values are map[string]any.
type Data map[string]any

// ErrNotCategory is returned by SetIn when the category key already holds a
// plain value.
var ErrNotCategory = errors.New("session key is not a category")

// Session is the state bound to one request. Mutations stay in memory until
// Manager.Commit.
type Session struct {
	id        string
	data      Data
	store     Store
	fresh     bool
	destroyed bool
}

// ID returns the current id. After Destroy it is the id that was destroyed.
func (s *Session) ID() string { return s.id }

// Data returns the live payload.
func (s *Session) Data() Data { return s.data }

// IsNew reports whether the session had no stored record when loaded.
func (s *Session) IsNew() bool { return s.fresh }

// Destroyed reports whether Destroy has been called.
func (s *Session) Destroyed() bool { return s.destroyed }

// Set writes a root level value.
func (s *Session) Set(name string, value any) {
	if name == "" {
		return
	}
	s.data[name] = value
}

// SetIn writes name inside category, creating the category first when it is
// absent. An existing category keeps its other entries.
func (s *Session) SetIn(category, name string, value any) error {
	if category == "" {
		s.Set(name, value)
		return nil
	}
	existing, ok := s.data[category]
	if !ok {
		existing = map[string]any{}
		s.data[category] = existing
	}
	m, ok := existing.(map[string]any)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotCategory, category)
	}
	if name != "" {
		m[name] = value
	}
	return nil
}

// Regenerate moves the data to a new id and removes the old record.
func (s *Session) Regenerate(ctx context.Context) error {
	old := s.id
	if err := s.store.Delete(ctx, old); err != nil {
		return err
	}
	s.id = newID()
	s.fresh = true
	s.destroyed = false
	return nil
}

// Destroy removes the stored record and clears the in-memory data.
func (s *Session) Destroy(ctx context.Context) error {
	if err := s.store.Delete(ctx, s.id); err != nil {
		return err
	}
	s.data = Data{}
	s.destroyed = true
	return nil
}

// Reload replaces the in-memory data with the stored record, discarding
// unsaved changes. A session without a record reloads as empty.
func (s *Session) Reload(ctx context.Context) error {
	raw, err := s.store.Get(ctx, s.id)
	if errors.Is(err, ErrNotFound) {
		s.data = Data{}
		return nil
	}
	if err != nil {
		return err
	}
	d, err := decode(raw)
	if err != nil {
		return fmt.Errorf("decode session: %w", err)
	}
	s.data = d
	return nil
}

// JSON renders the payload indented by four spaces.
func (s *Session) JSON() string {
	b, err := json.MarshalIndent(s.data, "", "    ")
	if err != nil {
		return "{}"
	}
	return string(b)
}

func newID() string {
	return cuid2.Generate()
}

// Options configure the session cookie and record lifetime.
type Options struct {
	CookieName  string
	CookiePath  string
	IdleTimeout time.Duration
	Secure      bool
}

// Manager loads sessions from request cookies and commits them back.
type Manager struct {
	store Store
	opts  Options
}

func NewManager(store Store, opts Options) *Manager {
	if opts.CookieName == "" {
		opts.CookieName = "lo1.sid"
	}
	if opts.CookiePath == "" {
		opts.CookiePath = "/"
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 30 * time.Minute
	}
	return &Manager{store: store, opts: opts}
}

// Store returns the backing store.
func (m *Manager) Store() Store { return m.store }

// CookieName returns the name of the session id cookie.
func (m *Manager) CookieName() string { return m.opts.CookieName }

// Load returns the session named by the request cookie, or a new one when
// the cookie is missing, malformed or points at no record.
func (m *Manager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	s := &Session{store: m.store}
	if c, err := r.Cookie(m.opts.CookieName); err == nil && cuid2.IsCuid(c.Value) {
		raw, err := m.store.Get(ctx, c.Value)
		switch {
		case err == nil:
			d, err := decode(raw)
			if err != nil {
				return nil, fmt.Errorf("decode session: %w", err)
			}
			s.id, s.data = c.Value, d
			return s, nil
		case !errors.Is(err, ErrNotFound):
			return nil, err
		}
	}
	s.id = newID()
	s.data = Data{}
	s.fresh = true
	return s, nil
}

// Commit persists s and writes the cookie, or clears the cookie when s was
// destroyed. It must run before the response body is written.
func (m *Manager) Commit(ctx context.Context, w http.ResponseWriter, s *Session) error {
	if s.destroyed {
		http.SetCookie(w, &http.Cookie{
			Name:     m.opts.CookieName,
			Value:    "",
			Path:     m.opts.CookiePath,
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   m.opts.Secure,
			SameSite: http.SameSiteLaxMode,
		})
		return nil
	}
	raw, err := encode(s.data)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := m.store.Set(ctx, s.id, raw, m.opts.IdleTimeout); err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    s.id,
		Path:     m.opts.CookiePath,
		MaxAge:   int(m.opts.IdleTimeout / time.Second),
		Expires:  time.Now().Add(m.opts.IdleTimeout),
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	s.fresh = false
	return nil
}
