package pipeline

import (
	"context"
	"sync"

	"github.com/nl2sqlstudio/studio/internal/datasource"
)

// Manager holds the single current session and swaps it when the user
// picks another database.
type Manager struct {
	options Options

	mu      sync.RWMutex
	current *Session
}

// NewManager keeps options as the template for every session it opens.
func NewManager(options Options) *Manager {
	return &Manager{options: options}
}

// Open replaces the current session with one on options.Source.
func (m *Manager) Open(ctx context.Context) (*Session, error) {
	return m.Replace(ctx, m.options.Source)
}

func (m *Manager) Current() (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil, ErrNoSession
	}
	return m.current, nil
}

// Replace opens a session on cfg and, once it is ready, closes the previous
// one. On failure the current session is kept. Sources are opened read-only
// unless mutations are allowed.
func (m *Manager) Replace(ctx context.Context, cfg datasource.Config) (*Session, error) {
	options := m.options
	if !options.AllowMutations {
		cfg.ReadOnly = true
	}
	options.Source = cfg
	session, err := Open(ctx, options)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	previous := m.current
	m.current = session
	m.mu.Unlock()

	if previous != nil {
		if err := previous.Close(); err != nil && options.Logger != nil {
			options.Logger.Warn("close previous session failed", "error", err)
		}
	}
	return session, nil
}

// Ready reports whether a session is open and its source answers a ping.
func (m *Manager) Ready(ctx context.Context) error {
	session, err := m.Current()
	if err != nil {
		return err
	}
	return session.Ping(ctx)
}

func (m *Manager) Close() error {
	m.mu.Lock()
	current := m.current
	m.current = nil
	m.mu.Unlock()
	if current == nil {
		return nil
	}
	return current.Close()
}
