package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/asakaida/kanmon/internal/repositories"
)

// NotifyChannel is the PostgreSQL channel the permission_changes trigger notifies on
const NotifyChannel = "permissions_changed"

// SnapshotManager tracks the latest permission change so cached abilities can be keyed by it.
// It uses PostgreSQL LISTEN/NOTIFY for instant synchronization across instances and
// falls back to reading the change log once the token is older than refreshTTL.
type SnapshotManager struct {
	mu           sync.RWMutex
	currentToken string
	changes      repositories.ChangeLog
	refreshTTL   time.Duration
	lastRefresh  time.Time
	listener     *pq.Listener
	connStr      string
	logger       *logrus.Logger
	onChange     []func(token string)
	stopCh       chan struct{}
	stopped      bool
}

// NewSnapshotManager creates a new SnapshotManager.
// connStr is the PostgreSQL connection string for LISTEN/NOTIFY; an empty
// connStr disables the listener.
func NewSnapshotManager(changes repositories.ChangeLog, connStr string, refreshTTL time.Duration, logger *logrus.Logger) *SnapshotManager {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &SnapshotManager{
		changes:    changes,
		connStr:    connStr,
		refreshTTL: refreshTTL,
		logger:     logger,
		stopCh:     make(chan struct{}),
	}
}

// OnChange registers a callback invoked whenever the token moves to a new value.
// Callbacks must be registered before Start.
func (m *SnapshotManager) OnChange(fn func(token string)) {
	m.mu.Lock()
	m.onChange = append(m.onChange, fn)
	m.mu.Unlock()
}

// Start fetches the initial token and starts the LISTEN/NOTIFY listener.
func (m *SnapshotManager) Start(ctx context.Context) error {
	token, err := m.fetchLatestToken(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch initial token: %w", err)
	}
	m.SetToken(token)

	if m.connStr == "" {
		return nil
	}
	if err := m.startListener(); err != nil {
		return fmt.Errorf("failed to start listener: %w", err)
	}
	return nil
}

// Stop stops the SnapshotManager and cleans up resources.
func (m *SnapshotManager) Stop() error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return nil
	}
	m.stopped = true
	close(m.stopCh)
	m.mu.Unlock()

	if m.listener != nil {
		return m.listener.Close()
	}
	return nil
}

// GetCurrentToken returns the current snapshot token.
// If the token is stale (older than refreshTTL), it refreshes from the change log.
func (m *SnapshotManager) GetCurrentToken(ctx context.Context) (string, error) {
	m.mu.RLock()
	token := m.currentToken
	needsRefresh := time.Since(m.lastRefresh) > m.refreshTTL
	m.mu.RUnlock()

	// No change log (testing mode): keep the manually set token
	if m.changes == nil {
		return token, nil
	}

	if needsRefresh || token == "" {
		return m.refresh(ctx)
	}
	return token, nil
}

func (m *SnapshotManager) refresh(ctx context.Context) (string, error) {
	token, err := m.fetchLatestToken(ctx)
	if err != nil {
		return "", err
	}
	m.SetToken(token)
	return token, nil
}

func (m *SnapshotManager) fetchLatestToken(ctx context.Context) (string, error) {
	if m.changes == nil {
		return "", nil
	}
	token, err := m.changes.LatestChange(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to fetch latest token: %w", err)
	}
	return token, nil
}

func (m *SnapshotManager) startListener() error {
	reportProblem := func(ev pq.ListenerEventType, err error) {
		if err != nil {
			m.logger.WithError(err).Warn("snapshot listener error")
		}
	}

	m.listener = pq.NewListener(m.connStr, 10*time.Second, time.Minute, reportProblem)
	if err := m.listener.Listen(NotifyChannel); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", NotifyChannel, err)
	}

	go m.handleNotifications()
	return nil
}

func (m *SnapshotManager) handleNotifications() {
	for {
		select {
		case <-m.stopCh:
			return
		case notification := <-m.listener.Notify:
			if notification == nil {
				// Connection lost, the listener reconnects on its own
				continue
			}
			m.logger.WithField("token", notification.Extra).Debug("permissions changed")
			m.SetToken(notification.Extra)
		case <-time.After(90 * time.Second):
			go func() {
				if err := m.listener.Ping(); err != nil {
					m.logger.WithError(err).Warn("snapshot listener ping failed")
				}
			}()
		}
	}
}

// SetToken sets the current token and notifies OnChange callbacks when it moved.
func (m *SnapshotManager) SetToken(token string) {
	m.mu.Lock()
	changed := m.currentToken != token
	m.currentToken = token
	m.lastRefresh = time.Now()
	callbacks := append([]func(string){}, m.onChange...)
	m.mu.Unlock()

	if !changed {
		return
	}
	for _, fn := range callbacks {
		fn(token)
	}
}

// Token implements the token source used by the permission service.
func (m *SnapshotManager) Token(ctx context.Context) (string, error) {
	return m.GetCurrentToken(ctx)
}
