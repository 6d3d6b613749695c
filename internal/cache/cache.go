package cache

import (
	"sync"
	"time"

	"kakeibo/internal/log"
)

// Cache defines a generic cache interface
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	SetIfAbsent(key string, data T) bool
	Delete(key string)
	Size() int
}

var _ Cache[struct{}] = (*LRUCache[struct{}])(nil)

// Cleaner interface for caches that support cleanup
type Cleaner interface {
	CleanExpired() int
}

// Manager runs periodic cleanup for registered caches
type Manager struct {
	mu          sync.Mutex
	caches      []Cleaner
	stopCleanup chan struct{}
	cleanupDone chan struct{}
	stopOnce    sync.Once
	started     bool
	logger      *log.Logger
}

// NewManager creates a new cache manager
func NewManager(logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Manager{
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
		logger:      logger,
	}
}

// Register adds a cache to the manager for cleanup
func (m *Manager) Register(c Cleaner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caches = append(m.caches, c)
}

// StartCleanup begins periodic cleanup of all registered caches
func (m *Manager) StartCleanup(interval time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.started = true
	go m.cleanup(interval)
}

// CleanNow runs one cleanup pass and returns the number of removed entries.
func (m *Manager) CleanNow() int {
	m.mu.Lock()
	caches := append([]Cleaner(nil), m.caches...)
	m.mu.Unlock()

	total := 0
	for _, c := range caches {
		total += c.CleanExpired()
	}
	return total
}

func (m *Manager) cleanup(interval time.Duration) {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := m.CleanNow(); n > 0 {
				m.logger.Debug("Cache cleanup completed", "entries_removed", n)
			}
		case <-m.stopCleanup:
			return
		}
	}
}

// Stop gracefully stops the cleanup routine
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCleanup)
		m.mu.Lock()
		started := m.started
		m.mu.Unlock()
		if started {
			<-m.cleanupDone
		}
	})
}
