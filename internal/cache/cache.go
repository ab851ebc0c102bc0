// Package cache keeps the expense list between reads. The expense service
// invalidates it on every write.
package cache

import (
	"context"
	"sync"
	"time"

	"expenses/internal/core"
	"expenses/internal/log"
)

const (
	listKey = "expenses:list"
	genKey  = "expenses:list:gen"
)

// ListCache stores the rendered collection. Every Invalidate starts a new
// generation; Set only stores a list read within the current one, so a read
// racing a write cannot put the old list back.
type ListCache interface {
	// Get returns the cached list, or the generation a following Set must
	// present on a miss.
	Get(ctx context.Context) (expenses []core.Expense, gen uint64, ok bool)
	Set(ctx context.Context, gen uint64, expenses []core.Expense)
	Invalidate(ctx context.Context)
	Close() error
}

// Cleaner is implemented by caches that expire entries lazily.
type Cleaner interface {
	CleanExpired() int
}

// Manager runs periodic cleanup for registered caches.
type Manager struct {
	logger      *log.Logger
	caches      []Cleaner
	stopCleanup chan struct{}
	cleanupDone chan struct{}
	stopOnce    sync.Once
	started     bool
}

func NewManager(logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Discard()
	}
	return &Manager{
		logger:      logger.WithComponent(log.ComponentCache),
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
}

// Register must be called before StartCleanup.
func (m *Manager) Register(c Cleaner) {
	m.caches = append(m.caches, c)
}

func (m *Manager) StartCleanup(interval time.Duration) {
	m.started = true
	go m.cleanup(interval)
}

func (m *Manager) cleanup(interval time.Duration) {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cleaned := 0
			for _, c := range m.caches {
				cleaned += c.CleanExpired()
			}
			if cleaned > 0 {
				m.logger.Debug("Cleaned expired cache entries", log.FieldCount, cleaned)
			}
		case <-m.stopCleanup:
			return
		}
	}
}

// Stop ends the cleanup goroutine. Safe to call more than once.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCleanup)
		if m.started {
			<-m.cleanupDone
		}
	})
}

// Memory is a process-local ListCache.
type Memory struct {
	mu      sync.Mutex
	gen     uint64
	lru     *LRUCache[[]core.Expense]
	manager *Manager
}

// NewMemory returns a cache whose entry lives for ttl. Expired entries are
// also swept every ttl.
func NewMemory(ttl time.Duration, logger *log.Logger) *Memory {
	if ttl <= 0 {
		ttl = time.Minute
	}
	lru := NewLRUCache[[]core.Expense](1, ttl)
	m := NewManager(logger)
	m.Register(lru)
	m.StartCleanup(ttl)
	return &Memory{lru: lru, manager: m}
}

func (c *Memory) Get(_ context.Context) ([]core.Expense, uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	list, ok := c.lru.Get(listKey)
	if !ok {
		return nil, c.gen, false
	}
	return append([]core.Expense(nil), list...), c.gen, true
}

// Set is a no-op when the cache was invalidated after gen was handed out.
func (c *Memory) Set(_ context.Context, gen uint64, expenses []core.Expense) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	c.lru.Set(listKey, append(make([]core.Expense, 0, len(expenses)), expenses...))
}

func (c *Memory) Invalidate(_ context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.lru.Delete(listKey)
}

func (c *Memory) Close() error {
	c.manager.Stop()
	return nil
}
