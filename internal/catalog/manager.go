package catalog

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/reelcache/reelcache/internal/logger"
)

const stateKeyCurrentIndex = "current_index"

// Manager holds the in-memory catalog and keeps sqlite in sync.
type Manager struct {
	logger *logger.Logger
	db     *Database

	mu           sync.RWMutex
	videos       []*Video // watch order
	byID         map[string]int
	currentIndex int
	storageBytes int64
}

// NewManager opens the catalog database and loads the persisted state.
func NewManager(dbPath string, log *logger.Logger) (*Manager, error) {
	db, err := NewDatabase(dbPath)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		logger: log,
		db:     db,
		byID:   make(map[string]int),
	}

	videos, err := db.LoadVideos()
	if err != nil {
		db.Close()
		return nil, err
	}
	for i, v := range videos {
		m.videos = append(m.videos, v)
		m.byID[v.ID] = i
	}

	if raw, err := db.LoadState(stateKeyCurrentIndex); err == nil && raw != "" {
		if idx, err := strconv.Atoi(raw); err == nil {
			m.currentIndex = idx
		}
	}

	log.Info("Catalog loaded", "videos", len(m.videos), "current_index", m.currentIndex)
	return m, nil
}

// Close closes the underlying database.
func (m *Manager) Close() error {
	return m.db.Close()
}

// Add appends videos that are not yet known. Already-known ids are
// ignored so repeated discovery passes are cheap.
func (m *Manager) Add(videos ...*Video) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	added := 0
	for _, v := range videos {
		if _, ok := m.byID[v.ID]; ok {
			continue
		}
		pos := len(m.videos)
		m.videos = append(m.videos, v)
		m.byID[v.ID] = pos
		if err := m.db.UpsertVideo(v, pos); err != nil {
			m.logger.Warn("Failed to persist video", "id", v.ID, "error", err)
		}
		added++
	}
	return added
}

// List returns a snapshot copy of the catalog in watch order.
func (m *Manager) List() []Video {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Video, len(m.videos))
	for i, v := range m.videos {
		out[i] = *v
	}
	return out
}

// Get returns a copy of the video at the given watch position.
func (m *Manager) Get(index int) (Video, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if index < 0 || index >= len(m.videos) {
		return Video{}, false
	}
	return *m.videos[index], true
}

// Len returns the number of known videos.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.videos)
}

// Update applies fn to the identified video under the lock and
// persists the result. Returns false for unknown ids.
func (m *Manager) Update(id string, fn func(*Video)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.byID[id]
	if !ok {
		return false
	}
	fn(m.videos[pos])
	if err := m.db.UpsertVideo(m.videos[pos], pos); err != nil {
		m.logger.Warn("Failed to persist video", "id", id, "error", err)
	}
	return true
}

// CurrentIndex returns the viewer's watch position.
func (m *Manager) CurrentIndex() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentIndex
}

// SetCurrentIndex moves the viewer's watch position.
func (m *Manager) SetCurrentIndex(index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if index < 0 {
		return fmt.Errorf("invalid index %d", index)
	}
	m.currentIndex = index
	if err := m.db.SaveState(stateKeyCurrentIndex, strconv.Itoa(index)); err != nil {
		return err
	}
	return nil
}

// UsedStorageBytes returns the current on-disk usage accounted so far.
func (m *Manager) UsedStorageBytes() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.storageBytes
}

// SetUsedStorageBytes seeds the accounting, typically from a startup
// scan of the download directory.
func (m *Manager) SetUsedStorageBytes(n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.storageBytes = n
}

// AddUsedStorageBytes adjusts the accounting by delta (may be negative).
func (m *Manager) AddUsedStorageBytes(delta int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.storageBytes += delta
	if m.storageBytes < 0 {
		m.storageBytes = 0
	}
}

// TotalDownloadSpeed sums the live per-video download speeds.
func (m *Manager) TotalDownloadSpeed() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var total float64
	for _, v := range m.videos {
		total += v.DownloadSpeedBps
	}
	return total
}

// TotalDownloadedMinutes sums the known lengths of downloaded videos.
func (m *Manager) TotalDownloadedMinutes() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var minutes float64
	for _, v := range m.videos {
		if v.LengthSeconds > 0 && v.LocalPath != "" {
			minutes += v.LengthSeconds / 60
		}
	}
	return minutes
}
