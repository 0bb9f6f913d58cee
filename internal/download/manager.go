// Package download prefetches discovered videos to local disk ahead of
// the viewer's watch position and enriches them with probed metadata
// and thumbnails while the bytes stream in.
package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/reelcache/reelcache/internal/catalog"
	"github.com/reelcache/reelcache/internal/discovery"
	"github.com/reelcache/reelcache/internal/logger"
	"github.com/reelcache/reelcache/internal/metrics"
	"github.com/reelcache/reelcache/internal/service"
	"github.com/reelcache/reelcache/internal/storage"
)

const (
	headParallelism  = 20
	copyChunkSize    = 64 * 1024
	probeRetryBytes  = 256 * 1024
	speedSampleEvery = time.Second
)

// Fetcher supplies newly discovered video candidates.
type Fetcher interface {
	FetchVideos(ctx context.Context) ([]discovery.Video, error)
}

// ThumbnailFunc extracts a JPEG still from in-memory video bytes.
type ThumbnailFunc func(data []byte) ([]byte, error)

// Config tunes the prefetch manager.
type Config struct {
	MaxParallel        int
	TargetVideosAhead  int
	TargetMinutesAhead float64
	MaxBehindSeconds   int64
	MaxStorageBytes    int64
	ProbeWindowBytes   int64
	CycleInterval      time.Duration
	// RefreshInterval throttles relay discovery; zero queries on every
	// cycle.
	RefreshInterval time.Duration
}

// Manager is the background prefetch service.
type Manager struct {
	*service.Base
	cfg     Config
	catalog *catalog.Manager
	store   *storage.Store
	fetcher Fetcher
	extract ThumbnailFunc
	metrics *metrics.Metrics
	client  *http.Client

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	active map[string]struct{}

	lastDiscovery time.Time
}

// NewManager creates the prefetch manager.
func NewManager(
	cfg Config,
	cat *catalog.Manager,
	store *storage.Store,
	fetcher Fetcher,
	extract ThumbnailFunc,
	m *metrics.Metrics,
	log *logger.Logger,
) *Manager {
	return &Manager{
		Base:    service.NewBase("download-manager", log),
		cfg:     cfg,
		catalog: cat,
		store:   store,
		fetcher: fetcher,
		extract: extract,
		metrics: m,
		client:  &http.Client{},
		active:  make(map[string]struct{}),
	}
}

// Start launches the scheduling loop.
func (m *Manager) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(context.Background())

	// Seed storage accounting from what is already on disk.
	if used, err := m.store.UsedBytes(); err == nil {
		m.catalog.SetUsedStorageBytes(used)
		m.metrics.StorageBytesUsed.Set(float64(used))
	} else {
		m.Log().Warn("Failed to scan download directory", "error", err)
	}

	m.wg.Add(1)
	go m.run()
	return nil
}

// Stop cancels the loop and waits for in-flight downloads to wind down.
func (m *Manager) Stop(ctx context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("downloads did not stop in time: %w", ctx.Err())
	}
}

func (m *Manager) run() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.CycleInterval)
	defer ticker.Stop()

	m.cycle()
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.cycle()
		}
	}
}

// cycle runs one scheduling pass: discover, evict, queue, download.
func (m *Manager) cycle() {
	m.discoverNewVideos()
	m.enforceBehindLimit()
	m.startDownloads(m.buildQueue())
}

// discoverNewVideos pulls candidates from the relays, enriches them
// with HEAD content lengths and merges them into the catalog.
func (m *Manager) discoverNewVideos() {
	if m.cfg.RefreshInterval > 0 && time.Since(m.lastDiscovery) < m.cfg.RefreshInterval {
		return
	}
	m.lastDiscovery = time.Now()

	found, err := m.fetcher.FetchVideos(m.ctx)
	if err != nil {
		m.Log().Warn("Discovery failed", "error", err)
		return
	}
	if len(found) == 0 {
		return
	}

	batch := make([]*catalog.Video, 0, len(found))
	for i, v := range found {
		batch = append(batch, &catalog.Video{
			ID:       v.ID,
			URL:      v.URL,
			Title:    v.Title,
			Uploader: v.Uploader,
			// Relays return newest first; keep that as priority.
			Score: float64(len(found) - i),
		})
	}

	m.fetchContentLengths(batch)

	if added := m.catalog.Add(batch...); added > 0 {
		m.metrics.VideosDiscovered.Add(float64(added))
		m.Log().Info("Discovered new videos", "count", added)
	}
}

// fetchContentLengths issues bounded-parallel HEAD requests for videos
// that don't know their size yet.
func (m *Manager) fetchContentLengths(videos []*catalog.Video) {
	sem := make(chan struct{}, headParallelism)
	var wg sync.WaitGroup

	for _, v := range videos {
		if v.ContentLength > 0 {
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(v *catalog.Video) {
			defer wg.Done()
			defer func() { <-sem }()

			req, err := http.NewRequestWithContext(m.ctx, http.MethodHead, v.URL, nil)
			if err != nil {
				return
			}
			resp, err := m.client.Do(req)
			if err != nil {
				return
			}
			resp.Body.Close()
			if resp.ContentLength > 0 {
				v.ContentLength = resp.ContentLength
			}
		}(v)
	}
	wg.Wait()
}

// enforceBehindLimit evicts downloaded files that fell out of the watch
// window: walking backwards from the current index, once the
// accumulated length exceeds the behind budget everything older is
// removed. The storage cap is enforced the same way from the far end.
func (m *Manager) enforceBehindLimit() {
	videos := m.catalog.List()
	current := m.catalog.CurrentIndex()

	var behindSeconds float64
	for i := current - 1; i >= 0 && i < len(videos); i-- {
		v := videos[i]
		if v.LengthSeconds > 0 {
			behindSeconds += v.LengthSeconds
		}
		if behindSeconds > float64(m.cfg.MaxBehindSeconds) && v.HasLocalFile() {
			m.evict(&v)
		}
	}

	// Storage cap: drop the furthest-behind files first.
	if m.cfg.MaxStorageBytes > 0 {
		for i := 0; i < current && i < len(videos); i++ {
			if m.catalog.UsedStorageBytes() <= m.cfg.MaxStorageBytes {
				break
			}
			if videos[i].HasLocalFile() {
				m.evict(&videos[i])
			}
		}
	}
}

func (m *Manager) evict(v *catalog.Video) {
	freed, err := m.store.Remove(v.LocalPath)
	if err != nil {
		m.Log().Warn("Eviction failed", "id", v.ID, "error", err)
		return
	}

	m.catalog.Update(v.ID, func(cv *catalog.Video) {
		cv.LocalPath = ""
		cv.DownloadedBytes = 0
	})
	m.catalog.AddUsedStorageBytes(-freed)
	m.metrics.VideosEvicted.Inc()
	m.metrics.StorageBytesUsed.Set(float64(m.catalog.UsedStorageBytes()))
	m.Log().Info("Evicted video", "id", v.ID, "freed_bytes", freed)
}

// buildQueue returns download candidates in priority order.
func (m *Manager) buildQueue() []catalog.Video {
	m.mu.Lock()
	defer m.mu.Unlock()

	var candidates []catalog.Video
	for _, v := range m.catalog.List() {
		if v.LocalPath != "" || v.URL == "" {
			continue
		}
		if _, busy := m.active[v.ID]; busy {
			continue
		}
		candidates = append(candidates, v)
	}
	return SortForDownload(candidates, m.cfg.TargetVideosAhead, m.cfg.TargetMinutesAhead)
}

// startDownloads launches queued downloads up to the parallelism cap.
func (m *Manager) startDownloads(queue []catalog.Video) {
	if m.cfg.MaxStorageBytes > 0 && m.catalog.UsedStorageBytes() >= m.cfg.MaxStorageBytes {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, v := range queue {
		if len(m.active) >= m.cfg.MaxParallel {
			return
		}

		m.active[v.ID] = struct{}{}
		m.catalog.Update(v.ID, func(cv *catalog.Video) { cv.Downloading = true })
		m.metrics.DownloadsStarted.Inc()
		m.metrics.ActiveDownloads.Inc()

		m.wg.Add(1)
		go m.downloadVideo(v.ID, v.URL)
	}
}

// downloadVideo streams one video to disk, probing metadata and
// extracting a thumbnail from the buffered prefix along the way.
func (m *Manager) downloadVideo(id, url string) {
	defer m.wg.Done()
	defer func() {
		m.mu.Lock()
		delete(m.active, id)
		m.mu.Unlock()
		m.metrics.ActiveDownloads.Dec()
	}()

	path := m.store.NewVideoPath()
	err := m.fetchToFile(id, url, path)
	if err != nil {
		if _, rmErr := m.store.Remove(path); rmErr != nil {
			m.Log().Warn("Failed to remove partial download", "path", path, "error", rmErr)
		}
		m.catalog.Update(id, func(cv *catalog.Video) {
			cv.Downloading = false
			cv.DownloadSpeedBps = 0
			cv.DownloadedBytes = 0
		})
		m.metrics.DownloadsFailed.Inc()
		m.Log().Warn("Download failed", "id", id, "url", url, "error", err)
		return
	}

	m.metrics.DownloadsCompleted.Inc()
	m.metrics.StorageBytesUsed.Set(float64(m.catalog.UsedStorageBytes()))
	m.Log().Info("Download complete", "id", id, "path", path)
}

func (m *Manager) fetchToFile(id, url, path string) error {
	req, err := http.NewRequestWithContext(m.ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer file.Close()

	if resp.ContentLength > 0 {
		m.catalog.Update(id, func(cv *catalog.Video) { cv.ContentLength = resp.ContentLength })
	}

	var (
		total          int64
		probeBuf       []byte
		probed         bool
		lastProbeBytes int64
	)
	buf := make([]byte, copyChunkSize)

	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, err := file.Write(buf[:n]); err != nil {
				return fmt.Errorf("write file: %w", err)
			}
			total += int64(n)
			m.metrics.BytesDownloaded.Add(float64(n))

			if !probed && int64(len(probeBuf)) < m.cfg.ProbeWindowBytes {
				probeBuf = append(probeBuf, buf[:n]...)
			}

			now := time.Now()
			m.catalog.Update(id, func(cv *catalog.Video) {
				cv.DownloadedBytes = total
				cv.UpdateSpeed(now, speedSampleEvery)
			})

			// Retry the probe as the prefix grows; a complete moov can
			// show up anywhere in the window.
			if !probed && int64(len(probeBuf))-lastProbeBytes >= probeRetryBytes {
				lastProbeBytes = int64(len(probeBuf))
				probed = m.tryProbe(id, probeBuf)
			}
		}

		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return fmt.Errorf("read body: %w", readErr)
		}
	}

	if !probed {
		m.tryProbe(id, probeBuf)
	}

	m.catalog.Update(id, func(cv *catalog.Video) {
		cv.LocalPath = path
		cv.Downloading = false
		cv.DownloadedBytes = total
		cv.DownloadSpeedBps = 0
	})
	m.catalog.AddUsedStorageBytes(total)
	return nil
}

// tryProbe parses the buffered prefix for metadata and, on success,
// extracts the thumbnail from the same bytes. Returns whether the
// probe succeeded; failures are expected while the prefix is short.
func (m *Manager) tryProbe(id string, prefix []byte) bool {
	if len(prefix) == 0 {
		return false
	}

	meta, err := ProbeMetadata(prefix)
	if err != nil {
		return false
	}

	m.catalog.Update(id, func(cv *catalog.Video) {
		cv.LengthSeconds = meta.DurationSeconds
		cv.Format = meta.Codec
		cv.Width = meta.Width
		cv.Height = meta.Height
	})

	start := time.Now()
	jpeg, err := m.extract(prefix)
	m.metrics.ThumbnailExtractTime.Observe(time.Since(start).Seconds())
	if err != nil {
		m.metrics.ThumbnailsFailed.Inc()
		m.Log().Warn("Thumbnail extraction failed", "id", id, "error", err)
		return true
	}

	m.catalog.Update(id, func(cv *catalog.Video) { cv.Thumbnail = jpeg })
	m.metrics.ThumbnailsExtracted.Inc()
	m.Log().Debug("Thumbnail extracted", "id", id, "bytes", len(jpeg))
	return true
}
