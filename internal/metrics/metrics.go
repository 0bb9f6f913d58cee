// Package metrics exposes Prometheus instrumentation for the prefetch
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors.
type Metrics struct {
	// Download metrics
	DownloadsStarted   prometheus.Counter
	DownloadsCompleted prometheus.Counter
	DownloadsFailed    prometheus.Counter
	BytesDownloaded    prometheus.Counter
	ActiveDownloads    prometheus.Gauge

	// Discovery metrics
	VideosDiscovered prometheus.Counter

	// Thumbnail metrics
	ThumbnailsExtracted  prometheus.Counter
	ThumbnailsFailed     prometheus.Counter
	ThumbnailExtractTime prometheus.Histogram

	// Storage metrics
	StorageBytesUsed prometheus.Gauge
	VideosEvicted    prometheus.Counter
}

// New creates and registers all metrics on the given registerer. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in
// tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		DownloadsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "reelcache_downloads_started_total",
			Help: "Number of video downloads started",
		}),
		DownloadsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "reelcache_downloads_completed_total",
			Help: "Number of video downloads completed successfully",
		}),
		DownloadsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "reelcache_downloads_failed_total",
			Help: "Number of video downloads that failed",
		}),
		BytesDownloaded: factory.NewCounter(prometheus.CounterOpts{
			Name: "reelcache_bytes_downloaded_total",
			Help: "Total bytes downloaded",
		}),
		ActiveDownloads: factory.NewGauge(prometheus.GaugeOpts{
			Name: "reelcache_active_downloads",
			Help: "Number of downloads currently in progress",
		}),
		VideosDiscovered: factory.NewCounter(prometheus.CounterOpts{
			Name: "reelcache_videos_discovered_total",
			Help: "Number of new videos discovered on relays",
		}),
		ThumbnailsExtracted: factory.NewCounter(prometheus.CounterOpts{
			Name: "reelcache_thumbnails_extracted_total",
			Help: "Number of thumbnails extracted successfully",
		}),
		ThumbnailsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "reelcache_thumbnails_failed_total",
			Help: "Number of thumbnail extractions that failed",
		}),
		ThumbnailExtractTime: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "reelcache_thumbnail_extract_seconds",
			Help:    "Thumbnail extraction duration",
			Buckets: prometheus.DefBuckets,
		}),
		StorageBytesUsed: factory.NewGauge(prometheus.GaugeOpts{
			Name: "reelcache_storage_bytes_used",
			Help: "Bytes of video data currently on disk",
		}),
		VideosEvicted: factory.NewCounter(prometheus.CounterOpts{
			Name: "reelcache_videos_evicted_total",
			Help: "Number of videos evicted from local storage",
		}),
	}
}
