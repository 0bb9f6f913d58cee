// Package catalog tracks every discovered video: download progress,
// probed metadata, the cached thumbnail and the viewer's watch index.
// The in-memory view is authoritative; sqlite persists it across
// restarts.
package catalog

import "time"

// Video is one discovered video and everything known about it.
type Video struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Title    string `json:"title"`
	Uploader string `json:"uploader,omitempty"`

	LocalPath   string `json:"local_path,omitempty"`
	Downloading bool   `json:"downloading"`

	LengthSeconds float64 `json:"length_seconds,omitempty"`
	Format        string  `json:"format,omitempty"`
	Width         int     `json:"width,omitempty"`
	Height        int     `json:"height,omitempty"`

	DownloadedBytes  int64   `json:"downloaded_bytes"`
	ContentLength    int64   `json:"content_length,omitempty"`
	DownloadSpeedBps float64 `json:"download_speed_bps"`

	// Score orders the download queue; higher downloads sooner once the
	// ahead target is met.
	Score float64 `json:"score"`

	// Thumbnail holds the extracted JPEG. Omitted from status JSON; the
	// dashboard fetches it through the thumbnail endpoint.
	Thumbnail []byte `json:"-"`

	// Speed sampling state, not exported and not persisted.
	lastSpeedUpdate time.Time
	lastSpeedBytes  int64
}

// HasLocalFile reports whether the video is fully downloaded to disk.
func (v *Video) HasLocalFile() bool {
	return v.LocalPath != "" && !v.Downloading
}

// UpdateSpeed recomputes the download speed from the byte delta since
// the previous sample. Samples closer together than interval are
// ignored so short bursts don't make the number jump around.
func (v *Video) UpdateSpeed(now time.Time, interval time.Duration) {
	if v.lastSpeedUpdate.IsZero() {
		v.lastSpeedUpdate = now
		v.lastSpeedBytes = v.DownloadedBytes
		v.DownloadSpeedBps = 0
		return
	}

	dt := now.Sub(v.lastSpeedUpdate)
	if dt < interval {
		return
	}

	v.DownloadSpeedBps = float64(v.DownloadedBytes-v.lastSpeedBytes) / dt.Seconds()
	v.lastSpeedUpdate = now
	v.lastSpeedBytes = v.DownloadedBytes
}
