package web

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// statusResponse is the payload of the status endpoint. Videos appear
// in watch order.
type statusResponse struct {
	CurrentIndex           int         `json:"current_index"`
	VideoCount             int         `json:"video_count"`
	Videos                 interface{} `json:"videos"`
	UsedStorageBytes       int64       `json:"used_storage_bytes"`
	MaxStorageBytes        int64       `json:"max_storage_bytes"`
	TotalDownloadSpeedBps  float64     `json:"total_download_speed_bps"`
	TotalDownloadedMinutes float64     `json:"total_downloaded_minutes"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, statusResponse{
		CurrentIndex:           s.catalog.CurrentIndex(),
		VideoCount:             s.catalog.Len(),
		Videos:                 s.catalog.List(),
		UsedStorageBytes:       s.catalog.UsedStorageBytes(),
		MaxStorageBytes:        s.maxStorage,
		TotalDownloadSpeedBps:  s.catalog.TotalDownloadSpeed(),
		TotalDownloadedMinutes: s.catalog.TotalDownloadedMinutes(),
	})
}

// handleThumbnail serves the cached JPEG for one video. If no cached
// thumbnail exists but the file is on disk, extraction is attempted on
// the spot. Misses answer 404 with an empty body so image tags fail
// cleanly.
func (s *Server) handleThumbnail(c *gin.Context) {
	index, err := strconv.Atoi(c.Query("index"))
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	video, ok := s.catalog.Get(index)
	if !ok {
		c.Status(http.StatusNotFound)
		return
	}

	if len(video.Thumbnail) > 0 {
		c.Data(http.StatusOK, "image/jpeg", video.Thumbnail)
		return
	}

	if video.HasLocalFile() && s.extract != nil {
		data, err := os.ReadFile(video.LocalPath)
		if err == nil {
			if jpeg, err := s.extract(data); err == nil {
				c.Data(http.StatusOK, "image/jpeg", jpeg)
				return
			}
		}
	}

	c.Status(http.StatusNotFound)
}

type setIndexRequest struct {
	Index int `json:"index"`
}

func (s *Server) handleSetIndex(c *gin.Context) {
	var req setIndexRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := s.catalog.SetCurrentIndex(req.Index); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"current_index": req.Index})
}

// handleVideo streams a locally downloaded video, honoring Range
// requests so seeking works in the player.
func (s *Server) handleVideo(c *gin.Context) {
	index, err := strconv.Atoi(c.Query("index"))
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	video, ok := s.catalog.Get(index)
	if !ok || !video.HasLocalFile() {
		c.JSON(http.StatusNotFound, gin.H{"error": "video not available locally"})
		return
	}

	file, err := os.Open(video.LocalPath)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "video file missing"})
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		c.Status(http.StatusInternalServerError)
		return
	}
	size := info.Size()

	c.Header("Accept-Ranges", "bytes")
	c.Header("Content-Type", "video/mp4")

	rng, ok, err := parseRange(c.GetHeader("Range"), size)
	if err != nil {
		c.Header("Content-Range", fmt.Sprintf("bytes */%d", size))
		c.Status(http.StatusRequestedRangeNotSatisfiable)
		return
	}

	if !ok {
		c.Header("Content-Length", strconv.FormatInt(size, 10))
		c.Status(http.StatusOK)
		io.Copy(c.Writer, file)
		return
	}

	if _, err := file.Seek(rng.start, io.SeekStart); err != nil {
		c.Status(http.StatusInternalServerError)
		return
	}

	length := rng.end - rng.start + 1
	c.Header("Content-Range", fmt.Sprintf("bytes %d-%d/%d", rng.start, rng.end, size))
	c.Header("Content-Length", strconv.FormatInt(length, 10))
	c.Status(http.StatusPartialContent)
	io.CopyN(c.Writer, file, length)
}

func (s *Server) handleDashboard(c *gin.Context) {
	content, err := staticFiles.ReadFile("static/dashboard.html")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "dashboard not available"})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", content)
}
