package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelcache/reelcache/internal/catalog"
	"github.com/reelcache/reelcache/internal/config"
	"github.com/reelcache/reelcache/internal/logger"
)

type stubCatalog struct {
	videos       []catalog.Video
	currentIndex int
	indexErr     error
}

func (s *stubCatalog) List() []catalog.Video { return s.videos }

func (s *stubCatalog) Get(index int) (catalog.Video, bool) {
	if index < 0 || index >= len(s.videos) {
		return catalog.Video{}, false
	}
	return s.videos[index], true
}

func (s *stubCatalog) Len() int          { return len(s.videos) }
func (s *stubCatalog) CurrentIndex() int { return s.currentIndex }

func (s *stubCatalog) SetCurrentIndex(index int) error {
	if s.indexErr != nil {
		return s.indexErr
	}
	s.currentIndex = index
	return nil
}

func (s *stubCatalog) UsedStorageBytes() int64        { return 12345 }
func (s *stubCatalog) TotalDownloadSpeed() float64    { return 2048 }
func (s *stubCatalog) TotalDownloadedMinutes() float64 { return 7.5 }

func newTestServer(t *testing.T, cat *stubCatalog) *Server {
	t.Helper()

	extract := func(data []byte) ([]byte, error) {
		return []byte{0xFF, 0xD8, 0xFF, 0xD9}, nil
	}
	cfg := config.WebConfig{Host: "127.0.0.1", Port: 0}
	return NewServer(cfg, cat, prometheus.NewRegistry(), extract, 1<<30, logger.NewNop())
}

func doRequest(s *Server, method, target string, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, &stubCatalog{})
	w := doRequest(s, http.MethodGet, "/api/health", "", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestStatusEndpoint(t *testing.T) {
	cat := &stubCatalog{
		videos: []catalog.Video{
			{ID: "a", Title: "first", LocalPath: "/tmp/a.mp4"},
			{ID: "b", Title: "second", Downloading: true},
		},
		currentIndex: 1,
	}
	s := newTestServer(t, cat)
	w := doRequest(s, http.MethodGet, "/api/status", "", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var resp statusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.CurrentIndex)
	assert.Equal(t, 2, resp.VideoCount)
	assert.Equal(t, int64(12345), resp.UsedStorageBytes)
	assert.Equal(t, int64(1<<30), resp.MaxStorageBytes)
	assert.Equal(t, 2048.0, resp.TotalDownloadSpeedBps)
	assert.Equal(t, 7.5, resp.TotalDownloadedMinutes)
}

func TestThumbnailCached(t *testing.T) {
	jpeg := []byte{0xFF, 0xD8, 0x01, 0x02, 0xFF, 0xD9}
	cat := &stubCatalog{videos: []catalog.Video{{ID: "a", Thumbnail: jpeg}}}
	s := newTestServer(t, cat)

	w := doRequest(s, http.MethodGet, "/api/thumbnail?index=0", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))
	assert.Equal(t, jpeg, w.Body.Bytes())
}

func TestThumbnailOnDemandExtraction(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.mp4")
	require.NoError(t, os.WriteFile(path, []byte("video bytes"), 0644))

	cat := &stubCatalog{videos: []catalog.Video{{ID: "a", LocalPath: path}}}
	s := newTestServer(t, cat)

	w := doRequest(s, http.MethodGet, "/api/thumbnail?index=0", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []byte{0xFF, 0xD8, 0xFF, 0xD9}, w.Body.Bytes())
}

func TestThumbnailMissing(t *testing.T) {
	cat := &stubCatalog{videos: []catalog.Video{{ID: "a"}}}
	s := newTestServer(t, cat)

	w := doRequest(s, http.MethodGet, "/api/thumbnail?index=0", "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, w.Body.Bytes())
}

func TestThumbnailBadIndex(t *testing.T) {
	s := newTestServer(t, &stubCatalog{})

	w := doRequest(s, http.MethodGet, "/api/thumbnail?index=nope", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(s, http.MethodGet, "/api/thumbnail?index=99", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSetIndex(t *testing.T) {
	cat := &stubCatalog{videos: []catalog.Video{{ID: "a"}, {ID: "b"}}}
	s := newTestServer(t, cat)

	w := doRequest(s, http.MethodPost, "/api/set_index", `{"index": 1}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, cat.currentIndex)
}

func TestSetIndexRejectsBadBody(t *testing.T) {
	s := newTestServer(t, &stubCatalog{})

	w := doRequest(s, http.MethodPost, "/api/set_index", `not json`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSetIndexPropagatesCatalogError(t *testing.T) {
	cat := &stubCatalog{indexErr: fmt.Errorf("invalid index")}
	s := newTestServer(t, cat)

	w := doRequest(s, http.MethodPost, "/api/set_index", `{"index": -5}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func makeVideoFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "video.mp4")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestVideoFullDownload(t *testing.T) {
	path := makeVideoFile(t, "0123456789")
	cat := &stubCatalog{videos: []catalog.Video{{ID: "a", LocalPath: path}}}
	s := newTestServer(t, cat)

	w := doRequest(s, http.MethodGet, "/video.mp4?index=0", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "video/mp4", w.Header().Get("Content-Type"))
	assert.Equal(t, "bytes", w.Header().Get("Accept-Ranges"))
	assert.Equal(t, "0123456789", w.Body.String())
}

func TestVideoRangeRequest(t *testing.T) {
	path := makeVideoFile(t, "0123456789")
	cat := &stubCatalog{videos: []catalog.Video{{ID: "a", LocalPath: path}}}
	s := newTestServer(t, cat)

	w := doRequest(s, http.MethodGet, "/video.mp4?index=0", "", map[string]string{"Range": "bytes=2-5"})
	require.Equal(t, http.StatusPartialContent, w.Code)
	assert.Equal(t, "bytes 2-5/10", w.Header().Get("Content-Range"))
	assert.Equal(t, "4", w.Header().Get("Content-Length"))
	assert.Equal(t, "2345", w.Body.String())
}

func TestVideoRangeOpenEnded(t *testing.T) {
	path := makeVideoFile(t, "0123456789")
	cat := &stubCatalog{videos: []catalog.Video{{ID: "a", LocalPath: path}}}
	s := newTestServer(t, cat)

	w := doRequest(s, http.MethodGet, "/video.mp4?index=0", "", map[string]string{"Range": "bytes=7-"})
	require.Equal(t, http.StatusPartialContent, w.Code)
	assert.Equal(t, "bytes 7-9/10", w.Header().Get("Content-Range"))
	assert.Equal(t, "789", w.Body.String())
}

func TestVideoRangeUnsatisfiable(t *testing.T) {
	path := makeVideoFile(t, "0123456789")
	cat := &stubCatalog{videos: []catalog.Video{{ID: "a", LocalPath: path}}}
	s := newTestServer(t, cat)

	w := doRequest(s, http.MethodGet, "/video.mp4?index=0", "", map[string]string{"Range": "bytes=50-60"})
	require.Equal(t, http.StatusRequestedRangeNotSatisfiable, w.Code)
	assert.Equal(t, "bytes */10", w.Header().Get("Content-Range"))
}

func TestVideoNotDownloaded(t *testing.T) {
	cat := &stubCatalog{videos: []catalog.Video{{ID: "a"}}}
	s := newTestServer(t, cat)

	w := doRequest(s, http.MethodGet, "/video.mp4?index=0", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestVideoStillDownloading(t *testing.T) {
	path := makeVideoFile(t, "partial")
	cat := &stubCatalog{videos: []catalog.Video{{ID: "a", LocalPath: path, Downloading: true}}}
	s := newTestServer(t, cat)

	w := doRequest(s, http.MethodGet, "/video.mp4?index=0", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDashboardServed(t *testing.T) {
	s := newTestServer(t, &stubCatalog{})

	w := doRequest(s, http.MethodGet, "/dashboard", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "reelcache")
}

func TestMetricsServed(t *testing.T) {
	s := newTestServer(t, &stubCatalog{})

	w := doRequest(s, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
