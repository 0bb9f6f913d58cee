package discovery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelcache/reelcache/internal/logger"
)

// fakeRelay serves the Nostr subscription flow: it answers the first
// REQ with the configured events followed by EOSE.
func fakeRelay(t *testing.T, events []string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var frame []json.RawMessage
		require.NoError(t, json.Unmarshal(msg, &frame))
		require.GreaterOrEqual(t, len(frame), 2)
		var subID string
		require.NoError(t, json.Unmarshal(frame[1], &subID))

		for _, ev := range events {
			require.NoError(t, conn.WriteMessage(websocket.TextMessage,
				[]byte(`["EVENT","`+subID+`",`+ev+`]`)))
		}
		require.NoError(t, conn.WriteMessage(websocket.TextMessage,
			[]byte(`["EOSE","`+subID+`"]`)))

		// Wait for CLOSE or disconnect.
		_, _, _ = conn.ReadMessage()
	}))
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestFetchVideosFromRelay(t *testing.T) {
	relay := fakeRelay(t, []string{
		`{"id":"e1","pubkey":"p1","kind":22,"tags":[["imeta","url https://cdn.example.com/a.mp4","x hash-a","m video/mp4"]],"content":"a"}`,
		`{"id":"e2","pubkey":"p2","kind":22,"tags":[["imeta","url https://cdn.example.com/b.mp4","x hash-b"]],"content":"b"}`,
	})
	defer relay.Close()

	f := NewFetcher([]string{wsURL(relay)}, 5*time.Second, logger.NewNop())
	videos, err := f.FetchVideos(context.Background())
	require.NoError(t, err)
	require.Len(t, videos, 2)
	assert.Equal(t, "hash-a", videos[0].ID)
	assert.Equal(t, "hash-b", videos[1].ID)
}

func TestFetchVideosDeduplicatesAcrossRelays(t *testing.T) {
	event := `{"id":"e1","pubkey":"p1","kind":22,"tags":[["imeta","url https://cdn.example.com/a.mp4","x hash-a"]],"content":"a"}`
	relayA := fakeRelay(t, []string{event})
	defer relayA.Close()
	relayB := fakeRelay(t, []string{event})
	defer relayB.Close()

	f := NewFetcher([]string{wsURL(relayA), wsURL(relayB)}, 5*time.Second, logger.NewNop())
	videos, err := f.FetchVideos(context.Background())
	require.NoError(t, err)
	assert.Len(t, videos, 1)
}

func TestFetchVideosAllRelaysDown(t *testing.T) {
	f := NewFetcher([]string{"ws://127.0.0.1:1"}, 500*time.Millisecond, logger.NewNop())
	_, err := f.FetchVideos(context.Background())
	assert.Error(t, err)
}

func TestFetchVideosSkipsDeadRelay(t *testing.T) {
	relay := fakeRelay(t, []string{
		`{"id":"e1","pubkey":"p1","kind":22,"tags":[["imeta","url https://cdn.example.com/a.mp4","x hash-a"]],"content":"a"}`,
	})
	defer relay.Close()

	f := NewFetcher([]string{"ws://127.0.0.1:1", wsURL(relay)}, 2*time.Second, logger.NewNop())
	videos, err := f.FetchVideos(context.Background())
	require.NoError(t, err)
	assert.Len(t, videos, 1)
}
