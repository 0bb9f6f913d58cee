package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/reelcache/reelcache/internal/logger"
)

// Kinds of Nostr events that can carry video imeta tags: NIP-71 normal
// and short videos plus the legacy addressable video kind.
var videoEventKinds = []int{21, 22, 34235}

const defaultEventLimit = 200

// Fetcher collects video candidates from a set of Nostr relays.
type Fetcher struct {
	relays  []string
	timeout time.Duration
	logger  *logger.Logger
}

// NewFetcher creates a fetcher for the given relay URLs.
func NewFetcher(relays []string, timeout time.Duration, log *logger.Logger) *Fetcher {
	return &Fetcher{relays: relays, timeout: timeout, logger: log}
}

// FetchVideos queries every relay and returns the deduplicated video
// candidates. Relay failures are logged and skipped; the fetch only
// errors when no relay could be reached.
func (f *Fetcher) FetchVideos(ctx context.Context) ([]Video, error) {
	seen := make(map[string]struct{})
	var videos []Video
	reached := 0

	for _, relay := range f.relays {
		relayVideos, err := f.fetchFromRelay(ctx, relay)
		if err != nil {
			f.logger.Warn("Relay fetch failed", "relay", relay, "error", err)
			continue
		}
		reached++
		for _, v := range relayVideos {
			if _, ok := seen[v.ID]; ok {
				continue
			}
			seen[v.ID] = struct{}{}
			videos = append(videos, v)
		}
	}

	if reached == 0 && len(f.relays) > 0 {
		return nil, fmt.Errorf("no relay reachable (%d tried)", len(f.relays))
	}
	return videos, nil
}

// fetchFromRelay subscribes for video events and reads until EOSE.
func (f *Fetcher) fetchFromRelay(ctx context.Context, relay string) ([]Video, error) {
	dialCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, relay, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	subID := uuid.New().String()
	req := []interface{}{
		"REQ", subID,
		map[string]interface{}{
			"kinds": videoEventKinds,
			"limit": defaultEventLimit,
		},
	}
	if err := conn.WriteJSON(req); err != nil {
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	deadline := time.Now().Add(f.timeout)
	if err := conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}

	var videos []Video
	for {
		select {
		case <-ctx.Done():
			return videos, ctx.Err()
		default:
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			// Timed out before EOSE: keep whatever arrived.
			return videos, nil
		}

		kind, event, err := decodeRelayMessage(msg)
		if err != nil {
			f.logger.Debug("Unparseable relay message", "relay", relay, "error", err)
			continue
		}

		switch kind {
		case "EVENT":
			videos = append(videos, ParseEventVideos(event)...)
		case "EOSE":
			// Stored events are done; politely close the subscription.
			_ = conn.WriteJSON([]interface{}{"CLOSE", subID})
			return videos, nil
		}
	}
}

// decodeRelayMessage unpacks one relay frame: a JSON array whose first
// element names the message type and whose payload (for EVENT) is the
// third element.
func decodeRelayMessage(msg []byte) (string, *Event, error) {
	var frame []json.RawMessage
	if err := json.Unmarshal(msg, &frame); err != nil {
		return "", nil, err
	}
	if len(frame) == 0 {
		return "", nil, fmt.Errorf("empty frame")
	}

	var kind string
	if err := json.Unmarshal(frame[0], &kind); err != nil {
		return "", nil, err
	}

	if kind != "EVENT" {
		return kind, nil, nil
	}
	if len(frame) < 3 {
		return "", nil, fmt.Errorf("EVENT frame missing payload")
	}

	var ev Event
	if err := json.Unmarshal(frame[2], &ev); err != nil {
		return "", nil, err
	}
	return kind, &ev, nil
}
