// Package discovery finds candidate videos on Nostr relays. Video
// events carry imeta tags (NIP-92) describing each published variant;
// only variants with both a content hash and a fetchable http(s) URL
// become catalog candidates, with the hash as the stable id.
package discovery

import (
	"net/url"
	"strings"
)

// Event is a Nostr event as received from a relay.
type Event struct {
	ID        string     `json:"id"`
	PubKey    string     `json:"pubkey"`
	Kind      int        `json:"kind"`
	CreatedAt int64      `json:"created_at"`
	Tags      [][]string `json:"tags"`
	Content   string     `json:"content"`
}

// Video is one discovered video candidate.
type Video struct {
	ID       string // content hash from the imeta tag
	URL      string
	Title    string
	Uploader string // author pubkey
	MimeType string
}

// variant is one imeta tag unpacked into its key/value fields.
type variant struct {
	url      string
	hash     string
	mimeType string
}

// ParseEventVideos extracts the valid video variants of one event.
func ParseEventVideos(ev *Event) []Video {
	var videos []Video
	for _, v := range parseVariants(ev) {
		if v.hash == "" || !isValidHTTPURL(v.url) {
			continue
		}
		videos = append(videos, Video{
			ID:       v.hash,
			URL:      v.url,
			Title:    strings.TrimSpace(ev.Content),
			Uploader: ev.PubKey,
			MimeType: v.mimeType,
		})
	}
	return videos
}

// parseVariants unpacks every imeta tag. Each element after the tag
// name is a space-separated "key value..." chunk.
func parseVariants(ev *Event) []variant {
	var variants []variant
	for _, tag := range ev.Tags {
		if len(tag) == 0 || tag[0] != "imeta" {
			continue
		}

		var v variant
		for _, chunk := range tag[1:] {
			parts := strings.Fields(chunk)
			if len(parts) < 2 {
				continue
			}
			value := strings.TrimSpace(strings.Join(parts[1:], " "))
			switch parts[0] {
			case "url":
				v.url = value
			case "x":
				v.hash = value
			case "m":
				v.mimeType = value
			}
		}
		variants = append(variants, v)
	}
	return variants
}

func isValidHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
