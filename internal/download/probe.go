package download

import (
	"bytes"
	"fmt"

	"github.com/Eyevinn/mp4ff/mp4"
)

// Metadata is what the MP4 probe learns about a video.
type Metadata struct {
	DurationSeconds float64
	Codec           string
	Width           int
	Height          int
}

// ProbeMetadata parses an MP4 prefix (or whole file) and returns
// duration, codec and dimensions of its first video track. Called
// repeatedly during a download with the bytes buffered so far, so a
// still-incomplete moov simply errors and the caller retries later.
func ProbeMetadata(data []byte) (*Metadata, error) {
	f, err := mp4.DecodeFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode mp4: %w", err)
	}

	moov := f.Moov
	if moov == nil && f.Init != nil {
		moov = f.Init.Moov
	}
	if moov == nil || moov.Mvhd == nil {
		return nil, fmt.Errorf("no movie header yet")
	}

	meta := &Metadata{}
	if moov.Mvhd.Timescale > 0 {
		meta.DurationSeconds = float64(moov.Mvhd.Duration) / float64(moov.Mvhd.Timescale)
	}

	for _, trak := range moov.Traks {
		if trak.Mdia == nil || trak.Mdia.Hdlr == nil || trak.Mdia.Hdlr.HandlerType != "vide" {
			continue
		}

		if trak.Tkhd != nil {
			// tkhd stores dimensions as 16.16 fixed point.
			meta.Width = int(trak.Tkhd.Width >> 16)
			meta.Height = int(trak.Tkhd.Height >> 16)
		}
		meta.Codec = videoCodecName(trak)
		return meta, nil
	}

	return nil, fmt.Errorf("no video track")
}

func videoCodecName(trak *mp4.TrakBox) string {
	if trak.Mdia.Minf == nil || trak.Mdia.Minf.Stbl == nil || trak.Mdia.Minf.Stbl.Stsd == nil {
		return "unknown"
	}
	for _, child := range trak.Mdia.Minf.Stbl.Stsd.Children {
		switch child.Type() {
		case "avc1", "avc3":
			return "h264"
		case "hvc1", "hev1":
			return "hevc"
		case "av01":
			return "av1"
		case "vp09":
			return "vp9"
		case "mp4v":
			return "mpeg4"
		}
	}
	return "unknown"
}
