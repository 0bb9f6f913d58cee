package download

import (
	"bytes"
	"testing"

	"github.com/Eyevinn/mp4ff/mp4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeVideoInit builds an init segment with one video track: avc1,
// 640x360, 12.5 seconds.
func makeVideoInit(t *testing.T) []byte {
	t.Helper()

	init := mp4.CreateEmptyInit()
	init.AddEmptyTrack(90000, "video", "und")

	init.Moov.Mvhd.Timescale = 1000
	init.Moov.Mvhd.Duration = 12500

	trak := init.Moov.Trak
	trak.Tkhd.Width = 640 << 16
	trak.Tkhd.Height = 360 << 16
	trak.Mdia.Minf.Stbl.Stsd.AddChild(mp4.NewVisualSampleEntryBox("avc1"))

	var buf bytes.Buffer
	require.NoError(t, init.Encode(&buf))
	return buf.Bytes()
}

func TestProbeMetadata(t *testing.T) {
	meta, err := ProbeMetadata(makeVideoInit(t))
	require.NoError(t, err)

	assert.InDelta(t, 12.5, meta.DurationSeconds, 0.001)
	assert.Equal(t, "h264", meta.Codec)
	assert.Equal(t, 640, meta.Width)
	assert.Equal(t, 360, meta.Height)
}

func TestProbeMetadataAudioOnly(t *testing.T) {
	init := mp4.CreateEmptyInit()
	init.AddEmptyTrack(48000, "audio", "und")

	var buf bytes.Buffer
	require.NoError(t, init.Encode(&buf))

	_, err := ProbeMetadata(buf.Bytes())
	assert.Error(t, err)
}

func TestProbeMetadataTruncatedPrefix(t *testing.T) {
	data := makeVideoInit(t)

	// A download in flight retries the probe while the moov is still
	// incomplete; that must error, not panic.
	_, err := ProbeMetadata(data[:16])
	assert.Error(t, err)
}

func TestProbeMetadataGarbage(t *testing.T) {
	_, err := ProbeMetadata([]byte("definitely not an mp4 file at all"))
	assert.Error(t, err)
}
