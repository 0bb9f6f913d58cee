package thumbnail

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/asticode/go-astiav"
)

const (
	// ioBufferSize is the demuxer's internal read buffer. 32 KiB keeps
	// probe reads cheap without fragmenting large packets.
	ioBufferSize = 32 * 1024

	// The MJPEG encoder requires a time base even though a single still
	// has no timing; 1/25 is a placeholder, never used for playback.
	encoderTimeBaseDen = 25

	// Moderate quality/size trade-off for dashboard-sized stills.
	encoderCompressionLevel = "2"
)

var initOnce sync.Once

// initCodecs performs the process-wide codec library setup. It runs at
// most once and is never torn down; concurrent extractions after that
// share no state.
func initCodecs() {
	astiav.SetLogLevel(astiav.LogLevelError)
}

// memoryReader walks a borrowed byte slice. It substitutes for a
// file-backed source: the demuxer reads the buffer exactly as it would
// read a file, and sees EOF when the cursor reaches the end.
type memoryReader struct {
	data []byte
	pos  int
}

func (r *memoryReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}

// Extract decodes the first retrievable video frame from data and
// returns it encoded as a baseline JPEG. The input is only borrowed;
// the returned slice is owned by the caller. On any failure the error
// wraps one of the sentinel values of this package and no bytes are
// returned.
func Extract(data []byte) ([]byte, error) {
	initOnce.Do(initCodecs)

	// Stage 1: memory-backed input adapter behind a custom IO context.
	ioCtx, err := astiav.AllocIOContext(
		ioBufferSize,
		false,
		(&memoryReader{data: data}).Read,
		nil,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: alloc io context: %s", ErrInput, err)
	}
	defer ioCtx.Free()

	formatCtx := astiav.AllocFormatContext()
	if formatCtx == nil {
		return nil, fmt.Errorf("%w: alloc format context", ErrInput)
	}
	defer formatCtx.Free()
	formatCtx.SetPb(ioCtx)

	// Stage 2: container probe. No format is assumed a priori.
	if err := formatCtx.OpenInput("", nil, nil); err != nil {
		return nil, fmt.Errorf("%w: open input: %s", ErrInput, err)
	}
	defer formatCtx.CloseInput()

	if err := formatCtx.FindStreamInfo(nil); err != nil {
		return nil, fmt.Errorf("%w: find stream info: %s", ErrInput, err)
	}

	// First video-typed stream in container order; resolution, bitrate
	// and codec never influence the choice.
	var videoStream *astiav.Stream
	for _, s := range formatCtx.Streams() {
		if s.CodecParameters().MediaType() == astiav.MediaTypeVideo {
			videoStream = s
			break
		}
	}
	if videoStream == nil {
		return nil, ErrNoVideoStream
	}

	// Stage 3: decode until the first frame.
	frame, cleanupDecode, err := decodeFirstFrame(formatCtx, videoStream)
	if err != nil {
		return nil, err
	}
	defer cleanupDecode()

	// Stages 4-5: convert to the JPEG pixel layout and encode.
	return encodeJPEG(frame)
}

// decodeFirstFrame binds a decoder to the stream and reads packets
// until one frame is produced. The returned cleanup releases the frame
// and the decoder; it must run after the frame is no longer used.
func decodeFirstFrame(formatCtx *astiav.FormatContext, stream *astiav.Stream) (*astiav.Frame, func(), error) {
	params := stream.CodecParameters()

	decoder := astiav.FindDecoder(params.CodecID())
	if decoder == nil {
		return nil, nil, fmt.Errorf("%w: no decoder for codec %s", ErrDecoderInit, params.CodecID())
	}

	decCtx := astiav.AllocCodecContext(decoder)
	if decCtx == nil {
		return nil, nil, fmt.Errorf("%w: alloc codec context", ErrDecoderInit)
	}

	if err := decCtx.FromCodecParameters(params); err != nil {
		decCtx.Free()
		return nil, nil, fmt.Errorf("%w: copy codec parameters: %s", ErrDecoderInit, err)
	}

	if err := decCtx.Open(decoder, nil); err != nil {
		decCtx.Free()
		return nil, nil, fmt.Errorf("%w: open decoder: %s", ErrDecoderInit, err)
	}

	pkt := astiav.AllocPacket()
	frame := astiav.AllocFrame()
	cleanup := func() {
		frame.Free()
		pkt.Free()
		decCtx.Free()
	}

	for {
		if err := formatCtx.ReadFrame(pkt); err != nil {
			// Input exhausted (or unreadable past this point) before
			// any frame came out.
			cleanup()
			return nil, nil, ErrNoFrameDecoded
		}

		if pkt.StreamIndex() != stream.Index() {
			pkt.Unref()
			continue
		}

		err := decCtx.SendPacket(pkt)
		pkt.Unref()
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("%w: send packet: %s", ErrDecode, err)
		}

		if err := decCtx.ReceiveFrame(frame); err != nil {
			// The decoder wanting more input is not a failure: keep
			// feeding packets until it produces something.
			if errors.Is(err, astiav.ErrEagain) || errors.Is(err, astiav.ErrEof) {
				continue
			}
			cleanup()
			return nil, nil, fmt.Errorf("%w: receive frame: %s", ErrDecode, err)
		}

		// First decoded frame terminates the loop; a second one is
		// never requested.
		return frame, cleanup, nil
	}
}

// encodeJPEG converts src to full-range YUV 4:2:0 at identical
// dimensions and runs it through the MJPEG encoder, returning a private
// copy of the encoded bytes.
func encodeJPEG(src *astiav.Frame) ([]byte, error) {
	jpegCodec := astiav.FindEncoder(astiav.CodecIDMjpeg)
	if jpegCodec == nil {
		return nil, fmt.Errorf("%w: mjpeg encoder unavailable", ErrEncoderInit)
	}

	encCtx := astiav.AllocCodecContext(jpegCodec)
	if encCtx == nil {
		return nil, fmt.Errorf("%w: alloc encoder context", ErrEncoderInit)
	}
	defer encCtx.Free()

	encCtx.SetPixelFormat(astiav.PixelFormatYuvj420P)
	encCtx.SetWidth(src.Width())
	encCtx.SetHeight(src.Height())
	encCtx.SetTimeBase(astiav.NewRational(1, encoderTimeBaseDen))

	opts := astiav.NewDictionary()
	defer opts.Free()
	_ = opts.Set("compression_level", encoderCompressionLevel, 0)

	if err := encCtx.Open(jpegCodec, opts); err != nil {
		return nil, fmt.Errorf("%w: open encoder: %s", ErrEncoderInit, err)
	}

	// Decoders emit all sorts of pixel formats; always remap through
	// the software scaler rather than special-casing sources that are
	// already 4:2:0. Scaling factor is 1:1 here, so bicubic only
	// matters if a future caller changes the destination size.
	converted := astiav.AllocFrame()
	defer converted.Free()
	converted.SetWidth(src.Width())
	converted.SetHeight(src.Height())
	converted.SetPixelFormat(astiav.PixelFormatYuvj420P)
	if err := converted.AllocBuffer(1); err != nil {
		return nil, fmt.Errorf("%w: alloc frame buffer: %s", ErrConversion, err)
	}

	scaleCtx, err := astiav.CreateSoftwareScaleContext(
		src.Width(), src.Height(), src.PixelFormat(),
		converted.Width(), converted.Height(), converted.PixelFormat(),
		astiav.NewSoftwareScaleContextFlags(astiav.SoftwareScaleContextFlagBicubic),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: create scale context (%s -> yuvj420p): %s", ErrConversion, src.PixelFormat(), err)
	}
	defer scaleCtx.Free()

	if err := scaleCtx.ScaleFrame(src, converted); err != nil {
		return nil, fmt.Errorf("%w: scale frame: %s", ErrConversion, err)
	}

	encoded := astiav.AllocPacket()
	defer encoded.Free()

	if err := encCtx.SendFrame(converted); err != nil {
		return nil, fmt.Errorf("%w: send frame: %s", ErrEncode, err)
	}

	if err := encCtx.ReceivePacket(encoded); err != nil {
		// One frame in must yield one packet out; "needs more input"
		// here means no image was produced.
		return nil, fmt.Errorf("%w: receive packet: %s", ErrEncode, err)
	}

	// Private copy: the packet's buffer dies with the deferred frees.
	out := make([]byte, len(encoded.Data()))
	copy(out, encoded.Data())
	return out, nil
}
