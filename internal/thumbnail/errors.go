package thumbnail

import "errors"

// Extraction failures are classified so callers can branch on the stage
// that rejected the input. All of them surface to the HTTP layer as
// "no thumbnail"; the class only matters for logs and tests.
var (
	// ErrInput means the buffer could not be opened as any known
	// container format.
	ErrInput = errors.New("thumbnail: input not recognized as a container")

	// ErrNoVideoStream means the container was parsed but holds no
	// video-typed elementary stream.
	ErrNoVideoStream = errors.New("thumbnail: no video stream")

	// ErrDecoderInit means no decoder matches the stream's codec or the
	// codec parameters were rejected.
	ErrDecoderInit = errors.New("thumbnail: decoder init failed")

	// ErrDecode means the decoder reported an unrecoverable fault.
	ErrDecode = errors.New("thumbnail: decode failed")

	// ErrNoFrameDecoded means the input was exhausted before any frame
	// was produced.
	ErrNoFrameDecoded = errors.New("thumbnail: no frame decoded")

	// ErrConversion means the pixel-format remap could not be
	// constructed or executed.
	ErrConversion = errors.New("thumbnail: pixel format conversion failed")

	// ErrEncoderInit means the JPEG encoder rejected its parameters.
	ErrEncoderInit = errors.New("thumbnail: encoder init failed")

	// ErrEncode means the encoder produced no packet for the submitted
	// frame.
	ErrEncode = errors.New("thumbnail: encode failed")
)
