// Package thumbnail extracts a single representative still image from
// an in-memory compressed video buffer and returns it as JPEG bytes.
//
// The pipeline is strictly linear: a memory-backed IO adapter feeds the
// demuxer, the first video stream is selected, packets are decoded until
// the first frame appears, the frame is converted to full-range YUV 4:2:0
// and encoded as a baseline JPEG. Any stage failure short-circuits to a
// unified teardown that releases every acquired codec handle in reverse
// acquisition order; the caller sees either JPEG bytes or an error, never
// a partial image.
package thumbnail
