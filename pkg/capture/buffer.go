package capture

import (
	"fmt"
	"slices"
	"time"
)

// PixelFormat is a decode target.
type PixelFormat string

// Decode targets.
const (
	PixelRGB24 PixelFormat = "rgb24"
	PixelRGBA  PixelFormat = "rgba"
	PixelLuma  PixelFormat = "luma"
)

// BytesPerPixel returns the size of one pixel in the target layout.
func (p PixelFormat) BytesPerPixel() int {
	switch p {
	case PixelRGBA:
		return 4
	case PixelLuma:
		return 1
	default:
		return 3
	}
}

// Decoder converts raw frame bytes into a pixel layout. Implementations must
// be pure: the same input always yields the same output and raw is never
// modified.
type Decoder interface {
	Decode(raw []byte, src FrameFormat, res Resolution, dst PixelFormat) ([]byte, error)
}

// DecoderFunc adapts a function to Decoder.
type DecoderFunc func(raw []byte, src FrameFormat, res Resolution, dst PixelFormat) ([]byte, error)

// Decode calls f.
func (f DecoderFunc) Decode(raw []byte, src FrameFormat, res Resolution, dst PixelFormat) ([]byte, error) {
	return f(raw, src, res, dst)
}

// Frame is what a backend hands back from PullFrame. The backend may reuse
// Data after the next call; NewBuffer copies it.
type Frame struct {
	Data       []byte
	Resolution Resolution
	Format     FrameFormat
	Timestamp  time.Time
	Sequence   uint64
}

// Buffer is a captured frame owned by the caller.
type Buffer struct {
	raw        []byte
	resolution Resolution
	format     FrameFormat
	timestamp  time.Time
	sequence   uint64
}

// NewBuffer copies raw into a new Buffer.
func NewBuffer(raw []byte, res Resolution, format FrameFormat) *Buffer {
	return &Buffer{raw: slices.Clone(raw), resolution: res, format: format}
}

func bufferFromFrame(f Frame) *Buffer {
	return &Buffer{
		raw:        slices.Clone(f.Data),
		resolution: f.Resolution,
		format:     f.Format,
		timestamp:  f.Timestamp,
		sequence:   f.Sequence,
	}
}

// Bytes returns the raw frame bytes. The slice must not be modified.
func (b *Buffer) Bytes() []byte { return b.raw }

// Len returns the raw size in bytes.
func (b *Buffer) Len() int { return len(b.raw) }

// Resolution returns the frame size.
func (b *Buffer) Resolution() Resolution { return b.resolution }

// SourceFormat returns the encoding of the raw bytes.
func (b *Buffer) SourceFormat() FrameFormat { return b.format }

// Timestamp returns when the frame was captured, if the backend reported it.
func (b *Buffer) Timestamp() time.Time { return b.timestamp }

// Sequence returns the backend frame counter.
func (b *Buffer) Sequence() uint64 { return b.sequence }

// Decode converts the frame with dec. The buffer is left untouched, so Decode
// may be called any number of times.
func (b *Buffer) Decode(dec Decoder, dst PixelFormat) ([]byte, error) {
	if dec == nil {
		return nil, NewError(ErrDecode, "decode", "no decoder")
	}
	out, err := dec.Decode(b.raw, b.format, b.resolution, dst)
	if err != nil {
		if HasCode(err, ErrDecode) {
			return nil, err
		}
		return nil, WrapError(ErrDecode, "decode", fmt.Sprintf("%s %s to %s", b.format, b.resolution, dst), err)
	}
	return out, nil
}
