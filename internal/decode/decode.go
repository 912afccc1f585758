// Package decode converts raw capture buffers into pixel layouts, images and
// JPEG snapshots.
package decode

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"math"

	"github.com/smazurov/camcap/pkg/capture"
)

// Decoder handles MJPEG, YUYV, NV12, GRAY, RGB24 and BGR24 frames.
var Decoder capture.Decoder = capture.DecoderFunc(Decode)

// DefaultQuality is the JPEG quality used by EncodeJPEG when none is given.
const DefaultQuality = 90

// Decode converts raw bytes of src at res into dst.
func Decode(raw []byte, src capture.FrameFormat, res capture.Resolution, dst capture.PixelFormat) ([]byte, error) {
	img, err := toImage(raw, src, res)
	if err != nil {
		return nil, err
	}
	return pixels(img, dst)
}

// Image decodes a buffer into an image.Image without a pixel conversion pass
// where the source layout maps onto a standard image type.
func Image(buf *capture.Buffer) (image.Image, error) {
	img, err := toImage(buf.Bytes(), buf.SourceFormat(), buf.Resolution())
	if err != nil {
		return nil, capture.WrapError(capture.ErrDecode, "decode", fmt.Sprintf("%s %s", buf.SourceFormat(), buf.Resolution()), err)
	}
	return img, nil
}

// EncodeJPEG returns the buffer as a JPEG. MJPEG frames are returned as is.
func EncodeJPEG(buf *capture.Buffer, quality int) ([]byte, error) {
	if buf.SourceFormat() == capture.FormatMJPEG {
		return bytes.Clone(buf.Bytes()), nil
	}
	img, err := Image(buf)
	if err != nil {
		return nil, err
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	var out bytes.Buffer
	if err := jpeg.Encode(&out, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, capture.WrapError(capture.ErrDecode, "encode", "jpeg", err)
	}
	return out.Bytes(), nil
}

// frameSize is the byte length of a raw frame of src at res, computed so it
// cannot wrap for any 32-bit width and height.
func frameSize(src capture.FrameFormat, res capture.Resolution) uint64 {
	px := uint64(res.Width) * uint64(res.Height)
	switch src {
	case capture.FormatYUYV:
		return px * 2
	case capture.FormatNV12:
		return px + px/2
	case capture.FormatRGB24, capture.FormatBGR24:
		return px * 3
	default:
		return px
	}
}

func toImage(raw []byte, src capture.FrameFormat, res capture.Resolution) (image.Image, error) {
	if src != capture.FormatMJPEG {
		n := frameSize(src, res)
		// decoded images hold up to four bytes per pixel
		if n > uint64(len(raw)) || uint64(res.Width)*uint64(res.Height)*4 > math.MaxInt {
			return nil, fmt.Errorf("%s %s needs %d bytes, got %d", src, res, n, len(raw))
		}
	}
	w, h := int(res.Width), int(res.Height)
	rect := image.Rect(0, 0, w, h)

	switch src {
	case capture.FormatMJPEG:
		img, err := jpeg.Decode(bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		return img, nil

	case capture.FormatYUYV:
		img := image.NewYCbCr(rect, image.YCbCrSubsampleRatio422)
		for y := range h {
			row := raw[y*w*2:]
			for x := 0; x+1 < w; x += 2 {
				i := x * 2
				img.Y[y*img.YStride+x] = row[i]
				img.Y[y*img.YStride+x+1] = row[i+2]
				c := y*img.CStride + x/2
				img.Cb[c] = row[i+1]
				img.Cr[c] = row[i+3]
			}
		}
		return img, nil

	case capture.FormatNV12:
		img := image.NewYCbCr(rect, image.YCbCrSubsampleRatio420)
		for y := range h {
			copy(img.Y[y*img.YStride:y*img.YStride+w], raw[y*w:])
		}
		uv := raw[w*h:]
		for y := range h / 2 {
			for x := range w / 2 {
				img.Cb[y*img.CStride+x] = uv[y*w+x*2]
				img.Cr[y*img.CStride+x] = uv[y*w+x*2+1]
			}
		}
		return img, nil

	case capture.FormatGRAY:
		img := image.NewGray(rect)
		copy(img.Pix, raw[:w*h])
		return img, nil

	case capture.FormatRGB24, capture.FormatBGR24:
		img := image.NewRGBA(rect)
		for i, j := 0, 0; i < w*h*3; i, j = i+3, j+4 {
			r, g, b := raw[i], raw[i+1], raw[i+2]
			if src == capture.FormatBGR24 {
				r, b = b, r
			}
			img.Pix[j], img.Pix[j+1], img.Pix[j+2], img.Pix[j+3] = r, g, b, 0xff
		}
		return img, nil

	default:
		return nil, fmt.Errorf("no decoder for %s", src)
	}
}

func pixels(img image.Image, dst capture.PixelFormat) ([]byte, error) {
	b := img.Bounds()
	switch dst {
	case capture.PixelRGBA:
		rgba := image.NewRGBA(b)
		draw.Draw(rgba, b, img, b.Min, draw.Src)
		return rgba.Pix, nil

	case capture.PixelRGB24:
		rgba := image.NewRGBA(b)
		draw.Draw(rgba, b, img, b.Min, draw.Src)
		out := make([]byte, 0, b.Dx()*b.Dy()*3)
		for i := 0; i < len(rgba.Pix); i += 4 {
			out = append(out, rgba.Pix[i], rgba.Pix[i+1], rgba.Pix[i+2])
		}
		return out, nil

	case capture.PixelLuma:
		if g, ok := img.(*image.Gray); ok {
			return bytes.Clone(g.Pix), nil
		}
		if y, ok := img.(*image.YCbCr); ok && y.YStride == b.Dx() {
			return bytes.Clone(y.Y[:b.Dx()*b.Dy()]), nil
		}
		gray := image.NewGray(b)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				gray.Set(x, y, color.GrayModel.Convert(img.At(x, y)))
			}
		}
		return gray.Pix, nil

	default:
		return nil, fmt.Errorf("unknown pixel format %q", dst)
	}
}
