package virtual

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	"github.com/smazurov/camcap/pkg/capture"
)

// SMPTE-style bars, left to right.
var bars = [8]color.RGBA{
	{192, 192, 192, 255},
	{192, 192, 0, 255},
	{0, 192, 192, 255},
	{0, 192, 0, 255},
	{192, 0, 192, 255},
	{192, 0, 0, 255},
	{0, 0, 192, 255},
	{16, 16, 16, 255},
}

// bandHeight is the height of the white band that scrolls one row per frame.
const bandHeight = 8

// patternRGB returns the colour of pixel (x, y) in frame seq.
func patternRGB(x, y, w, h int, seq uint64) (r, g, b uint8) {
	if h > 0 && (y-int(seq%uint64(h))+h)%h < bandHeight {
		return 235, 235, 235
	}
	c := bars[x*len(bars)/w]
	return c.R, c.G, c.B
}

// Render draws frame seq of the test pattern in the given pixel format.
func Render(format capture.FrameFormat, res capture.Resolution, seq uint64) ([]byte, error) {
	w, h := int(res.Width), int(res.Height)
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("empty resolution %s", res)
	}

	switch format {
	case capture.FormatRGB24, capture.FormatBGR24:
		out := make([]byte, 0, w*h*3)
		for y := range h {
			for x := range w {
				r, g, b := patternRGB(x, y, w, h, seq)
				if format == capture.FormatBGR24 {
					r, b = b, r
				}
				out = append(out, r, g, b)
			}
		}
		return out, nil

	case capture.FormatGRAY:
		out := make([]byte, 0, w*h)
		for y := range h {
			for x := range w {
				yy, _, _ := color.RGBToYCbCr(patternRGB(x, y, w, h, seq))
				out = append(out, yy)
			}
		}
		return out, nil

	case capture.FormatYUYV:
		if w%2 != 0 {
			return nil, fmt.Errorf("YUYV needs an even width, got %d", w)
		}
		out := make([]byte, 0, w*h*2)
		for y := range h {
			for x := 0; x < w; x += 2 {
				y0, cb, cr := color.RGBToYCbCr(patternRGB(x, y, w, h, seq))
				y1, _, _ := color.RGBToYCbCr(patternRGB(x+1, y, w, h, seq))
				out = append(out, y0, cb, y1, cr)
			}
		}
		return out, nil

	case capture.FormatNV12:
		if w%2 != 0 || h%2 != 0 {
			return nil, fmt.Errorf("NV12 needs even dimensions, got %s", res)
		}
		out := make([]byte, w*h+w*h/2)
		uv := out[w*h:]
		for y := range h {
			for x := range w {
				yy, cb, cr := color.RGBToYCbCr(patternRGB(x, y, w, h, seq))
				out[y*w+x] = yy
				if x%2 == 0 && y%2 == 0 {
					i := (y/2)*w + x
					uv[i], uv[i+1] = cb, cr
				}
			}
		}
		return out, nil

	case capture.FormatMJPEG:
		img := image.NewRGBA(image.Rect(0, 0, w, h))
		for y := range h {
			for x := range w {
				r, g, b := patternRGB(x, y, w, h, seq)
				i := img.PixOffset(x, y)
				img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = r, g, b, 255
			}
		}
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil

	default:
		return nil, fmt.Errorf("cannot render %s", format)
	}
}
