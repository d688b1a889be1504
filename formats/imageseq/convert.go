// Package imageseq implements the decoders and encoders shared by formats that store one
// image per file, such as numbered PNG or JPEG sequences.
package imageseq

import (
	"fmt"
	"image"
	"image/color"

	"github.com/SaveTheRbtz/frameio"
)

// FromImage converts a decoded image into the interleaved frameio layout.  Opaque color
// images get three channels, others four.
func FromImage(img image.Image) (*frameio.Image, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	switch src := img.(type) {
	case *image.Gray:
		out := frameio.NewImage(frameio.ImageInfo{Width: w, Height: h, Channels: 1, BitDepth: 8})
		copyRows(out.Data, src.Pix, src.Stride, w, h)
		return out, nil
	case *image.Gray16:
		out := frameio.NewImage(frameio.ImageInfo{Width: w, Height: h, Channels: 1, BitDepth: 16})
		copyRows(out.Data, src.Pix, src.Stride, w*2, h)
		return out, nil
	case *image.NRGBA:
		return fromNRGBA(src.Pix, src.Stride, w, h, 1, src.Opaque()), nil
	case *image.NRGBA64:
		return fromNRGBA(src.Pix, src.Stride, w, h, 2, src.Opaque()), nil
	}

	deep := false
	switch img.ColorModel() {
	case color.RGBA64Model, color.NRGBA64Model, color.Gray16Model, color.Alpha16Model:
		deep = true
	}
	channels := 4
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		channels = 3
	}
	bitDepth := 8
	if deep {
		bitDepth = 16
	}

	out := frameio.NewImage(frameio.ImageInfo{Width: w, Height: h, Channels: channels, BitDepth: bitDepth})
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBA64Model.Convert(img.At(x, y)).(color.NRGBA64)
			samples := [4]uint16{c.R, c.G, c.B, c.A}
			for _, s := range samples[:channels] {
				if deep {
					out.Data[i] = byte(s >> 8)
					out.Data[i+1] = byte(s)
					i += 2
				} else {
					out.Data[i] = byte(s >> 8)
					i++
				}
			}
		}
	}
	return out, nil
}

// fromNRGBA copies non-premultiplied pixels, dropping alpha from opaque images.
func fromNRGBA(pix []byte, stride, w, h, sampleBytes int, opaque bool) *frameio.Image {
	channels := 4
	if opaque {
		channels = 3
	}
	out := frameio.NewImage(frameio.ImageInfo{Width: w, Height: h, Channels: channels, BitDepth: sampleBytes * 8})
	px := channels * sampleBytes
	i := 0
	for y := 0; y < h; y++ {
		row := pix[y*stride:]
		for x := 0; x < w; x++ {
			i += copy(out.Data[i:i+px], row[x*4*sampleBytes:])
		}
	}
	return out
}

func copyRows(dst, src []byte, stride, rowBytes, h int) {
	for y := 0; y < h; y++ {
		copy(dst[y*rowBytes:(y+1)*rowBytes], src[y*stride:y*stride+rowBytes])
	}
}

// ToImage converts a frameio image into an image the standard encoders accept.
func ToImage(img *frameio.Image) (image.Image, error) {
	info := img.Info
	if err := info.Validate(); err != nil {
		return nil, err
	}
	if int64(len(img.Data)) != info.ByteCount() {
		return nil, fmt.Errorf("image %s has %d bytes of data", info, len(img.Data))
	}
	rect := image.Rect(0, 0, info.Width, info.Height)
	n := info.Width * info.Height

	switch {
	case info.Channels == 1 && info.BitDepth == 8:
		out := image.NewGray(rect)
		copy(out.Pix, img.Data)
		return out, nil
	case info.Channels == 1 && info.BitDepth == 16:
		out := image.NewGray16(rect)
		copy(out.Pix, img.Data)
		return out, nil
	case info.BitDepth == 8:
		out := image.NewNRGBA(rect)
		for p := 0; p < n; p++ {
			rgba := expand(img.Data[p*info.Channels:(p+1)*info.Channels], 0xff)
			copy(out.Pix[p*4:], rgba[:])
		}
		return out, nil
	default:
		out := image.NewNRGBA64(rect)
		stride := info.Channels * 2
		for p := 0; p < n; p++ {
			px := img.Data[p*stride : (p+1)*stride]
			// Expand the high and low bytes separately, samples stay big-endian.
			hi, lo := make([]byte, info.Channels), make([]byte, info.Channels)
			for c := 0; c < info.Channels; c++ {
				hi[c], lo[c] = px[c*2], px[c*2+1]
			}
			h, l := expand(hi, 0xff), expand(lo, 0xff)
			for c := 0; c < 4; c++ {
				out.Pix[p*8+c*2] = h[c]
				out.Pix[p*8+c*2+1] = l[c]
			}
		}
		return out, nil
	}
}

// expand maps 2, 3 or 4 channel samples to RGBA.
func expand(px []byte, opaque byte) [4]byte {
	switch len(px) {
	case 2:
		return [4]byte{px[0], px[0], px[0], px[1]}
	case 3:
		return [4]byte{px[0], px[1], px[2], opaque}
	default:
		return [4]byte{px[0], px[1], px[2], px[3]}
	}
}
