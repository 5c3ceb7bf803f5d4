/* Test support for packages that need PNG fixtures, records and source trees. */

package laketest

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gabbenick/artigo-deeplake/lake"
)

// EncodePNG returns the PNG encoding of img.
func EncodePNG(t testing.TB, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// RGBPNG returns an opaque w x h color image, encoded by Go as 8-bit truecolor.
func RGBPNG(t testing.TB, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: uint8(x + y), A: 0xff})
		}
	}
	return EncodePNG(t, img)
}

// RGBAPNG returns a w x h color image with a translucent alpha channel.
func RGBAPNG(t testing.TB, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 200, G: uint8(x), B: uint8(y), A: 0x80})
		}
	}
	return EncodePNG(t, img)
}

// GrayPNG returns a w x h 8-bit grayscale image.
func GrayPNG(t testing.TB, w, h int) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8((x + y) % 2 * 255)})
		}
	}
	return EncodePNG(t, img)
}

// Record returns a valid record with small generated image and mask.
func Record(t testing.TB, id int32, split lake.Split, filename string) *lake.Record {
	t.Helper()
	img, err := lake.ImageSample(RGBPNG(t, 4, 3))
	require.NoError(t, err)
	mask, err := lake.MaskSample(GrayPNG(t, 4, 3))
	require.NoError(t, err)
	return &lake.Record{
		ID:               id,
		Image:            img,
		Mask:             mask,
		Split:            split,
		OriginalFilename: filename,
	}
}

// Pair describes one image of a source tree and whether its mask exists.
type Pair struct {
	Split    lake.Split
	Filename string
	NoMask   bool
	Image    []byte // defaults to a small RGB image
	Mask     []byte // defaults to a small grayscale mask
}

// WriteSourceTree writes pairs under root in the <split>/{images,masks} layout.
// Both folders of every split named by a pair are created.
func WriteSourceTree(t testing.TB, root string, pairs ...Pair) {
	t.Helper()
	for _, p := range pairs {
		imageDir := filepath.Join(root, string(p.Split), "images")
		maskDir := filepath.Join(root, string(p.Split), "masks")
		require.NoError(t, os.MkdirAll(imageDir, 0755))
		require.NoError(t, os.MkdirAll(maskDir, 0755))

		img := p.Image
		if img == nil {
			img = RGBPNG(t, 5, 4)
		}
		require.NoError(t, os.WriteFile(filepath.Join(imageDir, p.Filename), img, 0644))
		if p.NoMask {
			continue
		}
		mask := p.Mask
		if mask == nil {
			mask = GrayPNG(t, 5, 4)
		}
		require.NoError(t, os.WriteFile(filepath.Join(maskDir, p.Filename), mask, 0644))
	}
}
