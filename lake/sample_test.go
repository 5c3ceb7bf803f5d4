package lake_test

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabbenick/artigo-deeplake/lake"
	"github.com/gabbenick/artigo-deeplake/lake/laketest"
)

func TestReadPNGHeader(t *testing.T) {
	h, err := lake.ReadPNGHeader(laketest.GrayPNG(t, 7, 5))
	require.NoError(t, err)
	assert.Equal(t, lake.PNGHeader{Width: 7, Height: 5, BitDepth: 8, ColorType: lake.ColorGray}, h)
	assert.Equal(t, []int{5, 7}, h.Shape())

	h, err = lake.ReadPNGHeader(laketest.RGBPNG(t, 3, 2))
	require.NoError(t, err)
	assert.Equal(t, lake.ColorRGB, h.ColorType)
	assert.Equal(t, []int{2, 3, 3}, h.Shape())

	_, err = lake.ReadPNGHeader([]byte("not a png at all, just some text"))
	assert.Error(t, err)
	_, err = lake.ReadPNGHeader(nil)
	assert.Error(t, err)
}

func TestImageSample(t *testing.T) {
	gray16 := image.NewGray16(image.Rect(0, 0, 6, 2))
	gray16.SetGray16(1, 1, color.Gray16{Y: 0xffff})

	paletted := image.NewPaletted(image.Rect(0, 0, 4, 4), color.Palette{color.Black, color.White})
	paletted.SetColorIndex(2, 2, 1)

	tests := []struct {
		name  string
		data  []byte
		shape []int
		asIs  bool
	}{
		{"rgb", laketest.RGBPNG(t, 4, 3), []int{3, 4, 3}, true},
		{"rgba", laketest.RGBAPNG(t, 4, 3), []int{3, 4, 3}, false},
		{"gray", laketest.GrayPNG(t, 5, 2), []int{2, 5, 3}, false},
		{"gray16", laketest.EncodePNG(t, gray16), []int{2, 6, 3}, false},
		{"palette", laketest.EncodePNG(t, paletted), []int{4, 4, 3}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := lake.ImageSample(tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.shape, s.Shape)
			assert.Equal(t, "uint8", s.DType)
			assert.Equal(t, 3, s.Channels())
			require.NoError(t, s.Validate())
			if tt.asIs {
				assert.Equal(t, tt.data, s.PNG)
			}

			h, err := lake.ReadPNGHeader(s.PNG)
			require.NoError(t, err)
			assert.Equal(t, lake.ColorRGB, h.ColorType)
			assert.Equal(t, uint8(8), h.BitDepth)

			img, err := s.Decode()
			require.NoError(t, err)
			assert.Equal(t, tt.shape[1], img.Bounds().Dx())
			assert.Equal(t, tt.shape[0], img.Bounds().Dy())
		})
	}
}

func TestImageSampleDropsAlpha(t *testing.T) {
	s, err := lake.ImageSample(laketest.RGBAPNG(t, 2, 2))
	require.NoError(t, err)
	img, err := s.Decode()
	require.NoError(t, err)
	r, _, _, a := img.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), a)
	assert.Equal(t, uint32(200)*0x101, r)
}

func TestMaskSample(t *testing.T) {
	gray16 := image.NewGray16(image.Rect(0, 0, 3, 3))
	rgbMask := laketest.RGBPNG(t, 4, 2)

	tests := []struct {
		name  string
		data  []byte
		shape []int
		dtype string
	}{
		{"gray gains channel axis", laketest.GrayPNG(t, 5, 4), []int{4, 5, 1}, "uint8"},
		{"gray16", laketest.EncodePNG(t, gray16), []int{3, 3, 1}, "uint16"},
		{"rgb kept as is", rgbMask, []int{2, 4, 3}, "uint8"},
		{"rgba kept as is", laketest.RGBAPNG(t, 2, 2), []int{2, 2, 4}, "uint8"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := lake.MaskSample(tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.shape, s.Shape)
			assert.Equal(t, tt.dtype, s.DType)
			assert.Equal(t, tt.data, s.PNG)
			require.NoError(t, s.Validate())
		})
	}
}

func TestSampleDecodeErrors(t *testing.T) {
	truncated := laketest.GrayPNG(t, 8, 8)
	truncated = truncated[:40]
	_, err := lake.MaskSample(truncated)
	assert.Error(t, err)
	_, err = lake.ImageSample(truncated)
	assert.Error(t, err)
	_, err = lake.ImageSample([]byte("GIF89a"))
	assert.Error(t, err)
}

func TestExpandDims(t *testing.T) {
	assert.Equal(t, []int{4, 5, 1}, lake.ExpandDims([]int{4, 5}))
	assert.Equal(t, []int{4, 5, 3}, lake.ExpandDims([]int{4, 5, 3}))
}

func TestSampleMsgp(t *testing.T) {
	s, err := lake.MaskSample(laketest.GrayPNG(t, 3, 2))
	require.NoError(t, err)
	b, err := s.MarshalMsg(nil)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(b), s.Msgsize())

	var got lake.Sample
	rest, err := got.UnmarshalMsg(b)
	require.NoError(t, err)
	assert.Empty(t, rest)
	assert.Equal(t, *s, got)

	_, err = got.UnmarshalMsg(b[:len(b)-3])
	assert.Error(t, err)
}

func TestSampleValidate(t *testing.T) {
	data := laketest.GrayPNG(t, 3, 2)
	assert.Error(t, (&lake.Sample{Shape: []int{3, 2, 1}, PNG: data}).Validate())
	assert.Error(t, (&lake.Sample{Shape: []int{2}, PNG: data}).Validate())
	assert.Error(t, (&lake.Sample{Shape: []int{2, 3}, PNG: []byte("x")}).Validate())
	assert.NoError(t, (&lake.Sample{Shape: []int{2, 3, 1}, PNG: data}).Validate())
	var nilSample *lake.Sample
	assert.Error(t, nilSample.Validate())
}
