/*
	This file supports the pixel arrays stored in the image and mask columns.

	A Sample is a PNG-compressed pixel array plus the logical shape a consumer should
	see after decoding, e.g., (height, width, 3) for color images or (height, width, 1)
	for single channel masks.  PNG itself carries no notion of a trailing channel
	axis, so the shape is kept alongside the compressed bytes.
*/

package lake

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"github.com/tinylib/msgp/msgp"
)

// PNG color types as stored in the IHDR chunk.
const (
	ColorGray      uint8 = 0
	ColorRGB       uint8 = 2
	ColorPalette   uint8 = 3
	ColorGrayAlpha uint8 = 4
	ColorRGBA      uint8 = 6
)

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// PNGHeader holds the IHDR fields needed to know the array shape of a PNG
// without decoding it.
type PNGHeader struct {
	Width     int
	Height    int
	BitDepth  uint8
	ColorType uint8
}

// ReadPNGHeader parses the IHDR chunk at the start of PNG data.
func ReadPNGHeader(data []byte) (PNGHeader, error) {
	var h PNGHeader
	if len(data) < 8+8+13 {
		return h, fmt.Errorf("data too short for PNG header (%d bytes)", len(data))
	}
	if !bytes.Equal(data[:8], pngSignature) {
		return h, fmt.Errorf("not a PNG: bad signature")
	}
	if string(data[12:16]) != "IHDR" {
		return h, fmt.Errorf("not a PNG: first chunk is %q, not IHDR", data[12:16])
	}
	h.Width = int(binary.BigEndian.Uint32(data[16:20]))
	h.Height = int(binary.BigEndian.Uint32(data[20:24]))
	h.BitDepth = data[24]
	h.ColorType = data[25]
	return h, nil
}

// Channels returns the number of values per pixel for the PNG color type.
// Palette images count as a single channel of indices.
func (h PNGHeader) Channels() int {
	switch h.ColorType {
	case ColorGray, ColorPalette:
		return 1
	case ColorGrayAlpha:
		return 2
	case ColorRGB:
		return 3
	case ColorRGBA:
		return 4
	default:
		return 0
	}
}

// DType returns the element type of decoded pixel values.
func (h PNGHeader) DType() string {
	if h.BitDepth == 16 {
		return "uint16"
	}
	return "uint8"
}

// Shape returns the as-decoded array shape: (height, width) for single channel
// images and (height, width, channels) otherwise.
func (h PNGHeader) Shape() []int {
	if c := h.Channels(); c != 1 {
		return []int{h.Height, h.Width, c}
	}
	return []int{h.Height, h.Width}
}

// ExpandDims appends a trailing channel axis of size one to a 2d shape.
// Shapes that already have a channel axis are returned unchanged.
func ExpandDims(shape []int) []int {
	if len(shape) != 2 {
		return shape
	}
	return []int{shape[0], shape[1], 1}
}

// Sample is a PNG-compressed pixel array.
type Sample struct {
	Shape []int
	DType string
	PNG   []byte
}

// Channels returns the size of the trailing channel axis, or 1 for 2d samples.
func (s *Sample) Channels() int {
	if len(s.Shape) == 3 {
		return s.Shape[2]
	}
	return 1
}

func (s *Sample) String() string {
	return fmt.Sprintf("%v %s (%d bytes png)", s.Shape, s.DType, len(s.PNG))
}

// Validate checks that the sample's shape is consistent with its PNG data.
func (s *Sample) Validate() error {
	if s == nil {
		return fmt.Errorf("nil sample")
	}
	if len(s.Shape) != 2 && len(s.Shape) != 3 {
		return fmt.Errorf("sample shape %v must be 2d or 3d", s.Shape)
	}
	h, err := ReadPNGHeader(s.PNG)
	if err != nil {
		return err
	}
	if h.Height != s.Shape[0] || h.Width != s.Shape[1] {
		return fmt.Errorf("sample shape %v does not match %dx%d png", s.Shape, h.Width, h.Height)
	}
	return nil
}

// Decode decompresses the sample into a Go image.
func (s *Sample) Decode() (image.Image, error) {
	return png.Decode(bytes.NewReader(s.PNG))
}

// ImageSample decodes PNG data and returns a 3-channel color sample.  Data that is
// already 8-bit RGB is stored as is; anything else (grayscale, palette, alpha,
// 16-bit) is converted to RGB and recompressed.  Alpha is dropped, not blended.
func ImageSample(data []byte) (*Sample, error) {
	h, err := ReadPNGHeader(data)
	if err != nil {
		return nil, err
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding png: %w", err)
	}
	b := img.Bounds()
	sample := &Sample{
		Shape: []int{b.Dy(), b.Dx(), 3},
		DType: "uint8",
	}
	if h.ColorType == ColorRGB && h.BitDepth == 8 {
		sample.PNG = data
		return sample, nil
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, ToRGB(img)); err != nil {
		return nil, fmt.Errorf("encoding rgb png: %w", err)
	}
	sample.PNG = buf.Bytes()
	return sample, nil
}

// MaskSample decodes PNG data to verify it and returns a sample that keeps the
// data as is.  Single channel masks get an explicit trailing channel axis of size 1.
func MaskSample(data []byte) (*Sample, error) {
	h, err := ReadPNGHeader(data)
	if err != nil {
		return nil, err
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding png: %w", err)
	}
	if b := img.Bounds(); b.Dx() != h.Width || b.Dy() != h.Height {
		return nil, fmt.Errorf("decoded mask is %dx%d but header says %dx%d", b.Dx(), b.Dy(), h.Width, h.Height)
	}
	return &Sample{
		Shape: ExpandDims(h.Shape()),
		DType: h.DType(),
		PNG:   data,
	}, nil
}

// ToRGB returns an opaque RGBA copy of img with alpha discarded.  Encoding the
// result as PNG yields 8-bit truecolor without an alpha channel.
func ToRGB(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			dst.SetRGBA(x-b.Min.X, y-b.Min.Y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff})
		}
	}
	return dst
}

// --- msgp serialization ---

// MarshalMsg implements msgp.Marshaler
func (s *Sample) MarshalMsg(b []byte) (o []byte, err error) {
	o = msgp.Require(b, s.Msgsize())
	o = msgp.AppendArrayHeader(o, 3)
	o = msgp.AppendArrayHeader(o, uint32(len(s.Shape)))
	for _, d := range s.Shape {
		o = msgp.AppendInt(o, d)
	}
	o = msgp.AppendString(o, s.DType)
	o = msgp.AppendBytes(o, s.PNG)
	return
}

// UnmarshalMsg implements msgp.Unmarshaler
func (s *Sample) UnmarshalMsg(bts []byte) (o []byte, err error) {
	var sz uint32
	sz, bts, err = msgp.ReadArrayHeaderBytes(bts)
	if err != nil {
		return
	}
	if sz != 3 {
		err = msgp.ArrayError{Wanted: 3, Got: sz}
		return
	}
	var ndim uint32
	ndim, bts, err = msgp.ReadArrayHeaderBytes(bts)
	if err != nil {
		return
	}
	s.Shape = make([]int, ndim)
	for i := range s.Shape {
		s.Shape[i], bts, err = msgp.ReadIntBytes(bts)
		if err != nil {
			return
		}
	}
	s.DType, bts, err = msgp.ReadStringBytes(bts)
	if err != nil {
		return
	}
	s.PNG, bts, err = msgp.ReadBytesBytes(bts, nil)
	if err != nil {
		return
	}
	o = bts
	return
}

// Msgsize returns an upper bound estimate of the number of bytes occupied by the serialized message
func (s *Sample) Msgsize() int {
	return msgp.ArrayHeaderSize + msgp.ArrayHeaderSize + len(s.Shape)*msgp.IntSize +
		msgp.StringPrefixSize + len(s.DType) + msgp.BytesPrefixSize + len(s.PNG)
}
