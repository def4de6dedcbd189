// Package preprocess turns uploaded raster images into the normalized 28x28
// single-channel tensor the digit classifier expects.
package preprocess

import (
	"bytes"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// Size is the side of the model input.
const Size = 28

// Shape is the NHWC tensor shape of one preprocessed image.
var Shape = []int64{1, Size, Size, 1}

// Tensor holds Size*Size intensities in [0,1], row-major.
type Tensor []float32

// Decode parses an encoded image held in memory.
func Decode(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", errors.Wrap(err, "error decoding image")
	}
	return img, format, nil
}

// Image converts img to grayscale, resizes it to Size x Size and normalizes it.
func Image(img image.Image) Tensor {
	gray := Grayscale(img)

	var sized image.Image = gray
	if b := gray.Bounds(); b.Dx() != Size || b.Dy() != Size {
		sized = resize.Resize(Size, Size, gray, resize.Bicubic)
	}

	t := make(Tensor, Size*Size)
	b := sized.Bounds()
	for y := 0; y < Size; y++ {
		for x := 0; x < Size; x++ {
			g := color.GrayModel.Convert(sized.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
			t[y*Size+x] = float32(g.Y) / 255
		}
	}
	return t
}

// Bytes decodes and preprocesses an encoded image.
func Bytes(data []byte) (Tensor, error) {
	img, _, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return Image(img), nil
}

// Grayscale converts img to 8-bit luma (ITU-R 601-2 weights) anchored at the origin.
func Grayscale(img image.Image) *image.Gray {
	b := img.Bounds()
	if g, ok := img.(*image.Gray); ok && b.Min == (image.Point{}) {
		return g
	}
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			gray.Set(x-b.Min.X, y-b.Min.Y, color.GrayModel.Convert(img.At(x, y)))
		}
	}
	return gray
}

// ToImage renders t back to an 8-bit grayscale image.
func (t Tensor) ToImage() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, Size, Size))
	for i, v := range t {
		img.Pix[i] = uint8(math.Round(float64(clamp(v)) * 255))
	}
	return img
}

// Float64 widens the tensor for the native network.
func (t Tensor) Float64() []float64 {
	out := make([]float64, len(t))
	for i, v := range t {
		out[i] = float64(v)
	}
	return out
}

func clamp(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
