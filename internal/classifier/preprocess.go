package classifier

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"

	"github.com/leaflens/leaflens/internal/prediction"
	"github.com/nfnt/resize"
)

// DefaultImageSize is the square input edge both models were trained on.
const DefaultImageSize = 224

var (
	imageNetMean = [3]float32{0.485, 0.456, 0.406}
	imageNetStd  = [3]float32{0.229, 0.224, 0.225}
)

// Preprocess decodes a JPEG or PNG, resizes it to size x size and returns
// ImageNet-normalized pixels in CHW order.
func Preprocess(data []byte, size int) ([]float32, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decoding image: %v", prediction.ErrInvalidImage, err)
	}
	return tensorFromImage(img, size), nil
}

func tensorFromImage(img image.Image, size int) []float32 {
	resized := resize.Resize(uint(size), uint(size), img, resize.Bilinear)

	bounds := resized.Bounds()
	plane := size * size
	out := make([]float32, 3*plane)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			r, g, b, _ := resized.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			i := y*size + x
			out[i] = normalize(r, 0)
			out[plane+i] = normalize(g, 1)
			out[2*plane+i] = normalize(b, 2)
		}
	}
	return out
}

// normalize maps a 16-bit channel value to (v/max - mean) / std.
func normalize(v uint32, channel int) float32 {
	return (float32(v)/65535.0 - imageNetMean[channel]) / imageNetStd[channel]
}

// Softmax converts logits to probabilities.
func Softmax(logits []float32) prediction.Vector {
	out := make(prediction.Vector, len(logits))
	if len(logits) == 0 {
		return out
	}

	maxLogit := float64(logits[0])
	for _, l := range logits[1:] {
		maxLogit = math.Max(maxLogit, float64(l))
	}

	sum := 0.0
	for i, l := range logits {
		out[i] = math.Exp(float64(l) - maxLogit)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
