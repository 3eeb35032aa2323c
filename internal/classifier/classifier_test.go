package classifier

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"

	"github.com/leaflens/leaflens/internal/prediction"
	"github.com/leaflens/leaflens/internal/prediction/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func solidPNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestNew_Static(t *testing.T) {
	c, err := New(TypeStatic, map[string]any{
		"probabilities": []any{0.25, 0.75},
	})
	require.NoError(t, err)

	vecs, err := c.Classify(context.Background(), []prediction.Image{{Name: "a"}, {Name: "b"}})
	require.NoError(t, err)
	assert.Equal(t, []prediction.Vector{{0.25, 0.75}, {0.25, 0.75}}, vecs)
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name   string
		typ    Type
		params map[string]any
	}{
		{name: "unknown type", typ: "tensorflow"},
		{name: "static without probabilities", typ: TypeStatic},
		{name: "static bad params", typ: TypeStatic, params: map[string]any{"probabilities": "high"}},
		{name: "onnx without model", typ: TypeONNX, params: map[string]any{"classes": 38}},
		{name: "onnx without classes", typ: TypeONNX, params: map[string]any{"model_path": "disease.onnx"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.typ, tt.params)
			assert.Error(t, err)
			assert.Nil(t, c)
		})
	}

	_, err := New("tensorflow", nil)
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestStatic_ReturnsIndependentVectors(t *testing.T) {
	s, err := NewStatic([]float64{0.5, 0.5})
	require.NoError(t, err)

	vecs, err := s.Classify(context.Background(), make([]prediction.Image, 2))
	require.NoError(t, err)
	vecs[0][0] = 1
	assert.Equal(t, 0.5, vecs[1][0])
}

func TestStatic_CanceledContext(t *testing.T) {
	s, err := NewStatic([]float64{1})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Classify(ctx, make([]prediction.Image, 1))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSoftmax(t *testing.T) {
	p := Softmax([]float32{1, 2, 3})
	require.Len(t, p, 3)

	sum := 0.0
	for _, v := range p {
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Less(t, p[0], p[1])
	assert.Less(t, p[1], p[2])
	assert.InDelta(t, math.Exp(1)/(math.Exp(1)+math.Exp(2)+math.Exp(3)), p[0], 1e-6)
}

func TestSoftmax_LargeLogitsStayFinite(t *testing.T) {
	p := Softmax([]float32{1000, 1000})
	assert.InDelta(t, 0.5, p[0], 1e-9)
	assert.InDelta(t, 0.5, p[1], 1e-9)
	assert.Empty(t, Softmax(nil))
}

func TestPreprocess_NormalizesCHW(t *testing.T) {
	data := solidPNG(t, 40, 30, color.RGBA{R: 255, G: 0, B: 0, A: 255})

	pixels, err := Preprocess(data, 8)
	require.NoError(t, err)
	require.Len(t, pixels, 3*8*8)

	plane := 64
	assert.InDelta(t, (1-0.485)/0.229, pixels[0], 1e-3)
	assert.InDelta(t, (0-0.456)/0.224, pixels[plane], 1e-3)
	assert.InDelta(t, (0-0.406)/0.225, pixels[2*plane+63], 1e-3)
}

func TestPreprocess_RejectsNonImage(t *testing.T) {
	_, err := Preprocess([]byte("not an image"), DefaultImageSize)
	assert.ErrorContains(t, err, "decoding image")
	assert.ErrorIs(t, err, prediction.ErrInvalidImage)
}

func TestCached_ClassifiesEachContentOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	inner := mocks.NewMockClassifier(ctrl)

	a := prediction.Image{Name: "a.jpg", Data: []byte("aaa")}
	b := prediction.Image{Name: "b.jpg", Data: []byte("bbb")}
	aRenamed := prediction.Image{Name: "copy.jpg", Data: []byte("aaa")}

	inner.EXPECT().Classify(gomock.Any(), []prediction.Image{a, b}).
		Return([]prediction.Vector{{1, 0}, {0, 1}}, nil)

	c, err := NewCached(inner, 8)
	require.NoError(t, err)

	first, err := c.Classify(context.Background(), []prediction.Image{a, b})
	require.NoError(t, err)
	assert.Equal(t, []prediction.Vector{{1, 0}, {0, 1}}, first)

	// All hits: the mock would fail on a second call.
	second, err := c.Classify(context.Background(), []prediction.Image{b, aRenamed})
	require.NoError(t, err)
	assert.Equal(t, []prediction.Vector{{0, 1}, {1, 0}}, second)

	hits, misses := c.Stats()
	assert.Equal(t, uint64(2), hits)
	assert.Equal(t, uint64(2), misses)
	assert.Equal(t, 2, c.Len())
}

func TestCached_OnlyMissesReachInner(t *testing.T) {
	ctrl := gomock.NewController(t)
	inner := mocks.NewMockClassifier(ctrl)

	a := prediction.Image{Data: []byte("a")}
	b := prediction.Image{Data: []byte("b")}
	cImg := prediction.Image{Data: []byte("c")}

	gomock.InOrder(
		inner.EXPECT().Classify(gomock.Any(), []prediction.Image{a}).Return([]prediction.Vector{{0.1}}, nil),
		inner.EXPECT().Classify(gomock.Any(), []prediction.Image{b, cImg}).Return([]prediction.Vector{{0.2}, {0.3}}, nil),
	)

	c, err := NewCached(inner, 8)
	require.NoError(t, err)

	_, err = c.Classify(context.Background(), []prediction.Image{a})
	require.NoError(t, err)

	got, err := c.Classify(context.Background(), []prediction.Image{b, a, cImg})
	require.NoError(t, err)
	assert.Equal(t, []prediction.Vector{{0.2}, {0.1}, {0.3}}, got)
}

func TestCached_InnerErrorsAreNotCached(t *testing.T) {
	ctrl := gomock.NewController(t)
	inner := mocks.NewMockClassifier(ctrl)
	img := prediction.Image{Data: []byte("x")}

	gomock.InOrder(
		inner.EXPECT().Classify(gomock.Any(), gomock.Any()).Return(nil, assert.AnError),
		inner.EXPECT().Classify(gomock.Any(), gomock.Any()).Return([]prediction.Vector{{1}}, nil),
	)

	c, err := NewCached(inner, 1)
	require.NoError(t, err)

	_, err = c.Classify(context.Background(), []prediction.Image{img})
	require.ErrorIs(t, err, assert.AnError)

	got, err := c.Classify(context.Background(), []prediction.Image{img})
	require.NoError(t, err)
	assert.Equal(t, []prediction.Vector{{1}}, got)
}

func TestCached_WrongVectorCount(t *testing.T) {
	ctrl := gomock.NewController(t)
	inner := mocks.NewMockClassifier(ctrl)
	inner.EXPECT().Classify(gomock.Any(), gomock.Any()).Return([]prediction.Vector{}, nil)

	c, err := NewCached(inner, 4)
	require.NoError(t, err)

	_, err = c.Classify(context.Background(), []prediction.Image{{Data: []byte("x")}})
	assert.ErrorIs(t, err, prediction.ErrBatchSize)
}

func TestNewCached_InvalidSize(t *testing.T) {
	_, err := NewCached(nil, 0)
	assert.Error(t, err)
}
