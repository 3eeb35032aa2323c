// Package classifier provides prediction.Classifier implementations: an ONNX
// Runtime backed image classifier, a static classifier for dry runs, and an
// LRU cache that wraps either.
package classifier

import (
	"errors"
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"github.com/leaflens/leaflens/internal/prediction"
)

// Type names a classifier implementation in config.
type Type string

const (
	// TypeONNX runs an exported image classification model.
	TypeONNX Type = "onnx"
	// TypeStatic returns the same probabilities for every image.
	TypeStatic Type = "static"
)

// ErrUnknownType is returned by New for an unsupported classifier type.
var ErrUnknownType = errors.New("unknown classifier type")

// New creates a classifier from its configured type and params.
func New(classifierType Type, params map[string]any) (prediction.Classifier, error) {
	switch classifierType {
	case TypeONNX:
		var v struct {
			ModelPath   string `mapstructure:"model_path"`
			LibraryPath string `mapstructure:"library_path"`
			InputName   string `mapstructure:"input_name"`
			OutputName  string `mapstructure:"output_name"`
			Classes     int    `mapstructure:"classes"`
			ImageSize   int    `mapstructure:"image_size"`
			SkipSoftmax bool   `mapstructure:"skip_softmax"`
		}

		if err := mapstructure.Decode(params, &v); err != nil {
			return nil, fmt.Errorf("decoding onnx params: %w", err)
		}

		c, err := NewONNX(ONNXArgs{
			ModelPath:   v.ModelPath,
			LibraryPath: v.LibraryPath,
			InputName:   v.InputName,
			OutputName:  v.OutputName,
			Classes:     v.Classes,
			ImageSize:   v.ImageSize,
			SkipSoftmax: v.SkipSoftmax,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	case TypeStatic:
		var v struct {
			Probabilities []float64 `mapstructure:"probabilities"`
		}

		if err := mapstructure.Decode(params, &v); err != nil {
			return nil, fmt.Errorf("decoding static params: %w", err)
		}

		s, err := NewStatic(v.Probabilities)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: '%s'", ErrUnknownType, classifierType)
	}
}
