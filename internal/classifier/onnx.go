package classifier

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/leaflens/leaflens/internal/prediction"
	ort "github.com/yalue/onnxruntime_go"
)

// ONNXArgs configures an ONNX classifier.
type ONNXArgs struct {
	ModelPath string
	// LibraryPath points at the onnxruntime shared library. Empty uses the
	// platform default lookup.
	LibraryPath string
	InputName   string
	OutputName  string
	// Classes is the width of the model's output layer.
	Classes   int
	ImageSize int
	// SkipSoftmax is set for models that already end in a softmax layer.
	SkipSoftmax bool
}

// The runtime environment is process-wide; both classifiers share it.
var (
	envMu   sync.Mutex
	envRefs int
)

func acquireEnvironment(libraryPath string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if envRefs == 0 {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("failed to initialize ONNX environment: %w", err)
		}
	}
	envRefs++
	return nil
}

func releaseEnvironment() {
	envMu.Lock()
	defer envMu.Unlock()

	envRefs--
	if envRefs == 0 {
		ort.DestroyEnvironment()
	}
}

// ONNX classifies images with an ONNX Runtime session. The session owns one
// input and one output tensor, so images are run one at a time.
type ONNX struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	imageSize    int
	softmax      bool
	closed       bool
}

// NewONNX loads the model at args.ModelPath.
func NewONNX(args ONNXArgs) (*ONNX, error) {
	if args.ModelPath == "" {
		return nil, errors.New("onnx classifier requires model_path")
	}
	if args.Classes <= 0 {
		return nil, errors.New("onnx classifier requires a positive classes count")
	}
	if args.ImageSize <= 0 {
		args.ImageSize = DefaultImageSize
	}
	if args.InputName == "" {
		args.InputName = "input"
	}
	if args.OutputName == "" {
		args.OutputName = "output"
	}

	if err := acquireEnvironment(args.LibraryPath); err != nil {
		return nil, err
	}

	size := int64(args.ImageSize)
	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, size, size))
	if err != nil {
		releaseEnvironment()
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(args.Classes)))
	if err != nil {
		inputTensor.Destroy()
		releaseEnvironment()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(args.ModelPath,
		[]string{args.InputName}, []string{args.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		releaseEnvironment()
		return nil, fmt.Errorf("failed to create ONNX session for %s: %w", args.ModelPath, err)
	}

	return &ONNX{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		imageSize:    args.ImageSize,
		softmax:      !args.SkipSoftmax,
	}, nil
}

// Classify implements prediction.Classifier.
func (c *ONNX) Classify(ctx context.Context, images []prediction.Image) ([]prediction.Vector, error) {
	inputs := make([][]float32, len(images))
	for i, img := range images {
		pixels, err := Preprocess(img.Data, c.imageSize)
		if err != nil {
			return nil, fmt.Errorf("image %d (%s): %w", i, img.Name, err)
		}
		inputs[i] = pixels
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, errors.New("onnx classifier is closed")
	}

	out := make([]prediction.Vector, len(inputs))
	for i, pixels := range inputs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		copy(c.inputTensor.GetData(), pixels)
		if err := c.session.Run(); err != nil {
			return nil, fmt.Errorf("inference failed: %w", err)
		}

		logits := c.outputTensor.GetData()
		if c.softmax {
			out[i] = Softmax(logits)
		} else {
			out[i] = make(prediction.Vector, len(logits))
			for j, p := range logits {
				out[i][j] = float64(p)
			}
		}
	}
	return out, nil
}

// Close releases the session and its tensors.
func (c *ONNX) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	var errs []error
	if c.inputTensor != nil {
		errs = append(errs, c.inputTensor.Destroy())
	}
	if c.outputTensor != nil {
		errs = append(errs, c.outputTensor.Destroy())
	}
	if c.session != nil {
		errs = append(errs, c.session.Destroy())
	}
	releaseEnvironment()
	return errors.Join(errs...)
}
