package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/leaflens/leaflens/internal/prediction"
)

// Exit codes for different failure modes
const (
	ExitSuccess = 0 // Command completed
	ExitInput   = 1 // The images or prediction parameters were rejected
	ExitError   = 2 // Configuration or runtime error
)

// InputError marks a failure caused by the caller's images or arguments
// rather than by configuration or the runtime.
type InputError struct {
	Err error
}

func (e *InputError) Error() string {
	return e.Err.Error()
}

func (e *InputError) Unwrap() error {
	return e.Err
}

// exitCode picks the process exit code for err.
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var inputErr *InputError
	if errors.As(err, &inputErr) ||
		errors.Is(err, prediction.ErrEmptyBatch) ||
		errors.Is(err, prediction.ErrInvalidK) ||
		errors.Is(err, prediction.ErrInvalidImage) {
		return ExitInput
	}

	// All other errors are configuration/runtime errors
	return ExitError
}

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}
