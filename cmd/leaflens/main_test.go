package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/leaflens/leaflens/internal/prediction"
	"github.com/stretchr/testify/assert"
)

func TestInputError(t *testing.T) {
	inner := errors.New("bad image")
	err := &InputError{Err: inner}

	assert.Equal(t, "bad image", err.Error())
	assert.ErrorIs(t, err, inner)
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: ExitSuccess},
		{name: "InputError", err: &InputError{Err: errors.New("unknown format")}, want: ExitInput},
		{name: "wrapped InputError", err: fmt.Errorf("predict: %w", &InputError{Err: errors.New("x")}), want: ExitInput},
		{name: "empty batch", err: prediction.ErrEmptyBatch, want: ExitInput},
		{name: "invalid k", err: fmt.Errorf("topKDisease: %w", prediction.ErrInvalidK), want: ExitInput},
		{name: "invalid image", err: fmt.Errorf("disease classifier: %w", prediction.ErrInvalidImage), want: ExitInput},
		{name: "dimension mismatch", err: prediction.ErrDimensionMismatch, want: ExitError},
		{name: "config error", err: errors.New("parsing .leaflens.yaml"), want: ExitError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}
