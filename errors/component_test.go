package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStageError_Accessors(t *testing.T) {
	tests := []struct {
		name  string
		build func() error
		code  Code
		stage string
		isFn  func(error) bool
	}{
		{
			name:  "step error",
			build: func() error { return NewStep("square", errors.New("boom")) },
			code:  Step,
			stage: "square",
			isFn:  IsStepError,
		},
		{
			name:  "shutdown error",
			build: func() error { return NewShutdown("collatz-42") },
			code:  Shutdown,
			stage: "collatz-42",
			isFn:  IsShutdownError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.build()
			var se *StageError
			assert.ErrorAs(t, err, &se)
			assert.Equal(t, tt.code, se.Code())
			assert.Equal(t, tt.stage, se.Stage())
			assert.True(t, tt.isFn(err))
		})
	}
}

func TestIsStepError_FalseForUnrelatedError(t *testing.T) {
	assert.False(t, IsStepError(errors.New("plain")))
	assert.False(t, IsShutdownError(NewStep("s", errors.New("x"))))
}

func TestStageError_Unwrap(t *testing.T) {
	inner := errors.New("inner")
	err := NewStep("s", inner)
	assert.ErrorIs(t, err, inner)
}
