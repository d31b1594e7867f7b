package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"invalid", Invalid("scale.set_width", "Width must be a positive integer"), EINVALID},
		{"frozen", Frozen("scale.set_mode"), ESTATE},
		{"wrapped", fmt.Errorf("outer: %w", Unsupported("processor.process", "no pdf output")), EUNSUPPORTED},
		{"plain error", errors.New("boom"), EINTERNAL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCode(tt.err))
		})
	}
}

func TestError_MessageAndOp(t *testing.T) {
	err := Invalid("scale.set_percent", "Percent must be greater than zero")

	assert.Equal(t, "scale.set_percent: Percent must be greater than zero", err.Error())
	assert.Equal(t, "Percent must be greater than zero", ErrorMessage(err))
	assert.Equal(t, "scale.set_percent", ErrorOp(err))
	assert.True(t, IsCode(err, EINVALID))
	assert.False(t, IsCode(nil, EINVALID))
}

func TestBackend_Unwraps(t *testing.T) {
	cause := errors.New("exit status 1")
	err := Backend(cause, "magick.execute", "convert failed")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, EBACKEND, ErrorCode(err))
	assert.Contains(t, err.Error(), "exit status 1")
}
