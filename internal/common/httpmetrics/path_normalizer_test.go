package httpmetrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "/"},
		{"/users", "/users"},
		{"/user/6f1c2a3e-8d4b-4c1a-9e2f-0a1b2c3d4e5f/block", "/user/{guid}/block"},
		{"/user/6F1C2A3E-8D4B-4C1A-9E2F-0A1B2C3D4E5F", "/user/{guid}"},
		{"/items/42", "/items/{param}"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePath(tt.in))
		})
	}
}
