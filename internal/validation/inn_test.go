package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidINN(t *testing.T) {
	cases := []struct {
		name string
		inn  string
		want bool
	}{
		{"valid 10-digit", "7707083893", true},
		{"valid 12-digit", "500100732259", true},
		{"wrong length", "12345", false},
		{"non-digit characters", "770708389X", false},
		{"empty string", "", false},
		{"bad check digit 10", "7707083894", false},
		{"bad check digit 12", "500100732250", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ValidINN(tc.inn))
		})
	}
}
