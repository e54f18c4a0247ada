package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		region string
		want   string
	}{
		{"already e164", "+919876543210", "IN", "+919876543210"},
		{"national with default region", "98765 43210", "IN", "+919876543210"},
		{"lower case region", "9876543210", "in", "+919876543210"},
		{"foreign number keeps its country", "+1 650-253-0000", "IN", "+16502530000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.raw, tt.region)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize_Invalid(t *testing.T) {
	for _, raw := range []string{"", "   ", "abc", "12"} {
		_, err := Normalize(raw, "IN")
		assert.ErrorIs(t, err, ErrInvalidNumber, raw)
	}
}
