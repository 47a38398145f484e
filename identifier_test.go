package depender

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidIdentifier(t *testing.T) {
	tests := []struct {
		id    string
		valid bool
	}{
		{"abc", true},
		{"step-1", true},
		{"build.release_v2", true},
		{"a b!cde", true},
		{"", false},
		{"ab", false},
		{"a!b!c", false},
		{"a b c", false},
		{"--.", true},
	}

	for _, tc := range tests {
		t.Run(tc.id, func(t *testing.T) {
			assert.Equal(t, tc.valid, ValidIdentifier(tc.id))
		})
	}
}
