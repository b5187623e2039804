package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestID(t *testing.T) {
	tests := []struct {
		name string
		data string
		id   uint64
	}{
		{"empty string", "", 0xef46db3751d8e999},
		{"short string", "test", 0x4fdcca5ddb678139},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.id, ID(tt.data))
		})
	}
}

func TestID_Distinct(t *testing.T) {
	names := []string{"cardiac", "respiratory", "trigger", "ecg1", "ecg2", "ext1"}
	seen := make(map[uint64]string, len(names))
	for _, n := range names {
		id := ID(n)
		_, dup := seen[id]
		assert.False(t, dup, "unexpected collision for %q", n)
		seen[id] = n
		assert.Equal(t, id, ID(n))
	}
}
