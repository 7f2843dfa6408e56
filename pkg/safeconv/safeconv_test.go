package safeconv_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/sprintstats/pkg/safeconv"
)

func TestMustUintToInt(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 42, safeconv.MustUintToInt(42))
	assert.Equal(t, safeconv.MaxInt, safeconv.MustUintToInt(uint(safeconv.MaxInt)))

	assert.PanicsWithValue(t, "safeconv: uint to int overflow", func() {
		safeconv.MustUintToInt(uint(safeconv.MaxInt) + 1)
	})
}

func TestPercent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		part, total uint
		want        int
	}{
		{"zero total", 5, 0, 0},
		{"nothing received", 0, 10, 0},
		{"half", 5, 10, 50},
		{"rounds down", 1, 3, 33},
		{"complete", 10, 10, 100},
		{"over total", 11, 10, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, safeconv.Percent(tt.part, tt.total))
		})
	}
}
