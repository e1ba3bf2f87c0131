package backoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStrategies(t *testing.T) {
	for _, tc := range []struct {
		name     string
		strategy Strategy
		expected []time.Duration
	}{
		{
			name:     "constant",
			strategy: Constant(5 * time.Millisecond),
			expected: []time.Duration{5 * time.Millisecond, 5 * time.Millisecond, 5 * time.Millisecond},
		},
		{
			name:     "base three",
			strategy: Exponential(time.Second, 3),
			expected: []time.Duration{time.Second, 3 * time.Second, 9 * time.Second, 27 * time.Second},
		},
		{
			name:     "binary",
			strategy: BinaryExponential(10 * time.Millisecond),
			expected: []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			for i, expected := range tc.expected {
				assert.Equal(t, expected, tc.strategy(uint(i+1)), i)
			}
		})
	}
}

