package retry

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/code-escrow/pkg/retry/backoff"
)

var errSerialization = errors.New("could not serialize access")

func TestStrategies_Decisions(t *testing.T) {
	other := errors.New("constraint violation")

	for _, tc := range []struct {
		name     string
		strategy Strategy
		attempts uint
		err      error
		expected bool
	}{
		{"limit below max", Limit(3), 2, other, true},
		{"limit at max", Limit(3), 3, other, false},
		{"limit of one", Limit(1), 1, other, false},
		{"retriable error", RetriableErrors(errSerialization), 1, errSerialization, true},
		{"wrapped retriable error", RetriableErrors(errSerialization), 1, errors.Wrap(errSerialization, "commit"), true},
		{"non retriable error", RetriableErrors(errSerialization), 1, other, false},
		{"predicate match", RetryIf(func(err error) bool { return err == other }), 4, other, true},
		{"predicate miss", RetryIf(func(err error) bool { return err == other }), 4, errSerialization, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.strategy(tc.attempts, tc.err))
		})
	}
}

func TestBackoff_Delays(t *testing.T) {
	for _, tc := range []struct {
		name     string
		strategy backoff.Strategy
		max      time.Duration
		expected []time.Duration
	}{
		{
			name:     "constant",
			strategy: backoff.Constant(10 * time.Millisecond),
			max:      time.Second,
			expected: []time.Duration{10 * time.Millisecond, 10 * time.Millisecond, 10 * time.Millisecond},
		},
		{
			name:     "exponential capped",
			strategy: backoff.BinaryExponential(10 * time.Millisecond),
			max:      25 * time.Millisecond,
			expected: []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 25 * time.Millisecond, 25 * time.Millisecond},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			sleeper := useTestSleeper()
			strategy := Backoff(tc.strategy, tc.max)

			for i := range tc.expected {
				assert.True(t, strategy(uint(i+1), errSerialization))
			}
			assert.Equal(t, tc.expected, sleeper.slept)
		})
	}
}

func TestBackoffWithJitter_Bounds(t *testing.T) {
	const (
		delay  = 10 * time.Millisecond
		jitter = 0.2
	)

	sleeper := useTestSleeper()
	strategy := BackoffWithJitter(backoff.Constant(delay), delay, jitter)

	for i := 0; i < 1000; i++ {
		require.True(t, strategy(1, errSerialization))
	}

	var total time.Duration
	for _, d := range sleeper.slept {
		assert.GreaterOrEqual(t, int64(d), int64(float64(delay)*(1-jitter)))
		assert.LessOrEqual(t, int64(d), int64(float64(delay)*(1+jitter)))
		total += d
	}

	mean := total / time.Duration(len(sleeper.slept))
	assert.InDelta(t, float64(delay), float64(mean), 0.05*float64(delay))
}

type testSleeper struct {
	slept []time.Duration
}

func (s *testSleeper) Sleep(d time.Duration) {
	s.slept = append(s.slept, d)
}

func useTestSleeper() *testSleeper {
	s := &testSleeper{}
	sleeperImpl = s
	return s
}
