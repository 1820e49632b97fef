package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedSleep struct {
	delays []time.Duration
}

func (r *recordedSleep) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

type statusErr int

func (e statusErr) Error() string   { return fmt.Sprintf("status %d", int(e)) }
func (e statusErr) StatusCode() int { return int(e) }

func TestDo_BackoffLaw(t *testing.T) {
	rec := &recordedSleep{}
	calls := 0
	var retried []int
	failure := errors.New("network error: connection refused")

	_, err := Do(context.Background(), func(ctx context.Context) (int, error) {
		calls++
		return 0, failure
	},
		WithMaxAttempts(3),
		WithInitialDelay(1000*time.Millisecond),
		WithBackoffMultiplier(2),
		WithOnRetry(func(attempt int, err error) { retried = append(retried, attempt) }),
		WithSleep(rec.sleep),
	)

	require.ErrorIs(t, err, failure)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{1000 * time.Millisecond, 2000 * time.Millisecond}, rec.delays)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDo_ClientErrorShortCircuits(t *testing.T) {
	rec := &recordedSleep{}
	calls := 0

	_, err := Do(context.Background(), func(ctx context.Context) (string, error) {
		calls++
		return "", errors.New("404 Not Found")
	}, WithSleep(rec.sleep))

	require.EqualError(t, err, "404 Not Found")
	assert.Equal(t, 1, calls)
	assert.Empty(t, rec.delays)
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	rec := &recordedSleep{}
	calls := 0

	v, err := Do(context.Background(), func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("503 Service Unavailable")
		}
		return "ok", nil
	}, WithSleep(rec.sleep))

	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 3, calls)
}

func TestDo_CustomPredicate(t *testing.T) {
	calls := 0
	err := Run(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("network down")
	}, WithShouldRetry(func(error) bool { return false }), WithSleep((&recordedSleep{}).sleep))

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_CancelledSleepReturnsLastError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	failure := errors.New("timeout")
	err := Run(ctx, func(ctx context.Context) error {
		calls++
		cancel()
		return failure
	}, WithInitialDelay(time.Hour))

	require.ErrorIs(t, err, failure)
	assert.Equal(t, 1, calls)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"network", errors.New("network error: dial tcp"), true},
		{"fetch failed", errors.New("Failed to fetch"), true},
		{"timeout", errors.New("context deadline exceeded (Client.Timeout)"), true},
		{"not found text", errors.New("404 Not Found"), false},
		{"unauthorized", errors.New("Unauthorized"), false},
		{"bad request", errors.New("bad request: title required"), false},
		{"server", errors.New("500 Internal Server Error"), true},
		{"unavailable", errors.New("service unavailable"), true},
		{"unknown", errors.New("something odd"), true},
		{"typed 409", statusErr(409), false},
		{"typed 502", statusErr(502), true},
		{"canceled", context.Canceled, false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

// delays follow initial * multiplier^(n-1) for every retry taken
func TestDo_DelaySequenceProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("delay n equals initial * multiplier^(n-1)", prop.ForAll(
		func(attempts int, initialMs int, multiplier int) bool {
			rec := &recordedSleep{}
			calls := 0
			_ = Run(context.Background(), func(ctx context.Context) error {
				calls++
				return errors.New("503")
			},
				WithMaxAttempts(attempts),
				WithInitialDelay(time.Duration(initialMs)*time.Millisecond),
				WithBackoffMultiplier(float64(multiplier)),
				WithSleep(rec.sleep),
			)

			if calls != attempts || len(rec.delays) != attempts-1 {
				return false
			}
			want := time.Duration(initialMs) * time.Millisecond
			for _, d := range rec.delays {
				if d != want {
					return false
				}
				want *= time.Duration(multiplier)
			}
			return true
		},
		gen.IntRange(1, 6),
		gen.IntRange(1, 2000),
		gen.IntRange(1, 4),
	))

	properties.TestingRun(t)
}
