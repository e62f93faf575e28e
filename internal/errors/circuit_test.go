package errors

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock lets tests move time past the reset timeout.
type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(maxFailures int, reset time.Duration) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	cb := NewCircuitBreaker("test", WithMaxFailures(maxFailures), WithResetTimeout(reset))
	cb.now = clock.Now
	return cb, clock
}

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	// Given: a breaker that trips after 3 failures
	cb, _ := newTestBreaker(3, time.Minute)
	boom := errors.New("boom")

	// When: three calls fail
	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(func() error { return boom }), boom)
	}

	// Then: the circuit is open and calls fail fast
	assert.Equal(t, StateOpen, cb.State())
	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_HalfOpenAdmitsSingleProbe(t *testing.T) {
	// Given: an open breaker past its reset timeout
	cb, clock := newTestBreaker(1, time.Second)
	cb.RecordFailure()
	clock.Advance(2 * time.Second)
	require.Equal(t, StateHalfOpen, cb.State())

	// When: two callers ask at once
	first := cb.Allow()
	second := cb.Allow()

	// Then: only the first probe is admitted
	assert.True(t, first)
	assert.False(t, second)
}

func TestCircuitBreaker_SuccessfulProbeCloses(t *testing.T) {
	cb, clock := newTestBreaker(1, time.Second)
	cb.RecordFailure()
	clock.Advance(2 * time.Second)

	require.NoError(t, cb.Execute(func() error { return nil }))

	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 0, cb.Failures())
}

func TestCircuitBreaker_FailedProbeReopens(t *testing.T) {
	cb, clock := newTestBreaker(3, time.Second)
	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}
	clock.Advance(2 * time.Second)

	_ = cb.Execute(func() error { return errors.New("still down") })

	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitExecute_UncountedErrorsDoNotTrip(t *testing.T) {
	// Given: a breaker that only counts retryable errors
	cb, _ := newTestBreaker(1, time.Minute)
	rejected := New(ErrCodeProviderRejected, "400", nil)

	// When: a non-retryable error comes back
	_, err := CircuitExecute(cb, func() (int, error) { return 0, rejected }, IsRetryable)

	// Then: the breaker stays closed
	assert.ErrorIs(t, err, rejected)
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 0, cb.Failures())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(99).String())
}
