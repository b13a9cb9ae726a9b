package provider

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shpitdev/crm-enricher/internal/enrich"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func failCall() (string, error) { return "", errBoom }
func okCall() (string, error) { return "ok", nil }

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := NewBreaker[string](BreakerConfig{FailureThreshold: 3, ResetTimeout: time.Hour})

	for i := 0; i < 3; i++ {
		_, err := b.Execute(failCall)
		require.ErrorIs(t, err, errBoom)
	}
	assert.Equal(t, "open", b.State())

	var calls atomic.Int32
	_, err := b.Execute(func() (string, error) {
		calls.Add(1)
		return "ok", nil
	})
	assert.ErrorIs(t, err, enrich.ErrCircuitOpen)
	assert.Zero(t, calls.Load(), "open circuit must not invoke the call")
}

func TestBreaker_SuccessResetsConsecutiveCount(t *testing.T) {
	b := NewBreaker[string](BreakerConfig{FailureThreshold: 2, ResetTimeout: time.Hour})

	_, _ = b.Execute(failCall)
	_, err := b.Execute(okCall)
	require.NoError(t, err)
	_, _ = b.Execute(failCall)
	assert.Equal(t, "closed", b.State())
}

func TestBreaker_HalfOpenTrialSuccessCloses(t *testing.T) {
	b := NewBreaker[string](BreakerConfig{FailureThreshold: 1, ResetTimeout: 20 * time.Millisecond})

	_, _ = b.Execute(failCall)
	require.Equal(t, "open", b.State())

	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, "half-open", b.State())

	out, err := b.Execute(okCall)
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, "closed", b.State())
}

func TestBreaker_HalfOpenTrialFailureReopens(t *testing.T) {
	b := NewBreaker[string](BreakerConfig{FailureThreshold: 1, ResetTimeout: 20 * time.Millisecond})

	_, _ = b.Execute(failCall)
	time.Sleep(40 * time.Millisecond)

	_, err := b.Execute(failCall)
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, "open", b.State())

	_, err = b.Execute(okCall)
	assert.ErrorIs(t, err, enrich.ErrCircuitOpen)
}

func TestBreaker_HalfOpenAdmitsSingleTrial(t *testing.T) {
	b := NewBreaker[string](BreakerConfig{FailureThreshold: 1, ResetTimeout: 20 * time.Millisecond})
	_, _ = b.Execute(failCall)
	time.Sleep(40 * time.Millisecond)

	release := make(chan struct{})
	entered := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := b.Execute(func() (string, error) {
			close(entered)
			<-release
			return "ok", nil
		})
		done <- err
	}()
	<-entered

	_, err := b.Execute(okCall)
	assert.ErrorIs(t, err, enrich.ErrCircuitOpen, "second caller during the trial is rejected")

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, "closed", b.State())
}

func TestBreaker_CallerCancellationIsNotAFailure(t *testing.T) {
	b := NewBreaker[string](BreakerConfig{FailureThreshold: 1, ResetTimeout: time.Hour})

	_, err := b.Execute(func() (string, error) { return "", context.Canceled })
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "closed", b.State())
}
