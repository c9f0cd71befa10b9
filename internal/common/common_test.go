package common

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForEachIndex(t *testing.T) {
	for _, workers := range []int{0, 1, 4, 64} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			out := make([]int, 100)
			var calls atomic.Int64

			ForEachIndex(len(out), workers, func(i int) {
				out[i] = i * i
				calls.Add(1)
			})

			assert.Equal(t, int64(100), calls.Load())
			for i, v := range out {
				assert.Equal(t, i*i, v)
			}
		})
	}

	ForEachIndex(0, 4, func(int) { t.Fatal("must not be called") })
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    slog.Level
		wantErr bool
	}{
		{input: "debug", want: slog.LevelDebug},
		{input: "INFO", want: slog.LevelInfo},
		{input: "", want: slog.LevelInfo},
		{input: "warn", want: slog.LevelWarn},
		{input: "error", want: slog.LevelError},
		{input: "loud", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewHandler(t *testing.T) {
	var buf bytes.Buffer

	handler, err := NewHandler(&buf, slog.LevelInfo, "json")
	require.NoError(t, err)
	slog.New(handler).Info("hello", "rule_id", "r1")
	assert.Contains(t, buf.String(), `"rule_id":"r1"`)

	_, err = NewHandler(&buf, slog.LevelInfo, "xml")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestUserError(t *testing.T) {
	err := NewUserError("rule not found", ErrNotFound)

	assert.Equal(t, "rule not found: not found", err.Error())
	assert.True(t, IsNotFound(err))
	assert.False(t, IsDuplicate(err))

	var userErr *UserError
	require.True(t, errors.As(err, &userErr))
	assert.Equal(t, "rule not found", userErr.UserMessage)

	assert.Equal(t, "plain", NewUserError("plain", nil).Error())
}

func TestWithRetry(t *testing.T) {
	errBusy := errors.New("database is locked")
	errFatal := errors.New("disk full")
	busy := func(err error) bool { return errors.Is(err, errBusy) }
	fast := RetryOptions{Retryable: busy, MaxAttempts: 3, InitialDelay: time.Millisecond}

	tests := []struct {
		name      string
		failures  []error
		wantErr   error
		wantCalls int
	}{
		{name: "succeeds first time", wantCalls: 1},
		{name: "recovers from transient failures", failures: []error{errBusy, errBusy}, wantCalls: 3},
		{name: "gives up after max attempts", failures: []error{errBusy, errBusy, errBusy}, wantErr: ErrMaxRetries, wantCalls: 3},
		{name: "does not retry other errors", failures: []error{errFatal}, wantErr: errFatal, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := WithRetry(context.Background(), func() error {
				calls++
				if calls <= len(tt.failures) {
					return tt.failures[calls-1]
				}
				return nil
			}, fast)

			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestWithRetry_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WithRetry(ctx, func() error { return errors.New("busy") }, RetryOptions{
		Retryable:    func(error) bool { return true },
		InitialDelay: time.Hour,
	})
	assert.ErrorIs(t, err, context.Canceled)
}
