package utils

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkString(t *testing.T) {
	text := strings.Repeat("a", 4500)

	chunks := ChunkString(text, 4096)
	require.Len(t, chunks, 2)
	assert.Len(t, chunks[0], 4096)
	assert.Len(t, chunks[1], 404)
	assert.Equal(t, text, strings.Join(chunks, ""))

	chunks = ChunkString(text, 2000)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 2000)
	assert.Len(t, chunks[1], 2000)
	assert.Len(t, chunks[2], 500)
}

func TestChunkString_Small(t *testing.T) {
	assert.Equal(t, []string{"hello world"}, ChunkString("hello world", 4096))
	assert.Equal(t, []string{""}, ChunkString("", 10))
	assert.Equal(t, []string{"ab", "cd", "e"}, ChunkString("abcde", 2))
}

func TestChunkString_KeepsRunesWhole(t *testing.T) {
	chunks := ChunkString("äöüß", 3)
	assert.Equal(t, []string{"äöü", "ß"}, chunks)
}

func TestWordCount(t *testing.T) {
	assert.Equal(t, 2, WordCount("hello world"))
	assert.Equal(t, 3, WordCount("  spaced\tout \n words "))
	assert.Equal(t, 0, WordCount(" "))
}

func recordSleeps(waits *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return nil
	}
}

func TestWithRetry_SucceedsAfterFailures(t *testing.T) {
	var waits []time.Duration
	cfg := RetryConfig{MaxAttempts: 5, InitialDelay: time.Second, MaxDelay: 3 * time.Second, Multiplier: 2, Sleep: recordSleeps(&waits)}

	calls := 0
	err := WithRetry(context.Background(), cfg, func() error {
		calls++
		if calls < 4 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 4, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}, waits)
}

func TestWithRetry_ExhaustsAttempts(t *testing.T) {
	var waits []time.Duration
	cfg := DefaultRetryConfig()
	cfg.Sleep = recordSleeps(&waits)

	calls := 0
	err := WithRetry(context.Background(), cfg, func() error {
		calls++
		return errors.New("still down")
	})

	require.EqualError(t, err, "still down")
	assert.Equal(t, 6, calls)
	require.Len(t, waits, 5)
	for _, w := range waits {
		assert.GreaterOrEqual(t, w, time.Second)
		assert.LessOrEqual(t, w, 60*time.Second)
	}
}

func TestWithRetry_PermanentStops(t *testing.T) {
	cfg := DefaultRetryConfig()
	cfg.Sleep = func(context.Context, time.Duration) error { t.Fatal("should not sleep"); return nil }

	sentinel := errors.New("bad request")
	calls := 0
	err := WithRetry(context.Background(), cfg, func() error {
		calls++
		return Permanent(sentinel)
	})

	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, calls)
}

func TestSleepContext_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, SleepContext(ctx, time.Hour), context.Canceled)
}

func TestIsRetryableHTTPStatus(t *testing.T) {
	assert.True(t, IsRetryableHTTPStatus(429))
	assert.True(t, IsRetryableHTTPStatus(503))
	assert.False(t, IsRetryableHTTPStatus(400))
	assert.False(t, IsRetryableHTTPStatus(401))
}
