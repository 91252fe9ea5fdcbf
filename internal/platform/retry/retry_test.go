package retry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func fastPolicy() Policy {
	return Policy{InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond, MaxElapsed: time.Second}
}

func TestConnect_RetriesUntilSuccess(t *testing.T) {
	attempts := 0
	got, err := Connect(context.Background(), discard, "redis", fastPolicy(), func(context.Context) (string, error) {
		attempts++
		if attempts < 3 {
			return "", errors.New("connection refused")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, attempts)
}

func TestConnect_GivesUpAfterMaxElapsed(t *testing.T) {
	p := fastPolicy()
	p.MaxElapsed = 20 * time.Millisecond

	errDown := errors.New("still down")

	_, err := Connect(context.Background(), discard, "postgres", p, func(context.Context) (int, error) {
		return 0, errDown
	})

	assert.ErrorIs(t, err, errDown)
}

func TestConnect_StopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Connect(ctx, discard, "kafka", DefaultPolicy(), func(context.Context) (int, error) {
		return 0, errors.New("down")
	})

	assert.Error(t, err)
}
