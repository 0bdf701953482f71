package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestShutdownRunsHooksInReverseOnce(t *testing.T) {
	m := New(time.Second, nil)

	var order []string
	m.Register("postgres", func(context.Context) error { order = append(order, "postgres"); return nil })
	m.Register("buffer", func(context.Context) error { order = append(order, "buffer"); return errors.New("locked") })
	m.Register("http", func(context.Context) error { order = append(order, "http"); return nil })
	m.Register("ignored", nil)

	err := m.Shutdown(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "buffer: locked")
	assert.Equal(t, []string{"http", "buffer", "postgres"}, order)

	assert.Equal(t, err, m.Shutdown(context.Background()))
	assert.Len(t, order, 3)
}

func TestGoCancelsOnFailure(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	m := New(time.Second, zap.New(core))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Listen(cancel)

	m.Go("http_server", func() error { return errors.New("address in use") })

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("application context was not cancelled")
	}
	assert.Equal(t, 1, logs.FilterMessage("component failed").Len())
}

func TestGoRecoversPanics(t *testing.T) {
	m := New(time.Second, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Listen(cancel)

	m.Go("processor", func() error { panic("boom") })

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("application context was not cancelled")
	}
}

func TestGoCleanExitKeepsRunning(t *testing.T) {
	m := New(time.Second, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Listen(cancel)

	done := make(chan struct{})
	m.Go("noop", func() error { close(done); return nil })
	<-done

	select {
	case <-ctx.Done():
		t.Fatal("clean exit must not cancel")
	case <-time.After(50 * time.Millisecond):
	}
}
