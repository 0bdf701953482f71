package usecase

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherExecute(t *testing.T) {
	d := NewDispatcher()
	d.RegisterCommand("login", "sign in", func(_ context.Context, args []string) (interface{}, error) {
		return "logged in as " + args[0], nil
	})
	d.RegisterQuery("whoami", "show the user", func(context.Context, []string) (interface{}, error) {
		return nil, errors.New("not signed in")
	})

	out, err := d.Execute(context.Background(), "login", []string{"ana@firm.com"})
	require.NoError(t, err)
	assert.Equal(t, "logged in as ana@firm.com", out)

	_, err = d.Execute(context.Background(), "whoami", nil)
	assert.EqualError(t, err, "not signed in")

	_, err = d.Execute(context.Background(), "drop", nil)
	assert.ErrorIs(t, err, ErrUnknownOperation)

	assert.True(t, d.IsQuery("whoami"))
	assert.False(t, d.IsQuery("login"))
	assert.False(t, d.IsQuery("drop"))
	assert.True(t, d.Has("login"))
	assert.False(t, d.Has("drop"))
}

func TestDispatcherUsageSorted(t *testing.T) {
	d := NewDispatcher()
	d.RegisterQuery("whoami", "show the user", nil)
	d.RegisterCommand("login", "sign in", nil)

	var buf bytes.Buffer
	d.Usage(&buf)
	assert.Equal(t, "  login        sign in\n  whoami       show the user\n", buf.String())
}
