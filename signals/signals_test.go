package signals

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSendOrder(t *testing.T) {
	d := NewDispatcher(nil)
	var got []string
	d.Connect(EngineStarted, func(ctx context.Context, ev Event) error {
		got = append(got, "first")
		return nil
	})
	d.Connect(EngineStarted, func(ctx context.Context, ev Event) error {
		got = append(got, "second")
		return nil
	})
	d.Connect(EngineStopped, func(ctx context.Context, ev Event) error {
		got = append(got, "stopped")
		return nil
	})

	require.NoError(t, d.Send(context.Background(), Event{Signal: EngineStarted}))
	assert.Equal(t, []string{"first", "second"}, got)
}

func TestSendCollectsErrors(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	d := NewDispatcher(zap.New(core))
	boom := errors.New("boom")
	called := false
	d.Connect(SpiderClosed, func(ctx context.Context, ev Event) error { return boom })
	d.Connect(SpiderClosed, func(ctx context.Context, ev Event) error { panic("bad handler") })
	d.Connect(SpiderClosed, func(ctx context.Context, ev Event) error {
		called = true
		assert.Equal(t, "memusage_exceeded", ev.Reason)
		return nil
	})

	err := d.Send(context.Background(), Event{Signal: SpiderClosed, Reason: "memusage_exceeded"})
	assert.True(t, called)
	assert.ErrorIs(t, err, boom)
	assert.Len(t, multierr.Errors(err), 2)
	assert.Equal(t, 2, logs.FilterMessage("signal handler failed").Len())
}

func TestDisconnect(t *testing.T) {
	d := NewDispatcher(nil)
	n := 0
	disconnect := d.Connect(EngineStopped, func(ctx context.Context, ev Event) error {
		n++
		return nil
	})
	require.NoError(t, d.Send(context.Background(), Event{Signal: EngineStopped}))
	disconnect()
	disconnect()
	require.NoError(t, d.Send(context.Background(), Event{Signal: EngineStopped}))
	assert.Equal(t, 1, n)
}

func TestConnectDuringSend(t *testing.T) {
	d := NewDispatcher(nil)
	late := 0
	d.Connect(EngineStarted, func(ctx context.Context, ev Event) error {
		d.Connect(EngineStarted, func(ctx context.Context, ev Event) error {
			late++
			return nil
		})
		return nil
	})

	require.NoError(t, d.Send(context.Background(), Event{Signal: EngineStarted}))
	assert.Equal(t, 0, late)
	require.NoError(t, d.Send(context.Background(), Event{Signal: EngineStarted}))
	assert.Equal(t, 1, late)
}
