package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/plankit/runtime/telemetry"
)

func TestEmitDeliversToAllListeners(t *testing.T) {
	e := NewEmitter(nil)
	var a, b atomic.Int32
	_, err := e.Subscribe(ListenerFunc(func(context.Context, InvocationEvent) error {
		a.Add(1)
		return nil
	}))
	require.NoError(t, err)
	_, err = e.Subscribe(ListenerFunc(func(context.Context, InvocationEvent) error {
		b.Add(1)
		return nil
	}))
	require.NoError(t, err)

	e.Emit(context.Background(), InvocationEvent{Type: TypeRequested})
	assert.Equal(t, int32(1), a.Load())
	assert.Equal(t, int32(1), b.Load())
}

func TestSubscribeRejectsNil(t *testing.T) {
	e := NewEmitter(nil)
	_, err := e.Subscribe(nil)
	require.Error(t, err)
}

func TestListenerErrorDoesNotAffectOthers(t *testing.T) {
	e := NewEmitter(nil)
	var delivered atomic.Int32
	_, err := e.Subscribe(ListenerFunc(func(context.Context, InvocationEvent) error {
		return errors.New("listener broke")
	}))
	require.NoError(t, err)
	_, err = e.Subscribe(ListenerFunc(func(context.Context, InvocationEvent) error {
		delivered.Add(1)
		return nil
	}))
	require.NoError(t, err)

	e.Emit(context.Background(), InvocationEvent{Type: TypeStarted})
	assert.Equal(t, int32(1), delivered.Load())
}

func TestListenerPanicIsContained(t *testing.T) {
	e := NewEmitter(nil)
	var delivered atomic.Int32
	_, err := e.Subscribe(ListenerFunc(func(context.Context, InvocationEvent) error {
		panic("listener exploded")
	}))
	require.NoError(t, err)
	_, err = e.Subscribe(ListenerFunc(func(context.Context, InvocationEvent) error {
		delivered.Add(1)
		return nil
	}))
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		e.Emit(context.Background(), InvocationEvent{Type: TypeFailed})
	})
	assert.Equal(t, int32(1), delivered.Load())
}

func TestCloseStopsDeliveryAndIsIdempotent(t *testing.T) {
	e := NewEmitter(nil)
	var count atomic.Int32
	sub, err := e.Subscribe(ListenerFunc(func(context.Context, InvocationEvent) error {
		count.Add(1)
		return nil
	}))
	require.NoError(t, err)

	e.Emit(context.Background(), InvocationEvent{})
	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
	e.Emit(context.Background(), InvocationEvent{})

	assert.Equal(t, int32(1), count.Load())
}

func TestConcurrentSubscribeEmitClose(t *testing.T) {
	e := NewEmitter(nil)
	var wg sync.WaitGroup
	stop := time.After(50 * time.Millisecond)

	wg.Add(2)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				sub, _ := e.Subscribe(ListenerFunc(func(context.Context, InvocationEvent) error { return nil }))
				_ = sub.Close()
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			e.Emit(context.Background(), InvocationEvent{InvocationID: "race"})
		}
	}()
	wg.Wait()
}

func TestLoggingListenerNeverErrors(t *testing.T) {
	l := LoggingListener(telemetry.NewNoopLogger())
	err := l.HandleEvent(context.Background(), InvocationEvent{
		Kind:         KindAction,
		Type:         TypeSucceeded,
		ID:           "fetch",
		InvocationID: "inv-1",
	})
	assert.NoError(t, err)
}
