package shepherd

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDispatcher_EmitAndReadEvent(t *testing.T) {
	d := newDispatcher(defaultLogger())

	d.emit(Indication{Kind: IndDevIncoming, IEEEAddr: "1"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	ind, err := d.readEvent(ctx)
	assert.NoError(t, err)
	assert.Equal(t, IndDevIncoming, ind.Kind)
	assert.Equal(t, "1", ind.IEEEAddr)
}

func TestDispatcher_ReadEvent_CancelledContext(t *testing.T) {
	d := newDispatcher(defaultLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.readEvent(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDispatcher_Emit_DropsWhenFull(t *testing.T) {
	d := newDispatcher(defaultLogger())

	for i := 0; i < cap(d.out)+5; i++ {
		d.emit(Indication{Kind: IndDevIncoming})
	}

	assert.Equal(t, cap(d.out), len(d.out))
}

func TestDispatcher_Close_UnblocksReadEvent(t *testing.T) {
	d := newDispatcher(defaultLogger())

	done := make(chan error, 1)
	go func() {
		_, err := d.readEvent(context.Background())
		done <- err
	}()

	d.close()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("readEvent did not unblock after close")
	}
}
