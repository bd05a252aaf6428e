package observable

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_WatchDeliversInitialThenChanges(t *testing.T) {
	v := New(false)

	ch, cancel := v.Watch()
	defer cancel()

	assert.False(t, <-ch)

	assert.True(t, v.Set(true))
	select {
	case got := <-ch:
		assert.True(t, got)
	case <-time.After(time.Second):
		t.Fatal("no change delivered")
	}
}

func TestValue_SetSameValueDoesNotNotify(t *testing.T) {
	v := New(3)
	ch, cancel := v.Watch()
	defer cancel()
	<-ch

	assert.False(t, v.Set(3))
	select {
	case got := <-ch:
		t.Fatalf("unexpected notification %d", got)
	default:
	}
}

func TestValue_SlowWatcherGetsLatest(t *testing.T) {
	v := New(0)
	ch, cancel := v.Watch()
	defer cancel()
	<-ch

	for i := 1; i <= 5; i++ {
		v.Set(i)
	}

	assert.Equal(t, 5, <-ch)
	assert.Equal(t, 5, v.Get())
}

func TestValue_CancelClosesChannel(t *testing.T) {
	v := New("a")
	ch, cancel := v.Watch()
	<-ch

	cancel()
	cancel()

	_, ok := <-ch
	require.False(t, ok)

	// setting after cancel must not panic
	v.Set("b")
}
