//go:build !functional

package kafkaconnector

import (
	"testing"
	"time"

	assert "github.com/stretchr/testify/require"
)

func TestTimeScheduler(t *testing.T) {
	s := NewTimeScheduler()

	fired := make(chan struct{})
	s.After(time.Millisecond, func() { close(fired) })
	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatal("timer did not fire")
	}

	stopped := s.After(time.Hour, func() { t.Error("stopped timer fired") })
	assert.True(t, stopped.Stop())
	assert.False(t, stopped.Stop())
}

func TestMockSchedulerOrder(t *testing.T) {
	s := NewMockScheduler()

	var order []string
	s.After(2*time.Second, func() { order = append(order, "b") })
	s.After(time.Second, func() { order = append(order, "a") })
	s.After(2*time.Second, func() { order = append(order, "c") })
	s.After(3*time.Second, func() { order = append(order, "d") })
	assert.Equal(t, 4, s.Pending())

	s.Advance(2 * time.Second)
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, 2*time.Second, s.Now())
	assert.Equal(t, 1, s.Pending())
}

func TestMockSchedulerNested(t *testing.T) {
	s := NewMockScheduler()

	var fired []time.Duration
	s.After(time.Second, func() {
		fired = append(fired, s.Now())
		s.After(time.Second, func() { fired = append(fired, s.Now()) })
	})

	s.Advance(5 * time.Second)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, fired)
	assert.Equal(t, 5*time.Second, s.Now())
}

func TestMockSchedulerStop(t *testing.T) {
	s := NewMockScheduler()

	timer := s.After(time.Second, func() { t.Error("stopped timer fired") })
	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())
	assert.Equal(t, 0, s.Pending())
	s.Advance(time.Minute)
}
