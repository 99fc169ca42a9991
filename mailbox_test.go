//go:build !functional

package kafkaconnector

import (
	"sync"
	"testing"

	assert "github.com/stretchr/testify/require"
)

func TestMailboxOrder(t *testing.T) {
	m := newMailbox()

	var got []int
	for i := 0; i < 100; i++ {
		i := i
		assert.True(t, m.put(func() { got = append(got, i) }))
	}
	m.close()
	assert.False(t, m.put(func() {}))

	for {
		fn, ok := m.take()
		if !ok {
			break
		}
		fn()
	}

	assert.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestMailboxConcurrentPut(t *testing.T) {
	m := newMailbox()
	count := 0
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			fn, ok := m.take()
			if !ok {
				return
			}
			fn()
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.put(func() { count++ })
			}
		}()
	}
	wg.Wait()
	m.close()
	<-done

	assert.Equal(t, 1000, count)
}
