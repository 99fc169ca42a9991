//go:build !functional

package kafkaconnector

import (
	"bytes"
	"io"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	assert "github.com/stretchr/testify/require"
)

func listen(t *testing.T) (net.Listener, string, uint16) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NoError(t, err)
	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	assert.NoError(t, err)
	port, err := strconv.ParseUint(portStr, 10, 16)
	assert.NoError(t, err)
	return ln, host, uint16(port)
}

// connWatcher collects what a Conn delivers.
type connWatcher struct {
	lock   sync.Mutex
	data   bytes.Buffer
	closed int
	got    chan struct{}
	done   chan struct{}
}

func watch(conn Conn) *connWatcher {
	w := &connWatcher{got: make(chan struct{}, 16), done: make(chan struct{})}
	conn.SetOnClosed(func() {
		w.lock.Lock()
		w.closed++
		w.lock.Unlock()
		close(w.done)
	})
	conn.SetOnData(func(b []byte) {
		w.lock.Lock()
		w.data.Write(b)
		w.lock.Unlock()
		w.got <- struct{}{}
	})
	return w
}

func (w *connWatcher) waitFor(t *testing.T, n int) []byte {
	t.Helper()
	for {
		w.lock.Lock()
		if w.data.Len() >= n {
			out := append([]byte(nil), w.data.Bytes()...)
			w.lock.Unlock()
			return out
		}
		w.lock.Unlock()

		select {
		case <-w.got:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for data")
		}
	}
}

func (w *connWatcher) waitClosed(t *testing.T) {
	t.Helper()
	select {
	case <-w.done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for close")
	}
}

func TestTCPTransportRoundTrip(t *testing.T) {
	defer leaktest.Check(t)()

	ln, host, port := listen(t)
	defer ln.Close()

	served := make(chan []byte, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		buf := make([]byte, 5)
		if _, err := io.ReadFull(c, buf); err != nil {
			return
		}
		_, _ = c.Write([]byte("world"))
		rest, _ := io.ReadAll(c)
		served <- append(buf, rest...)
	}()

	conn, err := NewTCPTransport(NewConfig()).Open(host, port)
	assert.NoError(t, err)
	w := watch(conn)

	assert.NoError(t, conn.Write([]byte("hel")))
	assert.NoError(t, conn.Write([]byte("lo")))
	assert.Equal(t, []byte("world"), w.waitFor(t, 5))

	assert.NoError(t, conn.Write([]byte("!")))
	assert.NoError(t, conn.Close())
	w.waitClosed(t)

	// writes queued before Close still reach the broker
	assert.Equal(t, []byte("hello!"), <-served)
	assert.ErrorIs(t, conn.Write([]byte("late")), ErrNotConnected)
	assert.NoError(t, conn.Close())
	assert.Equal(t, 1, w.closed)
}

func TestTCPTransportRemoteClose(t *testing.T) {
	defer leaktest.Check(t)()

	ln, host, port := listen(t)
	defer ln.Close()

	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		_ = c.Close()
	}()

	conn, err := NewTCPTransport(NewConfig()).Open(host, port)
	assert.NoError(t, err)
	w := watch(conn)
	w.waitClosed(t)

	assert.ErrorIs(t, conn.Write([]byte("x")), ErrNotConnected)
}

func TestTCPTransportDialFailure(t *testing.T) {
	ln, host, port := listen(t)
	assert.NoError(t, ln.Close())

	conf := NewConfig()
	conf.Net.DialTimeout = time.Second
	_, err := NewTCPTransport(conf).Open(host, port)
	assert.ErrorIs(t, err, ErrConnectFailed)
}

type recordingDialer struct {
	lock  sync.Mutex
	addrs []string
}

func (d *recordingDialer) Dial(network, addr string) (net.Conn, error) {
	d.lock.Lock()
	d.addrs = append(d.addrs, addr)
	d.lock.Unlock()
	return net.Dial(network, addr)
}

func TestTCPTransportProxy(t *testing.T) {
	defer leaktest.Check(t)()

	ln, host, port := listen(t)
	defer ln.Close()

	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		_, _ = io.Copy(io.Discard, c)
		_ = c.Close()
	}()

	dialer := new(recordingDialer)
	conf := NewConfig()
	conf.Net.Proxy.Enable = true
	conf.Net.Proxy.Dialer = dialer

	conn, err := NewTCPTransport(conf).Open(host, port)
	assert.NoError(t, err)
	w := watch(conn)
	assert.NoError(t, conn.Close())
	w.waitClosed(t)

	assert.Equal(t, []string{Address{Host: host, Port: port}.String()}, dialer.addrs)
}

func TestAddressString(t *testing.T) {
	assert.Equal(t, "kafka-1:9092", Address{Host: "kafka-1", Port: 9092}.String())
	assert.Equal(t, "[::1]:9093", Address{Host: "::1", Port: 9093}.String())
}
