package kafkaconnector

import (
	"net"
	"sync"
)

// Transport opens connections to brokers. Open may block while dialing; all
// other interaction with a Conn is asynchronous.
type Transport interface {
	Open(host string, port uint16) (Conn, error)
}

// Conn is one open byte stream to a broker. Write never blocks on the network.
// The callbacks may be invoked from any goroutine, and the closed callback fires
// exactly once, also after an explicit Close.
type Conn interface {
	Write(b []byte) error
	SetOnData(fn func([]byte))
	SetOnClosed(fn func())
	Close() error
}

type tcpTransport struct {
	conf *Config
}

// NewTCPTransport returns a Transport that dials plain TCP connections using the
// Net settings of conf.
func NewTCPTransport(conf *Config) Transport {
	return &tcpTransport{conf: conf}
}

func (t *tcpTransport) Open(host string, port uint16) (Conn, error) {
	addr := Address{Host: host, Port: port}.String()

	var conn net.Conn
	var err error
	if t.conf.Net.Proxy.Enable {
		conn, err = t.conf.Net.Proxy.Dialer.Dial("tcp", addr)
	} else {
		dialer := net.Dialer{
			Timeout:   t.conf.Net.DialTimeout,
			KeepAlive: t.conf.Net.KeepAlive,
		}
		conn, err = dialer.Dial("tcp", addr)
	}
	if err != nil {
		return nil, Wrap(ErrConnectFailed, err)
	}

	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
	}

	c := &tcpConn{
		conn: conn,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go withRecover(c.writeLoop)
	return c, nil
}

type tcpConn struct {
	conn net.Conn

	lock     sync.Mutex
	queued   [][]byte
	closing  bool
	onData   func([]byte)
	onClosed func()

	wake       chan struct{}
	done       chan struct{}
	readerOnce sync.Once
	closeOnce  sync.Once
}

func (c *tcpConn) Write(b []byte) error {
	c.lock.Lock()
	if c.closing {
		c.lock.Unlock()
		return ErrNotConnected
	}
	c.queued = append(c.queued, b)
	c.lock.Unlock()

	c.signal()
	return nil
}

func (c *tcpConn) SetOnData(fn func([]byte)) {
	c.lock.Lock()
	c.onData = fn
	c.lock.Unlock()

	c.readerOnce.Do(func() {
		go withRecover(c.readLoop)
	})
}

func (c *tcpConn) SetOnClosed(fn func()) {
	c.lock.Lock()
	c.onClosed = fn
	c.lock.Unlock()
}

// Close flushes everything already written and then shuts the connection down.
func (c *tcpConn) Close() error {
	c.lock.Lock()
	c.closing = true
	c.lock.Unlock()

	c.signal()
	return nil
}

func (c *tcpConn) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *tcpConn) readLoop() {
	buf := make([]byte, 64*1024)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])

			c.lock.Lock()
			fn := c.onData
			c.lock.Unlock()
			if fn != nil {
				fn(data)
			}
		}
		if err != nil {
			c.shutdown()
			return
		}
	}
}

func (c *tcpConn) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case <-c.wake:
		}

		c.lock.Lock()
		queued := c.queued
		c.queued = nil
		closing := c.closing
		c.lock.Unlock()

		for _, b := range queued {
			if _, err := c.conn.Write(b); err != nil {
				Logger.Printf("transport/%s write failed: %v\n", c.conn.RemoteAddr(), err)
				c.shutdown()
				return
			}
		}

		if closing {
			c.shutdown()
			return
		}
	}
}

func (c *tcpConn) shutdown() {
	c.closeOnce.Do(func() {
		_ = c.conn.Close()
		close(c.done)

		c.lock.Lock()
		c.closing = true
		fn := c.onClosed
		c.lock.Unlock()
		if fn != nil {
			fn()
		}
	})
}
