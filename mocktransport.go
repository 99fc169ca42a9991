package kafkaconnector

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// TestState is a generic interface for a test state, implemented e.g. by testing.T
type TestState interface {
	Error(args ...interface{})
	Fatal(args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
}

// MockTransport is an in-process Transport. Every opened connection is a
// MockConn that decodes the requests written to it and lets the test play the
// broker by answering them with Respond.
type MockTransport struct {
	t TestState

	lock    sync.Mutex
	conns   []*MockConn
	failing map[Address]bool
	dials   map[Address]int
}

// NewMockTransport returns a transport on which every address can be opened
// until Fail says otherwise.
func NewMockTransport(t TestState) *MockTransport {
	return &MockTransport{
		t:       t,
		failing: make(map[Address]bool),
		dials:   make(map[Address]int),
	}
}

// Open implements Transport.
func (m *MockTransport) Open(host string, port uint16) (Conn, error) {
	addr := Address{Host: host, Port: port}

	m.lock.Lock()
	defer m.lock.Unlock()

	m.dials[addr]++
	if m.failing[addr] {
		return nil, Wrap(ErrConnectFailed, fmt.Errorf("mock: %s refused", addr))
	}

	conn := &MockConn{t: m.t, Addr: addr}
	m.conns = append(m.conns, conn)
	return conn, nil
}

// Fail makes opening addr fail (or succeed again).
func (m *MockTransport) Fail(addr Address, fail bool) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.failing[addr] = fail
}

// Dials returns how often opening addr was attempted.
func (m *MockTransport) Dials(addr Address) int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.dials[addr]
}

// Conns returns every connection opened to addr, oldest first.
func (m *MockTransport) Conns(addr Address) []*MockConn {
	m.lock.Lock()
	defer m.lock.Unlock()

	var conns []*MockConn
	for _, conn := range m.conns {
		if conn.Addr == addr {
			conns = append(conns, conn)
		}
	}
	return conns
}

// LastConn returns the most recently opened connection to addr, or nil.
func (m *MockTransport) LastConn(addr Address) *MockConn {
	conns := m.Conns(addr)
	if len(conns) == 0 {
		return nil
	}
	return conns[len(conns)-1]
}

// Requests returns every request with the given api key written to any
// connection, in the order the connections were opened.
func (m *MockTransport) Requests(apiKey int16) []MockRequest {
	m.lock.Lock()
	conns := append([]*MockConn(nil), m.conns...)
	m.lock.Unlock()

	var reqs []MockRequest
	for _, conn := range conns {
		reqs = append(reqs, conn.Requests(apiKey)...)
	}
	return reqs
}

// MockRequest is a request as decoded by a MockConn.
type MockRequest struct {
	CorrelationID int32
	ClientID      string
	APIKey        int16
	APIVersion    int16
	Body          protocolBody
}

// MockConn is one connection opened through a MockTransport.
type MockConn struct {
	t    TestState
	Addr Address

	lock     sync.Mutex
	requests []MockRequest
	onData   func([]byte)
	onClosed func()
	closed   bool
}

// Write implements Conn. The frame is decoded right away; a frame that cannot
// be decoded fails the test.
func (c *MockConn) Write(b []byte) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.closed {
		return ErrNotConnected
	}

	if len(b) < 4 {
		c.t.Errorf("mock: short frame written to %s: %v", c.Addr, b)
		return nil
	}
	req := &request{}
	if err := decode(b[4:], req); err != nil {
		c.t.Errorf("mock: cannot decode request written to %s: %v", c.Addr, err)
		return nil
	}
	c.requests = append(c.requests, MockRequest{
		CorrelationID: req.correlationID,
		ClientID:      req.clientID,
		APIKey:        req.body.key(),
		APIVersion:    req.body.version(),
		Body:          req.body,
	})
	return nil
}

// SetOnData implements Conn.
func (c *MockConn) SetOnData(fn func([]byte)) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.onData = fn
}

// SetOnClosed implements Conn.
func (c *MockConn) SetOnClosed(fn func()) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.onClosed = fn
}

// Close implements Conn. The closed callback runs synchronously, once.
func (c *MockConn) Close() error {
	c.lock.Lock()
	if c.closed {
		c.lock.Unlock()
		return nil
	}
	c.closed = true
	fn := c.onClosed
	c.lock.Unlock()

	if fn != nil {
		fn()
	}
	return nil
}

// Drop simulates the broker closing the connection.
func (c *MockConn) Drop() {
	_ = c.Close()
}

// Closed reports whether the connection has been closed by either side.
func (c *MockConn) Closed() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.closed
}

// Requests returns the requests with apiKey written so far. A negative key
// returns all of them.
func (c *MockConn) Requests(apiKey int16) []MockRequest {
	c.lock.Lock()
	defer c.lock.Unlock()

	var reqs []MockRequest
	for _, req := range c.requests {
		if apiKey < 0 || req.APIKey == apiKey {
			reqs = append(reqs, req)
		}
	}
	return reqs
}

// LastRequest returns the latest request with apiKey, failing the test if there is none.
func (c *MockConn) LastRequest(apiKey int16) MockRequest {
	reqs := c.Requests(apiKey)
	if len(reqs) == 0 {
		c.t.Fatalf("mock: no request with key %d written to %s", apiKey, c.Addr)
		return MockRequest{}
	}
	return reqs[len(reqs)-1]
}

// Respond frames body as the reply to correlationID and delivers it.
func (c *MockConn) Respond(correlationID int32, body encoder) {
	frame, err := encode(&mockResponse{correlationID: correlationID, body: body}, nil)
	if err != nil {
		c.t.Fatalf("mock: cannot encode response: %v", err)
		return
	}
	c.Feed(frame)
}

// Feed delivers raw bytes as if they had been read from the network.
func (c *MockConn) Feed(data []byte) {
	c.lock.Lock()
	fn := c.onData
	closed := c.closed
	c.lock.Unlock()

	if fn != nil && !closed {
		fn(append([]byte(nil), data...))
	}
}

type mockResponse struct {
	correlationID int32
	body          encoder
}

func (r *mockResponse) encode(pe packetEncoder) error {
	pe.push(&lengthField{})
	pe.putInt32(r.correlationID)
	if err := r.body.encode(pe); err != nil {
		return err
	}
	return pe.pop()
}

// MockScheduler is a Scheduler running on virtual time. Callbacks fire only
// from Advance, on the goroutine calling it.
type MockScheduler struct {
	lock   sync.Mutex
	now    time.Duration
	seq    int
	timers []*mockTimer
}

type mockTimer struct {
	s    *MockScheduler
	at   time.Duration
	seq  int
	fn   func()
	done bool
}

// NewMockScheduler returns a scheduler whose virtual clock starts at zero.
func NewMockScheduler() *MockScheduler {
	return &MockScheduler{}
}

// After implements Scheduler.
func (s *MockScheduler) After(d time.Duration, fn func()) Timer {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.seq++
	t := &mockTimer{s: s, at: s.now + d, seq: s.seq, fn: fn}
	s.timers = append(s.timers, t)
	return t
}

// Advance moves virtual time forward by d and fires every timer that became
// due, earliest first.
func (s *MockScheduler) Advance(d time.Duration) {
	s.lock.Lock()
	target := s.now + d
	for {
		sort.SliceStable(s.timers, func(i, j int) bool {
			if s.timers[i].at != s.timers[j].at {
				return s.timers[i].at < s.timers[j].at
			}
			return s.timers[i].seq < s.timers[j].seq
		})

		var due *mockTimer
		for _, t := range s.timers {
			if !t.done && t.at <= target {
				due = t
				break
			}
		}
		if due == nil {
			break
		}

		due.done = true
		s.now = due.at
		s.lock.Unlock()
		due.fn()
		s.lock.Lock()
	}
	s.now = target
	s.prune()
	s.lock.Unlock()
}

// Pending returns the number of timers that have neither fired nor been stopped.
func (s *MockScheduler) Pending() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.prune()
	return len(s.timers)
}

// Now returns the virtual time elapsed since the scheduler was created.
func (s *MockScheduler) Now() time.Duration {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.now
}

func (s *MockScheduler) prune() {
	live := s.timers[:0]
	for _, t := range s.timers {
		if !t.done {
			live = append(live, t)
		}
	}
	s.timers = live
}

func (t *mockTimer) Stop() bool {
	t.s.lock.Lock()
	defer t.s.lock.Unlock()
	if t.done {
		return false
	}
	t.done = true
	return true
}
