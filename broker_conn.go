package kafkaconnector

import (
	"fmt"

	"github.com/rcrowley/go-metrics"
)

// connRole says what a broker connection is used for, and so how its replies
// and its closing are handled.
type connRole int

const (
	roleMetadata connRole = iota
	roleCoordinatorDiscovery
	roleCoordinator
	roleProduce
	roleFetch
	roleOffsets
)

func (r connRole) String() string {
	switch r {
	case roleMetadata:
		return "metadata"
	case roleCoordinatorDiscovery:
		return "coordinator-discovery"
	case roleCoordinator:
		return "coordinator"
	case roleProduce:
		return "produce"
	case roleFetch:
		return "fetch"
	case roleOffsets:
		return "offsets"
	}
	return fmt.Sprintf("role-%d", int(r))
}

type connState int

const (
	connDisconnected connState = iota
	connConnecting
	connOpen
	connClosed
)

// pendingRequest is what a connection remembers about a request until its
// reply arrives. tag is the caller's correlation id, which is distinct from the
// per-connection wire correlation id. target is the partition a produce, fetch
// or offsets request was sent for.
type pendingRequest struct {
	apiKey     int16
	apiVersion int16
	tag        int32
	target     topicPartition
}

type replyHandler func(b *brokerConn, pr pendingRequest, payload []byte)

type closedHandler func(b *brokerConn, unanswered []pendingRequest)

// brokerConn is one connection to one broker. It is owned by the connector
// goroutine; transport callbacks reach it through dispatch.
type brokerConn struct {
	id       int32 // -1 for bootstrap addresses
	addr     Address
	role     connRole
	state    connState
	conn     Conn
	clientID string

	correlationID int32
	pending       map[int32]pendingRequest
	order         []int32
	buf           []byte

	registry metrics.Registry
	metrics  *connMetrics

	onReply  replyHandler
	onClosed closedHandler
}

func newBrokerConn(id int32, addr Address, role connRole, conf *Config, onReply replyHandler, onClosed closedHandler) *brokerConn {
	return &brokerConn{
		id:       id,
		addr:     addr,
		role:     role,
		state:    connDisconnected,
		clientID: conf.ClientID,
		pending:  make(map[int32]pendingRequest),
		registry: conf.MetricRegistry,
		metrics:  newConnMetrics(id, conf.MetricRegistry),
		onReply:  onReply,
		onClosed: onClosed,
	}
}

// open dials the broker through transport. Data and close events are handed to
// dispatch so they are processed on the connector goroutine.
func (b *brokerConn) open(transport Transport, dispatch func(func())) error {
	b.state = connConnecting

	conn, err := transport.Open(b.addr.Host, b.addr.Port)
	if err != nil {
		b.state = connClosed
		return err
	}

	b.conn = conn
	b.state = connOpen

	conn.SetOnClosed(func() {
		dispatch(b.closed)
	})
	conn.SetOnData(func(data []byte) {
		dispatch(func() { b.feed(data) })
	})

	DebugLogger.Printf("conn/%s/%s opened (broker #%d)\n", b.role, b.addr, b.id)
	return nil
}

// send frames body with the next correlation id and writes it. When
// expectReply is set the reply is matched back to tag.
func (b *brokerConn) send(body protocolBody, tag int32, expectReply bool) error {
	return b.sendFor(body, tag, topicPartition{}, expectReply)
}

// sendFor is send for a request addressed to a single partition.
func (b *brokerConn) sendFor(body protocolBody, tag int32, target topicPartition, expectReply bool) error {
	if b.state != connOpen {
		return ErrNotConnected
	}

	b.correlationID++
	req := &request{correlationID: b.correlationID, clientID: b.clientID, body: body}

	buf, err := encode(req, b.registry)
	if err != nil {
		return err
	}

	if expectReply {
		b.pending[req.correlationID] = pendingRequest{apiKey: body.key(), apiVersion: body.version(), tag: tag, target: target}
		b.order = append(b.order, req.correlationID)
	}

	if err := b.conn.Write(buf); err != nil {
		if expectReply {
			b.forget(req.correlationID)
		}
		return err
	}

	b.metrics.updateRequest(len(buf), expectReply)
	DebugLogger.Printf("conn/%s/%s sent key %d v%d correlation %d (%d bytes)\n",
		b.role, b.addr, body.key(), body.version(), req.correlationID, len(buf))
	return nil
}

// feed consumes bytes from the transport and dispatches every whole frame in
// arrival order. Incomplete frames stay buffered until the rest arrives.
func (b *brokerConn) feed(data []byte) {
	if b.state != connOpen {
		return
	}

	b.buf = append(b.buf, data...)

	for len(b.buf) >= responseLengthSize {
		rd := realDecoder{raw: b.buf[:responseLengthSize]}
		size, _ := rd.getInt32()
		if size < responseHeaderSize-responseLengthSize || size > MaxResponseSize {
			Logger.Printf("conn/%s/%s funny size of reply: %d\n", b.role, b.addr, size)
			metrics.GetOrRegisterMeter(connectionAbortedMetric, b.registry).Mark(1)
			b.buf = nil
			_ = b.close()
			return
		}

		frameLen := responseLengthSize + int(size)
		if len(b.buf) < frameLen {
			break
		}

		var header responseHeader
		frame := b.buf[:frameLen]
		b.buf = b.buf[frameLen:]
		if err := decode(frame[:responseHeaderSize], &header); err != nil {
			Logger.Printf("conn/%s/%s bad reply header: %v\n", b.role, b.addr, err)
			continue
		}

		pr, ok := b.pending[header.correlationID]
		if !ok {
			Logger.Printf("conn/%s/%s dropping reply with unknown correlation id %d\n", b.role, b.addr, header.correlationID)
			continue
		}
		b.forget(header.correlationID)
		b.metrics.updateResponse(frameLen)

		b.onReply(b, pr, frame[responseHeaderSize:])

		// the reply handler may have closed us
		if b.state != connOpen {
			return
		}
	}

	if len(b.buf) == 0 {
		b.buf = nil
	}
}

func (b *brokerConn) forget(correlationID int32) {
	delete(b.pending, correlationID)
	for i, id := range b.order {
		if id == correlationID {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// close asks the transport to shut the connection down. The closed hook runs
// once the transport reports it.
func (b *brokerConn) close() error {
	if b.conn == nil || b.state == connClosed {
		return nil
	}
	return b.conn.Close()
}

// closed runs on the connector goroutine exactly once per connection and hands
// the still unanswered requests to the closed hook in the order they were sent.
func (b *brokerConn) closed() {
	if b.state == connClosed {
		return
	}
	b.state = connClosed

	unanswered := make([]pendingRequest, 0, len(b.order))
	for _, id := range b.order {
		unanswered = append(unanswered, b.pending[id])
	}
	b.pending = make(map[int32]pendingRequest)
	b.order = nil
	b.buf = nil
	b.metrics.dropPending(len(unanswered))

	DebugLogger.Printf("conn/%s/%s closed with %d unanswered requests\n", b.role, b.addr, len(unanswered))
	b.onClosed(b, unanswered)
}
