package kafkaconnector

import (
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/hashicorp/go-multierror"
	"github.com/rcrowley/go-metrics"
)

// State is the connection state of a Connector.
type State int

const (
	// StateError means the metadata retry policy gave up.
	StateError State = -1
	// StateIdle means no cluster is configured.
	StateIdle State = 1
	// StateConnecting means the connector is looking for a reachable broker.
	StateConnecting State = 2
	// StateReady means the routing table has been loaded at least once.
	StateReady State = 3
)

func (s State) String() string {
	switch s {
	case StateError:
		return "error"
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Handler receives the results of Connector operations. All methods are called
// on the connector goroutine, one at a time; they must not block and must not
// call Close.
type Handler interface {
	// StateChanged is called whenever the connector state changes.
	StateChanged(state State)
	// ProduceResponse reports the outcome of Produce. offset is the offset of
	// the first message, or -1 on failure.
	ProduceResponse(correlationID int32, err KError, offset int64)
	// OffsetResponse reports the outcome of GetOffsets.
	OffsetResponse(correlationID int32, err KError, offset int64)
	// FetchResponse reports the outcome of Fetch. firstOffset is the offset of
	// the first message, or -1 if there are none.
	FetchResponse(correlationID int32, messages []*Message, firstOffset, highWaterMark int64, err KError)
	// GroupStateChanged is called whenever the group membership state changes.
	// The assignment is only set in GroupStable.
	GroupStateChanged(state GroupState, assignment map[string][]int32)
}

// NopHandler ignores every callback. Embed it to implement only some of Handler.
type NopHandler struct{}

func (NopHandler) StateChanged(State)                                    {}
func (NopHandler) ProduceResponse(int32, KError, int64)                  {}
func (NopHandler) OffsetResponse(int32, KError, int64)                   {}
func (NopHandler) FetchResponse(int32, []*Message, int64, int64, KError) {}
func (NopHandler) GroupStateChanged(GroupState, map[string][]int32)      {}

// Connector is a Kafka client built around one goroutine that owns all of its
// state. Its methods are safe for concurrent use and never block on the network:
// they queue the work and return, and results arrive through the Handler.
type Connector struct {
	conf    *Config
	handler Handler
	inbox   *mailbox
	done    chan struct{}

	// everything below is owned by the connector goroutine
	closed     bool
	state      State
	cluster    []Address
	clusterIdx int

	metadata       *clusterMetadata
	router         *partitionRouter
	metadataConn   *brokerConn
	refreshPending bool
	refreshTimer   Timer
	refreshSeq     int
	metadataTimer  Timer
	retry          backoff.BackOff

	group *groupCoordinator
}

// NewConnector starts a connector. A nil conf means NewConfig(), a nil handler
// discards all results.
func NewConnector(conf *Config, handler Handler) (*Connector, error) {
	if conf == nil {
		conf = NewConfig()
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	if conf.Net.Transport == nil {
		conf.Net.Transport = NewTCPTransport(conf)
	}
	if conf.Scheduler == nil {
		conf.Scheduler = NewTimeScheduler()
	}
	if handler == nil {
		handler = NopHandler{}
	}

	c := &Connector{
		conf:     conf,
		handler:  handler,
		inbox:    newMailbox(),
		done:     make(chan struct{}),
		state:    StateIdle,
		metadata: newClusterMetadata(),
		retry:    conf.metadataBackoff(),
	}
	c.router = newPartitionRouter(conf, c.metadata, c.dispatch, c.handleReply, c.handleClosed)
	c.group = newGroupCoordinator(c)

	go withRecover(c.run)
	return c, nil
}

func (c *Connector) run() {
	defer close(c.done)

	for {
		fn, ok := c.inbox.take()
		if !ok {
			return
		}
		withRecover(fn)
	}
}

// dispatch hands fn to the connector goroutine. Work arriving after Close is dropped.
func (c *Connector) dispatch(fn func()) {
	c.inbox.put(fn)
}

// Connect sets the bootstrap brokers and loads the cluster metadata from the
// first one that can be reached.
func (c *Connector) Connect(cluster ...Address) {
	cluster = append([]Address(nil), cluster...)
	c.dispatch(func() { c.connect(cluster) })
}

// ConnectTo is Connect with a single bootstrap broker.
func (c *Connector) ConnectTo(host string, port uint16) {
	c.Connect(Address{Host: host, Port: port})
}

// Produce sends messages to topic/partition. With NoResponse acks only routing
// failures are reported; otherwise exactly one ProduceResponse follows.
func (c *Connector) Produce(topic string, partition int32, messages []*Message, requiredAcks RequiredAcks, ackTimeout time.Duration, correlationID int32) {
	c.dispatch(func() { c.produce(topic, partition, messages, requiredAcks, ackTimeout, correlationID) })
}

// Fetch reads messages of topic/partition starting at offset. Exactly one
// FetchResponse follows.
func (c *Connector) Fetch(topic string, partition int32, offset int64, maxWaitTime time.Duration, minBytes, maxBytes int32, correlationID int32) {
	c.dispatch(func() { c.fetch(topic, partition, offset, maxWaitTime, minBytes, maxBytes, correlationID) })
}

// GetOffsets asks for the earliest or the next (high water mark) offset of
// topic/partition. Exactly one OffsetResponse follows.
func (c *Connector) GetOffsets(topic string, partition int32, correlationID int32, wantEarliest bool) {
	c.dispatch(func() { c.getOffsets(topic, partition, correlationID, wantEarliest) })
}

// GetFirstOffset asks for the earliest offset still available.
func (c *Connector) GetFirstOffset(topic string, partition int32, correlationID int32) {
	c.GetOffsets(topic, partition, correlationID, true)
}

// GetHighwaterMarkOffset asks for the offset the next produced message will get.
func (c *Connector) GetHighwaterMarkOffset(topic string, partition int32, correlationID int32) {
	c.GetOffsets(topic, partition, correlationID, false)
}

// JoinGroup makes the connector a member of groupID interested in topics. A
// nil strategy means Config.Group.Rebalance.Strategy. Joining a different group
// leaves the current one first.
func (c *Connector) JoinGroup(groupID string, topics []string, strategy BalanceStrategy) {
	topics = append([]string(nil), topics...)
	c.dispatch(func() {
		if c.closed {
			return
		}
		if strategy == nil {
			strategy = c.conf.Group.Rebalance.Strategy
		}
		c.group.join(groupID, topics, strategy)
	})
}

// LeaveGroup leaves the current group, if any.
func (c *Connector) LeaveGroup() {
	c.dispatch(func() {
		if c.closed {
			return
		}
		c.group.leave()
	})
}

// Close leaves the group, closes every broker connection and stops the
// connector goroutine. It must not be called from a Handler method.
func (c *Connector) Close() error {
	errc := make(chan error, 1)
	if !c.inbox.put(func() { errc <- c.shutdown() }) {
		return ErrClosedConnector
	}
	err := <-errc
	c.inbox.close()
	<-c.done
	return err
}

// flush waits until everything queued so far has been processed.
func (c *Connector) flush() {
	done := make(chan struct{})
	if !c.inbox.put(func() { close(done) }) {
		return
	}
	<-done
}

func (c *Connector) shutdown() error {
	if c.closed {
		return ErrClosedConnector
	}

	c.group.leave()
	c.cancelRefresh()

	var errs *multierror.Error
	if c.metadataConn != nil {
		if err := c.metadataConn.close(); err != nil {
			errs = multierror.Append(errs, err)
		}
		c.metadataConn = nil
	}
	if err := c.router.closeAll(); err != nil {
		errs = multierror.Append(errs, err)
	}
	c.closed = true

	Logger.Println("connector/shutdown closed")
	return errs.ErrorOrNil()
}

func (c *Connector) setState(state State) {
	if c.state == state {
		return
	}
	c.state = state
	c.handler.StateChanged(state)
}

func (c *Connector) connect(cluster []Address) {
	if c.closed {
		return
	}

	c.cancelRefresh()
	if c.metadataConn != nil {
		_ = c.metadataConn.close()
		c.metadataConn = nil
	}

	c.cluster = cluster
	c.clusterIdx = 0
	c.retry.Reset()

	if len(cluster) == 0 {
		Logger.Println("connector/metadata", ErrNoBootstrapBrokers)
		c.setState(StateIdle)
		return
	}

	c.setState(StateConnecting)
	c.refreshMetadata()
}

// connectToCluster opens a connection to the next reachable bootstrap broker,
// trying each one once starting at the current position.
func (c *Connector) connectToCluster(role connRole) *brokerConn {
	if len(c.cluster) == 0 {
		return nil
	}
	if c.clusterIdx >= len(c.cluster) {
		c.clusterIdx = 0
	}

	start := c.clusterIdx
	for {
		addr := c.cluster[c.clusterIdx]
		b, err := c.router.dial(-1, addr, role)
		if err == nil {
			return b
		}
		Logger.Printf("connector/%s cannot connect to %s: %v\n", role, addr, err)

		c.clusterIdx++
		if c.clusterIdx >= len(c.cluster) {
			c.clusterIdx = 0
		}
		if c.clusterIdx == start {
			return nil
		}
	}
}

// requestRefresh starts a metadata refresh unless one is already running or scheduled.
func (c *Connector) requestRefresh() {
	if c.closed || c.refreshPending {
		return
	}
	c.refreshMetadata()
}

func (c *Connector) refreshMetadata() {
	c.refreshPending = true
	c.refreshTimer = nil

	if len(c.cluster) == 0 {
		c.refreshPending = false
		c.setState(StateIdle)
		return
	}

	metrics.GetOrRegisterMeter(metadataRefreshMetric, c.conf.MetricRegistry).Mark(1)

	b := c.connectToCluster(roleMetadata)
	if b == nil {
		Logger.Println("connector/metadata could not connect to kafka cluster")
		c.retryMetadata()
		return
	}

	c.metadataConn = b
	if err := b.send(&MetadataRequest{}, 0, true); err != nil {
		Logger.Printf("connector/metadata request to %s failed: %v\n", b.addr, err)
		_ = b.close()
		return
	}

	c.metadataTimer = c.conf.Scheduler.After(c.conf.Metadata.Timeout, func() {
		c.dispatch(func() {
			if c.closed || c.metadataConn != b {
				return
			}
			Logger.Printf("connector/metadata no reply from %s within %s\n", b.addr, c.conf.Metadata.Timeout)
			_ = b.close()
		})
	})
}

func (c *Connector) stopMetadataTimer() {
	if c.metadataTimer != nil {
		c.metadataTimer.Stop()
		c.metadataTimer = nil
	}
}

func (c *Connector) retryMetadata() {
	d := c.retry.NextBackOff()
	if d == backoff.Stop {
		Logger.Println("connector/metadata giving up on the kafka cluster")
		c.refreshPending = false
		c.setState(StateError)
		return
	}

	c.refreshSeq++
	seq := c.refreshSeq
	c.refreshTimer = c.conf.Scheduler.After(d, func() {
		c.dispatch(func() {
			if c.closed || seq != c.refreshSeq {
				return
			}
			c.refreshMetadata()
		})
	})
}

func (c *Connector) cancelRefresh() {
	c.refreshSeq++
	c.stopMetadataTimer()
	if c.refreshTimer != nil {
		c.refreshTimer.Stop()
		c.refreshTimer = nil
	}
	c.refreshPending = false
}

func (c *Connector) handleMetadata(b *brokerConn, resp *MetadataResponse) {
	_ = b.close()
	if b != c.metadataConn {
		return
	}
	c.metadataConn = nil
	c.stopMetadataTimer()

	c.metadata.rebuild(resp)
	c.metadata.logSummary()

	if c.metadata.empty() {
		Logger.Println("connector/metadata could not retrieve kafka cluster meta data")
		c.clusterIdx++
		c.retryMetadata()
		return
	}

	c.refreshPending = false
	c.retry.Reset()
	c.setState(StateReady)
}

func (c *Connector) produce(topic string, partition int32, messages []*Message, requiredAcks RequiredAcks, ackTimeout time.Duration, correlationID int32) {
	if c.closed {
		return
	}

	b, kerr := c.router.route(topic, partition, roleProduce)
	if kerr != ErrNoError {
		c.routingFailed(topic, partition, kerr)
		c.handler.ProduceResponse(correlationID, kerr, -1)
		return
	}

	req := &ProduceRequest{RequiredAcks: requiredAcks, Timeout: int32(ackTimeout / time.Millisecond)}
	req.set(topic, partition)
	for _, msg := range messages {
		req.AddMessage(topic, partition, msg)
	}

	if err := b.sendFor(req, correlationID, topicPartition{topic, partition}, requiredAcks != NoResponse); err != nil {
		Logger.Printf("connector/produce %s/%d: %v\n", topic, partition, err)
		c.handler.ProduceResponse(correlationID, sendErrorCode(err), -1)
	}
}

func (c *Connector) fetch(topic string, partition int32, offset int64, maxWaitTime time.Duration, minBytes, maxBytes int32, correlationID int32) {
	if c.closed {
		return
	}

	b, kerr := c.router.route(topic, partition, roleFetch)
	if kerr != ErrNoError {
		c.routingFailed(topic, partition, kerr)
		c.handler.FetchResponse(correlationID, nil, -1, -1, kerr)
		return
	}

	req := &FetchRequest{MaxWaitTime: int32(maxWaitTime / time.Millisecond), MinBytes: minBytes}
	req.AddBlock(topic, partition, offset, maxBytes)

	if err := b.sendFor(req, correlationID, topicPartition{topic, partition}, true); err != nil {
		Logger.Printf("connector/fetch %s/%d: %v\n", topic, partition, err)
		c.handler.FetchResponse(correlationID, nil, -1, -1, sendErrorCode(err))
	}
}

func (c *Connector) getOffsets(topic string, partition int32, correlationID int32, wantEarliest bool) {
	if c.closed {
		return
	}

	b, kerr := c.router.route(topic, partition, roleOffsets)
	if kerr != ErrNoError {
		c.routingFailed(topic, partition, kerr)
		c.handler.OffsetResponse(correlationID, kerr, -1)
		return
	}

	at := OffsetNewest
	if wantEarliest {
		at = OffsetOldest
	}
	req := &OffsetRequest{Version: 1}
	req.AddBlock(topic, partition, at, 1)

	if err := b.sendFor(req, correlationID, topicPartition{topic, partition}, true); err != nil {
		Logger.Printf("connector/offsets %s/%d: %v\n", topic, partition, err)
		c.handler.OffsetResponse(correlationID, sendErrorCode(err), -1)
	}
}

func (c *Connector) routingFailed(topic string, partition int32, kerr KError) {
	metrics.GetOrRegisterMeter(routingFailureMetric, c.conf.MetricRegistry).Mark(1)
	Logger.Printf("connector/router %s/%d: %v\n", topic, partition, Wrap(ErrRoutingUnresolved, kerr))
	c.requestRefresh()
}

func sendErrorCode(err error) KError {
	var encErr PacketEncodingError
	if errors.As(err, &encErr) {
		return ErrMessageSizeTooLarge
	}
	return ErrNetworkException
}

// staleRoute reports whether a broker error means the routing table is out of date.
func staleRoute(kerr KError) bool {
	switch kerr {
	case ErrUnknownTopicOrPartition, ErrLeaderNotAvailable, ErrNotLeaderForPartition:
		return true
	}
	return false
}

func (c *Connector) handleReply(b *brokerConn, pr pendingRequest, payload []byte) {
	if c.closed {
		return
	}

	body := allocateResponseBody(pr.apiKey, pr.apiVersion)
	if body == nil {
		Logger.Printf("connector/%s no response type for key %d\n", b.role, pr.apiKey)
		return
	}
	if err := versionedDecode(payload, body, pr.apiVersion); err != nil {
		Logger.Printf("connector/%s reply to key %d from %s: %v\n", b.role, pr.apiKey, b.addr, err)
	}

	switch b.role {
	case roleMetadata:
		c.handleMetadata(b, body.(*MetadataResponse))
	case roleCoordinatorDiscovery:
		c.group.handleCoordinator(b, body.(*GroupCoordinatorResponse))
	case roleCoordinator:
		c.group.handleReply(b, body)
	case roleProduce:
		c.handleProduce(pr, body.(*ProduceResponse))
	case roleFetch:
		c.handleFetch(pr, body.(*FetchResponse))
	case roleOffsets:
		c.handleOffsets(pr, body.(*OffsetResponse))
	}
}

type topicPartition struct {
	topic     string
	partition int32
}

func (c *Connector) handleProduce(pr pendingRequest, resp *ProduceResponse) {
	block := resp.GetBlock(pr.target.topic, pr.target.partition)
	if block == nil {
		Logger.Printf("connector/produce reply for %s/%d has no block\n", pr.target.topic, pr.target.partition)
		c.handler.ProduceResponse(pr.tag, ErrUnknown, -1)
		return
	}

	offset := block.Offset
	if block.Err != ErrNoError {
		offset = -1
	}
	c.handler.ProduceResponse(pr.tag, block.Err, offset)
	if staleRoute(block.Err) {
		c.requestRefresh()
	}
}

func (c *Connector) handleFetch(pr pendingRequest, resp *FetchResponse) {
	block := resp.GetBlock(pr.target.topic, pr.target.partition)
	if block == nil {
		Logger.Printf("connector/fetch reply for %s/%d has no block\n", pr.target.topic, pr.target.partition)
		c.handler.FetchResponse(pr.tag, nil, -1, -1, ErrUnknown)
		return
	}

	c.handler.FetchResponse(pr.tag, block.MsgSet.messages(), block.MsgSet.firstOffset(), block.HighWaterMarkOffset, block.Err)
	if staleRoute(block.Err) {
		c.requestRefresh()
	}
}

func (c *Connector) handleOffsets(pr pendingRequest, resp *OffsetResponse) {
	block := resp.GetBlock(pr.target.topic, pr.target.partition)
	if block == nil {
		Logger.Printf("connector/offsets reply for %s/%d has no block\n", pr.target.topic, pr.target.partition)
		c.handler.OffsetResponse(pr.tag, ErrUnknown, -1)
		return
	}

	offset := block.offset()
	if block.Err != ErrNoError {
		offset = -1
	}
	c.handler.OffsetResponse(pr.tag, block.Err, offset)
	if staleRoute(block.Err) {
		c.requestRefresh()
	}
}

func (c *Connector) handleClosed(b *brokerConn, unanswered []pendingRequest) {
	if c.closed {
		return
	}

	switch b.role {
	case roleMetadata:
		if b != c.metadataConn {
			return
		}
		c.metadataConn = nil
		c.stopMetadataTimer()
		Logger.Printf("connector/metadata connection to %s closed before it replied\n", b.addr)
		c.clusterIdx++
		c.retryMetadata()

	case roleCoordinatorDiscovery, roleCoordinator:
		c.group.handleClosed(b)

	case roleProduce, roleFetch, roleOffsets:
		c.router.evict(b)
		for _, pr := range unanswered {
			c.failPending(b.role, pr, ErrNetworkException)
		}
		c.requestRefresh()
	}
}

func (c *Connector) failPending(role connRole, pr pendingRequest, kerr KError) {
	switch role {
	case roleProduce:
		c.handler.ProduceResponse(pr.tag, kerr, -1)
	case roleFetch:
		c.handler.FetchResponse(pr.tag, nil, -1, -1, kerr)
	case roleOffsets:
		c.handler.OffsetResponse(pr.tag, kerr, -1)
	}
}
