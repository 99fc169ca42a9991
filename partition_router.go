package kafkaconnector

import (
	"errors"

	"github.com/eapache/go-resiliency/breaker"
	"github.com/hashicorp/go-multierror"
)

type connKey struct {
	broker int32
	role   connRole
}

// partitionRouter resolves topic/partitions to broker connections. It caches
// one connection per broker and role, and opens every connection the connector
// uses through a per-address circuit breaker.
type partitionRouter struct {
	conf      *Config
	transport Transport
	metadata  *clusterMetadata
	dispatch  func(func())
	onReply   replyHandler
	onClosed  closedHandler

	conns    map[connKey]*brokerConn
	breakers map[Address]*breaker.Breaker
}

func newPartitionRouter(conf *Config, metadata *clusterMetadata, dispatch func(func()), onReply replyHandler, onClosed closedHandler) *partitionRouter {
	return &partitionRouter{
		conf:      conf,
		transport: conf.Net.Transport,
		metadata:  metadata,
		dispatch:  dispatch,
		onReply:   onReply,
		onClosed:  onClosed,
		conns:     make(map[connKey]*brokerConn),
		breakers:  make(map[Address]*breaker.Breaker),
	}
}

// route returns the connection for role to the leader of topic/partition,
// opening it if needed. The KError tells the caller what to report when no
// connection can be had.
func (r *partitionRouter) route(topic string, partition int32, role connRole) (*brokerConn, KError) {
	leader, ok := r.metadata.leader(topic, partition)
	if !ok {
		return nil, ErrUnknownTopicOrPartition
	}
	if leader < 0 {
		return nil, ErrBrokerNotAvailable
	}

	key := connKey{broker: leader, role: role}
	if b := r.conns[key]; b != nil {
		return b, ErrNoError
	}

	addr, ok := r.metadata.address(leader)
	if !ok {
		return nil, ErrBrokerNotAvailable
	}

	b, err := r.dial(leader, addr, role)
	if err != nil {
		Logger.Printf("connector/router cannot reach broker #%d at %s for %s/%d: %v\n", leader, addr, topic, partition, err)
		return nil, ErrBrokerNotAvailable
	}

	r.conns[key] = b
	return b, ErrNoError
}

// dial opens a connection that is not cached by the router, such as the
// bootstrap metadata connection or the group coordinator connection.
func (r *partitionRouter) dial(id int32, addr Address, role connRole) (*brokerConn, error) {
	b := newBrokerConn(id, addr, role, r.conf, r.onReply, r.onClosed)

	err := r.breaker(addr).Run(func() error {
		return b.open(r.transport, r.dispatch)
	})
	if errors.Is(err, breaker.ErrBreakerOpen) {
		return nil, Wrap(ErrConnectFailed, err)
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *partitionRouter) breaker(addr Address) *breaker.Breaker {
	br := r.breakers[addr]
	if br == nil {
		br = breaker.New(r.conf.Net.Breaker.ErrorThreshold, r.conf.Net.Breaker.SuccessThreshold, r.conf.Net.Breaker.Timeout)
		r.breakers[addr] = br
	}
	return br
}

// evict forgets b if it is the cached connection for its broker and role.
func (r *partitionRouter) evict(b *brokerConn) {
	key := connKey{broker: b.id, role: b.role}
	if r.conns[key] == b {
		delete(r.conns, key)
	}
}

// closeAll closes every cached connection. Their closed hooks still run.
func (r *partitionRouter) closeAll() error {
	var errs *multierror.Error
	for _, b := range r.conns {
		if err := b.close(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}
