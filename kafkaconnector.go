/*
Package kafkaconnector is a small, callback driven client for the Kafka wire protocol.

It speaks a fixed, older subset of the protocol (Produce v0, Fetch v0, ListOffsets v1,
Metadata v0, GroupCoordinator v0, JoinGroup v1, SyncGroup v0, Heartbeat v0 and
LeaveGroup v0) and is built around a single actor goroutine: every public method of
Connector only enqueues work and returns immediately, and every result is delivered
later through the Handler supplied at construction time, on that same goroutine.

The Connector keeps a routing table of topic/partition leaders that it refreshes from
the cluster whenever a route turns out to be unknown or a broker connection drops.
Produce, Fetch and GetOffsets never retry on their own: a failure is reported to the
caller straight away (with ErrUnknownTopicOrPartition or ErrBrokerNotAvailable) while a
metadata refresh runs in the background, and the caller decides when to try again.

JoinGroup makes the connector a member of a consumer group. It discovers the group
coordinator, joins, computes the partition assignment when elected leader (see
BalanceStrategyRange and BalanceStrategyRoundRobin), syncs, and keeps the membership
alive with heartbeats. Group protocol failures are never reported as call failures;
they send the member back to coordinator discovery and are only visible through
Handler.GroupStateChanged and the log.

Broker connections go through a Transport and timers through a Scheduler, both of which
can be replaced in Config. MockTransport and MockScheduler provide in-process fakes for
tests.
*/
package kafkaconnector

import (
	"io"
	"log"
)

// Logger is the instance of a StdLogger interface that the connector writes connection
// management events to. By default it is set to discard all log messages via io.Discard,
// but you can set it to redirect wherever you want.
var Logger StdLogger = log.New(io.Discard, "[kafkaconnector] ", log.LstdFlags)

// DebugLogger is the instance of a StdLogger that the connector writes more verbose
// debug information to, such as every request written and every frame received.
// By default it is set to discard all log messages via io.Discard.
var DebugLogger StdLogger = log.New(io.Discard, "[kafkaconnector][debug] ", log.LstdFlags)

// PanicHandler is called for recovering from panics spawned internally to the library (and thus
// not recoverable by the caller's goroutine). Defaults to nil, which means panics are not recovered.
var PanicHandler func(interface{})

// StdLogger is used to log error messages.
type StdLogger interface {
	Print(v ...interface{})
	Printf(format string, v ...interface{})
	Println(v ...interface{})
}

// MaxRequestSize is the maximum size (in bytes) of any request that this client will attempt to send.
// Trying to send a request larger than this will result in a PacketEncodingError.
var MaxRequestSize int32 = 100 * 1024 * 1024

// MaxResponseSize is the maximum size (in bytes) of any response that this client will attempt to parse.
// A broker connection announcing a larger frame is aborted.
var MaxResponseSize int32 = 100 * 1024 * 1024

// defaultClientID is the client name sent in every request header.
const defaultClientID = "cflib"
