package kafkaconnector

import (
	"regexp"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/rcrowley/go-metrics"
	"golang.org/x/net/proxy"
)

const defaultClientIDPattern = `\A[A-Za-z0-9._-]+\z`

var validClientID = regexp.MustCompile(defaultClientIDPattern)

// Config is used to pass multiple configuration options to NewConnector.
type Config struct {
	// Net is the namespace for network-level properties used by the Broker, and
	// shared by the Client/Producer/Consumer.
	Net struct {
		DialTimeout time.Duration // How long to wait for the initial connection (default 30s).
		KeepAlive   time.Duration // TCP keep-alive period; 0 disables it (default 0).

		// Proxy is the namespace for configuring proxy dialing of broker connections.
		Proxy struct {
			// Whether or not to use proxy when connecting to the broker
			// (defaults to false).
			Enable bool
			// The proxy dialer to use when proxy is enabled (defaults to nil).
			Dialer proxy.Dialer
		}

		// Breaker guards opening connections to a single broker. After ErrorThreshold
		// consecutive failures routes to that broker fail fast with ErrBrokerNotAvailable
		// until Timeout has passed.
		Breaker struct {
			ErrorThreshold   int           // default 3
			SuccessThreshold int           // default 1
			Timeout          time.Duration // default 10s
		}

		// Transport opens broker connections. Defaults to a TCP transport built
		// from the settings above.
		Transport Transport
	}

	// Metadata is the namespace for cluster metadata management properties.
	Metadata struct {
		Retry struct {
			// How long to wait before fetching the metadata again after the
			// bootstrap brokers could not be reached or returned no brokers
			// (default 1s).
			Backoff time.Duration
			// Called to build the retry policy for the metadata fetch. Defaults to a
			// constant policy of Backoff. A policy returning backoff.Stop puts the
			// connector into StateError.
			BackoffPolicy func() backoff.BackOff
		}
		// How long to wait for a metadata reply before the connection is
		// aborted and the next bootstrap broker is tried (default 30s).
		Timeout time.Duration
	}

	// Group is the namespace for configuring consumer group membership.
	Group struct {
		Session struct {
			// The timeout used to detect consumer failures when using Kafka's group management facility.
			// The consumer sends periodic heartbeats to indicate its liveness to the broker.
			// If no heartbeats are received by the broker before the expiration of this session timeout,
			// then the broker will remove this consumer from the group and initiate a rebalance (default 10s).
			Timeout time.Duration
		}
		Heartbeat struct {
			// The expected time between heartbeats to the consumer coordinator (default 1s).
			Interval time.Duration
		}
		Rebalance struct {
			// Strategy advertised first in JoinGroup when the caller does not pick one.
			// The complementary strategy is always advertised second (default BalanceStrategyRange).
			Strategy BalanceStrategy
			// The maximum allowed time for each worker to join the group once a rebalance has begun (default 10s).
			Timeout time.Duration
		}
		Rejoin struct {
			// How long to wait before joining again after the coordinator connection
			// was lost or the coordinator could not be found (default 1s).
			Backoff time.Duration
		}
	}

	// A user-provided string sent with every request to the brokers for logging,
	// debugging, and auditing purposes. Defaults to "cflib".
	ClientID string

	// Scheduler runs delayed callbacks (retries and heartbeats). Defaults to a
	// scheduler backed by time.AfterFunc.
	Scheduler Scheduler

	// MetricRegistry is the registry the connector records request and response
	// metrics in (defaults to a local registry).
	MetricRegistry metrics.Registry
}

// NewConfig returns a new configuration instance with sane defaults.
func NewConfig() *Config {
	c := &Config{}

	c.Net.DialTimeout = 30 * time.Second
	c.Net.Breaker.ErrorThreshold = 3
	c.Net.Breaker.SuccessThreshold = 1
	c.Net.Breaker.Timeout = 10 * time.Second

	c.Metadata.Retry.Backoff = 1 * time.Second
	c.Metadata.Timeout = 30 * time.Second

	c.Group.Session.Timeout = 10 * time.Second
	c.Group.Heartbeat.Interval = 1 * time.Second
	c.Group.Rebalance.Strategy = BalanceStrategyRange
	c.Group.Rebalance.Timeout = 10 * time.Second
	c.Group.Rejoin.Backoff = 1 * time.Second

	c.ClientID = defaultClientID
	c.MetricRegistry = metrics.NewRegistry()

	return c
}

// Validate checks a Config instance. It will return a
// ConfigurationError if the specified values don't make sense.
func (c *Config) Validate() error {
	// some configuration values should be warned on but not fail completely, do those first
	if c.Group.Heartbeat.Interval*3 > c.Group.Session.Timeout {
		Logger.Println("Group.Heartbeat.Interval should not exceed a third of Group.Session.Timeout.")
	}
	if c.ClientID == defaultClientID {
		Logger.Println("ClientID is the default of 'cflib', you should consider setting it to something application-specific.")
	}

	// validate Net values
	switch {
	case c.Net.DialTimeout <= 0:
		return ConfigurationError("Net.DialTimeout must be > 0")
	case c.Net.KeepAlive < 0:
		return ConfigurationError("Net.KeepAlive must be >= 0")
	case c.Net.Proxy.Enable && c.Net.Proxy.Dialer == nil:
		return ConfigurationError("Net.Proxy.Dialer must be set when Net.Proxy.Enable is true")
	case c.Net.Breaker.ErrorThreshold <= 0:
		return ConfigurationError("Net.Breaker.ErrorThreshold must be > 0")
	case c.Net.Breaker.SuccessThreshold <= 0:
		return ConfigurationError("Net.Breaker.SuccessThreshold must be > 0")
	case c.Net.Breaker.Timeout <= 0:
		return ConfigurationError("Net.Breaker.Timeout must be > 0")
	}

	// validate the Metadata values
	if c.Metadata.Retry.Backoff < 0 {
		return ConfigurationError("Metadata.Retry.Backoff must be >= 0")
	}
	if c.Metadata.Timeout <= 0 {
		return ConfigurationError("Metadata.Timeout must be > 0")
	}

	// validate the Group values
	switch {
	case c.Group.Session.Timeout <= 2*time.Millisecond:
		return ConfigurationError("Group.Session.Timeout must be >= 2ms")
	case c.Group.Heartbeat.Interval < 1*time.Millisecond:
		return ConfigurationError("Group.Heartbeat.Interval must be >= 1ms")
	case c.Group.Heartbeat.Interval >= c.Group.Session.Timeout:
		return ConfigurationError("Group.Heartbeat.Interval must be < Group.Session.Timeout")
	case c.Group.Rebalance.Strategy == nil:
		return ConfigurationError("Group.Rebalance.Strategy must not be empty")
	case lookupBalanceStrategy(c.Group.Rebalance.Strategy.Name()) == nil:
		return ConfigurationError("Group.Rebalance.Strategy must be range or roundrobin")
	case c.Group.Rebalance.Timeout <= time.Millisecond:
		return ConfigurationError("Group.Rebalance.Timeout must be >= 1ms")
	case c.Group.Rejoin.Backoff < 0:
		return ConfigurationError("Group.Rejoin.Backoff must be >= 0")
	}

	// validate misc shared values
	switch {
	case !validClientID.MatchString(c.ClientID):
		return ConfigurationError("ClientID is invalid")
	case c.MetricRegistry == nil:
		return ConfigurationError("MetricRegistry must not be nil")
	}

	return nil
}

func (c *Config) metadataBackoff() backoff.BackOff {
	if c.Metadata.Retry.BackoffPolicy != nil {
		return c.Metadata.Retry.BackoffPolicy()
	}
	return backoff.NewConstantBackOff(c.Metadata.Retry.Backoff)
}
