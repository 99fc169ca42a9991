package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	kafkaconnector "github.com/fishbach/cflib-sub001"
)

type options struct {
	brokers   string
	topic     string
	partition int32
	offset    string
	maxBytes  int32
	group     string
	strategy  string
	verbose   bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "kafka-connector-console",
		Short: "Print the messages of a partition, or the assignment of a consumer group member",
		Long: `Connects to a Kafka cluster and either prints the messages of one partition
as they arrive, or joins a consumer group and prints every assignment it gets.

Examples:
  kafka-connector-console --brokers localhost:9092 --topic orders --offset oldest
  kafka-connector-console --brokers localhost:9092 --topic orders --group billing`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.brokers, "brokers", os.Getenv("KAFKA_PEERS"), "The comma separated list of brokers in the Kafka cluster")
	flags.StringVar(&opts.topic, "topic", "", "REQUIRED: the topic to consume")
	flags.Int32Var(&opts.partition, "partition", 0, "The partition to consume")
	flags.StringVar(&opts.offset, "offset", "newest", "The offset to start with: oldest, newest or a number")
	flags.Int32Var(&opts.maxBytes, "max-bytes", 1024*1024, "The maximum number of bytes per fetch")
	flags.StringVar(&opts.group, "group", "", "Join this consumer group instead of consuming a single partition")
	flags.StringVar(&opts.strategy, "strategy", kafkaconnector.RangeBalanceStrategyName, "The preferred assignment strategy: range or roundrobin")
	flags.BoolVar(&opts.verbose, "verbose", false, "Log connection management events to stderr")

	return cmd
}

func run(ctx context.Context, opts *options, out io.Writer) error {
	if opts.brokers == "" {
		return errors.New("you have to provide --brokers as a comma-separated list, or set the KAFKA_PEERS environment variable")
	}
	if opts.topic == "" {
		return errors.New("--topic is required")
	}
	cluster, err := parseBrokers(opts.brokers)
	if err != nil {
		return err
	}
	if opts.verbose {
		kafkaconnector.Logger = log.New(os.Stderr, "[kafkaconnector] ", log.LstdFlags)
	}

	conf := kafkaconnector.NewConfig()
	conf.ClientID = "kafka-connector-console"

	h := newConsoleHandler()
	connector, err := kafkaconnector.NewConnector(conf, h)
	if err != nil {
		return err
	}
	defer func() {
		if err := connector.Close(); err != nil {
			log.Println("Failed to close connector:", err)
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	ready := make(chan struct{})

	g.Go(func() error {
		return watchState(ctx, h, ready)
	})
	g.Go(func() error {
		select {
		case <-ctx.Done():
			return nil
		case <-ready:
		}
		if opts.group != "" {
			return printAssignments(ctx, connector, h, opts, out)
		}
		return consume(ctx, connector, h, opts, out)
	})

	connector.Connect(cluster...)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func parseBrokers(list string) ([]kafkaconnector.Address, error) {
	var cluster []kafkaconnector.Address
	for _, broker := range strings.Split(list, ",") {
		host, portStr, err := net.SplitHostPort(strings.TrimSpace(broker))
		if err != nil {
			return nil, fmt.Errorf("invalid broker %q: %w", broker, err)
		}
		port, err := strconv.ParseUint(portStr, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid port in broker %q: %w", broker, err)
		}
		cluster = append(cluster, kafkaconnector.Address{Host: host, Port: uint16(port)})
	}
	return cluster, nil
}

// watchState closes ready once the connector has loaded the cluster metadata
// and fails when the connector gives up on the cluster.
func watchState(ctx context.Context, h *consoleHandler, ready chan struct{}) error {
	isReady := false
	for {
		select {
		case <-ctx.Done():
			return nil
		case state := <-h.states:
			switch state {
			case kafkaconnector.StateReady:
				if !isReady {
					isReady = true
					close(ready)
				}
			case kafkaconnector.StateError:
				return errors.New("giving up on the kafka cluster")
			}
		}
	}
}

func consume(ctx context.Context, connector *kafkaconnector.Connector, h *consoleHandler, opts *options, out io.Writer) error {
	var correlationID int32

	offset, err := startOffset(ctx, connector, h, opts, &correlationID)
	if err != nil {
		return err
	}

	for {
		correlationID++
		connector.Fetch(opts.topic, opts.partition, offset, 500*time.Millisecond, 1, opts.maxBytes, correlationID)

		var res fetchResult
		for res.correlationID != correlationID {
			select {
			case <-ctx.Done():
				return nil
			case res = <-h.fetches:
			}
		}

		switch res.err {
		case kafkaconnector.ErrNoError:
		case kafkaconnector.ErrUnknownTopicOrPartition, kafkaconnector.ErrBrokerNotAvailable,
			kafkaconnector.ErrNotLeaderForPartition, kafkaconnector.ErrLeaderNotAvailable, kafkaconnector.ErrNetworkException:
			if err := sleep(ctx, time.Second); err != nil {
				return nil
			}
			continue
		default:
			return res.err
		}

		for i, msg := range res.messages {
			fmt.Fprintf(out, "%d\t%s\t%s\n", res.firstOffset+int64(i), msg.Key, msg.Value)
		}
		if len(res.messages) > 0 {
			offset = res.firstOffset + int64(len(res.messages))
		}
	}
}

func startOffset(ctx context.Context, connector *kafkaconnector.Connector, h *consoleHandler, opts *options, correlationID *int32) (int64, error) {
	var wantEarliest bool
	switch opts.offset {
	case "oldest":
		wantEarliest = true
	case "newest":
	default:
		return strconv.ParseInt(opts.offset, 10, 64)
	}

	for {
		*correlationID++
		connector.GetOffsets(opts.topic, opts.partition, *correlationID, wantEarliest)

		var res offsetResult
		for res.correlationID != *correlationID {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case res = <-h.offsets:
			}
		}

		if res.err == kafkaconnector.ErrNoError {
			return res.offset, nil
		}
		log.Printf("Failed to get offset of %s/%d: %v, retrying\n", opts.topic, opts.partition, res.err)
		if err := sleep(ctx, time.Second); err != nil {
			return 0, err
		}
	}
}

func printAssignments(ctx context.Context, connector *kafkaconnector.Connector, h *consoleHandler, opts *options, out io.Writer) error {
	var strategy kafkaconnector.BalanceStrategy
	switch opts.strategy {
	case kafkaconnector.RangeBalanceStrategyName:
		strategy = kafkaconnector.BalanceStrategyRange
	case kafkaconnector.RoundRobinBalanceStrategyName:
		strategy = kafkaconnector.BalanceStrategyRoundRobin
	default:
		return fmt.Errorf("unknown strategy %q", opts.strategy)
	}

	connector.JoinGroup(opts.group, strings.Split(opts.topic, ","), strategy)
	defer connector.LeaveGroup()

	for {
		select {
		case <-ctx.Done():
			return nil
		case change := <-h.groups:
			fmt.Fprintf(out, "group %s: %s\n", opts.group, change.state)
			topics := make([]string, 0, len(change.assignment))
			for topic := range change.assignment {
				topics = append(topics, topic)
			}
			sort.Strings(topics)
			for _, topic := range topics {
				fmt.Fprintf(out, "  %s: %v\n", topic, change.assignment[topic])
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
