package kafkaconnector

import (
	"sort"
	"strconv"
	"strings"
)

// clusterMetadata is the broker registry and the leader of every known
// partition. It is replaced wholesale on every metadata reply.
type clusterMetadata struct {
	brokers          map[int32]Address
	responsibilities map[string]map[int32]int32
}

func newClusterMetadata() *clusterMetadata {
	return &clusterMetadata{
		brokers:          make(map[int32]Address),
		responsibilities: make(map[string]map[int32]int32),
	}
}

// rebuild replaces the whole table from a metadata reply. Topics or partitions
// carrying an error, and internal topics (names starting with "__"), are left
// out.
func (m *clusterMetadata) rebuild(resp *MetadataResponse) {
	brokers := make(map[int32]Address, len(resp.Brokers))
	for _, broker := range resp.Brokers {
		brokers[broker.NodeID] = Address{Host: broker.Host, Port: uint16(broker.Port)}
	}

	responsibilities := make(map[string]map[int32]int32, len(resp.Topics))
	for _, topic := range resp.Topics {
		if topic.Err != ErrNoError || strings.HasPrefix(topic.Name, "__") {
			continue
		}
		for _, partition := range topic.Partitions {
			if partition.Err != ErrNoError {
				continue
			}
			leaders := responsibilities[topic.Name]
			if leaders == nil {
				leaders = make(map[int32]int32)
				responsibilities[topic.Name] = leaders
			}
			leaders[partition.ID] = partition.Leader
		}
	}

	m.brokers = brokers
	m.responsibilities = responsibilities
}

// leader returns the broker leading topic/partition. A negative id means the
// partition exists but has no leader right now.
func (m *clusterMetadata) leader(topic string, partition int32) (int32, bool) {
	leader, ok := m.responsibilities[topic][partition]
	return leader, ok
}

func (m *clusterMetadata) address(brokerID int32) (Address, bool) {
	addr, ok := m.brokers[brokerID]
	return addr, ok
}

// partitions returns the sorted partition ids of topic.
func (m *clusterMetadata) partitions(topic string) []int32 {
	leaders := m.responsibilities[topic]
	if len(leaders) == 0 {
		return nil
	}
	ids := make([]int32, 0, len(leaders))
	for id := range leaders {
		ids = append(ids, id)
	}
	sort.Sort(int32Slice(ids))
	return ids
}

// topicPartitions returns every topic with its sorted partition ids, in the
// shape the balance strategies plan with.
func (m *clusterMetadata) topicPartitions() map[string][]int32 {
	topics := make(map[string][]int32, len(m.responsibilities))
	for topic := range m.responsibilities {
		topics[topic] = m.partitions(topic)
	}
	return topics
}

func (m *clusterMetadata) empty() bool {
	return len(m.brokers) == 0
}

func (m *clusterMetadata) logSummary() {
	ids := make([]int32, 0, len(m.brokers))
	for id := range m.brokers {
		ids = append(ids, id)
	}
	sort.Sort(int32Slice(ids))
	for _, id := range ids {
		addr := m.brokers[id]
		Logger.Printf("connector/metadata found broker #%d at %s (port: %d)\n", id, addr.Host, addr.Port)
	}

	topics := make([]string, 0, len(m.responsibilities))
	for topic := range m.responsibilities {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	for _, topic := range topics {
		ids := m.partitions(topic)
		strs := make([]string, len(ids))
		for i, id := range ids {
			strs[i] = strconv.Itoa(int(id))
		}
		Logger.Printf("connector/metadata found topic %q (partitions: %s)\n", topic, strings.Join(strs, " "))
	}
}
