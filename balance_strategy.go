package kafkaconnector

import "sort"

const (
	// RangeBalanceStrategyName identifies the range strategy in JoinGroup.
	RangeBalanceStrategyName = "range"
	// RoundRobinBalanceStrategyName identifies the round robin strategy in JoinGroup.
	RoundRobinBalanceStrategyName = "roundrobin"
)

// BalanceStrategyPlan is the results of any BalanceStrategy.Plan attempt.
// It contains an allocation of topic/partitions by memberID in the form of
// a `memberID -> topic -> partitions` map.
type BalanceStrategyPlan map[string]map[string][]int32

// Add assigns a topic with a number partitions to a member.
func (p BalanceStrategyPlan) Add(memberID, topic string, partitions ...int32) {
	if len(partitions) == 0 {
		return
	}
	if _, ok := p[memberID]; !ok {
		p[memberID] = make(map[string][]int32, 1)
	}
	p[memberID][topic] = append(p[memberID][topic], partitions...)
}

// BalanceStrategy is used to balance topics and partitions
// across members of a consumer group
type BalanceStrategy interface {
	// Name uniquely identifies the strategy.
	Name() string

	// Plan accepts a map of `memberID -> metadata` and a map of `topic -> partitions`
	// and returns a distribution plan. Partition lists must be sorted.
	Plan(members map[string]ConsumerGroupMemberMetadata, topics map[string][]int32) (BalanceStrategyPlan, error)
}

// BalanceStrategyRange is the default and assigns partitions as ranges to consumer group members.
// Members interested in a topic are sorted by id; each gets an equal contiguous share and the
// first members get one extra partition each while the division leaves a remainder.
// Example with one topic T with seven partitions (0..6) and two members (M1, M2):
//
//	M1: {T: [0, 1, 2, 3]}
//	M2: {T: [4, 5, 6]}
var BalanceStrategyRange BalanceStrategy = &balanceStrategy{
	name: RangeBalanceStrategyName,
	planFn: func(plan BalanceStrategyPlan, mbt map[string][]string, topics map[string][]int32) {
		for topic, memberIDs := range mbt {
			partitions := topics[topic]
			perMember := len(partitions) / len(memberIDs)
			extra := len(partitions) % len(memberIDs)

			pos := 0
			for _, memberID := range memberIDs {
				n := perMember
				if extra > 0 {
					extra--
					n++
				}
				plan.Add(memberID, topic, partitions[pos:pos+n]...)
				pos += n
			}
		}
	},
}

// BalanceStrategyRoundRobin deals all partitions of all topics, sorted by topic and
// partition, to the members in turn, sorted by id. Members not interested in a
// partition's topic are passed over for that partition.
// Example with topic T with six partitions (0..5) and two members (M1, M2):
//
//	M1: {T: [0, 2, 4]}
//	M2: {T: [1, 3, 5]}
var BalanceStrategyRoundRobin BalanceStrategy = &balanceStrategy{
	name: RoundRobinBalanceStrategyName,
	planFn: func(plan BalanceStrategyPlan, mbt map[string][]string, topics map[string][]int32) {
		interested := make(map[string]map[string]bool)
		var memberIDs []string
		for topic, ids := range mbt {
			for _, id := range ids {
				if interested[id] == nil {
					interested[id] = make(map[string]bool)
					memberIDs = append(memberIDs, id)
				}
				interested[id][topic] = true
			}
		}
		sort.Strings(memberIDs)

		sortedTopics := make([]string, 0, len(mbt))
		for topic := range mbt {
			sortedTopics = append(sortedTopics, topic)
		}
		sort.Strings(sortedTopics)

		next := 0
		for _, topic := range sortedTopics {
			for _, partition := range topics[topic] {
				for !interested[memberIDs[next]][topic] {
					next = (next + 1) % len(memberIDs)
				}
				plan.Add(memberIDs[next], topic, partition)
				next = (next + 1) % len(memberIDs)
			}
		}
	},
}

type balanceStrategy struct {
	name   string
	planFn func(plan BalanceStrategyPlan, membersByTopic map[string][]string, topics map[string][]int32)
}

// Name implements BalanceStrategy.
func (s *balanceStrategy) Name() string { return s.name }

// Plan implements BalanceStrategy.
func (s *balanceStrategy) Plan(members map[string]ConsumerGroupMemberMetadata, topics map[string][]int32) (BalanceStrategyPlan, error) {
	// Build members by topic map, skipping topics without partitions
	mbt := make(map[string][]string)
	for memberID, meta := range members {
		seen := make(map[string]bool, len(meta.Topics))
		for _, topic := range meta.Topics {
			if seen[topic] || len(topics[topic]) == 0 {
				continue
			}
			seen[topic] = true
			mbt[topic] = append(mbt[topic], memberID)
		}
	}

	// Sort members for each topic
	for _, memberIDs := range mbt {
		sort.Strings(memberIDs)
	}

	// Assemble plan
	plan := make(BalanceStrategyPlan, len(members))
	s.planFn(plan, mbt, topics)
	return plan, nil
}

func lookupBalanceStrategy(name string) BalanceStrategy {
	switch name {
	case RangeBalanceStrategyName:
		return BalanceStrategyRange
	case RoundRobinBalanceStrategyName:
		return BalanceStrategyRoundRobin
	}
	return nil
}

// complementStrategy is the strategy advertised second in JoinGroup, so that
// every member can act as leader whichever protocol the group votes for.
func complementStrategy(s BalanceStrategy) BalanceStrategy {
	if s.Name() == RangeBalanceStrategyName {
		return BalanceStrategyRoundRobin
	}
	return BalanceStrategyRange
}
