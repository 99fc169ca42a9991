//go:build !functional

package kafkaconnector

import (
	"testing"
	"time"

	"github.com/rcrowley/go-metrics"
	assert "github.com/stretchr/testify/require"
)

// discoverCoordinator joins groupID and answers the coordinator lookup with
// alpha. It returns the coordinator connection.
func (f *connectorFixture) discoverCoordinator(groupID string, strategy BalanceStrategy, topics ...string) *MockConn {
	f.t.Helper()
	f.c.JoinGroup(groupID, topics, strategy)
	f.settle()

	discovery := f.transport.LastConn(seedBroker)
	req := discovery.LastRequest(apiKeyGroupCoordinator)
	assert.Equal(f.t, groupID, req.Body.(*GroupCoordinatorRequest).GroupID)
	discovery.Respond(req.CorrelationID, &GroupCoordinatorResponse{
		CoordinatorID:   1,
		CoordinatorHost: alphaBroker.Host,
		CoordinatorPort: int32(alphaBroker.Port),
	})
	f.settle()
	assert.True(f.t, discovery.Closed(), "discovery connection is closed after the reply")

	coordinator := f.transport.LastConn(alphaBroker)
	assert.NotNil(f.t, coordinator)
	return coordinator
}

func encodedAssignment(t *testing.T, topics map[string][]int32) []byte {
	t.Helper()
	buf, err := encode(&ConsumerGroupMemberAssignment{Topics: topics}, nil)
	assert.NoError(t, err)
	return buf
}

// joinAsFollower runs the group to Stable as member "me" of generation 3 with
// orders/0 and orders/1 assigned.
func (f *connectorFixture) joinAsFollower(groupID string) *MockConn {
	f.t.Helper()
	coordinator := f.discoverCoordinator(groupID, nil, "orders")

	join := coordinator.LastRequest(apiKeyJoinGroup)
	coordinator.Respond(join.CorrelationID, &JoinGroupResponse{
		Version:       1,
		GenerationID:  3,
		GroupProtocol: BalanceStrategyRange.Name(),
		LeaderID:      "other",
		MemberID:      "me",
	})
	f.settle()

	sync := coordinator.LastRequest(apiKeySyncGroup)
	coordinator.Respond(sync.CorrelationID, &SyncGroupResponse{
		MemberAssignment: encodedAssignment(f.t, map[string][]int32{"orders": {0, 1}}),
	})
	f.settle()
	assert.Equal(f.t, GroupStable, f.c.group.state)
	return coordinator
}

func TestGroupJoinAsFollower(t *testing.T) {
	f := newConnectorFixture(t)
	f.connectReady()
	coordinator := f.joinAsFollower("workers")

	join := coordinator.LastRequest(apiKeyJoinGroup).Body.(*JoinGroupRequest)
	assert.Equal(t, int16(1), join.Version)
	assert.Equal(t, "workers", join.GroupID)
	assert.Equal(t, int32(10000), join.SessionTimeout)
	assert.Equal(t, int32(10000), join.RebalanceTimeout)
	assert.Equal(t, "", join.MemberID)
	assert.Equal(t, "consumer", join.ProtocolType)
	assert.Len(t, join.GroupProtocols, 2)
	assert.Equal(t, "range", join.GroupProtocols[0].Name)
	assert.Equal(t, "roundrobin", join.GroupProtocols[1].Name)

	meta := new(ConsumerGroupMemberMetadata)
	assert.NoError(t, decode(join.GroupProtocols[0].Metadata, meta))
	assert.Equal(t, []string{"orders"}, meta.Topics)

	sync := coordinator.LastRequest(apiKeySyncGroup).Body.(*SyncGroupRequest)
	assert.Equal(t, int32(3), sync.GenerationID)
	assert.Equal(t, "me", sync.MemberID)
	assert.Empty(t, sync.GroupAssignments)

	assert.Equal(t, []GroupState{
		GroupDiscoveringCoordinator,
		GroupJoining,
		GroupSyncing,
		GroupStable,
	}, f.handler.groupStates())
	last := f.handler.groups[len(f.handler.groups)-1]
	assert.Equal(t, map[string][]int32{"orders": {0, 1}}, last.assignment)
}

func TestGroupHeartbeats(t *testing.T) {
	f := newConnectorFixture(t)
	f.connectReady()
	coordinator := f.joinAsFollower("workers")
	assert.Empty(t, coordinator.Requests(apiKeyHeartbeat))

	f.advance(time.Second)
	beats := coordinator.Requests(apiKeyHeartbeat)
	assert.Len(t, beats, 1)
	beat := beats[0].Body.(*HeartbeatRequest)
	assert.Equal(t, "workers", beat.GroupID)
	assert.Equal(t, int32(3), beat.GenerationID)
	assert.Equal(t, "me", beat.MemberID)

	coordinator.Respond(beats[0].CorrelationID, &HeartbeatResponse{})
	f.settle()
	f.advance(time.Second)
	assert.Len(t, coordinator.Requests(apiKeyHeartbeat), 2)
	assert.Equal(t, GroupStable, f.c.group.state)
}

func TestGroupLeaderAssigns(t *testing.T) {
	f := newConnectorFixture(t)
	f.connectReady()
	coordinator := f.discoverCoordinator("workers", BalanceStrategyRoundRobin, "orders", "orders")

	join := coordinator.LastRequest(apiKeyJoinGroup)
	protocols := join.Body.(*JoinGroupRequest).GroupProtocols
	assert.Equal(t, "roundrobin", protocols[0].Name)
	assert.Equal(t, "range", protocols[1].Name)

	resp := &JoinGroupResponse{
		Version:       1,
		GenerationID:  1,
		GroupProtocol: "roundrobin",
		LeaderID:      "me",
		MemberID:      "me",
	}
	assert.NoError(t, resp.AddMember("other", &ConsumerGroupMemberMetadata{Topics: []string{"orders"}}))
	assert.NoError(t, resp.AddMember("me", &ConsumerGroupMemberMetadata{Topics: []string{"orders"}}))
	coordinator.Respond(join.CorrelationID, resp)
	f.settle()

	sync := coordinator.LastRequest(apiKeySyncGroup).Body.(*SyncGroupRequest)
	assert.Len(t, sync.GroupAssignments, 2)

	expected := map[string]map[string][]int32{
		"me":    {"orders": {0}},
		"other": {"orders": {1}},
	}
	for i, memberID := range []string{"me", "other"} {
		ga := sync.GroupAssignments[i]
		assert.Equal(t, memberID, ga.MemberID)
		assignment := new(ConsumerGroupMemberAssignment)
		assert.NoError(t, decode(ga.Assignment, assignment))
		assert.Equal(t, expected[memberID], assignment.Topics)
	}
}

func TestGroupLeaderUnknownProtocol(t *testing.T) {
	f := newConnectorFixture(t)
	f.connectReady()
	coordinator := f.discoverCoordinator("workers", nil, "orders")

	resp := &JoinGroupResponse{
		Version:       1,
		GenerationID:  4,
		GroupProtocol: "sticky",
		LeaderID:      "me",
		MemberID:      "me",
	}
	assert.NoError(t, resp.AddMember("me", &ConsumerGroupMemberMetadata{Topics: []string{"orders"}}))
	coordinator.Respond(coordinator.LastRequest(apiKeyJoinGroup).CorrelationID, resp)
	f.settle()

	assert.Empty(t, coordinator.Requests(apiKeySyncGroup))
	assert.True(t, coordinator.Closed())
	assert.Equal(t, int32(0), f.c.group.generationID)
	assert.Equal(t, GroupDiscoveringCoordinator, f.c.group.state)
}

func TestGroupHeartbeatErrorRejoins(t *testing.T) {
	f := newConnectorFixture(t)
	f.connectReady()
	coordinator := f.joinAsFollower("workers")

	f.advance(time.Second)
	beat := coordinator.LastRequest(apiKeyHeartbeat)
	coordinator.Respond(beat.CorrelationID, &HeartbeatResponse{Err: ErrRebalanceInProgress})
	f.settle()

	joins := coordinator.Requests(apiKeyJoinGroup)
	assert.Len(t, joins, 2, "rejoins right away on the same connection")
	assert.Equal(t, "me", joins[1].Body.(*JoinGroupRequest).MemberID)
	assert.Equal(t, GroupJoining, f.c.group.state)
	assert.Equal(t, int64(1), metrics.GetOrRegisterMeter(groupRejoinMetric, f.conf.MetricRegistry).Count())

	// no heartbeats while joining
	f.advance(time.Second)
	assert.Len(t, coordinator.Requests(apiKeyHeartbeat), 1)
}

func TestGroupJoinErrorResetsMember(t *testing.T) {
	f := newConnectorFixture(t)
	f.connectReady()
	coordinator := f.joinAsFollower("workers")

	f.advance(time.Second)
	coordinator.Respond(coordinator.LastRequest(apiKeyHeartbeat).CorrelationID, &HeartbeatResponse{Err: ErrIllegalGeneration})
	f.settle()

	join := coordinator.LastRequest(apiKeyJoinGroup)
	coordinator.Respond(join.CorrelationID, &JoinGroupResponse{Version: 1, Err: ErrUnknownMemberId})
	f.settle()

	assert.True(t, coordinator.Closed())
	assert.Equal(t, int32(0), f.c.group.generationID)
	assert.Equal(t, "", f.c.group.memberID)
	assert.Equal(t, GroupDiscoveringCoordinator, f.c.group.state)
	assert.Len(t, f.transport.Requests(apiKeyGroupCoordinator), 1)

	f.advance(time.Second)
	assert.Len(t, f.transport.Requests(apiKeyGroupCoordinator), 2)
}

func TestGroupSyncError(t *testing.T) {
	f := newConnectorFixture(t)
	f.connectReady()
	coordinator := f.discoverCoordinator("workers", nil, "orders")

	coordinator.Respond(coordinator.LastRequest(apiKeyJoinGroup).CorrelationID, &JoinGroupResponse{
		Version:      1,
		GenerationID: 2,
		LeaderID:     "other",
		MemberID:     "me",
	})
	f.settle()
	coordinator.Respond(coordinator.LastRequest(apiKeySyncGroup).CorrelationID, &SyncGroupResponse{Err: ErrRebalanceInProgress})
	f.settle()

	assert.True(t, coordinator.Closed())
	assert.NotContains(t, f.handler.groupStates(), GroupStable)
	assert.Equal(t, GroupDiscoveringCoordinator, f.c.group.state)
}

func TestGroupJoinInProgressIgnored(t *testing.T) {
	f := newConnectorFixture(t)
	f.connectReady()
	coordinator := f.discoverCoordinator("workers", nil, "orders")

	f.c.JoinGroup("workers", []string{"orders", "payments"}, nil)
	f.settle()

	assert.Len(t, coordinator.Requests(apiKeyJoinGroup), 1)
	assert.Equal(t, []string{"orders"}, f.c.group.topics)
}

func TestGroupCoordinatorNotAvailable(t *testing.T) {
	f := newConnectorFixture(t)
	f.connectReady()
	f.c.JoinGroup("workers", []string{"orders"}, nil)
	f.settle()

	discovery := f.transport.LastConn(seedBroker)
	req := discovery.LastRequest(apiKeyGroupCoordinator)
	discovery.Respond(req.CorrelationID, &GroupCoordinatorResponse{Err: ErrConsumerCoordinatorNotAvailable})
	f.settle()

	assert.Equal(t, GroupDiscoveringCoordinator, f.c.group.state)
	assert.Equal(t, 0, f.transport.Dials(alphaBroker))

	f.advance(time.Second)
	assert.Len(t, f.transport.Requests(apiKeyGroupCoordinator), 2)
}

func TestGroupCoordinatorInvalidPort(t *testing.T) {
	f := newConnectorFixture(t)
	f.connectReady()
	f.c.JoinGroup("workers", []string{"orders"}, nil)
	f.settle()

	for i, port := range []int32{70000, 0} {
		discovery := f.transport.LastConn(seedBroker)
		req := discovery.LastRequest(apiKeyGroupCoordinator)
		discovery.Respond(req.CorrelationID, &GroupCoordinatorResponse{
			CoordinatorID:   1,
			CoordinatorHost: alphaBroker.Host,
			CoordinatorPort: port,
		})
		f.settle()

		assert.Equal(t, GroupDiscoveringCoordinator, f.c.group.state)
		assert.Equal(t, 0, f.transport.Dials(alphaBroker))
		assert.Equal(t, 0, f.transport.Dials(Address{Host: alphaBroker.Host, Port: uint16(port)}))

		f.advance(time.Second)
		assert.Len(t, f.transport.Requests(apiKeyGroupCoordinator), i+2)
	}
}

func TestGroupClusterUnreachable(t *testing.T) {
	f := newConnectorFixture(t)
	f.connectReady()
	f.transport.Fail(seedBroker, true)

	f.c.JoinGroup("workers", []string{"orders"}, nil)
	f.settle()
	assert.Equal(t, []GroupState{GroupDiscoveringCoordinator}, f.handler.groupStates())
	assert.Empty(t, f.transport.Requests(apiKeyGroupCoordinator))

	f.transport.Fail(seedBroker, false)
	f.advance(time.Second)
	assert.Len(t, f.transport.Requests(apiKeyGroupCoordinator), 1)
}

func TestGroupCoordinatorConnectionLost(t *testing.T) {
	f := newConnectorFixture(t)
	f.connectReady()
	coordinator := f.joinAsFollower("workers")

	coordinator.Drop()
	f.settle()

	assert.Equal(t, GroupDiscoveringCoordinator, f.c.group.state)
	last := f.handler.groups[len(f.handler.groups)-1]
	assert.Nil(t, last.assignment)

	// heartbeats stop with the connection
	f.advance(time.Second)
	assert.Empty(t, coordinator.Requests(apiKeyHeartbeat))
	assert.Len(t, f.transport.Requests(apiKeyGroupCoordinator), 2)
}

func TestGroupLeave(t *testing.T) {
	f := newConnectorFixture(t)
	f.connectReady()
	coordinator := f.joinAsFollower("workers")

	f.c.LeaveGroup()
	f.settle()

	leave := coordinator.LastRequest(apiKeyLeaveGroup).Body.(*LeaveGroupRequest)
	assert.Equal(t, "workers", leave.GroupID)
	assert.Equal(t, "me", leave.MemberID)
	assert.True(t, coordinator.Closed())
	assert.Equal(t, GroupIdle, f.c.group.state)

	f.advance(10 * time.Second)
	assert.Len(t, f.transport.Requests(apiKeyGroupCoordinator), 1)
	assert.Len(t, f.transport.Requests(apiKeyJoinGroup), 1)
	assert.Empty(t, f.transport.Requests(apiKeyHeartbeat))
}

func TestGroupLeaveWithoutGroup(t *testing.T) {
	f := newConnectorFixture(t)
	f.connectReady()

	f.c.LeaveGroup()
	f.settle()
	assert.Empty(t, f.handler.groups)
}

func TestGroupSwitch(t *testing.T) {
	f := newConnectorFixture(t)
	f.connectReady()
	coordinator := f.joinAsFollower("workers")

	f.c.JoinGroup("auditors", []string{"orders"}, nil)
	f.settle()

	assert.Equal(t, "workers", coordinator.LastRequest(apiKeyLeaveGroup).Body.(*LeaveGroupRequest).GroupID)
	assert.True(t, coordinator.Closed())

	reqs := f.transport.Requests(apiKeyGroupCoordinator)
	assert.Len(t, reqs, 2)
	assert.Equal(t, "auditors", reqs[1].Body.(*GroupCoordinatorRequest).GroupID)

	states := f.handler.groupStates()
	assert.Equal(t, []GroupState{GroupIdle, GroupDiscoveringCoordinator}, states[len(states)-2:])
}

func TestGroupCloseLeaves(t *testing.T) {
	f := newConnectorFixture(t)
	f.connectReady()
	coordinator := f.joinAsFollower("workers")

	assert.NoError(t, f.c.Close())
	assert.Len(t, coordinator.Requests(apiKeyLeaveGroup), 1)
	assert.True(t, coordinator.Closed())
}

func TestUniqueSorted(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, uniqueSorted([]string{"c", "a", "b", "a"}))
	assert.Empty(t, uniqueSorted(nil))
}
