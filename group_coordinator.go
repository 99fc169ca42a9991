package kafkaconnector

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rcrowley/go-metrics"
)

// GroupState is the membership state of the connector in its consumer group.
type GroupState int

const (
	GroupIdle GroupState = iota
	GroupDiscoveringCoordinator
	GroupJoining
	GroupSyncing
	GroupStable
)

func (s GroupState) String() string {
	switch s {
	case GroupIdle:
		return "idle"
	case GroupDiscoveringCoordinator:
		return "discovering-coordinator"
	case GroupJoining:
		return "joining"
	case GroupSyncing:
		return "syncing"
	case GroupStable:
		return "stable"
	}
	return fmt.Sprintf("GroupState(%d)", int(s))
}

const consumerProtocolType = "consumer"

// groupCoordinator runs the consumer group membership protocol on behalf of the
// connector: coordinator discovery, join, sync, heartbeat, leave and rejoin.
// It lives on the connector goroutine.
type groupCoordinator struct {
	c *Connector

	groupID      string
	memberID     string
	generationID int32
	topics       []string
	strategy     BalanceStrategy
	assignment   map[string][]int32
	state        GroupState

	discovery *brokerConn
	conn      *brokerConn

	// leaving is the coordinator connection being closed by a leave. Its
	// closing does not start a rejoin.
	leaving *brokerConn

	heartbeat    Timer
	heartbeatSeq int
	rejoinTimer  Timer
	rejoinSeq    int
}

func newGroupCoordinator(c *Connector) *groupCoordinator {
	return &groupCoordinator{
		c:          c,
		assignment: make(map[string][]int32),
	}
}

func (g *groupCoordinator) setState(state GroupState) {
	if g.state == state {
		return
	}
	g.state = state
	DebugLogger.Printf("group/%s state change to [%s]\n", g.groupID, state)

	var assignment map[string][]int32
	if state == GroupStable {
		assignment = make(map[string][]int32, len(g.assignment))
		for topic, partitions := range g.assignment {
			assignment[topic] = append([]int32(nil), partitions...)
		}
	}
	g.c.handler.GroupStateChanged(state, assignment)
}

func (g *groupCoordinator) join(groupID string, topics []string, strategy BalanceStrategy) {
	if groupID == g.groupID && (g.state == GroupJoining || g.state == GroupSyncing) {
		Logger.Printf("group/%s join already in progress\n", groupID)
		return
	}

	if g.groupID != "" && groupID != g.groupID {
		g.leave()
	}

	g.groupID = groupID
	g.topics = uniqueSorted(topics)
	g.strategy = strategy
	g.assignment = make(map[string][]int32)

	Logger.Printf("group/%s joining with topics %v (preferring %s)\n", groupID, g.topics, strategy.Name())
	g.start()
}

// start runs the join sequence, discovering the coordinator first when there
// is no coordinator connection.
func (g *groupCoordinator) start() {
	g.stopHeartbeat()
	g.cancelRejoin()

	if g.conn == nil {
		g.discover()
		return
	}
	g.sendJoin()
}

func (g *groupCoordinator) rejoin() {
	if g.groupID == "" {
		return
	}
	metrics.GetOrRegisterMeter(groupRejoinMetric, g.c.conf.MetricRegistry).Mark(1)

	g.assignment = make(map[string][]int32)
	g.start()
}

func (g *groupCoordinator) scheduleRejoin() {
	g.cancelRejoin()

	seq := g.rejoinSeq
	g.rejoinTimer = g.c.conf.Scheduler.After(g.c.conf.Group.Rejoin.Backoff, func() {
		g.c.dispatch(func() {
			if g.c.closed || seq != g.rejoinSeq {
				return
			}
			g.rejoinTimer = nil
			g.rejoin()
		})
	})
}

func (g *groupCoordinator) cancelRejoin() {
	g.rejoinSeq++
	if g.rejoinTimer != nil {
		g.rejoinTimer.Stop()
		g.rejoinTimer = nil
	}
}

func (g *groupCoordinator) discover() {
	g.setState(GroupDiscoveringCoordinator)
	if g.discovery != nil {
		return
	}

	b := g.c.connectToCluster(roleCoordinatorDiscovery)
	if b == nil {
		Logger.Printf("group/%s could not reach the cluster to find the coordinator\n", g.groupID)
		g.scheduleRejoin()
		return
	}

	g.discovery = b
	if err := b.send(&GroupCoordinatorRequest{GroupID: g.groupID}, 0, true); err != nil {
		Logger.Printf("group/%s coordinator request failed: %v\n", g.groupID, err)
		_ = b.close()
	}
}

func (g *groupCoordinator) handleCoordinator(b *brokerConn, resp *GroupCoordinatorResponse) {
	_ = b.close()
	if b != g.discovery {
		return
	}
	g.discovery = nil

	if g.groupID == "" {
		return
	}

	if resp.Err != ErrNoError {
		Logger.Printf("group/%s got error %v in group coordinator request\n", g.groupID, resp.Err)
		g.scheduleRejoin()
		return
	}

	if resp.CoordinatorPort < 1 || resp.CoordinatorPort > math.MaxUint16 {
		Logger.Printf("group/%s got group coordinator #%d with invalid port %d\n", g.groupID, resp.CoordinatorID, resp.CoordinatorPort)
		g.scheduleRejoin()
		return
	}

	addr := Address{Host: resp.CoordinatorHost, Port: uint16(resp.CoordinatorPort)}
	Logger.Printf("group/%s got group coordinator #%d at %s\n", g.groupID, resp.CoordinatorID, addr)

	conn, err := g.c.router.dial(resp.CoordinatorID, addr, roleCoordinator)
	if err != nil {
		Logger.Printf("group/%s could not connect to group coordinator: %v\n", g.groupID, err)
		g.scheduleRejoin()
		return
	}

	g.conn = conn
	g.sendJoin()
}

func (g *groupCoordinator) sendJoin() {
	g.setState(GroupJoining)

	req := &JoinGroupRequest{
		Version:          1,
		GroupID:          g.groupID,
		SessionTimeout:   int32(g.c.conf.Group.Session.Timeout / time.Millisecond),
		RebalanceTimeout: int32(g.c.conf.Group.Rebalance.Timeout / time.Millisecond),
		MemberID:         g.memberID,
		ProtocolType:     consumerProtocolType,
	}
	meta := &ConsumerGroupMemberMetadata{Topics: g.topics}
	for _, strategy := range []BalanceStrategy{g.strategy, complementStrategy(g.strategy)} {
		if err := req.AddGroupProtocolMetadata(strategy.Name(), meta); err != nil {
			Logger.Printf("group/%s cannot encode member metadata: %v\n", g.groupID, err)
			_ = g.conn.close()
			return
		}
	}

	if err := g.conn.send(req, 0, true); err != nil {
		Logger.Printf("group/%s join request failed: %v\n", g.groupID, err)
		_ = g.conn.close()
	}
}

func (g *groupCoordinator) handleReply(b *brokerConn, body versionedDecoder) {
	if b != g.conn {
		return
	}

	switch resp := body.(type) {
	case *JoinGroupResponse:
		g.handleJoin(resp)
	case *SyncGroupResponse:
		g.handleSync(resp)
	case *HeartbeatResponse:
		g.handleHeartbeat(resp)
	case *LeaveGroupResponse:
		if resp.Err != ErrNoError {
			Logger.Printf("group/%s leave reported %v\n", g.groupID, resp.Err)
		}
	}
}

func (g *groupCoordinator) handleJoin(resp *JoinGroupResponse) {
	if resp.Err != ErrNoError {
		Logger.Printf("group/%s cannot join group: %v\n", g.groupID, resp.Err)
		g.generationID = 0
		g.memberID = ""
		g.assignment = make(map[string][]int32)
		_ = g.conn.close()
		return
	}

	g.generationID = resp.GenerationID
	g.memberID = resp.MemberID

	sync := &SyncGroupRequest{
		GroupID:      g.groupID,
		GenerationID: g.generationID,
		MemberID:     g.memberID,
	}

	if resp.IsLeader() || len(resp.Members) > 0 {
		if err := g.plan(resp, sync); err != nil {
			Logger.Printf("group/%s %v\n", g.groupID, err)
			g.generationID = 0
			_ = g.conn.close()
			return
		}
	}

	g.setState(GroupSyncing)
	if err := g.conn.send(sync, 0, true); err != nil {
		Logger.Printf("group/%s sync request failed: %v\n", g.groupID, err)
		_ = g.conn.close()
	}
}

// plan computes the assignment of every member as the group leader and adds it
// to sync.
func (g *groupCoordinator) plan(resp *JoinGroupResponse, sync *SyncGroupRequest) error {
	strategy := lookupBalanceStrategy(resp.GroupProtocol)
	if strategy == nil {
		return Wrap(ErrUnknownGroupProtocol, fmt.Errorf("protocol %q", resp.GroupProtocol))
	}

	members, err := resp.GetMembers()
	if err != nil {
		return err
	}

	plan, err := strategy.Plan(members, g.c.metadata.topicPartitions())
	if err != nil {
		return err
	}

	memberIDs := make([]string, 0, len(members))
	for memberID := range members {
		memberIDs = append(memberIDs, memberID)
	}
	sort.Strings(memberIDs)

	for _, memberID := range memberIDs {
		assignment := &ConsumerGroupMemberAssignment{Topics: plan[memberID]}
		for topic, partitions := range assignment.Topics {
			DebugLogger.Printf("group/%s assigning %s/%v to %s\n", g.groupID, topic, partitions, memberID)
		}
		if err := sync.AddGroupAssignmentMember(memberID, assignment); err != nil {
			return err
		}
	}
	return nil
}

func (g *groupCoordinator) handleSync(resp *SyncGroupResponse) {
	if resp.Err != ErrNoError {
		Logger.Printf("group/%s cannot sync group: %v\n", g.groupID, resp.Err)
		_ = g.conn.close()
		return
	}

	assignment, err := resp.GetMemberAssignment()
	if err != nil {
		Logger.Printf("group/%s assignment: %v\n", g.groupID, err)
	}
	g.assignment = assignment.Topics
	if g.assignment == nil {
		g.assignment = make(map[string][]int32)
	}

	g.setState(GroupStable)
	g.startHeartbeat()
}

func (g *groupCoordinator) startHeartbeat() {
	g.stopHeartbeat()
	g.scheduleHeartbeat()
}

func (g *groupCoordinator) scheduleHeartbeat() {
	seq := g.heartbeatSeq
	g.heartbeat = g.c.conf.Scheduler.After(g.c.conf.Group.Heartbeat.Interval, func() {
		g.c.dispatch(func() {
			if g.c.closed || seq != g.heartbeatSeq {
				return
			}
			g.sendHeartbeat()
		})
	})
}

func (g *groupCoordinator) stopHeartbeat() {
	g.heartbeatSeq++
	if g.heartbeat != nil {
		g.heartbeat.Stop()
		g.heartbeat = nil
	}
}

func (g *groupCoordinator) sendHeartbeat() {
	g.heartbeat = nil
	if g.conn == nil || g.state != GroupStable {
		return
	}

	req := &HeartbeatRequest{
		GroupID:      g.groupID,
		GenerationID: g.generationID,
		MemberID:     g.memberID,
	}
	if err := g.conn.send(req, 0, true); err != nil {
		Logger.Printf("group/%s heartbeat failed: %v\n", g.groupID, err)
		_ = g.conn.close()
		return
	}
	g.scheduleHeartbeat()
}

func (g *groupCoordinator) handleHeartbeat(resp *HeartbeatResponse) {
	if resp.Err == ErrNoError {
		return
	}
	Logger.Printf("group/%s got heartbeat error: %v\n", g.groupID, resp.Err)
	if g.state == GroupStable {
		g.rejoin()
	}
}

// leave sends LeaveGroup when a member id is known and closes the coordinator
// connection without triggering a rejoin.
func (g *groupCoordinator) leave() {
	if g.groupID == "" {
		return
	}

	g.stopHeartbeat()
	g.cancelRejoin()

	if g.discovery != nil {
		_ = g.discovery.close()
		g.discovery = nil
	}

	if g.conn != nil {
		if g.memberID != "" {
			req := &LeaveGroupRequest{GroupID: g.groupID, MemberID: g.memberID}
			if err := g.conn.send(req, 0, false); err != nil {
				Logger.Printf("group/%s leave request failed: %v\n", g.groupID, err)
			}
		}
		g.leaving = g.conn
		g.conn = nil
		_ = g.leaving.close()
	}

	Logger.Printf("group/%s left\n", g.groupID)
	g.groupID = ""
	g.memberID = ""
	g.generationID = 0
	g.assignment = make(map[string][]int32)
	g.setState(GroupIdle)
}

func (g *groupCoordinator) handleClosed(b *brokerConn) {
	if b == g.discovery {
		g.discovery = nil
		if g.groupID != "" && g.conn == nil {
			Logger.Printf("group/%s could not retrieve kafka group coordinator\n", g.groupID)
			g.scheduleRejoin()
		}
		return
	}
	if b == g.leaving {
		g.leaving = nil
		return
	}
	if b != g.conn {
		return
	}

	g.stopHeartbeat()
	g.conn = nil

	if g.groupID != "" {
		Logger.Printf("group/%s lost coordinator connection, rejoining in %s\n", g.groupID, g.c.conf.Group.Rejoin.Backoff)
		g.assignment = make(map[string][]int32)
		g.setState(GroupDiscoveringCoordinator)
		g.scheduleRejoin()
	}
}

func uniqueSorted(topics []string) []string {
	seen := make(map[string]bool, len(topics))
	out := make([]string, 0, len(topics))
	for _, topic := range topics {
		if !seen[topic] {
			seen[topic] = true
			out = append(out, topic)
		}
	}
	sort.Strings(out)
	return out
}
