//go:build !functional

package kafkaconnector

import (
	"testing"

	assert "github.com/stretchr/testify/require"
)

var (
	joinGroupResponseNoError = []byte{
		0x00, 0x00, // No error
		0x00, 0x01, 0x02, 0x03, // Generation ID
		0, 8, 'p', 'r', 'o', 't', 'o', 'c', 'o', 'l', // Protocol name chosen
		0, 3, 'f', 'o', 'o', // Leader ID
		0, 3, 'b', 'a', 'r', // Member ID
		0, 0, 0, 0, // No member info
	}

	joinGroupResponseWithError = []byte{
		0, 23, // Error: inconsistent group protocol
		0x00, 0x00, 0x00, 0x00, // Generation ID
		0, 0, // Protocol name chosen
		0, 0, // Leader ID
		0, 0, // Member ID
		0, 0, 0, 0, // No member info
	}

	joinGroupResponseLeader = []byte{
		0x00, 0x00, // No error
		0x00, 0x01, 0x02, 0x03, // Generation ID
		0, 8, 'p', 'r', 'o', 't', 'o', 'c', 'o', 'l', // Protocol name chosen
		0, 3, 'f', 'o', 'o', // Leader ID
		0, 3, 'f', 'o', 'o', // Member ID == Leader ID
		0, 0, 0, 1, // 1 member
		0, 3, 'f', 'o', 'o', // Member ID
		0, 0, 0, 3, 0x01, 0x02, 0x03, // Member metadata
	}
)

func TestJoinGroupResponse(t *testing.T) {
	var response *JoinGroupResponse

	response = new(JoinGroupResponse)
	testVersionDecodable(t, "no error", response, joinGroupResponseNoError, 0)
	assert.Equal(t, ErrNoError, response.Err)
	assert.Equal(t, int32(66051), response.GenerationID)
	assert.Equal(t, "protocol", response.GroupProtocol)
	assert.Equal(t, "foo", response.LeaderID)
	assert.Equal(t, "bar", response.MemberID)
	assert.False(t, response.IsLeader())
	assert.Empty(t, response.Members)

	response = new(JoinGroupResponse)
	testVersionDecodable(t, "with error", response, joinGroupResponseWithError, 0)
	assert.Equal(t, ErrInconsistentGroupProtocol, response.Err)
	assert.Equal(t, int32(0), response.GenerationID)
	assert.False(t, response.IsLeader())

	response = new(JoinGroupResponse)
	testVersionDecodable(t, "leader", response, joinGroupResponseLeader, 0)
	assert.True(t, response.IsLeader())
	assert.Equal(t, []GroupMember{{MemberID: "foo", Metadata: []byte{0x01, 0x02, 0x03}}}, response.Members)
}

func TestJoinGroupResponseMembers(t *testing.T) {
	response := &JoinGroupResponse{LeaderID: "a", MemberID: "a"}
	assert.NoError(t, response.AddMember("a", &ConsumerGroupMemberMetadata{Topics: []string{"one"}}))
	assert.NoError(t, response.AddMember("b", &ConsumerGroupMemberMetadata{Topics: []string{"one", "two"}, UserData: []byte{0x01}}))

	testResponse(t, "leader with members", response, nil)

	members, err := response.GetMembers()
	assert.NoError(t, err)
	assert.Len(t, members, 2)
	assert.Equal(t, []string{"one", "two"}, members["b"].Topics)
	assert.Equal(t, []byte{0x01}, members["b"].UserData)
	assert.Nil(t, members["a"].UserData)
}
