//go:build !functional

package kafkaconnector

import (
	"testing"

	assert "github.com/stretchr/testify/require"
)

var joinGroupRequestV1 = []byte{
	0, 9, 'T', 'e', 's', 't', 'G', 'r', 'o', 'u', 'p', // Group ID
	0, 0, 0, 100, // Session timeout
	0, 0, 0, 200, // Rebalance timeout
	0, 11, 'O', 'n', 'e', 'P', 'r', 'o', 't', 'o', 'c', 'o', 'l', // Member ID
	0, 8, 'c', 'o', 'n', 's', 'u', 'm', 'e', 'r', // Protocol Type
	0, 0, 0, 1, // 1 group protocol
	0, 3, 'o', 'n', 'e', // Protocol name
	0, 0, 0, 3, 0x01, 0x02, 0x03, // protocol metadata
}

func TestJoinGroupRequestV1(t *testing.T) {
	request := &JoinGroupRequest{
		Version:          1,
		GroupID:          "TestGroup",
		SessionTimeout:   100,
		RebalanceTimeout: 200,
		MemberID:         "OneProtocol",
		ProtocolType:     "consumer",
	}
	request.AddGroupProtocol("one", []byte{0x01, 0x02, 0x03})
	testRequest(t, "V1", request, joinGroupRequestV1)
}

func TestJoinGroupRequestV0OmitsRebalanceTimeout(t *testing.T) {
	request := &JoinGroupRequest{
		GroupID:          "TestGroup",
		SessionTimeout:   100,
		RebalanceTimeout: 200,
		ProtocolType:     "consumer",
	}
	packet, err := encode(request, nil)
	assert.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 100, 0, 0}, packet[11:17])
}

func TestJoinGroupRequestProtocolMetadata(t *testing.T) {
	request := new(JoinGroupRequest)
	assert.NoError(t, request.AddGroupProtocolMetadata(RangeBalanceStrategyName, &ConsumerGroupMemberMetadata{
		Topics: []string{"one", "two"},
	}))
	assert.NoError(t, request.AddGroupProtocolMetadata(RoundRobinBalanceStrategyName, &ConsumerGroupMemberMetadata{
		Topics: []string{"one", "two"},
	}))

	assert.Len(t, request.GroupProtocols, 2)
	assert.Equal(t, RangeBalanceStrategyName, request.GroupProtocols[0].Name)

	meta := new(ConsumerGroupMemberMetadata)
	testDecodable(t, "metadata", meta, request.GroupProtocols[1].Metadata)
	assert.Equal(t, []string{"one", "two"}, meta.Topics)
}
