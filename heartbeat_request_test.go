//go:build !functional

package kafkaconnector

import (
	"reflect"
	"testing"
)

var basicHeartbeatRequest = []byte{
	0, 3, 'f', 'o', 'o', // Group ID
	0x00, 0x01, 0x02, 0x03, // Generation ID
	0, 3, 'b', 'a', 'z', // Member ID
}

func TestHeartbeatRequest(t *testing.T) {
	message := &HeartbeatRequest{
		GroupID:      "foo",
		GenerationID: 0x00010203,
		MemberID:     "baz",
	}
	testRequest(t, "basic", message, basicHeartbeatRequest)

	request := new(HeartbeatRequest)
	testVersionDecodable(t, "basic", request, basicHeartbeatRequest, 0)
	if !reflect.DeepEqual(message, request) {
		t.Errorf("decode failed, expected:%+v got %+v", message, request)
	}
}

func TestHeartbeatResponse(t *testing.T) {
	testResponse(t, "no error", &HeartbeatResponse{}, []byte{0x00, 0x00})
	testResponse(t, "illegal generation", &HeartbeatResponse{Err: ErrIllegalGeneration}, []byte{0x00, 22})
}

func TestLeaveGroupRequest(t *testing.T) {
	testRequest(t, "basic", &LeaveGroupRequest{GroupID: "foo", MemberID: "bar"}, []byte{
		0, 3, 'f', 'o', 'o',
		0, 3, 'b', 'a', 'r',
	})
}

func TestLeaveGroupResponse(t *testing.T) {
	testResponse(t, "unknown member", &LeaveGroupResponse{Err: ErrUnknownMemberId}, []byte{0x00, 25})
}

func TestGroupCoordinatorRequest(t *testing.T) {
	testRequest(t, "basic", &GroupCoordinatorRequest{GroupID: "foo"}, []byte{0, 3, 'f', 'o', 'o'})
}

func TestGroupCoordinatorResponse(t *testing.T) {
	testResponse(t, "coordinator", &GroupCoordinatorResponse{
		CoordinatorID:   7,
		CoordinatorHost: "host",
		CoordinatorPort: 9092,
	}, []byte{
		0x00, 0x00, // No error
		0x00, 0x00, 0x00, 0x07, // Coordinator ID
		0, 4, 'h', 'o', 's', 't', // Coordinator host
		0x00, 0x00, 0x23, 0x84, // Coordinator port
	})

	testResponse(t, "not available", &GroupCoordinatorResponse{
		Err:           ErrConsumerCoordinatorNotAvailable,
		CoordinatorID: -1,
	}, nil)
}
