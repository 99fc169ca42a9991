package kafkaconnector

import "fmt"

const (
	apiKeyProduce          = 0
	apiKeyFetch            = 1
	apiKeyListOffsets      = 2
	apiKeyMetadata         = 3
	apiKeyGroupCoordinator = 10
	apiKeyJoinGroup        = 11
	apiKeyHeartbeat        = 12
	apiKeyLeaveGroup       = 13
	apiKeySyncGroup        = 14
)

type protocolBody interface {
	encoder
	versionedDecoder
	key() int16
	version() int16
}

type request struct {
	correlationID int32
	clientID      string
	body          protocolBody
}

func (r *request) encode(pe packetEncoder) error {
	pe.push(&lengthField{})
	pe.putInt16(r.body.key())
	pe.putInt16(r.body.version())
	pe.putInt32(r.correlationID)

	if err := pe.putString(r.clientID); err != nil {
		return err
	}

	if err := r.body.encode(pe); err != nil {
		return err
	}

	return pe.pop()
}

// decode reads a request without its size prefix, the way a broker sees it.
func (r *request) decode(pd packetDecoder) (err error) {
	key, err := pd.getInt16()
	if err != nil {
		return err
	}

	version, err := pd.getInt16()
	if err != nil {
		return err
	}

	r.correlationID, err = pd.getInt32()
	if err != nil {
		return err
	}

	r.clientID, err = pd.getString()
	if err != nil {
		return err
	}

	r.body = allocateBody(key, version)
	if r.body == nil {
		return PacketDecodingError{fmt.Sprintf("unknown request key (%d)", key)}
	}

	return r.body.decode(pd, version)
}

func allocateBody(key, version int16) protocolBody {
	switch key {
	case apiKeyProduce:
		return &ProduceRequest{}
	case apiKeyFetch:
		return &FetchRequest{}
	case apiKeyListOffsets:
		return &OffsetRequest{Version: version}
	case apiKeyMetadata:
		return &MetadataRequest{}
	case apiKeyGroupCoordinator:
		return &GroupCoordinatorRequest{}
	case apiKeyJoinGroup:
		return &JoinGroupRequest{Version: version}
	case apiKeyHeartbeat:
		return &HeartbeatRequest{}
	case apiKeyLeaveGroup:
		return &LeaveGroupRequest{}
	case apiKeySyncGroup:
		return &SyncGroupRequest{}
	}
	return nil
}

// allocateResponseBody returns the response type matching a request, which the
// broker connection needs to interpret a reply.
func allocateResponseBody(key, version int16) versionedDecoder {
	switch key {
	case apiKeyProduce:
		return &ProduceResponse{}
	case apiKeyFetch:
		return &FetchResponse{}
	case apiKeyListOffsets:
		return &OffsetResponse{Version: version}
	case apiKeyMetadata:
		return &MetadataResponse{}
	case apiKeyGroupCoordinator:
		return &GroupCoordinatorResponse{}
	case apiKeyJoinGroup:
		return &JoinGroupResponse{Version: version}
	case apiKeyHeartbeat:
		return &HeartbeatResponse{}
	case apiKeyLeaveGroup:
		return &LeaveGroupResponse{}
	case apiKeySyncGroup:
		return &SyncGroupResponse{}
	}
	return nil
}
