package kafkaconnector

type HeartbeatRequest struct {
	GroupID      string
	GenerationID int32
	MemberID     string
}

func (r *HeartbeatRequest) encode(pe packetEncoder) error {
	if err := pe.putString(r.GroupID); err != nil {
		return err
	}

	pe.putInt32(r.GenerationID)

	return pe.putString(r.MemberID)
}

func (r *HeartbeatRequest) decode(pd packetDecoder, version int16) (err error) {
	if r.GroupID, err = pd.getString(); err != nil {
		return err
	}
	if r.GenerationID, err = pd.getInt32(); err != nil {
		return err
	}
	r.MemberID, err = pd.getString()
	return err
}

func (r *HeartbeatRequest) key() int16 {
	return apiKeyHeartbeat
}

func (r *HeartbeatRequest) version() int16 {
	return 0
}
