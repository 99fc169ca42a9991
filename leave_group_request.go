package kafkaconnector

type LeaveGroupRequest struct {
	GroupID  string
	MemberID string
}

func (r *LeaveGroupRequest) encode(pe packetEncoder) error {
	if err := pe.putString(r.GroupID); err != nil {
		return err
	}
	return pe.putString(r.MemberID)
}

func (r *LeaveGroupRequest) decode(pd packetDecoder, version int16) (err error) {
	if r.GroupID, err = pd.getString(); err != nil {
		return err
	}
	r.MemberID, err = pd.getString()
	return err
}

func (r *LeaveGroupRequest) key() int16 {
	return apiKeyLeaveGroup
}

func (r *LeaveGroupRequest) version() int16 {
	return 0
}
