package kafkaconnector

type LeaveGroupResponse struct {
	Err KError
}

func (r *LeaveGroupResponse) encode(pe packetEncoder) error {
	pe.putInt16(int16(r.Err))
	return nil
}

func (r *LeaveGroupResponse) decode(pd packetDecoder, version int16) error {
	kerr, err := pd.getInt16()
	r.Err = KError(kerr)
	return err
}

func (r *LeaveGroupResponse) key() int16 {
	return apiKeyLeaveGroup
}

func (r *LeaveGroupResponse) version() int16 {
	return 0
}
