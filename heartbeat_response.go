package kafkaconnector

type HeartbeatResponse struct {
	Err KError
}

func (r *HeartbeatResponse) encode(pe packetEncoder) error {
	pe.putInt16(int16(r.Err))
	return nil
}

func (r *HeartbeatResponse) decode(pd packetDecoder, version int16) error {
	kerr, err := pd.getInt16()
	r.Err = KError(kerr)
	return err
}

func (r *HeartbeatResponse) key() int16 {
	return apiKeyHeartbeat
}

func (r *HeartbeatResponse) version() int16 {
	return 0
}
