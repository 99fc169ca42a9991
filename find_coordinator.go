package kafkaconnector

// GroupCoordinatorRequest asks any broker which broker coordinates a group.
type GroupCoordinatorRequest struct {
	GroupID string
}

func (r *GroupCoordinatorRequest) encode(pe packetEncoder) error {
	return pe.putString(r.GroupID)
}

func (r *GroupCoordinatorRequest) decode(pd packetDecoder, version int16) (err error) {
	r.GroupID, err = pd.getString()
	return err
}

func (r *GroupCoordinatorRequest) key() int16 {
	return apiKeyGroupCoordinator
}

func (r *GroupCoordinatorRequest) version() int16 {
	return 0
}

type GroupCoordinatorResponse struct {
	Err             KError
	CoordinatorID   int32
	CoordinatorHost string
	CoordinatorPort int32
}

func (r *GroupCoordinatorResponse) decode(pd packetDecoder, version int16) (err error) {
	tmp, err := pd.getInt16()
	if err != nil {
		return err
	}
	r.Err = KError(tmp)

	if r.CoordinatorID, err = pd.getInt32(); err != nil {
		return err
	}
	if r.CoordinatorHost, err = pd.getString(); err != nil {
		return err
	}
	r.CoordinatorPort, err = pd.getInt32()
	return err
}

func (r *GroupCoordinatorResponse) encode(pe packetEncoder) error {
	pe.putInt16(int16(r.Err))
	pe.putInt32(r.CoordinatorID)
	if err := pe.putString(r.CoordinatorHost); err != nil {
		return err
	}
	pe.putInt32(r.CoordinatorPort)
	return nil
}

func (r *GroupCoordinatorResponse) key() int16 {
	return apiKeyGroupCoordinator
}

func (r *GroupCoordinatorResponse) version() int16 {
	return 0
}
