package kafkaconnector

type SyncGroupResponse struct {
	Err              KError
	MemberAssignment []byte
}

// GetMemberAssignment decodes the assignment. An empty payload yields an empty assignment.
func (r *SyncGroupResponse) GetMemberAssignment() (*ConsumerGroupMemberAssignment, error) {
	assignment := new(ConsumerGroupMemberAssignment)
	if len(r.MemberAssignment) == 0 {
		assignment.Topics = make(map[string][]int32)
		return assignment, nil
	}
	err := decode(r.MemberAssignment, assignment)
	return assignment, err
}

func (r *SyncGroupResponse) encode(pe packetEncoder) error {
	pe.putInt16(int16(r.Err))
	return pe.putBytes(r.MemberAssignment)
}

func (r *SyncGroupResponse) decode(pd packetDecoder, version int16) (err error) {
	kerr, err := pd.getInt16()
	if err != nil {
		return err
	}

	r.Err = KError(kerr)

	r.MemberAssignment, err = pd.getBytes()
	return err
}

func (r *SyncGroupResponse) key() int16 {
	return apiKeySyncGroup
}

func (r *SyncGroupResponse) version() int16 {
	return 0
}
