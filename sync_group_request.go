package kafkaconnector

// GroupAssignment is the encoded assignment for one member.
type GroupAssignment struct {
	MemberID   string
	Assignment []byte
}

// SyncGroupRequest distributes the leader's plan. Followers send it with no
// assignments and wait for theirs in the response.
type SyncGroupRequest struct {
	GroupID          string
	GenerationID     int32
	MemberID         string
	GroupAssignments []GroupAssignment
}

func (r *SyncGroupRequest) encode(pe packetEncoder) error {
	if err := pe.putString(r.GroupID); err != nil {
		return err
	}

	pe.putInt32(r.GenerationID)

	if err := pe.putString(r.MemberID); err != nil {
		return err
	}

	if err := pe.putArrayLength(len(r.GroupAssignments)); err != nil {
		return err
	}
	for _, a := range r.GroupAssignments {
		if err := pe.putString(a.MemberID); err != nil {
			return err
		}
		if err := pe.putBytes(a.Assignment); err != nil {
			return err
		}
	}

	return nil
}

func (r *SyncGroupRequest) decode(pd packetDecoder, version int16) (err error) {
	if r.GroupID, err = pd.getString(); err != nil {
		return err
	}
	if r.GenerationID, err = pd.getInt32(); err != nil {
		return err
	}
	if r.MemberID, err = pd.getString(); err != nil {
		return err
	}

	n, err := pd.getArrayLength()
	if err != nil {
		return err
	}

	r.GroupAssignments = make([]GroupAssignment, 0, n)
	for i := 0; i < n; i++ {
		memberID, err := pd.getString()
		if err != nil {
			return err
		}
		memberAssignment, err := pd.getBytes()
		if err != nil {
			return err
		}
		r.GroupAssignments = append(r.GroupAssignments, GroupAssignment{MemberID: memberID, Assignment: memberAssignment})
	}

	return nil
}

func (r *SyncGroupRequest) key() int16 {
	return apiKeySyncGroup
}

func (r *SyncGroupRequest) version() int16 {
	return 0
}

func (r *SyncGroupRequest) AddGroupAssignment(memberID string, memberAssignment []byte) {
	r.GroupAssignments = append(r.GroupAssignments, GroupAssignment{MemberID: memberID, Assignment: memberAssignment})
}

func (r *SyncGroupRequest) AddGroupAssignmentMember(memberID string, memberAssignment *ConsumerGroupMemberAssignment) error {
	bin, err := encode(memberAssignment, nil)
	if err != nil {
		return err
	}

	r.AddGroupAssignment(memberID, bin)
	return nil
}
