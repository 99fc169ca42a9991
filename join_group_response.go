package kafkaconnector

// GroupMember is a member id and its protocol metadata as seen by the leader.
type GroupMember struct {
	MemberID string
	Metadata []byte
}

// JoinGroupResponse tells a member its generation and id. Only the leader
// receives a non-empty member list.
type JoinGroupResponse struct {
	Version       int16
	Err           KError
	GenerationID  int32
	GroupProtocol string
	LeaderID      string
	MemberID      string
	Members       []GroupMember
}

// GetMembers decodes the metadata of every member keyed by member id.
func (j *JoinGroupResponse) GetMembers() (map[string]ConsumerGroupMemberMetadata, error) {
	members := make(map[string]ConsumerGroupMemberMetadata, len(j.Members))
	for _, member := range j.Members {
		meta := new(ConsumerGroupMemberMetadata)
		if err := decode(member.Metadata, meta); err != nil {
			return nil, err
		}
		members[member.MemberID] = *meta
	}
	return members, nil
}

// IsLeader reports whether the receiving member was elected leader.
func (j *JoinGroupResponse) IsLeader() bool {
	return j.MemberID != "" && j.LeaderID == j.MemberID
}

func (j *JoinGroupResponse) encode(pe packetEncoder) error {
	pe.putInt16(int16(j.Err))
	pe.putInt32(j.GenerationID)

	if err := pe.putString(j.GroupProtocol); err != nil {
		return err
	}
	if err := pe.putString(j.LeaderID); err != nil {
		return err
	}
	if err := pe.putString(j.MemberID); err != nil {
		return err
	}

	if err := pe.putArrayLength(len(j.Members)); err != nil {
		return err
	}
	for _, member := range j.Members {
		if err := pe.putString(member.MemberID); err != nil {
			return err
		}
		if err := pe.putBytes(member.Metadata); err != nil {
			return err
		}
	}

	return nil
}

func (j *JoinGroupResponse) decode(pd packetDecoder, version int16) (err error) {
	j.Version = version

	kerr, err := pd.getInt16()
	if err != nil {
		return err
	}
	j.Err = KError(kerr)

	if j.GenerationID, err = pd.getInt32(); err != nil {
		return err
	}

	if j.GroupProtocol, err = pd.getString(); err != nil {
		return err
	}

	if j.LeaderID, err = pd.getString(); err != nil {
		return err
	}

	if j.MemberID, err = pd.getString(); err != nil {
		return err
	}

	n, err := pd.getArrayLength()
	if err != nil {
		return err
	}

	j.Members = make([]GroupMember, 0, n)
	for i := 0; i < n; i++ {
		memberID, err := pd.getString()
		if err != nil {
			return err
		}

		memberMetadata, err := pd.getBytes()
		if err != nil {
			return err
		}

		j.Members = append(j.Members, GroupMember{MemberID: memberID, Metadata: memberMetadata})
	}

	return nil
}

func (j *JoinGroupResponse) key() int16 {
	return apiKeyJoinGroup
}

func (j *JoinGroupResponse) version() int16 {
	return j.Version
}

// AddMember appends a member with encoded metadata, for building leader responses.
func (j *JoinGroupResponse) AddMember(memberID string, metadata *ConsumerGroupMemberMetadata) error {
	bin, err := encode(metadata, nil)
	if err != nil {
		return err
	}
	j.Members = append(j.Members, GroupMember{MemberID: memberID, Metadata: bin})
	return nil
}
