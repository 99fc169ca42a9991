package kafkaconnector

// GroupProtocol is one assignment protocol a member is willing to use,
// together with the member metadata encoded for it.
type GroupProtocol struct {
	Name     string
	Metadata []byte
}

func (g *GroupProtocol) decode(pd packetDecoder) (err error) {
	if g.Name, err = pd.getString(); err != nil {
		return err
	}
	g.Metadata, err = pd.getBytes()
	return err
}

func (g *GroupProtocol) encode(pe packetEncoder) error {
	if err := pe.putString(g.Name); err != nil {
		return err
	}
	return pe.putBytes(g.Metadata)
}

// JoinGroupRequest enters a member into a consumer group. Protocols are sent
// in order of preference.
type JoinGroupRequest struct {
	Version          int16
	GroupID          string
	SessionTimeout   int32
	RebalanceTimeout int32
	MemberID         string
	ProtocolType     string
	GroupProtocols   []*GroupProtocol
}

func (j *JoinGroupRequest) encode(pe packetEncoder) error {
	if err := pe.putString(j.GroupID); err != nil {
		return err
	}
	pe.putInt32(j.SessionTimeout)
	if j.Version >= 1 {
		pe.putInt32(j.RebalanceTimeout)
	}
	if err := pe.putString(j.MemberID); err != nil {
		return err
	}
	if err := pe.putString(j.ProtocolType); err != nil {
		return err
	}

	if err := pe.putArrayLength(len(j.GroupProtocols)); err != nil {
		return err
	}
	for _, protocol := range j.GroupProtocols {
		if err := protocol.encode(pe); err != nil {
			return err
		}
	}

	return nil
}

func (j *JoinGroupRequest) decode(pd packetDecoder, version int16) (err error) {
	j.Version = version

	if j.GroupID, err = pd.getString(); err != nil {
		return err
	}

	if j.SessionTimeout, err = pd.getInt32(); err != nil {
		return err
	}

	if version >= 1 {
		if j.RebalanceTimeout, err = pd.getInt32(); err != nil {
			return err
		}
	}

	if j.MemberID, err = pd.getString(); err != nil {
		return err
	}

	if j.ProtocolType, err = pd.getString(); err != nil {
		return err
	}

	n, err := pd.getArrayLength()
	if err != nil {
		return err
	}

	j.GroupProtocols = make([]*GroupProtocol, 0, n)
	for i := 0; i < n; i++ {
		protocol := &GroupProtocol{}
		if err := protocol.decode(pd); err != nil {
			return err
		}
		j.GroupProtocols = append(j.GroupProtocols, protocol)
	}

	return nil
}

func (j *JoinGroupRequest) key() int16 {
	return apiKeyJoinGroup
}

func (j *JoinGroupRequest) version() int16 {
	return j.Version
}

// AddGroupProtocol appends a protocol with already encoded metadata.
func (j *JoinGroupRequest) AddGroupProtocol(name string, metadata []byte) {
	j.GroupProtocols = append(j.GroupProtocols, &GroupProtocol{
		Name:     name,
		Metadata: metadata,
	})
}

// AddGroupProtocolMetadata encodes metadata and appends it under name.
func (j *JoinGroupRequest) AddGroupProtocolMetadata(name string, metadata *ConsumerGroupMemberMetadata) error {
	bin, err := encode(metadata, nil)
	if err != nil {
		return err
	}

	j.AddGroupProtocol(name, bin)
	return nil
}
