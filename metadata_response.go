package kafkaconnector

// BrokerMetadata is one entry of the broker list in a MetadataResponse.
type BrokerMetadata struct {
	NodeID int32
	Host   string
	Port   int32
}

func (b *BrokerMetadata) decode(pd packetDecoder) (err error) {
	if b.NodeID, err = pd.getInt32(); err != nil {
		return err
	}
	if b.Host, err = pd.getString(); err != nil {
		return err
	}
	b.Port, err = pd.getInt32()
	return err
}

func (b *BrokerMetadata) encode(pe packetEncoder) error {
	pe.putInt32(b.NodeID)
	if err := pe.putString(b.Host); err != nil {
		return err
	}
	pe.putInt32(b.Port)
	return nil
}

// PartitionMetadata contains each partition in the topic.
type PartitionMetadata struct {
	Err      KError
	ID       int32
	Leader   int32
	Replicas []int32
	Isr      []int32
}

func (pm *PartitionMetadata) decode(pd packetDecoder) (err error) {
	tmp, err := pd.getInt16()
	if err != nil {
		return err
	}
	pm.Err = KError(tmp)

	if pm.ID, err = pd.getInt32(); err != nil {
		return err
	}

	if pm.Leader, err = pd.getInt32(); err != nil {
		return err
	}

	if pm.Replicas, err = pd.getInt32Array(); err != nil {
		return err
	}

	pm.Isr, err = pd.getInt32Array()
	return err
}

func (pm *PartitionMetadata) encode(pe packetEncoder) (err error) {
	pe.putInt16(int16(pm.Err))
	pe.putInt32(pm.ID)
	pe.putInt32(pm.Leader)

	if err := pe.putInt32Array(pm.Replicas); err != nil {
		return err
	}

	return pe.putInt32Array(pm.Isr)
}

// TopicMetadata contains each topic in the response.
type TopicMetadata struct {
	Err        KError
	Name       string
	Partitions []*PartitionMetadata
}

func (tm *TopicMetadata) decode(pd packetDecoder) (err error) {
	tmp, err := pd.getInt16()
	if err != nil {
		return err
	}
	tm.Err = KError(tmp)

	if tm.Name, err = pd.getString(); err != nil {
		return err
	}

	n, err := pd.getArrayLength()
	if err != nil {
		return err
	}
	tm.Partitions = make([]*PartitionMetadata, n)
	for i := 0; i < n; i++ {
		block := &PartitionMetadata{}
		if err := block.decode(pd); err != nil {
			return err
		}
		tm.Partitions[i] = block
	}

	return nil
}

func (tm *TopicMetadata) encode(pe packetEncoder) (err error) {
	pe.putInt16(int16(tm.Err))

	if err := pe.putString(tm.Name); err != nil {
		return err
	}

	if err := pe.putArrayLength(len(tm.Partitions)); err != nil {
		return err
	}
	for _, block := range tm.Partitions {
		if err := block.encode(pe); err != nil {
			return err
		}
	}

	return nil
}

// MetadataResponse carries the broker list and the leader of every partition.
type MetadataResponse struct {
	Brokers []*BrokerMetadata
	Topics  []*TopicMetadata
}

func (r *MetadataResponse) decode(pd packetDecoder, version int16) (err error) {
	n, err := pd.getArrayLength()
	if err != nil {
		return err
	}

	r.Brokers = make([]*BrokerMetadata, n)
	for i := 0; i < n; i++ {
		r.Brokers[i] = new(BrokerMetadata)
		if err = r.Brokers[i].decode(pd); err != nil {
			return err
		}
	}

	numTopics, err := pd.getArrayLength()
	if err != nil {
		return err
	}

	r.Topics = make([]*TopicMetadata, numTopics)
	for i := 0; i < numTopics; i++ {
		block := &TopicMetadata{}
		if err := block.decode(pd); err != nil {
			return err
		}
		r.Topics[i] = block
	}

	return nil
}

func (r *MetadataResponse) encode(pe packetEncoder) (err error) {
	if err := pe.putArrayLength(len(r.Brokers)); err != nil {
		return err
	}
	for _, broker := range r.Brokers {
		if err := broker.encode(pe); err != nil {
			return err
		}
	}

	if err := pe.putArrayLength(len(r.Topics)); err != nil {
		return err
	}
	for _, block := range r.Topics {
		if err := block.encode(pe); err != nil {
			return err
		}
	}

	return nil
}

func (r *MetadataResponse) key() int16 {
	return apiKeyMetadata
}

func (r *MetadataResponse) version() int16 {
	return 0
}

// AddBroker is a convenience for building responses in tests and mocks.
func (r *MetadataResponse) AddBroker(nodeID int32, host string, port int32) {
	r.Brokers = append(r.Brokers, &BrokerMetadata{NodeID: nodeID, Host: host, Port: port})
}

// AddTopic adds a topic with no partitions and the given error code.
func (r *MetadataResponse) AddTopic(topic string, err KError) *TopicMetadata {
	var tmatch *TopicMetadata

	for _, tm := range r.Topics {
		if tm.Name == topic {
			tmatch = tm
			goto foundTopic
		}
	}

	tmatch = &TopicMetadata{Name: topic}
	r.Topics = append(r.Topics, tmatch)

foundTopic:

	tmatch.Err = err
	return tmatch
}

// AddTopicPartition adds a partition led by leader to topic, creating the topic if needed.
func (r *MetadataResponse) AddTopicPartition(topic string, partition, leader int32, replicas, isr []int32, err KError) {
	tmatch := r.AddTopic(topic, ErrNoError)
	var pmatch *PartitionMetadata

	for _, pm := range tmatch.Partitions {
		if pm.ID == partition {
			pmatch = pm
			goto foundPartition
		}
	}

	pmatch = &PartitionMetadata{ID: partition}
	tmatch.Partitions = append(tmatch.Partitions, pmatch)

foundPartition:
	pmatch.Leader = leader
	pmatch.Replicas = replicas
	if pmatch.Replicas == nil {
		pmatch.Replicas = []int32{}
	}
	pmatch.Isr = isr
	if pmatch.Isr == nil {
		pmatch.Isr = []int32{}
	}
	pmatch.Err = err
}
