package kafkaconnector

type fetchRequestBlock struct {
	fetchOffset int64
	maxBytes    int32
}

func (b *fetchRequestBlock) encode(pe packetEncoder) error {
	pe.putInt64(b.fetchOffset)
	pe.putInt32(b.maxBytes)
	return nil
}

func (b *fetchRequestBlock) decode(pd packetDecoder) (err error) {
	if b.fetchOffset, err = pd.getInt64(); err != nil {
		return err
	}
	b.maxBytes, err = pd.getInt32()
	return err
}

// FetchRequest always goes out as a consumer, with replica id -1.
type FetchRequest struct {
	MaxWaitTime int32
	MinBytes    int32
	blocks      map[string]map[int32]*fetchRequestBlock
}

const consumerReplicaID int32 = -1

func (r *FetchRequest) encode(pe packetEncoder) (err error) {
	pe.putInt32(consumerReplicaID)
	pe.putInt32(r.MaxWaitTime)
	pe.putInt32(r.MinBytes)

	if err = pe.putArrayLength(len(r.blocks)); err != nil {
		return err
	}
	for topic, blocks := range r.blocks {
		if err = pe.putString(topic); err != nil {
			return err
		}
		if err = pe.putArrayLength(len(blocks)); err != nil {
			return err
		}
		for partition, block := range blocks {
			pe.putInt32(partition)
			if err = block.encode(pe); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *FetchRequest) decode(pd packetDecoder, version int16) (err error) {
	if _, err = pd.getInt32(); err != nil {
		return err
	}
	if r.MaxWaitTime, err = pd.getInt32(); err != nil {
		return err
	}
	if r.MinBytes, err = pd.getInt32(); err != nil {
		return err
	}

	topicCount, err := pd.getArrayLength()
	if err != nil {
		return err
	}
	r.blocks = make(map[string]map[int32]*fetchRequestBlock)
	for i := 0; i < topicCount; i++ {
		topic, err := pd.getString()
		if err != nil {
			return err
		}
		partitionCount, err := pd.getArrayLength()
		if err != nil {
			return err
		}
		r.blocks[topic] = make(map[int32]*fetchRequestBlock)
		for j := 0; j < partitionCount; j++ {
			partition, err := pd.getInt32()
			if err != nil {
				return err
			}
			block := &fetchRequestBlock{}
			if err = block.decode(pd); err != nil {
				return err
			}
			r.blocks[topic][partition] = block
		}
	}
	return nil
}

func (r *FetchRequest) key() int16 {
	return apiKeyFetch
}

func (r *FetchRequest) version() int16 {
	return 0
}

func (r *FetchRequest) AddBlock(topic string, partitionID int32, fetchOffset int64, maxBytes int32) {
	if r.blocks == nil {
		r.blocks = make(map[string]map[int32]*fetchRequestBlock)
	}

	if r.blocks[topic] == nil {
		r.blocks[topic] = make(map[int32]*fetchRequestBlock)
	}

	r.blocks[topic][partitionID] = &fetchRequestBlock{fetchOffset: fetchOffset, maxBytes: maxBytes}
}

// Block returns the offset and size limit requested for topic/partition.
func (r *FetchRequest) Block(topic string, partitionID int32) (fetchOffset int64, maxBytes int32, ok bool) {
	block := r.blocks[topic][partitionID]
	if block == nil {
		return 0, 0, false
	}
	return block.fetchOffset, block.maxBytes, true
}
