package kafkaconnector

const (
	// OffsetNewest asks for the offset of the next message that will be produced.
	OffsetNewest int64 = -1
	// OffsetOldest asks for the oldest offset still available on the broker.
	OffsetOldest int64 = -2
)

type offsetRequestBlock struct {
	timestamp  int64
	maxOffsets int32 // only in version 0
}

func (b *offsetRequestBlock) encode(pe packetEncoder, version int16) error {
	pe.putInt64(b.timestamp)
	if version == 0 {
		pe.putInt32(b.maxOffsets)
	}
	return nil
}

func (b *offsetRequestBlock) decode(pd packetDecoder, version int16) (err error) {
	if b.timestamp, err = pd.getInt64(); err != nil {
		return err
	}
	if version == 0 {
		b.maxOffsets, err = pd.getInt32()
	}
	return err
}

// OffsetRequest is a ListOffsets request. The connector sends version 1.
type OffsetRequest struct {
	Version int16
	blocks  map[string]map[int32]*offsetRequestBlock
}

func (r *OffsetRequest) encode(pe packetEncoder) error {
	pe.putInt32(consumerReplicaID)

	if err := pe.putArrayLength(len(r.blocks)); err != nil {
		return err
	}
	for topic, partitions := range r.blocks {
		if err := pe.putString(topic); err != nil {
			return err
		}
		if err := pe.putArrayLength(len(partitions)); err != nil {
			return err
		}
		for partition, block := range partitions {
			pe.putInt32(partition)
			if err := block.encode(pe, r.Version); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *OffsetRequest) decode(pd packetDecoder, version int16) error {
	r.Version = version

	if _, err := pd.getInt32(); err != nil {
		return err
	}

	blockCount, err := pd.getArrayLength()
	if err != nil {
		return err
	}
	r.blocks = make(map[string]map[int32]*offsetRequestBlock)
	for i := 0; i < blockCount; i++ {
		topic, err := pd.getString()
		if err != nil {
			return err
		}
		partitionCount, err := pd.getArrayLength()
		if err != nil {
			return err
		}
		r.blocks[topic] = make(map[int32]*offsetRequestBlock)
		for j := 0; j < partitionCount; j++ {
			partition, err := pd.getInt32()
			if err != nil {
				return err
			}
			block := &offsetRequestBlock{}
			if err := block.decode(pd, version); err != nil {
				return err
			}
			r.blocks[topic][partition] = block
		}
	}
	return nil
}

func (r *OffsetRequest) key() int16 {
	return apiKeyListOffsets
}

func (r *OffsetRequest) version() int16 {
	return r.Version
}

// AddBlock asks for the offset at time for topic/partition. time is either a
// timestamp in milliseconds, OffsetNewest or OffsetOldest.
func (r *OffsetRequest) AddBlock(topic string, partitionID int32, time int64, maxOffsets int32) {
	if r.blocks == nil {
		r.blocks = make(map[string]map[int32]*offsetRequestBlock)
	}

	if r.blocks[topic] == nil {
		r.blocks[topic] = make(map[int32]*offsetRequestBlock)
	}

	r.blocks[topic][partitionID] = &offsetRequestBlock{timestamp: time, maxOffsets: maxOffsets}
}

// Timestamp returns the requested time for topic/partition.
func (r *OffsetRequest) Timestamp(topic string, partitionID int32) (int64, bool) {
	block := r.blocks[topic][partitionID]
	if block == nil {
		return 0, false
	}
	return block.timestamp, true
}
