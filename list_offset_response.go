package kafkaconnector

type OffsetResponseBlock struct {
	Err       KError
	Offsets   []int64 // version 0
	Timestamp int64   // version 1
	Offset    int64   // version 1
}

func (b *OffsetResponseBlock) decode(pd packetDecoder, version int16) (err error) {
	tmp, err := pd.getInt16()
	if err != nil {
		return err
	}
	b.Err = KError(tmp)

	if version == 0 {
		n, err := pd.getArrayLength()
		if err != nil {
			return err
		}
		b.Offsets = make([]int64, n)
		for i := range b.Offsets {
			if b.Offsets[i], err = pd.getInt64(); err != nil {
				return err
			}
		}
		return nil
	}

	if b.Timestamp, err = pd.getInt64(); err != nil {
		return err
	}

	b.Offset, err = pd.getInt64()
	return err
}

func (b *OffsetResponseBlock) encode(pe packetEncoder, version int16) (err error) {
	pe.putInt16(int16(b.Err))

	if version == 0 {
		if err = pe.putArrayLength(len(b.Offsets)); err != nil {
			return err
		}
		for _, offset := range b.Offsets {
			pe.putInt64(offset)
		}
		return nil
	}

	pe.putInt64(b.Timestamp)
	pe.putInt64(b.Offset)
	return nil
}

// offset returns the single offset the block carries in either version.
func (b *OffsetResponseBlock) offset() int64 {
	if len(b.Offsets) > 0 {
		return b.Offsets[0]
	}
	return b.Offset
}

type OffsetResponse struct {
	Version int16
	Blocks  map[string]map[int32]*OffsetResponseBlock
}

func (r *OffsetResponse) decode(pd packetDecoder, version int16) (err error) {
	r.Version = version

	numTopics, err := pd.getArrayLength()
	if err != nil {
		return err
	}

	r.Blocks = make(map[string]map[int32]*OffsetResponseBlock, numTopics)
	for i := 0; i < numTopics; i++ {
		name, err := pd.getString()
		if err != nil {
			return err
		}

		numBlocks, err := pd.getArrayLength()
		if err != nil {
			return err
		}

		r.Blocks[name] = make(map[int32]*OffsetResponseBlock, numBlocks)

		for j := 0; j < numBlocks; j++ {
			id, err := pd.getInt32()
			if err != nil {
				return err
			}

			block := new(OffsetResponseBlock)
			r.Blocks[name][id] = block
			if err := block.decode(pd, version); err != nil {
				return err
			}
		}
	}

	return nil
}

func (r *OffsetResponse) encode(pe packetEncoder) (err error) {
	if err = pe.putArrayLength(len(r.Blocks)); err != nil {
		return err
	}

	for topic, partitions := range r.Blocks {
		if err = pe.putString(topic); err != nil {
			return err
		}
		if err = pe.putArrayLength(len(partitions)); err != nil {
			return err
		}
		for partition, block := range partitions {
			pe.putInt32(partition)
			if err = block.encode(pe, r.Version); err != nil {
				return err
			}
		}
	}

	return nil
}

func (r *OffsetResponse) key() int16 {
	return apiKeyListOffsets
}

func (r *OffsetResponse) version() int16 {
	return r.Version
}

func (r *OffsetResponse) GetBlock(topic string, partition int32) *OffsetResponseBlock {
	if r.Blocks == nil {
		return nil
	}

	if r.Blocks[topic] == nil {
		return nil
	}

	return r.Blocks[topic][partition]
}

// AddTopicPartition is used in testing to build a broker reply.
func (r *OffsetResponse) AddTopicPartition(topic string, partition int32, err KError, offset int64) {
	if r.Blocks == nil {
		r.Blocks = make(map[string]map[int32]*OffsetResponseBlock)
	}
	byTopic, ok := r.Blocks[topic]
	if !ok {
		byTopic = make(map[int32]*OffsetResponseBlock)
		r.Blocks[topic] = byTopic
	}
	block := &OffsetResponseBlock{Err: err, Offset: offset}
	if r.Version == 0 {
		block.Offsets = []int64{offset}
	}
	byTopic[partition] = block
}
