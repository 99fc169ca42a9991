package kafkaconnector

type FetchResponseBlock struct {
	Err                 KError
	HighWaterMarkOffset int64
	MsgSet              MessageSet
}

func (b *FetchResponseBlock) decode(pd packetDecoder) (err error) {
	tmp, err := pd.getInt16()
	if err != nil {
		return err
	}
	b.Err = KError(tmp)

	if b.HighWaterMarkOffset, err = pd.getInt64(); err != nil {
		return err
	}

	msgSetSize, err := pd.getInt32()
	if err != nil {
		return err
	}

	msgSetDecoder, err := pd.getSubset(int(msgSetSize))
	// a short set still carries its leading whole messages
	if decodeErr := b.MsgSet.decode(msgSetDecoder); decodeErr != nil {
		return decodeErr
	}
	if b.MsgSet.CorruptMessage && b.Err == ErrNoError {
		b.Err = ErrInvalidMessage
	}
	return err
}

func (b *FetchResponseBlock) encode(pe packetEncoder) (err error) {
	pe.putInt16(int16(b.Err))
	pe.putInt64(b.HighWaterMarkOffset)

	pe.push(&lengthField{})
	if err = b.MsgSet.encode(pe); err != nil {
		return err
	}
	return pe.pop()
}

type FetchResponse struct {
	Blocks map[string]map[int32]*FetchResponseBlock
}

func (r *FetchResponse) decode(pd packetDecoder, version int16) (err error) {
	numTopics, err := pd.getArrayLength()
	if err != nil {
		return err
	}

	r.Blocks = make(map[string]map[int32]*FetchResponseBlock, numTopics)
	for i := 0; i < numTopics; i++ {
		name, err := pd.getString()
		if err != nil {
			return err
		}

		numBlocks, err := pd.getArrayLength()
		if err != nil {
			return err
		}

		r.Blocks[name] = make(map[int32]*FetchResponseBlock, numBlocks)

		for j := 0; j < numBlocks; j++ {
			id, err := pd.getInt32()
			if err != nil {
				return err
			}

			block := new(FetchResponseBlock)
			r.Blocks[name][id] = block
			if err := block.decode(pd); err != nil {
				return err
			}
		}
	}

	return nil
}

func (r *FetchResponse) encode(pe packetEncoder) (err error) {
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

		for id, block := range partitions {
			pe.putInt32(id)
			if err = block.encode(pe); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *FetchResponse) key() int16 {
	return apiKeyFetch
}

func (r *FetchResponse) version() int16 {
	return 0
}

func (r *FetchResponse) GetBlock(topic string, partition int32) *FetchResponseBlock {
	if r.Blocks == nil {
		return nil
	}

	if r.Blocks[topic] == nil {
		return nil
	}

	return r.Blocks[topic][partition]
}

func (r *FetchResponse) getOrCreateBlock(topic string, partition int32) *FetchResponseBlock {
	if r.Blocks == nil {
		r.Blocks = make(map[string]map[int32]*FetchResponseBlock)
	}
	partitions, ok := r.Blocks[topic]
	if !ok {
		partitions = make(map[int32]*FetchResponseBlock)
		r.Blocks[topic] = partitions
	}
	frb, ok := partitions[partition]
	if !ok {
		frb = new(FetchResponseBlock)
		partitions[partition] = frb
	}
	return frb
}

// AddError sets the error code for topic/partition, creating the block if needed.
func (r *FetchResponse) AddError(topic string, partition int32, err KError) {
	r.getOrCreateBlock(topic, partition).Err = err
}

// AddMessage appends a message with the given offset to topic/partition.
func (r *FetchResponse) AddMessage(topic string, partition int32, key, value []byte, offset int64) {
	frb := r.getOrCreateBlock(topic, partition)
	frb.MsgSet.Messages = append(frb.MsgSet.Messages, &MessageBlock{
		Offset: offset,
		Msg:    &Message{Key: key, Value: value},
	})
}

func (r *FetchResponse) SetHighWaterMark(topic string, partition int32, offset int64) {
	r.getOrCreateBlock(topic, partition).HighWaterMarkOffset = offset
}
