package kafkaconnector

import "github.com/rcrowley/go-metrics"

// RequiredAcks is the number of acknowledgements the broker waits for before
// answering a ProduceRequest.
type RequiredAcks int16

const (
	// NoResponse doesn't send any response, the TCP ACK is all you get.
	NoResponse RequiredAcks = 0
	// WaitForLocal waits for only the local commit to succeed before responding.
	WaitForLocal RequiredAcks = 1
	// WaitForAll waits for all in-sync replicas to commit before responding.
	WaitForAll RequiredAcks = -1
)

type ProduceRequest struct {
	RequiredAcks RequiredAcks
	Timeout      int32
	records      map[string]map[int32]*MessageSet
}

func (r *ProduceRequest) encode(pe packetEncoder) error {
	pe.putInt16(int16(r.RequiredAcks))
	pe.putInt32(r.Timeout)

	if err := pe.putArrayLength(len(r.records)); err != nil {
		return err
	}

	var records int
	for topic, partitions := range r.records {
		if err := pe.putString(topic); err != nil {
			return err
		}
		if err := pe.putArrayLength(len(partitions)); err != nil {
			return err
		}
		for id, set := range partitions {
			pe.putInt32(id)
			records += len(set.Messages)
			pe.push(&lengthField{})
			if err := set.encode(pe); err != nil {
				return err
			}
			if err := pe.pop(); err != nil {
				return err
			}
		}
	}

	// the sizing pass has no registry
	if registry := pe.metricRegistry(); registry != nil {
		getOrRegisterHistogram(recordsPerRequestMetric, registry).Update(int64(records))
		metrics.GetOrRegisterMeter(recordSendRateMetric, registry).Mark(int64(records))
	}

	return nil
}

func (r *ProduceRequest) decode(pd packetDecoder, version int16) error {
	requiredAcks, err := pd.getInt16()
	if err != nil {
		return err
	}
	r.RequiredAcks = RequiredAcks(requiredAcks)

	if r.Timeout, err = pd.getInt32(); err != nil {
		return err
	}

	topicCount, err := pd.getArrayLength()
	if err != nil {
		return err
	}

	r.records = make(map[string]map[int32]*MessageSet, topicCount)
	for i := 0; i < topicCount; i++ {
		topic, err := pd.getString()
		if err != nil {
			return err
		}
		partitionCount, err := pd.getArrayLength()
		if err != nil {
			return err
		}
		r.records[topic] = make(map[int32]*MessageSet, partitionCount)

		for j := 0; j < partitionCount; j++ {
			partition, err := pd.getInt32()
			if err != nil {
				return err
			}
			size, err := pd.getInt32()
			if err != nil {
				return err
			}
			setDecoder, err := pd.getSubset(int(size))
			if err != nil {
				return err
			}
			set := &MessageSet{}
			if err := set.decode(setDecoder); err != nil {
				return err
			}
			r.records[topic][partition] = set
		}
	}

	return nil
}

func (r *ProduceRequest) key() int16 {
	return apiKeyProduce
}

func (r *ProduceRequest) version() int16 {
	return 0
}

// AddMessage appends msg to the set for topic/partition.
func (r *ProduceRequest) AddMessage(topic string, partition int32, msg *Message) {
	r.set(topic, partition).addMessage(msg)
}

// Messages returns the messages queued for topic/partition in wire order.
func (r *ProduceRequest) Messages(topic string, partition int32) []*Message {
	if r.records[topic] == nil || r.records[topic][partition] == nil {
		return nil
	}
	return r.records[topic][partition].messages()
}

func (r *ProduceRequest) set(topic string, partition int32) *MessageSet {
	if r.records == nil {
		r.records = make(map[string]map[int32]*MessageSet)
	}
	if r.records[topic] == nil {
		r.records[topic] = make(map[int32]*MessageSet)
	}
	set := r.records[topic][partition]
	if set == nil {
		set = new(MessageSet)
		r.records[topic][partition] = set
	}
	return set
}
