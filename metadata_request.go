package kafkaconnector

// MetadataRequest asks for brokers and partition leaders. An empty topic list
// asks for every topic in the cluster.
type MetadataRequest struct {
	Topics []string
}

func (r *MetadataRequest) encode(pe packetEncoder) error {
	return pe.putStringArray(r.Topics)
}

func (r *MetadataRequest) decode(pd packetDecoder, version int16) (err error) {
	r.Topics, err = pd.getStringArray()
	return err
}

func (r *MetadataRequest) key() int16 {
	return apiKeyMetadata
}

func (r *MetadataRequest) version() int16 {
	return 0
}
