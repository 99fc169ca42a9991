package kafkaconnector

import "fmt"

// responseLengthSize is the size of the length field that prefixes every frame.
const responseLengthSize = 4

// responseHeaderSize is the size of the fixed response header (length and correlation id).
const responseHeaderSize = responseLengthSize + 4

type responseHeader struct {
	length        int32
	correlationID int32
}

func (r *responseHeader) decode(pd packetDecoder) (err error) {
	r.length, err = pd.getInt32()
	if err != nil {
		return err
	}
	if r.length < 4 || r.length > MaxResponseSize {
		return PacketDecodingError{fmt.Sprintf("message of length %d too large or too small", r.length)}
	}

	r.correlationID, err = pd.getInt32()
	return err
}
