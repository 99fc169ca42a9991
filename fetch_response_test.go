//go:build !functional

package kafkaconnector

import (
	"encoding/binary"
	"testing"

	assert "github.com/stretchr/testify/require"
)

var emptyFetchResponse = []byte{
	0x00, 0x00, 0x00, 0x00,
}

func fetchResponseWithSet(set []byte) []byte {
	packet := []byte{
		0x00, 0x00, 0x00, 0x01,
		0x00, 0x05, 't', 'o', 'p', 'i', 'c',
		0x00, 0x00, 0x00, 0x01,
		0x00, 0x00, 0x00, 0x05, // partition
		0x00, 0x00, // no error
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x10, // high water mark
		0x00, 0x00, 0x00, 0x00, // message set size
	}
	binary.BigEndian.PutUint32(packet[len(packet)-4:], uint32(len(set)))
	return append(packet, set...)
}

func TestEmptyFetchResponse(t *testing.T) {
	response := FetchResponse{}
	testVersionDecodable(t, "empty", &response, emptyFetchResponse, 0)

	assert.Empty(t, response.Blocks)
}

func TestFetchResponseWithMessages(t *testing.T) {
	response := FetchResponse{}
	testVersionDecodable(t, "two messages", &response, fetchResponseWithSet(encodedMessageSet(t, "a", "bb")), 0)

	block := response.GetBlock("topic", 5)
	assert.NotNil(t, block)
	assert.Equal(t, ErrNoError, block.Err)
	assert.Equal(t, int64(0x10), block.HighWaterMarkOffset)
	assert.False(t, block.MsgSet.PartialTrailingMessage)
	assert.Len(t, block.MsgSet.Messages, 2)
	assert.Equal(t, int64(101), block.MsgSet.Messages[1].Offset)
	assert.Equal(t, []byte("bb"), block.MsgSet.Messages[1].Msg.Value)

	assert.Nil(t, response.GetBlock("topic", 6))
	assert.Nil(t, response.GetBlock("other", 5))
}

func TestFetchResponsePartialTrailingMessage(t *testing.T) {
	full := encodedMessageSet(t, "first", "second")

	response := FetchResponse{}
	testVersionDecodable(t, "partial", &response, fetchResponseWithSet(full[:len(full)-4]), 0)

	block := response.GetBlock("topic", 5)
	assert.True(t, block.MsgSet.PartialTrailingMessage)
	assert.Len(t, block.MsgSet.Messages, 1)
	assert.Equal(t, int64(100), block.MsgSet.firstOffset())
}

func TestFetchResponseTruncatedSet(t *testing.T) {
	full := encodedMessageSet(t, "first", "second")
	packet := fetchResponseWithSet(full)

	// the frame ends before the declared set size
	response := FetchResponse{}
	err := versionedDecode(packet[:len(packet)-4], &response, 0)
	assert.ErrorIs(t, err, ErrTruncatedReply)

	block := response.GetBlock("topic", 5)
	assert.NotNil(t, block)
	assert.Len(t, block.MsgSet.Messages, 1)
	assert.True(t, block.MsgSet.PartialTrailingMessage)
}

func TestFetchResponseCorruptMessage(t *testing.T) {
	set := encodedMessageSet(t, "first", "second")
	set[messageOverhead] ^= 0xff // CRC of the first message

	response := FetchResponse{}
	testVersionDecodable(t, "corrupt message", &response, fetchResponseWithSet(set), 0)

	block := response.GetBlock("topic", 5)
	assert.NotNil(t, block)
	assert.Equal(t, ErrInvalidMessage, block.Err)
	assert.True(t, block.MsgSet.CorruptMessage)
	assert.Empty(t, block.MsgSet.Messages)
	assert.Equal(t, int64(0x10), block.HighWaterMarkOffset)
}

func TestFetchResponseCorruptMessageKeepsBrokerError(t *testing.T) {
	set := encodedMessageSet(t, "first")
	set[messageOverhead] ^= 0xff

	packet := fetchResponseWithSet(set)
	packet[20] = byte(ErrOffsetOutOfRange) // low byte of the partition error

	response := FetchResponse{}
	testVersionDecodable(t, "corrupt message with error", &response, packet, 0)
	assert.Equal(t, ErrOffsetOutOfRange, response.GetBlock("topic", 5).Err)
}

func TestFetchResponseEncoding(t *testing.T) {
	response := new(FetchResponse)
	response.AddMessage("topic", 5, nil, []byte("a"), 100)
	response.AddMessage("topic", 5, []byte("k"), []byte("bb"), 101)
	response.SetHighWaterMark("topic", 5, 0x10)
	response.AddError("other", 0, ErrOffsetOutOfRange)

	testResponse(t, "messages and error", response, nil)
}

func TestFetchRequest(t *testing.T) {
	request := &FetchRequest{MaxWaitTime: 250, MinBytes: 1}
	testRequestEncode(t, "no blocks", request, []byte{
		0xff, 0xff, 0xff, 0xff, // replica id
		0x00, 0x00, 0x00, 0xfa, // max wait
		0x00, 0x00, 0x00, 0x01, // min bytes
		0x00, 0x00, 0x00, 0x00,
	})

	request.AddBlock("topic", 0x12, 0x34, 0x56)
	testRequest(t, "one block", request, []byte{
		0xff, 0xff, 0xff, 0xff,
		0x00, 0x00, 0x00, 0xfa,
		0x00, 0x00, 0x00, 0x01,
		0x00, 0x00, 0x00, 0x01,
		0x00, 0x05, 't', 'o', 'p', 'i', 'c',
		0x00, 0x00, 0x00, 0x01,
		0x00, 0x00, 0x00, 0x12, // partition
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x34, // fetch offset
		0x00, 0x00, 0x00, 0x56, // max bytes
	})

	offset, maxBytes, ok := request.Block("topic", 0x12)
	assert.True(t, ok)
	assert.Equal(t, int64(0x34), offset)
	assert.Equal(t, int32(0x56), maxBytes)
}
