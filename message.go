package kafkaconnector

import (
	"fmt"
	"hash/crc32"
)

// Message is a single key/value pair. Within a message set, slice order is
// wire order and offset order.
type Message struct {
	Key   []byte
	Value []byte
}

// messageMagic is the only message format version this package speaks.
const messageMagic int8 = 0

// messageOverhead is offset plus message size, the part of a set entry that
// precedes the message itself.
const messageOverhead = 12

func (m *Message) encode(pe packetEncoder) error {
	pe.push(newCRC32Field())

	pe.putInt8(messageMagic)
	pe.putInt8(0) // attributes, no compression

	if err := pe.putBytes(m.Key); err != nil {
		return err
	}
	if err := pe.putBytes(m.Value); err != nil {
		return err
	}

	return pe.pop()
}

func (m *Message) decode(pd packetDecoder) (err error) {
	crc, err := pd.getInt32()
	if err != nil {
		return err
	}

	rest, err := pd.getRawBytes(pd.remaining())
	if err != nil {
		return err
	}
	if computed := crc32.ChecksumIEEE(rest); computed != uint32(crc) {
		return PacketDecodingError{fmt.Sprintf("CRC didn't match: expected %x got %x", uint32(crc), computed)}
	}

	body := &realDecoder{raw: rest}

	if _, err = body.getInt8(); err != nil { // magic
		return err
	}
	if _, err = body.getInt8(); err != nil { // attributes
		return err
	}

	if m.Key, err = body.getBytes(); err != nil {
		return err
	}

	m.Value, err = body.getBytes()
	return err
}

// MessageBlock is a message with the offset the broker assigned to it.
type MessageBlock struct {
	Offset int64
	Msg    *Message
}

func (msb *MessageBlock) encode(pe packetEncoder) error {
	pe.putInt64(msb.Offset)
	pe.push(&lengthField{})
	if err := msb.Msg.encode(pe); err != nil {
		return err
	}
	return pe.pop()
}

// MessageSet is the unframed sequence of messages carried by Produce and Fetch.
type MessageSet struct {
	// PartialTrailingMessage is set when the set ended in a message cut off by
	// the broker's fetch size limit. This is normal at the end of a fetch window.
	PartialTrailingMessage bool
	// CorruptMessage is set when decoding stopped at a message that failed its
	// CRC or could not be parsed. Messages holds everything before it.
	CorruptMessage bool
	Messages       []*MessageBlock
}

func (ms *MessageSet) encode(pe packetEncoder) error {
	for i := range ms.Messages {
		if err := ms.Messages[i].encode(pe); err != nil {
			return err
		}
	}
	return nil
}

func (ms *MessageSet) decode(pd packetDecoder) (err error) {
	ms.Messages = nil

	for pd.remaining() >= messageOverhead {
		offset, err := pd.getInt64()
		if err != nil {
			return err
		}

		size, err := pd.getInt32()
		if err != nil {
			return err
		}

		if size < 0 || int(size) > pd.remaining() {
			ms.PartialTrailingMessage = true
			return nil
		}

		sub, err := pd.getSubset(int(size))
		if err != nil {
			return err
		}

		msg := new(Message)
		if err := msg.decode(sub); err != nil {
			Logger.Printf("fetch/message corrupt message at offset %d: %v\n", offset, err)
			ms.CorruptMessage = true
			_, err = pd.getRawBytes(pd.remaining())
			return err
		}

		ms.Messages = append(ms.Messages, &MessageBlock{Offset: offset, Msg: msg})
	}

	if pd.remaining() > 0 {
		ms.PartialTrailingMessage = true
		_, err = pd.getRawBytes(pd.remaining())
	}

	return err
}

// addMessage appends msg with a zero offset, as a producer sends it.
func (ms *MessageSet) addMessage(msg *Message) {
	ms.Messages = append(ms.Messages, &MessageBlock{Msg: msg})
}

// firstOffset is the offset of the first complete message, -1 if there is none.
func (ms *MessageSet) firstOffset() int64 {
	if len(ms.Messages) == 0 {
		return -1
	}
	return ms.Messages[0].Offset
}

func (ms *MessageSet) messages() []*Message {
	msgs := make([]*Message, 0, len(ms.Messages))
	for _, block := range ms.Messages {
		msgs = append(msgs, block.Msg)
	}
	return msgs
}
