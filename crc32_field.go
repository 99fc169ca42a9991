package kafkaconnector

import (
	"encoding/binary"
	"hash/crc32"
)

// crc32Field implements the PushEncoder interface for calculating CRC32s. The
// checksum covers every byte written after the field itself, and is patched in
// place once the message has been written.
type crc32Field struct {
	startOffset int
}

func newCRC32Field() *crc32Field {
	return &crc32Field{}
}

func (c *crc32Field) saveOffset(in int) {
	c.startOffset = in
}

func (c *crc32Field) reserveLength() int {
	return 4
}

func (c *crc32Field) run(curOffset int, buf []byte) error {
	crc := crc32.ChecksumIEEE(buf[c.startOffset+4 : curOffset])
	binary.BigEndian.PutUint32(buf[c.startOffset:], crc)
	return nil
}
