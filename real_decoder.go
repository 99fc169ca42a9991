package kafkaconnector

import (
	"encoding/binary"
)

// realDecoder reads a packet that was handed over in one piece. It implements
// the degrade-to-zero policy: once a read runs past the end of raw, the decoder
// is drained and every value it produces from then on is the zero value.
type realDecoder struct {
	raw []byte
	off int
}

func (rd *realDecoder) remaining() int {
	return len(rd.raw) - rd.off
}

// drain exhausts the decoder after a short read.
func (rd *realDecoder) drain() error {
	rd.off = len(rd.raw)
	return ErrInsufficientData
}

// primitives

func (rd *realDecoder) getInt8() (int8, error) {
	if rd.remaining() < 1 {
		return 0, rd.drain()
	}
	tmp := int8(rd.raw[rd.off])
	rd.off++
	return tmp, nil
}

func (rd *realDecoder) getInt16() (int16, error) {
	if rd.remaining() < 2 {
		return 0, rd.drain()
	}
	tmp := int16(binary.BigEndian.Uint16(rd.raw[rd.off:]))
	rd.off += 2
	return tmp, nil
}

func (rd *realDecoder) getInt32() (int32, error) {
	if rd.remaining() < 4 {
		return 0, rd.drain()
	}
	tmp := int32(binary.BigEndian.Uint32(rd.raw[rd.off:]))
	rd.off += 4
	return tmp, nil
}

func (rd *realDecoder) getInt64() (int64, error) {
	if rd.remaining() < 8 {
		return 0, rd.drain()
	}
	tmp := int64(binary.BigEndian.Uint64(rd.raw[rd.off:]))
	rd.off += 8
	return tmp, nil
}

// getArrayLength treats a null array (-1) as empty. Any other negative count, or
// a count that could not possibly fit into the remaining bytes, drains the decoder.
func (rd *realDecoder) getArrayLength() (int, error) {
	tmp, err := rd.getInt32()
	if err != nil {
		return 0, err
	}
	n := int(tmp)
	switch {
	case n == -1:
		return 0, nil
	case n < -1, n > rd.remaining():
		return 0, rd.drain()
	}
	return n, nil
}

// collections

func (rd *realDecoder) getBytes() ([]byte, error) {
	tmp, err := rd.getInt32()
	if err != nil {
		return nil, err
	}
	if tmp == -1 {
		return nil, nil
	}

	return rd.getRawBytes(int(tmp))
}

func (rd *realDecoder) getString() (string, error) {
	length, err := rd.getInt16()
	if err != nil {
		return "", err
	}

	n := int(length)

	switch {
	case n == -1:
		return "", nil
	case n < -1:
		return "", rd.drain()
	case n > rd.remaining():
		return "", rd.drain()
	}

	tmpStr := string(rd.raw[rd.off : rd.off+n])
	rd.off += n
	return tmpStr, nil
}

func (rd *realDecoder) getNullableString() (*string, error) {
	length, err := rd.peekInt16()
	if err != nil {
		return nil, rd.drain()
	}
	if length == -1 {
		rd.off += 2
		return nil, nil
	}
	tmpStr, err := rd.getString()
	return &tmpStr, err
}

func (rd *realDecoder) getInt32Array() ([]int32, error) {
	n, err := rd.getArrayLength()
	if err != nil || n == 0 {
		return nil, err
	}

	if rd.remaining() < 4*n {
		return nil, rd.drain()
	}

	ret := make([]int32, n)
	for i := range ret {
		ret[i] = int32(binary.BigEndian.Uint32(rd.raw[rd.off:]))
		rd.off += 4
	}
	return ret, nil
}

func (rd *realDecoder) getStringArray() ([]string, error) {
	n, err := rd.getArrayLength()
	if err != nil || n == 0 {
		return nil, err
	}

	ret := make([]string, n)
	for i := range ret {
		str, err := rd.getString()
		if err != nil {
			return nil, err
		}

		ret[i] = str
	}
	return ret, nil
}

// subsets

func (rd *realDecoder) getRawBytes(length int) ([]byte, error) {
	if length < 0 {
		return nil, rd.drain()
	} else if length > rd.remaining() {
		return nil, rd.drain()
	}

	start := rd.off
	rd.off += length
	return rd.raw[start:rd.off], nil
}

// getSubset carves the next length bytes out as a decoder of their own. A
// subset running past the end yields whatever bytes are left, so the caller can
// still decode its whole leading entries.
func (rd *realDecoder) getSubset(length int) (packetDecoder, error) {
	if length < 0 {
		return &realDecoder{}, rd.drain()
	}
	if length > rd.remaining() {
		buf := rd.raw[rd.off:]
		rd.off = len(rd.raw)
		return &realDecoder{raw: buf}, ErrInsufficientData
	}
	buf, _ := rd.getRawBytes(length)
	return &realDecoder{raw: buf}, nil
}

func (rd *realDecoder) peekInt16() (int16, error) {
	if rd.remaining() < 2 {
		return 0, ErrInsufficientData
	}
	return int16(binary.BigEndian.Uint16(rd.raw[rd.off:])), nil
}
