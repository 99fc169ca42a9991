//go:build !functional

package kafkaconnector

import (
	"math"
	"strings"
	"testing"

	assert "github.com/stretchr/testify/require"
)

type primitives struct {
	i8   int8
	i16  int16
	i32  int32
	i64  int64
	str  string
	null *string
	raw  []byte
	none []byte
	arr  []int32
	strs []string
}

func (p *primitives) encode(pe packetEncoder) error {
	pe.putInt8(p.i8)
	pe.putInt16(p.i16)
	pe.putInt32(p.i32)
	pe.putInt64(p.i64)
	if err := pe.putString(p.str); err != nil {
		return err
	}
	if err := pe.putNullableString(p.null); err != nil {
		return err
	}
	if err := pe.putBytes(p.raw); err != nil {
		return err
	}
	if err := pe.putBytes(p.none); err != nil {
		return err
	}
	if err := pe.putInt32Array(p.arr); err != nil {
		return err
	}
	return pe.putStringArray(p.strs)
}

func (p *primitives) decode(pd packetDecoder) (err error) {
	if p.i8, err = pd.getInt8(); err != nil {
		return err
	}
	if p.i16, err = pd.getInt16(); err != nil {
		return err
	}
	if p.i32, err = pd.getInt32(); err != nil {
		return err
	}
	if p.i64, err = pd.getInt64(); err != nil {
		return err
	}
	if p.str, err = pd.getString(); err != nil {
		return err
	}
	if p.null, err = pd.getNullableString(); err != nil {
		return err
	}
	if p.raw, err = pd.getBytes(); err != nil {
		return err
	}
	if p.none, err = pd.getBytes(); err != nil {
		return err
	}
	if p.arr, err = pd.getInt32Array(); err != nil {
		return err
	}
	p.strs, err = pd.getStringArray()
	return err
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := &primitives{
		i8:   -1,
		i16:  math.MaxInt16,
		i32:  math.MinInt32,
		i64:  1 << 40,
		str:  "topic",
		raw:  []byte{0xde, 0xad},
		arr:  []int32{3, 1, 2},
		strs: []string{"a", "bc"},
	}

	packet, err := encode(in, nil)
	assert.NoError(t, err)
	assert.Len(t, packet, 1+2+4+8+(2+5)+2+(4+2)+4+(4+12)+(4+3+4))

	out := new(primitives)
	testDecodable(t, "primitives", out, packet)
	assert.Equal(t, in, out)
}

func TestEncodeNullSentinels(t *testing.T) {
	testEncodable(t, "nulls", &primitives{}, []byte{
		0x00,
		0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, // empty string
		0xff, 0xff, // null string
		0xff, 0xff, 0xff, 0xff, // null bytes
		0xff, 0xff, 0xff, 0xff, // null bytes
		0x00, 0x00, 0x00, 0x00, // empty array
		0x00, 0x00, 0x00, 0x00, // empty array
	})
}

func TestEncodeRejectsOversizedString(t *testing.T) {
	_, err := encode(&primitives{str: strings.Repeat("x", math.MaxInt16+1)}, nil)
	var perr PacketEncodingError
	assert.ErrorAs(t, err, &perr)
}

func TestDecodeRejectsTrailingBytes(t *testing.T) {
	err := decode([]byte{
		0x00, 0x00, 0x00, 0x01, // node id
		0x00, 0x00, // host
		0x00, 0x00, 0x23, 0x84, // port
		0xff,
	}, new(BrokerMetadata))
	var perr PacketDecodingError
	assert.ErrorAs(t, err, &perr)
}

func TestLengthFieldBackPatch(t *testing.T) {
	block := &MessageBlock{Offset: 9, Msg: &Message{Value: []byte("v")}}
	packet, err := encode(block, nil)
	assert.NoError(t, err)

	// offset, then the size of the message that follows
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x09}, packet[:8])
	assert.Equal(t, []byte{0x00, 0x00, 0x00, byte(len(packet) - 12)}, packet[8:12])
}
