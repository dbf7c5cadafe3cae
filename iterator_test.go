package yactfr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kienanstewart/yactfr/datasource"
	"github.com/kienanstewart/yactfr/metadata"
)

func u32(role metadata.Role) *metadata.DataType {
	return &metadata.DataType{
		Kind: metadata.KindFixedLengthUnsignedInt,
		FixedLength: &metadata.FixedLengthData{
			LenBits: 32, ByteOrder: metadata.BigEndian, Alignment: 8, Role: role,
		},
	}
}

func u8() *metadata.DataType {
	return &metadata.DataType{
		Kind: metadata.KindFixedLengthUnsignedInt,
		FixedLength: &metadata.FixedLengthData{LenBits: 8, ByteOrder: metadata.BigEndian, Alignment: 8},
	}
}

func testTraceType() *metadata.TraceType {
	return &metadata.TraceType{
		PacketHeader: &metadata.StructType{
			Members: []metadata.NamedDataType{{Name: "magic", Type: u32(metadata.RolePacketMagicNumber)}},
		},
		DataStreams: []*metadata.DataStreamType{{
			Id: 0,
			PacketContext: &metadata.StructType{
				Members: []metadata.NamedDataType{{Name: "total_len", Type: u32(metadata.RolePacketTotalLength)}},
			},
			EventRecordTypes: []*metadata.EventRecordType{{
				Id:      0,
				Name:    "sample",
				Payload: &metadata.StructType{Members: []metadata.NamedDataType{{Name: "value", Type: u8()}}},
			}},
		}},
	}
}

func onePacketBytes() []byte {
	return []byte{0xC1, 0xFC, 0x1F, 0xC1, 0x00, 0x00, 0x00, 0x48, 0x2A}
}

func TestTraceBeginYieldsPacketBeginFirst(t *testing.T) {
	tr, err := NewTrace(testTraceType(), datasource.NewMemFactory(onePacketBytes()))
	require.NoError(t, err)

	it, err := tr.Begin()
	require.NoError(t, err)
	defer it.Close()

	require.NotNil(t, it.Element())
	assert.Equal(t, ElemPacketBegin, it.Element().Kind)
}

func TestIteratorReachesEndOfSequence(t *testing.T) {
	tr, err := NewTrace(testTraceType(), datasource.NewMemFactory(onePacketBytes()))
	require.NoError(t, err)
	it, err := tr.Begin()
	require.NoError(t, err)
	defer it.Close()

	var n int
	for it.Element() != nil {
		n++
		require.NoError(t, it.Next())
	}
	assert.Greater(t, n, 0)
}

func TestSeekPacketRepositionsToSecondPacket(t *testing.T) {
	data := append(append([]byte{}, onePacketBytes()...), onePacketBytes()...)
	tr, err := NewTrace(testTraceType(), datasource.NewMemFactory(data))
	require.NoError(t, err)
	it, err := tr.Begin()
	require.NoError(t, err)
	defer it.Close()

	require.NoError(t, it.SeekPacket(9))
	require.NotNil(t, it.Element())
	assert.Equal(t, ElemPacketBegin, it.Element().Kind)
}

func TestCompareOrdersByOffsetThenMark(t *testing.T) {
	data := append(append([]byte{}, onePacketBytes()...), onePacketBytes()...)
	tr, err := NewTrace(testTraceType(), datasource.NewMemFactory(data))
	require.NoError(t, err)

	a, err := tr.Begin()
	require.NoError(t, err)
	defer a.Close()
	b, err := tr.Begin()
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.SeekPacket(9))
	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, 1, b.Compare(a))
}

func TestSavePositionRestorePositionRoundTrip(t *testing.T) {
	tr, err := NewTrace(testTraceType(), datasource.NewMemFactory(onePacketBytes()))
	require.NoError(t, err)
	it, err := tr.Begin()
	require.NoError(t, err)
	defer it.Close()

	require.NoError(t, it.Next())
	require.NoError(t, it.Next())
	saved := it.SavePosition()

	require.NoError(t, it.Next())
	nextKind := it.Element().Kind

	require.NoError(t, it.Next())
	require.NoError(t, it.Next())
	assert.NotEqual(t, nextKind, it.Element().Kind)

	require.NoError(t, it.RestorePosition(saved))
	require.NoError(t, it.Next())
	assert.Equal(t, nextKind, it.Element().Kind)
}
