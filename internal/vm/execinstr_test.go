package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kienanstewart/yactfr/internal/proc"
	"github.com/kienanstewart/yactfr/metadata"
)

// memSrc is a minimal DataSource over an in-memory byte slice, enough
// to drive the VM without depending on the datasource package (which
// sits above internal/vm in the module's layering).
type memSrc struct{ b []byte }

func (m *memSrc) Data(byteOffset int64, lengthHint int) ([]byte, error) {
	if byteOffset >= int64(len(m.b)) {
		return nil, nil
	}
	end := byteOffset + int64(lengthHint)
	if end > int64(len(m.b)) {
		end = int64(len(m.b))
	}
	return m.b[byteOffset:end], nil
}

func u32Role(role metadata.Role) *metadata.DataType {
	return &metadata.DataType{
		Kind: metadata.KindFixedLengthUnsignedInt,
		FixedLength: &metadata.FixedLengthData{
			LenBits: 32, ByteOrder: metadata.BigEndian, Alignment: 8, Role: role,
		},
	}
}

func u8Type() *metadata.DataType {
	return &metadata.DataType{
		Kind: metadata.KindFixedLengthUnsignedInt,
		FixedLength: &metadata.FixedLengthData{
			LenBits: 8, ByteOrder: metadata.BigEndian, Alignment: 8,
		},
	}
}

// buildOneStreamOneEventTrace builds a trace type with exactly one data
// stream type and one event record type, so that both SetDst and SetErt
// are synthesized via the FixedId fallback rather than read from the
// stream — exercising the builder's single-candidate wiring end to end.
func buildOneStreamOneEventTrace() *metadata.TraceType {
	packetHeader := &metadata.StructType{
		Members: []metadata.NamedDataType{
			{Name: "magic", Type: u32Role(metadata.RolePacketMagicNumber)},
		},
	}
	packetContext := &metadata.StructType{
		Members: []metadata.NamedDataType{
			{Name: "total_len", Type: u32Role(metadata.RolePacketTotalLength)},
		},
	}
	payload := &metadata.StructType{
		Members: []metadata.NamedDataType{
			{Name: "value", Type: u8Type()},
		},
	}
	ert := &metadata.EventRecordType{Id: 0, Name: "sample", Payload: payload}
	ds := &metadata.DataStreamType{
		Id:               0,
		PacketContext:    packetContext,
		EventRecordTypes: []*metadata.EventRecordType{ert},
	}
	return &metadata.TraceType{PacketHeader: packetHeader, DataStreams: []*metadata.DataStreamType{ds}}
}

func TestDecodeOnePacketOneEventRecord(t *testing.T) {
	tt := buildOneStreamOneEventTrace()
	pp, err := proc.Build(tt)
	require.NoError(t, err)

	// magic (4B) + total_len (4B) + payload value (1B) = 9 bytes = 72 bits.
	data := []byte{0xC1, 0xFC, 0x1F, 0xC1, 0x00, 0x00, 0x00, 0x48, 0x2A}
	v := New(&memSrc{b: data}, pp, nil, nil)

	var kinds []ElementKind
	for {
		e, err := v.NextElement()
		require.NoError(t, err)
		if e == nil {
			break
		}
		kinds = append(kinds, e.Kind)
	}

	want := []ElementKind{
		ElemPacketBegin,
		ElemPacketContentBegin,
		ElemScopeBegin, // packet header
		ElemUnsignedInt, ElemPacketMagicNumber,
		ElemScopeEnd,
		// SetDst (FixedId fallback) is silent: it only resolves
		// CurDsPktProc, it doesn't emit on its own.
		ElemScopeBegin, // packet context
		ElemUnsignedInt,
		ElemScopeEnd,
		ElemDataStreamInfo, // aggregates dst + ds-id
		ElemPacketInfo,     // aggregates total-len/content-len/etc.
		ElemEventRecordBegin,
		ElemScopeBegin, ElemScopeEnd, // event record header (empty)
		ElemScopeBegin, ElemScopeEnd, // common context (empty)
		// SetErt (FixedId fallback) is silent too.
		ElemEventRecordInfo, // aggregates ert
		ElemScopeBegin, ElemScopeEnd, // specific context (empty)
		ElemScopeBegin, ElemUnsignedInt, ElemScopeEnd, // payload
		ElemEventRecordEnd,
		ElemPacketContentEnd,
		ElemPacketEnd,
	}
	assert.Equal(t, want, kinds)
}

func TestDecodeOnePacketInfoAggregatesFields(t *testing.T) {
	tt := buildOneStreamOneEventTrace()
	pp, err := proc.Build(tt)
	require.NoError(t, err)

	data := []byte{0xC1, 0xFC, 0x1F, 0xC1, 0x00, 0x00, 0x00, 0x48, 0x2A}
	v := New(&memSrc{b: data}, pp, nil, nil)

	var sawDsInfo, sawPktInfo, sawErInfo bool
	for {
		e, err := v.NextElement()
		require.NoError(t, err)
		if e == nil {
			break
		}
		switch e.Kind {
		case ElemDataStreamInfo:
			require.NotNil(t, e.Dst)
			assert.EqualValues(t, 0, e.Dst.Id)
			assert.False(t, e.HasDsId)
			sawDsInfo = true
		case ElemPacketInfo:
			require.True(t, e.PktInfo.HasExpectedTotalLenBits)
			assert.EqualValues(t, 72, e.PktInfo.ExpectedTotalLenBits)
			require.True(t, e.PktInfo.HasExpectedContentLenBits)
			assert.EqualValues(t, 72, e.PktInfo.ExpectedContentLenBits)
			assert.False(t, e.PktInfo.HasOriginIndex)
			assert.False(t, e.PktInfo.HasEndDefClkVal)
			sawPktInfo = true
		case ElemEventRecordInfo:
			require.NotNil(t, e.Ert)
			assert.EqualValues(t, 0, e.Ert.Id)
			sawErInfo = true
		}
	}
	assert.True(t, sawDsInfo)
	assert.True(t, sawPktInfo)
	assert.True(t, sawErInfo)
}

func TestDecodeOnePacketMagicValue(t *testing.T) {
	tt := buildOneStreamOneEventTrace()
	pp, err := proc.Build(tt)
	require.NoError(t, err)

	data := []byte{0xC1, 0xFC, 0x1F, 0xC1, 0x00, 0x00, 0x00, 0x48, 0x2A}
	v := New(&memSrc{b: data}, pp, nil, nil)

	var sawMagic, sawValue bool
	for {
		e, err := v.NextElement()
		require.NoError(t, err)
		if e == nil {
			break
		}
		switch e.Kind {
		case ElemPacketMagicNumber:
			assert.EqualValues(t, 0xC1FC1FC1, e.UintVal)
			sawMagic = true
		case ElemUnsignedInt:
			if e.UintVal == 0x2A {
				sawValue = true
			}
		}
	}
	assert.True(t, sawMagic)
	assert.True(t, sawValue)
}

func TestDecodeTwoPacketsAdvancesByDeclaredTotalLength(t *testing.T) {
	tt := buildOneStreamOneEventTrace()
	pp, err := proc.Build(tt)
	require.NoError(t, err)

	onePkt := []byte{0xC1, 0xFC, 0x1F, 0xC1, 0x00, 0x00, 0x00, 0x48, 0x2A}
	data := append(append([]byte{}, onePkt...), onePkt...)
	v := New(&memSrc{b: data}, pp, nil, nil)

	var offsets []int64
	for {
		e, err := v.NextElement()
		require.NoError(t, err)
		if e == nil {
			break
		}
		if e.Kind == ElemPacketBegin {
			offsets = append(offsets, v.Position().HeadOffsetInElemSeqBits())
		}
	}
	require.Len(t, offsets, 2)
	assert.EqualValues(t, 0, offsets[0])
	assert.EqualValues(t, 72, offsets[1])
}
