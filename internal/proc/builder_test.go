package proc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kienanstewart/yactfr/metadata"
)

func u8(role metadata.Role) *metadata.DataType {
	return &metadata.DataType{
		Kind: metadata.KindFixedLengthUnsignedInt,
		FixedLength: &metadata.FixedLengthData{
			LenBits: 8, ByteOrder: metadata.LittleEndian, Alignment: 8, Role: role,
		},
	}
}

func dynArrayTraceType() *metadata.TraceType {
	payload := &metadata.StructType{Members: []metadata.NamedDataType{
		{Name: "len", Type: u8(metadata.RoleNone)},
		{Name: "data", Type: &metadata.DataType{
			Kind: metadata.KindDynamicLengthArray,
			Array: &metadata.ArrayData{
				ElementType: u8(metadata.RoleNone),
				LengthLoc:   &metadata.DataLocation{Scope: metadata.ScopeEventRecordPayload, Path: []string{"len"}},
			},
		}},
	}}
	ert := &metadata.EventRecordType{Id: 0, Payload: payload}
	ds := &metadata.DataStreamType{Id: 0, EventRecordTypes: []*metadata.EventRecordType{ert}}
	return &metadata.TraceType{DataStreams: []*metadata.DataStreamType{ds}}
}

func TestBuildDynamicLengthArrayAllocatesSlotAndSaveInstr(t *testing.T) {
	pp, err := Build(dynArrayTraceType())
	require.NoError(t, err)
	assert.Equal(t, 1, pp.SavedValsCount)

	dp := pp.SingleDsProc()
	require.NotNil(t, dp)
	ep := dp.SingleErProc()
	require.NotNil(t, ep)

	var sawSave, sawBeginArray bool
	var savedSlot, arraySlot int
	for _, instr := range ep.Proc.Instrs {
		if instr.Kind == OpSaveVal {
			sawSave = true
			savedSlot = instr.SaveSlot
		}
		if instr.Kind == OpBeginReadDynamicLengthArray {
			sawBeginArray = true
			arraySlot = instr.SavedValueSlot
			require.NotNil(t, instr.Sub)
			assert.Equal(t, OpDecrRemaining, instr.Sub.Instrs[len(instr.Sub.Instrs)-1].Kind)
		}
	}
	assert.True(t, sawSave, "expected a save-value instruction after the length field")
	assert.True(t, sawBeginArray)
	assert.Equal(t, savedSlot, arraySlot)
}

func TestBuildVariantAllocatesSelectorSlotAndOptions(t *testing.T) {
	payload := &metadata.StructType{Members: []metadata.NamedDataType{
		{Name: "tag", Type: u8(metadata.RoleNone)},
		{Name: "v", Type: &metadata.DataType{
			Kind: metadata.KindVariant,
			Variant: &metadata.VariantData{
				SelectorLoc: &metadata.DataLocation{Scope: metadata.ScopeEventRecordPayload, Path: []string{"tag"}},
				Options: []metadata.VariantOption{
					{Name: "a", Ranges: []metadata.SelectorRange{{Begin: 0, End: 0}}, Type: u8(metadata.RoleNone)},
					{Name: "b", Ranges: []metadata.SelectorRange{{Begin: 1, End: 255}}, Type: u8(metadata.RoleNone)},
				},
			},
		}},
	}}
	ert := &metadata.EventRecordType{Id: 0, Payload: payload}
	ds := &metadata.DataStreamType{Id: 0, EventRecordTypes: []*metadata.EventRecordType{ert}}
	tt := &metadata.TraceType{DataStreams: []*metadata.DataStreamType{ds}}

	pp, err := Build(tt)
	require.NoError(t, err)
	assert.Equal(t, 1, pp.SavedValsCount)

	ep := pp.SingleDsProc().SingleErProc()
	var begin *Instr
	for _, instr := range ep.Proc.Instrs {
		if instr.Kind == OpBeginReadVariant {
			begin = instr
		}
	}
	require.NotNil(t, begin)
	require.Len(t, begin.Options, 2)
}

func TestBuildRejectsInvalidTraceType(t *testing.T) {
	payload := &metadata.StructType{Members: []metadata.NamedDataType{
		{Name: "data", Type: &metadata.DataType{
			Kind: metadata.KindDynamicLengthArray,
			Array: &metadata.ArrayData{
				ElementType: u8(metadata.RoleNone),
				LengthLoc:   &metadata.DataLocation{Scope: metadata.ScopeEventRecordPayload, Path: []string{"missing"}},
			},
		}},
	}}
	ert := &metadata.EventRecordType{Id: 0, Payload: payload}
	ds := &metadata.DataStreamType{Id: 0, EventRecordTypes: []*metadata.EventRecordType{ert}}
	tt := &metadata.TraceType{DataStreams: []*metadata.DataStreamType{ds}}

	_, err := Build(tt)
	assert.Error(t, err)
}

func TestBuildRolesEmitSideEffectInstructions(t *testing.T) {
	header := &metadata.StructType{Members: []metadata.NamedDataType{
		{Name: "magic", Type: u8(metadata.RolePacketMagicNumber)},
	}}
	ds := &metadata.DataStreamType{Id: 0, EventRecordTypes: []*metadata.EventRecordType{
		{Id: 0, Payload: &metadata.StructType{}},
	}}
	tt := &metadata.TraceType{PacketHeader: header, DataStreams: []*metadata.DataStreamType{ds}}

	pp, err := Build(tt)
	require.NoError(t, err)

	var sawMagic bool
	for _, instr := range pp.Preamble.Instrs {
		if instr.Kind == OpSetPktMagicNumber {
			sawMagic = true
		}
	}
	assert.True(t, sawMagic)
}
