package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func u8(role Role) *DataType {
	return &DataType{
		Kind: KindFixedLengthUnsignedInt,
		FixedLength: &FixedLengthData{
			LenBits: 8, ByteOrder: LittleEndian, Alignment: 8, Role: role,
		},
	}
}

func simpleTraceType() *TraceType {
	payload := &StructType{Members: []NamedDataType{
		{Name: "len", Type: u8(RoleNone)},
		{Name: "data", Type: &DataType{
			Kind: KindDynamicLengthArray,
			Array: &ArrayData{
				ElementType: u8(RoleNone),
				LengthLoc:   &DataLocation{Scope: ScopeEventRecordPayload, Path: []string{"len"}},
			},
		}},
	}}
	ert := &EventRecordType{Id: 0, Payload: payload}
	ds := &DataStreamType{Id: 0, EventRecordTypes: []*EventRecordType{ert}}
	return &TraceType{DataStreams: []*DataStreamType{ds}}
}

func TestValidateAcceptsWellFormedLocation(t *testing.T) {
	tt := simpleTraceType()
	assert.NoError(t, tt.Validate())
}

func TestValidateRejectsForwardReference(t *testing.T) {
	tt := simpleTraceType()
	payload := tt.DataStreams[0].EventRecordTypes[0].Payload
	// Swap order so "data" precedes "len": now the reference points
	// forward, which must be rejected.
	payload.Members[0], payload.Members[1] = payload.Members[1], payload.Members[0]

	err := tt.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not decoded before the referrer")
}

func TestValidateRejectsOverlappingVariantRanges(t *testing.T) {
	variant := &DataType{
		Kind: KindVariant,
		Variant: &VariantData{
			SelectorLoc: &DataLocation{Scope: ScopeEventRecordPayload, Path: []string{"sel"}},
			Options: []VariantOption{
				{Name: "a", Ranges: []SelectorRange{{Begin: 0, End: 9}}, Type: u8(RoleNone)},
				{Name: "b", Ranges: []SelectorRange{{Begin: 5, End: 19}}, Type: u8(RoleNone)},
			},
		},
	}
	payload := &StructType{Members: []NamedDataType{
		{Name: "sel", Type: u8(RoleNone)},
		{Name: "v", Type: variant},
	}}
	ert := &EventRecordType{Id: 0, Payload: payload}
	ds := &DataStreamType{Id: 0, EventRecordTypes: []*EventRecordType{ert}}
	tt := &TraceType{DataStreams: []*DataStreamType{ds}}

	err := tt.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overlapping")
}

func TestValidateRejectsDuplicateRoleInScope(t *testing.T) {
	ctx := &StructType{Members: []NamedDataType{
		{Name: "total_len", Type: u8(RolePacketTotalLength)},
		{Name: "total_len2", Type: u8(RolePacketTotalLength)},
	}}
	ds := &DataStreamType{Id: 0, PacketContext: ctx}
	tt := &TraceType{DataStreams: []*DataStreamType{ds}}

	err := tt.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "more than once")
}
