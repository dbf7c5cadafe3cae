// Package vm implements the decoding virtual machine (§4.C/§4.E/§4.F):
// a single-threaded, pull-based state machine that walks a compiled
// proc.PacketProc against a byte-addressable data source, emitting one
// Element per NextElement call.
package vm

import "github.com/kienanstewart/yactfr/metadata"

// ElementKind is the closed set of values an Element can carry.
type ElementKind int

const (
	ElemPacketBegin ElementKind = iota
	ElemPacketEnd
	ElemPacketContentBegin
	ElemPacketContentEnd
	ElemScopeBegin
	ElemScopeEnd
	ElemEventRecordBegin
	ElemEventRecordEnd
	ElemStructBegin
	ElemStructEnd
	ElemStaticLengthArrayBegin
	ElemStaticLengthArrayEnd
	ElemDynamicLengthArrayBegin
	ElemDynamicLengthArrayEnd
	ElemStaticLengthStrBegin
	ElemStaticLengthStrEnd
	ElemDynamicLengthStrBegin
	ElemDynamicLengthStrEnd
	ElemStaticLengthBlobBegin
	ElemStaticLengthBlobEnd
	ElemDynamicLengthBlobBegin
	ElemDynamicLengthBlobEnd
	ElemVariantBegin
	ElemVariantEnd
	ElemOptionalBegin
	ElemOptionalEnd
	ElemSubstring
	ElemBlobSection
	ElemSignedInt
	ElemUnsignedInt
	ElemFloat
	ElemBool
	ElemPacketMagicNumber
	ElemTraceTypeUuid
	ElemDefaultClockValue
	// ElemDataStreamInfo, ElemPacketInfo, and ElemEventRecordInfo are
	// aggregate elements: the set-dst/set-ert/set-ds-id/set-packet-seq-
	// num/set-discarded-counter/set-total-len/set-content-len/set-end-
	// clock-value instructions only write into the pending info held on
	// Position; one of these three elements is what actually surfaces
	// the accumulated fields to the caller. ElemDataStreamInfo and
	// ElemPacketInfo are emitted once per packet, ElemEventRecordInfo
	// once per event record.
	ElemDataStreamInfo
	ElemPacketInfo
	ElemEventRecordInfo
)

func (k ElementKind) String() string {
	names := [...]string{
		"PacketBegin", "PacketEnd", "PacketContentBegin", "PacketContentEnd",
		"ScopeBegin", "ScopeEnd", "EventRecordBegin", "EventRecordEnd",
		"StructBegin", "StructEnd",
		"StaticLengthArrayBegin", "StaticLengthArrayEnd",
		"DynamicLengthArrayBegin", "DynamicLengthArrayEnd",
		"StaticLengthStrBegin", "StaticLengthStrEnd",
		"DynamicLengthStrBegin", "DynamicLengthStrEnd",
		"StaticLengthBlobBegin", "StaticLengthBlobEnd",
		"DynamicLengthBlobBegin", "DynamicLengthBlobEnd",
		"VariantBegin", "VariantEnd", "OptionalBegin", "OptionalEnd",
		"Substring", "BlobSection", "SignedInt", "UnsignedInt", "Float", "Bool",
		"PacketMagicNumber", "TraceTypeUuid", "DefaultClockValue",
		"DataStreamInfo", "PacketInfo", "EventRecordInfo",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "Unknown"
}

// PacketInfo is the set of packet-scope fields accumulated by silent
// set-* instructions over the course of a packet preamble and surfaced
// together by a single ElemPacketInfo emission. Each field's Has* flag
// tracks whether the corresponding role was present in the schema;
// ExpectedTotalLenBits/ExpectedContentLenBits are recomputed from the
// running Position state at emit time rather than cached from the
// set-* instruction, since either one can be refined by the other
// after it was first set.
type PacketInfo struct {
	OriginIndex    uint64
	HasOriginIndex bool

	DiscardedErCounterSnap    uint64
	HasDiscardedErCounterSnap bool

	ExpectedTotalLenBits    uint64
	HasExpectedTotalLenBits bool

	ExpectedContentLenBits    uint64
	HasExpectedContentLenBits bool

	EndDefClkVal    uint64
	HasEndDefClkVal bool
}

// Element is every value NextElement can produce. The original source
// keeps one statically-typed instance per element kind; this repeats
// the tagged-union collapse already applied to instructions and data
// types (§9) rather than carrying that type per kind, since a Go
// pull-iterator's consumer inspects Kind and the relevant field(s) for
// one call before the next overwrites them — no cross-kind identity is
// ever compared.
type Element struct {
	Kind ElementKind

	DataType *metadata.DataType
	Member   *metadata.NamedDataType
	Scope    metadata.Scope

	// Len is the element count for array begin elements, or the byte
	// count for string/blob begin elements.
	Len int64

	IntVal   int64
	UintVal  uint64
	FloatVal float64
	BoolVal  bool

	// Bytes holds the substring or blob-section payload. It borrows
	// directly from the VM's read buffer and is valid only until the
	// next NextElement call.
	Bytes []byte

	SelectorVal int64

	Dst *metadata.DataStreamType
	Ert *metadata.EventRecordType

	// DsId is the data stream ID (the "data stream instance ID", not
	// the data stream _type_ ID carried by Dst), valid on
	// ElemDataStreamInfo when HasDsId is set.
	DsId    uint64
	HasDsId bool

	// PktInfo carries the accumulated packet-scope fields, valid on
	// ElemPacketInfo.
	PktInfo PacketInfo

	ClockVal    uint64
	HasClockVal bool
}
