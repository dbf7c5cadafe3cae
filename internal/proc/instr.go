// Package proc implements the procedure compiler (§4.B/§4.D): the
// closed instruction model and the builder that lowers a validated
// metadata.TraceType into flat, borrowable procedures for the decoding
// VM.
package proc

import "github.com/kienanstewart/yactfr/metadata"

// Kind is the closed set of VM opcodes. Rather than one opcode per
// (width × byte order × reversed) combination as the distilled spec's
// source does, every fixed-length numeric read collapses onto one of
// three Kinds (bit array, signed int, unsigned int) or float/bool,
// carrying width/order/reversed as ordinary struct fields; dispatch
// switches once on Kind and the hot loop branches on those fields,
// which is the tagged-union approach §9 calls for without requiring a
// combinatorial opcode table.
type Kind int

const (
	OpReadFlBitArray Kind = iota
	OpReadFlBool
	OpReadFlSignedInt
	OpReadFlUnsignedInt
	OpReadFlFloat
	OpReadVlSignedInt
	OpReadVlUnsignedInt
	OpReadNullTerminatedStr

	// OpBeginReadUuid is a specialized read for the packet header's
	// 16-byte metadata-stream UUID field: it reads the bytes into
	// Position.UUID and emits a single trace-type-UUID element rather
	// than the byte-array element a plain static-length blob would.
	OpBeginReadUuid

	OpBeginReadScope
	OpEndReadScope
	OpBeginReadStruct
	OpEndReadStruct
	OpBeginReadStaticLengthArray
	OpEndReadStaticLengthArray
	OpBeginReadDynamicLengthArray
	OpEndReadDynamicLengthArray

	// OpDecrRemaining is the last instruction in every array's element
	// sub-procedure, immediately before control wraps back to the
	// sub-procedure's start or (on the last element) the frame pops into
	// the matching end-array instruction. Folding the decrement into the
	// instruction stream instead of doing it in the loop controller on
	// every wrap keeps the array fast path to one branch per element.
	OpDecrRemaining
	OpBeginReadStaticLengthStr
	OpEndReadStaticLengthStr
	OpBeginReadDynamicLengthStr
	OpEndReadDynamicLengthStr
	OpBeginReadStaticLengthBlob
	OpEndReadStaticLengthBlob
	OpBeginReadDynamicLengthBlob
	OpEndReadDynamicLengthBlob
	OpBeginReadVariant
	OpEndReadVariant
	OpBeginReadOptional
	OpEndReadOptional

	OpSaveVal

	OpSetCurId
	OpSetDst
	OpSetErt
	OpSetDsId
	OpSetPktSeqNum
	OpSetDiscardedCounterSnap
	OpSetPktTotalLen
	OpSetPktContentLen
	OpSetPktMagicNumber
	OpSetPktEndDefClkVal
	OpUpdateDefClkVal

	// OpEmitDsInfo, OpEmitPacketInfo, and OpEmitErInfo surface the
	// pending info Position accumulated via the silent
	// OpSetDst/OpSetErt/OpSetDsId/OpSetPktSeqNum/OpSetDiscardedCounterSnap/
	// OpSetPktTotalLen/OpSetPktContentLen/OpSetPktEndDefClkVal
	// instructions above, which themselves never emit. Of the other
	// instructions above, OpSetPktMagicNumber and OpUpdateDefClkVal emit
	// their own element directly.
	OpEmitDsInfo
	OpEmitPacketInfo
	OpEmitErInfo

	OpEndOfPktPreambleProc
	OpEndOfDsPktPreambleProc
	OpEndOfDsErPreambleProc
	OpEndOfErProc
)

func (k Kind) String() string {
	names := [...]string{
		"ReadFlBitArray", "ReadFlBool", "ReadFlSignedInt", "ReadFlUnsignedInt", "ReadFlFloat",
		"ReadVlSignedInt", "ReadVlUnsignedInt", "ReadNullTerminatedStr", "BeginReadUuid",
		"BeginReadScope", "EndReadScope", "BeginReadStruct", "EndReadStruct",
		"BeginReadStaticLengthArray", "EndReadStaticLengthArray",
		"BeginReadDynamicLengthArray", "EndReadDynamicLengthArray",
		"DecrRemaining",
		"BeginReadStaticLengthStr", "EndReadStaticLengthStr",
		"BeginReadDynamicLengthStr", "EndReadDynamicLengthStr",
		"BeginReadStaticLengthBlob", "EndReadStaticLengthBlob",
		"BeginReadDynamicLengthBlob", "EndReadDynamicLengthBlob",
		"BeginReadVariant", "EndReadVariant", "BeginReadOptional", "EndReadOptional",
		"SaveVal",
		"SetCurId", "SetDst", "SetErt", "SetDsId", "SetPktSeqNum", "SetDiscardedCounterSnap",
		"SetPktTotalLen", "SetPktContentLen", "SetPktMagicNumber", "SetPktEndDefClkVal", "UpdateDefClkVal",
		"EmitDsInfo", "EmitPacketInfo", "EmitErInfo",
		"EndOfPktPreambleProc", "EndOfDsPktPreambleProc", "EndOfDsErPreambleProc", "EndOfErProc",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "Unknown"
}

// VariantOption is one (selector range set, sub-procedure) pair owned
// by a BeginReadVariant instruction.
type VariantOption struct {
	Ranges []metadata.SelectorRange
	Sub    *Proc
}

// Contains reports whether v (the decoded selector value) is covered by
// any range in o.
func (o VariantOption) Contains(v int64) bool {
	for _, r := range o.Ranges {
		if r.Contains(v) {
			return true
		}
	}
	return false
}

// Instr is every VM instruction, represented as one tagged-union struct
// rather than a class hierarchy (§9 Design Notes): Kind selects which
// of the fields below are meaningful.
type Instr struct {
	Kind Kind

	// Read-data instructions (leaves and compound begins) carry the
	// originating data type and owning member, for element attribution.
	DataType *metadata.DataType
	Member   *metadata.NamedDataType
	Align    int

	// Fixed-length numeric reads.
	LenBits  int
	ByteOrder metadata.ByteOrder
	Reversed bool

	// String encoding (null-terminated and length-prefixed string reads).
	Encoding metadata.StrEncoding

	// Compound instructions own a sub-procedure.
	Sub *Proc

	// Static length (array / string / blob).
	StaticLen int

	// Dynamic length / selector: slot this instruction reads from.
	SavedValueSlot int

	// save-value: slot this instruction writes to.
	SaveSlot int

	// Variant.
	Options        []VariantOption
	SelectorSigned bool

	// Optional.
	OptIsBoolSelector bool
	IntRanges         []metadata.SelectorRange

	// Scope markers.
	Scope metadata.Scope

	// update-default-clock-value fast path: >0 selects the fixed-length
	// fast path with that width; 0 selects the generic path, which treats
	// the value as 64 bits wide and replaces the clock value outright.
	ClockFastPathLenBits int

	// FixedId overrides the current-id value for SetDst/SetErt
	// instructions, regardless of what was last read. The builder sets
	// this when a data stream type (or event record type set) declares
	// no discriminator field at all: with exactly one candidate
	// procedure, its id is wired in directly rather than routed through
	// a read-then-dispatch pair that has nothing to read.
	FixedId *uint64
}
