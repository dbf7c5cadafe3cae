package yactfr

import (
	"fmt"

	"github.com/kienanstewart/yactfr/internal/vm"
)

// Element is the tagged-union value an Iterator yields. It is a
// borrowed reference valid until the next call to Next; callers must
// copy fields they need to keep (§6).
type Element = vm.Element

// ElementKind is the closed set of kinds an Element can carry.
type ElementKind = vm.ElementKind

// The element kinds an Iterator can yield, re-exported from internal/vm
// so callers never need to reach past the public API surface.
const (
	ElemPacketBegin        = vm.ElemPacketBegin
	ElemPacketEnd          = vm.ElemPacketEnd
	ElemPacketContentBegin = vm.ElemPacketContentBegin
	ElemPacketContentEnd   = vm.ElemPacketContentEnd
	ElemScopeBegin         = vm.ElemScopeBegin
	ElemScopeEnd           = vm.ElemScopeEnd
	ElemEventRecordBegin   = vm.ElemEventRecordBegin
	ElemEventRecordEnd     = vm.ElemEventRecordEnd

	ElemStructBegin = vm.ElemStructBegin
	ElemStructEnd   = vm.ElemStructEnd

	ElemStaticLengthArrayBegin  = vm.ElemStaticLengthArrayBegin
	ElemStaticLengthArrayEnd    = vm.ElemStaticLengthArrayEnd
	ElemDynamicLengthArrayBegin = vm.ElemDynamicLengthArrayBegin
	ElemDynamicLengthArrayEnd   = vm.ElemDynamicLengthArrayEnd

	ElemStaticLengthStrBegin  = vm.ElemStaticLengthStrBegin
	ElemStaticLengthStrEnd    = vm.ElemStaticLengthStrEnd
	ElemDynamicLengthStrBegin = vm.ElemDynamicLengthStrBegin
	ElemDynamicLengthStrEnd   = vm.ElemDynamicLengthStrEnd

	ElemStaticLengthBlobBegin  = vm.ElemStaticLengthBlobBegin
	ElemStaticLengthBlobEnd    = vm.ElemStaticLengthBlobEnd
	ElemDynamicLengthBlobBegin = vm.ElemDynamicLengthBlobBegin
	ElemDynamicLengthBlobEnd   = vm.ElemDynamicLengthBlobEnd

	ElemVariantBegin  = vm.ElemVariantBegin
	ElemVariantEnd    = vm.ElemVariantEnd
	ElemOptionalBegin = vm.ElemOptionalBegin
	ElemOptionalEnd   = vm.ElemOptionalEnd

	ElemSubstring   = vm.ElemSubstring
	ElemBlobSection = vm.ElemBlobSection
	ElemSignedInt   = vm.ElemSignedInt
	ElemUnsignedInt = vm.ElemUnsignedInt
	ElemFloat       = vm.ElemFloat
	ElemBool        = vm.ElemBool

	ElemPacketMagicNumber = vm.ElemPacketMagicNumber
	ElemTraceTypeUuid     = vm.ElemTraceTypeUuid
	ElemDefaultClockValue = vm.ElemDefaultClockValue

	// ElemDataStreamInfo, ElemPacketInfo, and ElemEventRecordInfo carry
	// the fields gathered over a packet's header/context or an event
	// record's header/common-context, surfaced once per packet or event
	// record rather than as one element per field.
	ElemDataStreamInfo  = vm.ElemDataStreamInfo
	ElemPacketInfo      = vm.ElemPacketInfo
	ElemEventRecordInfo = vm.ElemEventRecordInfo
)

// PacketInfo is the set of packet-scope fields carried by an
// ElemPacketInfo element.
type PacketInfo = vm.PacketInfo

// Iterator pulls decoded Elements from a Trace one at a time. It is
// strictly single-threaded: every operation on one Iterator must come
// from a single goroutine, though independent Iterators over the same
// Trace (each with its own DataSource handle) may run concurrently
// (§5).
type Iterator struct {
	trace *Trace
	src   DataSource
	vm    *vm.Vm
	elem  *Element
	mark  int64
}

// Next advances the iterator to the next element. Element returns nil
// once the underlying element sequence is exhausted.
func (it *Iterator) Next() error {
	e, err := it.vm.NextElement()
	if err != nil {
		return err
	}
	it.elem = e
	it.mark++
	return nil
}

// Element returns the element the iterator is currently positioned
// at, or nil when the iterator is at end.
func (it *Iterator) Element() *Element {
	return it.elem
}

// SeekPacket repositions the iterator to the start of the packet
// beginning at byteOffset, discarding any in-flight decoding state.
// The next element produced is a PacketBegin whose offset equals
// byteOffset*8 (§8).
func (it *Iterator) SeekPacket(byteOffset int64) error {
	pos := vm.NewPosition(it.trace.pktProc)
	pos.CurPktOffsetInElemSeqBits = byteOffset * 8
	it.vm.SetPosition(pos)
	it.mark = 0
	return it.Next()
}

// Compare orders it relative to other by their (offset, mark) pairs: a
// monotonic ordering over an element sequence where offset alone does
// not disambiguate distinct elements sharing a head offset (e.g. a
// Begin element and the first leaf read inside it).
func (it *Iterator) Compare(other *Iterator) int {
	a, b := it.vm.Position().HeadOffsetInElemSeqBits(), other.vm.Position().HeadOffsetInElemSeqBits()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	case it.mark < other.mark:
		return -1
	case it.mark > other.mark:
		return 1
	default:
		return 0
	}
}

// Close releases the iterator's DataSource handle.
func (it *Iterator) Close() error {
	if it.src == nil {
		return nil
	}
	if err := it.src.Close(); err != nil {
		return fmt.Errorf("yactfr: closing data source: %w", err)
	}
	return nil
}
