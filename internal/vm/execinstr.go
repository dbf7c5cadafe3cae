package vm

import (
	"fmt"

	"github.com/kienanstewart/yactfr/internal/errs"
	"github.com/kienanstewart/yactfr/internal/proc"
)

// reaction is what an executed instruction tells stateExecInstr/
// stateExecArrayInstr to do next, mirroring the distilled spec's
// source's five-way exec-reaction enum.
type reaction int

const (
	// reactNext advances the frame to the next instruction and keeps
	// looping without emitting anything.
	reactNext reaction = iota
	// reactFetchStop advances the frame to the next instruction, then
	// returns the element exec() just populated.
	reactFetchStop
	// reactStop returns the element exec() just populated without
	// advancing the frame; used when exec() already changed the frame
	// itself (typically by pushing a new one after manually advancing
	// the old one past the instruction that pushed it).
	reactStop
	// reactCur re-enters the loop without advancing or emitting; used
	// when exec() swapped the whole procedure the top frame runs
	// (Position.LoadNewProc), so the next instruction to run is
	// instruction zero of the new procedure, not a continuation of the
	// old one.
	reactCur
	// reactChangeState tells the caller to return to NextElement's
	// outer loop without emitting, because exec() changed
	// Position.State itself (moving to a dedicated packet/event-record
	// boundary state rather than continuing instruction execution).
	reactChangeState
)

// emptyProc is the placeholder procedure for frames that exist only to
// carry a remaining-element count (string, blob and UUID reads): those
// states never call NextInstr, so the procedure they nominally belong
// to is never consulted.
var emptyProc = &proc.Proc{}

// stateExecInstr runs the top frame's procedure instruction by
// instruction until one of them stops the state machine (by emitting
// an element or changing state). A frame that runs off the end of its
// instructions without an explicit end-of-procedure instruction is a
// sub-procedure (struct member list, chosen variant option, present
// optional payload); it is silently popped, resuming the parent frame
// exactly where it left off.
func (v *Vm) stateExecInstr() (bool, bool, error) {
	for {
		instr := v.pos.NextInstr()
		if instr == nil {
			v.pos.setParentStateAndPop()
			return false, false, nil
		}

		r, err := v.exec(instr)
		if err != nil {
			return false, false, err
		}

		switch r {
		case reactFetchStop:
			v.pos.GotoNextInstr()
			return true, true, nil
		case reactStop:
			return true, true, nil
		case reactNext:
			v.pos.GotoNextInstr()
		case reactCur:
			// loop again; the frame stack already points at the next
			// instruction to run.
		case reactChangeState:
			return false, false, nil
		}
	}
}

// stateExecArrayInstr is stateExecInstr's counterpart for an array's
// per-element sub-procedure: it never sees reactCur or
// reactChangeState (no instruction that pushes a new top-level
// procedure, or changes Position.State outright, ever appears inside
// an array element), and it checks the remaining-element count itself
// rather than relying on the sub-procedure running off its end, since
// GotoNextArrayElemInstr wraps idx back to zero for the next element
// instead of exhausting the frame.
func (v *Vm) stateExecArrayInstr() (bool, bool, error) {
	for {
		if v.pos.top().remElems == 0 {
			v.pos.setParentStateAndPop()
			return false, false, nil
		}

		instr := v.pos.NextInstr()
		r, err := v.exec(instr)
		if err != nil {
			return false, false, err
		}

		switch r {
		case reactFetchStop:
			v.pos.GotoNextArrayElemInstr()
			return true, true, nil
		case reactStop:
			return true, true, nil
		case reactNext:
			v.pos.GotoNextArrayElemInstr()
		default:
			return false, false, fmt.Errorf("vm: instruction %s returned an unsupported reaction in array context", instr.Kind)
		}
	}
}

// readFixedPreamble aligns the head, checks the read against the
// packet's expected content length, and enforces that consecutive
// sub-byte reads agree on byte order (errs.ByteOrderChangeWithinByte):
// a byte order only has meaning once bits from more than one byte are
// combined, so two reads sharing a byte but disagreeing on how to
// assemble it cannot both be honoured.
func (v *Vm) readFixedPreamble(instr *proc.Instr) error {
	if err := v.alignHead(instr.Align); err != nil {
		return err
	}
	if err := v.requireContentBits(int64(instr.LenBits)); err != nil {
		return err
	}
	if v.pos.HeadOffsetInCurPktBits%8 != 0 && v.pos.LastBoSet && instr.ByteOrder != v.pos.LastBo {
		return errs.New(errs.ByteOrderChangeWithinByte, v.pos.HeadOffsetInElemSeqBits())
	}
	v.pos.LastBo = instr.ByteOrder
	v.pos.LastBoSet = true
	return nil
}

// finishFixedRead consumes the bits a fixed-length read just decoded
// and, once the head lands back on a byte boundary, clears the
// byte-order memory readFixedPreamble checks: the constraint only
// binds reads that share a byte.
func (v *Vm) finishFixedRead(lenBits int) {
	v.consumeExistingBits(int64(lenBits))
	if v.pos.HeadOffsetInCurPktBits%8 == 0 {
		v.pos.LastBoSet = false
	}
}

// readLeb128 decodes one LEB128-encoded integer a byte at a time from
// the data source, always byte-aligned. Bits beyond the 64th are
// consumed (so the head ends up in the right place) but discarded,
// matching a decoder that tolerates encodings wider than its native
// integer size without claiming to represent their full value.
func (v *Vm) readLeb128(signed bool) (uint64, error) {
	if err := v.alignHead(8); err != nil {
		return 0, err
	}

	var result uint64
	var shift uint
	for {
		if err := v.requireContentBits(8); err != nil {
			return 0, err
		}
		b := v.bufAtHead()[0]
		v.consumeExistingBits(8)

		if shift < 64 {
			result |= uint64(b&0x7f) << shift
		}
		shift += 7

		if b&0x80 == 0 {
			if signed && shift < 64 && b&0x40 != 0 {
				result |= ^uint64(0) << shift
			}
			break
		}
	}
	return result, nil
}

// exec runs one instruction and reports how the calling state handler
// should continue. It never touches Position.State itself except via
// the four end-of-procedure instructions, the instructions that begin a
// string/blob/UUID read (which hand off to their own dedicated states),
// and the struct/array/variant/optional begin instructions (which set
// the state their pushed sub-procedure runs in); every other
// instruction either emits straight into Position.Elem or only updates
// bookkeeping fields.
func (v *Vm) exec(instr *proc.Instr) (reaction, error) {
	switch instr.Kind {

	case proc.OpReadFlBitArray:
		if err := v.readFixedPreamble(instr); err != nil {
			return 0, err
		}
		val, err := readBits(v.bufAtHead(), 0, instr.LenBits, instr.ByteOrder, instr.Reversed)
		if err != nil {
			return 0, err
		}
		v.pos.LastIntValU = val
		e := v.emit(ElemUnsignedInt)
		e.DataType, e.Member, e.UintVal = instr.DataType, instr.Member, val
		v.finishFixedRead(instr.LenBits)
		return reactFetchStop, nil

	case proc.OpReadFlBool:
		if err := v.readFixedPreamble(instr); err != nil {
			return 0, err
		}
		val, err := readBits(v.bufAtHead(), 0, instr.LenBits, instr.ByteOrder, instr.Reversed)
		if err != nil {
			return 0, err
		}
		e := v.emit(ElemBool)
		e.DataType, e.Member, e.BoolVal = instr.DataType, instr.Member, val != 0
		v.finishFixedRead(instr.LenBits)
		return reactFetchStop, nil

	case proc.OpReadFlSignedInt:
		if err := v.readFixedPreamble(instr); err != nil {
			return 0, err
		}
		val, err := readSignedInt(v.bufAtHead(), 0, instr.LenBits, instr.ByteOrder, instr.Reversed)
		if err != nil {
			return 0, err
		}
		v.pos.LastIntValI, v.pos.LastIntValU = val, uint64(val)
		e := v.emit(ElemSignedInt)
		e.DataType, e.Member, e.IntVal = instr.DataType, instr.Member, val
		v.finishFixedRead(instr.LenBits)
		return reactFetchStop, nil

	case proc.OpReadFlUnsignedInt:
		if err := v.readFixedPreamble(instr); err != nil {
			return 0, err
		}
		val, err := readUnsignedInt(v.bufAtHead(), 0, instr.LenBits, instr.ByteOrder, instr.Reversed)
		if err != nil {
			return 0, err
		}
		v.pos.LastIntValU = val
		e := v.emit(ElemUnsignedInt)
		e.DataType, e.Member, e.UintVal = instr.DataType, instr.Member, val
		v.finishFixedRead(instr.LenBits)
		return reactFetchStop, nil

	case proc.OpReadFlFloat:
		if err := v.readFixedPreamble(instr); err != nil {
			return 0, err
		}
		val, err := readFloat(v.bufAtHead(), 0, instr.LenBits, instr.ByteOrder, instr.Reversed)
		if err != nil {
			return 0, err
		}
		e := v.emit(ElemFloat)
		e.DataType, e.Member, e.FloatVal = instr.DataType, instr.Member, val
		v.finishFixedRead(instr.LenBits)
		return reactFetchStop, nil

	case proc.OpReadVlSignedInt:
		val, err := v.readLeb128(true)
		if err != nil {
			return 0, err
		}
		sval := int64(val)
		v.pos.LastIntValI, v.pos.LastIntValU = sval, val
		e := v.emit(ElemSignedInt)
		e.DataType, e.Member, e.IntVal = instr.DataType, instr.Member, sval
		return reactFetchStop, nil

	case proc.OpReadVlUnsignedInt:
		val, err := v.readLeb128(false)
		if err != nil {
			return 0, err
		}
		v.pos.LastIntValU = val
		e := v.emit(ElemUnsignedInt)
		e.DataType, e.Member, e.UintVal = instr.DataType, instr.Member, val
		return reactFetchStop, nil

	case proc.OpReadNullTerminatedStr:
		if err := v.alignHead(instr.Align); err != nil {
			return 0, err
		}
		e := v.emit(ElemDynamicLengthStrBegin)
		e.DataType, e.Member, e.Len = instr.DataType, instr.Member, -1
		v.pos.PostEndStrState = v.pos.State
		v.pos.PendingEndKind = ElemDynamicLengthStrEnd
		v.pos.State = stateReadSubstrUntilNull
		return reactFetchStop, nil

	case proc.OpBeginReadUuid:
		if err := v.alignHead(instr.Align); err != nil {
			return 0, err
		}
		v.pos.GotoNextInstr()
		v.pos.push(emptyProc)
		v.pos.top().remElems = 16
		v.pos.State = stateReadUuidByte
		return reactChangeState, nil

	case proc.OpBeginReadScope:
		e := v.emit(ElemScopeBegin)
		e.Scope = instr.Scope
		return reactFetchStop, nil

	case proc.OpEndReadScope:
		e := v.emit(ElemScopeEnd)
		e.Scope = instr.Scope
		return reactFetchStop, nil

	case proc.OpBeginReadStruct:
		e := v.emit(ElemStructBegin)
		e.DataType, e.Member = instr.DataType, instr.Member
		v.pos.GotoNextInstr()
		v.pos.push(instr.Sub)
		v.pos.State = stateExecInstr
		return reactStop, nil

	case proc.OpEndReadStruct:
		e := v.emit(ElemStructEnd)
		e.DataType, e.Member = instr.DataType, instr.Member
		return reactFetchStop, nil

	case proc.OpBeginReadStaticLengthArray:
		e := v.emit(ElemStaticLengthArrayBegin)
		e.DataType, e.Member, e.Len = instr.DataType, instr.Member, int64(instr.StaticLen)
		v.pos.GotoNextInstr()
		v.pos.push(instr.Sub)
		v.pos.top().remElems = int64(instr.StaticLen)
		v.pos.State = stateExecArrayInstr
		return reactStop, nil

	case proc.OpEndReadStaticLengthArray:
		e := v.emit(ElemStaticLengthArrayEnd)
		e.DataType, e.Member = instr.DataType, instr.Member
		return reactFetchStop, nil

	case proc.OpBeginReadDynamicLengthArray:
		length := int64(v.pos.SavedVal(instr.SavedValueSlot))
		e := v.emit(ElemDynamicLengthArrayBegin)
		e.DataType, e.Member, e.Len = instr.DataType, instr.Member, length
		v.pos.GotoNextInstr()
		v.pos.push(instr.Sub)
		v.pos.top().remElems = length
		v.pos.State = stateExecArrayInstr
		return reactStop, nil

	case proc.OpEndReadDynamicLengthArray:
		e := v.emit(ElemDynamicLengthArrayEnd)
		e.DataType, e.Member = instr.DataType, instr.Member
		return reactFetchStop, nil

	case proc.OpBeginReadStaticLengthStr:
		if err := v.alignHead(instr.Align); err != nil {
			return 0, err
		}
		e := v.emit(ElemStaticLengthStrBegin)
		e.DataType, e.Member, e.Len = instr.DataType, instr.Member, int64(instr.StaticLen)
		v.pos.GotoNextInstr()
		v.pos.pushChunkFrame(emptyProc, int64(instr.StaticLen), ElemSubstring)
		v.pos.State = stateReadSubstr
		return reactStop, nil

	case proc.OpEndReadStaticLengthStr:
		e := v.emit(ElemStaticLengthStrEnd)
		e.DataType, e.Member = instr.DataType, instr.Member
		return reactFetchStop, nil

	case proc.OpBeginReadDynamicLengthStr:
		if err := v.alignHead(instr.Align); err != nil {
			return 0, err
		}
		length := int64(v.pos.SavedVal(instr.SavedValueSlot))
		e := v.emit(ElemDynamicLengthStrBegin)
		e.DataType, e.Member, e.Len = instr.DataType, instr.Member, length
		v.pos.GotoNextInstr()
		v.pos.pushChunkFrame(emptyProc, length, ElemSubstring)
		v.pos.State = stateReadSubstr
		return reactStop, nil

	case proc.OpEndReadDynamicLengthStr:
		e := v.emit(ElemDynamicLengthStrEnd)
		e.DataType, e.Member = instr.DataType, instr.Member
		return reactFetchStop, nil

	case proc.OpBeginReadStaticLengthBlob:
		if err := v.alignHead(instr.Align); err != nil {
			return 0, err
		}
		e := v.emit(ElemStaticLengthBlobBegin)
		e.DataType, e.Member, e.Len = instr.DataType, instr.Member, int64(instr.StaticLen)
		v.pos.GotoNextInstr()
		v.pos.pushChunkFrame(emptyProc, int64(instr.StaticLen), ElemBlobSection)
		v.pos.State = stateReadSubstr
		return reactStop, nil

	case proc.OpEndReadStaticLengthBlob:
		e := v.emit(ElemStaticLengthBlobEnd)
		e.DataType, e.Member = instr.DataType, instr.Member
		return reactFetchStop, nil

	case proc.OpBeginReadDynamicLengthBlob:
		if err := v.alignHead(instr.Align); err != nil {
			return 0, err
		}
		length := int64(v.pos.SavedVal(instr.SavedValueSlot))
		e := v.emit(ElemDynamicLengthBlobBegin)
		e.DataType, e.Member, e.Len = instr.DataType, instr.Member, length
		v.pos.GotoNextInstr()
		v.pos.pushChunkFrame(emptyProc, length, ElemBlobSection)
		v.pos.State = stateReadSubstr
		return reactStop, nil

	case proc.OpEndReadDynamicLengthBlob:
		e := v.emit(ElemDynamicLengthBlobEnd)
		e.DataType, e.Member = instr.DataType, instr.Member
		return reactFetchStop, nil

	case proc.OpBeginReadVariant:
		selector := v.pos.SavedVal(instr.SavedValueSlot)
		opt, err := v.selectVariantOption(instr, selector)
		if err != nil {
			return 0, err
		}
		e := v.emit(ElemVariantBegin)
		e.DataType, e.Member, e.SelectorVal = instr.DataType, instr.Member, int64(selector)
		v.pos.GotoNextInstr()
		v.pos.push(opt.Sub)
		v.pos.State = stateExecInstr
		return reactStop, nil

	case proc.OpEndReadVariant:
		e := v.emit(ElemVariantEnd)
		e.DataType, e.Member = instr.DataType, instr.Member
		return reactFetchStop, nil

	case proc.OpBeginReadOptional:
		present := v.optionalPresent(instr)
		e := v.emit(ElemOptionalBegin)
		e.DataType, e.Member, e.BoolVal = instr.DataType, instr.Member, present
		v.pos.GotoNextInstr()
		if present {
			v.pos.push(instr.Sub)
			v.pos.State = stateExecInstr
		}
		return reactStop, nil

	case proc.OpEndReadOptional:
		e := v.emit(ElemOptionalEnd)
		e.DataType, e.Member = instr.DataType, instr.Member
		return reactFetchStop, nil

	case proc.OpDecrRemaining:
		v.pos.top().remElems--
		return reactNext, nil

	case proc.OpSaveVal:
		v.pos.SaveVal(instr.SaveSlot)
		return reactNext, nil

	case proc.OpSetCurId:
		v.pos.CurId = v.pos.LastIntValU
		return reactNext, nil

	case proc.OpSetDst:
		id := v.pos.CurId
		if instr.FixedId != nil {
			id = *instr.FixedId
		}
		dp := v.pos.PktProc.DsProcByID(id)
		if dp == nil {
			return 0, errs.New(errs.UnknownDataStreamType, v.pos.HeadOffsetInElemSeqBits())
		}
		v.pos.CurDsPktProc = dp
		return reactNext, nil

	case proc.OpSetErt:
		id := v.pos.CurId
		if instr.FixedId != nil {
			id = *instr.FixedId
		}
		ep := v.pos.CurDsPktProc.ErProcByID(id)
		if ep == nil {
			return 0, errs.New(errs.UnknownEventRecordType, v.pos.HeadOffsetInElemSeqBits())
		}
		v.pos.CurErProc = ep
		return reactNext, nil

	case proc.OpSetDsId:
		v.pos.PendingDsId = v.pos.LastIntValU
		v.pos.PendingHasDsId = true
		return reactNext, nil

	case proc.OpSetPktSeqNum:
		v.pos.PendingPktInfo.OriginIndex = v.pos.LastIntValU
		v.pos.PendingPktInfo.HasOriginIndex = true
		return reactNext, nil

	case proc.OpSetDiscardedCounterSnap:
		v.pos.PendingPktInfo.DiscardedErCounterSnap = v.pos.LastIntValU
		v.pos.PendingPktInfo.HasDiscardedErCounterSnap = true
		return reactNext, nil

	case proc.OpSetPktMagicNumber:
		e := v.emit(ElemPacketMagicNumber)
		e.UintVal = v.pos.LastIntValU
		return reactFetchStop, nil

	case proc.OpSetPktTotalLen:
		val := int64(v.pos.LastIntValU)
		if val%8 != 0 {
			return 0, errs.New(errs.ExpectedPacketTotalLengthNotMultipleOf8, v.pos.HeadOffsetInElemSeqBits())
		}
		if val < v.pos.HeadOffsetInCurPktBits {
			return 0, errs.New(errs.ExpectedPacketLengthLessThanOffsetInPacket, v.pos.HeadOffsetInElemSeqBits())
		}
		if v.pos.ExpectedPktContentLenBits != unsetLen && val < v.pos.ExpectedPktContentLenBits {
			return 0, errs.New(errs.ExpectedPacketTotalLengthLessThanContent, v.pos.HeadOffsetInElemSeqBits())
		}
		v.pos.ExpectedPktTotalLenBits = val
		if v.pos.ExpectedPktContentLenBits == unsetLen {
			v.pos.ExpectedPktContentLenBits = val
		}
		return reactNext, nil

	case proc.OpSetPktContentLen:
		val := int64(v.pos.LastIntValU)
		if val < v.pos.HeadOffsetInCurPktBits {
			return 0, errs.New(errs.ExpectedPacketLengthLessThanOffsetInPacket, v.pos.HeadOffsetInElemSeqBits())
		}
		if v.pos.ExpectedPktTotalLenBits != unsetLen && val > v.pos.ExpectedPktTotalLenBits {
			return 0, errs.New(errs.ExpectedPacketTotalLengthLessThanContent, v.pos.HeadOffsetInElemSeqBits())
		}
		v.pos.ExpectedPktContentLenBits = val
		return reactNext, nil

	case proc.OpSetPktEndDefClkVal:
		// Unlike OpUpdateDefClkVal, this role stores the raw last-read
		// value verbatim: no rollover reconstruction, and it never
		// touches the running default clock value.
		v.pos.PendingPktInfo.EndDefClkVal = v.pos.LastIntValU
		v.pos.PendingPktInfo.HasEndDefClkVal = true
		return reactNext, nil

	case proc.OpUpdateDefClkVal:
		lenBits := instr.ClockFastPathLenBits
		if lenBits == 0 {
			lenBits = 64
		}
		val := v.pos.UpdateDefClkVal(lenBits)
		e := v.emit(ElemDefaultClockValue)
		e.ClockVal, e.HasClockVal = val, true
		return reactFetchStop, nil

	case proc.OpEmitDsInfo:
		e := v.emit(ElemDataStreamInfo)
		if v.pos.CurDsPktProc != nil {
			e.Dst = v.pos.CurDsPktProc.Dst
		}
		e.DsId, e.HasDsId = v.pos.PendingDsId, v.pos.PendingHasDsId
		return reactFetchStop, nil

	case proc.OpEmitPacketInfo:
		info := v.pos.PendingPktInfo
		info.ExpectedTotalLenBits, info.HasExpectedTotalLenBits = 0, false
		info.ExpectedContentLenBits, info.HasExpectedContentLenBits = 0, false
		if v.pos.ExpectedPktTotalLenBits != unsetLen {
			info.ExpectedTotalLenBits, info.HasExpectedTotalLenBits = uint64(v.pos.ExpectedPktTotalLenBits), true
		}
		if v.pos.ExpectedPktContentLenBits != unsetLen {
			info.ExpectedContentLenBits, info.HasExpectedContentLenBits = uint64(v.pos.ExpectedPktContentLenBits), true
		}
		e := v.emit(ElemPacketInfo)
		e.PktInfo = info
		return reactFetchStop, nil

	case proc.OpEmitErInfo:
		e := v.emit(ElemEventRecordInfo)
		if v.pos.CurErProc != nil {
			e.Ert = v.pos.CurErProc.Ert
		}
		return reactFetchStop, nil

	case proc.OpEndOfPktPreambleProc:
		v.pos.pop()
		if v.pos.CurDsPktProc == nil {
			v.pos.State = stateEndPktContent
			return reactChangeState, nil
		}
		v.pos.LoadNewProc(v.pos.CurDsPktProc.PacketPreamble)
		return reactCur, nil

	case proc.OpEndOfDsPktPreambleProc:
		v.pos.pop()
		v.pos.State = stateBeginEr
		return reactChangeState, nil

	case proc.OpEndOfDsErPreambleProc:
		v.pos.pop()
		if v.pos.CurErProc == nil {
			v.pos.CurErProc = v.pos.CurDsPktProc.SingleErProc()
		}
		if v.pos.CurErProc == nil {
			return 0, errs.New(errs.UnknownEventRecordType, v.pos.HeadOffsetInElemSeqBits())
		}
		v.pos.LoadNewProc(v.pos.CurErProc.Proc)
		return reactCur, nil

	case proc.OpEndOfErProc:
		v.pos.pop()
		v.pos.State = stateEndEr
		return reactChangeState, nil

	default:
		return 0, fmt.Errorf("vm: unhandled instruction kind %s", instr.Kind)
	}
}

// selectVariantOption finds the option whose range set contains
// selector, interpreting it as signed or unsigned per the instruction.
func (v *Vm) selectVariantOption(instr *proc.Instr, selector uint64) (*proc.VariantOption, error) {
	sv := int64(selector)
	for i := range instr.Options {
		if instr.Options[i].Contains(sv) {
			return &instr.Options[i], nil
		}
	}
	if instr.SelectorSigned {
		return nil, errs.New(errs.InvalidVariantSignedSelector, v.pos.HeadOffsetInElemSeqBits())
	}
	return nil, errs.New(errs.InvalidVariantUnsignedSelector, v.pos.HeadOffsetInElemSeqBits())
}

// optionalPresent reports whether instr's payload was actually
// encoded, per its boolean or integer-range selector.
func (v *Vm) optionalPresent(instr *proc.Instr) bool {
	if instr.OptIsBoolSelector {
		return v.pos.SavedVal(instr.SavedValueSlot) != 0
	}
	sv := int64(v.pos.SavedVal(instr.SavedValueSlot))
	for _, r := range instr.IntRanges {
		if r.Contains(sv) {
			return true
		}
	}
	return false
}
