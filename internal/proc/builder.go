package proc

import (
	"fmt"
	"strings"

	"github.com/kienanstewart/yactfr/metadata"
)

// Build lowers a validated metadata.TraceType into a *PacketProc: the
// flat instruction trees the VM walks to decode packets of this trace
// (§4.D). It calls tt.Validate itself so a caller can pass a raw
// programmatically-built TraceType directly.
func Build(tt *metadata.TraceType) (*PacketProc, error) {
	if err := tt.Validate(); err != nil {
		return nil, fmt.Errorf("proc: invalid trace type: %w", err)
	}

	b := &builder{
		tt:    tt,
		slots: make(map[*Instr]int),
	}
	return b.buildTraceType()
}

// builder holds the state threaded through one Build call: the slot
// table (shared trace-wide, since saved values live in one dense
// per-packet array regardless of which data stream or event record
// type is being decoded) and the running next-slot counter.
type builder struct {
	tt       *metadata.TraceType
	slots    map[*Instr]int
	nextSlot int

	// sawDstRole is set when a packet header member carries
	// RoleDataStreamTypeId, i.e. the trace has an explicit data stream
	// discriminator field. sawErtRole is the same thing for
	// RoleEventRecordTypeId, reset per data stream type.
	sawDstRole bool
	sawErtRole bool
}

// leafLoc is where a scalar leaf field was lowered to: which procedure
// owns its read instruction, and the instruction itself. Array,
// variant and optional locations resolve to one of these so the
// builder can attach a save-value instruction right after the read.
type leafLoc struct {
	proc  *Proc
	instr *Instr
}

// leafKey joins a scope and dotted path the same way metadata.Validate
// keys its own position index, so the two stay trivially comparable
// when debugging.
func leafKey(scope metadata.Scope, path []string) string {
	return scope.String() + ":" + strings.Join(path, ".")
}

func cloneLeafMap(src map[string]leafLoc) map[string]leafLoc {
	dst := make(map[string]leafLoc, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func (b *builder) buildTraceType() (*PacketProc, error) {
	pp := &PacketProc{
		TraceType:  b.tt,
		dsProcsMap: make(map[uint64]*DataStreamPacketProc),
	}

	headerLeaves := make(map[string]leafLoc)
	preamble := &Proc{}
	preamble.push(&Instr{Kind: OpBeginReadScope, Scope: metadata.ScopePacketHeader})
	if b.tt.PacketHeader != nil {
		if err := b.lowerStructMembers(b.tt.PacketHeader, metadata.ScopePacketHeader, nil, preamble, headerLeaves); err != nil {
			return nil, err
		}
	}
	preamble.push(&Instr{Kind: OpEndReadScope, Scope: metadata.ScopePacketHeader})
	if !b.sawDstRole && len(b.tt.DataStreams) == 1 {
		id := b.tt.DataStreams[0].Id
		preamble.push(&Instr{Kind: OpSetDst, FixedId: &id})
	}
	preamble.push(&Instr{Kind: OpEndOfPktPreambleProc})
	pp.Preamble = preamble

	for _, ds := range b.tt.DataStreams {
		dp, err := b.buildDataStreamType(ds, headerLeaves)
		if err != nil {
			return nil, err
		}
		pp.addDsProc(ds.Id, dp)
	}

	pp.SavedValsCount = b.nextSlot
	return pp, nil
}

func (b *builder) buildDataStreamType(ds *metadata.DataStreamType, headerLeaves map[string]leafLoc) (*DataStreamPacketProc, error) {
	dp := newDataStreamPacketProc(ds)
	dp.ErAlign = erAlignFor(ds)
	dsLeaves := cloneLeafMap(headerLeaves)
	b.sawErtRole = false

	pktPreamble := &Proc{}
	pktPreamble.push(&Instr{Kind: OpBeginReadScope, Scope: metadata.ScopePacketContext})
	if ds.PacketContext != nil {
		if err := b.lowerStructMembers(ds.PacketContext, metadata.ScopePacketContext, nil, pktPreamble, dsLeaves); err != nil {
			return nil, err
		}
	}
	pktPreamble.push(&Instr{Kind: OpEndReadScope, Scope: metadata.ScopePacketContext})
	pktPreamble.push(&Instr{Kind: OpEmitDsInfo})
	pktPreamble.push(&Instr{Kind: OpEmitPacketInfo})
	pktPreamble.push(&Instr{Kind: OpEndOfDsPktPreambleProc})
	dp.PacketPreamble = pktPreamble

	erPreamble := &Proc{}
	erPreamble.push(&Instr{Kind: OpBeginReadScope, Scope: metadata.ScopeEventRecordHeader})
	if ds.EventRecordHeader != nil {
		if err := b.lowerStructMembers(ds.EventRecordHeader, metadata.ScopeEventRecordHeader, nil, erPreamble, dsLeaves); err != nil {
			return nil, err
		}
	}
	erPreamble.push(&Instr{Kind: OpEndReadScope, Scope: metadata.ScopeEventRecordHeader})
	erPreamble.push(&Instr{Kind: OpBeginReadScope, Scope: metadata.ScopeEventRecordCommonContext})
	if ds.EventRecordCommonCtx != nil {
		if err := b.lowerStructMembers(ds.EventRecordCommonCtx, metadata.ScopeEventRecordCommonContext, nil, erPreamble, dsLeaves); err != nil {
			return nil, err
		}
	}
	erPreamble.push(&Instr{Kind: OpEndReadScope, Scope: metadata.ScopeEventRecordCommonContext})
	if !b.sawErtRole && len(ds.EventRecordTypes) == 1 {
		id := ds.EventRecordTypes[0].Id
		erPreamble.push(&Instr{Kind: OpSetErt, FixedId: &id})
	}
	erPreamble.push(&Instr{Kind: OpEmitErInfo})
	erPreamble.push(&Instr{Kind: OpEndOfDsErPreambleProc})
	dp.ErPreamble = erPreamble

	for _, ert := range ds.EventRecordTypes {
		ep, err := b.buildEventRecordType(ert, dsLeaves)
		if err != nil {
			return nil, err
		}
		dp.addErProc(ert.Id, &ErProc{Ert: ert, Proc: ep})
	}

	return dp, nil
}

func (b *builder) buildEventRecordType(ert *metadata.EventRecordType, dsLeaves map[string]leafLoc) (*Proc, error) {
	ertLeaves := cloneLeafMap(dsLeaves)
	p := &Proc{}

	p.push(&Instr{Kind: OpBeginReadScope, Scope: metadata.ScopeEventRecordSpecificContext})
	if ert.SpecificContext != nil {
		if err := b.lowerStructMembers(ert.SpecificContext, metadata.ScopeEventRecordSpecificContext, nil, p, ertLeaves); err != nil {
			return nil, err
		}
	}
	p.push(&Instr{Kind: OpEndReadScope, Scope: metadata.ScopeEventRecordSpecificContext})

	p.push(&Instr{Kind: OpBeginReadScope, Scope: metadata.ScopeEventRecordPayload})
	if ert.Payload != nil {
		if err := b.lowerStructMembers(ert.Payload, metadata.ScopeEventRecordPayload, nil, p, ertLeaves); err != nil {
			return nil, err
		}
	}
	p.push(&Instr{Kind: OpEndReadScope, Scope: metadata.ScopeEventRecordPayload})

	p.push(&Instr{Kind: OpEndOfErProc})
	return p, nil
}

// erAlignFor derives the bit alignment an event record must start on
// from the first field it would read: its header's first member, or
// failing that its common context's first member. A data stream with
// neither is unaligned (1), matching a trace whose event records carry
// no structure of their own before the specific-context/payload pair.
func erAlignFor(ds *metadata.DataStreamType) int {
	if ds.EventRecordHeader != nil {
		if a := firstLeafAlignment(ds.EventRecordHeader); a > 1 {
			return a
		}
	}
	if ds.EventRecordCommonCtx != nil {
		if a := firstLeafAlignment(ds.EventRecordCommonCtx); a > 1 {
			return a
		}
	}
	return 1
}

func firstLeafAlignment(s *metadata.StructType) int {
	if s == nil || len(s.Members) == 0 {
		return 1
	}
	return typeAlignment(s.Members[0].Type)
}

func typeAlignment(dt *metadata.DataType) int {
	if dt == nil {
		return 1
	}
	switch dt.Kind {
	case metadata.KindFixedLengthBitArray, metadata.KindFixedLengthBool,
		metadata.KindFixedLengthSignedInt, metadata.KindFixedLengthUnsignedInt,
		metadata.KindFixedLengthFloat:
		return dt.FixedLength.Alignment
	case metadata.KindVariableLengthSignedInt, metadata.KindVariableLengthUnsignedInt, metadata.KindNullTerminatedStr:
		return 8
	case metadata.KindStruct:
		return firstLeafAlignment(dt.Struct)
	case metadata.KindStaticLengthArray, metadata.KindDynamicLengthArray,
		metadata.KindStaticLengthStr, metadata.KindDynamicLengthStr,
		metadata.KindStaticLengthBlob, metadata.KindDynamicLengthBlob:
		if dt.Array.ElementType != nil {
			return typeAlignment(dt.Array.ElementType)
		}
		return 8
	case metadata.KindVariant:
		if len(dt.Variant.Options) == 0 {
			return 1
		}
		return typeAlignment(dt.Variant.Options[0].Type)
	case metadata.KindOptional:
		return typeAlignment(dt.Optional.Type)
	default:
		return 1
	}
}

// lowerStructMembers appends one instruction sequence per member of s
// to p, in declaration order, recording every scalar leaf's location in
// leaves so later members (or later-built sibling scopes) can resolve
// references to it.
func (b *builder) lowerStructMembers(s *metadata.StructType, scope metadata.Scope, prefix []string, p *Proc, leaves map[string]leafLoc) error {
	for _, m := range s.Members {
		path := append(append([]string{}, prefix...), m.Name)
		if err := b.lowerType(m.Type, &m, scope, path, p, leaves); err != nil {
			return err
		}
	}
	return nil
}

// lowerType appends the instruction(s) decoding dt to p. member is nil
// for anonymous element/option types (array elements, variant/optional
// payloads); non-anonymous leaves are registered into leaves so a
// DataLocation elsewhere can find them.
func (b *builder) lowerType(dt *metadata.DataType, member *metadata.NamedDataType, scope metadata.Scope, path []string, p *Proc, leaves map[string]leafLoc) error {
	if dt == nil {
		return fmt.Errorf("proc: nil data type at %s", leafKey(scope, path))
	}

	switch dt.Kind {
	case metadata.KindFixedLengthBitArray:
		fl := dt.FixedLength
		p.push(&Instr{Kind: OpReadFlBitArray, DataType: dt, Member: member,
			Align: fl.Alignment, LenBits: fl.LenBits, ByteOrder: fl.ByteOrder, Reversed: fl.BitOrderRev})

	case metadata.KindFixedLengthBool:
		fl := dt.FixedLength
		p.push(&Instr{Kind: OpReadFlBool, DataType: dt, Member: member,
			Align: fl.Alignment, LenBits: fl.LenBits, ByteOrder: fl.ByteOrder, Reversed: fl.BitOrderRev})

	case metadata.KindFixedLengthSignedInt:
		fl := dt.FixedLength
		instr := p.push(&Instr{Kind: OpReadFlSignedInt, DataType: dt, Member: member,
			Align: fl.Alignment, LenBits: fl.LenBits, ByteOrder: fl.ByteOrder, Reversed: fl.BitOrderRev})
		b.registerLeaf(leaves, scope, path, p, instr)

	case metadata.KindFixedLengthUnsignedInt:
		fl := dt.FixedLength
		instr := p.push(&Instr{Kind: OpReadFlUnsignedInt, DataType: dt, Member: member,
			Align: fl.Alignment, LenBits: fl.LenBits, ByteOrder: fl.ByteOrder, Reversed: fl.BitOrderRev})
		b.registerLeaf(leaves, scope, path, p, instr)
		b.noteIdRole(fl.Role)
		b.appendRoleInstr(p, fl.Role, fl.LenBits)

	case metadata.KindFixedLengthFloat:
		fl := dt.FixedLength
		p.push(&Instr{Kind: OpReadFlFloat, DataType: dt, Member: member,
			Align: fl.Alignment, LenBits: fl.LenBits, ByteOrder: fl.ByteOrder, Reversed: fl.BitOrderRev})

	case metadata.KindVariableLengthSignedInt:
		instr := p.push(&Instr{Kind: OpReadVlSignedInt, DataType: dt, Member: member, Align: 8})
		b.registerLeaf(leaves, scope, path, p, instr)

	case metadata.KindVariableLengthUnsignedInt:
		vl := dt.VariableLength
		instr := p.push(&Instr{Kind: OpReadVlUnsignedInt, DataType: dt, Member: member, Align: 8})
		b.registerLeaf(leaves, scope, path, p, instr)
		b.noteIdRole(vl.Role)
		b.appendRoleInstr(p, vl.Role, 0)

	case metadata.KindNullTerminatedStr:
		nt := dt.NullTerminated
		p.push(&Instr{Kind: OpReadNullTerminatedStr, DataType: dt, Member: member, Align: 8, Encoding: nt.Encoding})

	case metadata.KindStaticLengthStr:
		arr := dt.Array
		p.push(&Instr{Kind: OpBeginReadStaticLengthStr, DataType: dt, Member: member, Align: 8, StaticLen: arr.StaticLen, Encoding: arr.Encoding})
		p.push(&Instr{Kind: OpEndReadStaticLengthStr, DataType: dt, Member: member})

	case metadata.KindDynamicLengthStr:
		arr := dt.Array
		slot, err := b.resolveSlot(leaves, arr.LengthLoc)
		if err != nil {
			return err
		}
		p.push(&Instr{Kind: OpBeginReadDynamicLengthStr, DataType: dt, Member: member, Align: 8, SavedValueSlot: slot, Encoding: arr.Encoding})
		p.push(&Instr{Kind: OpEndReadDynamicLengthStr, DataType: dt, Member: member})

	case metadata.KindStaticLengthBlob:
		arr := dt.Array
		if arr.IsMetadataStreamUuid {
			p.push(&Instr{Kind: OpBeginReadUuid, DataType: dt, Member: member, Align: 8})
			break
		}
		p.push(&Instr{Kind: OpBeginReadStaticLengthBlob, DataType: dt, Member: member, Align: 8, StaticLen: arr.StaticLen})
		p.push(&Instr{Kind: OpEndReadStaticLengthBlob, DataType: dt, Member: member})

	case metadata.KindDynamicLengthBlob:
		arr := dt.Array
		slot, err := b.resolveSlot(leaves, arr.LengthLoc)
		if err != nil {
			return err
		}
		p.push(&Instr{Kind: OpBeginReadDynamicLengthBlob, DataType: dt, Member: member, Align: 8, SavedValueSlot: slot})
		p.push(&Instr{Kind: OpEndReadDynamicLengthBlob, DataType: dt, Member: member})

	case metadata.KindStruct:
		begin := p.push(&Instr{Kind: OpBeginReadStruct, DataType: dt, Member: member})
		sub := &Proc{}
		if err := b.lowerStructMembers(dt.Struct, scope, path, sub, leaves); err != nil {
			return err
		}
		begin.Sub = sub
		p.push(&Instr{Kind: OpEndReadStruct, DataType: dt, Member: member})

	case metadata.KindStaticLengthArray:
		arr := dt.Array
		if arr.IsMetadataStreamUuid {
			p.push(&Instr{Kind: OpBeginReadUuid, DataType: dt, Member: member, Align: 8})
			break
		}
		begin := p.push(&Instr{Kind: OpBeginReadStaticLengthArray, DataType: dt, Member: member, StaticLen: arr.StaticLen})
		sub := &Proc{}
		elemPath := append(append([]string{}, path...), "[]")
		if err := b.lowerType(arr.ElementType, nil, scope, elemPath, sub, leaves); err != nil {
			return err
		}
		sub.push(&Instr{Kind: OpDecrRemaining})
		begin.Sub = sub
		p.push(&Instr{Kind: OpEndReadStaticLengthArray, DataType: dt, Member: member})

	case metadata.KindDynamicLengthArray:
		arr := dt.Array
		slot, err := b.resolveSlot(leaves, arr.LengthLoc)
		if err != nil {
			return err
		}
		begin := p.push(&Instr{Kind: OpBeginReadDynamicLengthArray, DataType: dt, Member: member, SavedValueSlot: slot})
		sub := &Proc{}
		elemPath := append(append([]string{}, path...), "[]")
		if err := b.lowerType(arr.ElementType, nil, scope, elemPath, sub, leaves); err != nil {
			return err
		}
		sub.push(&Instr{Kind: OpDecrRemaining})
		begin.Sub = sub
		p.push(&Instr{Kind: OpEndReadDynamicLengthArray, DataType: dt, Member: member})

	case metadata.KindVariant:
		v := dt.Variant
		slot, err := b.resolveSlot(leaves, v.SelectorLoc)
		if err != nil {
			return err
		}
		begin := &Instr{Kind: OpBeginReadVariant, DataType: dt, Member: member, SavedValueSlot: slot, SelectorSigned: v.SelectorIsSigned}
		for _, opt := range v.Options {
			sub := &Proc{}
			optPath := append(append([]string{}, path...), opt.Name)
			if err := b.lowerType(opt.Type, nil, scope, optPath, sub, leaves); err != nil {
				return err
			}
			begin.Options = append(begin.Options, VariantOption{Ranges: opt.Ranges, Sub: sub})
		}
		p.push(begin)
		p.push(&Instr{Kind: OpEndReadVariant, DataType: dt, Member: member})

	case metadata.KindOptional:
		o := dt.Optional
		begin := &Instr{Kind: OpBeginReadOptional, DataType: dt, Member: member}
		if o.BoolSelectorLoc != nil {
			slot, err := b.resolveSlot(leaves, o.BoolSelectorLoc)
			if err != nil {
				return err
			}
			begin.SavedValueSlot = slot
			begin.OptIsBoolSelector = true
		} else {
			slot, err := b.resolveSlot(leaves, o.IntSelectorLoc)
			if err != nil {
				return err
			}
			begin.SavedValueSlot = slot
			begin.SelectorSigned = o.IntSelectorSigned
			begin.IntRanges = o.IntRanges
		}
		sub := &Proc{}
		if err := b.lowerType(o.Type, nil, scope, append(append([]string{}, path...), "?"), sub, leaves); err != nil {
			return err
		}
		begin.Sub = sub
		p.push(begin)
		p.push(&Instr{Kind: OpEndReadOptional, DataType: dt, Member: member})

	default:
		return fmt.Errorf("proc: unhandled data type kind %s at %s", dt.Kind, leafKey(scope, path))
	}

	return nil
}

// registerLeaf records where a scalar leaf was lowered to, keyed the
// same way a DataLocation elsewhere will look it up.
func (b *builder) registerLeaf(leaves map[string]leafLoc, scope metadata.Scope, path []string, p *Proc, instr *Instr) {
	leaves[leafKey(scope, path)] = leafLoc{proc: p, instr: instr}
}

// resolveSlot finds the leaf loc points at (already validated to
// exist and precede the referrer) and returns its saved-value slot,
// allocating one and splicing a save-value instruction right after the
// leaf's read on first reference.
func (b *builder) resolveSlot(leaves map[string]leafLoc, loc *metadata.DataLocation) (int, error) {
	lf, ok := leaves[leafKey(loc.Scope, loc.Path)]
	if !ok {
		return 0, fmt.Errorf("proc: unresolved location %s", leafKey(loc.Scope, loc.Path))
	}
	if slot, ok := b.slots[lf.instr]; ok {
		return slot, nil
	}
	slot := b.nextSlot
	b.nextSlot++
	b.slots[lf.instr] = slot
	lf.proc.insertAfter(lf.instr, &Instr{Kind: OpSaveVal, SaveSlot: slot})
	return slot, nil
}

// noteIdRole records that this trace (or, for the event-record-type
// role, this data stream type) has an explicit discriminator field, so
// buildTraceType/buildDataStreamType don't need to synthesize a
// FixedId fallback for it.
func (b *builder) noteIdRole(role metadata.Role) {
	switch role {
	case metadata.RoleDataStreamTypeId:
		b.sawDstRole = true
	case metadata.RoleEventRecordTypeId:
		b.sawErtRole = true
	}
}

// appendRoleInstr appends the side-effect instruction a role-bearing
// integer field triggers right after its own read, per §4.D step 3.
// fastPathLenBits is the fixed width of the field that just shadowed a
// default-clock-timestamp role, or 0 for the generic (variable-length)
// path.
func (b *builder) appendRoleInstr(p *Proc, role metadata.Role, fastPathLenBits int) {
	switch role {
	case metadata.RoleNone:
	case metadata.RolePacketMagicNumber:
		p.push(&Instr{Kind: OpSetPktMagicNumber})
	case metadata.RoleDataStreamTypeId:
		p.push(&Instr{Kind: OpSetCurId})
		p.push(&Instr{Kind: OpSetDst})
	case metadata.RoleDataStreamId:
		p.push(&Instr{Kind: OpSetDsId})
	case metadata.RolePacketTotalLength:
		p.push(&Instr{Kind: OpSetPktTotalLen})
	case metadata.RolePacketContentLength:
		p.push(&Instr{Kind: OpSetPktContentLen})
	case metadata.RolePacketSequenceNumber:
		p.push(&Instr{Kind: OpSetPktSeqNum})
	case metadata.RoleDiscardedEventRecordCounterSnapshot:
		p.push(&Instr{Kind: OpSetDiscardedCounterSnap})
	case metadata.RolePacketEndDefaultClockValue:
		p.push(&Instr{Kind: OpSetPktEndDefClkVal})
	case metadata.RoleDefaultClockTimestamp:
		p.push(&Instr{Kind: OpUpdateDefClkVal, ClockFastPathLenBits: fastPathLenBits})
	case metadata.RoleEventRecordTypeId:
		p.push(&Instr{Kind: OpSetCurId})
		p.push(&Instr{Kind: OpSetErt})
	}
}
