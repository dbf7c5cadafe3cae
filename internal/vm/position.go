package vm

import (
	"github.com/kienanstewart/yactfr/internal/proc"
	"github.com/kienanstewart/yactfr/metadata"
)

type state int

const (
	stateBeginPkt state = iota
	stateBeginPktContent
	stateEndPktContent
	stateEndPkt
	stateBeginEr
	stateEndEr
	stateExecInstr
	stateExecArrayInstr
	stateReadUuidByte
	stateSetTraceTypeUuid
	stateReadSubstrUntilNull
	stateReadSubstr
	stateEndStr
	stateContinueSkipPaddingBits
	stateContinueSkipContentPaddingBits
)

// unsetLen marks an as-yet-unknown packet length, mirroring the
// original's SIZE_UNSET sentinel.
const unsetLen = -1

// unsetSlot marks a saved-value slot that was never written.
const unsetSlot = ^uint64(0)

// frame is one stack-machine activation: the procedure being walked,
// the index of the next instruction to execute, the state to resume
// when it's exhausted, and (for array frames) the remaining element
// count.
type frame struct {
	proc        *proc.Proc
	idx         int
	parentState state
	remElems    int64

	// chunkKind is the element kind stateReadSubstr emits for this
	// frame's remaining-bytes run: ElemSubstring for string reads,
	// ElemBlobSection for blob reads. Unused by frames that don't route
	// through stateReadSubstr.
	chunkKind ElementKind
}

// Position is the whole state of a VM except for its data buffer
// (§4.E): offsets, saved values, the frame stack, and the one Element
// value NextElement mutates and returns a pointer to. It is a plain
// Go value — saving and restoring a position is a struct copy, with no
// pointer-rebinding step, since the Element it owns is copied along
// with it (§9 Design Notes).
type Position struct {
	PktProc *proc.PacketProc

	CurPktOffsetInElemSeqBits int64
	HeadOffsetInCurPktBits    int64

	State             state
	PostSkipBitsState state
	PostEndStrState   state
	RemBitsToSkip     int64

	LastBoSet bool
	LastBo    metadata.ByteOrder

	LastIntValU uint64
	LastIntValI int64

	CurId        uint64
	CurDsPktProc *proc.DataStreamPacketProc
	CurErProc    *proc.ErProc

	UUID      [16]byte
	UUIDIndex int

	ExpectedPktTotalLenBits   int64
	ExpectedPktContentLenBits int64

	Stack []frame

	SavedVals []uint64

	DefClkVal uint64

	// PendingDsId and PendingHasDsId hold the data stream ID set by the
	// silent OpSetDsId instruction until OpEmitDsInfo surfaces it on an
	// ElemDataStreamInfo element.
	PendingDsId    uint64
	PendingHasDsId bool

	// PendingPktInfo accumulates the packet-scope fields the silent
	// OpSetPktSeqNum/OpSetDiscardedCounterSnap/OpSetPktEndDefClkVal
	// instructions write, until OpEmitPacketInfo surfaces it on an
	// ElemPacketInfo element.
	PendingPktInfo PacketInfo

	// PendingEndKind is the element kind the currently in-flight
	// null-terminated string read ends with, emitted by stateEndStr;
	// static- and dynamic-length string reads do not pass through
	// stateEndStr and end with their own End instruction instead.
	PendingEndKind ElementKind

	Elem Element
}

// NewPosition allocates a Position sized for pp.
func NewPosition(pp *proc.PacketProc) *Position {
	p := &Position{PktProc: pp}
	p.SavedVals = make([]uint64, pp.SavedValsCount)
	p.ResetForNewPacket()
	return p
}

func (p *Position) top() *frame {
	return &p.Stack[len(p.Stack)-1]
}

func (p *Position) push(pr *proc.Proc) {
	p.Stack = append(p.Stack, frame{proc: pr, parentState: p.State})
}

func (p *Position) pop() {
	p.Stack = p.Stack[:len(p.Stack)-1]
}

// pushChunkFrame pushes a frame with no procedure of its own, used by
// the string/blob reading states: remElems counts down as bytes
// are consumed and kind selects which element stateReadSubstr emits
// for each chunk.
func (p *Position) pushChunkFrame(pr *proc.Proc, remElems int64, kind ElementKind) {
	p.push(pr)
	f := p.top()
	f.remElems = remElems
	f.chunkKind = kind
}

func (p *Position) setParentStateAndPop() {
	p.State = p.top().parentState
	p.pop()
}

// LoadNewProc starts a fresh, empty stack with pr as its sole frame.
func (p *Position) LoadNewProc(pr *proc.Proc) {
	p.Stack = p.Stack[:0]
	p.push(pr)
}

// NextInstr returns the instruction the top frame is about to execute,
// or nil when the top frame has run off the end of its procedure.
func (p *Position) NextInstr() *proc.Instr {
	t := p.top()
	if t.idx >= len(t.proc.Instrs) {
		return nil
	}
	return t.proc.Instrs[t.idx]
}

// GotoNextInstr advances the top frame to the next instruction.
func (p *Position) GotoNextInstr() {
	p.top().idx++
}

// GotoNextArrayElemInstr advances the top (array) frame's instruction
// pointer, wrapping to the start of its sub-procedure when it runs off
// the end. The remaining-element count itself is decremented by the
// array sub-procedure's own DecrRemaining instruction, not here.
func (p *Position) GotoNextArrayElemInstr() {
	t := p.top()
	t.idx++
	if t.idx >= len(t.proc.Instrs) {
		t.idx = 0
	}
}

// SaveVal writes the last-read integer value into slot.
func (p *Position) SaveVal(slot int) {
	p.SavedVals[slot] = p.LastIntValU
}

// SavedVal reads slot.
func (p *Position) SavedVal(slot int) uint64 {
	return p.SavedVals[slot]
}

// UpdateDefClkVal reconstructs the default clock value from a
// lenBits-wide fragment just read into LastIntValU, handling rollover
// exactly as the distilled spec's source does: if the new low bits are
// smaller than the current value's corresponding low bits, one
// rollover of the fragment's range is assumed to have occurred.
func (p *Position) UpdateDefClkVal(lenBits int) uint64 {
	if lenBits >= 64 {
		p.DefClkVal = p.LastIntValU
		return p.DefClkVal
	}

	mask := (uint64(1) << uint(lenBits)) - 1
	cur := p.DefClkVal
	curMasked := cur & mask

	if p.LastIntValU < curMasked {
		cur += mask + 1
	}

	cur &^= mask
	cur |= p.LastIntValU
	p.DefClkVal = cur
	return cur
}

// RemContentBitsInPkt returns how many content bits remain before the
// packet's declared content length, if known.
func (p *Position) RemContentBitsInPkt() int64 {
	return p.ExpectedPktContentLenBits - p.HeadOffsetInCurPktBits
}

// HeadOffsetInElemSeqBits returns the head's absolute bit offset.
func (p *Position) HeadOffsetInElemSeqBits() int64 {
	return p.CurPktOffsetInElemSeqBits + p.HeadOffsetInCurPktBits
}

// ResetForNewPacket clears all per-packet state, matching
// VmPos::resetForNewPkt.
func (p *Position) ResetForNewPacket() {
	p.HeadOffsetInCurPktBits = 0
	p.State = stateBeginPkt
	p.LastBoSet = false
	p.CurDsPktProc = nil
	p.CurErProc = nil
	p.ExpectedPktTotalLenBits = unsetLen
	p.ExpectedPktContentLenBits = unsetLen
	p.Stack = p.Stack[:0]
	p.DefClkVal = 0
	p.PendingDsId = 0
	p.PendingHasDsId = false
	p.PendingPktInfo = PacketInfo{}
	for i := range p.SavedVals {
		p.SavedVals[i] = unsetSlot
	}
}
