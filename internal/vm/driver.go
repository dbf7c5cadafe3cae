package vm

import (
	"go.uber.org/zap"

	"github.com/kienanstewart/yactfr/internal/errs"
	"github.com/kienanstewart/yactfr/internal/logging"
	"github.com/kienanstewart/yactfr/internal/proc"
	"github.com/kienanstewart/yactfr/metadata"
)

// DataSource is the byte-addressable backing store a Vm decodes
// against. Data returns a borrow valid only until the next call to
// Data on the same source; a nil slice with a nil error signals end of
// stream at byteOffset.
type DataSource interface {
	Data(byteOffset int64, lengthHint int) ([]byte, error)
}

// StatsSink receives decode-time counters. The VM never imports a
// metrics backend directly; anything satisfying this interface
// (including a no-op) can observe it.
type StatsSink interface {
	IncPacketsDecoded()
	IncEventRecordsDecoded()
	IncErrors(kind string)
	AddBytesRead(n int64)
	SetHeadOffsetBits(bits int64)
}

type noOpStats struct{}

func (noOpStats) IncPacketsDecoded()      {}
func (noOpStats) IncEventRecordsDecoded() {}
func (noOpStats) IncErrors(string)        {}
func (noOpStats) AddBytesRead(int64)      {}
func (noOpStats) SetHeadOffsetBits(int64) {}

// Vm drives a Position against a DataSource, one element at a time.
// It owns the read buffer itself (not the Position) since the buffer
// is a cache over the data source and has no business surviving a
// SavePosition/RestorePosition round trip.
type Vm struct {
	src     DataSource
	pktProc *proc.PacketProc
	pos     *Position
	logger  logging.Logger
	stats   StatsSink

	buf                   []byte
	bufOffsetInCurPktBits int64
	bufLenBits            int64
}

// New creates a Vm reading from src against the compiled pktProc.
// A nil logger or stats sink is replaced with a no-op implementation.
func New(src DataSource, pktProc *proc.PacketProc, logger logging.Logger, stats StatsSink) *Vm {
	if logger == nil {
		logger = logging.NoOp{}
	}
	if stats == nil {
		stats = noOpStats{}
	}
	return &Vm{
		src:     src,
		pktProc: pktProc,
		pos:     NewPosition(pktProc),
		logger:  logger,
		stats:   stats,
	}
}

// Position exposes the VM's current position for SavePosition/
// RestorePosition support in the public package.
func (v *Vm) Position() *Position { return v.pos }

// SetPosition replaces the VM's position wholesale, e.g. after a
// RestorePosition call.
func (v *Vm) SetPosition(p *Position) {
	v.pos = p
	v.buf = nil
	v.bufLenBits = 0
	v.bufOffsetInCurPktBits = p.HeadOffsetInCurPktBits
}

// NextElement resumes the state machine and returns the next Element,
// or nil when the source is exhausted.
func (v *Vm) NextElement() (*Element, error) {
	for {
		emitted, stop, err := v.handleState()
		if err != nil {
			kind := classifyErrKind(err)
			v.stats.IncErrors(kind)
			v.logger.Error("decode error",
				zap.String("kind", kind),
				zap.Int64("headOffsetBits", v.pos.HeadOffsetInElemSeqBits()),
				zap.Error(err))
			return nil, err
		}
		if stop {
			if v.pos.State == stateDone {
				return nil, nil
			}
			v.stats.SetHeadOffsetBits(v.pos.HeadOffsetInElemSeqBits())
			return &v.pos.Elem, nil
		}
		_ = emitted
	}
}

func classifyErrKind(err error) string {
	if de, ok := err.(*errs.DecodeError); ok {
		return de.Kind.String()
	}
	return "unknown"
}

const stateDone state = -1

// handleState dispatches on the current state. It returns stop=true
// when an element was emitted (or the sequence ended) and the caller
// should return; stop=false tells the caller to loop, matching the
// original's boolean "done" return from each state handler.
func (v *Vm) handleState() (emitted bool, stop bool, err error) {
	switch v.pos.State {
	case stateExecInstr:
		return v.stateExecInstr()
	case stateExecArrayInstr:
		return v.stateExecArrayInstr()
	case stateBeginEr:
		return v.stateBeginEr()
	case stateEndEr:
		return v.stateEndEr()
	case stateReadSubstr:
		return v.stateReadSubstr()
	case stateReadSubstrUntilNull:
		return v.stateReadSubstrUntilNull()
	case stateEndStr:
		return v.stateEndStr()
	case stateContinueSkipPaddingBits:
		return v.stateContinueSkipPaddingBitsState(false)
	case stateContinueSkipContentPaddingBits:
		return v.stateContinueSkipPaddingBitsState(true)
	case stateReadUuidByte:
		return v.stateReadUuidByte()
	case stateSetTraceTypeUuid:
		return v.stateSetTraceTypeUuid()
	case stateBeginPkt:
		return v.stateBeginPkt()
	case stateBeginPktContent:
		return v.stateBeginPktContent()
	case stateEndPktContent:
		return v.stateEndPktContent()
	case stateEndPkt:
		return v.stateEndPkt()
	default:
		return false, false, errs.Newf(errs.PrematureEndOfData, v.pos.HeadOffsetInElemSeqBits(), "unknown VM state")
	}
}

func (v *Vm) emit(kind ElementKind) *Element {
	v.pos.Elem = Element{Kind: kind}
	return &v.pos.Elem
}

// --- buffer management -----------------------------------------------

func (v *Vm) remBitsInBuf() int64 {
	return (v.bufOffsetInCurPktBits + v.bufLenBits) - v.pos.HeadOffsetInCurPktBits
}

func (v *Vm) bufAtHead() []byte {
	offsetBytes := (v.pos.HeadOffsetInCurPktBits - v.bufOffsetInCurPktBits) / 8
	return v.buf[offsetBytes:]
}

func (v *Vm) consumeExistingBits(n int64) {
	v.pos.HeadOffsetInCurPktBits += n
}

func (v *Vm) resetBuffer() {
	v.buf = nil
	v.bufLenBits = 0
	v.bufOffsetInCurPktBits = v.pos.HeadOffsetInCurPktBits
}

func (v *Vm) newDataBlock(offsetInElemSeqBytes int64, sizeBytes int) (bool, error) {
	data, err := v.src.Data(offsetInElemSeqBytes, sizeBytes)
	if err != nil {
		return false, err
	}
	if data == nil {
		return false, nil
	}
	v.buf = data
	v.bufOffsetInCurPktBits = offsetInElemSeqBytes*8 - v.pos.CurPktOffsetInElemSeqBits
	v.bufLenBits = int64(len(data)) * 8
	v.stats.AddBytesRead(int64(len(data)))
	return true, nil
}

func (v *Vm) tryHaveBits(bits int64) (bool, error) {
	if bits <= v.remBitsInBuf() {
		return true, nil
	}

	flooredHeadBits := v.pos.HeadOffsetInCurPktBits &^ 7
	flooredHeadBytes := flooredHeadBits / 8
	curPktOffsetBytes := v.pos.CurPktOffsetInElemSeqBits / 8
	requestOffsetBytes := curPktOffsetBytes + flooredHeadBytes
	bitInByte := v.pos.HeadOffsetInCurPktBits & 7
	sizeBytes := int((bits + 7 + bitInByte) / 8)

	return v.newDataBlock(requestOffsetBytes, sizeBytes)
}

func (v *Vm) requireBits(bits int64) error {
	ok, err := v.tryHaveBits(bits)
	if err != nil {
		return err
	}
	if !ok {
		return errs.New(errs.PrematureEndOfData, v.pos.HeadOffsetInElemSeqBits())
	}
	return nil
}

func (v *Vm) requireContentBits(bits int64) error {
	if v.pos.ExpectedPktContentLenBits != unsetLen && bits > v.pos.RemContentBitsInPkt() {
		return errs.Newf(errs.CannotDecodeBeyondPacketContent, v.pos.HeadOffsetInElemSeqBits(),
			"need %d bits, %d remain in packet content", bits, v.pos.RemContentBitsInPkt())
	}
	return v.requireBits(bits)
}

func (v *Vm) continueSkipPaddingBitsRun(contentBits bool) error {
	for v.pos.RemBitsToSkip > 0 {
		var err error
		if contentBits {
			err = v.requireContentBits(1)
		} else {
			err = v.requireBits(1)
		}
		if err != nil {
			return err
		}
		bitsToSkip := v.pos.RemBitsToSkip
		if r := v.remBitsInBuf(); r < bitsToSkip {
			bitsToSkip = r
		}
		v.pos.RemBitsToSkip -= bitsToSkip
		v.consumeExistingBits(bitsToSkip)
	}
	v.pos.State = v.pos.PostSkipBitsState
	return nil
}

func (v *Vm) alignHead(align int) error {
	if align <= 1 {
		return nil
	}
	a := int64(align)
	newHead := (v.pos.HeadOffsetInCurPktBits + a - 1) / a * a
	bitsToSkip := newHead - v.pos.HeadOffsetInCurPktBits
	if bitsToSkip == 0 {
		return nil
	}
	if v.pos.ExpectedPktContentLenBits != unsetLen && bitsToSkip > v.pos.RemContentBitsInPkt() {
		return errs.Newf(errs.CannotDecodeBeyondPacketContent, v.pos.HeadOffsetInElemSeqBits(),
			"alignment requires %d padding bits, %d remain", bitsToSkip, v.pos.RemContentBitsInPkt())
	}
	v.pos.RemBitsToSkip = bitsToSkip
	v.pos.PostSkipBitsState = v.pos.State
	return v.continueSkipPaddingBitsRun(true)
}

func (v *Vm) stateContinueSkipPaddingBitsState(contentBits bool) (bool, bool, error) {
	if err := v.continueSkipPaddingBitsRun(contentBits); err != nil {
		return false, false, err
	}
	return false, false, nil
}

// --- packet-level states -----------------------------------------------

func (v *Vm) stateBeginPkt() (bool, bool, error) {
	v.pos.ResetForNewPacket()

	if v.remBitsInBuf() == 0 {
		ok, err := v.tryHaveBits(1)
		if err != nil {
			return false, false, err
		}
		if !ok {
			v.pos.State = stateDone
			return true, true, nil
		}
	}

	v.emit(ElemPacketBegin)
	v.pos.LoadNewProc(v.pktProc.Preamble)
	v.pos.State = stateBeginPktContent
	return true, true, nil
}

func (v *Vm) stateBeginPktContent() (bool, bool, error) {
	v.emit(ElemPacketContentBegin)
	v.pos.State = stateExecInstr
	return true, true, nil
}

func (v *Vm) stateEndPktContent() (bool, bool, error) {
	var bitsToSkip int64
	if v.pos.ExpectedPktTotalLenBits != unsetLen {
		bitsToSkip = v.pos.ExpectedPktTotalLenBits - v.pos.HeadOffsetInCurPktBits
	}

	if bitsToSkip > 0 {
		v.pos.RemBitsToSkip = bitsToSkip
		v.pos.PostSkipBitsState = stateEndPkt
		v.pos.State = stateContinueSkipPaddingBits
	} else {
		v.pos.State = stateEndPkt
	}

	v.emit(ElemPacketContentEnd)
	return true, true, nil
}

func (v *Vm) stateEndPkt() (bool, bool, error) {
	v.pos.CurPktOffsetInElemSeqBits = v.pos.HeadOffsetInElemSeqBits()
	v.pos.HeadOffsetInCurPktBits = 0

	if v.pos.ExpectedPktTotalLenBits == unsetLen {
		// a single-packet element sequence: there is no next packet to
		// reframe the buffer against.
		v.resetBuffer()
	} else {
		// the cached buffer is one contiguous window over the
		// underlying byte source; any bytes it holds past this
		// packet's end already belong to the next packet; reframing
		// is just a change of origin, not a copy.
		v.bufOffsetInCurPktBits -= v.pos.ExpectedPktTotalLenBits
	}

	v.emit(ElemPacketEnd)
	v.stats.IncPacketsDecoded()
	v.pos.State = stateBeginPkt
	return true, true, nil
}

func (v *Vm) stateBeginEr() (bool, bool, error) {
	if v.pos.ExpectedPktContentLenBits == unsetLen {
		if v.remBitsInBuf() == 0 {
			ok, err := v.tryHaveBits(1)
			if err != nil {
				return false, false, err
			}
			if !ok {
				v.pos.State = stateEndPktContent
				return false, false, nil
			}
		}
	} else if v.pos.RemContentBitsInPkt() == 0 {
		v.pos.State = stateEndPktContent
		return false, false, nil
	}

	align := 1
	if v.pos.CurDsPktProc != nil {
		align = v.pos.CurDsPktProc.ErAlign
	}
	if err := v.alignHead(align); err != nil {
		return false, false, err
	}

	v.emit(ElemEventRecordBegin)
	v.pos.LoadNewProc(v.pos.CurDsPktProc.ErPreamble)
	v.pos.State = stateExecInstr
	return true, true, nil
}

func (v *Vm) stateEndEr() (bool, bool, error) {
	v.pos.CurErProc = nil
	v.emit(ElemEventRecordEnd)
	v.stats.IncEventRecordsDecoded()
	v.pos.State = stateBeginEr
	return true, true, nil
}

// --- UUID / string reading states --------------------------------------

func (v *Vm) stateReadUuidByte() (bool, bool, error) {
	if v.pos.top().remElems == 0 {
		v.pos.State = stateSetTraceTypeUuid
		return false, false, nil
	}

	if err := v.requireContentBits(8); err != nil {
		return false, false, err
	}
	u, err := readUnsignedInt(v.bufAtHead(), 0, 8, metadata.BigEndian, false)
	if err != nil {
		return false, false, err
	}
	v.pos.LastIntValU = u
	v.pos.UUID[16-v.pos.top().remElems] = byte(u)
	v.consumeExistingBits(8)
	v.pos.top().remElems--
	return true, false, nil
}

func (v *Vm) stateSetTraceTypeUuid() (bool, bool, error) {
	e := v.emit(ElemTraceTypeUuid)
	e.Bytes = v.pos.UUID[:]
	v.pos.setParentStateAndPop()
	return true, true, nil
}

func (v *Vm) stateReadSubstr() (bool, bool, error) {
	if v.pos.top().remElems == 0 {
		v.pos.setParentStateAndPop()
		return false, false, nil
	}

	if err := v.requireContentBits(8); err != nil {
		return false, false, err
	}

	bufSizeBytes := v.remBitsInBuf() / 8
	remElems := v.pos.top().remElems
	substrSizeBytes := bufSizeBytes
	if remElems < substrSizeBytes {
		substrSizeBytes = remElems
	}
	substrLenBits := substrSizeBytes * 8
	if v.pos.ExpectedPktContentLenBits != unsetLen && substrLenBits > v.pos.RemContentBitsInPkt() {
		return false, false, errs.New(errs.CannotDecodeBeyondPacketContent, v.pos.HeadOffsetInElemSeqBits())
	}

	e := v.emit(v.pos.top().chunkKind)
	e.Bytes = v.bufAtHead()[:substrSizeBytes]
	v.consumeExistingBits(substrLenBits)
	v.pos.top().remElems -= substrSizeBytes
	return true, true, nil
}

func (v *Vm) stateReadSubstrUntilNull() (bool, bool, error) {
	if err := v.requireContentBits(8); err != nil {
		return false, false, err
	}

	bufSizeBytes := v.remBitsInBuf() / 8
	buf := v.bufAtHead()[:bufSizeBytes]

	end := int64(len(buf))
	found := false
	for i, b := range buf {
		if b == 0 {
			end = int64(i) + 1
			found = true
			break
		}
	}

	substrLenBits := end * 8
	if v.pos.ExpectedPktContentLenBits != unsetLen && substrLenBits > v.pos.RemContentBitsInPkt() {
		return false, false, errs.New(errs.CannotDecodeBeyondPacketContent, v.pos.HeadOffsetInElemSeqBits())
	}

	e := v.emit(ElemSubstring)
	e.Bytes = buf[:end]
	if found {
		v.pos.State = stateEndStr
	}
	v.consumeExistingBits(substrLenBits)
	return true, true, nil
}

func (v *Vm) stateEndStr() (bool, bool, error) {
	v.emit(v.pos.PendingEndKind)
	v.pos.State = v.pos.PostEndStrState
	return true, true, nil
}
