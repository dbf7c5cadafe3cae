// Package errs defines the closed set of decoding error kinds the core
// engine can raise, each carrying the head offset (in bits) at the time
// of detection.
package errs

import "fmt"

// Kind is the closed enumeration of decode error kinds.
type Kind int

const (
	PrematureEndOfData Kind = iota
	CannotDecodeBeyondPacketContent
	ExpectedPacketTotalLengthNotMultipleOf8
	ExpectedPacketTotalLengthLessThanContent
	ExpectedPacketLengthLessThanOffsetInPacket
	UnknownDataStreamType
	UnknownEventRecordType
	InvalidVariantSignedSelector
	InvalidVariantUnsignedSelector
	ByteOrderChangeWithinByte
)

type kindDesc struct {
	name string
	msg  string
}

var kindDescs = map[Kind]kindDesc{
	PrematureEndOfData:                         {"PrematureEndOfData", "data source exhausted before the required number of bits could be read"},
	CannotDecodeBeyondPacketContent:             {"CannotDecodeBeyondPacketContent", "a read or alignment would cross the expected packet content boundary"},
	ExpectedPacketTotalLengthNotMultipleOf8:     {"ExpectedPacketTotalLengthNotMultipleOf8", "learned packet total length is not a multiple of 8 bits"},
	ExpectedPacketTotalLengthLessThanContent:    {"ExpectedPacketTotalLengthLessThanContent", "learned packet total length is less than the learned content length"},
	ExpectedPacketLengthLessThanOffsetInPacket:  {"ExpectedPacketLengthLessThanOffsetInPacket", "a learned length is less than the current head offset"},
	UnknownDataStreamType:                       {"UnknownDataStreamType", "current id has no matching data stream procedure"},
	UnknownEventRecordType:                      {"UnknownEventRecordType", "current id has no matching event record procedure"},
	InvalidVariantSignedSelector:                {"InvalidVariantSignedSelector", "no option's range set contains the signed selector value"},
	InvalidVariantUnsignedSelector:              {"InvalidVariantUnsignedSelector", "no option's range set contains the unsigned selector value"},
	ByteOrderChangeWithinByte:                   {"ByteOrderChangeWithinByte", "consecutive sub-byte reads specify different byte orders"},
}

func (k Kind) String() string {
	if d, ok := kindDescs[k]; ok {
		return d.name
	}
	return "UnknownKind"
}

// DecodeError is the single error type raised by the core engine. It
// mirrors the teacher library's one-struct-plus-code-table shape rather
// than a bespoke Go error type per kind.
type DecodeError struct {
	Kind           Kind
	HeadOffsetBits int64
	Msg            string
}

// New creates a DecodeError for kind at the given head offset, with the
// kind's default description as the message.
func New(kind Kind, headOffsetBits int64) *DecodeError {
	return &DecodeError{Kind: kind, HeadOffsetBits: headOffsetBits, Msg: kindDescs[kind].msg}
}

// Newf creates a DecodeError with a formatted message appended to the
// kind's default description.
func Newf(kind Kind, headOffsetBits int64, format string, args ...any) *DecodeError {
	return &DecodeError{
		Kind:           kind,
		HeadOffsetBits: headOffsetBits,
		Msg:            fmt.Sprintf("%s: %s", kindDescs[kind].msg, fmt.Sprintf(format, args...)),
	}
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s at head offset %d bits: %s", e.Kind, e.HeadOffsetBits, e.Msg)
}

// Is allows errors.Is(err, errs.New(SomeKind, 0)) checks: it matches
// any *DecodeError target of the same Kind, ignoring offset and
// message. Callers typically compare with AsKind instead.
func (e *DecodeError) Is(target error) bool {
	other, ok := target.(*DecodeError)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// AsKind reports whether err is a *DecodeError of the given kind.
func AsKind(err error, kind Kind) bool {
	de, ok := err.(*DecodeError)
	return ok && de.Kind == kind
}
