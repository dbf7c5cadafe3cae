// Package metadata models the in-memory CTF trace-type schema that the
// procedure builder compiles. It is built programmatically; no textual
// (TSDL) or JSON front end is implemented here, matching the decoding
// core's framing of the metadata parser as an external collaborator.
package metadata

import "github.com/google/uuid"

// ClockType describes one clock referenced by data stream types.
type ClockType struct {
	Name string
	// FrequencyHz is the clock's frequency in cycles per second.
	FrequencyHz uint64
	// OffsetSeconds and OffsetCycles together give the clock's origin
	// offset from OriginIsUnixEpoch (or an arbitrary origin when false).
	OffsetSeconds    int64
	OffsetCycles     uint64
	OriginIsUnixEpoch bool
	// PrecisionCycles is the clock's precision, in cycles.
	PrecisionCycles uint64
}

// EventRecordType describes one kind of event record within a data
// stream type.
type EventRecordType struct {
	Id              uint64
	Name            string
	SpecificContext *StructType
	Payload         *StructType
}

// DataStreamType describes one kind of data stream within a trace.
type DataStreamType struct {
	Id                   uint64
	PacketContext        *StructType
	EventRecordHeader    *StructType
	EventRecordCommonCtx *StructType
	DefaultClock         *ClockType
	EventRecordTypes     []*EventRecordType
}

// ErtById returns the event record type with the given id, or nil.
func (d *DataStreamType) ErtById(id uint64) *EventRecordType {
	for _, ert := range d.EventRecordTypes {
		if ert.Id == id {
			return ert
		}
	}
	return nil
}

// TraceType is the frozen root of the schema: it owns the packet-header
// structure type, the clock types, and the data stream types.
type TraceType struct {
	UUID          uuid.UUID
	PacketHeader  *StructType
	Clocks        map[string]*ClockType
	DataStreams   []*DataStreamType
	// Environment carries free-form trace-wide key/value metadata
	// (hostname, domain, tracer version, ...), supplemented from the
	// original yactfr implementation; it is inert to decoding, and
	// neither the VM nor cmd/ctfdump reads it.
	Environment map[string]string
}

// DstById returns the data stream type with the given id, or nil.
func (t *TraceType) DstById(id uint64) *DataStreamType {
	for _, ds := range t.DataStreams {
		if ds.Id == id {
			return ds
		}
	}
	return nil
}

// SingleDataStreamType returns the sole data stream type when the trace
// type declares exactly one, avoiding an id lookup; mirrors §4.G's
// single-event-record-procedure accessor at the data-stream level.
func (t *TraceType) SingleDataStreamType() *DataStreamType {
	if len(t.DataStreams) == 1 {
		return t.DataStreams[0]
	}
	return nil
}
