package proc

import "github.com/kienanstewart/yactfr/metadata"

// ErProc is the compiled procedure for one event record type: reading
// its specific context followed by its payload, terminated by an
// end-of-event-record-proc instruction.
type ErProc struct {
	Ert  *metadata.EventRecordType
	Proc *Proc
}

// DataStreamPacketProc is the compiled set of procedures for one data
// stream type. Event record procedures are stored both in a dense,
// id-indexed vector (with nil holes) and a sparse map; lookup tries the
// vector first, matching §4.G.
type DataStreamPacketProc struct {
	Dst *metadata.DataStreamType

	// PacketPreamble reads the packet context.
	PacketPreamble *Proc
	// ErPreamble reads the event record header and common context.
	ErPreamble *Proc

	// ErAlign is the bit alignment required before each event record,
	// derived from the alignment of the first field an event record
	// read touches (its header, or failing that its common context).
	// Defaults to 1 (unaligned) when neither exists.
	ErAlign int

	erProcsVec []*ErProc
	erProcsMap map[uint64]*ErProc
}

func newDataStreamPacketProc(dst *metadata.DataStreamType) *DataStreamPacketProc {
	return &DataStreamPacketProc{
		Dst:        dst,
		ErAlign:    1,
		erProcsMap: make(map[uint64]*ErProc),
	}
}

func (d *DataStreamPacketProc) addErProc(id uint64, p *ErProc) {
	if id < 4096 { // dense range; see ErProcByID for the lookup-vector-then-map rule
		for uint64(len(d.erProcsVec)) <= id {
			d.erProcsVec = append(d.erProcsVec, nil)
		}
		d.erProcsVec[id] = p
		return
	}
	d.erProcsMap[id] = p
}

// ErProcByID looks up the event record procedure for id, trying the
// dense vector first and falling back to the map, per §4.G.
func (d *DataStreamPacketProc) ErProcByID(id uint64) *ErProc {
	if id < uint64(len(d.erProcsVec)) {
		if p := d.erProcsVec[id]; p != nil {
			return p
		}
	}
	return d.erProcsMap[id]
}

// SingleErProc returns the sole event record procedure when the data
// stream type declares exactly one, avoiding a lookup.
func (d *DataStreamPacketProc) SingleErProc() *ErProc {
	if len(d.Dst.EventRecordTypes) != 1 {
		return nil
	}
	return d.ErProcByID(d.Dst.EventRecordTypes[0].Id)
}

// ErProcsCount returns the total number of compiled event record
// procedures.
func (d *DataStreamPacketProc) ErProcsCount() int {
	n := len(d.erProcsMap)
	for _, p := range d.erProcsVec {
		if p != nil {
			n++
		}
	}
	return n
}

// PacketProc is the top of the compiled schema: the packet-header
// preamble plus one DataStreamPacketProc per data stream type, stored
// both in a vector and a map exactly as DataStreamPacketProc stores
// event record procedures.
type PacketProc struct {
	TraceType *metadata.TraceType

	// Preamble reads the packet header.
	Preamble *Proc

	dsProcsVec []*DataStreamPacketProc
	dsProcsMap map[uint64]*DataStreamPacketProc

	// SavedValsCount is the dense saved-value slot count needed by any
	// VM position decoding with this PacketProc.
	SavedValsCount int
}

func (p *PacketProc) addDsProc(id uint64, dp *DataStreamPacketProc) {
	if id < 4096 {
		for uint64(len(p.dsProcsVec)) <= id {
			p.dsProcsVec = append(p.dsProcsVec, nil)
		}
		p.dsProcsVec[id] = dp
		return
	}
	p.dsProcsMap[id] = dp
}

// DsProcByID looks up the data stream packet procedure for id.
func (p *PacketProc) DsProcByID(id uint64) *DataStreamPacketProc {
	if id < uint64(len(p.dsProcsVec)) {
		if dp := p.dsProcsVec[id]; dp != nil {
			return dp
		}
	}
	return p.dsProcsMap[id]
}

// SingleDsProc returns the sole data stream packet procedure when the
// trace type declares exactly one data stream type.
func (p *PacketProc) SingleDsProc() *DataStreamPacketProc {
	if len(p.TraceType.DataStreams) != 1 {
		return nil
	}
	return p.DsProcByID(p.TraceType.DataStreams[0].Id)
}
