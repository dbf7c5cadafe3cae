package main

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/kienanstewart/yactfr/metadata"
)

// profiles maps a --profile name to a trace type built directly
// through the metadata package's programmatic construction API: since
// no TSDL/JSON textual metadata front end is in scope, ctfdump cannot
// discover a trace's schema from the trace directory itself, the way a
// real CTF reader would. A named profile is the practical stand-in
// until such a front end exists.
var profiles = map[string]func() *metadata.TraceType{
	"demo": demoTraceType,
}

func lookupProfile(name string) (*metadata.TraceType, error) {
	build, ok := profiles[name]
	if !ok {
		return nil, fmt.Errorf("unknown profile %q (known: %s)", name, knownProfileNames())
	}
	return build(), nil
}

func knownProfileNames() string {
	names := make([]string, 0, len(profiles))
	for n := range profiles {
		names = append(names, n)
	}
	return fmt.Sprint(names)
}

// demoTraceType is a minimal but complete trace type: a packet header
// carrying a magic number and a UUID, one data stream type whose
// packet context carries a declared packet total length, and one
// event record type whose payload is a single u32 field. It exists to
// exercise every packet-level instruction end to end against real
// bytes, not to describe any production tracer's metadata.
func demoTraceType() *metadata.TraceType {
	u32 := func(role metadata.Role) *metadata.DataType {
		return &metadata.DataType{
			Kind: metadata.KindFixedLengthUnsignedInt,
			FixedLength: &metadata.FixedLengthData{
				LenBits:   32,
				ByteOrder: metadata.BigEndian,
				Alignment: 8,
				Role:      role,
			},
		}
	}
	uuidField := &metadata.DataType{
		Kind: metadata.KindStaticLengthBlob,
		Array: &metadata.ArrayData{
			StaticLen:            16,
			IsMetadataStreamUuid: true,
		},
	}

	packetHeader := &metadata.StructType{
		Members: []metadata.NamedDataType{
			{Name: "magic", Type: u32(metadata.RolePacketMagicNumber)},
			{Name: "uuid", Type: uuidField},
		},
	}

	packetContext := &metadata.StructType{
		Members: []metadata.NamedDataType{
			{Name: "packet_total_length", Type: u32(metadata.RolePacketTotalLength)},
		},
	}

	payload := &metadata.StructType{
		Members: []metadata.NamedDataType{
			{Name: "value", Type: u32(metadata.RoleNone)},
		},
	}

	ert := &metadata.EventRecordType{Id: 0, Name: "sample", Payload: payload}
	ds := &metadata.DataStreamType{
		Id:               0,
		PacketContext:    packetContext,
		EventRecordTypes: []*metadata.EventRecordType{ert},
	}

	return &metadata.TraceType{
		UUID:         uuid.New(),
		PacketHeader: packetHeader,
		DataStreams:  []*metadata.DataStreamType{ds},
	}
}
