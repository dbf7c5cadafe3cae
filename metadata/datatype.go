package metadata

// ByteOrder is the byte order of a fixed-length binary field.
type ByteOrder int

const (
	BigEndian ByteOrder = iota
	LittleEndian
)

// TypeKind is the closed set of leaf and compound data type kinds a
// CTF schema can describe.
type TypeKind int

const (
	KindFixedLengthBitArray TypeKind = iota
	KindFixedLengthBool
	KindFixedLengthSignedInt
	KindFixedLengthUnsignedInt
	KindFixedLengthFloat
	KindVariableLengthSignedInt
	KindVariableLengthUnsignedInt
	KindNullTerminatedStr
	KindStaticLengthArray
	KindDynamicLengthArray
	KindStaticLengthStr
	KindDynamicLengthStr
	KindStaticLengthBlob
	KindDynamicLengthBlob
	KindStruct
	KindVariant
	KindOptional
)

func (k TypeKind) String() string {
	switch k {
	case KindFixedLengthBitArray:
		return "fixed-length-bit-array"
	case KindFixedLengthBool:
		return "fixed-length-bool"
	case KindFixedLengthSignedInt:
		return "fixed-length-signed-int"
	case KindFixedLengthUnsignedInt:
		return "fixed-length-unsigned-int"
	case KindFixedLengthFloat:
		return "fixed-length-float"
	case KindVariableLengthSignedInt:
		return "variable-length-signed-int"
	case KindVariableLengthUnsignedInt:
		return "variable-length-unsigned-int"
	case KindNullTerminatedStr:
		return "null-terminated-string"
	case KindStaticLengthArray:
		return "static-length-array"
	case KindDynamicLengthArray:
		return "dynamic-length-array"
	case KindStaticLengthStr:
		return "static-length-string"
	case KindDynamicLengthStr:
		return "dynamic-length-string"
	case KindStaticLengthBlob:
		return "static-length-blob"
	case KindDynamicLengthBlob:
		return "dynamic-length-blob"
	case KindStruct:
		return "struct"
	case KindVariant:
		return "variant"
	case KindOptional:
		return "optional"
	default:
		return "unknown"
	}
}

// IsCompound reports whether the kind owns a sub-procedure (struct,
// array, variant, optional) rather than being a single leaf read.
func (k TypeKind) IsCompound() bool {
	switch k {
	case KindStaticLengthArray, KindDynamicLengthArray, KindStruct, KindVariant, KindOptional:
		return true
	default:
		return false
	}
}

// Role is a semantic tag on an unsigned-integer field describing its
// protocol meaning.
type Role int

const (
	RoleNone Role = iota
	RolePacketMagicNumber
	RoleDataStreamTypeId
	RoleDataStreamId
	RolePacketTotalLength
	RolePacketContentLength
	RolePacketSequenceNumber
	RoleDiscardedEventRecordCounterSnapshot
	RolePacketEndDefaultClockValue
	RoleDefaultClockTimestamp
	RoleEventRecordTypeId
)

// DisplayBase is a purely cosmetic hint (carried from the original
// yactfr metadata model) for how a tool should print an integer's
// value; it is inert to decoding.
type DisplayBase int

const (
	DisplayBaseDecimal DisplayBase = iota
	DisplayBaseHexadecimal
	DisplayBaseOctal
	DisplayBaseBinary
)

// FixedLengthData holds the fields specific to fixed-length bit-array,
// bool, signed/unsigned-int and float types.
type FixedLengthData struct {
	LenBits     int
	ByteOrder   ByteOrder
	BitOrderRev bool // true selects the bit-reversed variant (§9 Design Notes)
	Alignment   int  // required bit alignment before reading; 1 means unaligned
	Role        Role
	FixedClockTypeName string // carried in the model only; the builder and VM do not read it, so clock updates always target the data stream's default clock
	DisplayBase DisplayBase
}

// VariableLengthData holds the fields specific to LEB128-like
// variable-length signed/unsigned int types.
type VariableLengthData struct {
	Role Role
}

// NullTerminatedData holds the fields specific to null-terminated
// string types.
type NullTerminatedData struct {
	Encoding StrEncoding
}

// ArrayData holds the fields specific to static- and
// dynamic-length array/string/blob types.
type ArrayData struct {
	ElementType *DataType  // nil for string/blob element types (byte-oriented)
	StaticLen   int        // valid when Kind is a StaticLength* kind
	LengthLoc   *DataLocation // valid when Kind is a DynamicLength* kind
	Encoding    StrEncoding   // valid for (static|dynamic)-length string kinds

	// IsMetadataStreamUuid marks a packet header's 16-byte
	// static-length blob/array member as the trace's metadata stream
	// UUID, routing the builder through the dedicated UUID read
	// instruction instead of a generic blob read.
	IsMetadataStreamUuid bool
}

// StrEncoding is the text encoding of a length-prefixed or
// null-terminated string.
type StrEncoding int

const (
	EncodingUTF8 StrEncoding = iota
	EncodingUTF16
	EncodingUTF32
)

// SelectorRange is an inclusive [Begin, End] range of a variant or
// integer-selector optional's selector value.
type SelectorRange struct {
	Begin, End int64
}

func (r SelectorRange) Contains(v int64) bool { return v >= r.Begin && v <= r.End }

// VariantOption is one (selector range set, option type) pair of a
// variant type.
type VariantOption struct {
	Name   string
	Ranges []SelectorRange
	Type   *DataType
}

// VariantData holds the fields specific to variant types.
type VariantData struct {
	SelectorLoc *DataLocation
	SelectorIsSigned bool
	Options     []VariantOption
}

// OptionalData holds the fields specific to optional types. Either
// BoolSelectorLoc (boolean selector) or (IntRanges, IntSelectorLoc)
// (integer-range selector) is set, never both.
type OptionalData struct {
	BoolSelectorLoc *DataLocation

	IntSelectorLoc   *DataLocation
	IntSelectorSigned bool
	IntRanges        []SelectorRange

	Type *DataType
}

// DataType is a closed tagged union over every CTF leaf and compound
// type. Exactly one of the payload fields matching Kind is non-nil;
// this mirrors the instruction model's tagged-union approach (§9)
// rather than a Go interface hierarchy, keeping `switch dt.Kind` the
// single exhaustive dispatch point.
type DataType struct {
	Kind TypeKind

	FixedLength    *FixedLengthData
	VariableLength *VariableLengthData
	NullTerminated *NullTerminatedData
	Array          *ArrayData
	Struct         *StructType
	Variant        *VariantData
	Optional       *OptionalData
}

// NamedDataType is one member of a StructType.
type NamedDataType struct {
	Name string
	Type *DataType
}

// StructType is an ordered sequence of named member types.
type StructType struct {
	Members []NamedDataType
}

// MemberIndex returns the position of name within s, or -1.
func (s *StructType) MemberIndex(name string) int {
	for i, m := range s.Members {
		if m.Name == name {
			return i
		}
	}
	return -1
}
