package metadata

import (
	"fmt"
	"strings"
)

// SourceLocation is a textual source position, populated by an eventual
// TSDL/JSON front end; it is the zero value when a TraceType was built
// programmatically, as this package always does.
type SourceLocation struct {
	Line, Column int
}

// ValidationError is raised by TraceType.Validate. It is distinct from
// the core engine's runtime errs.DecodeError: this one is a build-time,
// schema-level failure, per §7's split between builder-time and
// decode-time errors.
type ValidationError struct {
	Msg string
	Loc SourceLocation
}

func (e *ValidationError) Error() string {
	if e.Loc.Line == 0 && e.Loc.Column == 0 {
		return e.Msg
	}
	return fmt.Sprintf("%d:%d: %s", e.Loc.Line, e.Loc.Column, e.Msg)
}

func validationErrf(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// fieldInfo records where in decode order a named field sits and what
// type it has, keyed by its dotted path from the scope root.
type fieldInfo struct {
	position int
	dt       *DataType
}

// buildPositionIndex walks root in decode order (the order the
// procedure builder will emit reads in: each member in declaration
// order, recursing into nested structs before moving to the next
// sibling) and assigns a monotonically increasing position to every
// addressable path. This is the "per-scope position index" named in §3.
func buildPositionIndex(root *StructType) map[string]fieldInfo {
	idx := make(map[string]fieldInfo)
	pos := 0
	var walk func(s *StructType, prefix []string)
	walk = func(s *StructType, prefix []string) {
		if s == nil {
			return
		}
		for _, m := range s.Members {
			path := append(append([]string{}, prefix...), m.Name)
			key := strings.Join(path, ".")
			idx[key] = fieldInfo{position: pos, dt: m.Type}
			pos++
			if m.Type != nil && m.Type.Kind == KindStruct {
				walk(m.Type.Struct, path)
			}
		}
	}
	walk(root, nil)
	return idx
}

// resolve looks up a DataLocation's path in idx.
func resolve(idx map[string]fieldInfo, path []string) (fieldInfo, bool) {
	fi, ok := idx[strings.Join(path, ".")]
	return fi, ok
}

func isIntegerKind(k TypeKind) bool {
	return k == KindFixedLengthSignedInt || k == KindFixedLengthUnsignedInt ||
		k == KindVariableLengthSignedInt || k == KindVariableLengthUnsignedInt
}

func isUnsignedIntegerKind(k TypeKind) bool {
	return k == KindFixedLengthUnsignedInt || k == KindVariableLengthUnsignedInt
}

// scopeRoots returns every (Scope, *StructType) pair relevant to a
// given data stream type / event record type pairing, used so a
// location can be resolved against the right root regardless of which
// struct is currently being validated.
func scopeRoots(tt *TraceType, ds *DataStreamType, ert *EventRecordType) map[Scope]*StructType {
	m := map[Scope]*StructType{
		ScopePacketHeader: tt.PacketHeader,
	}
	if ds != nil {
		m[ScopePacketContext] = ds.PacketContext
		m[ScopeEventRecordHeader] = ds.EventRecordHeader
		m[ScopeEventRecordCommonContext] = ds.EventRecordCommonCtx
	}
	if ert != nil {
		m[ScopeEventRecordSpecificContext] = ert.SpecificContext
		m[ScopeEventRecordPayload] = ert.Payload
	}
	return m
}

// Validate walks the trace type and checks every invariant named in §3
// and §4.D: data locations resolve to a field decoded before their
// referrer, role uniqueness per scope, and that selector/length
// locations point at fields of a compatible kind.
func (t *TraceType) Validate() error {
	if err := validateRoles(t.PacketHeader); err != nil {
		return err
	}
	for _, ds := range t.DataStreams {
		if err := validateRoles(ds.PacketContext); err != nil {
			return err
		}
		if err := validateRoles(ds.EventRecordHeader); err != nil {
			return err
		}
		for _, ert := range ds.EventRecordTypes {
			roots := scopeRoots(t, ds, ert)
			indices := make(map[Scope]map[string]fieldInfo, len(roots))
			for scope, root := range roots {
				indices[scope] = buildPositionIndex(root)
			}
			for scope, root := range roots {
				if err := validateLocations(root, scope, indices); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// validateRoles ensures each role-bearing unsigned-integer role appears
// at most once within a single struct scope.
func validateRoles(s *StructType) error {
	if s == nil {
		return nil
	}
	seen := make(map[Role]bool)
	var walk func(s *StructType) error
	walk = func(s *StructType) error {
		for _, m := range s.Members {
			if m.Type == nil {
				continue
			}
			if m.Type.Kind == KindFixedLengthUnsignedInt && m.Type.FixedLength != nil {
				r := m.Type.FixedLength.Role
				if r != RoleNone {
					if seen[r] {
						return validationErrf("role %d appears more than once in one scope", r)
					}
					seen[r] = true
				}
			}
			if m.Type.Kind == KindStruct {
				if err := walk(m.Type.Struct); err != nil {
					return err
				}
			}
		}
		return nil
	}
	return walk(s)
}

// validateLocations recurses through s (whose fields live in scope),
// checking every Array.LengthLoc / Variant.SelectorLoc /
// Optional.*SelectorLoc against indices.
func validateLocations(s *StructType, scope Scope, indices map[Scope]map[string]fieldInfo) error {
	if s == nil {
		return nil
	}
	ownIdx, ok := indices[scope]
	if !ok {
		return validationErrf("no position index built for scope %s", scope)
	}
	var walk func(s *StructType, prefix []string) error
	walk = func(s *StructType, prefix []string) error {
		for _, m := range s.Members {
			path := append(append([]string{}, prefix...), m.Name)
			if m.Type == nil {
				continue
			}
			ownPos := ownIdx[strings.Join(path, ".")].position
			if err := checkLocationsOn(m.Type, scope, ownPos, indices); err != nil {
				return err
			}
			if m.Type.Kind == KindStruct {
				if err := walk(m.Type.Struct, path); err != nil {
					return err
				}
			}
		}
		return nil
	}
	return walk(s, nil)
}

func checkLocationsOn(dt *DataType, ownScope Scope, ownPos int, indices map[Scope]map[string]fieldInfo) error {
	checkLoc := func(loc *DataLocation, wantKind func(TypeKind) bool, what string) error {
		if loc == nil {
			return nil
		}
		idx, ok := indices[loc.Scope]
		if !ok {
			return validationErrf("%s references unknown scope %s", what, loc.Scope)
		}
		fi, ok := resolve(idx, loc.Path)
		if !ok {
			return validationErrf("%s references undefined field %s.%s", what, loc.Scope, strings.Join(loc.Path, "."))
		}
		if loc.Scope == ownScope && fi.position >= ownPos {
			return validationErrf("%s references field %s.%s which is not decoded before the referrer", what, loc.Scope, strings.Join(loc.Path, "."))
		}
		if wantKind != nil && fi.dt != nil && !wantKind(fi.dt.Kind) {
			return validationErrf("%s references field %s.%s of incompatible kind %s", what, loc.Scope, strings.Join(loc.Path, "."), fi.dt.Kind)
		}
		return nil
	}

	switch dt.Kind {
	case KindDynamicLengthArray, KindDynamicLengthStr, KindDynamicLengthBlob:
		if dt.Array == nil {
			return validationErrf("dynamic-length type missing array data")
		}
		if err := checkLoc(dt.Array.LengthLoc, isUnsignedIntegerKind, "dynamic length"); err != nil {
			return err
		}
	case KindVariant:
		if dt.Variant == nil {
			return validationErrf("variant type missing variant data")
		}
		if err := checkLoc(dt.Variant.SelectorLoc, isIntegerKind, "variant selector"); err != nil {
			return err
		}
		if err := validateRangesNonOverlapping(dt.Variant.Options); err != nil {
			return err
		}
	case KindOptional:
		if dt.Optional == nil {
			return validationErrf("optional type missing optional data")
		}
		if dt.Optional.BoolSelectorLoc != nil {
			wantBool := func(k TypeKind) bool { return k == KindFixedLengthBool }
			if err := checkLoc(dt.Optional.BoolSelectorLoc, wantBool, "optional boolean selector"); err != nil {
				return err
			}
		} else if err := checkLoc(dt.Optional.IntSelectorLoc, isIntegerKind, "optional integer selector"); err != nil {
			return err
		}
	}
	return nil
}

// validateRangesNonOverlapping rejects a variant whose option range
// sets overlap (§13 addition).
func validateRangesNonOverlapping(opts []VariantOption) error {
	type span struct {
		begin, end int64
		name       string
	}
	var spans []span
	for _, o := range opts {
		for _, r := range o.Ranges {
			spans = append(spans, span{r.Begin, r.End, o.Name})
		}
	}
	for i := 0; i < len(spans); i++ {
		for j := i + 1; j < len(spans); j++ {
			if spans[i].begin <= spans[j].end && spans[j].begin <= spans[i].end {
				return validationErrf("variant options %q and %q have overlapping selector ranges", spans[i].name, spans[j].name)
			}
		}
	}
	return nil
}
