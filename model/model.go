// Package model holds the read-only type graph of an API registry:
// records, members, enumerations, bitmasks, flags, handles and base types.
// The graph is built once by Load and never mutated afterwards.
package model

import (
	"log/slog"
	"slices"
	"strings"
)

// Logger is used by the loader, suitable for replacing with a bridged handler
var Logger = slog.Default()

// DefaultStructureTypeEnum names the discriminator enumeration
const DefaultStructureTypeEnum = "VkStructureType"

// Kind defines the kind of a named type
type Kind int

// Enum kinds
const (
	KindUnknown Kind = iota
	KindHandle
	KindEnum
	KindFlags
	KindBitmask
	KindBasic
	KindStruct
	KindVoid
)

func (k Kind) String() string {
	return [...]string{"unknown", "handle", "enum", "flags", "bitmask", "basic", "struct", "void"}[k]
}

// PrimitiveKind defines the representation class of a primitive
type PrimitiveKind int

// Enum primitive kinds
const (
	Signed PrimitiveKind = iota
	Unsigned
	Float
	Char
	Void
)

// Primitive describes a built-in scalar type
type Primitive struct {
	Name string
	Kind PrimitiveKind
	Bits int
}

// Wide reports whether the values need the full 64-bit range
func (p Primitive) Wide() bool { return p.Bits == 64 }

// Primitives lists the built-in scalar types
var Primitives = map[string]Primitive{
	"int8_t":   {"int8_t", Signed, 8},
	"int16_t":  {"int16_t", Signed, 16},
	"int32_t":  {"int32_t", Signed, 32},
	"int64_t":  {"int64_t", Signed, 64},
	"uint8_t":  {"uint8_t", Unsigned, 8},
	"uint16_t": {"uint16_t", Unsigned, 16},
	"uint32_t": {"uint32_t", Unsigned, 32},
	"uint64_t": {"uint64_t", Unsigned, 64},
	"size_t":   {"size_t", Unsigned, 64},
	"float":    {"float", Float, 32},
	"double":   {"double", Float, 64},
	"char":     {"char", Char, 8},
	"void":     {"void", Void, 0},
}

// PrimitiveOrder keeps emission of basic routines stable
var PrimitiveOrder = []string{
	"int8_t", "uint8_t", "int16_t", "uint16_t", "int32_t", "uint32_t",
	"int64_t", "uint64_t", "float", "double", "size_t",
}

// Member defines a record member
type Member struct {
	Name           string   `yaml:"name"`
	Type           string   `yaml:"type"`
	Pointer        bool     `yaml:"pointer,omitempty"`
	Const          bool     `yaml:"const,omitempty"`
	FixedSizeArray []string `yaml:"fixedSizeArray,omitempty"`
	// Length accepts a sibling member, a named constant, a literal
	// or an arithmetic expression over them
	Length         string `yaml:"length,omitempty"`
	NullTerminated bool   `yaml:"nullTerminated,omitempty"`
	Optional       bool   `yaml:"optional,omitempty"`
	NoAutoValidity bool   `yaml:"noAutoValidity,omitempty"`
}

// IsChain reports whether the member belongs to the extension chain
func (m *Member) IsChain() bool {
	return m.Name == "sType" || m.Name == "pNext"
}

// Struct defines a record
type Struct struct {
	Name         string    `yaml:"name"`
	Members      []*Member `yaml:"members"`
	SType        string    `yaml:"sType,omitempty"`
	ExtendedBy   []string  `yaml:"extendedBy,omitempty"`
	Extends      []string  `yaml:"extends,omitempty"`
	Protect      string    `yaml:"protect,omitempty"`
	Aliases      []string  `yaml:"aliases,omitempty"`
	Union        bool      `yaml:"union,omitempty"`
	ReturnedOnly bool      `yaml:"returnedOnly,omitempty"`
}

// Extensible reports whether the record carries a discriminator
func (s *Struct) Extensible() bool { return s.SType != "" }

// Member returns member by name
func (s *Struct) Member(name string) *Member {
	for _, m := range s.Members {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// Fields returns members excluding the chain members
func (s *Struct) Fields() []*Member {
	ff := make([]*Member, 0, len(s.Members))
	for _, m := range s.Members {
		if s.Extensible() && m.IsChain() {
			continue
		}
		ff = append(ff, m)
	}
	return ff
}

// EnumField defines a named enumeration value
type EnumField struct {
	Name    string   `yaml:"name"`
	Value   int64    `yaml:"value"`
	Aliases []string `yaml:"aliases,omitempty"`
	Protect string   `yaml:"protect,omitempty"`
}

// Enum defines an enumeration
type Enum struct {
	Name    string       `yaml:"name"`
	Fields  []*EnumField `yaml:"fields"`
	Aliases []string     `yaml:"aliases,omitempty"`
}

// Field returns field by name or alias
func (e *Enum) Field(name string) *EnumField {
	for _, f := range e.Fields {
		if f.Name == name {
			return f
		}
		for _, a := range f.Aliases {
			if a == name {
				return f
			}
		}
	}
	return nil
}

// BitmaskFlag defines a named flag bit or group of bits
type BitmaskFlag struct {
	Name     string   `yaml:"name"`
	Value    uint64   `yaml:"value"`
	Aliases  []string `yaml:"aliases,omitempty"`
	Protect  string   `yaml:"protect,omitempty"`
	MultiBit bool     `yaml:"-"`
}

// Bitmask defines a set of named bits
type Bitmask struct {
	Name     string         `yaml:"name"`
	BitWidth int            `yaml:"bitWidth,omitempty"`
	Flags    []*BitmaskFlag `yaml:"flags"`
	Aliases  []string       `yaml:"aliases,omitempty"`
	FlagName string         `yaml:"flagName,omitempty"`
}

// Flag returns flag by name or alias
func (b *Bitmask) Flag(name string) *BitmaskFlag {
	for _, f := range b.Flags {
		if f.Name == name {
			return f
		}
		for _, a := range f.Aliases {
			if a == name {
				return f
			}
		}
	}
	return nil
}

// Flags defines a flags type, optionally named by a bitmask
type Flags struct {
	Name     string   `yaml:"name"`
	Bitmask  string   `yaml:"bitmask,omitempty"`
	BitWidth int      `yaml:"bitWidth,omitempty"`
	Aliases  []string `yaml:"aliases,omitempty"`
}

// Handle defines an opaque reference type
type Handle struct {
	Name         string   `yaml:"name"`
	Aliases      []string `yaml:"aliases,omitempty"`
	Dispatchable bool     `yaml:"dispatchable,omitempty"`
}

// Registry is the indexed type graph
type Registry struct {
	Version           string            `yaml:"version,omitempty"`
	StructureTypeEnum string            `yaml:"structureTypeEnum,omitempty"`
	Constants         map[string]int64  `yaml:"constants,omitempty"`
	BaseTypes         map[string]string `yaml:"baseTypes,omitempty"`

	StructList  []*Struct  `yaml:"structs"`
	EnumList    []*Enum    `yaml:"enums"`
	BitmaskList []*Bitmask `yaml:"bitmasks"`
	FlagsList   []*Flags   `yaml:"flags"`
	HandleList  []*Handle  `yaml:"handles"`

	Structs  map[string]*Struct  `yaml:"-"`
	Enums    map[string]*Enum    `yaml:"-"`
	Bitmasks map[string]*Bitmask `yaml:"-"`
	Flags    map[string]*Flags   `yaml:"-"`
	Handles  map[string]*Handle  `yaml:"-"`

	aliases map[string]string
}

// Canonical resolves a type alias to its original name
func (r *Registry) Canonical(name string) string {
	if orig, ok := r.aliases[name]; ok {
		return orig
	}
	return name
}

// Struct returns record by name or alias
func (r *Registry) Struct(name string) (*Struct, bool) {
	s, ok := r.Structs[r.Canonical(name)]
	return s, ok
}

// Enum returns enumeration by name or alias
func (r *Registry) Enum(name string) (*Enum, bool) {
	e, ok := r.Enums[r.Canonical(name)]
	return e, ok
}

// Bitmask returns bitmask by name or alias
func (r *Registry) Bitmask(name string) (*Bitmask, bool) {
	b, ok := r.Bitmasks[r.Canonical(name)]
	return b, ok
}

// FlagsType returns flags type by name or alias
func (r *Registry) FlagsType(name string) (*Flags, bool) {
	f, ok := r.Flags[r.Canonical(name)]
	return f, ok
}

// Handle returns handle by name or alias
func (r *Registry) Handle(name string) (*Handle, bool) {
	h, ok := r.Handles[r.Canonical(name)]
	return h, ok
}

// Primitive resolves a base type chain down to the built-in scalar
func (r *Registry) Primitive(name string) (Primitive, bool) {
	name = r.Canonical(name)
	for range 8 {
		if p, ok := Primitives[name]; ok {
			return p, true
		}
		next, ok := r.BaseTypes[name]
		if !ok {
			break
		}
		name = next
	}
	return Primitive{}, false
}

// KindOf returns the kind of named type
// dispatching in the order handle, enum, flags, bitmask, basic, struct
func (r *Registry) KindOf(name string) Kind {
	name = r.Canonical(name)
	if _, ok := r.Handles[name]; ok {
		return KindHandle
	}
	if _, ok := r.Enums[name]; ok {
		return KindEnum
	}
	if _, ok := r.Flags[name]; ok {
		return KindFlags
	}
	if _, ok := r.Bitmasks[name]; ok {
		return KindBitmask
	}
	if p, ok := r.Primitive(name); ok {
		if p.Kind == Void {
			return KindVoid
		}
		return KindBasic
	}
	if _, ok := r.Structs[name]; ok {
		return KindStruct
	}
	return KindUnknown
}

// DiscriminatorEnum returns the enumeration holding structure type tags
func (r *Registry) DiscriminatorEnum() (*Enum, bool) {
	return r.Enum(r.StructureTypeEnum)
}

// AliasesOf returns registered aliases for the type name
func (r *Registry) AliasesOf(name string) []string {
	var aa []string
	for alias, orig := range r.aliases {
		if orig == name {
			aa = append(aa, alias)
		}
	}
	slices.Sort(aa)
	return aa
}

// TagAliases returns aliases of the discriminator tag
func (r *Registry) TagAliases(tag string) []string {
	if e, ok := r.DiscriminatorEnum(); ok {
		for _, f := range e.Fields {
			if f.Name == tag {
				return f.Aliases
			}
		}
	}
	return nil
}

// BitWidth returns the storage width of the flags type
func (r *Registry) BitWidth(f *Flags) int {
	if f.BitWidth > 0 {
		return f.BitWidth
	}
	if b, ok := r.Bitmask(f.Bitmask); ok && b.BitWidth > 0 {
		return b.BitWidth
	}
	return 32
}

// Constant resolves a named constant
func (r *Registry) Constant(name string) (int64, bool) {
	v, ok := r.Constants[strings.TrimSpace(name)]
	return v, ok
}
