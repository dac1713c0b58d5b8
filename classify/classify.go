// Package classify maps record members to the structural categories
// shared by the schema, serializer and parser emitters.
package classify

import (
	"fmt"

	"github.com/gwos/pcjsongen/errors"
	"github.com/gwos/pcjsongen/model"
)

// Category defines the structural category of a member
type Category int

// Enum categories
const (
	String Category = iota + 1
	FixedString
	StringArray
	Binary
	Pointer
	FixedArray
	Array
	Handle
	Enum
	Flags
	Bitmask
	Basic
	Struct
)

var categoryNames = [...]string{
	"", "String", "FixedString", "StringArray", "Binary", "Pointer",
	"FixedArray", "Array", "Handle", "Enum", "Flags", "Bitmask", "Basic", "Struct",
}

func (c Category) String() string {
	if c < String || c > Struct {
		return fmt.Sprintf("Category(%d)", int(c))
	}
	return categoryNames[c]
}

// Categories returns all categories in declaration order
func Categories() []Category {
	cc := make([]Category, 0, int(Struct))
	for c := String; c <= Struct; c++ {
		cc = append(cc, c)
	}
	return cc
}

// IsScalar reports whether the category is a plain element conversion
func (c Category) IsScalar() bool {
	return c >= Handle
}

// LengthDependent reports whether the category reads a length sibling
func (c Category) LengthDependent() bool {
	switch c {
	case StringArray, Binary, Array:
		return true
	}
	return false
}

// Classify returns the category of member, first matching rule wins
func Classify(reg *model.Registry, m *model.Member) (Category, error) {
	switch {
	case m.NullTerminated && len(m.FixedSizeArray) > 0:
		return FixedString, nil
	case m.NullTerminated && m.Length != "":
		return StringArray, nil
	case m.NullTerminated:
		return String, nil
	case m.Pointer && reg.KindOf(m.Type) == model.KindVoid:
		return Binary, nil
	case m.Pointer && m.Length == "":
		return Pointer, nil
	case len(m.FixedSizeArray) > 0:
		return FixedArray, nil
	case m.Pointer:
		return Array, nil
	}
	c, err := ElementCategory(reg, m.Type)
	if err != nil {
		return 0, fmt.Errorf("%w: member %s: %v", errors.ErrSchemaShape, m.Name, err)
	}
	return c, nil
}

// MustClassify is like Classify but panics on error
func MustClassify(reg *model.Registry, m *model.Member) Category {
	c, err := Classify(reg, m)
	if err != nil {
		panic(err)
	}
	return c
}

// ElementCategory classifies a type name by its own kind
func ElementCategory(reg *model.Registry, typeName string) (Category, error) {
	switch reg.KindOf(typeName) {
	case model.KindHandle:
		return Handle, nil
	case model.KindEnum:
		return Enum, nil
	case model.KindFlags:
		return Flags, nil
	case model.KindBitmask:
		return Bitmask, nil
	case model.KindBasic:
		return Basic, nil
	case model.KindStruct:
		return Struct, nil
	}
	return 0, fmt.Errorf("%w: unexpected type name %q", errors.ErrSchemaShape, typeName)
}

// Unhandled panics for a category missing from a switch
func Unhandled(c Category) {
	panic(fmt.Errorf("%w: unhandled category %v", errors.ErrSchemaShape, c))
}
