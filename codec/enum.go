package codec

import (
	"fmt"

	"github.com/gwos/pcjsongen/errors"
	"github.com/gwos/pcjsongen/model"
)

// EnumEntry is a named enumeration value
type EnumEntry struct {
	Name    string
	Value   int64
	Aliases []string
	Protect string
}

// EnumTable maps between enumeration values and names
type EnumTable struct {
	Type    string
	Entries []EnumEntry
	byName  map[string]int64
	byValue map[int64]string
}

// NewEnumTable builds the table for enumeration
func NewEnumTable(e *model.Enum) *EnumTable {
	t := newEnumTable(e.Name, len(e.Fields))
	for _, f := range e.Fields {
		t.add(EnumEntry{f.Name, f.Value, f.Aliases, f.Protect})
	}
	return t
}

// NewBitmaskEnumTable builds the table for a bitmask used as a single value
func NewBitmaskEnumTable(b *model.Bitmask) *EnumTable {
	t := newEnumTable(b.Name, len(b.Flags))
	for _, f := range b.Flags {
		t.add(EnumEntry{f.Name, int64(f.Value), f.Aliases, f.Protect})
	}
	return t
}

func newEnumTable(name string, n int) *EnumTable {
	return &EnumTable{
		Type:    name,
		Entries: make([]EnumEntry, 0, n),
		byName:  make(map[string]int64, n),
		byValue: make(map[int64]string, n),
	}
}

func (t *EnumTable) add(e EnumEntry) {
	t.Entries = append(t.Entries, e)
	t.byName[e.Name] = e.Value
	for _, a := range e.Aliases {
		t.byName[a] = e.Value
	}
	if _, ok := t.byValue[e.Value]; !ok {
		t.byValue[e.Value] = e.Name
	}
}

// Name returns the first declared name of v
func (t *EnumTable) Name(v int64) (string, error) {
	if name, ok := t.byValue[v]; ok {
		return name, nil
	}
	return "", fmt.Errorf("%w: invalid %s value %d", errors.ErrInvalidInput, t.Type, v)
}

// Value returns the value of name or alias
func (t *EnumTable) Value(name string) (int64, error) {
	if v, ok := t.byName[name]; ok {
		return v, nil
	}
	return t.Default(), fmt.Errorf("%w: invalid %s value %q", errors.ErrInvalidInput, t.Type, name)
}

// Default returns the first declared value, zero for empty enumerations
func (t *EnumTable) Default() int64 {
	if len(t.Entries) == 0 {
		return 0
	}
	return t.Entries[0].Value
}

// Names returns names and aliases in declaration order
func (t *EnumTable) Names() []string {
	nn := make([]string, 0, len(t.byName))
	for _, e := range t.Entries {
		nn = append(nn, e.Name)
		nn = append(nn, e.Aliases...)
	}
	return nn
}
