package pcjson

import (
	"github.com/gwos/pcjsongen/codec"
	"github.com/gwos/pcjsongen/model"
)

// tables caches the name tables of one conversion
type tables struct {
	reg   *model.Registry
	enums map[string]*codec.EnumTable
	flags map[string]*codec.FlagTable
}

func newTables(reg *model.Registry) *tables {
	return &tables{
		reg:   reg,
		enums: map[string]*codec.EnumTable{},
		flags: map[string]*codec.FlagTable{},
	}
}

// enum returns the table of an enumeration or of a bitmask used as a single value
func (t *tables) enum(name string) *codec.EnumTable {
	if table, ok := t.enums[name]; ok {
		return table
	}
	var table *codec.EnumTable
	if e, ok := t.reg.Enum(name); ok {
		table = codec.NewEnumTable(e)
	} else if b, ok := t.reg.Bitmask(name); ok {
		table = codec.NewBitmaskEnumTable(b)
	}
	t.enums[name] = table
	return table
}

// flagTable returns nil for flags types without named bits
func (t *tables) flagTable(f *model.Flags) *codec.FlagTable {
	if table, ok := t.flags[f.Name]; ok {
		return table
	}
	var table *codec.FlagTable
	if b, ok := t.reg.Bitmask(f.Bitmask); ok {
		table = codec.NewFlagTable(b)
	}
	t.flags[f.Name] = table
	return table
}

// wide reports whether the bitmask values need unsigned 64-bit rendering
func (t *tables) wide(name string) bool {
	b, ok := t.reg.Bitmask(name)
	return ok && b.BitWidth == 64
}
