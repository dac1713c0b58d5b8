// Package pcjson converts dynamic API records to and from the pipeline JSON
// document form, following the same rules as the generated C++ routines.
package pcjson

import (
	"slices"
)

// Value is a member value held by a Record.
// It is one of nil (null pointer or absent member), int64, uint64, float64,
// string, []byte, []Value, *Record, Handle, EnumValue or FlagsValue.
type Value = any

// Handle is an opaque object reference
type Handle uint64

// EnumValue is an enumeration or single bitmask value
type EnumValue int64

// FlagsValue is a combination of bitmask flags
type FlagsValue uint64

// Record is one API record together with its extension chain
type Record struct {
	Type   string
	Fields map[string]Value
	// Chain holds the extension records in link order
	Chain []*Record
}

// NewRecord returns an empty record of the named type
func NewRecord(typeName string) *Record {
	return &Record{Type: typeName, Fields: map[string]Value{}}
}

// Set assigns a member value and returns the record
func (r *Record) Set(name string, v Value) *Record {
	if r.Fields == nil {
		r.Fields = map[string]Value{}
	}
	r.Fields[name] = v
	return r
}

// Get returns a member value, nil when absent
func (r *Record) Get(name string) Value {
	if r == nil {
		return nil
	}
	return r.Fields[name]
}

// Extend appends extension records to the chain and returns the record
func (r *Record) Extend(ext ...*Record) *Record {
	r.Chain = append(r.Chain, ext...)
	return r
}

// Extension returns the first chained record of the named type
func (r *Record) Extension(typeName string) *Record {
	if r == nil {
		return nil
	}
	i := slices.IndexFunc(r.Chain, func(ext *Record) bool { return ext != nil && ext.Type == typeName })
	if i < 0 {
		return nil
	}
	return r.Chain[i]
}

// Record returns the member holding a nested record, nil otherwise
func (r *Record) Record(name string) *Record {
	rec, _ := r.Get(name).(*Record)
	return rec
}

// List returns the member holding an array, nil otherwise
func (r *Record) List(name string) []Value {
	list, _ := r.Get(name).([]Value)
	return list
}
