package pcjson

import (
	"math"
	"slices"
	"strings"

	"github.com/gwos/pcjsongen/classify"
	"github.com/gwos/pcjsongen/codec"
	"github.com/gwos/pcjsongen/emit"
	"github.com/gwos/pcjsongen/errors"
	"github.com/gwos/pcjsongen/model"
)

// Serializer converts records into JSON value trees
type Serializer struct {
	Reg *model.Registry
}

// NewSerializer returns a Serializer over the registry
func NewSerializer(reg *model.Registry) *Serializer {
	return &Serializer{Reg: reg}
}

type writer struct {
	reg  *model.Registry
	msgs *Messages
	*tables
}

func (s *Serializer) writer() *writer {
	return &writer{reg: s.Reg, msgs: &Messages{}, tables: newTables(s.Reg)}
}

// Serialize converts rec, the messages report every substituted value
func (s *Serializer) Serialize(rec *Record) (map[string]any, *Messages) {
	w := s.writer()
	if rec == nil {
		w.msgs.Errorf("Record is NULL")
		return nil, w.msgs
	}
	st, ok := s.Reg.Struct(rec.Type)
	if !ok {
		w.msgs.Errorf("Unknown record type: %s", rec.Type)
		return nil, w.msgs
	}
	return w.record(st, rec), w.msgs
}

// SerializeSingle converts one of the records exchanged on their own,
// selected by the structure type of rec
func (s *Serializer) SerializeSingle(rec *Record) (map[string]any, *Messages) {
	w := s.writer()
	defer w.msgs.enter("pStruct", true)()
	st := s.single(rec)
	if st == nil {
		tag := ""
		if rec != nil {
			if st, ok := s.Reg.Struct(rec.Type); ok {
				tag = st.SType
			}
		}
		w.msgs.Errorf("Unsupported structure type: %s", tag)
		return nil, w.msgs
	}
	return w.record(st, rec), w.msgs
}

func (s *Serializer) single(rec *Record) *model.Struct {
	if rec == nil {
		return nil
	}
	st, ok := s.Reg.Struct(rec.Type)
	if !ok || !st.Extensible() || !slices.Contains(emit.AllParseGenStructs(), st.Name) {
		return nil
	}
	return st
}

func (w *writer) record(st *model.Struct, rec *Record) map[string]any {
	if st.Extensible() {
		return w.chain(st, rec)
	}
	return w.contents(st, rec)
}

// chain converts rec and links its extensions in order, an extension
// not accepted by st ends the chain
func (w *writer) chain(st *model.Struct, rec *Record) map[string]any {
	obj := w.contents(st, rec)
	obj["sType"] = st.SType

	link := obj
	for _, ext := range rec.Chain {
		es := w.extension(st, ext)
		if es == nil {
			name := "NULL"
			if ext != nil {
				name = ext.Type
			}
			w.msgs.Errorf("Invalid structure type extending %s: %s", st.Name, name)
			break
		}
		pop := w.msgs.enter("pNext<"+es.Name+">", true)
		next := w.contents(es, ext)
		pop()
		next["sType"] = es.SType
		link["pNext"] = next
		link = next
	}
	link["pNext"] = NullSentinel
	return obj
}

func (w *writer) extension(base *model.Struct, ext *Record) *model.Struct {
	if ext == nil {
		return nil
	}
	es, ok := w.reg.Struct(ext.Type)
	if !ok || !slices.Contains(base.ExtendedBy, es.Name) {
		return nil
	}
	return es
}

func (w *writer) contents(st *model.Struct, rec *Record) map[string]any {
	obj := map[string]any{}
	members := st.Fields()
	if st.Union && len(members) > 1 {
		// the generated serializer cannot tell the active member, it writes the first declared
		for _, m := range members[1:] {
			if _, ok := rec.Fields[m.Name]; ok {
				w.msgs.warnAt(m.Name, "Union member skipped, only %s is written", members[0].Name)
			}
		}
		members = members[:1]
	}
	for _, m := range members {
		if v, ok := w.member(st, rec, m); ok {
			obj[m.Name] = v
		}
	}
	return obj
}

func (w *writer) member(st *model.Struct, rec *Record, m *model.Member) (any, bool) {
	cat, err := classify.Classify(w.reg, m)
	if err != nil {
		w.msgs.errorAt(m.Name, "%v", err)
		return nil, false
	}
	v := rec.Get(m.Name)
	name := m.Name

	switch cat {
	case classify.String:
		defer w.msgs.enter(name, false)()
		return w.string(v), true
	case classify.FixedString:
		defer w.msgs.enter(name, false)()
		return w.fixedString(m, v), true
	case classify.StringArray:
		return w.counted(st, rec, m, func(list []Value, i int) any {
			defer w.msgs.enterIndex(name, i)()
			return w.string(list[i])
		}), true
	case classify.Binary:
		return w.binary(st, rec, m), true
	case classify.Array:
		return w.counted(st, rec, m, func(list []Value, i int) any {
			defer w.msgs.enterIndex(name, i)()
			return w.element(m.Type, list[i])
		}), true
	case classify.Pointer:
		if v == nil {
			return NullSentinel, true
		}
		defer w.msgs.enter(name, true)()
		return w.element(m.Type, v), true
	case classify.FixedArray:
		return w.fixedArray(m, v), true
	case classify.Handle, classify.Enum, classify.Flags, classify.Bitmask, classify.Basic, classify.Struct:
		defer w.msgs.enter(name, false)()
		return w.element(m.Type, v), true
	default:
		classify.Unhandled(cat)
	}
	return nil, false
}

func (w *writer) string(v Value) any {
	switch v := v.(type) {
	case nil:
		return NullSentinel
	case string:
		return v
	}
	w.msgs.Errorf("Not a string")
	return NullSentinel
}

func (w *writer) fixedString(m *model.Member, v Value) any {
	s, ok := v.(string)
	if !ok && v != nil {
		w.msgs.Errorf("Not a string")
	}
	if i := strings.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	n, err := w.reg.Extent(m.FixedSizeArray[0])
	if err != nil {
		w.msgs.Errorf("%v", err)
		return s
	}
	if n > 0 && len(s) > n-1 {
		w.msgs.Errorf("String is longer than %d characters", n-1)
		s = s[:n-1]
	}
	return s
}

// counted converts an array member sized by its length expression
func (w *writer) counted(st *model.Struct, rec *Record, m *model.Member, elem func(list []Value, i int) any) any {
	count, err := length(w.reg, st, rec, m)
	if err != nil {
		w.msgs.errorAt(m.Name, "%v", err)
		return NullSentinel
	}
	v := rec.Get(m.Name)
	list, ok := v.([]Value)
	if v != nil && !ok {
		w.msgs.errorAt(m.Name, "Not an array")
		return NullSentinel
	}
	if count == 0 || v == nil {
		if count != 0 {
			w.msgs.errorAt(m.Name, "Array has non-zero length %d but is NULL", count)
		} else if v != nil {
			w.msgs.warnAt(m.Name, "Array has zero length but is not NULL")
		}
		return NullSentinel
	}
	if len(list) < count {
		w.msgs.errorAt(m.Name, "Array has length %d but holds %d elements", count, len(list))
		count = len(list)
	}
	out := make([]any, count)
	for i := range out {
		out[i] = elem(list, i)
	}
	return out
}

func (w *writer) binary(st *model.Struct, rec *Record, m *model.Member) any {
	size, err := length(w.reg, st, rec, m)
	if err != nil {
		w.msgs.errorAt(m.Name, "%v", err)
		return NullSentinel
	}
	v := rec.Get(m.Name)
	data, ok := v.([]byte)
	if v != nil && !ok {
		w.msgs.errorAt(m.Name, "Not a binary")
		return NullSentinel
	}
	if size == 0 || v == nil {
		if size != 0 {
			w.msgs.errorAt(m.Name, "Array has non-zero length %d but is NULL", size)
		} else if v != nil {
			w.msgs.warnAt(m.Name, "Array has zero length but is not NULL")
		}
		return NullSentinel
	}
	if len(data) < size {
		w.msgs.errorAt(m.Name, "Binary has size %d but holds %d bytes", size, len(data))
		size = len(data)
	}
	return codec.EncodeBase64(data[:size])
}

// fixedArray nests one JSON array per extent, elements are scoped by their linear index
func (w *writer) fixedArray(m *model.Member, v Value) any {
	dims := make([]int, len(m.FixedSizeArray))
	for i, d := range m.FixedSizeArray {
		n, err := w.reg.Extent(d)
		if err != nil {
			w.msgs.errorAt(m.Name, "%v", err)
			return []any{}
		}
		dims[i] = n
	}
	var nest func(v Value, k, prefix int) []any
	nest = func(v Value, k, prefix int) []any {
		list, ok := v.([]Value)
		if b, isBytes := v.([]byte); isBytes {
			list, ok = make([]Value, len(b)), true
			for i, c := range b {
				list[i] = uint64(c)
			}
		}
		if v != nil && (!ok || len(list) != dims[k]) {
			w.msgs.errorAt(m.Name, "Expected an array of %d elements", dims[k])
		}
		out := make([]any, dims[k])
		for i := range out {
			var item Value
			if i < len(list) {
				item = list[i]
			}
			pos := prefix*dims[k] + i
			if k < len(dims)-1 {
				out[i] = nest(item, k+1, pos)
				continue
			}
			pop := w.msgs.enterIndex(m.Name, pos)
			out[i] = w.element(m.Type, item)
			pop()
		}
		return out
	}
	return nest(v, 0, 0)
}

// element converts a value of the named type
func (w *writer) element(typeName string, v Value) any {
	name := w.reg.Canonical(typeName)
	switch w.reg.KindOf(name) {
	case model.KindHandle:
		u, ok := unsigned(v)
		if !ok {
			w.msgs.Errorf("Invalid %s value: %v", name, v)
		}
		return u
	case model.KindEnum, model.KindBitmask:
		return w.enumValue(name, v)
	case model.KindFlags:
		f, _ := w.reg.FlagsType(name)
		return w.flagsValue(f, v)
	case model.KindBasic:
		p, _ := w.reg.Primitive(name)
		return w.basic(p, v)
	case model.KindStruct:
		st, _ := w.reg.Struct(name)
		rec, ok := v.(*Record)
		if !ok {
			if v != nil {
				w.msgs.Errorf("Not a %s record", st.Name)
			}
			rec = NewRecord(st.Name)
		}
		return w.record(st, rec)
	}
	w.msgs.Errorf("%v: %s", errors.ErrUnknownType, typeName)
	return nil
}

func (w *writer) enumValue(name string, v Value) any {
	i, ok := signed(v)
	if !ok {
		w.msgs.Errorf("Invalid %s value: %v", name, v)
		return int64(0)
	}
	s, err := w.enum(name).Name(i)
	if err == nil {
		return s
	}
	w.msgs.Errorf("Invalid %s value: %d", name, i)
	if w.wide(name) {
		return uint64(i)
	}
	return i
}

func (w *writer) flagsValue(f *model.Flags, v Value) any {
	u, ok := unsigned(v)
	if !ok {
		w.msgs.Errorf("Invalid %s value: %v", f.Name, v)
		return int64(0)
	}
	s, err := codec.EncodeFlags(u, w.reg.BitWidth(f), w.flagTable(f))
	switch {
	case errors.Is(err, codec.ErrNoLegalFlags):
		w.msgs.Errorf("Invalid %s value, flag type has no legal nonzero values: %d", f.Name, u)
	case err != nil:
		w.msgs.Errorf("Invalid %s value: %d", f.Name, u)
	}
	if s == "" || s == "0" {
		return int64(0)
	}
	return s
}

func (w *writer) basic(p model.Primitive, v Value) any {
	switch p.Kind {
	case model.Float:
		f, ok := float(v)
		if !ok {
			w.msgs.Errorf("Not a floating point number")
		}
		if math.IsNaN(f) {
			return "NaN"
		}
		if p.Bits == 32 {
			return float64(float32(f))
		}
		return f
	case model.Unsigned:
		u, ok := unsigned(v)
		if !ok || (p.Bits < 64 && u > 1<<p.Bits-1) {
			w.msgs.Errorf("Not %s", describe(p))
		}
		return u
	}
	i, ok := signed(v)
	if !ok || !inRange(p, i) {
		w.msgs.Errorf("Not %s", describe(p))
	}
	return i
}
