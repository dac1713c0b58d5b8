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

// Policy selects how parsing reacts to reported errors
type Policy int

// Enum policies
const (
	// ContinueOnError substitutes defaults and parses the rest of the document
	ContinueOnError Policy = iota
	// FailFast stops at the first member reporting an error
	FailFast
)

func (p Policy) String() string {
	if p == FailFast {
		return "fail-fast"
	}
	return "continue"
}

// ParsePolicy returns the policy named by s, ContinueOnError for unknown names
func ParsePolicy(s string) Policy {
	if s == FailFast.String() {
		return FailFast
	}
	return ContinueOnError
}

// Parser converts JSON value trees into records
type Parser struct {
	Reg    *model.Registry
	Policy Policy
}

// NewParser returns a Parser over the registry
func NewParser(reg *model.Registry, policy Policy) *Parser {
	return &Parser{Reg: reg, Policy: policy}
}

type reader struct {
	reg    *model.Registry
	policy Policy
	arena  *Arena
	msgs   *Messages
	*tables
}

func (p *Parser) reader(a *Arena) *reader {
	return &reader{reg: p.Reg, policy: p.Policy, arena: a, msgs: &Messages{}, tables: newTables(p.Reg)}
}

// Parse reads a record of the named type from doc with a fresh arena
func (p *Parser) Parse(typeName string, doc any) (*Record, *Messages) {
	return p.ParseInto(&Arena{}, typeName, doc)
}

// ParseInto reads a record of the named type from doc, arrays and binaries
// are allocated from a
func (p *Parser) ParseInto(a *Arena, typeName string, doc any) (*Record, *Messages) {
	r := p.reader(a)
	st, ok := p.Reg.Struct(typeName)
	if !ok {
		r.msgs.Errorf("Unknown record type: %s", typeName)
		return nil, r.msgs
	}
	return r.record(st, doc), r.msgs
}

// ParseSingle reads one of the records exchanged on their own,
// selected by the sType member of doc
func (p *Parser) ParseSingle(doc any) (*Record, *Messages) {
	r := p.reader(&Arena{})
	defer r.msgs.enter("$", false)()
	obj, ok := doc.(map[string]any)
	if !ok {
		r.msgs.Errorf("Not a JSON object")
		return nil, r.msgs
	}
	tag, _ := obj["sType"].(string)
	for _, name := range emit.AllParseGenStructs() {
		st, ok := p.Reg.Struct(name)
		if ok && st.Extensible() && r.sameTag(st.SType, tag) {
			return r.record(st, doc), r.msgs
		}
	}
	r.msgs.Errorf("Unsupported structure type: %s", tag)
	return nil, r.msgs
}

func (r *reader) failed() bool { return r.policy == FailFast && !r.msgs.OK() }

// sameTag reports whether name is the tag or one of its aliases
func (r *reader) sameTag(tag, name string) bool {
	return name == tag || slices.Contains(r.reg.TagAliases(tag), name)
}

func (r *reader) record(st *model.Struct, v any) *Record {
	if st.Extensible() {
		return r.chain(st, v)
	}
	return r.contents(st, v)
}

// chain reads the record and its extensions in encounter order
func (r *reader) chain(st *model.Struct, v any) *Record {
	rec := r.contents(st, v)
	obj, ok := v.(map[string]any)
	if !ok || r.failed() {
		return rec
	}

	disc := r.reg.StructureTypeEnum
	stype, ok := obj["sType"].(string)
	if !ok {
		r.msgs.Errorf("Invalid sType format")
	} else if tag := r.tagValue(disc, stype, "sType"); tag != r.tagValue(disc, st.SType, "") {
		r.msgs.Errorf("Invalid sType value: %s", stype)
	}

	next := obj["pNext"]
	for {
		link, ok := next.(map[string]any)
		if !ok || r.failed() {
			break
		}
		pop := r.msgs.enter("pNext", true)
		name, _ := link["sType"].(string)
		tag := r.tagValue(disc, name, "")
		pop()
		es := r.extension(st, tag)
		if es == nil {
			r.msgs.Errorf("Invalid structure type extending %s: %s", st.Name, name)
			break
		}
		pop = r.msgs.enter("pNext<"+es.Name+">", true)
		ext := r.contents(es, link)
		pop()
		rec.Chain = append(rec.Chain, ext)
		next = link["pNext"]
	}
	if _, ok := next.(map[string]any); !ok && !isNull(next) {
		r.msgs.Errorf("Invalid pNext format")
	}
	return rec
}

// tagValue reads a discriminator name, reporting unknown names at scope unless it is empty
func (r *reader) tagValue(disc, name, scope string) int64 {
	table := r.enum(disc)
	if table == nil {
		return -1
	}
	v, err := table.Value(name)
	if err != nil {
		if scope != "" {
			r.msgs.errorAt(scope, "Invalid %s value: %s", disc, name)
		}
		return -1
	}
	return v
}

func (r *reader) extension(base *model.Struct, tag int64) *model.Struct {
	if tag < 0 {
		return nil
	}
	for _, name := range base.ExtendedBy {
		es, ok := r.reg.Struct(name)
		if ok && r.tagValue(r.reg.StructureTypeEnum, es.SType, "") == tag {
			return es
		}
	}
	return nil
}

// contents reads the members of st, length dependent members last so
// that their count siblings are already known
func (r *reader) contents(st *model.Struct, v any) *Record {
	rec := NewRecord(st.Name)
	obj, ok := v.(map[string]any)
	if !ok {
		r.msgs.Errorf("Not a %s object", st.Name)
		return rec
	}
	if st.Union {
		r.union(st, rec, obj)
		return rec
	}
	var later []*model.Member
	for _, m := range st.Fields() {
		if r.failed() {
			return rec
		}
		cat, err := classify.Classify(r.reg, m)
		if err != nil {
			r.msgs.errorAt(m.Name, "%v", err)
			continue
		}
		if cat.LengthDependent() {
			later = append(later, m)
			continue
		}
		rec.Fields[m.Name] = r.member(st, rec, m, cat, obj[m.Name])
	}
	for _, m := range later {
		if r.failed() {
			return rec
		}
		rec.Fields[m.Name] = r.member(st, rec, m, classify.MustClassify(r.reg, m), obj[m.Name])
	}
	return rec
}

// union reads the first member present in the object
func (r *reader) union(st *model.Struct, rec *Record, obj map[string]any) {
	for _, m := range st.Fields() {
		raw, ok := obj[m.Name]
		if !ok {
			continue
		}
		cat, err := classify.Classify(r.reg, m)
		if err != nil {
			r.msgs.errorAt(m.Name, "%v", err)
			return
		}
		rec.Fields[m.Name] = r.member(st, rec, m, cat, raw)
		return
	}
	r.msgs.Errorf("No union member is present")
}

func (r *reader) member(st *model.Struct, rec *Record, m *model.Member, cat classify.Category, raw any) Value {
	name := m.Name
	switch cat {
	case classify.String:
		defer r.msgs.enter(name, false)()
		return r.string(raw)
	case classify.FixedString:
		defer r.msgs.enter(name, false)()
		return r.fixedString(m, raw)
	case classify.StringArray:
		return r.counted(st, rec, m, raw, func(item any, i int) Value {
			defer r.msgs.enterIndex(name, i)()
			return r.string(item)
		})
	case classify.Binary:
		return r.binary(st, rec, m, raw)
	case classify.Array:
		return r.counted(st, rec, m, raw, func(item any, i int) Value {
			defer r.msgs.enterIndex(name, i)()
			return r.element(m.Type, item)
		})
	case classify.Pointer:
		if isNull(raw) {
			return nil
		}
		defer r.msgs.enter(name, true)()
		return r.element(m.Type, raw)
	case classify.FixedArray:
		return r.fixedArray(m, raw)
	case classify.Handle, classify.Enum, classify.Flags, classify.Bitmask, classify.Basic, classify.Struct:
		defer r.msgs.enter(name, false)()
		return r.element(m.Type, raw)
	default:
		classify.Unhandled(cat)
	}
	return nil
}

func (r *reader) string(raw any) Value {
	s, ok := raw.(string)
	if !ok {
		r.msgs.Errorf("Not a string")
		return nil
	}
	if s == NullSentinel {
		return nil
	}
	return s
}

func (r *reader) fixedString(m *model.Member, raw any) Value {
	s, ok := raw.(string)
	if !ok {
		r.msgs.Errorf("Not a string")
		return ""
	}
	n, err := r.reg.Extent(m.FixedSizeArray[0])
	if err != nil {
		r.msgs.Errorf("%v", err)
		return ""
	}
	if len(s) >= n {
		r.msgs.Errorf("String is longer than %d characters", n-1)
		return ""
	}
	return s
}

// counted reads an array member whose length comes from siblings read earlier
func (r *reader) counted(st *model.Struct, rec *Record, m *model.Member, raw any, elem func(item any, i int) Value) Value {
	count, err := length(r.reg, st, rec, m)
	if err != nil {
		r.msgs.errorAt(m.Name, "%v", err)
		return nil
	}
	if isNull(raw) {
		if count != 0 {
			r.msgs.errorAt(m.Name, "Array is NULL but its length is %d", count)
		}
		return nil
	}
	list, ok := raw.([]any)
	switch {
	case !ok:
		r.msgs.errorAt(m.Name, "Not an array")
		return nil
	case len(list) != count:
		r.msgs.errorAt(m.Name, "Array length %d does not match expected length %d", len(list), count)
		return nil
	case count == 0:
		r.msgs.warnAt(m.Name, "Empty array with zero length, using NULL")
		return nil
	}
	out := r.arena.Values(count)
	for i, item := range list {
		out[i] = elem(item, i)
	}
	return out
}

func (r *reader) binary(st *model.Struct, rec *Record, m *model.Member, raw any) Value {
	size, err := length(r.reg, st, rec, m)
	if err != nil {
		r.msgs.errorAt(m.Name, "%v", err)
		return nil
	}
	if isNull(raw) {
		if size != 0 {
			r.msgs.errorAt(m.Name, "Binary is NULL but its size is %d", size)
		}
		return nil
	}
	defer r.msgs.enter(m.Name, false)()
	data, err := codec.DecodeBinary(raw)
	if err != nil {
		r.msgs.Errorf("%v", err)
		return nil
	}
	if len(data) != size {
		r.msgs.Errorf("Binary size mismatch, expected %d bytes, got %d", size, len(data))
		return nil
	}
	out := r.arena.Bytes(size)
	copy(out, data)
	return out
}

// fixedArray checks the extent of every nesting level, elements are scoped by their linear index
func (r *reader) fixedArray(m *model.Member, raw any) Value {
	dims := make([]int, len(m.FixedSizeArray))
	for i, d := range m.FixedSizeArray {
		n, err := r.reg.Extent(d)
		if err != nil {
			r.msgs.errorAt(m.Name, "%v", err)
			return nil
		}
		dims[i] = n
	}
	var nest func(raw any, k, prefix int) []Value
	nest = func(raw any, k, prefix int) []Value {
		out := r.arena.Values(dims[k])
		list, ok := raw.([]any)
		if !ok || len(list) != dims[k] {
			r.msgs.errorAt(m.Name, "Expected an array of %d elements", dims[k])
			return out
		}
		for i, item := range list {
			pos := prefix*dims[k] + i
			if k < len(dims)-1 {
				out[i] = nest(item, k+1, pos)
				continue
			}
			pop := r.msgs.enterIndex(m.Name, pos)
			out[i] = r.element(m.Type, item)
			pop()
		}
		return out
	}
	return nest(raw, 0, 0)
}

// element reads a value of the named type
func (r *reader) element(typeName string, raw any) Value {
	name := r.reg.Canonical(typeName)
	switch r.reg.KindOf(name) {
	case model.KindHandle:
		return r.handle(raw)
	case model.KindEnum, model.KindBitmask:
		return r.enumValue(name, raw)
	case model.KindFlags:
		f, _ := r.reg.FlagsType(name)
		return r.flagsValue(f, raw)
	case model.KindBasic:
		p, _ := r.reg.Primitive(name)
		return r.basic(p, raw)
	case model.KindStruct:
		st, _ := r.reg.Struct(name)
		return r.record(st, raw)
	}
	r.msgs.Errorf("%v: %s", errors.ErrUnknownType, typeName)
	return nil
}

// handle reads a handle, symbolic and blanked string values carry no object
func (r *reader) handle(raw any) Value {
	if s, ok := raw.(string); ok {
		u, ok := codec.ToUint64(jsonNumber(s))
		if !ok {
			return Handle(0)
		}
		return Handle(u)
	}
	u, ok := codec.ToUint64(raw)
	if !ok {
		r.msgs.Errorf("Not a 64-bit unsigned integer")
		return Handle(0)
	}
	return Handle(u)
}

func (r *reader) enumValue(name string, raw any) Value {
	table := r.enum(name)
	s, ok := raw.(string)
	if !ok {
		r.msgs.Errorf("Invalid %s format", name)
		return EnumValue(table.Default())
	}
	v, err := table.Value(s)
	if err != nil {
		r.msgs.Errorf("Invalid %s value: %s", name, s)
		return EnumValue(table.Default())
	}
	return EnumValue(v)
}

func (r *reader) flagsValue(f *model.Flags, raw any) Value {
	if u, ok := codec.ToUint64(raw); ok && u == 0 {
		return FlagsValue(0)
	}
	s, ok := raw.(string)
	if !ok {
		r.msgs.Errorf("Invalid %s format", f.Name)
		return FlagsValue(0)
	}
	table := r.flagTable(f)
	var v uint64
	for _, token := range strings.Split(s, "|") {
		token = strings.TrimSpace(token)
		bit, err := codec.DecodeFlags(token, table)
		if err != nil {
			r.msgs.Errorf("Invalid %s value: %s", f.Name, token)
			continue
		}
		v |= bit
	}
	return FlagsValue(v)
}

func (r *reader) basic(p model.Primitive, raw any) Value {
	switch p.Kind {
	case model.Float:
		if s, ok := raw.(string); ok && s == "NaN" {
			return math.NaN()
		}
		f, ok := codec.ToFloat64(raw)
		if !ok {
			r.msgs.Errorf("Not a floating point number")
			return float64(0)
		}
		return f
	case model.Unsigned:
		u, ok := codec.ToUint64(raw)
		if !ok && p.Wide() {
			if s, isString := raw.(string); isString {
				u, ok = codec.ToUint64(jsonNumber(s))
			}
		}
		if !ok || (p.Bits < 64 && u > 1<<p.Bits-1) {
			r.msgs.Errorf("Not %s", describe(p))
			return uint64(0)
		}
		return u
	}
	i, ok := codec.ToInt64(raw)
	if !ok || !inRange(p, i) {
		r.msgs.Errorf("Not %s", describe(p))
		return int64(0)
	}
	return i
}
