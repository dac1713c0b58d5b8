// Package jsonparse emits the C++ parser header reading the JSON document
// form back into API records.
package jsonparse

import (
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/gwos/pcjsongen/classify"
	"github.com/gwos/pcjsongen/codec"
	"github.com/gwos/pcjsongen/emit"
	"github.com/gwos/pcjsongen/errors"
	"github.com/gwos/pcjsongen/guard"
	"github.com/gwos/pcjsongen/lenexpr"
	"github.com/gwos/pcjsongen/model"
	"github.com/rs/zerolog/log"
)

// Output sections in file order
const (
	SectionBasic    = "basic"
	SectionHandle   = "handle"
	SectionEnum     = "enum"
	SectionFlags    = "flags"
	SectionChain    = "struct_chain"
	SectionContents = "struct_contents"
)

// Option configures an Emitter
type Option func(*Emitter)

// WithRoots sets the records getting public parser routines
func WithRoots(names ...string) Option {
	return func(e *Emitter) {
		if len(names) > 0 {
			e.roots = names
		}
	}
}

// WithSource sets the generator name printed in the banner
func WithSource(name string) Option {
	return func(e *Emitter) { e.source = name }
}

// Emitter generates one parser header, it is not reusable across runs
type Emitter struct {
	reg    *model.Registry
	roots  []string
	source string

	memo     *emit.Memo
	sections *emit.Sections
	stats    emit.Stats
}

// New returns an Emitter over the registry
func New(reg *model.Registry, opts ...Option) *Emitter {
	e := &Emitter{
		reg:    reg,
		roots:  emit.AllParseGenStructs(),
		source: "jsonparse",
		memo:   emit.NewMemo(),
		sections: emit.NewSections(SectionBasic, SectionHandle,
			SectionEnum, SectionFlags, SectionChain, SectionContents),
		stats: emit.Stats{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Stats returns emitted routines by kind
func (e *Emitter) Stats() emit.Stats { return e.stats }

// Memo returns the routines emitted so far
func (e *Emitter) Memo() *emit.Memo { return e.memo }

// Emit writes the generated header
func (e *Emitter) Emit(w io.Writer) error {
	text, err := e.Generate()
	if err != nil {
		return err
	}
	return emit.WriteTo(w, text)
}

// Generate returns the generated header text
func (e *Emitter) Generate() (string, error) {
	e.basics()
	if _, ok := e.reg.Struct(emit.ShaderModuleStruct); ok {
		e.memo.Mark(emit.ShaderModuleStruct, "parse_"+emit.ShaderModuleStruct)
		e.sections.Get(SectionChain).Printf("%s", shaderModuleTemplate)
		e.stats.Add("manual")
	}
	for _, name := range e.roots {
		s, ok := e.reg.Struct(name)
		if !ok {
			return "", fmt.Errorf("%w: root record %s", errors.ErrUnknownType, name)
		}
		if err := e.root(s); err != nil {
			return "", err
		}
	}

	text := render(headerTmpl, map[string]string{
		"Banner":   fmt.Sprintf(emit.GeneratedBanner, e.source),
		"Basic":    e.sections.Text(SectionBasic),
		"Handle":   e.sections.Text(SectionHandle),
		"Enum":     e.sections.Text(SectionEnum),
		"Flags":    e.sections.Text(SectionFlags),
		"Chain":    e.sections.Text(SectionChain),
		"Contents": e.sections.Text(SectionContents),
	})
	log.Debug().
		Int("routines", e.memo.Len()).
		Interface("stats", e.stats).
		Msg("parser emitted")
	return text, nil
}

func render(t *template.Template, data any) string {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		panic(fmt.Sprintf("template %s: %v", t.Name(), err))
	}
	return b.String()
}

type integer struct {
	Type, Check, As, Min, Max, Desc string
}

var integers = []integer{
	{"int8_t", "isInt", "asInt", "INT8_MIN", "INT8_MAX", "an 8-bit signed integer"},
	{"uint8_t", "isUInt", "asUInt", "0", "UINT8_MAX", "an 8-bit unsigned integer"},
	{"int16_t", "isInt", "asInt", "INT16_MIN", "INT16_MAX", "a 16-bit signed integer"},
	{"uint16_t", "isUInt", "asUInt", "0", "UINT16_MAX", "a 16-bit unsigned integer"},
	{"int32_t", "isInt", "asInt", "INT32_MIN", "INT32_MAX", "a 32-bit signed integer"},
	{"uint32_t", "isUInt", "asUInt", "0", "UINT32_MAX", "a 32-bit unsigned integer"},
	{"char", "isInt", "asInt", "INT8_MIN", "INT8_MAX", "a character code"},
}

func (e *Emitter) basics() {
	sec := e.sections.Get(SectionBasic)
	for _, i := range integers {
		e.memo.Mark(i.Type, "parse_"+i.Type)
		sec.Printf("%s", render(integerTmpl, i))
	}
	sec.Printf("%s", wideTemplate)
	for _, name := range []string{"int64_t", "uint64_t", "size_t"} {
		e.memo.Mark(name, "parse_"+name)
	}
	for _, name := range []string{"float", "double"} {
		e.memo.Mark(name, "parse_"+name)
		sec.Printf("%s", render(floatTmpl, map[string]string{"Type": name}))
	}
	sec.Printf("%s", render(helpersTmpl, map[string]string{
		"Alphabet": codec.Base64Alphabet,
		"Pad":      string(codec.Base64Pad),
	}))
	e.stats["basic"] += len(integers) + 5
}

// basic returns the parser of a base type, emitting a wrapper around its primitive
func (e *Emitter) basic(name string) (string, error) {
	if routine, ok := e.memo.Lookup(name); ok {
		return routine, nil
	}
	p, ok := e.reg.Primitive(name)
	if !ok || p.Kind == model.Void {
		return "", fmt.Errorf("%w: %s is not a basic type", errors.ErrUnknownType, name)
	}
	inner, ok := e.memo.Lookup(p.Name)
	if !ok {
		return "", fmt.Errorf("%w: primitive %s has no parser", errors.ErrSchemaShape, p.Name)
	}
	routine := "parse_" + name
	e.memo.Mark(name, routine)
	e.sections.Get(SectionBasic).Printf(
		"    %[1]s %[2]s(const Json::Value& v, const LocationScope& l) { return %[1]s(%[3]s(v, l)); }\n",
		name, routine, inner)
	e.stats.Add("basic")
	return routine, nil
}

// routine returns the parser routine of typeName, emitting it on first use
func (e *Emitter) routine(typeName string) (string, error) {
	name := e.reg.Canonical(typeName)
	switch e.reg.KindOf(name) {
	case model.KindHandle:
		return e.handle(name), nil
	case model.KindEnum:
		en, _ := e.reg.Enum(name)
		return e.enum(codec.NewEnumTable(en)), nil
	case model.KindBitmask:
		b, _ := e.reg.Bitmask(name)
		return e.enum(codec.NewBitmaskEnumTable(b)), nil
	case model.KindFlags:
		f, _ := e.reg.FlagsType(name)
		return e.flags(f), nil
	case model.KindBasic:
		return e.basic(name)
	case model.KindStruct:
		s, _ := e.reg.Struct(name)
		if s.Extensible() {
			return e.chain(s)
		}
		return e.contents(s)
	}
	return "", fmt.Errorf("%w: %s", errors.ErrUnknownType, typeName)
}

func (e *Emitter) handle(name string) string {
	if routine, ok := e.memo.Lookup(name); ok {
		return routine
	}
	routine := "parse_" + name
	e.memo.Mark(name, routine)
	e.sections.Get(SectionHandle).Printf(
		"    %[1]s %[2]s(const Json::Value& json, const LocationScope& l) { return %[1]s(parse_handle(json, l)); }\n",
		name, routine)
	e.stats.Add("handle")
	return routine
}

func (e *Emitter) enum(t *codec.EnumTable) string {
	if routine, ok := e.memo.Lookup(t.Type); ok {
		return routine
	}
	routine := "parse_" + t.Type
	e.memo.Mark(t.Type, routine)

	var values strings.Builder
	var g guard.Coalescer
	for _, entry := range t.Entries {
		g.Write(&values, entry.Protect)
		fmt.Fprintf(&values, "            {\"%[1]s\", %[1]s},\n", entry.Name)
		for _, alias := range entry.Aliases {
			fmt.Fprintf(&values, "            {\"%s\", %s},\n", alias, entry.Name)
		}
	}
	g.Write(&values, "")

	def := t.Type + "(0)"
	if len(t.Entries) > 0 && t.Entries[0].Protect == "" {
		def = t.Entries[0].Name
	}
	e.sections.Get(SectionEnum).Printf("%s", render(enumTmpl, map[string]string{
		"Name":    t.Type,
		"Values":  values.String(),
		"Default": def,
	}))
	e.stats.Add("enum")
	return routine
}

func (e *Emitter) flags(f *model.Flags) string {
	if routine, ok := e.memo.Lookup(f.Name); ok {
		return routine
	}
	routine := "parse_" + f.Name
	e.memo.Mark(f.Name, routine)

	var values strings.Builder
	if b, ok := e.reg.Bitmask(f.Bitmask); ok {
		var g guard.Coalescer
		for _, flag := range b.Flags {
			g.Write(&values, flag.Protect)
			fmt.Fprintf(&values, "            {\"%[1]s\", %[1]s},\n", flag.Name)
			for _, alias := range flag.Aliases {
				fmt.Fprintf(&values, "            {\"%s\", %s},\n", alias, flag.Name)
			}
		}
		g.Write(&values, "")
	}
	e.sections.Get(SectionFlags).Printf("%s", render(flagsTmpl, map[string]string{
		"Name":   f.Name,
		"Values": values.String(),
	}))
	e.stats.Add("flags")
	return routine
}

func (e *Emitter) root(s *model.Struct) error {
	if s.Extensible() {
		_, err := e.chain(s)
		return err
	}
	if _, ok := e.memo.Lookup(s.Name); ok {
		return nil
	}
	if _, err := e.contents(s); err != nil {
		return err
	}
	e.memo.Mark(s.Name, "parse_"+s.Name)
	e.sections.Get(SectionChain).Guarded(e.protect(s), render(rootTmpl, map[string]string{"Name": s.Name}))
	e.stats.Add("root")
	return nil
}

// chain emits the routine reading the extension chain of s in encounter order
func (e *Emitter) chain(s *model.Struct) (string, error) {
	if routine, ok := e.memo.Lookup(s.Name); ok {
		return routine, nil
	}
	disc, ok := e.reg.DiscriminatorEnum()
	if !ok {
		return "", fmt.Errorf("%w: discriminator enumeration %s", errors.ErrUnknownType, e.reg.StructureTypeEnum)
	}
	routine := "parse_" + s.Name
	e.memo.Mark(s.Name, routine)
	e.enum(codec.NewEnumTable(disc))
	if _, err := e.contents(s); err != nil {
		return "", err
	}

	var cases strings.Builder
	var g guard.Coalescer
	for _, name := range s.ExtendedBy {
		ext, ok := e.reg.Struct(name)
		if !ok {
			return "", fmt.Errorf("%w: %s extends %s", errors.ErrUnknownType, name, s.Name)
		}
		if _, err := e.contents(ext); err != nil {
			return "", err
		}
		g.Write(&cases, e.protect(ext))
		cases.WriteString(render(chainCaseTmpl, map[string]string{"Name": ext.Name, "Tag": ext.SType}))
	}
	g.Write(&cases, "")

	e.sections.Get(SectionChain).Guarded(e.protect(s), render(chainTmpl, map[string]string{
		"Name":          s.Name,
		"Tag":           s.SType,
		"Discriminator": disc.Name,
		"Cases":         cases.String(),
	}))
	e.stats.Add("chain")
	return routine, nil
}

func (e *Emitter) protect(s *model.Struct) string {
	if s.Protect != "" {
		return s.Protect
	}
	if en, ok := e.reg.DiscriminatorEnum(); ok && s.SType != "" {
		if f := en.Field(s.SType); f != nil {
			return f.Protect
		}
	}
	return ""
}

// contents emits the routine reading the members of s, length dependent
// members last so that their count siblings are already known
func (e *Emitter) contents(s *model.Struct) (string, error) {
	key := s.Name + "_contents"
	if routine, ok := e.memo.Lookup(key); ok {
		return routine, nil
	}
	routine := "parse_" + key
	e.memo.Mark(key, routine)

	var b strings.Builder
	if s.Union {
		if err := e.union(&b, s); err != nil {
			return "", err
		}
	} else {
		var later []*model.Member
		for _, m := range s.Fields() {
			cat, err := classify.Classify(e.reg, m)
			if err != nil {
				return "", fmt.Errorf("%s.%s: %w", s.Name, m.Name, err)
			}
			if cat.LengthDependent() {
				later = append(later, m)
				continue
			}
			if err := e.write(&b, s, m, cat); err != nil {
				return "", err
			}
		}
		for _, m := range later {
			if err := e.write(&b, s, m, classify.MustClassify(e.reg, m)); err != nil {
				return "", err
			}
		}
	}

	e.sections.Get(SectionContents).Guarded(e.protect(s), render(contentsTmpl, map[string]string{
		"Name":    s.Name,
		"Members": b.String(),
	}))
	e.stats.Add("struct")
	return routine, nil
}

func (e *Emitter) write(b *strings.Builder, s *model.Struct, m *model.Member, cat classify.Category) error {
	code, err := e.member(s, m, cat)
	if err != nil {
		return fmt.Errorf("%s.%s: %w", s.Name, m.Name, err)
	}
	b.WriteString(code)
	return nil
}

// union reads the first member present in the object
func (e *Emitter) union(b *strings.Builder, s *model.Struct) error {
	for i, m := range s.Fields() {
		cat, err := classify.Classify(e.reg, m)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", s.Name, m.Name, err)
		}
		code, err := e.member(s, m, cat)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", s.Name, m.Name, err)
		}
		if i == 0 {
			fmt.Fprintf(b, "        if (json.isMember(\"%s\")) {\n", m.Name)
		} else {
			fmt.Fprintf(b, "        } else if (json.isMember(\"%s\")) {\n", m.Name)
		}
		b.WriteString(emit.Indent(code, "    "))
	}
	b.WriteString("        } else {\n            Error() << \"No union member is present\";\n        }\n")
	return nil
}

func (e *Emitter) parse(typeName, value, scope string) (string, error) {
	routine, err := e.routine(typeName)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s(%s, %s)", routine, value, scope), nil
}

func (e *Emitter) count(s *model.Struct, m *model.Member) (string, error) {
	if m.Length == "" {
		return "", fmt.Errorf("%w: member %s has no length", errors.ErrSchemaShape, m.Name)
	}
	expr, err := lenexpr.Parse(m.Length)
	if err != nil {
		return "", err
	}
	return expr.Rewrite(func(name string) string {
		if s.Member(name) != nil {
			return "s." + name
		}
		return name
	}), nil
}

func (e *Emitter) member(s *model.Struct, m *model.Member, cat classify.Category) (string, error) {
	name := m.Name
	switch cat {
	case classify.String:
		return fmt.Sprintf("        s.%[1]s = parse_string(json[\"%[1]s\"], CreateScope(\"%[1]s\"));\n", name), nil
	case classify.FixedString:
		return fmt.Sprintf("        parse_fixed_string(json[\"%[1]s\"], s.%[1]s, %[2]s, CreateScope(\"%[1]s\"));\n",
			name, m.FixedSizeArray[0]), nil
	case classify.StringArray:
		count, err := e.count(s, m)
		if err != nil {
			return "", err
		}
		return render(countedTmpl, map[string]string{
			"Name":  name,
			"Count": count,
			"Elem":  "const char*",
			"Parse": fmt.Sprintf("parse_string(json_member[i], CreateScope(\"%s\", i))", name),
		}), nil
	case classify.Binary:
		count, err := e.count(s, m)
		if err != nil {
			return "", err
		}
		return render(binaryTmpl, map[string]string{"Name": name, "Count": count}), nil
	case classify.Array:
		count, err := e.count(s, m)
		if err != nil {
			return "", err
		}
		parse, err := e.parse(m.Type, "json_member[i]", fmt.Sprintf("CreateScope(\"%s\", i)", name))
		if err != nil {
			return "", err
		}
		return render(countedTmpl, map[string]string{"Name": name, "Count": count, "Elem": m.Type, "Parse": parse}), nil
	case classify.Pointer:
		parse, err := e.parse(m.Type, "json_member", fmt.Sprintf("CreateScope(\"%s\", true)", name))
		if err != nil {
			return "", err
		}
		return render(pointerTmpl, map[string]string{"Name": name, "Elem": m.Type, "Parse": parse}), nil
	case classify.FixedArray:
		return e.fixedArray(m)
	case classify.Handle, classify.Enum, classify.Flags, classify.Bitmask, classify.Basic, classify.Struct:
		parse, err := e.parse(m.Type, fmt.Sprintf("json[\"%s\"]", name), fmt.Sprintf("CreateScope(\"%s\")", name))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("        s.%s = %s;\n", name, parse), nil
	default:
		classify.Unhandled(cat)
	}
	return "", nil
}

// fixedArray checks the extent of every nesting level, elements are scoped by their linear index
func (e *Emitter) fixedArray(m *model.Member) (string, error) {
	dims := m.FixedSizeArray
	pad := func(depth int) string { return strings.Repeat("    ", depth+2) }

	index, linear := "", ""
	for k, d := range dims {
		i := fmt.Sprintf("i%d", k)
		index += "[" + i + "]"
		switch k {
		case 0:
			linear = i
		case 1:
			linear = fmt.Sprintf("%s * uint32_t(%s) + %s", linear, d, i)
		default:
			linear = fmt.Sprintf("(%s) * uint32_t(%s) + %s", linear, d, i)
		}
	}
	last := len(dims) - 1
	parse, err := e.parse(m.Type, fmt.Sprintf("json_%d[i%d]", last, last), fmt.Sprintf("CreateScope(\"%s\", %s)", m.Name, linear))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s{\n%sconst auto& json_0 = json[\"%s\"];\n", pad(0), pad(1), m.Name)
	var level func(k, depth int)
	level = func(k, depth int) {
		fmt.Fprintf(&b, "%[1]sif (!json_%[2]d.isArray() || json_%[2]d.size() != uint32_t(%[3]s)) {\n", pad(depth), k, dims[k])
		fmt.Fprintf(&b, "%sconst auto scope = CreateScope(\"%s\");\n", pad(depth+1), m.Name)
		fmt.Fprintf(&b, "%sError() << \"Expected an array of \" << uint32_t(%s) << \" elements\";\n", pad(depth+1), dims[k])
		fmt.Fprintf(&b, "%s} else {\n", pad(depth))
		fmt.Fprintf(&b, "%[1]sfor (uint32_t i%[2]d = 0; i%[2]d < uint32_t(%[3]s); ++i%[2]d) {\n", pad(depth+1), k, dims[k])
		if k < last {
			fmt.Fprintf(&b, "%sconst auto& json_%d = json_%d[i%d];\n", pad(depth+2), k+1, k, k)
			level(k+1, depth+2)
		} else {
			fmt.Fprintf(&b, "%ss.%s%s = %s;\n", pad(depth+2), m.Name, index, parse)
		}
		fmt.Fprintf(&b, "%s}\n%s}\n", pad(depth+1), pad(depth))
	}
	level(0, 1)
	fmt.Fprintf(&b, "%s}\n", pad(0))
	return b.String(), nil
}
