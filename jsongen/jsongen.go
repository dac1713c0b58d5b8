// Package jsongen emits the C++ serializer header converting API records
// into the JSON document form described by the schema.
//
// A union is written through its first declared member, the active member
// is not known to the generated code.
package jsongen

import (
	"fmt"
	"io"
	"slices"
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
	SectionEnumCStr = "enum_c_str"
	SectionEnum     = "enum"
	SectionFlags    = "flags"
	SectionChain    = "struct_chain"
	SectionContents = "struct_contents"
)

// Option configures an Emitter
type Option func(*Emitter)

// WithRoots sets the records getting public serializer routines
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

// Emitter generates one serializer header, it is not reusable across runs
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
		source: "jsongen",
		memo:   emit.NewMemo(),
		sections: emit.NewSections(SectionBasic, SectionHandle, SectionEnumCStr,
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
	if err := e.basics(); err != nil {
		return "", err
	}
	if _, ok := e.reg.Struct(emit.ShaderModuleStruct); ok {
		e.memo.Mark(emit.ShaderModuleStruct, "gen_"+emit.ShaderModuleStruct)
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
		"EnumCStr": e.sections.Text(SectionEnumCStr),
		"Enum":     e.sections.Text(SectionEnum),
		"Flags":    e.sections.Text(SectionFlags),
		"Chain":    e.sections.Text(SectionChain),
		"Contents": e.sections.Text(SectionContents),
	})
	log.Debug().
		Int("routines", e.memo.Len()).
		Interface("stats", e.stats).
		Msg("serializer emitted")
	return text, nil
}

func render(t *template.Template, data any) string {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		panic(fmt.Sprintf("template %s: %v", t.Name(), err))
	}
	return b.String()
}

func (e *Emitter) basics() error {
	for _, name := range model.PrimitiveOrder {
		if _, err := e.basic(name); err != nil {
			return err
		}
	}
	e.sections.Get(SectionBasic).Printf("%s", render(binaryTmpl, map[string]string{
		"Alphabet": codec.Base64Alphabet,
		"Pad":      string(codec.Base64Pad),
	}))
	return nil
}

// basic emits the routine of a primitive or of a base type resolving to one
func (e *Emitter) basic(name string) (string, error) {
	if routine, ok := e.memo.Lookup(name); ok {
		return routine, nil
	}
	p, ok := e.reg.Primitive(name)
	if !ok || p.Kind == model.Void {
		return "", fmt.Errorf("%w: %s is not a basic type", errors.ErrUnknownType, name)
	}
	routine := "gen_" + name
	e.memo.Mark(name, routine)
	sec := e.sections.Get(SectionBasic)
	e.stats.Add("basic")

	if p.Name != name {
		inner, err := e.basic(p.Name)
		if err != nil {
			return "", err
		}
		sec.Printf("    Json::Value %[1]s(const %[2]s v, const LocationScope& l) { return %[3]s(v, l); }\n",
			routine, name, inner)
		return routine, nil
	}
	switch {
	case p.Kind == model.Float:
		sec.Printf(`    Json::Value %[1]s(const %[2]s v, const LocationScope&) {
        if (std::isnan(v)) {
            return "NaN";
        }
        return v;
    }
`, routine, name)
	case p.Kind == model.Signed && p.Wide():
		sec.Printf("    Json::Value %s(const %s v, const LocationScope&) { return Json::Int64(v); }\n", routine, name)
	case p.Kind == model.Unsigned && p.Wide():
		sec.Printf("    Json::Value %s(const %s v, const LocationScope&) { return Json::UInt64(v); }\n", routine, name)
	case p.Kind == model.Char:
		sec.Printf("    Json::Value %s(const %s v, const LocationScope&) { return int(v); }\n", routine, name)
	default:
		sec.Printf("    Json::Value %s(const %s v, const LocationScope&) { return v; }\n", routine, name)
	}
	return routine, nil
}

// routine returns the serializer routine of typeName, emitting it on first use
func (e *Emitter) routine(typeName string) (string, error) {
	name := e.reg.Canonical(typeName)
	switch e.reg.KindOf(name) {
	case model.KindHandle:
		return e.handle(name), nil
	case model.KindEnum:
		en, _ := e.reg.Enum(name)
		return e.enum(codec.NewEnumTable(en), "Json::Int64"), nil
	case model.KindBitmask:
		b, _ := e.reg.Bitmask(name)
		cast := "Json::Int64"
		if b.BitWidth == 64 {
			cast = "Json::UInt64"
		}
		return e.enum(codec.NewBitmaskEnumTable(b), cast), nil
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
	routine := "gen_" + name
	e.memo.Mark(name, routine)
	e.sections.Get(SectionHandle).Printf(
		"    Json::Value %s(const %s v, const LocationScope&) { return Json::UInt64(uint64_t(v)); }\n", routine, name)
	e.stats.Add("handle")
	return routine
}

func (e *Emitter) enum(t *codec.EnumTable, cast string) string {
	if routine, ok := e.memo.Lookup(t.Type); ok {
		return routine
	}
	routine := "gen_" + t.Type
	e.memo.Mark(t.Type, routine)

	var b strings.Builder
	var g guard.Coalescer
	fmt.Fprintf(&b, "\n    const char* %s_c_str(const %s v) {\n        switch (v) {\n", routine, t.Type)
	seen := map[int64]bool{}
	for _, entry := range t.Entries {
		if seen[entry.Value] {
			continue
		}
		seen[entry.Value] = true
		g.Write(&b, entry.Protect)
		fmt.Fprintf(&b, "            case %[1]s:\n                return \"%[1]s\";\n", entry.Name)
	}
	g.Write(&b, "")
	b.WriteString("            default:\n                return nullptr;\n        }\n    }\n")

	e.sections.Get(SectionEnumCStr).Printf("%s", b.String())
	e.sections.Get(SectionEnum).Printf("%s", render(enumTmpl, map[string]string{"Name": t.Type, "Cast": cast}))
	e.stats.Add("enum")
	return routine
}

func (e *Emitter) flags(f *model.Flags) string {
	if routine, ok := e.memo.Lookup(f.Name); ok {
		return routine
	}
	routine := "gen_" + f.Name
	e.memo.Mark(f.Name, routine)
	e.stats.Add("flags")
	sec := e.sections.Get(SectionFlags)

	b, ok := e.reg.Bitmask(f.Bitmask)
	if !ok {
		sec.Printf("%s", render(noFlagsTmpl, map[string]string{"Name": f.Name}))
		return routine
	}
	t := codec.NewFlagTable(b)
	protect := func(name string) string {
		if flag := b.Flag(name); flag != nil {
			return flag.Protect
		}
		return ""
	}

	var multi, single strings.Builder
	var g guard.Coalescer
	for _, entry := range t.Multi {
		g.Write(&multi, protect(entry.Name))
		fmt.Fprintf(&multi, `        if ((v & %[1]s) == %[1]s && (consumed & %[1]s) == 0) {
            append("%[1]s");
            consumed |= %[1]s;
        }
`, entry.Name)
	}
	g.Write(&multi, "")

	positions := make([]int, 0, len(t.Single))
	for pos := range t.Single {
		positions = append(positions, pos)
	}
	slices.Sort(positions)
	for _, pos := range positions {
		name := t.Single[pos]
		g.Write(&single, protect(name))
		fmt.Fprintf(&single, "        if ((rest & %[1]s) != 0) {\n            append(\"%[1]s\");\n        }\n", name)
	}
	g.Write(&single, "")

	var known uint64
	for _, flag := range b.Flags {
		known |= flag.Value
	}
	sec.Printf("%s", render(flagsTmpl, map[string]string{
		"Name":      f.Name,
		"Separator": codec.FlagSeparator,
		"Multi":     multi.String(),
		"Single":    single.String(),
		"Known":     fmt.Sprintf("0x%XULL", known),
	}))
	return routine
}

// root emits the public routine of a record listed in the roots
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
	e.memo.Mark(s.Name, "gen_"+s.Name)
	e.sections.Get(SectionChain).Guarded(s.Protect, render(rootTmpl, map[string]string{"Name": s.Name}))
	e.stats.Add("root")
	return nil
}

// chain emits the routine walking the extension chain of s
func (e *Emitter) chain(s *model.Struct) (string, error) {
	if routine, ok := e.memo.Lookup(s.Name); ok {
		return routine, nil
	}
	routine := "gen_" + s.Name
	e.memo.Mark(s.Name, routine)
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
		"Name":  s.Name,
		"Tag":   s.SType,
		"Cases": cases.String(),
	}))
	e.stats.Add("chain")
	return routine, nil
}

// protect returns the guard of the record, falling back to the guard of its tag
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

// contents emits the routine converting the members of s
func (e *Emitter) contents(s *model.Struct) (string, error) {
	key := s.Name + "_contents"
	if routine, ok := e.memo.Lookup(key); ok {
		return routine, nil
	}
	routine := "gen_" + key
	e.memo.Mark(key, routine)

	members := s.Fields()
	if s.Union && len(members) > 1 {
		members = members[:1]
	}
	var b strings.Builder
	for _, m := range members {
		code, err := e.member(s, m)
		if err != nil {
			return "", fmt.Errorf("%s.%s: %w", s.Name, m.Name, err)
		}
		b.WriteString(code)
	}
	e.sections.Get(SectionContents).Guarded(e.protect(s), render(contentsTmpl, map[string]string{
		"Name":    s.Name,
		"Members": b.String(),
	}))
	e.stats.Add("struct")
	return routine, nil
}

func (e *Emitter) elem(typeName, value, scope string) (string, error) {
	routine, err := e.routine(typeName)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s(%s, %s)", routine, value, scope), nil
}

// count renders the length expression of m over the members of s
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

func (e *Emitter) counted(s *model.Struct, m *model.Member, body func(count string) (string, error)) (string, error) {
	count, err := e.count(s, m)
	if err != nil {
		return "", err
	}
	text, err := body(count)
	if err != nil {
		return "", err
	}
	return render(countedTmpl, map[string]string{"Name": m.Name, "Count": count, "Body": text}), nil
}

func loop(name, count, elem string) string {
	return fmt.Sprintf(`            auto& json_array = json["%[1]s"] = Json::arrayValue;
            for (uint32_t i = 0; i < uint32_t(%[2]s); ++i) {
                json_array.append(%[3]s);
            }
`, name, count, elem)
}

func (e *Emitter) member(s *model.Struct, m *model.Member) (string, error) {
	cat, err := classify.Classify(e.reg, m)
	if err != nil {
		return "", err
	}
	name := m.Name
	switch cat {
	case classify.String:
		return fmt.Sprintf("        json[\"%[1]s\"] = (s.%[1]s != nullptr) ? Json::Value(s.%[1]s) : Json::Value(\"NULL\");\n", name), nil
	case classify.FixedString:
		return fmt.Sprintf("        json[\"%[1]s\"] = std::string(s.%[1]s, std::find(s.%[1]s, s.%[1]s + %[2]s, '\\0'));\n",
			name, m.FixedSizeArray[0]), nil
	case classify.StringArray:
		return e.counted(s, m, func(count string) (string, error) {
			return loop(name, count, fmt.Sprintf(
				"(s.%[1]s[i] != nullptr) ? Json::Value(s.%[1]s[i]) : Json::Value(\"NULL\")", name)), nil
		})
	case classify.Binary:
		return e.counted(s, m, func(count string) (string, error) {
			return fmt.Sprintf("            json[\"%s\"] = gen_binary(s.%s, %s);\n", name, name, count), nil
		})
	case classify.Array:
		return e.counted(s, m, func(count string) (string, error) {
			elem, err := e.elem(m.Type, fmt.Sprintf("s.%s[i]", name), fmt.Sprintf("CreateScope(\"%s\", i)", name))
			if err != nil {
				return "", err
			}
			return loop(name, count, elem), nil
		})
	case classify.Pointer:
		elem, err := e.elem(m.Type, "*s."+name, fmt.Sprintf("CreateScope(\"%s\", true)", name))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("        json[\"%[1]s\"] = (s.%[1]s != nullptr) ? %[2]s : Json::Value(\"NULL\");\n", name, elem), nil
	case classify.FixedArray:
		return e.fixedArray(m)
	case classify.Handle, classify.Enum, classify.Flags, classify.Bitmask, classify.Basic, classify.Struct:
		elem, err := e.elem(m.Type, "s."+name, fmt.Sprintf("CreateScope(\"%s\")", name))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("        json[\"%s\"] = %s;\n", name, elem), nil
	default:
		classify.Unhandled(cat)
	}
	return "", nil
}

// fixedArray nests one JSON array per extent, elements are scoped by their linear index
func (e *Emitter) fixedArray(m *model.Member) (string, error) {
	dims := m.FixedSizeArray
	pad := func(depth int) string { return strings.Repeat("    ", depth+2) }

	var b strings.Builder
	fmt.Fprintf(&b, "%s{\n", pad(0))
	fmt.Fprintf(&b, "%sauto& json_array_0 = json[\"%s\"] = Json::arrayValue;\n", pad(1), m.Name)
	index, linear := "", ""
	for k, d := range dims {
		i := fmt.Sprintf("i%d", k)
		fmt.Fprintf(&b, "%[1]sfor (uint32_t %[2]s = 0; %[2]s < uint32_t(%[3]s); ++%[2]s) {\n", pad(k+1), i, d)
		index += "[" + i + "]"
		switch k {
		case 0:
			linear = i
		case 1:
			linear = fmt.Sprintf("%s * uint32_t(%s) + %s", linear, d, i)
		default:
			linear = fmt.Sprintf("(%s) * uint32_t(%s) + %s", linear, d, i)
		}
		if k < len(dims)-1 {
			fmt.Fprintf(&b, "%sauto& json_array_%d = json_array_%d.append(Json::arrayValue);\n", pad(k+2), k+1, k)
		}
	}
	elem, err := e.elem(m.Type, "s."+m.Name+index, fmt.Sprintf("CreateScope(\"%s\", %s)", m.Name, linear))
	if err != nil {
		return "", err
	}
	fmt.Fprintf(&b, "%sjson_array_%d.append(%s);\n", pad(len(dims)+1), len(dims)-1, elem)
	for k := len(dims); k >= 1; k-- {
		fmt.Fprintf(&b, "%s}\n", pad(k))
	}
	fmt.Fprintf(&b, "%s}\n", pad(0))
	return b.String(), nil
}
