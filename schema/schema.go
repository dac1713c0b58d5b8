// Package schema emits the draft-04 JSON Schema accepted by the generated
// serializer output and consumed by the generated parser.
package schema

import (
	"fmt"
	"io"
	"math"
	"regexp"
	"strings"

	"github.com/goccy/go-json"
	"github.com/gwos/pcjsongen/classify"
	"github.com/gwos/pcjsongen/codec"
	"github.com/gwos/pcjsongen/emit"
	"github.com/gwos/pcjsongen/errors"
	"github.com/gwos/pcjsongen/model"
	"github.com/rs/zerolog/log"
)

// Document constants
const (
	Draft       = "http://json-schema.org/draft-04/schema#"
	ID          = "https://schema.khronos.org/vulkan/vkpcc.json#"
	Title       = "JSON schema for Vulkan pipeline state"
	Description = "Schema for representing Vulkan pipeline state for use with the offline Pipeline Cache Compiler."

	// NullSentinel replaces absent pointers, arrays and chain links
	NullSentinel = "NULL"
	// NaN replaces floating point NaN values
	NaN = "NaN"

	definitionsRef = "#/definitions/"
	base64Pattern  = "^[A-Za-z0-9+/]*={0,2}$"
)

// ResourceURL returns the document location without fragment
func ResourceURL() string { return strings.TrimSuffix(ID, "#") }

// Ref returns the reference to a named definition
func Ref(name string) map[string]any {
	return map[string]any{"$ref": definitionsRef + name}
}

// ChainName returns the definition name of the chain alternatives of base
func ChainName(base string) string { return base + "_pNext" }

// ChainLinkName returns the definition name of ext linked into the chain of base
func ChainLinkName(base, ext string) string { return base + "_pNext_" + ext }

// Option configures an Emitter
type Option func(*Emitter)

// WithTopLevel sets the records expanded into definitions
func WithTopLevel(names ...string) Option {
	return func(e *Emitter) {
		if len(names) > 0 {
			e.topLevel = names
		}
	}
}

// WithWrapper enables the pipeline state wrapper definitions
func WithWrapper(on bool) Option {
	return func(e *Emitter) { e.wrapper = on }
}

// Emitter builds one schema document, it is not reusable across runs
type Emitter struct {
	reg      *model.Registry
	topLevel []string
	wrapper  bool

	defs   map[string]any
	owners map[string]string
	stats  emit.Stats
}

// New returns an Emitter over the registry
func New(reg *model.Registry, opts ...Option) *Emitter {
	e := &Emitter{
		reg:      reg,
		topLevel: emit.PipelineStructs,
		wrapper:  true,
		defs:     map[string]any{},
		owners:   map[string]string{},
		stats:    emit.Stats{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Stats returns emitted definitions by kind
func (e *Emitter) Stats() emit.Stats { return e.stats }

// Emit writes the indented schema document
func (e *Emitter) Emit(w io.Writer) error {
	doc, err := e.Document()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrOutput, err)
	}
	log.Debug().
		Int("definitions", len(e.defs)).
		Interface("stats", e.stats).
		Msg("schema emitted")
	return emit.WriteTo(w, string(data)+"\n")
}

// Document builds the schema document as a JSON value tree
func (e *Emitter) Document() (map[string]any, error) {
	doc := map[string]any{
		"$schema":              Draft,
		"id":                   ID,
		"title":                Title,
		"description":          Description,
		"type":                 "object",
		"additionalProperties": true,
		"definitions":          e.defs,
	}
	if err := e.basicDefinitions(); err != nil {
		return nil, err
	}
	for _, name := range e.topLevel {
		s, ok := e.reg.Struct(name)
		if !ok {
			return nil, fmt.Errorf("%w: top level record %s", errors.ErrUnknownType, name)
		}
		if err := e.structDefinition(s); err != nil {
			return nil, err
		}
	}
	if e.wrapper {
		if err := e.wrapperDefinitions(doc); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

func (e *Emitter) define(name, kind string, build func() (any, error)) error {
	return e.defineAs(name, kind, kind, build)
}

// defineAs builds the definition once, a name claimed by another owner is a collision
func (e *Emitter) defineAs(name, kind, owner string, build func() (any, error)) error {
	if prev, ok := e.owners[name]; ok {
		if prev != owner {
			return fmt.Errorf("%w: definition %s is both %s and %s", errors.ErrSchemaShape, name, prev, owner)
		}
		return nil
	}
	// placeholder terminates recursion through self-referencing records
	e.defs[name], e.owners[name] = nil, owner
	v, err := build()
	if err != nil {
		delete(e.defs, name)
		delete(e.owners, name)
		return err
	}
	e.defs[name] = v
	e.stats.Add(kind)
	return nil
}

func (e *Emitter) aliases(name string) error {
	for _, alias := range e.reg.AliasesOf(name) {
		err := e.defineAs(alias, "alias", "alias of "+name, func() (any, error) { return Ref(name), nil })
		if err != nil {
			return err
		}
	}
	return nil
}

func integer(lo, hi int64) map[string]any {
	return map[string]any{"type": "integer", "minimum": lo, "maximum": hi}
}

func (e *Emitter) primitive(p model.Primitive) error {
	return e.define(p.Name, "basic", func() (any, error) {
		switch {
		case p.Name == "size_t":
			if err := e.primitive(model.Primitives["uint64_t"]); err != nil {
				return nil, err
			}
			return Ref("uint64_t"), nil
		case p.Kind == model.Float:
			return map[string]any{"oneOf": []any{
				map[string]any{"type": "number"},
				map[string]any{"enum": []any{NaN}},
			}}, nil
		case p.Kind == model.Unsigned && p.Wide():
			return map[string]any{"oneOf": []any{
				map[string]any{"type": "integer", "minimum": 0},
				map[string]any{"type": "string", "pattern": "^[0-9]+$"},
			}}, nil
		case p.Kind == model.Unsigned:
			return integer(0, 1<<p.Bits-1), nil
		case p.Kind == model.Signed && p.Wide():
			return integer(math.MinInt64, math.MaxInt64), nil
		case p.Kind == model.Signed, p.Kind == model.Char:
			return integer(-1<<(p.Bits-1), 1<<(p.Bits-1)-1), nil
		}
		return nil, fmt.Errorf("%w: primitive %s has no JSON form", errors.ErrSchemaShape, p.Name)
	})
}

func (e *Emitter) basicDefinitions() error {
	for _, name := range model.PrimitiveOrder {
		if err := e.primitive(model.Primitives[name]); err != nil {
			return err
		}
	}
	return nil
}

// typeRef ensures the definition of typeName and returns the reference to it
func (e *Emitter) typeRef(typeName string) (map[string]any, error) {
	name := e.reg.Canonical(typeName)
	var err error
	switch e.reg.KindOf(name) {
	case model.KindHandle:
		err = e.define(name, "handle", func() (any, error) {
			return map[string]any{"anyOf": []any{
				map[string]any{"type": "integer", "minimum": 0},
				map[string]any{"type": "string"},
			}}, nil
		})
	case model.KindEnum:
		en, _ := e.reg.Enum(name)
		err = e.define(name, "enum", func() (any, error) {
			return map[string]any{"enum": toAny(codec.NewEnumTable(en).Names())}, nil
		})
	case model.KindBitmask:
		b, _ := e.reg.Bitmask(name)
		err = e.define(name, "bitmask", func() (any, error) {
			return map[string]any{"enum": toAny(codec.NewBitmaskEnumTable(b).Names())}, nil
		})
	case model.KindFlags:
		f, _ := e.reg.FlagsType(name)
		err = e.define(name, "flags", func() (any, error) { return e.flagsDefinition(f), nil })
	case model.KindBasic:
		if p, ok := model.Primitives[name]; ok {
			err = e.primitive(p)
			break
		}
		p, _ := e.reg.Primitive(name)
		err = e.define(name, "basic", func() (any, error) {
			if err := e.primitive(p); err != nil {
				return nil, err
			}
			return Ref(p.Name), nil
		})
	case model.KindStruct:
		s, _ := e.reg.Struct(name)
		err = e.structDefinition(s)
	default:
		err = fmt.Errorf("%w: %s", errors.ErrUnknownType, typeName)
	}
	if err != nil {
		return nil, err
	}
	if err := e.aliases(name); err != nil {
		return nil, err
	}
	return Ref(name), nil
}

func (e *Emitter) flagsDefinition(f *model.Flags) map[string]any {
	b, ok := e.reg.Bitmask(f.Bitmask)
	if !ok {
		return map[string]any{"enum": []any{0, "0"}}
	}
	names := codec.NewFlagTable(b).Names()
	quoted := make([]string, 0, len(names)+1)
	for _, n := range names {
		quoted = append(quoted, regexp.QuoteMeta(n))
	}
	quoted = append(quoted, "0")
	alt := "(?:" + strings.Join(quoted, "|") + ")"
	return map[string]any{"oneOf": []any{
		map[string]any{"enum": []any{0}},
		map[string]any{
			"type":    "string",
			"pattern": `^\s*` + alt + `(?:\s*\|\s*` + alt + `)*\s*$`,
		},
	}}
}

func (e *Emitter) structDefinition(s *model.Struct) error {
	err := e.define(s.Name, "struct", func() (any, error) { return e.object(s, s) })
	if err != nil {
		return err
	}
	return e.aliases(s.Name)
}

// chain defines the alternatives of the extension chain of base
func (e *Emitter) chain(base *model.Struct) error {
	return e.define(ChainName(base.Name), "chain", func() (any, error) {
		alts := []any{map[string]any{"enum": []any{NullSentinel}}}
		for _, name := range base.ExtendedBy {
			ext, ok := e.reg.Struct(name)
			if !ok {
				return nil, fmt.Errorf("%w: %s extends %s", errors.ErrUnknownType, name, base.Name)
			}
			link := ChainLinkName(base.Name, ext.Name)
			if err := e.define(link, "chain", func() (any, error) { return e.object(ext, base) }); err != nil {
				return nil, err
			}
			alts = append(alts, Ref(link))
		}
		return map[string]any{"oneOf": alts}, nil
	})
}

// object builds the grammar of s whose chain alternatives come from base
func (e *Emitter) object(s, base *model.Struct) (any, error) {
	props := map[string]any{}
	required := []any{}
	for _, m := range s.Members {
		var prop any
		switch {
		case s.Extensible() && m.Name == "sType":
			prop = map[string]any{"enum": toAny(append([]string{s.SType}, e.reg.TagAliases(s.SType)...))}
		case s.Extensible() && m.Name == "pNext":
			if err := e.chain(base); err != nil {
				return nil, err
			}
			prop = Ref(ChainName(base.Name))
		default:
			p, err := e.member(m)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", s.Name, m.Name, err)
			}
			prop = p
		}
		props[m.Name] = prop
		required = append(required, m.Name)
	}
	obj := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
	}
	if s.Union {
		obj["minProperties"] = 1
		obj["maxProperties"] = 1
	} else if len(required) > 0 {
		obj["required"] = required
	}
	return obj, nil
}

func nullOr(v any) map[string]any {
	return map[string]any{"anyOf": []any{map[string]any{"enum": []any{NullSentinel}}, v}}
}

func (e *Emitter) member(m *model.Member) (any, error) {
	cat, err := classify.Classify(e.reg, m)
	if err != nil {
		return nil, err
	}
	switch cat {
	case classify.String:
		return map[string]any{"type": "string"}, nil
	case classify.FixedString:
		n, err := e.reg.Extent(m.FixedSizeArray[0])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errors.ErrSchemaShape, err)
		}
		return map[string]any{"type": "string", "maxLength": max(n-1, 0)}, nil
	case classify.StringArray:
		return nullOr(map[string]any{"type": "array", "items": map[string]any{"type": "string"}}), nil
	case classify.Binary:
		if err := e.primitive(model.Primitives["uint8_t"]); err != nil {
			return nil, err
		}
		return map[string]any{"anyOf": []any{
			map[string]any{"type": "string", "pattern": base64Pattern},
			map[string]any{"type": "array", "items": Ref("uint8_t")},
		}}, nil
	case classify.Pointer:
		ref, err := e.typeRef(m.Type)
		if err != nil {
			return nil, err
		}
		return nullOr(ref), nil
	case classify.FixedArray:
		ref, err := e.typeRef(m.Type)
		if err != nil {
			return nil, err
		}
		var items any = ref
		for i := len(m.FixedSizeArray) - 1; i >= 0; i-- {
			n, err := e.reg.Extent(m.FixedSizeArray[i])
			if err != nil {
				return nil, fmt.Errorf("%w: %v", errors.ErrSchemaShape, err)
			}
			items = map[string]any{"type": "array", "minItems": n, "maxItems": n, "items": items}
		}
		return items, nil
	case classify.Array:
		ref, err := e.typeRef(m.Type)
		if err != nil {
			return nil, err
		}
		return nullOr(map[string]any{"type": "array", "items": ref}), nil
	case classify.Handle, classify.Enum, classify.Flags, classify.Bitmask, classify.Basic, classify.Struct:
		return e.typeRef(m.Type)
	default:
		classify.Unhandled(cat)
	}
	return nil, nil
}

func toAny(ss []string) []any {
	aa := make([]any, len(ss))
	for i, s := range ss {
		aa[i] = s
	}
	return aa
}
