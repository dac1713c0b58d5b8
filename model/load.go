package model

import (
	"bytes"
	"fmt"
	"io"
	"math/bits"
	"os"
	"strings"

	"github.com/gwos/pcjsongen/errors"
	"gopkg.in/yaml.v3"
)

// LoadFile reads the registry snapshot from file
func LoadFile(filePath string) (*Registry, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrRegistry, err)
	}
	return Load(bytes.NewReader(data))
}

// Load decodes the registry snapshot, YAML or JSON, and indexes it
func Load(r io.Reader) (*Registry, error) {
	reg := new(Registry)
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(reg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: %v", errors.ErrRegistry, err)
	}
	if err := reg.index(); err != nil {
		return nil, err
	}
	Logger.Debug("registry loaded",
		"version", reg.Version,
		"structs", len(reg.StructList),
		"enums", len(reg.EnumList),
		"bitmasks", len(reg.BitmaskList),
		"flags", len(reg.FlagsList),
		"handles", len(reg.HandleList))
	return reg, nil
}

func (r *Registry) index() error {
	if r.StructureTypeEnum == "" {
		r.StructureTypeEnum = DefaultStructureTypeEnum
	}
	if r.Constants == nil {
		r.Constants = map[string]int64{}
	}
	if r.BaseTypes == nil {
		r.BaseTypes = map[string]string{}
	}
	r.Structs = make(map[string]*Struct, len(r.StructList))
	r.Enums = make(map[string]*Enum, len(r.EnumList))
	r.Bitmasks = make(map[string]*Bitmask, len(r.BitmaskList))
	r.Flags = make(map[string]*Flags, len(r.FlagsList))
	r.Handles = make(map[string]*Handle, len(r.HandleList))
	r.aliases = map[string]string{}

	var ee []error
	names := map[string]string{}
	declare := func(kind, name string, aliases []string) {
		if name == "" {
			ee = append(ee, fmt.Errorf("%w: %s without name", errors.ErrRegistry, kind))
			return
		}
		if prev, ok := names[name]; ok {
			ee = append(ee, fmt.Errorf("%w: %s %s redeclares %s", errors.ErrRegistry, kind, name, prev))
			return
		}
		names[name] = kind
		for _, a := range aliases {
			r.aliases[a] = name
		}
	}

	for _, s := range r.StructList {
		declare("struct", s.Name, s.Aliases)
		r.Structs[s.Name] = s
		for _, m := range s.Members {
			normalizeLength(m)
		}
	}
	for _, e := range r.EnumList {
		declare("enum", e.Name, e.Aliases)
		r.Enums[e.Name] = e
	}
	for _, b := range r.BitmaskList {
		declare("bitmask", b.Name, b.Aliases)
		r.Bitmasks[b.Name] = b
		for _, f := range b.Flags {
			f.MultiBit = bits.OnesCount64(f.Value) > 1
		}
	}
	for _, f := range r.FlagsList {
		declare("flags", f.Name, f.Aliases)
		r.Flags[f.Name] = f
		if b, ok := r.Bitmasks[f.Bitmask]; ok && b.FlagName == "" {
			b.FlagName = f.Name
		}
	}
	for _, h := range r.HandleList {
		declare("handle", h.Name, h.Aliases)
		r.Handles[h.Name] = h
	}
	return errors.Join(ee...)
}

// normalizeLength splits registry style "count,null-terminated" attributes
func normalizeLength(m *Member) {
	if m.Length == "" {
		return
	}
	parts := strings.Split(m.Length, ",")
	kept := parts[:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "null-terminated" {
			m.NullTerminated = true
			continue
		}
		if p != "" {
			kept = append(kept, p)
		}
	}
	m.Length = strings.Join(kept, ",")
}
