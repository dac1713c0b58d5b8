package model

import (
	"fmt"
	"strconv"

	"github.com/gwos/pcjsongen/errors"
	"github.com/gwos/pcjsongen/lenexpr"
)

// Validate checks structural consistency of the graph,
// the API definition itself is not validated
func (r *Registry) Validate() error {
	var ee []error
	report := func(format string, args ...any) {
		ee = append(ee, fmt.Errorf("%w: %s", errors.ErrRegistry, fmt.Sprintf(format, args...)))
	}

	tags := map[string]string{}
	var stypeEnum *Enum
	if e, ok := r.DiscriminatorEnum(); ok {
		stypeEnum = e
	}
	for _, s := range r.StructList {
		if s.Extensible() {
			if prev, ok := tags[s.SType]; ok {
				report("%s reuses discriminator %s of %s", s.Name, s.SType, prev)
			}
			tags[s.SType] = s.Name
			if stypeEnum != nil && stypeEnum.Field(s.SType) == nil {
				report("%s discriminator %s is not in %s", s.Name, s.SType, stypeEnum.Name)
			}
		}
		for _, ext := range s.ExtendedBy {
			x, ok := r.Struct(ext)
			switch {
			case !ok:
				report("%s is extended by unknown %s", s.Name, ext)
			case !x.Extensible():
				report("%s is extended by %s without discriminator", s.Name, ext)
			}
		}
		for _, m := range s.Members {
			if r.KindOf(m.Type) == KindUnknown {
				report("%s.%s has unknown type %s", s.Name, m.Name, m.Type)
			}
			for _, extent := range m.FixedSizeArray {
				if _, err := r.Extent(extent); err != nil {
					report("%s.%s: %v", s.Name, m.Name, err)
				}
			}
			if m.Length == "" {
				continue
			}
			e, err := lenexpr.Parse(m.Length)
			if err != nil {
				report("%s.%s: %v", s.Name, m.Name, err)
				continue
			}
			for _, name := range e.Idents() {
				if s.Member(name) == nil {
					if _, ok := r.Constant(name); !ok {
						report("%s.%s length references %s which is neither a sibling nor a constant",
							s.Name, m.Name, name)
					}
				}
			}
		}
	}
	for _, f := range r.FlagsList {
		if f.Bitmask == "" {
			continue
		}
		if _, ok := r.Bitmask(f.Bitmask); !ok {
			report("flags %s references unknown bitmask %s", f.Name, f.Bitmask)
		}
	}
	return errors.Join(ee...)
}

// Extent resolves a fixed array extent, literal or named constant
func (r *Registry) Extent(extent string) (int, error) {
	if n, err := strconv.Atoi(extent); err == nil {
		return n, nil
	}
	if v, ok := r.Constant(extent); ok {
		return int(v), nil
	}
	return 0, fmt.Errorf("unknown array extent %q", extent)
}
