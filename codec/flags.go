package codec

import (
	"cmp"
	"fmt"
	"math/bits"
	"slices"
	"strings"

	"github.com/gwos/pcjsongen/errors"
	"github.com/gwos/pcjsongen/model"
)

// FlagSeparator joins flag names in text form
const FlagSeparator = " | "

// ErrNoLegalFlags is returned for nonzero values of flags types without bitmask
var ErrNoLegalFlags = fmt.Errorf("%w: %v", errors.ErrInvalidInput, "flag type has no legal nonzero values")

// FlagEntry is a named bit or group of bits
type FlagEntry struct {
	Name  string
	Value uint64
}

// FlagTable maps between flag values and |-joined names
type FlagTable struct {
	Bitmask string
	// multi-bit entries, wider groups first, ties in declaration order
	Multi []FlagEntry
	// single-bit names by bit position
	Single map[int]string
	names  map[string]uint64
}

// NewFlagTable builds the table for bitmask, nil bitmask gives nil table
func NewFlagTable(b *model.Bitmask) *FlagTable {
	if b == nil {
		return nil
	}
	t := &FlagTable{
		Bitmask: b.Name,
		Single:  map[int]string{},
		names:   map[string]uint64{"0": 0},
	}
	for _, f := range b.Flags {
		t.names[f.Name] = f.Value
		for _, a := range f.Aliases {
			t.names[a] = f.Value
		}
		switch bits.OnesCount64(f.Value) {
		case 0:
		case 1:
			pos := bits.TrailingZeros64(f.Value)
			if _, ok := t.Single[pos]; !ok {
				t.Single[pos] = f.Name
			}
		default:
			t.Multi = append(t.Multi, FlagEntry{f.Name, f.Value})
		}
	}
	slices.SortStableFunc(t.Multi, func(a, b FlagEntry) int {
		return cmp.Compare(bits.OnesCount64(b.Value), bits.OnesCount64(a.Value))
	})
	return t
}

// Names returns the known names in stable order
func (t *FlagTable) Names() []string {
	nn := make([]string, 0, len(t.names))
	for name := range t.names {
		if name != "0" {
			nn = append(nn, name)
		}
	}
	slices.SortFunc(nn, func(a, b string) int {
		if c := cmp.Compare(t.names[a], t.names[b]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return nn
}

// Encode renders v, multi-bit groups first and remaining bits low to high.
// Set bits without a name raise an error, named bits are still rendered.
func (t *FlagTable) Encode(v uint64) (string, error) {
	if v == 0 {
		return "0", nil
	}
	var parts []string
	var consumed uint64
	for _, e := range t.Multi {
		if v&e.Value == e.Value && consumed&e.Value == 0 {
			parts = append(parts, e.Name)
			consumed |= e.Value
		}
	}
	var unnamed uint64
	for rest := v &^ consumed; rest != 0; rest &= rest - 1 {
		pos := bits.TrailingZeros64(rest)
		if name, ok := t.Single[pos]; ok {
			parts = append(parts, name)
		} else {
			unnamed |= 1 << pos
		}
	}
	var err error
	if unnamed != 0 {
		err = fmt.Errorf("%w: unknown %s bits 0x%x", errors.ErrInvalidInput, t.Bitmask, unnamed)
	}
	if len(parts) == 0 {
		return "0", err
	}
	return strings.Join(parts, FlagSeparator), err
}

// Decode splits s on |, trims and ORs the named values.
// Unknown tokens are all reported, known tokens still contribute.
func (t *FlagTable) Decode(s string) (uint64, error) {
	var v uint64
	var ee []error
	for _, token := range strings.Split(s, "|") {
		token = strings.TrimSpace(token)
		if bit, ok := t.lookup(token); ok {
			v |= bit
			continue
		}
		ee = append(ee, fmt.Errorf("%w: unknown flag %q", errors.ErrInvalidInput, token))
	}
	return v, errors.Join(ee...)
}

func (t *FlagTable) lookup(token string) (uint64, bool) {
	if t == nil {
		return 0, token == "0"
	}
	v, ok := t.names[token]
	return v, ok
}

// EncodeFlags renders v of the given bit width, nil table accepts only zero
func EncodeFlags(v uint64, width int, t *FlagTable) (string, error) {
	if width > 0 && width < 64 && v>>width != 0 {
		return "", fmt.Errorf("%w: value 0x%x exceeds %d bits", errors.ErrInvalidInput, v, width)
	}
	if t == nil {
		if v != 0 {
			return "0", ErrNoLegalFlags
		}
		return "0", nil
	}
	return t.Encode(v)
}

// DecodeFlags parses s with t, nil table accepts only "0"
func DecodeFlags(s string, t *FlagTable) (uint64, error) {
	if t == nil {
		var ee []error
		for _, token := range strings.Split(s, "|") {
			if strings.TrimSpace(token) != "0" {
				ee = append(ee, fmt.Errorf("%w: unknown flag %q", ErrNoLegalFlags, strings.TrimSpace(token)))
			}
		}
		return 0, errors.Join(ee...)
	}
	return t.Decode(s)
}
