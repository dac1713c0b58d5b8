// Package emit holds the per-run bookkeeping shared by the emitters:
// the memo table guaranteeing one emission per type, ordered output
// sections with guard coalescing, and emission counters.
package emit

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/gwos/pcjsongen/errors"
	"github.com/gwos/pcjsongen/guard"
)

// GeneratedBanner opens every generated source file
const GeneratedBanner = "// *** THIS FILE IS GENERATED - DO NOT EDIT ***\n// See %s for modifications\n"

// Memo maps type names to routine names already generated in this run
type Memo struct {
	names map[string]string
	order []string
}

// NewMemo returns empty table
func NewMemo() *Memo {
	return &Memo{names: map[string]string{}}
}

// Lookup returns the routine generated for typeName
func (m *Memo) Lookup(typeName string) (string, bool) {
	name, ok := m.names[typeName]
	return name, ok
}

// Mark records routine for typeName, false when already recorded
func (m *Memo) Mark(typeName, routine string) bool {
	if _, ok := m.names[typeName]; ok {
		return false
	}
	m.names[typeName] = routine
	m.order = append(m.order, typeName)
	return true
}

// Len returns the number of recorded types
func (m *Memo) Len() int { return len(m.order) }

// Types returns recorded type names in emission order
func (m *Memo) Types() []string { return append([]string(nil), m.order...) }

// Stats counts emitted items by kind
type Stats map[string]int

// Add increments the kind counter
func (s Stats) Add(kind string) { s[kind]++ }

// Kinds returns counted kinds sorted
func (s Stats) Kinds() []string {
	kk := make([]string, 0, len(s))
	for k := range s {
		kk = append(kk, k)
	}
	sort.Strings(kk)
	return kk
}

// Section is an output buffer with its own guard state
type Section struct {
	Name  string
	b     strings.Builder
	guard guard.Coalescer
}

// Printf appends formatted text outside of any guard
func (s *Section) Printf(format string, args ...any) {
	s.guard.Write(&s.b, "")
	fmt.Fprintf(&s.b, format, args...)
}

// Guarded appends text under the platform guard symbol
func (s *Section) Guarded(symbol, text string) {
	s.guard.Write(&s.b, symbol)
	s.b.WriteString(text)
}

// String returns the section text with any open guard closed
func (s *Section) String() string {
	s.guard.Write(&s.b, "")
	return s.b.String()
}

// Sections keeps named sections in declaration order
type Sections struct {
	order []*Section
	index map[string]*Section
}

// NewSections declares the sections in output order
func NewSections(names ...string) *Sections {
	ss := &Sections{index: map[string]*Section{}}
	for _, name := range names {
		s := &Section{Name: name}
		ss.order = append(ss.order, s)
		ss.index[name] = s
	}
	return ss
}

// Get returns the section by name, panics for undeclared sections
func (ss *Sections) Get(name string) *Section {
	s, ok := ss.index[name]
	if !ok {
		panic(fmt.Sprintf("undeclared section %q", name))
	}
	return s
}

// Text returns the section text by name
func (ss *Sections) Text(name string) string { return ss.Get(name).String() }

// WriteTo writes the text to w wrapping failures into ErrOutput
func WriteTo(w io.Writer, text string) error {
	if _, err := io.WriteString(w, text); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrOutput, err)
	}
	return nil
}

// Indent prefixes every non-empty line of text
func Indent(text, prefix string) string {
	lines := strings.SplitAfter(text, "\n")
	var b strings.Builder
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			b.WriteString(prefix)
		}
		b.WriteString(line)
	}
	return b.String()
}
