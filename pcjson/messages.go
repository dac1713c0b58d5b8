package pcjson

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gwos/pcjsongen/errors"
)

// Message prefixes
const (
	ErrorPrefix   = "[ERROR] "
	WarningPrefix = "[WARNING] "
)

type scope struct {
	name    string
	pointer bool
	indexed bool
	index   int
}

// Location is the path of the value being converted
type Location struct {
	stack []scope
}

// Push enters a named member, pointer members are rendered with ->
func (l *Location) Push(name string, pointer bool) {
	l.stack = append(l.stack, scope{name: name, pointer: pointer})
}

// PushIndex enters an element of a named array member
func (l *Location) PushIndex(name string, i int) {
	l.stack = append(l.stack, scope{name: name, indexed: true, index: i})
}

// Pop leaves the innermost scope
func (l *Location) Pop() {
	if len(l.stack) > 0 {
		l.stack = l.stack[:len(l.stack)-1]
	}
}

// Depth returns the number of open scopes
func (l *Location) Depth() int { return len(l.stack) }

func (l *Location) String() string {
	var b strings.Builder
	for i, s := range l.stack {
		if i > 0 {
			if l.stack[i-1].pointer {
				b.WriteString("->")
			} else {
				b.WriteByte('.')
			}
		}
		b.WriteString(s.name)
		if s.indexed {
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(s.index))
			b.WriteByte(']')
		}
	}
	return b.String()
}

// Messages collects the report of one conversion
type Messages struct {
	Location

	lines    []string
	errors   int
	warnings int
}

func (m *Messages) add(prefix, format string, args []any) {
	var b strings.Builder
	b.WriteString(prefix)
	if len(m.stack) > 0 {
		b.WriteString(m.Location.String())
		b.WriteString(": ")
	}
	fmt.Fprintf(&b, format, args...)
	m.lines = append(m.lines, b.String())
}

func (m *Messages) join(o *Messages) {
	if o == nil {
		return
	}
	m.lines = append(m.lines, o.lines...)
	m.errors += o.errors
	m.warnings += o.warnings
}

// Errorf reports an error at the current location
func (m *Messages) Errorf(format string, args ...any) {
	m.errors++
	m.add(ErrorPrefix, format, args)
}

// Warnf reports a warning at the current location
func (m *Messages) Warnf(format string, args ...any) {
	m.warnings++
	m.add(WarningPrefix, format, args)
}

// enter opens a scope and returns its closer
func (m *Messages) enter(name string, pointer bool) func() {
	m.Push(name, pointer)
	return m.Pop
}

func (m *Messages) enterIndex(name string, i int) func() {
	m.PushIndex(name, i)
	return m.Pop
}

// errorAt reports an error inside the named scope
func (m *Messages) errorAt(name, format string, args ...any) {
	m.Push(name, false)
	m.Errorf(format, args...)
	m.Pop()
}

func (m *Messages) warnAt(name, format string, args ...any) {
	m.Push(name, false)
	m.Warnf(format, args...)
	m.Pop()
}

// OK reports whether no error was recorded
func (m *Messages) OK() bool { return m.errors == 0 }

// Errors returns the number of errors
func (m *Messages) Errors() int { return m.errors }

// Warnings returns the number of warnings
func (m *Messages) Warnings() int { return m.warnings }

// Lines returns the messages in report order
func (m *Messages) Lines() []string { return append([]string(nil), m.lines...) }

func (m *Messages) String() string { return strings.Join(m.lines, "\n") }

// Err returns nil when no error was recorded
func (m *Messages) Err() error {
	if m.OK() {
		return nil
	}
	return fmt.Errorf("%w: %d errors, first %s", errors.ErrInvalidInput, m.errors, m.firstError())
}

func (m *Messages) firstError() string {
	for _, line := range m.lines {
		if strings.HasPrefix(line, ErrorPrefix) {
			return strings.TrimPrefix(line, ErrorPrefix)
		}
	}
	return ""
}
