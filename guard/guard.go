// Package guard coalesces platform guards around emitted declarations
// so that consecutive declarations under one symbol share a single block.
package guard

import (
	"fmt"
	"strings"
)

// DirectiveKind defines a guard transition
type DirectiveKind int

// Enum directive kinds
const (
	Open DirectiveKind = iota
	Close
)

// Directive is a single conditional compilation transition
type Directive struct {
	Kind   DirectiveKind
	Symbol string
}

func (d Directive) String() string {
	if d.Kind == Close {
		return fmt.Sprintf("#endif  // %s\n", d.Symbol)
	}
	return fmt.Sprintf("#ifdef %s\n", d.Symbol)
}

// Coalescer tracks the currently open guard of an output stream
type Coalescer struct {
	current string
}

// Current returns the open guard symbol, empty when none
func (c *Coalescer) Current() string { return c.current }

// Apply moves the stream to the next guard, empty closes any open guard
func (c *Coalescer) Apply(next string) []Directive {
	var dd []Directive
	if c.current != "" && c.current != next {
		dd = append(dd, Directive{Close, c.current})
	}
	if next != "" && c.current != next {
		dd = append(dd, Directive{Open, next})
	}
	c.current = next
	return dd
}

// Write applies the next guard and writes the directives
func (c *Coalescer) Write(b *strings.Builder, next string) {
	for _, d := range c.Apply(next) {
		b.WriteString(d.String())
	}
}

// Wrap renders text under its own guard, used for isolated declarations
func Wrap(symbol, text string) string {
	if symbol == "" {
		return text
	}
	var c Coalescer
	var b strings.Builder
	c.Write(&b, symbol)
	b.WriteString(text)
	c.Write(&b, "")
	return b.String()
}
