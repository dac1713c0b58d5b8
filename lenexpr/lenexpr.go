// Package lenexpr evaluates and rewrites member length expressions.
// Expressions are parsed with the Go expression grammar, which covers the
// C subset used by registry length attributes: integer literals, names,
// parentheses, unary and binary arithmetic.
package lenexpr

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"reflect"
	"strconv"
	"strings"

	"github.com/gwos/pcjsongen/errors"
)

// Expr is a parsed length expression
type Expr struct {
	src  string
	tree ast.Expr
}

// Parse parses the length expression
func Parse(src string) (*Expr, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, fmt.Errorf("%w: empty", errors.ErrLengthExpr)
	}
	tree, err := parser.ParseExpr(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", errors.ErrLengthExpr, src, err)
	}
	e := &Expr{src: src, tree: tree}
	if err := check(tree); err != nil {
		return nil, fmt.Errorf("%w: %q: %v", errors.ErrLengthExpr, src, err)
	}
	return e, nil
}

// MustParse is like Parse but panics on error
func MustParse(src string) *Expr {
	e, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return e
}

func (e *Expr) String() string { return e.src }

// Idents returns referenced names in order of appearance
func (e *Expr) Idents() []string {
	var names []string
	seen := map[string]bool{}
	ast.Inspect(e.tree, func(n ast.Node) bool {
		if id, ok := n.(*ast.Ident); ok && !seen[id.Name] {
			seen[id.Name] = true
			names = append(names, id.Name)
		}
		return true
	})
	return names
}

// Literal returns the value if expression has no names
func (e *Expr) Literal() (int64, bool) {
	if len(e.Idents()) > 0 {
		return 0, false
	}
	v, err := e.Eval(nil)
	return v, err == nil
}

// Eval computes the expression resolving names by lookup
func (e *Expr) Eval(lookup func(name string) (int64, bool)) (int64, error) {
	if lookup == nil {
		lookup = func(string) (int64, bool) { return 0, false }
	}
	return e.walk(e.tree, lookup)
}

func (e *Expr) walk(tree ast.Expr, lookup func(string) (int64, bool)) (int64, error) {
	switch n := tree.(type) {
	case *ast.Ident:
		if v, ok := lookup(n.Name); ok {
			return v, nil
		}
		return 0, fmt.Errorf("unresolved name %q", n.Name)
	case *ast.BasicLit:
		if n.Kind != token.INT {
			return unsupported(n.Kind)
		}
		lit := strings.TrimRight(n.Value, "uUlL")
		i, err := strconv.ParseInt(lit, 0, 64)
		if err != nil {
			return 0, err
		}
		return i, nil
	case *ast.BinaryExpr:
		x, err := e.walk(n.X, lookup)
		if err != nil {
			return 0, err
		}
		y, err := e.walk(n.Y, lookup)
		if err != nil {
			return 0, err
		}
		switch n.Op {
		case token.ADD:
			return x + y, nil
		case token.SUB:
			return x - y, nil
		case token.MUL:
			return x * y, nil
		case token.QUO:
			if y == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			return x / y, nil
		case token.REM:
			if y == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			return x % y, nil
		case token.AND:
			return x & y, nil
		case token.OR:
			return x | y, nil
		case token.XOR:
			return x ^ y, nil
		case token.SHL:
			return x << y, nil
		case token.SHR:
			return x >> y, nil
		default:
			return unsupported(n.Op)
		}
	case *ast.UnaryExpr:
		x, err := e.walk(n.X, lookup)
		if err != nil {
			return 0, err
		}
		switch n.Op {
		case token.ADD:
			return +x, nil
		case token.SUB:
			return -x, nil
		default:
			return unsupported(n.Op)
		}
	case *ast.ParenExpr:
		return e.walk(n.X, lookup)
	}
	return unsupported(reflect.TypeOf(tree))
}

func check(tree ast.Expr) error {
	switch n := tree.(type) {
	case *ast.Ident:
		return nil
	case *ast.BasicLit:
		if n.Kind != token.INT {
			return fmt.Errorf("%v is unsupported", n.Kind)
		}
		return nil
	case *ast.BinaryExpr:
		switch n.Op {
		case token.ADD, token.SUB, token.MUL, token.QUO, token.REM,
			token.AND, token.OR, token.XOR, token.SHL, token.SHR:
		default:
			return fmt.Errorf("%v is unsupported", n.Op)
		}
		if err := check(n.X); err != nil {
			return err
		}
		return check(n.Y)
	case *ast.UnaryExpr:
		if n.Op != token.ADD && n.Op != token.SUB {
			return fmt.Errorf("%v is unsupported", n.Op)
		}
		return check(n.X)
	case *ast.ParenExpr:
		return check(n.X)
	}
	return fmt.Errorf("%v is unsupported", reflect.TypeOf(tree))
}

func unsupported(i any) (int64, error) {
	return 0, fmt.Errorf("%v is unsupported", i)
}

// Rewrite renders the expression as C source replacing names by rename.
// Nested binary operands are parenthesized, C and Go disagree on the
// precedence of shifts and bitwise operators.
func (e *Expr) Rewrite(rename func(name string) string) string {
	var b strings.Builder
	render(&b, e.tree, rename)
	return b.String()
}

func render(b *strings.Builder, tree ast.Expr, rename func(string) string) {
	switch n := tree.(type) {
	case *ast.Ident:
		if rename != nil {
			b.WriteString(rename(n.Name))
		} else {
			b.WriteString(n.Name)
		}
	case *ast.BasicLit:
		b.WriteString(n.Value)
	case *ast.BinaryExpr:
		operand(b, n.X, rename)
		b.WriteString(" " + n.Op.String() + " ")
		operand(b, n.Y, rename)
	case *ast.UnaryExpr:
		b.WriteString(n.Op.String())
		if _, ok := n.X.(*ast.UnaryExpr); ok {
			/* "- -x" must not become the C decrement */
			b.WriteByte('(')
			render(b, n.X, rename)
			b.WriteByte(')')
		} else {
			operand(b, n.X, rename)
		}
	case *ast.ParenExpr:
		b.WriteByte('(')
		render(b, n.X, rename)
		b.WriteByte(')')
	}
}

func operand(b *strings.Builder, tree ast.Expr, rename func(string) string) {
	if _, ok := tree.(*ast.BinaryExpr); ok {
		b.WriteByte('(')
		render(b, tree, rename)
		b.WriteByte(')')
		return
	}
	render(b, tree, rename)
}
