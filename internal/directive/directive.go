// Package directive parses dynproxy directives from Go doc comments.
//
// Directives are line comments in the form:
//
//	//dynproxy:sealed
//	//dynproxy:nonintercepted
//
// A sealed directive on a struct type prevents proxying the class. A
// nonintercepted directive on a method keeps the member out of interception.
package directive

import (
	"fmt"
	"go/ast"
	"strings"
)

// Prefix starts every directive line.
const Prefix = "//dynproxy:"

// Kind is the name following the prefix.
type Kind string

const (
	KindSealed         Kind = "sealed"
	KindNonIntercepted Kind = "nonintercepted"
)

// Known reports whether k is a recognized directive.
func (k Kind) Known() bool {
	switch k {
	case KindSealed, KindNonIntercepted:
		return true
	}
	return false
}

// Directive represents one parsed directive line.
type Directive struct {
	Kind Kind
	Args []string // whitespace separated words after the kind
	Text string   // raw comment text
}

func (d Directive) String() string { return Prefix + string(d.Kind) }

// Parse returns the directives found in cg. CommentGroup.Text drops
// directive lines, so the raw comment list is scanned instead.
func Parse(cg *ast.CommentGroup) []Directive {
	if cg == nil {
		return nil
	}
	var out []Directive
	for _, c := range cg.List {
		text := strings.TrimSpace(c.Text)
		rest, ok := strings.CutPrefix(text, Prefix)
		if !ok {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			out = append(out, Directive{Text: text})
			continue
		}
		out = append(out, Directive{Kind: Kind(fields[0]), Args: fields[1:], Text: text})
	}
	return out
}

// Has reports whether cg carries a directive of kind k.
func Has(cg *ast.CommentGroup, k Kind) bool {
	for _, d := range Parse(cg) {
		if d.Kind == k {
			return true
		}
	}
	return false
}

// Validate returns an error for the first directive in ds that is unknown
// or carries arguments.
func Validate(ds []Directive) error {
	for _, d := range ds {
		if d.Kind == "" {
			return fmt.Errorf("empty directive %q", d.Text)
		}
		if !d.Kind.Known() {
			return fmt.Errorf("unknown directive %q", d.Text)
		}
		if len(d.Args) > 0 {
			return fmt.Errorf("directive %s takes no arguments, got %q", d, strings.Join(d.Args, " "))
		}
	}
	return nil
}
