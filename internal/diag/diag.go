// Package diag collects the diagnostics raised by the front end
// (lexer, parser, sema). Per spec.md §7, the core compiler is assumed
// to run on well-typed input and never fails; every user-visible error
// is raised here, before any backend work begins.
package diag

import (
	"fmt"
	"sort"
	"strings"
)

// Kind is the coarse error taxonomy from spec.md §7.
type Kind int

const (
	Lexical Kind = iota
	Syntactic
	Semantic
)

func (k Kind) String() string {
	switch k {
	case Lexical:
		return "lexical error"
	case Syntactic:
		return "syntax error"
	case Semantic:
		return "semantic error"
	default:
		return "error"
	}
}

// Code names a specific diagnostic within its Kind, so tests and the
// CLI can match on something sturdier than free text.
type Code string

const (
	IllegalChar        Code = "illegal-char"
	UnterminatedString Code = "unterminated-string"

	MissingSemicolon Code = "missing-semicolon"
	MissingBracket   Code = "missing-bracket"
	MissingParen     Code = "missing-paren"
	UnexpectedToken  Code = "unexpected-token"

	UndeclaredIdent   Code = "undeclared-ident"
	DuplicateIdent    Code = "duplicate-ident"
	TypeMismatch      Code = "type-mismatch"
	NonIntCondition   Code = "non-int-condition"
	ArrayDimMismatch  Code = "array-dim-mismatch"
	ConstAssignment   Code = "const-assignment"
	LoopKeywordOutside Code = "loop-keyword-outside-loop"
	ReturnTypeMismatch Code = "return-type-mismatch"
	PrintfArity        Code = "printf-arity"
	NegativeArrayLen   Code = "negative-array-length"
)

// Pos is a source location: a single position, not a range.
type Pos struct {
	File   string
	Line   int
	Column int
}

func (p Pos) String() string {
	if p.File == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Column)
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

// Diagnostic is one reported error, carrying a location and a short
// human-readable message, per spec.md §7.
type Diagnostic struct {
	Kind    Kind
	Code    Code
	Pos     Pos
	Message string
	// Source is the offending source line, used to render a caret.
	Source string
}

func (d Diagnostic) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s: %s", d.Pos, d.Kind, d.Message)
	return sb.String()
}

// Caret renders the "<line> | <source>" plus "^" pointer used when the
// diagnostic stream is a terminal (see cmd/sysyc's isatty check).
func (d Diagnostic) Caret() string {
	if d.Source == "" {
		return ""
	}
	var sb strings.Builder
	prefix := fmt.Sprintf("%d | ", d.Pos.Line)
	fmt.Fprintf(&sb, "%s%s\n", prefix, d.Source)
	col := d.Pos.Column
	if col < 1 {
		col = 1
	}
	sb.WriteString(strings.Repeat(" ", len(prefix)+col-1))
	sb.WriteString("^")
	return sb.String()
}

// Bag accumulates diagnostics across lexing, parsing, and semantic
// analysis. Emission of any diagnostic prevents backend execution
// (spec.md §7).
type Bag struct {
	items []Diagnostic
}

func (b *Bag) Add(d Diagnostic) {
	b.items = append(b.items, d)
}

func (b *Bag) Errorf(kind Kind, code Code, pos Pos, format string, args ...interface{}) {
	b.Add(Diagnostic{Kind: kind, Code: code, Pos: pos, Message: fmt.Sprintf(format, args...)})
}

// Fatal reports whether any diagnostic was recorded; per spec.md §7
// this gates whether the backend may run at all.
func (b *Bag) Fatal() bool {
	return len(b.items) > 0
}

// Sorted returns every diagnostic ordered by source position, as
// spec.md §7 requires before emission.
func (b *Bag) Sorted() []Diagnostic {
	out := make([]Diagnostic, len(b.items))
	copy(out, b.items)
	sort.SliceStable(out, func(i, j int) bool {
		a, c := out[i].Pos, out[j].Pos
		if a.Line != c.Line {
			return a.Line < c.Line
		}
		return a.Column < c.Column
	})
	return out
}

func (b *Bag) Len() int { return len(b.items) }
