// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package slsym has the symbol tables that map code placeholders to
// their kernel expressions, and the Resolver that builds those
// expressions for model variables, parameters and extra global
// parameters.
//
// Tables are chained: a nested code block gets a child table holding
// its local bindings (id_pre, id_post, id_syn ...), and lookups and
// substitution fall through to the parent.
package slsym

import (
	"fmt"

	"github.com/pkg/errors"
	"goki.dev/synsl/slsubst"
	"goki.dev/synsl/sltype"
)

// Kind is the kind of a placeholder
type Kind int32

const (
	// Var is a variable or index
	Var Kind = iota

	// Param is a model parameter
	Param

	// DerivedParam is a parameter computed from other parameters
	DerivedParam

	// ExtraGlobalParam is a process-wide value or buffer
	ExtraGlobalParam

	// Func is a function-call placeholder
	Func
)

var kindNames = [...]string{"Var", "Param", "DerivedParam", "ExtraGlobalParam", "Func"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", k)
	}
	return kindNames[k]
}

// Key identifies a placeholder
type Key struct {
	Kind Kind
	Name string

	// Suffix disambiguates synapse endpoints: _pre or _post
	Suffix string
}

// Ident is the identifier used in code: name + suffix
func (k Key) Ident() string {
	return k.Name + k.Suffix
}

// Replacement is what a placeholder is replaced by: a Literal, a
// Template or an Alias.
type Replacement interface {
	replacement()
}

// Literal replaces the placeholder with fixed text
type Literal string

// Template replaces a function call, with $(i) replaced by argument i
type Template struct {
	NumArgs int
	Text    string
}

// Alias replaces the placeholder with the value of another variable
// as resolved from the parent of the table holding the alias.
type Alias string

func (Literal) replacement()  {}
func (Template) replacement() {}
func (Alias) replacement()    {}

type entry struct {
	key Key
	rep Replacement
}

// Table is an append-only symbol table with an optional parent
type Table struct {
	parent  *Table
	entries []entry
	index   map[string]int

	// root only
	precision sltype.Precision
	funcs     []slsubst.FunctionTemplate
}

// NewRoot returns a root table for code of precision p, with
// precision specific function templates applied after all other
// substitutions.
func NewRoot(p sltype.Precision, funcs []slsubst.FunctionTemplate) *Table {
	return &Table{index: map[string]int{}, precision: p, funcs: funcs}
}

// New returns a child table of parent
func New(parent *Table) *Table {
	return &Table{parent: parent, index: map[string]int{}}
}

// Parent returns the enclosing table, nil for the root
func (t *Table) Parent() *Table {
	return t.parent
}

// Precision returns the precision of the root table
func (t *Table) Precision() sltype.Precision {
	for t.parent != nil {
		t = t.parent
	}
	return t.precision
}

// Add adds a replacement for key. Adding the same identifier twice to
// one table is a generator bug and panics.
func (t *Table) Add(k Key, r Replacement) {
	id := k.Ident()
	if _, has := t.index[id]; has {
		panic(fmt.Sprintf("slsym: %s %q defined twice in the same table", k.Kind, id))
	}
	t.index[id] = len(t.entries)
	t.entries = append(t.entries, entry{key: k, rep: r})
}

// AddVar adds a variable with a literal replacement
func (t *Table) AddVar(name, value string) {
	t.Add(Key{Kind: Var, Name: name}, Literal(value))
}

// AddAlias adds variable name resolving to the parent's value of target
func (t *Table) AddAlias(name, target string) {
	t.Add(Key{Kind: Var, Name: name}, Alias(target))
}

// AddFunc adds a function with numArgs arguments
func (t *Table) AddFunc(name string, numArgs int, tmpl string) {
	t.Add(Key{Kind: Func, Name: name}, Template{NumArgs: numArgs, Text: tmpl})
}

// AddParam adds a param as a literal value
func (t *Table) AddParam(kind Kind, name, suffix string, v float64) {
	t.Add(Key{Kind: kind, Name: name, Suffix: suffix}, Literal(slsubst.FormatLiteral(v, t.Precision())))
}

// Lookup returns the replacement for key, searching the parents if
// it is not defined locally.
func (t *Table) Lookup(k Key) (Replacement, *Table, bool) {
	for tb := t; tb != nil; tb = tb.parent {
		if i, has := tb.index[k.Ident()]; has && tb.entries[i].key.Kind == k.Kind {
			return tb.entries[i].rep, tb, true
		}
	}
	return nil, nil, false
}

// Value returns the expression of variable name, following aliases.
func (t *Table) Value(name string) (string, bool) {
	rep, tb, ok := t.Lookup(Key{Kind: Var, Name: name})
	if !ok {
		return "", false
	}
	switch r := rep.(type) {
	case Literal:
		return string(r), true
	case Alias:
		if tb.parent == nil {
			return "", false
		}
		return tb.parent.Value(string(r))
	}
	return "", false
}

// MustValue is Value for names the generator itself has defined
func (t *Table) MustValue(name string) string {
	v, ok := t.Value(name)
	if !ok {
		panic(fmt.Sprintf("slsym: variable %q not defined", name))
	}
	return v
}

// Apply substitutes all placeholders known to the table chain in code.
// The root function templates are expanded first, so the variables they
// use (e.g. $(rng)) can be bound at any level. Then at each level
// functions are substituted, as their templates may contain variables,
// then variables, then the parent is applied.
func (t *Table) Apply(code string) (string, error) {
	root := t
	for root.parent != nil {
		root = root.parent
	}
	code, err := slsubst.FunctionSubstitutions(code, root.precision, root.funcs)
	if err != nil {
		return code, err
	}
	return t.apply(code)
}

func (t *Table) apply(code string) (string, error) {
	var err error
	for _, e := range t.entries {
		tm, ok := e.rep.(Template)
		if !ok {
			continue
		}
		code, err = slsubst.FunctionSubstitute(code, e.key.Ident(), tm.NumArgs, tm.Text)
		if err != nil {
			return code, err
		}
	}
	for _, e := range t.entries {
		switch r := e.rep.(type) {
		case Literal:
			code = slsubst.Substitute(code, slsubst.Var(e.key.Ident()), string(r))
		case Alias:
			if t.parent == nil {
				continue
			}
			if v, ok := t.parent.Value(string(r)); ok {
				code = slsubst.Substitute(code, slsubst.Var(e.key.Ident()), v)
			}
		}
	}
	if t.parent != nil {
		return t.parent.apply(code)
	}
	return code, nil
}

// Resolve applies the table to code, makes literals and math functions
// match the precision, and checks that no placeholders remain. label
// names the code in errors.
func (t *Table) Resolve(code, label string) (string, error) {
	code, err := t.Apply(code)
	if err != nil {
		return code, errors.Wrap(err, label)
	}
	code = slsubst.EnsureFtype(code, t.Precision())
	return code, slsubst.CheckUnreplaced(code, label)
}
