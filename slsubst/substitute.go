// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package slsubst implements the text rewriting used to turn model code
// fragments into kernel source: literal and function-call placeholder
// substitution, floating point precision rewriting, and the check for
// placeholders left unresolved.
//
// Placeholders are written $(name) for variables and
// $(name, arg0, arg1) for functions.
package slsubst

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/pkg/errors"
	"goki.dev/synsl/sltype"
)

const (
	// Open is the placeholder open delimiter
	Open = "$("

	// Close is the placeholder close delimiter
	Close = ")"
)

var (
	// ErrMalformedCall is returned for function-call placeholders that
	// cannot be parsed: unbalanced brackets, empty arguments or the
	// wrong number of arguments.
	ErrMalformedCall = errors.New("malformed function substitution")

	// ErrUnresolved is returned when placeholders remain in code after
	// all substitutions have been applied.
	ErrUnresolved = errors.New("unresolved placeholder")
)

// Var returns the placeholder for variable name: $(name)
func Var(name string) string {
	return Open + name + Close
}

// Arg returns the positional template slot i: $(i)
func Arg(i int) string {
	return Open + strconv.Itoa(i) + Close
}

// Substitute replaces every occurrence of target in s with rep,
// restarting the search from the beginning after each replacement.
// If rep itself contains target, a restarting search could never
// finish, and a single left-to-right pass is done instead.
func Substitute(s, target, rep string) string {
	if target == "" {
		return s
	}
	if strings.Contains(rep, target) {
		return strings.ReplaceAll(s, target, rep)
	}
	for {
		i := strings.Index(s, target)
		if i < 0 {
			return s
		}
		s = s[:i] + rep + s[i+len(target):]
	}
}

// FunctionSubstitute replaces every call $(name, a0, a1, ...) in code
// with tmpl, in which $(0), $(1) ... are replaced by the call
// arguments. Arguments are split on commas at bracket depth zero, and
// whitespace outside nested brackets is dropped, so arguments may
// themselves contain calls. Functions with no parameters are replaced
// by literal match on $(name).
func FunctionSubstitute(code, name string, numParams int, tmpl string) (string, error) {
	if numParams == 0 {
		return Substitute(code, Var(name), tmpl), nil
	}
	// match up to the comma so longer names with the same prefix don't match
	start := Open + name + ","
	if strings.Contains(tmpl, start) {
		return code, errors.Wrapf(ErrMalformedCall, "template for %s calls itself", name)
	}
	for {
		found := strings.Index(code, start)
		if found < 0 {
			return code, nil
		}
		args, end, err := parseArgs(code, found+len(start))
		if err != nil {
			return code, errors.Wrapf(err, "call to %s at offset %d", name, found)
		}
		if len(args) != numParams {
			return code, errors.Wrapf(ErrMalformedCall, "%s takes %d arguments, %d given in %q", name, numParams, len(args), code[found:end+1])
		}
		rep := tmpl
		for i, a := range args {
			rep = Substitute(rep, Arg(i), a)
		}
		code = code[:found] + rep + code[end+1:]
	}
}

// parseArgs parses comma separated call arguments starting at st,
// returning the arguments and the index of the closing delimiter.
func parseArgs(code string, st int) ([]string, int, error) {
	var args []string
	var cur strings.Builder
	depth := 0
	for i := st; i < len(code); i++ {
		c := code[i]
		switch {
		case c == ',' && depth == 0:
			if cur.Len() == 0 {
				return nil, i, errors.Wrap(ErrMalformedCall, "empty argument")
			}
			args = append(args, cur.String())
			cur.Reset()
			continue
		case c == '(':
			depth++
		case c == ')':
			if depth == 0 {
				if cur.Len() == 0 {
					return nil, i, errors.Wrap(ErrMalformedCall, "empty argument")
				}
				args = append(args, cur.String())
				return args, i, nil
			}
			depth--
		}
		if depth > 0 || !unicode.IsSpace(rune(c)) {
			cur.WriteByte(c)
		}
	}
	return nil, len(code), errors.Wrap(ErrMalformedCall, "unbalanced brackets")
}

// FunctionTemplate is a generic function with separate double and
// single precision implementations.
type FunctionTemplate struct {
	// Name is the placeholder function name, e.g. gennrand_uniform
	Name string

	// NumArgs is the number of call arguments
	NumArgs int

	// Double is the replacement used for double precision
	Double string

	// Single is the replacement used for single precision
	Single string
}

// Template returns the implementation for precision p
func (ft *FunctionTemplate) Template(p sltype.Precision) string {
	if p == sltype.Double {
		return ft.Double
	}
	return ft.Single
}

// FunctionSubstitutions applies each of the function templates to code,
// using the implementation for precision p.
func FunctionSubstitutions(code string, p sltype.Precision, fts []FunctionTemplate) (string, error) {
	var err error
	for i := range fts {
		ft := &fts[i]
		code, err = FunctionSubstitute(code, ft.Name, ft.NumArgs, ft.Template(p))
		if err != nil {
			return code, err
		}
	}
	return code, nil
}
