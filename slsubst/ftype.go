// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slsubst

import (
	"math"
	"strconv"
	"strings"

	"goki.dev/synsl/sltype"
)

// LexState is the state of the numeric literal scanner used by EnsureFtype
type LexState int32

const (
	// LeadIn looks for an operator or separator after which a number may start
	LeadIn LexState = iota

	// NumberStart looks for the first digit or '.' of a number
	NumberStart

	// Integer is in the integer part of a number
	Integer

	// Fraction is past the decimal point
	Fraction

	// Exponent has just seen 'e' or 'E'
	Exponent

	// ExponentSign has seen the sign of the exponent
	ExponentSign

	// ExponentDigits is in the exponent digits
	ExponentDigits
)

// Action is what the scanner does with the current character
type Action int32

const (
	// Keep copies the character unchanged
	Keep Action = iota

	// Finalize ends a floating point literal before the current
	// character, which requires the precision suffix decision.
	Finalize
)

// separators is the set of characters after which a number may start
const separators = "+-*/(<>= ,;\n\t"

func isSeparator(c byte) bool {
	return strings.IndexByte(separators, c) >= 0
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// afterLiteral returns the state following the character that ended a literal
func afterLiteral(c byte) LexState {
	if isSeparator(c) {
		return NumberStart
	}
	return LeadIn
}

// Step is the literal scanner transition function. For Finalize, the
// returned state is the state after the suffix decision has been
// applied at c.
func Step(s LexState, c byte) (LexState, Action) {
	switch s {
	case LeadIn:
		if isSeparator(c) {
			return NumberStart, Keep
		}
		return LeadIn, Keep
	case NumberStart:
		switch {
		case isDigit(c):
			return Integer, Keep
		case c == '.':
			return Fraction, Keep
		case isSeparator(c):
			return NumberStart, Keep
		}
		return LeadIn, Keep
	case Integer:
		switch {
		case c == '.':
			return Fraction, Keep
		case c == 'e' || c == 'E':
			return Exponent, Keep
		case isDigit(c):
			return Integer, Keep
		}
		// integers are left alone
		return afterLiteral(c), Keep
	case Fraction:
		switch {
		case c == 'e' || c == 'E':
			return Exponent, Keep
		case isDigit(c):
			return Fraction, Keep
		}
		if c == 'f' {
			return LeadIn, Finalize
		}
		return afterLiteral(c), Finalize
	case Exponent:
		switch {
		case isDigit(c):
			return ExponentDigits, Keep
		case c == '+' || c == '-':
			return ExponentSign, Keep
		}
		return afterLiteral(c), Keep
	case ExponentSign:
		if isDigit(c) {
			return ExponentDigits, Keep
		}
		return afterLiteral(c), Keep
	case ExponentDigits:
		if isDigit(c) {
			return ExponentDigits, Keep
		}
		if c == 'f' {
			return LeadIn, Finalize
		}
		return afterLiteral(c), Finalize
	}
	return LeadIn, Keep
}

// EnsureFtype makes every floating point literal in code explicitly
// of precision p: single precision literals get an f suffix, double
// precision ones lose it. Integer literals are never changed. Calls to
// standard math functions are then renamed to the matching precision
// variant (see MathFuncs).
func EnsureFtype(code string, p sltype.Precision) string {
	var b strings.Builder
	b.Grow(len(code) + 16)
	st := NumberStart // a number may start the code
	for i := 0; i < len(code); i++ {
		c := code[i]
		next, act := Step(st, c)
		if act == Finalize {
			switch {
			case c == 'f':
				if p != sltype.Double {
					b.WriteByte(c)
				}
			default:
				if p == sltype.Float {
					b.WriteByte('f')
				}
				b.WriteByte(c)
			}
		} else {
			b.WriteByte(c)
		}
		st = next
	}
	if (st == Fraction || st == ExponentDigits) && p == sltype.Float {
		b.WriteByte('f')
	}
	return EnsureMathFtype(b.String(), p)
}

// FormatLiteral writes v as a floating point literal with enough digits
// to round-trip in precision p, with no suffix (see EnsureFtype).
// Negative values are parenthesized so they can be substituted after a
// binary operator.
func FormatLiteral(v float64, p sltype.Precision) string {
	var s string
	switch {
	case math.IsNaN(v):
		return "NAN"
	case math.IsInf(v, 1):
		return "INFINITY"
	case math.IsInf(v, -1):
		return "(-INFINITY)"
	}
	s = strconv.FormatFloat(v, 'g', -1, p.BitSize())
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	if strings.HasPrefix(s, "-") {
		return "(" + s + ")"
	}
	return s
}
