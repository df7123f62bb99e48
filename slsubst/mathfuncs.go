// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slsubst

import (
	"strings"

	"goki.dev/synsl/sltype"
)

// MathFunc is a pair of corresponding double and single precision
// C99 math function names.
type MathFunc struct {
	Double, Single string
}

// MathFuncs is the table of math functions renamed by EnsureFtype
var MathFuncs = []MathFunc{
	{"cos", "cosf"},
	{"sin", "sinf"},
	{"tan", "tanf"},
	{"acos", "acosf"},
	{"asin", "asinf"},
	{"atan", "atanf"},
	{"atan2", "atan2f"},
	{"cosh", "coshf"},
	{"sinh", "sinhf"},
	{"tanh", "tanhf"},
	{"acosh", "acoshf"},
	{"asinh", "asinhf"},
	{"atanh", "atanhf"},
	{"exp", "expf"},
	{"frexp", "frexpf"},
	{"ldexp", "ldexpf"},
	{"log", "logf"},
	{"log10", "log10f"},
	{"modf", "modff"},
	{"exp2", "exp2f"},
	{"expm1", "expm1f"},
	{"ilogb", "ilogbf"},
	{"log1p", "log1pf"},
	{"log2", "log2f"},
	{"logb", "logbf"},
	{"scalbn", "scalbnf"},
	{"scalbln", "scalblnf"},
	{"pow", "powf"},
	{"sqrt", "sqrtf"},
	{"cbrt", "cbrtf"},
	{"hypot", "hypotf"},
	{"erf", "erff"},
	{"erfc", "erfcf"},
	{"tgamma", "tgammaf"},
	{"lgamma", "lgammaf"},
	{"ceil", "ceilf"},
	{"floor", "floorf"},
	{"fmod", "fmodf"},
	{"trunc", "truncf"},
	{"round", "roundf"},
	{"lround", "lroundf"},
	{"llround", "llroundf"},
	{"rint", "rintf"},
	{"lrint", "lrintf"},
	{"nearbyint", "nearbyintf"},
	{"remainder", "remainderf"},
	{"remquo", "remquof"},
	{"copysign", "copysignf"},
	{"nan", "nanf"},
	{"nextafter", "nextafterf"},
	{"nexttoward", "nexttowardf"},
	{"fdim", "fdimf"},
	{"fmax", "fmaxf"},
	{"fmin", "fminf"},
	{"fabs", "fabsf"},
	{"fma", "fmaf"},
}

var (
	toSingle = map[string]string{}
	toDouble = map[string]string{}
)

func init() {
	for _, mf := range MathFuncs {
		toSingle[mf.Double] = mf.Single
		toDouble[mf.Single] = mf.Double
	}
}

func isIdentByte(c byte) bool {
	return c == '_' || isDigit(c) || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// EnsureMathFtype renames calls to the math functions in MathFuncs to
// their precision p variant. Only whole identifiers directly followed
// by '(' are renamed, so fmodf( is never read as modf( and user
// functions that end in a math function name are untouched.
func EnsureMathFtype(code string, p sltype.Precision) string {
	names := toSingle
	if p == sltype.Double {
		names = toDouble
	}
	var b strings.Builder
	b.Grow(len(code) + 8)
	for i := 0; i < len(code); {
		c := code[i]
		if !isIdentByte(c) {
			b.WriteByte(c)
			i++
			continue
		}
		j := i
		for j < len(code) && isIdentByte(code[j]) {
			j++
		}
		id := code[i:j]
		if j < len(code) && code[j] == '(' {
			if rn, has := names[id]; has {
				id = rn
			}
		}
		b.WriteString(id)
		i = j
	}
	return b.String()
}
