// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slmodel

import (
	"math"

	"github.com/expr-lang/expr"
	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// exprFuncs are the functions available to derived param expressions
var exprFuncs = map[string]any{
	"exp":   math.Exp,
	"expm1": math.Expm1,
	"log":   math.Log,
	"log1p": math.Log1p,
	"log10": math.Log10,
	"sqrt":  math.Sqrt,
	"pow":   math.Pow,
	"sin":   math.Sin,
	"cos":   math.Cos,
	"tan":   math.Tan,
	"tanh":  math.Tanh,
	"fabs":  math.Abs,
	"erf":   math.Erf,
}

// EvalParams checks that params has exactly the params declared by sn
// and computes its derived params in declaration order. Each derived
// param can use the params, DT and earlier derived params.
func EvalParams(sn *Snippet, params map[string]float64, dt float64) (Values, error) {
	vals := Values{}
	env := map[string]any{"DT": dt}
	for k, f := range exprFuncs {
		env[k] = f
	}
	for _, p := range sn.Params {
		v, ok := params[p]
		if !ok {
			return nil, errors.Wrapf(ErrInvalidModel, "%s: missing value for param %s", sn.Name, p)
		}
		vals[p] = v
		env[p] = v
	}
	keys := maps.Keys(params)
	slices.Sort(keys)
	for _, k := range keys {
		if !slices.Contains(sn.Params, k) {
			return nil, errors.Wrapf(ErrInvalidModel, "%s: unknown param %s", sn.Name, k)
		}
	}
	for _, d := range sn.Derived {
		prog, err := expr.Compile(d.Expr, expr.Env(env), expr.AsFloat64())
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidModel, "%s: derived param %s: %v", sn.Name, d.Name, err)
		}
		out, err := expr.Run(prog, env)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidModel, "%s: derived param %s: %v", sn.Name, d.Name, err)
		}
		v, ok := out.(float64)
		if !ok {
			return nil, errors.Wrapf(ErrInvalidModel, "%s: derived param %s is %T, not a number", sn.Name, d.Name, out)
		}
		vals[d.Name] = v
		env[d.Name] = v
	}
	return vals, nil
}
