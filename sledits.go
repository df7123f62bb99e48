// Copyright 2022 The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"strings"
)

// Replace is a fixed rewrite of region code
type Replace struct {
	From, To []byte
}

// Replaces rewrite the Go spellings that fragments kept in Go host
// files tend to use into their C equivalents. uint32 precedes int32.
var Replaces = []Replace{
	{[]byte("float32"), []byte("float")},
	{[]byte("float64"), []byte("double")},
	{[]byte("uint32"), []byte("unsigned int")},
	{[]byte("int32"), []byte("int")},
	{[]byte("math.Exp("), []byte("exp(")},
	{[]byte("mat32.Exp("), []byte("exp(")},
	{[]byte("math.Log("), []byte("log(")},
	{[]byte("mat32.Log("), []byte("log(")},
	{[]byte("math.Pow("), []byte("pow(")},
	{[]byte("mat32.Pow("), []byte("pow(")},
	{[]byte("math.Sqrt("), []byte("sqrt(")},
	{[]byte("mat32.Sqrt("), []byte("sqrt(")},
	{[]byte("math.Cos("), []byte("cos(")},
	{[]byte("mat32.Cos("), []byte("cos(")},
	{[]byte("math.Sin("), []byte("sin(")},
	{[]byte("mat32.Sin("), []byte("sin(")},
	{[]byte("math.Tanh("), []byte("tanh(")},
	{[]byte("mat32.Tanh("), []byte("tanh(")},
	{[]byte("math.Abs("), []byte("fabs(")},
	{[]byte("mat32.Abs("), []byte("fabs(")},
	{[]byte("math.Min("), []byte("fmin(")},
	{[]byte("mat32.Min("), []byte("fmin(")},
	{[]byte("math.Max("), []byte("fmax(")},
	{[]byte("mat32.Max("), []byte("fmax(")},
}

// isGoRegion reports whether the region came from a Go host file
func isGoRegion(fn string) bool {
	return strings.HasSuffix(fn, ".go")
}

// slEdits applies Replaces to each line of code
func slEdits(code []byte) []byte {
	nl := []byte("\n")
	lines := bytes.Split(code, nl)
	for li, ln := range lines {
		for _, r := range Replaces {
			ln = bytes.ReplaceAll(ln, r.From, r.To)
		}
		lines[li] = ln
	}
	return bytes.Join(lines, nl)
}
