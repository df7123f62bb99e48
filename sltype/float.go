// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sltype

import (
	"fmt"
	"strings"
)

// Precision is the floating point type used for scalar state in
// generated kernels.
type Precision int32

const (
	// Float is 32 bit single precision, written `float` in kernel source
	Float Precision = iota

	// Double is 64 bit double precision, written `double` in kernel source
	Double
)

// String returns the kernel-language type name
func (p Precision) String() string {
	if p == Double {
		return "double"
	}
	return "float"
}

// Size returns the number of bytes of one scalar
func (p Precision) Size() int {
	if p == Double {
		return 8
	}
	return 4
}

// Digits returns the number of significant decimal digits needed to
// round-trip a value of this precision (max_digits10).
func (p Precision) Digits() int {
	if p == Double {
		return 17
	}
	return 9
}

// BitSize is the strconv bit size for this precision
func (p Precision) BitSize() int {
	return p.Size() * 8
}

// ParsePrecision parses a precision name: float, single, float32,
// double, float64.
func ParsePrecision(s string) (Precision, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "float", "single", "float32", "":
		return Float, nil
	case "double", "float64":
		return Double, nil
	}
	return Float, fmt.Errorf("sltype: unknown precision %q", s)
}

// UnmarshalText implements encoding.TextUnmarshaler, for toml decoding
func (p *Precision) UnmarshalText(text []byte) error {
	v, err := ParsePrecision(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// MarshalText implements encoding.TextMarshaler
func (p Precision) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}
