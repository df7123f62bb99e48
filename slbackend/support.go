// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slbackend

import (
	"fmt"
	"strings"

	"goki.dev/synsl/slrand"
	"goki.dev/synsl/slsubst"
	"goki.dev/synsl/sltype"
)

const atomicAddSW = `__device__ double atomicAddSW(double* address, double val) {
    unsigned long long int* address_as_ull = (unsigned long long int*)address;
    unsigned long long int old = *address_as_ull, assumed;
    do {
        assumed = old;
        old = atomicCAS(address_as_ull, assumed, __double_as_longlong(val + __longlong_as_double(assumed)));
    } while (assumed != old);
    return __longlong_as_double(old);
}
`

// SPACE, INT and CMPXCHG are filled in per memory space and precision
const atomicAddCAS = `inline void atomic_add_f_SPACE(volatile __SPACE scalar *source, const scalar operand) {
    union { INT intVal; scalar floatVal; } newVal;
    union { INT intVal; scalar floatVal; } prevVal;
    do {
        prevVal.floatVal = *source;
        newVal.floatVal = prevVal.floatVal + operand;
    } while (CMPXCHG((volatile __SPACE INT *)source, prevVal.intVal, newVal.intVal) != prevVal.intVal);
}
`

// SupportCode is the code shared by all kernels: the scalar type, the
// bitmask test, atomic helpers and, if rng is set, the random generator.
func (b *Backend) SupportCode(rng bool) string {
	var sb strings.Builder
	sb.WriteString("// generated by synsl: do not edit\n\n")
	if b.Kind == OpenCL && b.prec == sltype.Double {
		sb.WriteString("#pragma OPENCL EXTENSION cl_khr_fp64 : enable\n")
		sb.WriteString("#pragma OPENCL EXTENSION cl_khr_int64_base_atomics : enable\n\n")
	}
	fmt.Fprintf(&sb, "typedef %s scalar;\n\n", b.prec)
	sb.WriteString("#define B(x, i) ((x) & (1u << (i)))\n\n")

	switch {
	case b.Kind == OpenCL:
		if b.prec == sltype.Float {
			// the OpenCL math functions are overloaded on their argument
			for _, mf := range slsubst.MathFuncs {
				fmt.Fprintf(&sb, "#define %s %s\n", mf.Single, mf.Double)
			}
			sb.WriteString("\n")
		}
		integer, cmpxchg := "unsigned int", "atomic_cmpxchg"
		if b.prec == sltype.Double {
			integer, cmpxchg = "ulong", "atom_cmpxchg"
		}
		for _, space := range []string{"global", "local"} {
			sb.WriteString(strings.NewReplacer("SPACE", space, "INT", integer, "CMPXCHG", cmpxchg).Replace(atomicAddCAS))
			sb.WriteString("\n")
		}
	case b.softwareDoubleAtomic():
		sb.WriteString(atomicAddSW)
		sb.WriteString("\n")
	}

	if rng {
		d := slrand.CUDA
		if b.Kind == OpenCL {
			d = slrand.OpenCL
		}
		sb.WriteString(slrand.DeviceSource(d, b.prec == sltype.Double))
		sb.WriteString("\n")
	}
	return sb.String()
}
