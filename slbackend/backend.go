// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package slbackend generates the CUDA or OpenCL kernels of a model:
// the neuron update, the presynaptic update through the strategies of
// slspan, and the reset of the spike queues between them. A Backend is
// the capability surface of one device profile, and is the slspan.Env
// of the strategies.
//
// Kernels are launched once per step in the order they are listed in
// the Program: updatePresynapticKernel, preNeuronResetKernel,
// updateNeuronsKernel.
package slbackend

import (
	"fmt"

	"goki.dev/synsl/slspan"
	"goki.dev/synsl/slsym"
	"goki.dev/synsl/sltype"
)

// Backend is the code generation environment of one profile and precision
type Backend struct {
	Kind    Kind
	Profile *Profile
	prec    sltype.Precision
}

// New returns the backend of profile pr generating code of precision p.
// The profile precision, if set, takes precedence.
func New(pr *Profile, p sltype.Precision) *Backend {
	if pr.Precision != "" {
		if pp, err := sltype.ParsePrecision(pr.Precision); err == nil {
			p = pp
		}
	}
	return &Backend{Kind: pr.Backend, Profile: pr, prec: p}
}

func (b *Backend) Precision() sltype.Precision {
	return b.prec
}

// Prefix is the prefix of device array names in kernels
func (b *Backend) Prefix() string {
	if b.Kind == OpenCL {
		return "d_"
	}
	return "dd_"
}

func (b *Backend) Resolver() slsym.Resolver {
	return slsym.Resolver{Prefix: b.Prefix()}
}

func (b *Backend) LocalID() string {
	if b.Kind == OpenCL {
		return "localId"
	}
	return "threadIdx.x"
}

func (b *Backend) Barrier() string {
	if b.Kind == OpenCL {
		return "barrier(CLK_LOCAL_MEM_FENCE)"
	}
	return "__syncthreads()"
}

func (b *Backend) SharedPrefix() string {
	if b.Kind == OpenCL {
		return "__local "
	}
	return "__shared__ "
}

func (b *Backend) BlockSize() int {
	return b.Profile.BlockSize.PresynapticUpdate
}

// FastSharedAtomics is set from the profile override, or from a
// compute capability of at least 5.0 (Maxwell).
func (b *Backend) FastSharedAtomics() bool {
	if b.Profile.FastSharedAtomics != nil {
		return *b.Profile.FastSharedAtomics
	}
	return b.Profile.ComputeMajor >= 5
}

// softwareDoubleAtomic reports whether double atomicAdd must be
// emulated, below compute capability 6.0.
func (b *Backend) softwareDoubleAtomic() bool {
	return b.Kind == CUDA && b.prec == sltype.Double && b.Profile.ComputeMajor < 6
}

func (b *Backend) FloatAtomicAdd(space slspan.MemSpace) string {
	if b.Kind == OpenCL {
		if space == slspan.Shared {
			return "atomic_add_f_local"
		}
		return "atomic_add_f_global"
	}
	if b.softwareDoubleAtomic() {
		return "atomicAddSW"
	}
	return "atomicAdd"
}

func (b *Backend) IntAtomicAdd(space slspan.MemSpace) string {
	if b.Kind == OpenCL {
		return "atomic_add"
	}
	return "atomicAdd"
}

func (b *Backend) Uint64() string {
	if b.Kind == OpenCL {
		return "ulong"
	}
	return "unsigned long long"
}

// globalID declares id, and localId for OpenCL, for a kernel of block size bs
func (b *Backend) globalID(bs int) []string {
	if b.Kind == OpenCL {
		return []string{
			"const unsigned int id = get_global_id(0);",
			"const unsigned int localId = get_local_id(0);",
		}
	}
	return []string{fmt.Sprintf("const unsigned int id = %d * blockIdx.x + threadIdx.x;", bs)}
}

// kernelHead is the signature of kernel name with params
func (b *Backend) kernelHead(name string, params []Param) string {
	args := ""
	for i, p := range params {
		if i > 0 {
			args += ", "
		}
		switch {
		case b.Kind == OpenCL && p.IsPointer():
			args += "__global " + p.Type + " " + p.Name
		case b.Kind == OpenCL:
			args += "const " + p.Type + " " + p.Name
		default:
			args += p.Type + " " + p.Name
		}
	}
	if b.Kind == OpenCL {
		return fmt.Sprintf("__kernel void %s(%s)", name, args)
	}
	return fmt.Sprintf("extern \"C\" __global__ void %s(%s)", name, args)
}
