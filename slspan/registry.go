// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slspan

import (
	"strings"

	"github.com/pkg/errors"
	"goki.dev/synsl/slmodel"
)

var (
	// ErrNoStrategy is returned when no strategy can update a group
	ErrNoStrategy = errors.New("no compatible presynaptic update strategy")

	// ErrAmbiguousStrategy is returned when more than one strategy
	// claims a group
	ErrAmbiguousStrategy = errors.New("ambiguous presynaptic update strategy")
)

// Strategies returns the full set of strategies
func Strategies() []Strategy {
	return []Strategy{PreSpan{}, PostSpan{}, PreSpanProcedural{}}
}

// Registry selects the strategy of each synapse group
type Registry struct {
	strategies []Strategy
}

// storageClasses are the weight update variable implementations sampled
// for overlapping strategies
var storageClasses = [][]slmodel.VarImpl{
	nil,
	{slmodel.Individual},
	{slmodel.Global},
	{slmodel.ProceduralVar},
	{slmodel.Global, slmodel.ProceduralVar},
	{slmodel.Individual, slmodel.Global},
	{slmodel.Individual, slmodel.ProceduralVar},
}

// sampleGroup returns a synapse group with the given connectivity, span
// and weight update variable implementations.
func sampleGroup(mc slmodel.MatrixConnectivity, span slmodel.SpanType, impls []slmodel.VarImpl) *slmodel.SynapseGroup {
	ng := &slmodel.NeuronGroup{Name: "sample", Size: 1, Model: &slmodel.NeuronModel{}, NumDelaySlots: 1}
	wu := &slmodel.WeightUpdateModel{}
	sg := &slmodel.SynapseGroup{Name: "sample", Src: ng, Trg: ng, Matrix: mc, Span: span, MaxConnections: 1, ThreadsPerSpike: 1, WU: wu, WUVars: map[string]*slmodel.VarInit{}}
	for i, impl := range impls {
		nm := string(rune('a' + i))
		wu.Vars = append(wu.Vars, slmodel.Var{Name: nm, Type: "scalar"})
		sg.WUVars[nm] = &slmodel.VarInit{Impl: impl}
	}
	return sg
}

// NewRegistry returns a registry of ss, checking that no two of them
// are compatible with the same kind of synapse group, over every
// combination of connectivity, span and variable storage.
func NewRegistry(ss ...Strategy) (*Registry, error) {
	for _, mc := range slmodel.MatrixConnectivityValues() {
		for _, span := range slmodel.SpanTypeValues() {
			for _, impls := range storageClasses {
				sg := sampleGroup(mc, span, impls)
				var claim []string
				for _, s := range ss {
					if s.IsCompatible(sg) {
						claim = append(claim, s.Kind().String())
					}
				}
				if len(claim) > 1 {
					return nil, errors.Wrapf(ErrAmbiguousStrategy, "%s and %s connectivity with vars %v is claimed by %s", mc, span, impls, strings.Join(claim, ", "))
				}
			}
		}
	}
	return &Registry{strategies: ss}, nil
}

// DefaultRegistry returns the registry of the full strategy set
func DefaultRegistry() *Registry {
	r, err := NewRegistry(Strategies()...)
	if err != nil {
		panic(err)
	}
	return r
}

// Select returns the one strategy compatible with sg
func (r *Registry) Select(sg *slmodel.SynapseGroup) (Strategy, error) {
	var found []Strategy
	for _, s := range r.strategies {
		if s.IsCompatible(sg) {
			found = append(found, s)
		}
	}
	switch len(found) {
	case 0:
		return nil, errors.Wrapf(ErrNoStrategy, "synapse group %s with %s connectivity and %s span", sg.Name, sg.Matrix, sg.Span)
	case 1:
		return found[0], nil
	}
	return nil, errors.Wrapf(ErrAmbiguousStrategy, "synapse group %s with %s connectivity and %s span matches %s and %s", sg.Name, sg.Matrix, sg.Span, found[0].Kind(), found[1].Kind())
}

// Plan is the parallelization of one synapse group for one generation pass
type Plan struct {
	Strategy Strategy

	// NumThreads is the number of threads the group needs
	NumThreads int

	// PaddedThreads is NumThreads rounded up to a whole number of blocks
	PaddedThreads int

	// SharedMemPerThread is the number of shared accumulator elements per thread
	SharedMemPerThread int

	RowStride int

	Accumulation Accumulation
}

// Plan selects the strategy of sg and computes its plan
func (r *Registry) Plan(sg *slmodel.SynapseGroup, env Env) (*Plan, error) {
	s, err := r.Select(sg)
	if err != nil {
		return nil, err
	}
	n := s.NumThreads(sg)
	return &Plan{
		Strategy:           s,
		NumThreads:         n,
		PaddedThreads:      padded(n, env.BlockSize()),
		SharedMemPerThread: s.SharedMemoryPerThread(sg, env),
		RowStride:          s.RowStride(sg),
		Accumulation:       AccumulationFor(s, sg, env),
	}, nil
}

// SharedMemBytes is the shared accumulator size per block
func (p *Plan) SharedMemBytes(env Env) int {
	return p.SharedMemPerThread * env.BlockSize() * env.Precision().Size()
}

// SharedArray is a block-shared array used by a strategy
type SharedArray struct {
	Name string
	Type string
}

// SharedArrays returns the block-shared arrays the update of sg uses,
// which the kernel declares at function scope.
func (p *Plan) SharedArrays(sg *slmodel.SynapseGroup) []SharedArray {
	var sa []SharedArray
	if p.Accumulation == SharedMem {
		sa = append(sa, SharedArray{Name: "shLg", Type: "scalar"})
	}
	if p.Strategy.Kind() != KindPostSpan {
		return sa
	}
	if sg.WU.SimCode != "" {
		sa = append(sa, SharedArray{Name: "shSpk", Type: "unsigned int"})
	}
	if sg.WU.EventCode != "" {
		sa = append(sa, SharedArray{Name: "shSpkEvnt", Type: "unsigned int"})
	}
	if sg.Matrix == slmodel.Sparse {
		sa = append(sa, SharedArray{Name: "shRowLength", Type: "unsigned int"})
	}
	return sa
}
