// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slspan

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
	"goki.dev/synsl/slcode"
	"goki.dev/synsl/slmodel"
	"goki.dev/synsl/slrand"
	"goki.dev/synsl/slsym"
	"goki.dev/synsl/sltype"
)

type testEnv struct {
	fast  bool
	block int
}

func (e *testEnv) Precision() sltype.Precision          { return sltype.Float }
func (e *testEnv) Resolver() slsym.Resolver             { return slsym.Resolver{Prefix: "dd_"} }
func (e *testEnv) LocalID() string                      { return "threadIdx.x" }
func (e *testEnv) Barrier() string                      { return "__syncthreads()" }
func (e *testEnv) SharedPrefix() string                 { return "__shared__ " }
func (e *testEnv) BlockSize() int                       { return e.block }
func (e *testEnv) FastSharedAtomics() bool              { return e.fast }
func (e *testEnv) FloatAtomicAdd(space MemSpace) string { return "atomicAdd" }
func (e *testEnv) IntAtomicAdd(space MemSpace) string   { return "atomicAdd" }
func (e *testEnv) Uint64() string                       { return "uint64_t" }

const spanModel = `
name = "span"

[neuron_models.N]
vars = [{ name = "V", type = "scalar" }]
threshold = "$(V) > 1.0"

[weight_update_models.W]
vars = [{ name = "g", type = "scalar" }]
sim = "$(addToInSyn, $(g));"

[postsynaptic_models.P]
apply_input = "$(Isyn) += $(inSyn);"

[connectivity_models.Rand]
row_build = "const unsigned int j = $(id_post_begin) + (unsigned int)($(gennrand_uniform) * $(num_post)); $(addSynapse, j); $(endRow);"

[[neuron_groups]]
name = "A"
size = 100
model = "N"

[[neuron_groups]]
name = "B"
size = 50
model = "N"

[[synapse_groups]]
name = "AB"
source = "A"
target = "B"
weight_update = { model = "W" }
postsynaptic = { model = "P" }
`

// testGroup builds the model with synapse group AB edited by edit, and
// with a second group onto B if merged is set.
func testGroup(t *testing.T, merged bool, edit func(ss *slmodel.SynapseGroupSpec)) *slmodel.SynapseGroup {
	t.Helper()
	f, err := slmodel.Decode([]byte(spanModel))
	if err != nil {
		t.Fatal(err)
	}
	edit(&f.SynapseGroups[0])
	if merged {
		s2 := f.SynapseGroups[0]
		s2.Name = "BB"
		s2.Source = "B"
		f.SynapseGroups = append(f.SynapseGroups, s2)
	}
	m, err := f.Build()
	if err != nil {
		t.Fatal(err)
	}
	return m.SynapseGroup("AB")
}

func sparse(span slmodel.SpanType) func(ss *slmodel.SynapseGroupSpec) {
	return func(ss *slmodel.SynapseGroupSpec) {
		ss.Matrix = slmodel.Sparse
		ss.Span = span
		ss.MaxConnections = 10
	}
}

func dense(ss *slmodel.SynapseGroupSpec) {
	ss.Matrix = slmodel.Dense
}

func procedural(ss *slmodel.SynapseGroupSpec) {
	ss.Matrix = slmodel.Procedural
	ss.Connectivity = slmodel.ModelRef{Model: "Rand"}
	ss.WeightUpdate.Vars = map[string]slmodel.VarSpec{"g": {Impl: slmodel.Global, Value: 0.5}}
}

func popSubs() *slsym.Table {
	root := slsym.NewRoot(sltype.Float, slrand.FunctionTemplates())
	root.AddVar("id", "lid")
	root.AddVar("t", "t")
	return root
}

func testHandlers(env Env) Handlers {
	return Handlers{
		Sim: func(w *slcode.Stream, sg *slmodel.SynapseGroup, subs *slsym.Table) error {
			wu := slsym.New(subs)
			env.Resolver().WeightUpdateSubs(wu, sg, "$(id_syn)", "l")
			code, err := wu.Resolve(sg.WU.SimCode, "sim")
			if err != nil {
				return err
			}
			w.Code(code)
			return nil
		},
		ProceduralConnect: func(w *slcode.Stream, sg *slmodel.SynapseGroup, subs *slsym.Table) error {
			cs := slsym.New(subs)
			cs.AddVar("endRow", "break")
			code, err := cs.Resolve(sg.Conn.RowBuildCode, "row")
			if err != nil {
				return err
			}
			w.WriteString("while (true)")
			w.Open(1)
			w.Code(code)
			w.Close(1)
			return nil
		},
	}
}

// generate writes the three phases of the true spike update of sg
func generate(t *testing.T, sg *slmodel.SynapseGroup, env Env) (*Plan, string) {
	t.Helper()
	p, err := DefaultRegistry().Plan(sg, env)
	if err != nil {
		t.Fatal(err)
	}
	w, buf := slcode.NewBuffer()
	subs := popSubs()
	s := p.Strategy
	if err := s.GenPreamble(w, sg, subs, env); err != nil {
		t.Fatal(err)
	}
	if err := s.GenUpdate(w, sg, subs, env, true, 0, testHandlers(env)); err != nil {
		t.Fatal(err)
	}
	if err := s.GenPostamble(w, sg, subs, env); err != nil {
		t.Fatal(err)
	}
	if err := w.Err(); err != nil {
		t.Fatal(err)
	}
	return p, buf.String()
}

func TestRegistryExclusive(t *testing.T) {
	if _, err := NewRegistry(Strategies()...); err != nil {
		t.Fatal(err)
	}
	_, err := NewRegistry(PreSpan{}, PostSpan{}, PreSpan{})
	if !errors.Is(err, ErrAmbiguousStrategy) {
		t.Errorf("expected overlap to be rejected, got %v", err)
	}
}

func TestSelect(t *testing.T) {
	reg := DefaultRegistry()
	tests := []struct {
		mc    slmodel.MatrixConnectivity
		span  slmodel.SpanType
		impls []slmodel.VarImpl
		want  Kind
		none  bool
	}{
		{mc: slmodel.Sparse, span: slmodel.Presynaptic, impls: []slmodel.VarImpl{slmodel.Individual}, want: KindPreSpan},
		{mc: slmodel.Sparse, span: slmodel.Postsynaptic, impls: []slmodel.VarImpl{slmodel.Individual}, want: KindPostSpan},
		{mc: slmodel.Dense, span: slmodel.Postsynaptic, want: KindPostSpan},
		{mc: slmodel.Bitmask, span: slmodel.Postsynaptic, impls: []slmodel.VarImpl{slmodel.Global}, want: KindPostSpan},
		{mc: slmodel.Procedural, span: slmodel.Presynaptic, impls: []slmodel.VarImpl{slmodel.Global, slmodel.ProceduralVar}, want: KindPreSpanProcedural},
		{mc: slmodel.Procedural, span: slmodel.Postsynaptic, impls: []slmodel.VarImpl{slmodel.ProceduralVar}, want: KindPreSpanProcedural},
		{mc: slmodel.Procedural, span: slmodel.Presynaptic, impls: []slmodel.VarImpl{slmodel.Global, slmodel.Individual}, none: true},
		{mc: slmodel.Dense, span: slmodel.Presynaptic, none: true},
	}
	for _, tt := range tests {
		sg := sampleGroup(tt.mc, tt.span, tt.impls)
		s, err := reg.Select(sg)
		if tt.none {
			if !errors.Is(err, ErrNoStrategy) {
				t.Errorf("%v %v %v: expected no strategy, got %v %v", tt.mc, tt.span, tt.impls, s, err)
			} else if !strings.Contains(err.Error(), tt.mc.String()) || !strings.Contains(err.Error(), tt.span.String()) {
				t.Errorf("error should name the connectivity and span: %v", err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%v %v %v: %v", tt.mc, tt.span, tt.impls, err)
			continue
		}
		if s.Kind() != tt.want {
			t.Errorf("%v %v %v: got %v want %v", tt.mc, tt.span, tt.impls, s.Kind(), tt.want)
		}
	}
}

func TestSmallTargetShared(t *testing.T) {
	env := &testEnv{fast: true, block: 128}
	sg := testGroup(t, false, sparse(slmodel.Postsynaptic))
	s := PostSpan{}
	if n := s.SharedMemoryPerThread(sg, env); n != 1 {
		t.Errorf("shared per thread = %d, want 1", n)
	}
	if s.ShouldAccumulateInRegister(sg) {
		t.Error("sparse should not accumulate in register")
	}
	if a := AccumulationFor(s, sg, env); a != SharedMem {
		t.Errorf("accumulation %v", a)
	}
	if n := s.SharedMemoryPerThread(sg, &testEnv{fast: false, block: 128}); n != 0 {
		t.Error("no fast shared atomics: no shared accumulator")
	}
	if n := s.SharedMemoryPerThread(sg, &testEnv{fast: true, block: 32}); n != 0 {
		t.Error("target larger than block: no shared accumulator")
	}

	d := testGroup(t, false, dense)
	if !s.ShouldAccumulateInRegister(d) || s.SharedMemoryPerThread(d, env) != 0 {
		t.Error("dense accumulates in register")
	}
	if AccumulationFor(s, d, &testEnv{fast: false, block: 8}) != Register {
		t.Error("dense accumulates in register regardless of target size")
	}
}

func TestPostSpanRegister(t *testing.T) {
	env := &testEnv{fast: true, block: 64}
	p, code := generate(t, testGroup(t, false, dense), env)
	if p.Accumulation != Register || p.NumThreads != 50 || p.PaddedThreads != 64 {
		t.Errorf("plan %+v", p)
	}
	for _, s := range []string{"scalar linSyn = 0;", "linSyn += dd_gAB[synAddress];", "if (lid < 50) {\n    dd_inSynAB[lid] += linSyn;\n}\n", "shSpk[threadIdx.x] = spk;"} {
		if !strings.Contains(code, s) {
			t.Errorf("missing %q in\n%s", s, code)
		}
	}
	if strings.Contains(code, "atomicAdd") {
		t.Errorf("unmerged register accumulation needs no atomics:\n%s", code)
	}
}

func TestMergedFlushAtomic(t *testing.T) {
	env := &testEnv{fast: true, block: 64}
	sg := testGroup(t, true, dense)
	if !sg.PSMerged {
		t.Fatal("AB should be merged")
	}
	_, code := generate(t, sg, env)
	if !strings.Contains(code, "atomicAdd(&dd_inSynAB[lid], linSyn);") {
		t.Errorf("merged flush should be atomic:\n%s", code)
	}
}

func TestPreSpanShared(t *testing.T) {
	env := &testEnv{fast: true, block: 64}
	p, code := generate(t, testGroup(t, false, sparse(slmodel.Presynaptic)), env)
	if p.Accumulation != SharedMem || p.NumThreads != 100 || p.RowStride != 10 {
		t.Errorf("plan %+v", p)
	}
	for _, s := range []string{
		"shLg[threadIdx.x] = 0;",
		"const unsigned int preInd = dd_glbSpkA[spike];",
		"const unsigned int ipost = dd_indAB[synAddress];",
		"atomicAdd(&shLg[ipost], ",
		// 100 threads span two blocks of 64
		"atomicAdd(&dd_inSynAB[threadIdx.x], shLg[threadIdx.x]);",
	} {
		if !strings.Contains(code, s) {
			t.Errorf("missing %q in\n%s", s, code)
		}
	}
}

func TestDendriticDelay(t *testing.T) {
	env := &testEnv{fast: true, block: 128}
	for _, edit := range []func(ss *slmodel.SynapseGroupSpec){sparse(slmodel.Presynaptic), sparse(slmodel.Postsynaptic), dense} {
		sg := testGroup(t, false, func(ss *slmodel.SynapseGroupSpec) {
			edit(ss)
			ss.MaxDendriticDelay = 4
		})
		p, code := generate(t, sg, env)
		if p.Accumulation != Dendritic {
			t.Errorf("%v: accumulation %v", sg.Matrix, p.Accumulation)
		}
		if !strings.Contains(code, "atomicAdd(&dd_denDelayAB[(((*dd_denDelayPtrAB + 0) % 4) * 50) + ") {
			t.Errorf("%v: missing dendritic delay atomic in\n%s", sg.Matrix, code)
		}
		if strings.Contains(code, "linSyn") || strings.Contains(code, "shLg") || strings.Contains(code, "dd_inSynAB") {
			t.Errorf("%v: dendritic delay must not accumulate elsewhere:\n%s", sg.Matrix, code)
		}
	}
}

func TestProcedural(t *testing.T) {
	env := &testEnv{fast: false, block: 32}
	sg := testGroup(t, false, procedural)
	if !IsConnectRNGRequired(sg) {
		t.Error("row build draws random numbers")
	}
	p, code := generate(t, sg, env)
	if p.Strategy.Kind() != KindPreSpanProcedural || p.Accumulation != GlobalAtomic {
		t.Errorf("plan %+v", p)
	}
	for _, s := range []string{
		"synslRNG connectRNG;",
		"synslRNGInit(&connectRNG, deviceRNGSeed, preInd + 0);",
		"while (true) {",
		"(unsigned int)(synslUniformf(&connectRNG) * 50)",
		"atomicAdd(&dd_inSynAB[j], 0.5f);",
		"break;",
	} {
		if !strings.Contains(code, s) {
			t.Errorf("missing %q in\n%s", s, code)
		}
	}

	// individual vars have no synapse address
	sg = testGroup(t, false, func(ss *slmodel.SynapseGroupSpec) {
		procedural(ss)
		ss.WeightUpdate.Vars = nil
	})
	if _, err := DefaultRegistry().Select(sg); !errors.Is(err, ErrNoStrategy) {
		t.Errorf("expected no strategy, got %v", err)
	}
}

func TestProceduralSplitRows(t *testing.T) {
	env := &testEnv{fast: false, block: 32}
	sg := testGroup(t, false, func(ss *slmodel.SynapseGroupSpec) {
		procedural(ss)
		ss.ThreadsPerSpike = 4
	})
	p, code := generate(t, sg, env)
	if p.NumThreads != 400 {
		t.Errorf("threads %d", p.NumThreads)
	}
	for _, s := range []string{
		"const unsigned int thread = lid % 4;",
		"const unsigned int idPostStart = thread * 13;",
		"const unsigned int numPost = (idPostStart >= 50) ? 0 : (((50 - idPostStart) < 13) ? (50 - idPostStart) : 13);",
		"synslRNGInit(&connectRNG, deviceRNGSeed, (preInd * 4) + thread + 0);",
		"idPostStart + (unsigned int)(synslUniformf(&connectRNG) * numPost)",
	} {
		if !strings.Contains(code, s) {
			t.Errorf("missing %q in\n%s", s, code)
		}
	}
}
