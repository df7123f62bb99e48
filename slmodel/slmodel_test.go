// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slmodel

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"goki.dev/synsl/sltype"
)

const testModel = `
name = "va"
precision = "float"
dt = 0.5

[neuron_models.LIF]
params = ["TauM", "Vthresh", "Vreset"]
derived = [{ name = "ExpTC", expr = "exp(-DT / TauM)" }]
vars = [{ name = "V", type = "scalar" }]
threshold = "$(V) >= $(Vthresh)"
reset = "$(V) = $(Vreset);"
auto_refractory = true

[weight_update_models.StaticPulse]
vars = [{ name = "g", type = "scalar" }]
sim = "$(addToInSyn, $(g) * $(V_pre));"

[postsynaptic_models.ExpCurr]
params = ["tau"]
derived = [{ name = "expDecay", expr = "exp(-DT / tau)" }]
apply_input = "$(Isyn) += $(inSyn);"
decay = "$(inSyn) *= $(expDecay);"

[[neuron_groups]]
name = "E"
size = 80
model = "LIF"
params = { TauM = 20.0, Vthresh = -50.0, Vreset = -60.0 }

[[neuron_groups]]
name = "I"
size = 20
model = "LIF"
params = { TauM = 10.0, Vthresh = -50.0, Vreset = -60.0 }

[[synapse_groups]]
name = "EE"
source = "E"
target = "E"
matrix = "SPARSE"
span = "PRESYNAPTIC"
max_connections = 10
delay_steps = 3
weight_update = { model = "StaticPulse", vars = { g = { impl = "GLOBAL", value = 0.1 } } }
postsynaptic = { model = "ExpCurr", params = { tau = 5.0 } }

[[synapse_groups]]
name = "IE"
source = "I"
target = "E"
matrix = "DENSE"
weight_update = { model = "StaticPulse" }
postsynaptic = { model = "ExpCurr", params = { tau = 5.0 } }
`

func TestLoad(t *testing.T) {
	m, err := Load([]byte(testModel), map[string]string{"LIF.sim": "$(V) += ($(Isyn) - $(V)) * $(ExpTC);"})
	if err != nil {
		t.Fatal(err)
	}
	if m.Name != "va" || m.Precision != sltype.Float || m.DT != 0.5 {
		t.Errorf("header: %+v", m)
	}
	e := m.NeuronGroup("E")
	if e == nil || e.Size != 80 {
		t.Fatalf("bad E group %+v", e)
	}
	if got := e.Params["ExpTC"]; math.Abs(got-math.Exp(-0.5/20)) > 1e-12 {
		t.Errorf("ExpTC = %v", got)
	}
	if e.Model.SimCode != "$(V) += ($(Isyn) - $(V)) * $(ExpTC);\n" {
		t.Errorf("sim code not set from region: %q", e.Model.SimCode)
	}
	if e.NumDelaySlots != 4 || !e.DelayRequired() {
		t.Errorf("delay slots = %d", e.NumDelaySlots)
	}
	if !e.VarQueueRequired("V") {
		t.Error("V read as V_pre with delay should be queued")
	}
	i := m.NeuronGroup("I")
	if i.DelayRequired() || i.VarQueueRequired("V") {
		t.Error("I has no delay")
	}
	ee, ie := m.SynapseGroup("EE"), m.SynapseGroup("IE")
	if ee.VarImpl("g") != Global || ee.WUVars["g"].Value != 0.1 {
		t.Errorf("EE g = %+v", ee.WUVars["g"])
	}
	if ie.VarImpl("g") != Individual {
		t.Errorf("IE g should default to INDIVIDUAL")
	}
	if ie.MaxConnections != 80 {
		t.Errorf("dense max connections = %d", ie.MaxConnections)
	}
	if ie.Span != Postsynaptic || ee.Span != Presynaptic {
		t.Errorf("spans %v %v", ee.Span, ie.Span)
	}
	// identical postsynaptic models onto E are merged into EE's accumulator
	if !ee.PSMerged || !ie.PSMerged || ie.PSTarget != "EE" || ee.PSTarget != "EE" {
		t.Errorf("merge: EE %v %s IE %v %s", ee.PSMerged, ee.PSTarget, ie.PSMerged, ie.PSTarget)
	}
	if len(e.MergedInSyn) != 1 || e.MergedInSyn[0] != ee {
		t.Errorf("merged in syn %v", e.MergedInSyn)
	}
}

func TestNoMerge(t *testing.T) {
	f, err := Decode([]byte(testModel))
	if err != nil {
		t.Fatal(err)
	}
	f.MergePostsynaptic = false
	m, err := f.Build()
	if err != nil {
		t.Fatal(err)
	}
	ie := m.SynapseGroup("IE")
	if ie.PSMerged || ie.PSTarget != "IE" {
		t.Errorf("IE %v %s", ie.PSMerged, ie.PSTarget)
	}
	if len(m.NeuronGroup("E").MergedInSyn) != 2 {
		t.Error("expected two accumulators")
	}
}

func TestInvalid(t *testing.T) {
	tests := []struct {
		name string
		edit func(f *File)
	}{
		{"missing param", func(f *File) { delete(f.NeuronGroups[0].Params, "TauM") }},
		{"extra param", func(f *File) { f.NeuronGroups[0].Params["Foo"] = 1 }},
		{"unknown model", func(f *File) { f.NeuronGroups[0].Model = "Izh" }},
		{"sparse without bound", func(f *File) { f.SynapseGroups[0].MaxConnections = 0 }},
		{"dense bound mismatch", func(f *File) { f.SynapseGroups[1].MaxConnections = 3 }},
		{"duplicate name", func(f *File) { f.NeuronGroups[1].Name = "E" }},
		{"unknown var", func(f *File) { f.SynapseGroups[1].WeightUpdate.Vars = map[string]VarSpec{"w": {}} }},
		{"procedural without conn", func(f *File) { f.SynapseGroups[1].Matrix = Procedural }},
		{"procedural var without init", func(f *File) {
			f.SynapseGroups[1].WeightUpdate.Vars = map[string]VarSpec{"g": {Impl: ProceduralVar, Init: "Normal"}}
		}},
		{"var and param share a name", func(f *File) {
			f.NeuronModels["LIF"].Params = append(f.NeuronModels["LIF"].Params, "V")
			f.NeuronGroups[0].Params["V"] = 1
			f.NeuronGroups[1].Params["V"] = 1
		}},
		{"reserved var name", func(f *File) {
			f.NeuronModels["LIF"].Vars = append(f.NeuronModels["LIF"].Vars, Var{Name: "Isyn", Type: "scalar"})
		}},
		{"reserved egp name", func(f *File) {
			f.WeightUpdateModels["StaticPulse"].ExtraGlobal = []ExtraGlobalParam{{Name: "inSyn", Type: "scalar*"}}
		}},
		{"param shadows endpoint ref", func(f *File) {
			f.PostsynapticModels["ExpCurr"].Params = []string{"tau_pre"}
			f.SynapseGroups[0].Postsynaptic.Params = map[string]float64{"tau_pre": 5}
			f.SynapseGroups[1].Postsynaptic.Params = map[string]float64{"tau_pre": 5}
		}},
		{"global neuron var", func(f *File) {
			f.NeuronGroups[0].Vars = map[string]VarSpec{"V": {Impl: Global}}
		}},
		{"unknown neuron var", func(f *File) {
			f.NeuronGroups[0].Vars = map[string]VarSpec{"U": {Value: 1}}
		}},
		{"global var with init", func(f *File) {
			f.SynapseGroups[1].WeightUpdate.Vars = map[string]VarSpec{"g": {Impl: Global, Init: "Uniform"}}
		}},
	}
	for _, tt := range tests {
		f, err := Decode([]byte(testModel))
		if err != nil {
			t.Fatal(err)
		}
		tt.edit(f)
		_, err = f.Build()
		if !errors.Is(err, ErrInvalidModel) {
			t.Errorf("%s: expected ErrInvalidModel, got %v", tt.name, err)
		}
	}
}

func TestVarInits(t *testing.T) {
	src := testModel + `
[var_init_models.Uniform]
params = ["min", "max"]
code = "$(value) = $(min) + ($(max) - $(min)) * $(gennrand_uniform);"
`
	f, err := Decode([]byte(src))
	if err != nil {
		t.Fatal(err)
	}
	f.NeuronGroups[0].Vars = map[string]VarSpec{"V": {Init: "Uniform", Params: map[string]float64{"min": -60, "max": -50}}}
	f.NeuronGroups[1].Vars = map[string]VarSpec{"V": {Value: -65}}
	f.SynapseGroups[1].WeightUpdate.Vars = map[string]VarSpec{"g": {Init: "Uniform", Params: map[string]float64{"min": 0, "max": 1}}}
	m, err := f.Build()
	if err != nil {
		t.Fatal(err)
	}
	vi := m.NeuronGroup("E").VarInit("V")
	if vi.Init == nil || vi.Params["max"] != -50 || !vi.RNGRequired() {
		t.Errorf("E.V init %+v", vi)
	}
	if vi := m.NeuronGroup("I").VarInit("V"); vi.Init != nil || vi.Value != -65 {
		t.Errorf("I.V init %+v", vi)
	}
	if vi := m.SynapseGroup("IE").WUVarInit("g"); vi.Impl != Individual || vi.Init == nil {
		t.Errorf("IE.g init %+v", vi)
	}
	if vi := m.SynapseGroup("EE").WUVarInit("g"); vi.Host {
		t.Errorf("EE.g is GLOBAL, got %+v", vi)
	}
	if vi := m.SynapseGroup("EE").PSVarInit("x"); vi.Impl != Individual || !vi.Host {
		t.Errorf("undeclared var should be left to the host, got %+v", vi)
	}
	if m.NeuronGroup("E").SimRNGRequired {
		t.Error("init draws should not make the neuron update use the RNG")
	}
}

func TestUnknownKey(t *testing.T) {
	_, err := Decode([]byte(testModel + "\nfoo = 1\n"))
	if !errors.Is(err, ErrInvalidModel) {
		t.Errorf("expected unknown key error, got %v", err)
	}
}

func TestBadRegion(t *testing.T) {
	_, err := Load([]byte(testModel), map[string]string{"LIF.bogus": "x"})
	if !errors.Is(err, ErrInvalidModel) {
		t.Errorf("expected region error, got %v", err)
	}
}

func TestEventRetest(t *testing.T) {
	f, err := Decode([]byte(testModel))
	if err != nil {
		t.Fatal(err)
	}
	f.WeightUpdateModels["StaticPulse"].EventThresholdCode = "$(V_pre) > -55.0"
	m, err := f.Build()
	if err != nil {
		t.Fatal(err)
	}
	// E has one event condition (EE), I has one (IE)
	if m.SynapseGroup("EE").EventThresholdRetest {
		t.Error("single condition should not need retest")
	}
	if !m.NeuronGroup("E").SpikeEventRequired() {
		t.Error("E should emit spike events")
	}

	f, _ = Decode([]byte(testModel))
	f.WeightUpdateModels["StaticPulse"].EventThresholdCode = "$(V_pre) > -55.0"
	f.SynapseGroups[1].Source = "E"
	m, err = f.Build()
	if err != nil {
		t.Fatal(err)
	}
	if !m.SynapseGroup("EE").EventThresholdRetest || !m.SynapseGroup("IE").EventThresholdRetest {
		t.Error("two conditions on E require retest")
	}
}

func TestEnums(t *testing.T) {
	var mc MatrixConnectivity
	if err := mc.UnmarshalText([]byte("bitmask")); err != nil || mc != Bitmask {
		t.Errorf("got %v %v", mc, err)
	}
	if err := mc.UnmarshalText([]byte("ragged")); err == nil {
		t.Error("expected error")
	}
	var vi VarImpl
	if err := vi.UnmarshalText([]byte("PROCEDURAL")); err != nil || vi != ProceduralVar {
		t.Errorf("got %v %v", vi, err)
	}
	if Procedural.String() != "PROCEDURAL" || Presynaptic.String() != "PRESYNAPTIC" {
		t.Error("names")
	}
}
