// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slmodel

// Var is a state variable declared by a model
type Var struct {
	Name string `toml:"name"`

	// Type is the kernel type: scalar (the model precision), float,
	// double, int, unsigned int, bool
	Type string `toml:"type"`
}

// ExtraGlobalParam is a process-wide value or buffer pointer shared by
// all elements of a group.
type ExtraGlobalParam struct {
	Name string `toml:"name"`

	// Type is the kernel type. Pointer types end in *.
	Type string `toml:"type"`
}

// IsPointer reports whether the parameter is a buffer
func (eg *ExtraGlobalParam) IsPointer() bool {
	return len(eg.Type) > 0 && eg.Type[len(eg.Type)-1] == '*'
}

// DerivedParam is a parameter computed from the other parameters and DT
type DerivedParam struct {
	Name string `toml:"name"`

	// Expr is an expression over parameter names, DT and the math
	// functions exp, log, sqrt, pow ...
	Expr string `toml:"expr"`
}

// Snippet has the declarations common to all models
type Snippet struct {
	// Name is set from the key of the model in the model file
	Name string `toml:"-"`

	Params      []string           `toml:"params"`
	Derived     []DerivedParam     `toml:"derived"`
	Vars        []Var              `toml:"vars"`
	ExtraGlobal []ExtraGlobalParam `toml:"extra_global_params"`
}

// HasParam reports whether name is a param or derived param
func (sn *Snippet) HasParam(name string) bool {
	for _, p := range sn.Params {
		if p == name {
			return true
		}
	}
	for _, d := range sn.Derived {
		if d.Name == name {
			return true
		}
	}
	return false
}

// Var returns the var named name, or nil
func (sn *Snippet) Var(name string) *Var {
	for i := range sn.Vars {
		if sn.Vars[i].Name == name {
			return &sn.Vars[i]
		}
	}
	return nil
}

// NeuronModel defines the dynamics of a neuron population
type NeuronModel struct {
	Snippet

	SimCode       string `toml:"sim"`
	ThresholdCode string `toml:"threshold"`
	ResetCode     string `toml:"reset"`

	// AutoRefractory only emits a spike on the step the threshold
	// condition becomes true.
	AutoRefractory bool `toml:"auto_refractory"`
}

// WeightUpdateModel defines the effect of presynaptic spikes and
// spike-like events on a synapse group.
type WeightUpdateModel struct {
	Snippet

	// SimCode runs for each synapse of a spiking presynaptic neuron
	SimCode string `toml:"sim"`

	// EventCode runs for each synapse of a neuron that emitted a spike-like event
	EventCode string `toml:"event"`

	// EventThresholdCode is the spike-like event condition, evaluated
	// against presynaptic state in the neuron update.
	EventThresholdCode string `toml:"event_threshold"`
}

// PostsynapticModel converts accumulated synaptic input into neuron input current
type PostsynapticModel struct {
	Snippet

	ApplyInputCode string `toml:"apply_input"`
	DecayCode      string `toml:"decay"`
}

// CurrentSourceModel injects current into a neuron population
type CurrentSourceModel struct {
	Snippet

	InjectionCode string `toml:"injection"`
}

// RowBuildStateVar is a local variable of procedural row generation
type RowBuildStateVar struct {
	Name string `toml:"name"`
	Type string `toml:"type"`
	Init string `toml:"init"`
}

// ConnectivityModel generates connectivity one row at a time. The row
// build code is run in a loop until it calls $(endRow), and calls
// $(addSynapse, j) for each target j.
type ConnectivityModel struct {
	Snippet

	RowBuildCode  string             `toml:"row_build"`
	RowBuildState []RowBuildStateVar `toml:"row_build_state_vars"`
}

// VarInitModel computes a variable value into $(value)
type VarInitModel struct {
	Snippet

	Code string `toml:"code"`
}
