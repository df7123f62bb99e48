// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slmodel

import (
	"goki.dev/synsl/sltype"
)

// Values are the numeric values of the params and derived params of a
// snippet instance.
type Values map[string]float64

// SpikeEventCondition is one outgoing synapse group's spike-like event
// condition, evaluated in the neuron update of its source.
type SpikeEventCondition struct {
	Code  string
	Group *SynapseGroup
}

// NeuronGroup is a population of neurons sharing one model
type NeuronGroup struct {
	Name   string
	Size   int
	Model  *NeuronModel
	Params Values

	// VarInits initialise the model vars
	VarInits map[string]*VarInit

	// NumDelaySlots is the number of slots in the spike and variable
	// ring buffers: the largest outgoing axonal delay + 1.
	NumDelaySlots int

	// InSyn and OutSyn are the incoming and outgoing synapse groups
	InSyn  []*SynapseGroup
	OutSyn []*SynapseGroup

	// MergedInSyn has one synapse group per distinct input accumulator
	MergedInSyn []*SynapseGroup

	CurrentSources []*CurrentSource

	SpikeEventConditions []SpikeEventCondition

	SpikeTimeRequired bool
	SimRNGRequired    bool

	queued map[string]bool
}

// DelayRequired reports whether spikes and queued variables use ring buffers
func (ng *NeuronGroup) DelayRequired() bool {
	return ng.NumDelaySlots > 1
}

// VarQueueRequired reports whether variable v is read with a delay by
// some synapse group, and so is stored in a ring buffer.
func (ng *NeuronGroup) VarQueueRequired(v string) bool {
	return ng.DelayRequired() && ng.queued[v]
}

// SpikeEventRequired reports whether any outgoing group uses spike-like events
func (ng *NeuronGroup) SpikeEventRequired() bool {
	return len(ng.SpikeEventConditions) > 0
}

// TrueSpikeRequired reports whether the model has a threshold condition
func (ng *NeuronGroup) TrueSpikeRequired() bool {
	return ng.Model.ThresholdCode != ""
}

// VarInit is the implementation and initial value of one variable
type VarInit struct {
	Impl VarImpl

	// Value is the constant value of a Global variable, and the
	// initial value of an Individual one without Init.
	Value float64

	// Init computes a Procedural variable, or the initial value of an
	// Individual one.
	Init   *VarInitModel
	Params Values

	// Host is set for vars with no declared initial value, which the
	// host uploads itself.
	Host bool
}

// RNGRequired reports whether the init code draws random numbers
func (vi *VarInit) RNGRequired() bool {
	return vi.Init != nil && IsRNGRequired(vi.Init.Code)
}

// varInit returns the init of v in vis, zero if none was declared
func varInit(vis map[string]*VarInit, v string) *VarInit {
	if vi, ok := vis[v]; ok {
		return vi
	}
	return &VarInit{Impl: Individual, Host: true}
}

// VarInit returns the init of neuron var v
func (ng *NeuronGroup) VarInit(v string) *VarInit {
	return varInit(ng.VarInits, v)
}

// SynapseGroup connects a source to a target population
type SynapseGroup struct {
	Name string
	Src  *NeuronGroup
	Trg  *NeuronGroup

	Matrix MatrixConnectivity
	Span   SpanType

	// MaxConnections bounds the row length. Target size for Dense and Bitmask.
	MaxConnections int

	// ThreadsPerSpike is the number of threads processing each presynaptic
	// spike for presynaptic span.
	ThreadsPerSpike int

	// DelaySteps is the axonal delay in simulation steps
	DelaySteps int

	// MaxDendriticDelay is the number of slots of the dendritic delay
	// buffer, 0 for none.
	MaxDendriticDelay int

	WU       *WeightUpdateModel
	WUParams Values
	WUVars   map[string]*VarInit

	PS       *PostsynapticModel
	PSParams Values
	PSVars   map[string]*VarInit

	Conn       *ConnectivityModel
	ConnParams Values

	// PSTarget is the name of the group owning the input accumulator
	// (and dendritic delay buffer) this group writes into.
	PSTarget string

	// PSMerged is true if the accumulator is shared with other groups
	PSMerged bool

	// EventThresholdRetest is true if spike-like events of the source
	// must be rechecked against this group's condition, as the source
	// records events for more than one condition.
	EventThresholdRetest bool
}

// DendriticDelayRequired reports whether input goes through a dendritic delay buffer
func (sg *SynapseGroup) DendriticDelayRequired() bool {
	return sg.MaxDendriticDelay > 0
}

// VarImpl returns the implementation of weight update variable v
func (sg *SynapseGroup) VarImpl(v string) VarImpl {
	return varInit(sg.WUVars, v).Impl
}

// WUVarInit returns the init of weight update var v
func (sg *SynapseGroup) WUVarInit(v string) *VarInit {
	return varInit(sg.WUVars, v)
}

// PSVarInit returns the init of postsynaptic var v
func (sg *SynapseGroup) PSVarInit(v string) *VarInit {
	return varInit(sg.PSVars, v)
}

// VarImpls returns the implementations of all weight update
// variables, in declaration order.
func (sg *SynapseGroup) VarImpls() []VarImpl {
	if sg.WU == nil {
		return nil
	}
	impls := make([]VarImpl, len(sg.WU.Vars))
	for i, v := range sg.WU.Vars {
		impls[i] = sg.VarImpl(v.Name)
	}
	return impls
}

// CurrentSource injects current into a population
type CurrentSource struct {
	Name     string
	Model    *CurrentSourceModel
	Params   Values
	VarInits map[string]*VarInit
	Trg      *NeuronGroup
}

// VarInit returns the init of current source var v
func (cs *CurrentSource) VarInit(v string) *VarInit {
	return varInit(cs.VarInits, v)
}

// Model is a complete network description
type Model struct {
	Name      string
	Precision sltype.Precision
	DT        float64

	// Seed seeds the device RNG streams
	Seed uint32

	MergePostsynaptic bool

	NeuronGroups   []*NeuronGroup
	SynapseGroups  []*SynapseGroup
	CurrentSources []*CurrentSource
}

// NeuronGroup returns the neuron group with the given name, or nil
func (m *Model) NeuronGroup(name string) *NeuronGroup {
	for _, ng := range m.NeuronGroups {
		if ng.Name == name {
			return ng
		}
	}
	return nil
}

// SynapseGroup returns the synapse group with the given name, or nil
func (m *Model) SynapseGroup(name string) *SynapseGroup {
	for _, sg := range m.SynapseGroups {
		if sg.Name == name {
			return sg
		}
	}
	return nil
}
