// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slmodel

import (
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"goki.dev/synsl/sltype"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// ErrInvalidModel is returned for inconsistent model descriptions
var ErrInvalidModel = errors.New("invalid model")

// File is the toml model description
type File struct {
	Name              string           `toml:"name"`
	Precision         sltype.Precision `toml:"precision"`
	DT                float64          `toml:"dt"`
	Seed              uint32           `toml:"seed"`
	MergePostsynaptic bool             `toml:"merge_postsynaptic"`

	NeuronModels        map[string]*NeuronModel        `toml:"neuron_models"`
	WeightUpdateModels  map[string]*WeightUpdateModel  `toml:"weight_update_models"`
	PostsynapticModels  map[string]*PostsynapticModel  `toml:"postsynaptic_models"`
	CurrentSourceModels map[string]*CurrentSourceModel `toml:"current_source_models"`
	ConnectivityModels  map[string]*ConnectivityModel  `toml:"connectivity_models"`
	VarInitModels       map[string]*VarInitModel       `toml:"var_init_models"`

	NeuronGroups   []NeuronGroupSpec   `toml:"neuron_groups"`
	SynapseGroups  []SynapseGroupSpec  `toml:"synapse_groups"`
	CurrentSources []CurrentSourceSpec `toml:"current_sources"`
}

// NeuronGroupSpec declares a neuron group
type NeuronGroupSpec struct {
	Name   string             `toml:"name"`
	Size   int                `toml:"size"`
	Model  string             `toml:"model"`
	Params map[string]float64 `toml:"params"`
	Vars   map[string]VarSpec `toml:"vars"`
}

// VarSpec declares the implementation and initial value of a variable.
// Only weight update variables can be GLOBAL or PROCEDURAL.
type VarSpec struct {
	Impl   VarImpl            `toml:"impl"`
	Value  float64            `toml:"value"`
	Init   string             `toml:"init"`
	Params map[string]float64 `toml:"params"`
}

// ModelRef binds a model to parameter values
type ModelRef struct {
	Model  string             `toml:"model"`
	Params map[string]float64 `toml:"params"`
	Vars   map[string]VarSpec `toml:"vars"`
}

// SynapseGroupSpec declares a synapse group
type SynapseGroupSpec struct {
	Name              string             `toml:"name"`
	Source            string             `toml:"source"`
	Target            string             `toml:"target"`
	Matrix            MatrixConnectivity `toml:"matrix"`
	Span              SpanType           `toml:"span"`
	MaxConnections    int                `toml:"max_connections"`
	ThreadsPerSpike   int                `toml:"threads_per_spike"`
	DelaySteps        int                `toml:"delay_steps"`
	MaxDendriticDelay int                `toml:"max_dendritic_delay"`
	WeightUpdate      ModelRef           `toml:"weight_update"`
	Postsynaptic      ModelRef           `toml:"postsynaptic"`
	Connectivity      ModelRef           `toml:"connectivity"`
}

// CurrentSourceSpec declares a current source
type CurrentSourceSpec struct {
	Name   string             `toml:"name"`
	Model  string             `toml:"model"`
	Target string             `toml:"target"`
	Params map[string]float64 `toml:"params"`
	Vars   map[string]VarSpec `toml:"vars"`
}

// Decode parses a toml model description
func Decode(data []byte) (*File, error) {
	f := &File{DT: 1, MergePostsynaptic: true}
	md, err := toml.Decode(string(data), f)
	if err != nil {
		return nil, errors.Wrap(err, "decoding model")
	}
	if und := md.Undecoded(); len(und) > 0 {
		return nil, errors.Wrapf(ErrInvalidModel, "unknown key %s", und[0].String())
	}
	f.setNames()
	return f, nil
}

func (f *File) setNames() {
	for nm, m := range f.NeuronModels {
		m.Name = nm
	}
	for nm, m := range f.WeightUpdateModels {
		m.Name = nm
	}
	for nm, m := range f.PostsynapticModels {
		m.Name = nm
	}
	for nm, m := range f.CurrentSourceModels {
		m.Name = nm
	}
	for nm, m := range f.ConnectivityModels {
		m.Name = nm
	}
	for nm, m := range f.VarInitModels {
		m.Name = nm
	}
}

// codeFields returns the code fields of every model, keyed by
// <Model>.<field>, the names used by code regions.
func (f *File) codeFields() map[string]*string {
	cf := map[string]*string{}
	for nm, m := range f.NeuronModels {
		cf[nm+".sim"] = &m.SimCode
		cf[nm+".threshold"] = &m.ThresholdCode
		cf[nm+".reset"] = &m.ResetCode
	}
	for nm, m := range f.WeightUpdateModels {
		cf[nm+".sim"] = &m.SimCode
		cf[nm+".event"] = &m.EventCode
		cf[nm+".event_threshold"] = &m.EventThresholdCode
	}
	for nm, m := range f.PostsynapticModels {
		cf[nm+".apply_input"] = &m.ApplyInputCode
		cf[nm+".decay"] = &m.DecayCode
	}
	for nm, m := range f.CurrentSourceModels {
		cf[nm+".injection"] = &m.InjectionCode
	}
	for nm, m := range f.ConnectivityModels {
		cf[nm+".row_build"] = &m.RowBuildCode
	}
	for nm, m := range f.VarInitModels {
		cf[nm+".code"] = &m.Code
	}
	return cf
}

// modelNames returns all model names, which must be unique across kinds
func (f *File) modelNames() ([]string, error) {
	var names []string
	names = append(names, maps.Keys(f.NeuronModels)...)
	names = append(names, maps.Keys(f.WeightUpdateModels)...)
	names = append(names, maps.Keys(f.PostsynapticModels)...)
	names = append(names, maps.Keys(f.CurrentSourceModels)...)
	names = append(names, maps.Keys(f.ConnectivityModels)...)
	names = append(names, maps.Keys(f.VarInitModels)...)
	slices.Sort(names)
	for i := 1; i < len(names); i++ {
		if names[i] == names[i-1] {
			return nil, errors.Wrapf(ErrInvalidModel, "model name %s used for more than one model", names[i])
		}
	}
	return names, nil
}

// SetCode sets model code fragments from extracted code regions, keyed
// by <Model>.<field>, e.g. LIF.sim.
func (f *File) SetCode(regions map[string]string) error {
	cf := f.codeFields()
	keys := maps.Keys(regions)
	slices.Sort(keys)
	for _, k := range keys {
		p, ok := cf[k]
		if !ok {
			return errors.Wrapf(ErrInvalidModel, "code region %s does not name a model code field", k)
		}
		*p = strings.TrimRight(regions[k], "\n") + "\n"
	}
	return nil
}

// Load decodes a toml model description, applies code regions, and
// builds the finalized Model.
func Load(data []byte, regions map[string]string) (*Model, error) {
	f, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if err := f.SetCode(regions); err != nil {
		return nil, err
	}
	return f.Build()
}
