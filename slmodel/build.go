// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slmodel

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Build resolves model references, evaluates params and finalizes the
// model.
func (f *File) Build() (*Model, error) {
	if _, err := f.modelNames(); err != nil {
		return nil, err
	}
	if f.Name == "" {
		return nil, errors.Wrap(ErrInvalidModel, "model has no name")
	}
	m := &Model{Name: f.Name, Precision: f.Precision, DT: f.DT, Seed: f.Seed, MergePostsynaptic: f.MergePostsynaptic}
	names := map[string]bool{}
	unique := func(nm string) error {
		if nm == "" {
			return errors.Wrap(ErrInvalidModel, "group with no name")
		}
		if names[nm] {
			return errors.Wrapf(ErrInvalidModel, "group name %s used more than once", nm)
		}
		names[nm] = true
		return nil
	}

	for _, ns := range f.NeuronGroups {
		if err := unique(ns.Name); err != nil {
			return nil, err
		}
		nm, ok := f.NeuronModels[ns.Model]
		if !ok {
			return nil, errors.Wrapf(ErrInvalidModel, "neuron group %s: unknown neuron model %q", ns.Name, ns.Model)
		}
		if err := nm.CheckNames(); err != nil {
			return nil, errors.Wrapf(err, "neuron group %s", ns.Name)
		}
		if ns.Size <= 0 {
			return nil, errors.Wrapf(ErrInvalidModel, "neuron group %s: size must be positive", ns.Name)
		}
		vals, err := EvalParams(&nm.Snippet, ns.Params, f.DT)
		if err != nil {
			return nil, errors.Wrapf(err, "neuron group %s", ns.Name)
		}
		vis, err := f.buildVarInits(&nm.Snippet, ns.Vars, false)
		if err != nil {
			return nil, errors.Wrapf(err, "neuron group %s", ns.Name)
		}
		m.NeuronGroups = append(m.NeuronGroups, &NeuronGroup{Name: ns.Name, Size: ns.Size, Model: nm, Params: vals, VarInits: vis, NumDelaySlots: 1, queued: map[string]bool{}})
	}

	for i := range f.SynapseGroups {
		ss := &f.SynapseGroups[i]
		if err := unique(ss.Name); err != nil {
			return nil, err
		}
		sg, err := f.buildSynapseGroup(m, ss)
		if err != nil {
			return nil, errors.Wrapf(err, "synapse group %s", ss.Name)
		}
		m.SynapseGroups = append(m.SynapseGroups, sg)
	}

	for _, cs := range f.CurrentSources {
		if err := unique(cs.Name); err != nil {
			return nil, err
		}
		csm, ok := f.CurrentSourceModels[cs.Model]
		if !ok {
			return nil, errors.Wrapf(ErrInvalidModel, "current source %s: unknown model %q", cs.Name, cs.Model)
		}
		if err := csm.CheckNames(); err != nil {
			return nil, errors.Wrapf(err, "current source %s", cs.Name)
		}
		trg := m.NeuronGroup(cs.Target)
		if trg == nil {
			return nil, errors.Wrapf(ErrInvalidModel, "current source %s: unknown target %q", cs.Name, cs.Target)
		}
		vals, err := EvalParams(&csm.Snippet, cs.Params, f.DT)
		if err != nil {
			return nil, errors.Wrapf(err, "current source %s", cs.Name)
		}
		vis, err := f.buildVarInits(&csm.Snippet, cs.Vars, false)
		if err != nil {
			return nil, errors.Wrapf(err, "current source %s", cs.Name)
		}
		c := &CurrentSource{Name: cs.Name, Model: csm, Params: vals, VarInits: vis, Trg: trg}
		m.CurrentSources = append(m.CurrentSources, c)
		trg.CurrentSources = append(trg.CurrentSources, c)
	}

	if err := m.Finalize(); err != nil {
		return nil, err
	}
	return m, nil
}

func (f *File) buildSynapseGroup(m *Model, ss *SynapseGroupSpec) (*SynapseGroup, error) {
	sg := &SynapseGroup{
		Name:              ss.Name,
		Src:               m.NeuronGroup(ss.Source),
		Trg:               m.NeuronGroup(ss.Target),
		Matrix:            ss.Matrix,
		Span:              ss.Span,
		MaxConnections:    ss.MaxConnections,
		ThreadsPerSpike:   ss.ThreadsPerSpike,
		DelaySteps:        ss.DelaySteps,
		MaxDendriticDelay: ss.MaxDendriticDelay,
		WUVars:            map[string]*VarInit{},
	}
	if sg.Src == nil {
		return nil, errors.Wrapf(ErrInvalidModel, "unknown source %q", ss.Source)
	}
	if sg.Trg == nil {
		return nil, errors.Wrapf(ErrInvalidModel, "unknown target %q", ss.Target)
	}
	var ok bool
	var err error
	if sg.WU, ok = f.WeightUpdateModels[ss.WeightUpdate.Model]; !ok {
		return nil, errors.Wrapf(ErrInvalidModel, "unknown weight update model %q", ss.WeightUpdate.Model)
	}
	if err := sg.WU.CheckNames(); err != nil {
		return nil, err
	}
	if sg.WUParams, err = EvalParams(&sg.WU.Snippet, ss.WeightUpdate.Params, f.DT); err != nil {
		return nil, err
	}
	if sg.PS, ok = f.PostsynapticModels[ss.Postsynaptic.Model]; !ok {
		return nil, errors.Wrapf(ErrInvalidModel, "unknown postsynaptic model %q", ss.Postsynaptic.Model)
	}
	if err := sg.PS.CheckNames(); err != nil {
		return nil, err
	}
	if sg.PSParams, err = EvalParams(&sg.PS.Snippet, ss.Postsynaptic.Params, f.DT); err != nil {
		return nil, err
	}
	if sg.PSVars, err = f.buildVarInits(&sg.PS.Snippet, ss.Postsynaptic.Vars, false); err != nil {
		return nil, err
	}
	if ss.Connectivity.Model != "" {
		if sg.Conn, ok = f.ConnectivityModels[ss.Connectivity.Model]; !ok {
			return nil, errors.Wrapf(ErrInvalidModel, "unknown connectivity model %q", ss.Connectivity.Model)
		}
		if err := sg.Conn.CheckNames(); err != nil {
			return nil, err
		}
		if sg.ConnParams, err = EvalParams(&sg.Conn.Snippet, ss.Connectivity.Params, f.DT); err != nil {
			return nil, err
		}
	}

	if sg.WUVars, err = f.buildVarInits(&sg.WU.Snippet, ss.WeightUpdate.Vars, true); err != nil {
		return nil, err
	}
	return sg, nil
}

// buildVarInits resolves the inits of the vars of sn from specs. Vars
// without a spec are Individual and left to the host. Only weight update
// vars (wu) can be Global or Procedural.
func (f *File) buildVarInits(sn *Snippet, specs map[string]VarSpec, wu bool) (map[string]*VarInit, error) {
	vis := map[string]*VarInit{}
	for _, v := range sn.Vars {
		vs, has := specs[v.Name]
		if !has {
			vis[v.Name] = &VarInit{Impl: Individual, Host: true}
			continue
		}
		if !wu && vs.Impl != Individual {
			return nil, errors.Wrapf(ErrInvalidModel, "var %s: only weight update vars can be %v", v.Name, vs.Impl)
		}
		vi := &VarInit{Impl: vs.Impl, Value: vs.Value}
		if vs.Init != "" {
			if vs.Impl == Global {
				return nil, errors.Wrapf(ErrInvalidModel, "var %s: GLOBAL vars take a value, not an init model", v.Name)
			}
			var ok bool
			if vi.Init, ok = f.VarInitModels[vs.Init]; !ok {
				return nil, errors.Wrapf(ErrInvalidModel, "var %s: unknown var init model %q", v.Name, vs.Init)
			}
			if err := vi.Init.CheckNames(); err != nil {
				return nil, errors.Wrapf(err, "var %s", v.Name)
			}
			var err error
			if vi.Params, err = EvalParams(&vi.Init.Snippet, vs.Params, f.DT); err != nil {
				return nil, errors.Wrapf(err, "var %s", v.Name)
			}
		}
		vis[v.Name] = vi
	}
	keys := maps.Keys(specs)
	slices.Sort(keys)
	for _, k := range keys {
		if sn.Var(k) == nil {
			return nil, errors.Wrapf(ErrInvalidModel, "unknown var %s", k)
		}
	}
	return vis, nil
}

// Finalize validates the synapse groups and computes the derived
// structure: delay slots, queued variables, spike events, spike times,
// RNG use and merged postsynaptic accumulators. Groups built directly
// (not by Build) must have been fully filled in first.
func (m *Model) Finalize() error {
	for _, ng := range m.NeuronGroups {
		if ng.NumDelaySlots < 1 {
			ng.NumDelaySlots = 1
		}
		if ng.queued == nil {
			ng.queued = map[string]bool{}
		}
		ng.InSyn, ng.OutSyn, ng.MergedInSyn, ng.SpikeEventConditions = nil, nil, nil, nil
		ng.SimRNGRequired = IsRNGRequired(ng.Model.SimCode) || IsRNGRequired(ng.Model.ThresholdCode) || IsRNGRequired(ng.Model.ResetCode)
		ng.SpikeTimeRequired = strings.Contains(ng.Model.SimCode, "$(sT)") || strings.Contains(ng.Model.ThresholdCode, "$(sT)")
	}
	for _, cs := range m.CurrentSources {
		if IsRNGRequired(cs.Model.InjectionCode) {
			cs.Trg.SimRNGRequired = true
		}
	}
	for _, sg := range m.SynapseGroups {
		if err := sg.validate(); err != nil {
			return errors.Wrapf(err, "synapse group %s", sg.Name)
		}
		src, trg := sg.Src, sg.Trg
		src.OutSyn = append(src.OutSyn, sg)
		trg.InSyn = append(trg.InSyn, sg)
		if sg.DelaySteps+1 > src.NumDelaySlots {
			src.NumDelaySlots = sg.DelaySteps + 1
		}
		codes := []string{sg.WU.SimCode, sg.WU.EventCode, sg.WU.EventThresholdCode}
		for _, code := range codes {
			for _, v := range src.Model.Vars {
				if strings.Contains(code, "$("+v.Name+"_pre)") {
					src.queued[v.Name] = true
				}
			}
			for _, v := range trg.Model.Vars {
				if strings.Contains(code, "$("+v.Name+"_post)") {
					trg.queued[v.Name] = true
				}
			}
			if strings.Contains(code, "$(sT_pre)") {
				src.SpikeTimeRequired = true
			}
			if strings.Contains(code, "$(sT_post)") {
				trg.SpikeTimeRequired = true
			}
		}
		if sg.WU.EventThresholdCode != "" {
			src.SpikeEventConditions = append(src.SpikeEventConditions, SpikeEventCondition{Code: sg.WU.EventThresholdCode, Group: sg})
		}
	}
	for _, sg := range m.SynapseGroups {
		sg.EventThresholdRetest = sg.WU.EventThresholdCode != "" && len(sg.Src.SpikeEventConditions) > 1
	}
	for _, ng := range m.NeuronGroups {
		m.mergeInSyn(ng)
	}
	return nil
}

func (sg *SynapseGroup) validate() error {
	if sg.Src == nil || sg.Trg == nil {
		return errors.Wrap(ErrInvalidModel, "missing source or target")
	}
	if sg.WU == nil || sg.PS == nil {
		return errors.Wrap(ErrInvalidModel, "missing weight update or postsynaptic model")
	}
	if sg.ThreadsPerSpike <= 0 {
		sg.ThreadsPerSpike = 1
	}
	if sg.WUVars == nil {
		sg.WUVars = map[string]*VarInit{}
	}
	if sg.DelaySteps < 0 || sg.MaxDendriticDelay < 0 {
		return errors.Wrap(ErrInvalidModel, "negative delay")
	}
	switch sg.Matrix {
	case Dense, Bitmask:
		if sg.MaxConnections != 0 && sg.MaxConnections != sg.Trg.Size {
			return errors.Wrapf(ErrInvalidModel, "%v connectivity has max connections %d, must be the target size %d", sg.Matrix, sg.MaxConnections, sg.Trg.Size)
		}
		sg.MaxConnections = sg.Trg.Size
	case Sparse:
		if sg.MaxConnections <= 0 {
			return errors.Wrap(ErrInvalidModel, "SPARSE connectivity requires max_connections")
		}
	case Procedural:
		if sg.Conn == nil {
			return errors.Wrap(ErrInvalidModel, "PROCEDURAL connectivity requires a connectivity model")
		}
		if sg.MaxConnections <= 0 {
			sg.MaxConnections = sg.Trg.Size
		}
	}
	if sg.MaxConnections > sg.Trg.Size {
		return errors.Wrapf(ErrInvalidModel, "max connections %d exceeds target size %d", sg.MaxConnections, sg.Trg.Size)
	}
	if sg.WU.EventCode != "" && sg.WU.EventThresholdCode == "" {
		return errors.Wrap(ErrInvalidModel, "event code requires an event threshold condition")
	}
	for _, v := range sg.WU.Vars {
		vi := sg.WUVars[v.Name]
		if vi == nil {
			vi = &VarInit{Impl: Individual, Host: true}
			sg.WUVars[v.Name] = vi
		}
		if vi.Impl == ProceduralVar && vi.Init == nil {
			return errors.Wrapf(ErrInvalidModel, "PROCEDURAL var %s requires an init model", v.Name)
		}
	}
	return nil
}

// psKey identifies postsynaptic models that can share an accumulator
func (sg *SynapseGroup) psKey() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%d", sg.PS.Name, sg.MaxDendriticDelay)
	keys := maps.Keys(sg.PSParams)
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "|%s=%v", k, sg.PSParams[k])
	}
	return b.String()
}

// mergeInSyn groups incoming synapse groups that can share an input
// accumulator and sets their target names.
func (m *Model) mergeInSyn(ng *NeuronGroup) {
	firsts := map[string]*SynapseGroup{}
	for _, sg := range ng.InSyn {
		sg.PSTarget = sg.Name
		sg.PSMerged = false
		if !m.MergePostsynaptic || len(sg.PS.Vars) > 0 {
			ng.MergedInSyn = append(ng.MergedInSyn, sg)
			continue
		}
		key := sg.psKey()
		first, has := firsts[key]
		if !has {
			firsts[key] = sg
			ng.MergedInSyn = append(ng.MergedInSyn, sg)
			continue
		}
		sg.PSTarget = first.Name
		sg.PSMerged = true
		first.PSMerged = true
	}
}

// IsRNGRequired reports whether code uses a random number function
func IsRNGRequired(code string) bool {
	return strings.Contains(code, "$(gennrand_")
}
