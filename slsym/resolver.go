// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slsym

import (
	"fmt"

	"goki.dev/synsl/slmodel"
	"goki.dev/synsl/slsubst"
)

// Slot selects a ring buffer slot relative to the current one, as a
// number of steps back in time.
type Slot int

const (
	// SlotCurrent is the slot written on this step
	SlotCurrent Slot = 0

	// SlotPrevious is the slot written on the previous step
	SlotPrevious Slot = 1
)

// SlotDelayed is the slot written steps ago
func SlotDelayed(steps int) Slot {
	return Slot(steps)
}

// Resolver builds the kernel expressions for model state. Every device
// array is named Prefix + variable + owning group.
type Resolver struct {
	Prefix string
}

// Array returns the kernel name of array name of owner
func (r Resolver) Array(name, owner string) string {
	return r.Prefix + name + owner
}

// QueuePtr is the current spike queue slot of ng
func (r Resolver) QueuePtr(ng *slmodel.NeuronGroup) string {
	return "(*" + r.Array("spkQuePtr", ng.Name) + ")"
}

// SlotIndex returns the ring buffer slot expression of ng for slot, or
// 0 if ng has no delay.
func (r Resolver) SlotIndex(ng *slmodel.NeuronGroup, slot Slot) string {
	if !ng.DelayRequired() {
		return "0"
	}
	n := ng.NumDelaySlots
	steps := int(slot) % n
	if steps == 0 {
		return r.QueuePtr(ng)
	}
	return fmt.Sprintf("((%s + %d) %% %d)", r.QueuePtr(ng), n-steps, n)
}

// QueueOffset returns the offset of slot in the ring buffers of ng, or
// "" if ng has no delay.
func (r Resolver) QueueOffset(ng *slmodel.NeuronGroup, slot Slot) string {
	if !ng.DelayRequired() {
		return ""
	}
	return fmt.Sprintf("(%s * %d)", r.SlotIndex(ng, slot), ng.Size)
}

func (r Resolver) offsetIndex(off, idx string) string {
	if off == "" {
		return idx
	}
	return off + " + " + idx
}

// SpikeIndex indexes the spike buffers (spikes, spike times) of ng
func (r Resolver) SpikeIndex(ng *slmodel.NeuronGroup, slot Slot, idx string) string {
	return r.offsetIndex(r.QueueOffset(ng, slot), idx)
}

// VarIndex indexes variable v of ng, which is queued if read with a delay
func (r Resolver) VarIndex(ng *slmodel.NeuronGroup, v string, slot Slot, idx string) string {
	if !ng.VarQueueRequired(v) {
		return idx
	}
	return r.offsetIndex(r.QueueOffset(ng, slot), idx)
}

// VarExpr is the kernel expression of neuron variable v of ng at idx
func (r Resolver) VarExpr(ng *slmodel.NeuronGroup, v string, slot Slot, idx string) string {
	return r.Array(v, ng.Name) + "[" + r.VarIndex(ng, v, slot, idx) + "]"
}

// DendriticDelayOffset is the start of the dendritic delay slot d steps
// ahead for the accumulator of sg, ending in " + " so it prefixes an
// index expression.
func (r Resolver) DendriticDelayOffset(sg *slmodel.SynapseGroup, d string) string {
	return fmt.Sprintf("(((*%s + %s) %% %d) * %d) + ", r.Array("denDelayPtr", sg.PSTarget), d, sg.MaxDendriticDelay, sg.Trg.Size)
}

func (r Resolver) params(t *Table, sn *slmodel.Snippet, vals slmodel.Values, suffix string) {
	for _, p := range sn.Params {
		t.AddParam(Param, p, suffix, vals[p])
	}
	for _, d := range sn.Derived {
		t.AddParam(DerivedParam, d.Name, suffix, vals[d.Name])
	}
}

func (r Resolver) egps(t *Table, sn *slmodel.Snippet, owner, suffix string) {
	for _, eg := range sn.ExtraGlobal {
		t.Add(Key{Kind: ExtraGlobalParam, Name: eg.Name, Suffix: suffix}, Literal(r.Array(eg.Name, owner)))
	}
}

// NeuronSubs binds the vars of ng to local registers named local + var
// and its params and extra global params.
func (r Resolver) NeuronSubs(t *Table, ng *slmodel.NeuronGroup, local string) {
	for _, v := range ng.Model.Vars {
		t.AddVar(v.Name, local+v.Name)
	}
	r.params(t, &ng.Model.Snippet, ng.Params, "")
	r.egps(t, &ng.Model.Snippet, ng.Name, "")
}

func (r Resolver) neuronRef(t *Table, ng *slmodel.NeuronGroup, slot Slot, idx, suffix string) {
	for _, v := range ng.Model.Vars {
		t.Add(Key{Kind: Var, Name: v.Name, Suffix: suffix}, Literal(r.VarExpr(ng, v.Name, slot, idx)))
	}
	if ng.SpikeTimeRequired {
		t.Add(Key{Kind: Var, Name: "sT", Suffix: suffix}, Literal(r.Array("sT", ng.Name)+"["+r.SpikeIndex(ng, slot, idx)+"]"))
	}
	r.params(t, &ng.Model.Snippet, ng.Params, suffix)
	r.egps(t, &ng.Model.Snippet, ng.Name, suffix)
}

// PreNeuronSubs binds the <name>_pre references of synapse code to the
// state of presynaptic ng at slot. idx is normally $(id_pre), bound
// by an enclosing table.
func (r Resolver) PreNeuronSubs(t *Table, ng *slmodel.NeuronGroup, slot Slot, idx string) {
	r.neuronRef(t, ng, slot, idx, "_pre")
}

// PostNeuronSubs binds the <name>_post references to postsynaptic ng
func (r Resolver) PostNeuronSubs(t *Table, ng *slmodel.NeuronGroup, slot Slot, idx string) {
	r.neuronRef(t, ng, slot, idx, "_post")
}

// WeightUpdateSubs binds the weight update state of sg. Individual
// vars index their arrays with synIdx, global vars are literals and
// procedural vars are registers named local + var.
func (r Resolver) WeightUpdateSubs(t *Table, sg *slmodel.SynapseGroup, synIdx, local string) {
	for _, v := range sg.WU.Vars {
		vi := sg.WUVars[v.Name]
		impl := slmodel.Individual
		if vi != nil {
			impl = vi.Impl
		}
		switch impl {
		case slmodel.Global:
			t.AddVar(v.Name, slsubst.FormatLiteral(vi.Value, t.Precision()))
		case slmodel.ProceduralVar:
			t.AddVar(v.Name, local+v.Name)
		default:
			t.AddVar(v.Name, r.Array(v.Name, sg.Name)+"["+synIdx+"]")
		}
	}
	r.params(t, &sg.WU.Snippet, sg.WUParams, "")
	r.egps(t, &sg.WU.Snippet, sg.Name, "")
}

// PostsynapticSubs binds the postsynaptic model of sg, with $(inSyn)
// as the accumulated input expression.
func (r Resolver) PostsynapticSubs(t *Table, sg *slmodel.SynapseGroup, inSyn string) {
	t.AddVar("inSyn", inSyn)
	r.params(t, &sg.PS.Snippet, sg.PSParams, "")
	r.egps(t, &sg.PS.Snippet, sg.PSTarget, "")
}

// CurrentSourceSubs binds current source cs, indexing its vars with idx
func (r Resolver) CurrentSourceSubs(t *Table, cs *slmodel.CurrentSource, idx string) {
	for _, v := range cs.Model.Vars {
		t.AddVar(v.Name, r.Array(v.Name, cs.Name)+"["+idx+"]")
	}
	r.params(t, &cs.Model.Snippet, cs.Params, "")
	r.egps(t, &cs.Model.Snippet, cs.Name, "")
}

// ConnectivitySubs binds the connectivity model of sg and its row
// build state variables.
func (r Resolver) ConnectivitySubs(t *Table, sg *slmodel.SynapseGroup) {
	for _, s := range sg.Conn.RowBuildState {
		t.AddVar(s.Name, s.Name)
	}
	r.params(t, &sg.Conn.Snippet, sg.ConnParams, "")
	r.egps(t, &sg.Conn.Snippet, sg.Name, "")
}

// VarInitSubs binds a var init model computing into value
func (r Resolver) VarInitSubs(t *Table, vi *slmodel.VarInit, value string) {
	t.AddVar("value", value)
	r.params(t, &vi.Init.Snippet, vi.Params, "")
}

// WeightUpdateParamSubs binds only the params and extra global params
// of the weight update model of sg, for code that runs outside the
// synapse loop such as spike-like event conditions.
func (r Resolver) WeightUpdateParamSubs(t *Table, sg *slmodel.SynapseGroup) {
	r.params(t, &sg.WU.Snippet, sg.WUParams, "")
	r.egps(t, &sg.WU.Snippet, sg.Name, "")
}

// LocalPreSubs binds the <name>_pre references of code evaluated in the
// neuron update of ng to its registers named local + var.
func (r Resolver) LocalPreSubs(t *Table, ng *slmodel.NeuronGroup, local string) {
	for _, v := range ng.Model.Vars {
		t.Add(Key{Kind: Var, Name: v.Name, Suffix: "_pre"}, Literal(local+v.Name))
	}
	if ng.SpikeTimeRequired {
		t.Add(Key{Kind: Var, Name: "sT", Suffix: "_pre"}, Literal(local+"sT"))
	}
	r.params(t, &ng.Model.Snippet, ng.Params, "_pre")
	r.egps(t, &ng.Model.Snippet, ng.Name, "_pre")
}
