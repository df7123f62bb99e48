// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slbackend

import (
	"fmt"
	"math"
	"strconv"

	"goki.dev/synsl/slcode"
	"goki.dev/synsl/slmodel"
	"goki.dev/synsl/slrand"
	"goki.dev/synsl/slsubst"
	"goki.dev/synsl/slsym"
)

// spikeTimeInit is the spike time of neurons that have not spiked yet
const spikeTimeInit = -math.MaxFloat32

// initialize generates initializeKernel, launched once before the first
// step. Each neuron thread clears its spike buffers, input accumulators
// and dendritic delay buffers and computes the declared initial values
// of its vars, those of its current sources and postsynaptic models.
// Synapse groups with initialised individual vars follow, one thread
// per presynaptic row. Connectivity is uploaded by the host first.
func (g *gen) initialize() (*Kernel, error) {
	bs := g.b.Profile.BlockSize.Initialize
	var ranges []GroupRange
	start := 0
	for _, ng := range g.m.NeuronGroups {
		end := start + padded(ng.Size, bs)
		ranges = append(ranges, GroupRange{Name: ng.Name, Start: start, End: end})
		start = end
	}
	var rows []*slmodel.SynapseGroup
	for _, sg := range g.m.SynapseGroups {
		if sg.Matrix == slmodel.Procedural || len(synapseInitVars(sg)) == 0 {
			continue
		}
		end := start + padded(sg.Src.Size, bs)
		ranges = append(ranges, GroupRange{Name: sg.Name, Start: start, End: end})
		rows = append(rows, sg)
		start = end
	}
	nng := len(g.m.NeuronGroups)
	k, err := g.kernel("initializeKernel", bs, func(w *slcode.Stream) error {
		for i, ng := range g.m.NeuronGroups {
			w.Println("// neuron group %s", ng.Name)
			groupIf(w, ranges[i].Start, ranges[i].End)
			if err := g.initNeuronGroup(w, ng); err != nil {
				return err
			}
			w.Close(200)
		}
		for i, sg := range rows {
			w.Println("// synapse group %s", sg.Name)
			groupIf(w, ranges[nng+i].Start, ranges[nng+i].End)
			if err := g.initSynapseRows(w, sg); err != nil {
				return err
			}
			w.Close(200)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	k.Phase = PhaseInit
	k.GlobalThreads = start
	k.Groups = ranges
	return k, nil
}

// synapseInitVars are the individual weight update vars of sg with a
// declared initial value
func synapseInitVars(sg *slmodel.SynapseGroup) []slmodel.Var {
	var vs []slmodel.Var
	for _, v := range sg.WU.Vars {
		vi := sg.WUVarInit(v.Name)
		if vi.Impl == slmodel.Individual && !vi.Host {
			vs = append(vs, v)
		}
	}
	return vs
}

// slotElem indexes slot d of a ring buffer of size elements per slot
func slotElem(arr string, d, size int) string {
	if d == 0 {
		return arr + "[lid]"
	}
	return fmt.Sprintf("%s[%d + lid]", arr, d*size)
}

// neuronInitRNG reports whether any var initialised by the neuron
// threads of ng draws random numbers
func neuronInitRNG(ng *slmodel.NeuronGroup) bool {
	for _, v := range ng.Model.Vars {
		if ng.VarInit(v.Name).RNGRequired() {
			return true
		}
	}
	for _, cs := range ng.CurrentSources {
		for _, v := range cs.Model.Vars {
			if cs.VarInit(v.Name).RNGRequired() {
				return true
			}
		}
	}
	for _, sg := range ng.MergedInSyn {
		for _, v := range sg.PS.Vars {
			if sg.PSVarInit(v.Name).RNGRequired() {
				return true
			}
		}
	}
	return false
}

// initRNG declares the init generator of the thread and binds $(rng).
// Init streams are keyed one below the seed, apart from connectivity
// (the seed) and the step streams (above it).
func initRNG(w *slcode.Stream, t *slsym.Table) {
	w.Println("%s rng;", slrand.DeviceType)
	w.Println("%s(&rng, deviceRNGSeed - 1, id);", slrand.DeviceInit)
	t.AddVar("rng", "&rng")
}

func (g *gen) initNeuronGroup(w *slcode.Stream, ng *slmodel.NeuronGroup) error {
	r := g.r
	n := ng.NumDelaySlots
	w.WriteString("if (lid == 0)")
	w.Open(10)
	if ng.DelayRequired() {
		w.Println("*%s = 0;", r.Array("spkQuePtr", ng.Name))
	}
	for d := 0; d < n; d++ {
		w.Println("%s[%d] = 0;", r.Array("glbSpkCnt", ng.Name), d)
		if ng.SpikeEventRequired() {
			w.Println("%s[%d] = 0;", r.Array("glbSpkCntEvnt", ng.Name), d)
		}
	}
	for _, sg := range ng.MergedInSyn {
		if sg.DendriticDelayRequired() {
			w.Println("*%s = 0;", r.Array("denDelayPtr", sg.PSTarget))
		}
	}
	w.Close(10)

	w.Printf("if (lid < %d)", ng.Size)
	w.Open(11)
	pop := slsym.New(g.root)
	pop.AddVar("id", "lid")
	if neuronInitRNG(ng) {
		initRNG(w, pop)
	}
	sT := slsubst.EnsureFtype(slsubst.FormatLiteral(spikeTimeInit, g.b.prec), g.b.prec)
	for d := 0; d < n; d++ {
		w.Println("%s = 0;", slotElem(r.Array("glbSpk", ng.Name), d, ng.Size))
		if ng.SpikeEventRequired() {
			w.Println("%s = 0;", slotElem(r.Array("glbSpkEvnt", ng.Name), d, ng.Size))
		}
		if ng.SpikeTimeRequired {
			w.Println("%s = %s;", slotElem(r.Array("sT", ng.Name), d, ng.Size), sT)
		}
	}
	for _, v := range ng.Model.Vars {
		vi := ng.VarInit(v.Name)
		if vi.Host {
			continue
		}
		slots := 1
		if ng.VarQueueRequired(v.Name) {
			slots = n
		}
		var elems []string
		for d := 0; d < slots; d++ {
			elems = append(elems, slotElem(r.Array(v.Name, ng.Name), d, ng.Size))
		}
		if err := g.initVar(w, pop, v, vi, label("NeuronGroup", ng.Name, v.Name+"Init"), elems...); err != nil {
			return err
		}
	}
	for _, cs := range ng.CurrentSources {
		for _, v := range cs.Model.Vars {
			vi := cs.VarInit(v.Name)
			if vi.Host {
				continue
			}
			if err := g.initVar(w, pop, v, vi, label("CurrentSource", cs.Name, v.Name+"Init"), r.Array(v.Name, cs.Name)+"[lid]"); err != nil {
				return err
			}
		}
	}
	for _, sg := range ng.MergedInSyn {
		w.Println("%s[lid] = 0;", r.Array("inSyn", sg.PSTarget))
		for d := 0; d < sg.MaxDendriticDelay; d++ {
			w.Println("%s = 0;", slotElem(r.Array("denDelay", sg.PSTarget), d, ng.Size))
		}
		for _, v := range sg.PS.Vars {
			vi := sg.PSVarInit(v.Name)
			if vi.Host {
				continue
			}
			if err := g.initVar(w, pop, v, vi, label("SynapseGroup", sg.Name, v.Name+"Init"), r.Array(v.Name, sg.PSTarget)+"[lid]"); err != nil {
				return err
			}
		}
	}
	w.Close(11)
	return nil
}

// initSynapseRows initialises the synapses of presynaptic neuron lid:
// the whole row for dense and bitmask groups, the used part of the row
// for sparse ones. $(id) of the init code is the synapse index.
func (g *gen) initSynapseRows(w *slcode.Stream, sg *slmodel.SynapseGroup) error {
	r := g.r
	w.Printf("if (lid < %d)", sg.Src.Size)
	w.Open(20)
	row := slsym.New(g.root)
	row.AddVar("id_pre", "lid")
	row.AddVar("id_syn", "synAddress")
	rowLen := strconv.Itoa(sg.Trg.Size)
	if sg.Matrix == slmodel.Sparse {
		rowLen = r.Array("rowLength", sg.Name) + "[lid]"
		row.AddVar("id_post", r.Array("ind", sg.Name)+"[synAddress]")
	} else {
		row.AddVar("id_post", "j")
	}
	vars := synapseInitVars(sg)
	for _, v := range vars {
		if sg.WUVarInit(v.Name).RNGRequired() {
			initRNG(w, row)
			break
		}
	}
	w.Printf("for (unsigned int j = 0; j < %s; j++)", rowLen)
	w.Open(21)
	w.Println("const unsigned int synAddress = (lid * %d) + j;", sg.MaxConnections)
	st := slsym.New(row)
	st.AddAlias("id", "id_syn")
	for _, v := range vars {
		if err := g.initVar(w, st, v, sg.WUVarInit(v.Name), label("SynapseGroup", sg.Name, v.Name+"Init"), r.Array(v.Name, sg.Name)+"[synAddress]"); err != nil {
			return err
		}
	}
	w.Close(21)
	w.Close(20)
	return nil
}

// initVar writes the initial value of v to each of elems: the declared
// constant, or the value computed once by its init model.
func (g *gen) initVar(w *slcode.Stream, parent *slsym.Table, v slmodel.Var, vi *slmodel.VarInit, lbl string, elems ...string) error {
	if vi.Init == nil {
		val := slsubst.EnsureFtype(slsubst.FormatLiteral(vi.Value, g.b.prec), g.b.prec)
		for _, e := range elems {
			w.Println("%s = %s;", e, val)
		}
		return nil
	}
	var err error
	w.Scope(func() {
		w.Println("%s initVal;", v.Type)
		vt := slsym.New(parent)
		g.r.VarInitSubs(vt, vi, "initVal")
		if err = emit(w, vt, vi.Init.Code, lbl); err != nil {
			return
		}
		for _, e := range elems {
			w.Println("%s = initVal;", e)
		}
	})
	return err
}
