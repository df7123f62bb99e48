// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slbackend

import (
	"fmt"

	"goki.dev/synsl/slcode"
	"goki.dev/synsl/slmodel"
	"goki.dev/synsl/slrand"
	"goki.dev/synsl/slspan"
	"goki.dev/synsl/slsubst"
	"goki.dev/synsl/slsym"
)

// neuronUpdate generates updateNeuronsKernel. Each population reads its
// state from the previous slot of its ring buffers and writes it, and
// its spikes, into the current slot. Spikes are staged in shared memory
// per block and committed with one atomic add per block.
func (g *gen) neuronUpdate() (*Kernel, error) {
	b := g.b
	bs := b.Profile.BlockSize.NeuronUpdate
	var ranges []GroupRange
	start := 0
	events := false
	for _, ng := range g.m.NeuronGroups {
		end := start + padded(ng.Size, bs)
		ranges = append(ranges, GroupRange{Name: ng.Name, Start: start, End: end})
		start = end
		events = events || ng.SpikeEventRequired()
	}
	k, err := g.kernel("updateNeuronsKernel", bs, func(w *slcode.Stream) error {
		sh := b.SharedPrefix()
		lid := b.LocalID()
		w.Println("%sunsigned int shSpk[%d];", sh, bs)
		w.Println("%sunsigned int shPosSpk;", sh)
		w.Println("%sunsigned int shSpkCount;", sh)
		if events {
			w.Println("%sunsigned int shSpkEvnt[%d];", sh, bs)
			w.Println("%sunsigned int shPosSpkEvnt;", sh)
			w.Println("%sunsigned int shSpkEvntCount;", sh)
		}
		w.Printf("if (%s == 0)", lid)
		w.Open(1)
		w.Println("shSpkCount = 0;")
		if events {
			w.Println("shSpkEvntCount = 0;")
		}
		w.Close(1)
		w.Println("%s;", b.Barrier())
		for i, ng := range g.m.NeuronGroups {
			w.Println("// neuron group %s", ng.Name)
			groupIf(w, ranges[i].Start, ranges[i].End)
			if err := g.neuronGroup(w, ng); err != nil {
				return err
			}
			w.Close(200)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	k.GlobalThreads = start
	k.Groups = ranges
	return k, nil
}

func (g *gen) neuronGroup(w *slcode.Stream, ng *slmodel.NeuronGroup) error {
	b, r := g.b, g.r
	nm := ng.Model

	pop := slsym.New(g.root)
	pop.AddVar("id", "lid")
	pop.AddVar("t", "t")
	nt := slsym.New(pop)
	r.NeuronSubs(nt, ng, "l")
	nt.AddVar("Isyn", "Isyn")
	if ng.SpikeTimeRequired {
		nt.AddVar("sT", "lsT")
	}

	w.Printf("if (lid < %d)", ng.Size)
	w.Open(10)
	for _, v := range nm.Vars {
		w.Println("%s l%s = %s;", v.Type, v.Name, r.VarExpr(ng, v.Name, slsym.SlotPrevious, "lid"))
	}
	if ng.SpikeTimeRequired {
		w.Println("scalar lsT = %s[%s];", r.Array("sT", ng.Name), r.SpikeIndex(ng, slsym.SlotPrevious, "lid"))
	}
	w.Println("scalar Isyn = 0;")
	if ng.SimRNGRequired {
		step := slsubst.EnsureFtype(fmt.Sprintf("(unsigned int)((t / %s) + 0.5)", pop.MustValue("DT")), b.prec)
		w.Println("%s rng;", slrand.DeviceType)
		w.Println("%s(&rng, deviceRNGSeed + 1 + %s, id);", slrand.DeviceInit, step)
		nt.AddVar("rng", "&rng")
	}

	for _, sg := range ng.MergedInSyn {
		if err := g.applyInput(w, ng, sg, nt); err != nil {
			return err
		}
	}
	for _, cs := range ng.CurrentSources {
		ct := slsym.New(nt)
		r.CurrentSourceSubs(ct, cs, "lid")
		ct.AddFunc("injectCurrent", 1, "Isyn += $(0)")
		if err := emit(w, ct, cs.Model.InjectionCode, label("CurrentSource", cs.Name, "injection")); err != nil {
			return err
		}
	}

	threshold := ""
	if ng.TrueSpikeRequired() {
		var err error
		threshold, err = condition(nt, nm.ThresholdCode, label("NeuronGroup", ng.Name, "threshold"))
		if err != nil {
			return err
		}
		if nm.AutoRefractory {
			w.Println("const bool oldSpike = (%s);", threshold)
		}
	}
	if err := emit(w, nt, nm.SimCode, label("NeuronGroup", ng.Name, "sim")); err != nil {
		return err
	}

	if ng.SpikeEventRequired() {
		w.Println("bool spikeLikeEvent = false;")
		for _, ec := range ng.SpikeEventConditions {
			et := slsym.New(nt)
			r.LocalPreSubs(et, ng, "l")
			r.WeightUpdateParamSubs(et, ec.Group)
			cond, err := condition(et, ec.Code, label("SynapseGroup", ec.Group.Name, "eventThreshold"))
			if err != nil {
				return err
			}
			w.Println("spikeLikeEvent |= (%s);", cond)
		}
		w.WriteString("if (spikeLikeEvent)")
		w.Open(20)
		w.Println("const unsigned int spkEvntIdx = %s(&shSpkEvntCount, 1);", b.IntAtomicAdd(slspan.Shared))
		w.Println("shSpkEvnt[spkEvntIdx] = lid;")
		w.Close(20)
	}

	if threshold != "" {
		if nm.AutoRefractory {
			w.Printf("if ((%s) && !(oldSpike))", threshold)
		} else {
			w.Printf("if (%s)", threshold)
		}
		w.Open(30)
		w.Println("const unsigned int spkIdx = %s(&shSpkCount, 1);", b.IntAtomicAdd(slspan.Shared))
		w.Println("shSpk[spkIdx] = lid;")
		if ng.SpikeTimeRequired {
			w.Println("lsT = t;")
		}
		if err := emit(w, nt, nm.ResetCode, label("NeuronGroup", ng.Name, "reset")); err != nil {
			return err
		}
		w.Close(30)
	}

	for _, v := range nm.Vars {
		w.Println("%s = l%s;", r.VarExpr(ng, v.Name, slsym.SlotCurrent, "lid"), v.Name)
	}
	if ng.SpikeTimeRequired {
		w.Println("%s[%s] = lsT;", r.Array("sT", ng.Name), r.SpikeIndex(ng, slsym.SlotCurrent, "lid"))
	}
	for _, sg := range ng.MergedInSyn {
		pt := g.psSubs(nt, sg)
		if err := emit(w, pt, sg.PS.DecayCode, label("SynapseGroup", sg.Name, "decay")); err != nil {
			return err
		}
		w.Println("%s[lid] = linSyn%s;", r.Array("inSyn", sg.PSTarget), sg.PSTarget)
	}
	w.Close(10)

	if threshold != "" {
		g.commitSpikes(w, ng, "")
	}
	if ng.SpikeEventRequired() {
		g.commitSpikes(w, ng, "Evnt")
	}
	return nil
}

// psSubs binds the postsynaptic model of merged accumulator sg in the
// update of its target
func (g *gen) psSubs(nt *slsym.Table, sg *slmodel.SynapseGroup) *slsym.Table {
	pt := slsym.New(nt)
	g.r.PostsynapticSubs(pt, sg, "linSyn"+sg.PSTarget)
	for _, v := range sg.PS.Vars {
		pt.AddVar(v.Name, g.r.Array(v.Name, sg.PSTarget)+"[lid]")
	}
	return pt
}

// applyInput loads the accumulator of sg, adds the front of its
// dendritic delay buffer and applies the input to the neuron.
func (g *gen) applyInput(w *slcode.Stream, ng *slmodel.NeuronGroup, sg *slmodel.SynapseGroup, nt *slsym.Table) error {
	r := g.r
	lin := "linSyn" + sg.PSTarget
	w.Println("// postsynaptic input %s", sg.PSTarget)
	w.Println("scalar %s = %s[lid];", lin, r.Array("inSyn", sg.PSTarget))
	if sg.DendriticDelayRequired() {
		// the slot written with zero delay before the pointer advanced
		n := sg.MaxDendriticDelay
		front := fmt.Sprintf("%s[(((*%s + %d) %% %d) * %d) + lid]", r.Array("denDelay", sg.PSTarget), r.Array("denDelayPtr", sg.PSTarget), n-1, n, ng.Size)
		w.Println("%s += %s;", lin, front)
		w.Println("%s = 0;", front)
	}
	return emit(w, g.psSubs(nt, sg), sg.PS.ApplyInputCode, label("SynapseGroup", sg.Name, "applyInput"))
}

// commitSpikes adds the spikes (or events, for evnt "Evnt") staged by
// the block to the global spike buffers of ng.
func (g *gen) commitSpikes(w *slcode.Stream, ng *slmodel.NeuronGroup, evnt string) {
	b, r := g.b, g.r
	lid := b.LocalID()
	w.Println("%s;", b.Barrier())
	w.Printf("if (%s == 0)", lid)
	w.Open(40)
	w.Printf("if (shSpk%sCount > 0)", evnt)
	w.Open(41)
	w.Println("shPosSpk%s = %s(&%s[%s], shSpk%sCount);", evnt, b.IntAtomicAdd(slspan.Global), r.Array("glbSpkCnt"+evnt, ng.Name), r.SlotIndex(ng, slsym.SlotCurrent), evnt)
	w.Close(41)
	w.Close(40)
	w.Println("%s;", b.Barrier())
	w.Printf("if (%s < shSpk%sCount)", lid, evnt)
	w.Open(42)
	w.Println("%s[%s] = shSpk%s[%s];", r.Array("glbSpk"+evnt, ng.Name), r.SpikeIndex(ng, slsym.SlotCurrent, "shPosSpk"+evnt+" + "+lid), evnt, lid)
	w.Close(42)
}
