// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slbackend

import (
	"log/slog"

	"github.com/c2h5oh/datasize"
	"goki.dev/synsl/slcode"
	"goki.dev/synsl/slmodel"
	"goki.dev/synsl/slspan"
	"goki.dev/synsl/slsym"
)

// hasUpdate reports whether sg propagates true spikes or spike-like events
func hasUpdate(sg *slmodel.SynapseGroup) (trueSpike, event bool) {
	trueSpike = sg.WU.SimCode != "" && sg.Src.TrueSpikeRequired()
	event = sg.WU.EventCode != "" && sg.Src.SpikeEventRequired()
	return
}

// presynapticUpdate generates updatePresynapticKernel, with one range
// of threads per synapse group laid out by its strategy.
func (g *gen) presynapticUpdate() (*Kernel, error) {
	b := g.b
	bs := b.BlockSize()
	type planned struct {
		sg   *slmodel.SynapseGroup
		plan *slspan.Plan
		rng  GroupRange
	}
	var groups []planned
	start := 0
	for _, sg := range g.m.SynapseGroups {
		ts, ev := hasUpdate(sg)
		if !ts && !ev {
			continue
		}
		p, err := g.reg.Plan(sg, b)
		if err != nil {
			return nil, err
		}
		slog.Debug("presynaptic update", "group", sg.Name, "strategy", p.Strategy.Kind(), "accumulation", p.Accumulation,
			"threads", p.NumThreads, "shared", datasize.ByteSize(p.SharedMemBytes(b)).HumanReadable())
		end := start + p.PaddedThreads
		groups = append(groups, planned{sg: sg, plan: p, rng: GroupRange{Name: sg.Name, Start: start, End: end,
			Strategy: p.Strategy.Kind().String(), Accumulation: p.Accumulation.String()}})
		start = end
	}
	if len(groups) == 0 {
		return nil, nil
	}

	h := slspan.Handlers{Threshold: g.threshold, ProceduralConnect: g.proceduralConnect}
	k, err := g.kernel("updatePresynapticKernel", bs, func(w *slcode.Stream) error {
		seen := map[string]bool{}
		for _, pg := range groups {
			for _, sa := range pg.plan.SharedArrays(pg.sg) {
				if seen[sa.Name] {
					continue
				}
				seen[sa.Name] = true
				w.Println("%s%s %s[%d];", b.SharedPrefix(), sa.Type, sa.Name, bs)
			}
		}
		for _, pg := range groups {
			sg, s := pg.sg, pg.plan.Strategy
			w.Println("// synapse group %s", sg.Name)
			groupIf(w, pg.rng.Start, pg.rng.End)
			pop := slsym.New(g.root)
			pop.AddVar("id", "lid")
			pop.AddVar("t", "t")
			if err := s.GenPreamble(w, sg, pop, b); err != nil {
				return err
			}
			ts, ev := hasUpdate(sg)
			for _, trueSpike := range []bool{false, true} {
				if (trueSpike && !ts) || (!trueSpike && !ev) {
					continue
				}
				h.Sim = g.synapseSim(trueSpike)
				var err error
				w.Scope(func() {
					err = s.GenUpdate(w, sg, pop, b, trueSpike, pg.rng.Start, h)
				})
				if err != nil {
					return err
				}
			}
			if err := s.GenPostamble(w, sg, pop, b); err != nil {
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
	for _, pg := range groups {
		k.Groups = append(k.Groups, pg.rng)
	}
	return k, nil
}

// threshold writes the spike-like event condition of sg, against the
// delayed state of the presynaptic neuron $(id_pre).
func (g *gen) threshold(w *slcode.Stream, sg *slmodel.SynapseGroup, subs *slsym.Table) error {
	t := slsym.New(subs)
	g.r.PreNeuronSubs(t, sg.Src, slsym.SlotDelayed(sg.DelaySteps), "$(id_pre)")
	g.r.WeightUpdateParamSubs(t, sg)
	cond, err := condition(t, sg.WU.EventThresholdCode, label("SynapseGroup", sg.Name, "eventThreshold"))
	if err != nil {
		return err
	}
	w.WriteString(cond)
	return nil
}

// synapseSim returns the handler writing the effect of a true spike, or
// a spike-like event, on one synapse. Procedural variables are computed
// into registers first, in a scope of their own.
func (g *gen) synapseSim(trueSpike bool) slspan.Handler {
	return func(w *slcode.Stream, sg *slmodel.SynapseGroup, subs *slsym.Table) error {
		code, field := sg.WU.SimCode, "sim"
		if !trueSpike {
			code, field = sg.WU.EventCode, "event"
		}
		var procVars []slmodel.Var
		for _, v := range sg.WU.Vars {
			if sg.VarImpl(v.Name) == slmodel.ProceduralVar {
				procVars = append(procVars, v)
			}
		}
		wu := slsym.New(subs)
		g.r.WeightUpdateSubs(wu, sg, "$(id_syn)", "l")
		g.r.PreNeuronSubs(wu, sg.Src, slsym.SlotDelayed(sg.DelaySteps), "$(id_pre)")
		g.r.PostNeuronSubs(wu, sg.Trg, slsym.SlotCurrent, "$(id_post)")
		if len(procVars) == 0 {
			return emit(w, wu, code, label("SynapseGroup", sg.Name, field))
		}
		var err error
		w.Scope(func() {
			for _, v := range procVars {
				vi := sg.WUVars[v.Name]
				w.Println("%s l%s;", v.Type, v.Name)
				vt := slsym.New(subs)
				g.r.VarInitSubs(vt, vi, "l"+v.Name)
				if err = emit(w, vt, vi.Init.Code, label("SynapseGroup", sg.Name, v.Name+"Init")); err != nil {
					return
				}
			}
			err = emit(w, wu, code, label("SynapseGroup", sg.Name, field))
		})
		return err
	}
}

// proceduralConnect writes the row build loop of sg: the state
// variables, then the row build code repeated until $(endRow).
func (g *gen) proceduralConnect(w *slcode.Stream, sg *slmodel.SynapseGroup, subs *slsym.Table) error {
	ct := slsym.New(subs)
	g.r.ConnectivitySubs(ct, sg)
	ct.AddVar("endRow", "break")
	for _, s := range sg.Conn.RowBuildState {
		val, err := condition(ct, s.Init, label("SynapseGroup", sg.Name, s.Name+"Init"))
		if err != nil {
			return err
		}
		if val == "" {
			val = "0"
		}
		w.Println("%s %s = %s;", s.Type, s.Name, val)
	}
	w.WriteString("while (true)")
	w.Open(300)
	if err := emit(w, ct, sg.Conn.RowBuildCode, label("SynapseGroup", sg.Name, "rowBuild")); err != nil {
		return err
	}
	w.Close(300)
	return nil
}
