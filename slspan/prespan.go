// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slspan

import (
	"goki.dev/synsl/slcode"
	"goki.dev/synsl/slmodel"
	"goki.dev/synsl/slsym"
)

// PreSpan runs ThreadsPerSpike threads per presynaptic spike, each
// walking its share of the sparse row of the spiking neuron. Threads
// of different spikes can hit the same target, so input is always
// added atomically.
type PreSpan struct{}

func (PreSpan) Kind() Kind { return KindPreSpan }

func (PreSpan) NumThreads(sg *slmodel.SynapseGroup) int {
	return sg.Src.Size * sg.ThreadsPerSpike
}

func (PreSpan) RowStride(sg *slmodel.SynapseGroup) int {
	return sg.MaxConnections
}

func (PreSpan) IsCompatible(sg *slmodel.SynapseGroup) bool {
	return sg.Matrix == slmodel.Sparse && sg.Span == slmodel.Presynaptic
}

func (PreSpan) SharedMemoryPerThread(sg *slmodel.SynapseGroup, env Env) int {
	if isSmallSharedPop(sg, env) {
		return 1
	}
	return 0
}

func (PreSpan) ShouldAccumulateInRegister(sg *slmodel.SynapseGroup) bool {
	return false
}

func (s PreSpan) GenPreamble(w *slcode.Stream, sg *slmodel.SynapseGroup, popSubs *slsym.Table, env Env) error {
	if AccumulationFor(s, sg, env) == SharedMem {
		genSharedZero(w, sg, env)
	}
	return w.Err()
}

func (s PreSpan) GenUpdate(w *slcode.Stream, sg *slmodel.SynapseGroup, popSubs *slsym.Table, env Env, trueSpike bool, idStart int, h Handlers) error {
	r := env.Resolver()
	cnt, spk, cntIdx := spikeArrays(sg, env, trueSpike)
	T := sg.ThreadsPerSpike
	stride := s.RowStride(sg)

	genSpikeThread(w, sg, popSubs.MustValue("id"))
	w.Printf("if (spike < %s[%s])", cnt, cntIdx)
	w.Open(10)
	w.Printf("const unsigned int preInd = %s[%s];\n", spk, r.SpikeIndex(sg.Src, slsym.SlotDelayed(sg.DelaySteps), "spike"))
	if T > 1 {
		w.Printf("unsigned int synAddress = (preInd * %d) + thread;\n", stride)
	} else {
		w.Printf("unsigned int synAddress = preInd * %d;\n", stride)
	}
	w.Printf("const unsigned int npost = %s[preInd];\n", r.Array("rowLength", sg.Name))

	synSubs := slsym.New(popSubs)
	synSubs.AddVar("id_pre", "preInd")
	synSubs.AddVar("id_post", "ipost")
	synSubs.AddVar("id_syn", "synAddress")

	retest, err := genRetest(w, sg, synSubs, trueSpike, h)
	if err != nil {
		return err
	}
	if T > 1 {
		w.Printf("for (unsigned int i = thread; i < npost; i += %d, synAddress += %d)", T, T)
	} else {
		w.WriteString("for (unsigned int i = 0; i < npost; i++, synAddress++)")
	}
	w.Open(20)
	w.Printf("const unsigned int ipost = %s[synAddress];\n", r.Array("ind", sg.Name))
	addInputFuncs(synSubs, sg, env, AccumulationFor(s, sg, env), "ipost")
	if err := h.Sim(w, sg, synSubs); err != nil {
		return err
	}
	w.Close(20)
	if retest {
		w.Close(130)
	}
	w.Close(10)
	return w.Err()
}

func (s PreSpan) GenPostamble(w *slcode.Stream, sg *slmodel.SynapseGroup, popSubs *slsym.Table, env Env) error {
	if AccumulationFor(s, sg, env) == SharedMem {
		w.Println("%s;", env.Barrier())
		lid := env.LocalID()
		genFlush(w, sg, env, lid, "shLg["+lid+"]", padded(s.NumThreads(sg), env.BlockSize()) > env.BlockSize())
	}
	return w.Err()
}
