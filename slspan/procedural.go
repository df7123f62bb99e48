// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slspan

import (
	"fmt"
	"strings"

	"goki.dev/synsl/slcode"
	"goki.dev/synsl/slmodel"
	"goki.dev/synsl/slrand"
	"goki.dev/synsl/slsym"
)

// PreSpanProcedural is PreSpan for procedural connectivity: each
// thread generates its share of the row of a spiking neuron with the
// connectivity model, applying the synaptic effect to every target
// as it is generated. There are no synapse addresses, so all weight
// update variables must be GLOBAL or PROCEDURAL.
type PreSpanProcedural struct{}

func (PreSpanProcedural) Kind() Kind { return KindPreSpanProcedural }

func (PreSpanProcedural) NumThreads(sg *slmodel.SynapseGroup) int {
	return sg.Src.Size * sg.ThreadsPerSpike
}

func (PreSpanProcedural) RowStride(sg *slmodel.SynapseGroup) int {
	return sg.MaxConnections
}

func (PreSpanProcedural) IsCompatible(sg *slmodel.SynapseGroup) bool {
	if sg.Matrix != slmodel.Procedural {
		return false
	}
	for _, impl := range sg.VarImpls() {
		if impl == slmodel.Individual {
			return false
		}
	}
	return true
}

func (PreSpanProcedural) SharedMemoryPerThread(sg *slmodel.SynapseGroup, env Env) int {
	if isSmallSharedPop(sg, env) {
		return 1
	}
	return 0
}

func (PreSpanProcedural) ShouldAccumulateInRegister(sg *slmodel.SynapseGroup) bool {
	return false
}

// IsConnectRNGRequired reports whether the row of sg is generated with
// random numbers: by its connectivity model or procedural variables.
func IsConnectRNGRequired(sg *slmodel.SynapseGroup) bool {
	if sg.Conn != nil && slmodel.IsRNGRequired(sg.Conn.RowBuildCode) {
		return true
	}
	for _, vi := range sg.WUVars {
		if vi.Impl == slmodel.ProceduralVar && vi.Init != nil && slmodel.IsRNGRequired(vi.Init.Code) {
			return true
		}
	}
	return false
}

func (s PreSpanProcedural) GenPreamble(w *slcode.Stream, sg *slmodel.SynapseGroup, popSubs *slsym.Table, env Env) error {
	if AccumulationFor(s, sg, env) == SharedMem {
		genSharedZero(w, sg, env)
	}
	return w.Err()
}

func (s PreSpanProcedural) GenUpdate(w *slcode.Stream, sg *slmodel.SynapseGroup, popSubs *slsym.Table, env Env, trueSpike bool, idStart int, h Handlers) error {
	if h.ProceduralConnect == nil {
		return fmt.Errorf("synapse group %s: no procedural connectivity handler", sg.Name)
	}
	r := env.Resolver()
	cnt, spk, cntIdx := spikeArrays(sg, env, trueSpike)
	T := sg.ThreadsPerSpike
	trgN := sg.Trg.Size

	genSpikeThread(w, sg, popSubs.MustValue("id"))
	w.Printf("if (spike < %s[%s])", cnt, cntIdx)
	w.Open(10)
	w.Printf("const unsigned int preInd = %s[%s];\n", spk, r.SpikeIndex(sg.Src, slsym.SlotDelayed(sg.DelaySteps), "spike"))

	procSubs := slsym.New(popSubs)
	procSubs.AddVar("id_pre", "preInd")

	if IsConnectRNGRequired(sg) {
		// each thread of each row has its own subsequence, independent
		// of which threads run
		seq := "preInd"
		if T > 1 {
			seq = fmt.Sprintf("(preInd * %d) + thread", T)
		}
		w.Printf("%s connectRNG;\n", slrand.DeviceType)
		w.Printf("%s(&connectRNG, deviceRNGSeed, %s + %d);\n", slrand.DeviceInit, seq, idStart)
		procSubs.AddVar("rng", "&connectRNG")
	}

	connSubs := slsym.New(procSubs)
	if T > 1 {
		per := (trgN + T - 1) / T
		w.Printf("const unsigned int idPostStart = thread * %d;\n", per)
		w.Printf("const unsigned int numPost = (idPostStart >= %d) ? 0 : (((%d - idPostStart) < %d) ? (%d - idPostStart) : %d);\n", trgN, trgN, per, trgN, per)
		connSubs.AddVar("id_post_begin", "idPostStart")
		connSubs.AddVar("num_post", "numPost")
	} else {
		connSubs.AddVar("id_post_begin", "0")
		connSubs.AddVar("num_post", fmt.Sprint(trgN))
	}

	retest, err := genRetest(w, sg, procSubs, trueSpike, h)
	if err != nil {
		return err
	}

	// the synaptic effect, with the target as argument 0, becomes the
	// addSynapse function of the row build code
	synSubs := slsym.New(procSubs)
	synSubs.AddVar("id_post", "$(0)")
	addInputFuncs(synSubs, sg, env, AccumulationFor(s, sg, env), "$(id_post)")
	sos, buf := slcode.NewBuffer()
	if err := h.Sim(sos, sg, synSubs); err != nil {
		return err
	}
	if err := sos.Err(); err != nil {
		return err
	}
	tmpl := strings.TrimSuffix(strings.TrimRight(buf.String(), " \t\n"), ";")
	connSubs.AddFunc("addSynapse", 1, tmpl)

	if err := h.ProceduralConnect(w, sg, connSubs); err != nil {
		return err
	}
	if retest {
		w.Close(130)
	}
	w.Close(10)
	return w.Err()
}

func (s PreSpanProcedural) GenPostamble(w *slcode.Stream, sg *slmodel.SynapseGroup, popSubs *slsym.Table, env Env) error {
	if AccumulationFor(s, sg, env) == SharedMem {
		w.Println("%s;", env.Barrier())
		lid := env.LocalID()
		genFlush(w, sg, env, lid, "shLg["+lid+"]", padded(s.NumThreads(sg), env.BlockSize()) > env.BlockSize())
	}
	return w.Err()
}
