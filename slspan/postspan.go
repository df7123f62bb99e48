// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slspan

import (
	"math"
	"strconv"

	"goki.dev/synsl/slcode"
	"goki.dev/synsl/slmodel"
	"goki.dev/synsl/slsym"
)

// PostSpan runs one thread per postsynaptic slot of a row. The threads
// of a block load the spikes of each step into shared memory a block
// at a time, then each thread applies every spike to its own slot.
type PostSpan struct{}

func (PostSpan) Kind() Kind { return KindPostSpan }

// NumThreads is the row length: max connections for sparse
// connectivity, the target size otherwise.
func (PostSpan) NumThreads(sg *slmodel.SynapseGroup) int {
	if sg.Matrix == slmodel.Sparse {
		return sg.MaxConnections
	}
	return sg.Trg.Size
}

func (PostSpan) RowStride(sg *slmodel.SynapseGroup) int {
	if sg.Matrix == slmodel.Sparse {
		return sg.MaxConnections
	}
	return sg.Trg.Size
}

func (PostSpan) IsCompatible(sg *slmodel.SynapseGroup) bool {
	return sg.Span == slmodel.Postsynaptic && sg.Matrix != slmodel.Procedural
}

func (s PostSpan) SharedMemoryPerThread(sg *slmodel.SynapseGroup, env Env) int {
	if !s.ShouldAccumulateInRegister(sg) && isSmallSharedPop(sg, env) {
		return 1
	}
	return 0
}

// ShouldAccumulateInRegister is true for dense and bitmask rows, where
// thread i always owns target i.
func (PostSpan) ShouldAccumulateInRegister(sg *slmodel.SynapseGroup) bool {
	return !sg.DendriticDelayRequired() && (sg.Matrix == slmodel.Dense || sg.Matrix == slmodel.Bitmask)
}

func (s PostSpan) GenPreamble(w *slcode.Stream, sg *slmodel.SynapseGroup, popSubs *slsym.Table, env Env) error {
	switch AccumulationFor(s, sg, env) {
	case Register:
		w.Println("scalar linSyn = 0;")
	case SharedMem:
		genSharedZero(w, sg, env)
	}
	return w.Err()
}

func (s PostSpan) GenUpdate(w *slcode.Stream, sg *slmodel.SynapseGroup, popSubs *slsym.Table, env Env, trueSpike bool, idStart int, h Handlers) error {
	r := env.Resolver()
	cnt, spk, cntIdx := spikeArrays(sg, env, trueSpike)
	shSpk := "shSpk" + evntSuffix(trueSpike)
	B := env.BlockSize()
	lid := env.LocalID()
	id := popSubs.MustValue("id")
	stride := s.RowStride(sg)
	sparse := sg.Matrix == slmodel.Sparse

	w.Printf("const unsigned int numSpikes = %s[%s];\n", cnt, cntIdx)
	w.Printf("const unsigned int numSpikeBlocks = (numSpikes + %d) / %d;\n", B-1, B)
	w.WriteString("for (unsigned int r = 0; r < numSpikeBlocks; r++)")
	w.Open(90)
	w.Printf("const unsigned int numSpikesInBlock = (r == numSpikeBlocks - 1) ? ((numSpikes - 1) %% %d) + 1 : %d;\n", B, B)
	w.Println("%s;", env.Barrier())
	w.Printf("if (%s < numSpikesInBlock)", lid)
	w.Open(100)
	spkIdx := r.SpikeIndex(sg.Src, slsym.SlotDelayed(sg.DelaySteps), "(r * "+strconv.Itoa(B)+") + "+lid)
	w.Printf("const unsigned int spk = %s[%s];\n", spk, spkIdx)
	w.Printf("%s[%s] = spk;\n", shSpk, lid)
	if sparse {
		w.Printf("shRowLength[%s] = %s[spk];\n", lid, r.Array("rowLength", sg.Name))
	}
	w.Close(100)
	w.Println("%s;", env.Barrier())

	w.Println("// loop through all incoming spikes")
	w.WriteString("for (unsigned int j = 0; j < numSpikesInBlock; j++)")
	w.Open(110)
	w.Println("// only work on existing neurons")
	w.Printf("if (%s < %d)", id, stride)
	w.Open(120)

	synSubs := slsym.New(popSubs)
	synSubs.AddVar("id_pre", shSpk+"[j]")

	bitmask := sg.Matrix == slmodel.Bitmask
	if bitmask {
		if uint64(sg.Src.Size)*uint64(sg.Trg.Size) > math.MaxUint32 {
			w.Printf("const %s gid = (%s[j] * (%s)%d) + %s;\n", env.Uint64(), shSpk, env.Uint64(), sg.Trg.Size, id)
		} else {
			w.Printf("const unsigned int gid = (%s[j] * %d) + %s;\n", shSpk, sg.Trg.Size, id)
		}
		w.Printf("if (B(%s[gid / 32], gid & 31))", r.Array("gp", sg.Name))
		w.Open(135)
	}
	retest, err := genRetest(w, sg, synSubs, trueSpike, h)
	if err != nil {
		return err
	}
	postIdx := id
	if sparse {
		w.Printf("unsigned int synAddress = %s[j] * %d;\n", shSpk, stride)
		w.Println("const unsigned int npost = shRowLength[j];")
		w.Printf("if (%s < npost)", id)
		w.Open(140)
		w.Printf("synAddress += %s;\n", id)
		w.Printf("const unsigned int ipost = %s[synAddress];\n", r.Array("ind", sg.Name))
		postIdx = "ipost"
	} else {
		w.Printf("const unsigned int synAddress = (%s[j] * %d) + %s;\n", shSpk, sg.Trg.Size, id)
	}
	synSubs.AddVar("id_post", postIdx)
	synSubs.AddVar("id_syn", "synAddress")
	addInputFuncs(synSubs, sg, env, AccumulationFor(s, sg, env), postIdx)
	if err := h.Sim(w, sg, synSubs); err != nil {
		return err
	}
	if sparse {
		w.Close(140)
	}
	if retest {
		w.Close(130)
	}
	if bitmask {
		w.Close(135)
	}
	w.Close(120)
	w.Close(110)
	w.Close(90)
	return w.Err()
}

func (s PostSpan) GenPostamble(w *slcode.Stream, sg *slmodel.SynapseGroup, popSubs *slsym.Table, env Env) error {
	switch AccumulationFor(s, sg, env) {
	case Register:
		// thread id owns target id: one writer unless merged
		genFlush(w, sg, env, popSubs.MustValue("id"), "linSyn", false)
	case SharedMem:
		w.Println("%s;", env.Barrier())
		lid := env.LocalID()
		genFlush(w, sg, env, lid, "shLg["+lid+"]", padded(s.NumThreads(sg), env.BlockSize()) > env.BlockSize())
	}
	return w.Err()
}
