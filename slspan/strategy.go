// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package slspan has the presynaptic update strategies, which map the
// propagation of spikes through a synapse group onto device threads,
// and emit the kernel code for it in three phases: preamble, update
// and postamble.
//
// The set of strategies is closed: PreSpan, PostSpan and
// PreSpanProcedural. A Registry checks that their compatibility
// predicates never overlap and selects the one strategy for a group.
package slspan

import (
	"fmt"

	"goki.dev/synsl/slcode"
	"goki.dev/synsl/slmodel"
	"goki.dev/synsl/slsym"
	"goki.dev/synsl/sltype"
)

// Kind tags the strategy variants
type Kind int32

const (
	KindPreSpan Kind = iota
	KindPostSpan
	KindPreSpanProcedural
)

var kindNames = [...]string{"PreSpan", "PostSpan", "PreSpanProcedural"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", k)
	}
	return kindNames[k]
}

// MemSpace is the memory space targeted by an atomic operation
type MemSpace int32

const (
	Global MemSpace = iota
	Shared
)

// Env is the backend capability surface used by the strategies
type Env interface {
	// Precision is the scalar precision of the generated code
	Precision() sltype.Precision

	// Resolver names device arrays and delay slots
	Resolver() slsym.Resolver

	// LocalID is the expression of the thread index within its block
	LocalID() string

	// Barrier is a block-wide barrier statement, without the ;
	Barrier() string

	// SharedPrefix qualifies block-shared declarations
	SharedPrefix() string

	// BlockSize is the block size of the presynaptic update kernel
	BlockSize() int

	// FastSharedAtomics reports whether the device has native shared
	// memory atomics fast enough for the small target optimization.
	FastSharedAtomics() bool

	// FloatAtomicAdd is the name of the scalar atomic add into space,
	// called as name(&target, value).
	FloatAtomicAdd(space MemSpace) string

	// IntAtomicAdd is the unsigned int atomic add into space, which
	// returns the previous value.
	IntAtomicAdd(space MemSpace) string

	// Uint64 is the 64 bit unsigned type
	Uint64() string
}

// Handler emits model code for sg, resolved against subs
type Handler func(w *slcode.Stream, sg *slmodel.SynapseGroup, subs *slsym.Table) error

// Handlers are the code generation callbacks of the update phase
type Handlers struct {
	// Threshold writes the spike-like event condition of sg as an
	// expression, for groups that must retest recorded events.
	Threshold Handler

	// Sim writes the synaptic effect for one synapse: the sim code for
	// true spikes or the event code for spike-like events.
	Sim Handler

	// ProceduralConnect writes the row generation code of procedural
	// connectivity, in which $(addSynapse, j) applies the synaptic
	// effect to target j.
	ProceduralConnect Handler
}

// Strategy is a presynaptic update strategy. Strategies are stateless:
// every method receives the synapse group it works on.
type Strategy interface {
	Kind() Kind

	// NumThreads is the number of threads the group needs
	NumThreads(sg *slmodel.SynapseGroup) int

	// RowStride is the stride of the rows of the connectivity arrays
	RowStride(sg *slmodel.SynapseGroup) int

	// IsCompatible reports whether the strategy can update sg
	IsCompatible(sg *slmodel.SynapseGroup) bool

	// SharedMemoryPerThread is the number of scalar accumulator
	// elements per thread the strategy puts in shared memory.
	SharedMemoryPerThread(sg *slmodel.SynapseGroup, env Env) int

	// ShouldAccumulateInRegister reports whether each thread owns its
	// postsynaptic target for the whole update, so input can be
	// accumulated in a register.
	ShouldAccumulateInRegister(sg *slmodel.SynapseGroup) bool

	GenPreamble(w *slcode.Stream, sg *slmodel.SynapseGroup, popSubs *slsym.Table, env Env) error
	GenUpdate(w *slcode.Stream, sg *slmodel.SynapseGroup, popSubs *slsym.Table, env Env, trueSpike bool, idStart int, h Handlers) error
	GenPostamble(w *slcode.Stream, sg *slmodel.SynapseGroup, popSubs *slsym.Table, env Env) error
}

// Accumulation is how postsynaptic input is accumulated during the update
type Accumulation int32

const (
	// Register accumulates in a per-thread register, flushed in the postamble
	Register Accumulation = iota

	// SharedMem accumulates with shared memory atomics, flushed in the postamble
	SharedMem

	// GlobalAtomic adds directly into the input accumulator
	GlobalAtomic

	// Dendritic adds into the dendritic delay buffer
	Dendritic
)

var accNames = [...]string{"register", "shared", "global", "dendritic"}

func (a Accumulation) String() string {
	if a < 0 || int(a) >= len(accNames) {
		return fmt.Sprintf("Accumulation(%d)", a)
	}
	return accNames[a]
}

// AccumulationFor composes the accumulation tactic of sg under s: a
// dendritic delay always goes through the delay buffer, then register
// and shared memory accumulation are used when the strategy allows.
func AccumulationFor(s Strategy, sg *slmodel.SynapseGroup, env Env) Accumulation {
	switch {
	case sg.DendriticDelayRequired():
		return Dendritic
	case s.ShouldAccumulateInRegister(sg):
		return Register
	case s.SharedMemoryPerThread(sg, env) > 0:
		return SharedMem
	}
	return GlobalAtomic
}

// isSmallSharedPop reports whether the whole target population fits
// in a block-shared accumulator.
func isSmallSharedPop(sg *slmodel.SynapseGroup, env Env) bool {
	return env.FastSharedAtomics() && !sg.DendriticDelayRequired() && sg.Trg.Size <= env.BlockSize()
}

func padded(n, block int) int {
	return ((n + block - 1) / block) * block
}

func evntSuffix(trueSpike bool) string {
	if trueSpike {
		return ""
	}
	return "Evnt"
}

// spikeArrays returns the spike count and spike arrays of the source
// of sg, and the index of the count for the axonally delayed read slot.
func spikeArrays(sg *slmodel.SynapseGroup, env Env, trueSpike bool) (cnt, spk, cntIdx string) {
	r := env.Resolver()
	evnt := evntSuffix(trueSpike)
	cnt = r.Array("glbSpkCnt"+evnt, sg.Src.Name)
	spk = r.Array("glbSpk"+evnt, sg.Src.Name)
	cntIdx = r.SlotIndex(sg.Src, slsym.SlotDelayed(sg.DelaySteps))
	return
}

func atomicAdd(env Env, space MemSpace, target, val string) string {
	return fmt.Sprintf("%s(&%s, %s)", env.FloatAtomicAdd(space), target, val)
}

// addInputFuncs binds $(addToInSyn, x) and, with a dendritic delay,
// $(addToInSynDelay, x, d) for target index idx.
func addInputFuncs(subs *slsym.Table, sg *slmodel.SynapseGroup, env Env, acc Accumulation, idx string) {
	r := env.Resolver()
	switch acc {
	case Dendritic:
		den := r.Array("denDelay", sg.PSTarget)
		subs.AddFunc("addToInSynDelay", 2, atomicAdd(env, Global, den+"["+r.DendriticDelayOffset(sg, "$(1)")+idx+"]", "$(0)"))
		subs.AddFunc("addToInSyn", 1, atomicAdd(env, Global, den+"["+r.DendriticDelayOffset(sg, "0")+idx+"]", "$(0)"))
	case Register:
		subs.AddFunc("addToInSyn", 1, "linSyn += $(0)")
	case SharedMem:
		subs.AddFunc("addToInSyn", 1, atomicAdd(env, Shared, "shLg["+idx+"]", "$(0)"))
	default:
		subs.AddFunc("addToInSyn", 1, atomicAdd(env, Global, r.Array("inSyn", sg.PSTarget)+"["+idx+"]", "$(0)"))
	}
}

// genSharedZero zeroes the shared accumulator of the target population
func genSharedZero(w *slcode.Stream, sg *slmodel.SynapseGroup, env Env) {
	w.Printf("if (%s < %d)", env.LocalID(), sg.Trg.Size)
	w.Open(1)
	w.Printf("shLg[%s] = 0;\n", env.LocalID())
	w.Close(1)
	w.Println("%s;", env.Barrier())
}

// genFlush adds the accumulated value val of target idx into the input
// accumulator. Several writers per slot need an atomic add: merged
// accumulators, or block-shared accumulators of a group spanning more
// than one block.
func genFlush(w *slcode.Stream, sg *slmodel.SynapseGroup, env Env, idx, val string, multiBlock bool) {
	inSyn := env.Resolver().Array("inSyn", sg.PSTarget) + "[" + idx + "]"
	w.Printf("if (%s < %d)", idx, sg.Trg.Size)
	w.Open(2)
	if sg.PSMerged || multiBlock {
		w.Println("%s;", atomicAdd(env, Global, inSyn, val))
	} else {
		w.Println("%s += %s;", inSyn, val)
	}
	w.Close(2)
}

// genRetest opens a block conditional on the event threshold of sg, if
// the source records events for other conditions too.
func genRetest(w *slcode.Stream, sg *slmodel.SynapseGroup, subs *slsym.Table, trueSpike bool, h Handlers) (bool, error) {
	if trueSpike || !sg.EventThresholdRetest {
		return false, nil
	}
	if h.Threshold == nil {
		return false, fmt.Errorf("synapse group %s: no threshold handler for event retest", sg.Name)
	}
	w.WriteString("if (")
	if err := h.Threshold(w, sg, slsym.New(subs)); err != nil {
		return false, err
	}
	w.WriteString(")")
	w.Open(130)
	return true, nil
}

// genSpikeThread declares spike, and thread for more than one thread per spike
func genSpikeThread(w *slcode.Stream, sg *slmodel.SynapseGroup, id string) {
	if sg.ThreadsPerSpike > 1 {
		w.Printf("const unsigned int spike = %s / %d;\n", id, sg.ThreadsPerSpike)
		w.Printf("const unsigned int thread = %s %% %d;\n", id, sg.ThreadsPerSpike)
		return
	}
	w.Printf("const unsigned int spike = %s;\n", id)
}
