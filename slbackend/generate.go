// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slbackend

import (
	"fmt"
	"strings"

	"github.com/iancoleman/strcase"
	"github.com/pkg/errors"
	"goki.dev/synsl/slcode"
	"goki.dev/synsl/slmodel"
	"goki.dev/synsl/slrand"
	"goki.dev/synsl/slspan"
	"goki.dev/synsl/slsubst"
	"goki.dev/synsl/slsym"
	"goki.dev/synsl/sltype"
)

// GroupRange is the range of global thread ids serving one group
type GroupRange struct {
	Name  string `toml:"name"`
	Start int    `toml:"start"`
	End   int    `toml:"end"`

	// Strategy and Accumulation are set for synapse groups
	Strategy     string `toml:"strategy,omitempty"`
	Accumulation string `toml:"accumulation,omitempty"`
}

// Phases of kernels: init kernels run once before the first step
const (
	PhaseInit = "init"
	PhaseStep = "step"
)

// Kernel is one generated kernel
type Kernel struct {
	Name          string       `toml:"name"`
	Phase         string       `toml:"phase"`
	BlockSize     int          `toml:"block_size"`
	GlobalThreads int          `toml:"global_threads"`
	Params        []Param      `toml:"params,omitempty"`
	Groups        []GroupRange `toml:"groups,omitempty"`

	Source string `toml:"-"`
}

// Program is the complete generated source of a model
type Program struct {
	Model     string
	Backend   Kind
	Precision sltype.Precision

	// Support is the code shared by the kernels
	Support string

	// Kernels in launch order, the init kernel first
	Kernels []*Kernel
}

// Source returns the complete kernel source file
func (p *Program) Source() string {
	var sb strings.Builder
	sb.WriteString(p.Support)
	for _, k := range p.Kernels {
		sb.WriteString(k.Source)
		sb.WriteString("\n")
	}
	return sb.String()
}

// Kernel returns the kernel named name, or nil
func (p *Program) Kernel(name string) *Kernel {
	for _, k := range p.Kernels {
		if k.Name == name {
			return k
		}
	}
	return nil
}

// label names a code fragment in errors, e.g. "neuron group E sim code"
func label(kind, group, field string) string {
	return fmt.Sprintf("%s %s %s", strcase.ToDelimited(kind, ' '), group, strcase.ToDelimited(field, ' '))
}

// gen is the state of one generation pass
type gen struct {
	b     *Backend
	m     *slmodel.Model
	r     slsym.Resolver
	root  *slsym.Table
	cands map[string]string
	reg   *slspan.Registry
}

// Generate generates the kernels of m: the init kernel, then the
// kernels of one step in launch order. Any error aborts the whole
// program.
func (b *Backend) Generate(m *slmodel.Model) (*Program, error) {
	cands, err := b.candidates(m)
	if err != nil {
		return nil, errors.Wrapf(err, "model %s", m.Name)
	}
	root := slsym.NewRoot(b.prec, slrand.FunctionTemplates())
	root.AddVar("DT", slsubst.FormatLiteral(m.DT, b.prec))
	g := &gen{b: b, m: m, r: b.Resolver(), root: root, cands: cands, reg: slspan.DefaultRegistry()}

	p := &Program{Model: m.Name, Backend: b.Kind, Precision: b.prec}
	for _, fn := range []func() (*Kernel, error){g.initialize, g.presynapticUpdate, g.preNeuronReset, g.neuronUpdate} {
		k, err := fn()
		if err != nil {
			return nil, errors.Wrapf(err, "model %s", m.Name)
		}
		if k != nil {
			p.Kernels = append(p.Kernels, k)
		}
	}
	rng := false
	for _, k := range p.Kernels {
		if identifiers(k.Source)[slrand.DeviceInit] {
			rng = true
		}
	}
	p.Support = b.SupportCode(rng)
	return p, nil
}

// kernel wraps body, generated by fn into a stream positioned inside
// the function braces, into kernel name.
func (g *gen) kernel(name string, bs int, fn func(w *slcode.Stream) error) (*Kernel, error) {
	w, buf := slcode.NewBuffer()
	w.Open(0)
	for _, ln := range g.b.globalID(bs) {
		w.WriteString(ln + "\n")
	}
	if err := fn(w); err != nil {
		return nil, errors.Wrap(err, name)
	}
	w.Close(0)
	if err := w.Err(); err != nil {
		return nil, errors.Wrap(err, name)
	}
	body := buf.String()
	k := &Kernel{Name: name, Phase: PhaseStep, BlockSize: bs}
	k.Params = kernelParams(body, g.cands)
	k.Source = g.b.kernelHead(name, k.Params) + " " + body
	return k, nil
}

// groupIf opens the thread range test of a group occupying [start, end)
func groupIf(w *slcode.Stream, start, end int) {
	if start == 0 {
		w.Printf("if (id < %d)", end)
	} else {
		w.Printf("if (id >= %d && id < %d)", start, end)
	}
	w.Open(200)
	if start == 0 {
		w.Println("const unsigned int lid = id;")
	} else {
		w.Println("const unsigned int lid = id - %d;", start)
	}
}

func padded(n, block int) int {
	return ((n + block - 1) / block) * block
}

// emit resolves code against t and writes it
func emit(w *slcode.Stream, t *slsym.Table, code, lbl string) error {
	if strings.TrimSpace(code) == "" {
		return nil
	}
	c, err := t.Resolve(code, lbl)
	if err != nil {
		return err
	}
	w.Code(c)
	return nil
}

// condition resolves a condition expression against t
func condition(t *slsym.Table, code, lbl string) (string, error) {
	c, err := t.Resolve(strings.TrimSpace(code), lbl)
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(strings.TrimSpace(c), ";"), nil
}

func (g *gen) preNeuronReset() (*Kernel, error) {
	bs := g.b.Profile.BlockSize.PreNeuronReset
	n := 0
	k, err := g.kernel("preNeuronResetKernel", bs, func(w *slcode.Stream) error {
		for _, ng := range g.m.NeuronGroups {
			w.Printf("if (id == %d)", n)
			w.Open(1)
			if ng.DelayRequired() {
				ptr := g.r.Array("spkQuePtr", ng.Name)
				w.Println("*%s = (*%s + 1) %% %d;", ptr, ptr, ng.NumDelaySlots)
			}
			slot := g.r.SlotIndex(ng, slsym.SlotCurrent)
			if ng.SpikeEventRequired() {
				w.Println("%s[%s] = 0;", g.r.Array("glbSpkCntEvnt", ng.Name), slot)
			}
			w.Println("%s[%s] = 0;", g.r.Array("glbSpkCnt", ng.Name), slot)
			w.Close(1)
			n++
		}
		for _, ng := range g.m.NeuronGroups {
			for _, sg := range ng.MergedInSyn {
				if !sg.DendriticDelayRequired() {
					continue
				}
				ptr := g.r.Array("denDelayPtr", sg.PSTarget)
				w.Printf("if (id == %d)", n)
				w.Open(2)
				w.Println("*%s = (*%s + 1) %% %d;", ptr, ptr, sg.MaxDendriticDelay)
				w.Close(2)
				n++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	k.GlobalThreads = padded(n, bs)
	return k, nil
}
