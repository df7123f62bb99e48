// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slbackend

import (
	"strings"

	"github.com/pkg/errors"
	"goki.dev/synsl/slmodel"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Param is a kernel parameter
type Param struct {
	Name string `toml:"name"`
	Type string `toml:"type"`
}

// IsPointer reports whether the parameter is a device array
func (p Param) IsPointer() bool {
	return strings.HasSuffix(p.Type, "*")
}

// candidates returns every device array and extra global parameter of
// m that a kernel could reference, keyed by kernel name.
func (b *Backend) candidates(m *slmodel.Model) (map[string]string, error) {
	r := b.Resolver()
	c := map[string]string{}
	egps := func(sn *slmodel.Snippet, owner string) error {
		for _, eg := range sn.ExtraGlobal {
			if b.Profile.IsDeviceType(eg.Type) && !eg.IsPointer() {
				return errors.Errorf("extra global param %s of %s: device type %s must be passed as a pointer", eg.Name, owner, eg.Type)
			}
			c[r.Array(eg.Name, owner)] = eg.Type
		}
		return nil
	}
	for _, ng := range m.NeuronGroups {
		c[r.Array("glbSpkCnt", ng.Name)] = "unsigned int*"
		c[r.Array("glbSpk", ng.Name)] = "unsigned int*"
		if ng.SpikeEventRequired() {
			c[r.Array("glbSpkCntEvnt", ng.Name)] = "unsigned int*"
			c[r.Array("glbSpkEvnt", ng.Name)] = "unsigned int*"
		}
		if ng.DelayRequired() {
			c[r.Array("spkQuePtr", ng.Name)] = "unsigned int*"
		}
		if ng.SpikeTimeRequired {
			c[r.Array("sT", ng.Name)] = "scalar*"
		}
		for _, v := range ng.Model.Vars {
			c[r.Array(v.Name, ng.Name)] = v.Type + "*"
		}
		if err := egps(&ng.Model.Snippet, ng.Name); err != nil {
			return nil, err
		}
	}
	for _, sg := range m.SynapseGroups {
		c[r.Array("inSyn", sg.PSTarget)] = "scalar*"
		for _, v := range sg.PS.Vars {
			c[r.Array(v.Name, sg.PSTarget)] = v.Type + "*"
		}
		if sg.DendriticDelayRequired() {
			c[r.Array("denDelay", sg.PSTarget)] = "scalar*"
			c[r.Array("denDelayPtr", sg.PSTarget)] = "unsigned int*"
		}
		switch sg.Matrix {
		case slmodel.Sparse:
			c[r.Array("rowLength", sg.Name)] = "unsigned int*"
			c[r.Array("ind", sg.Name)] = "unsigned int*"
		case slmodel.Bitmask:
			c[r.Array("gp", sg.Name)] = "unsigned int*"
		}
		for _, v := range sg.WU.Vars {
			if sg.VarImpl(v.Name) == slmodel.Individual {
				c[r.Array(v.Name, sg.Name)] = v.Type + "*"
			}
		}
		if err := egps(&sg.WU.Snippet, sg.Name); err != nil {
			return nil, err
		}
		if err := egps(&sg.PS.Snippet, sg.PSTarget); err != nil {
			return nil, err
		}
		if sg.Conn != nil {
			if err := egps(&sg.Conn.Snippet, sg.Name); err != nil {
				return nil, err
			}
		}
	}
	for _, cs := range m.CurrentSources {
		for _, v := range cs.Model.Vars {
			c[r.Array(v.Name, cs.Name)] = v.Type + "*"
		}
		if err := egps(&cs.Model.Snippet, cs.Name); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// identifiers returns the set of C identifiers in code
func identifiers(code string) map[string]bool {
	ids := map[string]bool{}
	st := -1
	for i := 0; i <= len(code); i++ {
		var c byte
		if i < len(code) {
			c = code[i]
		}
		isID := c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (st >= 0 && c >= '0' && c <= '9')
		switch {
		case isID && st < 0:
			// identifiers cannot start inside a number literal
			if i > 0 && (code[i-1] >= '0' && code[i-1] <= '9' || code[i-1] == '.') {
				continue
			}
			st = i
		case !isID && st >= 0:
			ids[code[st:i]] = true
			st = -1
		}
	}
	return ids
}

// kernelParams returns the parameters referenced by body: the device
// arrays in name order, then the time t and the RNG seed if used.
func kernelParams(body string, cands map[string]string) []Param {
	ids := identifiers(body)
	names := maps.Keys(cands)
	slices.Sort(names)
	var ps []Param
	for _, n := range names {
		if ids[n] {
			ps = append(ps, Param{Name: n, Type: cands[n]})
		}
	}
	if ids["t"] {
		ps = append(ps, Param{Name: "t", Type: "scalar"})
	}
	if ids["deviceRNGSeed"] {
		ps = append(ps, Param{Name: "deviceRNGSeed", Type: "unsigned int"})
	}
	return ps
}
