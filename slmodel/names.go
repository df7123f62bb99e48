// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slmodel

import (
	"strings"

	"github.com/pkg/errors"
)

// ReservedNames are bound by the generator in the code of every model,
// so no param, var or extra global param may use them.
var ReservedNames = []string{
	"Isyn", "sT", "t", "DT", "rng", "value",
	"id", "id_pre", "id_post", "id_syn", "id_post_begin", "num_post",
	"inSyn", "addToInSyn", "addToInSynDelay", "injectCurrent",
	"addSynapse", "endRow",
}

func isReserved(name string) bool {
	for _, r := range ReservedNames {
		if r == name {
			return true
		}
	}
	return strings.HasPrefix(name, "gennrand_")
}

func isIdent(name string) bool {
	if name == "" {
		return false
	}
	for i, c := range name {
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case i > 0 && c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}

// CheckNames checks that the params, derived params, vars and extra
// global params of sn, plus any extra names (such as row build state
// vars), are identifiers that are unique and not reserved. Names
// ending in _pre or _post are taken by synapse endpoint references.
func (sn *Snippet) CheckNames(extra ...string) error {
	var names []string
	names = append(names, sn.Params...)
	for _, d := range sn.Derived {
		names = append(names, d.Name)
	}
	for _, v := range sn.Vars {
		names = append(names, v.Name)
	}
	for _, eg := range sn.ExtraGlobal {
		names = append(names, eg.Name)
	}
	names = append(names, extra...)
	seen := map[string]bool{}
	for _, nm := range names {
		switch {
		case !isIdent(nm):
			return errors.Wrapf(ErrInvalidModel, "%s: %q is not an identifier", sn.Name, nm)
		case seen[nm]:
			return errors.Wrapf(ErrInvalidModel, "%s: name %s declared more than once", sn.Name, nm)
		case isReserved(nm):
			return errors.Wrapf(ErrInvalidModel, "%s: name %s is reserved", sn.Name, nm)
		case strings.HasSuffix(nm, "_pre") || strings.HasSuffix(nm, "_post"):
			return errors.Wrapf(ErrInvalidModel, "%s: name %s must not end in _pre or _post", sn.Name, nm)
		}
		seen[nm] = true
	}
	return nil
}

// CheckNames checks the names of the connectivity model, including
// its row build state vars.
func (cm *ConnectivityModel) CheckNames() error {
	var st []string
	for _, s := range cm.RowBuildState {
		st = append(st, s.Name)
	}
	return cm.Snippet.CheckNames(st...)
}
