// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slmodel

import (
	"fmt"
	"strings"
)

// MatrixConnectivity is how the connections of a synapse group are stored
type MatrixConnectivity int32

const (
	// Dense stores every source x target pair
	Dense MatrixConnectivity = iota

	// Sparse stores a padded row of target indices per source neuron,
	// with a row length array
	Sparse

	// Bitmask stores one bit per source x target pair
	Bitmask

	// Procedural computes rows on the fly from connectivity code
	Procedural
)

var matrixNames = [...]string{"DENSE", "SPARSE", "BITMASK", "PROCEDURAL"}

func (m MatrixConnectivity) String() string {
	if m < 0 || int(m) >= len(matrixNames) {
		return fmt.Sprintf("MatrixConnectivity(%d)", m)
	}
	return matrixNames[m]
}

// UnmarshalText implements encoding.TextUnmarshaler
func (m *MatrixConnectivity) UnmarshalText(text []byte) error {
	s := strings.ToUpper(strings.TrimSpace(string(text)))
	for i, nm := range matrixNames {
		if nm == s {
			*m = MatrixConnectivity(i)
			return nil
		}
	}
	return fmt.Errorf("unknown matrix connectivity %q", string(text))
}

// MatrixConnectivityValues returns all matrix kinds
func MatrixConnectivityValues() []MatrixConnectivity {
	return []MatrixConnectivity{Dense, Sparse, Bitmask, Procedural}
}

// SpanType is which side of a connection determines the thread mapping
// of the presynaptic update.
type SpanType int32

const (
	// Postsynaptic uses one thread per postsynaptic target slot
	Postsynaptic SpanType = iota

	// Presynaptic uses threads per presynaptic spike
	Presynaptic
)

func (s SpanType) String() string {
	if s == Presynaptic {
		return "PRESYNAPTIC"
	}
	return "POSTSYNAPTIC"
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *SpanType) UnmarshalText(text []byte) error {
	switch strings.ToUpper(strings.TrimSpace(string(text))) {
	case "POSTSYNAPTIC", "":
		*s = Postsynaptic
	case "PRESYNAPTIC":
		*s = Presynaptic
	default:
		return fmt.Errorf("unknown span type %q", string(text))
	}
	return nil
}

// SpanTypeValues returns all span types
func SpanTypeValues() []SpanType {
	return []SpanType{Postsynaptic, Presynaptic}
}

// VarImpl is how a weight update variable is stored
type VarImpl int32

const (
	// Individual stores one value per synapse
	Individual VarImpl = iota

	// Global uses one constant value for the whole group
	Global

	// Procedural computes the value when needed from a var init snippet
	ProceduralVar
)

var varImplNames = [...]string{"INDIVIDUAL", "GLOBAL", "PROCEDURAL"}

func (v VarImpl) String() string {
	if v < 0 || int(v) >= len(varImplNames) {
		return fmt.Sprintf("VarImpl(%d)", v)
	}
	return varImplNames[v]
}

// UnmarshalText implements encoding.TextUnmarshaler
func (v *VarImpl) UnmarshalText(text []byte) error {
	s := strings.ToUpper(strings.TrimSpace(string(text)))
	if s == "" {
		*v = Individual
		return nil
	}
	for i, nm := range varImplNames {
		if nm == s {
			*v = VarImpl(i)
			return nil
		}
	}
	return fmt.Errorf("unknown var implementation %q", string(text))
}

// VarImplValues returns all var implementations
func VarImplValues() []VarImpl {
	return []VarImpl{Individual, Global, ProceduralVar}
}
