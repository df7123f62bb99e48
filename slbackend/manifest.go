// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slbackend

import (
	"io"

	"github.com/BurntSushi/toml"
	"github.com/iancoleman/strcase"
	"github.com/pkg/errors"
)

// Manifest describes the kernels of a program for the host code that
// launches them: block sizes, global thread counts and the ordered
// parameters.
type Manifest struct {
	Model     string    `toml:"model"`
	Backend   string    `toml:"backend"`
	Precision string    `toml:"precision"`
	Source    string    `toml:"source"`
	Kernels   []*Kernel `toml:"kernels"`
}

// SourceFile is the name of the source file of the program
func (p *Program) SourceFile() string {
	return strcase.ToSnake(p.Model) + p.Backend.Ext()
}

// ManifestFile is the name of the kernel manifest of the program
func (p *Program) ManifestFile() string {
	return strcase.ToSnake(p.Model) + "_kernels.toml"
}

// Manifest returns the manifest of p
func (p *Program) Manifest() *Manifest {
	return &Manifest{
		Model:     p.Model,
		Backend:   p.Backend.String(),
		Precision: p.Precision.String(),
		Source:    p.SourceFile(),
		Kernels:   p.Kernels,
	}
}

// WriteManifest writes the toml manifest of p to w
func (p *Program) WriteManifest(w io.Writer) error {
	enc := toml.NewEncoder(w)
	enc.Indent = ""
	return errors.Wrap(enc.Encode(p.Manifest()), "writing manifest")
}
