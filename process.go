// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/emer/emergent/v2/timer"
	"github.com/pkg/errors"
	"goki.dev/synsl/slbackend"
	"goki.dev/synsl/slmodel"
	"goki.dev/synsl/sltype"
	"golang.org/x/tools/txtar"
)

// Bundle is a model bundle: the toml model description, an optional
// device profile, and the code regions of its other files.
type Bundle struct {
	Name    string
	Model   []byte
	Profile []byte
	Regions map[string]string
}

// ReadBundle reads the txtar bundle file fn
func ReadBundle(fn string) (*Bundle, error) {
	data, err := os.ReadFile(fn)
	if err != nil {
		return nil, err
	}
	return ParseBundle(fn, data)
}

// ParseBundle parses txtar bundle data read from fn
func ParseBundle(fn string, data []byte) (*Bundle, error) {
	ar := txtar.Parse(data)
	b := &Bundle{Name: fn, Regions: map[string]string{}}
	for _, f := range ar.Files {
		switch f.Name {
		case "model.toml":
			b.Model = f.Data
		case "profile.toml":
			b.Profile = f.Data
		default:
			if err := ExtractRegions(b.Regions, fn+"/"+f.Name, f.Data); err != nil {
				return nil, err
			}
		}
	}
	if b.Model == nil {
		return nil, errors.Errorf("%s: bundle has no model.toml", fn)
	}
	return b, nil
}

// Options select the target of generation
type Options struct {
	// Backend is used when no profile is given
	Backend slbackend.Kind

	// Profile takes precedence over the profile of the bundle
	Profile *slbackend.Profile

	// Precision overrides both the model and the profile, if set
	Precision string
}

// Generate loads the model of b and generates its program
func (b *Bundle) Generate(opts Options) (*slbackend.Program, error) {
	m, err := slmodel.Load(b.Model, b.Regions)
	if err != nil {
		return nil, errors.Wrap(err, b.Name)
	}
	pr := opts.Profile
	if pr == nil && b.Profile != nil {
		pr, err = slbackend.DecodeProfile(b.Profile)
		if err != nil {
			return nil, errors.Wrap(err, b.Name)
		}
	}
	if pr == nil {
		pr = slbackend.DefaultProfile(opts.Backend)
	}
	prec := m.Precision
	if opts.Precision != "" {
		prec, err = sltype.ParsePrecision(opts.Precision)
		if err != nil {
			return nil, err
		}
		cp := *pr
		cp.Precision = ""
		pr = &cp
	}
	prog, err := slbackend.New(pr, prec).Generate(m)
	if err != nil {
		return nil, errors.Wrap(err, b.Name)
	}
	return prog, nil
}

// WriteProgram writes the kernel source and manifest of p into dir
func WriteProgram(dir string, p *slbackend.Program) error {
	if err := os.WriteFile(filepath.Join(dir, p.SourceFile()), []byte(p.Source()), 0644); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := p.WriteManifest(&buf); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, p.ManifestFile()), buf.Bytes(), 0644)
}

// ShowProgram writes the syntax highlighted source of p to w
func ShowProgram(w io.Writer, p *slbackend.Program) error {
	lexer := "cuda"
	if p.Backend == slbackend.OpenCL {
		lexer = "c"
	}
	return quick.Highlight(w, p.Source(), lexer, "terminal256", "monokai")
}

// processFile generates the program of bundle fn and writes it to the
// output directory
func processFile(fn string, opts Options) error {
	tmr := timer.Time{}
	tmr.Start()
	b, err := ReadBundle(fn)
	if err != nil {
		return err
	}
	p, err := b.Generate(opts)
	if err != nil {
		return err
	}
	if err := WriteProgram(*outDir, p); err != nil {
		return err
	}
	tmr.Stop()
	slog.Info("generated", "bundle", fn, "model", p.Model, "backend", p.Backend.String(), "precision", p.Precision.String(), "kernels", len(p.Kernels), "source", filepath.Join(*outDir, p.SourceFile()), "secs", tmr.TotalSecs())
	if *show {
		return ShowProgram(os.Stdout, p)
	}
	return nil
}

// processFiles processes all bundles, returning the number that failed
func processFiles(fls []string, opts Options) int {
	nerr := 0
	for _, fn := range fls {
		if err := processFile(fn, opts); err != nil {
			slog.Error("generation failed", "bundle", fn, "err", err)
			nerr++
		}
	}
	return nerr
}
