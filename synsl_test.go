// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goki/go-difflib/difflib"
	"goki.dev/synsl/slbackend"
	"golang.org/x/tools/txtar"
)

var update = flag.Bool("update", false, "update .golden files")

// goldenArchive returns the generated source and manifest of p as a
// txtar archive
func goldenArchive(t *testing.T, p *slbackend.Program) []byte {
	t.Helper()
	var man bytes.Buffer
	if err := p.WriteManifest(&man); err != nil {
		t.Fatal(err)
	}
	return txtar.Format(&txtar.Archive{Files: []txtar.File{
		{Name: p.SourceFile(), Data: []byte(p.Source())},
		{Name: p.ManifestFile(), Data: man.Bytes()},
	}})
}

func runTest(t *testing.T, in, out string) {
	b, err := ReadBundle(in)
	if err != nil {
		t.Fatal(err)
	}
	p, err := b.Generate(Options{Backend: slbackend.CUDA})
	if err != nil {
		t.Fatal(err)
	}
	got := goldenArchive(t, p)

	expected, err := os.ReadFile(out)
	if err != nil {
		if *update {
			if err := os.WriteFile(out, got, 0666); err != nil {
				t.Error(err)
			}
			return
		}
		t.Skipf("no golden file %s: run with -update to create it", out)
	}

	if !bytes.Equal(got, expected) {
		if *update {
			if err := os.WriteFile(out, got, 0666); err != nil {
				t.Error(err)
			}
			return
		}
		diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        difflib.SplitLines(string(expected)),
			B:        difflib.SplitLines(string(got)),
			FromFile: out,
			ToFile:   "got",
			Context:  3,
		})
		t.Errorf("(synsl %s) != %s (see %s.synsl)\n%s", in, out, in, diff)
		if err := os.WriteFile(in+".synsl", got, 0666); err != nil {
			t.Error(err)
		}
	}
}

// TestGenerate processes testdata/*.txtar bundles and compares them to
// the corresponding testdata/*.golden files.
func TestGenerate(t *testing.T) {
	match, err := filepath.Glob("testdata/*.txtar")
	if err != nil {
		t.Fatal(err)
	}
	if len(match) == 0 {
		t.Fatal("no test bundles")
	}
	for _, in := range match {
		name := filepath.Base(in)
		t.Run(name, func(t *testing.T) {
			out := strings.TrimSuffix(in, ".txtar") + ".golden"
			runTest(t, in, out)
		})
	}
}

func TestDeterministic(t *testing.T) {
	var prev []byte
	for i := 0; i < 3; i++ {
		b, err := ReadBundle("testdata/net.txtar")
		if err != nil {
			t.Fatal(err)
		}
		p, err := b.Generate(Options{Backend: slbackend.CUDA})
		if err != nil {
			t.Fatal(err)
		}
		got := goldenArchive(t, p)
		if prev != nil && !bytes.Equal(prev, got) {
			t.Fatalf("run %d differs from the previous run", i)
		}
		prev = got
	}
}

func TestExtractRegions(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want map[string]string
	}{
		{"start", "x\n//synsl: start LIF.sim\n$(V) += 1;\n//synsl: end\ny\n",
			map[string]string{"LIF.sim": "$(V) += 1;"}},
		{"code", "package net\n\t//synsl: code LIF.reset\n\t// $(V) = 0;\n\t//\n\t// $(U) = 1;\n\t//synsl: end\n",
			map[string]string{"LIF.reset": "$(V) = 0;\n\n$(U) = 1;"}},
		{"comment block", "//synsl: code A.sim\n/*\n// x;\n*/\n//synsl: end\n",
			map[string]string{"A.sim": "x;"}},
		{"repeated", "//synsl: start A.sim\na;\n//synsl: end\n//synsl: start A.sim\nb;\n//synsl: end\n",
			map[string]string{"A.sim": "a;\nb;"}},
		{"indented", "//synsl: start A.sim\n    if (x) {\n        y;\n    }\n//synsl: end\n",
			map[string]string{"A.sim": "    if (x) {\n        y;\n    }"}},
		{"none", "int x;\n", map[string]string{}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := map[string]string{}
			if err := ExtractRegions(got, "f.c", []byte(test.src)); err != nil {
				t.Fatal(err)
			}
			if len(got) != len(test.want) {
				t.Fatalf("got %d regions %v, want %d", len(got), got, len(test.want))
			}
			for k, v := range test.want {
				if got[k] != v {
					t.Errorf("region %s = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

func TestExtractRegionErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		msg  string
	}{
		{"unterminated", "//synsl: start A.sim\nx;\n", "f.c:1: region A.sim not terminated"},
		{"nested", "//synsl: start A.sim\n//synsl: start B.sim\n//synsl: end\n", "f.c:2: region start B.sim started inside region A.sim"},
		{"stray end", "x;\n//synsl: end\n", "f.c:2: region end without start"},
		{"no field", "//synsl: start A\n//synsl: end\n", "must be <Model>.<field>"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := ExtractRegions(map[string]string{}, "f.c", []byte(test.src))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), test.msg) {
				t.Errorf("error %q does not contain %q", err, test.msg)
			}
		})
	}
}

func TestBundle(t *testing.T) {
	b, err := ReadBundle("testdata/net.txtar")
	if err != nil {
		t.Fatal(err)
	}
	if b.Profile != nil {
		t.Error("net.txtar has no profile")
	}
	for _, k := range []string{"LIF.sim", "LIF.threshold", "LIF.reset", "ExpCurr.apply_input", "FixedProb.row_build"} {
		if b.Regions[k] == "" {
			t.Errorf("missing region %s", k)
		}
	}
	if got := b.Regions["ExpCurr.apply_input"]; got != "$(Isyn) += $(inSyn);" {
		t.Errorf("apply input region = %q", got)
	}

	p, err := b.Generate(Options{Backend: slbackend.CUDA})
	if err != nil {
		t.Fatal(err)
	}
	if p.SourceFile() != "net.cu" || p.ManifestFile() != "net_kernels.toml" {
		t.Errorf("files %s %s", p.SourceFile(), p.ManifestFile())
	}
	var names []string
	for _, k := range p.Kernels {
		names = append(names, k.Name)
	}
	if got := strings.Join(names, " "); got != "initializeKernel updatePresynapticKernel preNeuronResetKernel updateNeuronsKernel" {
		t.Errorf("kernels %s", got)
	}
	src := p.Source()
	for _, s := range []string{"lV += (Isyn - lV) * ", "Isyn += linSynPE;", "lV = (-60.0f);", "(1.0f - 0.1f)", "dd_VE[lid] = (-60.0f);"} {
		if !strings.Contains(src, s) {
			t.Errorf("source missing %q", s)
		}
	}

	if _, err := ParseBundle("empty.txtar", []byte("-- lif.c --\n")); err == nil {
		t.Error("expected an error for a bundle without a model")
	}
	bad := []byte("-- model.toml --\nname = \"x\"\n-- a.c --\n//synsl: start Nope.sim\nx;\n//synsl: end\n")
	nb, err := ParseBundle("bad.txtar", bad)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := nb.Generate(Options{Backend: slbackend.CUDA}); err == nil {
		t.Error("expected an error for a region naming no model")
	}
}

func TestBundleProfile(t *testing.T) {
	b, err := ReadBundle("testdata/net_opencl.txtar")
	if err != nil {
		t.Fatal(err)
	}
	p, err := b.Generate(Options{Backend: slbackend.CUDA})
	if err != nil {
		t.Fatal(err)
	}
	if p.Backend != slbackend.OpenCL || p.Precision.String() != "double" {
		t.Errorf("backend %s precision %s", p.Backend, p.Precision)
	}
	if k := p.Kernel("updatePresynapticKernel"); k == nil || k.BlockSize != 64 {
		t.Errorf("presynaptic kernel %+v", k)
	}

	// an explicit profile replaces that of the bundle, and the precision
	// option overrides both
	p, err = b.Generate(Options{Profile: slbackend.DefaultProfile(slbackend.CUDA), Precision: "float"})
	if err != nil {
		t.Fatal(err)
	}
	if p.Backend != slbackend.CUDA || p.Precision.String() != "float" {
		t.Errorf("backend %s precision %s", p.Backend, p.Precision)
	}
	p, err = b.Generate(Options{Precision: "float"})
	if err != nil {
		t.Fatal(err)
	}
	if p.Backend != slbackend.OpenCL || p.Precision.String() != "float" {
		t.Errorf("backend %s precision %s", p.Backend, p.Precision)
	}
	if _, err := b.Generate(Options{Precision: "half"}); err == nil {
		t.Error("expected an error for an unknown precision")
	}
}

func TestProcessFile(t *testing.T) {
	dir := t.TempDir()
	prev := *outDir
	*outDir = dir
	defer func() { *outDir = prev }()

	if n := processFiles([]string{"testdata/net.txtar", "testdata/missing.txtar"}, Options{Backend: slbackend.CUDA}); n != 1 {
		t.Errorf("%d bundles failed, want 1", n)
	}
	src, err := os.ReadFile(filepath.Join(dir, "net.cu"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(src, []byte("// generated by synsl: do not edit")) {
		t.Errorf("source starts %q", src[:min(40, len(src))])
	}
	man, err := os.ReadFile(filepath.Join(dir, "net_kernels.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(man, []byte(`source = "net.cu"`)) {
		t.Errorf("manifest:\n%s", man)
	}
}

func TestShowProgram(t *testing.T) {
	b, err := ReadBundle("testdata/net.txtar")
	if err != nil {
		t.Fatal(err)
	}
	p, err := b.Generate(Options{Backend: slbackend.CUDA})
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := ShowProgram(&buf, p); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "updateNeuronsKernel") {
		t.Error("highlighted source is missing the neuron kernel")
	}
}

func TestGoRegionEdits(t *testing.T) {
	src := "package net\n\n//synsl: code Izh.sim\n// var u float32 = mat32.Exp(-$(V)) + math.Abs($(U))\n// var n uint32 = int32($(k))\n//synsl: end\n"
	regs := map[string]string{}
	if err := ExtractRegions(regs, "izh.go", []byte(src)); err != nil {
		t.Fatal(err)
	}
	want := "var u float = exp(-$(V)) + fabs($(U))\nvar n unsigned int = int($(k))"
	if regs["Izh.sim"] != want {
		t.Errorf("got %q, want %q", regs["Izh.sim"], want)
	}

	// other host files are taken as written
	regs = map[string]string{}
	if err := ExtractRegions(regs, "izh.c", []byte(src)); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(regs["Izh.sim"], "mat32.Exp(") {
		t.Errorf("c region was edited: %q", regs["Izh.sim"])
	}
}
