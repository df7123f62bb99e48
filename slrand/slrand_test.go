// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slrand

import (
	"strings"
	"testing"

	"goki.dev/mat32/v2"
)

// known answers of the Random123 philox2x32-10 reference
func TestPhilox(t *testing.T) {
	tests := []struct {
		ctr  Uint2
		key  uint32
		want Uint2
	}{
		{Uint2{0, 0}, 0, Uint2{0xff1dae59, 0x6cd10df2}},
		{Uint2{0xffffffff, 0xffffffff}, 0xffffffff, Uint2{0x2c3f628b, 0xab4fd7ad}},
		{Uint2{0x243f6a88, 0x85a308d3}, 0x13198a2e, Uint2{0xdd7ce038, 0xf62a4c12}},
	}
	for _, tt := range tests {
		if got := Philox2x32(tt.ctr, tt.key); got != tt.want {
			t.Errorf("Philox2x32(%x, %x) = %x, want %x", tt.ctr, tt.key, got, tt.want)
		}
	}
}

func TestCounterIncr(t *testing.T) {
	c := Uint2{0xffffffff, 3}
	CounterIncr(&c)
	if c != (Uint2{0, 4}) {
		t.Errorf("got %v", c)
	}
}

func TestStreamReproducible(t *testing.T) {
	a, b := NewStream(42, 7), NewStream(42, 7)
	for i := 0; i < 100; i++ {
		if x, y := a.Uint32(), b.Uint32(); x != y {
			t.Fatalf("draw %d: %d != %d", i, x, y)
		}
	}
}

func TestSequenceIndependent(t *testing.T) {
	// drawing from one sequence does not change another
	want := NewStream(1, 5)
	var ref [10]uint32
	for i := range ref {
		ref[i] = want.Uint32()
	}
	other := NewStream(1, 4)
	got := NewStream(1, 5)
	for i := range ref {
		other.Uint32()
		other.NormFloat()
		if v := got.Uint32(); v != ref[i] {
			t.Errorf("draw %d: %d != %d", i, v, ref[i])
		}
	}
	if NewStream(1, 4).Uint32() == NewStream(1, 5).Uint32() {
		t.Error("different sequences should differ")
	}
	if NewStream(1, 4).Uint32() == NewStream(2, 4).Uint32() {
		t.Error("different seeds should differ")
	}
}

func TestRanges(t *testing.T) {
	s := NewStream(0, 0)
	var sum float64
	for i := 0; i < 10000; i++ {
		f := s.Float()
		if f <= 0 || f > 1 {
			t.Fatalf("Float out of range: %g", f)
		}
		f11 := s.Float11()
		if f11 < -1 || f11 > 1 {
			t.Fatalf("Float11 out of range: %g", f11)
		}
		if e := s.ExpFloat(); e < 0 {
			t.Fatalf("ExpFloat negative: %g", e)
		}
		sum += float64(s.NormFloat())
	}
	if mean := sum / 10000; mean < -0.1 || mean > 0.1 {
		t.Errorf("normal mean %g", mean)
	}
}

func TestDeviceSource(t *testing.T) {
	cu := DeviceSource(CUDA, true)
	for _, s := range []string{"__device__ float synslUniformf", "__umulhi(0xD256D193U, x)", "0x9E3779B9U", "synslLogNormal(", "make_uint2"} {
		if !strings.Contains(cu, s) {
			t.Errorf("CUDA source missing %q", s)
		}
	}
	cl := DeviceSource(OpenCL, false)
	if strings.Contains(cl, "__device__") || strings.Contains(cl, "synslUniform(") {
		t.Error("OpenCL single precision source has CUDA qualifiers or double functions")
	}
	if !strings.Contains(cl, "mul_hi(0xD256D193U, x)") || !strings.Contains(cl, "(uint2)(x, y)") {
		t.Error("OpenCL source missing mul_hi or vector literal")
	}
	for _, ft := range FunctionTemplates() {
		if !strings.Contains(ft.Single, "$(rng)") || !strings.Contains(ft.Double, "$(rng)") {
			t.Errorf("%s does not use $(rng)", ft.Name)
		}
	}
}

// the host draws follow the device formulas, for the init streams
// (key seed - 1) of a model seeded 7
func TestHostMatchesDevice(t *testing.T) {
	src := DeviceSource(CUDA, false)
	for _, c := range []string{"2.3283064365386963e-10f", "1.1641532182693481e-10f", "3.14159265358979f"} {
		if !strings.Contains(src, c) {
			t.Errorf("device source missing %s", c)
		}
	}
	const factor, half = float32(2.3283064365386963e-10), float32(1.1641532182693481e-10)
	for seq := uint32(0); seq < 4; seq++ {
		s := NewStream(7-1, seq)
		ctr := s.Counter
		u := Philox2x32(ctr, s.Key)
		if got, want := s.Float(), float32(u.X)*factor+half; got != want {
			t.Errorf("sequence %d: uniform %g, device %g", seq, got, want)
		}
		CounterIncr(&ctr)
		u = Philox2x32(ctr, s.Key)
		u11 := 2 * (float32(int32(u.X))*factor + half)
		u01 := float32(u.Y)*factor + half
		want := mat32.Sin(3.14159265358979*u11) * mat32.Sqrt(-2*mat32.Log(u01))
		if got := s.NormFloat(); got != want {
			t.Errorf("sequence %d: normal %g, device %g", seq, got, want)
		}
		CounterIncr(&ctr)
		u = Philox2x32(ctr, s.Key)
		if got, want := s.ExpFloat(), -mat32.Log(float32(u.X)*factor+half); got != want {
			t.Errorf("sequence %d: exponential %g, device %g", seq, got, want)
		}
	}
}
