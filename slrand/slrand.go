// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package slrand is the Philox2x32 counter-based random number
// generator used by generated kernels, as a Go host reference and as
// device source for each backend (see DeviceSource).
//
// A Stream is keyed by the model seed, and the high word of its counter
// is the sequence number, so every sequence is an independent stream
// that can be started without generating any earlier one. Procedural
// connectivity uses this to give each row its own reproducible stream.
package slrand

import "goki.dev/mat32/v2"

// Uint2 is a 64 bit counter as two 32 bit words
type Uint2 struct {
	X, Y uint32
}

const (
	philoxM = 0xD256D193
	philoxW = 0x9E3779B9
)

// MulHiLo64 returns the low and high words of a * b
func MulHiLo64(a, b uint32) (lo, hi uint32) {
	prod := uint64(a) * uint64(b)
	hi = uint32(prod >> 32)
	lo = uint32(prod)
	return
}

// Philox2x32round does one round of updating of the counter
func Philox2x32round(counter *Uint2, key uint32) {
	lo, hi := MulHiLo64(philoxM, counter.X)
	counter.X = hi ^ key ^ counter.Y
	counter.Y = lo
}

// Philox2x32bumpkey does one round of updating of the key
func Philox2x32bumpkey(key *uint32) {
	*key += philoxW
}

// Philox2x32 is the stateless Philox2x32-10 function: the random pair
// for counter under key.
func Philox2x32(counter Uint2, key uint32) Uint2 {
	for i := 0; i < 9; i++ {
		Philox2x32round(&counter, key)
		Philox2x32bumpkey(&key)
	}
	Philox2x32round(&counter, key) // 10
	return counter
}

// Uint32ToFloat converts val into a float in the (0..1) interval
func Uint32ToFloat(val uint32) float32 {
	const factor = float32(1.) / (float32(0xffffffff) + float32(1.))
	const halffactor = float32(0.5) * factor
	return float32(val)*factor + halffactor
}

// Uint32ToFloat11 converts val into a float in the (-1..1) interval
func Uint32ToFloat11(val uint32) float32 {
	const factor = float32(1.) / (float32(0xffffffff) + float32(1.))
	const halffactor = float32(0.5) * factor
	return 2.0 * (float32(int32(val))*factor + halffactor)
}

// CounterIncr increments the counter as a 64 bit integer
func CounterIncr(counter *Uint2) {
	if counter.X == 0xffffffff {
		counter.Y++
		counter.X = 0
	} else {
		counter.X++
	}
}

// Stream is one random sequence: every draw uses one Philox call and
// advances the counter, exactly as the device generator does.
type Stream struct {
	Counter Uint2
	Key     uint32
}

// NewStream returns the stream of sequence under seed
func NewStream(seed, sequence uint32) *Stream {
	return &Stream{Counter: Uint2{Y: sequence}, Key: seed}
}

func (s *Stream) next() Uint2 {
	r := Philox2x32(s.Counter, s.Key)
	CounterIncr(&s.Counter)
	return r
}

// Uint32 returns a uniformly distributed uint32
func (s *Stream) Uint32() uint32 {
	return s.next().X
}

// Float returns a uniformly distributed float in (0..1)
func (s *Stream) Float() float32 {
	return Uint32ToFloat(s.Uint32())
}

// Float11 returns a uniformly distributed float in (-1..1)
func (s *Stream) Float11() float32 {
	return Uint32ToFloat11(s.Uint32())
}

// NormFloat returns a normally distributed float with zero mean and
// unit variance, by the Box-Muller transform of one Philox pair.
func (s *Stream) NormFloat() float32 {
	ur := s.next()
	const pi = 3.1415926535897932
	r := mat32.Sqrt(-2. * mat32.Log(Uint32ToFloat(ur.Y))) // never 0
	return mat32.Sin(pi*Uint32ToFloat11(ur.X)) * r
}

// ExpFloat returns an exponentially distributed float with unit rate
func (s *Stream) ExpFloat() float32 {
	return -mat32.Log(s.Float())
}
